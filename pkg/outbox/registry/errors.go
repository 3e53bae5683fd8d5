package registry

// NonRetryableError marks a row that can never be published as stored.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// NewNonRetryableError wraps err so the publisher stops retrying the row.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}
