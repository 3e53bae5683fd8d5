package types

// SuccessEnvelope wraps every 2xx body written by the admin API.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the error body. Code is the pkg/errors code string.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
