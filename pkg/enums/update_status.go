package enums

import "slices"

// UpdateStatus is the per-item outcome of a listing price update.
type UpdateStatus string

const (
	UpdateStatusUpdated          UpdateStatus = "updated"
	UpdateStatusCleared          UpdateStatus = "cleared"
	UpdateStatusNoQuotes         UpdateStatus = "no_quotes"
	UpdateStatusNotFound         UpdateStatus = "not_found"
	UpdateStatusInvalidID        UpdateStatus = "invalid_id"
	UpdateStatusMalformedPayload UpdateStatus = "malformed_payload"
	UpdateStatusWriteFailed      UpdateStatus = "write_failed"
)

// UpdateStatuses lists every status in report order.
var UpdateStatuses = []UpdateStatus{
	UpdateStatusUpdated,
	UpdateStatusCleared,
	UpdateStatusNoQuotes,
	UpdateStatusNotFound,
	UpdateStatusInvalidID,
	UpdateStatusMalformedPayload,
	UpdateStatusWriteFailed,
}

func (s UpdateStatus) String() string { return string(s) }

func (s UpdateStatus) IsValid() bool {
	return slices.Contains(UpdateStatuses, s)
}

// IsFailure reports whether the item could not be indexed.
func (s UpdateStatus) IsFailure() bool {
	switch s {
	case UpdateStatusInvalidID, UpdateStatusMalformedPayload, UpdateStatusWriteFailed:
		return true
	}
	return false
}

// Wrote reports whether the cached column was overwritten.
func (s UpdateStatus) Wrote() bool {
	return s == UpdateStatusUpdated || s == UpdateStatusCleared
}

func ParseUpdateStatus(value string) (UpdateStatus, error) {
	return parse("update status", UpdateStatuses, value)
}
