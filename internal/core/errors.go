package core

import "errors"

// Error taxonomy shared by the registry and the ledger. Operations wrap these
// with the operation name and the offending id; match them with errors.Is.
var (
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrValidationFailed = errors.New("validation failed")
)
