package payments

import "errors"

// Failure kinds reported to callers. Wrapped with fmt.Errorf("%w: ...") and
// matched with errors.Is.
var (
	ErrInvalidRequest     = errors.New("invalid request")
	ErrDuplicateReference = errors.New("payment reference already exists")
	ErrNotFound           = errors.New("not found")
	ErrAmountMismatch     = errors.New("amount mismatch")
	ErrInvalidWebhook     = errors.New("invalid webhook")
)
