package domain

import "errors"

var (
	ErrNotFound            = errors.New("payment_not_found")
	ErrDuplicateReference  = errors.New("payment_reference_exists")
	ErrInvalidStatus       = errors.New("payment_invalid_status")
	ErrInvalidProduct      = errors.New("payment_invalid_product")
	ErrConflictingTerminal = errors.New("payment_conflicting_terminal_status")
	ErrNotCancellable      = errors.New("payment_not_cancellable")
)
