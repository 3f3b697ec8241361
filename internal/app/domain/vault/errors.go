package vault

import "errors"

// Error taxonomy for vault operations. Every failure is terminal for the
// triggering operation and leaves durable state unchanged.
var (
	// ErrInvalidAmount rejects zero or non-positive quantities.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrDeadlineExpired rejects an authorization presented after its
	// deadline.
	ErrDeadlineExpired = errors.New("authorization deadline expired")
	// ErrInvalidSignature covers malformed signatures and signers lacking
	// the withdrawal capability.
	ErrInvalidSignature = errors.New("invalid authorization signature")
	// ErrTransferFailed indicates the underlying asset movement did not
	// succeed.
	ErrTransferFailed = errors.New("asset transfer failed")
	// ErrUnauthorized indicates a capability check failed for an admin-only
	// operation.
	ErrUnauthorized = errors.New("caller lacks required capability")
	// ErrPaused rejects mutating operations while the vault is paused.
	ErrPaused = errors.New("vault is paused")
	// ErrReentrantCall rejects a nested guarded operation while another is
	// still executing on the same instance.
	ErrReentrantCall = errors.New("reentrant vault call rejected")
)
