package model

import "errors"

// Sentinel error kinds per spec §7. Boundary validation errors are returned
// to the caller; invariant violations are logged and trigger verification.
var (
	// ErrInvalidParameter marks a boundary validation failure: the caller
	// supplied a malformed value. Never mutates state.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrUnknownIdentity marks a lookup of an identity id that does not exist.
	ErrUnknownIdentity = errors.New("unknown identity")

	// ErrUnknownTrust marks a lookup of a trust edge that does not exist.
	ErrUnknownTrust = errors.New("unknown trust")

	// ErrUnknownEditionHint marks a lookup of an edition hint that does not exist.
	ErrUnknownEditionHint = errors.New("unknown edition hint")

	// ErrDuplicateObject marks a uniqueness invariant violation. Treated as
	// fatal by callers: triggers a full verification pass.
	ErrDuplicateObject = errors.New("duplicate object")

	// ErrMalformedURL marks an invalid fetch key (request/insert URI mismatch
	// or similar). Boundary error.
	ErrMalformedURL = errors.New("malformed url")

	// ErrTransactionConflict marks a write-lock acquisition race. Retried
	// internally with bounded backoff; see internal/store.
	ErrTransactionConflict = errors.New("transaction conflict")

	// ErrTransportFailure marks a NetworkClient operation failure.
	ErrTransportFailure = errors.New("transport failure")

	// ErrInterrupted marks a shutdown signal observed by a background job.
	// Never surfaced to the user.
	ErrInterrupted = errors.New("interrupted")

	// ErrUnavailable is surfaced when ErrTransactionConflict retries are
	// exhausted.
	ErrUnavailable = errors.New("unavailable")
)
