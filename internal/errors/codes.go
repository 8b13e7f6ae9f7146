package errors

// ErrorCode classifies a pipeline failure
type ErrorCode string

const (
	// ErrTransient covers network failures, timeouts, and transaction
	// conflicts. The delivery is retried by the trigger runtime.
	ErrTransient ErrorCode = "TRANSIENT"

	// ErrMalformedResponse marks an external response we could not parse
	// or trust. Retried like a transient failure, never treated as ALLOW.
	ErrMalformedResponse ErrorCode = "MALFORMED_RESPONSE"

	// ErrRecoverableContent marks content that cannot be evaluated
	// (missing, oversized, unreadable). Downgraded to a guardrail
	// verdict by the caller rather than retried.
	ErrRecoverableContent ErrorCode = "RECOVERABLE_CONTENT"

	// ErrAlreadyApplied marks an expected race: a duplicate delivery or a
	// concurrent reactor already performed the work. Silent no-op.
	ErrAlreadyApplied ErrorCode = "ALREADY_APPLIED"

	ErrNotFound      ErrorCode = "NOT_FOUND"
	ErrAlreadyExists ErrorCode = "ALREADY_EXISTS"
	ErrInternal      ErrorCode = "INTERNAL"
)
