// Package errors provides the structured error type shared by every
// andadb component: indexes, the collection manager, and the KIP
// parser/planner/executor all return *Error rather than bare errors.
package errors

// Kind is the exhaustive classification of engine failures. Callers
// switch on Kind, never on Error.Message, to decide how to react.
type Kind string

const (
	// Parse indicates a KQL/KML/META grammar error.
	Parse Kind = "Parse"
	// Validation indicates a request failed semantic validation
	// (unknown type reference, malformed pattern, bad parameter).
	Validation Kind = "Validation"
	// NotFound indicates a referenced doc_id, page, segment, or
	// concept/proposition does not exist.
	NotFound Kind = "NotFound"
	// Duplicate indicates an insert collided with an existing key
	// (doc_id already live, (type,name) primary key taken).
	Duplicate Kind = "Duplicate"
	// SchemaMismatch indicates a field's runtime type does not match
	// its declared schema type.
	SchemaMismatch Kind = "SchemaMismatch"
	// DimensionMismatch indicates a vector's length does not match
	// the index's configured dimension.
	DimensionMismatch Kind = "DimensionMismatch"
	// Conflict indicates an optimistic-lock failure at commit time;
	// the caller should re-plan against the new version.
	Conflict Kind = "Conflict"
	// Io indicates an object-store read/write failure.
	Io Kind = "Io"
	// Corruption indicates a CRC or structural invariant failure
	// while loading a snapshot, segment, or page.
	Corruption Kind = "Corruption"
	// Cancelled indicates the caller's context was cancelled.
	Cancelled Kind = "Cancelled"
	// Internal indicates a bug: an invariant the engine itself is
	// responsible for maintaining was violated.
	Internal Kind = "Internal"
)

// Severity is a coarser classification used for logging thresholds; it
// is derived from Kind, not carried independently.
type Severity string

const (
	SeverityFatal   Severity = "FATAL"
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
)

func severityForKind(k Kind) Severity {
	switch k {
	case Corruption:
		return SeverityFatal
	case Cancelled:
		return SeverityWarning
	default:
		return SeverityError
	}
}

// retryableKind reports whether the core itself may retry a failure of
// this kind. Per the propagation policy, the core never retries —
// retries of transient Io belong to the object-store adapter, outside
// the core — so this is always false for Io and every other kind.
// IsRetryable does not consult it; it reads the Error's Retryable field.
func retryableKind(k Kind) bool {
	return false
}
