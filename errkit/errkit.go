// Package errkit is the engine's single error vocabulary: a Kind-tagged
// *Error every package from device up to the root constructs and checks
// against, in place of sentinel-by-value comparisons, so callers can use
// errors.Is/errors.As instead of equality checks against a fixed constant.
// Pulled into its own package (rather than living in the root bltree
// package) purely to break the import cycle: codec/keylist/recordlist/
// upfront/node all need to construct these errors, and all sit below the
// root package.
package errkit

import (
	"errors"
	"fmt"
)

// Kind classifies an Error the way the engine's callers are expected to
// switch on: by category, never by message text.
type Kind int

const (
	// KindOk is never returned; it exists so the zero Kind is not a real error.
	KindOk Kind = iota

	// KindIntegrityViolated marks detectable on-disk/in-memory corruption:
	// overlapping UpfrontIndex chunks, slot count mismatch, a missing
	// extended-key blob. Always fatal to the current operation.
	KindIntegrityViolated
	// KindLimitsReached signals "this region has no more room"; the btree
	// driver catches it from a KeyList/RecordList/UpfrontIndex call and
	// either shifts the keylist/recordlist boundary or splits the node.
	KindLimitsReached
	// KindKeyNotFound is returned by find/erase when the key does not exist.
	KindKeyNotFound
	// KindBlobNotFound is returned when a blob id does not resolve to a
	// live allocation.
	KindBlobNotFound
	// KindDuplicateKey is returned by insert without the Overwrite flag
	// when the key already exists and duplicates are not requested.
	KindDuplicateKey

	// KindIoError wraps an unclassified Device failure.
	KindIoError
	// KindShortRead is returned when a Device read filled fewer bytes than
	// requested.
	KindShortRead
	// KindShortWrite is returned when a Device write persisted fewer bytes
	// than requested; the caller may not assume the remainder is durable.
	KindShortWrite
	// KindFileNotFound is returned by Device.Open for a missing path.
	KindFileNotFound
	// KindWouldBlock is returned when a file-lock acquisition would block
	// on another process.
	KindWouldBlock

	// KindInvParameter marks a generic invalid argument.
	KindInvParameter
	// KindInvKeySize marks a key whose size violates the database's
	// configured KeySize (for fixed-size key types).
	KindInvKeySize
	// KindInvPageSize marks a page size outside {1024, 2048*k}.
	KindInvPageSize
	// KindInvFileHeader marks a file whose header magic/layout doesn't parse.
	KindInvFileHeader
	// KindInvFileVersion marks a file header version this engine can't read.
	KindInvFileVersion
	// KindNotImplemented marks a codec/feature declared but not built (a
	// SIMD codec requested where only the scalar fallback exists, etc).
	KindNotImplemented

	// KindNotReady marks an operation attempted before Open/Create completed.
	KindNotReady
	// KindDbReadOnly marks a mutation attempted against a ReadOnly database.
	KindDbReadOnly
	// KindEnvNotEmpty marks an attempt to remove a non-empty environment.
	KindEnvNotEmpty
	// KindCursorIsNil marks an operation on a cursor invalidated by a
	// prior failed mutation.
	KindCursorIsNil

	// KindOutOfMemory marks an allocation failure in the Go runtime itself
	// (scratch buffers, cache growth) — distinct from KindLimitsReached,
	// which is a page-local capacity signal, not a host memory failure.
	KindOutOfMemory
)

func (k Kind) String() string {
	switch k {
	case KindIntegrityViolated:
		return "integrity_violated"
	case KindLimitsReached:
		return "limits_reached"
	case KindKeyNotFound:
		return "key_not_found"
	case KindBlobNotFound:
		return "blob_not_found"
	case KindDuplicateKey:
		return "duplicate_key"
	case KindIoError:
		return "io_error"
	case KindShortRead:
		return "short_read"
	case KindShortWrite:
		return "short_write"
	case KindFileNotFound:
		return "file_not_found"
	case KindWouldBlock:
		return "would_block"
	case KindInvParameter:
		return "inv_parameter"
	case KindInvKeySize:
		return "inv_key_size"
	case KindInvPageSize:
		return "inv_page_size"
	case KindInvFileHeader:
		return "inv_file_header"
	case KindInvFileVersion:
		return "inv_file_version"
	case KindNotImplemented:
		return "not_implemented"
	case KindNotReady:
		return "not_ready"
	case KindDbReadOnly:
		return "db_read_only"
	case KindEnvNotEmpty:
		return "env_not_empty"
	case KindCursorIsNil:
		return "cursor_is_nil"
	case KindOutOfMemory:
		return "out_of_memory"
	default:
		return "ok"
	}
}

// Error is the engine's single error type. Callers switch on Kind(), not
// on the message, so error classification stays stable across wording
// changes and remains errors.Is/errors.As-compatible.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, bltree.ErrKeyNotFound) work against a bare Kind
// sentinel created with NewError(kind, "").
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

// NewError builds an *Error with the given kind and message.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error that carries an underlying cause (typically a
// Device I/O failure).
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Sentinel errors for errors.Is comparisons against a bare kind.
var (
	ErrIntegrityViolated = NewError(KindIntegrityViolated, "")
	ErrLimitsReached     = NewError(KindLimitsReached, "")
	ErrKeyNotFound       = NewError(KindKeyNotFound, "")
	ErrBlobNotFound      = NewError(KindBlobNotFound, "")
	ErrDuplicateKey      = NewError(KindDuplicateKey, "")
	ErrNotImplemented    = NewError(KindNotImplemented, "")
	ErrCursorIsNil       = NewError(KindCursorIsNil, "")
	ErrDbReadOnly        = NewError(KindDbReadOnly, "")
)

// KindOf extracts the Kind of err if it is (or wraps) an *Error, otherwise
// KindIoError for an unclassified failure.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if err == nil {
		return KindOk
	}
	return KindIoError
}
