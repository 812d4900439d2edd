package bltree

import "github.com/latticedb/bltree/errkit"

// Error, Kind and the sentinel Err* values are aliased from errkit so
// callers of this package can write bltree.ErrKeyNotFound /
// errors.Is(err, bltree.ErrKeyNotFound) without importing errkit
// themselves, while every internal package below the root constructs
// the same *errkit.Error values.
type (
	Kind  = errkit.Kind
	Error = errkit.Error
)

const (
	KindOk                 = errkit.KindOk
	KindIntegrityViolated  = errkit.KindIntegrityViolated
	KindLimitsReached      = errkit.KindLimitsReached
	KindKeyNotFound        = errkit.KindKeyNotFound
	KindBlobNotFound       = errkit.KindBlobNotFound
	KindDuplicateKey       = errkit.KindDuplicateKey
	KindIoError            = errkit.KindIoError
	KindShortRead          = errkit.KindShortRead
	KindShortWrite         = errkit.KindShortWrite
	KindFileNotFound       = errkit.KindFileNotFound
	KindWouldBlock         = errkit.KindWouldBlock
	KindInvParameter       = errkit.KindInvParameter
	KindInvKeySize         = errkit.KindInvKeySize
	KindInvPageSize        = errkit.KindInvPageSize
	KindInvFileHeader      = errkit.KindInvFileHeader
	KindInvFileVersion     = errkit.KindInvFileVersion
	KindNotImplemented     = errkit.KindNotImplemented
	KindNotReady           = errkit.KindNotReady
	KindDbReadOnly         = errkit.KindDbReadOnly
	KindEnvNotEmpty        = errkit.KindEnvNotEmpty
	KindCursorIsNil        = errkit.KindCursorIsNil
	KindOutOfMemory        = errkit.KindOutOfMemory
)

var (
	NewError = errkit.NewError
	Wrap     = errkit.Wrap
	KindOf   = errkit.KindOf

	ErrIntegrityViolated = errkit.ErrIntegrityViolated
	ErrLimitsReached     = errkit.ErrLimitsReached
	ErrKeyNotFound       = errkit.ErrKeyNotFound
	ErrBlobNotFound      = errkit.ErrBlobNotFound
	ErrDuplicateKey      = errkit.ErrDuplicateKey
	ErrNotImplemented    = errkit.ErrNotImplemented
	ErrCursorIsNil       = errkit.ErrCursorIsNil
	ErrDbReadOnly        = errkit.ErrDbReadOnly
)
