package canvasmodel

import "errors"

// Sentinel errors for the taxonomy in spec section 7. Checked with
// errors.Is; wrapped with fmt.Errorf("...: %w", ...) at the call site
// the way the rest of this codebase wraps stdlib errors.
var (
	ErrDuplicatePath      = errors.New("canvasmodel: duplicate path")
	ErrAlreadyStarted     = errors.New("canvasmodel: watcher already started")
	ErrUploadFailed       = errors.New("canvasmodel: asset upload failed")
	ErrBijectionViolation = errors.New("canvasmodel: pathmap bijection violation")
	ErrNotFound           = errors.New("canvasmodel: not found")
)

// Code is a stable, machine-readable error classification, mirroring
// the teacher's mcp.Error.Code string but attached to a real error
// chain instead of a bare string so callers can still errors.Is/As it.
type Code string

const (
	CodeTransientIO     Code = "TRANSIENT_IO"
	CodePathConflict    Code = "PATH_CONFLICT"
	CodeSnapshotCorrupt Code = "SNAPSHOT_CORRUPT"
	CodeDecodeFailure   Code = "DECODE_FAILURE"
	CodeUploadFailed    Code = "UPLOAD_FAILED"
	CodeAnnotationFail  Code = "ANNOTATION_FAILED"
	CodeUnknownShape    Code = "UNKNOWN_SHAPE"
	CodeBijection       Code = "BIJECTION_VIOLATION"
)

// SyncError carries a stable Code alongside the wrapped cause, so log
// lines and any future transport-facing error reporting have a classifier
// independent of the wrapped error's message text.
type SyncError struct {
	Code  Code
	Cause error
}

func (e *SyncError) Error() string {
	if e.Cause == nil {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.Cause.Error()
}

func (e *SyncError) Unwrap() error { return e.Cause }

// NewSyncError wraps cause with a stable classification code.
func NewSyncError(code Code, cause error) *SyncError {
	return &SyncError{Code: code, Cause: cause}
}
