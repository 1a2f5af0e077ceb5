package types

import (
	"errors"
	"fmt"
)

// Error kinds. Verification and assembly failures wrap exactly one of these
// sentinels, so callers can dispatch with errors.Is regardless of the
// message text.
var (
	ErrIo             = errors.New("io error")
	ErrFormat         = errors.New("format error")
	ErrHashMismatch   = errors.New("hash mismatch")
	ErrMerkleMismatch = errors.New("merkle root mismatch")
	ErrLinkMismatch   = errors.New("link mismatch")
	ErrProofInvalid   = errors.New("invalid proof")
	ErrOrphanLeaf     = errors.New("orphan leaf")
	ErrCycleDetected  = errors.New("cycle detected")
	ErrUnknownParent  = errors.New("unknown parent")
	ErrLabelsMissing  = errors.New("labels not calculated")
	ErrInvalidLeaf    = errors.New("invalid leaf")
)

// DagError tags a failure with its kind and, where applicable, the CID of
// the offending leaf.
type DagError struct {
	Kind error
	CID  string
	Err  error
}

func (e *DagError) Error() string {
	msg := e.Kind.Error()
	if e.CID != "" {
		msg = fmt.Sprintf("%s (leaf %s)", msg, e.CID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *DagError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// NewDagError builds a DagError for the given kind and leaf CID. The detail
// error may be nil.
func NewDagError(kind error, cid string, detail error) *DagError {
	return &DagError{Kind: kind, CID: cid, Err: detail}
}

// DagErrorf builds a DagError whose detail is a formatted message.
func DagErrorf(kind error, cid string, format string, args ...interface{}) *DagError {
	return &DagError{Kind: kind, CID: cid, Err: fmt.Errorf(format, args...)}
}

// ErrorCID extracts the offending CID from an error chain, if any.
func ErrorCID(err error) string {
	var de *DagError
	if errors.As(err, &de) {
		return de.CID
	}
	return ""
}
