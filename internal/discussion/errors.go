package discussion

import (
	"errors"
	"fmt"
)

// ErrMalformedInput is matched by every MalformedInputError.
var ErrMalformedInput = errors.New("malformed discussion input")

// MalformedInputError reports structurally invalid input. A run that hits it
// returns no comments at all.
type MalformedInputError struct {
	NodeID int64
	Reason string
}

func (e *MalformedInputError) Error() string {
	if e.NodeID == 0 {
		return fmt.Sprintf("%s: %s", ErrMalformedInput, e.Reason)
	}
	return fmt.Sprintf("%s: node %d: %s", ErrMalformedInput, e.NodeID, e.Reason)
}

func (e *MalformedInputError) Unwrap() error { return ErrMalformedInput }

func malformed(nodeID int64, format string, args ...any) error {
	return &MalformedInputError{NodeID: nodeID, Reason: fmt.Sprintf(format, args...)}
}

// DanglingParentError is a soft diagnostic: the comment survived both sources
// but its parent chain does not reach the root through surviving comments.
// MissingID is the first ancestor that is absent from the output; it equals
// ParentID when the direct parent is the missing one.
type DanglingParentError struct {
	CommentID int64 `json:"comment_id"`
	ParentID  int64 `json:"parent_id"`
	MissingID int64 `json:"missing_id"`
}

func (e *DanglingParentError) Error() string {
	if e.MissingID == e.ParentID {
		return fmt.Sprintf("comment %d: parent %d is not a surviving comment", e.CommentID, e.ParentID)
	}
	return fmt.Sprintf("comment %d: ancestor %d (via parent %d) is not a surviving comment",
		e.CommentID, e.MissingID, e.ParentID)
}
