// Package ot implements the operational transformation rules for
// collaborative text editing. An edit is at most one delete followed by
// one insert at the same position. Transform rewrites an incoming edit
// against the operations it did not see so that applying it to the
// current content preserves the client's original intent; Apply folds
// an edit into content with clamping.
//
// All positions and lengths are measured in Unicode code points of the
// document content. The package is pure: no I/O, no shared state.
package ot

import "unicode/utf8"

// Kind discriminates the two primitive operation shapes.
type Kind int

const (
	Insert Kind = iota
	Delete
)

// String returns the kind name for logs and test output.
func (k Kind) String() string {
	if k == Delete {
		return "delete"
	}
	return "insert"
}

// SimpleOp is the normalized single-purpose form an Edit decomposes
// into while transforming: either an insert of Text at Pos or a delete
// of Length code points starting at Pos. It never leaves this package.
type SimpleOp struct {
	Kind   Kind
	Pos    int
	Text   string
	Length int
	UserID string
}

// Edit is one client edit: delete DeleteLen code points at Position,
// then insert InsertText at Position. Either half may be absent.
// UserID participates in the insert tie-break and must be stable for
// the lifetime of the document.
type Edit struct {
	Position   int
	InsertText string
	DeleteLen  int
	UserID     string
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
