package ot

// Transform rewrites in against a sequence of already-committed edits
// it has not observed. missed must be ordered by the version they were
// applied at, ascending; the result carries the rewritten position,
// insert text and delete length and can be applied to the content that
// resulted from the missed edits.
//
// Each missed edit is normalized to a single applied SimpleOp: a delete
// when it removed text, otherwise an insert. The incoming edit's delete
// half is transformed first, then its insert half at the updated
// position.
func Transform(in Edit, missed []Edit) Edit {
	pos := in.Position
	insertText := in.InsertText
	deleteLen := in.DeleteLen

	for _, m := range missed {
		ap := appliedOp(m)

		if deleteLen > 0 {
			del := SimpleOp{Kind: Delete, Pos: pos, Length: deleteLen, UserID: in.UserID}
			if ap.Kind == Insert {
				del = transformDeleteInsert(del, ap)
			} else {
				del = transformDeleteDelete(del, ap)
			}
			pos = del.Pos
			deleteLen = del.Length
		}

		if insertText != "" {
			ins := SimpleOp{Kind: Insert, Pos: pos, Text: insertText, UserID: in.UserID}
			if ap.Kind == Insert {
				ins = transformInsertInsert(ins, ap)
			} else {
				ins = transformInsertDelete(ins, ap)
			}
			pos = ins.Pos
			insertText = ins.Text
		}
	}

	return Edit{
		Position:   pos,
		InsertText: insertText,
		DeleteLen:  deleteLen,
		UserID:     in.UserID,
	}
}

// appliedOp normalizes a committed edit to the single op it counts as
// on the applied side: its delete half when present, else its insert.
func appliedOp(e Edit) SimpleOp {
	if e.DeleteLen > 0 {
		return SimpleOp{
			Kind:   Delete,
			Pos:    e.Position,
			Length: e.DeleteLen,
			Text:   e.InsertText,
			UserID: e.UserID,
		}
	}
	return SimpleOp{
		Kind:   Insert,
		Pos:    e.Position,
		Text:   e.InsertText,
		Length: runeLen(e.InsertText),
		UserID: e.UserID,
	}
}

// transformInsertInsert rewrites an incoming insert against an applied
// insert. Equal positions tie-break on user id: the lexicographically
// smaller id stays to the left, so both sides order the two inserts
// identically.
func transformInsertInsert(in, ap SimpleOp) SimpleOp {
	if in.Pos < ap.Pos {
		return in
	}
	if in.Pos > ap.Pos {
		in.Pos += runeLen(ap.Text)
		return in
	}
	if in.UserID < ap.UserID {
		return in
	}
	in.Pos += runeLen(ap.Text)
	return in
}

// transformInsertDelete rewrites an incoming insert against an applied
// delete. An insert that fell inside the deleted range lands at the
// start of that range.
func transformInsertDelete(in, ap SimpleOp) SimpleOp {
	if in.Pos <= ap.Pos {
		return in
	}
	if in.Pos >= ap.Pos+ap.Length {
		in.Pos -= ap.Length
		return in
	}
	in.Pos = ap.Pos
	return in
}

// transformDeleteInsert rewrites an incoming delete against an applied
// insert. Text inserted inside the deleted range extends the delete so
// the range the user selected still disappears in full.
func transformDeleteInsert(in, ap SimpleOp) SimpleOp {
	insLen := runeLen(ap.Text)
	if in.Pos >= ap.Pos {
		in.Pos += insLen
		return in
	}
	if in.Pos+in.Length <= ap.Pos {
		return in
	}
	in.Length += insLen
	return in
}

// transformDeleteDelete rewrites an incoming delete against an applied
// delete, subtracting any overlap already removed (never below zero).
func transformDeleteDelete(in, ap SimpleOp) SimpleOp {
	if in.Pos+in.Length <= ap.Pos {
		return in
	}
	if in.Pos >= ap.Pos+ap.Length {
		in.Pos -= ap.Length
		return in
	}

	overlapStart := max(in.Pos, ap.Pos)
	overlapEnd := min(in.Pos+in.Length, ap.Pos+ap.Length)
	in.Length -= overlapEnd - overlapStart
	if in.Length < 0 {
		in.Length = 0
	}
	if in.Pos >= ap.Pos {
		in.Pos -= min(in.Pos-ap.Pos, ap.Length)
	}
	return in
}
