package ot

// Apply folds e into content and returns the result. The position is
// clamped into [0, len(content)] and the delete length to the suffix
// remaining after it, so no input can make Apply panic. The delete half
// runs first, only when DeleteLen > 0; the insert half then lands at
// the same (clamped) position in the shortened content.
func Apply(content string, e Edit) string {
	if e.InsertText == "" && e.DeleteLen <= 0 {
		return content
	}

	runes := []rune(content)
	pos := e.Position
	if pos < 0 {
		pos = 0
	}
	if pos > len(runes) {
		pos = len(runes)
	}

	if e.DeleteLen > 0 {
		end := pos + e.DeleteLen
		if end > len(runes) {
			end = len(runes)
		}
		runes = append(runes[:pos:pos], runes[end:]...)
	}

	if e.InsertText != "" {
		ins := []rune(e.InsertText)
		out := make([]rune, 0, len(runes)+len(ins))
		out = append(out, runes[:pos]...)
		out = append(out, ins...)
		out = append(out, runes[pos:]...)
		runes = out
	}

	return string(runes)
}
