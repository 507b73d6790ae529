package ot

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransformInsertAgainstInsert(t *testing.T) {
	tests := []struct {
		name    string
		in      Edit
		applied Edit
		wantPos int
	}{
		{
			name:    "incoming strictly before applied is unchanged",
			in:      Edit{Position: 2, InsertText: "x", UserID: "bbb"},
			applied: Edit{Position: 5, InsertText: "yy", UserID: "aaa"},
			wantPos: 2,
		},
		{
			name:    "incoming strictly after applied shifts right",
			in:      Edit{Position: 5, InsertText: "x", UserID: "bbb"},
			applied: Edit{Position: 2, InsertText: "yy", UserID: "aaa"},
			wantPos: 7,
		},
		{
			name:    "same position with smaller user id stays left",
			in:      Edit{Position: 3, InsertText: "x", UserID: "aaa"},
			applied: Edit{Position: 3, InsertText: "yy", UserID: "bbb"},
			wantPos: 3,
		},
		{
			name:    "same position with larger user id shifts right",
			in:      Edit{Position: 3, InsertText: "x", UserID: "bbb"},
			applied: Edit{Position: 3, InsertText: "yy", UserID: "aaa"},
			wantPos: 5,
		},
		{
			name:    "same position and same user id shifts right",
			in:      Edit{Position: 3, InsertText: "x", UserID: "aaa"},
			applied: Edit{Position: 3, InsertText: "yy", UserID: "aaa"},
			wantPos: 5,
		},
		{
			name:    "applied multibyte text shifts by code points",
			in:      Edit{Position: 4, InsertText: "x", UserID: "bbb"},
			applied: Edit{Position: 1, InsertText: "héé", UserID: "aaa"},
			wantPos: 7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Transform(tt.in, []Edit{tt.applied})
			assert.Equal(t, tt.wantPos, got.Position)
			assert.Equal(t, tt.in.InsertText, got.InsertText)
			assert.Equal(t, 0, got.DeleteLen)
		})
	}
}

func TestTransformInsertAgainstDelete(t *testing.T) {
	tests := []struct {
		name    string
		in      Edit
		applied Edit
		wantPos int
	}{
		{
			name:    "insert before deleted range is unchanged",
			in:      Edit{Position: 1, InsertText: "x"},
			applied: Edit{Position: 3, DeleteLen: 4},
			wantPos: 1,
		},
		{
			name:    "insert at delete start is unchanged",
			in:      Edit{Position: 3, InsertText: "x"},
			applied: Edit{Position: 3, DeleteLen: 4},
			wantPos: 3,
		},
		{
			name:    "insert at delete end shifts left by delete length",
			in:      Edit{Position: 7, InsertText: "x"},
			applied: Edit{Position: 3, DeleteLen: 4},
			wantPos: 3,
		},
		{
			name:    "insert after deleted range shifts left",
			in:      Edit{Position: 9, InsertText: "x"},
			applied: Edit{Position: 3, DeleteLen: 4},
			wantPos: 5,
		},
		{
			name:    "insert inside deleted range clamps to its start",
			in:      Edit{Position: 5, InsertText: "x"},
			applied: Edit{Position: 3, DeleteLen: 4},
			wantPos: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Transform(tt.in, []Edit{tt.applied})
			assert.Equal(t, tt.wantPos, got.Position)
		})
	}
}

func TestTransformDeleteAgainstInsert(t *testing.T) {
	tests := []struct {
		name    string
		in      Edit
		applied Edit
		wantPos int
		wantLen int
	}{
		{
			name:    "delete at insert position shifts right",
			in:      Edit{Position: 3, DeleteLen: 2},
			applied: Edit{Position: 3, InsertText: "yy"},
			wantPos: 5,
			wantLen: 2,
		},
		{
			name:    "delete after insert shifts right",
			in:      Edit{Position: 5, DeleteLen: 2},
			applied: Edit{Position: 3, InsertText: "yy"},
			wantPos: 7,
			wantLen: 2,
		},
		{
			name:    "delete ending at insert position is unchanged",
			in:      Edit{Position: 1, DeleteLen: 2},
			applied: Edit{Position: 3, InsertText: "yy"},
			wantPos: 1,
			wantLen: 2,
		},
		{
			name:    "insert inside delete range extends the delete",
			in:      Edit{Position: 1, DeleteLen: 4},
			applied: Edit{Position: 3, InsertText: "yy"},
			wantPos: 1,
			wantLen: 6,
		},
		{
			name:    "multibyte insert extends by code points",
			in:      Edit{Position: 1, DeleteLen: 4},
			applied: Edit{Position: 3, InsertText: "ééé"},
			wantPos: 1,
			wantLen: 7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Transform(tt.in, []Edit{tt.applied})
			assert.Equal(t, tt.wantPos, got.Position)
			assert.Equal(t, tt.wantLen, got.DeleteLen)
		})
	}
}

func TestTransformDeleteAgainstDelete(t *testing.T) {
	tests := []struct {
		name    string
		in      Edit
		applied Edit
		wantPos int
		wantLen int
	}{
		{
			name:    "disjoint before applied is unchanged",
			in:      Edit{Position: 0, DeleteLen: 2},
			applied: Edit{Position: 4, DeleteLen: 3},
			wantPos: 0,
			wantLen: 2,
		},
		{
			name:    "disjoint after applied shifts left",
			in:      Edit{Position: 8, DeleteLen: 2},
			applied: Edit{Position: 2, DeleteLen: 3},
			wantPos: 5,
			wantLen: 2,
		},
		{
			name:    "overlap on the right trims and shifts",
			in:      Edit{Position: 4, DeleteLen: 4},
			applied: Edit{Position: 2, DeleteLen: 4},
			wantPos: 2,
			wantLen: 2,
		},
		{
			name:    "overlap on the left trims only",
			in:      Edit{Position: 2, DeleteLen: 4},
			applied: Edit{Position: 4, DeleteLen: 4},
			wantPos: 2,
			wantLen: 2,
		},
		{
			name:    "incoming contained in applied collapses to zero",
			in:      Edit{Position: 3, DeleteLen: 2},
			applied: Edit{Position: 2, DeleteLen: 5},
			wantPos: 2,
			wantLen: 0,
		},
		{
			name:    "applied contained in incoming subtracts its length",
			in:      Edit{Position: 2, DeleteLen: 6},
			applied: Edit{Position: 3, DeleteLen: 2},
			wantPos: 2,
			wantLen: 4,
		},
		{
			name:    "identical ranges collapse to zero at applied start",
			in:      Edit{Position: 3, DeleteLen: 3},
			applied: Edit{Position: 3, DeleteLen: 3},
			wantPos: 3,
			wantLen: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Transform(tt.in, []Edit{tt.applied})
			assert.Equal(t, tt.wantPos, got.Position)
			assert.Equal(t, tt.wantLen, got.DeleteLen)
		})
	}
}

func TestTransformCompositeEdit(t *testing.T) {
	// The incoming edit replaces two characters: delete 2 at 4, insert
	// "XY" at 4. A missed insert of "abc" at 1 shifts both halves.
	in := Edit{Position: 4, InsertText: "XY", DeleteLen: 2, UserID: "bbb"}
	missed := []Edit{{Position: 1, InsertText: "abc", UserID: "aaa"}}

	got := Transform(in, missed)
	assert.Equal(t, 7, got.Position)
	assert.Equal(t, "XY", got.InsertText)
	assert.Equal(t, 2, got.DeleteLen)
}

func TestTransformFoldsMissedInOrder(t *testing.T) {
	// Base "abcdef". Missed, in applied order: insert "12" at 0
	// ("12abcdef"), then delete 3 at 2 ("12def"). Incoming insert at 4
	// (between c and d of the base) must land between "12" and "def".
	in := Edit{Position: 4, InsertText: "X", UserID: "ccc"}
	missed := []Edit{
		{Position: 0, InsertText: "12", UserID: "aaa"},
		{Position: 2, DeleteLen: 3, UserID: "bbb"},
	}

	got := Transform(in, missed)
	assert.Equal(t, 2, got.Position)
	assert.Equal(t, "12Xdef", Apply(Apply(Apply("abcdef", missed[0]), missed[1]), got))
}

func TestTransformAgainstNoMissedOpsIsIdentity(t *testing.T) {
	in := Edit{Position: 3, InsertText: "x", DeleteLen: 1, UserID: "aaa"}
	got := Transform(in, nil)
	assert.Equal(t, in, got)
}

func TestConcurrentInsertsAtSamePositionConverge(t *testing.T) {
	// Two clients insert "Hi" at position 0 of an empty document. The
	// first commit applies as-is; the second is transformed against it
	// and must shift right because "bbb" > "aaa".
	first := Edit{Position: 0, InsertText: "Hi", UserID: "aaa"}
	second := Edit{Position: 0, InsertText: "Hi", UserID: "bbb"}

	content := Apply("", first)
	require.Equal(t, "Hi", content)

	transformed := Transform(second, []Edit{first})
	assert.Equal(t, 2, transformed.Position)
	assert.Equal(t, "HiHi", Apply(content, transformed))
}

func TestInsertIntoDeletedRangeClampsToRangeStart(t *testing.T) {
	// "abcdef": first commit deletes [1,4) leaving "aef"; a concurrent
	// insert of "X" at 3 was inside the deleted range and clamps to 1.
	applied := Edit{Position: 1, DeleteLen: 3, UserID: "aaa"}
	in := Edit{Position: 3, InsertText: "X", UserID: "bbb"}

	content := Apply("abcdef", applied)
	require.Equal(t, "aef", content)

	transformed := Transform(in, []Edit{applied})
	assert.Equal(t, 1, transformed.Position)
	assert.Equal(t, "aXef", Apply(content, transformed))
}

// TestPairwiseConvergence checks that for two concurrent single-purpose
// edits a and b, applying a then Transform(b, [a]) produces the same
// content as applying b then Transform(a, [b]). An insert strictly
// inside a concurrent delete's range is resolved by commit order rather
// than pairwise symmetry and is excluded here; the editor-level
// convergence tests cover it.
func TestPairwiseConvergence(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	alphabet := []rune("abcdefé漢字x ")

	randContent := func(n int) string {
		out := make([]rune, n)
		for i := range out {
			out[i] = alphabet[r.Intn(len(alphabet))]
		}
		return string(out)
	}

	randEdit := func(contentLen int, userID string) Edit {
		pos := r.Intn(contentLen + 1)
		if r.Intn(2) == 0 {
			return Edit{Position: pos, InsertText: randContent(1 + r.Intn(4)), UserID: userID}
		}
		return Edit{Position: pos, DeleteLen: 1 + r.Intn(4), UserID: userID}
	}

	insertStrictlyInsideDelete := func(ins, del Edit) bool {
		if ins.InsertText == "" || del.DeleteLen == 0 {
			return false
		}
		return ins.Position > del.Position && ins.Position < del.Position+del.DeleteLen
	}

	for i := 0; i < 2000; i++ {
		content := randContent(1 + r.Intn(12))
		n := runeLen(content)
		a := randEdit(n, "usera")
		b := randEdit(n, "userb")

		if insertStrictlyInsideDelete(a, b) || insertStrictlyInsideDelete(b, a) {
			continue
		}

		aFirst := Apply(Apply(content, a), Transform(b, []Edit{a}))
		bFirst := Apply(Apply(content, b), Transform(a, []Edit{b}))

		require.Equal(t, aFirst, bFirst,
			fmt.Sprintf("diverged on content %q with a=%+v b=%+v", content, a, b))
	}
}
