package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_LineIndex(t *testing.T) {
	d := New("file:///a.smithy", "line0\nline1\nline2")
	assert.Equal(t, 3, d.LineCount())
	assert.Equal(t, "line0\nline1\nline2", d.CopyText())
}

func TestApplyEdit_NilRangeReplacesWhole(t *testing.T) {
	d := New("file:///a.smithy", "old text")
	require.NoError(t, d.ApplyEdit(nil, "new text"))
	assert.Equal(t, "new text", d.CopyText())
}

func TestApplyEdit_SingleCharacterInsert(t *testing.T) {
	d := New("file:///a.smithy", "ac")
	rng := Range{Start: Position{0, 1}, End: Position{0, 1}}
	require.NoError(t, d.ApplyEdit(&rng, "b"))
	assert.Equal(t, "abc", d.CopyText())
}

func TestApplyEdit_PreservesLineIndexAcrossEdits(t *testing.T) {
	d := New("file:///a.smithy", "foo\nbar\nbaz")

	// Insert a newline in the middle of "bar".
	rng := Range{Start: Position{1, 1}, End: Position{1, 1}}
	require.NoError(t, d.ApplyEdit(&rng, "\n"))
	assert.Equal(t, "foo\nb\nar\nbaz", d.CopyText())
	assert.Equal(t, 4, d.LineCount())

	end, err := d.LineEnd(3)
	require.NoError(t, err)
	assert.Equal(t, Position{Line: 3, Character: 3}, end)
}

func TestApplyEdit_RangeReplace(t *testing.T) {
	d := New("file:///a.smithy", "hello world")
	rng := Range{Start: Position{0, 6}, End: Position{0, 11}}
	require.NoError(t, d.ApplyEdit(&rng, "there"))
	assert.Equal(t, "hello there", d.CopyText())
}

func TestUndoRestoresOriginalText(t *testing.T) {
	d := New("file:///a.smithy", "hello world")
	rng := Range{Start: Position{0, 0}, End: Position{0, 5}}
	require.NoError(t, d.ApplyEdit(&rng, "HELLO"))
	assert.Equal(t, "HELLO world", d.CopyText())

	// Undo: apply the inverse edit.
	undoRng := Range{Start: Position{0, 0}, End: Position{0, 5}}
	require.NoError(t, d.ApplyEdit(&undoRng, "hello"))
	assert.Equal(t, "hello world", d.CopyText())
}

func TestIndexOfPosition_OutOfRange(t *testing.T) {
	d := New("file:///a.smithy", "short")
	_, err := d.IndexOfPosition(Position{Line: 5, Character: 0})
	assert.Error(t, err)
}

func TestCopyDocumentId_ShapeId(t *testing.T) {
	d := New("file:///a.smithy", "apply com.foo#Bar @length(min: 1)")
	id, err := d.CopyDocumentId(Position{Line: 0, Character: 10})
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, "com.foo#Bar", id.Text)
}

func TestCopyDocumentId_NoTokenAtWhitespace(t *testing.T) {
	d := New("file:///a.smithy", "foo  bar")
	id, err := d.CopyDocumentId(Position{Line: 0, Character: 4})
	require.NoError(t, err)
	assert.Nil(t, id)
}

func TestEnd(t *testing.T) {
	d := New("file:///a.smithy", "abc\ndef")
	assert.Equal(t, Position{Line: 1, Character: 3}, d.End())
}
