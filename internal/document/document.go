// Package document implements component A of the Project & Document
// Lifecycle Engine: a mutable text buffer addressable by both byte
// offset and (line, character) position, supporting range edits with an
// incrementally maintained line index (spec.md §4.1).
package document

import (
	"fmt"
	"strings"
	"sync"
)

// Position is a zero-based (line, character) location in a Document.
// Character is a rune offset within the line.
type Position struct {
	Line      int
	Character int
}

// Range is a half-open [Start, End) span within a Document.
type Range struct {
	Start Position
	End   Position
}

// Document is a mutable text buffer. All mutation happens through
// ApplyEdit; all other methods are read-only and safe for concurrent
// callers once an edit has completed (the DocumentLifecycleManager
// serializes edits with background reads per spec.md §5).
type Document struct {
	mu          sync.RWMutex
	uri         string
	text        []rune
	lineOffsets []int // rune offset of the first character of each line
}

// New creates a Document for uri with the given initial text.
func New(uri, text string) *Document {
	d := &Document{uri: uri}
	d.text = []rune(text)
	d.reindex()
	return d
}

// URI returns the document's identity.
func (d *Document) URI() string {
	return d.uri
}

// reindex recomputes the full line index. Used only for the initial
// load and for a null-range (whole-buffer) edit; incremental edits
// patch the existing index instead (spec.md §4.1: "no full rescans on
// single-character edits").
func (d *Document) reindex() {
	offsets := []int{0}
	for i, r := range d.text {
		if r == '\n' {
			offsets = append(offsets, i+1)
		}
	}
	d.lineOffsets = offsets
}

// ApplyEdit replaces the text in rng with newText. A nil rng replaces
// the entire buffer. The line index is updated incrementally: only the
// lines spanning the edited region are recomputed, and every line
// offset after the edit is shifted by the length delta.
func (d *Document) ApplyEdit(rng *Range, newText string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if rng == nil {
		d.text = []rune(newText)
		d.reindex()
		return nil
	}

	startIdx, err := d.indexOfPositionLocked(rng.Start)
	if err != nil {
		return fmt.Errorf("edit start: %w", err)
	}
	endIdx, err := d.indexOfPositionLocked(rng.End)
	if err != nil {
		return fmt.Errorf("edit end: %w", err)
	}
	if endIdx < startIdx {
		return fmt.Errorf("edit range end %v precedes start %v", rng.End, rng.Start)
	}

	inserted := []rune(newText)
	delta := len(inserted) - (endIdx - startIdx)

	newTextRunes := make([]rune, 0, len(d.text)+delta)
	newTextRunes = append(newTextRunes, d.text[:startIdx]...)
	newTextRunes = append(newTextRunes, inserted...)
	newTextRunes = append(newTextRunes, d.text[endIdx:]...)
	d.text = newTextRunes

	d.patchLineIndex(rng.Start.Line, startIdx, endIdx, inserted, delta)
	return nil
}

// patchLineIndex recomputes line offsets only for the span touched by
// the edit: it drops every recorded line-start in (startIdx, endIdx]
// (each follows a newline the edit removed), recomputes line starts
// introduced by the inserted text, and shifts every later line-start by
// delta.
func (d *Document) patchLineIndex(startLine, startIdx, endIdx int, inserted []rune, delta int) {
	keepBefore := d.lineOffsets[:startLine+1]

	var keepAfter []int
	for _, off := range d.lineOffsets[startLine+1:] {
		if off > endIdx {
			keepAfter = append(keepAfter, off+delta)
		}
	}

	var newLines []int
	base := startIdx
	for i, r := range inserted {
		if r == '\n' {
			newLines = append(newLines, base+i+1)
		}
	}

	merged := make([]int, 0, len(keepBefore)+len(newLines)+len(keepAfter))
	merged = append(merged, keepBefore...)
	merged = append(merged, newLines...)
	merged = append(merged, keepAfter...)
	d.lineOffsets = merged
}

// IndexOfPosition converts a (line, character) position to a rune offset.
func (d *Document) IndexOfPosition(pos Position) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.indexOfPositionLocked(pos)
}

func (d *Document) indexOfPositionLocked(pos Position) (int, error) {
	if pos.Line < 0 || pos.Line >= len(d.lineOffsets) {
		return 0, fmt.Errorf("line %d out of range [0,%d)", pos.Line, len(d.lineOffsets))
	}
	lineStart := d.lineOffsets[pos.Line]
	lineEnd := len(d.text)
	if pos.Line+1 < len(d.lineOffsets) {
		lineEnd = d.lineOffsets[pos.Line+1]
		// Exclude the trailing newline from the line's addressable span.
		if lineEnd > lineStart && d.text[lineEnd-1] == '\n' {
			lineEnd--
		}
	}
	idx := lineStart + pos.Character
	if idx < lineStart || idx > lineEnd {
		return 0, fmt.Errorf("character %d out of range on line %d", pos.Character, pos.Line)
	}
	return idx, nil
}

// PositionOfIndex converts a rune offset to a (line, character) position.
func (d *Document) PositionOfIndex(offset int) Position {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.positionOfIndexLocked(offset)
}

func (d *Document) positionOfIndexLocked(offset int) Position {
	// Binary search for the last line whose start is <= offset.
	lo, hi := 0, len(d.lineOffsets)-1
	line := 0
	for lo <= hi {
		mid := (lo + hi) / 2
		if d.lineOffsets[mid] <= offset {
			line = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	return Position{Line: line, Character: offset - d.lineOffsets[line]}
}

// LineEnd returns the position just before the line's terminating
// newline (or the buffer end, for the final line).
func (d *Document) LineEnd(line int) (Position, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if line < 0 || line >= len(d.lineOffsets) {
		return Position{}, fmt.Errorf("line %d out of range", line)
	}
	end := len(d.text)
	if line+1 < len(d.lineOffsets) {
		end = d.lineOffsets[line+1]
		if end > d.lineOffsets[line] && d.text[end-1] == '\n' {
			end--
		}
	}
	return d.positionOfIndexLocked(end), nil
}

// End returns the position just past the last character in the buffer.
func (d *Document) End() Position {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.positionOfIndexLocked(len(d.text))
}

// CopyText returns a snapshot of the document's full text.
func (d *Document) CopyText() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return string(d.text)
}

// LineCount returns the number of lines in the document.
func (d *Document) LineCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.lineOffsets)
}

// identifierChar reports whether r may appear in a shape-id or
// JSON-pointer token (spec.md §4.1: "alphanumerics, _, ., #, $").
func identifierChar(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') ||
		r == '_' || r == '.' || r == '#' || r == '$'
}

// DocumentId is a positional slice into a Document naming the shape-id
// or JSON-pointer token under the cursor (spec.md §3).
type DocumentId struct {
	Start Position
	End   Position
	Text  string
}

// CopyDocumentId returns the identifier token touching pos, or nil if
// pos is not adjacent to or within one.
func (d *Document) CopyDocumentId(pos Position) (*DocumentId, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	idx, err := d.indexOfPositionLocked(pos)
	if err != nil {
		return nil, err
	}

	start := idx
	for start > 0 && identifierChar(d.text[start-1]) {
		start--
	}
	end := idx
	for end < len(d.text) && identifierChar(d.text[end]) {
		end++
	}
	if start == end {
		return nil, nil
	}

	return &DocumentId{
		Start: d.positionOfIndexLocked(start),
		End:   d.positionOfIndexLocked(end),
		Text:  string(d.text[start:end]),
	}, nil
}

// TextInRange returns the text spanned by rng.
func (d *Document) TextInRange(rng Range) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	start, err := d.indexOfPositionLocked(rng.Start)
	if err != nil {
		return "", err
	}
	end, err := d.indexOfPositionLocked(rng.End)
	if err != nil {
		return "", err
	}
	if end < start {
		return "", fmt.Errorf("range end precedes start")
	}
	return string(d.text[start:end]), nil
}

// Lines returns the document split into individual lines, without
// trailing newlines, for callers (like the assembler) that want to scan
// line by line.
func (d *Document) Lines() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return strings.Split(string(d.text), "\n")
}
