// Package smithymodel defines the value types the Project & Document
// Lifecycle Engine uses to reason about an assembled Smithy model, and
// the ModelAssembler interface the core programs against (spec.md §3, §6).
// The core never parses or validates Smithy itself; these types are the
// contract with whatever assembler is plugged in.
package smithymodel

import "fmt"

// ShapeID identifies a shape, optionally a member of one
// ("namespace#name" or "namespace#name$member").
type ShapeID string

// SourceLocation names the file and position a shape or trait statement
// originated from. The zero value denotes NONE: no originating file, as
// the assembler may produce for shapes it synthesizes (e.g. built-in
// traits it attaches without a corresponding IDL statement).
type SourceLocation struct {
	File   string
	Line   int
	Column int
}

// IsNone reports whether this is the NONE source location.
func (s SourceLocation) IsNone() bool {
	return s == SourceLocation{}
}

func (s SourceLocation) String() string {
	if s.IsNone() {
		return "<none>"
	}
	return fmt.Sprintf("%s:%d:%d", s.File, s.Line, s.Column)
}

// TraitContribution records one file's application of a trait to a
// shape. A trait attached with SourceLocation = NONE (no originating
// file) is recorded with File == "" and must never be dropped by a
// per-file incremental update (spec.md §4.4.2 step 3, §9).
type TraitContribution struct {
	File   string
	Value  any
	Source SourceLocation
}

// Trait is the accumulated state of one trait id applied to one shape.
// Most traits have exactly one contribution. Array-valued traits (e.g.
// @tags) may receive one contribution per file that applies them; their
// effective value is the concatenation of all contributions in the
// order the contributing files were fed to the assembler (spec.md §8,
// "array-valued traits... merge in the same order as a full reassembly").
type Trait struct {
	ID            ShapeID
	IsArray       bool
	Contributions []TraitContribution
}

// Value renders the effective value of this trait: the most recent
// scalar contribution, or the concatenation of all array contributions.
func (t *Trait) Value() any {
	if len(t.Contributions) == 0 {
		return nil
	}
	if !t.IsArray {
		return t.Contributions[len(t.Contributions)-1].Value
	}
	out := make([]any, 0, len(t.Contributions))
	for _, c := range t.Contributions {
		if arr, ok := c.Value.([]any); ok {
			out = append(out, arr...)
		} else {
			out = append(out, c.Value)
		}
	}
	return out
}

// WithoutFiles returns a copy of t with every contribution sourced from
// a file in drop removed. A nil return means the trait has no remaining
// contributions and should be deleted from its shape.
func (t *Trait) WithoutFiles(drop map[string]bool) *Trait {
	kept := make([]TraitContribution, 0, len(t.Contributions))
	for _, c := range t.Contributions {
		// A NONE-sourced contribution (File == "") is never dropped: it
		// has no file to attach to and must survive every rebuild.
		if c.File != "" && drop[c.File] {
			continue
		}
		kept = append(kept, c)
	}
	if len(kept) == 0 {
		return nil
	}
	clone := &Trait{ID: t.ID, IsArray: t.IsArray, Contributions: kept}
	return clone
}

// Shape is a single shape definition plus the traits currently applied
// to it, keyed by trait id.
type Shape struct {
	ID      ShapeID
	Type    string
	Source  SourceLocation
	Traits  map[ShapeID]*Trait
	Members []ShapeID
}

// CloneShallow returns a copy of the shape with its own Traits map and
// its own Trait objects, so that MergeTrait on the clone never mutates
// contributions visible through the original.
func (s *Shape) CloneShallow() *Shape {
	clone := *s
	clone.Traits = make(map[ShapeID]*Trait, len(s.Traits))
	for k, v := range s.Traits {
		contribs := append([]TraitContribution(nil), v.Contributions...)
		clone.Traits[k] = &Trait{ID: v.ID, IsArray: v.IsArray, Contributions: contribs}
	}
	clone.Members = append([]ShapeID(nil), s.Members...)
	return &clone
}

// MergeTrait adds or extends a trait contribution on the shape in
// place, appending to an existing array trait's contributions or
// replacing a scalar trait's single contribution.
func (s *Shape) MergeTrait(id ShapeID, contribution TraitContribution, isArray bool) {
	existing, ok := s.Traits[id]
	if !ok {
		s.Traits[id] = &Trait{ID: id, IsArray: isArray, Contributions: []TraitContribution{contribution}}
		return
	}
	if isArray {
		existing.Contributions = append(existing.Contributions, contribution)
		return
	}
	existing.Contributions = []TraitContribution{contribution}
}

// Metadata is one top-level metadata entry. Scalars carry exactly one
// contribution; array-valued keys may accumulate one contribution per
// contributing file, same merge semantics as an array Trait.
type Metadata struct {
	Key           string
	IsArray       bool
	Contributions []MetadataContribution
}

// MetadataContribution records which file contributed a given metadata
// value or array element.
type MetadataContribution struct {
	File  string
	Value any
}

// Value renders the effective value of this metadata entry.
func (m *Metadata) Value() any {
	if len(m.Contributions) == 0 {
		return nil
	}
	if !m.IsArray {
		return m.Contributions[len(m.Contributions)-1].Value
	}
	out := make([]any, 0, len(m.Contributions))
	for _, c := range m.Contributions {
		out = append(out, c.Value)
	}
	return out
}

// WithoutFiles mirrors Trait.WithoutFiles for metadata contributions.
func (m *Metadata) WithoutFiles(drop map[string]bool) *Metadata {
	kept := make([]MetadataContribution, 0, len(m.Contributions))
	for _, c := range m.Contributions {
		if drop[c.File] {
			continue
		}
		kept = append(kept, c)
	}
	if len(kept) == 0 {
		return nil
	}
	return &Metadata{Key: m.Key, IsArray: m.IsArray, Contributions: kept}
}

// Model is the assembled Smithy model: every shape and every metadata
// entry known to a Project.
type Model struct {
	Shapes   map[ShapeID]*Shape
	Metadata map[string]*Metadata
}

// NewModel returns an empty model.
func NewModel() *Model {
	return &Model{
		Shapes:   make(map[ShapeID]*Shape),
		Metadata: make(map[string]*Metadata),
	}
}

// Clone returns a deep-enough copy of m: every Shape and Metadata entry
// is its own object with its own Trait/contribution slices, so mutating
// the clone (as Assemble does when seeded with a carry-over model, spec.md
// §4.4.2 step 3) never mutates m itself.
func (m *Model) Clone() *Model {
	clone := NewModel()
	for id, shape := range m.Shapes {
		clone.Shapes[id] = shape.CloneShallow()
	}
	for key, md := range m.Metadata {
		contribs := append([]MetadataContribution(nil), md.Contributions...)
		clone.Metadata[key] = &Metadata{Key: md.Key, IsArray: md.IsArray, Contributions: contribs}
	}
	return clone
}

// WithoutFiles returns a carry-over model for an incremental update
// (spec.md §4.4.2 step 3): every shape defined in drop is removed
// entirely, every remaining shape's traits have their drop-sourced
// contributions stripped (NONE-sourced contributions survive), and
// every metadata entry is stripped the same way.
func (m *Model) WithoutFiles(drop map[string]bool) *Model {
	out := NewModel()
	for id, shape := range m.Shapes {
		if drop[shape.Source.File] {
			continue
		}
		clone := shape.CloneShallow()
		for traitID, trait := range clone.Traits {
			stripped := trait.WithoutFiles(drop)
			if stripped == nil {
				delete(clone.Traits, traitID)
			} else {
				clone.Traits[traitID] = stripped
			}
		}
		out.Shapes[id] = clone
	}
	for key, md := range m.Metadata {
		stripped := md.WithoutFiles(drop)
		if stripped != nil {
			out.Metadata[key] = stripped
		}
	}
	return out
}

// Severity classifies an Event the way Smithy validation events are
// classified, independent of how an LSP feature handler eventually
// renders it as a protocol Diagnostic.
type Severity int

const (
	SeverityNote Severity = iota
	SeverityWarning
	SeverityDanger
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityNote:
		return "NOTE"
	case SeverityWarning:
		return "WARNING"
	case SeverityDanger:
		return "DANGER"
	case SeverityError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseSeverity parses one of the closed set of severities named in
// spec.md §6 (diagnostics.minimumSeverity). Unrecognized input maps to
// SeverityWarning, the documented default.
func ParseSeverity(s string) Severity {
	switch s {
	case "NOTE":
		return SeverityNote
	case "WARNING":
		return SeverityWarning
	case "DANGER":
		return SeverityDanger
	case "ERROR":
		return SeverityError
	default:
		return SeverityWarning
	}
}

// Event is a parse/shape-construction/validation event, analogous to a
// Smithy ValidationEvent.
type Event struct {
	Severity Severity
	Message  string
	Location SourceLocation
}

// ValidatedResult is the tagged union spec.md §3 calls
// ValidatedResult<Model>: empty (Model == nil), ok (Model != nil, no
// error-severity Events), or broken (Model != nil, at least one
// error-severity Event).
type ValidatedResult struct {
	Model  *Model
	Events []Event
}

// Empty reports whether this result carries no model at all.
func (r *ValidatedResult) Empty() bool {
	return r == nil || r.Model == nil
}

// Broken reports whether this result carries a model with at least one
// error-severity event — "present result with errors" per spec.md §3.
func (r *ValidatedResult) Broken() bool {
	if r.Empty() {
		return false
	}
	for _, e := range r.Events {
		if e.Severity == SeverityError {
			return true
		}
	}
	return false
}
