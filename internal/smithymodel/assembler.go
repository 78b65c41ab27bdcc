package smithymodel

import "context"

// SourceEntry is one file's text as fed to a ModelAssembler.
type SourceEntry struct {
	Path string
	Text string
}

// ModelAssembler is the external collaborator spec.md §6(a) describes:
// it accepts a stream of (path, text) entries and returns a
// ValidatedResult<Model>. The core depends on its determinism and on its
// preservation of SourceLocation on shapes and traits, but never
// implements parsing or validation itself.
//
// seed, when non-nil, is a carry-over model (spec.md §4.4.2 step 3) whose
// shapes and metadata are already known: apply statements among files may
// target shapes defined in seed without those files being re-fed. The
// returned model starts from a copy of seed's shapes/metadata plus what
// files contribute; seed itself is left unmodified. A full reassembly
// passes seed = nil.
//
// When validate is false, the assembler must run only its parse/shape
// construction phase (spec.md §4.4.2 step 5, "without validating" mode);
// when true, it additionally runs the full validation pass.
type ModelAssembler interface {
	Assemble(ctx context.Context, seed *Model, files []SourceEntry, validate bool) (*ValidatedResult, error)
}
