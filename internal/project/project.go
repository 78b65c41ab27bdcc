package project

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/smithy-tools/smithy-ls/internal/buildconfig"
	"github.com/smithy-tools/smithy-ls/internal/document"
	"github.com/smithy-tools/smithy-ls/internal/fileutil"
	"github.com/smithy-tools/smithy-ls/internal/maven"
	"github.com/smithy-tools/smithy-ls/internal/smithymodel"
)

// sortedKeys returns a file-path set in deterministic (lexical) order, so
// that array-valued trait/metadata merges over a co-dependent set match
// the same file-discovery order a full reassembly would use (spec.md §8:
// "merge in the same order as a full reassembly").
func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Type is the Project tagged-union discriminant (spec.md §3).
type Type int

const (
	// Empty is a recognised root with no build files at all.
	Empty Type = iota
	// Unresolved is a build file that was opened before its owning root
	// was recognised as a workspace folder.
	Unresolved
	// Normal is a project driven by build files under root.
	Normal
	// Detached is a synthetic, single-file project for a document that
	// belongs to no attached project.
	Detached
)

func (t Type) String() string {
	switch t {
	case Empty:
		return "EMPTY"
	case Unresolved:
		return "UNRESOLVED"
	case Normal:
		return "NORMAL"
	case Detached:
		return "DETACHED"
	default:
		return "UNKNOWN"
	}
}

// Project is the unit of Smithy model coherence (spec.md §3, component E).
// All fields below mu are guarded by it; modelResult and rebuildIndex are
// replaced wholesale by a single mutation point after each (re)assembly,
// per the single-writer concurrency model of spec.md §5.
type Project struct {
	Root      string
	Type      Type
	Config    *buildconfig.Config
	Assembler smithymodel.ModelAssembler

	mu             sync.RWMutex
	files          map[string]*ProjectFile
	modelResult    *smithymodel.ValidatedResult
	rebuildIndex   *RebuildIndex
	mavenArtifacts []maven.ResolvedArtifact
}

// MavenArtifacts returns the Maven dependencies resolved for this
// project's configuration, if a resolver was configured on the Loader.
func (p *Project) MavenArtifacts() []maven.ResolvedArtifact {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.mavenArtifacts
}

// NewEmpty returns a Project of type Empty: a recognised root with no
// build files (spec.md §4.4.1).
func NewEmpty(root string) *Project {
	return &Project{
		Root:         root,
		Type:         Empty,
		Config:       &buildconfig.Config{},
		files:        make(map[string]*ProjectFile),
		rebuildIndex: newRebuildIndex(),
	}
}

// NewDetached returns a synthetic single-file Project holding exactly
// one IDL file backed by doc (spec.md §3: "each detached project holds
// exactly one IDL file").
func NewDetached(path string, doc *document.Document, assembler smithymodel.ModelAssembler) *Project {
	pf := NewIDLFile(path)
	pf.Doc = doc
	p := &Project{
		Root:         filepath.Dir(path),
		Type:         Detached,
		Config:       &buildconfig.Config{},
		Assembler:    assembler,
		files:        map[string]*ProjectFile{path: pf},
		rebuildIndex: newRebuildIndex(),
	}
	p.Reassemble(context.Background())
	return p
}

// NewUnresolved returns a Project of type Unresolved: a build file
// opened before its workspace root was recognised (spec.md §3's
// "UNRESOLVED" variant). It holds no model; ServerState promotes it to
// NORMAL once the owning root is discovered.
func NewUnresolved(path string, doc *document.Document) *Project {
	kind := buildconfig.SmithyBuildFileName
	if filepath.Base(path) == buildconfig.SmithyProjectFileName {
		kind = buildconfig.SmithyProjectFileName
	}
	pf := NewBuildFile(path, kind)
	pf.Doc = doc
	return &Project{
		Root:         filepath.Dir(path),
		Type:         Unresolved,
		Config:       &buildconfig.Config{},
		files:        map[string]*ProjectFile{path: pf},
		rebuildIndex: newRebuildIndex(),
	}
}

// Path returns the single file path a Detached project holds. On a
// project tracking several files it returns an arbitrary one of them,
// and "" when it tracks none.
func (p *Project) Path() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for path := range p.files {
		return path
	}
	return ""
}

// Files returns a snapshot of the file-path set tracked by the project.
func (p *Project) Files() map[string]*ProjectFile {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]*ProjectFile, len(p.files))
	for k, v := range p.files {
		out[k] = v
	}
	return out
}

// File looks up the ProjectFile for an absolute path.
func (p *Project) File(path string) (*ProjectFile, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	f, ok := p.files[path]
	return f, ok
}

// HasPath reports whether path is tracked by this project, either as a
// build file or as a resolved source/import.
func (p *Project) HasPath(path string) bool {
	_, ok := p.File(path)
	return ok
}

// ModelResult returns the project's current assembled model snapshot.
// Safe to call concurrently with background reassembly: it always
// returns the last value handed back through the single mutation point
// (spec.md §5, "handlers read the Project's modelResult atomically and
// tolerate staleness").
func (p *Project) ModelResult() *smithymodel.ValidatedResult {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.modelResult
}

// SetDocument attaches or replaces the live Document for an already
// tracked IDL file, used by ServerState on didOpen when the path belongs
// to this project (spec.md §4.6).
func (p *Project) SetDocument(path string, doc *document.Document) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if f, ok := p.files[path]; ok {
		f.Doc = doc
	}
}

// Loader builds Projects from a root directory (component D). It is a
// thin wrapper around buildconfig.Load and the initial-assembly
// procedure of spec.md §4.4.1, parameterised by the assembler the core
// was configured with.
type Loader struct {
	Assembler smithymodel.ModelAssembler

	// NewMavenResolver, when set, is invoked once per project load whose
	// config declares Maven dependencies (spec.md §6(b)). The resolved
	// artifact list is advisory only: the core never needs the jars
	// themselves, only their presence for diagnostics and hover.
	NewMavenResolver func() maven.Resolver
}

// NewLoader returns a Loader that assembles models with assembler.
func NewLoader(assembler smithymodel.ModelAssembler) *Loader {
	return &Loader{Assembler: assembler}
}

// Load implements spec.md §4.4.1. managed holds the in-memory Documents
// of currently open files, keyed by absolute path; any declared source
// or import found there is adopted in place of a fresh disk read, so
// open-document edits survive a reload.
func (l *Loader) Load(root string, managed map[string]*document.Document) (*Project, []error) {
	cfg, found, errs := buildconfig.Load(root)
	if !found {
		return NewEmpty(root), errs
	}

	p := &Project{
		Root:      root,
		Type:      Normal,
		Config:    cfg,
		Assembler: l.Assembler,
		files:     make(map[string]*ProjectFile),
	}

	buildFiles := make(map[string]bool, len(cfg.BuildFiles))
	for _, bf := range cfg.BuildFiles {
		kind := buildconfig.SmithyBuildFileName
		if filepath.Base(bf) == buildconfig.SmithyProjectFileName {
			kind = buildconfig.SmithyProjectFileName
		}
		p.files[bf] = NewBuildFile(bf, kind)
		buildFiles[bf] = true
	}

	declared := make([]string, 0, len(cfg.Sources)+len(cfg.Imports))
	declared = append(declared, cfg.Sources...)
	declared = append(declared, cfg.Imports...)

	entries := make([]smithymodel.SourceEntry, 0, len(declared))
	for _, path := range declared {
		// A directory/glob expansion in buildconfig.Load may have swept up
		// the build file itself; it is already tracked as a BuildFile.
		if buildFiles[path] {
			continue
		}
		if doc, ok := managed[path]; ok {
			pf := NewIDLFile(path)
			pf.Doc = doc
			p.files[path] = pf
			entries = append(entries, smithymodel.SourceEntry{Path: path, Text: doc.CopyText()})
			continue
		}
		if !fileutil.IsFile(path) {
			// A missing declared source is an I/O error (spec.md §7):
			// logged and dropped, never failing the whole load.
			errs = append(errs, fmt.Errorf("declared source not found: %s", path))
			continue
		}
		data, err := fileutil.ReadFile(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("read %s: %w", path, err))
			continue
		}
		p.files[path] = NewIDLFile(path)
		entries = append(entries, smithymodel.SourceEntry{Path: path, Text: string(data)})
	}
	// Feed in the same lexical order Reassemble and UpdateWithoutValidating use.
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	result, err := l.Assembler.Assemble(context.Background(), nil, entries, true)
	if err != nil {
		errs = append(errs, err)
	}
	p.modelResult = result
	p.rebuildIndex = computeRebuildIndex(modelOrEmpty(result))
	p.populateDefinedShapesLocked()

	if l.NewMavenResolver != nil && len(cfg.Maven.Dependencies) > 0 {
		resolver := l.NewMavenResolver()
		for _, repo := range cfg.Maven.Repositories {
			resolver.AddRepository(repo)
		}
		for _, dep := range cfg.Maven.Dependencies {
			resolver.AddDependency(dep)
		}
		artifacts, err := resolver.Resolve(context.Background())
		p.mavenArtifacts = artifacts
		if err != nil {
			// A Maven resolution failure is a config error (spec.md §7):
			// collected, not fatal to the load.
			errs = append(errs, fmt.Errorf("maven resolve: %w", err))
		}
	}

	return p, errs
}

func modelOrEmpty(r *smithymodel.ValidatedResult) *smithymodel.Model {
	if r == nil || r.Model == nil {
		return smithymodel.NewModel()
	}
	return r.Model
}

// populateDefinedShapesLocked pushes the newly computed rebuildIndex's
// per-file defined-shape sets into each ProjectFile's cache (component
// B's "lazily produced" set, spec.md §4.2). Callers must hold p.mu or be
// constructing p before it is published.
func (p *Project) populateDefinedShapesLocked() {
	for path, f := range p.files {
		f.SetDefinedShapes(p.rebuildIndex.definesInFile[path])
	}
}

// Reassemble runs a full, validating reassembly of every file currently
// tracked by the project, using each file's live Document text when open
// or its on-disk text otherwise. Used for initial detached-project
// construction and for didSave (spec.md §4.6's "save" transition).
func (p *Project) Reassemble(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reassembleLocked(ctx, true)
}

func (p *Project) reassembleLocked(ctx context.Context, validate bool) error {
	entries, err := p.sourceEntriesLocked()
	if err != nil {
		return err
	}
	result, err := p.Assembler.Assemble(ctx, nil, entries, validate)
	if ctx.Err() != nil {
		// A canceled assembly covers only part of the files; the previous
		// model and rebuild index stay in place.
		return ctx.Err()
	}
	if err != nil && result == nil {
		return err
	}
	p.modelResult = result
	p.rebuildIndex = computeRebuildIndex(modelOrEmpty(result))
	p.populateDefinedShapesLocked()
	return err
}

func (p *Project) sourceEntriesLocked() ([]smithymodel.SourceEntry, error) {
	paths := make([]string, 0, len(p.files))
	for path := range p.files {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var entries []smithymodel.SourceEntry
	for _, path := range paths {
		f := p.files[path]
		if f.Kind != IDLFile {
			continue
		}
		if f.Doc != nil {
			entries = append(entries, smithymodel.SourceEntry{Path: path, Text: f.Doc.CopyText()})
			continue
		}
		if !fileutil.IsFile(path) {
			continue
		}
		data, err := fileutil.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		entries = append(entries, smithymodel.SourceEntry{Path: path, Text: string(data)})
	}
	return entries, nil
}

// UpdateWithoutValidating implements spec.md §4.4.2, the core's hardest
// algorithm: an in-place edit to one IDL file produces a new modelResult
// matching a full reassembly in every observable respect, without
// reassembling from scratch.
func (p *Project) UpdateWithoutValidating(ctx context.Context, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	f, ok := p.files[path]
	if !ok || f.Kind != IDLFile {
		return nil
	}

	d := p.rebuildIndex.codependentFiles(path)

	carryOver := modelOrEmpty(p.modelResult).WithoutFiles(d)

	entries := make([]smithymodel.SourceEntry, 0, len(d))
	for _, depPath := range sortedKeys(d) {
		depFile, ok := p.files[depPath]
		if !ok || depFile.Kind != IDLFile {
			continue
		}
		text, err := currentTextLocked(depFile)
		if err != nil {
			return err
		}
		entries = append(entries, smithymodel.SourceEntry{Path: depPath, Text: text})
	}

	result, err := p.Assembler.Assemble(ctx, carryOver, entries, false)
	if ctx.Err() != nil {
		// A canceled assembly covers only part of D; the previous model
		// and rebuild index stay in place.
		return ctx.Err()
	}
	if err != nil && result == nil {
		return err
	}

	p.modelResult = result
	p.rebuildIndex = computeRebuildIndex(modelOrEmpty(result))
	p.populateDefinedShapesLocked()
	return err
}

func currentTextLocked(f *ProjectFile) (string, error) {
	if f.Doc != nil {
		return f.Doc.CopyText(), nil
	}
	data, err := fileutil.ReadFile(f.Path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", f.Path, err)
	}
	return string(data), nil
}

// AddFile extends the project with a newly discovered IDL file (a watch
// Created event in scope, spec.md §4.4.3) and runs a full reassembly:
// a structural change is not an incremental update candidate because the
// rebuildIndex has no prior knowledge of the new file's edges.
func (p *Project) AddFile(ctx context.Context, path string, doc *document.Document) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.files[path]; ok {
		return nil
	}
	pf := NewIDLFile(path)
	pf.Doc = doc
	p.files[path] = pf
	return p.reassembleLocked(ctx, true)
}

// RemoveFile drops path from the project (a watch Deleted event,
// spec.md §4.4.3) and performs an incremental update over the
// co-dependent set the deleted file leaves behind, so that dangling
// trait contributions sourced from it are cleared without a full
// reassembly.
func (p *Project) RemoveFile(ctx context.Context, path string) error {
	p.mu.Lock()
	if _, ok := p.files[path]; !ok {
		p.mu.Unlock()
		return nil
	}
	d := p.rebuildIndex.codependentFiles(path)
	delete(p.files, path)

	carryOver := modelOrEmpty(p.modelResult).WithoutFiles(d)
	entries := make([]smithymodel.SourceEntry, 0, len(d))
	for _, depPath := range sortedKeys(d) {
		if depPath == path {
			continue
		}
		depFile, ok := p.files[depPath]
		if !ok || depFile.Kind != IDLFile {
			continue
		}
		text, err := currentTextLocked(depFile)
		if err != nil {
			p.mu.Unlock()
			return err
		}
		entries = append(entries, smithymodel.SourceEntry{Path: depPath, Text: text})
	}
	result, err := p.Assembler.Assemble(ctx, carryOver, entries, false)
	if err != nil && result == nil {
		p.mu.Unlock()
		return err
	}
	p.modelResult = result
	p.rebuildIndex = computeRebuildIndex(modelOrEmpty(result))
	p.populateDefinedShapesLocked()
	p.mu.Unlock()
	return err
}

// IDLPaths returns the set of absolute paths of every IDL file the
// project currently tracks, used to diff against a reloaded config
// (spec.md §4.6, "resolution of detached/attached consistency").
func (p *Project) IDLPaths() map[string]bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]bool)
	for path, f := range p.files {
		if f.Kind == IDLFile {
			out[path] = true
		}
	}
	return out
}

// HasBuildFiles reports whether the project tracks at least one build
// file, used by ServerState to enforce the global invariant that an
// attached project with none is removed (spec.md §3).
func (p *Project) HasBuildFiles() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, f := range p.files {
		if f.Kind == BuildFile {
			return true
		}
	}
	return false
}
