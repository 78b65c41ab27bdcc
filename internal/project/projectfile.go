// Package project implements components B, D and E of the Project &
// Document Lifecycle Engine: the ProjectFile record, the loader that
// builds a Project from a workspace root, and the Project itself with
// its incremental and full reassembly operations (spec.md §4.2, §4.4).
package project

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/smithy-tools/smithy-ls/internal/buildconfig"
	"github.com/smithy-tools/smithy-ls/internal/document"
	"github.com/smithy-tools/smithy-ls/internal/smithymodel"
)

// FileKind discriminates the two shapes a ProjectFile can take
// (spec.md §4.2's tagged union): a Smithy IDL/JSON model source, or a
// build configuration file.
type FileKind int

const (
	// IDLFile is a .smithy or .json model source that contributes shapes,
	// traits and metadata to the assembled model.
	IDLFile FileKind = iota
	// BuildFile is smithy-build.json or .smithy-project.json: it shapes
	// ProjectConfig but never itself contributes to the assembled model.
	BuildFile
)

// ProjectFile is one file tracked by a Project. Exactly one of the
// IDL-specific or build-specific fields is meaningful, selected by Kind.
// The defined-shape-id set is produced lazily and cached until the next
// edit invalidates it (spec.md §4.2: "a lazily produced parse tree").
type ProjectFile struct {
	Path string
	Kind FileKind

	// Doc is non-nil only while the file is open in the editor; a file
	// known only from disk has no live Document (spec.md §3's managedUris
	// distinction).
	Doc *document.Document

	// BuildKind names which build-file schema this file follows, set
	// only when Kind == BuildFile.
	BuildKind string

	mu            sync.RWMutex
	definedShapes map[smithymodel.ShapeID]bool
}

// SetDefinedShapes replaces the cached set of shapes this file defines.
// Called once per rebuild (spec.md §4.4's rebuildIndex component (i)); a
// nil set means the file has not been through a successful assembly yet.
func (f *ProjectFile) SetDefinedShapes(ids map[smithymodel.ShapeID]bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.definedShapes = ids
}

// DefinedShapes returns the cached set of shapes this file defines, or
// nil if no rebuild has populated it yet.
func (f *ProjectFile) DefinedShapes() map[smithymodel.ShapeID]bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.definedShapes
}

// NewIDLFile returns a ProjectFile for a Smithy model source at path.
func NewIDLFile(path string) *ProjectFile {
	return &ProjectFile{Path: path, Kind: IDLFile}
}

// NewBuildFile returns a ProjectFile for a build configuration file.
func NewBuildFile(path, buildKind string) *ProjectFile {
	return &ProjectFile{Path: path, Kind: BuildFile, BuildKind: buildKind}
}

// Invalidate drops the cached defined-shape-id set. Called whenever the
// file's text changes, whether through an editor edit or a reload from
// disk, until the next rebuild repopulates it.
func (f *ProjectFile) Invalidate() {
	f.SetDefinedShapes(nil)
}

// IsIDLJSON reports whether this file's source text is a Smithy JSON AST
// rather than the native IDL syntax, purely from its extension.
func (f *ProjectFile) IsIDLJSON() bool {
	return strings.HasSuffix(f.Path, ".json") && f.Kind == IDLFile
}

// Base returns the file's base name, for diagnostics and logging.
func (f *ProjectFile) Base() string {
	return filepath.Base(f.Path)
}
