// Package watch implements component H, the FileWatchRegistrar, and an
// OS-level file watcher adapter built on fsnotify (spec.md §4.7).
package watch

import (
	"sort"
	"strings"

	"github.com/smithy-tools/smithy-ls/internal/project"
)

// WatchKind mirrors LSP's FileSystemWatcher.kind bitmask.
type WatchKind int

const (
	WatchCreate WatchKind = 1 << iota
	WatchChange
	WatchDelete
)

// GlobPattern mirrors LSP's (Relative)Pattern: an absolute or
// base-URI-relative glob.
type GlobPattern struct {
	BaseURI string
	Pattern string
}

// FileSystemWatcher mirrors one entry of LSP's DidChangeWatchedFilesRegistrationOptions.watchers.
type FileSystemWatcher struct {
	GlobPattern GlobPattern
	Kind        WatchKind
}

// Registration is an LSP client/registerCapability payload for
// workspace/didChangeWatchedFiles.
type Registration struct {
	ID       string
	Method   string
	Watchers []FileSystemWatcher
}

// Unregistration is an LSP client/unregisterCapability payload.
type Unregistration struct {
	ID     string
	Method string
}

const (
	// WatchSmithyBuildFiles is the registration id for build-file
	// create/delete events, one watcher per workspace root.
	WatchSmithyBuildFiles = "WatchSmithyBuildFiles"
	// WatchSmithyFiles is the registration id for source/import IDL file
	// create/delete events, one watcher covering every attached project.
	WatchSmithyFiles = "WatchSmithyFiles"

	methodDidChangeWatchedFiles = "workspace/didChangeWatchedFiles"
)

// buildFileGlob matches either build-file basename directly under any
// directory of a workspace root.
const buildFileGlob = "**/{smithy-build,.smithy-project}.json"

// Registrar computes the two watch-registration bundles the core keeps
// live: one per workspace root for build files, one spanning every
// attached project's resolved source/import paths (spec.md §4.7).
// Because LSP clients do not de-duplicate watchers, Compute's caller
// must always send the returned Unregistrations before the returned
// Registrations.
type Registrar struct{}

// NewRegistrar returns a Registrar. It is stateless; all state needed
// to compute a bundle is passed into Compute.
func NewRegistrar() *Registrar {
	return &Registrar{}
}

// Compute returns the unregister-then-register pair for the current
// workspace roots and attached projects. The two registration ids are
// fixed, so Unregistrations is always the same two entries regardless
// of prior state — the caller unregisters unconditionally, then
// registers fresh.
func (r *Registrar) Compute(roots []string, projects []*project.Project) ([]Unregistration, []Registration) {
	unregs := []Unregistration{
		{ID: WatchSmithyBuildFiles, Method: methodDidChangeWatchedFiles},
		{ID: WatchSmithyFiles, Method: methodDidChangeWatchedFiles},
	}

	sortedRoots := append([]string(nil), roots...)
	sort.Strings(sortedRoots)

	buildWatchers := make([]FileSystemWatcher, 0, len(sortedRoots))
	for _, root := range sortedRoots {
		buildWatchers = append(buildWatchers, FileSystemWatcher{
			GlobPattern: GlobPattern{BaseURI: project.URIFromPath(root), Pattern: buildFileGlob},
			Kind:        WatchCreate | WatchDelete,
		})
	}

	idlPathSet := make(map[string]bool)
	for _, p := range projects {
		for path := range p.IDLPaths() {
			idlPathSet[path] = true
		}
	}
	idlPaths := make([]string, 0, len(idlPathSet))
	for path := range idlPathSet {
		idlPaths = append(idlPaths, path)
	}
	sort.Strings(idlPaths)

	var idlWatchers []FileSystemWatcher
	if len(idlPaths) > 0 {
		idlWatchers = append(idlWatchers, FileSystemWatcher{
			GlobPattern: GlobPattern{Pattern: bracePattern(idlPaths)},
			Kind:        WatchCreate | WatchDelete,
		})
	}

	regs := []Registration{
		{ID: WatchSmithyBuildFiles, Method: methodDidChangeWatchedFiles, Watchers: buildWatchers},
		{ID: WatchSmithyFiles, Method: methodDidChangeWatchedFiles, Watchers: idlWatchers},
	}
	return unregs, regs
}

// bracePattern turns a sorted, deduplicated path list into a single
// brace-alternation glob matching exactly those paths. A one-element
// list collapses to the bare path.
func bracePattern(paths []string) string {
	if len(paths) == 1 {
		return paths[0]
	}
	return "{" + strings.Join(paths, ",") + "}"
}
