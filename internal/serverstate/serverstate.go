// Package serverstate implements component G: the top-level aggregate
// binding workspace roots, attached/detached projects, managed
// documents, and the background task registry, plus the full lifecycle
// transition table (spec.md §4.6).
package serverstate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/smithy-tools/smithy-ls/internal/buildconfig"
	"github.com/smithy-tools/smithy-ls/internal/document"
	"github.com/smithy-tools/smithy-ls/internal/fileutil"
	"github.com/smithy-tools/smithy-ls/internal/lifecycle"
	"github.com/smithy-tools/smithy-ls/internal/project"
	"github.com/smithy-tools/smithy-ls/internal/watch"
)

// ServerState is the single-writer aggregate every LSP handler mutates
// on the request-dispatch path (spec.md §5: "there is no locking
// because there is only one writer"). Its own mutations are therefore
// unguarded; Project and Document each carry their own locking for the
// background tasks Lifecycle schedules against them.
type ServerState struct {
	roots     map[string]bool
	attached  map[string]*project.Project // root -> project
	detached  map[string]*project.Project // uri -> project
	managed   map[string]*document.Document
	Lifecycle *lifecycle.Manager
	loader    *project.Loader
	registrar *watch.Registrar

	// OnlyReloadOnSave mirrors spec.md §6's onlyReloadOnSave
	// initialization option: when true, Change applies the edit to the
	// Document but does not schedule an incremental update, leaving the
	// project's model stale until the next Save. Defaults to false.
	OnlyReloadOnSave bool
}

// New builds an empty ServerState backed by loader for (re)loading
// projects and lc for scheduling background reassembly.
func New(loader *project.Loader, lc *lifecycle.Manager) *ServerState {
	return &ServerState{
		roots:     make(map[string]bool),
		attached:  make(map[string]*project.Project),
		detached:  make(map[string]*project.Project),
		managed:   make(map[string]*document.Document),
		Lifecycle: lc,
		loader:    loader,
		registrar: watch.NewRegistrar(),
	}
}

// WorkspaceRoots returns the current set of opened workspace roots.
func (s *ServerState) WorkspaceRoots() []string {
	out := make([]string, 0, len(s.roots))
	for r := range s.roots {
		out = append(out, r)
	}
	return out
}

// AttachedProjects returns every attached project (any type).
func (s *ServerState) AttachedProjects() []*project.Project {
	out := make([]*project.Project, 0, len(s.attached))
	for _, p := range s.attached {
		out = append(out, p)
	}
	return out
}

// ProjectFor returns the project currently serving uri, whether
// attached or detached.
func (s *ServerState) ProjectFor(uri string) *project.Project {
	path := project.PathFromURI(uri)
	if p := s.attachedOwning(path); p != nil {
		return p
	}
	return s.detached[uri]
}

// ComputeWatchRegistrations delegates to the FileWatchRegistrar over
// the current workspace roots and attached projects (spec.md §4.7).
func (s *ServerState) ComputeWatchRegistrations() ([]watch.Unregistration, []watch.Registration) {
	return s.registrar.Compute(s.WorkspaceRoots(), s.AttachedProjects())
}

func (s *ServerState) attachedOwning(path string) *project.Project {
	for _, p := range s.attached {
		if p.HasPath(path) {
			return p
		}
	}
	return nil
}

func (s *ServerState) ownerProject(uri, path string) *project.Project {
	if p := s.attachedOwning(path); p != nil {
		return p
	}
	return s.detached[uri]
}

func (s *ServerState) managedByPath() map[string]*document.Document {
	out := make(map[string]*document.Document, len(s.managed))
	for uri, doc := range s.managed {
		out[project.PathFromURI(uri)] = doc
	}
	return out
}

// AddWorkspaceRoot registers root and discovers every project beneath
// it: directories containing a build file, found by a recursive,
// cycle-safe walk (spec.md §4.6's didChangeWorkspaceFolders row).
func (s *ServerState) AddWorkspaceRoot(root string) []error {
	s.roots[root] = true
	return s.discoverProjectsUnder(root)
}

func (s *ServerState) discoverProjectsUnder(root string) []error {
	var errs []error
	visited := make(map[string]bool)

	var walk func(dir string)
	walk = func(dir string) {
		real, err := filepath.EvalSymlinks(dir)
		if err != nil {
			real = dir
		}
		if visited[real] {
			return
		}
		visited[real] = true

		if fileutil.IsFile(filepath.Join(dir, buildconfig.SmithyBuildFileName)) ||
			fileutil.IsFile(filepath.Join(dir, buildconfig.SmithyProjectFileName)) {
			errs = append(errs, s.loadAttached(dir)...)
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			errs = append(errs, err)
			return
		}
		for _, e := range entries {
			if e.IsDir() {
				walk(filepath.Join(dir, e.Name()))
			}
		}
	}
	walk(root)
	return errs
}

// loadAttached (re)loads the project rooted at root and reconciles
// detached projects against its new IDL path set. If root previously
// held an UNRESOLVED project for a build file opened ahead of its
// workspace root's discovery, this promotes it to NORMAL.
func (s *ServerState) loadAttached(root string) []error {
	prev := s.attached[root]
	p, errs := s.loader.Load(root, s.managedByPath())
	if p.Type == project.Empty {
		delete(s.attached, root)
		return errs
	}
	if reloadFailed(prev, p, errs) {
		return append(errs, fmt.Errorf("reload of %s failed, keeping previous project", root))
	}

	// Reattach open build-file editor state; Loader.Load only adopts
	// managed documents for declared source/import paths.
	for path, doc := range s.managedByPath() {
		if _, ok := p.File(path); ok {
			p.SetDocument(path, doc)
		}
	}

	s.attached[root] = p
	s.reconcileDetached(prev, p)
	return errs
}

// reloadFailed reports whether a reload collected errors serious enough
// to discard it rather than install it (spec.md §4.4.3/§7/§9(a)).
// buildconfig.Load only reports a project as EMPTY when no build file
// exists on disk at all; an unparseable-but-present smithy-build.json,
// or a Maven resolver error, still yields a Normal project, just one
// that failed to pick up the sources the previous reload found. Type
// alone can't tell the two apart, so this instead checks whether the
// previous project had IDL sources the new one lost while erroring.
func reloadFailed(prev, next *project.Project, errs []error) bool {
	if prev == nil || len(errs) == 0 {
		return false
	}
	return len(prev.IDLPaths()) > 0 && len(next.IDLPaths()) == 0
}

// reconcileDetached implements spec.md §4.6's "resolution of
// detached/attached consistency after a project reload": paths newly
// covered by next drop any detached project holding them; paths
// covered by prev but dropped by next get a fresh detached project
// seeded with their in-memory text, if still managed.
func (s *ServerState) reconcileDetached(prev, next *project.Project) {
	var prevPaths map[string]bool
	if prev != nil {
		prevPaths = prev.IDLPaths()
	}
	nextPaths := next.IDLPaths()

	for path := range nextPaths {
		delete(s.detached, project.URIFromPath(path))
	}
	for path := range prevPaths {
		if nextPaths[path] {
			continue
		}
		uri := project.URIFromPath(path)
		doc, ok := s.managed[uri]
		if !ok {
			continue
		}
		s.detached[uri] = project.NewDetached(path, doc, s.loader.Assembler)
	}
}

// dropAttachedAndDetachManaged removes p entirely and, for any of its
// IDL files still open, creates a detached project seeded with the
// open text so the edits are not lost.
func (s *ServerState) dropAttachedAndDetachManaged(p *project.Project) {
	delete(s.attached, p.Root)
	for path := range p.IDLPaths() {
		uri := project.URIFromPath(path)
		if doc, ok := s.managed[uri]; ok {
			s.detached[uri] = project.NewDetached(path, doc, s.loader.Assembler)
		}
	}
}

// Open implements spec.md §4.6's open(uri, text) transition. A build
// file opened before its workspace root has been discovered becomes an
// UNRESOLVED project rather than a (meaningless) single-file detached
// one; the subsequent watch Created event promotes it to NORMAL via
// loadAttached, which preserves this Document (spec.md §8's boundary
// behaviour).
func (s *ServerState) Open(uri, text string) {
	path := project.PathFromURI(uri)
	doc := document.New(uri, text)
	s.managed[uri] = doc

	if p := s.attachedOwning(path); p != nil {
		p.SetDocument(path, doc)
		delete(s.detached, uri)
		return
	}

	if isBuildFile(path) {
		root := filepath.Dir(path)
		if _, ok := s.attached[root]; !ok {
			s.attached[root] = project.NewUnresolved(path, doc)
		}
		return
	}

	s.detached[uri] = project.NewDetached(path, doc, s.loader.Assembler)
}

// Close implements spec.md §4.6's close(uri) transition.
func (s *ServerState) Close(uri string) {
	delete(s.managed, uri)
	if _, ok := s.detached[uri]; ok {
		s.Lifecycle.CancelTask(uri)
		delete(s.detached, uri)
	}
}

// Change applies an edit to uri's Document and, unless OnlyReloadOnSave
// is set, schedules an incremental update task against its owning
// project (spec.md §4.6's change row: "schedule an incremental update
// task (4.4.2) unless configured to reload only on save"). A concurrent
// read of the project's model always observes the last-validated model
// regardless of this flag; OnlyReloadOnSave only gates whether a new
// background task is scheduled, never what ModelResult returns.
func (s *ServerState) Change(uri string, rng *document.Range, newText string) error {
	doc, ok := s.managed[uri]
	if !ok {
		return nil
	}
	if err := doc.ApplyEdit(rng, newText); err != nil {
		return err
	}

	path := project.PathFromURI(uri)
	p := s.ownerProject(uri, path)
	if p != nil {
		if f, ok := p.File(path); ok {
			f.Invalidate()
		}
	}
	if s.OnlyReloadOnSave || p == nil {
		return nil
	}
	s.Lifecycle.Schedule(uri, func(ctx context.Context) {
		_ = p.UpdateWithoutValidating(ctx, path)
	})
	return nil
}

// Save schedules a full, validating reassembly of uri's owning project
// (spec.md §4.6's save row).
func (s *ServerState) Save(uri string) {
	path := project.PathFromURI(uri)
	p := s.ownerProject(uri, path)
	if p == nil {
		return
	}
	s.Lifecycle.Schedule(uri, func(ctx context.Context) {
		_ = p.Reassemble(ctx)
	})
}

// WatchedCreated implements spec.md §4.6's watched Created(uri) row. An
// owner of type UNRESOLVED does not block promotion: it exists only
// because the build file was opened ahead of this very event.
func (s *ServerState) WatchedCreated(path string) []error {
	if owner := s.attachedOwning(path); owner != nil && owner.Type != project.Unresolved {
		return nil
	}
	if isBuildFile(path) {
		return s.loadAttached(filepath.Dir(path))
	}
	root := s.nearestAttachedRoot(path)
	if root == "" {
		return nil
	}
	return s.loadAttached(root)
}

// WatchedDeleted implements spec.md §4.6's watched Deleted(uri) row,
// including the global invariant that an attached project left with no
// build files is removed.
func (s *ServerState) WatchedDeleted(ctx context.Context, path string) error {
	p := s.attachedOwning(path)
	if p == nil {
		return nil
	}
	if err := p.RemoveFile(ctx, path); err != nil {
		return err
	}

	if doc, ok := s.managed[project.URIFromPath(path)]; ok {
		s.detached[project.URIFromPath(path)] = project.NewDetached(path, doc, s.loader.Assembler)
	}

	if !p.HasBuildFiles() {
		s.dropAttachedAndDetachManaged(p)
	}
	return nil
}

// WatchedChangedBuildFile implements spec.md §4.6's watched
// Changed(build file) row: reload the owning project's config and
// migrate URIs between attached/detached sets. If the reload finds no
// build files at all, or fails hard enough to lose the previous
// project's IDL sources (an unparseable build file, a resolver error),
// the previous Project value is retained rather than discarded, so
// open-document state and the assembled model are not lost to a
// transient or broken reload.
func (s *ServerState) WatchedChangedBuildFile(path string) []error {
	root := filepath.Dir(path)
	prev, existed := s.attached[root]

	next, errs := s.loader.Load(root, s.managedByPath())
	if next.Type == project.Empty {
		if existed {
			return append(errs, fmt.Errorf("reload of %s found no build files, keeping previous project", root))
		}
		return errs
	}
	if reloadFailed(prev, next, errs) {
		return append(errs, fmt.Errorf("reload of %s failed, keeping previous project", root))
	}

	s.attached[root] = next
	s.reconcileDetached(prev, next)
	return errs
}

// DidChangeWorkspaceFolders implements spec.md §4.6's
// didChangeWorkspaceFolders row.
func (s *ServerState) DidChangeWorkspaceFolders(added, removed []string) []error {
	var errs []error
	for _, root := range removed {
		delete(s.roots, root)
		for r, p := range s.attached {
			if r == root || strings.HasPrefix(r, root+string(filepath.Separator)) {
				s.dropAttachedAndDetachManaged(p)
			}
		}
	}
	for _, root := range added {
		errs = append(errs, s.AddWorkspaceRoot(root)...)
	}
	return errs
}

func (s *ServerState) nearestAttachedRoot(path string) string {
	best := ""
	for root := range s.attached {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			if len(root) > len(best) {
				best = root
			}
		}
	}
	return best
}

func isBuildFile(path string) bool {
	base := filepath.Base(path)
	return base == buildconfig.SmithyBuildFileName || base == buildconfig.SmithyProjectFileName
}
