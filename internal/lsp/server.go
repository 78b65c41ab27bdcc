package lsp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/smithy-tools/smithy-ls/internal/document"
	"github.com/smithy-tools/smithy-ls/internal/project"
	"github.com/smithy-tools/smithy-ls/internal/serverstate"
	"github.com/smithy-tools/smithy-ls/internal/smithymodel"
	"github.com/smithy-tools/smithy-ls/internal/watch"
)

// Server is the dispatcher: it owns the stdio Conn and routes every
// spec.md §6 method to the matching serverstate.ServerState call,
// restructured from the teacher's internal/mcp.Handler method-switch
// dispatch for LSP's lifecycle/text-sync/workspace surface instead of
// MCP's tools surface.
type Server struct {
	State   *serverstate.ServerState
	Watcher *watch.OSWatcher
	Log     arbor.ILogger

	conn *Conn
	ids  nextRequestID

	mu          sync.Mutex
	initialized bool
	shuttingDown bool
}

// NewServer builds a dispatcher over the given stdio-shaped streams.
func NewServer(state *serverstate.ServerState, watcher *watch.OSWatcher, log arbor.ILogger, r io.Reader, w io.Writer) *Server {
	return &Server{
		State:   state,
		Watcher: watcher,
		Log:     log,
		conn:    NewConn(r, w),
	}
}

// Run reads and dispatches frames until the client sends exit or the
// stream closes. It returns the process exit code spec.md §6 implies:
// 0 on a clean exit (shutdown received first), 1 if exit arrives without
// a prior shutdown.
func (s *Server) Run(ctx context.Context) int {
	for {
		msg, err := s.conn.ReadMessage()
		if err != nil {
			if err == io.EOF {
				if s.isShuttingDown() {
					return 0
				}
				s.Log.Warn().Msg("client closed stdin without sending exit")
				return 1
			}
			s.Log.Error().Err(err).Msg("failed to read frame")
			continue
		}

		if msg.Method == "" {
			// A response to a server-issued request (client/registerCapability
			// or client/unregisterCapability). The core does not act on the
			// result beyond logging a failure, since watch registration is
			// best-effort from the client's perspective.
			if msg.Error != nil {
				s.Log.Warn().Str("id", fmt.Sprint(msg.ID)).Str("error", msg.Error.Message).Msg("client rejected server-issued request")
			}
			continue
		}

		if msg.ID == nil {
			s.handleNotification(ctx, msg.Method, msg.Params)
			if msg.Method == "exit" {
				if s.isShuttingDown() {
					return 0
				}
				return 1
			}
			continue
		}

		s.handleRequest(ctx, msg.ID, msg.Method, msg.Params)
	}
}

func (s *Server) isShuttingDown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shuttingDown
}

func (s *Server) handleRequest(ctx context.Context, id interface{}, method string, params json.RawMessage) {
	switch method {
	case "initialize":
		s.handleInitialize(id, params)
	case "shutdown":
		s.mu.Lock()
		s.shuttingDown = true
		s.mu.Unlock()
		s.State.Lifecycle.CancelAllTasks()
		s.State.Lifecycle.WaitForAllTasks()
		_ = s.conn.WriteResult(id, nil)
	default:
		_ = s.conn.WriteError(id, CodeMethodNotFound, "method not found: "+method)
	}
}

func (s *Server) handleNotification(ctx context.Context, method string, params json.RawMessage) {
	switch method {
	case "initialized":
		s.mu.Lock()
		s.initialized = true
		s.mu.Unlock()
		s.publishWatchRegistrations()

	case "exit":
		// handled by Run's caller for the exit-code decision; nothing
		// further to do here.

	case "workspace/didChangeWorkspaceFolders":
		var p DidChangeWorkspaceFoldersParams
		if !s.decode(params, &p, method) {
			return
		}
		added := urisToPaths(p.Event.Added)
		removed := urisToPaths(p.Event.Removed)
		for _, root := range added {
			if s.Watcher != nil {
				if err := s.Watcher.AddRoot(root); err != nil {
					s.Log.Warn().Err(err).Str("root", root).Msg("failed to watch added workspace root")
				}
			}
		}
		s.logErrs("didChangeWorkspaceFolders", s.State.DidChangeWorkspaceFolders(added, removed))
		s.publishWatchRegistrations()

	case "workspace/didChangeWatchedFiles":
		var p DidChangeWatchedFilesParams
		if !s.decode(params, &p, method) {
			return
		}
		for _, ch := range p.Changes {
			path := project.PathFromURI(ch.URI)
			switch ch.Type {
			case FileChangeCreated:
				s.logErrs("watchedCreated", s.State.WatchedCreated(path))
			case FileChangeDeleted:
				if isBuildFileName(path) {
					s.logErrs("watchedChangedBuildFile", s.State.WatchedChangedBuildFile(path))
					continue
				}
				if err := s.State.WatchedDeleted(ctx, path); err != nil {
					s.Log.Warn().Err(err).Str("path", path).Msg("watchedDeleted failed")
				}
			case FileChangeChanged:
				if isBuildFileName(path) {
					s.logErrs("watchedChangedBuildFile", s.State.WatchedChangedBuildFile(path))
				}
			}
		}
		s.publishWatchRegistrations()

	case "workspace/didChangeConfiguration":
		// The core's configuration is consumed once via initializationOptions
		// (spec.md §6's closed set); live reconfiguration is not modeled.

	case "textDocument/didOpen":
		var p DidOpenTextDocumentParams
		if !s.decode(params, &p, method) {
			return
		}
		s.State.Open(p.TextDocument.URI, p.TextDocument.Text)
		s.publishDiagnostics(p.TextDocument.URI)

	case "textDocument/didChange":
		var p DidChangeTextDocumentParams
		if !s.decode(params, &p, method) {
			return
		}
		for _, change := range p.ContentChanges {
			if err := s.State.Change(p.TextDocument.URI, wireRangeToDocRange(change.Range), change.Text); err != nil {
				s.Log.Warn().Err(err).Str("uri", p.TextDocument.URI).Msg("change failed")
			}
		}

	case "textDocument/didSave":
		var p DidSaveTextDocumentParams
		if !s.decode(params, &p, method) {
			return
		}
		s.State.Save(p.TextDocument.URI)
		s.publishDiagnostics(p.TextDocument.URI)

	case "textDocument/didClose":
		var p DidCloseTextDocumentParams
		if !s.decode(params, &p, method) {
			return
		}
		s.State.Close(p.TextDocument.URI)

	case "$/cancelRequest":
		// The core's background tasks are scheduled per-document-URI by
		// notifications (didChange/didSave), not per client request id
		// (spec.md §4.5); a conformant LSP client never sends a URI as a
		// cancel id; this handler accepts a string id as a pragmatic,
		// best-effort bridge for editors that do funnel a document URI
		// through $/cancelRequest, rather than claiming true per-request
		// cancellation it cannot offer.
		var p CancelParams
		if !s.decode(params, &p, method) {
			return
		}
		if uri, ok := p.ID.(string); ok {
			s.State.Lifecycle.CancelTask(uri)
		}

	default:
		s.Log.Debug().Str("method", method).Msg("unhandled notification")
	}
}

func (s *Server) handleInitialize(id interface{}, params json.RawMessage) {
	var p InitializeParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			_ = s.conn.WriteError(id, CodeInvalidParams, "invalid initialize params: "+err.Error())
			return
		}
	}

	if p.InitializationOptions != nil && p.InitializationOptions.OnlyReloadOnSave != nil {
		s.State.OnlyReloadOnSave = *p.InitializationOptions.OnlyReloadOnSave
	}

	for _, root := range initialRoots(p) {
		if s.Watcher != nil {
			if err := s.Watcher.AddRoot(root); err != nil {
				s.Log.Warn().Err(err).Str("root", root).Msg("failed to watch workspace root")
			}
		}
		s.logErrs("initialize/AddWorkspaceRoot", s.State.AddWorkspaceRoot(root))
	}

	result := InitializeResult{
		ServerInfo: ServerInfo{Name: "smithy-ls", Version: "dev"},
		Capabilities: ServerCapabilities{
			TextDocumentSync: TextDocumentSyncOptions{
				OpenClose: true,
				Change:    TextDocumentSyncKindIncremental,
				Save:      SaveOptions{IncludeText: false},
			},
			Workspace: WorkspaceCapability{
				WorkspaceFolders: WorkspaceFoldersCapability{
					Supported:           true,
					ChangeNotifications: true,
				},
			},
		},
	}
	_ = s.conn.WriteResult(id, result)
}

// initialRoots resolves initialize's workspace folders, falling back to
// rootUri/rootPath for pre-3.6 clients that predate workspaceFolders.
func initialRoots(p InitializeParams) []string {
	if len(p.WorkspaceFolders) > 0 {
		out := make([]string, 0, len(p.WorkspaceFolders))
		for _, f := range p.WorkspaceFolders {
			out = append(out, project.PathFromURI(f.URI))
		}
		return out
	}
	if p.RootURI != "" {
		return []string{project.PathFromURI(p.RootURI)}
	}
	if p.RootPath != "" {
		return []string{p.RootPath}
	}
	return nil
}

func urisToPaths(folders []WorkspaceFolder) []string {
	out := make([]string, 0, len(folders))
	for _, f := range folders {
		out = append(out, project.PathFromURI(f.URI))
	}
	return out
}

func isBuildFileName(path string) bool {
	base := filepath.Base(path)
	return base == "smithy-build.json" || base == ".smithy-project.json"
}

func (s *Server) decode(params json.RawMessage, v interface{}, method string) bool {
	if err := json.Unmarshal(params, v); err != nil {
		s.Log.Warn().Err(err).Str("method", method).Msg("invalid notification params")
		return false
	}
	return true
}

func (s *Server) logErrs(op string, errs []error) {
	for _, err := range errs {
		if err != nil {
			s.Log.Warn().Err(err).Str("op", op).Msg("project operation reported an error")
		}
	}
}

// publishWatchRegistrations sends the unregister-then-register pair
// ComputeWatchRegistrations returns, as client/unregisterCapability and
// client/registerCapability server-to-client requests (spec.md §4.7).
func (s *Server) publishWatchRegistrations() {
	unregs, regs := s.State.ComputeWatchRegistrations()

	if len(unregs) > 0 {
		wireUnregs := make([]WireUnregistration, 0, len(unregs))
		for _, u := range unregs {
			wireUnregs = append(wireUnregs, WireUnregistration{ID: u.ID, Method: u.Method})
		}
		if _, err := s.conn.Request(&s.ids, "client/unregisterCapability", UnregistrationParams{Unregisterations: wireUnregs}); err != nil {
			s.Log.Warn().Err(err).Msg("failed to send client/unregisterCapability")
		}
	}

	wireRegs := make([]WireRegistration, 0, len(regs))
	for _, r := range regs {
		watchers := make([]WireFileSystemWatcher, 0, len(r.Watchers))
		for _, w := range r.Watchers {
			watchers = append(watchers, WireFileSystemWatcher{
				GlobPattern: wireGlobPattern(w.GlobPattern),
				Kind:        int(w.Kind),
			})
		}
		wireRegs = append(wireRegs, WireRegistration{
			ID:     r.ID,
			Method: r.Method,
			RegisterOptions: DidChangeWatchedFilesRegistrationOptions{Watchers: watchers},
		})
	}
	if _, err := s.conn.Request(&s.ids, "client/registerCapability", RegistrationParams{Registrations: wireRegs}); err != nil {
		s.Log.Warn().Err(err).Msg("failed to send client/registerCapability")
	}
}

func wireGlobPattern(g watch.GlobPattern) interface{} {
	if g.BaseURI == "" {
		return g.Pattern
	}
	return struct {
		BaseURI string `json:"baseUri"`
		Pattern string `json:"pattern"`
	}{BaseURI: g.BaseURI, Pattern: g.Pattern}
}

func wireRangeToDocRange(r *Range) *document.Range {
	if r == nil {
		return nil
	}
	return &document.Range{
		Start: document.Position{Line: r.Start.Line, Character: r.Start.Character},
		End:   document.Position{Line: r.End.Line, Character: r.End.Character},
	}
}

// publishDiagnostics is a best-effort textDocument/publishDiagnostics
// convenience derived from the owning project's last-validated model
// (Project.ModelResult), grouped by source file so a running server is
// observable end to end. Feature-level diagnostic presentation (ranges
// spanning full shape bodies, related-information links) is out of the
// core's scope; this maps one smithymodel.Event to one LSP Diagnostic
// pinned to its reported line.
func (s *Server) publishDiagnostics(uri string) {
	p := s.State.ProjectFor(uri)
	if p == nil {
		return
	}
	result := p.ModelResult()
	if result == nil || result.Empty() {
		return
	}

	byFile := make(map[string][]Diagnostic)
	for _, ev := range result.Events {
		file := ev.Location.File
		if file == "" {
			continue
		}
		byFile[file] = append(byFile[file], Diagnostic{
			Range:    pointRange(ev.Location),
			Severity: severityToLSP(ev.Severity),
			Source:   "smithy-ls",
			Message:  ev.Message,
		})
	}
	for file, diags := range byFile {
		_ = s.conn.Notify("textDocument/publishDiagnostics", PublishDiagnosticsParams{
			URI:         project.URIFromPath(file),
			Diagnostics: diags,
		})
	}
}

// pointRange converts a 1-based (line, column) smithymodel.SourceLocation
// into a zero-width LSP range at its 0-based line. Column 0 (unset, the
// reference assembler's common case) maps to character 0.
func pointRange(loc smithymodel.SourceLocation) Range {
	line := loc.Line - 1
	if line < 0 {
		line = 0
	}
	col := loc.Column
	if col < 0 {
		col = 0
	}
	pos := Position{Line: line, Character: col}
	return Range{Start: pos, End: pos}
}

func severityToLSP(sev smithymodel.Severity) int {
	switch sev {
	case smithymodel.SeverityError:
		return 1
	case smithymodel.SeverityDanger:
		return 1
	case smithymodel.SeverityWarning:
		return 2
	case smithymodel.SeverityNote:
		return 4
	default:
		return 2
	}
}
