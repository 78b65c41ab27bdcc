// Package lsp implements component I: a hand-rolled JSON-RPC 2.0 stdio
// transport and dispatcher binding LSP's base protocol (spec.md §6) to
// serverstate.ServerState. The envelope shapes below mirror the teacher's
// internal/mcp.Handler Request/Response/RPCError structs; only the method
// names and payload types differ, since both are JSON-RPC 2.0 dialects.
package lsp

import "encoding/json"

// Message is the wire envelope for every JSON-RPC frame read off stdin.
// A request carries both ID and Method; a notification carries Method
// with no ID; a response (from a server-to-client request we issued)
// carries ID with no Method.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError mirrors the teacher's RPCError shape with JSON-RPC's standard
// error codes.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Position and Range mirror LSP's base-protocol text-position types,
// distinct from internal/document's rune-indexed equivalents: these are
// UTF-16-code-unit positions as the wire protocol mandates. The core's
// single-byte IDL grammar (§4.1) means rune and UTF-16 offsets coincide
// for every character smithy-ls addresses, so no conversion layer is
// needed before handing positions to internal/document.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// WorkspaceFolder mirrors LSP's WorkspaceFolder.
type WorkspaceFolder struct {
	URI  string `json:"uri"`
	Name string `json:"name"`
}

// InitializeParams carries only the fields this core consumes: the root
// and any workspace folders to discover projects under, plus
// initializationOptions (spec.md §6's closed set).
type InitializeParams struct {
	RootURI             string                `json:"rootUri,omitempty"`
	RootPath            string                `json:"rootPath,omitempty"`
	WorkspaceFolders    []WorkspaceFolder     `json:"workspaceFolders,omitempty"`
	InitializationOptions *InitializationOptions `json:"initializationOptions,omitempty"`
}

// InitializationOptions is spec.md §6's closed set of client-chosen
// overrides to the process defaults (internal/procconfig).
type InitializationOptions struct {
	Diagnostics *DiagnosticsOptions `json:"diagnostics,omitempty"`
	OnlyReloadOnSave *bool          `json:"onlyReloadOnSave,omitempty"`
}

type DiagnosticsOptions struct {
	MinimumSeverity string `json:"minimumSeverity,omitempty"`
}

type InitializeResult struct {
	Capabilities ServerCapabilities `json:"capabilities"`
	ServerInfo   ServerInfo         `json:"serverInfo"`
}

type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type ServerCapabilities struct {
	TextDocumentSync TextDocumentSyncOptions `json:"textDocumentSync"`
	Workspace        WorkspaceCapability     `json:"workspace"`
}

// TextDocumentSyncKindIncremental is LSP's change=2 value, the only sync
// kind the core's didChange handling is built for (spec.md §6's "change
// kind: incremental").
const TextDocumentSyncKindIncremental = 2

type TextDocumentSyncOptions struct {
	OpenClose bool                  `json:"openClose"`
	Change    int                   `json:"change"`
	Save      SaveOptions           `json:"save"`
}

type SaveOptions struct {
	IncludeText bool `json:"includeText"`
}

type WorkspaceCapability struct {
	WorkspaceFolders WorkspaceFoldersCapability `json:"workspaceFolders"`
}

type WorkspaceFoldersCapability struct {
	Supported           bool `json:"supported"`
	ChangeNotifications bool `json:"changeNotifications"`
}

// TextDocumentItem mirrors LSP's TextDocumentItem.
type TextDocumentItem struct {
	URI        string `json:"uri"`
	LanguageID string `json:"languageId"`
	Version    int    `json:"version"`
	Text       string `json:"text"`
}

type TextDocumentIdentifier struct {
	URI string `json:"uri"`
}

type VersionedTextDocumentIdentifier struct {
	URI     string `json:"uri"`
	Version int    `json:"version"`
}

type DidOpenTextDocumentParams struct {
	TextDocument TextDocumentItem `json:"textDocument"`
}

// TextDocumentContentChangeEvent mirrors LSP's incremental-or-whole-buffer
// change event: Range present means incremental, absent means whole-buffer
// replace (internal/document.ApplyEdit's nil-range case).
type TextDocumentContentChangeEvent struct {
	Range *Range `json:"range,omitempty"`
	Text  string `json:"text"`
}

type DidChangeTextDocumentParams struct {
	TextDocument   VersionedTextDocumentIdentifier  `json:"textDocument"`
	ContentChanges []TextDocumentContentChangeEvent `json:"contentChanges"`
}

type DidSaveTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Text         string                 `json:"text,omitempty"`
}

type DidCloseTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

type WorkspaceFoldersChangeEvent struct {
	Added   []WorkspaceFolder `json:"added"`
	Removed []WorkspaceFolder `json:"removed"`
}

type DidChangeWorkspaceFoldersParams struct {
	Event WorkspaceFoldersChangeEvent `json:"event"`
}

// FileChangeType mirrors LSP's FileChangeType enum.
type FileChangeType int

const (
	FileChangeCreated FileChangeType = 1
	FileChangeChanged FileChangeType = 2
	FileChangeDeleted FileChangeType = 3
)

type FileEvent struct {
	URI  string         `json:"uri"`
	Type FileChangeType `json:"type"`
}

type DidChangeWatchedFilesParams struct {
	Changes []FileEvent `json:"changes"`
}

type DidChangeConfigurationParams struct {
	Settings json.RawMessage `json:"settings"`
}

type CancelParams struct {
	ID interface{} `json:"id"`
}

// Registration/Unregistration mirror LSP's client/registerCapability and
// client/unregisterCapability payloads, populated from component H's
// watch.Registration/watch.Unregistration values.
type RegistrationParams struct {
	Registrations []WireRegistration `json:"registrations"`
}

type WireRegistration struct {
	ID             string      `json:"id"`
	Method         string      `json:"method"`
	RegisterOptions interface{} `json:"registerOptions,omitempty"`
}

type UnregistrationParams struct {
	Unregisterations []WireUnregistration `json:"unregisterations"`
}

type WireUnregistration struct {
	ID     string `json:"id"`
	Method string `json:"method"`
}

// DidChangeWatchedFilesRegistrationOptions mirrors LSP's
// registerOptions payload shape for workspace/didChangeWatchedFiles.
type DidChangeWatchedFilesRegistrationOptions struct {
	Watchers []WireFileSystemWatcher `json:"watchers"`
}

type WireFileSystemWatcher struct {
	GlobPattern interface{} `json:"globPattern"`
	Kind        int         `json:"kind,omitempty"`
}

// Diagnostic mirrors LSP's Diagnostic, enough to carry a smithymodel.Event
// across the wire (feature-level diagnostic formatting is out of the
// core's scope per spec.md §1; this is the minimal best-effort bridge the
// dispatcher needs so a running server is observable end-to-end).
type Diagnostic struct {
	Range    Range  `json:"range"`
	Severity int    `json:"severity"`
	Source   string `json:"source"`
	Message  string `json:"message"`
}

type PublishDiagnosticsParams struct {
	URI         string       `json:"uri"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}
