package lsp

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smithy-tools/smithy-ls/internal/lifecycle"
	"github.com/smithy-tools/smithy-ls/internal/logger"
	"github.com/smithy-tools/smithy-ls/internal/project"
	"github.com/smithy-tools/smithy-ls/internal/serverstate"
	"github.com/smithy-tools/smithy-ls/internal/simpleassembler"
)

func newTestServer(t *testing.T) (*Server, *bytes.Buffer) {
	t.Helper()
	pool := lifecycle.NewPool(2)
	t.Cleanup(pool.Stop)
	lc := lifecycle.NewManager(pool)
	loader := project.NewLoader(simpleassembler.New())
	state := serverstate.New(loader, lc)

	var out bytes.Buffer
	s := NewServer(state, nil, logger.GetLogger(), nil, &out)
	return s, &out
}

func writeFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func readFrames(t *testing.T, buf *bytes.Buffer) []*Message {
	t.Helper()
	reader := NewConn(bytes.NewReader(buf.Bytes()), io.Discard)
	var msgs []*Message
	for {
		msg, err := reader.ReadMessage()
		if err != nil {
			break
		}
		msgs = append(msgs, msg)
	}
	return msgs
}

func TestHandleInitialize_AddsWorkspaceRootAndReturnsCapabilities(t *testing.T) {
	s, out := newTestServer(t)
	dir := t.TempDir()
	writeFile(t, dir, "smithy-build.json", `{"version":"1.0","sources":["main.smithy"]}`)
	writeFile(t, dir, "main.smithy", "namespace com.foo\nstring Foo\n")

	params, err := json.Marshal(InitializeParams{RootURI: project.URIFromPath(dir)})
	require.NoError(t, err)
	s.handleInitialize(1, params)

	assert.Contains(t, s.State.WorkspaceRoots(), dir)

	frames := readFrames(t, out)
	require.Len(t, frames, 1)
	var result InitializeResult
	require.NoError(t, json.Unmarshal(frames[0].Result, &result))
	assert.Equal(t, TextDocumentSyncKindIncremental, result.Capabilities.TextDocumentSync.Change)
	assert.True(t, result.Capabilities.Workspace.WorkspaceFolders.Supported)
}

func TestHandleInitialize_OnlyReloadOnSaveOption_SetsServerStateFlag(t *testing.T) {
	s, _ := newTestServer(t)
	enabled := true
	params, err := json.Marshal(InitializeParams{
		InitializationOptions: &InitializationOptions{OnlyReloadOnSave: &enabled},
	})
	require.NoError(t, err)
	s.handleInitialize(1, params)
	assert.True(t, s.State.OnlyReloadOnSave)
}

func TestDidOpenDidChangeDidSave_DrivesProjectLifecycle(t *testing.T) {
	s, _ := newTestServer(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "loose.smithy", "namespace com.foo\nstring Foo\n")
	uri := project.URIFromPath(path)

	ctx := context.Background()

	openParams, err := json.Marshal(DidOpenTextDocumentParams{
		TextDocument: TextDocumentItem{URI: uri, LanguageID: "smithy", Text: "namespace com.foo\nstring Foo\n"},
	})
	require.NoError(t, err)
	s.handleNotification(ctx, "textDocument/didOpen", openParams)

	p := s.State.ProjectFor(uri)
	require.NotNil(t, p)
	assert.Equal(t, project.Detached, p.Type)

	changeParams, err := json.Marshal(DidChangeTextDocumentParams{
		TextDocument:   VersionedTextDocumentIdentifier{URI: uri},
		ContentChanges: []TextDocumentContentChangeEvent{{Text: "namespace com.foo\nstring Foo\nstring Bar\n"}},
	})
	require.NoError(t, err)
	s.handleNotification(ctx, "textDocument/didChange", changeParams)
	s.State.Lifecycle.WaitForAllTasks()

	saveParams, err := json.Marshal(DidSaveTextDocumentParams{TextDocument: TextDocumentIdentifier{URI: uri}})
	require.NoError(t, err)
	s.handleNotification(ctx, "textDocument/didSave", saveParams)
	s.State.Lifecycle.WaitForAllTasks()

	closeParams, err := json.Marshal(DidCloseTextDocumentParams{TextDocument: TextDocumentIdentifier{URI: uri}})
	require.NoError(t, err)
	s.handleNotification(ctx, "textDocument/didClose", closeParams)
	assert.Nil(t, s.State.ProjectFor(uri))
}

func TestCancelRequest_BridgesStringIDToTaskCancellation(t *testing.T) {
	s, _ := newTestServer(t)
	uri := "file:///loose.smithy"

	blocked := make(chan struct{})
	task := s.State.Lifecycle.Schedule(uri, func(ctx context.Context) {
		<-ctx.Done()
		close(blocked)
	})

	cancelParams, err := json.Marshal(CancelParams{ID: uri})
	require.NoError(t, err)
	s.handleNotification(context.Background(), "$/cancelRequest", cancelParams)

	task.Wait()
	<-blocked

	_, stillRunning := s.State.Lifecycle.GetTask(uri)
	assert.False(t, stillRunning)
}

func TestHandleRequest_UnknownMethod_RespondsMethodNotFound(t *testing.T) {
	s, out := newTestServer(t)
	s.handleRequest(context.Background(), 1, "textDocument/definition", nil)

	frames := readFrames(t, out)
	require.Len(t, frames, 1)
	require.NotNil(t, frames[0].Error)
	assert.Equal(t, CodeMethodNotFound, frames[0].Error.Code)
}

func TestHandleRequest_Shutdown_SetsShuttingDownAndRespondsNil(t *testing.T) {
	s, out := newTestServer(t)
	s.handleRequest(context.Background(), 1, "shutdown", nil)

	assert.True(t, s.isShuttingDown())
	frames := readFrames(t, out)
	require.Len(t, frames, 1)
	assert.Nil(t, frames[0].Error)
}
