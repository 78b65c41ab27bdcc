package watch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smithy-tools/smithy-ls/internal/project"
	"github.com/smithy-tools/smithy-ls/internal/simpleassembler"
)

func newTestProject(t *testing.T, root string, sources []string) *project.Project {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(root, "smithy-build.json"),
		[]byte(`{"version":"2.0","sources":[`+quoteJoin(sources)+`]}`), 0o644))
	l := project.NewLoader(simpleassembler.New())
	p, errs := l.Load(root, nil)
	require.Empty(t, errs)
	return p
}

func quoteJoin(items []string) string {
	out := ""
	for i, it := range items {
		if i > 0 {
			out += ","
		}
		out += `"` + it + `"`
	}
	return out
}

func TestCompute_AlwaysUnregistersBothIDs(t *testing.T) {
	r := NewRegistrar()
	unregs, _ := r.Compute(nil, nil)
	require.Len(t, unregs, 2)
	assert.Equal(t, WatchSmithyBuildFiles, unregs[0].ID)
	assert.Equal(t, WatchSmithyFiles, unregs[1].ID)
}

func TestCompute_OneBuildWatcherPerRoot(t *testing.T) {
	r := NewRegistrar()
	_, regs := r.Compute([]string{"/ws/a", "/ws/b"}, nil)
	require.Len(t, regs, 2)
	buildReg := regs[0]
	assert.Equal(t, WatchSmithyBuildFiles, buildReg.ID)
	require.Len(t, buildReg.Watchers, 2)
	assert.Equal(t, "file:///ws/a", buildReg.Watchers[0].GlobPattern.BaseURI)
	assert.Equal(t, "file:///ws/b", buildReg.Watchers[1].GlobPattern.BaseURI)
	assert.Equal(t, buildFileGlob, buildReg.Watchers[0].GlobPattern.Pattern)
}

func TestCompute_IDLWatcherCoversAllProjects(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.smithy"), []byte("namespace com.foo\nstring Foo\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.smithy"), []byte("namespace com.foo\nstring Bar\n"), 0o644))
	p := newTestProject(t, dir, []string{"a.smithy", "b.smithy"})

	r := NewRegistrar()
	_, regs := r.Compute([]string{dir}, []*project.Project{p})
	idlReg := regs[1]
	assert.Equal(t, WatchSmithyFiles, idlReg.ID)
	require.Len(t, idlReg.Watchers, 1)
	assert.Contains(t, idlReg.Watchers[0].GlobPattern.Pattern, filepath.Join(dir, "a.smithy"))
	assert.Contains(t, idlReg.Watchers[0].GlobPattern.Pattern, filepath.Join(dir, "b.smithy"))
}

func TestCompute_NoProjects_EmptyIDLWatchers(t *testing.T) {
	r := NewRegistrar()
	_, regs := r.Compute([]string{"/ws"}, nil)
	assert.Empty(t, regs[1].Watchers)
}

func TestBracePattern_SingleElementCollapses(t *testing.T) {
	assert.Equal(t, "/a/b.smithy", bracePattern([]string{"/a/b.smithy"}))
	assert.Equal(t, "{/a,/b}", bracePattern([]string{"/a", "/b"}))
}
