package project

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smithy-tools/smithy-ls/internal/document"
	"github.com/smithy-tools/smithy-ls/internal/simpleassembler"
	"github.com/smithy-tools/smithy-ls/internal/smithymodel"
)

func writeFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func newLoader() *Loader {
	return NewLoader(simpleassembler.New())
}

// TestLoad_ApplyAcrossFiles covers spec §8 end-to-end scenario 1: after
// load, com.foo#Bar carries the length trait applied from a different
// file, and it survives an incremental update of the applying file.
func TestLoad_ApplyAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "smithy-build.json", `{"version":"1.0","sources":["."]}`)
	m0 := writeFile(t, dir, "m0.smithy", "$version: \"2\"\nnamespace com.foo\nstring Foo\napply Bar @length(min:1)\n")
	writeFile(t, dir, "m1.smithy", "$version: \"2\"\nnamespace com.foo\nstring Bar\n")

	p, errs := newLoader().Load(dir, nil)
	require.Empty(t, errs)
	require.Equal(t, Normal, p.Type)

	bar := p.ModelResult().Model.Shapes[smithymodel.ShapeID("com.foo#Bar")]
	require.NotNil(t, bar)
	require.Contains(t, bar.Traits, smithymodel.ShapeID("length"))
	assert.Equal(t, "min:1", bar.Traits["length"].Value())

	// Append a newline to m0.smithy and run an incremental update.
	data, err := os.ReadFile(m0)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(m0, append(data, '\n'), 0o644))
	require.NoError(t, p.UpdateWithoutValidating(context.Background(), m0))

	bar = p.ModelResult().Model.Shapes[smithymodel.ShapeID("com.foo#Bar")]
	require.NotNil(t, bar)
	require.Contains(t, bar.Traits, smithymodel.ShapeID("length"))
	assert.Equal(t, "min:1", bar.Traits["length"].Value())
}

// TestUpdateWithoutValidating_RemoveApply covers scenario 2: deleting the
// apply statement in one file drops only its trait, leaving a trait
// applied from a third file intact.
func TestUpdateWithoutValidating_RemoveApply(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "smithy-build.json", `{"version":"1.0","sources":["."]}`)
	m0 := writeFile(t, dir, "m0.smithy", "$version: \"2\"\nnamespace com.foo\nstring Foo\napply Bar @length(min:1)\n")
	writeFile(t, dir, "m1.smithy", "$version: \"2\"\nnamespace com.foo\nstring Bar\n")
	writeFile(t, dir, "m2.smithy", "$version: \"2\"\nnamespace com.foo\napply Bar @pattern(\"a\")\n")

	p, errs := newLoader().Load(dir, nil)
	require.Empty(t, errs)

	bar := p.ModelResult().Model.Shapes[smithymodel.ShapeID("com.foo#Bar")]
	require.Contains(t, bar.Traits, smithymodel.ShapeID("length"))
	require.Contains(t, bar.Traits, smithymodel.ShapeID("pattern"))

	// Delete the apply @length line from m0.smithy.
	require.NoError(t, os.WriteFile(m0, []byte("$version: \"2\"\nnamespace com.foo\nstring Foo\n"), 0o644))
	require.NoError(t, p.UpdateWithoutValidating(context.Background(), m0))

	bar = p.ModelResult().Model.Shapes[smithymodel.ShapeID("com.foo#Bar")]
	require.NotNil(t, bar)
	assert.NotContains(t, bar.Traits, smithymodel.ShapeID("length"))
	require.Contains(t, bar.Traits, smithymodel.ShapeID("pattern"))
	assert.Equal(t, "a", bar.Traits["pattern"].Value())
}

// TestLoad_ArrayTraitMerge covers scenario 3: two files each applying an
// array-valued trait to the same shape merge in file-discovery order.
func TestLoad_ArrayTraitMerge(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "smithy-build.json", `{"version":"1.0","sources":["."]}`)
	writeFile(t, dir, "a.smithy", "$version: \"2\"\nnamespace com.foo\nstring Foo\napply Foo @tags([\"foo\"])\n")
	writeFile(t, dir, "b.smithy", "$version: \"2\"\nnamespace com.foo\napply Foo @tags([\"bar\"])\n")

	p, errs := newLoader().Load(dir, nil)
	require.Empty(t, errs)

	foo := p.ModelResult().Model.Shapes[smithymodel.ShapeID("com.foo#Foo")]
	require.NotNil(t, foo)
	require.Contains(t, foo.Traits, smithymodel.ShapeID("tags"))
	assert.Equal(t, []any{"foo", "bar"}, foo.Traits["tags"].Value())
}

// TestUpdateWithoutValidating_UnrelatedFileUnaffected covers spec §4.4.2's
// third correctness condition: editing an unrelated file never perturbs
// shapes defined elsewhere.
func TestUpdateWithoutValidating_UnrelatedFileUnaffected(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "smithy-build.json", `{"version":"1.0","sources":["."]}`)
	writeFile(t, dir, "m0.smithy", "$version: \"2\"\nnamespace com.foo\nstring Foo\n")
	other := writeFile(t, dir, "other.smithy", "$version: \"2\"\nnamespace com.foo\nstring Other\n")

	p, errs := newLoader().Load(dir, nil)
	require.Empty(t, errs)

	require.NoError(t, os.WriteFile(other, []byte("$version: \"2\"\nnamespace com.foo\nstring Other\nstring Other2\n"), 0o644))
	require.NoError(t, p.UpdateWithoutValidating(context.Background(), other))

	foo := p.ModelResult().Model.Shapes[smithymodel.ShapeID("com.foo#Foo")]
	require.NotNil(t, foo)
	assert.True(t, foo.Source.IsNone() == false)
	assert.Equal(t, "m0.smithy", filepath.Base(foo.Source.File))
}

func TestLoad_NoBuildFiles_ReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	p, errs := newLoader().Load(dir, nil)
	assert.Empty(t, errs)
	assert.Equal(t, Empty, p.Type)
}

func TestLoad_AdoptsManagedDocument(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "smithy-build.json", `{"version":"1.0","sources":["main.smithy"]}`)
	path := writeFile(t, dir, "main.smithy", "$version: \"2\"\nnamespace com.foo\nstring OnDisk\n")

	doc := document.New(URIFromPath(path), "$version: \"2\"\nnamespace com.foo\nstring InMemory\n")
	p, errs := newLoader().Load(dir, map[string]*document.Document{path: doc})
	require.Empty(t, errs)

	model := p.ModelResult().Model
	assert.Contains(t, model.Shapes, smithymodel.ShapeID("com.foo#InMemory"))
	assert.NotContains(t, model.Shapes, smithymodel.ShapeID("com.foo#OnDisk"))
}

func TestNewDetached(t *testing.T) {
	doc := document.New("file:///a.smithy", "$version: \"2\"\nnamespace com.foo\nstring Solo\n")
	p := NewDetached("/a.smithy", doc, simpleassembler.New())
	assert.Equal(t, Detached, p.Type)
	assert.Equal(t, "/a.smithy", p.Path())
	assert.Contains(t, p.ModelResult().Model.Shapes, smithymodel.ShapeID("com.foo#Solo"))
}

func TestRemoveFile_ClearsDanglingTrait(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "smithy-build.json", `{"version":"1.0","sources":["."]}`)
	m0 := writeFile(t, dir, "m0.smithy", "$version: \"2\"\nnamespace com.foo\napply Bar @length(min:1)\n")
	writeFile(t, dir, "m1.smithy", "$version: \"2\"\nnamespace com.foo\nstring Bar\n")

	p, errs := newLoader().Load(dir, nil)
	require.Empty(t, errs)
	require.Contains(t, p.ModelResult().Model.Shapes[smithymodel.ShapeID("com.foo#Bar")].Traits, smithymodel.ShapeID("length"))

	require.NoError(t, p.RemoveFile(context.Background(), m0))
	assert.False(t, p.HasPath(m0))
	bar := p.ModelResult().Model.Shapes[smithymodel.ShapeID("com.foo#Bar")]
	require.NotNil(t, bar)
	assert.NotContains(t, bar.Traits, smithymodel.ShapeID("length"))
}
