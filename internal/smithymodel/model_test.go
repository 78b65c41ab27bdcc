package smithymodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrait_Value_ScalarLastWins(t *testing.T) {
	tr := &Trait{ID: "length", Contributions: []TraitContribution{
		{File: "a.smithy", Value: "min:1"},
		{File: "a.smithy", Value: "min:2"},
	}}
	assert.Equal(t, "min:2", tr.Value())
}

func TestTrait_Value_ArrayConcatenates(t *testing.T) {
	tr := &Trait{ID: "tags", IsArray: true, Contributions: []TraitContribution{
		{File: "a.smithy", Value: []any{"foo"}},
		{File: "b.smithy", Value: []any{"bar"}},
	}}
	assert.Equal(t, []any{"foo", "bar"}, tr.Value())
}

func TestTrait_WithoutFiles_PreservesNoneSource(t *testing.T) {
	tr := &Trait{ID: "required", Contributions: []TraitContribution{
		{File: "", Value: true},
		{File: "a.smithy", Value: true},
	}}
	stripped := tr.WithoutFiles(map[string]bool{"a.smithy": true})
	require.NotNil(t, stripped)
	require.Len(t, stripped.Contributions, 1)
	assert.Equal(t, "", stripped.Contributions[0].File)
}

func TestTrait_WithoutFiles_NilWhenAllDropped(t *testing.T) {
	tr := &Trait{ID: "pattern", Contributions: []TraitContribution{{File: "a.smithy", Value: "x"}}}
	assert.Nil(t, tr.WithoutFiles(map[string]bool{"a.smithy": true}))
}

func TestShape_MergeTrait_ScalarReplacesArrayAppends(t *testing.T) {
	s := &Shape{ID: "com.foo#Bar", Traits: make(map[ShapeID]*Trait)}
	s.MergeTrait("length", TraitContribution{File: "a", Value: "1"}, false)
	s.MergeTrait("length", TraitContribution{File: "b", Value: "2"}, false)
	assert.Equal(t, "2", s.Traits["length"].Value())

	s.MergeTrait("tags", TraitContribution{File: "a", Value: []any{"x"}}, true)
	s.MergeTrait("tags", TraitContribution{File: "b", Value: []any{"y"}}, true)
	assert.Equal(t, []any{"x", "y"}, s.Traits["tags"].Value())
}

func TestModel_WithoutFiles_DropsDefinedShapesAndStripsTraits(t *testing.T) {
	m := NewModel()
	m.Shapes["com.foo#Foo"] = &Shape{ID: "com.foo#Foo", Source: SourceLocation{File: "a.smithy"}, Traits: map[ShapeID]*Trait{}}
	m.Shapes["com.foo#Bar"] = &Shape{
		ID:     "com.foo#Bar",
		Source: SourceLocation{File: "b.smithy"},
		Traits: map[ShapeID]*Trait{
			"length": {ID: "length", Contributions: []TraitContribution{{File: "a.smithy", Value: "1"}}},
		},
	}

	out := m.WithoutFiles(map[string]bool{"a.smithy": true})
	assert.NotContains(t, out.Shapes, ShapeID("com.foo#Foo"))
	bar, ok := out.Shapes["com.foo#Bar"]
	require.True(t, ok)
	assert.NotContains(t, bar.Traits, ShapeID("length"))
}

func TestModel_Clone_IsIndependent(t *testing.T) {
	m := NewModel()
	m.Shapes["com.foo#Foo"] = &Shape{
		ID:     "com.foo#Foo",
		Traits: map[ShapeID]*Trait{"tags": {ID: "tags", IsArray: true, Contributions: []TraitContribution{{File: "a", Value: []any{"x"}}}}},
	}
	clone := m.Clone()
	clone.Shapes["com.foo#Foo"].MergeTrait("tags", TraitContribution{File: "b", Value: []any{"y"}}, true)

	assert.Len(t, m.Shapes["com.foo#Foo"].Traits["tags"].Contributions, 1)
	assert.Len(t, clone.Shapes["com.foo#Foo"].Traits["tags"].Contributions, 2)
}

func TestValidatedResult_EmptyAndBroken(t *testing.T) {
	var nilResult *ValidatedResult
	assert.True(t, nilResult.Empty())

	ok := &ValidatedResult{Model: NewModel()}
	assert.False(t, ok.Empty())
	assert.False(t, ok.Broken())

	broken := &ValidatedResult{Model: NewModel(), Events: []Event{{Severity: SeverityError, Message: "bad"}}}
	assert.True(t, broken.Broken())
}

func TestParseSeverity(t *testing.T) {
	assert.Equal(t, SeverityError, ParseSeverity("ERROR"))
	assert.Equal(t, SeverityWarning, ParseSeverity("unknown"))
}
