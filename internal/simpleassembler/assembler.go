// Package simpleassembler is a reference implementation of
// smithymodel.ModelAssembler: a best-effort, regex/line-based scanner of
// Smithy IDL and JSON model text. It is not a conformant Smithy
// validator — it exists to exercise the Project & Document Lifecycle
// Engine's invariants (apply-across-files, array-trait/metadata merge
// order, source-location tracking) end to end. A production deployment
// substitutes the project's real assembler (spec.md §6).
package simpleassembler

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/smithy-tools/smithy-ls/internal/smithymodel"
)

var (
	namespaceRe = regexp.MustCompile(`^namespace\s+([A-Za-z0-9_.]+)\s*$`)
	shapeDefRe  = regexp.MustCompile(`^(?:string|integer|long|short|byte|float|double|boolean|bigInteger|bigDecimal|blob|document|timestamp|list|map|set|union|structure|resource|service|operation|enum|intEnum)\s+([A-Za-z0-9_]+)\b`)
	applyRe     = regexp.MustCompile(`^apply\s+([A-Za-z0-9_.#$]+)\s+(@[A-Za-z0-9_.]+)(\([^)]*\))?\s*$`)
	inlineRe    = regexp.MustCompile(`^(@[A-Za-z0-9_.]+)(\([^)]*\))?\s*$`)
	metadataRe  = regexp.MustCompile(`^metadata\s+(\S+)\s*=\s*(.+)$`)

	// arrayValuedTraits lists trait ids whose multiple contributions
	// merge instead of overwrite, per spec.md §8's tags example.
	arrayValuedTraits = map[string]bool{
		"@tags": true,
	}
)

// Assembler is the line-scanning reference ModelAssembler.
type Assembler struct{}

// New returns a new Assembler.
func New() *Assembler {
	return &Assembler{}
}

// Assemble implements smithymodel.ModelAssembler. When seed is non-nil
// its shapes and metadata are cloned into the working model before files
// are scanned, so apply statements and metadata-array entries in files
// may build on shapes/keys seed already carries (spec.md §4.4.2 step 3).
func (a *Assembler) Assemble(ctx context.Context, seed *smithymodel.Model, files []smithymodel.SourceEntry, validate bool) (*smithymodel.ValidatedResult, error) {
	model := smithymodel.NewModel()
	if seed != nil {
		model = seed.Clone()
	}
	var events []smithymodel.Event

	// Pass 1: shape definitions, inline traits and metadata, across every
	// file, in the order files were fed. Apply statements are deferred:
	// a target shape may be defined in a file that has not been scanned
	// yet, so target resolution must wait until every file's shapes are
	// known (spec.md §6(a)'s "apply... to a shape defined in a different
	// file"). Deferral preserves file-discovery order for merge purposes
	// because applies are collected and later replayed in the same order.
	var allApplies []deferredApply
	for _, f := range files {
		select {
		case <-ctx.Done():
			return &smithymodel.ValidatedResult{Model: model, Events: events}, ctx.Err()
		default:
		}

		if strings.HasSuffix(f.Path, ".json") {
			evs := assembleJSON(model, f)
			events = append(events, evs...)
			continue
		}
		evs, applies := assembleIDL(model, f)
		events = append(events, evs...)
		allApplies = append(allApplies, applies...)
	}

	// Pass 2: resolve every deferred apply against the now-complete shape
	// table.
	for _, ap := range allApplies {
		shape := model.Shapes[ap.target]
		if shape == nil {
			events = append(events, smithymodel.Event{
				Severity: smithymodel.SeverityError,
				Message:  "apply target not found: " + string(ap.target),
				Location: smithymodel.SourceLocation{File: ap.file, Line: ap.line},
			})
			continue
		}
		applyTraitContribution(shape, ap.file, ap.line, ap.traitName, ap.args)
	}

	if validate {
		events = append(events, validateModel(model)...)
	}

	return &smithymodel.ValidatedResult{Model: model, Events: events}, nil
}

// deferredApply is an apply statement scanned from an IDL file, held
// until every file's shapes have been collected (see Assemble's pass 2).
type deferredApply struct {
	target    smithymodel.ShapeID
	file      string
	line      int
	traitName string
	args      string
}

func assembleIDL(model *smithymodel.Model, f smithymodel.SourceEntry) ([]smithymodel.Event, []deferredApply) {
	var events []smithymodel.Event
	var applies []deferredApply
	namespace := ""
	var pendingTraits []pendingTrait

	lines := strings.Split(f.Text, "\n")
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		lineNo := i + 1
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}

		if m := namespaceRe.FindStringSubmatch(line); m != nil {
			namespace = m[1]
			continue
		}

		if m := inlineRe.FindStringSubmatch(line); m != nil {
			pendingTraits = append(pendingTraits, pendingTrait{
				name: m[1],
				args: m[2],
				line: lineNo,
			})
			continue
		}

		if m := applyRe.FindStringSubmatch(line); m != nil {
			applies = append(applies, deferredApply{
				target:    qualify(namespace, m[1]),
				file:      f.Path,
				line:      lineNo,
				traitName: m[2],
				args:      m[3],
			})
			continue
		}

		if m := shapeDefRe.FindStringSubmatch(line); m != nil {
			id := qualify(namespace, m[1])
			loc := smithymodel.SourceLocation{File: f.Path, Line: lineNo}
			shape, ok := model.Shapes[id]
			if !ok {
				shape = &smithymodel.Shape{
					ID:     id,
					Type:   shapeTypeOf(line),
					Source: loc,
					Traits: make(map[smithymodel.ShapeID]*smithymodel.Trait),
				}
				model.Shapes[id] = shape
			} else {
				shape.Source = loc
			}
			for _, pt := range pendingTraits {
				applyTraitContribution(shape, f.Path, pt.line, pt.name, pt.args)
			}
			pendingTraits = nil
			continue
		}

		if m := metadataRe.FindStringSubmatch(line); m != nil {
			applyMetadataContribution(model, f.Path, m[1], parseValue(m[2]))
			continue
		}

		// Any other non-empty line resets pending traits: they were not
		// immediately followed by a shape definition.
		pendingTraits = nil
	}

	return events, applies
}

type pendingTrait struct {
	name string
	args string
	line int
}

func applyTraitContribution(shape *smithymodel.Shape, file string, line int, traitName, args string) {
	traitID := smithymodel.ShapeID(strings.TrimPrefix(traitName, "@"))
	value := parseValue(strings.TrimPrefix(strings.TrimSuffix(args, ")"), "("))
	isArray := arrayValuedTraits[traitName]
	shape.MergeTrait(traitID, smithymodel.TraitContribution{
		File:   file,
		Value:  value,
		Source: smithymodel.SourceLocation{File: file, Line: line},
	}, isArray)
}

func applyMetadataContribution(model *smithymodel.Model, file, key string, value any) {
	isArray := false
	if arr, ok := value.([]any); ok {
		isArray = true
		existing, ok := model.Metadata[key]
		if !ok {
			existing = &smithymodel.Metadata{Key: key, IsArray: true}
			model.Metadata[key] = existing
		}
		for _, v := range arr {
			existing.Contributions = append(existing.Contributions, smithymodel.MetadataContribution{File: file, Value: v})
		}
		return
	}

	existing, ok := model.Metadata[key]
	if !ok || existing.IsArray != isArray {
		existing = &smithymodel.Metadata{Key: key, IsArray: isArray}
		model.Metadata[key] = existing
	}
	existing.Contributions = []smithymodel.MetadataContribution{{File: file, Value: value}}
}

// parseValue turns a raw trait-argument or metadata-value token into a Go
// value: ["a", "b"] -> []any{"a","b"}, quoted strings -> string, numbers
// -> float64, true/false -> bool, bare tokens -> string (trimmed).
func parseValue(raw string) any {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	if strings.HasPrefix(raw, "[") && strings.HasSuffix(raw, "]") {
		inner := strings.TrimSpace(raw[1 : len(raw)-1])
		if inner == "" {
			return []any{}
		}
		parts := splitTopLevel(inner)
		out := make([]any, 0, len(parts))
		for _, p := range parts {
			out = append(out, parseValue(p))
		}
		return out
	}

	if strings.HasPrefix(raw, `"`) && strings.HasSuffix(raw, `"`) && len(raw) >= 2 {
		return strings.Trim(raw, `"`)
	}

	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return n
	}

	if raw == "true" {
		return true
	}
	if raw == "false" {
		return false
	}

	// key:value or key: value argument pairs inside a trait's
	// parentheses; return the raw string, feature handlers can format it.
	return raw
}

func splitTopLevel(s string) []string {
	var out []string
	depth := 0
	start := 0
	inQuotes := false
	for i, r := range s {
		switch r {
		case '"':
			inQuotes = !inQuotes
		case '[', '(':
			if !inQuotes {
				depth++
			}
		case ']', ')':
			if !inQuotes {
				depth--
			}
		case ',':
			if depth == 0 && !inQuotes {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, s[start:])
	for i, p := range out {
		out[i] = strings.TrimSpace(p)
	}
	return out
}

func shapeTypeOf(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func qualify(namespace string, ref string) smithymodel.ShapeID {
	if strings.Contains(ref, "#") {
		return smithymodel.ShapeID(ref)
	}
	if namespace == "" {
		return smithymodel.ShapeID(ref)
	}
	return smithymodel.ShapeID(namespace + "#" + ref)
}

// jsonModelFile is the minimal shape of a Smithy JSON AST file this
// reference assembler understands: top-level metadata only. Real
// Smithy JSON ASTs also carry a "shapes" object; parsing it is left to
// the production assembler this adapter stands in for.
type jsonModelFile struct {
	Metadata map[string]json.RawMessage `json:"metadata"`
}

func assembleJSON(model *smithymodel.Model, f smithymodel.SourceEntry) []smithymodel.Event {
	var doc jsonModelFile
	if err := json.Unmarshal([]byte(f.Text), &doc); err != nil {
		return []smithymodel.Event{{
			Severity: smithymodel.SeverityError,
			Message:  "invalid JSON model file: " + err.Error(),
			Location: smithymodel.SourceLocation{File: f.Path, Line: 1},
		}}
	}

	for key, raw := range doc.Metadata {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			continue
		}
		applyMetadataContribution(model, f.Path, key, toGenericAny(v))
	}
	return nil
}

func toGenericAny(v any) any {
	if arr, ok := v.([]any); ok {
		out := make([]any, len(arr))
		copy(out, arr)
		return out
	}
	return v
}

func validateModel(model *smithymodel.Model) []smithymodel.Event {
	var events []smithymodel.Event
	for id, shape := range model.Shapes {
		if shape.Source.IsNone() && len(shape.Traits) == 0 {
			events = append(events, smithymodel.Event{
				Severity: smithymodel.SeverityNote,
				Message:  "shape has no source location: " + string(id),
			})
		}
	}
	return events
}
