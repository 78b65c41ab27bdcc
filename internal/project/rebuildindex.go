package project

import "github.com/smithy-tools/smithy-ls/internal/smithymodel"

// RebuildIndex is the bookkeeping spec.md §4.4.2 step 2 describes: for
// every file in the last successful assembly, which shapes it defines,
// which other files apply traits to its shapes (or vice versa), and
// which array-valued metadata keys it contributes to. It is rebuilt from
// scratch after every successful assembly; it is never patched in place.
type RebuildIndex struct {
	// definesInFile maps a file to the set of shapes it defines.
	definesInFile map[string]map[smithymodel.ShapeID]bool
	// fileToFiles is the undirected apply-edge graph: an edge between a
	// file that applies a trait and the file that defines the target
	// shape, in both directions (spec.md §4.4.2: editing either file
	// requires re-running both).
	fileToFiles map[string]map[string]bool
	// fileToMetadataKeys maps a file to the array-valued metadata keys it
	// contributes elements to.
	fileToMetadataKeys map[string]map[string]bool
	// metadataKeyFiles is the reverse index: which files contribute to a
	// given array-valued metadata key.
	metadataKeyFiles map[string]map[string]bool
}

func newRebuildIndex() *RebuildIndex {
	return &RebuildIndex{
		definesInFile:      make(map[string]map[smithymodel.ShapeID]bool),
		fileToFiles:        make(map[string]map[string]bool),
		fileToMetadataKeys: make(map[string]map[string]bool),
		metadataKeyFiles:   make(map[string]map[string]bool),
	}
}

func (idx *RebuildIndex) addEdge(a, b string) {
	if idx.fileToFiles[a] == nil {
		idx.fileToFiles[a] = make(map[string]bool)
	}
	if idx.fileToFiles[b] == nil {
		idx.fileToFiles[b] = make(map[string]bool)
	}
	idx.fileToFiles[a][b] = true
	idx.fileToFiles[b][a] = true
}

// computeRebuildIndex walks a freshly assembled model and derives the
// per-file bookkeeping described above.
func computeRebuildIndex(model *smithymodel.Model) *RebuildIndex {
	idx := newRebuildIndex()

	for shapeID, shape := range model.Shapes {
		definer := shape.Source.File
		if definer != "" {
			if idx.definesInFile[definer] == nil {
				idx.definesInFile[definer] = make(map[smithymodel.ShapeID]bool)
			}
			idx.definesInFile[definer][shapeID] = true
		}
		for _, trait := range shape.Traits {
			for _, c := range trait.Contributions {
				if c.File == "" || c.File == definer || definer == "" {
					continue
				}
				idx.addEdge(c.File, definer)
			}
		}
	}

	for key, md := range model.Metadata {
		if !md.IsArray {
			continue
		}
		for _, c := range md.Contributions {
			if idx.fileToMetadataKeys[c.File] == nil {
				idx.fileToMetadataKeys[c.File] = make(map[string]bool)
			}
			idx.fileToMetadataKeys[c.File][key] = true
			if idx.metadataKeyFiles[key] == nil {
				idx.metadataKeyFiles[key] = make(map[string]bool)
			}
			idx.metadataKeyFiles[key][c.File] = true
		}
	}

	return idx
}

// codependentFiles returns the closure of {start} under the apply-edge
// and metadata-array-edge graphs (spec.md §4.4.2 step 2): the set of
// files D that must be re-fed together when start is edited.
func (idx *RebuildIndex) codependentFiles(start string) map[string]bool {
	d := map[string]bool{start: true}
	queue := []string{start}

	for len(queue) > 0 {
		f := queue[0]
		queue = queue[1:]

		for other := range idx.fileToFiles[f] {
			if !d[other] {
				d[other] = true
				queue = append(queue, other)
			}
		}
		for key := range idx.fileToMetadataKeys[f] {
			for other := range idx.metadataKeyFiles[key] {
				if !d[other] {
					d[other] = true
					queue = append(queue, other)
				}
			}
		}
	}

	return d
}
