package chunk

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/cartograph-dev/cartograph/internal/detect"
	"github.com/cartograph-dev/cartograph/internal/parser"
	"github.com/cartograph-dev/cartograph/internal/source"
)

// Virtual regenerates the complete virtual chunk set from the full current
// file-level chunk set and file list. Virtual chunks depend on global
// state, so they are always rebuilt wholesale, never file-locally.
func (e *Extractor) Virtual(fileChunks []Chunk, files []*source.ParsedFile) []Chunk {
	byFile := make(map[string][]Chunk)
	for _, c := range fileChunks {
		byFile[c.File] = append(byFile[c.File], c)
	}

	var out []Chunk
	out = append(out, hotspots(byFile)...)
	out = append(out, fileSummaries(byFile)...)
	out = append(out, protocolClusters(byFile)...)
	out = append(out, dirClusters(byFile)...)
	out = append(out, typeSummaries(fileChunks)...)

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// hotspots emits one chunk per file with at least one god function, five
// total smells, or one singleton-pattern chunk.
func hotspots(byFile map[string][]Chunk) []Chunk {
	var out []Chunk
	for file, chunks := range byFile {
		var godFns, singletons []string
		smellCounts := make(map[string]int)
		total := 0

		for _, c := range chunks {
			for _, s := range c.Smells {
				smellCounts[s]++
				total++
				if s == parser.SmellGodFunction {
					godFns = append(godFns, c.Name)
				}
			}
			for _, p := range c.Patterns {
				if p == detect.PatternSingleton {
					singletons = append(singletons, c.Name)
				}
			}
		}

		if len(godFns) == 0 && total < 5 && len(singletons) == 0 {
			continue
		}

		sort.Strings(godFns)
		sort.Strings(singletons)

		var b strings.Builder
		fmt.Fprintf(&b, "Hotspot file %s.", file)
		if len(godFns) > 0 {
			fmt.Fprintf(&b, " God functions: %s.", strings.Join(godFns, ", "))
		}
		if total > 0 {
			fmt.Fprintf(&b, " Smells: %s.", formatCounts(smellCounts))
		}
		if len(singletons) > 0 {
			fmt.Fprintf(&b, " Singleton usage in: %s.", strings.Join(singletons, ", "))
		}

		out = append(out, Chunk{
			ID:      HotspotID(file),
			File:    file,
			Kind:    KindHotspot,
			Name:    file,
			Summary: b.String(),
		})
	}
	return out
}

// fileSummaries emits one chunk per file with at least one declaration.
func fileSummaries(byFile map[string][]Chunk) []Chunk {
	var out []Chunk
	for file, chunks := range byFile {
		if len(chunks) == 0 {
			continue
		}

		var types, methods, functions, public int
		conformSet := make(map[string]struct{})
		patternSet := make(map[string]struct{})

		for _, c := range chunks {
			switch c.Kind {
			case KindTypeDecl:
				types++
			case KindMethod:
				methods++
			case KindFunction, KindInitializer:
				functions++
			}
			if c.Visibility == VisibilityPublic {
				public++
			}
			for _, i := range c.Interfaces {
				conformSet[i] = struct{}{}
			}
			for _, p := range c.Patterns {
				patternSet[p] = struct{}{}
			}
		}

		var b strings.Builder
		fmt.Fprintf(&b, "File %s: %d types, %d methods, %d functions, %d public declarations.",
			file, types, methods, functions, public)
		if len(conformSet) > 0 {
			fmt.Fprintf(&b, " Conforms to: %s.", strings.Join(sortedKeys(conformSet), ", "))
		}
		if len(patternSet) > 0 {
			fmt.Fprintf(&b, " Behavioral: %s.", strings.Join(sortedKeys(patternSet), ", "))
		}

		out = append(out, Chunk{
			ID:      FileSummaryID(file),
			File:    file,
			Kind:    KindFileSummary,
			Name:    file,
			Summary: b.String(),
		})
	}
	return out
}

// protocolClusters groups files implementing the same interface.
// Directory and protocol clusters may overlap; both views are kept.
func protocolClusters(byFile map[string][]Chunk) []Chunk {
	memberFiles := make(map[string]map[string]struct{})
	for file, chunks := range byFile {
		for _, c := range chunks {
			if c.Kind != KindTypeDecl {
				continue
			}
			for _, iface := range c.Interfaces {
				if memberFiles[iface] == nil {
					memberFiles[iface] = make(map[string]struct{})
				}
				memberFiles[iface][file] = struct{}{}
			}
		}
	}

	var out []Chunk
	for iface, files := range memberFiles {
		if len(files) < 2 {
			continue
		}
		members := sortedKeys(files)
		out = append(out, clusterChunk(
			ClusterProtocolID(iface), iface, members, byFile,
			fmt.Sprintf("Files implementing %s", iface),
		))
	}
	return out
}

// dirClusters groups files by containing directory.
func dirClusters(byFile map[string][]Chunk) []Chunk {
	dirs := make(map[string]map[string]struct{})
	for file := range byFile {
		dir := path.Dir(file)
		if dirs[dir] == nil {
			dirs[dir] = make(map[string]struct{})
		}
		dirs[dir][file] = struct{}{}
	}

	var out []Chunk
	for dir, files := range dirs {
		if len(files) < 2 {
			continue
		}
		members := sortedKeys(files)
		out = append(out, clusterChunk(
			ClusterDirID(dir), dir, members, byFile,
			fmt.Sprintf("Files in %s", dir),
		))
	}
	return out
}

func clusterChunk(id, name string, members []string, byFile map[string][]Chunk, what string) Chunk {
	shared := sharedImports(members, byFile)

	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s.", what, strings.Join(members, ", "))
	if len(shared) > 0 {
		fmt.Fprintf(&b, " Shared imports: %s.", strings.Join(shared, ", "))
	}

	return Chunk{
		ID:      id,
		Kind:    KindCluster,
		Name:    name,
		Members: members,
		Summary: b.String(),
	}
}

// sharedImports is the intersection of the member files' import sets.
func sharedImports(members []string, byFile map[string][]Chunk) []string {
	counts := make(map[string]int)
	for _, file := range members {
		chunks := byFile[file]
		if len(chunks) == 0 {
			return nil
		}
		for _, imp := range chunks[0].Imports {
			counts[imp]++
		}
	}

	var out []string
	for imp, n := range counts {
		if n == len(members) {
			out = append(out, imp)
		}
	}
	sort.Strings(out)
	return out
}

// typeSummaries emits one chunk per declared concrete type, aggregating
// methods and conformances across every file that extends the type.
// Interfaces are excluded: there is no implementation to aggregate.
func typeSummaries(fileChunks []Chunk) []Chunk {
	type agg struct {
		fragments      map[string]struct{}
		conformances   map[string]struct{}
		public, hidden int
	}

	types := make(map[string]*agg)
	for _, c := range fileChunks {
		if c.Kind != KindTypeDecl || c.IsInterface {
			continue
		}
		a := types[c.Name]
		if a == nil {
			a = &agg{fragments: make(map[string]struct{}), conformances: make(map[string]struct{})}
			types[c.Name] = a
		}
		a.fragments[c.File] = struct{}{}
		for _, i := range c.Interfaces {
			a.conformances[i] = struct{}{}
		}
	}

	for _, c := range fileChunks {
		if c.Kind != KindMethod || c.EnclosingType == "" {
			continue
		}
		a := types[c.EnclosingType]
		if a == nil {
			continue
		}
		a.fragments[c.File] = struct{}{}
		if c.Visibility == VisibilityPublic {
			a.public++
		} else {
			a.hidden++
		}
	}

	var out []Chunk
	for name, a := range types {
		members := sortedKeys(a.fragments)

		var b strings.Builder
		fmt.Fprintf(&b, "Type %s: %d public methods, %d private methods across %d files (%s).",
			name, a.public, a.hidden, len(members), strings.Join(members, ", "))
		if len(a.conformances) > 0 {
			fmt.Fprintf(&b, " Conforms to: %s.", strings.Join(sortedKeys(a.conformances), ", "))
		}

		out = append(out, Chunk{
			ID:         TypeSummaryID(name),
			Kind:       KindTypeSummary,
			Name:       name,
			Members:    members,
			Interfaces: sortedKeys(a.conformances),
			Summary:    b.String(),
		})
	}
	return out
}

func formatCounts(counts map[string]int) string {
	parts := make([]string, 0, len(counts))
	for _, name := range sortedKeys(counts) {
		parts = append(parts, fmt.Sprintf("%s x%d", name, counts[name]))
	}
	return strings.Join(parts, ", ")
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
