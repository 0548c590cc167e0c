package chunk

import (
	"context"
	"runtime"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/cartograph-dev/cartograph/internal/detect"
	"github.com/cartograph-dev/cartograph/internal/parser"
	"github.com/cartograph-dev/cartograph/internal/source"
)

// Extractor produces the chunk set for a project.
type Extractor struct {
	findings *detect.Cache
}

// NewExtractor creates an extractor backed by the given findings cache.
func NewExtractor(findings *detect.Cache) *Extractor {
	return &Extractor{findings: findings}
}

// ExtractAll produces the complete, deterministic chunk set for the given
// files: file-level chunks with the call graph attached, then the full
// virtual set. Output is sorted by id.
func (e *Extractor) ExtractAll(ctx context.Context, files []*source.ParsedFile) ([]Chunk, error) {
	fileChunks, err := e.ExtractFiles(ctx, files)
	if err != nil {
		return nil, err
	}

	fileChunks = AttachCallGraph(fileChunks)
	all := append(fileChunks, e.Virtual(fileChunks, files)...)

	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all, nil
}

// ExtractFiles produces file-level chunks only, one per top-level
// declaration. Files are independent units of work: extraction fans out
// per file and fans in under one lock.
func (e *Extractor) ExtractFiles(ctx context.Context, files []*source.ParsedFile) ([]Chunk, error) {
	var (
		mu  sync.Mutex
		out []Chunk
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for _, f := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			chunks := e.extractFile(f)

			mu.Lock()
			out = append(out, chunks...)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// extractFile runs both per-file phases: findings (phase one, cache hit by
// content hash) and declaration chunks tagged with overlapping findings
// (phase two).
func (e *Extractor) extractFile(f *source.ParsedFile) []Chunk {
	findings := e.findings.Analyze(f)

	imports := append([]string(nil), f.Syntax.Imports...)
	sort.Strings(imports)

	chunks := make([]Chunk, 0, len(f.Syntax.Decls))
	for _, d := range f.Syntax.Decls {
		c := Chunk{
			ID:            FileChunkID(f.Path, d.StartLine),
			File:          f.Path,
			StartLine:     d.StartLine,
			EndLine:       d.EndLine,
			Kind:          declKind(d.Kind),
			Name:          d.Name,
			EnclosingType: d.Receiver,
			Signature:     d.Signature,
			Layer:         classifyLayer(f.Path, imports),
			Patterns:      findings.PatternsInRange(d.StartLine, d.EndLine),
			Imports:       imports,
			Visibility:    visibility(d.Exported),
			Complexity:    d.Complexity,
			Smells:        append([]string(nil), d.Smells...),
			HasTODO:       d.HasTODO,
			Calls:         append([]string(nil), d.Calls...),
			Interfaces:    append([]string(nil), d.Interfaces...),
			IsInterface:   d.IsInterface,
		}
		chunks = append(chunks, c)
	}
	return chunks
}

// AttachCallGraph builds the two-pass call graph: forward edges are
// already on each chunk; the inverted called-by index is keyed by
// NormalizeCall. Input chunks are not mutated; chunks that gain a
// CalledBy list are replaced by copies.
func AttachCallGraph(chunks []Chunk) []Chunk {
	callers := make(map[string][]string)
	for _, c := range chunks {
		for _, call := range c.Calls {
			key := NormalizeCall(call)
			callers[key] = append(callers[key], c.Name)
		}
	}

	out := make([]Chunk, len(chunks))
	for i, c := range chunks {
		out[i] = c
		if c.Name == "" {
			continue
		}
		switch c.Kind {
		case KindFunction, KindMethod, KindInitializer:
		default:
			continue
		}
		if names := callers[c.Name]; len(names) > 0 {
			out[i].CalledBy = dedupeSorted(names, c.Name)
		}
	}
	return out
}

// dedupeSorted returns the unique names sorted, excluding self.
func dedupeSorted(names []string, self string) []string {
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if n == self {
			continue
		}
		seen[n] = struct{}{}
	}
	if len(seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func declKind(k parser.DeclKind) Kind {
	switch k {
	case parser.DeclMethod:
		return KindMethod
	case parser.DeclInitializer:
		return KindInitializer
	case parser.DeclType:
		return KindTypeDecl
	default:
		return KindFunction
	}
}

func visibility(exported bool) string {
	if exported {
		return VisibilityPublic
	}
	return VisibilityPrivate
}

// classifyLayer assigns a coarse architectural layer from path and imports.
func classifyLayer(path string, imports []string) string {
	switch {
	case strings.HasPrefix(path, "cmd/") || strings.HasSuffix(path, "main.go"):
		return "entrypoint"
	case pathContains(path, "store", "storage", "db", "repo"):
		return "persistence"
	case pathContains(path, "ui", "view", "tui"):
		return "ui"
	case hasAnyImport(imports, "net/http", "net", "google.golang.org/grpc"):
		return "network"
	default:
		return "domain"
	}
}

func pathContains(path string, names ...string) bool {
	for _, seg := range strings.Split(path, "/") {
		for _, n := range names {
			if seg == n {
				return true
			}
		}
	}
	return false
}

func hasAnyImport(imports []string, names ...string) bool {
	for _, imp := range imports {
		for _, n := range names {
			if imp == n {
				return true
			}
		}
	}
	return false
}
