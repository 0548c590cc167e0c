// Package chunk turns parsed source files into the indexable units the
// embedding index stores: one chunk per top-level declaration, plus virtual
// chunks (file summaries, hotspots, clusters, type summaries) derived from
// the full chunk set.
package chunk

import (
	"fmt"
	"strings"
)

// Kind classifies a chunk. The set is closed; extraction and filtering
// switch over it exhaustively rather than comparing strings.
type Kind int

const (
	KindFunction Kind = iota
	KindMethod
	KindInitializer
	KindTypeDecl
	KindFileSummary
	KindHotspot
	KindCluster
	KindTypeSummary
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindFunction:
		return "function"
	case KindMethod:
		return "method"
	case KindInitializer:
		return "initializer"
	case KindTypeDecl:
		return "type"
	case KindFileSummary:
		return "file-summary"
	case KindHotspot:
		return "hotspot"
	case KindCluster:
		return "cluster"
	case KindTypeSummary:
		return "type-summary"
	default:
		return "unknown"
	}
}

// IsVirtual reports whether the kind is derived from the full chunk set
// rather than a single declaration.
func (k Kind) IsVirtual() bool {
	return k >= KindFileSummary
}

// Visibility values for chunks.
const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

// Chunk is the unit of indexing. Chunks are immutable value objects;
// passes that attach derived fields (CalledBy) produce new copies.
type Chunk struct {
	ID        string `json:"id"`
	File      string `json:"file,omitempty"`
	StartLine int    `json:"startLine,omitempty"`
	EndLine   int    `json:"endLine,omitempty"`
	Kind      Kind   `json:"kind"`
	Name      string `json:"name"`

	// EnclosingType is the receiver type for methods.
	EnclosingType string `json:"enclosingType,omitempty"`

	Signature  string   `json:"signature,omitempty"`
	Layer      string   `json:"layer,omitempty"`
	Patterns   []string `json:"patterns,omitempty"`
	Imports    []string `json:"imports,omitempty"`
	Visibility string   `json:"visibility,omitempty"`
	Complexity int      `json:"complexity,omitempty"`
	Smells     []string `json:"smells,omitempty"`
	HasTODO    bool     `json:"hasTodo,omitempty"`
	Calls      []string `json:"calls,omitempty"`
	CalledBy   []string `json:"calledBy,omitempty"`

	// Interfaces holds conformed interface names for type chunks.
	Interfaces  []string `json:"interfaces,omitempty"`
	IsInterface bool     `json:"isInterface,omitempty"`

	// Members lists the files or fragments a virtual chunk spans.
	Members []string `json:"members,omitempty"`

	// Summary is the rendered purpose text for virtual kinds.
	Summary string `json:"summary,omitempty"`
}

// Chunk id constructors. File-level ids are path:startLine; virtual kinds
// use a synthetic prefix.
func FileChunkID(file string, startLine int) string {
	return fmt.Sprintf("%s:%d", file, startLine)
}

func HotspotID(file string) string        { return "hotspot:" + file }
func FileSummaryID(file string) string    { return "summary:" + file }
func ClusterProtocolID(p string) string   { return "cluster:protocol:" + p }
func ClusterDirID(dir string) string      { return "cluster:dir:" + dir }
func TypeSummaryID(typeName string) string { return "typeSummary:" + typeName }

// NormalizeCall reduces a call target to its trailing identifier so that
// obj.fetch(), Type.fetch(), and .fetch all share one call-site bucket.
// Lossy on purpose: calls sharing a method name collapse together
// regardless of receiver type.
func NormalizeCall(call string) string {
	call = strings.TrimPrefix(call, ".")
	if i := strings.LastIndex(call, "."); i >= 0 {
		call = call[i+1:]
	}
	return call
}

// EmbeddingText renders the natural-language description that gets
// embedded. It is a pure function of the chunk's own fields; the persisted
// index relies on this staying reproducible without raw source.
func (c *Chunk) EmbeddingText() string {
	var b strings.Builder

	switch c.Kind {
	case KindFunction, KindMethod, KindInitializer, KindTypeDecl:
		b.WriteString(strings.ToUpper(c.Kind.String()[:1]) + c.Kind.String()[1:])
		b.WriteString(" ")
		b.WriteString(c.Name)
		if c.EnclosingType != "" {
			b.WriteString(" on ")
			b.WriteString(c.EnclosingType)
		}
		fmt.Fprintf(&b, " in %s (lines %d-%d).", c.File, c.StartLine, c.EndLine)
		if c.Signature != "" {
			b.WriteString(" Signature: ")
			b.WriteString(c.Signature)
			b.WriteString(".")
		}
		if c.Visibility != "" {
			fmt.Fprintf(&b, " Visibility: %s.", c.Visibility)
		}
	default:
		b.WriteString(c.Summary)
	}

	if c.Layer != "" {
		fmt.Fprintf(&b, " Layer: %s.", c.Layer)
	}
	if len(c.Patterns) > 0 {
		fmt.Fprintf(&b, " Patterns: %s.", strings.Join(c.Patterns, ", "))
	}
	if len(c.Interfaces) > 0 {
		fmt.Fprintf(&b, " Implements: %s.", strings.Join(c.Interfaces, ", "))
	}
	if len(c.Calls) > 0 {
		fmt.Fprintf(&b, " Calls: %s.", strings.Join(c.Calls, ", "))
	}
	if len(c.CalledBy) > 0 {
		fmt.Fprintf(&b, " Called by: %s.", strings.Join(c.CalledBy, ", "))
	}
	if len(c.Smells) > 0 {
		fmt.Fprintf(&b, " Smells: %s.", strings.Join(c.Smells, ", "))
	}
	if c.Complexity > 0 {
		fmt.Fprintf(&b, " Complexity: %d.", c.Complexity)
	}
	if c.HasTODO {
		b.WriteString(" Has TODO.")
	}

	return strings.TrimSpace(b.String())
}
