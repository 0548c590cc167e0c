// Package detect runs lightweight behavioral pattern detectors over source
// files. Each detector is a side-effect-free line scan; results are keyed
// by content hash so unchanged files are never re-analyzed.
package detect

import (
	"strings"

	"github.com/cartograph-dev/cartograph/internal/source"
)

// Pattern tags attached to chunks whose line ranges overlap findings.
const (
	PatternSingleton = "singleton"
	PatternReactive  = "reactive"
	PatternNetwork   = "network"
	PatternDelegate  = "delegate"
)

// LineSet is a set of 1-based line numbers.
type LineSet map[int]struct{}

// Add inserts a line into the set.
func (s LineSet) Add(line int) {
	s[line] = struct{}{}
}

// Contains reports whether the line is in the set.
func (s LineSet) Contains(line int) bool {
	_, ok := s[line]
	return ok
}

// InRange reports whether any line in the set falls within [start, end].
func (s LineSet) InRange(start, end int) bool {
	for line := range s {
		if line >= start && line <= end {
			return true
		}
	}
	return false
}

// Findings holds the detector line sets for one file.
// A Findings value is immutable once returned from Analyze.
type Findings struct {
	Singleton LineSet
	Reactive  LineSet
	Network   LineSet
	Delegate  LineSet
}

// Total returns the number of flagged lines across all detectors.
func (f *Findings) Total() int {
	return len(f.Singleton) + len(f.Reactive) + len(f.Network) + len(f.Delegate)
}

// PatternsInRange returns the pattern tags whose findings overlap
// [start, end], in stable order.
func (f *Findings) PatternsInRange(start, end int) []string {
	var out []string
	if f.Singleton.InRange(start, end) {
		out = append(out, PatternSingleton)
	}
	if f.Reactive.InRange(start, end) {
		out = append(out, PatternReactive)
	}
	if f.Network.InRange(start, end) {
		out = append(out, PatternNetwork)
	}
	if f.Delegate.InRange(start, end) {
		out = append(out, PatternDelegate)
	}
	return out
}

// Analyze runs all detectors over one file.
func Analyze(f *source.ParsedFile) *Findings {
	out := &Findings{
		Singleton: make(LineSet),
		Reactive:  make(LineSet),
		Network:   make(LineSet),
		Delegate:  make(LineSet),
	}

	for i, line := range strings.Split(string(f.Source), "\n") {
		n := i + 1
		if isSingletonLine(line) {
			out.Singleton.Add(n)
		}
		if isReactiveLine(line) {
			out.Reactive.Add(n)
		}
		if isNetworkLine(line) {
			out.Network.Add(n)
		}
		if isDelegateLine(line) {
			out.Delegate.Add(n)
		}
	}

	return out
}

func isSingletonLine(line string) bool {
	return strings.Contains(line, "sync.Once") ||
		strings.Contains(line, "Instance()") ||
		strings.Contains(line, "Singleton")
}

func isReactiveLine(line string) bool {
	return strings.Contains(line, ".Subscribe(") ||
		strings.Contains(line, ".Observe(") ||
		strings.Contains(line, ".Publish(") ||
		strings.Contains(line, ".Notify(")
}

func isNetworkLine(line string) bool {
	return strings.Contains(line, "http.Get(") ||
		strings.Contains(line, "http.Post(") ||
		strings.Contains(line, "http.NewRequest") ||
		strings.Contains(line, "net.Dial") ||
		strings.Contains(line, "grpc.Dial") ||
		strings.Contains(line, ".Do(req")
}

func isDelegateLine(line string) bool {
	return strings.Contains(line, "Delegate") ||
		strings.Contains(line, "Handler =") ||
		strings.Contains(line, "Callback =") ||
		strings.Contains(line, "OnEvent =")
}
