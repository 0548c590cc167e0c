// Package profiling wraps runtime/pprof for the CLI's --profile flags.
package profiling

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
)

// Profiler collects CPU, heap, and execution-trace profiles for one
// process run. Zero value is ready to use.
type Profiler struct {
	stops []func()
}

// StartCPU begins CPU profiling into path. Profiling runs until Stop.
func (p *Profiler) StartCPU(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create cpu profile %s: %w", path, err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("start cpu profile: %w", err)
	}
	p.stops = append(p.stops, func() {
		pprof.StopCPUProfile()
		_ = f.Close()
	})
	return nil
}

// StartTrace begins execution tracing into path. Tracing runs until Stop.
func (p *Profiler) StartTrace(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create trace %s: %w", path, err)
	}
	if err := trace.Start(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("start trace: %w", err)
	}
	p.stops = append(p.stops, func() {
		trace.Stop()
		_ = f.Close()
	})
	return nil
}

// WriteHeap snapshots live heap allocations into path. A GC runs first
// so the profile reflects reachable objects only.
func (p *Profiler) WriteHeap(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create heap profile %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		return fmt.Errorf("write heap profile: %w", err)
	}
	return nil
}

// Stop flushes and closes every profile started on this Profiler, in
// reverse start order.
func (p *Profiler) Stop() {
	for i := len(p.stops) - 1; i >= 0; i-- {
		p.stops[i]()
	}
	p.stops = nil
}
