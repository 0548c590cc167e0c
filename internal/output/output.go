// Package output provides CLI output formatting for Cartograph commands.
// Color is enabled only when writing to a terminal and NO_COLOR is unset.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
)

// ANSI escape sequences.
const (
	ansiReset  = "\033[0m"
	ansiBold   = "\033[1m"
	ansiDim    = "\033[2m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiRed    = "\033[31m"
	ansiCyan   = "\033[36m"
)

// Writer provides formatted output for CLI commands.
type Writer struct {
	out      io.Writer
	useColor bool
}

// New creates a Writer, detecting color support from the destination.
func New(out io.Writer) *Writer {
	return &Writer{out: out, useColor: detectColor(out)}
}

// NewPlain creates a Writer with color disabled, for tests and pipes.
func NewPlain(out io.Writer) *Writer {
	return &Writer{out: out}
}

func detectColor(out io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (w *Writer) paint(color, s string) string {
	if !w.useColor {
		return s
	}
	return color + s + ansiReset
}

// Println writes a plain line. Write errors are ignored for console output.
func (w *Writer) Println(msg string) {
	_, _ = fmt.Fprintln(w.out, msg)
}

// Printf writes a formatted line.
func (w *Writer) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(w.out, format+"\n", args...)
}

// Success writes a green success line.
func (w *Writer) Success(format string, args ...any) {
	_, _ = fmt.Fprintf(w.out, "%s %s\n", w.paint(ansiGreen, "ok"), fmt.Sprintf(format, args...))
}

// Warning writes a yellow warning line.
func (w *Writer) Warning(format string, args ...any) {
	_, _ = fmt.Fprintf(w.out, "%s %s\n", w.paint(ansiYellow, "warn"), fmt.Sprintf(format, args...))
}

// Error writes a red error line.
func (w *Writer) Error(format string, args ...any) {
	_, _ = fmt.Fprintf(w.out, "%s %s\n", w.paint(ansiRed, "error"), fmt.Sprintf(format, args...))
}

// Field writes an aligned "name: value" line for status listings.
func (w *Writer) Field(name string, value any) {
	_, _ = fmt.Fprintf(w.out, "  %s %v\n", w.paint(ansiDim, fmt.Sprintf("%-16s", name+":")), value)
}

// Header writes a bold section header.
func (w *Writer) Header(title string) {
	_, _ = fmt.Fprintf(w.out, "%s\n", w.paint(ansiBold, title))
}

// Progress renders an in-place progress line with a bar, rate, and ETA.
func (w *Writer) Progress(current, total int, rate float64, eta time.Duration) {
	if total <= 0 {
		return
	}

	pct := float64(current) / float64(total) * 100
	line := fmt.Sprintf("\r[%s] %3.0f%% (%d/%d)", progressBar(current, total, 30), pct, current, total)
	if rate > 0 {
		line += fmt.Sprintf(" %.0f chunks/s", rate)
	}
	if eta > 0 {
		line += fmt.Sprintf(" eta %s", eta.Round(time.Second))
	}
	_, _ = fmt.Fprint(w.out, w.paint(ansiCyan, line))

	if current >= total {
		_, _ = fmt.Fprintln(w.out)
	}
}

// ProgressDone terminates an in-place progress line.
func (w *Writer) ProgressDone() {
	_, _ = fmt.Fprintln(w.out)
}

func progressBar(current, total, width int) string {
	filled := 0
	if total > 0 {
		filled = current * width / total
	}
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("=", filled) + strings.Repeat("-", width-filled)
}
