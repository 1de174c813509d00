package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/qrs-ai/roadscan/internal/scan"
)

var (
	lowStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2"))
	mediumStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3"))
	highStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// StyleVerdict colours a verdict label for terminal display.
func StyleVerdict(v scan.Verdict) string {
	switch v {
	case scan.VerdictLow:
		return lowStyle.Render(string(v))
	case scan.VerdictMedium:
		return mediumStyle.Render(string(v))
	case scan.VerdictHigh:
		return highStyle.Render(string(v))
	case scan.VerdictError:
		return errorStyle.Render(string(v))
	default:
		return string(v)
	}
}

// PlainIO writes human readable output. Streamed chunks are shown only
// when Stream is set; the verdict always goes to w and diagnostics to errW.
type PlainIO struct {
	mu     sync.Mutex
	w      io.Writer
	errW   io.Writer
	stream bool
	inLine bool
}

var _ IO = (*PlainIO)(nil)

// NewPlainIO writes to stdout and stderr.
func NewPlainIO(stream bool) *PlainIO {
	return NewPlainIOTo(os.Stdout, os.Stderr, stream)
}

func NewPlainIOTo(w, errW io.Writer, stream bool) *PlainIO {
	return &PlainIO{w: w, errW: errW, stream: stream}
}

func (p *PlainIO) ScanStart(fix scan.Fix, backend string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.errW, dimStyle.Render(fmt.Sprintf("scanning %.6f, %.6f via %s", fix.Lat, fix.Lon, backend)))
}

func (p *PlainIO) Chunk(text string) {
	if !p.stream {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprint(p.errW, dimStyle.Render(text))
	p.inLine = true
}

func (p *PlainIO) Verdict(rep *scan.Report) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endLine()
	if rep == nil {
		return
	}
	if rep.Verdict == scan.VerdictError {
		fmt.Fprintf(p.w, "%s  %s\n", StyleVerdict(rep.Verdict), rep.Err)
		return
	}
	fmt.Fprintf(p.w, "%s  %s\n", StyleVerdict(rep.Verdict), rep.Entropy)
	fmt.Fprintln(p.errW, dimStyle.Render(fmt.Sprintf("  stop=%s iterations=%d %s",
		rep.Stop, rep.Iterations, rep.Duration.Round(time.Millisecond))))
}

func (p *PlainIO) System(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endLine()
	fmt.Fprintln(p.errW, text)
}

func (p *PlainIO) Error(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endLine()
	fmt.Fprintln(p.errW, errorStyle.Render("Error: ")+strings.TrimSpace(msg))
}

func (p *PlainIO) endLine() {
	if p.inLine {
		fmt.Fprintln(p.errW)
		p.inLine = false
	}
}
