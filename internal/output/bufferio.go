package output

import (
	"strings"
	"sync"

	"github.com/qrs-ai/roadscan/internal/scan"
)

// BufferIO captures everything in memory without rendering.
type BufferIO struct {
	mu       sync.Mutex
	chunks   strings.Builder
	reports  []*scan.Report
	messages []string
	errs     []string
	starts   int
}

var _ IO = (*BufferIO)(nil)

func NewBufferIO() *BufferIO { return &BufferIO{} }

func (b *BufferIO) ScanStart(scan.Fix, string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.starts++
}

func (b *BufferIO) Chunk(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chunks.WriteString(text)
}

func (b *BufferIO) Verdict(rep *scan.Report) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reports = append(b.reports, rep)
}

func (b *BufferIO) System(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, text)
}

func (b *BufferIO) Error(msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.errs = append(b.errs, msg)
}

// Output returns all streamed chunk text.
func (b *BufferIO) Output() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.chunks.String()
}

// Reports returns every report shown so far.
func (b *BufferIO) Reports() []*scan.Report {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*scan.Report(nil), b.reports...)
}

// Messages returns system notices.
func (b *BufferIO) Messages() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.messages...)
}

// Errors returns error messages.
func (b *BufferIO) Errors() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.errs...)
}

// Starts returns how many scans were announced.
func (b *BufferIO) Starts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.starts
}
