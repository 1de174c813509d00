package output

import (
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/qrs-ai/roadscan/internal/scan"
)

// JSONIO prints one Result line per finished scan to w. Progress and
// notices are suppressed; errors go to errW as JSON.
type JSONIO struct {
	mu   sync.Mutex
	enc  *json.Encoder
	errW io.Writer
	full bool
}

var _ IO = (*JSONIO)(nil)

// NewJSONIO writes to stdout. When full is set the whole Report is
// emitted instead of the compact Result.
func NewJSONIO(full bool) *JSONIO {
	return NewJSONIOTo(os.Stdout, os.Stderr, full)
}

func NewJSONIOTo(w, errW io.Writer, full bool) *JSONIO {
	return &JSONIO{enc: json.NewEncoder(w), errW: errW, full: full}
}

func (j *JSONIO) ScanStart(scan.Fix, string) {}
func (j *JSONIO) Chunk(string)               {}
func (j *JSONIO) System(string)              {}

func (j *JSONIO) Verdict(rep *scan.Report) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.full && rep != nil {
		_ = j.enc.Encode(rep)
		return
	}
	_ = j.enc.Encode(ResultOf(rep))
}

// Emit writes an arbitrary Result line (status probes).
func (j *JSONIO) Emit(r Result) {
	j.mu.Lock()
	defer j.mu.Unlock()
	_ = j.enc.Encode(r)
}

func (j *JSONIO) Error(msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	_ = json.NewEncoder(j.errW).Encode(map[string]string{"error": msg})
}
