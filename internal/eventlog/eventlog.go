// Package eventlog writes one JSONL file of structured events per scan.
package eventlog

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Type classifies an event.
type Type string

const (
	ScanStart Type = "scan_start"
	Chunk     Type = "chunk"
	Stop      Type = "stop"
	Verdict   Type = "verdict"
	Error     Type = "error"
)

// Event is a single line in the log.
type Event struct {
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"ts"`
	ScanID    string    `json:"scan_id"`
	Data      any       `json:"data,omitempty"`
}

// Logger appends events for one scan.
type Logger struct {
	mu      sync.Mutex
	file    *os.File
	enc     *json.Encoder
	scanID  string
	logPath string
}

// New opens {dir}/{scanID}.jsonl. When dir is empty the first writable of
// ROADSCAN_EVENTS_DIR, ~/.local/share/roadscan/events and
// $TMPDIR/roadscan/events is used.
func New(dir, scanID string) (*Logger, error) {
	var lastErr error
	for _, d := range candidateDirs(dir) {
		if err := os.MkdirAll(d, 0o755); err != nil {
			lastErr = fmt.Errorf("create events directory %s: %w", d, err)
			continue
		}

		logPath := filepath.Join(d, scanID+".jsonl")
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			lastErr = fmt.Errorf("open event log %s: %w", logPath, err)
			continue
		}

		return &Logger{
			file:    f,
			enc:     json.NewEncoder(f),
			scanID:  scanID,
			logPath: logPath,
		}, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no writable events directory found")
	}
	return nil, lastErr
}

func candidateDirs(explicit string) []string {
	if strings.TrimSpace(explicit) != "" {
		return []string{explicit}
	}
	seen := make(map[string]bool)
	var dirs []string
	add := func(dir string) {
		dir = strings.TrimSpace(dir)
		if dir == "" || seen[dir] {
			return
		}
		seen[dir] = true
		dirs = append(dirs, dir)
	}

	add(os.Getenv("ROADSCAN_EVENTS_DIR"))
	if home, err := os.UserHomeDir(); err == nil {
		add(filepath.Join(home, ".local", "share", "roadscan", "events"))
	}
	add(filepath.Join(os.TempDir(), "roadscan", "events"))
	return dirs
}

// ErrNoLog is returned by Find when no directory holds the scan's log.
var ErrNoLog = errors.New("eventlog: no log for scan")

// Find locates the log written by New(dir, scanID).
func Find(dir, scanID string) (string, error) {
	for _, d := range candidateDirs(dir) {
		p := filepath.Join(d, scanID+".jsonl")
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w %s", ErrNoLog, scanID)
}

// Path returns the file being written.
func (l *Logger) Path() string { return l.logPath }

// Log appends one event. Write errors are dropped; the event log never
// fails a scan. A nil Logger is a no-op.
func (l *Logger) Log(t Type, data any) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.enc == nil {
		return
	}
	_ = l.enc.Encode(Event{
		Type:      t,
		Timestamp: time.Now(),
		ScanID:    l.scanID,
		Data:      data,
	})
}

// Close closes the file.
func (l *Logger) Close() {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		_ = l.file.Close()
		l.file = nil
		l.enc = nil
	}
}

// ReadRecent returns the last n events in path. n <= 0 returns all.
// Malformed lines are skipped.
func ReadRecent(path string, n int) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	defer f.Close()

	var events []Event
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 256*1024)
	for sc.Scan() {
		var evt Event
		if json.Unmarshal(sc.Bytes(), &evt) == nil {
			events = append(events, evt)
		}
	}
	if err := sc.Err(); err != nil {
		return events, fmt.Errorf("read event log: %w", err)
	}

	if n > 0 && len(events) > n {
		events = events[len(events)-n:]
	}
	return events, nil
}

// FormatEvents renders events one per line for terminal display.
func FormatEvents(events []Event, title string) string {
	if len(events) == 0 {
		return "No events recorded."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (%d events):\n", title, len(events))
	for _, evt := range events {
		ts := evt.Timestamp.Format("15:04:05")
		dataStr := ""
		switch d := evt.Data.(type) {
		case nil:
		case string:
			dataStr = truncate(d, 80)
		case map[string]any:
			if v, ok := d["verdict"].(string); ok {
				dataStr = "verdict=" + v
			} else if s, ok := d["stop"].(string); ok {
				dataStr = "stop=" + s
			} else if text, ok := d["text"].(string); ok {
				dataStr = truncate(text, 80)
			} else {
				raw, _ := json.Marshal(d)
				dataStr = truncate(string(raw), 80)
			}
		default:
			raw, _ := json.Marshal(d)
			dataStr = truncate(string(raw), 80)
		}
		if dataStr != "" {
			fmt.Fprintf(&sb, "  %s  %-10s  %s\n", ts, evt.Type, dataStr)
		} else {
			fmt.Fprintf(&sb, "  %s  %s\n", ts, evt.Type)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
