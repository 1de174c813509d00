package eventlog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	dir := t.TempDir()
	l, err := New(dir, "scan-1")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	if l.Path() != filepath.Join(dir, "scan-1.jsonl") {
		t.Fatalf("unexpected path %q", l.Path())
	}
	if l.file == nil {
		t.Fatal("expected non-nil file handle")
	}
}

func TestNew_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ROADSCAN_EVENTS_DIR", dir)
	l, err := New("", "scan-env")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	if filepath.Dir(l.Path()) != dir {
		t.Fatalf("expected log in %s, got %s", dir, l.Path())
	}
}

func TestLogAndReadRecent(t *testing.T) {
	l, err := New(t.TempDir(), "scan-2")
	if err != nil {
		t.Fatal(err)
	}

	l.Log(ScanStart, map[string]any{"lat": 40.7128, "lon": -74.006})
	l.Log(Chunk, map[string]any{"text": "wet road"})
	l.Log(Chunk, map[string]any{"text": " ahead"})
	l.Log(Stop, map[string]any{"stop": "terminal-label-seen"})
	l.Log(Verdict, map[string]any{"verdict": "High"})
	l.Close()

	all, err := ReadRecent(l.Path(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 5 {
		t.Fatalf("expected 5 events, got %d", len(all))
	}
	if all[0].ScanID != "scan-2" {
		t.Errorf("ScanID = %q", all[0].ScanID)
	}

	recent, err := ReadRecent(l.Path(), 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 || recent[0].Type != Stop || recent[1].Type != Verdict {
		t.Fatalf("unexpected recent events: %+v", recent)
	}
}

func TestLogAfterCloseAndNil(t *testing.T) {
	l, err := New(t.TempDir(), "scan-3")
	if err != nil {
		t.Fatal(err)
	}
	l.Close()
	l.Log(Error, "ignored")
	l.Close()

	var nilLogger *Logger
	nilLogger.Log(Error, "ignored")
	nilLogger.Close()
}

func TestReadRecent_SkipsMalformed(t *testing.T) {
	p := filepath.Join(t.TempDir(), "bad.jsonl")
	content := `{"type":"chunk","ts":"2026-01-01T00:00:00Z","scan_id":"x"}
not json
{"type":"stop","ts":"2026-01-01T00:00:01Z","scan_id":"x"}
`
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	events, err := ReadRecent(p, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
}

func TestFormatEvents(t *testing.T) {
	if got := FormatEvents(nil, "Events"); got != "No events recorded." {
		t.Fatalf("empty: %q", got)
	}

	ts := time.Date(2026, 1, 1, 9, 30, 0, 0, time.UTC)
	out := FormatEvents([]Event{
		{Type: ScanStart, Timestamp: ts},
		{Type: Chunk, Timestamp: ts, Data: map[string]any{"text": "wet"}},
		{Type: Stop, Timestamp: ts, Data: map[string]any{"stop": "chunk-too-short"}},
		{Type: Verdict, Timestamp: ts, Data: map[string]any{"verdict": "Low"}},
		{Type: Error, Timestamp: ts, Data: strings.Repeat("x", 100)},
	}, "Scan")

	for _, want := range []string{
		"Scan (5 events):",
		"09:30:00  scan_start",
		"wet",
		"stop=chunk-too-short",
		"verdict=Low",
		strings.Repeat("x", 80) + "...",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestFind(t *testing.T) {
	dir := t.TempDir()
	l, err := New(dir, "scan-find")
	if err != nil {
		t.Fatal(err)
	}
	l.Close()

	got, err := Find(dir, "scan-find")
	if err != nil || got != l.Path() {
		t.Fatalf("Find() = %q, %v", got, err)
	}
	if _, err := Find(dir, "missing"); !errors.Is(err, ErrNoLog) {
		t.Errorf("expected ErrNoLog, got %v", err)
	}
}
