package scan

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/qrs-ai/roadscan/internal/entropy"
	"github.com/qrs-ai/roadscan/internal/eventlog"
	"github.com/qrs-ai/roadscan/internal/generate"
	"github.com/qrs-ai/roadscan/internal/history"
	"github.com/qrs-ai/roadscan/internal/metrics"
	"github.com/qrs-ai/roadscan/internal/provider"
)

func TestExtractVerdict(t *testing.T) {
	tests := []struct {
		in   string
		want Verdict
	}{
		{"Low", VerdictLow},
		{"HIGH", VerdictHigh},
		{"medium", VerdictMedium},
		// "low" is checked first regardless of position.
		{"the risk is medium, not low", VerdictLow},
		{"High risk, slow traffic", VerdictLow},
		{"medium to high", VerdictMedium},
		{"", VerdictMedium},
		{"no label here", VerdictMedium},
	}
	for _, tt := range tests {
		if got := ExtractVerdict(tt.in); got != tt.want {
			t.Errorf("ExtractVerdict(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildRoadScannerPrompt(t *testing.T) {
	p := BuildRoadScannerPrompt(DefaultFix, metrics.Default, "STABLE MANIFOLD 0.123")
	for _, want := range []string{
		"Location: GPS coordinates 40.712800, -74.006000",
		"sys_metrics: cpu=0.300 mem=0.400 load=0.200 temp=0.500 proc=0.100",
		"Quantum State: STABLE MANIFOLD 0.123",
		"[replytemplate]\nLow | Medium | High\n[/replytemplate]",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Contains(p, "%!") {
		t.Error("prompt has formatting errors")
	}
}

func TestFixValid(t *testing.T) {
	tests := []struct {
		fix  Fix
		want bool
	}{
		{DefaultFix, true},
		{Fix{Lat: 91}, false},
		{Fix{Lon: -181}, false},
		{Fix{Lat: -90, Lon: 180}, true},
	}
	for _, tt := range tests {
		if got := tt.fix.Valid(); got != tt.want {
			t.Errorf("%+v.Valid() = %v, want %v", tt.fix, got, tt.want)
		}
	}
}

type testEnv struct {
	scanner   *Scanner
	backend   *provider.Scripted
	store     *history.Store
	eventsDir string
}

func newTestEnv(t *testing.T, b *provider.Scripted) *testEnv {
	t.Helper()
	store, err := history.Open(filepath.Join(t.TempDir(), "h.db"), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	eventsDir := t.TempDir()
	s, err := New(Config{
		Backend:    provider.NewExclusive(b),
		Generation: generate.DefaultOptions(),
		Sampler:    metrics.Static(metrics.Default),
		Scorer:     entropy.ScorerFunc(func(metrics.RGB) float64 { return 0.6 }),
		History:    store,
		EventsDir:  eventsDir,
		Events:     true,
	})
	if err != nil {
		t.Fatal(err)
	}
	s.newID = func() string { return "scan-test" }
	return &testEnv{scanner: s, backend: b, store: store, eventsDir: eventsDir}
}

func TestScanner_Scan(t *testing.T) {
	env := newTestEnv(t, provider.NewScripted("High"))
	var chunks []string
	rep, err := env.scanner.Scan(context.Background(), DefaultFix, generate.SinkFunc(func(s string) {
		chunks = append(chunks, s)
	}))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if rep.Verdict != VerdictHigh {
		t.Errorf("Verdict = %q, want High", rep.Verdict)
	}
	if rep.Entropy != "TURBULENT FIELD 0.600" {
		t.Errorf("Entropy = %q", rep.Entropy)
	}
	if rep.Stop != "terminal-label-seen" || rep.Iterations != 1 {
		t.Errorf("Stop = %q iterations = %d", rep.Stop, rep.Iterations)
	}
	if rep.Backend != "scripted" || rep.ID != "scan-test" {
		t.Errorf("Backend = %q ID = %q", rep.Backend, rep.ID)
	}
	if diff := cmp.Diff([]string{"High"}, chunks); diff != "" {
		t.Errorf("chunks mismatch (-want +got):\n%s", diff)
	}

	prompt := env.backend.Requests()[0].Prompt
	if !strings.Contains(prompt, "Quantum State: TURBULENT FIELD 0.600") {
		t.Error("prompt missing entropy summary")
	}

	recs, err := env.store.Recent(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].Verdict != "High" || recs[0].ScanID != "scan-test" {
		t.Errorf("history = %+v", recs)
	}

	events, err := eventlog.ReadRecent(filepath.Join(env.eventsDir, "scan-test.jsonl"), 0)
	if err != nil {
		t.Fatal(err)
	}
	var types []eventlog.Type
	for _, e := range events {
		types = append(types, e.Type)
	}
	want := []eventlog.Type{eventlog.ScanStart, eventlog.Chunk, eventlog.Stop, eventlog.Verdict}
	if diff := cmp.Diff(want, types); diff != "" {
		t.Errorf("event types mismatch (-want +got):\n%s", diff)
	}
}

func TestScanner_BackendFailure(t *testing.T) {
	boom := errors.New("model missing")
	env := newTestEnv(t, provider.NewScripted().FailAt(0, boom))

	rep, err := env.scanner.Scan(context.Background(), DefaultFix, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if rep.Verdict != VerdictError || !strings.Contains(rep.Err, "model missing") {
		t.Errorf("report = %+v", rep)
	}
	if n, _ := env.store.Count(context.Background()); n != 0 {
		t.Errorf("failed scan was logged to history (%d rows)", n)
	}
}

func TestScanner_InvalidFix(t *testing.T) {
	env := newTestEnv(t, provider.NewScripted("Low"))
	rep, err := env.scanner.Scan(context.Background(), Fix{Lat: 200}, nil)
	if err == nil || rep.Verdict != VerdictError {
		t.Fatalf("rep = %+v err = %v", rep, err)
	}
	if env.backend.Calls() != 0 {
		t.Error("backend called for invalid fix")
	}
}

func TestScanner_DefaultVerdictOnUnlabelledOutput(t *testing.T) {
	env := newTestEnv(t, provider.NewScripted("uncertain"))
	rep, err := env.scanner.Scan(context.Background(), DefaultFix, nil)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Verdict != VerdictMedium || rep.Stop != "chunk-too-short" {
		t.Errorf("verdict = %q stop = %q", rep.Verdict, rep.Stop)
	}
}

func TestScanner_EventsDisabled(t *testing.T) {
	dir := t.TempDir()
	s, err := New(Config{
		Backend:    provider.NewExclusive(provider.NewScripted("Low")),
		Generation: generate.DefaultOptions(),
		Sampler:    metrics.Static(metrics.Default),
		EventsDir:  dir,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Scan(context.Background(), DefaultFix, nil); err != nil {
		t.Fatal(err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("events written while disabled: %v", entries)
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{Generation: generate.DefaultOptions()}); err == nil {
		t.Error("expected error without backend")
	}
	_, err := New(Config{Backend: provider.NewExclusive(provider.NewScripted())})
	if !errors.Is(err, generate.ErrInvalidOptions) {
		t.Errorf("zero options: err = %v", err)
	}
}
