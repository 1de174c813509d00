package generate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/qrs-ai/roadscan/internal/provider"
	"github.com/qrs-ai/roadscan/internal/punkd"
)

const testPrompt = "Classify the road: ice and wet surface, flood warning."

func newGenerator(t *testing.T, b provider.Backend, opts Options, sink Sink) *Generator {
	t.Helper()
	g, err := New(b, opts, sink, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return g
}

func TestGenerate_TerminalLabelFirstCall(t *testing.T) {
	b := provider.NewScripted("Low", "never used")
	res, err := newGenerator(t, b, DefaultOptions(), nil).Generate(context.Background(), testPrompt)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Text != "Low" {
		t.Errorf("Text = %q, want Low", res.Text)
	}
	if res.Stop != StopTerminalLabel {
		t.Errorf("Stop = %v, want %v", res.Stop, StopTerminalLabel)
	}
	if res.Iterations != 1 || b.Calls() != 1 {
		t.Errorf("iterations = %d, calls = %d, want 1", res.Iterations, b.Calls())
	}
}

func TestGenerate_RespectsIterationCap(t *testing.T) {
	b := provider.NewScripted(
		"one two three four",
		"five six seven eight",
		"nine ten eleven twelve",
		"thirteen fourteen fifteen sixteen",
		"extra words never used",
	)
	opts := DefaultOptions()
	opts.MaxTotalTokens = 100
	opts.ChunkTokens = 30

	res, err := newGenerator(t, b, opts, nil).Generate(context.Background(), testPrompt)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if b.Calls() != 4 {
		t.Fatalf("backend calls = %d, want 4", b.Calls())
	}
	if res.Stop != StopBudget {
		t.Errorf("Stop = %v, want %v", res.Stop, StopBudget)
	}
	want := "one two three fourfive six seven eightnine ten eleven twelvethirteen fourteen fifteen sixteen"
	if res.Text != want {
		t.Errorf("Text = %q, want %q", res.Text, want)
	}
}

func TestGenerate_OverlapAndSinkRemainder(t *testing.T) {
	b := provider.NewScripted("the black ice on the road", "on the road ahead is High")
	var got []string
	sink := SinkFunc(func(s string) { got = append(got, s) })

	res, err := newGenerator(t, b, DefaultOptions(), sink).Generate(context.Background(), testPrompt)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if b.Calls() != 2 {
		t.Fatalf("backend calls = %d, want 2", b.Calls())
	}
	if diff := cmp.Diff([]string{"the black ice on the road", " ahead is High"}, got); diff != "" {
		t.Errorf("sink chunks mismatch (-want +got):\n%s", diff)
	}
	if res.Text != "the black ice on the road ahead is High" {
		t.Errorf("Text = %q", res.Text)
	}
	if res.Stop != StopTerminalLabel {
		t.Errorf("Stop = %v", res.Stop)
	}
	if len(res.Chunks) != 2 {
		t.Fatalf("chunks = %d, want 2", len(res.Chunks))
	}
	if res.Chunks[1].Overlap != len("on the road") {
		t.Errorf("overlap = %d, want %d", res.Chunks[1].Overlap, len("on the road"))
	}
}

func TestGenerate_EmptyResponse(t *testing.T) {
	tests := []struct {
		name string
		resp provider.Response
	}{
		{"whitespace", &provider.TextResponse{Text: "  \n\t"}},
		{"no choices", &provider.ChoicesResponse{}},
		{"malformed json", &provider.JSONResponse{Body: []byte("{oops")}},
		{"unrecognized", &provider.UnrecognizedResponse{Value: 3.14}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := provider.NewScriptedResponses(tt.resp)
			res, err := newGenerator(t, b, DefaultOptions(), nil).Generate(context.Background(), testPrompt)
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			if res.Stop != StopEmpty || res.Text != "" || res.Iterations != 1 {
				t.Errorf("got stop=%v text=%q iterations=%d", res.Stop, res.Text, res.Iterations)
			}
		})
	}
}

func TestGenerate_ShortChunkStops(t *testing.T) {
	b := provider.NewScripted("probably moderate", "never used")
	res, err := newGenerator(t, b, DefaultOptions(), nil).Generate(context.Background(), testPrompt)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Stop != StopShortChunk || res.Text != "probably moderate" {
		t.Errorf("got stop=%v text=%q", res.Stop, res.Text)
	}
}

func TestGenerate_ShortChunkThresholdScalesWithChunk(t *testing.T) {
	// chunk_tokens 80 raises the minimum to 8 words.
	b := provider.NewScripted("a b c d e f g", "never used")
	opts := DefaultOptions()
	opts.ChunkTokens = 80
	res, _ := newGenerator(t, b, opts, nil).Generate(context.Background(), testPrompt)
	if res.Stop != StopShortChunk || b.Calls() != 1 {
		t.Errorf("stop=%v calls=%d", res.Stop, b.Calls())
	}
}

func TestGenerate_DefaultMinimumIsSixWords(t *testing.T) {
	tests := []struct {
		chunk string
		calls int
		stop  StopCondition
	}{
		{"one two three four five", 1, StopShortChunk},
		{"one two three four five six", 2, StopTerminalLabel},
	}
	for _, tt := range tests {
		b := provider.NewScripted(tt.chunk, "High")
		res, err := newGenerator(t, b, DefaultOptions(), nil).Generate(context.Background(), testPrompt)
		if err != nil {
			t.Fatal(err)
		}
		if b.Calls() != tt.calls || res.Stop != tt.stop {
			t.Errorf("%q: calls=%d stop=%v, want %d %v", tt.chunk, b.Calls(), res.Stop, tt.calls, tt.stop)
		}
	}
}

func TestGenerate_RequestShape(t *testing.T) {
	b := provider.NewScripted("one two three four five six", "Medium")
	opts := DefaultOptions()
	_, err := newGenerator(t, b, opts, nil).Generate(context.Background(), testPrompt)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	reqs := b.Requests()
	if len(reqs) != 2 {
		t.Fatalf("requests = %d, want 2", len(reqs))
	}

	weights := punkd.Analyze(testPrompt, opts.TopN)
	firstPrompt, mult := punkd.Apply(testPrompt, weights, opts.Profile)
	if reqs[0].Prompt != firstPrompt {
		t.Errorf("first prompt = %q, want %q", reqs[0].Prompt, firstPrompt)
	}
	if reqs[0].Temperature != Temperature(opts.BaseTemperature, mult) {
		t.Errorf("temperature = %v", reqs[0].Temperature)
	}
	if reqs[0].MaxTokens != opts.ChunkTokens {
		t.Errorf("MaxTokens = %d, want %d", reqs[0].MaxTokens, opts.ChunkTokens)
	}
	if diff := cmp.Diff(StopSequences, reqs[0].Stop); diff != "" {
		t.Errorf("stop mismatch (-want +got):\n%s", diff)
	}

	wantNext := testPrompt + "\n\nAssistant so far:\none two three four five six\n\nContinue:"
	if !strings.HasPrefix(reqs[1].Prompt, wantNext) {
		t.Errorf("second prompt = %q, want prefix %q", reqs[1].Prompt, wantNext)
	}
	// Weights come from the original prompt, so the marker never changes.
	marker := punkd.Marker(weights)
	if !strings.HasSuffix(reqs[1].Prompt, marker) {
		t.Errorf("second prompt does not end with original marker %q", marker)
	}
}

func TestGenerate_BackendError(t *testing.T) {
	boom := errors.New("model not loaded")
	b := provider.NewScripted("one two three four five six").FailAt(1, boom)
	res, err := newGenerator(t, b, DefaultOptions(), nil).Generate(context.Background(), testPrompt)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if res.Stop != StopError || res.Text != "one two three four five six" || res.Iterations != 2 {
		t.Errorf("partial result = %+v", res)
	}
}

func TestGenerate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := provider.NewScripted("Low")
	res, err := newGenerator(t, b, DefaultOptions(), nil).Generate(ctx, testPrompt)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if res.Stop != StopCancelled || b.Calls() != 0 {
		t.Errorf("stop=%v calls=%d", res.Stop, b.Calls())
	}
}

func TestGenerate_TemperatureClamped(t *testing.T) {
	b := provider.NewScripted("High")
	opts := DefaultOptions()
	opts.BaseTemperature = 5
	if _, err := newGenerator(t, b, opts, nil).Generate(context.Background(), testPrompt); err != nil {
		t.Fatal(err)
	}
	if got := b.Requests()[0].Temperature; got != 2.0 {
		t.Errorf("temperature = %v, want 2.0", got)
	}
}

func TestNew_InvalidOptions(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Options)
	}{
		{"zero total", func(o *Options) { o.MaxTotalTokens = 0 }},
		{"negative chunk", func(o *Options) { o.ChunkTokens = -1 }},
		{"negative top_n", func(o *Options) { o.TopN = -2 }},
		{"negative overlap", func(o *Options) { o.OverlapWindow = -1 }},
		{"tail shorter than overlap", func(o *Options) { o.TailWindow = 10 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.modify(&opts)
			if _, err := New(provider.NewScripted(), opts, nil, nil); !errors.Is(err, ErrInvalidOptions) {
				t.Errorf("err = %v, want ErrInvalidOptions", err)
			}
		})
	}
	if _, err := New(nil, DefaultOptions(), nil, nil); !errors.Is(err, ErrInvalidOptions) {
		t.Errorf("nil backend: err = %v", err)
	}
}

func TestChunkedGenerate(t *testing.T) {
	text, err := ChunkedGenerate(context.Background(), provider.NewScripted("  High  "), testPrompt, DefaultOptions(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if text != "High" {
		t.Errorf("text = %q", text)
	}
	if _, err := ChunkedGenerate(context.Background(), provider.NewScripted(), testPrompt, Options{}, nil); !errors.Is(err, ErrInvalidOptions) {
		t.Errorf("zero options: err = %v", err)
	}
}

func TestIterations(t *testing.T) {
	tests := []struct {
		total, chunk, want int
	}{
		{256, 64, 4},
		{100, 30, 4},
		{10, 64, 1},
		{64, 64, 1},
		{65, 64, 2},
		{0, 64, 1},
		{64, 0, 1},
	}
	for _, tt := range tests {
		if got := Iterations(tt.total, tt.chunk); got != tt.want {
			t.Errorf("Iterations(%d, %d) = %d, want %d", tt.total, tt.chunk, got, tt.want)
		}
	}
}

func TestStopConditionString(t *testing.T) {
	tests := map[StopCondition]string{
		StopBudget:        "budget-exhausted",
		StopEmpty:         "backend-returned-empty",
		StopTerminalLabel: "terminal-label-seen",
		StopShortChunk:    "chunk-too-short",
	}
	for s, want := range tests {
		if s.String() != want {
			t.Errorf("%d.String() = %q, want %q", s, s.String(), want)
		}
	}
}
