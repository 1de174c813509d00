// Package generate drives a text-completion backend across several bounded
// calls, stitching overlapping chunks together and stopping as soon as the
// model has settled on a terminal label.
//
// Within one session calls are strictly sequential: every re-prompt embeds
// the text assembled so far, so chunk i+1 depends on chunk i.
package generate

import (
	"context"
	"fmt"
	"strings"

	"github.com/qrs-ai/roadscan/internal/logging"
	"github.com/qrs-ai/roadscan/internal/provider"
	"github.com/qrs-ai/roadscan/internal/punkd"
)

// Chunk describes one backend call of a session.
type Chunk struct {
	Index       int
	Raw         string // extracted text, trimmed
	Appended    string // remainder after overlap removal
	Overlap     int
	Temperature float64
	Multiplier  float64
}

// Result is the outcome of one session.
type Result struct {
	Text       string
	Stop       StopCondition
	Iterations int // backend calls made
	Chunks     []Chunk
}

// Generator runs sessions against one backend. It holds no per-session
// state and may be reused, but not concurrently against a backend that
// needs exclusive access (see provider.Exclusive).
type Generator struct {
	backend provider.Backend
	opts    Options
	sink    Sink
	log     *logging.Logger
}

// New validates opts and returns a Generator. sink and log may be nil.
func New(backend provider.Backend, opts Options, sink Sink, log *logging.Logger) (*Generator, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: nil backend", ErrInvalidOptions)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Generator{backend: backend, opts: opts, sink: sink, log: log}, nil
}

// Options returns the session options.
func (g *Generator) Options() Options { return g.opts }

// Generate runs one session. The returned Result is never nil: on a backend
// failure or cancellation it carries the text assembled before the error.
func (g *Generator) Generate(ctx context.Context, prompt string) (*Result, error) {
	return g.run(ctx, prompt, g.sink)
}

// GenerateTo is Generate with a per-call sink in place of the configured one.
func (g *Generator) GenerateTo(ctx context.Context, prompt string, sink Sink) (*Result, error) {
	return g.run(ctx, prompt, sink)
}

func (g *Generator) run(ctx context.Context, prompt string, sink Sink) (*Result, error) {
	o := g.opts
	weights := punkd.Analyze(prompt, o.TopN)
	iterations := Iterations(o.MaxTotalTokens, o.ChunkTokens)

	var assembled strings.Builder
	res := &Result{Stop: StopBudget}
	cur := prompt
	tail := ""

	finish := func(stop StopCondition) {
		res.Stop = stop
		res.Text = strings.TrimSpace(assembled.String())
		g.log.Info("generation stopped",
			"backend", g.backend.Name(),
			"stop", stop.String(),
			"iterations", res.Iterations,
			"chars", len(res.Text))
	}

	for i := range iterations {
		if err := ctx.Err(); err != nil {
			finish(StopCancelled)
			return res, err
		}

		patched, mult := punkd.Apply(cur, weights, o.Profile)
		temp := Temperature(o.BaseTemperature, mult)

		resp, err := g.backend.Generate(ctx, &provider.Request{
			Prompt:      patched,
			MaxTokens:   o.ChunkTokens,
			Temperature: temp,
			Stop:        append([]string(nil), StopSequences...),
		})
		res.Iterations++
		if err != nil {
			finish(StopError)
			return res, fmt.Errorf("generate: chunk %d: %w", i, err)
		}

		text := strings.TrimSpace(provider.ExtractText(resp))
		if text == "" {
			finish(StopEmpty)
			return res, nil
		}

		appended, overlap := Stitch(tail, text, o.OverlapWindow)
		assembled.WriteString(appended)
		tail = lastRunes(assembled.String(), o.TailWindow)

		res.Chunks = append(res.Chunks, Chunk{
			Index:       i,
			Raw:         text,
			Appended:    appended,
			Overlap:     overlap,
			Temperature: temp,
			Multiplier:  mult,
		})
		g.log.Debug("chunk",
			"iteration", i,
			"overlap", overlap,
			"appended", len(appended),
			"temperature", temp)

		if sink != nil {
			sink.Chunk(appended)
		}

		if endsWithLabel(assembled.String()) {
			finish(StopTerminalLabel)
			return res, nil
		}
		if len(strings.Fields(text)) < o.minWords() {
			finish(StopShortChunk)
			return res, nil
		}

		cur = prompt + "\n\nAssistant so far:\n" + assembled.String() + "\n\nContinue:"
	}

	finish(StopBudget)
	return res, nil
}

// ChunkedGenerate runs a single session and returns the trimmed assembled
// text.
func ChunkedGenerate(ctx context.Context, backend provider.Backend, prompt string, opts Options, sink Sink) (string, error) {
	g, err := New(backend, opts, sink, nil)
	if err != nil {
		return "", err
	}
	res, err := g.Generate(ctx, prompt)
	return res.Text, err
}
