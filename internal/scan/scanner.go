// Package scan runs one road-risk classification: it samples host
// metrics, scores their entropy, builds the prompt, drives the chunked
// generator and reduces the output to a Verdict.
package scan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/qrs-ai/roadscan/internal/entropy"
	"github.com/qrs-ai/roadscan/internal/eventlog"
	"github.com/qrs-ai/roadscan/internal/generate"
	"github.com/qrs-ai/roadscan/internal/history"
	"github.com/qrs-ai/roadscan/internal/logging"
	"github.com/qrs-ai/roadscan/internal/metrics"
	"github.com/qrs-ai/roadscan/internal/provider"
)

// Recorder persists finished scans. *history.Store implements it.
type Recorder interface {
	Log(ctx context.Context, r history.Record) (int64, error)
}

// Config wires a Scanner. Backend is required; everything else has a
// default.
type Config struct {
	Backend    *provider.Exclusive
	Generation generate.Options
	Sampler    metrics.Sampler
	Scorer     entropy.Scorer
	History    Recorder
	// EventsDir is passed to eventlog.New; empty uses its defaults.
	EventsDir string
	// Events disables the per-scan JSONL log when false.
	Events bool
	Logger *logging.Logger
}

// Report is the result of one scan.
type Report struct {
	ID         string           `json:"id"`
	Time       time.Time        `json:"ts"`
	Verdict    Verdict          `json:"verdict"`
	Entropy    string           `json:"entropy"`
	Score      float64          `json:"score"`
	Raw        string           `json:"raw"`
	Stop       string           `json:"stop"`
	Iterations int              `json:"iterations"`
	Fix        Fix              `json:"fix"`
	Metrics    metrics.Snapshot `json:"metrics"`
	Backend    string           `json:"backend"`
	Duration   time.Duration    `json:"duration"`
	Err        string           `json:"error,omitempty"`
}

// Scanner runs scans. It is safe for concurrent use; scans against the
// shared backend are serialized by the Exclusive lease.
type Scanner struct {
	cfg   Config
	log   *logging.Logger
	newID func() string
	now   func() time.Time
}

func New(cfg Config) (*Scanner, error) {
	if cfg.Backend == nil {
		return nil, errors.New("scan: backend is required")
	}
	if err := cfg.Generation.Validate(); err != nil {
		return nil, err
	}
	if cfg.Sampler == nil {
		cfg.Sampler = metrics.NewSampler()
	}
	if cfg.Scorer == nil {
		cfg.Scorer = entropy.Circuit{}
	}
	log := cfg.Logger
	if log == nil {
		log = logging.Nop()
	}
	return &Scanner{cfg: cfg, log: log, newID: uuid.NewString, now: time.Now}, nil
}

// Scan classifies the road risk at fix. sink, when non-nil, receives each
// de-duplicated chunk as it is produced. A backend failure yields a Report
// with VerdictError and the error.
func (s *Scanner) Scan(ctx context.Context, fix Fix, sink generate.Sink) (*Report, error) {
	start := s.now()
	rep := &Report{
		ID:      s.newID(),
		Time:    start,
		Fix:     fix,
		Backend: s.cfg.Backend.Backend().Name(),
	}
	log := s.log.With("scan_id", rep.ID)

	events := s.openEvents(rep.ID, log)
	defer events.Close()
	events.Log(eventlog.ScanStart, map[string]any{"lat": fix.Lat, "lon": fix.Lon, "backend": rep.Backend})

	fail := func(err error) (*Report, error) {
		rep.Verdict = VerdictError
		rep.Err = err.Error()
		rep.Duration = s.now().Sub(start)
		events.Log(eventlog.Error, err.Error())
		log.Error("scan failed", "error", err)
		return rep, err
	}

	if !fix.Valid() {
		return fail(fmt.Errorf("scan: invalid fix %.6f,%.6f", fix.Lat, fix.Lon))
	}

	m, err := s.cfg.Sampler.Sample(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return fail(ctx.Err())
		}
		log.Warn("metrics unavailable, using defaults", "error", err)
	}
	rep.Metrics = m
	rep.Score = s.cfg.Scorer.Score(m.ToRGB())
	rep.Entropy = entropy.Summary(rep.Score)

	prompt := BuildRoadScannerPrompt(fix, m, rep.Entropy)

	backend, release, err := s.cfg.Backend.Acquire(ctx)
	if err != nil {
		return fail(fmt.Errorf("scan: wait for backend: %w", err))
	}
	gen, err := generate.New(backend, s.cfg.Generation, nil, log)
	if err != nil {
		release()
		return fail(err)
	}
	chunkEvents := generate.SinkFunc(func(text string) {
		events.Log(eventlog.Chunk, map[string]any{"text": text})
	})
	res, err := gen.GenerateTo(ctx, prompt, generate.MultiSink{sink, chunkEvents})
	release()

	rep.Raw = res.Text
	rep.Stop = res.Stop.String()
	rep.Iterations = res.Iterations
	events.Log(eventlog.Stop, map[string]any{"stop": rep.Stop, "iterations": rep.Iterations})
	if err != nil {
		return fail(err)
	}

	rep.Verdict = ExtractVerdict(res.Text)
	rep.Duration = s.now().Sub(start)
	events.Log(eventlog.Verdict, map[string]any{"verdict": string(rep.Verdict), "entropy": rep.Entropy})

	if s.cfg.History != nil {
		if _, err := s.cfg.History.Log(ctx, history.Record{
			Time:     start,
			ScanID:   rep.ID,
			Prompt:   prompt,
			Response: res.Text,
			Verdict:  string(rep.Verdict),
		}); err != nil {
			log.Warn("history write failed", "error", err)
		}
	}

	log.Info("scan complete",
		"verdict", rep.Verdict,
		"entropy", rep.Entropy,
		"iterations", rep.Iterations,
		"duration", rep.Duration)
	return rep, nil
}

func (s *Scanner) openEvents(id string, log *logging.Logger) *eventlog.Logger {
	if !s.cfg.Events {
		return nil
	}
	l, err := eventlog.New(s.cfg.EventsDir, id)
	if err != nil {
		log.Warn("event log disabled", "error", err)
		return nil
	}
	return l
}
