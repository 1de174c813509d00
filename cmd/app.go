package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/qrs-ai/roadscan/internal/config"
	"github.com/qrs-ai/roadscan/internal/history"
	"github.com/qrs-ai/roadscan/internal/logging"
	"github.com/qrs-ai/roadscan/internal/metrics"
	"github.com/qrs-ai/roadscan/internal/provider"
	"github.com/qrs-ai/roadscan/internal/scan"
	"github.com/qrs-ai/roadscan/internal/vault"
)

// app bundles everything a scanning command needs.
type app struct {
	cfg     *config.Config
	log     *logging.Logger
	backend provider.Backend
	lease   *provider.Exclusive
	store   *history.Store
	scanner *scan.Scanner
}

type appOptions struct {
	// noHistory skips opening the interaction log.
	noHistory bool
}

func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	log, err := logging.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log}

	a.backend, err = buildBackend(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.lease = provider.NewExclusive(a.backend)

	if !cfg.History.Disabled && !opts.noHistory {
		a.store, err = openHistory(cfg)
		if err != nil {
			// A broken history database must not block scanning.
			log.Warn("history disabled", "error", err)
		}
	}

	scfg := scan.Config{
		Backend:    a.lease,
		Generation: cfg.Options(),
		Sampler:    metrics.NewSampler(),
		EventsDir:  cfg.Events.Dir,
		Events:     !cfg.Events.Disabled,
		Logger:     log,
	}
	if a.store != nil {
		scfg.History = a.store
	}
	a.scanner, err = scan.New(scfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// openHistory opens the SQLite log, sealing text when history.encrypt is set.
func openHistory(cfg *config.Config) (*history.Store, error) {
	var sealer history.Sealer
	if cfg.History.Encrypt {
		v, err := vault.Open(cfg.KeyPath())
		if err != nil {
			return nil, fmt.Errorf("open vault: %w", err)
		}
		sealer = v
	}
	return history.Open(cfg.HistoryPath(), sealer)
}

// waitReady blocks until the backend answers its readiness probe. Backends
// without a probe are assumed ready.
func (a *app) waitReady(ctx context.Context, onRetry func(attempt int, wait time.Duration, err error)) error {
	p, ok := a.backend.(provider.Pinger)
	if !ok {
		return nil
	}
	return provider.WaitReady(ctx, p, readyPolicy(a.cfg), onRetry)
}

func readyPolicy(cfg *config.Config) provider.ReadyPolicy {
	p := provider.DefaultReadyPolicy
	if cfg.Ready.Attempts > 0 {
		p.Attempts = cfg.Ready.Attempts
	}
	if cfg.Ready.BaseDelay > 0 {
		p.BaseDelay = cfg.Ready.BaseDelay
	}
	if cfg.Ready.MaxDelay > 0 {
		p.MaxDelay = cfg.Ready.MaxDelay
	}
	return p
}

func (a *app) fix() scan.Fix {
	return scan.Fix{Lat: a.cfg.GPS.Lat, Lon: a.cfg.GPS.Lon}
}

func (a *app) Close() {
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.log != nil {
		a.log.Sync()
	}
}
