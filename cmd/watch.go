package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/qrs-ai/roadscan/internal/output"
)

func newWatchCmd() *cobra.Command {
	var (
		interval time.Duration
		count    int
		jsonOut  bool
		stream   bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Scan repeatedly on an interval",
		Long: "watch runs a scan immediately and then once per interval until interrupted.\n" +
			"Scans never overlap; a tick that fires while a scan is running is skipped.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := initConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("interval") {
				cfg.Watch.Interval = interval
			}
			if cfg.Watch.Interval <= 0 {
				return fmt.Errorf("--interval must be positive")
			}

			a, err := newApp(cmd.Context(), cfg, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()
			return runWatch(cmd.Context(), a, cfg.Watch.Interval, count, newIO(jsonOut, false, stream))
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 0, "time between scans (default from watch.interval)")
	cmd.Flags().IntVarP(&count, "count", "n", 0, "stop after this many scans (0 = until interrupted)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit one JSON verdict line per scan")
	cmd.Flags().BoolVar(&stream, "stream", false, "show generated text as it arrives")

	return cmd
}

// runWatch pairs a ticker goroutine with a single scanning goroutine. The
// ticks channel is unbuffered so a slow scan drops ticks instead of queueing.
func runWatch(ctx context.Context, a *app, interval time.Duration, count int, ui output.IO) error {
	if err := a.waitReady(ctx, readyNotice(ui)); err != nil {
		return fmt.Errorf("backend %s not ready: %w", a.backend.Name(), err)
	}

	eg, egCtx := errgroup.WithContext(ctx)
	ticks := make(chan time.Time)

	eg.Go(func() error {
		defer close(ticks)
		t := time.NewTicker(interval)
		defer t.Stop()
		select {
		case ticks <- time.Now():
		case <-egCtx.Done():
			return nil
		}
		for {
			select {
			case <-egCtx.Done():
				return nil
			case now := <-t.C:
				select {
				case ticks <- now:
				default:
					a.log.Debug("scan still running, tick skipped")
				}
			}
		}
	})

	eg.Go(func() error {
		done := 0
		for range ticks {
			fix := a.fix()
			ui.ScanStart(fix, a.backend.Name())
			rep, err := a.scanner.Scan(egCtx, fix, ui)
			ui.Verdict(rep)
			if err != nil {
				if egCtx.Err() != nil {
					return nil
				}
				a.log.Warn("watch scan failed", "error", err)
			}
			done++
			if count > 0 && done >= count {
				return errWatchDone
			}
		}
		return nil
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, errWatchDone) {
		return err
	}
	return nil
}

var errWatchDone = errors.New("watch: scan count reached")
