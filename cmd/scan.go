package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/qrs-ai/roadscan/internal/config"
	"github.com/qrs-ai/roadscan/internal/entropy"
	"github.com/qrs-ai/roadscan/internal/generate"
	"github.com/qrs-ai/roadscan/internal/metrics"
	"github.com/qrs-ai/roadscan/internal/output"
	"github.com/qrs-ai/roadscan/internal/punkd"
	"github.com/qrs-ai/roadscan/internal/scan"
)

type scanFlags struct {
	lat, lon  float64
	dryRun    bool
	jsonOut   bool
	full      bool
	stream    bool
	noHistory bool
	noReady   bool
}

func newScanCmd() *cobra.Command {
	var f scanFlags

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one road risk scan",
		Example: `  roadscan scan
  roadscan scan --lat 51.5072 --lon -0.1276 --profile aggressive
  roadscan scan --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := initConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("lat") {
				cfg.GPS.Lat = f.lat
			}
			if cmd.Flags().Changed("lon") {
				cfg.GPS.Lon = f.lon
			}
			if !cmd.Flags().Changed("stream") {
				f.stream = !f.jsonOut && term.IsTerminal(int(os.Stderr.Fd()))
			}
			if f.dryRun {
				return runDryRun(cmd.Context(), cfg)
			}
			return runScan(cmd.Context(), cfg, f)
		},
	}

	cmd.Flags().Float64Var(&f.lat, "lat", 0, "latitude (default from gps.lat)")
	cmd.Flags().Float64Var(&f.lon, "lon", 0, "longitude (default from gps.lon)")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "print the boosted prompt and sampling settings without calling the backend")
	cmd.Flags().BoolVar(&f.jsonOut, "json", false, `emit {"verdict","entropy"} JSON on stdout`)
	cmd.Flags().BoolVar(&f.full, "full", false, "with --json, emit the full scan report")
	cmd.Flags().BoolVar(&f.stream, "stream", false, "show generated text as it arrives (default: on when stderr is a terminal)")
	cmd.Flags().BoolVar(&f.noHistory, "no-history", false, "do not record this scan in the history database")
	cmd.Flags().BoolVar(&f.noReady, "no-wait", false, "skip the backend readiness probe")

	return cmd
}

func newIO(jsonOut, full, stream bool) output.IO {
	if jsonOut {
		return output.NewJSONIO(full)
	}
	return output.NewPlainIO(stream)
}

func runScan(ctx context.Context, cfg *config.Config, f scanFlags) error {
	a, err := newApp(ctx, cfg, appOptions{noHistory: f.noHistory})
	if err != nil {
		return err
	}
	defer a.Close()

	ui := newIO(f.jsonOut, f.full, f.stream)
	if !f.noReady {
		if err := a.waitReady(ctx, readyNotice(ui)); err != nil {
			ui.Verdict(&scan.Report{Verdict: scan.VerdictError, Err: err.Error()})
			return fmt.Errorf("backend %s not ready: %w", a.backend.Name(), err)
		}
	}

	fix := a.fix()
	ui.ScanStart(fix, a.backend.Name())
	rep, err := a.scanner.Scan(ctx, fix, ui)
	ui.Verdict(rep)
	return err
}

func readyNotice(ui output.IO) func(int, time.Duration, error) {
	return func(attempt int, wait time.Duration, err error) {
		ui.System(fmt.Sprintf("backend not ready (attempt %d): %v; retrying in %s", attempt, err, wait.Round(time.Millisecond)))
	}
}

// runDryRun shows exactly what the first chunk request would carry.
func runDryRun(ctx context.Context, cfg *config.Config) error {
	opts := cfg.Options()
	m, err := metrics.NewSampler().Sample(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "metrics unavailable, using defaults: %v\n", err)
		m = metrics.Default
	}
	score := entropy.Circuit{}.Score(m.ToRGB())
	fix := scan.Fix{Lat: cfg.GPS.Lat, Lon: cfg.GPS.Lon}
	if !fix.Valid() {
		return fmt.Errorf("invalid fix %.6f,%.6f", fix.Lat, fix.Lon)
	}
	prompt := scan.BuildRoadScannerPrompt(fix, m, entropy.Summary(score))

	weights := punkd.Analyze(prompt, opts.TopN)
	boosted, mult := punkd.Apply(prompt, weights, opts.Profile)

	fmt.Println(boosted)
	fmt.Fprintln(os.Stderr)
	fmt.Fprintf(os.Stderr, "provider=%s profile=%s multiplier=%.3f temperature=%.3f iterations<=%d\n",
		cfg.Provider, opts.Profile, mult,
		generate.Temperature(opts.BaseTemperature, mult),
		generate.Iterations(opts.MaxTotalTokens, opts.ChunkTokens))
	return nil
}
