package cmd

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/qrs-ai/roadscan/internal/provider"
	"github.com/qrs-ai/roadscan/internal/server"
)

func newServeCmd() *cobra.Command {
	var (
		addr    string
		origins []string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve scans over HTTP",
		Long: "serve exposes GET /healthz, GET /api/status, POST /api/scan, GET /api/scan/stream (SSE)\n" +
			"and GET /api/history. Scans are serialized against the single backend.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := initConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Serve.Addr = addr
			}
			if len(origins) > 0 {
				cfg.Serve.CORSOrigins = origins
			}

			a, err := newApp(cmd.Context(), cfg, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			if !strings.EqualFold(cfg.Log.Level, "debug") {
				gin.SetMode(gin.ReleaseMode)
			}

			scfg := server.Config{
				Addr:        cfg.Serve.Addr,
				CORSOrigins: cfg.Serve.CORSOrigins,
				DefaultFix:  a.fix(),
				ScanTimeout: cfg.Serve.ScanTimeout,
				Logger:      a.log,
			}
			if p, ok := a.backend.(provider.Pinger); ok {
				scfg.Ready = func(ctx context.Context) error { return p.Ping(ctx) }
			}
			if a.store != nil {
				scfg.History = a.store
			}
			return server.New(a.scanner, scfg).Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from serve.addr)")
	cmd.Flags().StringSliceVar(&origins, "cors-origin", nil, "allowed CORS origin (repeatable)")

	return cmd
}
