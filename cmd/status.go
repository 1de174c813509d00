package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qrs-ai/roadscan/internal/output"
	"github.com/qrs-ai/roadscan/internal/scan"
)

func newStatusCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Probe the configured backend",
		Long:  `status waits for the backend to become ready and prints {"verdict":"READY","entropy":"QRS Online"} when it answers.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := initConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, appOptions{noHistory: true})
			if err != nil {
				return err
			}
			defer a.Close()

			pc := cfg.Resolved()
			err = a.waitReady(cmd.Context(), readyNotice(output.NewPlainIO(false)))
			if !jsonOut {
				fmt.Printf("roadscan %s\n", displayVersion())
				fmt.Printf("backend:  %s (%s)\n", a.backend.Name(), a.backend.DefaultModel())
				if pc.BaseURL != "" {
					fmt.Printf("endpoint: %s\n", pc.BaseURL)
				}
			}
			if err != nil {
				r := output.Result{Verdict: string(scan.VerdictError), Entropy: err.Error()}
				if jsonOut {
					output.NewJSONIO(false).Emit(r)
				} else {
					fmt.Printf("state:    %s\n", output.StyleVerdict(scan.VerdictError))
				}
				return errors.New("backend unavailable")
			}
			if jsonOut {
				output.NewJSONIO(false).Emit(output.Ready)
			} else {
				fmt.Printf("state:    %s %s\n", output.Ready.Verdict, output.Ready.Entropy)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit the status as a JSON line")
	return cmd
}
