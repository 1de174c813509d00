package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/qrs-ai/roadscan/internal/eventlog"
	"github.com/qrs-ai/roadscan/internal/history"
	"github.com/qrs-ai/roadscan/internal/output"
	"github.com/qrs-ai/roadscan/internal/scan"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the scan history",
	}
	cmd.AddCommand(newHistoryListCmd())
	cmd.AddCommand(newHistoryShowCmd())
	cmd.AddCommand(newHistoryClearCmd())
	cmd.AddCommand(newHistoryEventsCmd())
	return cmd
}

func withStore(fn func(*history.Store) error) error {
	cfg, err := initConfig()
	if err != nil {
		return err
	}
	store, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func newHistoryListCmd() *cobra.Command {
	var (
		n       int
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent scans, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(s *history.Store) error {
				recs, err := s.Recent(cmd.Context(), n)
				if err != nil {
					return err
				}
				return printRecords(os.Stdout, recs, jsonOut)
			})
		},
	}
	cmd.Flags().IntVarP(&n, "limit", "n", 20, "number of rows")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit JSON lines")
	return cmd
}

func printRecords(w io.Writer, recs []history.Record, jsonOut bool) error {
	if jsonOut {
		enc := json.NewEncoder(w)
		for _, r := range recs {
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
		return nil
	}
	if len(recs) == 0 {
		fmt.Fprintln(w, "No scans recorded.")
		return nil
	}
	for _, r := range recs {
		verdict := output.StyleVerdict(scan.Verdict(r.Verdict))
		note := ""
		if r.Sealed {
			note = "  (sealed)"
		}
		fmt.Fprintf(w, "%5d  %s  %-8s %s%s\n", r.ID, r.Time.Local().Format(time.DateTime), verdict, r.ScanID, note)
	}
	return nil
}

func newHistoryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show the prompt and response of one scan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q", args[0])
			}
			return withStore(func(s *history.Store) error {
				r, err := s.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				if r.Sealed {
					return fmt.Errorf("record %d is sealed; enable history.encrypt with the original key", id)
				}
				fmt.Printf("id:       %d\nscan:     %s\ntime:     %s\nverdict:  %s\n\n",
					r.ID, r.ScanID, r.Time.Local().Format(time.RFC3339), r.Verdict)
				fmt.Printf("--- prompt ---\n%s\n\n--- response ---\n%s\n", r.Prompt, r.Response)
				return nil
			})
		},
	}
}

func newHistoryClearCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every recorded scan",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				fmt.Print("Delete all scan history? [y/N]: ")
				answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
				if strings.ToLower(strings.TrimSpace(answer)) != "y" {
					fmt.Println("Aborted.")
					return nil
				}
			}
			return withStore(func(s *history.Store) error {
				n, err := s.Clear(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Printf("Deleted %d record(s).\n", n)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func newHistoryEventsCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "events SCAN_ID",
		Short: "Show the event log of one scan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := initConfig()
			if err != nil {
				return err
			}
			path, err := eventlog.Find(cfg.Events.Dir, args[0])
			if err != nil {
				return err
			}
			events, err := eventlog.ReadRecent(path, n)
			if err != nil {
				return err
			}
			fmt.Print(eventlog.FormatEvents(events, "scan "+args[0]))
			return nil
		},
	}
	cmd.Flags().IntVarP(&n, "limit", "n", 50, "number of events")
	return cmd
}
