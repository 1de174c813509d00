package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/qrs-ai/roadscan/internal/vault"
)

func newVaultCmd() *cobra.Command {
	var keyPath string

	cmd := &cobra.Command{
		Use:   "vault",
		Short: "Seal or unseal files with the roadscan key",
	}
	cmd.PersistentFlags().StringVar(&keyPath, "key", "", "key file (default from history.key_path)")

	open := func() (*vault.Vault, error) {
		path := keyPath
		if path == "" {
			cfg, err := initConfig()
			if err != nil {
				return nil, err
			}
			path = cfg.KeyPath()
		}
		return vault.Open(path)
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "seal SRC [DST]",
		Short: "Encrypt SRC into DST (default SRC.sealed)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := open()
			if err != nil {
				return err
			}
			dst := args[0] + ".sealed"
			if len(args) == 2 {
				dst = args[1]
			}
			if err := v.SealFile(args[0], dst); err != nil {
				return err
			}
			fmt.Println(dst)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "unseal SRC [DST]",
		Short: "Decrypt SRC into DST (default SRC without .sealed)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := open()
			if err != nil {
				return err
			}
			var dst string
			switch {
			case len(args) == 2:
				dst = args[1]
			case strings.HasSuffix(args[0], ".sealed"):
				dst = strings.TrimSuffix(args[0], ".sealed")
			default:
				return fmt.Errorf("cannot derive output name for %s; pass DST", args[0])
			}
			if err := v.UnsealFile(args[0], dst); err != nil {
				return err
			}
			fmt.Println(dst)
			return nil
		},
	})

	return cmd
}
