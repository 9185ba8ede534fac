package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nestorlabs/nestor/pkg/botcfg"
)

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the effective non-secret configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := botcfg.Load(viper.GetViper())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(out, "Néstor configuration:")
			_, _ = fmt.Fprintf(out, "  Homeserver: %s\n", cfg.HomeserverURL)
			_, _ = fmt.Fprintf(out, "  User ID: %s\n", cfg.UserID)
			_, _ = fmt.Fprintf(out, "  Device ID: %s\n", cfg.DeviceID)
			_, _ = fmt.Fprintf(out, "  Database: %s\n", cfg.DatabaseURI)
			_, _ = fmt.Fprintf(out, "  Model: %s\n", cfg.Agent.Model)
			return nil
		},
	}
}
