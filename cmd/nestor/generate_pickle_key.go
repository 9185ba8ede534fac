package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.mau.fi/util/random"
)

func newGeneratePickleKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate-pickle-key",
		Short: "Generate a key for encrypting the crypto store at rest",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), random.String(43))
			return nil
		},
	}
}
