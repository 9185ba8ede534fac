package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nestorlabs/nestor/pkg/agent"
	"github.com/nestorlabs/nestor/pkg/bot"
	"github.com/nestorlabs/nestor/pkg/botcfg"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to the homeserver and answer messages until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := botcfg.Load(viper.GetViper())
			if err != nil {
				return err
			}
			log, err := cfg.Logging.Logger()
			if err != nil {
				return err
			}

			b, err := bot.New(cfg, agent.New(cfg.Agent, *log), *log)
			if err != nil {
				return fmt.Errorf("failed to set up bot: %w", err)
			}
			defer b.Stop()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return b.Start(ctx)
		},
	}
}
