package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/ircchat/internal/app"
	"github.com/vovakirdan/ircchat/internal/config"
	"github.com/vovakirdan/ircchat/internal/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		overrides  config.ClientConfig
	)

	cmd := &cobra.Command{
		Use:          "ircchat-client [host:port]",
		Short:        "Connect to an ircchat server and chat from the terminal",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			bootLog := log.NewWithWriter("warn", os.Stderr)

			cfg, _, err := config.LoadClient(bootLog, configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if len(args) == 1 {
				overrides.ServerAddr = args[0]
			}
			cfg.UpdateFrom(overrides)

			logger := log.NewWithWriter(cfg.LogLevel, os.Stderr)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return app.RunClient(ctx, cfg, os.Stdin, os.Stdout, logger)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "path to client.yaml")
	flags.StringVarP(&overrides.Username, "user", "u", "", "account name")
	flags.StringVarP(&overrides.Password, "password", "p", "", "account password")
	flags.StringVar(&overrides.Realname, "realname", "", "real name sent with USER")
	flags.BoolVar(&overrides.Register, "register", false, "create the account on first connect")
	flags.StringVar(&overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")

	return cmd
}
