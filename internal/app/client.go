package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/vovakirdan/ircchat/internal/client"
	"github.com/vovakirdan/ircchat/internal/config"
)

// ClientVersion is reported by /version.
const ClientVersion = "1.0.0"

// RunClient connects to the configured server and feeds lines from in to the
// command handler until /quit, end of input or ctx cancellation. Output for
// the user goes to out.
func RunClient(ctx context.Context, cfg config.ClientConfig, in io.Reader, out io.Writer, logger *zerolog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid client config: %w", err)
	}

	mgr := client.NewManager(nil, client.Options{
		MaxRetries:  cfg.MaxRetries,
		RetryDelay:  cfg.RetryDelay,
		ReadTimeout: cfg.ReadTimeout,
		DialTimeout: cfg.DialTimeout,
	}, client.Credentials{
		Username: cfg.Username,
		Password: cfg.Password,
		Realname: cfg.Realname,
		Register: cfg.Register,
	}, logger)
	handler := client.NewHandler(mgr, out, cfg.Username, ClientVersion)
	mgr.SetHandler(handler)
	defer func() { _ = mgr.Close() }()

	handler.Notify(fmt.Sprintf("Connecting to %s as %s", cfg.ServerAddr, cfg.Username))
	if err := mgr.Connect(ctx, cfg.ServerAddr); err != nil {
		logger.Warn().Err(err).Msg("initial connect failed")
		if err := mgr.Reconnect(ctx, cfg.ServerAddr); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			// Reported by the manager; /connect can still be used.
			logger.Error().Err(err).Msg("server unreachable")
		}
	}

	runDone := make(chan error, 1)
	go func() { runDone <- mgr.Run(ctx) }()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-runDone:
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		case line, ok := <-lines:
			if !ok {
				mgr.Send("QUIT :Goodbye!")
				return nil
			}
			if err := handler.HandleInput(ctx, line); err != nil {
				if errors.Is(err, client.ErrQuit) {
					return nil
				}
				return err
			}
		}
	}
}
