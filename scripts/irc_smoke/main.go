package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/ircchat/internal/client"
	"github.com/vovakirdan/ircchat/internal/log"
	"github.com/vovakirdan/ircchat/internal/proto"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// waiter signals the first server line satisfying want.
type waiter struct {
	lines chan *proto.Message
}

func (w *waiter) HandleLine(line string) {
	if msg := proto.Parse(line); msg != nil {
		select {
		case w.lines <- msg:
		default:
		}
	}
}

func (w *waiter) Notify(string) {}

func (w *waiter) await(ctx context.Context, want func(*proto.Message) bool) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-w.lines:
			if want(msg) {
				return nil
			}
		}
	}
}

func newRootCmd() *cobra.Command {
	var (
		addr     string
		user     string
		password string
		channel  string
		text     string
		register bool
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:          "irc_smoke",
		Short:        "Register, join a channel and send one message",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			logger := log.NewWithWriter("warn", os.Stderr)
			mgr := client.NewManager(nil, client.Options{MaxRetries: 1, ReadTimeout: time.Second, DialTimeout: timeout},
				client.Credentials{Username: user, Password: password, Register: register}, logger)
			w := &waiter{lines: make(chan *proto.Message, 64)}
			mgr.SetHandler(w)
			defer func() { _ = mgr.Close() }()

			if err := mgr.Connect(ctx, addr); err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			go func() { _ = mgr.Run(ctx) }()

			if err := w.await(ctx, func(m *proto.Message) bool { return m.Command == "001" }); err != nil {
				return fmt.Errorf("wait for welcome: %w", err)
			}

			channel = proto.NormalizeChannel(channel)
			mgr.Send(proto.CmdJoin + " " + channel)
			err := w.await(ctx, func(m *proto.Message) bool {
				return m.Command == "366" && strings.EqualFold(m.Param(1), channel)
			})
			if err != nil {
				return fmt.Errorf("wait for join: %w", err)
			}

			mgr.Send(fmt.Sprintf("%s %s :%s", proto.CmdPrivmsg, channel, text))
			mgr.Send(proto.CmdQuit + " :smoke done")
			if err := ctx.Err(); errors.Is(err, context.DeadlineExceeded) {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "ok: %s joined %s on %s\n", user, channel, addr)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&addr, "addr", "localhost:6667", "server address")
	flags.StringVar(&user, "user", "tester", "account name")
	flags.StringVar(&password, "password", "tester-secret", "account password")
	flags.StringVar(&channel, "channel", "#main", "channel to join")
	flags.StringVar(&text, "text", "hello from smoke test", "message text to send")
	flags.BoolVar(&register, "register", false, "create the account first")
	flags.DurationVar(&timeout, "timeout", 5*time.Second, "total timeout for the run")

	return cmd
}
