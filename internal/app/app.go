package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/vovakirdan/ircchat/internal/auth"
	"github.com/vovakirdan/ircchat/internal/config"
	"github.com/vovakirdan/ircchat/internal/core"
	"github.com/vovakirdan/ircchat/internal/store"
	"github.com/vovakirdan/ircchat/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/ircchat/internal/transport/http"
	"github.com/vovakirdan/ircchat/internal/transport/tcp"
)

// App wires together core and transport layers.
type App struct {
	irc             *tcp.Server
	admin           *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg config.Config, logger *zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// Initialize database store
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	// Presence does not survive a restart.
	if err := st.ResetPresence(context.Background()); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("reset presence: %w", err)
	}

	authService := auth.NewService(st, &auth.JWTConfig{
		Secret: []byte(cfg.JWTSecret),
		Issuer: cfg.JWTIssuer,
		TTL:    cfg.TokenTTL,
	})

	hub := core.NewHub(core.Options{
		ServerName:   cfg.ServerName,
		Version:      cfg.Version,
		PingInterval: cfg.PingInterval,
		PongTimeout:  cfg.PongTimeout,
		ListThrottle: cfg.ListThrottle,
		SendQueue:    cfg.SendQueue,
	}, authService, logger)
	for _, ch := range cfg.DefaultChannels {
		hub.CreateChannel(ch.Name, ch.Topic)
	}

	ircServer := tcp.NewServer(hub, tcp.Options{
		Addr:        cfg.Addr,
		ReadTimeout: cfg.ReadTimeout,
		FloodLimit:  cfg.FloodLimit,
	}, logger)

	var admin *stdhttp.Server
	if cfg.AdminAddr != "" {
		admin = transporthttp.NewServer(hub, authService, st, cfg.AdminAddr, logger)
	}

	return &App{
		irc:             ircServer,
		admin:           admin,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		store:           st,
		log:             logger,
	}, nil
}

// Addr returns the bound IRC address once Run has started listening.
func (a *App) Addr() net.Addr {
	return a.irc.Addr()
}

// Run starts the listeners and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	if err := a.irc.Listen(); err != nil {
		a.cleanup()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	ircDone := make(chan error, 1)
	go func() { ircDone <- a.irc.Serve(runCtx) }()

	adminErr := make(chan error, 1)
	if a.admin != nil {
		go func() {
			a.log.Info().Str("addr", a.admin.Addr).Msg("admin http listener started")
			if err := a.admin.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
				adminErr <- fmt.Errorf("admin http: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case runErr = <-ircDone:
		ircDone = nil
	case runErr = <-adminErr:
	case <-ctx.Done():
	}

	a.log.Info().Msg("shutting down")
	cancel()
	a.hub.Shutdown()

	if a.admin != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), a.shutdownTimeout)
		if err := a.admin.Shutdown(shutdownCtx); err != nil {
			a.log.Warn().Err(err).Msg("admin http shutdown")
		}
		cancelShutdown()
	}

	if ircDone != nil {
		if err := <-ircDone; err != nil && runErr == nil {
			runErr = err
		}
	}

	a.cleanup()
	return runErr
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
