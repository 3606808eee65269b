package core

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vovakirdan/ircchat/internal/proto"
	"github.com/vovakirdan/ircchat/internal/store"
)

// UserStore is the account backend the hub authenticates against.
type UserStore interface {
	Register(ctx context.Context, username, password, email string) (*store.User, error)
	Authenticate(ctx context.Context, username, secret string) (*store.User, error)
	Rename(ctx context.Context, userID int64, newName string) error
	SetOnline(ctx context.Context, userID int64, online bool) error
	IssueToken(user *store.User) (string, error)
}

// Options tunes hub behaviour.
type Options struct {
	ServerName   string
	Version      string
	PingInterval time.Duration
	PongTimeout  time.Duration
	ListThrottle time.Duration
	SendQueue    int
}

// DefaultOptions mirrors the server config defaults.
func DefaultOptions() Options {
	return Options{
		ServerName:   "MyIRCServer",
		Version:      "1.0.1",
		PingInterval: 30 * time.Second,
		PongTimeout:  10 * time.Second,
		SendQueue:    256,
	}
}

// Hub owns sessions, channels and the user store.
type Hub struct {
	opts      Options
	users     UserStore
	channels  *Registry
	sessions  *Sessions
	commands  map[string]command
	startedAt time.Time
	log       *zerolog.Logger

	// nickMu linearizes nickname check-then-set across sessions.
	nickMu sync.Mutex
}

// NewHub creates a new chat hub instance.
func NewHub(opts Options, users UserStore, logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if opts.ServerName == "" {
		opts.ServerName = DefaultOptions().ServerName
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = DefaultOptions().PingInterval
	}
	if opts.PongTimeout <= 0 {
		opts.PongTimeout = DefaultOptions().PongTimeout
	}
	if opts.SendQueue <= 0 {
		opts.SendQueue = DefaultOptions().SendQueue
	}

	h := &Hub{
		opts:      opts,
		users:     users,
		channels:  NewRegistry(),
		sessions:  NewSessions(),
		startedAt: time.Now(),
		log:       logger,
	}
	h.commands = h.commandTable()
	return h
}

// ServerName returns the name used as numeric prefix.
func (h *Hub) ServerName() string {
	return h.opts.ServerName
}

// Channels exposes the channel registry.
func (h *Hub) Channels() *Registry {
	return h.channels
}

// Sessions exposes the live session set.
func (h *Hub) Sessions() *Sessions {
	return h.sessions
}

// CreateChannel makes a channel exist, keeping an existing one untouched.
func (h *Hub) CreateChannel(name, topic string) *Channel {
	ch, created := h.channels.GetOrCreate(proto.NormalizeChannel(name), topic)
	if created {
		h.log.Debug().Str("channel", ch.Name()).Msg("channel created")
	}
	return ch
}

// Connect registers a new session for a transport. closer tears the
// transport down and is called once when the session ends.
func (h *Hub) Connect(host string, closer io.Closer) *Session {
	now := time.Now()
	s := NewSession(uuid.NewString(), host, closer, h.opts.SendQueue,
		NewLiveness(h.opts.PingInterval, h.opts.PongTimeout, now), h.log)
	h.sessions.Add(s)
	s.log.Info().Msg("session connected")
	return s
}

// Cleanup parts every channel, removes the session from the live set, closes
// it and marks the user offline. Only the first call has any effect.
func (h *Hub) Cleanup(s *Session, reason string) {
	if !s.cleaned.CompareAndSwap(false, true) {
		return
	}

	mask := s.Hostmask()
	for _, name := range s.drainChannels() {
		ch, ok := h.channels.Get(name)
		if !ok {
			continue
		}
		if ch.Remove(s) {
			ch.Broadcast(proto.Event(mask, proto.CmdPart, name))
		}
	}

	h.sessions.Remove(s)
	s.Close()

	// The account stays online while another session is logged in as it.
	if user := s.User(); user != nil && s.Registered() && len(h.sessions.ByAccount(user.ID)) == 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.users.SetOnline(ctx, user.ID, false); err != nil {
			s.log.Warn().Err(err).Msg("mark offline failed")
		}
	}

	s.log.Info().Str("reason", reason).Str("nick", s.Nickname()).Msg("session closed")
}

// Expired reports whether s missed its pong deadline.
func (h *Hub) Expired(s *Session) bool {
	return s.liveness.Expired(time.Now())
}

// Monitor runs the liveness ticker for s until the session closes. It sends
// PING after a quiet interval and cleans the session up once the pong
// deadline passes.
func (h *Hub) Monitor(s *Session) {
	ticker := time.NewTicker(s.liveness.CheckInterval())
	defer ticker.Stop()

	for {
		select {
		case <-s.Done():
			return
		case now := <-ticker.C:
			if s.liveness.Expired(now) {
				s.log.Info().Msg("ping timeout")
				h.Cleanup(s, "Ping timeout")
				return
			}
			if s.liveness.ShouldPing(now) {
				s.liveness.MarkPingSent(now)
				s.Deliver(fmt.Sprintf("PING :%s", h.opts.ServerName))
			}
		}
	}
}

// Shutdown cleans up every live session.
func (h *Hub) Shutdown() {
	for _, s := range h.sessions.Snapshot() {
		h.Cleanup(s, "Server shutting down")
	}
}

// ChannelInfo is a read-only snapshot of a channel.
type ChannelInfo struct {
	Name      string
	Topic     string
	Members   int
	CreatedAt time.Time
}

// ChannelSnapshot lists channels sorted by name.
func (h *Hub) ChannelSnapshot() []ChannelInfo {
	list := h.channels.List()
	out := make([]ChannelInfo, 0, len(list))
	for _, ch := range list {
		out = append(out, ChannelInfo{
			Name:      ch.Name(),
			Topic:     ch.Topic(),
			Members:   ch.Len(),
			CreatedAt: ch.CreatedAt(),
		})
	}
	return out
}

// SessionSnapshot lists live sessions by connect time.
func (h *Hub) SessionSnapshot() []SessionInfo {
	list := h.sessions.Snapshot()
	out := make([]SessionInfo, 0, len(list))
	for _, s := range list {
		out = append(out, s.Info())
	}
	return out
}

func (h *Hub) numeric(s *Session, code int, text string) {
	s.Deliver(proto.Numeric(h.opts.ServerName, code, s.Target(), text))
}

func (h *Hub) notice(s *Session, text string) {
	s.Deliver(proto.Notice(h.opts.ServerName, s.Target(), text))
}
