package core

import (
	"context"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/vovakirdan/ircchat/internal/proto"
	"github.com/vovakirdan/ircchat/internal/store"
)

// Session is one connected client as seen by the core layer.
type Session struct {
	ID          string
	Host        string
	ConnectedAt time.Time

	liveness *Liveness
	log      zerolog.Logger

	out       chan string
	done      chan struct{}
	closeOnce sync.Once
	closer    io.Closer
	ctx       context.Context
	cancel    context.CancelFunc
	cleaned   atomic.Bool

	mu            sync.RWMutex
	nickname      string
	username      string
	realname      string
	user          *store.User
	authenticated bool
	registered    bool
	away          string
	channels      map[string]struct{}
	leaving       bool
}

// NewSession constructs a session whose outbound queue holds up to queue
// lines. closer is invoked once when the session is closed and should tear
// down the transport.
func NewSession(id, host string, closer io.Closer, queue int, liveness *Liveness, logger *zerolog.Logger) *Session {
	if queue <= 0 {
		queue = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:          id,
		Host:        host,
		ConnectedAt: time.Now(),
		liveness:    liveness,
		out:         make(chan string, queue),
		done:        make(chan struct{}),
		closer:      closer,
		ctx:         ctx,
		cancel:      cancel,
		channels:    make(map[string]struct{}),
	}
	if logger != nil {
		s.log = logger.With().Str("session_id", id).Str("remote", host).Logger()
	} else {
		s.log = zerolog.Nop()
	}
	return s
}

// Deliver queues a line for the write loop. A full queue means the peer is
// not reading; the session is closed rather than silently losing lines.
func (s *Session) Deliver(line string) {
	select {
	case <-s.done:
		return
	default:
	}

	select {
	case s.out <- line:
	case <-s.done:
	default:
		s.log.Warn().Int("queue", cap(s.out)).Msg("send queue exceeded, closing session")
		s.Close()
	}
}

// Outbound is drained by the transport write loop.
func (s *Session) Outbound() <-chan string {
	return s.out
}

// Done is closed when the session is closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Context is cancelled when the session is closed.
func (s *Session) Context() context.Context {
	return s.ctx
}

// Close stops delivery and closes the transport. Safe to call repeatedly.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.cancel()
		if s.closer != nil {
			if err := s.closer.Close(); err != nil {
				s.log.Debug().Err(err).Msg("close transport")
			}
		}
	})
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Liveness returns the ping/pong monitor state.
func (s *Session) Liveness() *Liveness {
	return s.liveness
}

// Logger returns the session scoped logger.
func (s *Session) Logger() *zerolog.Logger {
	return &s.log
}

// Nickname returns the bound nickname or "".
func (s *Session) Nickname() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nickname
}

// Target is the nickname used as the target of numeric replies.
func (s *Session) Target() string {
	if nick := s.Nickname(); nick != "" {
		return nick
	}
	return "*"
}

// Hostmask returns nick!user@host.
func (s *Session) Hostmask() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return proto.Hostmask(s.nickname, s.username, s.Host)
}

// Authenticated reports whether AUTH or REGISTER succeeded.
func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

// Registered reports whether a nickname is bound.
func (s *Session) Registered() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registered
}

// User returns a copy of the bound account, nil before authentication.
func (s *Session) User() *store.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Identity returns username and realname as given by USER.
func (s *Session) Identity() (username, realname string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.username, s.realname
}

// Away returns the away message, "" when not away.
func (s *Session) Away() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.away
}

// Channels returns the joined channel names, sorted.
func (s *Session) Channels() []string {
	s.mu.RLock()
	names := make([]string, 0, len(s.channels))
	for name := range s.channels {
		names = append(names, name)
	}
	s.mu.RUnlock()
	sort.Strings(names)
	return names
}

// InChannel reports whether the session has joined name.
func (s *Session) InChannel(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.channels[name]
	return ok
}

func (s *Session) authenticate(user *store.User) {
	u := *user
	s.mu.Lock()
	s.user = &u
	s.authenticated = true
	s.mu.Unlock()
}

// bindNick sets the nickname and returns the previous one. The first bind
// marks the session registered.
func (s *Session) bindNick(nick string) (old string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old = s.nickname
	s.nickname = nick
	s.registered = true
	return old
}

// setAccountName updates the cached account after a store rename.
func (s *Session) setAccountName(name string) {
	s.mu.Lock()
	if s.user != nil {
		s.user.Username = name
	}
	s.mu.Unlock()
}

func (s *Session) setIdentity(username, realname string) {
	s.mu.Lock()
	s.username = username
	s.realname = realname
	s.mu.Unlock()
}

func (s *Session) setAway(msg string) {
	s.mu.Lock()
	s.away = msg
	s.mu.Unlock()
}

// addChannel records membership. It fails once cleanup has started so a
// racing JOIN cannot leave a stale channel entry behind.
func (s *Session) addChannel(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.leaving {
		return false
	}
	s.channels[name] = struct{}{}
	return true
}

func (s *Session) removeChannel(name string) {
	s.mu.Lock()
	delete(s.channels, name)
	s.mu.Unlock()
}

// drainChannels stops further joins and returns the joined channels.
func (s *Session) drainChannels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leaving = true
	names := make([]string, 0, len(s.channels))
	for name := range s.channels {
		names = append(names, name)
	}
	clear(s.channels)
	sort.Strings(names)
	return names
}

// SessionInfo is a read-only snapshot of a session.
type SessionInfo struct {
	ID          string
	Nickname    string
	Host        string
	Channels    []string
	Away        string
	ConnectedAt time.Time
}

// Info returns a snapshot for observers.
func (s *Session) Info() SessionInfo {
	return SessionInfo{
		ID:          s.ID,
		Nickname:    s.Nickname(),
		Host:        s.Host,
		Channels:    s.Channels(),
		Away:        s.Away(),
		ConnectedAt: s.ConnectedAt,
	}
}
