package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/ircchat/internal/proto"
)

var (
	// ErrNotConnected is returned when there is no usable connection.
	ErrNotConnected = errors.New("not connected")
	// ErrRetriesExhausted is returned when every reconnect attempt failed.
	ErrRetriesExhausted = errors.New("reconnect retries exhausted")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("client closed")
)

const idleWait = 100 * time.Millisecond

// Dialer opens outbound connections. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// LineHandler consumes server lines and status messages.
type LineHandler interface {
	HandleLine(line string)
	Notify(msg string)
}

// Credentials identify the account replayed on every connect.
type Credentials struct {
	Username string
	Password string
	Realname string
	// Register sends REGISTER instead of AUTH on the first successful connect.
	Register bool
}

// Options tune the connection lifecycle.
type Options struct {
	MaxRetries  int
	RetryDelay  time.Duration
	ReadTimeout time.Duration
	DialTimeout time.Duration
}

// connection is one established transport. It is replaced wholesale on
// reconnect and never mutated afterwards except by its own reader.
type connection struct {
	net.Conn
	addr    string
	reader  *bufio.Reader
	partial strings.Builder
	wmu     sync.Mutex
}

func newConnection(nc net.Conn, addr string) *connection {
	return &connection{Conn: nc, addr: addr, reader: bufio.NewReader(nc)}
}

// readLine keeps partial input across read timeouts.
func (c *connection) readLine(timeout time.Duration) (string, error) {
	if timeout > 0 {
		_ = c.SetReadDeadline(time.Now().Add(timeout))
	}
	chunk, err := c.reader.ReadString('\n')
	c.partial.WriteString(chunk)
	if err != nil {
		return "", err
	}
	line := c.partial.String()
	c.partial.Reset()
	return strings.TrimRight(line, "\r\n"), nil
}

func (c *connection) writeLine(line string) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_, err := c.Write([]byte(line + "\r\n"))
	return err
}

// Manager owns the single outbound connection and re-establishes it with
// bounded retries.
type Manager struct {
	dialer  Dialer
	opts    Options
	handler LineHandler
	log     *zerolog.Logger

	current      atomic.Pointer[connection]
	reconnecting atomic.Bool

	mu         sync.Mutex
	creds      Credentials
	account    string
	nick       string
	token      string
	target     string
	registered bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewManager creates a manager. A nil dialer uses net.Dialer with keep-alive.
func NewManager(dialer Dialer, opts Options, creds Credentials, logger *zerolog.Logger) *Manager {
	if dialer == nil {
		dialer = &net.Dialer{KeepAlive: 30 * time.Second}
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	if creds.Realname == "" {
		creds.Realname = creds.Username
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		dialer:  dialer,
		opts:    opts,
		creds:   creds,
		account: creds.Username,
		nick:    creds.Username,
		log:     logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// SetHandler installs the consumer of server lines. Call before Run.
func (m *Manager) SetHandler(h LineHandler) {
	m.handler = h
}

// SetToken stores the latest resume token; later replays authenticate with it.
func (m *Manager) SetToken(token string) {
	m.mu.Lock()
	m.token = token
	m.registered = true
	m.mu.Unlock()
}

// SetNickname records the nickname the server confirmed for us. The account
// name is left alone, so a fallback nick after a collision still
// authenticates as the original account.
func (m *Manager) SetNickname(nick string) {
	m.mu.Lock()
	m.nick = nick
	m.mu.Unlock()
}

// Renamed records a nick change of our own. The server renames the account
// only when the old nick was the account name, and so do we.
func (m *Manager) Renamed(old, nick string) {
	m.mu.Lock()
	if strings.EqualFold(old, m.account) {
		m.account = nick
	}
	m.nick = nick
	m.mu.Unlock()
}

// Account returns the account name replayed in AUTH.
func (m *Manager) Account() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.account
}

// Target returns the address of the last successful connect.
func (m *Manager) Target() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.target
}

// Connected reports whether a connection is installed.
func (m *Manager) Connected() bool {
	return m.current.Load() != nil
}

// Reconnecting reports whether a reconnect loop is running.
func (m *Manager) Reconnecting() bool {
	return m.reconnecting.Load()
}

// registration returns the lines sent right after dialing.
func (m *Manager) registration() (lines []string, registering bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.token != "":
		lines = append(lines, fmt.Sprintf("%s %s %s", proto.CmdAuth, m.account, m.token))
	case m.creds.Register && !m.registered:
		lines = append(lines, fmt.Sprintf("%s %s %s", proto.CmdRegister, m.account, m.creds.Password))
		registering = true
	default:
		lines = append(lines, fmt.Sprintf("%s %s %s", proto.CmdAuth, m.account, m.creds.Password))
	}
	lines = append(lines,
		fmt.Sprintf("%s %s", proto.CmdNick, m.nick),
		fmt.Sprintf("%s %s 0 * :%s", proto.CmdUser, m.creds.Username, m.creds.Realname),
	)
	return lines, registering
}

// Connect drops any existing connection, dials addr and sends the
// registration sequence.
func (m *Manager) Connect(ctx context.Context, addr string) error {
	if m.ctx.Err() != nil {
		return ErrClosed
	}
	if old := m.current.Swap(nil); old != nil {
		_ = old.Close()
	}

	dialCtx := ctx
	if m.opts.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, m.opts.DialTimeout)
		defer cancel()
	}

	nc, err := m.dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}

	c := newConnection(nc, addr)
	lines, registering := m.registration()
	for _, line := range lines {
		if err := c.writeLine(line); err != nil {
			_ = c.Close()
			return fmt.Errorf("register with %s: %w", addr, err)
		}
	}

	m.mu.Lock()
	m.target = addr
	if registering {
		m.registered = true
	}
	m.mu.Unlock()

	m.current.Store(c)
	if m.ctx.Err() != nil {
		m.current.CompareAndSwap(c, nil)
		_ = c.Close()
		return ErrClosed
	}

	m.log.Info().Str("addr", addr).Msg("connected")
	return nil
}

// Reconnect retries Connect up to MaxRetries times with RetryDelay between
// attempts. A call made while another reconnect runs returns nil at once.
func (m *Manager) Reconnect(ctx context.Context, addr string) error {
	if !m.reconnecting.CompareAndSwap(false, true) {
		return nil
	}
	defer m.reconnecting.Store(false)

	var lastErr error
	for attempt := 1; attempt <= m.opts.MaxRetries; attempt++ {
		m.log.Info().Str("addr", addr).Int("attempt", attempt).Int("max", m.opts.MaxRetries).Msg("reconnecting")

		lastErr = m.Connect(ctx, addr)
		if lastErr == nil {
			m.notify(fmt.Sprintf("Reconnected to %s", addr))
			return nil
		}
		if errors.Is(lastErr, ErrClosed) {
			return lastErr
		}
		m.log.Warn().Err(lastErr).Int("attempt", attempt).Msg("reconnect attempt failed")

		if attempt == m.opts.MaxRetries {
			break
		}
		timer := time.NewTimer(m.opts.RetryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-m.ctx.Done():
			timer.Stop()
			return ErrClosed
		case <-timer.C:
		}
	}

	err := fmt.Errorf("%w: %d attempts to %s: %w", ErrRetriesExhausted, m.opts.MaxRetries, addr, lastErr)
	m.log.Error().Err(err).Msg("giving up")
	m.notify(fmt.Sprintf("Could not reconnect to %s after %d attempts. Use /connect to try again.", addr, m.opts.MaxRetries))
	return err
}

// SwitchServer connects to addr and falls back to the previous target when
// that fails.
func (m *Manager) SwitchServer(ctx context.Context, addr string) error {
	previous := m.Target()
	err := m.Connect(ctx, addr)
	if err == nil {
		return nil
	}
	m.log.Warn().Err(err).Str("addr", addr).Msg("switch server failed")
	if previous != "" && previous != addr {
		if rerr := m.Reconnect(ctx, previous); rerr != nil {
			return errors.Join(err, rerr)
		}
	}
	return err
}

// Send writes one line. Lines are dropped while disconnected or
// reconnecting; a write failure starts a reconnect in the background.
func (m *Manager) Send(line string) {
	c, err := m.send(line)
	if err == nil {
		return
	}
	if c == nil {
		m.log.Debug().Err(err).Str("line", line).Msg("line dropped")
		return
	}

	m.log.Warn().Err(err).Msg("write failed")
	go func() {
		if m.current.Load() == c {
			_ = m.Reconnect(m.ctx, c.addr)
		}
	}()
}

func (m *Manager) send(line string) (*connection, error) {
	c := m.current.Load()
	if c == nil || m.reconnecting.Load() {
		return nil, ErrNotConnected
	}
	return c, c.writeLine(line)
}

// Run reads server lines until ctx is cancelled or Close is called. A lost
// connection triggers Reconnect to the address it was dialed with.
func (m *Manager) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.ctx.Done():
			return nil
		default:
		}

		c := m.current.Load()
		if c == nil || m.reconnecting.Load() {
			m.idle(ctx)
			continue
		}

		line, err := c.readLine(m.opts.ReadTimeout)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if m.ctx.Err() != nil {
				return nil
			}
			if m.current.Load() != c {
				// Replaced while we were reading.
				_ = c.Close()
				continue
			}

			m.log.Warn().Err(err).Str("addr", c.addr).Msg("connection lost")
			m.notify("Connection lost, reconnecting...")
			if err := m.Reconnect(ctx, c.addr); err != nil && errors.Is(err, context.Canceled) {
				return err
			}
			continue
		}

		if line == "" {
			continue
		}
		m.log.Debug().Str("line", line).Msg("recv")
		if m.handler != nil {
			m.handler.HandleLine(line)
		}
	}
}

func (m *Manager) idle(ctx context.Context) {
	timer := time.NewTimer(idleWait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-m.ctx.Done():
	case <-timer.C:
	}
}

func (m *Manager) notify(msg string) {
	if m.handler != nil {
		m.handler.Notify(msg)
	}
}

// Close stops Run and closes the connection.
func (m *Manager) Close() error {
	m.cancel()
	if c := m.current.Swap(nil); c != nil {
		return c.Close()
	}
	return nil
}
