package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vovakirdan/ircchat/internal/store"
)

// fakeUsers is an in-memory UserStore. Passwords are stored in clear.
type fakeUsers struct {
	mu        sync.Mutex
	nextID    int64
	users     map[string]*store.User
	passwords map[string]string
	online    map[int64]bool
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{
		users:     make(map[string]*store.User),
		passwords: make(map[string]string),
		online:    make(map[int64]bool),
	}
}

func (f *fakeUsers) Register(_ context.Context, username, password, email string) (*store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := strings.ToLower(username)
	if _, ok := f.users[key]; ok {
		return nil, errors.New("exists")
	}
	f.nextID++
	u := &store.User{ID: f.nextID, Username: username, Email: email}
	f.users[key] = u
	f.passwords[key] = password
	return u, nil
}

func (f *fakeUsers) Authenticate(_ context.Context, username, secret string) (*store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := strings.ToLower(username)
	u, ok := f.users[key]
	if !ok || (f.passwords[key] != secret && secret != "token-"+u.Username) {
		return nil, errors.New("bad credentials")
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) Rename(_ context.Context, userID int64, newName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	oldKey := f.keyOf(userID)
	if oldKey == "" {
		return errors.New("not found")
	}
	newKey := strings.ToLower(newName)
	if _, taken := f.users[newKey]; taken && newKey != oldKey {
		return errors.New("taken")
	}
	u := f.users[oldKey]
	pw := f.passwords[oldKey]
	delete(f.users, oldKey)
	delete(f.passwords, oldKey)
	u.Username = newName
	f.users[newKey] = u
	f.passwords[newKey] = pw
	return nil
}

func (f *fakeUsers) SetOnline(_ context.Context, userID int64, online bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.keyOf(userID) == "" {
		return errors.New("not found")
	}
	f.online[userID] = online
	return nil
}

func (f *fakeUsers) keyOf(id int64) string {
	for key, u := range f.users {
		if u.ID == id {
			return key
		}
	}
	return ""
}

func (f *fakeUsers) IssueToken(user *store.User) (string, error) {
	return "token-" + user.Username, nil
}

func (f *fakeUsers) isOnline(username string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[strings.ToLower(username)]
	return ok && f.online[u.ID]
}

type fakeConn struct {
	closed atomic.Bool
}

func (c *fakeConn) Close() error {
	c.closed.Store(true)
	return nil
}

func newTestHub(t *testing.T, opts Options) (*Hub, *fakeUsers) {
	t.Helper()
	if opts.ServerName == "" {
		opts.ServerName = "test.server"
	}
	if opts.Version == "" {
		opts.Version = "1.0.1"
	}
	users := newFakeUsers()
	hub := NewHub(opts, users, nil)
	t.Cleanup(hub.Shutdown)
	return hub, users
}

func connect(t *testing.T, h *Hub) *Session {
	t.Helper()
	return h.Connect("127.0.0.1", &fakeConn{})
}

// login registers an account named nick and waits for the welcome numeric.
func login(t *testing.T, h *Hub, nick string) *Session {
	t.Helper()
	s := connect(t, h)
	send(t, h, s, "REGISTER "+nick+" secret1")
	mustLine(t, s, " 004 ")
	return s
}

func send(t *testing.T, h *Hub, s *Session, line string) {
	t.Helper()
	if err := h.Handle(s, line); err != nil {
		t.Fatalf("Handle(%q): %v", line, err)
	}
}

func mustLine(t *testing.T, s *Session, substr string) string {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case line := <-s.Outbound():
			if strings.Contains(line, substr) {
				return line
			}
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
	t.Fatalf("expected line containing %q not received", substr)
	return ""
}

// drain returns everything currently queued for s.
func drain(s *Session) []string {
	var lines []string
	for {
		select {
		case line := <-s.Outbound():
			lines = append(lines, line)
		default:
			return lines
		}
	}
}

func noLine(t *testing.T, s *Session, substr string) {
	t.Helper()
	for _, line := range drain(s) {
		if strings.Contains(line, substr) {
			t.Fatalf("unexpected line %q", line)
		}
	}
}
