package app

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/ircchat/internal/config"
	"github.com/vovakirdan/ircchat/internal/log"
)

// syncBuffer is a bytes.Buffer safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func waitForOutput(t *testing.T, out *syncBuffer, substr string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(out.String(), substr) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %q in output:\n%s", substr, out.String())
}

func startApp(t *testing.T) string {
	t.Helper()

	cfg := config.Default()
	cfg.Addr = "127.0.0.1:0"
	cfg.AdminAddr = ""
	cfg.DatabasePath = filepath.Join(t.TempDir(), "test.db")
	cfg.JWTSecret = "test-secret"

	application, err := New(cfg, log.Nop())
	if err != nil {
		t.Fatalf("new app: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- application.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("run returned %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("app did not shut down")
		}
	})

	deadline := time.Now().Add(2 * time.Second)
	for application.Addr() == nil {
		if time.Now().After(deadline) {
			t.Fatal("listener did not start")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return application.Addr().String()
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Addr = ""
	if _, err := New(cfg, log.Nop()); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestClientAgainstServer(t *testing.T) {
	addr := startApp(t)

	clientCfg := config.DefaultClient()
	clientCfg.ServerAddr = addr
	clientCfg.Username = "alice"
	clientCfg.Password = "secret1"
	clientCfg.Register = true
	clientCfg.RetryDelay = 10 * time.Millisecond
	clientCfg.ReadTimeout = 100 * time.Millisecond

	inR, inW := io.Pipe()
	defer inW.Close()
	out := &syncBuffer{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clientDone := make(chan error, 1)
	go func() { clientDone <- RunClient(ctx, clientCfg, inR, out, log.Nop()) }()

	waitForOutput(t, out, "Session token received.")
	waitForOutput(t, out, "Successfully connected to server!")

	_, _ = io.WriteString(inW, "/join #main\n")
	waitForOutput(t, out, "332 alice #main :Welcome to the main channel!")
	waitForOutput(t, out, "Users in #main: alice")

	_, _ = io.WriteString(inW, "/quit bye\n")
	select {
	case err := <-clientDone:
		if err != nil {
			t.Fatalf("client returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("client did not exit on /quit")
	}
}
