package tcp

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"time"

	"github.com/vovakirdan/ircchat/internal/core"
	"github.com/vovakirdan/ircchat/internal/proto"
)

const maxLineBytes = 8192

var (
	errPingTimeout = errors.New("ping timeout")
	errLineTooLong = errors.New("line too long")
)

// handleConn bridges one connection to a core session with a read loop and
// a write loop. Whichever loop ends first tears the session down.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetKeepAlive(true)
		_ = tc.SetKeepAlivePeriod(30 * time.Second)
	}

	sess := s.hub.Connect(remoteHost(conn), conn)
	log := sess.Logger()

	stop := context.AfterFunc(ctx, func() { s.hub.Cleanup(sess, "Server shutting down") })
	defer stop()

	go s.hub.Monitor(sess)

	errCh := make(chan error, 2)
	go func() {
		errCh <- s.readLoop(sess, conn)
	}()
	go func() {
		errCh <- s.writeLoop(sess, conn)
	}()

	err := <-errCh
	reason := "Connection closed"
	switch {
	case err == nil, errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed), errors.Is(err, core.ErrSessionClosed):
	case errors.Is(err, errPingTimeout):
		reason = "Ping timeout"
	default:
		reason = "Read error"
		log.Warn().Err(err).Msg("connection closed with error")
	}
	s.hub.Cleanup(sess, reason)
	<-errCh
}

func (s *Server) readLoop(sess *core.Session, conn net.Conn) error {
	reader := bufio.NewReader(conn)
	limiter := newFloodLimiter(s.opts.FloodLimit, s.opts.FloodWindow)

	var partial strings.Builder
	for {
		if err := conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout)); err != nil {
			return err
		}

		chunk, err := reader.ReadString('\n')
		partial.WriteString(chunk)
		if partial.Len() > maxLineBytes {
			return errLineTooLong
		}
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				if s.hub.Expired(sess) {
					return errPingTimeout
				}
				continue
			}
			return err
		}

		line := partial.String()
		partial.Reset()

		// PONG and blank lines bypass flood control. A dropped line still
		// counts as activity.
		if msg := proto.Parse(line); msg != nil && msg.Command != proto.CmdPong && !limiter.Allow() {
			sess.Liveness().Observe(msg.Command, time.Now())
			sess.Deliver(proto.Notice(s.hub.ServerName(), sess.Target(), "Flood limit exceeded, line dropped"))
			continue
		}
		if err := s.hub.Handle(sess, line); err != nil {
			return err
		}
	}
}

func (s *Server) writeLoop(sess *core.Session, conn net.Conn) error {
	w := bufio.NewWriter(conn)
	out := sess.Outbound()

	for {
		select {
		case line := <-out:
			writeLine(w, line)
			// Coalesce whatever is already queued into one flush.
			for n := len(out); n > 0; n-- {
				writeLine(w, <-out)
			}
			if err := conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout)); err != nil {
				return err
			}
			if err := w.Flush(); err != nil {
				return err
			}
		case <-sess.Done():
			return nil
		}
	}
}

func writeLine(w *bufio.Writer, line string) {
	_, _ = w.WriteString(line)
	_, _ = w.WriteString("\r\n")
}

func remoteHost(conn net.Conn) string {
	addr := conn.RemoteAddr()
	if addr == nil {
		return "unknown"
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
