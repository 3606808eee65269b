package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/vovakirdan/ircchat/internal/proto"
)

func (h *Hub) handleList(ctx context.Context, s *Session, _ *proto.Message) error {
	var limiter *rate.Limiter
	if h.opts.ListThrottle > 0 {
		limiter = rate.NewLimiter(rate.Every(h.opts.ListThrottle), 1)
	}

	h.numeric(s, proto.RplListStart, "Channel :Users Name")
	for _, ch := range h.channels.List() {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return fmt.Errorf("list throttle: %w", err)
			}
		}
		h.numeric(s, proto.RplList, fmt.Sprintf("%s %d :%s", ch.Name(), ch.Len(), ch.Topic()))
	}
	h.numeric(s, proto.RplListEnd, ":End of /LIST")
	return nil
}

func (h *Hub) handleWhois(_ context.Context, s *Session, msg *proto.Message) error {
	nick := msg.Param(0)
	target := h.sessions.ByNickFold(nick)
	if target == nil {
		return numericError(proto.ErrNoSuchNick, nick+" :No such nick/channel")
	}

	tnick := target.Nickname()
	username, realname := target.Identity()
	if username == "" {
		username = tnick
	}
	if realname == "" {
		realname = "No real name"
	}

	h.numeric(s, proto.RplWhoisUser, fmt.Sprintf("%s %s %s * :%s", tnick, username, target.Host, realname))
	if channels := target.Channels(); len(channels) > 0 {
		h.numeric(s, proto.RplWhoisChan, tnick+" :"+strings.Join(channels, " "))
	}
	h.numeric(s, proto.RplWhoisSrv, fmt.Sprintf("%s %s :Connected to IRC Server", tnick, h.opts.ServerName))
	if away := target.Away(); away != "" {
		h.numeric(s, proto.RplAway, tnick+" :"+away)
	}
	idle := int64(time.Since(target.liveness.LastSeen()).Seconds())
	h.numeric(s, proto.RplWhoisIdle, fmt.Sprintf("%s %d %d :seconds idle, signon time", tnick, idle, target.ConnectedAt.Unix()))
	h.numeric(s, proto.RplEndWhois, tnick+" :End of /WHOIS list")
	return nil
}

func (h *Hub) handleAway(_ context.Context, s *Session, msg *proto.Message) error {
	away := msg.Param(0)
	s.setAway(away)
	if away == "" {
		h.numeric(s, proto.RplUnaway, ":You are no longer marked as away")
		return nil
	}
	h.numeric(s, proto.RplNowAway, ":You have been marked as away")
	return nil
}

func (h *Hub) handleMode(_ context.Context, s *Session, msg *proto.Message) error {
	target := msg.Param(0)
	if strings.HasPrefix(target, "#") {
		if _, ok := h.channels.Get(target); !ok {
			return numericError(proto.ErrNoSuchChannel, target+" :No such channel")
		}
		h.numeric(s, proto.RplChannelModes, target+" +nt")
		return nil
	}
	if strings.EqualFold(target, s.Nickname()) {
		h.numeric(s, proto.RplUModeIs, "+i")
		return nil
	}
	return numericError(proto.ErrUsersDontMatch, ":Can't change mode for other users")
}

func (h *Hub) handleVersion(_ context.Context, s *Session, _ *proto.Message) error {
	h.numeric(s, proto.RplVersion, fmt.Sprintf("%s %s :Running since %s",
		h.opts.Version, h.opts.ServerName, h.startedAt.Format(time.RFC3339)))
	return nil
}

func (h *Hub) handlePing(_ context.Context, s *Session, msg *proto.Message) error {
	token := msg.Param(0)
	if token == "" {
		token = h.opts.ServerName
	}
	s.Deliver("PONG :" + token)
	return nil
}

// handlePong is a no-op; Handle already fed the line to the liveness monitor.
func (h *Hub) handlePong(context.Context, *Session, *proto.Message) error {
	return nil
}

func (h *Hub) handleQuit(_ context.Context, s *Session, msg *proto.Message) error {
	reason := "Client quit"
	if text := msg.Param(0); text != "" {
		reason = "Quit: " + text
	}
	h.Cleanup(s, reason)
	return nil
}
