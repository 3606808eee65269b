package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/vovakirdan/ircchat/internal/proto"
)

func (h *Hub) handleJoin(_ context.Context, s *Session, msg *proto.Message) error {
	name := proto.NormalizeChannel(msg.Param(0))
	if len(name) < 2 || strings.ContainsAny(name, ",\a") {
		return numericError(proto.ErrNoSuchChannel, name+" :No such channel")
	}

	ch, created := h.channels.GetOrCreate(name, "Welcome to "+name)
	if created {
		s.log.Debug().Str("channel", name).Msg("channel created")
	}
	if !ch.Add(s) {
		return nil
	}
	if !s.addChannel(name) {
		ch.Remove(s)
		return ErrSessionClosed
	}

	ch.Broadcast(proto.Event(s.Hostmask(), proto.CmdJoin, name))
	h.sendTopic(s, ch)
	h.sendNames(s, ch)
	h.numeric(s, proto.RplCreationTime, fmt.Sprintf("%s %d", name, ch.CreatedAt().Unix()))
	return nil
}

func (h *Hub) handlePart(_ context.Context, s *Session, msg *proto.Message) error {
	name := proto.NormalizeChannel(msg.Param(0))
	ch, ok := h.channels.Get(name)
	if !ok || !ch.Remove(s) {
		return nil
	}
	s.removeChannel(name)

	line := proto.Event(s.Hostmask(), proto.CmdPart, name)
	ch.Broadcast(line)
	s.Deliver(line)
	return nil
}

func (h *Hub) handleTopic(_ context.Context, s *Session, msg *proto.Message) error {
	name := proto.NormalizeChannel(msg.Param(0))
	ch, ok := h.channels.Get(name)
	if !ok {
		return numericError(proto.ErrNoSuchChannel, name+" :No such channel")
	}

	if len(msg.Params) < 2 {
		h.sendTopic(s, ch)
		return nil
	}

	topic := msg.Param(1)
	ch.SetTopic(topic)
	ch.Broadcast(fmt.Sprintf(":%s TOPIC %s :%s", s.Nickname(), name, topic))
	return nil
}

func (h *Hub) handlePrivmsg(_ context.Context, s *Session, msg *proto.Message) error {
	target, text := msg.Param(0), msg.Param(1)
	line := fmt.Sprintf(":%s PRIVMSG %s :%s", s.Hostmask(), target, text)

	if strings.HasPrefix(target, "#") {
		ch, ok := h.channels.Get(target)
		if !ok {
			return numericError(proto.ErrNoSuchChannel, target+" :No such channel")
		}
		ch.Broadcast(line)
		return nil
	}

	peer := h.sessions.ByNick(target)
	if peer == nil {
		s.log.Debug().Str("target", target).Msg("private message to unknown nick dropped")
		return nil
	}
	peer.Deliver(line)
	if away := peer.Away(); away != "" {
		h.numeric(s, proto.RplAway, peer.Nickname()+" :"+away)
	}
	return nil
}

func (h *Hub) handleNames(_ context.Context, s *Session, msg *proto.Message) error {
	if len(msg.Params) == 0 || msg.Param(0) == "" {
		for _, name := range s.Channels() {
			if ch, ok := h.channels.Get(name); ok {
				h.sendNames(s, ch)
			}
		}
		return nil
	}

	name := proto.NormalizeChannel(msg.Param(0))
	ch, ok := h.channels.Get(name)
	if !ok {
		h.numeric(s, proto.RplEndOfNames, name+" :End of /NAMES list")
		return nil
	}
	h.sendNames(s, ch)
	return nil
}

func (h *Hub) sendTopic(s *Session, ch *Channel) {
	if topic := ch.Topic(); topic != "" {
		h.numeric(s, proto.RplTopic, ch.Name()+" :"+topic)
		return
	}
	h.numeric(s, proto.RplNoTopic, ch.Name()+" :No topic is set")
}

func (h *Hub) sendNames(s *Session, ch *Channel) {
	h.numeric(s, proto.RplNamReply, "= "+ch.Name()+" :"+strings.Join(ch.Names(), " "))
	h.numeric(s, proto.RplEndOfNames, ch.Name()+" :End of /NAMES list")
}
