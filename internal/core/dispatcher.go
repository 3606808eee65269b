package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vovakirdan/ircchat/internal/proto"
)

type handlerFunc func(ctx context.Context, s *Session, msg *proto.Message) error

type command struct {
	handler   handlerFunc
	minParams int
	// preAuth commands are accepted before AUTH/REGISTER succeeds.
	preAuth bool
	// needsNick commands require a bound nickname.
	needsNick bool
}

func (h *Hub) commandTable() map[string]command {
	return map[string]command{
		proto.CmdAuth:     {handler: h.handleAuth, minParams: 2, preAuth: true},
		proto.CmdRegister: {handler: h.handleRegister, minParams: 2, preAuth: true},
		proto.CmdPing:     {handler: h.handlePing, preAuth: true},
		proto.CmdPong:     {handler: h.handlePong, preAuth: true},
		proto.CmdQuit:     {handler: h.handleQuit, preAuth: true},
		proto.CmdVersion:  {handler: h.handleVersion, preAuth: true},
		proto.CmdUser:     {handler: h.handleUser, minParams: 4, preAuth: true},
		proto.CmdNick:     {handler: h.handleNick},
		proto.CmdJoin:     {handler: h.handleJoin, minParams: 1, needsNick: true},
		proto.CmdPart:     {handler: h.handlePart, minParams: 1, needsNick: true},
		proto.CmdTopic:    {handler: h.handleTopic, minParams: 1, needsNick: true},
		proto.CmdPrivmsg:  {handler: h.handlePrivmsg, minParams: 2, needsNick: true},
		proto.CmdList:     {handler: h.handleList, needsNick: true},
		proto.CmdNames:    {handler: h.handleNames, needsNick: true},
		proto.CmdWhois:    {handler: h.handleWhois, minParams: 1, needsNick: true},
		proto.CmdAway:     {handler: h.handleAway, needsNick: true},
		proto.CmdMode:     {handler: h.handleMode, minParams: 1, needsNick: true},
	}
}

// Handle parses and executes one inbound line for s. Protocol errors are
// answered with numerics and never close the session. A panicking handler
// is treated as a disconnect.
func (h *Hub) Handle(s *Session, line string) (err error) {
	if s.Closed() {
		return ErrSessionClosed
	}

	msg := proto.Parse(line)
	if msg == nil {
		s.liveness.Observe("", time.Now())
		return nil
	}
	s.liveness.Observe(msg.Command, time.Now())

	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Str("command", msg.Command).Msg("handler panic")
			h.Cleanup(s, "Internal error")
			err = fmt.Errorf("handle %s: panic: %v", msg.Command, r)
		}
	}()

	cmd, known := h.commands[msg.Command]
	if !s.Authenticated() && (!known || !cmd.preAuth) {
		h.numeric(s, proto.ErrMustAuthenticate, ":Must authenticate first")
		return nil
	}
	if !known {
		s.log.Debug().Str("command", msg.Command).Msg("unknown command ignored")
		return nil
	}
	if cmd.needsNick && !s.Registered() {
		h.numeric(s, proto.ErrNotRegistered, ":You have not registered")
		return nil
	}
	if len(msg.Params) < cmd.minParams {
		h.reply(s, needMoreParams(msg.Command))
		return nil
	}

	s.log.Debug().Str("command", msg.Command).Strs("params", msg.Params).Msg("dispatch")
	if err := cmd.handler(s.Context(), s, msg); err != nil {
		h.reply(s, err)
	}
	return nil
}

// reply turns a handler error into a numeric for the session; other errors
// are logged only.
func (h *Hub) reply(s *Session, err error) {
	var ne *NumericError
	if errors.As(err, &ne) {
		h.numeric(s, ne.Code, ne.Text)
		return
	}
	s.log.Warn().Err(err).Msg("command failed")
}
