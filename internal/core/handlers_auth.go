package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/vovakirdan/ircchat/internal/proto"
	"github.com/vovakirdan/ircchat/internal/store"
)

const (
	noticeIdentified     = "You are now identified."
	noticeAlreadyIdent   = "You are already identified."
	noticeAuthFailed     = "Authentication failed."
	noticeRegisterFailed = "Registration failed. Username may be taken."
)

func (h *Hub) handleAuth(ctx context.Context, s *Session, msg *proto.Message) error {
	if s.Authenticated() {
		h.notice(s, noticeAlreadyIdent)
		return nil
	}

	user, err := h.users.Authenticate(ctx, msg.Param(0), msg.Param(1))
	if err != nil {
		s.log.Info().Err(err).Str("username", msg.Param(0)).Msg("authentication failed")
		h.notice(s, noticeAuthFailed)
		return nil
	}

	h.completeAuth(ctx, s, user)
	return nil
}

func (h *Hub) handleRegister(ctx context.Context, s *Session, msg *proto.Message) error {
	if s.Authenticated() {
		h.notice(s, noticeAlreadyIdent)
		return nil
	}

	user, err := h.users.Register(ctx, msg.Param(0), msg.Param(1), msg.Param(2))
	if err != nil {
		s.log.Info().Err(err).Str("username", msg.Param(0)).Msg("registration failed")
		h.notice(s, noticeRegisterFailed)
		return nil
	}

	h.completeAuth(ctx, s, user)
	return nil
}

// completeAuth marks s authenticated, hands out a resume token and tries to
// bind the account name as nickname.
func (h *Hub) completeAuth(ctx context.Context, s *Session, user *store.User) {
	s.authenticate(user)
	h.notice(s, noticeIdentified)

	if token, err := h.users.IssueToken(user); err != nil {
		s.log.Warn().Err(err).Msg("issue token failed")
	} else {
		h.notice(s, proto.TokenNoticePrefix+token)
	}

	s.log.Info().Str("username", user.Username).Msg("authenticated")

	h.nickMu.Lock()
	if h.sessions.NickInUse(user.Username, s) {
		h.nickMu.Unlock()
		h.numeric(s, proto.ErrNicknameInUse, user.Username+" :Nickname is already in use")
		return
	}
	s.bindNick(user.Username)
	h.nickMu.Unlock()

	h.welcome(ctx, s)
}

func (h *Hub) handleNick(ctx context.Context, s *Session, msg *proto.Message) error {
	nick := msg.Param(0)
	if nick == "" {
		return numericError(proto.ErrNoNicknameGiven, ":No nickname given")
	}
	if !proto.ValidNick(nick) {
		return numericError(proto.ErrErroneusNickname, nick+" :Erroneous nickname")
	}

	h.nickMu.Lock()
	old := s.Nickname()
	if old == nick {
		h.nickMu.Unlock()
		return nil
	}
	if h.sessions.NickInUse(nick, s) {
		h.nickMu.Unlock()
		return numericError(proto.ErrNicknameInUse, nick+" :Nickname is already in use")
	}

	// Only the session holding the account name renames the account. A nick
	// bound after a collision is session-local.
	if account := s.User(); account != nil && old != "" && strings.EqualFold(old, account.Username) {
		if err := h.users.Rename(ctx, account.ID, nick); err != nil {
			h.nickMu.Unlock()
			s.log.Info().Err(err).Str("nick", nick).Msg("rename failed")
			return numericError(proto.ErrErroneusNickname, nick+" :Nickname change failed")
		}
		for _, peer := range h.sessions.ByAccount(account.ID) {
			peer.setAccountName(nick)
		}
	}
	s.bindNick(nick)
	h.nickMu.Unlock()

	if old == "" {
		h.welcome(ctx, s)
		return nil
	}

	s.log.Info().Str("old", old).Str("new", nick).Msg("nick changed")
	h.sessions.Broadcast(fmt.Sprintf(":%s NICK :%s", old, nick))
	return nil
}

func (h *Hub) handleUser(_ context.Context, s *Session, msg *proto.Message) error {
	username := strings.TrimSpace(msg.Param(0))
	realname := msg.Param(3)
	s.setIdentity(username, realname)
	return nil
}

// welcome marks the account online and sends the 001-004 bundle.
func (h *Hub) welcome(ctx context.Context, s *Session) {
	if user := s.User(); user != nil {
		if err := h.users.SetOnline(ctx, user.ID, true); err != nil {
			s.log.Warn().Err(err).Msg("mark online failed")
		}
	}

	srv, ver := h.opts.ServerName, h.opts.Version
	h.numeric(s, proto.RplWelcome, ":Welcome to the IRC Network "+s.Hostmask())
	h.numeric(s, proto.RplYourHost, fmt.Sprintf(":Your host is %s, running version %s", srv, ver))
	h.numeric(s, proto.RplCreated, ":This server was created "+h.startedAt.Format("Mon Jan 2 15:04:05 MST 2006"))
	h.numeric(s, proto.RplMyInfo, fmt.Sprintf("%s %s o o", srv, ver))
}
