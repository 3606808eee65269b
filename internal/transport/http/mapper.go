package http

import (
	"time"

	"github.com/vovakirdan/ircchat/internal/core"
	"github.com/vovakirdan/ircchat/internal/store"
)

// ChannelResponse represents a channel in API responses.
type ChannelResponse struct {
	Name      string `json:"name"`
	Topic     string `json:"topic"`
	Members   int    `json:"members"`
	CreatedAt string `json:"created_at"`
}

// SessionResponse represents a live session in API responses.
type SessionResponse struct {
	ID          string   `json:"id"`
	Nickname    string   `json:"nickname"`
	Host        string   `json:"host"`
	Channels    []string `json:"channels"`
	Away        string   `json:"away,omitempty"`
	ConnectedAt string   `json:"connected_at"`
}

// UserResponse represents an account in API responses.
type UserResponse struct {
	ID         int64   `json:"id"`
	Username   string  `json:"username"`
	Email      string  `json:"email"`
	Online     bool    `json:"online"`
	CreatedAt  string  `json:"created_at"`
	LastSeenAt *string `json:"last_seen_at,omitempty"`
}

func channelsResponse(infos []core.ChannelInfo) []ChannelResponse {
	out := make([]ChannelResponse, 0, len(infos))
	for _, ch := range infos {
		out = append(out, ChannelResponse{
			Name:      ch.Name,
			Topic:     ch.Topic,
			Members:   ch.Members,
			CreatedAt: ch.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return out
}

func sessionsResponse(infos []core.SessionInfo) []SessionResponse {
	out := make([]SessionResponse, 0, len(infos))
	for _, s := range infos {
		channels := s.Channels
		if channels == nil {
			channels = []string{}
		}
		out = append(out, SessionResponse{
			ID:          s.ID,
			Nickname:    s.Nickname,
			Host:        s.Host,
			Channels:    channels,
			Away:        s.Away,
			ConnectedAt: s.ConnectedAt.UTC().Format(time.RFC3339),
		})
	}
	return out
}

func userResponse(u *store.User) UserResponse {
	resp := UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Online:    u.Online,
		CreatedAt: u.CreatedAt.UTC().Format(time.RFC3339),
	}
	if u.LastSeenAt != nil {
		ts := u.LastSeenAt.UTC().Format(time.RFC3339)
		resp.LastSeenAt = &ts
	}
	return resp
}
