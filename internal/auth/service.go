package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vovakirdan/ircchat/internal/proto"
	"github.com/vovakirdan/ircchat/internal/store"
)

var (
	// ErrInvalidCredentials is returned when username/secret don't match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists is returned when a username is already taken.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidUsername is returned when username is not a valid nickname.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrInvalidPassword is returned when password doesn't meet constraints.
	ErrInvalidPassword = errors.New("invalid password")
)

// Service provides account operations on top of a user store.
type Service struct {
	store     store.UserStore
	jwtConfig *JWTConfig
}

// NewService creates a new authentication service.
func NewService(userStore store.UserStore, jwtConfig *JWTConfig) *Service {
	return &Service{
		store:     userStore,
		jwtConfig: jwtConfig,
	}
}

// Register creates a new user with a hashed password. An empty email
// defaults to <username>@example.com.
func (s *Service) Register(ctx context.Context, username, password, email string) (*store.User, error) {
	username = strings.TrimSpace(username)
	if !proto.ValidNick(username) {
		return nil, ErrInvalidUsername
	}
	if err := checkPassword(password); err != nil {
		return nil, err
	}
	if email == "" {
		email = username + "@example.com"
	}

	existing, err := s.store.GetUserByUsername(ctx, username)
	if err == nil && existing != nil {
		return nil, ErrUserExists
	}

	hashedPassword, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	user, err := s.store.CreateUser(ctx, username, hashedPassword, email)
	if err != nil {
		if errors.Is(err, store.ErrUsernameTaken) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

// Authenticate accepts either the account password or a token previously
// issued for the same account.
func (s *Service) Authenticate(ctx context.Context, username, secret string) (*store.User, error) {
	if secret == "" {
		return nil, ErrInvalidCredentials
	}

	if claims, err := ValidateToken(s.jwtConfig, secret); err == nil {
		user, err := s.store.GetUserByID(ctx, claims.UserID)
		if err != nil {
			return nil, ErrInvalidCredentials
		}
		// The token survives a rename, so the caller may present either name.
		if !strings.EqualFold(username, user.Username) && !strings.EqualFold(username, claims.Username) {
			return nil, ErrInvalidCredentials
		}
		return user, nil
	}

	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if !PasswordMatches(user.PasswordHash, secret) {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// Rename moves the account with userID to a new username.
func (s *Service) Rename(ctx context.Context, userID int64, newName string) error {
	if !proto.ValidNick(newName) {
		return ErrInvalidUsername
	}
	if _, err := s.store.RenameUser(ctx, userID, newName); err != nil {
		if errors.Is(err, store.ErrUsernameTaken) {
			return ErrUserExists
		}
		return fmt.Errorf("rename user: %w", err)
	}
	return nil
}

// SetOnline records presence for a user.
func (s *Service) SetOnline(ctx context.Context, userID int64, online bool) error {
	if err := s.store.SetOnline(ctx, userID, online); err != nil {
		return fmt.Errorf("set online: %w", err)
	}
	return nil
}

// IssueToken signs a resume token for user.
func (s *Service) IssueToken(user *store.User) (string, error) {
	token, err := GenerateToken(s.jwtConfig, user.ID, user.Username)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return token, nil
}

// ValidateToken validates a JWT token and returns the claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return ValidateToken(s.jwtConfig, tokenString)
}
