package auth

import (
	"context"
	"errors"
	"time"

	"github.com/pocketbank/pocketbank/internal/config"
	"github.com/pocketbank/pocketbank/internal/identity"
)

// ErrTokenRevoked indicates the token was minted before the user's last logout.
var ErrTokenRevoked = errors.New("token version invalidated")

// Service issues, verifies and revokes tokens.
type Service struct {
	cfg config.Config
	ids *identity.Service
	now func() time.Time
}

// NewService builds a token service on top of the identity service.
func NewService(cfg config.Config, ids *identity.Service) *Service {
	return &Service{cfg: cfg, ids: ids, now: time.Now}
}

// TokenPair is the result of a successful login.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

// Login validates credentials and issues an access and refresh token.
func (s *Service) Login(ctx context.Context, creds identity.Credentials) (identity.User, TokenPair, error) {
	user, err := s.ids.Authenticate(ctx, creds)
	if err != nil {
		return identity.User{}, TokenPair{}, err
	}
	access, err := s.sign(user.ID, user.TokenVersion, tokenTypeAccess, []byte(s.cfg.JWTSecret), s.cfg.AccessTokenTTL)
	if err != nil {
		return identity.User{}, TokenPair{}, err
	}
	refresh, err := s.sign(user.ID, user.TokenVersion, tokenTypeRefresh, []byte(s.cfg.RefreshSecret), s.cfg.RefreshTokenTTL)
	if err != nil {
		return identity.User{}, TokenPair{}, err
	}
	return user, TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.cfg.AccessTokenTTL.Seconds()),
	}, nil
}

// VerifyAccess resolves an access token to its still-current user.
func (s *Service) VerifyAccess(ctx context.Context, token string) (identity.User, error) {
	return s.verify(ctx, token, tokenTypeAccess, []byte(s.cfg.JWTSecret))
}

// Refresh verifies the refresh token and returns a new access token if valid.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, int64, error) {
	user, err := s.verify(ctx, refreshToken, tokenTypeRefresh, []byte(s.cfg.RefreshSecret))
	if err != nil {
		return "", 0, err
	}
	signed, err := s.sign(user.ID, user.TokenVersion, tokenTypeAccess, []byte(s.cfg.JWTSecret), s.cfg.AccessTokenTTL)
	if err != nil {
		return "", 0, err
	}
	return signed, int64(s.cfg.AccessTokenTTL.Seconds()), nil
}

// Logout increments the token version so older tokens become invalid.
func (s *Service) Logout(ctx context.Context, userID string) error {
	user, err := s.ids.Profile(ctx, userID)
	if err != nil {
		return err
	}
	return s.ids.BumpTokenVersion(ctx, user)
}

func (s *Service) verify(ctx context.Context, token, typ string, secret []byte) (identity.User, error) {
	claims, err := ParseAndVerifyHS256(token, secret, s.now())
	if err != nil {
		return identity.User{}, err
	}
	if claims.Type != typ {
		return identity.User{}, ErrInvalidToken
	}
	user, err := s.ids.Profile(ctx, claims.Subject)
	if errors.Is(err, identity.ErrUserNotFound) {
		return identity.User{}, ErrInvalidToken
	}
	if err != nil {
		return identity.User{}, err
	}
	if user.TokenVersion != claims.Version {
		return identity.User{}, ErrTokenRevoked
	}
	return user, nil
}

func (s *Service) sign(userID string, version int, typ string, secret []byte, ttl time.Duration) (string, error) {
	now := s.now()
	return SignHS256(Claims{
		Subject:   userID,
		Version:   version,
		Type:      typ,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
	}, secret)
}
