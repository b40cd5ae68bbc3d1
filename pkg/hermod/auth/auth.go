// Package auth implements the daemon's single-user authentication: a
// configured password is exchanged for a signed bearer token, and every
// protected surface (REST and the WebSocket relay) verifies that token.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Errors returned by Login and Verify.
var (
	ErrBadPassword  = errors.New("invalid password")
	ErrInvalidToken = errors.New("invalid or expired token")
)

// DefaultTokenTTL is how long issued tokens stay valid.
const DefaultTokenTTL = 24 * time.Hour

// Config holds authentication configuration.
type Config struct {
	// Password is the web UI password. Empty means all logins are denied.
	Password string `yaml:"password"`

	// JWTSecret signs issued tokens (HS256).
	JWTSecret string `yaml:"jwt_secret"`

	// TokenTTLHours overrides the default 24h token lifetime.
	TokenTTLHours int `yaml:"token_ttl_hours"`
}

// Claims is the verified identity attached to a token.
type Claims struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Service issues and verifies bearer tokens.
type Service struct {
	password []byte
	secret   []byte
	ttl      time.Duration
	logger   *slog.Logger
}

// New creates the auth service. A missing JWT secret is an error: tokens
// signed with a guessable default would make the relay effectively open.
func New(cfg Config, logger *slog.Logger) (*Service, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("auth.jwt_secret is required; set HERMOD_JWT_SECRET")
	}
	if logger == nil {
		logger = slog.Default()
	}

	ttl := DefaultTokenTTL
	if cfg.TokenTTLHours > 0 {
		ttl = time.Duration(cfg.TokenTTLHours) * time.Hour
	}

	return &Service{
		password: []byte(cfg.Password),
		secret:   []byte(cfg.JWTSecret),
		ttl:      ttl,
		logger:   logger.With("component", "auth"),
	}, nil
}

// Login checks the password in constant time and returns a signed token.
// With no password configured, access is denied rather than open.
func (s *Service) Login(password string) (string, error) {
	if len(s.password) == 0 {
		s.logger.Warn("login attempted with no password configured")
		return "", ErrBadPassword
	}
	if subtle.ConstantTimeCompare([]byte(password), s.password) != 1 {
		return "", ErrBadPassword
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "admin",
		"iat": now.Unix(),
		"exp": now.Add(s.ttl).Unix(),
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}

	s.logger.Info("login successful")
	return signed, nil
}

// Verify validates a token and returns its claims, or ErrInvalidToken.
func (s *Service) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	claims := &Claims{}
	if sub, err := mapClaims.GetSubject(); err == nil {
		claims.Subject = sub
	}
	if iat, err := mapClaims.GetIssuedAt(); err == nil && iat != nil {
		claims.IssuedAt = iat.Time
	}
	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}

	return claims, nil
}
