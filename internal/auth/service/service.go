// Package service implements authentication: credential checks, JWT issuance
// and refresh token rotation.
package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"conviaq_backend/internal/auth/repository"
	"conviaq_backend/internal/auth/transport"
	"conviaq_backend/platform/apperr"
	"conviaq_backend/platform/config"
	"conviaq_backend/platform/logger"
)

// Store is the data access surface of the auth service.
type Store interface {
	GetByEmail(ctx context.Context, email string) (repository.User, error)
	GetByID(ctx context.Context, userID int64) (repository.User, error)
	TouchLastLogin(ctx context.Context, userID int64) error
	TenantActive(ctx context.Context, tenantID int64) (bool, error)
}

type Service struct {
	store Store
	cfg   config.AuthServiceConfig
	log   *logger.Logger
}

func New(store Store, cfg config.AuthServiceConfig, log *logger.Logger) *Service {
	return &Service{store: store, cfg: cfg, log: log}
}

// Login verifies credentials and issues an access/refresh token pair.
// Invalid email and invalid password answer identically so accounts cannot
// be enumerated.
func (s *Service) Login(ctx context.Context, req transport.LoginRequest) (transport.TokenPairResponse, error) {
	user, err := s.store.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.log.AuthEvent("login", req.Email, false, "unknown email")
			return transport.TokenPairResponse{}, apperr.Unauthorized("invalid credentials")
		}
		return transport.TokenPairResponse{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.log.AuthEvent("login", req.Email, false, "bad password")
		return transport.TokenPairResponse{}, apperr.Unauthorized("invalid credentials")
	}

	if !user.IsActive {
		return transport.TokenPairResponse{}, apperr.Forbidden("account disabled")
	}

	active, err := s.store.TenantActive(ctx, user.TenantID)
	if err != nil {
		return transport.TokenPairResponse{}, err
	}
	if !active {
		return transport.TokenPairResponse{}, apperr.Forbidden("tenant suspended")
	}

	if err := s.store.TouchLastLogin(ctx, user.ID); err != nil {
		// Login still succeeds; the timestamp is informational.
		s.log.DatabaseError("touch_last_login", err)
	}

	pair, err := s.issuePair(user)
	if err != nil {
		return transport.TokenPairResponse{}, err
	}

	s.log.AuthEvent("login", user.Email, true, "")
	return pair, nil
}

// Refresh validates a refresh token and issues a fresh pair. The user row is
// re-read so role or status changes take effect at rotation time.
func (s *Service) Refresh(ctx context.Context, rawToken string) (transport.TokenPairResponse, error) {
	claims, err := s.parseRefreshClaims(rawToken)
	if err != nil {
		return transport.TokenPairResponse{}, apperr.Unauthorized("invalid token")
	}

	sub, _ := claims["sub"].(string)
	userID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || userID <= 0 {
		return transport.TokenPairResponse{}, apperr.Unauthorized("invalid token")
	}

	user, err := s.store.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.TokenPairResponse{}, apperr.Unauthorized("invalid token")
		}
		return transport.TokenPairResponse{}, err
	}
	if !user.IsActive {
		return transport.TokenPairResponse{}, apperr.Forbidden("account disabled")
	}

	active, err := s.store.TenantActive(ctx, user.TenantID)
	if err != nil {
		return transport.TokenPairResponse{}, err
	}
	if !active {
		return transport.TokenPairResponse{}, apperr.Forbidden("tenant suspended")
	}

	return s.issuePair(user)
}

// Me returns the profile of the authenticated user.
func (s *Service) Me(ctx context.Context, userID int64) (transport.UserResponse, error) {
	user, err := s.store.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.UserResponse{}, apperr.NotFound("user not found")
		}
		return transport.UserResponse{}, err
	}
	return transport.ToUserResponse(user), nil
}

func (s *Service) issuePair(user repository.User) (transport.TokenPairResponse, error) {
	now := time.Now()

	access, err := s.signToken(jwt.MapClaims{
		"sub":       strconv.FormatInt(user.ID, 10),
		"tenant_id": strconv.FormatInt(user.TenantID, 10),
		"roles":     user.Roles,
		"type":      "access",
		"iat":       now.Unix(),
		"exp":       now.Add(s.cfg.GetAccessTokenTTL()).Unix(),
	}, s.cfg.GetJWTAccessSecret())
	if err != nil {
		return transport.TokenPairResponse{}, err
	}

	refresh, err := s.signToken(jwt.MapClaims{
		"sub":  strconv.FormatInt(user.ID, 10),
		"type": "refresh",
		"iat":  now.Unix(),
		"exp":  now.Add(s.cfg.GetRefreshTokenTTL()).Unix(),
	}, s.cfg.GetJWTRefreshSecret())
	if err != nil {
		return transport.TokenPairResponse{}, err
	}

	return transport.TokenPairResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.cfg.GetAccessTokenTTL().Seconds()),
		User:         transport.ToUserResponse(user),
	}, nil
}

func (s *Service) signToken(claims jwt.MapClaims, secret string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "token signing failed", err)
	}
	return signed, nil
}

func (s *Service) parseRefreshClaims(rawToken string) (jwt.MapClaims, error) {
	parsed, err := jwt.Parse(rawToken, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return []byte(s.cfg.GetJWTRefreshSecret()), nil
	})
	if err != nil || !parsed.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token")
	}
	if tokenType, _ := claims["type"].(string); tokenType != "refresh" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
