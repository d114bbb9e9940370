// Package services contains server-side business logic. This file implements
// SessionService, which owns the token lifecycle: registration, login,
// access-token authentication, refresh and logout.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/logging"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/auth"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/password"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/users"
	"github.com/google/uuid"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// SessionService provides the session operations. It keeps no state between
// calls and is safe for concurrent use.
type SessionService struct {
	users   users.Repository
	ledger  refreshtokens.Repository
	hasher  password.Hasher
	codec   *auth.Codec
	log     logging.Logger
	metrics *metrics.Metrics

	// dummyHash is verified against when the user does not exist, so that
	// unknown users and wrong passwords cost the same.
	dummyHash string
}

// NewSessionService wires the service. m may be nil.
func NewSessionService(
	u users.Repository,
	ledger refreshtokens.Repository,
	hasher password.Hasher,
	codec *auth.Codec,
	log logging.Logger,
	m *metrics.Metrics,
) (*SessionService, error) {
	dummy, err := hasher.Hash("tokenkeeper-dummy-password")
	if err != nil {
		return nil, fmt.Errorf("preparing dummy hash: %w", err)
	}

	return &SessionService{
		users:     u,
		ledger:    ledger,
		hasher:    hasher,
		codec:     codec,
		log:       log.With("module", "sessions"),
		metrics:   m,
		dummyHash: dummy,
	}, nil
}

// Register creates a user. A taken username yields common.ErrorAlreadyExists.
func (s *SessionService) Register(ctx context.Context, username, plain string) (user *models.User, err error) {
	defer func() { s.observe("register", err) }()

	if username == "" || plain == "" {
		return nil, fmt.Errorf("%w: username and password are required", common.ErrorValidation)
	}

	hash, err := s.hasher.Hash(plain)
	if err != nil {
		if errors.Is(err, password.ErrPasswordTooLong) {
			return nil, fmt.Errorf("%w: %v", common.ErrorValidation, err)
		}
		s.log.Error(ctx, "hashing password failed", "error", err)
		return nil, common.ErrorInternal
	}

	user = &models.User{
		ID:           uuid.NewString(),
		UserName:     username,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}

	created, err := s.users.Create(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.ErrorAlreadyExists
		}
		s.log.Error(ctx, "creating user failed", "error", err)
		return nil, common.ErrorInternal
	}

	s.log.Info(ctx, "user registered", "user_id", created.ID)
	return created, nil
}

// Login checks credentials and returns a fresh token pair. The refresh token
// is recorded in the ledger before it is returned.
func (s *SessionService) Login(ctx context.Context, username, plain string) (pair *TokenPair, err error) {
	defer func() { s.observe("login", err) }()

	if username == "" || plain == "" {
		return nil, fmt.Errorf("%w: username and password are required", common.ErrorValidation)
	}

	user, err := s.users.GetUserByLogin(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.hasher.Verify(plain, s.dummyHash)
			return nil, common.ErrorUnauthorized
		}
		s.log.Error(ctx, "looking up user failed", "error", err)
		return nil, common.ErrorInternal
	}

	if !s.hasher.Verify(plain, user.PasswordHash) {
		return nil, common.ErrorUnauthorized
	}

	access, err := s.codec.IssueAccess(user)
	if err != nil {
		s.log.Error(ctx, "issuing access token failed", "error", err)
		return nil, common.ErrorInternal
	}

	refresh, expiresAt, err := s.codec.IssueRefresh(user)
	if err != nil {
		s.log.Error(ctx, "issuing refresh token failed", "error", err)
		return nil, common.ErrorInternal
	}

	if err := s.ledger.Create(ctx, user.ID, refresh, expiresAt); err != nil {
		s.log.Error(ctx, "recording refresh token failed", "user_id", user.ID, "error", err)
		return nil, common.ErrorInternal
	}

	s.log.Info(ctx, "user logged in", "user_id", user.ID)
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Authenticate verifies an access token. The ledger is not consulted.
func (s *SessionService) Authenticate(ctx context.Context, accessToken string) (claims *auth.Claims, err error) {
	defer func() { s.observe("authenticate", err) }()

	claims, err = s.verify(ctx, accessToken, auth.KindAccess)
	if err != nil {
		return nil, common.ErrorUnauthorized
	}
	return claims, nil
}

// Refresh exchanges a recorded, valid refresh token for a new access token.
// The refresh token itself stays in the ledger unchanged.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (access string, err error) {
	defer func() { s.observe("refresh", err) }()

	if refreshToken == "" {
		return "", fmt.Errorf("%w: refresh token is required", common.ErrorValidation)
	}

	found, err := s.ledger.Exists(ctx, refreshToken)
	if err != nil {
		s.log.Error(ctx, "checking refresh token failed", "error", err)
		return "", common.ErrorInternal
	}
	if !found {
		s.log.Debug(ctx, "refresh token not in ledger")
		return "", common.ErrorForbidden
	}

	claims, err := s.verify(ctx, refreshToken, auth.KindRefresh)
	if err != nil {
		return "", common.ErrorForbidden
	}

	access, err = s.codec.IssueAccess(&models.User{ID: claims.UserID, UserName: claims.UserName})
	if err != nil {
		s.log.Error(ctx, "issuing access token failed", "error", err)
		return "", common.ErrorInternal
	}

	return access, nil
}

// Logout revokes a refresh token. Revoking a token that is not recorded
// succeeds.
func (s *SessionService) Logout(ctx context.Context, refreshToken string) (err error) {
	defer func() { s.observe("logout", err) }()

	if refreshToken == "" {
		return fmt.Errorf("%w: refresh token is required", common.ErrorValidation)
	}

	if err := s.ledger.Delete(ctx, refreshToken); err != nil {
		s.log.Error(ctx, "revoking refresh token failed", "error", err)
		return common.ErrorInternal
	}

	return nil
}

func (s *SessionService) verify(ctx context.Context, token string, kind auth.Kind) (*auth.Claims, error) {
	claims, err := s.codec.Verify(token, kind)
	result := verificationResult(err)
	s.metrics.ObserveVerification(kind.String(), result)
	if err != nil {
		s.log.Debug(ctx, "token rejected", "kind", kind.String(), "reason", result, "error", err)
		return nil, err
	}
	return claims, nil
}

func (s *SessionService) observe(operation string, err error) {
	s.metrics.ObserveOperation(operation, outcome(err))
}

func verificationResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, common.ErrTokenExpired):
		return "expired"
	case errors.Is(err, common.ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, common.ErrTokenMalformed):
		return "malformed"
	default:
		return "invalid"
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, common.ErrorValidation):
		return "validation"
	case errors.Is(err, common.ErrorAlreadyExists):
		return "conflict"
	case errors.Is(err, common.ErrorUnauthorized):
		return "unauthorized"
	case errors.Is(err, common.ErrorForbidden):
		return "forbidden"
	default:
		return "internal"
	}
}
