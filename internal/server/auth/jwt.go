// Package auth implements the token codec: signing and verifying the JWTs
// handed out by the session service. Access and refresh tokens use separate
// signing contexts, each with its own secret, lifetime and audience, so a
// token minted in one context never verifies in the other.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/config"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

// Issuer is the "iss" claim of every token minted by the codec.
const Issuer = "tokenkeeper"

// Kind selects a signing context.
type Kind int

const (
	KindAccess Kind = iota
	KindRefresh
)

func (k Kind) String() string {
	switch k {
	case KindAccess:
		return "access"
	case KindRefresh:
		return "refresh"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Claims is the identity payload of a token. The user ID is carried both as
// "id" and as the registered "sub" claim.
type Claims struct {
	UserID   string `json:"id"`
	UserName string `json:"username"`
	jwt.RegisteredClaims
}

type signingContext struct {
	secret   []byte
	validity time.Duration
	audience string
}

// Codec issues and verifies access and refresh tokens. It is immutable after
// construction and safe for concurrent use.
type Codec struct {
	access  signingContext
	refresh signingContext
	now     func() time.Time
}

// Option customizes a Codec.
type Option func(*Codec)

// WithClock replaces time.Now, for both issuing and verifying.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCodec builds a Codec from the token settings in cfg. Misconfiguration is
// reported here, once, so that issuing never fails for configuration reasons.
func NewCodec(cfg *config.Config, opts ...Option) (*Codec, error) {
	switch {
	case cfg.AccessTokenSecret == "" || cfg.RefreshTokenSecret == "":
		return nil, errors.New("auth: token secrets must be set")
	case cfg.AccessTokenSecret == cfg.RefreshTokenSecret:
		return nil, errors.New("auth: access and refresh secrets must differ")
	case cfg.AccessTokenValidityDuration <= 0 || cfg.RefreshTokenValidityDuration <= 0:
		return nil, errors.New("auth: token validity must be positive")
	case cfg.RefreshTokenValidityDuration <= cfg.AccessTokenValidityDuration:
		return nil, errors.New("auth: refresh token validity must exceed access token validity")
	}

	c := &Codec{
		access: signingContext{
			secret:   []byte(cfg.AccessTokenSecret),
			validity: cfg.AccessTokenValidityDuration,
			audience: KindAccess.String(),
		},
		refresh: signingContext{
			secret:   []byte(cfg.RefreshTokenSecret),
			validity: cfg.RefreshTokenValidityDuration,
			audience: KindRefresh.String(),
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// IssueAccess mints an access token for user.
func (c *Codec) IssueAccess(user *models.User) (string, error) {
	token, _, err := c.issue(user, c.access)
	return token, err
}

// IssueRefresh mints a refresh token for user and returns it with its expiry.
func (c *Codec) IssueRefresh(user *models.User) (string, time.Time, error) {
	return c.issue(user, c.refresh)
}

func (c *Codec) issue(user *models.User, sc signingContext) (string, time.Time, error) {
	now := c.now()
	expiresAt := jwt.NewNumericDate(now.Add(sc.validity))

	id, err := ulid.New(ulid.Timestamp(now), ulid.DefaultEntropy())
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generating token id: %w", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:   user.ID,
		UserName: user.UserName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   user.ID,
			Audience:  jwt.ClaimStrings{sc.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: expiresAt,
			ID:        id.String(),
		},
	})

	tokenString, err := token.SignedString(sc.secret)
	if err != nil {
		return "", time.Time{}, err
	}

	return tokenString, expiresAt.Time, nil
}

// Verify checks tokenString against the signing context of kind: HS256
// signature with that context's secret, issuer, audience and expiry.
//
// The returned error wraps one of common.ErrInvalidSignature,
// common.ErrTokenExpired, common.ErrTokenMalformed or common.ErrInvalidToken.
func (c *Codec) Verify(tokenString string, kind Kind) (*Claims, error) {
	var sc signingContext
	switch kind {
	case KindAccess:
		sc = c.access
	case KindRefresh:
		sc = c.refresh
	default:
		return nil, fmt.Errorf("%w: unknown token kind %v", common.ErrInvalidToken, kind)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithAudience(sc.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)

	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return sc.secret, nil
	})
	if err != nil {
		return nil, classify(err)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %w", common.ErrTokenMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %w", common.ErrInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %w", common.ErrTokenExpired, err)
	default:
		return fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
	}
}
