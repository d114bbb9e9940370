// Package refreshtokens is the refresh-token ledger: the set of refresh
// tokens that are currently honoured. A token that verifies but is absent
// from the ledger has been revoked.
package refreshtokens

import (
	"context"
	"time"
)

// Repository records, checks and revokes refresh tokens by their literal value.
type Repository interface {
	// Create records token for userID. expiresAt mirrors the token's own expiry.
	Create(ctx context.Context, userID string, token string, expiresAt time.Time) error

	// Exists reports whether token is currently recorded.
	Exists(ctx context.Context, token string) (bool, error)

	// Delete removes token. Deleting a token that is not recorded is not an error.
	Delete(ctx context.Context, token string) error

	// DeleteExpired removes entries whose expiry is not after now and returns
	// how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
