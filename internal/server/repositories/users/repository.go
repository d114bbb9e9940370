// Package users is the credential store: username to user row, with
// uniqueness enforced by the database.
package users

import (
	"context"

	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
)

type Repository interface {
	// Create inserts user as a single statement. A username that is already
	// taken yields common.ErrorAlreadyExists.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	// GetUserByLogin returns common.ErrorNotFound when no such user exists.
	GetUserByLogin(ctx context.Context, login string) (*models.User, error)
}
