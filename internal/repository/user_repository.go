package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ecorvi/schmng-api/internal/models"
	"github.com/ecorvi/schmng-api/pkg/docstore"
)

// UserRepository stores accounts keyed by uid.
type UserRepository struct {
	*Collection[models.User]
}

// NewUserRepository binds the users collection.
func NewUserRepository(gw docstore.Gateway) *UserRepository {
	return &UserRepository{Collection: NewCollection[models.User](gw, models.CollectionUsers)}
}

// FindByEmail returns the account registered with email. Emails are stored lower-cased.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	users, err := r.Query(ctx, docstore.Where("email", strings.ToLower(strings.TrimSpace(email))))
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("user %s: %w", email, docstore.ErrNotFound)
	}
	return &users[0], nil
}

// UpdateLastLogin records a successful login.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	return r.Update(ctx, id, map[string]any{"last_login": ts, "updated_at": ts})
}

// UpdatePassword stores a new password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, hash string, ts time.Time) error {
	return r.Update(ctx, id, map[string]any{"password_hash": hash, "updated_at": ts})
}
