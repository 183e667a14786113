package app

import (
	"context"
	"fmt"

	"moviecatalog/internal/util"
	"moviecatalog/pkg/domain"
)

type seedUser struct {
	fullname string
	email    string
	role     domain.UserRole
}

var defaultUsers = []seedUser{
	{fullname: "Administrator", email: "admin@email.com", role: domain.RoleAdmin},
	{fullname: "User", email: "user@email.com", role: domain.RoleUser},
}

// SeedUsers creates an approved admin and user when the store has no users.
// It reports whether anything was created.
func (a *App) SeedUsers(ctx context.Context, password string) (bool, error) {
	n, err := a.store.UserCount(ctx)
	if err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	if n > 0 {
		return false, nil
	}
	for _, u := range defaultUsers {
		if _, err := a.createUser(ctx, u.fullname, u.email, password, u.role, true, true, nil); err != nil {
			return false, fmt.Errorf("seed %s: %w", u.email, err)
		}
	}
	util.LoggerFromContext(ctx).Info("default users seeded", "count", len(defaultUsers))
	return true, nil
}
