// Package prefs decides whether a recipient should receive a notification of
// a given category, based on the master push flag and the per-user
// preference matrix.
//
// Two deliberate, asymmetric failure policies live here: a missing user
// denies (we cannot attribute consent to nobody), while a storage error
// permits (delivery availability is favored over strict preference
// enforcement when the store is flaky). Keep both when touching this code.
package prefs

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/table-talk25/tabletalk-notify/internal/category"
	"github.com/table-talk25/tabletalk-notify/internal/store"
)

// UserReader is the slice of the record store the resolver needs.
type UserReader interface {
	User(ctx context.Context, id string) (*store.User, error)
}

// Resolver answers category-level preference checks.
type Resolver struct {
	users  UserReader
	logger *slog.Logger
}

// NewResolver builds a Resolver around a user accessor.
func NewResolver(users UserReader, logger *slog.Logger) *Resolver {
	return &Resolver{users: users, logger: logger}
}

// CanReceive reports whether the user accepts notifications of the given
// category. The category may be an enum name, a dotted preference path, or a
// short alias. Never returns an error: every failure mode resolves to a
// deny-or-permit decision here.
func (r *Resolver) CanReceive(ctx context.Context, userID, cat string) bool {
	u, err := r.users.User(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			r.logger.Warn("preference check for missing user, denying",
				"user_id", userID, "category", cat)
			return false
		}
		// Storage error: permit rather than silently drop deliveries while
		// the store is degraded.
		r.logger.Warn("preference lookup failed, permitting",
			"user_id", userID, "category", cat, "error", err)
		return true
	}

	if !u.PushOn() {
		return false
	}

	c, ok := category.Normalize(cat)
	if !ok {
		// New or unrecognized category: permissive fallback so rollout of a
		// category never silently drops notifications.
		r.logger.Warn("unrecognized notification category, permitting",
			"user_id", userID, "category", cat)
		return true
	}

	path, ok := c.PreferencePath()
	if !ok {
		r.logger.Warn("category has no preference path, permitting",
			"user_id", userID, "category", cat)
		return true
	}

	group, key, found := strings.Cut(path, ".")
	if !found {
		return true
	}
	keys, ok := u.Preferences[group]
	if !ok {
		return true
	}
	enabled, ok := keys[key]
	if !ok {
		return true
	}
	return enabled
}
