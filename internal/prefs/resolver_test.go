package prefs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/table-talk25/tabletalk-notify/internal/category"
	"github.com/table-talk25/tabletalk-notify/internal/store"
)

// fakeUsers implements UserReader without a database.
type fakeUsers struct {
	users map[string]*store.User
	err   error
}

func (f *fakeUsers) User(_ context.Context, id string) (*store.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, store.ErrNotFound)
	}
	return u, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCanReceive_DefaultPermit(t *testing.T) {
	// Empty matrix, master flag absent: every known category permitted.
	r := NewResolver(&fakeUsers{users: map[string]*store.User{
		"u1": {ID: "u1"},
	}}, quietLogger())

	for _, c := range category.All() {
		if !r.CanReceive(context.Background(), "u1", string(c)) {
			t.Errorf("empty matrix denied category %s", c)
		}
	}
}

func TestCanReceive_MasterOverride(t *testing.T) {
	off := false
	r := NewResolver(&fakeUsers{users: map[string]*store.User{
		"u1": {
			ID:          "u1",
			PushEnabled: &off,
			Preferences: map[string]map[string]bool{
				"meals": {"nearby": true}, // explicit opt-in loses to master off
			},
		},
	}}, quietLogger())

	if r.CanReceive(context.Background(), "u1", "NEARBY_MEAL") {
		t.Error("pushEnabled=false should suppress all categories")
	}
}

func TestCanReceive_MissingUserDenies(t *testing.T) {
	r := NewResolver(&fakeUsers{users: map[string]*store.User{}}, quietLogger())
	if r.CanReceive(context.Background(), "ghost", "NEARBY_MEAL") {
		t.Error("missing user should fail closed")
	}
}

func TestCanReceive_StorageErrorPermits(t *testing.T) {
	r := NewResolver(&fakeUsers{err: errors.New("connection reset")}, quietLogger())
	if !r.CanReceive(context.Background(), "u1", "NEARBY_MEAL") {
		t.Error("storage error should fail open")
	}
}

func TestCanReceive_UnknownCategoryPermits(t *testing.T) {
	r := NewResolver(&fakeUsers{users: map[string]*store.User{
		"u1": {ID: "u1"},
	}}, quietLogger())
	if !r.CanReceive(context.Background(), "u1", "BRAND_NEW_CATEGORY") {
		t.Error("unrecognized category should fall back to permit")
	}
}

func TestCanReceive_ExplicitOptOut(t *testing.T) {
	r := NewResolver(&fakeUsers{users: map[string]*store.User{
		"u1": {
			ID: "u1",
			Preferences: map[string]map[string]bool{
				"meals": {"nearby": false},
			},
		},
	}}, quietLogger())

	ctx := context.Background()
	// All three spellings hit the same stored cell.
	for _, spelling := range []string{"NEARBY_MEAL", "meals.nearby", "nearby"} {
		if r.CanReceive(ctx, "u1", spelling) {
			t.Errorf("opt-out ignored for spelling %q", spelling)
		}
	}
	// Sibling keys in the same group still default-permit.
	if !r.CanReceive(ctx, "u1", "MEAL_INVITATION") {
		t.Error("unset sibling key should permit")
	}
}
