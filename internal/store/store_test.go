package store

import (
	"context"
	"errors"
	"testing"

	"github.com/table-talk25/tabletalk-notify/internal/geo"
)

func TestPushOn_DefaultsToEnabled(t *testing.T) {
	u := &User{ID: "u1"}
	if !u.PushOn() {
		t.Error("user with no pushEnabled field should default to enabled")
	}

	off := false
	u.PushEnabled = &off
	if u.PushOn() {
		t.Error("explicit pushEnabled=false should disable push")
	}
}

func TestWantsMealType(t *testing.T) {
	unrestricted := GeoSettings{}
	if !unrestricted.WantsMealType("dinner") {
		t.Error("empty meal type selection should accept everything")
	}

	g := GeoSettings{MealTypes: []string{"breakfast", "lunch"}}
	if !g.WantsMealType("lunch") {
		t.Error("selected meal type rejected")
	}
	if g.WantsMealType("aperitif") {
		t.Error("unselected meal type accepted")
	}
}

// Validation runs before any write, so a zero-value Store exercises the
// rejection paths without a live connection.
func TestUpdateGeoSettings_Validation(t *testing.T) {
	s := &Store{}
	ctx := context.Background()

	for _, r := range []float64{0.5, 51} {
		bad := r
		err := s.UpdateGeoSettings(ctx, "u1", GeoSettingsUpdate{RadiusKm: &bad})
		if !errors.Is(err, ErrValidation) {
			t.Errorf("radius %.1f: err = %v, want ErrValidation", r, err)
		}
	}

	err := s.UpdateGeoSettings(ctx, "u1", GeoSettingsUpdate{MealTypes: []string{"brunch"}})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("unknown meal type: err = %v, want ErrValidation", err)
	}

	err = s.UpdateGeoSettings(ctx, "u1", GeoSettingsUpdate{Location: &geo.Point{Latitude: 91}})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("out-of-range coordinates: err = %v, want ErrValidation", err)
	}

	err = s.UpdateGeoSettings(ctx, "u1", GeoSettingsUpdate{})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("empty update: err = %v, want ErrValidation", err)
	}
}

func TestSetPushPreference_EmptyPath(t *testing.T) {
	s := &Store{}
	if err := s.SetPushPreference(context.Background(), "u1", "", "nearby", true); !errors.Is(err, ErrValidation) {
		t.Errorf("empty group: err = %v, want ErrValidation", err)
	}
}

func TestValidMealType(t *testing.T) {
	for _, m := range MealTypes {
		if !validMealType(m) {
			t.Errorf("registered meal type %q rejected", m)
		}
	}
	if validMealType("brunch") {
		t.Error("unknown meal type accepted")
	}
}
