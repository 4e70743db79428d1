package match

import (
	"testing"

	"github.com/table-talk25/tabletalk-notify/internal/geo"
	"github.com/table-talk25/tabletalk-notify/internal/store"
)

// candidate builds a pool member at the given coordinates with the given radius.
func candidate(id string, lat, lon, radiusKm float64) store.User {
	return store.User{
		ID: id,
		Geo: store.GeoSettings{
			Enabled:  true,
			RadiusKm: radiusKm,
			Location: &geo.Point{Latitude: lat, Longitude: lon},
		},
	}
}

func mealAt(lat, lon float64) *store.Meal {
	return &store.Meal{
		ID:       "m1",
		Title:    "Pasta night",
		Location: &geo.Point{Latitude: lat, Longitude: lon},
	}
}

// Two users at the same distance; only the one whose own radius covers it
// should match.
func TestFindNearby_RadiusIsReceiverOwned(t *testing.T) {
	meal := mealAt(45.0, 9.0)
	// ~0.027 degrees latitude is about 3 km.
	pool := []store.User{
		candidate("wide", 45.027, 9.0, 5),
		candidate("narrow", 45.027, 9.0, 2),
	}

	results := FindNearby(meal, pool)
	if len(results) != 1 {
		t.Fatalf("got %d matches, want 1", len(results))
	}
	if results[0].UserID != "wide" {
		t.Errorf("matched %s, want wide", results[0].UserID)
	}
}

func TestFindNearby_SortedNearestFirst(t *testing.T) {
	meal := mealAt(45.0, 9.0)
	pool := []store.User{
		candidate("far", 45.20, 9.0, 50),
		candidate("near", 45.02, 9.0, 50),
		candidate("mid", 45.10, 9.0, 50),
	}

	results := FindNearby(meal, pool)
	if len(results) != 3 {
		t.Fatalf("got %d matches, want 3", len(results))
	}
	want := []string{"near", "mid", "far"}
	for i, id := range want {
		if results[i].UserID != id {
			t.Errorf("position %d: got %s, want %s", i, results[i].UserID, id)
		}
	}
	for i := 1; i < len(results); i++ {
		if results[i].DistanceKm < results[i-1].DistanceKm {
			t.Error("results not ascending by distance")
		}
	}
}

func TestFindNearby_MealWithoutLocation(t *testing.T) {
	meal := &store.Meal{ID: "m1"}
	pool := []store.User{candidate("u1", 45.0, 9.0, 50)}
	if got := FindNearby(meal, pool); got != nil {
		t.Errorf("meal without location matched %d users, want none", len(got))
	}
}

func TestFindNearby_SkipsCandidatesWithoutLocation(t *testing.T) {
	meal := mealAt(45.0, 9.0)
	noLoc := store.User{ID: "u1", Geo: store.GeoSettings{Enabled: true, RadiusKm: 50}}
	if got := FindNearby(meal, []store.User{noLoc}); got != nil {
		t.Errorf("candidate without location matched, want none")
	}
}

func TestFindNearby_EmptyPool(t *testing.T) {
	if got := FindNearby(mealAt(45.0, 9.0), nil); got != nil {
		t.Errorf("empty pool produced %d matches", len(got))
	}
}

// Three users all ~15 km away with radii 1, 10 and 20 km: only the widest
// radius covers the distance.
func TestFindNearby_FixedDistanceVaryingRadii(t *testing.T) {
	meal := mealAt(45.0, 9.0)
	// ~0.135 degrees latitude is about 15 km.
	pool := []store.User{
		candidate("r1", 45.135, 9.0, 1),
		candidate("r10", 45.135, 9.0, 10),
		candidate("r20", 45.135, 9.0, 20),
	}

	results := FindNearby(meal, pool)
	if len(results) != 1 {
		t.Fatalf("got %d matches, want 1", len(results))
	}
	if results[0].UserID != "r20" {
		t.Errorf("matched %s, want r20", results[0].UserID)
	}
	if results[0].DistanceKm < 14 || results[0].DistanceKm > 16 {
		t.Errorf("distance %.2f km outside expected ~15 km", results[0].DistanceKm)
	}
}
