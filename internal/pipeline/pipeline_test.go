package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/table-talk25/tabletalk-notify/internal/category"
	"github.com/table-talk25/tabletalk-notify/internal/dispatch"
	"github.com/table-talk25/tabletalk-notify/internal/geo"
	"github.com/table-talk25/tabletalk-notify/internal/store"
)

// --------------------------------------------------------------------------
// Fakes
// --------------------------------------------------------------------------

type fakeMeals struct {
	meals []store.Meal
	err   error
}

func (f fakeMeals) RecentMeals(context.Context, time.Time) ([]store.Meal, error) {
	return f.meals, f.err
}

type fakeUsers struct {
	users []store.User
	err   error
}

func (f fakeUsers) GeoOptedInUsers(context.Context) ([]store.User, error) {
	return f.users, f.err
}

// recordingDispatcher marks every dispatch as sent and records recipients.
type recordingDispatcher struct {
	mu         sync.Mutex
	recipients []string
	data       []map[string]string
}

func (d *recordingDispatcher) Dispatch(_ context.Context, userID string, _ category.Category, data map[string]string) dispatch.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recipients = append(d.recipients, userID)
	d.data = append(d.data, data)
	return dispatch.Result{UserID: userID, Status: dispatch.StatusSentInteractive}
}

func (d *recordingDispatcher) DrainRealtime() {}

func (d *recordingDispatcher) got() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.recipients...)
}

// --------------------------------------------------------------------------
// Fixtures
// --------------------------------------------------------------------------

func user(id string, lat, lon, radius float64, mealTypes ...string) store.User {
	return store.User{
		ID: id,
		Geo: store.GeoSettings{
			Enabled:   true,
			RadiusKm:  radius,
			MealTypes: mealTypes,
			Location:  &geo.Point{Latitude: lat, Longitude: lon},
		},
	}
}

func meal(id, hostID string, lat, lon float64) store.Meal {
	return store.Meal{
		ID:         id,
		HostID:     hostID,
		Title:      "Meal " + id,
		MealType:   "dinner",
		Mode:       "physical",
		Visibility: "public",
		Location:   &geo.Point{Latitude: lat, Longitude: lon},
		CreatedAt:  time.Now(),
	}
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestRun_MatchAndDispatch(t *testing.T) {
	d := &recordingDispatcher{}
	p := New(
		fakeMeals{meals: []store.Meal{meal("m1", "host", 45.0, 9.0)}},
		fakeUsers{users: []store.User{
			user("near", 45.02, 9.0, 10),
			user("far", 46.0, 9.0, 10), // ~111 km away
		}},
		d, 4, quiet())

	out, err := p.Run(context.Background(), 2*time.Hour)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := d.got(); len(got) != 1 || got[0] != "near" {
		t.Errorf("dispatched to %v, want [near]", got)
	}
	if out.NotificationsSent != 1 || out.EventsScanned != 1 {
		t.Errorf("outcome = %s", out.Summary())
	}
}

func TestRun_HostExcluded(t *testing.T) {
	d := &recordingDispatcher{}
	p := New(
		fakeMeals{meals: []store.Meal{meal("m1", "hostess", 45.0, 9.0)}},
		fakeUsers{users: []store.User{user("hostess", 45.0, 9.0, 10)}},
		d, 2, quiet())

	out, err := p.Run(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(d.got()) != 0 {
		t.Error("host received a notification for their own meal")
	}
	if out.TotalCandidates != 0 {
		t.Errorf("host counted as candidate: %s", out.Summary())
	}
}

func TestRun_MealTypeGate(t *testing.T) {
	d := &recordingDispatcher{}
	p := New(
		fakeMeals{meals: []store.Meal{meal("m1", "host", 45.0, 9.0)}}, // dinner
		fakeUsers{users: []store.User{
			user("breakfast-only", 45.01, 9.0, 10, "breakfast"),
			user("dinner-fan", 45.01, 9.0, 10, "dinner"),
			user("anything", 45.01, 9.0, 10),
		}},
		d, 2, quiet())

	out, err := p.Run(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	got := d.got()
	if len(got) != 2 {
		t.Fatalf("dispatched to %v, want dinner-fan and anything", got)
	}
	for _, id := range got {
		if id == "breakfast-only" {
			t.Error("meal-type gate did not filter breakfast-only user")
		}
	}
	if out.SkippedByPreference != 1 {
		t.Errorf("SkippedByPreference = %d, want 1", out.SkippedByPreference)
	}
}

// Five events with a malformed third one: the pass still processes the other
// four and counts one skip.
func TestRun_PartialBatchResilience(t *testing.T) {
	meals := []store.Meal{
		meal("m1", "host", 45.0, 9.0),
		meal("m2", "host", 45.0, 9.0),
		{ID: "m3", HostID: "host", Title: "broken", MealType: "dinner"}, // no location
		meal("m4", "host", 45.0, 9.0),
		meal("m5", "host", 45.0, 9.0),
	}
	d := &recordingDispatcher{}
	p := New(
		fakeMeals{meals: meals},
		fakeUsers{users: []store.User{user("u1", 45.01, 9.0, 10)}},
		d, 3, quiet())

	out, err := p.Run(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.EventsScanned != 4 || out.EventsSkipped != 1 {
		t.Errorf("scanned=%d skipped=%d, want 4/1", out.EventsScanned, out.EventsSkipped)
	}
	if len(d.got()) != 4 {
		t.Errorf("dispatch attempts = %d, want 4", len(d.got()))
	}
}

func TestRun_StoreUnreachableAbortsPass(t *testing.T) {
	p := New(
		fakeMeals{err: errors.New("store unreachable")},
		fakeUsers{}, &recordingDispatcher{}, 2, quiet())

	if _, err := p.Run(context.Background(), time.Hour); err == nil {
		t.Fatal("expected error when candidate fetch fails")
	}
}

func TestRun_DispatchDataCarriesDistanceAndRun(t *testing.T) {
	d := &recordingDispatcher{}
	p := New(
		fakeMeals{meals: []store.Meal{meal("m1", "host", 45.0, 9.0)}},
		fakeUsers{users: []store.User{user("u1", 45.02, 9.0, 10)}},
		d, 1, quiet())

	out, err := p.Run(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(d.data) != 1 {
		t.Fatalf("dispatches = %d, want 1", len(d.data))
	}
	data := d.data[0]
	if data["mealId"] != "m1" || data["distanceKm"] == "" {
		t.Errorf("dispatch data incomplete: %v", data)
	}
	if data["runId"] != out.RunID {
		t.Errorf("runId = %q, want %q", data["runId"], out.RunID)
	}
}
