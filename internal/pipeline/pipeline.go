// Package pipeline runs one scan-and-notify pass: fetch meals created in the
// lookback window, match each against the opted-in candidate pool, and
// dispatch a NEARBY_MEAL notification per match. One bad record never stops
// the pass; failures are contained per event and per recipient.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/table-talk25/tabletalk-notify/internal/category"
	"github.com/table-talk25/tabletalk-notify/internal/dispatch"
	"github.com/table-talk25/tabletalk-notify/internal/match"
	"github.com/table-talk25/tabletalk-notify/internal/store"
)

// MealSource provides the candidate events for a pass.
type MealSource interface {
	RecentMeals(ctx context.Context, since time.Time) ([]store.Meal, error)
}

// CandidateSource provides the opted-in user pool.
type CandidateSource interface {
	GeoOptedInUsers(ctx context.Context) ([]store.User, error)
}

// Dispatcher delivers one notification to one recipient.
type Dispatcher interface {
	Dispatch(ctx context.Context, userID string, cat category.Category, data map[string]string) dispatch.Result
	DrainRealtime()
}

// Outcome is the aggregate result of one pass.
type Outcome struct {
	RunID string `json:"runId"`
	dispatch.Outcome
	EventsScanned int           `json:"eventsScanned"`
	EventsSkipped int           `json:"eventsSkipped"`
	Duration      time.Duration `json:"-"`
	DurationMs    int64         `json:"durationMs"`
}

// Summary renders a one-line log summary for the pass.
func (o Outcome) Summary() string {
	return fmt.Sprintf("run=%s events=%d skipped_events=%d %s duration=%s",
		o.RunID, o.EventsScanned, o.EventsSkipped, o.Outcome.Summary(), o.Duration.Round(time.Millisecond))
}

// Pipeline orchestrates matching and dispatch for one pass.
type Pipeline struct {
	meals      MealSource
	users      CandidateSource
	dispatcher Dispatcher
	workers    int
	logger     *slog.Logger
}

// New builds a Pipeline. workers bounds concurrent dispatches per pass.
func New(meals MealSource, users CandidateSource, dispatcher Dispatcher, workers int, logger *slog.Logger) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{
		meals:      meals,
		users:      users,
		dispatcher: dispatcher,
		workers:    workers,
		logger:     logger,
	}
}

// job is one recipient dispatch pending execution.
type job struct {
	userID string
	data   map[string]string
}

// Run executes one pass over meals created within the lookback window.
// Only a failure to fetch the candidate set at all aborts the pass.
func (p *Pipeline) Run(ctx context.Context, lookback time.Duration) (Outcome, error) {
	start := time.Now()
	outcome := Outcome{RunID: uuid.NewString()}
	logger := p.logger.With("run_id", outcome.RunID)

	since := time.Now().Add(-lookback)
	meals, err := p.meals.RecentMeals(ctx, since)
	if err != nil {
		return outcome, fmt.Errorf("fetch recent meals: %w", err)
	}
	if len(meals) == 0 {
		logger.Info("no recent meals in lookback window", "lookback", lookback)
		outcome.Duration = time.Since(start)
		outcome.DurationMs = outcome.Duration.Milliseconds()
		return outcome, nil
	}

	pool, err := p.users.GeoOptedInUsers(ctx)
	if err != nil {
		return outcome, fmt.Errorf("fetch candidate pool: %w", err)
	}
	logger.Info("pass started", "meals", len(meals), "candidates", len(pool))

	poolByID := make(map[string]store.User, len(pool))
	for _, u := range pool {
		poolByID[u.ID] = u
	}

	var (
		mu   sync.Mutex
		jobs []job
	)

	for i := range meals {
		meal := &meals[i]
		if !meal.Location.Valid() {
			logger.Warn("meal without usable location skipped", "meal_id", meal.ID)
			outcome.EventsSkipped++
			continue
		}
		outcome.EventsScanned++

		for _, m := range match.FindNearby(meal, pool) {
			// The host is never notified about their own meal.
			if m.UserID == meal.HostID {
				continue
			}
			// Second gate, finer than the category-level preference: the
			// recipient's selected meal types.
			if u, ok := poolByID[m.UserID]; ok && !u.Geo.WantsMealType(meal.MealType) {
				outcome.Add(dispatch.Result{UserID: m.UserID, Status: dispatch.StatusSkipped})
				continue
			}
			jobs = append(jobs, job{
				userID: m.UserID,
				data: map[string]string{
					"mealId":     m.MealID,
					"mealTitle":  m.MealTitle,
					"mealType":   meal.MealType,
					"distanceKm": strconv.FormatFloat(m.DistanceKm, 'f', -1, 64),
					"address":    meal.Location.Address,
					"runId":      outcome.RunID,
				},
			})
		}
	}

	// Bounded worker pool across all matched recipients; the aggregate is
	// the only shared state, merged under the mutex.
	workers := p.workers
	if workers > len(jobs) {
		workers = len(jobs)
	}
	if len(jobs) > 0 {
		ch := make(chan job, len(jobs))
		for _, j := range jobs {
			ch <- j
		}
		close(ch)

		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := range ch {
					r := p.dispatcher.Dispatch(ctx, j.userID, category.NearbyMeal, j.data)
					mu.Lock()
					outcome.Add(r)
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
	}

	p.dispatcher.DrainRealtime()

	outcome.Duration = time.Since(start)
	outcome.DurationMs = outcome.Duration.Milliseconds()
	logger.Info("pass complete", "summary", outcome.Summary())
	return outcome, nil
}
