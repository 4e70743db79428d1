// Package match selects which opted-in users are close enough to a meal to
// be notified. The matching radius belongs to the receiver: each candidate
// is compared against their own configured radius, not a global one.
package match

import (
	"sort"

	"github.com/table-talk25/tabletalk-notify/internal/geo"
	"github.com/table-talk25/tabletalk-notify/internal/store"
)

// Result is one user matched against a meal, discarded after dispatch.
type Result struct {
	UserID     string
	UserName   string
	DistanceKm float64
	MealID     string
	MealTitle  string
}

// FindNearby returns the candidates within their own radius of the meal's
// location, nearest first. Ties keep pool order (stable sort). A meal with
// no usable location matches nobody.
func FindNearby(meal *store.Meal, pool []store.User) []Result {
	if meal == nil || !meal.Location.Valid() {
		return nil
	}

	var results []Result
	for _, u := range pool {
		loc := u.Geo.Location
		if !loc.Valid() {
			continue
		}
		d := geo.DistanceKm(loc.Latitude, loc.Longitude,
			meal.Location.Latitude, meal.Location.Longitude)
		if d > u.Geo.RadiusKm {
			continue
		}
		results = append(results, Result{
			UserID:     u.ID,
			UserName:   u.Name,
			DistanceKm: d,
			MealID:     meal.ID,
			MealTitle:  meal.Title,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].DistanceKm < results[j].DistanceKm
	})
	return results
}
