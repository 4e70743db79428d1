// Package store is the MongoDB record-store adapter. User and meal records
// are documents; geo settings and the push preference matrix live embedded
// inside the user document, so partial updates address nested fields by
// dotted path (e.g. "geoNotifications.radiusKm").
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/table-talk25/tabletalk-notify/internal/geo"
)

// Sentinel errors mapped to stable API codes by the handler layer.
var (
	ErrNotFound   = errors.New("record not found")
	ErrValidation = errors.New("validation failed")
)

// Geo-notification radius bounds in kilometers.
const (
	MinRadiusKm = 1.0
	MaxRadiusKm = 50.0
)

// MealTypes is the closed set of meal types a user can subscribe to.
var MealTypes = []string{"breakfast", "lunch", "dinner", "aperitif"}

// --------------------------------------------------------------------------
// Record types
// --------------------------------------------------------------------------

// GeoSettings is a user's proximity-notification configuration.
type GeoSettings struct {
	Enabled   bool       `bson:"enabled" json:"enabled"`
	RadiusKm  float64    `bson:"radiusKm" json:"radiusKm"`
	MealTypes []string   `bson:"mealTypes" json:"mealTypes"`
	Location  *geo.Point `bson:"location,omitempty" json:"location,omitempty"`
}

// WantsMealType reports whether the user subscribed to the given meal type.
// An empty selection means no restriction.
func (g GeoSettings) WantsMealType(mealType string) bool {
	if len(g.MealTypes) == 0 {
		return true
	}
	for _, t := range g.MealTypes {
		if t == mealType {
			return true
		}
	}
	return false
}

// User is the slice of the platform's user document this engine reads.
type User struct {
	ID          string                     `bson:"_id" json:"id"`
	Name        string                     `bson:"name" json:"name"`
	PushEnabled *bool                      `bson:"pushEnabled,omitempty" json:"pushEnabled,omitempty"`
	Preferences map[string]map[string]bool `bson:"notificationPreferences,omitempty" json:"notificationPreferences,omitempty"`
	Geo         GeoSettings                `bson:"geoNotifications" json:"geoNotifications"`
	Devices     []Device                   `bson:"deviceTokens,omitempty" json:"-"`
}

// Device is a registered push token.
type Device struct {
	Token    string `bson:"token"`
	Platform string `bson:"platform"`
	Active   bool   `bson:"active"`
}

// PushOn returns the master push flag. Absent means enabled; the matrix is
// permissive by default and so is the master switch.
func (u *User) PushOn() bool {
	return u.PushEnabled == nil || *u.PushEnabled
}

// Meal is the slice of a meal document the matching engine reads.
type Meal struct {
	ID         string     `bson:"_id" json:"id"`
	HostID     string     `bson:"hostId" json:"hostId"`
	Title      string     `bson:"title" json:"title"`
	MealType   string     `bson:"mealType" json:"mealType"`
	Mode       string     `bson:"mode" json:"mode"`             // "physical" | "virtual"
	Visibility string     `bson:"visibility" json:"visibility"` // "public" | "private"
	Location   *geo.Point `bson:"location,omitempty" json:"location,omitempty"`
	Date       time.Time  `bson:"date" json:"date"`
	CreatedAt  time.Time  `bson:"createdAt" json:"createdAt"`
}

// --------------------------------------------------------------------------
// Store
// --------------------------------------------------------------------------

// Store wraps the mongo collections the engine touches.
type Store struct {
	client *mongo.Client
	users  *mongo.Collection
	meals  *mongo.Collection
}

// Connect creates a client, verifies connectivity, and returns a Store.
func Connect(ctx context.Context, uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	db := client.Database(dbName)
	return &Store{
		client: client,
		users:  db.Collection("users"),
		meals:  db.Collection("meals"),
	}, nil
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Ping verifies the store is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// --------------------------------------------------------------------------
// Reads
// --------------------------------------------------------------------------

// User loads a single user record. Returns ErrNotFound when absent.
func (s *Store) User(ctx context.Context, id string) (*User, error) {
	var u User
	err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find user %s: %w", id, err)
	}
	return &u, nil
}

// GeoOptedInUsers returns the candidate pool for proximity matching: users
// with geo notifications enabled and a stored location.
func (s *Store) GeoOptedInUsers(ctx context.Context) ([]User, error) {
	filter := bson.M{
		"geoNotifications.enabled":  true,
		"geoNotifications.location": bson.M{"$ne": nil},
	}
	cur, err := s.users.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("find opted-in users: %w", err)
	}
	defer cur.Close(ctx)

	var users []User
	if err := cur.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("decode opted-in users: %w", err)
	}
	return users, nil
}

// RecentMeals returns physical, publicly visible meals created at or after
// since, with a location set.
func (s *Store) RecentMeals(ctx context.Context, since time.Time) ([]Meal, error) {
	filter := bson.M{
		"mode":       "physical",
		"visibility": "public",
		"createdAt":  bson.M{"$gte": since},
		"location":   bson.M{"$ne": nil},
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cur, err := s.meals.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find recent meals: %w", err)
	}
	defer cur.Close(ctx)

	var meals []Meal
	if err := cur.All(ctx, &meals); err != nil {
		return nil, fmt.Errorf("decode recent meals: %w", err)
	}
	return meals, nil
}

// DeviceTokens returns the user's active push tokens.
func (s *Store) DeviceTokens(ctx context.Context, userID string) ([]string, error) {
	u, err := s.User(ctx, userID)
	if err != nil {
		return nil, err
	}
	var tokens []string
	for _, d := range u.Devices {
		if d.Active && d.Token != "" {
			tokens = append(tokens, d.Token)
		}
	}
	return tokens, nil
}

// --------------------------------------------------------------------------
// Writes (dotted-path partial updates)
// --------------------------------------------------------------------------

// GeoSettingsUpdate carries the fields a user may change. Nil means leave
// unchanged.
type GeoSettingsUpdate struct {
	Enabled   *bool      `json:"enabled,omitempty"`
	RadiusKm  *float64   `json:"radiusKm,omitempty"`
	MealTypes []string   `json:"mealTypes,omitempty"`
	Location  *geo.Point `json:"location,omitempty"`
}

// UpdateGeoSettings applies a partial update to the user's embedded geo
// settings. Radius and meal types are validated before any write.
func (s *Store) UpdateGeoSettings(ctx context.Context, userID string, upd GeoSettingsUpdate) error {
	set := bson.M{}
	if upd.Enabled != nil {
		set["geoNotifications.enabled"] = *upd.Enabled
	}
	if upd.RadiusKm != nil {
		if *upd.RadiusKm < MinRadiusKm || *upd.RadiusKm > MaxRadiusKm {
			return fmt.Errorf("%w: radiusKm %.1f outside [%.0f,%.0f]",
				ErrValidation, *upd.RadiusKm, MinRadiusKm, MaxRadiusKm)
		}
		set["geoNotifications.radiusKm"] = *upd.RadiusKm
	}
	if upd.MealTypes != nil {
		for _, t := range upd.MealTypes {
			if !validMealType(t) {
				return fmt.Errorf("%w: unknown meal type %q", ErrValidation, t)
			}
		}
		set["geoNotifications.mealTypes"] = upd.MealTypes
	}
	if upd.Location != nil {
		if !upd.Location.Valid() {
			return fmt.Errorf("%w: coordinates out of range", ErrValidation)
		}
		set["geoNotifications.location"] = upd.Location
	}
	if len(set) == 0 {
		return fmt.Errorf("%w: empty update", ErrValidation)
	}

	res, err := s.users.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update geo settings for %s: %w", userID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	return nil
}

// SetPushPreference flips one cell of the preference matrix via a dotted
// $set ("notificationPreferences.<group>.<key>").
func (s *Store) SetPushPreference(ctx context.Context, userID, group, key string, enabled bool) error {
	if group == "" || key == "" {
		return fmt.Errorf("%w: empty preference group or key", ErrValidation)
	}
	path := fmt.Sprintf("notificationPreferences.%s.%s", group, key)
	res, err := s.users.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$set": bson.M{path: enabled}})
	if err != nil {
		return fmt.Errorf("set preference %s for %s: %w", path, userID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	return nil
}

func validMealType(t string) bool {
	for _, m := range MealTypes {
		if m == t {
			return true
		}
	}
	return false
}
