// Package category defines the closed set of notification categories and the
// static tables hanging off each one: display template, quick actions,
// deep-link path pattern, and the canonical preference path used by the
// per-user preference matrix.
//
// Categories arrive from callers in three spellings (enum name "NEARBY_MEAL",
// canonical dotted path "meals.nearby", or short alias "nearby") and all
// three normalize to the same Category. Validate is run
// at startup so a malformed table fails the process at boot instead of at
// dispatch time.
package category

import (
	"errors"
	"fmt"
)

// ErrUnsupported is returned when a category has no registered template.
var ErrUnsupported = errors.New("unsupported notification category")

// Category identifies the kind of notification being sent.
type Category string

const (
	MealInvitation   Category = "MEAL_INVITATION"
	MealJoinRequest  Category = "MEAL_JOIN_REQUEST"
	MealUpdate       Category = "MEAL_UPDATE"
	MealReminder     Category = "MEAL_REMINDER"
	MealCancellation Category = "MEAL_CANCELLATION"
	NewMessage       Category = "NEW_MESSAGE"
	NewFollower      Category = "NEW_FOLLOWER"
	FriendRequest    Category = "FRIEND_REQUEST"
	NearbyMeal       Category = "NEARBY_MEAL"
	SecurityAlert    Category = "SECURITY_ALERT"
)

// Action is a quick action attached to an interactive notification.
type Action struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Icon     string `json:"icon"`
	ActionID string `json:"actionId"`
}

// Template holds the channel-agnostic display attributes for a category.
// Title and Body may contain {{key}} placeholders; DeepLink may contain
// :param segments. Both are filled in by the composer.
type Template struct {
	Icon     string
	Title    string
	Body     string
	Color    string
	Priority string // "high" or "default"
	Actions  []Action
	DeepLink string
}

// --------------------------------------------------------------------------
// Static tables
// --------------------------------------------------------------------------

var templates = map[Category]Template{
	MealInvitation: {
		Icon:     "utensils",
		Title:    "Invitation from {{hostName}}",
		Body:     "{{hostName}} invited you to \"{{mealTitle}}\"",
		Color:    "#F97316",
		Priority: "high",
		Actions: []Action{
			{ID: "accept", Label: "Accept", Icon: "check", ActionID: "meal.invitation.accept"},
			{ID: "decline", Label: "Decline", Icon: "x", ActionID: "meal.invitation.decline"},
		},
		DeepLink: "/meals/:mealId",
	},
	MealJoinRequest: {
		Icon:     "user-plus",
		Title:    "Join request",
		Body:     "{{requesterName}} wants to join \"{{mealTitle}}\"",
		Color:    "#F97316",
		Priority: "high",
		Actions: []Action{
			{ID: "approve", Label: "Approve", Icon: "check", ActionID: "meal.join.approve"},
			{ID: "reject", Label: "Reject", Icon: "x", ActionID: "meal.join.reject"},
		},
		DeepLink: "/meals/:mealId/requests",
	},
	MealUpdate: {
		Icon:     "pencil",
		Title:    "Meal updated",
		Body:     "\"{{mealTitle}}\" has changed: {{changeSummary}}",
		Color:    "#3B82F6",
		Priority: "default",
		Actions: []Action{
			{ID: "view", Label: "View", Icon: "eye", ActionID: "meal.view"},
		},
		DeepLink: "/meals/:mealId",
	},
	MealReminder: {
		Icon:     "clock",
		Title:    "Upcoming meal",
		Body:     "\"{{mealTitle}}\" starts {{startsIn}}",
		Color:    "#3B82F6",
		Priority: "high",
		Actions: []Action{
			{ID: "view", Label: "View", Icon: "eye", ActionID: "meal.view"},
		},
		DeepLink: "/meals/:mealId",
	},
	MealCancellation: {
		Icon:     "calendar-x",
		Title:    "Meal cancelled",
		Body:     "\"{{mealTitle}}\" on {{mealDate}} was cancelled",
		Color:    "#EF4444",
		Priority: "high",
		Actions:  nil,
		DeepLink: "/meals",
	},
	NewMessage: {
		Icon:     "message-circle",
		Title:    "{{senderName}}",
		Body:     "{{messagePreview}}",
		Color:    "#22C55E",
		Priority: "high",
		Actions: []Action{
			{ID: "reply", Label: "Reply", Icon: "corner-up-left", ActionID: "chat.reply"},
		},
		DeepLink: "/chats/:chatId",
	},
	NewFollower: {
		Icon:     "users",
		Title:    "New follower",
		Body:     "{{followerName}} started following you",
		Color:    "#A855F7",
		Priority: "default",
		Actions: []Action{
			{ID: "profile", Label: "View profile", Icon: "user", ActionID: "profile.view"},
		},
		DeepLink: "/profile/:userId",
	},
	FriendRequest: {
		Icon:     "user-check",
		Title:    "Friend request",
		Body:     "{{requesterName}} sent you a friend request",
		Color:    "#A855F7",
		Priority: "default",
		Actions: []Action{
			{ID: "accept", Label: "Accept", Icon: "check", ActionID: "friend.accept"},
			{ID: "decline", Label: "Decline", Icon: "x", ActionID: "friend.decline"},
		},
		DeepLink: "/profile/:userId",
	},
	NearbyMeal: {
		Icon:     "map-pin",
		Title:    "Meal nearby",
		Body:     "\"{{mealTitle}}\" is {{distanceKm}} km from you",
		Color:    "#F97316",
		Priority: "default",
		Actions: []Action{
			{ID: "view", Label: "View", Icon: "eye", ActionID: "meal.view"},
			{ID: "join", Label: "Ask to join", Icon: "user-plus", ActionID: "meal.join.request"},
		},
		DeepLink: "/meals/:mealId",
	},
	SecurityAlert: {
		Icon:     "shield-alert",
		Title:    "Security alert",
		Body:     "{{alertMessage}}",
		Color:    "#EF4444",
		Priority: "high",
		Actions:  nil,
		DeepLink: "/settings/security",
	},
}

// prefPaths maps each category to its canonical group.key position in the
// per-user push preference matrix.
var prefPaths = map[Category]string{
	MealInvitation:   "meals.invitations",
	MealJoinRequest:  "meals.joinRequests",
	MealUpdate:       "meals.updates",
	MealReminder:     "meals.reminders",
	MealCancellation: "meals.cancellations",
	NewMessage:       "chat.newMessages",
	NewFollower:      "social.newFollowers",
	FriendRequest:    "social.friendRequests",
	NearbyMeal:       "meals.nearby",
	SecurityAlert:    "account.securityAlerts",
}

// aliases maps every accepted spelling to its Category. Enum names and
// canonical paths are added programmatically in init; only the short forms
// are listed here.
var aliases = map[string]Category{
	"invitation":   MealInvitation,
	"joinRequest":  MealJoinRequest,
	"mealUpdate":   MealUpdate,
	"reminder":     MealReminder,
	"cancellation": MealCancellation,
	"message":      NewMessage,
	"follower":     NewFollower,
	"friend":       FriendRequest,
	"nearby":       NearbyMeal,
	"security":     SecurityAlert,
}

func init() {
	for c, path := range prefPaths {
		aliases[string(c)] = c
		aliases[path] = c
	}
}

// --------------------------------------------------------------------------
// Lookups
// --------------------------------------------------------------------------

// Normalize resolves a category given as enum name, dotted preference path,
// or short alias. ok is false for unrecognized input.
func Normalize(s string) (Category, bool) {
	c, ok := aliases[s]
	return c, ok
}

// Template returns the display template for the category.
func (c Category) Template() (Template, bool) {
	t, ok := templates[c]
	return t, ok
}

// PreferencePath returns the canonical group.key path for the category.
func (c Category) PreferencePath() (string, bool) {
	p, ok := prefPaths[c]
	return p, ok
}

// All returns every registered category.
func All() []Category {
	out := make([]Category, 0, len(templates))
	for c := range templates {
		out = append(out, c)
	}
	return out
}

// Validate cross-checks the static tables. Called once at startup.
func Validate() error {
	for c := range templates {
		if _, ok := prefPaths[c]; !ok {
			return fmt.Errorf("category %s has a template but no preference path", c)
		}
	}
	for c := range prefPaths {
		if _, ok := templates[c]; !ok {
			return fmt.Errorf("category %s has a preference path but no template", c)
		}
	}
	for alias, c := range aliases {
		if _, ok := templates[c]; !ok {
			return fmt.Errorf("alias %q points to unregistered category %s", alias, c)
		}
	}
	return nil
}
