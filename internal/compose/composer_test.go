package compose

import (
	"strings"
	"testing"

	"github.com/table-talk25/tabletalk-notify/internal/category"
)

func TestCompose_NearbyMeal(t *testing.T) {
	c := New("https://app.tabletalk.it")
	p, err := c.Compose(category.NearbyMeal, map[string]string{
		"mealTitle":  "Pasta night",
		"distanceKm": "2.4",
		"mealId":     "abc123",
	})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}

	if !strings.Contains(p.Body, "Pasta night") || !strings.Contains(p.Body, "2.4") {
		t.Errorf("body not personalized: %q", p.Body)
	}
	if p.DeepLink != "https://app.tabletalk.it/meals/abc123" {
		t.Errorf("deep link = %q", p.DeepLink)
	}
	if len(p.Actions) == 0 {
		t.Error("nearby meal template should carry quick actions")
	}
	if p.Priority == "" || p.Color == "" || p.Icon == "" {
		t.Error("display attributes missing from payload")
	}
}

func TestCompose_UnknownCategory(t *testing.T) {
	c := New("")
	if _, err := c.Compose(category.Category("CARRIER_PIGEON"), nil); err == nil {
		t.Fatal("expected error for unregistered category")
	}
}

// Missing data keys leave the literal tokens rather than erroring.
func TestCompose_MissingKeysLeftVerbatim(t *testing.T) {
	c := New("https://app.tabletalk.it")
	p, err := c.Compose(category.NearbyMeal, map[string]string{})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if !strings.Contains(p.Body, "{{mealTitle}}") {
		t.Errorf("unmatched placeholder should stay verbatim, body = %q", p.Body)
	}
	if !strings.Contains(p.DeepLink, ":mealId") {
		t.Errorf("unmatched path param should stay verbatim, link = %q", p.DeepLink)
	}
}

func TestSubstitute_PartialData(t *testing.T) {
	out := substitute("{{a}} and {{b}}", map[string]string{"a": "one"})
	if out != "one and {{b}}" {
		t.Errorf("substitute = %q", out)
	}
}
