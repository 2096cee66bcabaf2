package detections

import (
	"fmt"
	"slices"
	"strings"
)

// CategoryUnknown is assigned to labels the taxonomy does not map.
const CategoryUnknown = "unknown"

// Coarse categories.
const (
	CategoryCar        = "car"
	CategoryTruck      = "truck"
	CategoryBus        = "bus"
	CategoryBike       = "bike"
	CategoryPedestrian = "pedestrian"
)

// Rule maps raw labels onto a coarse category. With Substring set the rule
// matches any label containing Match; otherwise the whole label must equal
// it. Matching is case-insensitive.
type Rule struct {
	Match     string
	Category  string
	Substring bool
}

// Taxonomy is an ordered rule table; the first matching rule wins.
type Taxonomy struct {
	Name  string
	Rules []Rule
}

// LegacyTaxonomy reproduces the lidar extraction step of the recorded-trip
// tooling: "car" and "pedestrian" keep their names, anything containing
// "bike" is counted as a truck, and every other label is dropped.
func LegacyTaxonomy() Taxonomy {
	return Taxonomy{
		Name: "legacy",
		Rules: []Rule{
			{Match: "car", Category: CategoryCar, Substring: true},
			{Match: "bike", Category: CategoryTruck, Substring: true},
			{Match: "pedestrian", Category: CategoryPedestrian, Substring: true},
		},
	}
}

// PassthroughTaxonomy keeps the five known categories as-is, including bike.
func PassthroughTaxonomy() Taxonomy {
	return Taxonomy{
		Name: "passthrough",
		Rules: []Rule{
			{Match: CategoryCar, Category: CategoryCar},
			{Match: CategoryTruck, Category: CategoryTruck},
			{Match: CategoryBus, Category: CategoryBus},
			{Match: CategoryBike, Category: CategoryBike},
			{Match: CategoryPedestrian, Category: CategoryPedestrian},
		},
	}
}

// TaxonomyByName returns a preset by name.
func TaxonomyByName(name string) (Taxonomy, error) {
	switch name {
	case "", "legacy":
		return LegacyTaxonomy(), nil
	case "passthrough":
		return PassthroughTaxonomy(), nil
	default:
		return Taxonomy{}, fmt.Errorf("unknown taxonomy %q", name)
	}
}

// Classify maps a raw label. ok is false when no rule matches.
func (t Taxonomy) Classify(raw string) (string, bool) {
	label := strings.ToLower(strings.TrimSpace(raw))
	if label == "" {
		return "", false
	}
	for _, r := range t.Rules {
		match := strings.ToLower(r.Match)
		if r.Substring && strings.Contains(label, match) {
			return r.Category, true
		}
		if !r.Substring && label == match {
			return r.Category, true
		}
	}
	return "", false
}

// Categories returns the distinct categories the table can produce, in rule
// order.
func (t Taxonomy) Categories() []string {
	var out []string
	for _, r := range t.Rules {
		if !slices.Contains(out, r.Category) {
			out = append(out, r.Category)
		}
	}
	return out
}

// Coarse maps a label to a category, falling back to CategoryUnknown. A
// label that already names one of the table's categories is kept, so
// labels read back from an extracted artefact map to themselves.
func (t Taxonomy) Coarse(raw string) string {
	label := strings.ToLower(strings.TrimSpace(raw))
	if slices.Contains(t.Categories(), label) {
		return label
	}
	if c, ok := t.Classify(raw); ok {
		return c
	}
	return CategoryUnknown
}
