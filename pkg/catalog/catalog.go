// Package catalog holds the reference data of the plant (components, recipes,
// products) and the production-side records derived from imports.
package catalog

import "time"

// DateLayout is the storage and URL form of a production date.
const DateLayout = "2006-01-02"

// Component is a raw material consumed by production (water, salt, ...).
type Component struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Recipe is a formulation; its name doubles as a classification group label.
type Recipe struct {
	ID    int64        `json:"id"`
	Name  string       `json:"name"`
	Items []RecipeItem `json:"items,omitempty"`
}

// RecipeItem is the kilograms of one component consumed per kilogram of output.
type RecipeItem struct {
	RecipeID      int64   `json:"recipe_id"`
	ComponentID   int64   `json:"component_id"`
	ComponentName string  `json:"component_name"`
	QuantityPerKg float64 `json:"quantity_per_kg"`
}

// Product maps a declared name from the external declaration system to the
// plant's catalog entry.
type Product struct {
	ID              int64   `json:"id"`
	DeclaredName    string  `json:"declared_name"`
	PackageWeightKg float64 `json:"package_weight_kg"`
	RecipeID        *int64  `json:"recipe_id,omitempty"`
	RecipeName      string  `json:"recipe_name,omitempty"`
}

// ProductionRecord is one finished-goods line for a production date.
type ProductionRecord struct {
	ID         int64     `json:"id"`
	Date       time.Time `json:"production_date"`
	ProductID  int64     `json:"product_id"`
	QuantityKg float64   `json:"quantity_kg"`
}

// ConsumptionEntry is a write-off: the quantity of one component used by one
// production record.
type ConsumptionEntry struct {
	ID            int64   `json:"id"`
	RecordID      int64   `json:"production_record_id"`
	ComponentID   int64   `json:"component_id"`
	ComponentName string  `json:"component_name"`
	QuantityKg    float64 `json:"quantity_kg"`
}

// FormatDate renders a production date in DateLayout.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses a production date in DateLayout.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}
