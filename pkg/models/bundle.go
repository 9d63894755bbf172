package models

import (
	"math"
	"strings"
)

// ── Products ─────────────────────────────────────────────────

// Product is one discovery result. Tags carry experience tags assigned by
// the catalog (e.g. "romantic", "birthday").
type Product struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Price       float64                `json:"price"`
	Currency    string                 `json:"currency,omitempty"`
	PartnerID   string                 `json:"partner_id,omitempty"`
	Category    string                 `json:"category,omitempty"`
	Tags        []string               `json:"experience_tags,omitempty"`
	ImageURL    string                 `json:"image_url,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// HasTag reports whether the product carries the tag (case-insensitive).
func (p Product) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// DiscoveryResult is what the discovery collaborator returns for one query.
type DiscoveryResult struct {
	Products        []Product              `json:"products"`
	AdaptiveCard    map[string]interface{} `json:"adaptive_card,omitempty"`
	MachineReadable map[string]interface{} `json:"machine_readable,omitempty"`
}

// CategoryProducts pairs one composite leg with the products fetched for it.
type CategoryProducts struct {
	Category         string    `json:"category"`
	Query            string    `json:"query"`
	ExcludePartnerID string    `json:"exclude_partner_id,omitempty"`
	Products         []Product `json:"products"`
}

// ── Bundles ──────────────────────────────────────────────────

// BundleOption is one priced, fully resolved composite.
// Invariants: len(ProductIDs) <= len(Categories) and TotalPrice is the sum of
// the selected product prices.
type BundleOption struct {
	Label          string   `json:"label"`
	Description    string   `json:"description,omitempty"`
	ProductIDs     []string `json:"product_ids"`
	ProductNames   []string `json:"product_names"`
	TotalPrice     float64  `json:"total_price"`
	Currency       string   `json:"currency,omitempty"`
	Categories     []string `json:"categories"`
	ExperienceTags []string `json:"experience_tags,omitempty"`
}

// Engagement carries the contextual signals gathered while planning a
// composite (weather, nearby occasions).
type Engagement struct {
	Location       string     `json:"location,omitempty"`
	Weather        *Weather   `json:"weather,omitempty"`
	WeatherWarning string     `json:"weather_warning,omitempty"`
	Occasions      []Occasion `json:"occasions,omitempty"`
	Pivoted        bool       `json:"pivoted,omitempty"`
}

// ── Money helpers ────────────────────────────────────────────

// Cents converts a decimal price into integer minor units.
func Cents(price float64) int64 {
	return int64(math.Round(price * 100))
}

// FromCents converts minor units back into a decimal price.
func FromCents(cents int64) float64 {
	return float64(cents) / 100
}
