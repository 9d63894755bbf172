package models

import "strings"

// ── Intent ───────────────────────────────────────────────────

type IntentType string

const (
	IntentDiscover          IntentType = "discover"
	IntentDiscoverComposite IntentType = "discover_composite"
	IntentRefineComposite   IntentType = "refine_composite"
	IntentCheckout          IntentType = "checkout"
	IntentTrack             IntentType = "track"
	IntentSupport           IntentType = "support"
	IntentBrowse            IntentType = "browse"
)

// IsComposite reports whether the intent plans a multi-category experience.
func (t IntentType) IsComposite() bool {
	return t == IntentDiscoverComposite || t == IntentRefineComposite
}

// NextActionCompleteWithProbing asks the planner to answer with a probe
// instead of dispatching discovery.
const NextActionCompleteWithProbing = "complete_with_probing"

type PurchaseIntent string

const (
	PurchaseExploring   PurchaseIntent = "exploring"
	PurchaseConsidering PurchaseIntent = "considering"
	PurchaseReadyToBuy  PurchaseIntent = "ready_to_buy"
)

// Ordinal ranks purchase intents: exploring < considering < ready_to_buy.
// Unknown values rank as exploring.
func (p PurchaseIntent) Ordinal() int {
	switch p {
	case PurchaseConsidering:
		return 1
	case PurchaseReadyToBuy:
		return 2
	default:
		return 0
	}
}

type EntityType string

const (
	EntityLocation        EntityType = "location"
	EntityTime            EntityType = "time"
	EntityDate            EntityType = "date"
	EntityBudget          EntityType = "budget"
	EntityPickupTime      EntityType = "pickup_time"
	EntityPickupAddress   EntityType = "pickup_address"
	EntityDeliveryAddress EntityType = "delivery_address"
)

// Entity is a typed value extracted from the user message.
// Several entities of the same type may be present; consumers take the
// first valid one.
type Entity struct {
	Type  EntityType `json:"type"`
	Value string     `json:"value"`
}

// BundleOptionSpec is an unpriced bundle template proposed by the intent
// resolver.
type BundleOptionSpec struct {
	Label          string   `json:"label"`
	Description    string   `json:"description,omitempty"`
	Categories     []string `json:"categories"`
	ExperienceTags []string `json:"experience_tags,omitempty"`
}

// Intent is produced once per turn by the intent resolver and is read-only
// inside the loop.
type Intent struct {
	IntentType            IntentType         `json:"intent_type"`
	SearchQuery           string             `json:"search_query,omitempty"`
	SearchQueries         []string           `json:"search_queries,omitempty"`
	ExperienceName        string             `json:"experience_name,omitempty"`
	Entities              []Entity           `json:"entities,omitempty"`
	RecommendedNextAction string             `json:"recommended_next_action,omitempty"`
	BundleOptions         []BundleOptionSpec `json:"bundle_options,omitempty"`
	ConfidenceScore       float64            `json:"confidence_score"`

	// Refinement signals for composite plans.
	ProposedPlan      []string `json:"proposed_plan,omitempty"`
	RemovedCategories []string `json:"removed_categories,omitempty"`
	AddedCategories   []string `json:"added_categories,omitempty"`

	// Commerce signals consumed by the rules evaluator.
	PurchaseIntent PurchaseIntent `json:"purchase_intent,omitempty"`
	UrgencySignals []string       `json:"urgency_signals,omitempty"`
}

// EntityValues returns every non-empty value of the given type, in order.
func (i *Intent) EntityValues(t EntityType) []string {
	if i == nil {
		return nil
	}
	var out []string
	for _, e := range i.Entities {
		if e.Type == t {
			if v := strings.TrimSpace(e.Value); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

// FirstEntity returns the first non-empty value of the given type.
func (i *Intent) FirstEntity(t EntityType) string {
	if vals := i.EntityValues(t); len(vals) > 0 {
		return vals[0]
	}
	return ""
}

// Clone returns a deep copy so callers may rewrite categories without
// touching the resolver's value.
func (i *Intent) Clone() *Intent {
	if i == nil {
		return nil
	}
	c := *i
	c.SearchQueries = cloneStrings(i.SearchQueries)
	c.Entities = append([]Entity(nil), i.Entities...)
	c.ProposedPlan = cloneStrings(i.ProposedPlan)
	c.RemovedCategories = cloneStrings(i.RemovedCategories)
	c.AddedCategories = cloneStrings(i.AddedCategories)
	c.UrgencySignals = cloneStrings(i.UrgencySignals)
	if i.BundleOptions != nil {
		c.BundleOptions = make([]BundleOptionSpec, len(i.BundleOptions))
		for k, b := range i.BundleOptions {
			b.Categories = cloneStrings(b.Categories)
			b.ExperienceTags = cloneStrings(b.ExperienceTags)
			c.BundleOptions[k] = b
		}
	}
	return &c
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string{}, in...)
}
