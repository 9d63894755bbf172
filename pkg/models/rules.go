package models

// ── Rules (upsell / surge / promo) ──────────────────────────

type RuleKind string

const (
	RuleUpsell RuleKind = "upsell"
	RuleSurge  RuleKind = "surge"
	RulePromo  RuleKind = "promo"
)

// PromoTriggerBeforeCheckout is the only promo trigger the evaluator fires on.
const PromoTriggerBeforeCheckout = "before_checkout"

// RuleConditions restricts when a rule applies. Empty fields do not
// restrict.
type RuleConditions struct {
	IntentTypes       []IntentType   `json:"intent_types,omitempty" yaml:"intent_types,omitempty"`
	OccasionContains  []string       `json:"occasion_contains,omitempty" yaml:"occasion_contains,omitempty"`
	MinPurchaseIntent PurchaseIntent `json:"min_purchase_intent,omitempty" yaml:"min_purchase_intent,omitempty"`
	UrgencySignals    []string       `json:"urgency_signals,omitempty" yaml:"urgency_signals,omitempty"`
	Trigger           string         `json:"trigger,omitempty" yaml:"trigger,omitempty"`
	MinBundleItems    int            `json:"min_bundle_items,omitempty" yaml:"min_bundle_items,omitempty"`
	// Expression is an optional boolean expr-lang expression evaluated
	// against the intent (see rules.ExpressionEnv).
	Expression string `json:"expression,omitempty" yaml:"expression,omitempty"`
}

// RuleAction is what a matched rule contributes.
type RuleAction struct {
	AddonCategories []string `json:"addon_categories,omitempty" yaml:"addon_categories,omitempty"`
	BoostAddons     bool     `json:"boost_addons,omitempty" yaml:"boost_addons,omitempty"`
	SurgePct        int      `json:"surge_pct,omitempty" yaml:"surge_pct,omitempty"`
	MaxSurgePct     int      `json:"max_surge_pct,omitempty" yaml:"max_surge_pct,omitempty"`
	PromoProducts   []string `json:"promo_products,omitempty" yaml:"promo_products,omitempty"`
}

type Rule struct {
	Name       string         `json:"name" yaml:"name"`
	Kind       RuleKind       `json:"kind" yaml:"kind"`
	Enabled    *bool          `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Conditions RuleConditions `json:"conditions" yaml:"conditions"`
	Action     RuleAction     `json:"action" yaml:"action"`
}

// IsEnabled treats a missing flag as enabled.
func (r Rule) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

type RulesConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Rules   []Rule `json:"rules" yaml:"rules"`
}

// RuleDecision is the evaluator output. The zero value means "no rules fired".
type RuleDecision struct {
	AddonCategories []string `json:"addon_categories,omitempty"`
	BoostAddons     bool     `json:"boost_addons"`
	ApplySurge      bool     `json:"apply_surge"`
	SurgePct        int      `json:"surge_pct"`
	PromoProducts   []string `json:"promo_products,omitempty"`
	MatchedRules    []string `json:"matched_rules,omitempty"`
}
