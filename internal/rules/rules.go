// Package rules evaluates upsell, surge and promo rules against a resolved
// intent. Evaluate is a pure function; Load reads a YAML rules file.
package rules

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/agentoven/concierge/pkg/models"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// ExpressionEnv is the variable set visible to conditions.expression.
type ExpressionEnv struct {
	IntentType     string   `expr:"intent_type"`
	ExperienceName string   `expr:"experience_name"`
	SearchQuery    string   `expr:"search_query"`
	SearchQueries  []string `expr:"search_queries"`
	PurchaseIntent string   `expr:"purchase_intent"`
	UrgencySignals []string `expr:"urgency_signals"`
	BundleItems    int      `expr:"bundle_items"`
}

// Evaluate returns the combined decision of every enabled rule that matches.
// A disabled config yields the zero value.
func Evaluate(intent *models.Intent, cfg models.RulesConfig, bundleItemCount int) models.RuleDecision {
	var d models.RuleDecision
	if !cfg.Enabled || intent == nil {
		return d
	}

	haystack := occasionText(intent)
	env := expressionEnv(intent, bundleItemCount)

	for _, r := range cfg.Rules {
		if !r.IsEnabled() || !matchesCommon(r.Conditions, intent, haystack, env) {
			continue
		}
		switch r.Kind {
		case models.RuleUpsell:
			d.AddonCategories = appendUnique(d.AddonCategories, r.Action.AddonCategories...)
			d.BoostAddons = d.BoostAddons || r.Action.BoostAddons
		case models.RuleSurge:
			if !overlaps(intent.UrgencySignals, r.Conditions.UrgencySignals) {
				continue
			}
			pct := r.Action.SurgePct
			if r.Action.MaxSurgePct > 0 && pct > r.Action.MaxSurgePct {
				pct = r.Action.MaxSurgePct
			}
			if pct > d.SurgePct {
				d.SurgePct = pct
			}
			d.ApplySurge = d.SurgePct > 0
		case models.RulePromo:
			if r.Conditions.Trigger != models.PromoTriggerBeforeCheckout || bundleItemCount < r.Conditions.MinBundleItems {
				continue
			}
			d.PromoProducts = appendUnique(d.PromoProducts, r.Action.PromoProducts...)
		default:
			continue
		}
		d.MatchedRules = append(d.MatchedRules, r.Name)
	}
	return d
}

// matchesCommon applies the conditions shared by every rule kind.
func matchesCommon(c models.RuleConditions, intent *models.Intent, haystack string, env ExpressionEnv) bool {
	if len(c.IntentTypes) > 0 {
		found := false
		for _, t := range c.IntentTypes {
			if t == intent.IntentType {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(c.OccasionContains) > 0 {
		found := false
		for _, needle := range c.OccasionContains {
			if n := strings.ToLower(strings.TrimSpace(needle)); n != "" && strings.Contains(haystack, n) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if c.MinPurchaseIntent != "" && intent.PurchaseIntent.Ordinal() < c.MinPurchaseIntent.Ordinal() {
		return false
	}
	if c.Expression != "" {
		ok, err := evalExpression(c.Expression, env)
		if err != nil {
			log.Warn().Err(err).Str("expression", c.Expression).Msg("rule expression failed")
			return false
		}
		return ok
	}
	return true
}

// programs caches compiled expressions by source. Validate fills it when a
// rules file is loaded, so Evaluate only runs programs.
var programs sync.Map // string -> *vm.Program

func compileExpression(src string) (*vm.Program, error) {
	if p, ok := programs.Load(src); ok {
		return p.(*vm.Program), nil
	}
	program, err := expr.Compile(src, expr.Env(ExpressionEnv{}), expr.AsBool())
	if err != nil {
		return nil, err
	}
	actual, _ := programs.LoadOrStore(src, program)
	return actual.(*vm.Program), nil
}

func evalExpression(src string, env ExpressionEnv) (bool, error) {
	program, err := compileExpression(src)
	if err != nil {
		return false, err
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return false, err
	}
	b, _ := out.(bool)
	return b, nil
}

func expressionEnv(intent *models.Intent, items int) ExpressionEnv {
	return ExpressionEnv{
		IntentType:     string(intent.IntentType),
		ExperienceName: intent.ExperienceName,
		SearchQuery:    intent.SearchQuery,
		SearchQueries:  intent.SearchQueries,
		PurchaseIntent: string(intent.PurchaseIntent),
		UrgencySignals: intent.UrgencySignals,
		BundleItems:    items,
	}
}

// occasionText is the lower-cased text occasion_contains matches against.
func occasionText(intent *models.Intent) string {
	parts := make([]string, 0, len(intent.SearchQueries)+2)
	parts = append(parts, intent.ExperienceName)
	parts = append(parts, intent.SearchQueries...)
	parts = append(parts, intent.SearchQuery)
	return strings.ToLower(strings.Join(parts, " "))
}

func overlaps(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if strings.EqualFold(strings.TrimSpace(h), strings.TrimSpace(w)) {
				return true
			}
		}
	}
	return false
}

func appendUnique(dst []string, items ...string) []string {
	for _, it := range items {
		dup := false
		for _, d := range dst {
			if d == it {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, it)
		}
	}
	return dst
}

// ── Loading ──────────────────────────────────────────────────

// Load reads and validates a YAML rules file.
func Load(path string) (models.RulesConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.RulesConfig{}, fmt.Errorf("read rules %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML rules and validates them.
func Parse(data []byte) (models.RulesConfig, error) {
	var cfg models.RulesConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return models.RulesConfig{}, fmt.Errorf("parse rules: %w", err)
	}
	if errs := Validate(cfg); len(errs) > 0 {
		return cfg, fmt.Errorf("invalid rules: %w", errs[0])
	}
	return cfg, nil
}

// Validate checks every rule and returns one error per problem found.
func Validate(cfg models.RulesConfig) []error {
	var errs []error
	seen := make(map[string]bool, len(cfg.Rules))
	for i, r := range cfg.Rules {
		name := r.Name
		if name == "" {
			errs = append(errs, fmt.Errorf("rule %d: name is required", i))
			name = fmt.Sprintf("#%d", i)
		} else if seen[name] {
			errs = append(errs, fmt.Errorf("rule %s: duplicate name", name))
		}
		seen[name] = true

		switch r.Kind {
		case models.RuleUpsell:
			if len(r.Action.AddonCategories) == 0 && !r.Action.BoostAddons {
				errs = append(errs, fmt.Errorf("rule %s: upsell needs addon_categories or boost_addons", name))
			}
		case models.RuleSurge:
			if r.Action.SurgePct <= 0 {
				errs = append(errs, fmt.Errorf("rule %s: surge_pct must be positive", name))
			}
			if len(r.Conditions.UrgencySignals) == 0 {
				errs = append(errs, fmt.Errorf("rule %s: surge needs urgency_signals", name))
			}
		case models.RulePromo:
			if r.Conditions.Trigger != models.PromoTriggerBeforeCheckout {
				errs = append(errs, fmt.Errorf("rule %s: promo trigger must be %q", name, models.PromoTriggerBeforeCheckout))
			}
		default:
			errs = append(errs, fmt.Errorf("rule %s: unknown kind %q", name, r.Kind))
		}

		if r.Conditions.Expression != "" {
			if _, err := compileExpression(r.Conditions.Expression); err != nil {
				errs = append(errs, fmt.Errorf("rule %s: expression: %w", name, err))
			}
		}
	}
	return errs
}
