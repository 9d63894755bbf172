package refinement

import (
	"strings"

	"github.com/agentoven/concierge/pkg/models"
)

// FulfillmentExperience is the fulfilment key holding the current plan's
// experience name.
const FulfillmentExperience = "experience_name"

var fulfillmentEntities = []models.EntityType{
	models.EntityLocation,
	models.EntityTime,
	models.EntityDate,
	models.EntityPickupTime,
	models.EntityPickupAddress,
	models.EntityDeliveryAddress,
}

// Decision is the single refinement change a turn produces.
type Decision struct {
	Update models.RefinementUpdate
	Reason string
}

// Plan decides how the stored context changes given the turn's intent.
//
//   - refine_composite with removed or added categories rewrites the purge;
//     when additions restore the whole plan the purge is cleared.
//   - discover_composite for a different experience clears the purge.
//   - anything else leaves the purge alone.
//
// Fulfilment values from the intent's entities are merged in every case.
func Plan(intent *models.Intent, prior *models.RefinementContext) Decision {
	var d Decision
	if intent == nil {
		d.Reason = "no intent; refinement unchanged"
		return d
	}

	switch {
	case intent.IntentType == models.IntentRefineComposite && (len(intent.RemovedCategories) > 0 || len(intent.AddedCategories) > 0):
		d = planRefine(intent, prior)
	case intent.IntentType == models.IntentDiscoverComposite && newExperience(intent, prior) && (prior.HasPurge() || priorPlan(prior) != nil):
		d.Update.ProposedPlan = models.Set[[]string](nil)
		d.Update.SearchQueries = models.Set[[]string](nil)
		d.Reason = "new experience " + quote(intent.ExperienceName) + "; cleared previous refinement"
	default:
		d.Reason = "refinement unchanged"
	}

	if fc, changed := mergeFulfillment(intent, prior); changed {
		d.Update.FulfillmentContext = models.Set(fc)
	}
	return d
}

func planRefine(intent *models.Intent, prior *models.RefinementContext) Decision {
	var d Decision
	plan := firstNonEmpty(intent.ProposedPlan, priorPlan(prior), intent.SearchQueries)

	var current []string
	switch {
	case prior.HasPurge():
		current = prior.SearchQueries
	case len(intent.SearchQueries) > 0:
		current = intent.SearchQueries
	default:
		current = plan
	}
	current = union(current, intent.AddedCategories)
	current = minus(current, intent.RemovedCategories)

	if len(intent.RemovedCategories) == 0 && covers(current, plan) {
		d.Update.ProposedPlan = models.Set[[]string](nil)
		d.Update.SearchQueries = models.Set[[]string](nil)
		d.Reason = "all removed categories added back; cleared purge"
		return d
	}

	d.Update.ProposedPlan = models.Set(append([]string{}, plan...))
	d.Update.SearchQueries = models.Set(append([]string{}, current...))
	switch {
	case len(intent.RemovedCategories) > 0:
		d.Reason = "removed " + strings.Join(intent.RemovedCategories, ", ") + "; persisted purge"
	default:
		d.Reason = "added " + strings.Join(intent.AddedCategories, ", ") + "; purge narrowed"
	}
	return d
}

// ApplyPurge returns a copy of intent restricted to the purged category list
// in rc. Without a stored purge the intent is returned unchanged.
func ApplyPurge(intent *models.Intent, rc *models.RefinementContext) *models.Intent {
	if intent == nil || !rc.HasPurge() {
		return intent
	}
	out := intent.Clone()
	out.SearchQueries = append([]string{}, rc.SearchQueries...)
	allowed := make(map[string]bool, len(rc.SearchQueries))
	for _, q := range rc.SearchQueries {
		allowed[strings.ToLower(q)] = true
	}
	for i, opt := range out.BundleOptions {
		kept := make([]string, 0, len(opt.Categories))
		for _, c := range opt.Categories {
			if allowed[strings.ToLower(c)] {
				kept = append(kept, c)
			}
		}
		out.BundleOptions[i].Categories = kept
	}
	return out
}

// Effective is the context the rest of the turn should see once the
// decision is applied.
func (d Decision) Effective(threadID string, prior *models.RefinementContext) *models.RefinementContext {
	if d.Update.IsNoop() {
		return prior
	}
	return d.Update.Apply(threadID, prior, nowUTC())
}

func newExperience(intent *models.Intent, prior *models.RefinementContext) bool {
	stored := prior.Fulfillment(FulfillmentExperience)
	name := strings.TrimSpace(intent.ExperienceName)
	return stored != "" && name != "" && !strings.EqualFold(stored, name)
}

// mergeFulfillment overlays the intent's first value per fulfilment entity
// and its experience name onto the stored map.
func mergeFulfillment(intent *models.Intent, prior *models.RefinementContext) (map[string]string, bool) {
	fc := make(map[string]string)
	if prior != nil {
		for k, v := range prior.FulfillmentContext {
			fc[k] = v
		}
	}
	changed := false
	set := func(k, v string) {
		if v == "" || fc[k] == v {
			return
		}
		fc[k] = v
		changed = true
	}
	for _, t := range fulfillmentEntities {
		for _, v := range intent.EntityValues(t) {
			if t == models.EntityLocation && !ValidLocation(v) {
				continue
			}
			set(string(t), v)
			break
		}
	}
	if intent.IntentType.IsComposite() {
		set(FulfillmentExperience, strings.TrimSpace(intent.ExperienceName))
	}
	return fc, changed
}

// ValidLocation rejects negated values such as "not downtown".
func ValidLocation(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return false
	}
	for _, prefix := range []string{"not ", "no ", "anything but "} {
		if strings.HasPrefix(v, prefix) {
			return false
		}
	}
	return true
}

func priorPlan(prior *models.RefinementContext) []string {
	if prior == nil {
		return nil
	}
	return prior.ProposedPlan
}

func firstNonEmpty(lists ...[]string) []string {
	for _, l := range lists {
		if len(l) > 0 {
			return l
		}
	}
	return nil
}

func union(base, extra []string) []string {
	out := append([]string{}, base...)
	for _, e := range extra {
		if !containsFold(out, e) {
			out = append(out, e)
		}
	}
	return out
}

func minus(base, remove []string) []string {
	out := make([]string, 0, len(base))
	for _, b := range base {
		if !containsFold(remove, b) {
			out = append(out, b)
		}
	}
	return out
}

func covers(have, plan []string) bool {
	for _, p := range plan {
		if !containsFold(have, p) {
			return false
		}
	}
	return true
}

func containsFold(list []string, s string) bool {
	s = strings.TrimSpace(s)
	for _, l := range list {
		if strings.EqualFold(strings.TrimSpace(l), s) {
			return true
		}
	}
	return false
}

func quote(s string) string { return "\"" + s + "\"" }
