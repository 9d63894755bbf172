package bundle

import (
	"fmt"
	"strings"

	"github.com/agentoven/concierge/pkg/models"
)

// outdoorWords classify an experience as outdoor.
var outdoorWords = []string{"picnic", "outdoor", "garden", "park", "beach", "rooftop"}

// indoorSubstitutes is the fixed rain substitution per category token.
var indoorSubstitutes = map[string]string{
	"picnic":  "indoor dining",
	"outdoor": "indoor",
	"garden":  "indoor dining",
	"park":    "indoor",
	"beach":   "indoor",
}

// Pivot is the outcome of ApplyWeatherPivot.
type Pivot struct {
	SearchQueries []string
	BundleOptions []models.BundleOptionSpec
	Warning       string
	Applied       bool
}

// IsRainy reports whether a weather description mentions rain.
func IsRainy(w *models.Weather) bool {
	return w != nil && strings.Contains(strings.ToLower(w.Description), "rain")
}

// IsOutdoor reports whether the experience name or any category mentions an
// outdoor word.
func IsOutdoor(experienceName string, categories ...[]string) bool {
	if containsOutdoorWord(experienceName) {
		return true
	}
	for _, list := range categories {
		for _, c := range list {
			if containsOutdoorWord(c) {
				return true
			}
		}
	}
	return false
}

func containsOutdoorWord(s string) bool {
	for _, tok := range tokens(s) {
		for _, w := range outdoorWords {
			if tok == w {
				return true
			}
		}
	}
	return false
}

// ApplyWeatherPivot substitutes outdoor category tokens with indoor ones when
// it is raining and the experience is outdoor. The inputs are not modified.
// Applying the pivot to already pivoted categories changes nothing.
func ApplyWeatherPivot(experienceName, location string, queries []string, options []models.BundleOptionSpec, w *models.Weather) Pivot {
	p := Pivot{SearchQueries: queries, BundleOptions: options}
	if !IsRainy(w) {
		return p
	}
	specCats := make([][]string, 0, len(options)+1)
	specCats = append(specCats, queries)
	for _, o := range options {
		specCats = append(specCats, o.Categories)
	}
	if !IsOutdoor(experienceName, specCats...) {
		return p
	}

	p.SearchQueries = substituteAll(queries)
	p.BundleOptions = make([]models.BundleOptionSpec, len(options))
	for i, o := range options {
		o.Categories = substituteAll(o.Categories)
		o.ExperienceTags = append([]string(nil), o.ExperienceTags...)
		p.BundleOptions[i] = o
	}
	p.Applied = true

	what := experienceName
	if what == "" {
		what = "plans"
	}
	where := ""
	if location != "" {
		where = " in " + location
	}
	p.Warning = fmt.Sprintf("%s is forecast%s, so we moved your %s indoors.", capitalize(w.Description), where, what)
	return p
}

// substituteAll rewrites each category token by token. Every leg is kept,
// even when two legs rewrite to the same category.
func substituteAll(categories []string) []string {
	if categories == nil {
		return nil
	}
	out := make([]string, len(categories))
	for i, c := range categories {
		out[i] = substitute(c)
	}
	return out
}

func substitute(category string) string {
	toks := tokens(category)
	changed := false
	for i, t := range toks {
		if sub, ok := indoorSubstitutes[t]; ok {
			toks[i] = sub
			changed = true
		}
	}
	if !changed {
		return category
	}
	return strings.Join(toks, " ")
}

func tokens(s string) []string {
	return strings.Fields(strings.ToLower(s))
}

func capitalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "Rain"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
