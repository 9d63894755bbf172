package bundle

import (
	"strings"

	"github.com/agentoven/concierge/pkg/models"
)

// narrowThemes are words that make a product a poor default unless the user
// asked for them.
var narrowThemes = []string{"baby", "wedding", "anniversary", "bridal", "newborn", "shower"}

// score is compared lexicographically: more requested tags first, then fewer
// unrequested tags, then no unrequested narrow theme.
type score struct {
	matched int
	extra   int
	theme   int
}

func (s score) better(o score) bool {
	if s.matched != o.matched {
		return s.matched > o.matched
	}
	if s.extra != o.extra {
		return s.extra > o.extra
	}
	return s.theme > o.theme
}

func scoreProduct(p models.Product, tags []string, requested string) score {
	var s score
	want := make(map[string]bool, len(tags))
	for _, t := range tags {
		want[strings.ToLower(t)] = true
	}
	for _, t := range p.Tags {
		if want[strings.ToLower(t)] {
			s.matched++
		} else {
			s.extra--
		}
	}
	name := strings.ToLower(p.Name)
	for _, w := range narrowThemes {
		if strings.Contains(name, w) && !strings.Contains(requested, w) {
			s.theme = -1
			break
		}
	}
	return s
}

// bestProduct returns the highest scoring product not in used; the first
// wins ties. When every product is used it picks among all of them.
func bestProduct(products []models.Product, tags []string, requested string, used map[string]bool) (models.Product, bool) {
	candidates := products
	if len(used) > 0 {
		candidates = make([]models.Product, 0, len(products))
		for _, p := range products {
			if !used[p.ID] {
				candidates = append(candidates, p)
			}
		}
		if len(candidates) == 0 {
			candidates = products
		}
	}
	if len(candidates) == 0 {
		return models.Product{}, false
	}
	best := candidates[0]
	bestScore := scoreProduct(best, tags, requested)
	for _, p := range candidates[1:] {
		if s := scoreProduct(p, tags, requested); s.better(bestScore) {
			best, bestScore = p, s
		}
	}
	return best, true
}

// SelectBundles prices one option per template, falling back to a single
// first-product bundle when no template resolves to any product.
func SelectBundles(experienceName string, categories []models.CategoryProducts, templates []models.BundleOptionSpec) []models.BundleOption {
	byCategory := make(map[string][]models.Product, len(categories))
	for _, c := range categories {
		byCategory[strings.ToLower(c.Category)] = c.Products
	}

	var out []models.BundleOption
	for _, tpl := range templates {
		requested := strings.ToLower(strings.Join(append([]string{experienceName, tpl.Label, tpl.Description}, tpl.ExperienceTags...), " "))
		var picked []models.Product
		used := make(map[string]bool, len(tpl.Categories))
		for _, cat := range tpl.Categories {
			if p, ok := bestProduct(byCategory[strings.ToLower(cat)], tpl.ExperienceTags, requested, used); ok {
				picked = append(picked, p)
				used[p.ID] = true
			}
		}
		if len(picked) == 0 {
			continue
		}
		out = append(out, priced(tpl.Label, tpl.Description, tpl.Categories, tpl.ExperienceTags, picked))
	}
	if len(out) > 0 {
		return out
	}
	return fallbackBundle(experienceName, categories)
}

// fallbackBundle takes the first product of each category, skipping one
// already taken by an earlier leg of the same category. It returns nil
// when nothing was fetched at all.
func fallbackBundle(experienceName string, categories []models.CategoryProducts) []models.BundleOption {
	var picked []models.Product
	used := make(map[string]bool, len(categories))
	cats := make([]string, 0, len(categories))
	for _, c := range categories {
		cats = append(cats, c.Category)
		if p, ok := firstUnused(c.Products, used); ok {
			picked = append(picked, p)
			used[p.ID] = true
		}
	}
	if len(picked) == 0 {
		return nil
	}
	label := strings.TrimSpace(experienceName)
	if label == "" {
		label = "Curated bundle"
	}
	return []models.BundleOption{priced(label, "", cats, nil, picked)}
}

func firstUnused(products []models.Product, used map[string]bool) (models.Product, bool) {
	for _, p := range products {
		if !used[p.ID] {
			return p, true
		}
	}
	if len(products) > 0 {
		return products[0], true
	}
	return models.Product{}, false
}

func priced(label, description string, categories, tags []string, picked []models.Product) models.BundleOption {
	b := models.BundleOption{
		Label:          label,
		Description:    description,
		ProductIDs:     make([]string, 0, len(picked)),
		ProductNames:   make([]string, 0, len(picked)),
		Categories:     append([]string(nil), categories...),
		ExperienceTags: append([]string(nil), tags...),
	}
	var cents int64
	for _, p := range picked {
		b.ProductIDs = append(b.ProductIDs, p.ID)
		b.ProductNames = append(b.ProductNames, p.Name)
		cents += models.Cents(p.Price)
	}
	b.TotalPrice = models.FromCents(cents)
	b.Currency = picked[0].Currency
	return b
}
