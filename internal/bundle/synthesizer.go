// Package bundle assembles priced multi-category bundles for composite
// experiences.
//
// A composite request goes through four stages, in order:
//  1. auxiliary signals: weather and upcoming occasions, fetched concurrently
//  2. weather pivot: outdoor categories move indoors when it rains
//  3. sequential per-category discovery with partner-diversity exclusion
//  4. per-template product selection, or a single fallback bundle
//
// Category fetches are sequential: each fetch's exclude_partner_id depends on
// the products returned by the previous one.
package bundle

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/agentoven/concierge/internal/telemetry"
	"github.com/agentoven/concierge/pkg/contracts"
	"github.com/agentoven/concierge/pkg/models"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// DefaultAuxTimeout bounds the weather and occasion lookups.
const DefaultAuxTimeout = 15 * time.Second

const (
	defaultLimit     = 10
	occasionsPerTurn = 5
)

var errNoDiscovery = errors.New("discovery collaborator not configured")

// Synthesizer implements contracts.CompositeDiscoverer and
// contracts.CategoryRefiner. Weather, Occasions and Geocoder are optional.
type Synthesizer struct {
	Discovery  contracts.Discoverer
	Weather    contracts.WeatherProvider
	Occasions  contracts.OccasionsProvider
	Geocoder   contracts.LocationNormalizer
	AuxTimeout time.Duration
}

// NewSynthesizer wires a synthesizer from the collaborator set.
func NewSynthesizer(c contracts.Collaborators, auxTimeout time.Duration) *Synthesizer {
	if auxTimeout <= 0 {
		auxTimeout = DefaultAuxTimeout
	}
	return &Synthesizer{
		Discovery:  c.Discovery,
		Weather:    c.Weather,
		Occasions:  c.Occasions,
		Geocoder:   c.Geocoder,
		AuxTimeout: auxTimeout,
	}
}

// DiscoverComposite runs the full composite pipeline.
func (s *Synthesizer) DiscoverComposite(ctx context.Context, req models.CompositeRequest, think models.CheckpointFunc) (*models.CompositeResult, error) {
	if s.Discovery == nil {
		return nil, errNoDiscovery
	}
	if len(req.SearchQueries) == 0 {
		return nil, errors.New("discover composite: no search queries")
	}
	ctx, span := telemetry.Tracer().Start(ctx, "bundle.DiscoverComposite")
	defer span.End()
	span.SetAttributes(
		attribute.String("concierge.experience", req.ExperienceName),
		attribute.Int("concierge.categories", len(req.SearchQueries)),
	)

	res := &models.CompositeResult{ExperienceName: req.ExperienceName}

	location := s.normalizeLocation(ctx, req.Location)
	res.Engagement.Location = location

	if location != "" {
		think.Emit(models.CheckpointBeforeWeather, map[string]string{"location": location})
		res.Engagement.Weather, res.Engagement.Occasions = s.signals(ctx, location)
		desc := ""
		if res.Engagement.Weather != nil {
			desc = res.Engagement.Weather.Description
		}
		think.Emit(models.CheckpointAfterWeather, map[string]string{"location": location, "weather": desc})
	}

	pivot := ApplyWeatherPivot(req.ExperienceName, location, req.SearchQueries, req.BundleOptions, res.Engagement.Weather)
	if pivot.Applied {
		res.Engagement.Pivoted = true
		res.Engagement.WeatherWarning = pivot.Warning
		think.Emit(models.CheckpointWeatherPivot, map[string]string{
			"experience": req.ExperienceName,
			"categories": strings.Join(pivot.SearchQueries, ", "),
		})
		log.Info().
			Str("experience", req.ExperienceName).
			Strs("queries", pivot.SearchQueries).
			Msg("weather pivot applied")
	}
	res.SearchQueries = pivot.SearchQueries

	limit := req.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	cats, err := s.FetchCategories(ctx, pivot.SearchQueries, models.DiscoveryQuery{
		Limit:     limit,
		Location:  location,
		BudgetMax: req.BudgetMax,
	}, think)
	if err != nil {
		return nil, err
	}
	res.Categories = cats

	think.Emit(models.CheckpointBeforeBundle, map[string]string{
		"experience": req.ExperienceName,
		"count":      strconv.Itoa(len(pivot.BundleOptions)),
	})
	res.BundleOptions = SelectBundles(req.ExperienceName, cats, pivot.BundleOptions)
	span.SetAttributes(attribute.Int("concierge.bundles", len(res.BundleOptions)))
	return res, nil
}

// FetchCategories runs one discovery per category, in order. After each fetch
// the dominant partner of that category, if not excluded before, is excluded
// from the next fetch only.
func (s *Synthesizer) FetchCategories(ctx context.Context, queries []string, base models.DiscoveryQuery, think models.CheckpointFunc) ([]models.CategoryProducts, error) {
	if s.Discovery == nil {
		return nil, errNoDiscovery
	}
	excluded := make(map[string]bool)
	fetched := make(map[string]int) // lower-cased category -> index in out
	nextExclude := ""
	out := make([]models.CategoryProducts, 0, len(queries))

	for i, category := range queries {
		think.Emit(models.CheckpointBeforeCategoryFetch, map[string]string{
			"category": category,
			"index":    strconv.Itoa(i + 1),
			"total":    strconv.Itoa(len(queries)),
		})
		// Repeated legs (e.g. two outdoor categories pivoted to "indoor")
		// reuse the earlier fetch and leave the exclusion chain alone.
		if j, ok := fetched[strings.ToLower(category)]; ok {
			prev := out[j]
			prev.Products = append([]models.Product(nil), prev.Products...)
			out = append(out, prev)
			continue
		}
		q := base
		q.Query = category
		q.ExcludePartnerID = nextExclude

		fctx, span := telemetry.Tracer().Start(ctx, "bundle.fetchCategory")
		span.SetAttributes(
			attribute.String("concierge.category", category),
			attribute.String("concierge.exclude_partner", nextExclude),
		)
		res, err := s.Discovery.DiscoverProducts(fctx, q)
		span.End()
		if err != nil {
			return nil, fmt.Errorf("fetch category %q: %w", category, err)
		}

		var products []models.Product
		if res != nil {
			products = append([]models.Product(nil), res.Products...)
		}
		for j := range products {
			if products[j].Category == "" {
				products[j].Category = category
			}
		}
		fetched[strings.ToLower(category)] = len(out)
		out = append(out, models.CategoryProducts{
			Category:         category,
			Query:            category,
			ExcludePartnerID: nextExclude,
			Products:         products,
		})

		nextExclude = ""
		if dom := dominantPartner(products); dom != "" && !excluded[dom] {
			excluded[dom] = true
			nextExclude = dom
		}
	}
	return out, nil
}

// dominantPartner returns the most frequent partner id; the earliest seen
// wins ties.
func dominantPartner(products []models.Product) string {
	counts := make(map[string]int)
	best, bestN := "", 0
	for _, p := range products {
		if p.PartnerID == "" {
			continue
		}
		counts[p.PartnerID]++
		if n := counts[p.PartnerID]; n > bestN {
			best, bestN = p.PartnerID, n
		}
	}
	return best
}

// signals fetches weather and occasions concurrently. Failures degrade to
// missing signals.
func (s *Synthesizer) signals(ctx context.Context, location string) (*models.Weather, []models.Occasion) {
	ctx, cancel := context.WithTimeout(ctx, s.auxTimeout())
	defer cancel()

	var (
		weather   *models.Weather
		occasions []models.Occasion
	)
	g, gctx := errgroup.WithContext(ctx)
	if s.Weather != nil {
		g.Go(func() error {
			w, err := s.Weather.GetWeather(gctx, location)
			if err != nil {
				log.Warn().Err(err).Str("location", location).Msg("weather lookup failed")
				return nil
			}
			weather = w
			return nil
		})
	}
	if s.Occasions != nil {
		g.Go(func() error {
			ev, err := s.Occasions.GetUpcomingOccasions(gctx, location, occasionsPerTurn)
			if err != nil {
				log.Warn().Err(err).Str("location", location).Msg("occasions lookup failed")
				return nil
			}
			occasions = ev
			return nil
		})
	}
	_ = g.Wait()
	return weather, occasions
}

func (s *Synthesizer) normalizeLocation(ctx context.Context, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || s.Geocoder == nil {
		return raw
	}
	ctx, cancel := context.WithTimeout(ctx, s.auxTimeout())
	defer cancel()
	norm, err := s.Geocoder.NormalizeLocation(ctx, raw)
	if err != nil || strings.TrimSpace(norm) == "" {
		if err != nil {
			log.Debug().Err(err).Str("location", raw).Msg("geocoding failed, keeping raw location")
		}
		return raw
	}
	return norm
}

func (s *Synthesizer) auxTimeout() time.Duration {
	if s.AuxTimeout > 0 {
		return s.AuxTimeout
	}
	return DefaultAuxTimeout
}

// RefineBundleCategory fetches alternatives for one leg of a bundle.
func (s *Synthesizer) RefineBundleCategory(ctx context.Context, req models.RefineRequest) (*models.RefineCategoryResult, error) {
	if s.Discovery == nil {
		return nil, errNoDiscovery
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		query = req.Category
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	res, err := s.Discovery.DiscoverProducts(ctx, models.DiscoveryQuery{
		Query:     query,
		Limit:     limit,
		Location:  req.Location,
		BudgetMax: req.BudgetMax,
	})
	if err != nil {
		return nil, fmt.Errorf("refine %q: %w", req.Category, err)
	}
	out := &models.RefineCategoryResult{BundleID: req.BundleID, Category: req.Category}
	if res != nil {
		out.Alternatives = res.Products
	}
	return out, nil
}
