package bundle_test

import (
	"context"
	"errors"
	"testing"

	"github.com/agentoven/concierge/internal/bundle"
	"github.com/agentoven/concierge/internal/testutil"
	"github.com/agentoven/concierge/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var rain = &models.Weather{Description: "light rain", Temp: 11}

func TestApplyWeatherPivot_Picnic(t *testing.T) {
	p := bundle.ApplyWeatherPivot("picnic", "Brooklyn", []string{"picnic", "wine"}, nil, rain)

	require.True(t, p.Applied)
	assert.Equal(t, []string{"indoor dining", "wine"}, p.SearchQueries)
	assert.Contains(t, p.Warning, "Light rain")
	assert.Contains(t, p.Warning, "Brooklyn")
}

func TestApplyWeatherPivot_Idempotent(t *testing.T) {
	opts := []models.BundleOptionSpec{
		{Label: "Park day", Categories: []string{"picnic", "wine"}},
		{Label: "Cosy", Categories: []string{"indoor dining", "wine"}},
	}
	first := bundle.ApplyWeatherPivot("picnic", "", []string{"picnic", "wine"}, opts, rain)
	require.True(t, first.Applied)
	assert.Equal(t, []string{"indoor dining", "wine"}, first.BundleOptions[0].Categories)
	assert.Equal(t, []string{"indoor dining", "wine"}, first.BundleOptions[1].Categories, "indoor tier is untouched")

	second := bundle.ApplyWeatherPivot("picnic", "", first.SearchQueries, first.BundleOptions, rain)
	assert.Equal(t, first.SearchQueries, second.SearchQueries)
	assert.Equal(t, first.BundleOptions[0].Categories, second.BundleOptions[0].Categories)

	assert.Equal(t, []string{"picnic", "wine"}, opts[0].Categories, "input must not be modified")
}

func TestApplyWeatherPivot_NoOp(t *testing.T) {
	sunny := &models.Weather{Description: "clear sky"}
	p := bundle.ApplyWeatherPivot("picnic", "", []string{"picnic"}, nil, sunny)
	assert.False(t, p.Applied)
	assert.Equal(t, []string{"picnic"}, p.SearchQueries)

	p = bundle.ApplyWeatherPivot("date night", "", []string{"flowers", "dinner"}, nil, rain)
	assert.False(t, p.Applied)
	assert.Empty(t, p.Warning)

	p = bundle.ApplyWeatherPivot("picnic", "", []string{"picnic"}, nil, nil)
	assert.False(t, p.Applied)
}

func TestApplyWeatherPivot_TokenSubstitution(t *testing.T) {
	p := bundle.ApplyWeatherPivot("sunset", "", []string{"outdoor seating", "beach", "park"}, nil, rain)
	require.True(t, p.Applied)
	assert.Equal(t, []string{"indoor seating", "indoor", "indoor"}, p.SearchQueries)
}

func TestApplyWeatherPivot_KeepsEveryLeg(t *testing.T) {
	cats := []string{"beach", "park", "drinks"}
	opts := []models.BundleOptionSpec{{Label: "Beach day", Categories: cats}}

	p := bundle.ApplyWeatherPivot("beach day", "", cats, opts, &models.Weather{Description: "heavy rain"})

	require.True(t, p.Applied)
	assert.Equal(t, []string{"indoor", "indoor", "drinks"}, p.SearchQueries)
	require.Len(t, p.BundleOptions, 1)
	assert.Equal(t, []string{"indoor", "indoor", "drinks"}, p.BundleOptions[0].Categories)
	assert.Equal(t, []string{"beach", "park", "drinks"}, cats, "input is not modified")
}

func TestSelectBundles_EmptyCategoryOmitted(t *testing.T) {
	cats := []models.CategoryProducts{
		{Category: "flowers", Products: []models.Product{testutil.Product("f1", "Tulips", "bloom", 39.99)}},
		{Category: "dinner"},
	}
	tpl := []models.BundleOptionSpec{{Label: "Classic", Categories: []string{"flowers", "dinner"}}}

	got := bundle.SelectBundles("date night", cats, tpl)

	require.Len(t, got, 1)
	assert.LessOrEqual(t, len(got[0].ProductIDs), 1)
	assert.Equal(t, []string{"f1"}, got[0].ProductIDs)
	assert.Equal(t, 39.99, got[0].TotalPrice)
	assert.Equal(t, "USD", got[0].Currency)
	assert.Equal(t, []string{"flowers", "dinner"}, got[0].Categories)
}

func TestSelectBundles_TotalIsSumOfPrices(t *testing.T) {
	cats := []models.CategoryProducts{
		{Category: "flowers", Products: []models.Product{testutil.Product("f1", "Roses", "a", 10.10)}},
		{Category: "dinner", Products: []models.Product{testutil.Product("d1", "Steak", "b", 20.20)}},
		{Category: "limo", Products: []models.Product{testutil.Product("l1", "Stretch", "c", 0.70)}},
	}
	tpl := []models.BundleOptionSpec{{Label: "All in", Categories: []string{"flowers", "dinner", "limo"}}}

	got := bundle.SelectBundles("", cats, tpl)
	require.Len(t, got, 1)
	assert.Equal(t, models.FromCents(1010+2020+70), got[0].TotalPrice)
}

func TestSelectBundles_TagScoring(t *testing.T) {
	cats := []models.CategoryProducts{{
		Category: "flowers",
		Products: []models.Product{
			testutil.Product("plain", "Mixed bouquet", "a", 30),
			testutil.Product("noisy", "Romantic roses", "a", 30, "romantic", "birthday", "kids"),
			testutil.Product("exact", "Red roses", "a", 30, "romantic"),
			testutil.Product("baby", "Baby roses", "a", 30, "romantic"),
		},
	}}
	tpl := []models.BundleOptionSpec{{Label: "Romantic", Categories: []string{"flowers"}, ExperienceTags: []string{"romantic"}}}

	got := bundle.SelectBundles("date night", cats, tpl)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"exact"}, got[0].ProductIDs)
}

func TestSelectBundles_NarrowThemeAllowedWhenRequested(t *testing.T) {
	cats := []models.CategoryProducts{{
		Category: "cake",
		Products: []models.Product{
			testutil.Product("w", "Wedding cake", "a", 90, "celebration"),
			testutil.Product("c", "Chocolate cake", "a", 40, "celebration", "kids"),
		},
	}}
	tpl := []models.BundleOptionSpec{{Label: "Wedding", Categories: []string{"cake"}, ExperienceTags: []string{"celebration"}}}

	got := bundle.SelectBundles("wedding reception", cats, tpl)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"w"}, got[0].ProductIDs)
}

func TestSelectBundles_Fallback(t *testing.T) {
	cats := []models.CategoryProducts{
		{Category: "flowers", Products: []models.Product{
			testutil.Product("f1", "Roses", "a", 25),
			testutil.Product("f2", "Lilies", "a", 20),
		}},
		{Category: "dinner", Products: []models.Product{testutil.Product("d1", "Pasta", "b", 50)}},
	}

	got := bundle.SelectBundles("date night", cats, nil)
	require.Len(t, got, 1)
	assert.Equal(t, "date night", got[0].Label)
	assert.Equal(t, []string{"f1", "d1"}, got[0].ProductIDs)
	assert.Equal(t, 75.0, got[0].TotalPrice)

	unresolved := []models.BundleOptionSpec{{Label: "Spa", Categories: []string{"massage"}}}
	got = bundle.SelectBundles("date night", cats, unresolved)
	require.Len(t, got, 1)
	assert.Equal(t, "date night", got[0].Label)

	assert.Empty(t, bundle.SelectBundles("date night", []models.CategoryProducts{{Category: "x"}}, nil))
}

func TestFetchCategories_DiversityExclusion(t *testing.T) {
	disc := &testutil.FakeDiscovery{ByQuery: map[string][]models.Product{
		"flowers": {
			testutil.Product("f1", "Roses", "A", 10),
			testutil.Product("f2", "Tulips", "A", 10),
			testutil.Product("f3", "Lilies", "B", 10),
		},
		"dinner": {
			testutil.Product("d1", "Pasta", "A", 40),
			testutil.Product("d2", "Sushi", "B", 40),
			testutil.Product("d3", "Tacos", "B", 40),
		},
		"limo": {
			testutil.Product("l1", "Stretch", "A", 90),
			testutil.Product("l2", "Sedan", "A", 90),
		},
		"dessert": {
			testutil.Product("x1", "Cake", "A", 9),
		},
	}}
	s := &bundle.Synthesizer{Discovery: disc}

	cats, err := s.FetchCategories(context.Background(), []string{"flowers", "dinner", "limo", "dessert"}, models.DiscoveryQuery{Limit: 10}, nil)
	require.NoError(t, err)
	require.Len(t, cats, 4)

	q := disc.Queries()
	require.Len(t, q, 4)
	assert.Equal(t, "", q[0].ExcludePartnerID)
	assert.Equal(t, "A", q[1].ExcludePartnerID, "flowers dominated by A")
	assert.Equal(t, "B", q[2].ExcludePartnerID, "only the previous category's partner is excluded")
	assert.Equal(t, "", q[3].ExcludePartnerID, "A was already excluded once")

	for _, p := range cats[1].Products {
		assert.NotEqual(t, "A", p.PartnerID)
	}
	assert.Equal(t, "dinner", cats[1].Products[0].Category)
}

func TestDiscoverComposite_WeatherPivotBeforeFetch(t *testing.T) {
	disc := &testutil.FakeDiscovery{ByQuery: map[string][]models.Product{
		"indoor dining": {testutil.Product("r1", "Bistro", "P", 60)},
		"wine":          {testutil.Product("w1", "Pinot", "Q", 25)},
	}}
	weather := &testutil.FakeWeather{Weather: rain}
	occ := &testutil.FakeOccasions{Events: []models.Occasion{{Name: "Jazz night"}}}
	geo := &testutil.FakeGeocoder{Mapping: map[string]string{"bk": "Brooklyn, NY"}}
	s := &bundle.Synthesizer{Discovery: disc, Weather: weather, Occasions: occ, Geocoder: geo}

	var seen []models.ThinkingCheckpoint
	think := models.CheckpointFunc(func(cp models.ThinkingCheckpoint, _ map[string]string) { seen = append(seen, cp) })

	res, err := s.DiscoverComposite(context.Background(), models.CompositeRequest{
		ExperienceName: "picnic",
		SearchQueries:  []string{"picnic", "wine"},
		BundleOptions:  []models.BundleOptionSpec{{Label: "Afternoon", Categories: []string{"picnic", "wine"}}},
		Location:       "bk",
		Limit:          5,
	}, think)
	require.NoError(t, err)

	assert.Equal(t, []string{"Brooklyn, NY"}, weather.Calls)
	assert.Equal(t, []string{"indoor dining", "wine"}, res.SearchQueries)
	assert.True(t, res.Engagement.Pivoted)
	assert.NotEmpty(t, res.Engagement.WeatherWarning)
	assert.Len(t, res.Engagement.Occasions, 1)

	q := disc.Queries()
	require.Len(t, q, 2)
	assert.Equal(t, "indoor dining", q[0].Query)

	require.Len(t, res.BundleOptions, 1)
	assert.Equal(t, []string{"r1", "w1"}, res.BundleOptions[0].ProductIDs)
	assert.Equal(t, 85.0, res.BundleOptions[0].TotalPrice)

	assert.Equal(t, []models.ThinkingCheckpoint{
		models.CheckpointBeforeWeather,
		models.CheckpointAfterWeather,
		models.CheckpointWeatherPivot,
		models.CheckpointBeforeCategoryFetch,
		models.CheckpointBeforeCategoryFetch,
		models.CheckpointBeforeBundle,
	}, seen)
}

func TestDiscoverComposite_PivotedDuplicateLegsFetchOnce(t *testing.T) {
	disc := &testutil.FakeDiscovery{ByQuery: map[string][]models.Product{
		"indoor": {
			testutil.Product("i1", "Climbing gym", "X", 30),
			testutil.Product("i2", "Aquarium", "Y", 25),
		},
		"drinks": {testutil.Product("d1", "Cocktail bar", "Z", 40)},
	}}
	s := &bundle.Synthesizer{Discovery: disc, Weather: &testutil.FakeWeather{Weather: rain}}

	cats := []string{"beach", "park", "drinks"}
	res, err := s.DiscoverComposite(context.Background(), models.CompositeRequest{
		ExperienceName: "beach day",
		SearchQueries:  cats,
		BundleOptions:  []models.BundleOptionSpec{{Label: "Beach day", Categories: cats}},
		Location:       "Santa Monica",
	}, nil)
	require.NoError(t, err)

	q := disc.Queries()
	require.Len(t, q, 2)
	assert.Equal(t, "indoor", q[0].Query)
	assert.Equal(t, "drinks", q[1].Query)

	assert.Equal(t, []string{"indoor", "indoor", "drinks"}, res.SearchQueries)
	require.Len(t, res.Categories, 3)
	assert.Equal(t, "indoor", res.Categories[1].Category)
	assert.Len(t, res.Categories[1].Products, 2)

	require.Len(t, res.BundleOptions, 1)
	assert.Equal(t, []string{"i1", "i2", "d1"}, res.BundleOptions[0].ProductIDs)
	assert.Len(t, res.BundleOptions[0].Categories, 3)
}

func TestDiscoverComposite_SignalFailuresDegrade(t *testing.T) {
	disc := &testutil.FakeDiscovery{ByQuery: map[string][]models.Product{
		"picnic": {testutil.Product("p1", "Basket", "P", 30)},
	}}
	s := &bundle.Synthesizer{
		Discovery: disc,
		Weather:   &testutil.FakeWeather{Err: errors.New("weather down")},
		Occasions: &testutil.FakeOccasions{Err: errors.New("events down")},
	}
	res, err := s.DiscoverComposite(context.Background(), models.CompositeRequest{
		ExperienceName: "picnic",
		SearchQueries:  []string{"picnic"},
		Location:       "Brooklyn",
	}, nil)
	require.NoError(t, err)
	assert.False(t, res.Engagement.Pivoted)
	assert.Nil(t, res.Engagement.Weather)
	assert.Equal(t, []string{"picnic"}, res.SearchQueries)
}

func TestDiscoverComposite_DiscoveryErrorSurfaces(t *testing.T) {
	s := &bundle.Synthesizer{Discovery: &testutil.FakeDiscovery{Err: errors.New("timeout")}}
	_, err := s.DiscoverComposite(context.Background(), models.CompositeRequest{SearchQueries: []string{"flowers"}}, nil)
	assert.ErrorContains(t, err, "timeout")
}

func TestRefineBundleCategory(t *testing.T) {
	disc := &testutil.FakeDiscovery{ByQuery: map[string][]models.Product{
		"vegan dinner": {testutil.Product("v1", "Green bowl", "G", 35)},
	}}
	s := &bundle.Synthesizer{Discovery: disc}
	res, err := s.RefineBundleCategory(context.Background(), models.RefineRequest{BundleID: "b1", Category: "dinner", Query: "vegan dinner"})
	require.NoError(t, err)
	assert.Equal(t, "dinner", res.Category)
	assert.Len(t, res.Alternatives, 1)
}
