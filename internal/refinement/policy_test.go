package refinement_test

import (
	"testing"

	"github.com/agentoven/concierge/internal/refinement"
	"github.com/agentoven/concierge/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlan_RemovePersistsPurge(t *testing.T) {
	intent := &models.Intent{
		IntentType:        models.IntentRefineComposite,
		ExperienceName:    "date night",
		SearchQueries:     []string{"flowers", "dinner", "limo"},
		RemovedCategories: []string{"limo"},
	}
	d := refinement.Plan(intent, nil)

	require.True(t, d.Update.SearchQueries.Present)
	assert.Equal(t, []string{"flowers", "dinner"}, d.Update.SearchQueries.Value)
	assert.Equal(t, []string{"flowers", "dinner", "limo"}, d.Update.ProposedPlan.Value)
	assert.Contains(t, d.Reason, "removed limo")
}

func TestPlan_PurgeSurvivesLaterTurns(t *testing.T) {
	prior := &models.RefinementContext{
		ThreadID:           "t1",
		ProposedPlan:       []string{"flowers", "dinner", "limo"},
		SearchQueries:      []string{"flowers", "dinner"},
		FulfillmentContext: map[string]string{"experience_name": "date night"},
	}
	intent := &models.Intent{
		IntentType:     models.IntentDiscoverComposite,
		ExperienceName: "date night",
		SearchQueries:  []string{"flowers", "dinner", "limo"},
		Entities:       []models.Entity{{Type: models.EntityTime, Value: "tonight"}},
	}
	d := refinement.Plan(intent, prior)

	assert.False(t, d.Update.SearchQueries.Present, "purge must not be touched")
	assert.False(t, d.Update.ProposedPlan.Present)
	require.True(t, d.Update.FulfillmentContext.Present)
	assert.Equal(t, "tonight", d.Update.FulfillmentContext.Value["time"])

	eff := d.Effective("t1", prior)
	assert.Equal(t, []string{"flowers", "dinner"}, eff.SearchQueries)
}

func TestPlan_SecondRemovalAccumulates(t *testing.T) {
	prior := &models.RefinementContext{
		ProposedPlan:  []string{"flowers", "dinner", "limo"},
		SearchQueries: []string{"flowers", "dinner"},
	}
	intent := &models.Intent{
		IntentType:        models.IntentRefineComposite,
		SearchQueries:     []string{"flowers", "dinner", "limo"},
		RemovedCategories: []string{"flowers"},
	}
	d := refinement.Plan(intent, prior)
	assert.Equal(t, []string{"dinner"}, d.Update.SearchQueries.Value)
	assert.Equal(t, []string{"flowers", "dinner", "limo"}, d.Update.ProposedPlan.Value)
}

func TestPlan_AddBackClears(t *testing.T) {
	prior := &models.RefinementContext{
		ProposedPlan:  []string{"flowers", "dinner", "limo"},
		SearchQueries: []string{"flowers", "dinner"},
	}
	intent := &models.Intent{
		IntentType:      models.IntentRefineComposite,
		AddedCategories: []string{"Limo"},
	}
	d := refinement.Plan(intent, prior)

	require.True(t, d.Update.SearchQueries.Present)
	assert.Nil(t, d.Update.SearchQueries.Value)
	require.True(t, d.Update.ProposedPlan.Present)
	assert.Nil(t, d.Update.ProposedPlan.Value)
}

func TestPlan_PartialAddBackNarrows(t *testing.T) {
	prior := &models.RefinementContext{
		ProposedPlan:  []string{"flowers", "dinner", "limo"},
		SearchQueries: []string{"dinner"},
	}
	intent := &models.Intent{
		IntentType:      models.IntentRefineComposite,
		AddedCategories: []string{"flowers"},
	}
	d := refinement.Plan(intent, prior)
	assert.Equal(t, []string{"dinner", "flowers"}, d.Update.SearchQueries.Value)
}

func TestPlan_NewExperienceClears(t *testing.T) {
	prior := &models.RefinementContext{
		ProposedPlan:       []string{"flowers", "dinner", "limo"},
		SearchQueries:      []string{"flowers", "dinner"},
		FulfillmentContext: map[string]string{"experience_name": "date night", "location": "Brooklyn"},
	}
	intent := &models.Intent{
		IntentType:     models.IntentDiscoverComposite,
		ExperienceName: "picnic",
		SearchQueries:  []string{"picnic", "wine"},
	}
	d := refinement.Plan(intent, prior)

	require.True(t, d.Update.SearchQueries.Present)
	assert.Nil(t, d.Update.SearchQueries.Value)
	assert.Equal(t, "picnic", d.Update.FulfillmentContext.Value["experience_name"])
	assert.Equal(t, "Brooklyn", d.Update.FulfillmentContext.Value["location"])
}

func TestPlan_NegatedLocationIgnored(t *testing.T) {
	intent := &models.Intent{
		IntentType: models.IntentDiscoverComposite,
		Entities: []models.Entity{
			{Type: models.EntityLocation, Value: "not Manhattan"},
			{Type: models.EntityLocation, Value: "Brooklyn"},
		},
	}
	d := refinement.Plan(intent, nil)
	assert.Equal(t, "Brooklyn", d.Update.FulfillmentContext.Value["location"])
}

func TestPlan_NilIntentIsNoop(t *testing.T) {
	d := refinement.Plan(nil, &models.RefinementContext{SearchQueries: []string{"x"}})
	assert.True(t, d.Update.IsNoop())
}

func TestApplyPurge(t *testing.T) {
	intent := &models.Intent{
		IntentType:    models.IntentDiscoverComposite,
		SearchQueries: []string{"flowers", "dinner", "limo"},
		BundleOptions: []models.BundleOptionSpec{
			{Label: "Classic", Categories: []string{"flowers", "dinner", "limo"}},
			{Label: "Lite", Categories: []string{"Dinner", "limo"}},
		},
	}
	rc := &models.RefinementContext{SearchQueries: []string{"flowers", "dinner"}}

	out := refinement.ApplyPurge(intent, rc)

	assert.Equal(t, []string{"flowers", "dinner"}, out.SearchQueries)
	assert.Equal(t, []string{"flowers", "dinner"}, out.BundleOptions[0].Categories)
	assert.Equal(t, []string{"Dinner"}, out.BundleOptions[1].Categories)
	assert.Equal(t, []string{"flowers", "dinner", "limo"}, intent.SearchQueries, "input untouched")

	assert.Same(t, intent, refinement.ApplyPurge(intent, nil))
}

func TestValidLocation(t *testing.T) {
	for in, want := range map[string]bool{
		"Brooklyn":            true,
		"not downtown":        false,
		"No Manhattan":        false,
		"anything but Queens": false,
		"  ":                  false,
		"Northampton":         true,
	} {
		assert.Equal(t, want, refinement.ValidLocation(in), in)
	}
}
