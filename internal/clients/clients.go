package clients

import (
	"net/http"

	"github.com/agentoven/concierge/internal/config"
	"github.com/agentoven/concierge/pkg/contracts"
	"github.com/rs/zerolog/log"
)

// New builds a collaborator for every configured URL. Collaborators without
// a URL stay nil. hc may be nil.
func New(cfg config.CollaboratorsConfig, hc *http.Client) (contracts.Collaborators, error) {
	if hc == nil {
		hc = NewHTTPClient()
	}
	var c contracts.Collaborators
	var enabled []string
	if cfg.IntentURL != "" {
		c.Intent = &IntentClient{newJSONClient("intent", cfg.IntentURL, cfg.IntentTimeout, cfg.SigningSecret, hc)}
		enabled = append(enabled, "intent")
	}
	if cfg.DiscoveryURL != "" {
		c.Discovery = &DiscoveryClient{newJSONClient("discovery", cfg.DiscoveryURL, cfg.DiscoveryTimeout, cfg.SigningSecret, hc)}
		enabled = append(enabled, "discovery")
	}
	if cfg.WeatherURL != "" {
		c.Weather = &WeatherClient{newJSONClient("weather", cfg.WeatherURL, cfg.AuxTimeout, cfg.SigningSecret, hc)}
		enabled = append(enabled, "weather")
	}
	if cfg.OccasionsURL != "" {
		c.Occasions = &OccasionsClient{newJSONClient("occasions", cfg.OccasionsURL, cfg.AuxTimeout, cfg.SigningSecret, hc)}
		enabled = append(enabled, "occasions")
	}
	if cfg.SearchURL != "" {
		c.Search = &SearchClient{newJSONClient("search", cfg.SearchURL, cfg.AuxTimeout, cfg.SigningSecret, hc)}
		enabled = append(enabled, "search")
	}
	if cfg.OrchestrationURL != "" {
		c.Orchestrator = &OrchestrationClient{newJSONClient("orchestration", cfg.OrchestrationURL, cfg.DiscoveryTimeout, cfg.SigningSecret, hc)}
		enabled = append(enabled, "orchestration")
	}
	if cfg.StandingIntentURL != "" {
		c.StandingIntent = &StandingIntentClient{newJSONClient("standing_intent", cfg.StandingIntentURL, cfg.DiscoveryTimeout, cfg.SigningSecret, hc)}
		enabled = append(enabled, "standing_intent")
	}
	if cfg.OrdersURL != "" {
		c.Orders = &OrderClient{newJSONClient("orders", cfg.OrdersURL, cfg.AuxTimeout, cfg.SigningSecret, hc)}
		enabled = append(enabled, "orders")
	}
	c.Manifests = &ManifestClient{newJSONClient("manifest", "", cfg.AuxTimeout, "", hc)}

	if cfg.MapsAPIKey != "" {
		g, err := NewGeocoder(cfg.MapsAPIKey)
		if err != nil {
			return c, err
		}
		c.Geocoder = g
		enabled = append(enabled, "geocoder")
	}

	log.Info().Strs("collaborators", enabled).Msg("Collaborator clients configured")
	return c, nil
}
