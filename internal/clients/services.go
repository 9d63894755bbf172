package clients

import (
	"context"
	"errors"
	"net/url"
	"strconv"

	"github.com/agentoven/concierge/pkg/models"
)

// ── Intent & discovery ───────────────────────────────────────

// IntentClient calls POST {base}/resolve.
type IntentClient struct{ c *jsonClient }

func (i *IntentClient) ResolveIntent(ctx context.Context, req models.IntentRequest) (*models.Intent, error) {
	var out models.Intent
	if err := i.c.post(ctx, "/resolve", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DiscoveryClient calls POST {base}/discover.
type DiscoveryClient struct{ c *jsonClient }

func (d *DiscoveryClient) DiscoverProducts(ctx context.Context, q models.DiscoveryQuery) (*models.DiscoveryResult, error) {
	var out models.DiscoveryResult
	if err := d.c.post(ctx, "/discover", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ── Auxiliary signals ────────────────────────────────────────

// WeatherClient calls GET {base}/weather?location=.
type WeatherClient struct{ c *jsonClient }

func (w *WeatherClient) GetWeather(ctx context.Context, location string) (*models.Weather, error) {
	var out models.Weather
	if err := w.c.get(ctx, "/weather", url.Values{"location": {location}}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// OccasionsClient calls GET {base}/occasions?location=&limit=.
type OccasionsClient struct{ c *jsonClient }

func (o *OccasionsClient) GetUpcomingOccasions(ctx context.Context, location string, limit int) ([]models.Occasion, error) {
	var out struct {
		Events []models.Occasion `json:"events"`
	}
	q := url.Values{"location": {location}, "limit": {strconv.Itoa(limit)}}
	if err := o.c.get(ctx, "/occasions", q, &out); err != nil {
		return nil, err
	}
	return out.Events, nil
}

// SearchClient calls GET {base}/search?q=&max_results=.
type SearchClient struct{ c *jsonClient }

func (s *SearchClient) WebSearch(ctx context.Context, query string, maxResults int) ([]models.SearchHit, error) {
	var out struct {
		Results []models.SearchHit `json:"results"`
	}
	q := url.Values{"q": {query}, "max_results": {strconv.Itoa(maxResults)}}
	if err := s.c.get(ctx, "/search", q, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// ManifestClient fetches partner commerce manifests from absolute URLs.
type ManifestClient struct{ c *jsonClient }

func (m *ManifestClient) FetchManifest(ctx context.Context, manifestURL string) (map[string]interface{}, error) {
	u, err := url.Parse(manifestURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errors.New("manifest: url must be absolute http(s)")
	}
	out := map[string]interface{}{}
	if err := m.c.do(ctx, "GET", u.String(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ── Workflows & orders ───────────────────────────────────────

// OrchestrationClient calls POST {base}/orchestrations.
type OrchestrationClient struct{ c *jsonClient }

func (o *OrchestrationClient) StartOrchestration(ctx context.Context, message, waitEventName string) (*models.OrchestrationHandle, error) {
	in := map[string]string{"message": message, "wait_event_name": waitEventName}
	var out models.OrchestrationHandle
	if err := o.c.post(ctx, "/orchestrations", in, &out); err != nil {
		return nil, err
	}
	if out.InstanceID == "" {
		return nil, errors.New("orchestration: response has no instance id")
	}
	return &out, nil
}

// StandingIntentClient calls POST {base}/standing-intents.
type StandingIntentClient struct{ c *jsonClient }

func (s *StandingIntentClient) CreateStandingIntent(ctx context.Context, req models.StandingIntentRequest) (*models.StandingIntent, error) {
	var out models.StandingIntent
	if err := s.c.post(ctx, "/standing-intents", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// OrderClient calls GET {base}/orders/{id}.
type OrderClient struct{ c *jsonClient }

func (o *OrderClient) TrackOrder(ctx context.Context, orderID string) (*models.OrderStatus, error) {
	var out models.OrderStatus
	if err := o.c.get(ctx, "/orders/"+url.PathEscape(orderID), nil, &out); err != nil {
		return nil, err
	}
	if out.OrderID == "" {
		out.OrderID = orderID
	}
	return &out, nil
}
