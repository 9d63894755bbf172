package clients_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/agentoven/concierge/internal/clients"
	"github.com/agentoven/concierge/internal/config"
	"github.com/agentoven/concierge/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestNew_OnlyConfiguredCollaborators(t *testing.T) {
	c, err := clients.New(config.CollaboratorsConfig{IntentURL: "http://intent.local"}, nil)
	require.NoError(t, err)

	assert.NotNil(t, c.Intent)
	assert.NotNil(t, c.Manifests)
	assert.Nil(t, c.Discovery)
	assert.Nil(t, c.Weather)
	assert.Nil(t, c.Orders)
	assert.Nil(t, c.Geocoder)
}

func TestIntentClient_PostsRequest(t *testing.T) {
	var got models.IntentRequest
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/resolve", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, models.Intent{IntentType: models.IntentDiscoverComposite, ExperienceName: "date night"})
	})
	c, err := clients.New(config.CollaboratorsConfig{IntentURL: srv.URL + "/"}, srv.Client())
	require.NoError(t, err)

	intent, err := c.Intent.ResolveIntent(context.Background(), models.IntentRequest{Text: "plan a date night", ProbeCount: 1})

	require.NoError(t, err)
	assert.Equal(t, "date night", intent.ExperienceName)
	assert.Equal(t, "plan a date night", got.Text)
	assert.Equal(t, 1, got.ProbeCount)
}

func TestDiscoveryClient_SignsBody(t *testing.T) {
	const secret = "s3cret"
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(body)
		assert.Equal(t, "sha256="+hex.EncodeToString(mac.Sum(nil)), r.Header.Get("X-Concierge-Signature"))

		var q models.DiscoveryQuery
		assert.NoError(t, json.Unmarshal(body, &q))
		assert.Equal(t, "bloom", q.ExcludePartnerID)
		writeJSON(w, models.DiscoveryResult{Products: []models.Product{{ID: "d2", Name: "Trattoria", Price: 90}}})
	})
	c, err := clients.New(config.CollaboratorsConfig{DiscoveryURL: srv.URL, SigningSecret: secret}, srv.Client())
	require.NoError(t, err)

	res, err := c.Discovery.DiscoverProducts(context.Background(), models.DiscoveryQuery{Query: "dinner", Limit: 5, ExcludePartnerID: "bloom"})

	require.NoError(t, err)
	require.Len(t, res.Products, 1)
	assert.Equal(t, "d2", res.Products[0].ID)
}

func TestWeatherClient_ErrorEnvelope(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Brooklyn", r.URL.Query().Get("location"))
		writeJSON(w, map[string]string{"error": "unknown location"})
	})
	c, err := clients.New(config.CollaboratorsConfig{WeatherURL: srv.URL}, srv.Client())
	require.NoError(t, err)

	_, err = c.Weather.GetWeather(context.Background(), "Brooklyn")

	var se *clients.ServiceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "unknown location", se.Message)
}

func TestOccasionsClient_HTTPError(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})
	c, err := clients.New(config.CollaboratorsConfig{OccasionsURL: srv.URL}, srv.Client())
	require.NoError(t, err)

	_, err = c.Occasions.GetUpcomingOccasions(context.Background(), "Brooklyn", 5)

	var he *clients.HTTPError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, http.StatusBadGateway, he.Status)
	assert.Equal(t, "occasions", he.Service)
}

func TestSearchClient_Timeout(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	c, err := clients.New(config.CollaboratorsConfig{SearchURL: srv.URL, AuxTimeout: 50 * time.Millisecond}, srv.Client())
	require.NoError(t, err)

	start := time.Now()
	_, err = c.Search.WebSearch(context.Background(), "picnic spots", 3)

	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestOrderClient_EscapesID(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders/ord%2F42", r.URL.EscapedPath())
		writeJSON(w, models.OrderStatus{Status: "shipped", PaymentStatus: "paid"})
	})
	c, err := clients.New(config.CollaboratorsConfig{OrdersURL: srv.URL}, srv.Client())
	require.NoError(t, err)

	st, err := c.Orders.TrackOrder(context.Background(), "ord/42")

	require.NoError(t, err)
	assert.Equal(t, "ord/42", st.OrderID)
	assert.Equal(t, "shipped", st.Status)
}

func TestOrchestrationClient_RequiresInstanceID(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{})
	})
	c, err := clients.New(config.CollaboratorsConfig{OrchestrationURL: srv.URL}, srv.Client())
	require.NoError(t, err)

	_, err = c.Orchestrator.StartOrchestration(context.Background(), "buy flowers when approved", "user_approval")
	assert.Error(t, err)
}

func TestManifestClient(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"name": "Bloom & Co", "version": "1.0"})
	})
	c, err := clients.New(config.CollaboratorsConfig{}, srv.Client())
	require.NoError(t, err)

	m, err := c.Manifests.FetchManifest(context.Background(), srv.URL+"/.well-known/ucp")
	require.NoError(t, err)
	assert.Equal(t, "Bloom & Co", m["name"])

	_, err = c.Manifests.FetchManifest(context.Background(), "file:///etc/passwd")
	assert.Error(t, err)
}
