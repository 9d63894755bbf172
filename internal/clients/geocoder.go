package clients

import (
	"context"
	"errors"
	"fmt"

	"googlemaps.github.io/maps"
)

// Geocoder normalises free-text locations through the Google Geocoding API.
type Geocoder struct {
	client *maps.Client
}

func NewGeocoder(apiKey string, opts ...maps.ClientOption) (*Geocoder, error) {
	client, err := maps.NewClient(append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &Geocoder{client: client}, nil
}

// NormalizeLocation returns the formatted address of the best match.
func (g *Geocoder) NormalizeLocation(ctx context.Context, raw string) (string, error) {
	results, err := g.client.Geocode(ctx, &maps.GeocodingRequest{Address: raw})
	if err != nil {
		return "", fmt.Errorf("geocoding api error: %w", err)
	}
	if len(results) == 0 || results[0].FormattedAddress == "" {
		return "", errors.New("geocoding: no results")
	}
	return results[0].FormattedAddress, nil
}
