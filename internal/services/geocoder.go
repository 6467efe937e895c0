package services

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"

	"reicrm/internal/config"
	"reicrm/internal/telemetry"
)

type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// Geocoder resolves a one-line address; found is false when the address has no match.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (c Coordinates, found bool, err error)
}

type censusGeocoder struct {
	client *resty.Client
	url    string
}

func NewCensusGeocoder(cfg config.EnrichmentConfig, userAgent string) Geocoder {
	client := resty.New().
		SetTimeout(cfg.RequestTimeout).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json")
	telemetry.InstrumentResty(client, "reicrm/geocoder")
	return &censusGeocoder{client: client, url: cfg.GeocoderURL}
}

type censusResponse struct {
	Result struct {
		AddressMatches []struct {
			MatchedAddress string `json:"matchedAddress"`
			Coordinates    struct {
				X float64 `json:"x"`
				Y float64 `json:"y"`
			} `json:"coordinates"`
		} `json:"addressMatches"`
	} `json:"result"`
}

func (g *censusGeocoder) Geocode(ctx context.Context, address string) (Coordinates, bool, error) {
	var body censusResponse
	res, err := g.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"address":   address,
			"benchmark": "Public_AR_Current",
			"format":    "json",
		}).
		SetResult(&body).
		Get(g.url)
	if err != nil {
		return Coordinates{}, false, fmt.Errorf("geocode: %w", err)
	}
	if res.IsError() {
		return Coordinates{}, false, fmt.Errorf("geocode: status %d", res.StatusCode())
	}
	matches := body.Result.AddressMatches
	if len(matches) == 0 {
		return Coordinates{}, false, nil
	}
	return Coordinates{Latitude: matches[0].Coordinates.Y, Longitude: matches[0].Coordinates.X}, true, nil
}
