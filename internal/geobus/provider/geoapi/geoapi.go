// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package geoapi locates the device by its public IP address. The result is coarse and only
// serves as a fallback when no better source is available.
package geoapi

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/wneessen/distance-provider/internal/geo"
	"github.com/wneessen/distance-provider/internal/geobus"
	"github.com/wneessen/distance-provider/internal/http"
	"github.com/wneessen/distance-provider/internal/job"
)

const (
	apiEndpoint   = "https://geoapi.info/api/geo"
	lookupTimeout = time.Second * 5
	name          = "geoapi"
)

type GeolocationGeoAPIProvider struct {
	name     string
	http     *http.Client
	period   time.Duration
	ttl      time.Duration
	locateFn func(ctx context.Context) (geobus.Position, error)
}

type APIResult struct {
	IP       string `json:"ip"`
	Location struct {
		CountryCode string `json:"country,omitempty"`
		Country     string `json:"countryName,omitempty"`
		Region      string `json:"region,omitempty"`
		City        string `json:"city,omitempty"`
		ZipCode     string `json:"postalCode,omitempty"`
		TimeZone    string `json:"timezone"`
		Coordinates struct {
			Latitude  string `json:"latitude"`
			Longitude string `json:"longitude"`
		} `json:"coordinates"`
	} `json:"location"`
}

func NewGeolocationGeoAPIProvider(http *http.Client) (*GeolocationGeoAPIProvider, error) {
	if http == nil {
		return nil, fmt.Errorf("http client is required")
	}
	provider := &GeolocationGeoAPIProvider{
		name:   name,
		http:   http,
		period: time.Minute * 10,
		ttl:    time.Hour * 2,
	}
	provider.locateFn = provider.locate
	return provider, nil
}

func (p *GeolocationGeoAPIProvider) Name() string {
	return p.name
}

// LookupStream queries the API right away and then once per period. Changed positions are
// emitted as results, failed lookups as failures.
func (p *GeolocationGeoAPIProvider) LookupStream(ctx context.Context, key string) <-chan geobus.Result {
	out := make(chan geobus.Result)
	state := geobus.GeolocationState{}
	lookup := job.New(p.period, func(ctx context.Context) {
		pos, err := p.locateFn(ctx)
		if err != nil {
			p.send(ctx, out, geobus.Result{Key: key, Source: p.name, At: time.Now(), Err: err})
			return
		}
		if !state.HasChanged(pos) {
			return
		}
		state.Update(pos)
		p.send(ctx, out, p.createResult(key, pos))
	}, job.WithImmediateStart())

	go func() {
		defer close(out)
		lookup.Start(ctx)
	}()
	return out
}

func (p *GeolocationGeoAPIProvider) send(ctx context.Context, out chan<- geobus.Result, r geobus.Result) {
	select {
	case <-ctx.Done():
	case out <- r:
	}
}

// createResult composes and returns a Result using provided geolocation data and metadata.
func (p *GeolocationGeoAPIProvider) createResult(key string, pos geobus.Position) geobus.Result {
	return geobus.Result{
		Key:            key,
		Coordinate:     pos.Coordinate,
		AccuracyMeters: pos.Acc,
		Source:         p.name,
		At:             time.Now(),
		TTL:            p.ttl,
	}
}

// locate resolves the public IP address of the device. The accuracy is derived from the most
// precise address part the API knows.
func (p *GeolocationGeoAPIProvider) locate(ctx context.Context) (geobus.Position, error) {
	ctxHttp, cancelHttp := context.WithTimeout(ctx, lookupTimeout)
	defer cancelHttp()

	result := new(APIResult)
	if _, err := p.http.Get(ctxHttp, apiEndpoint, result, nil, nil); err != nil {
		return geobus.Position{}, fmt.Errorf("failed to get geolocation data from API: %w", err)
	}

	acc := float64(geobus.AccuracyUnknown)
	switch {
	case result.Location.ZipCode != "":
		acc = geobus.AccuracyZip
	case result.Location.City != "":
		acc = geobus.AccuracyCity
	case result.Location.Region != "":
		acc = geobus.AccuracyRegion
	case result.Location.CountryCode != "":
		acc = geobus.AccuracyCountry
	}

	lat, err := strconv.ParseFloat(result.Location.Coordinates.Latitude, 64)
	if err != nil {
		return geobus.Position{}, fmt.Errorf("failed to parse latitude from API response: %w", err)
	}
	lon, err := strconv.ParseFloat(result.Location.Coordinates.Longitude, 64)
	if err != nil {
		return geobus.Position{}, fmt.Errorf("failed to parse longitude from API response: %w", err)
	}
	coord := geo.Coordinate{
		Lat: geo.Truncate(lat, geobus.TruncPrecision),
		Lon: geo.Truncate(lon, geobus.TruncPrecision),
	}
	if !coord.Valid() {
		return geobus.Position{}, fmt.Errorf("API returned invalid coordinates: %s", coord)
	}

	return geobus.Position{Coordinate: coord, Acc: acc}, nil
}
