// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/wneessen/distance-provider/internal/geobus"
	"github.com/wneessen/distance-provider/internal/geobus/provider/geoapi"
	"github.com/wneessen/distance-provider/internal/geobus/provider/geolocation_file"
	"github.com/wneessen/distance-provider/internal/geobus/provider/gpsd"
	"github.com/wneessen/distance-provider/internal/geobus/provider/ichnaea"
	"github.com/wneessen/distance-provider/internal/geocode"
	nominatim "github.com/wneessen/distance-provider/internal/geocode/provider/osm-nominatim"
	"github.com/wneessen/distance-provider/internal/http"
	"github.com/wneessen/distance-provider/internal/logger"
)

const (
	cacheHitTTL  = 24 * time.Hour
	cacheMissTTL = 15 * time.Minute
)

// ErrNoProviders is returned when every geolocation provider is disabled or failed to initialize.
var ErrNoProviders = errors.New("no geolocation providers enabled")

func (s *Service) selectGeobusProviders() ([]geobus.Provider, error) {
	httpClient := http.New(s.logger)
	var provider []geobus.Provider

	if !s.config.GeoLocation.DisableGeolocationFile {
		provider = append(provider, geolocation_file.NewGeolocationFileProvider(s.config.GeoLocation.File))
	}

	if !s.config.GeoLocation.DisableGPSD {
		provider = append(provider, gpsd.NewGeolocationGPSDProvider(s.config.GeoLocation.GPSDHost,
			s.config.GeoLocation.GPSDPort))
	}

	if !s.config.GeoLocation.DisableICHNAEA {
		mls, err := ichnaea.NewGeolocationICHNAEAProvider(httpClient)
		if err != nil {
			s.logger.Error("failed to create ICHNAEA provider", logger.Err(err))
		} else {
			provider = append(provider, mls)
		}
	}
	if !s.config.GeoLocation.DisableGeoAPI {
		gap, err := geoapi.NewGeolocationGeoAPIProvider(httpClient)
		if err != nil {
			return nil, fmt.Errorf("failed to create GeoAPI provider: %w", err)
		}
		provider = append(provider, gap)
	}
	if len(provider) == 0 {
		return nil, ErrNoProviders
	}

	return provider, nil
}

func (s *Service) selectGeocodeProvider() geocode.Geocoder {
	return geocode.NewCachedGeocoder(nominatim.New(http.New(s.logger), s.t.Language()), cacheHitTTL, cacheMissTTL)
}

// providerNames returns the names of the given providers for logging.
func providerNames(providers []geobus.Provider) []string {
	names := make([]string, 0, len(providers))
	for _, p := range providers {
		names = append(names, p.Name())
	}
	return names
}
