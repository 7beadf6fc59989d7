// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package geocode resolves device coordinates into postal addresses.
package geocode

import (
	"context"
	"strings"

	"github.com/wneessen/distance-provider/internal/geo"
)

// Address is the result of a reverse geocoding lookup.
type Address struct {
	AddressFound bool
	CacheHit     bool
	Coordinate   geo.Coordinate
	DisplayName  string
	Country      string
	State        string
	Municipality string
	CityDistrict string
	Postcode     string
	City         string
	Suburb       string
	Street       string
	HouseNumber  string
}

// Geocoder resolves a coordinate into an Address.
type Geocoder interface {
	Name() string
	Reverse(ctx context.Context, coord geo.Coordinate) (Address, error)
}

// Short returns "City, Country", falling back to the municipality for places without a city
// and to the full display name when neither is known.
func (a Address) Short() string {
	if !a.AddressFound {
		return ""
	}
	locality := a.City
	if locality == "" {
		locality = a.Municipality
	}
	if locality == "" {
		return a.DisplayName
	}
	parts := []string{locality}
	if a.Country != "" {
		parts = append(parts, a.Country)
	}
	return strings.Join(parts, ", ")
}
