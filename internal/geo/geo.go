// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package geo provides the great-circle math and text formatting used for the person list.
package geo

import (
	"math"
)

// EarthRadius is the mean earth radius in meters.
const EarthRadius = 6371000.0

// Coordinate represents a geographic coordinate in degrees.
type Coordinate struct {
	Lat float64 `json:"latitude"`
	Lon float64 `json:"longitude"`
}

// ToRadians converts degrees to radians.
func ToRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Distance returns the great-circle distance in meters between a and b using the Haversine
// formula. No range validation is performed, malformed input may return NaN.
func Distance(a, b Coordinate) float64 {
	lat1 := ToRadians(a.Lat)
	lat2 := ToRadians(b.Lat)
	dLat := ToRadians(b.Lat - a.Lat)
	dLon := ToRadians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadius * c
}

// DistanceTo returns the great-circle distance in meters to other.
func (c Coordinate) DistanceTo(other Coordinate) float64 {
	return Distance(c, other)
}

// Valid checks if the coordinate is valid according to the EPSG logic
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// Clamp limits latitude and longitude to their valid ranges.
func Clamp(c Coordinate) Coordinate {
	return Coordinate{
		Lat: math.Max(-90, math.Min(90, c.Lat)),
		Lon: math.Max(-180, math.Min(180, c.Lon)),
	}
}

// Wrap folds the coordinate back onto the globe. A latitude past a pole continues on the
// opposite meridian, longitudes wrap around the antimeridian.
func Wrap(c Coordinate) Coordinate {
	lat := math.Mod(c.Lat+90, 360)
	if lat < 0 {
		lat += 360
	}
	lon := c.Lon
	if lat > 180 {
		lat = 360 - lat
		lon += 180
	}
	lat -= 90

	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return Coordinate{Lat: lat, Lon: lon - 180}
}

// Truncate cuts x after the given number of decimal places.
func Truncate(x float64, precision int) float64 {
	p := math.Pow(10, float64(precision))
	return math.Trunc(x*p) / p
}
