// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geobus

import (
	"math"

	"github.com/wneessen/distance-provider/internal/geo"
)

const (
	DistanceThreshold = 2500.0 // 2.5km
	AccuracyThreshold = 50.0
)

// Position is a coordinate together with its horizontal accuracy in meters.
type Position struct {
	geo.Coordinate
	Acc float64
}

// HasSignificantChange checks if the position differs significantly from another based on the
// distance threshold.
func (p Position) HasSignificantChange(other Position) bool {
	// Higher accuracy always trumps the distance threshold.
	if p.Acc < other.Acc && math.Abs(p.Acc-other.Acc) > AccuracyThreshold {
		return true
	}
	return p.DistanceTo(other.Coordinate) > DistanceThreshold
}
