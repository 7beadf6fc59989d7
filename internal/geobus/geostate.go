// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geobus

// GeolocationState tracks the last position a provider emitted, so providers only publish
// positions that actually changed.
type GeolocationState struct {
	last     Position
	haveLast bool
}

// HasChanged reports whether pos differs from the last stored position. Accuracy changes alone
// are not considered a change.
func (s *GeolocationState) HasChanged(pos Position) bool {
	if !s.haveLast {
		return true
	}
	return s.last.Coordinate != pos.Coordinate
}

// Update stores pos as the last known position.
func (s *GeolocationState) Update(pos Position) {
	s.last = pos
	s.haveLast = true
}
