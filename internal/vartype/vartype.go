// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package vartype holds optional values, such as a device location that has not been reported
// yet or a distance that only exists while a person is selected.
package vartype

import (
	"fmt"

	"github.com/wneessen/distance-provider/internal/geo"
)

type (
	// VarCoordinate is a coordinate that may not be known yet.
	VarCoordinate = Variable[geo.Coordinate]

	// VarFloat64 is a float64 that may be absent.
	VarFloat64 = Variable[float64]
)

// Variable is a value of type T with a flag telling whether it was ever set. The zero value is unset.
type Variable[T any] struct {
	value T
	isset bool
}

// Get returns the value and whether it has been set.
func (v *Variable[T]) Get() (T, bool) {
	return v.value, v.isset
}

// Set stores val and marks the variable as set.
func (v *Variable[T]) Set(val T) {
	v.value = val
	v.isset = true
}

// String implements the fmt.Stringer interface. Unset variables read "not available".
func (v Variable[T]) String() string {
	if !v.isset {
		return "not available"
	}
	return fmt.Sprint(v.value)
}
