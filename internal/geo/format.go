// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// CoordinatePrecision is the number of decimal places shown in coordinate texts.
const CoordinatePrecision = 2

// FormatDistance renders a distance in meters as "X km Y m". Both parts are truncated, not rounded.
func FormatDistance(meters float64) string {
	km := int64(meters / 1000)
	m := int64(math.Mod(meters, 1000))
	return fmt.Sprintf("%d km %d m", km, m)
}

// FormatCoordinate renders latitude and longitude as "Coordinates - (lat) - (lon)" with both values
// rounded to two decimal places.
func FormatCoordinate(lat, lon float64) string {
	return fmt.Sprintf("Coordinates - (%s) - (%s)",
		formatDecimal(Round(lat, CoordinatePrecision)),
		formatDecimal(Round(lon, CoordinatePrecision)))
}

// String implements the fmt.Stringer interface.
func (c Coordinate) String() string {
	return FormatCoordinate(c.Lat, c.Lon)
}

// Round rounds val half away from zero to the given number of decimal places. Rounding operates on
// the shortest decimal representation of val, so 1.005 rounds to 1.01 even though its binary value
// is slightly below.
func Round(val float64, places int) float64 {
	if math.IsNaN(val) || math.IsInf(val, 0) || places < 0 {
		return val
	}

	digits := strconv.FormatFloat(math.Abs(val), 'f', -1, 64)
	dot := strings.IndexByte(digits, '.')
	if dot == -1 || len(digits)-dot-1 <= places {
		return val
	}

	buf := []byte(digits[:dot] + digits[dot+1:dot+1+places])
	if digits[dot+1+places] >= '5' {
		i := len(buf) - 1
		for ; i >= 0; i-- {
			if buf[i] != '9' {
				buf[i]++
				break
			}
			buf[i] = '0'
		}
		if i < 0 {
			buf = append([]byte{'1'}, buf...)
			dot++
		}
	}

	out := string(buf[:dot])
	if dot < len(buf) {
		out += "." + string(buf[dot:])
	}
	rounded, err := strconv.ParseFloat(out, 64)
	if err != nil {
		return val
	}
	return math.Copysign(rounded, val)
}

// formatDecimal prints the shortest representation of val that keeps at least one fractional digit.
func formatDecimal(val float64) string {
	out := strconv.FormatFloat(val, 'f', -1, 64)
	if math.IsNaN(val) || math.IsInf(val, 0) || strings.ContainsRune(out, '.') {
		return out
	}
	return out + ".0"
}
