// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package presenter

import (
	"fmt"
	"math"
	"strings"
	"text/template"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/nathan-osman/go-sunrise"

	"github.com/wneessen/distance-provider/internal/geo"
)

func (p *Presenter) templateFuncMap() template.FuncMap {
	return template.FuncMap{
		"timeFormat":  p.timeFormat,
		"floatFormat": p.floatFormat,
		"loc":         p.loc,
		"since":       p.since,
		"pad":         pad,
		"distance":    geo.FormatDistance,
		"lc":          strings.ToLower,
		"uc":          strings.ToUpper,
	}
}

func (p *Presenter) loc(val string) string {
	if raw, ok := i18nVars[strings.ToLower(val)]; ok {
		return p.localizer.Get(raw)
	}
	return val
}

// since renders the time span between val and now in natural language, e.g. "3 minutes ago".
func (p *Presenter) since(val time.Time) string {
	if val.IsZero() {
		return p.loc("unknown")
	}
	return p.humanizer.NaturalTime(val)
}

func (p *Presenter) timeFormat(val time.Time, fmt string) string {
	return val.Format(fmt)
}

func (p *Presenter) floatFormat(val float64, precision int) string {
	pow := math.Pow(10, float64(precision))
	return fmt.Sprintf("%.*f", precision, math.Trunc(val*pow)/pow)
}

// pad fills val with spaces up to width terminal cells, so emoji and CJK names line up in the
// tooltip columns.
func pad(val string, width int) string {
	return runewidth.FillRight(val, width)
}

// isDaytime reports whether the sun is up at coord at the given time. Locations in polar day or
// night have no sunrise and count as night.
func isDaytime(coord geo.Coordinate, at time.Time) bool {
	if !coord.Valid() {
		return false
	}
	at = at.UTC()
	rise, set := sunrise.SunriseSunset(coord.Lat, coord.Lon, at.Year(), at.Month(), at.Day())
	if rise.IsZero() || set.IsZero() {
		return false
	}
	return at.After(rise) && at.Before(set)
}
