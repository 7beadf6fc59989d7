// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package presenter

import "github.com/vorlif/spreak/localize"

// i18nVars maps the lower-case keys accepted by the loc template function to their message IDs.
var i18nVars = map[string]localize.MsgID{
	"people":          "people",
	"location":        "Location",
	"updated":         "Updated",
	"unknown":         "unknown",
	"error":           "Error",
	"selected":        "Selected",
	"nobody selected": "Nobody selected",
}

// Output classes waybar applies as CSS classes to the module.
const (
	ClassModule   = "distance-provider"
	ClassSelected = "selected"
	ClassError    = "error"
)

// Alt texts for waybar format-icons.
const (
	AltList     = "list"
	AltSelected = "selected"
	AltError    = "error"
)
