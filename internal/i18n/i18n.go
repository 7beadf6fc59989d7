// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package i18n

import (
	"embed"
	"fmt"
	"io/fs"

	"github.com/Xuanwo/go-locale"
	"github.com/vorlif/spreak"
	"golang.org/x/text/language"
)

//go:embed locale/*
var locales embed.FS

// New returns a localizer for loc. An empty loc is detected from the environment. Messages
// without a translation are returned in English.
func New(loc string) (*spreak.Localizer, error) {
	tag, err := Tag(loc)
	if err != nil {
		return nil, err
	}

	localeFS, err := fs.Sub(locales, "locale")
	if err != nil {
		return nil, fmt.Errorf("failed to load locales: %w", err)
	}

	bundle, err := spreak.NewBundle(
		spreak.WithSourceLanguage(language.English),
		spreak.WithFallbackLanguage(language.English),
		spreak.WithDomainFs(spreak.NoDomain, localeFS),
		spreak.WithLanguage(tag),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create i18n bundle: %w", err)
	}
	return spreak.NewLocalizer(bundle, tag), nil
}

// Tag parses loc into a language tag. An empty loc is detected from the environment and falls
// back to English.
func Tag(loc string) (language.Tag, error) {
	if loc == "" {
		tag, err := locale.Detect()
		if err != nil {
			return language.English, nil
		}
		return tag, nil
	}
	tag, err := language.Parse(loc)
	if err != nil {
		return language.Und, fmt.Errorf("invalid locale %q: %w", loc, err)
	}
	return tag, nil
}
