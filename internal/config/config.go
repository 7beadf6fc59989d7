// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kkyr/fig"

	"github.com/wneessen/distance-provider/internal/store"
)

const (
	configEnv         = "DISTANCEPROVIDER"
	DefaultTextTpl    = `{{if .Selected}}{{.Selected.Name}} {{.Selected.Description}}{{else}}{{len .Rows}} {{loc "people"}}{{end}}`
	DefaultTooltipTpl = "{{range .Rows}}{{pad .Name 12}} {{.Description}}\n{{end}}" +
		"{{loc \"Location\"}}: {{if .Address.AddressFound}}{{.Address.Short}}{{else}}{{loc \"unknown\"}}{{end}}\n" +
		"{{loc \"Updated\"}}: {{timeFormat .UpdateTime \"15:04:05\"}}"
)

// Config represents the application's configuration structure.
type Config struct {
	Locale   string     `fig:"locale"`
	LogLevel slog.Level `fig:"loglevel" default:"0"`
	// Path to a JSON person list. The bundled list is used when empty.
	Dataset string `fig:"dataset"`

	Intervals struct {
		Update time.Duration `fig:"update" default:"3s"`
		Output time.Duration `fig:"output" default:"30s"`
	} `fig:"intervals"`

	Store struct {
		MaxDelta float64 `fig:"max_delta" default:"5"`
		// Allowed values: per-entity, per-tick
		SelectedDrift string `fig:"selected_drift" default:"per-entity"`
		// Allowed values: unbounded, clamp, wrap
		Bounds string `fig:"bounds" default:"unbounded"`
		// Send one change notification per person on every update instead of one per update
		DisableCoalesce bool `fig:"disable_coalesce"`
	} `fig:"store"`

	Templates struct {
		Text    string `fig:"text"`
		Tooltip string `fig:"tooltip"`
	} `fig:"templates"`

	Control struct {
		// Named pipe selection commands are read from. Stdin is used when empty.
		FIFO string `fig:"fifo"`
	} `fig:"control"`

	GeoLocation struct {
		File                   string `fig:"file"`
		GPSDHost               string `fig:"gpsd_host" default:"localhost"`
		GPSDPort               string `fig:"gpsd_port" default:"2947"`
		DisableGPSD            bool   `fig:"disable_gpsd"`
		DisableGeolocationFile bool   `fig:"disable_geolocation_file"`
		DisableICHNAEA         bool   `fig:"disable_ichnaea"`
		DisableGeoAPI          bool   `fig:"disable_geoapi"`
	} `fig:"geolocation"`

	Geocoder struct {
		Disable bool `fig:"disable"`
	} `fig:"geocoder"`
}

func NewFromFile(path, file string) (*Config, error) {
	conf := new(Config)
	_, err := os.Stat(filepath.Join(path, file))
	if err != nil {
		return conf, fmt.Errorf("failed to read Config: %w", err)
	}
	if err = fig.Load(conf, fig.Dirs(path), fig.File(file), fig.UseEnv(configEnv)); err != nil {
		return conf, fmt.Errorf("failed to load Config: %w", err)
	}

	return conf, conf.Validate()
}

func New() (*Config, error) {
	conf := new(Config)
	if err := fig.Load(conf, fig.AllowNoFile(), fig.UseEnv(configEnv)); err != nil {
		return conf, fmt.Errorf("failed to load Config: %w", err)
	}

	return conf, conf.Validate()
}

func (c *Config) Validate() error {
	if c.Locale == "" {
		c.Locale = getLocale()
	}
	if c.Intervals.Update <= 0 {
		return fmt.Errorf("invalid update interval: %s", c.Intervals.Update)
	}
	if c.Intervals.Output <= 0 {
		return fmt.Errorf("invalid output interval: %s", c.Intervals.Output)
	}
	if c.Store.MaxDelta <= 0 {
		return fmt.Errorf("invalid max delta: %g", c.Store.MaxDelta)
	}
	switch store.DriftPolicy(c.Store.SelectedDrift) {
	case store.DriftPerEntity, store.DriftPerTick:
	default:
		return fmt.Errorf("invalid selected drift policy: %s", c.Store.SelectedDrift)
	}
	switch store.BoundsPolicy(c.Store.Bounds) {
	case store.BoundsUnbounded, store.BoundsClamp, store.BoundsWrap:
	default:
		return fmt.Errorf("invalid bounds policy: %s", c.Store.Bounds)
	}
	if c.GeoLocation.DisableGPSD && c.GeoLocation.DisableGeolocationFile && c.GeoLocation.DisableICHNAEA &&
		c.GeoLocation.DisableGeoAPI {
		return errors.New("all geolocation providers are disabled")
	}
	if c.Templates.Text == "" {
		c.Templates.Text = DefaultTextTpl
	}
	if c.Templates.Tooltip == "" {
		c.Templates.Tooltip = DefaultTooltipTpl
	}
	if c.GeoLocation.File == "" {
		home, _ := os.UserHomeDir()
		c.GeoLocation.File = filepath.Join(home, ".config", "distance-provider", "geolocation")
	}

	return nil
}

// StoreOptions returns the person store settings of the configuration.
func (c *Config) StoreOptions() store.Options {
	return store.Options{
		MaxDelta:      c.Store.MaxDelta,
		SelectedDrift: store.DriftPolicy(c.Store.SelectedDrift),
		Bounds:        store.BoundsPolicy(c.Store.Bounds),
		Coalesce:      !c.Store.DisableCoalesce,
	}
}

func getLocale() string {
	locale := os.Getenv("LC_MESSAGES")
	if idx := strings.Index(locale, "."); idx != -1 {
		lang := locale[:idx]
		return strings.ReplaceAll(lang, "_", "-")
	}
	return locale
}
