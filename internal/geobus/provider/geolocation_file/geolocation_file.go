// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geolocation_file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/wneessen/distance-provider/internal/geo"
	"github.com/wneessen/distance-provider/internal/geobus"
	"github.com/wneessen/distance-provider/internal/job"
)

const (
	name = "geolocation_file"
	// Accuracy is the accuracy of a position read from the geolocation file. The user wrote it down,
	// so we consider it the most accurate data available.
	Accuracy = 5
)

var ErrNoCoordinates = errors.New("no valid coordinates found in geolocation file")

// GeolocationFileProvider reads the device position from a file and emits updates via a stream.
// The file holds a single "lat,lon" line; empty lines and lines starting with # are skipped.
type GeolocationFileProvider struct {
	name     string
	path     string
	period   time.Duration
	ttl      time.Duration
	locateFn func() (geo.Coordinate, error)
}

// NewGeolocationFileProvider initializes a GeolocationFileProvider with a file path and default update
// interval and TTL settings.
func NewGeolocationFileProvider(path string) *GeolocationFileProvider {
	provider := &GeolocationFileProvider{
		name:   name,
		path:   path,
		period: time.Minute * 2,
		ttl:    time.Hour * 1,
	}
	provider.locateFn = provider.readFile
	return provider
}

// Name returns the name of the GeolocationFileProvider instance.
func (p *GeolocationFileProvider) Name() string {
	return p.name
}

// LookupStream reads the geolocation file right away and then once per period. A position is
// emitted when it changed, a broken or missing file is emitted as a failure.
func (p *GeolocationFileProvider) LookupStream(ctx context.Context, key string) <-chan geobus.Result {
	out := make(chan geobus.Result)
	state := geobus.GeolocationState{}
	lookup := job.New(p.period, func(ctx context.Context) {
		coord, err := p.locateFn()
		if err != nil {
			p.send(ctx, out, geobus.Result{Key: key, Source: p.name, At: time.Now(), Err: err})
			return
		}
		pos := geobus.Position{Coordinate: coord, Acc: Accuracy}
		if !state.HasChanged(pos) {
			return
		}
		state.Update(pos)
		p.send(ctx, out, p.createResult(key, pos))
	}, job.WithImmediateStart())

	go func() {
		defer close(out)
		lookup.Start(ctx)
	}()
	return out
}

func (p *GeolocationFileProvider) send(ctx context.Context, out chan<- geobus.Result, r geobus.Result) {
	select {
	case <-ctx.Done():
	case out <- r:
	}
}

// createResult composes and returns a Result using provided geolocation data and metadata.
func (p *GeolocationFileProvider) createResult(key string, pos geobus.Position) geobus.Result {
	return geobus.Result{
		Key:            key,
		Coordinate:     pos.Coordinate,
		AccuracyMeters: pos.Acc,
		Source:         p.name,
		At:             time.Now(),
		TTL:            p.ttl,
	}
}

// readFile returns the first valid coordinate of the file at the configured path.
func (p *GeolocationFileProvider) readFile() (geo.Coordinate, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("failed to read geolocation file %q: %w", p.path, err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lat, lon, ok := strings.Cut(line, ",")
		if !ok {
			continue
		}
		coord := geo.Coordinate{}
		if coord.Lat, err = strconv.ParseFloat(strings.TrimSpace(lat), 64); err != nil {
			continue
		}
		if coord.Lon, err = strconv.ParseFloat(strings.TrimSpace(lon), 64); err != nil {
			continue
		}
		if !coord.Valid() {
			continue
		}
		return coord, nil
	}
	return geo.Coordinate{}, fmt.Errorf("%w: %s", ErrNoCoordinates, p.path)
}
