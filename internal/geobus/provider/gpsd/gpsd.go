// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package gpsd

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/stratoberry/go-gpsd"

	"github.com/wneessen/distance-provider/internal/geo"
	"github.com/wneessen/distance-provider/internal/geobus"
	"github.com/wneessen/distance-provider/internal/gpspoll"
)

const (
	name        = "gpsd"
	DefaultHost = "localhost"
	DefaultPort = "2947"
)

// GeolocationGPSDProvider follows the position reported by a local gpsd. The first fix is polled
// right away, after that a gpsd watch session streams every TPV report.
type GeolocationGPSDProvider struct {
	name     string
	addr     string
	period   time.Duration
	ttl      time.Duration
	locateFn func(ctx context.Context) (gpspoll.Fix, error)
	watchFn  func(ctx context.Context, emit func(gpspoll.Fix)) error
}

func NewGeolocationGPSDProvider(host, port string) *GeolocationGPSDProvider {
	if host == "" {
		host = DefaultHost
	}
	if port == "" {
		port = DefaultPort
	}
	provider := &GeolocationGPSDProvider{
		name:   name,
		addr:   net.JoinHostPort(host, port),
		period: time.Second * 30,
		ttl:    time.Minute * 2,
	}
	provider.locateFn = gpspoll.New(host, port).Poll
	provider.watchFn = provider.watch
	return provider
}

func (p *GeolocationGPSDProvider) Name() string {
	return p.name
}

func (p *GeolocationGPSDProvider) LookupStream(ctx context.Context, key string) <-chan geobus.Result {
	out := make(chan geobus.Result)

	go func() {
		defer close(out)
		state := geobus.GeolocationState{}

		send := func(res geobus.Result) bool {
			select {
			case <-ctx.Done():
				return false
			case out <- res:
				return true
			}
		}
		emit := func(fix gpspoll.Fix) {
			if !fix.Has2DFix() {
				return
			}
			pos := geobus.Position{
				Coordinate: geo.Coordinate{
					Lat: geo.Truncate(fix.Lat, geobus.TruncPrecision),
					Lon: geo.Truncate(fix.Lon, geobus.TruncPrecision),
				},
				Acc: geo.Truncate(fix.Acc, geobus.TruncPrecision),
			}
			if !state.HasChanged(pos) {
				return
			}
			state.Update(pos)
			send(p.createResult(key, pos))
		}

		// Initial fix
		for {
			fix, err := p.locateFn(ctx)
			if err != nil {
				if !send(p.createFailure(key, fmt.Errorf("failed to poll gpsd at %q: %w", p.addr, err))) {
					return
				}
			}
			if err == nil && fix.Has2DFix() {
				emit(fix)
				break
			}
			if !sleep(ctx, p.period) {
				return
			}
		}

		for {
			if err := p.watchFn(ctx, emit); err != nil {
				if !send(p.createFailure(key, err)) {
					return
				}
			}
			if !sleep(ctx, p.period) {
				return
			}
		}
	}()

	return out
}

// watch streams TPV reports of a gpsd watch session to emit until the session ends or ctx is
// canceled. go-gpsd has no way to close a session, it is torn down with the process.
func (p *GeolocationGPSDProvider) watch(ctx context.Context, emit func(gpspoll.Fix)) error {
	session, err := gpsd.Dial(p.addr)
	if err != nil {
		return fmt.Errorf("failed to connect to gpsd at %q: %w", p.addr, err)
	}

	session.AddFilter("TPV", func(r interface{}) {
		tpv, ok := r.(*gpsd.TPVReport)
		if !ok {
			return
		}
		mode := int(tpv.Mode)
		emit(gpspoll.Fix{
			Lat:  tpv.Lat,
			Lon:  tpv.Lon,
			Alt:  tpv.Alt,
			Acc:  gpspoll.HorizontalAccuracy(mode, 0, tpv.Epx, tpv.Epy),
			Mode: mode,
		})
	})

	done := session.Watch()
	select {
	case <-ctx.Done():
		return nil
	case <-done:
		return fmt.Errorf("gpsd watch session at %q ended", p.addr)
	}
}

// createResult composes and returns a Result using provided geolocation data and metadata.
func (p *GeolocationGPSDProvider) createResult(key string, pos geobus.Position) geobus.Result {
	return geobus.Result{
		Key:            key,
		Coordinate:     pos.Coordinate,
		AccuracyMeters: pos.Acc,
		Source:         p.name,
		At:             time.Now(),
		TTL:            p.ttl,
	}
}

func (p *GeolocationGPSDProvider) createFailure(key string, err error) geobus.Result {
	return geobus.Result{
		Key:    key,
		Source: p.name,
		At:     time.Now(),
		Err:    err,
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
