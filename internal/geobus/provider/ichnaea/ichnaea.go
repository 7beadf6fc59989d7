// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package ichnaea

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mdlayher/wifi"

	"github.com/wneessen/distance-provider/internal/geo"
	"github.com/wneessen/distance-provider/internal/geobus"
	"github.com/wneessen/distance-provider/internal/http"
	"github.com/wneessen/distance-provider/internal/job"
)

const (
	apiEndpoint   = "https://api.beacondb.net/v1/geolocate"
	lookupTimeout = time.Second * 5
	wifiScanTime  = time.Minute * 2
	name          = "ichnaea"
)

// GeolocationICHNAEAProvider locates the device with an ichnaea compatible geolocation API
// (beacondb), based on the wifi access points in range.
type GeolocationICHNAEAProvider struct {
	name     string
	http     *http.Client
	period   time.Duration
	ttl      time.Duration
	scanFn   func() ([]WirelessNetwork, error)
	locateFn func(ctx context.Context) (geobus.Position, error)

	apLock sync.RWMutex
	aps    []WirelessNetwork
}

type APIResult struct {
	Location struct {
		Latitude  float64 `json:"lat"`
		Longitude float64 `json:"lng"`
	} `json:"location"`
	Accuracy float64 `json:"accuracy"`
}

type WirelessNetwork struct {
	LastSeen       int64  `json:"age"`
	MACAddress     string `json:"macAddress"`
	SignalStrength int32  `json:"signalStrength"`
}

func NewGeolocationICHNAEAProvider(http *http.Client) (*GeolocationICHNAEAProvider, error) {
	if http == nil {
		return nil, errors.New("http client is required")
	}
	wlan, err := wifi.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create wifi client: %w", err)
	}
	return newProvider(http, func() ([]WirelessNetwork, error) {
		return wifiAccessPoints(wlan)
	}), nil
}

func newProvider(http *http.Client, scan func() ([]WirelessNetwork, error)) *GeolocationICHNAEAProvider {
	provider := &GeolocationICHNAEAProvider{
		name:   name,
		http:   http,
		period: time.Minute * 5,
		ttl:    time.Hour * 1,
		scanFn: scan,
	}
	provider.locateFn = provider.locate
	return provider
}

func (p *GeolocationICHNAEAProvider) Name() string {
	return p.name
}

// LookupStream scans for wifi access points in the background and queries the geolocation API
// right away and then once per period.
func (p *GeolocationICHNAEAProvider) LookupStream(ctx context.Context, key string) <-chan geobus.Result {
	out := make(chan geobus.Result)
	state := geobus.GeolocationState{}

	scan := job.New(wifiScanTime, p.refreshAccessPoints, job.WithImmediateStart())
	lookup := job.New(p.period, func(ctx context.Context) {
		pos, err := p.locateFn(ctx)
		if err != nil {
			p.send(ctx, out, geobus.Result{Key: key, Source: p.name, At: time.Now(), Err: err})
			return
		}
		if !state.HasChanged(pos) {
			return
		}
		state.Update(pos)
		p.send(ctx, out, p.createResult(key, pos))
	}, job.WithImmediateStart())

	go scan.Start(ctx)
	go func() {
		defer close(out)
		lookup.Start(ctx)
	}()
	return out
}

func (p *GeolocationICHNAEAProvider) send(ctx context.Context, out chan<- geobus.Result, r geobus.Result) {
	select {
	case <-ctx.Done():
	case out <- r:
	}
}

// createResult composes and returns a Result using provided geolocation data and metadata.
func (p *GeolocationICHNAEAProvider) createResult(key string, pos geobus.Position) geobus.Result {
	return geobus.Result{
		Key:            key,
		Coordinate:     pos.Coordinate,
		AccuracyMeters: pos.Acc,
		Source:         p.name,
		At:             time.Now(),
		TTL:            p.ttl,
	}
}

// refreshAccessPoints replaces the known access points. A failed scan keeps the previous list.
func (p *GeolocationICHNAEAProvider) refreshAccessPoints(context.Context) {
	list, err := p.scanFn()
	if err != nil {
		return
	}
	p.apLock.Lock()
	p.aps = list
	p.apLock.Unlock()
}

func wifiAccessPoints(wlan *wifi.Client) ([]WirelessNetwork, error) {
	var list []WirelessNetwork

	ifaces, err := wlan.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to list interfaces: %w", err)
	}
	for _, iface := range ifaces {
		if iface.Type != wifi.InterfaceTypeStation {
			continue
		}
		aps, err := wlan.AccessPoints(iface)
		if err != nil {
			continue
		}
		for _, ap := range aps {
			// networks ending in _nomap opted out of geolocation services
			if ap.SSID == "" || ap.SSID[0] == '\x00' || strings.HasSuffix(ap.SSID, "_nomap") {
				continue
			}
			list = append(list, WirelessNetwork{
				SignalStrength: ap.Signal / 100,
				MACAddress:     ap.BSSID.String(),
				LastSeen:       ap.LastSeen.Milliseconds(),
			})
		}
	}

	return list, nil
}

func (p *GeolocationICHNAEAProvider) locate(ctx context.Context) (geobus.Position, error) {
	p.apLock.RLock()
	wifiList := p.aps
	p.apLock.RUnlock()

	type request struct {
		ConsiderIP   bool              `json:"considerIp"`
		Accesspoints []WirelessNetwork `json:"wifiAccessPoints,omitempty"`
	}
	req := request{
		ConsiderIP:   true,
		Accesspoints: wifiList,
	}
	bodyBuffer := bytes.NewBuffer(nil)
	if err := json.NewEncoder(bodyBuffer).Encode(req); err != nil {
		return geobus.Position{}, fmt.Errorf("failed to encode wifi list to JSON: %w", err)
	}

	ctxHttp, cancelHttp := context.WithTimeout(ctx, lookupTimeout)
	defer cancelHttp()
	result := new(APIResult)
	if _, err := p.http.Post(ctxHttp, apiEndpoint, result, bodyBuffer,
		map[string]string{"Content-Type": "application/json"}); err != nil {
		return geobus.Position{}, fmt.Errorf("failed to get geolocation data from API: %w", err)
	}

	return geobus.Position{
		Coordinate: geo.Coordinate{
			Lat: geo.Truncate(result.Location.Latitude, geobus.TruncPrecision),
			Lon: geo.Truncate(result.Location.Longitude, geobus.TruncPrecision),
		},
		Acc: geo.Truncate(result.Accuracy, geobus.TruncPrecision),
	}, nil
}
