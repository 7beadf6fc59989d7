// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geobus

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Orchestrator coordinates the tracking and publication of geolocation results from multiple
// providers through a GeoBus.
type Orchestrator struct {
	Bus       *GeoBus
	Providers []Provider
}

// Track initiates concurrent geolocation tracking for a given key across multiple providers in the Orchestrator.
func (o *Orchestrator) Track(ctx context.Context, key string) {
	var wg sync.WaitGroup
	for _, p := range o.Providers {
		wg.Add(1)
		go func(p Provider) {
			defer wg.Done()
			o.trackProvider(ctx, p, key)
		}(p)
	}
	<-ctx.Done()
	wg.Wait()
}

// trackProvider continuously tracks a Provider for geolocation data, publishing results to
// the GeoBus and implementing backoff.
func (o *Orchestrator) trackProvider(ctx context.Context, p Provider, key string) {
	backoff := initialBackoff
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		lookupChan := o.safeLookup(ctx, p, key)
		if lookupChan == nil {
			o.Bus.PublishFailure(Failure{Key: key, Source: p.Name(), Err: ErrNoStream})
			if !sleepOrDone(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff)
			continue
		}

		if !o.drain(ctx, lookupChan, &backoff) {
			return
		}
		if !sleepOrDone(ctx, backoff) {
			return
		}
		backoff = nextBackoff(backoff)
	}
}

// drain publishes every result of the stream until it is closed. It returns false if the context
// was cancelled.
func (o *Orchestrator) drain(ctx context.Context, lookupChan <-chan Result, backoff *time.Duration) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case r, ok := <-lookupChan:
			if !ok {
				return true
			}
			o.Bus.Publish(r)
			if r.Err == nil {
				*backoff = initialBackoff
			}
		}
	}
}

// safeLookup safely invokes the LookupStream method on a Provider and recovers from potential panics.
// Returns a read-only channel of Result or nil if the operation fails.
func (o *Orchestrator) safeLookup(ctx context.Context, provider Provider, key string) (ch <-chan Result) {
	defer func() {
		if r := recover(); r != nil {
			o.Bus.PublishFailure(Failure{Key: key, Source: provider.Name(), Err: fmt.Errorf("provider panicked: %v", r)})
			ch = nil
		}
	}()
	return provider.LookupStream(ctx, key)
}
