// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geobus

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/wneessen/distance-provider/internal/geo"
	"github.com/wneessen/distance-provider/internal/logger"
)

const (
	accuracyEpsilon = 1e-6
	initialBackoff  = time.Second
	maxBackoff      = 30 * time.Second
)

const (
	AccuracyCountry = 300000
	AccuracyRegion  = 100000
	AccuracyCity    = 15000
	AccuracyZip     = 3000
	AccuracyUnknown = 1000000
	TruncPrecision  = 4
)

// ErrNoStream is reported when a provider did not return a result stream.
var ErrNoStream = errors.New("provider returned no result stream")

// Provider defines an interface for geolocation service providers.
// It supports retrieving streamed results for a given key.
type Provider interface {
	Name() string
	LookupStream(ctx context.Context, key string) <-chan Result
}

// GeoBus coordinates the publishing and subscribing of geolocation results between providers and consumers.
type GeoBus struct {
	mu          sync.RWMutex
	logger      *logger.Logger
	best        map[string]Result
	subscribers map[string]map[chan Result]struct{}
	failureSubs map[chan Failure]struct{}
}

// Result represents a geolocation result with associated metadata. A result with Err set
// reports a failed lookup and carries no position.
type Result struct {
	Key            string
	Coordinate     geo.Coordinate
	AccuracyMeters float64
	Source         string
	At             time.Time
	TTL            time.Duration
	Err            error
}

// Failure is a failed location lookup of a provider.
type Failure struct {
	Key    string
	Source string
	Err    error
	At     time.Time
}

// BetterThan compares two Result objects to determine if the current instance is better than the provided one.
// Returns true if the current Result is more accurate and not older than the other.
func (r Result) BetterThan(prev Result) bool {
	if prev.Key == "" {
		return true
	}
	if r.At.Before(prev.At) {
		return false
	}
	if r.AccuracyMeters < prev.AccuracyMeters-accuracyEpsilon {
		return true
	}
	return false
}

// IsExpired checks if the Result has exceeded its time-to-live (TTL) based on the current time and the timestamp.
func (r Result) IsExpired() bool {
	return r.TTL > 0 && time.Since(r.At) > r.TTL
}

// Position returns the coordinate and accuracy of the result.
func (r Result) Position() Position {
	return Position{Coordinate: r.Coordinate, Acc: r.AccuracyMeters}
}

// New initializes and returns a new instance of GeoBus to handle geolocation result coordination.
func New(logger *logger.Logger) (*GeoBus, error) {
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	return &GeoBus{
		logger:      logger,
		best:        make(map[string]Result),
		subscribers: make(map[string]map[chan Result]struct{}),
		failureSubs: make(map[chan Failure]struct{}),
	}, nil
}

func (b *GeoBus) NewOrchestrator(provider []Provider) *Orchestrator {
	return &Orchestrator{
		Bus:       b,
		Providers: provider,
	}
}

// Subscribe adds a subscriber for updates associated with the given key and buffer size, returning a result
// channel and an unsubscribe function.
func (b *GeoBus) Subscribe(key string, size int) (<-chan Result, func()) {
	resultChan := make(chan Result, size)
	b.mu.Lock()
	if _, ok := b.subscribers[key]; !ok {
		b.subscribers[key] = make(map[chan Result]struct{})
	}

	b.subscribers[key][resultChan] = struct{}{}
	if best, ok := b.best[key]; ok && !best.IsExpired() {
		select {
		case resultChan <- best:
		default:
		}
	}
	b.mu.Unlock()

	unsub := func() {
		b.mu.Lock()
		if subs, ok := b.subscribers[key]; ok {
			delete(subs, resultChan)
			if len(subs) == 0 {
				delete(b.subscribers, key)
			}
		}
		b.mu.Unlock()
		close(resultChan)
	}

	return resultChan, unsub
}

// SubscribeFailures subscribes to lookup failures of all providers.
func (b *GeoBus) SubscribeFailures(buffer int) (<-chan Failure, func()) {
	ch := make(chan Failure, buffer)
	b.mu.Lock()
	b.failureSubs[ch] = struct{}{}
	b.mu.Unlock()
	unsub := func() {
		b.mu.Lock()
		delete(b.failureSubs, ch)
		b.mu.Unlock()
		close(ch)
	}
	return ch, unsub
}

// Publish offers a result to the bus. It becomes the best result for its key and is broadcast
// if there is no previous one, the previous one expired, or it moved significantly and is either
// more accurate or comes from the same source.
func (b *GeoBus) Publish(r Result) {
	if r.Err != nil {
		b.PublishFailure(Failure{Key: r.Key, Source: r.Source, Err: r.Err, At: r.At})
		return
	}
	if r.AccuracyMeters == 0 {
		return
	}
	if r.At.IsZero() {
		r.At = time.Now()
	}

	b.mu.Lock()
	prev, have := b.best[r.Key]
	moved := r.Position().HasSignificantChange(prev.Position())
	if !have || prev.IsExpired() || (r.BetterThan(prev) || r.Source == prev.Source) && moved {
		b.best[r.Key] = r
		b.broadcastResult(r)
	}

	// Update TTL if the source has not changed
	if have && prev.Source == r.Source {
		updated := b.best[r.Key]
		updated.At = r.At
		b.best[r.Key] = updated
	}
	b.mu.Unlock()
}

// PublishFailure broadcasts a failed lookup. The best known result is not touched.
func (b *GeoBus) PublishFailure(f Failure) {
	if f.At.IsZero() {
		f.At = time.Now()
	}
	b.logger.Debug("geolocation lookup failed", slog.String("source", f.Source),
		slog.String("key", f.Key), logger.Err(f.Err))

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.failureSubs {
		select {
		case ch <- f:
		default:
		}
	}
}

func (b *GeoBus) broadcastResult(r Result) {
	if subs, ok := b.subscribers[r.Key]; ok {
		for ch := range subs {
			select {
			case ch <- r:
			default:
			}
		}
	}
}

// Best returns the best non-expired result for key.
func (b *GeoBus) Best(key string) (Result, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	r, ok := b.best[key]
	return r, ok && !r.IsExpired()
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func nextBackoff(d time.Duration) time.Duration {
	if d *= 2; d > maxBackoff {
		return maxBackoff
	}
	return d
}
