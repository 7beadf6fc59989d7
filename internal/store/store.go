// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package store implements the in-memory person list, the selection slot and the periodic
// position updates.
package store

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/wneessen/distance-provider/internal/geo"
	"github.com/wneessen/distance-provider/internal/person"
	"github.com/wneessen/distance-provider/internal/vartype"
)

// DefaultMaxDelta is the largest random change in degrees applied to a coordinate axis per update.
const DefaultMaxDelta = 5.0

// DriftPolicy controls how often the selected person is moved during a tick.
type DriftPolicy string

const (
	// DriftPerEntity moves the selected person once for every other (non-user) person in the list.
	DriftPerEntity DriftPolicy = "per-entity"
	// DriftPerTick moves the selected person exactly once per tick.
	DriftPerTick DriftPolicy = "per-tick"
)

// BoundsPolicy controls what happens to randomly moved coordinates that leave the valid range.
type BoundsPolicy string

const (
	// BoundsUnbounded lets coordinates drift past the poles and the antimeridian.
	BoundsUnbounded BoundsPolicy = "unbounded"
	// BoundsClamp stops latitude and longitude at their limits.
	BoundsClamp BoundsPolicy = "clamp"
	// BoundsWrap folds latitude back over the poles and wraps longitude around the antimeridian.
	BoundsWrap BoundsPolicy = "wrap"
)

// ErrRowOutOfRange is returned when a row index does not address a visible row.
var ErrRowOutOfRange = errors.New("row index out of range")

// Observer is notified whenever the data of the store changed and needs to be rendered.
type Observer interface {
	DataChanged()
}

// Options configures a Store.
type Options struct {
	MaxDelta      float64
	SelectedDrift DriftPolicy
	Bounds        BoundsPolicy
	// Coalesce reduces the change notifications of a tick to one. Otherwise one notification
	// is sent for every person processed.
	Coalesce bool
	Rand     *rand.Rand
	Observer Observer
}

// Store owns the ordered person list and the selection. It is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	persons  []person.Person
	selected *person.Person
	origin   int
	device   vartype.VarCoordinate

	maxDelta float64
	drift    DriftPolicy
	bounds   BoundsPolicy
	coalesce bool
	rand     *rand.Rand
	observer Observer
}

// Row is a visible row of the person list with its rendered description.
type Row struct {
	person.Person
	Description string
	Distance    vartype.VarFloat64
}

// Snapshot is a consistent view of the store for rendering.
type Snapshot struct {
	Selected       *Row
	Rows           []Row
	DeviceLocation vartype.VarCoordinate
}

// New returns an empty Store configured with opts. Zero values fall back to the defaults.
func New(opts Options) *Store {
	store := &Store{
		maxDelta: opts.MaxDelta,
		drift:    opts.SelectedDrift,
		bounds:   opts.Bounds,
		coalesce: opts.Coalesce,
		rand:     opts.Rand,
		observer: opts.Observer,
	}
	if store.maxDelta == 0 {
		store.maxDelta = DefaultMaxDelta
	}
	if store.drift == "" {
		store.drift = DriftPerEntity
	}
	if store.bounds == "" {
		store.bounds = BoundsUnbounded
	}
	if store.rand == nil {
		store.rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return store
}

// SetObserver replaces the observer that is notified on changes.
func (s *Store) SetObserver(observer Observer) {
	s.mu.Lock()
	s.observer = observer
	s.mu.Unlock()
}

// Load replaces the person list and clears the selection.
func (s *Store) Load(persons []person.Person) {
	s.mu.Lock()
	s.persons = slices.Clone(persons)
	s.selected = nil
	s.origin = 0
	s.mu.Unlock()
	s.notify(1)
}

// SetDeviceLocation records the latest location fix for the user entry.
func (s *Store) SetDeviceLocation(coord geo.Coordinate) {
	s.mu.Lock()
	s.device.Set(coord)
	s.mu.Unlock()
	s.notify(1)
}

// DeviceLocation returns the latest location fix of the device, if one was received.
func (s *Store) DeviceLocation() (geo.Coordinate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.device.Get()
}

// Tick refreshes the position of every person. The user entry follows the device location, all
// other persons and the selected person are moved by a random delta.
func (s *Store) Tick() {
	s.mu.Lock()
	device, haveDevice := s.device.Get()
	signals := 0
	for i := range s.persons {
		if s.persons[i].IsUser() {
			if haveDevice {
				s.persons[i].Location = device
			}
		} else {
			s.persons[i].Location = s.perturb(s.persons[i].Location)
			if s.selected != nil && s.drift == DriftPerEntity {
				s.selected.Location = s.perturb(s.selected.Location)
			}
		}
		signals++
	}
	if s.selected != nil && s.drift == DriftPerTick {
		s.selected.Location = s.perturb(s.selected.Location)
	}
	if s.coalesce {
		signals = 1
	}
	s.mu.Unlock()
	s.notify(signals)
}

// Select pins the person at the visible row index. The person is moved to the front of the list
// and excluded from the visible rows until Deselect is called. A previous selection stays where it
// is and becomes the first visible row.
func (s *Store) Select(row int) error {
	s.mu.Lock()
	count := s.visibleRowCount()
	if row < 0 || row >= count {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d (visible rows: %d)", ErrRowOutOfRange, row, count)
	}

	index := row
	if s.selected != nil {
		index = row + 1
	}
	selected := s.persons[index]
	s.persons = slices.Delete(s.persons, index, index+1)
	s.persons = slices.Insert(s.persons, 0, selected)
	s.origin = index
	s.selected = &selected
	s.mu.Unlock()

	s.notify(1)
	return nil
}

// Deselect clears the selection and returns the selected person to the slot it was selected from.
func (s *Store) Deselect() {
	s.mu.Lock()
	if s.selected == nil {
		s.mu.Unlock()
		return
	}
	pinned := s.persons[0]
	s.persons = slices.Delete(s.persons, 0, 1)
	s.persons = slices.Insert(s.persons, s.origin, pinned)
	s.selected = nil
	s.origin = 0
	s.mu.Unlock()

	s.notify(1)
}

// Selected returns the selected person, if any.
func (s *Store) Selected() (person.Person, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selected == nil {
		return person.Person{}, false
	}
	return *s.selected, true
}

// VisibleRowCount returns the number of rows, excluding the selected person.
func (s *Store) VisibleRowCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.visibleRowCount()
}

// RowAt returns the person shown at the visible row index.
func (s *Store) RowAt(row int) (person.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rowAt(row)
}

// DescribeRow returns the text shown below the name of p: the distance to the selected person
// when a selection exists, the coordinate otherwise.
func (s *Store) DescribeRow(p person.Person) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.describe(p)
}

// Persons returns a copy of the full person list in its current order.
func (s *Store) Persons() []person.Person {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.persons)
}

// Snapshot returns the selected person and all visible rows with their descriptions.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Rows:           make([]Row, 0, s.visibleRowCount()),
		DeviceLocation: s.device,
	}
	if s.selected != nil {
		snap.Selected = &Row{
			Person:      *s.selected,
			Description: s.selected.Location.String(),
		}
	}
	for i := 0; i < s.visibleRowCount(); i++ {
		p, err := s.rowAt(i)
		if err != nil {
			break
		}
		row := Row{Person: p, Description: s.describe(p)}
		if s.selected != nil {
			row.Distance.Set(geo.Distance(s.selected.Location, p.Location))
		}
		snap.Rows = append(snap.Rows, row)
	}
	return snap
}

func (s *Store) visibleRowCount() int {
	if s.selected != nil {
		return len(s.persons) - 1
	}
	return len(s.persons)
}

func (s *Store) rowAt(row int) (person.Person, error) {
	if row < 0 || row >= s.visibleRowCount() {
		return person.Person{}, fmt.Errorf("%w: %d (visible rows: %d)", ErrRowOutOfRange, row,
			s.visibleRowCount())
	}
	if s.selected != nil {
		return s.persons[row+1], nil
	}
	return s.persons[row], nil
}

func (s *Store) describe(p person.Person) string {
	if s.selected != nil {
		return geo.FormatDistance(geo.Distance(s.selected.Location, p.Location))
	}
	if device, ok := s.device.Get(); ok && p.IsUser() {
		return device.String()
	}
	return p.Location.String()
}

// perturb moves the coordinate by an independent random delta on each axis and applies the
// bounds policy.
func (s *Store) perturb(coord geo.Coordinate) geo.Coordinate {
	coord.Lat += s.delta()
	coord.Lon += s.delta()
	switch s.bounds {
	case BoundsClamp:
		return geo.Clamp(coord)
	case BoundsWrap:
		return geo.Wrap(coord)
	default:
		return coord
	}
}

// delta returns a uniform random value in [-maxDelta, maxDelta). The upper bound itself is never
// drawn.
func (s *Store) delta() float64 {
	return (s.rand.Float64()*2 - 1) * s.maxDelta
}

func (s *Store) notify(signals int) {
	s.mu.RLock()
	observer := s.observer
	s.mu.RUnlock()
	if observer == nil {
		return
	}
	for range signals {
		observer.DataChanged()
	}
}
