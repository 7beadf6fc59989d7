// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package store

import (
	"errors"
	"math"
	"math/rand/v2"
	"slices"
	"sync"
	"testing"

	"github.com/wneessen/distance-provider/internal/geo"
	"github.com/wneessen/distance-provider/internal/person"
)

// fixedSource makes rand.Float64 return 0.75, so every random delta is exactly +2.5 degrees with
// the default max delta.
type fixedSource struct{}

func (fixedSource) Uint64() uint64 { return 3 << 51 }

type countingObserver struct {
	mu    sync.Mutex
	count int
}

func (o *countingObserver) DataChanged() {
	o.mu.Lock()
	o.count++
	o.mu.Unlock()
}

func (o *countingObserver) reset() {
	o.mu.Lock()
	o.count = 0
	o.mu.Unlock()
}

func (o *countingObserver) calls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.count
}

func testPersons() []person.Person {
	return []person.Person{
		{Name: "Anna", Image: "anna", Location: geo.Coordinate{Lat: 10, Lon: 10}},
		{Name: person.UserName, Image: "user", Location: geo.Coordinate{Lat: 0, Lon: 0}},
		{Name: "Boris", Image: "boris", Location: geo.Coordinate{Lat: 0, Lon: 1}},
		{Name: "Clara", Image: "clara", Location: geo.Coordinate{Lat: -20, Lon: 30}},
	}
}

func testStore(t *testing.T, opts Options) *Store {
	t.Helper()
	if opts.Rand == nil {
		opts.Rand = rand.New(fixedSource{})
	}
	store := New(opts)
	store.Load(testPersons())
	return store
}

func visibleNames(t *testing.T, store *Store) []string {
	t.Helper()
	names := make([]string, 0, store.VisibleRowCount())
	for i := 0; i < store.VisibleRowCount(); i++ {
		p, err := store.RowAt(i)
		if err != nil {
			t.Fatalf("failed to get row %d: %s", i, err)
		}
		names = append(names, p.Name)
	}
	return names
}

func personNames(persons []person.Person) []string {
	names := make([]string, 0, len(persons))
	for _, p := range persons {
		names = append(names, p.Name)
	}
	return names
}

func assertNames(t *testing.T, got []string, want ...string) {
	t.Helper()
	if !slices.Equal(got, want) {
		t.Errorf("expected names %v, got %v", want, got)
	}
}

func TestNew(t *testing.T) {
	t.Run("defaults are applied", func(t *testing.T) {
		store := New(Options{})
		if store.maxDelta != DefaultMaxDelta {
			t.Errorf("expected max delta to be %f, got %f", DefaultMaxDelta, store.maxDelta)
		}
		if store.drift != DriftPerEntity {
			t.Errorf("expected drift policy to be %s, got %s", DriftPerEntity, store.drift)
		}
		if store.bounds != BoundsUnbounded {
			t.Errorf("expected bounds policy to be %s, got %s", BoundsUnbounded, store.bounds)
		}
		if store.rand == nil {
			t.Error("expected random source to be set")
		}
		if store.VisibleRowCount() != 0 {
			t.Errorf("expected empty store, got %d rows", store.VisibleRowCount())
		}
	})
}

func TestStore_Load(t *testing.T) {
	t.Run("load replaces the list and clears the selection", func(t *testing.T) {
		store := testStore(t, Options{})
		if err := store.Select(0); err != nil {
			t.Fatalf("failed to select row: %s", err)
		}
		store.Load(testPersons()[:2])
		if _, ok := store.Selected(); ok {
			t.Error("expected selection to be cleared after load")
		}
		if store.VisibleRowCount() != 2 {
			t.Errorf("expected 2 rows, got %d", store.VisibleRowCount())
		}
	})
	t.Run("load does not alias the input slice", func(t *testing.T) {
		persons := testPersons()
		store := testStore(t, Options{})
		store.Load(persons)
		store.Tick()
		if persons[0].Location != (geo.Coordinate{Lat: 10, Lon: 10}) {
			t.Errorf("expected input slice to stay untouched, got %v", persons[0].Location)
		}
	})
}

func TestStore_Select(t *testing.T) {
	t.Run("select and deselect is a round trip", func(t *testing.T) {
		for i := range testPersons() {
			store := testStore(t, Options{})
			before := visibleNames(t, store)
			if err := store.Select(i); err != nil {
				t.Fatalf("failed to select row %d: %s", i, err)
			}
			store.Deselect()
			after := visibleNames(t, store)
			if len(before) != len(after) {
				t.Fatalf("expected %d rows after round trip, got %d", len(before), len(after))
			}
			for j := range before {
				if before[j] != after[j] {
					t.Errorf("row %d: expected %s after round trip, got %s", j, before[j], after[j])
				}
			}
		}
	})
	t.Run("select removes exactly one visible row", func(t *testing.T) {
		store := testStore(t, Options{})
		before := store.VisibleRowCount()
		if err := store.Select(2); err != nil {
			t.Fatalf("failed to select row: %s", err)
		}
		if store.VisibleRowCount() != before-1 {
			t.Errorf("expected %d rows, got %d", before-1, store.VisibleRowCount())
		}
		selected, ok := store.Selected()
		if !ok {
			t.Fatal("expected selection to be set")
		}
		if selected.Name != "Boris" {
			t.Errorf("expected Boris to be selected, got %s", selected.Name)
		}
		for _, name := range visibleNames(t, store) {
			if name == "Boris" {
				t.Error("expected selected person to be excluded from the visible rows")
			}
		}
		if store.Persons()[0].Name != "Boris" {
			t.Errorf("expected selected person to be moved to the front, got %s", store.Persons()[0].Name)
		}
	})
	t.Run("selecting while selected keeps the previous selection in the list", func(t *testing.T) {
		store := testStore(t, Options{})
		if err := store.Select(2); err != nil { // Boris
			t.Fatalf("failed to select row: %s", err)
		}
		// visible: Anna, User, Clara
		if err := store.Select(2); err != nil { // Clara
			t.Fatalf("failed to select row: %s", err)
		}
		selected, _ := store.Selected()
		if selected.Name != "Clara" {
			t.Errorf("expected Clara to be selected, got %s", selected.Name)
		}
		assertNames(t, visibleNames(t, store), "Boris", "Anna", person.UserName)
		assertNames(t, personNames(store.Persons()), "Clara", "Boris", "Anna", person.UserName)

		store.Deselect()
		assertNames(t, visibleNames(t, store), "Boris", "Anna", person.UserName, "Clara")
	})
	t.Run("selecting the previous selection again", func(t *testing.T) {
		store := testStore(t, Options{})
		if err := store.Select(0); err != nil { // Anna
			t.Fatalf("failed to select row: %s", err)
		}
		if err := store.Select(2); err != nil { // Clara
			t.Fatalf("failed to select row: %s", err)
		}
		// visible: Anna, User, Boris
		if err := store.Select(0); err != nil { // Anna
			t.Fatalf("failed to select row: %s", err)
		}
		assertNames(t, visibleNames(t, store), "Clara", person.UserName, "Boris")
		store.Deselect()
		assertNames(t, visibleNames(t, store), "Clara", "Anna", person.UserName, "Boris")
	})
	t.Run("select out of range fails and keeps the state", func(t *testing.T) {
		store := testStore(t, Options{})
		for _, row := range []int{-1, 4, 100} {
			if err := store.Select(row); !errors.Is(err, ErrRowOutOfRange) {
				t.Errorf("expected ErrRowOutOfRange for row %d, got %v", row, err)
			}
		}
		if _, ok := store.Selected(); ok {
			t.Error("expected no selection after failed select")
		}
		if store.VisibleRowCount() != 4 {
			t.Errorf("expected 4 rows, got %d", store.VisibleRowCount())
		}
	})
	t.Run("the selected row is not selectable again", func(t *testing.T) {
		store := testStore(t, Options{})
		if err := store.Select(3); err != nil {
			t.Fatalf("failed to select row: %s", err)
		}
		if err := store.Select(3); !errors.Is(err, ErrRowOutOfRange) {
			t.Errorf("expected ErrRowOutOfRange, got %v", err)
		}
	})
	t.Run("deselect without selection is a no-op", func(t *testing.T) {
		observer := &countingObserver{}
		store := testStore(t, Options{Observer: observer})
		observer.reset()
		store.Deselect()
		if observer.calls() != 0 {
			t.Errorf("expected no change notification, got %d", observer.calls())
		}
	})
}

func TestStore_RowAt(t *testing.T) {
	store := testStore(t, Options{})
	if _, err := store.RowAt(4); !errors.Is(err, ErrRowOutOfRange) {
		t.Errorf("expected ErrRowOutOfRange, got %v", err)
	}
	if err := store.Select(0); err != nil {
		t.Fatalf("failed to select row: %s", err)
	}
	p, err := store.RowAt(0)
	if err != nil {
		t.Fatalf("failed to get row: %s", err)
	}
	if p.Name != person.UserName {
		t.Errorf("expected first visible row to be the user, got %s", p.Name)
	}
	if _, err = store.RowAt(3); !errors.Is(err, ErrRowOutOfRange) {
		t.Errorf("expected ErrRowOutOfRange, got %v", err)
	}
}

func TestStore_Tick(t *testing.T) {
	t.Run("user stays in place without device location", func(t *testing.T) {
		store := testStore(t, Options{})
		store.Tick()
		store.Tick()
		for _, p := range store.Persons() {
			if p.IsUser() && p.Location != (geo.Coordinate{}) {
				t.Errorf("expected user location to be unchanged, got %v", p.Location)
			}
		}
	})
	t.Run("user follows the device location", func(t *testing.T) {
		store := testStore(t, Options{})
		device := geo.Coordinate{Lat: 51.2, Lon: 7.1}
		store.SetDeviceLocation(device)
		store.Tick()
		for _, p := range store.Persons() {
			if p.IsUser() && p.Location != device {
				t.Errorf("expected user location to be %v, got %v", device, p.Location)
			}
		}
	})
	t.Run("other persons are moved by a random delta", func(t *testing.T) {
		store := testStore(t, Options{})
		store.Tick()
		want := map[string]geo.Coordinate{
			"Anna":  {Lat: 12.5, Lon: 12.5},
			"Boris": {Lat: 2.5, Lon: 3.5},
			"Clara": {Lat: -17.5, Lon: 32.5},
		}
		for _, p := range store.Persons() {
			if p.IsUser() {
				continue
			}
			if p.Location != want[p.Name] {
				t.Errorf("expected %s to be at %v, got %v", p.Name, want[p.Name], p.Location)
			}
		}
	})
	t.Run("random deltas stay within the max delta", func(t *testing.T) {
		store := New(Options{Rand: rand.New(rand.NewPCG(1, 2))})
		store.Load(testPersons())
		before := store.Persons()
		store.Tick()
		after := store.Persons()
		for i := range before {
			if before[i].IsUser() {
				continue
			}
			dLat := math.Abs(after[i].Location.Lat - before[i].Location.Lat)
			dLon := math.Abs(after[i].Location.Lon - before[i].Location.Lon)
			if dLat > DefaultMaxDelta || dLon > DefaultMaxDelta {
				t.Errorf("expected deltas within %f, got %f and %f", DefaultMaxDelta, dLat, dLon)
			}
		}
	})
	t.Run("selected person drifts once per other person", func(t *testing.T) {
		store := testStore(t, Options{SelectedDrift: DriftPerEntity})
		if err := store.Select(0); err != nil { // Anna
			t.Fatalf("failed to select row: %s", err)
		}
		store.Tick()
		selected, _ := store.Selected()
		// three non-user persons in the list, each iteration moves the selection by 2.5
		want := geo.Coordinate{Lat: 17.5, Lon: 17.5}
		if selected.Location != want {
			t.Errorf("expected selected person to be at %v, got %v", want, selected.Location)
		}
		if store.Persons()[0].Location != (geo.Coordinate{Lat: 12.5, Lon: 12.5}) {
			t.Errorf("expected pinned list entry to be moved once, got %v", store.Persons()[0].Location)
		}
	})
	t.Run("selected person drifts once per tick", func(t *testing.T) {
		store := testStore(t, Options{SelectedDrift: DriftPerTick})
		if err := store.Select(0); err != nil {
			t.Fatalf("failed to select row: %s", err)
		}
		store.Tick()
		selected, _ := store.Selected()
		want := geo.Coordinate{Lat: 12.5, Lon: 12.5}
		if selected.Location != want {
			t.Errorf("expected selected person to be at %v, got %v", want, selected.Location)
		}
	})
	t.Run("clamp keeps coordinates valid", func(t *testing.T) {
		store := New(Options{MaxDelta: 500, Bounds: BoundsClamp, Rand: rand.New(rand.NewPCG(3, 4))})
		store.Load(testPersons())
		for range 10 {
			store.Tick()
		}
		for _, p := range store.Persons() {
			if !p.Location.Valid() {
				t.Errorf("expected clamped location of %s to be valid, got %v", p.Name, p.Location)
			}
		}
	})
	t.Run("wrap keeps coordinates valid", func(t *testing.T) {
		store := New(Options{MaxDelta: 500, Bounds: BoundsWrap, Rand: rand.New(rand.NewPCG(5, 6))})
		store.Load(testPersons())
		for range 10 {
			store.Tick()
		}
		for _, p := range store.Persons() {
			if !p.Location.Valid() {
				t.Errorf("expected wrapped location of %s to be valid, got %v", p.Name, p.Location)
			}
		}
	})
	t.Run("unbounded coordinates may drift out of range", func(t *testing.T) {
		store := testStore(t, Options{MaxDelta: 50})
		for range 5 {
			store.Tick()
		}
		// every tick adds 25 degrees with the fixed source
		anna := store.Persons()[0]
		if anna.Location.Lat != 135 || anna.Location.Valid() {
			t.Errorf("expected Anna to drift to latitude 135, got %v", anna.Location)
		}
	})
}

func TestStore_Signals(t *testing.T) {
	t.Run("coalesced tick signals once", func(t *testing.T) {
		observer := &countingObserver{}
		store := testStore(t, Options{Observer: observer, Coalesce: true})
		observer.reset()
		store.Tick()
		if observer.calls() != 1 {
			t.Errorf("expected 1 change notification, got %d", observer.calls())
		}
	})
	t.Run("uncoalesced tick signals once per person", func(t *testing.T) {
		observer := &countingObserver{}
		store := testStore(t, Options{Observer: observer})
		observer.reset()
		store.Tick()
		if observer.calls() != len(testPersons()) {
			t.Errorf("expected %d change notifications, got %d", len(testPersons()), observer.calls())
		}
	})
	t.Run("mutations signal a change", func(t *testing.T) {
		observer := &countingObserver{}
		store := New(Options{Rand: rand.New(fixedSource{})})
		store.SetObserver(observer)
		store.Load(testPersons())
		store.SetDeviceLocation(geo.Coordinate{Lat: 1, Lon: 1})
		if err := store.Select(1); err != nil {
			t.Fatalf("failed to select row: %s", err)
		}
		store.Deselect()
		if observer.calls() != 4 {
			t.Errorf("expected 4 change notifications, got %d", observer.calls())
		}
	})
	t.Run("observer may read the store", func(t *testing.T) {
		store := testStore(t, Options{})
		reader := &readingObserver{store: store}
		store.SetObserver(reader)
		store.Tick()
		if reader.rows != 4 {
			t.Errorf("expected observer to read 4 rows, got %d", reader.rows)
		}
	})
}

type readingObserver struct {
	store *Store
	rows  int
}

func (o *readingObserver) DataChanged() {
	o.rows = len(o.store.Snapshot().Rows)
}

func TestStore_DescribeRow(t *testing.T) {
	t.Run("user row shows the device coordinate", func(t *testing.T) {
		store := New(Options{Rand: rand.New(fixedSource{})})
		store.Load(testPersons()[1:])
		store.SetDeviceLocation(geo.Coordinate{Lat: 1.005, Lon: -2.004})
		user, err := store.RowAt(0)
		if err != nil {
			t.Fatalf("failed to get row: %s", err)
		}
		want := "Coordinates - (1.01) - (-2.0)"
		if got := store.DescribeRow(user); got != want {
			t.Errorf("expected user description to be %q, got %q", want, got)
		}
	})
	t.Run("user row without device location shows the list coordinate", func(t *testing.T) {
		store := testStore(t, Options{})
		user, _ := store.RowAt(1)
		want := "Coordinates - (0.0) - (0.0)"
		if got := store.DescribeRow(user); got != want {
			t.Errorf("expected user description to be %q, got %q", want, got)
		}
	})
	t.Run("rows show the coordinate without selection", func(t *testing.T) {
		store := testStore(t, Options{})
		clara, _ := store.RowAt(3)
		want := "Coordinates - (-20.0) - (30.0)"
		if got := store.DescribeRow(clara); got != want {
			t.Errorf("expected description to be %q, got %q", want, got)
		}
	})
	t.Run("rows show the distance to the selection", func(t *testing.T) {
		store := testStore(t, Options{})
		store.SetDeviceLocation(geo.Coordinate{Lat: 50, Lon: 50})
		if err := store.Select(1); err != nil { // User at 0,0
			t.Fatalf("failed to select row: %s", err)
		}
		boris, _ := store.RowAt(1)
		if boris.Name != "Boris" {
			t.Fatalf("expected Boris at row 1, got %s", boris.Name)
		}
		want := "111 km 194 m"
		if got := store.DescribeRow(boris); got != want {
			t.Errorf("expected description to be %q, got %q", want, got)
		}
	})
}

func TestStore_Snapshot(t *testing.T) {
	t.Run("snapshot without selection", func(t *testing.T) {
		store := testStore(t, Options{})
		snap := store.Snapshot()
		if snap.Selected != nil {
			t.Error("expected no selected row")
		}
		if len(snap.Rows) != 4 {
			t.Fatalf("expected 4 rows, got %d", len(snap.Rows))
		}
		if snap.Rows[2].Description != "Coordinates - (0.0) - (1.0)" {
			t.Errorf("unexpected description: %q", snap.Rows[2].Description)
		}
		if _, ok := snap.Rows[2].Distance.Get(); ok {
			t.Error("expected no distance without selection")
		}
		if _, ok := snap.DeviceLocation.Get(); ok {
			t.Error("expected no device location")
		}
	})
	t.Run("snapshot with selection", func(t *testing.T) {
		store := testStore(t, Options{})
		if err := store.Select(1); err != nil {
			t.Fatalf("failed to select row: %s", err)
		}
		snap := store.Snapshot()
		if snap.Selected == nil || snap.Selected.Name != person.UserName {
			t.Fatalf("expected user to be selected, got %+v", snap.Selected)
		}
		if snap.Selected.Description != "Coordinates - (0.0) - (0.0)" {
			t.Errorf("unexpected header description: %q", snap.Selected.Description)
		}
		if len(snap.Rows) != 3 {
			t.Fatalf("expected 3 rows, got %d", len(snap.Rows))
		}
		boris := snap.Rows[1]
		distance, ok := boris.Distance.Get()
		if !ok || math.Abs(distance-111194.93) > 1 {
			t.Errorf("expected distance to Boris to be about 111195m, got %f", distance)
		}
	})
}

func TestStore_Concurrency(t *testing.T) {
	store := New(Options{Rand: rand.New(rand.NewPCG(7, 8)), Coalesce: true})
	store.Load(testPersons())
	var wg sync.WaitGroup
	for i := range 4 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := range 50 {
				switch (i + j) % 4 {
				case 0:
					store.Tick()
				case 1:
					_ = store.Select(0)
				case 2:
					store.Deselect()
				default:
					store.SetDeviceLocation(geo.Coordinate{Lat: float64(j), Lon: float64(i)})
					_ = store.Snapshot()
				}
			}
		}(i)
	}
	wg.Wait()
	if n := len(store.Persons()); n != 4 {
		t.Errorf("expected 4 persons after concurrent access, got %d", n)
	}
}
