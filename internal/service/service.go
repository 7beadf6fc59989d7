// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package service wires the person store, the location sources and the presenter together and
// drives the periodic position updates.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/vorlif/spreak"

	"github.com/wneessen/distance-provider/internal/config"
	"github.com/wneessen/distance-provider/internal/control"
	"github.com/wneessen/distance-provider/internal/geo"
	"github.com/wneessen/distance-provider/internal/geobus"
	"github.com/wneessen/distance-provider/internal/geocode"
	"github.com/wneessen/distance-provider/internal/logger"
	"github.com/wneessen/distance-provider/internal/person"
	"github.com/wneessen/distance-provider/internal/presenter"
	"github.com/wneessen/distance-provider/internal/store"
)

const (
	// DeviceKey is the geobus key of the device location. It matches the name of the user entry.
	DeviceKey = person.UserName

	geocodeTimeout = 10 * time.Second
	subBufferSize  = 32
)

type Service struct {
	SignalSrc signalSource

	config    *config.Config
	geobus    *geobus.GeoBus
	geocoder  geocode.Geocoder
	input     io.Reader
	logger    *logger.Logger
	presenter *presenter.Presenter
	scheduler gocron.Scheduler
	store     *store.Store
	t         *spreak.Localizer

	providers    func() ([]geobus.Provider, error)
	monitorSleep func(context.Context)
}

// New returns a Service rendering to stdout and reading control commands from stdin, or from
// the configured FIFO.
func New(conf *config.Config, log *logger.Logger, t *spreak.Localizer) (*Service, error) {
	return newService(conf, log, t, os.Stdout)
}

func newService(conf *config.Config, log *logger.Logger, t *spreak.Localizer, output io.Writer) (*Service, error) {
	if conf == nil {
		return nil, errors.New("config is required")
	}
	bus, err := geobus.New(log)
	if err != nil {
		return nil, fmt.Errorf("failed to create geobus: %w", err)
	}
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	people := store.New(conf.StoreOptions())
	pres, err := presenter.New(conf, t, people, output, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create presenter: %w", err)
	}
	people.SetObserver(pres)

	service := &Service{
		SignalSrc: stdLibSignalSource{},
		config:    conf,
		geobus:    bus,
		input:     os.Stdin,
		logger:    log,
		presenter: pres,
		scheduler: scheduler,
		store:     people,
		t:         t,
	}
	service.providers = service.selectGeobusProviders
	service.monitorSleep = service.monitorSleepResume

	if !conf.Geocoder.Disable {
		service.geocoder = service.selectGeocodeProvider()
	}

	return service, nil
}

func (s *Service) Run(ctx context.Context) error {
	providers, err := s.providers()
	if err != nil {
		return fmt.Errorf("failed to create geobus orchestrator: %w", err)
	}
	s.logger.Debug("geolocation providers selected", slog.Any("providers", providerNames(providers)))

	s.loadDataset()

	// Start scheduled jobs
	if err = s.createScheduledJob(ctx, s.config.Intervals.Update, s.updatePositions,
		"position_update_job"); err != nil {
		return err
	}
	if err = s.createScheduledJob(ctx, s.config.Intervals.Output, s.printOutput,
		"output_job"); err != nil {
		return err
	}
	s.scheduler.Start()

	// Subscribe to geolocation updates and failures from the geobus
	sub, unsub := s.geobus.Subscribe(DeviceKey, subBufferSize)
	failures, unsubFailures := s.geobus.SubscribeFailures(subBufferSize)
	go s.processLocationUpdates(ctx, sub)
	go s.processLocationFailures(ctx, failures)
	go s.geobus.NewOrchestrator(providers).Track(ctx, DeviceKey)

	// Selection commands and signals
	go s.readControl(ctx)
	sigChan := make(chan os.Signal, 1)
	s.SignalSrc.Notify(sigChan, syscall.SIGUSR1, syscall.SIGUSR2)
	go s.HandleSignals(ctx, sigChan)

	go s.monitorSleep(ctx)

	// Wait for the context to cancel
	<-ctx.Done()
	s.SignalSrc.Stop(sigChan)
	unsub()
	unsubFailures()
	return s.scheduler.Shutdown()
}

// Select pins the person shown at the visible row.
func (s *Service) Select(row int) error {
	return s.store.Select(row)
}

// Deselect clears the selection.
func (s *Service) Deselect() {
	s.store.Deselect()
}

// Refresh renders the current state.
func (s *Service) Refresh() {
	s.presenter.DataChanged()
}

// loadDataset loads the configured person list into the store. A broken list is reported once
// and the service continues with an empty list.
func (s *Service) loadDataset() {
	var persons []person.Person
	var err error
	if s.config.Dataset != "" {
		persons, err = person.LoadFile(s.config.Dataset)
	} else {
		persons, err = person.Default()
	}
	if err != nil {
		s.logger.Error("failed to load person list", logger.Err(err), slog.String("dataset", s.config.Dataset))
		s.presenter.Error(err.Error())
		return
	}

	s.store.Load(persons)
	s.logger.Debug("person list loaded", slog.Int("persons", len(persons)))
}

func (s *Service) createScheduledJob(ctx context.Context, interval time.Duration, task func(context.Context),
	jobName string,
) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(task),
		gocron.WithContext(ctx),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName(jobName),
	)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", jobName, err)
	}
	return nil
}

func (s *Service) updatePositions(context.Context) {
	s.store.Tick()
}

func (s *Service) printOutput(context.Context) {
	s.presenter.DataChanged()
}

// updateLocation applies a device location fix and resolves its address.
func (s *Service) updateLocation(ctx context.Context, coord geo.Coordinate) error {
	if !coord.Valid() {
		return fmt.Errorf("invalid coordinates: %s", coord)
	}
	s.store.SetDeviceLocation(coord)

	if s.geocoder == nil {
		return nil
	}
	ctxGeocode, cancel := context.WithTimeout(ctx, geocodeTimeout)
	defer cancel()
	address, err := s.geocoder.Reverse(ctxGeocode, coord)
	if err != nil {
		return fmt.Errorf("failed reverse geocode coordinates: %w", err)
	}
	s.logger.Debug("address successfully resolved", slog.String("address", address.DisplayName),
		slog.Bool("cache_hit", address.CacheHit))
	s.presenter.SetAddress(address)
	s.presenter.DataChanged()

	return nil
}

// processLocationUpdates applies the device location updates of the geobus.
func (s *Service) processLocationUpdates(ctx context.Context, sub <-chan geobus.Result) {
	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-sub:
			if !ok {
				return
			}
			s.logger.Debug("received geolocation update", slog.Float64("lat", r.Coordinate.Lat),
				slog.Float64("lon", r.Coordinate.Lon), slog.Float64("accuracy", r.AccuracyMeters),
				slog.String("source", r.Source))
			if err := s.updateLocation(ctx, r.Coordinate); err != nil {
				s.logger.Error("failed to apply geo update", logger.Err(err), slog.String("source", r.Source))
			}
		}
	}
}

// processLocationFailures reports failed location lookups. While the geobus holds a usable device
// fix, failures are only logged. Without one, the first failure of each source is shown until a
// fix arrives. The last known location stays in place.
func (s *Service) processLocationFailures(ctx context.Context, sub <-chan geobus.Failure) {
	reported := make(map[string]struct{})
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-sub:
			if !ok {
				return
			}
			if best, ok := s.geobus.Best(DeviceKey); ok && best.Coordinate.Valid() {
				clear(reported)
				s.logger.Debug("geolocation lookup failed, keeping current fix", slog.String("source", f.Source),
					slog.String("fix_source", best.Source), logger.Err(f.Err))
				continue
			}
			if _, ok := reported[f.Source]; ok {
				s.logger.Debug("geolocation lookup failed again", slog.String("source", f.Source),
					logger.Err(f.Err))
				continue
			}
			reported[f.Source] = struct{}{}
			s.logger.Warn("geolocation lookup failed", slog.String("source", f.Source), logger.Err(f.Err))
			s.presenter.Error(fmt.Sprintf("%s: %s", f.Source, f.Err))
		}
	}
}

// readControl dispatches selection commands from the control FIFO, or stdin if none is configured.
func (s *Service) readControl(ctx context.Context) {
	var err error
	if s.config.Control.FIFO != "" {
		err = control.ListenFIFO(ctx, s.config.Control.FIFO, s, s.logger)
	} else {
		err = control.Read(ctx, s.input, s, s.logger)
	}
	if err != nil {
		s.logger.Error("control input stopped", logger.Err(err))
	}
}
