// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

type signalSource interface {
	Notify(c chan<- os.Signal, sig ...os.Signal)
	Stop(c chan<- os.Signal)
}

// stdLibSignalSource is the production implementation.
type stdLibSignalSource struct{}

func (stdLibSignalSource) Notify(c chan<- os.Signal, sig ...os.Signal) {
	signal.Notify(c, sig...)
}

func (stdLibSignalSource) Stop(c chan<- os.Signal) {
	signal.Stop(c)
}

// HandleSignals clears the selection on SIGUSR1 and logs the current state on SIGUSR2.
func (s *Service) HandleSignals(ctx context.Context, sigChan chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigChan:
			switch sig {
			case syscall.SIGUSR1:
				s.Deselect()
			case syscall.SIGUSR2:
				s.logState()
			}
		}
	}
}

func (s *Service) logState() {
	attrs := []any{slog.Int("rows", s.store.VisibleRowCount())}
	if selected, ok := s.store.Selected(); ok {
		attrs = append(attrs, slog.String("selected", selected.Name))
	}
	if device, ok := s.store.DeviceLocation(); ok {
		attrs = append(attrs, slog.Float64("latitude", device.Lat), slog.Float64("longitude", device.Lon))
	}
	if best, ok := s.geobus.Best(DeviceKey); ok {
		attrs = append(attrs, slog.String("source", best.Source),
			slog.Float64("accuracy", best.AccuracyMeters))
	}
	persons := s.store.Persons()
	order := make([]string, 0, len(persons))
	for _, p := range persons {
		order = append(order, p.Name)
	}
	attrs = append(attrs, slog.Any("order", order))
	s.logger.Info("current state", attrs...)
}
