// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package presenter renders the person list into waybar JSON output lines.
package presenter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"text/template"
	"time"

	"github.com/vorlif/humanize"
	"github.com/vorlif/humanize/locale/de"
	"github.com/vorlif/humanize/locale/fr"
	"github.com/vorlif/spreak"

	"github.com/wneessen/distance-provider/internal/config"
	"github.com/wneessen/distance-provider/internal/geo"
	"github.com/wneessen/distance-provider/internal/geocode"
	"github.com/wneessen/distance-provider/internal/logger"
	"github.com/wneessen/distance-provider/internal/store"
)

// Source provides the data that is rendered.
type Source interface {
	Snapshot() store.Snapshot
}

// Output is a single waybar output line.
type Output struct {
	Text    string   `json:"text"`
	Tooltip string   `json:"tooltip"`
	Classes []string `json:"class"`
	Alt     string   `json:"alt"`
}

// RowView is a person row as seen by the templates.
type RowView struct {
	Name           string
	Image          string
	Description    string
	Location       geo.Coordinate
	IsUser         bool
	IsDaytime      bool
	HasDistance    bool
	DistanceMeters float64
}

type TemplateContext struct {
	Selected          *RowView
	Rows              []RowView
	DeviceLocation    geo.Coordinate
	HasDeviceLocation bool
	Address           geocode.Address
	UpdateTime        time.Time
}

// Presenter writes the rendered state of a Source to an output whenever the data changed.
type Presenter struct {
	TextTemplate    *template.Template
	TooltipTemplate *template.Template

	mu        sync.Mutex
	output    io.Writer
	logger    *logger.Logger
	source    Source
	localizer *spreak.Localizer
	humanizer *humanize.Humanizer
	address   geocode.Address
	now       func() time.Time
}

// New parses the configured templates and returns a Presenter rendering source to output. Templates
// that fail to execute on an empty list are rejected.
func New(conf *config.Config, lang *spreak.Localizer, source Source, output io.Writer, log *logger.Logger,
) (*Presenter, error) {
	if conf == nil {
		return nil, errors.New("config is required")
	}
	if lang == nil {
		return nil, errors.New("localizer is required")
	}
	if source == nil {
		return nil, errors.New("source is required")
	}
	if output == nil {
		return nil, errors.New("output is required")
	}
	if log == nil {
		return nil, errors.New("logger is required")
	}

	collection, err := humanize.New(humanize.WithLocale(de.New(), fr.New()))
	if err != nil {
		return nil, fmt.Errorf("failed to create humanizer: %w", err)
	}
	pres := &Presenter{
		output:    output,
		logger:    log,
		source:    source,
		localizer: lang,
		humanizer: collection.CreateHumanizer(lang.Language()),
		now:       time.Now,
	}

	pres.TextTemplate, err = template.New("text").Funcs(pres.templateFuncMap()).Parse(conf.Templates.Text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse text template: %w", err)
	}
	pres.TooltipTemplate, err = template.New("tooltip").Funcs(pres.templateFuncMap()).
		Parse(conf.Templates.Tooltip)
	if err != nil {
		return nil, fmt.Errorf("failed to parse tooltip template: %w", err)
	}

	if _, err = pres.Render(TemplateContext{}); err != nil {
		return nil, err
	}
	return pres, nil
}

// SetAddress sets the address of the device location shown in the templates.
func (p *Presenter) SetAddress(addr geocode.Address) {
	p.mu.Lock()
	p.address = addr
	p.mu.Unlock()
}

// DataChanged renders the current state of the source and writes it to the output. Render
// failures are written as error output.
func (p *Presenter) DataChanged() {
	p.mu.Lock()
	addr := p.address
	p.mu.Unlock()

	snap := p.source.Snapshot()
	out, err := p.Render(p.BuildContext(snap, addr))
	if err != nil {
		p.logger.Error("failed to render output", logger.Err(err))
		p.Error(err.Error())
		return
	}
	out.Classes = []string{ClassModule}
	out.Alt = AltList
	if snap.Selected != nil {
		out.Classes = append(out.Classes, ClassSelected)
		out.Alt = AltSelected
	}
	p.write(out)
}

// Error writes message as error output. The previous output is replaced until the next change.
func (p *Presenter) Error(message string) {
	p.write(Output{
		Text:    p.localizer.Get("Error"),
		Tooltip: message,
		Classes: []string{ClassModule, ClassError},
		Alt:     AltError,
	})
}

// BuildContext converts a store snapshot into the template context.
func (p *Presenter) BuildContext(snap store.Snapshot, addr geocode.Address) TemplateContext {
	now := p.now()
	ctx := TemplateContext{
		Rows:       make([]RowView, 0, len(snap.Rows)),
		Address:    addr,
		UpdateTime: now,
	}
	ctx.DeviceLocation, ctx.HasDeviceLocation = snap.DeviceLocation.Get()
	if snap.Selected != nil {
		view := p.viewFromRow(*snap.Selected, now)
		ctx.Selected = &view
	}
	for _, row := range snap.Rows {
		ctx.Rows = append(ctx.Rows, p.viewFromRow(row, now))
	}
	return ctx
}

// Render executes the text and tooltip templates for ctx.
func (p *Presenter) Render(ctx TemplateContext) (Output, error) {
	var out Output
	buf := bytes.NewBuffer(nil)
	if err := p.TextTemplate.Execute(buf, ctx); err != nil {
		return out, fmt.Errorf("failed to render text template: %w", err)
	}
	out.Text = buf.String()

	buf.Reset()
	if err := p.TooltipTemplate.Execute(buf, ctx); err != nil {
		return out, fmt.Errorf("failed to render tooltip template: %w", err)
	}
	out.Tooltip = buf.String()
	return out, nil
}

func (p *Presenter) viewFromRow(row store.Row, now time.Time) RowView {
	view := RowView{
		Name:        row.Name,
		Image:       row.Image,
		Description: row.Description,
		Location:    row.Location,
		IsUser:      row.IsUser(),
		IsDaytime:   isDaytime(row.Location, now),
	}
	view.DistanceMeters, view.HasDistance = row.Distance.Get()
	return view
}

func (p *Presenter) write(out Output) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := json.NewEncoder(p.output).Encode(out); err != nil {
		p.logger.Error("failed to encode output", logger.Err(err), slog.String("text", out.Text))
	}
}
