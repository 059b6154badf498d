// Package scroll reveals more of an infinitely scrolling list until it stops growing,
// reaches old enough entries or hits the iteration ceiling.
package scroll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"orderscraper/internal/assert"
	"orderscraper/internal/components/telemetry"
	"orderscraper/lib/browser"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("orderscraper/internal/scroll")

const (
	report_loader_trigger = "loader.trigger"
	report_loader_entries = "loader.entries"
)

// ErrContainerNotFound is returned when the list never renders, nothing can be
// scraped from the page.
var ErrContainerNotFound = errors.New("order list container not found")

type StopReason int

const (
	// StopExhausted means the list stopped growing.
	StopExhausted StopReason = iota
	// StopReachedDate means an entry older than the requested start date is rendered.
	StopReachedDate
	// StopCeiling means max iterations were used up.
	StopCeiling
)

func (r StopReason) String() string {
	switch r {
	case StopExhausted:
		return "exhausted"
	case StopReachedDate:
		return "reached-date"
	case StopCeiling:
		return "ceiling"
	}
	return fmt.Sprintf("stop(%d)", int(r))
}

// Measurement is what a Probe sees in a snapshot of the markup.
type Measurement struct {
	Entries int
	// Oldest is the oldest parseable entry date, zero when none could be parsed.
	Oldest time.Time
}

// Probe measures rendered markup, it is implemented by the extraction schema so
// the loader and the extractor agree on what an entry is.
type Probe interface {
	Measure(markup string) (Measurement, error)
}

// ProbeFunc adapts a function to Probe.
type ProbeFunc func(markup string) (Measurement, error)

func (f ProbeFunc) Measure(markup string) (Measurement, error) {
	return f(markup)
}

type Options struct {
	Container string
	// LoadMore is clicked after scrolling when it renders, empty disables it.
	LoadMore         string
	ContainerTimeout time.Duration
	StepTimeout      time.Duration
	PollInterval     time.Duration
	MaxIterations    int
	// StallLimit is how many consecutive triggers without growth end the loading.
	StallLimit int
}

type Result struct {
	Markup     string
	Entries    int
	Iterations int
	// Stalls counts triggers after which the list did not grow within the step timeout.
	Stalls int
	Reason StopReason
}

type Loader struct {
	page  browser.Page
	probe Probe
	tel   telemetry.API
	opts  Options
}

func NewLoader(page browser.Page, probe Probe, tel telemetry.API, opts Options) Loader {
	assert.NotNil(page, "page")
	assert.NotNil(probe, "probe")
	assert.NotNil(tel, "telemetry")
	assert.NotEmptyStr(opts.Container, "container selector")
	assert.Positive(opts.MaxIterations, "max iterations")
	assert.Positive(opts.StallLimit, "stall limit")

	if opts.PollInterval <= 0 {
		opts.PollInterval = 250 * time.Millisecond
	}
	return Loader{
		page:  page,
		probe: probe,
		tel:   telemetry.NewScopedAPI("scroll", tel),
		opts:  opts,
	}
}

func (l Loader) snapshot(ctx context.Context) (string, Measurement, error) {
	markup, err := l.page.Markup(ctx)
	if err != nil {
		return "", Measurement{}, err
	}
	m, err := l.probe.Measure(markup)
	if err != nil {
		return "", Measurement{}, err
	}
	return markup, m, nil
}

func (l Loader) trigger(ctx context.Context) error {
	err := l.page.ScrollToBottom(ctx)
	if err != nil {
		return err
	}
	if l.opts.LoadMore == "" {
		return nil
	}
	err = l.page.WaitFor(ctx, l.opts.LoadMore, l.opts.PollInterval)
	if errors.Is(err, browser.ErrTimeout) {
		return nil
	}
	if err != nil {
		return err
	}
	return l.page.Click(ctx, l.opts.LoadMore)
}

// awaitGrowth polls until the entry count exceeds `before` or the step timeout elapses.
func (l Loader) awaitGrowth(ctx context.Context, before int) (string, Measurement, bool, error) {
	deadline := time.Now().Add(l.opts.StepTimeout)
	for {
		markup, m, err := l.snapshot(ctx)
		if err != nil {
			return "", Measurement{}, false, err
		}
		if m.Entries > before {
			return markup, m, true, nil
		}
		if !time.Now().Before(deadline) {
			return markup, m, false, nil
		}

		select {
		case <-ctx.Done():
			return "", Measurement{}, false, ctx.Err()
		case <-time.After(l.opts.PollInterval):
		}
	}
}

// Load waits for the list container and keeps revealing entries until one of the
// stop conditions is met. A zero `since` disables the date stop.
func (l Loader) Load(ctx context.Context, since time.Time) (Result, error) {
	ctx, span := tracer.Start(ctx, "Loader.Load")
	defer span.End()

	err := l.page.WaitFor(ctx, l.opts.Container, l.opts.ContainerTimeout)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		err = fmt.Errorf("%w: %s: %w", ErrContainerNotFound, l.opts.Container, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}

	markup, m, err := l.snapshot(ctx)
	if err != nil {
		return Result{}, err
	}

	res := Result{Markup: markup, Entries: m.Entries, Reason: StopCeiling}
	stalled := 0
	for res.Iterations < l.opts.MaxIterations {
		if !since.IsZero() && !m.Oldest.IsZero() && m.Oldest.Before(since) {
			res.Reason = StopReachedDate
			break
		}

		err = l.trigger(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			// the markup that is already rendered is still usable
			l.tel.ReportWarning(report_loader_trigger, err)
			res.Reason = StopExhausted
			break
		}
		res.Iterations++

		var grew bool
		markup, m, grew, err = l.awaitGrowth(ctx, res.Entries)
		if err != nil {
			return Result{}, err
		}
		res.Markup = markup
		res.Entries = m.Entries

		if grew {
			stalled = 0
			l.tel.ReportDebug("entries grew", res.Iterations, res.Entries)
			continue
		}
		res.Stalls++
		stalled++
		l.tel.ReportDebug("no growth", res.Iterations, res.Entries)
		if stalled >= l.opts.StallLimit {
			res.Reason = StopExhausted
			break
		}
	}

	if res.Reason == StopCeiling && !since.IsZero() && !m.Oldest.IsZero() && m.Oldest.Before(since) {
		res.Reason = StopReachedDate
	}

	l.tel.ReportCount(report_loader_entries, int64(res.Entries))
	span.SetAttributes(
		attribute.Int("iterations", res.Iterations),
		attribute.Int("entries", res.Entries),
		attribute.String("reason", res.Reason.String()),
	)
	return res, nil
}
