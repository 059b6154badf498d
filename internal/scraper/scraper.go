// Package scraper guides a browsing context through one run: login, order history,
// loading the whole feed, extraction and export.
//
// each step is a suspension point with a bounded timeout. only two failures end the run
// early, the login failing and the order list never rendering. everything else
// (a card that can't be parsed, a detail page that doesn't load, a scroll that doesn't
// produce anything new) is absorbed and counted in the Report.
//
// nothing is handed to the sink unless every fatal step succeeded, a run that fails
// halfway never leaves a partial export behind.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"orderscraper/internal/assert"
	"orderscraper/internal/auth"
	"orderscraper/internal/components/chrono"
	"orderscraper/internal/components/telemetry"
	"orderscraper/internal/export"
	"orderscraper/internal/extract"
	"orderscraper/internal/orders"
	"orderscraper/internal/pagecache"
	"orderscraper/internal/scroll"
	"orderscraper/internal/session"
	"orderscraper/lib/browser"
	"orderscraper/lib/util/dumputil"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("orderscraper/internal/scraper")

const (
	report_scraper_history  = "scraper.history"
	report_scraper_detail   = "scraper.detail"
	report_scraper_snapshot = "scraper.snapshot"
	report_scraper_exported = "scraper.exported"
	report_scraper_cache    = "scraper.cache"
)

// ErrHistoryUnavailable is returned when the order history page cannot be opened.
var ErrHistoryUnavailable = errors.New("order history could not be opened")

// PageCache stores detail page markup across runs.
type PageCache interface {
	Get(ctx context.Context, url string) (string, error)
	Set(ctx context.Context, url, markup string) error
}

type RunOptions struct {
	// Since is the earliest order date kept.
	Since        time.Time
	ForceRelogin bool
	// Details opens every kept order's page to read its full line item breakdown.
	Details bool
}

type Scraper struct {
	cfg        Config
	page       browser.Page
	store      session.Store
	prompter   auth.Prompter
	sink       export.Sink
	clock      chrono.API
	tel        telemetry.API
	dumps      dumputil.FilesystemOutput
	extractor  extract.Extractor
	classifier orders.Classifier
	excluded   []orders.Status
	cache      PageCache
}

func NewScraper(
	cfg Config,
	page browser.Page,
	store session.Store,
	prompter auth.Prompter,
	sink export.Sink,
	clock chrono.API,
	tel telemetry.API,
) (Scraper, error) {
	assert.NotNil(page, "page")
	assert.NotNil(store, "store")
	assert.NotNil(prompter, "prompter")
	assert.NotNil(sink, "sink")
	assert.NotNil(clock, "clock")
	assert.NotNil(tel, "telemetry")

	err := cfg.Validate()
	if err != nil {
		return Scraper{}, err
	}

	extractor, err := extract.NewExtractor(cfg.Schemas.Summary, cfg.Schemas.Detail, cfg.BaseURL, clock, tel)
	if err != nil {
		return Scraper{}, err
	}
	classifier, err := orders.NewClassifier(cfg.Statuses.Vocabulary, cfg.Statuses.SimilarityThreshold)
	if err != nil {
		return Scraper{}, err
	}
	excluded, err := orders.ParseStatuses(cfg.Statuses.Excluded)
	if err != nil {
		return Scraper{}, err
	}

	return Scraper{
		cfg:        cfg,
		page:       page,
		store:      store,
		prompter:   prompter,
		sink:       sink,
		clock:      clock,
		tel:        telemetry.NewScopedAPI("scraper", tel),
		dumps:      dumputil.NewFilesystemOutput(cfg.DebugDir),
		extractor:  extractor,
		classifier: classifier,
		excluded:   excluded,
	}, nil
}

// WithCache serves detail pages of delivered orders from cache when possible. A cache
// miss or error falls back to opening the page.
func (s Scraper) WithCache(cache PageCache) Scraper {
	s.cache = cache
	return s
}

// Run performs a single scrape. The Report is returned even when err != nil so the
// caller can show how far the run got.
func (s Scraper) Run(ctx context.Context, opts RunOptions) (Report, error) {
	ctx, span := tracer.Start(ctx, "Scraper.Run")
	defer span.End()

	report := Report{
		RunID:     uuid.New(),
		StartedAt: s.clock.Now(),
		Since:     opts.Since,
	}
	span.SetAttributes(attribute.String("run_id", report.RunID.String()))

	err := s.run(ctx, opts, &report)
	report.FinishedAt = s.clock.Now()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		report.Snapshot = s.snapshot(ctx, report.RunID)
		return report, err
	}
	return report, nil
}

func (s Scraper) run(ctx context.Context, opts RunOptions, report *Report) error {
	machine := auth.NewMachine(s.page, s.store, s.prompter, s.clock, s.tel, s.cfg.authOptions(opts.ForceRelogin))
	authResult, err := machine.Run(ctx)
	if err != nil {
		return err
	}
	report.Restored = authResult.Restored
	report.SessionPersisted = authResult.SessionPersisted

	err = s.openHistory(ctx)
	if err != nil {
		return err
	}

	loader := scroll.NewLoader(s.page, s.extractor.Probe(), s.tel, s.cfg.loaderOptions())
	loaded, err := loader.Load(ctx, opts.Since)
	if err != nil {
		return err
	}
	report.Entries = loaded.Entries
	report.ScrollIterations = loaded.Iterations
	report.ScrollStalls = loaded.Stalls
	report.StopReason = loaded.Reason

	summaries, extractReport, err := s.extractor.Extract(ctx, loaded.Markup, extract.Summary)
	if err != nil {
		return err
	}
	report.Extracted = len(summaries)
	report.Skipped = append(report.Skipped, extractReport.Skipped...)

	normalizer := orders.NewNormalizer(s.classifier, opts.Since, s.excluded)
	if opts.Details {
		summaries = s.enrich(ctx, normalizer, summaries, report)
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	rs := orders.NewResultSet()
	report.Merge = normalizer.Merge(rs, summaries)

	list := rs.Orders()
	err = s.sink.Write(ctx, list)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	report.Exported = len(list)
	s.tel.ReportCount(report_scraper_exported, int64(len(list)))
	return nil
}

// openHistory goes to the order history through the profile menu like a user would,
// falling back to the orders url when the menu does not cooperate.
func (s Scraper) openHistory(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Scraper.openHistory")
	defer span.End()

	sel := s.cfg.Selectors
	timeout := s.cfg.Timeouts.Navigation.Duration()

	err := s.throughMenu(ctx, sel, timeout)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	s.tel.ReportWarning(report_scraper_history, fmt.Errorf("profile menu: %w", err))

	if s.cfg.OrdersURL == "" {
		return fmt.Errorf("%w: %w", ErrHistoryUnavailable, err)
	}
	err = s.page.Navigate(ctx, s.cfg.OrdersURL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrHistoryUnavailable, err)
	}
	return nil
}

func (s Scraper) throughMenu(ctx context.Context, sel SelectorConfig, timeout time.Duration) error {
	if sel.ProfileMenu == "" || sel.OrdersLink == "" {
		return fmt.Errorf("menu selectors are not configured")
	}
	err := s.page.WaitFor(ctx, sel.ProfileMenu, timeout)
	if err != nil {
		return err
	}
	err = s.page.Click(ctx, sel.ProfileMenu)
	if err != nil {
		return err
	}
	err = s.page.WaitFor(ctx, sel.OrdersLink, timeout)
	if err != nil {
		return err
	}
	err = s.page.Click(ctx, sel.OrdersLink)
	if err != nil {
		return err
	}
	if sel.OrdersHeading == "" {
		return nil
	}
	return s.page.WaitFor(ctx, sel.OrdersHeading, timeout)
}

// enrich replaces every admissible summary with its detail page's content. Orders
// that would be discarded by the merge anyway are not opened.
func (s Scraper) enrich(ctx context.Context, normalizer orders.Normalizer, summaries []orders.Order, report *Report) []orders.Order {
	ctx, span := tracer.Start(ctx, "Scraper.enrich")
	defer span.End()

	out := make([]orders.Order, len(summaries))
	copy(out, summaries)

	opened := map[string]bool{}
	for i, summary := range summaries {
		if ctx.Err() != nil {
			return out
		}
		normalized := normalizer.Normalize(summary)
		if normalizer.Admit(normalized) != orders.Admitted || opened[normalized.ID] {
			continue
		}
		opened[normalized.ID] = true

		detailed, err := s.detail(ctx, normalized, report)
		if err != nil {
			if ctx.Err() != nil {
				return out
			}
			report.DetailFailures++
			s.tel.ReportWarning(report_scraper_detail, err, normalized.ID)
			continue
		}
		out[i] = detailed
	}

	span.SetAttributes(
		attribute.Int("opened", len(opened)),
		attribute.Int("failures", report.DetailFailures),
		attribute.Int("cache_hits", report.DetailCacheHits),
	)
	return out
}

func (s Scraper) detail(ctx context.Context, summary orders.Order, report *Report) (orders.Order, error) {
	url := s.cfg.detailURL(summary)
	if url == "" {
		return summary, fmt.Errorf("order %s has no detail page", summary.ID)
	}

	cacheable := s.cache != nil && summary.Status == orders.StatusDelivered
	markup, cached := "", false
	if cacheable {
		markup, cached = s.cachedDetail(ctx, url)
	}
	if cached {
		report.DetailCacheHits++
	} else {
		var err error
		markup, err = s.loadDetail(ctx, url)
		if err != nil {
			return summary, err
		}
	}

	found, detailReport, err := s.extractor.Extract(ctx, markup, extract.Detail)
	if err != nil {
		return summary, err
	}
	for _, skip := range detailReport.Skipped {
		if skip.Item >= 0 {
			continue
		}
		s.tel.ReportDebug("detail entry skipped", summary.ID, skip.String())
	}

	var detail orders.Order
	switch {
	case len(found) == 0:
		return summary, fmt.Errorf("no order found on %s", url)
	case len(found) == 1:
		detail = found[0]
	default:
		matched := false
		for _, o := range found {
			if o.ID == summary.ID {
				detail = o
				matched = true
				break
			}
		}
		if !matched {
			return summary, fmt.Errorf("order %s not found on %s", summary.ID, url)
		}
	}
	if detail.ID != summary.ID {
		return summary, fmt.Errorf("detail page %s shows order %s", url, detail.ID)
	}
	if cacheable && !cached {
		err = s.cache.Set(ctx, url, markup)
		if err != nil {
			s.tel.ReportWarning(report_scraper_cache, fmt.Errorf("store %s: %w", url, err))
		}
	}
	return mergeDetail(summary, detail), nil
}

func (s Scraper) loadDetail(ctx context.Context, url string) (string, error) {
	err := s.page.Navigate(ctx, url)
	if err != nil {
		return "", err
	}
	if s.cfg.Selectors.DetailReady != "" {
		err = s.page.WaitFor(ctx, s.cfg.Selectors.DetailReady, s.cfg.Timeouts.Detail.Duration())
		if err != nil {
			return "", err
		}
	}
	return s.page.Markup(ctx)
}

func (s Scraper) cachedDetail(ctx context.Context, url string) (string, bool) {
	markup, err := s.cache.Get(ctx, url)
	if errors.Is(err, pagecache.ErrMiss) {
		return "", false
	}
	if err != nil {
		s.tel.ReportWarning(report_scraper_cache, fmt.Errorf("read %s: %w", url, err))
		return "", false
	}
	return markup, true
}

// mergeDetail keeps the summary's identity and date and fills in what the detail
// page knows better.
func mergeDetail(summary, detail orders.Order) orders.Order {
	out := summary.Clone()
	if len(detail.Items) > 0 {
		out.Items = append([]orders.LineItem(nil), detail.Items...)
		out.ItemCount = len(detail.Items)
	}
	if out.Total.IsZero() && !detail.Total.IsZero() {
		out.Total = detail.Total
	}
	if out.RawStatus == "" {
		out.RawStatus = detail.RawStatus
	}
	if out.DeliveryMinutes == nil && detail.DeliveryMinutes != nil {
		minutes := *detail.DeliveryMinutes
		out.DeliveryMinutes = &minutes
	}
	return out
}

// snapshot writes the markup (and a screenshot when possible) of the page the run
// failed on into the debug directory.
func (s Scraper) snapshot(ctx context.Context, runID uuid.UUID) string {
	if errors.Is(ctx.Err(), context.Canceled) {
		return ""
	}
	// the run context may have expired, the snapshot gets its own deadline
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	markup, err := s.page.Markup(ctx)
	if err != nil {
		s.tel.ReportWarning(report_scraper_snapshot, fmt.Errorf("read markup: %w", err))
		return ""
	}
	now := s.clock.Now()
	path, err := s.dumps.Write(now, fmt.Sprintf("%s.html", runID), []byte(markup))
	if err != nil {
		s.tel.ReportWarning(report_scraper_snapshot, err)
		return ""
	}

	if shooter, ok := s.page.(browser.Screenshotter); ok {
		png, err := shooter.Screenshot(ctx)
		if err == nil {
			_, err = s.dumps.Write(now, fmt.Sprintf("%s.png", runID), png)
		}
		if err != nil {
			s.tel.ReportWarning(report_scraper_snapshot, fmt.Errorf("screenshot: %w", err))
		}
	}

	trace.SpanFromContext(ctx).AddEvent("snapshot", trace.WithAttributes(attribute.String("path", path)))
	return path
}
