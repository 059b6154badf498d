// Package extract turns rendered order markup into orders.Order values according to
// a per-layout Schema.
package extract

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"orderscraper/internal/assert"
	"orderscraper/internal/components/chrono"
	"orderscraper/internal/components/telemetry"
	"orderscraper/internal/orders"
	"orderscraper/internal/scroll"
	"orderscraper/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("orderscraper/internal/extract")

const (
	report_extractor_skip      = "extractor.skip"
	report_extractor_skip_item = "extractor.skip-item"
)

const fragmentLimit = 160

// Skip records an entry (or line item) that could not be extracted.
type Skip struct {
	// Index is the position of the entry in the markup, Item is the position of the
	// line item inside it or -1 when the whole entry was skipped.
	Index    int
	Item     int
	Reason   string
	Fragment string
}

func (s Skip) String() string {
	if s.Item >= 0 {
		return fmt.Sprintf("entry %d item %d: %s", s.Index, s.Item, s.Reason)
	}
	return fmt.Sprintf("entry %d: %s", s.Index, s.Reason)
}

type Report struct {
	Entries int
	Skipped []Skip
}

// SkippedEntries counts the entries that were dropped entirely.
func (r Report) SkippedEntries() int {
	count := 0
	for _, s := range r.Skipped {
		if s.Item < 0 {
			count++
		}
	}
	return count
}

type Extractor struct {
	schemas map[Layout]compiledSchema
	base    *url.URL
	clock   chrono.API
	tel     telemetry.API
}

// NewExtractor validates the schemas, `baseURL` resolves relative detail links.
func NewExtractor(summary, detail Schema, baseURL string, clock chrono.API, tel telemetry.API) (Extractor, error) {
	assert.NotNil(clock, "clock")
	assert.NotNil(tel, "telemetry")

	base, err := url.Parse(baseURL)
	if err != nil {
		return Extractor{}, fmt.Errorf("parse base url: %w", err)
	}

	schemas := map[Layout]compiledSchema{}
	for layout, schema := range map[Layout]Schema{Summary: summary, Detail: detail} {
		compiled, err := compileSchema(layout, schema)
		if err != nil {
			return Extractor{}, err
		}
		schemas[layout] = compiled
	}

	return Extractor{
		schemas: schemas,
		base:    base,
		clock:   clock,
		tel:     telemetry.NewScopedAPI("extract", tel),
	}, nil
}

func (e Extractor) value(schema compiledSchema, root *goquery.Selection, f Field) (string, bool) {
	if f.IsZero() {
		return "", false
	}
	sel := root
	if f.Selector != "" {
		sel = root.Find(f.Selector).First()
	}
	if sel.Length() == 0 {
		return "", false
	}

	var text string
	if f.Attr != "" {
		attr, ok := sel.Attr(f.Attr)
		if !ok {
			return "", false
		}
		text = strings.TrimSpace(attr)
	} else {
		text = htmlutil.Text(sel)
	}

	if f.Pattern != "" {
		m := schema.patterns[f.Pattern].FindStringSubmatch(text)
		if m == nil {
			return "", false
		}
		text = m[0]
		if len(m) > 1 {
			text = m[1]
		}
	}
	return text, text != ""
}

func (e Extractor) resolve(href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return e.base.ResolveReference(ref).String()
}

func (e Extractor) items(schema compiledSchema, root *goquery.Selection, index int, report *Report) []orders.LineItem {
	if schema.Item == "" {
		return nil
	}

	var items []orders.LineItem
	root.Find(schema.Item).Each(func(i int, sel *goquery.Selection) {
		name, ok := e.value(schema, sel, schema.ItemName)
		if !ok {
			e.skip(report, Skip{Index: index, Item: i, Reason: "missing item name", Fragment: htmlutil.Fragment(sel, fragmentLimit)})
			return
		}

		item := orders.LineItem{Name: name, Quantity: 1}
		if text, ok := e.value(schema, sel, schema.ItemPrice); ok {
			price, err := orders.ParseAmount(text)
			if err != nil {
				e.skip(report, Skip{Index: index, Item: i, Reason: err.Error(), Fragment: htmlutil.Fragment(sel, fragmentLimit)})
				return
			}
			item.Price = price
		}
		if text, ok := e.value(schema, sel, schema.ItemQuantity); ok {
			if quantity, ok := ParseCount(text); ok && quantity > 0 {
				item.Quantity = quantity
			}
		}
		items = append(items, item)
	})
	return items
}

func (e Extractor) skip(report *Report, s Skip) {
	report.Skipped = append(report.Skipped, s)
	if s.Item >= 0 {
		e.tel.ReportWarning(report_extractor_skip_item, s.String(), s.Fragment)
		return
	}
	e.tel.ReportWarning(report_extractor_skip, s.String(), s.Fragment)
}

func (e Extractor) entry(schema compiledSchema, root *goquery.Selection, index int, now time.Time, report *Report) (orders.Order, bool) {
	skip := func(reason string) (orders.Order, bool) {
		e.skip(report, Skip{Index: index, Item: -1, Reason: reason, Fragment: htmlutil.Fragment(root, fragmentLimit)})
		return orders.Order{}, false
	}

	id, ok := e.value(schema, root, schema.ID)
	if !ok {
		return skip("missing order id")
	}

	dateText, ok := e.value(schema, root, schema.Date)
	if !ok {
		return skip("missing order date")
	}
	placedAt, err := ParseDate(dateText, schema.DateLayouts, schema.StripPrefixes, now)
	if err != nil {
		return skip(err.Error())
	}

	o := orders.Order{ID: id, PlacedAt: placedAt}
	o.Items = e.items(schema, root, index, report)

	if text, ok := e.value(schema, root, schema.Total); ok {
		total, err := orders.ParseAmount(text)
		if err != nil {
			return skip(err.Error())
		}
		o.Total = total
	} else if len(o.Items) > 0 {
		for _, item := range o.Items {
			o.Total = o.Total.Add(item.Price)
		}
	} else {
		return skip("missing order total")
	}

	if text, ok := e.value(schema, root, schema.Status); ok {
		o.RawStatus = text
	}
	if text, ok := e.value(schema, root, schema.ItemCount); ok {
		if count, ok := ParseCount(text); ok {
			o.ItemCount = count
		}
	}
	if text, ok := e.value(schema, root, schema.Delivery); ok {
		if minutes, ok := ParseMinutes(text); ok {
			o.DeliveryMinutes = &minutes
		}
	}
	if href, ok := e.value(schema, root, schema.DetailLink); ok {
		o.DetailURL = e.resolve(href)
	}
	return o, true
}

// Extract parses every entry of the layout out of the markup. Entries that cannot be
// parsed are skipped and listed in the Report, the rest of the batch continues.
func (e Extractor) Extract(ctx context.Context, markup string, layout Layout) ([]orders.Order, Report, error) {
	_, span := tracer.Start(ctx, "Extractor.Extract")
	defer span.End()
	span.SetAttributes(attribute.String("layout", layout.String()))

	schema, ok := e.schemas[layout]
	if !ok {
		return nil, Report{}, fmt.Errorf("unknown layout %s", layout)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, Report{}, err
	}

	now := e.clock.Now()
	var report Report
	var out []orders.Order
	doc.Find(schema.Entry).Each(func(i int, sel *goquery.Selection) {
		report.Entries++
		o, ok := e.entry(schema, sel, i, now, &report)
		if ok {
			out = append(out, o)
		}
	})

	span.SetAttributes(
		attribute.Int("entries", report.Entries),
		attribute.Int("skipped", len(report.Skipped)),
	)
	return out, report, nil
}

// Probe measures the summary layout for the scroll loader: the number of rendered
// entries and the oldest date that can be parsed.
func (e Extractor) Probe() scroll.Probe {
	schema := e.schemas[Summary]
	return scroll.ProbeFunc(func(markup string) (scroll.Measurement, error) {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
		if err != nil {
			return scroll.Measurement{}, err
		}

		now := e.clock.Now()
		var m scroll.Measurement
		doc.Find(schema.Entry).Each(func(_ int, sel *goquery.Selection) {
			m.Entries++
			text, ok := e.value(schema, sel, schema.Date)
			if !ok {
				return
			}
			placedAt, err := ParseDate(text, schema.DateLayouts, schema.StripPrefixes, now)
			if err != nil {
				return
			}
			if m.Oldest.IsZero() || placedAt.Before(m.Oldest) {
				m.Oldest = placedAt
			}
		})
		return m, nil
	})
}
