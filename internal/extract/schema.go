package extract

import (
	"fmt"
	"regexp"
)

type Layout int

const (
	// Summary is an entry of the order history list.
	Summary Layout = iota
	// Detail is the page of a single order.
	Detail
)

func (l Layout) String() string {
	switch l {
	case Summary:
		return "summary"
	case Detail:
		return "detail"
	}
	return fmt.Sprintf("layout(%d)", int(l))
}

// Field locates a single value inside an entry.
//
//   - Selector is a CSS selector relative to the entry, empty means the entry itself.
//   - Attr reads an attribute instead of the text content.
//   - Pattern is a regular expression applied to the value, the first capture group
//     (or the whole match when there is none) becomes the value.
//
// A zero Field is not extracted.
type Field struct {
	Selector string `json:"selector,omitempty"`
	Attr     string `json:"attr,omitempty"`
	Pattern  string `json:"pattern,omitempty"`
}

func (f Field) IsZero() bool {
	return f.Selector == "" && f.Attr == "" && f.Pattern == ""
}

// Schema describes where the fields of an order are in a layout's markup, markup
// changes on the site are handled by editing the schema.
type Schema struct {
	Entry      string `json:"entry"`
	ID         Field  `json:"id"`
	Date       Field  `json:"date"`
	Status     Field  `json:"status"`
	Total      Field  `json:"total"`
	ItemCount  Field  `json:"item_count"`
	Delivery   Field  `json:"delivery"`
	DetailLink Field  `json:"detail_link"`

	Item         string `json:"item"`
	ItemName     Field  `json:"item_name"`
	ItemPrice    Field  `json:"item_price"`
	ItemQuantity Field  `json:"item_quantity"`

	// DateLayouts are time.Parse layouts tried in order, layouts without a year
	// get the most recent past occurrence.
	DateLayouts []string `json:"date_layouts"`
	// StripPrefixes are removed (case insensitively) from the date text before parsing.
	StripPrefixes []string `json:"strip_prefixes"`
}

// DefaultDateLayouts cover the ways the storefront renders an order date, values are
// lowercased before parsing so "PM" and "pm" both match.
var DefaultDateLayouts = []string{
	"2 Jan 2006, 3:04 pm",
	"2 Jan 2006 3:04 pm",
	"2 Jan, 3:04 pm",
	"2 Jan 3:04 pm",
	"Jan 2 2006, 3:04 pm",
	"Jan 2, 2006, 3:04 pm",
	"Jan 2, 3:04 pm",
	"2 Jan 2006",
	"2 January 2006",
	"Jan 2, 2006",
	"2006-01-02 15:04",
	"2006-01-02",
	"2 Jan",
	"2 January",
	"Jan 2",
}

var DefaultStripPrefixes = []string{"ordered on", "placed on", "order placed on"}

func DefaultSummarySchema() Schema {
	return Schema{
		Entry: `div[class*="order-card-wrapper"]`,
		ID: Field{
			Selector: `a[href*="/order/"]`,
			Attr:     "href",
			Pattern:  `/order/([^/?#]+)`,
		},
		Date:       Field{Selector: `div[class*="order-date-formated"]`},
		Status:     Field{Selector: `[class*="order-status"]`},
		Total:      Field{Selector: `[class*="order-total"]`},
		ItemCount:  Field{Selector: `[class*="item-count"]`, Pattern: `(\d+)`},
		Delivery:   Field{Selector: `[class*="delivery-time"]`},
		DetailLink: Field{Selector: `a[href*="/order/"]`, Attr: "href"},

		Item:         `div[class*="order-item"]`,
		ItemName:     Field{Selector: `p[class*="product-title"]`},
		ItemPrice:    Field{Selector: `span[class*="price"]`},
		ItemQuantity: Field{Selector: `[class*="quantity"]`, Pattern: `(\d+)`},

		DateLayouts:   DefaultDateLayouts,
		StripPrefixes: DefaultStripPrefixes,
	}
}

func DefaultDetailSchema() Schema {
	return Schema{
		Entry:    `div[class*="order-details"]`,
		ID:       Field{Selector: `[class*="order-id"]`, Pattern: `(?i)order\s*id[:#\s]*([A-Za-z0-9-]+)`},
		Date:     Field{Selector: `[class*="order-placed"]`},
		Status:   Field{Selector: `[class*="order-status"]`},
		Total:    Field{Selector: `[class*="bill-total"]`},
		Delivery: Field{Selector: `[class*="delivery-time"]`},

		Item:         `div[class*="product-row"]`,
		ItemName:     Field{Selector: `[class*="product-name"]`},
		ItemPrice:    Field{Selector: `[class*="product-price"]`},
		ItemQuantity: Field{Selector: `[class*="product-quantity"]`, Pattern: `(\d+)`},

		DateLayouts:   DefaultDateLayouts,
		StripPrefixes: DefaultStripPrefixes,
	}
}

type compiledSchema struct {
	Schema
	patterns map[string]*regexp.Regexp
}

func compileSchema(layout Layout, schema Schema) (compiledSchema, error) {
	if schema.Entry == "" {
		return compiledSchema{}, fmt.Errorf("%s schema: entry selector is required", layout)
	}
	if schema.ID.IsZero() {
		return compiledSchema{}, fmt.Errorf("%s schema: id field is required", layout)
	}
	if schema.Date.IsZero() {
		return compiledSchema{}, fmt.Errorf("%s schema: date field is required", layout)
	}
	if len(schema.DateLayouts) == 0 {
		schema.DateLayouts = DefaultDateLayouts
	}

	compiled := compiledSchema{Schema: schema, patterns: map[string]*regexp.Regexp{}}
	fields := []Field{
		schema.ID, schema.Date, schema.Status, schema.Total, schema.ItemCount,
		schema.Delivery, schema.DetailLink, schema.ItemName, schema.ItemPrice,
		schema.ItemQuantity,
	}
	for _, f := range fields {
		if f.Pattern == "" {
			continue
		}
		if _, ok := compiled.patterns[f.Pattern]; ok {
			continue
		}
		re, err := regexp.Compile(f.Pattern)
		if err != nil {
			return compiledSchema{}, fmt.Errorf("%s schema: pattern '%s': %w", layout, f.Pattern, err)
		}
		compiled.patterns[f.Pattern] = re
	}
	return compiled, nil
}
