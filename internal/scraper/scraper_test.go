package scraper

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"orderscraper/internal/auth"
	"orderscraper/internal/components/chrono"
	"orderscraper/internal/components/telemetry"
	"orderscraper/internal/orders"
	"orderscraper/internal/pagecache"
	"orderscraper/internal/scroll"
	"orderscraper/internal/session"
	"orderscraper/lib/browser"
	"orderscraper/lib/browser/browsertest"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
)

var ist = time.FixedZone("IST", 5*60*60+30*60)

var testClock = chrono.FixedImpl{At: time.Date(2025, time.August, 20, 10, 0, 0, 0, ist)}

var since = time.Date(2025, time.August, 1, 0, 0, 0, 0, ist)

const testBase = "https://blinkit.test"

func testConfig(t *testing.T) Config {
	cfg := DefaultConfig()
	cfg.BaseURL = testBase
	cfg.OrdersURL = testBase + "/account/orders"
	cfg.DetailURLTemplate = testBase + "/order/{id}"
	cfg.Location = ""
	cfg.DebugDir = filepath.Join(t.TempDir(), "debug")
	cfg.Selectors = SelectorConfig{
		Selectors: auth.Selectors{
			Landmark:       "#profile",
			LoginButton:    "#login",
			PhoneInput:     "#phone",
			ContinueButton: "#continue",
			OTPScreen:      "#otp-screen",
			OTPInput:       "#otp",
			OTPError:       "#otp-error",
		},
		ProfileMenu:   "#profile",
		OrdersLink:    "#orders-link",
		OrdersHeading: "#orders-heading",
		OrderList:     "#order-list",
		DetailReady:   "#detail",
	}
	cfg.Timeouts = TimeoutConfig{
		Restore: 1, LoginUI: 1, OTPScreen: 1, Login: 5, Location: 1,
		Navigation: 1, Container: 1, Detail: 1, Poll: 1,
	}
	cfg.Scroll = ScrollConfig{MaxIterations: 20, StallLimit: 1, PollInterval: 1, StepTimeout: 5}
	return cfg
}

type card struct {
	id     string
	date   time.Time
	status string
}

func (c card) html() string {
	if c.date.IsZero() {
		return fmt.Sprintf(`<div class="order-card-wrapper"><a href="/order/%s">View</a><span class="order-total">₹10.00</span></div>`, c.id)
	}
	return fmt.Sprintf(
		`<div class="order-card-wrapper"><a href="/order/%s">View</a>`+
			`<div class="order-date-formated">Ordered on %s</div>`+
			`<span class="order-status">%s</span><span class="order-total">₹134.00</span>`+
			`<span class="item-count">2 items</span></div>`,
		c.id, c.date.Format("2 Jan 2006, 3:04 pm"), c.status,
	)
}

func august(day int) time.Time {
	return time.Date(2025, time.August, day, 10, 0, 0, 0, ist)
}

// historyCards renders 17 cards: ORD1..ORD12 in August (ORD5 cancelled), a malformed
// card, ORD3 a second time and three July orders at the bottom.
func historyCards() []card {
	var cards []card
	for i := 1; i <= 12; i++ {
		status := "Delivered"
		if i == 5 {
			status = "Cancelled"
		}
		cards = append(cards, card{id: fmt.Sprintf("ORD%d", i), date: august(20 - i), status: status})
		if i == 5 {
			cards = append(cards, card{id: "BAD"})
		}
	}
	cards = append(cards, card{id: "ORD3", date: august(17), status: "Delivered"})
	for i := 0; i < 3; i++ {
		cards = append(cards, card{
			id:     fmt.Sprintf("JUL%d", i),
			date:   time.Date(2025, time.July, 30-i, 10, 0, 0, 0, ist),
			status: "Delivered",
		})
	}
	return cards
}

func detailHTML(id string) string {
	return fmt.Sprintf(
		`<html><body><div class="order-details"><div class="order-id">Order ID: %s</div>`+
			`<div class="order-placed">Placed on 1 Aug 2025</div><div class="bill-total">₹134.00</div>`+
			`<div class="product-row"><span class="product-name">Milk</span><span class="product-quantity">2</span><span class="product-price">₹54.00</span></div>`+
			`<div class="product-row"><span class="product-name">Bread</span><span class="product-price">₹40.00</span></div>`+
			`</div></body></html>`,
		id,
	)
}

// storefront scripts an authenticated site whose order history grows by 6 cards per scroll.
func storefront(cards []card) *browsertest.Page {
	page := browsertest.NewPage()
	page.Show("#profile")
	page.OnClick["#profile"] = func(p *browsertest.Page) {
		p.Show("#orders-link")
	}
	page.OnClick["#orders-link"] = func(p *browsertest.Page) {
		p.Show("#orders-heading", "#order-list")
	}

	shown := 6
	page.OnScroll = func(p *browsertest.Page) {
		shown = min(shown+6, len(cards))
	}
	page.OnNavigate = func(p *browsertest.Page, url string) {
		if strings.Contains(url, "/order/") {
			p.Show("#detail")
		}
	}
	page.Render = func() string {
		url, _ := page.URL(context.Background())
		if strings.Contains(url, "/order/") {
			return detailHTML(url[strings.LastIndex(url, "/")+1:])
		}
		var sb strings.Builder
		sb.WriteString(`<html><body><div id="order-list">`)
		for _, c := range cards[:shown] {
			sb.WriteString(c.html())
		}
		sb.WriteString(`</div></body></html>`)
		return sb.String()
	}
	return page
}

type recordingSink struct {
	calls  int
	orders []orders.Order
	err    error
}

func (s *recordingSink) Write(ctx context.Context, list []orders.Order) error {
	s.calls++
	s.orders = list
	return s.err
}

func restoringStore(ctrl *gomock.Controller) *session.MockStore {
	store := session.NewMockStore(ctrl)
	store.EXPECT().Load(gomock.Any()).Return(session.NewBundle(testClock.At, testBase, nil, nil), nil)
	return store
}

func orderIDs(list []orders.Order) []string {
	ids := make([]string, len(list))
	for i, o := range list {
		ids[i] = o.ID
	}
	return ids
}

func TestRun(t *testing.T) {
	ctrl := gomock.NewController(t)
	page := storefront(historyCards())
	sink := &recordingSink{}

	s, err := NewScraper(testConfig(t), page, restoringStore(ctrl), auth.NewMockPrompter(ctrl), sink, testClock, &telemetry.Recorder{})
	require.NoError(t, err)

	report, err := s.Run(context.Background(), RunOptions{Since: since})
	require.NoError(t, err)

	require.True(t, report.Restored)
	require.Equal(t, scroll.StopReachedDate, report.StopReason)
	require.Equal(t, 2, report.ScrollIterations)
	require.Equal(t, 17, report.Entries)
	require.Equal(t, 16, report.Extracted)
	require.Equal(t, 1, report.SkippedEntries())
	require.Equal(t, orders.MergeStats{Added: 11, Excluded: 1, TooOld: 3, Duplicate: 1}, report.Merge)
	require.Equal(t, 11, report.Exported)
	require.Empty(t, report.Snapshot)

	require.Equal(t, 1, sink.calls)
	require.Equal(t, []string{
		"ORD1", "ORD2", "ORD3", "ORD4", "ORD6", "ORD7", "ORD8", "ORD9", "ORD10", "ORD11", "ORD12",
	}, orderIDs(sink.orders))
	for _, o := range sink.orders {
		require.False(t, o.PlacedAt.Before(since))
		require.Equal(t, orders.StatusDelivered, o.Status)
		require.Empty(t, o.Items, "details were not requested")
	}
	require.Zero(t, page.CountCalls("navigate:"+testBase+"/order/"))
}

func TestRunWithDetails(t *testing.T) {
	ctrl := gomock.NewController(t)
	page := storefront(historyCards())
	prev := page.OnNavigate
	page.OnNavigate = func(p *browsertest.Page, url string) {
		prev(p, url)
		if strings.HasSuffix(url, "/order/ORD2") {
			p.Hide("#detail")
		}
	}
	sink := &recordingSink{}
	tel := &telemetry.Recorder{}

	s, err := NewScraper(testConfig(t), page, restoringStore(ctrl), auth.NewMockPrompter(ctrl), sink, testClock, tel)
	require.NoError(t, err)

	report, err := s.Run(context.Background(), RunOptions{Since: since, Details: true})
	require.NoError(t, err)
	require.Equal(t, 1, report.DetailFailures)
	require.Equal(t, 11, report.Exported)

	// excluded, too old and repeated orders are never opened
	require.Equal(t, 11, page.CountCalls("navigate:"+testBase+"/order/"))

	for _, o := range sink.orders {
		if o.ID == "ORD2" {
			require.Empty(t, o.Items, "a failed detail page keeps the summary")
			continue
		}
		require.Len(t, o.Items, 2, o.ID)
		require.Equal(t, 2, o.Items[0].Quantity)
		require.Equal(t, "Bread", o.Items[1].Name)
		require.Equal(t, 2, o.ItemCount)
		// the card's date wins over the detail page's
		require.Equal(t, 10, o.PlacedAt.Hour())
	}
}

type mapCache struct {
	pages map[string]string
	sets  int
}

func (c *mapCache) Get(ctx context.Context, url string) (string, error) {
	markup, ok := c.pages[url]
	if !ok {
		return "", pagecache.ErrMiss
	}
	return markup, nil
}

func (c *mapCache) Set(ctx context.Context, url, markup string) error {
	c.pages[url] = markup
	c.sets++
	return nil
}

func TestRunWithDetailCache(t *testing.T) {
	cache := &mapCache{pages: map[string]string{}}
	run := func() (Report, *browsertest.Page, *recordingSink) {
		ctrl := gomock.NewController(t)
		page := storefront(historyCards())
		prev := page.OnNavigate
		page.OnNavigate = func(p *browsertest.Page, url string) {
			prev(p, url)
			if strings.HasSuffix(url, "/order/ORD2") {
				p.Hide("#detail")
			}
		}
		sink := &recordingSink{}
		s, err := NewScraper(testConfig(t), page, restoringStore(ctrl), auth.NewMockPrompter(ctrl), sink, testClock, &telemetry.Recorder{})
		require.NoError(t, err)
		report, err := s.WithCache(cache).Run(context.Background(), RunOptions{Since: since, Details: true})
		require.NoError(t, err)
		return report, page, sink
	}

	report, page, _ := run()
	require.Zero(t, report.DetailCacheHits)
	require.Equal(t, 10, cache.sets, "failed pages are not cached")
	require.Equal(t, 11, page.CountCalls("navigate:"+testBase+"/order/"))

	report, page, sink := run()
	require.Equal(t, 10, report.DetailCacheHits)
	require.Equal(t, 1, report.DetailFailures)
	require.Equal(t, 1, page.CountCalls("navigate:"+testBase+"/order/ORD2"))
	require.Equal(t, 1, page.CountCalls("navigate:"+testBase+"/order/"))
	require.Equal(t, 10, cache.sets)
	for _, o := range sink.orders {
		if o.ID != "ORD2" {
			require.Len(t, o.Items, 2, o.ID)
		}
	}
}

func TestRunFallsBackToOrdersURL(t *testing.T) {
	ctrl := gomock.NewController(t)
	page := storefront(historyCards())
	delete(page.OnClick, "#profile")
	prev := page.OnNavigate
	page.OnNavigate = func(p *browsertest.Page, url string) {
		prev(p, url)
		if url == testBase+"/account/orders" {
			p.Show("#order-list")
		}
	}
	tel := &telemetry.Recorder{}

	s, err := NewScraper(testConfig(t), page, restoringStore(ctrl), auth.NewMockPrompter(ctrl), &recordingSink{}, testClock, tel)
	require.NoError(t, err)
	report, err := s.Run(context.Background(), RunOptions{Since: since})
	require.NoError(t, err)
	require.Equal(t, 11, report.Exported)
	require.Equal(t, 1, page.CountCalls("navigate:"+testBase+"/account/orders"))
	require.NotEmpty(t, tel.Filter("warning"))
}

func TestRunContainerNotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	page := storefront(historyCards())
	page.OnClick["#orders-link"] = func(p *browsertest.Page) {
		p.Show("#orders-heading")
	}
	sink := &recordingSink{}
	cfg := testConfig(t)

	s, err := NewScraper(cfg, page, restoringStore(ctrl), auth.NewMockPrompter(ctrl), sink, testClock, &telemetry.Recorder{})
	require.NoError(t, err)
	report, err := s.Run(context.Background(), RunOptions{Since: since})
	require.True(t, errors.Is(err, scroll.ErrContainerNotFound))
	require.Zero(t, sink.calls, "nothing is exported after a fatal error")

	require.NotEmpty(t, report.Snapshot)
	require.True(t, strings.HasPrefix(report.Snapshot, cfg.DebugDir))
	contents, err := os.ReadFile(report.Snapshot)
	require.NoError(t, err)
	require.Contains(t, string(contents), "order-card-wrapper")
}

func TestRunLoginFailed(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := session.NewMockStore(ctrl)
	store.EXPECT().Load(gomock.Any()).Return(session.Bundle{}, session.ErrNoBundle)

	page := browsertest.NewPage()
	sink := &recordingSink{}

	s, err := NewScraper(testConfig(t), page, store, auth.NewMockPrompter(ctrl), sink, testClock, &telemetry.Recorder{})
	require.NoError(t, err)
	_, err = s.Run(context.Background(), RunOptions{Since: since})

	var failed *auth.FailedError
	require.True(t, errors.As(err, &failed))
	require.True(t, errors.Is(err, browser.ErrTimeout))
	require.Zero(t, sink.calls)
}

func TestRunExportFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := &recordingSink{err: errors.New("disk full")}

	s, err := NewScraper(testConfig(t), storefront(historyCards()), restoringStore(ctrl), auth.NewMockPrompter(ctrl), sink, testClock, &telemetry.Recorder{})
	require.NoError(t, err)
	report, err := s.Run(context.Background(), RunOptions{Since: since})
	require.ErrorContains(t, err, "disk full")
	require.Zero(t, report.Exported)
}

func TestReportRender(t *testing.T) {
	report := Report{
		Since:            since,
		Restored:         true,
		ScrollIterations: 4,
		StopReason:       scroll.StopExhausted,
		Merge:            orders.MergeStats{Added: 3, Duplicate: 2},
		Exported:         3,
	}
	var sb strings.Builder
	report.Render(&sb)
	rendered := sb.String()
	require.Contains(t, rendered, "4 (exhausted)")
	require.Contains(t, rendered, "2025-08-01")
}
