// Package browser is the browsing-context capability the scraper drives: navigation,
// form interaction, bounded waits and access to the rendered markup.
package browser

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned by WaitFor when the selector did not render in time.
var ErrTimeout = errors.New("timed out waiting for element")

type Cookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Domain   string    `json:"domain"`
	Path     string    `json:"path"`
	Expires  time.Time `json:"expires,omitempty"`
	HTTPOnly bool      `json:"http_only"`
	Secure   bool      `json:"secure"`
	SameSite string    `json:"same_site,omitempty"`
}

// Page is a single browsing context. Selectors may be CSS selectors, XPath
// expressions or plain text, whatever the implementation's search supports.
//
// note: fault injection point
type Page interface {
	Navigate(ctx context.Context, url string) error
	Click(ctx context.Context, selector string) error
	Type(ctx context.Context, selector, text string) error
	// WaitFor blocks until the selector is visible, returns ErrTimeout (wrapped) after `timeout`.
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error
	// Markup returns the current rendered html of the whole document.
	Markup(ctx context.Context) (string, error)
	ScrollToBottom(ctx context.Context) error
	URL(ctx context.Context) (string, error)

	Cookies(ctx context.Context) ([]Cookie, error)
	SetCookies(ctx context.Context, cookies []Cookie) error
	// Storage returns the localStorage of the current origin.
	Storage(ctx context.Context) (map[string]string, error)
	SetStorage(ctx context.Context, values map[string]string) error
}

// WaitAny waits for the first of several selectors to become visible and returns its index.
// All selectors share the same deadline, ErrTimeout is returned when none renders.
func WaitAny(ctx context.Context, page Page, timeout time.Duration, poll time.Duration, selectors ...string) (int, error) {
	deadline := time.Now().Add(timeout)
	for {
		for i, sel := range selectors {
			err := page.WaitFor(ctx, sel, poll)
			if err == nil {
				return i, nil
			}
			if !errors.Is(err, ErrTimeout) {
				return -1, err
			}
		}
		if !time.Now().Before(deadline) {
			return -1, ErrTimeout
		}
		if ctx.Err() != nil {
			return -1, ctx.Err()
		}
	}
}

// Screenshotter is implemented by pages that can capture the viewport as a png.
type Screenshotter interface {
	Screenshot(ctx context.Context) ([]byte, error)
}
