package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("orderscraper/lib/browser")

type ChromeOptions struct {
	Headless bool
	// ExecPath is the chrome binary, empty lets chromedp find one.
	ExecPath  string
	UserAgent string
	Width     int
	Height    int
	// ActionTimeout bounds every action that does not take its own timeout (clicks, typing...).
	ActionTimeout time.Duration
}

// Chrome implements Page on top of a chromedp controlled chrome instance.
type Chrome struct {
	ctx           context.Context
	cancel        func()
	actionTimeout time.Duration
}

func NewChrome(ctx context.Context, opts ChromeOptions) (*Chrome, error) {
	allocOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.Width > 0 && opts.Height > 0 {
		allocOpts = append(allocOpts, chromedp.WindowSize(opts.Width, opts.Height))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	chromeCtx, cancelChrome := chromedp.NewContext(allocCtx)

	// the first Run starts the browser, it must happen on the long lived context
	// or the browser is torn down together with the first action's context.
	err := chromedp.Run(chromeCtx)
	if err != nil {
		cancelChrome()
		cancelAlloc()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	actionTimeout := opts.ActionTimeout
	if actionTimeout <= 0 {
		actionTimeout = 30 * time.Second
	}

	return &Chrome{
		ctx: chromeCtx,
		cancel: func() {
			cancelChrome()
			cancelAlloc()
		},
		actionTimeout: actionTimeout,
	}, nil
}

func (c *Chrome) Close() {
	c.cancel()
}

// run executes the actions on the browser context, bounded by `timeout` and by the caller's ctx.
func (c *Chrome) run(ctx context.Context, name string, timeout time.Duration, actions ...chromedp.Action) error {
	ctx, span := tracer.Start(ctx, name)
	defer span.End()

	runCtx, cancel := context.WithTimeout(c.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "browser action failed")
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%s: %w", name, ErrTimeout)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func (c *Chrome) Navigate(ctx context.Context, url string) error {
	trace.SpanFromContext(ctx).AddEvent("navigate", trace.WithAttributes(attribute.String("url", url)))
	return c.run(ctx, "navigate", c.actionTimeout*2, chromedp.Navigate(url))
}

func (c *Chrome) Click(ctx context.Context, selector string) error {
	return c.run(ctx, "click", c.actionTimeout, chromedp.Click(selector, chromedp.BySearch))
}

func (c *Chrome) Type(ctx context.Context, selector, text string) error {
	return c.run(
		ctx, "type", c.actionTimeout,
		chromedp.Focus(selector, chromedp.BySearch),
		chromedp.SendKeys(selector, text, chromedp.BySearch),
	)
}

func (c *Chrome) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	return c.run(ctx, "wait-for", timeout, chromedp.WaitVisible(selector, chromedp.BySearch))
}

func (c *Chrome) Markup(ctx context.Context) (string, error) {
	var html string
	err := c.run(ctx, "markup", c.actionTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (c *Chrome) ScrollToBottom(ctx context.Context) error {
	var height float64
	return c.run(
		ctx, "scroll-to-bottom", c.actionTimeout,
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight); document.body.scrollHeight`, &height),
	)
}

func (c *Chrome) URL(ctx context.Context) (string, error) {
	var location string
	err := c.run(ctx, "url", c.actionTimeout, chromedp.Location(&location))
	return location, err
}

// Screenshot captures the whole page as a png, it is used for post-mortem debugging.
func (c *Chrome) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := c.run(ctx, "screenshot", c.actionTimeout, chromedp.FullScreenshot(&buf, 90))
	return buf, err
}

func (c *Chrome) Cookies(ctx context.Context) ([]Cookie, error) {
	var out []Cookie
	err := c.run(ctx, "cookies", c.actionTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		cookies, err := network.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		for _, ck := range cookies {
			cookie := Cookie{
				Name:     ck.Name,
				Value:    ck.Value,
				Domain:   ck.Domain,
				Path:     ck.Path,
				HTTPOnly: ck.HTTPOnly,
				Secure:   ck.Secure,
				SameSite: string(ck.SameSite),
			}
			if !ck.Session && ck.Expires > 0 {
				cookie.Expires = time.Unix(int64(ck.Expires), 0)
			}
			out = append(out, cookie)
		}
		return nil
	}))
	return out, err
}

func (c *Chrome) SetCookies(ctx context.Context, cookies []Cookie) error {
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, ck := range cookies {
		param := &network.CookieParam{
			Name:     ck.Name,
			Value:    ck.Value,
			Domain:   ck.Domain,
			Path:     ck.Path,
			Secure:   ck.Secure,
			HTTPOnly: ck.HTTPOnly,
		}
		if ck.SameSite != "" {
			param.SameSite = network.CookieSameSite(ck.SameSite)
		}
		if !ck.Expires.IsZero() {
			expires := cdp.TimeSinceEpoch(ck.Expires)
			param.Expires = &expires
		}
		params = append(params, param)
	}
	return c.run(ctx, "set-cookies", c.actionTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		return network.SetCookies(params).Do(ctx)
	}))
}

func (c *Chrome) Storage(ctx context.Context) (map[string]string, error) {
	var serialized string
	err := c.run(
		ctx, "storage", c.actionTimeout,
		chromedp.Evaluate(`JSON.stringify(Object.assign({}, window.localStorage))`, &serialized),
	)
	if err != nil {
		return nil, err
	}
	values := map[string]string{}
	err = json.Unmarshal([]byte(serialized), &values)
	if err != nil {
		return nil, fmt.Errorf("decode local storage: %w", err)
	}
	return values, nil
}

func (c *Chrome) SetStorage(ctx context.Context, values map[string]string) error {
	serialized, err := json.Marshal(values)
	if err != nil {
		return err
	}
	var written int
	script := fmt.Sprintf(
		`(function (v) { for (const k in v) { window.localStorage.setItem(k, v[k]); } return Object.keys(v).length; })(%s)`,
		serialized,
	)
	return c.run(ctx, "set-storage", c.actionTimeout, chromedp.Evaluate(script, &written))
}
