// Package browsertest provides an in-memory browser.Page for tests.
package browsertest

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"

	"orderscraper/lib/browser"
)

// Page is a scriptable browser.Page. Elements are "visible" when their selector was
// shown through Show, hooks let a test react to clicks, typing, navigation and scrolling.
type Page struct {
	OnNavigate func(p *Page, url string)
	OnClick    map[string]func(p *Page)
	OnType     func(p *Page, selector, text string)
	OnScroll   func(p *Page)
	// Render produces the markup returned from Markup, it defaults to an empty document.
	Render func() string

	mutex   sync.Mutex
	visible map[string]bool
	calls   []string
	typed   map[string]string
	cookies []browser.Cookie
	storage map[string]string
	url     string
}

func NewPage() *Page {
	return &Page{
		OnClick: map[string]func(p *Page){},
		visible: map[string]bool{},
		typed:   map[string]string{},
		storage: map[string]string{},
	}
}

func (p *Page) record(format string, args ...any) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.calls = append(p.calls, fmt.Sprintf(format, args...))
}

// Show makes the selectors visible to WaitFor.
func (p *Page) Show(selectors ...string) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	for _, s := range selectors {
		p.visible[s] = true
	}
}

func (p *Page) Hide(selectors ...string) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	for _, s := range selectors {
		delete(p.visible, s)
	}
}

// Calls returns every recorded call as "<method>:<argument>".
func (p *Page) Calls() []string {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return append([]string(nil), p.calls...)
}

// CountCalls counts the recorded calls that start with prefix.
func (p *Page) CountCalls(prefix string) int {
	count := 0
	for _, c := range p.Calls() {
		if strings.HasPrefix(c, prefix) {
			count++
		}
	}
	return count
}

// Typed returns the last text typed into selector.
func (p *Page) Typed(selector string) string {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.typed[selector]
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.record("navigate:%s", url)
	p.mutex.Lock()
	p.url = url
	p.mutex.Unlock()
	if p.OnNavigate != nil {
		p.OnNavigate(p, url)
	}
	return nil
}

func (p *Page) Click(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.record("click:%s", selector)
	p.mutex.Lock()
	visible := p.visible[selector]
	hook := p.OnClick[selector]
	p.mutex.Unlock()
	if !visible {
		return fmt.Errorf("click %s: %w", selector, browser.ErrTimeout)
	}
	if hook != nil {
		hook(p)
	}
	return nil
}

func (p *Page) Type(ctx context.Context, selector, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.record("type:%s", selector)
	p.mutex.Lock()
	visible := p.visible[selector]
	if visible {
		p.typed[selector] = text
	}
	p.mutex.Unlock()
	if !visible {
		return fmt.Errorf("type %s: %w", selector, browser.ErrTimeout)
	}
	if p.OnType != nil {
		p.OnType(p, selector, text)
	}
	return nil
}

func (p *Page) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.record("wait:%s", selector)
	p.mutex.Lock()
	visible := p.visible[selector]
	p.mutex.Unlock()
	if !visible {
		return fmt.Errorf("wait %s: %w", selector, browser.ErrTimeout)
	}
	return nil
}

func (p *Page) Markup(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if p.Render == nil {
		return "<html><body></body></html>", nil
	}
	return p.Render(), nil
}

func (p *Page) ScrollToBottom(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.record("scroll:")
	if p.OnScroll != nil {
		p.OnScroll(p)
	}
	return nil
}

func (p *Page) URL(ctx context.Context) (string, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.url, nil
}

func (p *Page) Cookies(ctx context.Context) ([]browser.Cookie, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return append([]browser.Cookie(nil), p.cookies...), nil
}

func (p *Page) SetCookies(ctx context.Context, cookies []browser.Cookie) error {
	p.record("set-cookies:%d", len(cookies))
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.cookies = append([]browser.Cookie(nil), cookies...)
	return nil
}

func (p *Page) Storage(ctx context.Context) (map[string]string, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return maps.Clone(p.storage), nil
}

func (p *Page) SetStorage(ctx context.Context, values map[string]string) error {
	p.record("set-storage:%d", len(values))
	p.mutex.Lock()
	defer p.mutex.Unlock()
	maps.Copy(p.storage, values)
	return nil
}
