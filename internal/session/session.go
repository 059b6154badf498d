package session

import (
	"context"
	"errors"
	"time"

	"orderscraper/lib/browser"

	"github.com/google/uuid"
)

// ErrNoBundle is returned by Store.Load when nothing has been persisted.
var ErrNoBundle = errors.New("no stored session")

// Bundle is a snapshot of an authenticated browsing context, enough to resume the
// session in a later run without going through the OTP login again.
type Bundle struct {
	ID       uuid.UUID `json:"id"`
	IssuedAt time.Time `json:"issued_at"`
	// Valid is false for bundles that were explicitly marked unusable.
	Valid bool `json:"valid"`
	// Origin is the storefront url the localStorage snapshot belongs to.
	Origin  string            `json:"origin"`
	Cookies []browser.Cookie  `json:"cookies"`
	Storage map[string]string `json:"storage"`
}

// NewBundle builds a valid bundle with a fresh id.
func NewBundle(issuedAt time.Time, origin string, cookies []browser.Cookie, storage map[string]string) Bundle {
	return Bundle{
		ID:       uuid.New(),
		IssuedAt: issuedAt,
		Valid:    true,
		Origin:   origin,
		Cookies:  cookies,
		Storage:  storage,
	}
}

// Capture snapshots the cookies and localStorage of the page into a new bundle.
func Capture(ctx context.Context, page browser.Page, origin string, now time.Time) (Bundle, error) {
	cookies, err := page.Cookies(ctx)
	if err != nil {
		return Bundle{}, err
	}
	storage, err := page.Storage(ctx)
	if err != nil {
		return Bundle{}, err
	}
	return NewBundle(now, origin, cookies, storage), nil
}

// Apply writes the bundle's cookies and localStorage into the page, the page
// should already be on the bundle's origin so localStorage lands in the right place.
func (b Bundle) Apply(ctx context.Context, page browser.Page) error {
	err := page.SetCookies(ctx, b.Cookies)
	if err != nil {
		return err
	}
	if len(b.Storage) == 0 {
		return nil
	}
	return page.SetStorage(ctx, b.Storage)
}

// Store persists a single Bundle across runs.
//
// note: fault injection point
//
//go:generate mockgen -source=session.go -destination=mock_store.go -package=session
type Store interface {
	// Load returns ErrNoBundle when nothing is stored.
	Load(ctx context.Context) (Bundle, error)
	Save(ctx context.Context, bundle Bundle) error
	// Invalidate deletes the stored bundle, it is not an error if there is none.
	Invalidate(ctx context.Context) error
}
