// Package pagecache keeps the rendered markup of pages that no longer change (the detail
// page of a delivered order) between runs, keyed by their normalized url.
package pagecache

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"orderscraper/internal/assert"
	"orderscraper/internal/components/chrono"

	"github.com/PuerkitoBio/purell"
	"github.com/dgraph-io/badger/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("orderscraper/internal/pagecache")

// ErrMiss is returned when a page is not cached or its entry expired.
var ErrMiss = errors.New("page not cached")

type entry struct {
	Markup    string
	StoredAt  int64
	ExpiresAt int64
}

type Options struct {
	// Dir is the badger directory, ignored when InMemory is set.
	Dir      string
	InMemory bool
	BaseURL  string
	TTL      time.Duration
}

type Cache struct {
	db    *badger.DB
	base  *url.URL
	ttl   time.Duration
	clock chrono.API
}

func Open(opts Options, clock chrono.API) (*Cache, error) {
	assert.NotNil(clock, "clock")
	assert.Positive(int64(opts.TTL), "ttl")

	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	badgerOpts := badger.DefaultOptions(opts.Dir).WithLogger(badgerLogger{})
	if opts.InMemory {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true).WithLogger(badgerLogger{})
	}
	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open page cache: %w", err)
	}
	return &Cache{db: db, base: base, ttl: opts.TTL, clock: clock}, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

// key resolves the endpoint against the base url and normalizes it, so links that only
// differ in fragment or query order share an entry.
func (c *Cache) key(endpoint string) (string, error) {
	full, err := c.base.Parse(endpoint)
	if err != nil {
		return "", err
	}
	return purell.NormalizeURL(
		full,
		purell.FlagsSafe|
			purell.FlagsUsuallySafeNonGreedy|
			purell.FlagRemoveDirectoryIndex|
			purell.FlagRemoveFragment|
			purell.FlagSortQuery,
	), nil
}

func (c *Cache) Get(ctx context.Context, endpoint string) (string, error) {
	_, span := tracer.Start(ctx, "Cache.Get")
	defer span.End()

	key, err := c.key(endpoint)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create cache key")
		return "", err
	}
	span.SetAttributes(attribute.String("cache_key", key))

	tx := c.db.NewTransaction(false)
	defer tx.Discard()
	item, err := tx.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", ErrMiss
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read item")
		return "", err
	}
	serialized, err := item.ValueCopy(nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to copy cached item")
		return "", err
	}

	var cached entry
	err = gob.NewDecoder(bytes.NewReader(serialized)).Decode(&cached)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to decode cached item")
		return "", err
	}

	if c.clock.Now().Unix() >= cached.ExpiresAt {
		span.AddEvent("delete expired entry", trace.WithAttributes(attribute.String("key", key)))
		err = c.delete(key)
		if err != nil {
			span.RecordError(err)
		}
		return "", ErrMiss
	}

	span.AddEvent("hit", trace.WithAttributes(attribute.Int("content_length", len(cached.Markup))))
	return cached.Markup, nil
}

func (c *Cache) delete(key string) error {
	tx := c.db.NewTransaction(true)
	defer tx.Discard()
	err := tx.Delete([]byte(key))
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (c *Cache) Set(ctx context.Context, endpoint, markup string) error {
	_, span := tracer.Start(ctx, "Cache.Set")
	defer span.End()

	key, err := c.key(endpoint)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create cache key")
		return err
	}
	span.SetAttributes(attribute.String("cache_key", key))

	now := c.clock.Now()
	serialized := bytes.NewBuffer(nil)
	err = gob.NewEncoder(serialized).Encode(entry{
		Markup:    markup,
		StoredAt:  now.Unix(),
		ExpiresAt: now.Add(c.ttl).Unix(),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to encode page")
		return err
	}

	tx := c.db.NewTransaction(true)
	defer tx.Discard()
	err = tx.Set([]byte(key), serialized.Bytes())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to set item")
		return err
	}
	return tx.Commit()
}

// badgerLogger routes badger's own logs into slog, below warning they are debug noise.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...any) {
	slog.Error(fmt.Sprintf(format, args...), "component", "badger")
}

func (badgerLogger) Warningf(format string, args ...any) {
	slog.Warn(fmt.Sprintf(format, args...), "component", "badger")
}

func (badgerLogger) Infof(format string, args ...any) {
	slog.Debug(fmt.Sprintf(format, args...), "component", "badger")
}

func (badgerLogger) Debugf(format string, args ...any) {
	slog.Debug(fmt.Sprintf(format, args...), "component", "badger")
}
