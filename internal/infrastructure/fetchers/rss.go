package fetchers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"courtwatch/internal/domain"
	"courtwatch/internal/feed"
	"courtwatch/internal/filter"
	"courtwatch/internal/normalize"
	"courtwatch/internal/ports"
	"courtwatch/internal/schedule"
	"courtwatch/internal/source"
)

// RSS polls one syndication feed. Feeds that are entirely on-topic run
// without a relevance gate; broad general-sports feeds pass one in.
type RSS struct {
	name   string
	url    string
	policy schedule.Policy
	gate   *filter.Relevance
	items  ports.ItemStore
	client *http.Client
	logger *slog.Logger
	now    func() time.Time
}

var _ source.Fetcher = (*RSS)(nil)

// NewRSS builds the adapter; gate may be nil, client defaults to a
// 20-second-timeout HTTP client.
func NewRSS(name, url string, policy schedule.Policy, gate *filter.Relevance,
	items ports.ItemStore, client *http.Client, logger *slog.Logger) *RSS {
	if client == nil {
		client = defaultClient()
	}
	return &RSS{
		name:   name,
		url:    url,
		policy: policy,
		gate:   gate,
		items:  items,
		client: client,
		logger: logger,
		now:    time.Now,
	}
}

// Name identifies the fetcher inside the registry and run-state map.
func (f *RSS) Name() string { return f.name }

// Policy returns the source's cooldown policy.
func (f *RSS) Policy() schedule.Policy { return f.policy }

// Fetch retrieves the feed, filters and normalizes its entries, and
// upserts them. Duplicate URLs are silent no-ops.
func (f *RSS) Fetch(ctx context.Context) (int, error) {
	payload, err := get(ctx, f.client, f.url)
	if err != nil {
		return 0, err
	}

	entries, err := feed.Parse(payload)
	if err != nil {
		return 0, fmt.Errorf("source %s: %w", f.name, err)
	}

	inserted := 0
	for _, entry := range entries {
		if entry.Link == "" {
			continue
		}
		if f.gate != nil {
			if ok, verdict := f.gate.Accept(entry.Title); !ok {
				f.debug("filtered", "source", f.name, "verdict", verdict, "title", entry.Title)
				continue
			}
		}

		published := entry.PublishedAt
		if published.IsZero() {
			published = f.now().UTC()
		}

		item := domain.RawItem{
			Source:      f.name,
			Title:       normalize.CleanAndTruncate(entry.Title, titleBudget),
			URL:         entry.Link,
			PublishedAt: published,
			Category:    entry.Category,
		}

		ok, err := f.items.InsertItem(ctx, item)
		if err != nil {
			f.warn("insert failed", "source", f.name, "url", item.URL, "error", err)
			continue
		}
		if ok {
			inserted++
		}
	}

	return inserted, nil
}

func (f *RSS) debug(msg string, args ...any) {
	if f.logger != nil {
		f.logger.Debug(msg, args...)
	}
}

func (f *RSS) warn(msg string, args ...any) {
	if f.logger != nil {
		f.logger.Warn(msg, args...)
	}
}
