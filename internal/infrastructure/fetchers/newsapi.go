package fetchers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"courtwatch/internal/domain"
	"courtwatch/internal/filter"
	"courtwatch/internal/normalize"
	"courtwatch/internal/ports"
	"courtwatch/internal/schedule"
	"courtwatch/internal/source"
)

// NewsAPIQuery is the search-endpoint query contract: keyword, language,
// country, time window, and page size.
type NewsAPIQuery struct {
	Keyword  string
	Language string
	Country  string
	Window   time.Duration
	PageSize int
}

// NewsAPI polls a REST/JSON news-search endpoint.
type NewsAPI struct {
	name     string
	endpoint string
	apiKey   string
	query    NewsAPIQuery
	policy   schedule.Policy
	gate     *filter.Relevance
	items    ports.ItemStore
	client   *http.Client
	logger   *slog.Logger
	now      func() time.Time
}

var _ source.Fetcher = (*NewsAPI)(nil)

// NewNewsAPI builds the adapter; gate may be nil.
func NewNewsAPI(name, endpoint, apiKey string, query NewsAPIQuery, policy schedule.Policy,
	gate *filter.Relevance, items ports.ItemStore, client *http.Client, logger *slog.Logger) *NewsAPI {
	if client == nil {
		client = defaultClient()
	}
	if query.PageSize <= 0 {
		query.PageSize = 25
	}
	if query.Window <= 0 {
		query.Window = 24 * time.Hour
	}
	return &NewsAPI{
		name:     name,
		endpoint: endpoint,
		apiKey:   apiKey,
		query:    query,
		policy:   policy,
		gate:     gate,
		items:    items,
		client:   client,
		logger:   logger,
		now:      time.Now,
	}
}

// Name identifies the fetcher inside the registry and run-state map.
func (f *NewsAPI) Name() string { return f.name }

// Policy returns the source's cooldown policy.
func (f *NewsAPI) Policy() schedule.Policy { return f.policy }

type searchResponse struct {
	Articles []struct {
		Title       string `json:"title"`
		URL         string `json:"url"`
		PublishedAt string `json:"publishedAt"`
		Source      struct {
			Name string `json:"name"`
		} `json:"source"`
	} `json:"articles"`
}

// Fetch runs one keyword search scoped to the configured time window and
// upserts the results.
func (f *NewsAPI) Fetch(ctx context.Context) (int, error) {
	payload, err := get(ctx, f.client, f.searchURL())
	if err != nil {
		return 0, err
	}

	var resp searchResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return 0, fmt.Errorf("source %s: decode search response: %w", f.name, err)
	}

	inserted := 0
	for _, art := range resp.Articles {
		if art.URL == "" {
			continue
		}
		if f.gate != nil {
			if ok, verdict := f.gate.Accept(art.Title); !ok {
				f.debug("filtered", "source", f.name, "verdict", verdict, "title", art.Title)
				continue
			}
		}

		published, perr := time.Parse(time.RFC3339, art.PublishedAt)
		if perr != nil {
			published = f.now().UTC()
		}

		sourceName := f.name
		if art.Source.Name != "" {
			sourceName = fmt.Sprintf("%s/%s", f.name, art.Source.Name)
		}

		item := domain.RawItem{
			Source:      sourceName,
			Title:       normalize.CleanAndTruncate(art.Title, titleBudget),
			URL:         art.URL,
			PublishedAt: published.UTC(),
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

func (f *NewsAPI) searchURL() string {
	values := url.Values{}
	values.Set("q", f.query.Keyword)
	values.Set("lang", f.query.Language)
	values.Set("country", f.query.Country)
	values.Set("max", strconv.Itoa(f.query.PageSize))
	values.Set("from", f.now().UTC().Add(-f.query.Window).Format(time.RFC3339))
	if f.apiKey != "" {
		values.Set("apikey", f.apiKey)
	}
	return f.endpoint + "?" + values.Encode()
}

func (f *NewsAPI) debug(msg string, args ...any) {
	if f.logger != nil {
		f.logger.Debug(msg, args...)
	}
}

func (f *NewsAPI) warn(msg string, args ...any) {
	if f.logger != nil {
		f.logger.Warn(msg, args...)
	}
}
