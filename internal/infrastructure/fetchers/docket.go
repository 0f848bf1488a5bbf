package fetchers

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"courtwatch/internal/domain"
	"courtwatch/internal/ports"
	"courtwatch/internal/schedule"
	"courtwatch/internal/scrape"
	"courtwatch/internal/source"
)

// Docket scrapes the case-tracker page into case records and appends
// its key dates to the case-update log.
type Docket struct {
	name   string
	url    string
	policy schedule.Policy
	cases  ports.CaseStore
	client *http.Client
	logger *slog.Logger
}

var _ source.Fetcher = (*Docket)(nil)

// NewDocket builds the adapter.
func NewDocket(name, url string, policy schedule.Policy, cases ports.CaseStore,
	client *http.Client, logger *slog.Logger) *Docket {
	if client == nil {
		client = defaultClient()
	}
	return &Docket{
		name:   name,
		url:    url,
		policy: policy,
		cases:  cases,
		client: client,
		logger: logger,
	}
}

// Name identifies the fetcher inside the registry and run-state map.
func (f *Docket) Name() string { return f.name }

// Policy returns the source's cooldown policy.
func (f *Docket) Policy() schedule.Policy { return f.policy }

// Fetch scrapes the tracker page. Zero parsed cases is logged, not
// fatal: the page layout is brittle by nature and the run-state stamp
// must still advance.
func (f *Docket) Fetch(ctx context.Context) (int, error) {
	payload, err := get(ctx, f.client, f.url)
	if err != nil {
		return 0, err
	}

	records, err := scrape.ParseCases(bytes.NewReader(payload), f.url)
	if err != nil {
		return 0, fmt.Errorf("source %s: %w", f.name, err)
	}
	if len(records) == 0 {
		f.warn("no cases parsed; page layout may have changed", "source", f.name)
	}

	written := 0
	for _, rec := range records {
		outcome, err := f.cases.UpsertCase(ctx, rec)
		if err != nil {
			f.warn("case upsert failed", "case", rec.Name, "error", err)
			continue
		}
		if outcome != domain.OutcomeSkipped {
			written++
		}
	}

	keyDates, err := scrape.ParseKeyDates(bytes.NewReader(payload))
	if err != nil {
		return written, fmt.Errorf("source %s: %w", f.name, err)
	}
	for _, entry := range keyDates.Entries {
		if entry.CaseName == "" {
			continue
		}
		ok, err := f.cases.InsertCaseUpdate(ctx, domain.CaseUpdate{
			CaseName: entry.CaseName,
			Text:     entry.Description,
			Date:     entry.Date,
		})
		if err != nil {
			f.warn("case update insert failed", "case", entry.CaseName, "error", err)
			continue
		}
		if ok {
			written++
		}
	}

	return written, nil
}

func (f *Docket) warn(msg string, args ...any) {
	if f.logger != nil {
		f.logger.Warn(msg, args...)
	}
}
