package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"courtwatch/internal/domain"
	"courtwatch/internal/infrastructure/llm"
	"courtwatch/internal/normalize"
	"courtwatch/internal/ports"
)

const caseDescriptionBudget = 600

// ExtractionDeps wires the stores and the reasoning service into the
// extraction stage.
type ExtractionDeps struct {
	Items    ports.ItemStore
	Cases    ports.CaseStore
	Records  ports.ExtractionStore
	Ledger   ports.RunLedger
	Reasoner ports.Reasoner
	Logger   *slog.Logger
}

// ExtractionOptions tunes window sizes and concurrency.
type ExtractionOptions struct {
	BackfillConcurrency   int
	RecentItemLimit       int
	DeadlineLookaheadDays int
	BootstrapWindow       time.Duration
}

// Extraction turns newly arrived raw records into typed events,
// deadlines, activity tags, and a daily briefing.
type Extraction struct {
	deps ExtractionDeps
	opts ExtractionOptions
	now  func() time.Time
}

// NewExtraction constructs the extraction stage with sane defaults for
// any unset option.
func NewExtraction(deps ExtractionDeps, opts ExtractionOptions) *Extraction {
	if opts.BackfillConcurrency <= 0 {
		opts.BackfillConcurrency = 3
	}
	if opts.RecentItemLimit <= 0 {
		opts.RecentItemLimit = 40
	}
	if opts.DeadlineLookaheadDays <= 0 {
		opts.DeadlineLookaheadDays = 45
	}
	if opts.BootstrapWindow <= 0 {
		opts.BootstrapWindow = 24 * time.Hour
	}
	return &Extraction{deps: deps, opts: opts, now: time.Now}
}

// Run executes one extraction pass. The since-window is captured once
// from the run ledger before any task starts; the four tasks then run
// concurrently and independently. Exactly one ledger row is appended
// per pass, before any aggregate error is raised.
func (e *Extraction) Run(ctx context.Context) error {
	now := e.now()

	since := now.Add(-e.opts.BootstrapWindow)
	latest, err := e.deps.Ledger.LatestRun(ctx)
	if err != nil {
		return fmt.Errorf("load latest run: %w", err)
	}
	if latest != nil {
		since = latest.RanAt
	}

	items, err := e.deps.Items.ItemsSince(ctx, since)
	if err != nil {
		return fmt.Errorf("load new items: %w", err)
	}
	changed, err := e.deps.Cases.CasesChangedSince(ctx, since)
	if err != nil {
		return fmt.Errorf("load changed cases: %w", err)
	}

	run := domain.PipelineRun{ItemsProcessed: len(items), RanAt: now}

	if len(items) == 0 && len(changed) == 0 {
		e.deps.Logger.Info("extraction: nothing new since last run", "since", since)
		if err := e.deps.Ledger.AppendRun(ctx, run); err != nil {
			return fmt.Errorf("append run ledger: %w", err)
		}
		return nil
	}

	taskErrs := make([]error, 4)
	var g errgroup.Group
	g.Go(func() error {
		run.EventsCreated, taskErrs[0] = e.extractEvents(ctx, items, changed)
		return nil
	})
	g.Go(func() error {
		run.DeadlinesCreated, taskErrs[1] = e.extractDeadlines(ctx, items, changed, now)
		return nil
	})
	g.Go(func() error {
		run.ActivityCreated, taskErrs[2] = e.detectActivity(ctx, items)
		return nil
	})
	g.Go(func() error {
		run.BriefingGenerated, taskErrs[3] = e.generateBriefing(ctx, now)
		return nil
	})
	_ = g.Wait()

	backfillErr := e.backfillDescriptions(ctx)

	var errs []error
	for _, taskErr := range taskErrs {
		if taskErr != nil {
			errs = append(errs, taskErr)
		}
	}
	if backfillErr != nil {
		errs = append(errs, backfillErr)
	}

	if err := e.deps.Ledger.AppendRun(ctx, run); err != nil {
		errs = append(errs, fmt.Errorf("append run ledger: %w", err))
	}

	e.deps.Logger.Info("extraction finished",
		"items", run.ItemsProcessed, "events", run.EventsCreated,
		"deadlines", run.DeadlinesCreated, "activity", run.ActivityCreated,
		"briefing", run.BriefingGenerated, "failures", len(errs))

	return errors.Join(errs...)
}

type eventsReply struct {
	Events []struct {
		Text      string `json:"text"`
		Category  string `json:"category"`
		Severity  string `json:"severity"`
		Source    string `json:"source"`
		SourceURL string `json:"source_url"`
		EventTime string `json:"event_time"`
	} `json:"events"`
}

func (e *Extraction) extractEvents(ctx context.Context, items []domain.RawItem, changed []domain.CaseRecord) (int, error) {
	reply, err := e.deps.Reasoner.Complete(ctx, eventSystemPrompt, itemsPayload(items, changed))
	if err != nil {
		return 0, fmt.Errorf("event extraction: %w", err)
	}

	raw, ok := llm.ExtractJSON(reply)
	if !ok {
		return 0, fmt.Errorf("event extraction: reply contained no JSON")
	}
	var parsed eventsReply
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return 0, fmt.Errorf("event extraction: decode reply: %w", err)
	}

	created := 0
	for _, raw := range parsed.Events {
		if raw.Text == "" {
			continue
		}
		severity := domain.Severity(raw.Severity)
		if !domain.ValidSeverity(severity) {
			severity = domain.SeverityRoutine
		}
		category := raw.Category
		if category == "" {
			category = "general"
		}
		eventTime, tErr := time.Parse(time.RFC3339, raw.EventTime)
		if tErr != nil {
			eventTime = e.now()
		}

		inserted, iErr := e.deps.Records.InsertEvent(ctx, domain.Event{
			Text:      raw.Text,
			Category:  category,
			Severity:  severity,
			Source:    raw.Source,
			SourceURL: raw.SourceURL,
			EventTime: eventTime,
		})
		if iErr != nil {
			e.deps.Logger.Warn("event insert failed", "error", iErr)
			continue
		}
		if inserted {
			created++
		}
	}
	return created, nil
}

type deadlinesReply struct {
	Deadlines []struct {
		Date     string `json:"date"`
		Category string `json:"category"`
		Text     string `json:"text"`
		Severity string `json:"severity"`
		Source   string `json:"source"`
	} `json:"deadlines"`
}

func (e *Extraction) extractDeadlines(ctx context.Context, items []domain.RawItem, changed []domain.CaseRecord, now time.Time) (int, error) {
	payload := fmt.Sprintf("Today is %s.\n\n%s",
		now.UTC().Format("2006-01-02"), itemsPayload(items, changed))

	reply, err := e.deps.Reasoner.Complete(ctx, deadlineSystemPrompt, payload)
	if err != nil {
		return 0, fmt.Errorf("deadline extraction: %w", err)
	}

	raw, ok := llm.ExtractJSON(reply)
	if !ok {
		return 0, fmt.Errorf("deadline extraction: reply contained no JSON")
	}
	var parsed deadlinesReply
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return 0, fmt.Errorf("deadline extraction: decode reply: %w", err)
	}

	today := now.UTC().Truncate(24 * time.Hour)
	created := 0
	for _, raw := range parsed.Deadlines {
		due, dErr := time.Parse("2006-01-02", raw.Date)
		if dErr != nil || raw.Text == "" {
			continue
		}
		if !due.After(today) {
			continue
		}
		severity := domain.Severity(raw.Severity)
		if !domain.ValidSeverity(severity) {
			severity = domain.SeverityRoutine
		}

		inserted, iErr := e.deps.Records.InsertDeadline(ctx, domain.Deadline{
			Date:     due,
			Category: raw.Category,
			Text:     raw.Text,
			Severity: severity,
			Source:   raw.Source,
		})
		if iErr != nil {
			e.deps.Logger.Warn("deadline insert failed", "error", iErr)
			continue
		}
		if inserted {
			created++
		}
	}
	return created, nil
}

type activityReply struct {
	Activity []struct {
		Tag          string `json:"tag"`
		Text         string `json:"text"`
		Source       string `json:"source"`
		SourceURL    string `json:"source_url"`
		ActivityTime string `json:"activity_time"`
	} `json:"activity"`
}

func (e *Extraction) detectActivity(ctx context.Context, items []domain.RawItem) (int, error) {
	var subset []domain.RawItem
	for _, it := range items {
		if mentionsGoverningBody(it.Title) {
			subset = append(subset, it)
		}
	}
	if len(subset) == 0 {
		return 0, nil
	}

	reply, err := e.deps.Reasoner.Complete(ctx, activitySystemPrompt, itemsPayload(subset, nil))
	if err != nil {
		return 0, fmt.Errorf("activity detection: %w", err)
	}

	raw, ok := llm.ExtractJSON(reply)
	if !ok {
		return 0, fmt.Errorf("activity detection: reply contained no JSON")
	}
	var parsed activityReply
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return 0, fmt.Errorf("activity detection: decode reply: %w", err)
	}

	created := 0
	for _, raw := range parsed.Activity {
		kind := domain.ActivityKind(raw.Tag)
		if !domain.ValidActivityKind(kind) || raw.Text == "" {
			continue
		}
		at, tErr := time.Parse(time.RFC3339, raw.ActivityTime)
		if tErr != nil {
			at = e.now()
		}

		inserted, iErr := e.deps.Records.InsertActivity(ctx, domain.ActivityTag{
			Tag:          kind,
			Text:         raw.Text,
			Source:       raw.Source,
			SourceURL:    raw.SourceURL,
			ActivityTime: at,
		})
		if iErr != nil {
			e.deps.Logger.Warn("activity insert failed", "error", iErr)
			continue
		}
		if inserted {
			created++
		}
	}
	return created, nil
}

type briefingReply struct {
	Sections []domain.BriefingSection `json:"sections"`
}

func (e *Extraction) generateBriefing(ctx context.Context, now time.Time) (bool, error) {
	events, err := e.deps.Records.RecentEvents(ctx, 20)
	if err != nil {
		return false, fmt.Errorf("briefing: load events: %w", err)
	}
	items, err := e.deps.Items.RecentItems(ctx, e.opts.RecentItemLimit)
	if err != nil {
		return false, fmt.Errorf("briefing: load items: %w", err)
	}
	upcoming, err := e.deps.Records.UpcomingDeadlines(ctx, now, 50)
	if err != nil {
		return false, fmt.Errorf("briefing: load deadlines: %w", err)
	}
	cutoff := now.AddDate(0, 0, e.opts.DeadlineLookaheadDays)
	var deadlines []domain.Deadline
	for _, d := range upcoming {
		if !d.Date.After(cutoff) {
			deadlines = append(deadlines, d)
		}
	}

	if len(events) == 0 && len(items) == 0 && len(deadlines) == 0 {
		return false, nil
	}

	reply, err := e.deps.Reasoner.Complete(ctx, briefingSystemPrompt,
		briefingPayload(events, items, deadlines))
	if err != nil {
		return false, fmt.Errorf("briefing: %w", err)
	}

	raw, ok := llm.ExtractJSON(reply)
	if !ok {
		return false, fmt.Errorf("briefing: reply contained no JSON")
	}
	var parsed briefingReply
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return false, fmt.Errorf("briefing: decode reply: %w", err)
	}
	if len(parsed.Sections) == 0 {
		return false, nil
	}

	err = e.deps.Records.ReplaceBriefing(ctx, domain.Briefing{
		Date:        now.UTC().Truncate(24 * time.Hour),
		Sections:    parsed.Sections,
		GeneratedAt: now,
	})
	if err != nil {
		return false, fmt.Errorf("briefing: write: %w", err)
	}
	return true, nil
}

// backfillDescriptions fills in missing case summaries, one reasoning
// call per case, with bounded concurrency. It runs on every pass and is
// not tied to the since-window.
func (e *Extraction) backfillDescriptions(ctx context.Context) error {
	missing, err := e.deps.Cases.CasesMissingDescription(ctx)
	if err != nil {
		return fmt.Errorf("load cases missing description: %w", err)
	}
	if len(missing) == 0 {
		return nil
	}

	var mu sync.Mutex
	var errs []error

	var g errgroup.Group
	g.SetLimit(e.opts.BackfillConcurrency)
	for _, rec := range missing {
		rec := rec
		g.Go(func() error {
			reply, cErr := e.deps.Reasoner.Complete(ctx, caseSummaryPrompt, casePayload(rec))
			if cErr == nil {
				description := normalize.CleanAndTruncate(reply, caseDescriptionBudget)
				cErr = e.deps.Cases.SetCaseDescription(ctx, rec.Name, rec.CaseNumber, description)
			}
			if cErr != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("backfill %s: %w", rec.Name, cErr))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}
