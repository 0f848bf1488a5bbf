package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"courtwatch/internal/domain"
	"courtwatch/internal/normalize"
)

// InsertEvent appends one extracted event. Events are never mutated.
func (s *Store) InsertEvent(ctx context.Context, ev domain.Event) (bool, error) {
	_, err := s.sb.Insert("events").
		Columns("id", "event_text", "category", "severity", "source", "source_url",
			"event_time", "created_at").
		Values(uuid.NewString(), ev.Text, ev.Category, string(ev.Severity),
			ev.Source, ev.SourceURL, encodeTime(ev.EventTime), encodeTime(s.now())).
		RunWith(s.db).ExecContext(ctx)
	if err != nil {
		return false, fmt.Errorf("insert event: %w", err)
	}
	return true, nil
}

// EventsSince lists events extracted after the watermark, critical
// first, then by when they actually happened.
func (s *Store) EventsSince(ctx context.Context, since time.Time) ([]domain.Event, error) {
	return s.queryEvents(ctx, s.selectEvents().
		Where(sq.Gt{"created_at": encodeTime(since)}))
}

// RecentEvents bounds the slice by extraction recency, then orders it
// critical-first. Limiting on the severity order instead would pin the
// window to the oldest criticals forever as the table grows.
func (s *Store) RecentEvents(ctx context.Context, limit int) ([]domain.Event, error) {
	events, err := s.queryEvents(ctx, s.sb.Select(eventColumns...).
		From("events").
		OrderBy("created_at DESC").
		Limit(uint64(limit)))
	if err != nil {
		return nil, err
	}
	sortSeverityFirst(events)
	return events, nil
}

// EventsBySeverity lists the latest events of one severity.
func (s *Store) EventsBySeverity(ctx context.Context, severity domain.Severity, limit int) ([]domain.Event, error) {
	return s.queryEvents(ctx, s.sb.Select(eventColumns...).
		From("events").
		Where(sq.Eq{"severity": string(severity)}).
		OrderBy("event_time DESC").
		Limit(uint64(limit)))
}

var eventColumns = []string{"event_text", "category", "severity", "source", "source_url", "event_time"}

func (s *Store) selectEvents() sq.SelectBuilder {
	return s.sb.Select(eventColumns...).
		From("events").
		OrderBy(severityRank, "event_time DESC")
}

func sortSeverityFirst(events []domain.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		ri, rj := severityOrder(events[i].Severity), severityOrder(events[j].Severity)
		if ri != rj {
			return ri < rj
		}
		return events[i].EventTime.After(events[j].EventTime)
	})
}

func severityOrder(s domain.Severity) int {
	switch s {
	case domain.SeverityCritical:
		return 0
	case domain.SeverityImportant:
		return 1
	}
	return 2
}

const severityRank = `CASE severity
	WHEN 'critical' THEN 0
	WHEN 'important' THEN 1
	ELSE 2 END`

func (s *Store) queryEvents(ctx context.Context, builder sq.SelectBuilder) ([]domain.Event, error) {
	rows, err := builder.RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var ev domain.Event
		var severity, eventTime string
		if err := rows.Scan(&ev.Text, &ev.Category, &severity, &ev.Source,
			&ev.SourceURL, &eventTime); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Severity = domain.Severity(severity)
		ev.EventTime = decodeTime(eventTime)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// InsertDeadline applies the approximate dedup: an existing deadline on
// the same date whose normalized text shares the leading prefix is
// treated as the same fact and the insert is skipped.
func (s *Store) InsertDeadline(ctx context.Context, d domain.Deadline) (bool, error) {
	due := d.Date.UTC().Format(dateFormat)
	key := deadlineKey(d.Text)

	rows, err := s.sb.Select("deadline_text").From("deadlines").
		Where(sq.Eq{"due_date": due}).
		RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return false, fmt.Errorf("probe deadlines: %w", err)
	}
	for rows.Next() {
		var existing string
		if err := rows.Scan(&existing); err != nil {
			_ = rows.Close()
			return false, fmt.Errorf("scan deadline: %w", err)
		}
		if deadlineMatch(deadlineKey(existing), key) {
			_ = rows.Close()
			return false, nil
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return false, fmt.Errorf("iterate deadlines: %w", err)
	}
	_ = rows.Close()

	_, err = s.sb.Insert("deadlines").
		Columns("id", "due_date", "category", "deadline_text", "severity", "source").
		Values(uuid.NewString(), due, d.Category, d.Text, string(d.Severity), d.Source).
		RunWith(s.db).ExecContext(ctx)
	if err != nil {
		return false, fmt.Errorf("insert deadline: %w", err)
	}
	return true, nil
}

func deadlineKey(text string) string {
	runes := []rune(strings.ToLower(normalize.Clean(text)))
	if len(runes) > deadlinePrefixRunes {
		runes = runes[:deadlinePrefixRunes]
	}
	return string(runes)
}

// deadlineMatch treats two keys as the same fact when the shorter one
// prefixes the longer, so a clipped rephrasing still deduplicates.
func deadlineMatch(a, b string) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	return a != "" && strings.HasPrefix(b, a)
}

// UpcomingDeadlines lists deadlines due on or after the given day.
func (s *Store) UpcomingDeadlines(ctx context.Context, from time.Time, limit int) ([]domain.Deadline, error) {
	rows, err := s.sb.Select("due_date", "category", "deadline_text", "severity", "source").
		From("deadlines").
		Where(sq.GtOrEq{"due_date": from.UTC().Format(dateFormat)}).
		OrderBy("due_date ASC").
		Limit(uint64(limit)).
		RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query deadlines: %w", err)
	}
	defer rows.Close()

	var deadlines []domain.Deadline
	for rows.Next() {
		var d domain.Deadline
		var due, severity string
		if err := rows.Scan(&due, &d.Category, &d.Text, &severity, &d.Source); err != nil {
			return nil, fmt.Errorf("scan deadline: %w", err)
		}
		d.Date = decodeDate(due)
		d.Severity = domain.Severity(severity)
		deadlines = append(deadlines, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deadlines: %w", err)
	}
	return deadlines, nil
}

// InsertActivity appends one governing-body activity tag.
func (s *Store) InsertActivity(ctx context.Context, tag domain.ActivityTag) (bool, error) {
	_, err := s.sb.Insert("activity_tags").
		Columns("id", "tag", "tag_text", "source", "source_url", "activity_time").
		Values(uuid.NewString(), string(tag.Tag), tag.Text, tag.Source,
			tag.SourceURL, encodeTime(tag.ActivityTime)).
		RunWith(s.db).ExecContext(ctx)
	if err != nil {
		return false, fmt.Errorf("insert activity: %w", err)
	}
	return true, nil
}

// RecentActivity lists the latest activity tags.
func (s *Store) RecentActivity(ctx context.Context, limit int) ([]domain.ActivityTag, error) {
	rows, err := s.sb.Select("tag", "tag_text", "source", "source_url", "activity_time").
		From("activity_tags").
		OrderBy("activity_time DESC").
		Limit(uint64(limit)).
		RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()

	var tags []domain.ActivityTag
	for rows.Next() {
		var tag domain.ActivityTag
		var kind, at string
		if err := rows.Scan(&kind, &tag.Text, &tag.Source, &tag.SourceURL, &at); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		tag.Tag = domain.ActivityKind(kind)
		tag.ActivityTime = decodeTime(at)
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity: %w", err)
	}
	return tags, nil
}

// ReplaceBriefing swaps the whole briefing for its date; there is no
// partial update.
func (s *Store) ReplaceBriefing(ctx context.Context, b domain.Briefing) error {
	sections, err := json.Marshal(b.Sections)
	if err != nil {
		return fmt.Errorf("encode briefing sections: %w", err)
	}

	generated := b.GeneratedAt
	if generated.IsZero() {
		generated = s.now()
	}

	_, err = s.sb.Insert("briefings").
		Columns("briefing_date", "sections", "generated_at").
		Values(b.Date.UTC().Format(dateFormat), string(sections), encodeTime(generated)).
		Suffix(`ON CONFLICT (briefing_date) DO UPDATE SET
			sections = excluded.sections,
			generated_at = excluded.generated_at`).
		RunWith(s.db).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("replace briefing: %w", err)
	}
	return nil
}

// LatestBriefing returns the newest briefing, or nil when none exists.
func (s *Store) LatestBriefing(ctx context.Context) (*domain.Briefing, error) {
	var date, sections, generated string
	err := s.sb.Select("briefing_date", "sections", "generated_at").
		From("briefings").
		OrderBy("briefing_date DESC").
		Limit(1).
		RunWith(s.db).QueryRowContext(ctx).Scan(&date, &sections, &generated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest briefing: %w", err)
	}

	b := &domain.Briefing{
		Date:        decodeDate(date),
		GeneratedAt: decodeTime(generated),
	}
	if err := json.Unmarshal([]byte(sections), &b.Sections); err != nil {
		return nil, fmt.Errorf("decode briefing sections: %w", err)
	}
	return b, nil
}

// LastRun returns the recorded run time for a fetcher, or nil when the
// fetcher has never run.
func (s *Store) LastRun(ctx context.Context, fetcherName string) (*time.Time, error) {
	var last string
	err := s.sb.Select("last_run").From("fetcher_run_state").
		Where(sq.Eq{"fetcher_name": fetcherName}).
		RunWith(s.db).QueryRowContext(ctx).Scan(&last)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query run state: %w", err)
	}

	t := decodeTime(last)
	return &t, nil
}

// RecordRun overwrites the fetcher's run stamp.
func (s *Store) RecordRun(ctx context.Context, fetcherName string, at time.Time) error {
	_, err := s.sb.Insert("fetcher_run_state").
		Columns("fetcher_name", "last_run").
		Values(fetcherName, encodeTime(at)).
		Suffix("ON CONFLICT (fetcher_name) DO UPDATE SET last_run = excluded.last_run").
		RunWith(s.db).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// AppendRun appends one audit row for an extraction run.
func (s *Store) AppendRun(ctx context.Context, run domain.PipelineRun) error {
	id := run.ID
	if id == "" {
		id = uuid.NewString()
	}

	ranAt := run.RanAt
	if ranAt.IsZero() {
		ranAt = s.now()
	}

	_, err := s.sb.Insert("pipeline_runs").
		Columns("id", "items_processed", "events_created", "deadlines_created",
			"activity_created", "briefing_generated", "ran_at").
		Values(id, run.ItemsProcessed, run.EventsCreated, run.DeadlinesCreated,
			run.ActivityCreated, boolToInt(run.BriefingGenerated), encodeTime(ranAt)).
		RunWith(s.db).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("append pipeline run: %w", err)
	}
	return nil
}

// LatestRun returns the most recent ledger row, or nil when the pipeline
// has never run.
func (s *Store) LatestRun(ctx context.Context) (*domain.PipelineRun, error) {
	var run domain.PipelineRun
	var briefing int
	var ranAt string
	err := s.sb.Select("id", "items_processed", "events_created", "deadlines_created",
		"activity_created", "briefing_generated", "ran_at").
		From("pipeline_runs").
		OrderBy("ran_at DESC").
		Limit(1).
		RunWith(s.db).QueryRowContext(ctx).
		Scan(&run.ID, &run.ItemsProcessed, &run.EventsCreated, &run.DeadlinesCreated,
			&run.ActivityCreated, &briefing, &ranAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest run: %w", err)
	}

	run.BriefingGenerated = briefing != 0
	run.RanAt = decodeTime(ranAt)
	return &run, nil
}
