package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"courtwatch/internal/domain"
	"courtwatch/internal/ports"
)

const (
	// Fixed-width UTC layout keeps lexicographic order chronological.
	timeFormat = "2006-01-02T15:04:05.000000000Z07:00"
	dateFormat = "2006-01-02"

	// Deadlines sharing a date and this much normalized leading text are
	// treated as re-phrasings of the same extracted fact. Tunable.
	deadlinePrefixRunes = 24
)

// Store is the dedup/upsert layer over Postgres (production) or SQLite
// (tests, local runs).
type Store struct {
	db  *sql.DB
	sb  sq.StatementBuilderType
	now func() time.Time
}

var (
	_ ports.ItemStore       = (*Store)(nil)
	_ ports.CaseStore       = (*Store)(nil)
	_ ports.ExtractionStore = (*Store)(nil)
	_ ports.RunStateStore   = (*Store)(nil)
	_ ports.RunLedger       = (*Store)(nil)
)

// Open connects using the driver implied by the DSN: postgres for
// postgres:// or key=value DSNs, sqlite otherwise.
func Open(dsn string) (*sql.DB, string, error) {
	driver := "sqlite"
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=") {
		driver = "postgres"
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, "", fmt.Errorf("open %s database: %w", driver, err)
	}
	return db, driver, nil
}

// New wires a database handle. Driver selects the placeholder dialect.
func New(db *sql.DB, driver string) *Store {
	var format sq.PlaceholderFormat = sq.Dollar
	if driver == "sqlite" {
		format = sq.Question
	}
	return &Store{
		db:  db,
		sb:  sq.StatementBuilder.PlaceholderFormat(format),
		now: time.Now,
	}
}

// InsertItem is insert-or-ignore on the URL natural key. A collision is
// a silent no-op reported as inserted=false.
func (s *Store) InsertItem(ctx context.Context, item domain.RawItem) (bool, error) {
	created := item.CreatedAt
	if created.IsZero() {
		created = s.now()
	}

	res, err := s.sb.Insert("raw_items").
		Columns("url", "source", "title", "category", "published_at", "created_at").
		Values(item.URL, item.Source, item.Title, item.Category,
			encodeTime(item.PublishedAt), encodeTime(created)).
		Suffix("ON CONFLICT (url) DO NOTHING").
		RunWith(s.db).ExecContext(ctx)
	if err != nil {
		return false, fmt.Errorf("insert item: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert item result: %w", err)
	}
	return n > 0, nil
}

// ItemsSince lists items that arrived after the watermark, newest
// publication first.
func (s *Store) ItemsSince(ctx context.Context, since time.Time) ([]domain.RawItem, error) {
	return s.queryItems(ctx, s.selectItems().
		Where(sq.Gt{"created_at": encodeTime(since)}))
}

// RecentItems lists the most recently published items.
func (s *Store) RecentItems(ctx context.Context, limit int) ([]domain.RawItem, error) {
	return s.queryItems(ctx, s.selectItems().Limit(uint64(limit)))
}

func (s *Store) selectItems() sq.SelectBuilder {
	return s.sb.Select("url", "source", "title", "category", "published_at", "created_at").
		From("raw_items").
		OrderBy("published_at DESC")
}

func (s *Store) queryItems(ctx context.Context, builder sq.SelectBuilder) ([]domain.RawItem, error) {
	rows, err := builder.RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var items []domain.RawItem
	for rows.Next() {
		var (
			item               domain.RawItem
			published, created string
		)
		if err := rows.Scan(&item.URL, &item.Source, &item.Title, &item.Category,
			&published, &created); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		item.PublishedAt = decodeTime(published)
		item.CreatedAt = decodeTime(created)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

// UpsertCase is insert-or-merge on (name, case_number). On conflict each
// field replaces the stored value only when the incoming one is set,
// except status/active which always take the incoming value, and
// updated_at which is always refreshed as the extraction dirty flag.
func (s *Store) UpsertCase(ctx context.Context, rec domain.CaseRecord) (domain.UpsertOutcome, error) {
	if rec.Name == "" {
		return domain.OutcomeSkipped, fmt.Errorf("upsert case: empty name")
	}

	outcome := domain.OutcomeInserted
	var one int
	err := s.sb.Select("1").From("case_records").
		Where(sq.Eq{"name": rec.Name, "case_number": rec.CaseNumber}).
		RunWith(s.db).QueryRowContext(ctx).Scan(&one)
	switch {
	case err == nil:
		outcome = domain.OutcomeUpdated
	case errors.Is(err, sql.ErrNoRows):
	default:
		return domain.OutcomeSkipped, fmt.Errorf("probe case: %w", err)
	}

	dates, err := json.Marshal(rec.UpcomingDates)
	if err != nil {
		return domain.OutcomeSkipped, fmt.Errorf("encode upcoming dates: %w", err)
	}
	if rec.UpcomingDates == nil {
		dates = []byte("[]")
	}

	lastEvent := ""
	if !rec.LastEventDate.IsZero() {
		lastEvent = rec.LastEventDate.UTC().Format(dateFormat)
	}

	updatedAt := rec.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = s.now()
	}

	_, err = s.sb.Insert("case_records").
		Columns("name", "case_number", "court", "judge", "case_group", "status",
			"description", "last_event_date", "upcoming_dates", "active",
			"source_url", "updated_at").
		Values(rec.Name, rec.CaseNumber, rec.Court, rec.Judge, rec.Group, rec.Status,
			rec.Description, lastEvent, string(dates), boolToInt(rec.Active),
			rec.SourceURL, encodeTime(updatedAt)).
		Suffix(`ON CONFLICT (name, case_number) DO UPDATE SET
			court = CASE WHEN excluded.court <> '' THEN excluded.court ELSE case_records.court END,
			judge = CASE WHEN excluded.judge <> '' THEN excluded.judge ELSE case_records.judge END,
			case_group = CASE WHEN excluded.case_group <> '' THEN excluded.case_group ELSE case_records.case_group END,
			status = excluded.status,
			description = CASE WHEN excluded.description <> '' THEN excluded.description ELSE case_records.description END,
			last_event_date = CASE WHEN excluded.last_event_date <> '' THEN excluded.last_event_date ELSE case_records.last_event_date END,
			upcoming_dates = CASE WHEN excluded.upcoming_dates <> '[]' THEN excluded.upcoming_dates ELSE case_records.upcoming_dates END,
			active = excluded.active,
			source_url = CASE WHEN excluded.source_url <> '' THEN excluded.source_url ELSE case_records.source_url END,
			updated_at = excluded.updated_at`).
		RunWith(s.db).ExecContext(ctx)
	if err != nil {
		return domain.OutcomeSkipped, fmt.Errorf("upsert case %s: %w", rec.Name, err)
	}

	return outcome, nil
}

// InsertCaseUpdate is insert-or-ignore on (caseName, text, date).
func (s *Store) InsertCaseUpdate(ctx context.Context, upd domain.CaseUpdate) (bool, error) {
	res, err := s.sb.Insert("case_updates").
		Columns("case_name", "update_text", "update_date").
		Values(upd.CaseName, upd.Text, upd.Date.UTC().Format(dateFormat)).
		Suffix("ON CONFLICT (case_name, update_text, update_date) DO NOTHING").
		RunWith(s.db).ExecContext(ctx)
	if err != nil {
		return false, fmt.Errorf("insert case update: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert case update result: %w", err)
	}
	return n > 0, nil
}

// ListCases lists tracked cases, optionally only active ones.
func (s *Store) ListCases(ctx context.Context, activeOnly bool) ([]domain.CaseRecord, error) {
	builder := s.selectCases().OrderBy("name ASC")
	if activeOnly {
		builder = builder.Where(sq.Eq{"active": 1})
	}
	return s.queryCases(ctx, builder)
}

// CaseUpdates lists the docket log for one case, newest first.
func (s *Store) CaseUpdates(ctx context.Context, caseName string, limit int) ([]domain.CaseUpdate, error) {
	rows, err := s.sb.Select("case_name", "update_text", "update_date").
		From("case_updates").
		Where(sq.Eq{"case_name": caseName}).
		OrderBy("update_date DESC").
		Limit(uint64(limit)).
		RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query case updates: %w", err)
	}
	defer rows.Close()

	var updates []domain.CaseUpdate
	for rows.Next() {
		var (
			upd  domain.CaseUpdate
			date string
		)
		if err := rows.Scan(&upd.CaseName, &upd.Text, &date); err != nil {
			return nil, fmt.Errorf("scan case update: %w", err)
		}
		upd.Date = decodeDate(date)
		updates = append(updates, upd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate case updates: %w", err)
	}
	return updates, nil
}

// CasesChangedSince lists cases whose dirty flag moved past the
// watermark.
func (s *Store) CasesChangedSince(ctx context.Context, since time.Time) ([]domain.CaseRecord, error) {
	return s.queryCases(ctx, s.selectCases().
		Where(sq.Gt{"updated_at": encodeTime(since)}).
		OrderBy("updated_at DESC"))
}

// CasesMissingDescription lists cases awaiting a summary backfill.
func (s *Store) CasesMissingDescription(ctx context.Context) ([]domain.CaseRecord, error) {
	return s.queryCases(ctx, s.selectCases().
		Where(sq.Eq{"description": ""}).
		OrderBy("name ASC"))
}

// SetCaseDescription fills a backfilled summary without touching the
// dirty flag, so a backfill does not re-trigger event extraction.
func (s *Store) SetCaseDescription(ctx context.Context, name, caseNumber, description string) error {
	_, err := s.sb.Update("case_records").
		Set("description", description).
		Where(sq.Eq{"name": name, "case_number": caseNumber}).
		RunWith(s.db).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("set case description: %w", err)
	}
	return nil
}

func (s *Store) selectCases() sq.SelectBuilder {
	return s.sb.Select("name", "case_number", "court", "judge", "case_group", "status",
		"description", "last_event_date", "upcoming_dates", "active",
		"source_url", "updated_at").
		From("case_records")
}

func (s *Store) queryCases(ctx context.Context, builder sq.SelectBuilder) ([]domain.CaseRecord, error) {
	rows, err := builder.RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query cases: %w", err)
	}
	defer rows.Close()

	var records []domain.CaseRecord
	for rows.Next() {
		var rec domain.CaseRecord
		var lastEvent, dates, updated string
		var active int
		if err := rows.Scan(&rec.Name, &rec.CaseNumber, &rec.Court, &rec.Judge,
			&rec.Group, &rec.Status, &rec.Description, &lastEvent, &dates,
			&active, &rec.SourceURL, &updated); err != nil {
			return nil, fmt.Errorf("scan case: %w", err)
		}
		rec.LastEventDate = decodeDate(lastEvent)
		rec.Active = active != 0
		rec.UpdatedAt = decodeTime(updated)
		if err := json.Unmarshal([]byte(dates), &rec.UpcomingDates); err != nil {
			rec.UpcomingDates = nil
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cases: %w", err)
	}
	return records, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func encodeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeFormat)
}

func decodeTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{timeFormat, time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}

func decodeDate(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(dateFormat, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
