package ports

import (
	"context"
	"time"

	"courtwatch/internal/domain"
)

// ItemStore persists raw headlines with idempotent-insert semantics.
type ItemStore interface {
	InsertItem(ctx context.Context, item domain.RawItem) (bool, error)
	ItemsSince(ctx context.Context, since time.Time) ([]domain.RawItem, error)
	RecentItems(ctx context.Context, limit int) ([]domain.RawItem, error)
}

// CaseStore persists docket records and their append-only update log.
type CaseStore interface {
	UpsertCase(ctx context.Context, rec domain.CaseRecord) (domain.UpsertOutcome, error)
	InsertCaseUpdate(ctx context.Context, upd domain.CaseUpdate) (bool, error)
	ListCases(ctx context.Context, activeOnly bool) ([]domain.CaseRecord, error)
	CaseUpdates(ctx context.Context, caseName string, limit int) ([]domain.CaseUpdate, error)
	CasesChangedSince(ctx context.Context, since time.Time) ([]domain.CaseRecord, error)
	CasesMissingDescription(ctx context.Context) ([]domain.CaseRecord, error)
	SetCaseDescription(ctx context.Context, name, caseNumber, description string) error
}

// ExtractionStore persists the typed outputs of the extraction stage.
type ExtractionStore interface {
	InsertEvent(ctx context.Context, ev domain.Event) (bool, error)
	EventsSince(ctx context.Context, since time.Time) ([]domain.Event, error)
	RecentEvents(ctx context.Context, limit int) ([]domain.Event, error)
	EventsBySeverity(ctx context.Context, severity domain.Severity, limit int) ([]domain.Event, error)
	InsertDeadline(ctx context.Context, d domain.Deadline) (bool, error)
	UpcomingDeadlines(ctx context.Context, from time.Time, limit int) ([]domain.Deadline, error)
	InsertActivity(ctx context.Context, tag domain.ActivityTag) (bool, error)
	RecentActivity(ctx context.Context, limit int) ([]domain.ActivityTag, error)
	ReplaceBriefing(ctx context.Context, b domain.Briefing) error
	LatestBriefing(ctx context.Context) (*domain.Briefing, error)
}

// RunStateStore is the durable fetcher-name -> last-run map gating cooldowns.
type RunStateStore interface {
	LastRun(ctx context.Context, fetcherName string) (*time.Time, error)
	RecordRun(ctx context.Context, fetcherName string, at time.Time) error
}

// RunLedger appends one audit row per extraction run; the latest row
// supplies the since-timestamp for the next one.
type RunLedger interface {
	AppendRun(ctx context.Context, run domain.PipelineRun) error
	LatestRun(ctx context.Context) (*domain.PipelineRun, error)
}

// Reasoner sends one system+user exchange to the external reasoning
// service and returns the raw text of its reply.
type Reasoner interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Scheduler drives recurring jobs on cron expressions.
type Scheduler interface {
	Add(spec string, job func()) error
	Start()
	Stop(ctx context.Context) error
}
