package domain

import "time"

// Severity classifies how much operational attention an extracted event
// demands. Critical means action is required, not that the story is big.
type Severity string

const (
	SeverityRoutine   Severity = "routine"
	SeverityImportant Severity = "important"
	SeverityCritical  Severity = "critical"
)

// ValidSeverity reports whether s belongs to the closed severity set.
func ValidSeverity(s Severity) bool {
	switch s {
	case SeverityRoutine, SeverityImportant, SeverityCritical:
		return true
	}
	return false
}

// ActivityKind is the closed set of governing-body activity tags.
type ActivityKind string

const (
	ActivityGuidance          ActivityKind = "Guidance"
	ActivityInvestigation     ActivityKind = "Investigation"
	ActivityEnforcement       ActivityKind = "Enforcement"
	ActivityPersonnel         ActivityKind = "Personnel"
	ActivityRuleClarification ActivityKind = "RuleClarification"
)

// ValidActivityKind reports whether k belongs to the closed tag set.
func ValidActivityKind(k ActivityKind) bool {
	switch k {
	case ActivityGuidance, ActivityInvestigation, ActivityEnforcement,
		ActivityPersonnel, ActivityRuleClarification:
		return true
	}
	return false
}

// UpsertOutcome reports what a dedup/upsert write actually did.
type UpsertOutcome string

const (
	OutcomeInserted UpsertOutcome = "inserted"
	OutcomeUpdated  UpsertOutcome = "updated"
	OutcomeSkipped  UpsertOutcome = "skipped"
)

// RawItem is one deduplicated headline pulled by a source fetcher.
// The URL is the natural key; Category stays empty until a feed or the
// extraction stage supplies one.
type RawItem struct {
	Source      string
	Title       string
	URL         string
	PublishedAt time.Time
	Category    string
	CreatedAt   time.Time
}

// KeyDate is one upcoming docket date attached to a case.
type KeyDate struct {
	Date time.Time `json:"date"`
	Text string    `json:"text"`
}

// CaseRecord tracks one lawsuit on the docket tracker.
// Identity is (Name, CaseNumber). UpdatedAt is the dirty flag the
// extraction stage uses to find cases changed since its last run.
type CaseRecord struct {
	Name          string
	CaseNumber    string
	Court         string
	Judge         string
	Group         string
	Status        string
	Description   string
	LastEventDate time.Time
	UpcomingDates []KeyDate
	Active        bool
	SourceURL     string
	UpdatedAt     time.Time
}

// CaseUpdate is an append-only docket log entry, deduplicated by
// (CaseName, Text, Date) and never mutated after insert.
type CaseUpdate struct {
	CaseName string
	Text     string
	Date     time.Time
}

// Event is a discrete happened-fact produced by extraction. EventTime is
// inherited from the source item, not the processing time.
type Event struct {
	Text      string
	Category  string
	Severity  Severity
	Source    string
	SourceURL string
	EventTime time.Time
}

// Deadline is a concrete future action date produced by extraction.
type Deadline struct {
	Date     time.Time
	Category string
	Text     string
	Severity Severity
	Source   string
}

// ActivityTag records one piece of governing-body activity.
type ActivityTag struct {
	Tag          ActivityKind
	Text         string
	Source       string
	SourceURL    string
	ActivityTime time.Time
}

// BriefingSection is one headline/body pair of the daily briefing.
type BriefingSection struct {
	Headline string `json:"headline"`
	Body     string `json:"body"`
}

// Briefing is the narrative daily digest, one per calendar date,
// replaced wholesale each generation.
type Briefing struct {
	Date        time.Time
	Sections    []BriefingSection
	GeneratedAt time.Time
}

// FetcherRunState remembers when a fetcher last attempted a run.
type FetcherRunState struct {
	FetcherName string
	LastRun     time.Time
}

// PipelineRun is one append-only audit row per extraction execution.
type PipelineRun struct {
	ID                string
	ItemsProcessed    int
	EventsCreated     int
	DeadlinesCreated  int
	ActivityCreated   int
	BriefingGenerated bool
	RanAt             time.Time
}
