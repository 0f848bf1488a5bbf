package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"courtwatch/internal/domain"
	"courtwatch/internal/source"
)

type stubTriggers struct {
	results    []source.Result
	extractErr error
	extracted  int
}

func (s *stubTriggers) RunAll(context.Context) []source.Result { return s.results }

func (s *stubTriggers) RunOne(_ context.Context, name string) (source.Result, error) {
	for _, res := range s.results {
		if res.Name == name {
			return res, nil
		}
	}
	return source.Result{}, errors.New("fetcher " + name + " is not registered")
}

func (s *stubTriggers) Run(context.Context) error {
	s.extracted++
	return s.extractErr
}

type stubReads struct {
	items    []domain.RawItem
	cases    []domain.CaseRecord
	updates  []domain.CaseUpdate
	events   []domain.Event
	briefing *domain.Briefing
	run      *domain.PipelineRun
}

func (s *stubReads) InsertItem(context.Context, domain.RawItem) (bool, error) { return true, nil }

func (s *stubReads) ItemsSince(context.Context, time.Time) ([]domain.RawItem, error) {
	return s.items, nil
}

func (s *stubReads) RecentItems(context.Context, int) ([]domain.RawItem, error) {
	return s.items, nil
}

func (s *stubReads) UpsertCase(context.Context, domain.CaseRecord) (domain.UpsertOutcome, error) {
	return domain.OutcomeSkipped, nil
}

func (s *stubReads) InsertCaseUpdate(context.Context, domain.CaseUpdate) (bool, error) {
	return true, nil
}

func (s *stubReads) ListCases(context.Context, bool) ([]domain.CaseRecord, error) {
	return s.cases, nil
}

func (s *stubReads) CaseUpdates(context.Context, string, int) ([]domain.CaseUpdate, error) {
	return s.updates, nil
}

func (s *stubReads) CasesChangedSince(context.Context, time.Time) ([]domain.CaseRecord, error) {
	return nil, nil
}

func (s *stubReads) CasesMissingDescription(context.Context) ([]domain.CaseRecord, error) {
	return nil, nil
}

func (s *stubReads) SetCaseDescription(context.Context, string, string, string) error { return nil }

func (s *stubReads) InsertEvent(context.Context, domain.Event) (bool, error) { return true, nil }

func (s *stubReads) EventsSince(context.Context, time.Time) ([]domain.Event, error) {
	return s.events, nil
}

func (s *stubReads) RecentEvents(context.Context, int) ([]domain.Event, error) {
	return s.events, nil
}

func (s *stubReads) EventsBySeverity(_ context.Context, severity domain.Severity, limit int) ([]domain.Event, error) {
	var out []domain.Event
	for _, ev := range s.events {
		if ev.Severity == severity && len(out) < limit {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *stubReads) InsertDeadline(context.Context, domain.Deadline) (bool, error) {
	return true, nil
}

func (s *stubReads) UpcomingDeadlines(context.Context, time.Time, int) ([]domain.Deadline, error) {
	return nil, nil
}

func (s *stubReads) InsertActivity(context.Context, domain.ActivityTag) (bool, error) {
	return true, nil
}

func (s *stubReads) RecentActivity(context.Context, int) ([]domain.ActivityTag, error) {
	return nil, nil
}

func (s *stubReads) ReplaceBriefing(context.Context, domain.Briefing) error { return nil }

func (s *stubReads) LatestBriefing(context.Context) (*domain.Briefing, error) {
	return s.briefing, nil
}

func (s *stubReads) AppendRun(context.Context, domain.PipelineRun) error { return nil }

func (s *stubReads) LatestRun(context.Context) (*domain.PipelineRun, error) { return s.run, nil }

func newTestServer(triggers *stubTriggers, reads *stubReads) *httptest.Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := NewServer(triggers, triggers, reads, reads, reads, reads, logger)
	return httptest.NewServer(srv.Handler())
}

func TestRunFetchersEndpoint(t *testing.T) {
	triggers := &stubTriggers{results: []source.Result{
		{Name: "sportico-law", Inserted: 4},
		{Name: "docket-tracker", Err: errors.New("status 503")},
	}}
	ts := newTestServer(triggers, &stubReads{})
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/run/fetchers", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var results []fetchResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&results))
	require.Len(t, results, 2)
	require.Equal(t, 4, results[0].Inserted)
	require.Contains(t, results[1].Error, "503")
}

func TestRunExtractionEndpoint(t *testing.T) {
	triggers := &stubTriggers{}
	ts := newTestServer(triggers, &stubReads{})
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/run/extraction", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 1, triggers.extracted)

	triggers.extractErr = errors.New("event extraction: reply contained no JSON")
	resp, err = http.Post(ts.URL+"/run/extraction", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestTriggersRejectGet(t *testing.T) {
	ts := newTestServer(&stubTriggers{}, &stubReads{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/run/fetchers")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestListingEndpoints(t *testing.T) {
	reads := &stubReads{
		events: []domain.Event{
			{Text: "Injunction granted", Severity: domain.SeverityCritical},
			{Text: "Hearing recap posted", Severity: domain.SeverityRoutine},
		},
		cases: []domain.CaseRecord{{Name: "House v. NCAA", Active: true}},
	}
	ts := newTestServer(&stubTriggers{}, reads)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/events?limit=10")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var events []domain.Event
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&events))
	require.Len(t, events, 2)
	require.Equal(t, "Injunction granted", events[0].Text)

	// severity narrows before the limit applies, so a tight limit still
	// surfaces the matching event
	resp, err = http.Get(ts.URL + "/events?severity=routine&limit=1")
	require.NoError(t, err)
	defer resp.Body.Close()
	var routine []domain.Event
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&routine))
	require.Len(t, routine, 1)
	require.Equal(t, "Hearing recap posted", routine[0].Text)

	resp, err = http.Get(ts.URL + "/events?severity=catastrophic")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/cases?active=true")
	require.NoError(t, err)
	defer resp.Body.Close()
	var cases []domain.CaseRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cases))
	require.Len(t, cases, 1)
}

func TestLatestBriefingNotFound(t *testing.T) {
	ts := newTestServer(&stubTriggers{}, &stubReads{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/briefing/latest")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLatestRun(t *testing.T) {
	reads := &stubReads{run: &domain.PipelineRun{ID: "r1", EventsCreated: 3}}
	ts := newTestServer(&stubTriggers{}, reads)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/runs/latest")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var run domain.PipelineRun
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&run))
	require.Equal(t, 3, run.EventsCreated)
}
