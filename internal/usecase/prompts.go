package usecase

import (
	"fmt"
	"strings"
	"time"

	"courtwatch/internal/domain"
)

const eventSystemPrompt = `You monitor legal, legislative, and regulatory developments in
college sports for a compliance team. From the provided headlines and docket changes,
extract discrete events that have already happened.

Severity reflects whether the reader must act, not how big the story is:
"critical" means action is required, "important" means it likely affects ongoing matters,
"routine" means informational only.

Respond with a single JSON object and nothing else:
{"events": [{"text": "...", "category": "...", "severity": "routine|important|critical",
"source": "...", "source_url": "...", "event_time": "RFC3339 timestamp from the input"}]}
Use the timestamp of the source line the event came from. If nothing qualifies, return {"events": []}.`

const deadlineSystemPrompt = `You monitor legal, legislative, and regulatory developments in
college sports. From the provided headlines and docket changes, extract concrete upcoming
action dates: filing deadlines, hearing dates, compliance effective dates, comment windows.

Only include dates strictly after today. Reject vague timeframes ("later this year",
"next season") and anything already in the past.

Respond with a single JSON object and nothing else:
{"deadlines": [{"date": "YYYY-MM-DD", "category": "...", "text": "...",
"severity": "routine|important|critical", "source": "..."}]}
If nothing qualifies, return {"deadlines": []}.`

const activitySystemPrompt = `You monitor the governing bodies of college sports (the NCAA,
athletic conferences, state and federal regulators). From the provided headlines, tag any
official governing-body activity.

Allowed tags: Guidance, Investigation, Enforcement, Personnel, RuleClarification.
Do not tag ordinary news coverage, opinion, or sports results.

Respond with a single JSON object and nothing else:
{"activity": [{"tag": "...", "text": "...", "source": "...", "source_url": "...",
"activity_time": "RFC3339 timestamp from the input"}]}
If nothing qualifies, return {"activity": []}.`

const briefingSystemPrompt = `You write a short daily briefing for a college-sports
compliance team. From the provided extracted events, recent headlines, and upcoming
deadlines, write an ordered list of sections, most urgent first. Each section is one
headline and one or two sentences of body text. Aim for three to six sections.

Respond with a single JSON object and nothing else:
{"sections": [{"headline": "...", "body": "..."}]}
If there is nothing worth briefing, return {"sections": []}.`

const caseSummaryPrompt = `You summarize lawsuits affecting college sports for a compliance
team. Write two or three plain sentences describing what the case is about and where it
stands. Respond with the summary text only, no JSON, no preamble.`

// activityKeywords prefilters items before the activity-tag task. Only
// items mentioning a governing body are worth a model call.
var activityKeywords = []string{
	"ncaa", "conference", "committee", "regulator", "attorney general",
	"department of", "legislature", "senate", "congress", "commission",
	"enforcement", "infractions", "bylaw", "eligibility ruling",
}

func mentionsGoverningBody(title string) bool {
	lower := strings.ToLower(title)
	for _, kw := range activityKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func itemsPayload(items []domain.RawItem, cases []domain.CaseRecord) string {
	var b strings.Builder
	if len(items) > 0 {
		b.WriteString("Headlines:\n")
		for _, it := range items {
			fmt.Fprintf(&b, "- [%s] %s (%s) at %s\n",
				it.Source, it.Title, it.URL, it.PublishedAt.Format(time.RFC3339))
		}
	}
	if len(cases) > 0 {
		b.WriteString("Docket changes:\n")
		for _, c := range cases {
			fmt.Fprintf(&b, "- %s (No. %s), %s, status: %s", c.Name, c.CaseNumber, c.Court, c.Status)
			if !c.LastEventDate.IsZero() {
				fmt.Fprintf(&b, ", last event %s", c.LastEventDate.Format("2006-01-02"))
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

func briefingPayload(events []domain.Event, items []domain.RawItem, deadlines []domain.Deadline) string {
	var b strings.Builder
	if len(events) > 0 {
		b.WriteString("Extracted events (most urgent first):\n")
		for _, ev := range events {
			fmt.Fprintf(&b, "- [%s/%s] %s (%s)\n", ev.Severity, ev.Category, ev.Text, ev.Source)
		}
	}
	if len(deadlines) > 0 {
		b.WriteString("Upcoming deadlines:\n")
		for _, d := range deadlines {
			fmt.Fprintf(&b, "- %s: %s (%s)\n", d.Date.Format("2006-01-02"), d.Text, d.Source)
		}
	}
	if len(items) > 0 {
		b.WriteString("Recent headlines:\n")
		for _, it := range items {
			fmt.Fprintf(&b, "- [%s] %s\n", it.Source, it.Title)
		}
	}
	return b.String()
}

func casePayload(c domain.CaseRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Case: %s\nNumber: %s\nCourt: %s\nStatus: %s\n", c.Name, c.CaseNumber, c.Court, c.Status)
	if c.Judge != "" {
		fmt.Fprintf(&b, "Judge: %s\n", c.Judge)
	}
	if c.Group != "" {
		fmt.Fprintf(&b, "Group: %s\n", c.Group)
	}
	for _, kd := range c.UpcomingDates {
		fmt.Fprintf(&b, "Upcoming: %s %s\n", kd.Date.Format("2006-01-02"), kd.Text)
	}
	return b.String()
}
