package scrape

import (
	"strings"
	"testing"
	"time"
)

const trackerPage = `<html><body>
<h2>NIL &amp; Antitrust</h2>
<ul class="case-list">
  <li class="case">
    <h3 class="case-name">House v. NCAA <span class="case-number">4:20-cv-03919</span></h3>
    <ul class="case-meta">
      <li class="court">N.D. Cal.</li>
      <li class="judge">Hon. Claudia Wilken</li>
      <li class="status">Final approval granted</li>
      <li class="last-event"><time datetime="2026-02-01">Feb 1, 2026</time></li>
    </ul>
    <p class="description">Landmark antitrust settlement establishing a revenue-sharing
    framework for Division I athletes.</p>
    <ul class="key-dates">
      <li><time datetime="2026-03-01">Mar 1, 2026</time> Objection deadline</li>
      <li><time datetime="2026-04-15">Apr 15, 2026</time> Distribution hearing</li>
    </ul>
  </li>
  <li class="case">
    <h3 class="case-name">Doe v. Conference <span class="case-number">1:25-cv-00112</span></h3>
    <ul class="case-meta">
      <li class="court">S.D.N.Y.</li>
      <li class="status">Dismissed with prejudice</li>
    </ul>
    <p class="description">Eligibility challenge.</p>
  </li>
</ul>
<h2>Archived Cases</h2>
<ul class="case-list">
  <li class="case">
    <h3 class="case-name">Old v. Older <span class="case-number">9:19-cv-99999</span></h3>
  </li>
</ul>
<h2>Key Dates — Spring 2026</h2>
<ul class="key-dates">
  <li><time datetime="2026-03-01">Mar 1</time> <span class="case">House v. NCAA</span> Objection deadline</li>
  <li><time datetime="2026-03-20">Mar 20</time> <span class="case">Doe v. Conference</span> Status conference</li>
</ul>
</body></html>`

func TestParseCases(t *testing.T) {
	t.Parallel()

	records, err := ParseCases(strings.NewReader(trackerPage), "https://tracker.example.org")
	if err != nil {
		t.Fatalf("ParseCases error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 cases (archive skipped), got %d", len(records))
	}

	house := records[0]
	if house.Name != "House v. NCAA" {
		t.Fatalf("unexpected name: %q", house.Name)
	}
	if house.CaseNumber != "4:20-cv-03919" {
		t.Fatalf("unexpected case number: %q", house.CaseNumber)
	}
	if house.Court != "N.D. Cal." || house.Judge != "Hon. Claudia Wilken" {
		t.Fatalf("unexpected court/judge: %q / %q", house.Court, house.Judge)
	}
	if house.Group != "NIL & Antitrust" {
		t.Fatalf("unexpected group: %q", house.Group)
	}
	if !house.Active {
		t.Fatal("granted settlement should stay active")
	}
	if strings.Contains(house.Description, "\n") {
		t.Fatalf("description not normalized: %q", house.Description)
	}
	if len(house.UpcomingDates) != 2 {
		t.Fatalf("expected 2 upcoming dates, got %d", len(house.UpcomingDates))
	}
	if house.UpcomingDates[0].Text != "Objection deadline" {
		t.Fatalf("unexpected key date text: %q", house.UpcomingDates[0].Text)
	}
	wantDate := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	if !house.UpcomingDates[0].Date.Equal(wantDate) {
		t.Fatalf("unexpected key date: %v", house.UpcomingDates[0].Date)
	}
	if !house.LastEventDate.Equal(time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected last event date: %v", house.LastEventDate)
	}
}

func TestParseCasesDismissedMarkedInactive(t *testing.T) {
	t.Parallel()

	records, err := ParseCases(strings.NewReader(trackerPage), "https://tracker.example.org")
	if err != nil {
		t.Fatalf("ParseCases error: %v", err)
	}

	doe := records[1]
	if doe.Name != "Doe v. Conference" {
		t.Fatalf("unexpected name: %q", doe.Name)
	}
	if doe.Active {
		t.Fatal("dismissed case must be inactive, not deleted")
	}
}

func TestParseCasesDescriptionTruncated(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("athlete compensation dispute ", 40)
	page := `<h2>Group</h2><ul class="case-list"><li class="case">
	  <h3 class="case-name">Long v. Winded <span class="case-number">2:26-cv-00001</span></h3>
	  <p class="description">` + long + `</p></li></ul>`

	records, err := ParseCases(strings.NewReader(page), "")
	if err != nil {
		t.Fatalf("ParseCases error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 case, got %d", len(records))
	}

	desc := records[0].Description
	if len([]rune(desc)) > descriptionBudget {
		t.Fatalf("description exceeds budget: %d runes", len([]rune(desc)))
	}
	if !strings.HasSuffix(desc, "…") {
		t.Fatalf("truncated description missing ellipsis: %q", desc[len(desc)-20:])
	}
	if strings.HasSuffix(strings.TrimSuffix(desc, "…"), " ") {
		t.Fatal("truncation should break on a word boundary")
	}
}

func TestParseCasesEmptyPage(t *testing.T) {
	t.Parallel()

	records, err := ParseCases(strings.NewReader("<html><body><p>maintenance</p></body></html>"), "")
	if err != nil {
		t.Fatalf("zero parsed records must not be an error: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
}

func TestParseKeyDates(t *testing.T) {
	t.Parallel()

	section, err := ParseKeyDates(strings.NewReader(trackerPage))
	if err != nil {
		t.Fatalf("ParseKeyDates error: %v", err)
	}
	if section.Period != "Spring 2026" {
		t.Fatalf("unexpected period: %q", section.Period)
	}
	if len(section.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(section.Entries))
	}

	first := section.Entries[0]
	if first.CaseName != "House v. NCAA" {
		t.Fatalf("unexpected case name: %q", first.CaseName)
	}
	if first.Description != "Objection deadline" {
		t.Fatalf("unexpected description: %q", first.Description)
	}
	if !first.Date.Equal(time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected date: %v", first.Date)
	}
}
