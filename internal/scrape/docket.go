package scrape

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"courtwatch/internal/domain"
	"courtwatch/internal/normalize"
)

// The docket tracker page has no data feed; this parser is coupled to
// its layout: group headers (h2) each followed by a ul.case-list of
// li.case entries carrying case-name/case-meta/description/key-dates
// children, plus one "Key Dates" section listing near-term dates across
// cases.

const descriptionBudget = 600

var dateLayouts = []string{"2006-01-02", "Jan 2, 2006", "January 2, 2006"}

// KeyDateEntry is one row of the tracker's cross-case key-dates section.
type KeyDateEntry struct {
	Date        time.Time
	CaseName    string
	Description string
}

// KeyDatesSection is the parsed "Key Dates" block with its period label.
type KeyDatesSection struct {
	Period  string
	Entries []KeyDateEntry
}

// ParseCases extracts case drafts from the tracker page. Entries under
// archival headings are skipped; a status mentioning "dismissed" marks
// the case inactive instead of dropping it. Zero results is a valid
// outcome the caller logs, not an error.
func ParseCases(page io.Reader, sourceURL string) ([]domain.CaseRecord, error) {
	doc, err := goquery.NewDocumentFromReader(page)
	if err != nil {
		return nil, fmt.Errorf("parse docket page: %w", err)
	}

	var records []domain.CaseRecord

	doc.Find("h2").Each(func(_ int, header *goquery.Selection) {
		group := strings.TrimSpace(header.Text())
		if group == "" || isArchivalHeading(group) || isKeyDatesHeading(group) {
			return
		}

		header.NextUntil("h2").Find("li.case").Each(func(_ int, entry *goquery.Selection) {
			rec, ok := parseCaseEntry(entry, group, sourceURL)
			if ok {
				records = append(records, rec)
			}
		})
	})

	return records, nil
}

// ParseKeyDates extracts the tracker's cross-case key-dates section.
// A page without one yields an empty section, not an error.
func ParseKeyDates(page io.Reader) (KeyDatesSection, error) {
	doc, err := goquery.NewDocumentFromReader(page)
	if err != nil {
		return KeyDatesSection{}, fmt.Errorf("parse docket page: %w", err)
	}

	var section KeyDatesSection

	doc.Find("h2").EachWithBreak(func(_ int, header *goquery.Selection) bool {
		heading := strings.TrimSpace(header.Text())
		if !isKeyDatesHeading(heading) {
			return true
		}

		if _, after, found := strings.Cut(heading, "—"); found {
			section.Period = strings.TrimSpace(after)
		}

		header.NextUntil("h2").Find("li").Each(func(_ int, li *goquery.Selection) {
			date := parseTimeTag(li.Find("time").First())
			if date.IsZero() {
				return
			}

			caseName := strings.TrimSpace(li.Find(".case").First().Text())
			text := strings.TrimSpace(li.Clone().ChildrenFiltered("time, .case").Remove().End().Text())

			section.Entries = append(section.Entries, KeyDateEntry{
				Date:        date,
				CaseName:    caseName,
				Description: text,
			})
		})
		return false
	})

	return section, nil
}

func parseCaseEntry(entry *goquery.Selection, group, sourceURL string) (domain.CaseRecord, bool) {
	nameSel := entry.Find(".case-name").First()
	number := strings.TrimSpace(nameSel.Find(".case-number").Text())
	name := strings.TrimSpace(strings.Replace(nameSel.Text(), number, "", 1))
	if name == "" {
		return domain.CaseRecord{}, false
	}

	status := strings.TrimSpace(entry.Find(".case-meta .status").First().Text())
	description := normalize.CleanAndTruncate(
		entry.Find("p.description").First().Text(), descriptionBudget)

	var upcoming []domain.KeyDate
	entry.Find("ul.key-dates li").Each(func(_ int, li *goquery.Selection) {
		date := parseTimeTag(li.Find("time").First())
		if date.IsZero() {
			return
		}
		text := strings.TrimSpace(li.Clone().ChildrenFiltered("time").Remove().End().Text())
		upcoming = append(upcoming, domain.KeyDate{Date: date, Text: text})
	})

	return domain.CaseRecord{
		Name:          name,
		CaseNumber:    number,
		Court:         strings.TrimSpace(entry.Find(".case-meta .court").First().Text()),
		Judge:         strings.TrimSpace(entry.Find(".case-meta .judge").First().Text()),
		Group:         group,
		Status:        status,
		Description:   description,
		LastEventDate: parseTimeTag(entry.Find(".case-meta .last-event time").First()),
		UpcomingDates: upcoming,
		Active:        !strings.Contains(strings.ToLower(status), "dismissed"),
		SourceURL:     sourceURL,
	}, true
}

func parseTimeTag(sel *goquery.Selection) time.Time {
	if sel.Length() == 0 {
		return time.Time{}
	}

	value, ok := sel.Attr("datetime")
	if !ok {
		value = sel.Text()
	}
	value = strings.TrimSpace(value)

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}

func isArchivalHeading(heading string) bool {
	lower := strings.ToLower(heading)
	return strings.Contains(lower, "archive") || strings.Contains(lower, "historical")
}

func isKeyDatesHeading(heading string) bool {
	return strings.Contains(strings.ToLower(heading), "key dates")
}
