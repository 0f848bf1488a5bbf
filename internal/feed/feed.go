package feed

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"
)

// Item is one candidate entry from a syndication payload. Missing
// optional fields come back as empty strings; a zero PublishedAt means
// the entry carried no parseable date.
type Item struct {
	Title       string
	Link        string
	SourceName  string
	Summary     string
	Category    string
	PublishedAt time.Time
}

// Parse turns an RSS 2.0 or Atom payload into items in source order.
// Individual malformed entries are skipped; an error is returned only
// when the payload contains no recognizable feed at all.
func Parse(payload []byte) ([]Item, error) {
	dec := xml.NewDecoder(bytes.NewReader(payload))
	dec.Strict = false

	var (
		items        []Item
		sawContainer bool
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			if sawContainer || len(items) > 0 {
				break
			}
			return nil, fmt.Errorf("parse feed: %w", err)
		}

		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch se.Name.Local {
		case "rss", "channel", "feed":
			sawContainer = true
		case "item":
			var entry rssItem
			if err := dec.DecodeElement(&entry, &se); err != nil {
				continue
			}
			items = append(items, entry.toItem())
		case "entry":
			var entry atomEntry
			if err := dec.DecodeElement(&entry, &se); err != nil {
				continue
			}
			items = append(items, entry.toItem())
		}
	}

	if !sawContainer && len(items) == 0 {
		return nil, fmt.Errorf("parse feed: no rss or atom container found")
	}

	return items, nil
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	PubDate     string `xml:"pubDate"`
	Date        string `xml:"date"`
	Source      string `xml:"source"`
	Description string `xml:"description"`
	Category    string `xml:"category"`
}

func (r rssItem) toItem() Item {
	return Item{
		Title:       strings.TrimSpace(r.Title),
		Link:        strings.TrimSpace(r.Link),
		SourceName:  strings.TrimSpace(r.Source),
		Summary:     strings.TrimSpace(r.Description),
		Category:    strings.TrimSpace(r.Category),
		PublishedAt: parseTime(firstNonEmpty(r.PubDate, r.Date)),
	}
}

type atomEntry struct {
	Title     string     `xml:"title"`
	Links     []atomLink `xml:"link"`
	Published string     `xml:"published"`
	Updated   string     `xml:"updated"`
	Summary   string     `xml:"summary"`
	Source    struct {
		Title string `xml:"title"`
	} `xml:"source"`
	Categories []struct {
		Term string `xml:"term,attr"`
	} `xml:"category"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
}

func (a atomEntry) toItem() Item {
	link := ""
	for _, l := range a.Links {
		if l.Rel == "" || l.Rel == "alternate" {
			link = l.Href
			break
		}
	}
	if link == "" && len(a.Links) > 0 {
		link = a.Links[0].Href
	}

	category := ""
	if len(a.Categories) > 0 {
		category = a.Categories[0].Term
	}

	return Item{
		Title:       strings.TrimSpace(a.Title),
		Link:        strings.TrimSpace(link),
		SourceName:  strings.TrimSpace(a.Source.Title),
		Summary:     strings.TrimSpace(a.Summary),
		Category:    strings.TrimSpace(category),
		PublishedAt: parseTime(firstNonEmpty(a.Published, a.Updated)),
	}
}

var timeLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
