package feed

import (
	"testing"
	"time"
)

const rssPayload = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Sports Law Wire</title>
  <item>
    <title><![CDATA[Judge sets trial date in athlete pay case]]></title>
    <link>https://example.org/trial-date</link>
    <pubDate>Mon, 09 Feb 2026 14:30:00 -0500</pubDate>
    <source url="https://example.org">Sports Law Wire</source>
    <category>Litigation</category>
    <description><![CDATA[The court scheduled trial for <b>June</b>.]]></description>
  </item>
  <item>
    <title>Plain text title</title>
    <link>https://example.org/plain</link>
  </item>
</channel>
</rss>`

func TestParseRSS(t *testing.T) {
	t.Parallel()

	items, err := Parse([]byte(rssPayload))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}

	first := items[0]
	if first.Title != "Judge sets trial date in athlete pay case" {
		t.Fatalf("unexpected title: %q", first.Title)
	}
	if first.Link != "https://example.org/trial-date" {
		t.Fatalf("unexpected link: %q", first.Link)
	}
	if first.SourceName != "Sports Law Wire" {
		t.Fatalf("unexpected source: %q", first.SourceName)
	}
	if first.Category != "Litigation" {
		t.Fatalf("unexpected category: %q", first.Category)
	}

	want := time.Date(2026, time.February, 9, 19, 30, 0, 0, time.UTC)
	if !first.PublishedAt.Equal(want) {
		t.Fatalf("unexpected published time: %v", first.PublishedAt)
	}
}

func TestParseToleratesMissingFields(t *testing.T) {
	t.Parallel()

	items, err := Parse([]byte(rssPayload))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	second := items[1]
	if second.Title != "Plain text title" {
		t.Fatalf("unexpected title: %q", second.Title)
	}
	if second.SourceName != "" || second.Category != "" {
		t.Fatalf("missing fields should be empty, got %q / %q", second.SourceName, second.Category)
	}
	if !second.PublishedAt.IsZero() {
		t.Fatalf("missing pubDate should yield zero time, got %v", second.PublishedAt)
	}
}

func TestParseToleratesBadEntryDate(t *testing.T) {
	t.Parallel()

	payload := `<rss><channel>
	  <item><title>good</title><link>https://example.org/a</link><pubDate>not a date</pubDate></item>
	  <item><title>also good</title><link>https://example.org/b</link><pubDate>Tue, 10 Feb 2026 08:00:00 GMT</pubDate></item>
	</channel></rss>`

	items, err := Parse([]byte(payload))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected both entries, got %d", len(items))
	}
	if !items[0].PublishedAt.IsZero() {
		t.Fatalf("bad date should yield zero time")
	}
	if items[1].PublishedAt.IsZero() {
		t.Fatalf("valid date should parse")
	}
}

func TestParseAtom(t *testing.T) {
	t.Parallel()

	payload := `<?xml version="1.0"?>
	<feed xmlns="http://www.w3.org/2005/Atom">
	  <entry>
	    <title>Regulator opens inquiry into booster collective</title>
	    <link rel="alternate" href="https://example.org/inquiry"/>
	    <published>2026-02-11T09:00:00Z</published>
	    <category term="Enforcement"/>
	    <source><title>Governance Watch</title></source>
	  </entry>
	</feed>`

	items, err := Parse([]byte(payload))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].Link != "https://example.org/inquiry" {
		t.Fatalf("unexpected link: %q", items[0].Link)
	}
	if items[0].SourceName != "Governance Watch" {
		t.Fatalf("unexpected source: %q", items[0].SourceName)
	}
	if items[0].Category != "Enforcement" {
		t.Fatalf("unexpected category: %q", items[0].Category)
	}
}

func TestParseGarbageFails(t *testing.T) {
	t.Parallel()

	if _, err := Parse([]byte("this is not a feed at all")); err == nil {
		t.Fatal("expected error for payload without a feed container")
	}
}

func TestParsePreservesSourceOrder(t *testing.T) {
	t.Parallel()

	payload := `<rss><channel>
	  <item><title>first</title></item>
	  <item><title>second</title></item>
	  <item><title>third</title></item>
	</channel></rss>`

	items, err := Parse([]byte(payload))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	got := []string{items[0].Title, items[1].Title, items[2].Title}
	want := []string{"first", "second", "third"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order mismatch at %d: %v", i, got)
		}
	}
}
