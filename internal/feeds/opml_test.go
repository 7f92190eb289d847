package feeds

import (
	"strings"
	"testing"

	"github.com/Magniswerfer/Podhaven-sub000/internal/models"
)

const testOPML = `<?xml version="1.0" encoding="UTF-8"?>
<opml version="2.0">
  <head>
    <title>Subscriptions</title>
  </head>
  <body>
    <outline text="Go Time" type="rss" xmlUrl="https://feeds.example/gotime.xml"/>
    <outline text="News">
      <outline text="Daily Brief" title="Daily Brief" type="rss" xmlUrl="https://feeds.example/brief.xml"/>
    </outline>
    <outline text="Empty Folder"/>
  </body>
</opml>`

func TestParseOPML(t *testing.T) {
	outlines, err := ParseOPML(strings.NewReader(testOPML))
	if err != nil {
		t.Fatalf("failed to parse OPML: %v", err)
	}

	if len(outlines) != 2 {
		t.Fatalf("expected 2 outlines, got %d", len(outlines))
	}

	if outlines[0].Title != "Go Time" || outlines[0].FeedURL != "https://feeds.example/gotime.xml" {
		t.Errorf("unexpected first outline: %+v", outlines[0])
	}

	// Nested folder outlines are flattened.
	if outlines[1].Title != "Daily Brief" || outlines[1].FeedURL != "https://feeds.example/brief.xml" {
		t.Errorf("unexpected second outline: %+v", outlines[1])
	}
}

func TestParseOPMLInvalid(t *testing.T) {
	if _, err := ParseOPML(strings.NewReader("not xml at all <")); err == nil {
		t.Fatal("expected error for malformed OPML")
	}
}

func TestWriteOPML(t *testing.T) {
	subs := []*models.Subscription{
		models.NewSubscription(0, "https://feeds.example/gotime.xml", models.Feed{Title: "Go Time"}),
		models.NewSubscription(0, "https://feeds.example/brief.xml", models.Feed{Title: "Daily Brief"}),
	}

	var sb strings.Builder
	if err := WriteOPML(&sb, subs); err != nil {
		t.Fatalf("failed to write OPML: %v", err)
	}

	output := sb.String()
	if !strings.HasPrefix(output, "<?xml") {
		t.Error("expected XML header")
	}
	if !strings.Contains(output, `xmlUrl="https://feeds.example/gotime.xml"`) {
		t.Error("expected first feed URL in output")
	}
	if !strings.Contains(output, `text="Daily Brief"`) {
		t.Error("expected second feed title in output")
	}

	parsed, err := ParseOPML(strings.NewReader(output))
	if err != nil {
		t.Fatalf("failed to re-parse written OPML: %v", err)
	}
	if len(parsed) != 2 {
		t.Errorf("expected 2 outlines after round trip, got %d", len(parsed))
	}
}
