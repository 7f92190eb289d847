package feeds

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Magniswerfer/Podhaven-sub000/internal/shared"
)

const testFeedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:itunes="http://www.itunes.com/dtds/podcast-1.0.dtd">
  <channel>
    <title>Go Time</title>
    <description><![CDATA[<p>A show about <b>Go</b></p>]]></description>
    <itunes:author>Changelog Media</itunes:author>
    <image>
      <url>https://example.com/cover.png</url>
      <title>Go Time</title>
    </image>
    <item>
      <title>Episode One</title>
      <guid>ep-001</guid>
      <description><![CDATA[Notes with <a href="https://example.com">links</a>]]></description>
      <pubDate>Mon, 02 Jun 2025 10:00:00 +0000</pubDate>
      <enclosure url="https://cdn.example.com/ep1.mp3" length="12345" type="audio/mpeg"/>
      <itunes:duration>1:02:03</itunes:duration>
    </item>
    <item>
      <title>Episode Two</title>
      <link>https://example.com/ep2</link>
      <enclosure url="https://cdn.example.com/ep2.mp3" length="999" type="audio/mpeg"/>
      <itunes:duration>754</itunes:duration>
    </item>
    <item>
      <title>Blog Post</title>
      <link>https://example.com/post</link>
    </item>
  </channel>
</rss>`

func TestParse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(testFeedXML))
	}))
	defer server.Close()

	fetcher := NewFetcher()
	feed, err := fetcher.Parse(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("failed to parse feed: %v", err)
	}

	if feed.Title != "Go Time" {
		t.Errorf("expected title Go Time, got %s", feed.Title)
	}
	if feed.Author != "Changelog Media" {
		t.Errorf("expected author Changelog Media, got %s", feed.Author)
	}
	if feed.Description != "A show about Go" {
		t.Errorf("expected stripped description, got %q", feed.Description)
	}
	if feed.ArtworkURL != "https://example.com/cover.png" {
		t.Errorf("expected artwork URL, got %s", feed.ArtworkURL)
	}

	// The item without an enclosure is not an episode.
	if len(feed.Episodes) != 2 {
		t.Fatalf("expected 2 episodes, got %d", len(feed.Episodes))
	}

	first := feed.Episodes[0]
	if first.GUID != "ep-001" {
		t.Errorf("expected GUID ep-001, got %s", first.GUID)
	}
	if first.AudioURL != "https://cdn.example.com/ep1.mp3" {
		t.Errorf("expected audio URL, got %s", first.AudioURL)
	}
	if first.Duration != 3723 {
		t.Errorf("expected duration 3723, got %d", first.Duration)
	}
	if first.Description != "Notes with links" {
		t.Errorf("expected stripped description, got %q", first.Description)
	}
	want := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	if !first.PublishDate.Equal(want) {
		t.Errorf("expected publish date %v, got %v", want, first.PublishDate)
	}

	second := feed.Episodes[1]
	if second.GUID != "https://example.com/ep2" {
		t.Errorf("expected GUID to fall back to link, got %s", second.GUID)
	}
	if second.Duration != 754 {
		t.Errorf("expected duration 754, got %d", second.Duration)
	}
}

func TestParseErrors(t *testing.T) {
	t.Run("NotFound", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		}))
		defer server.Close()

		fetcher := NewFetcher()
		_, err := fetcher.Parse(context.Background(), server.URL)
		if !errors.Is(err, shared.ErrFeedUnreachable) {
			t.Errorf("expected ErrFeedUnreachable, got %v", err)
		}
	})

	t.Run("InvalidFeed", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("this is not a feed"))
		}))
		defer server.Close()

		fetcher := NewFetcher()
		_, err := fetcher.Parse(context.Background(), server.URL)
		if !errors.Is(err, shared.ErrFeedParse) {
			t.Errorf("expected ErrFeedParse, got %v", err)
		}
	})

	t.Run("ConnectionRefused", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := server.URL
		server.Close()

		fetcher := NewFetcher()
		_, err := fetcher.Parse(context.Background(), url)
		if !errors.Is(err, shared.ErrFeedUnreachable) {
			t.Errorf("expected ErrFeedUnreachable, got %v", err)
		}
	})
}

func TestParseItunesDuration(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"3723", 3723},
		{"1:02:03", 3723},
		{"12:34", 754},
		{"0:42", 42},
		{"", 0},
		{"about an hour", 0},
		{"-5", 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseItunesDuration(tt.input); got != tt.expected {
				t.Errorf("parseItunesDuration(%q) = %d, expected %d", tt.input, got, tt.expected)
			}
		})
	}
}
