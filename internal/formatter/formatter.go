// package formatter provides functions to export subscription and episode data to various formats (JSON, CSV, Markdown, plain text tables)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/Magniswerfer/Podhaven-sub000/internal/models"
	"github.com/Magniswerfer/Podhaven-sub000/internal/shared"
)

// Format names accepted by [WriteSubscriptions] and [WriteEpisodes].
const (
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
	FormatTable    = "table"
)

// SubscriptionRecord is the flat shape a subscription exports as.
type SubscriptionRecord struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Author        string     `json:"author,omitempty"`
	FeedURL       string     `json:"feed_url"`
	Subscribed    bool       `json:"subscribed"`
	LastRefreshed *time.Time `json:"last_refreshed,omitempty"`
}

// EpisodeRecord is the flat shape an episode exports as.
type EpisodeRecord struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	GUID        string     `json:"guid,omitempty"`
	AudioURL    string     `json:"audio_url"`
	PublishDate *time.Time `json:"publish_date,omitempty"`
	Duration    int        `json:"duration"`
	Position    int        `json:"position"`
	Played      bool       `json:"played"`
	Queued      bool       `json:"queued,omitempty"`
}

// NewSubscriptionRecord flattens a [models.Subscription] for export.
func NewSubscriptionRecord(sub *models.Subscription) SubscriptionRecord {
	return SubscriptionRecord{
		ID:            sub.ID(),
		Title:         sub.Title(),
		Author:        sub.Author(),
		FeedURL:       sub.FeedURL(),
		Subscribed:    sub.Subscribed(),
		LastRefreshed: sub.LastRefreshed(),
	}
}

// NewEpisodeRecord flattens a [models.Episode] for export.
func NewEpisodeRecord(ep *models.Episode) EpisodeRecord {
	rec := EpisodeRecord{
		ID:       ep.ID(),
		Title:    ep.Title(),
		GUID:     ep.GUID(),
		AudioURL: ep.AudioURL(),
		Duration: ep.Duration(),
		Position: ep.Position(),
		Played:   ep.Played(),
		Queued:   ep.Queued(),
	}
	if d := ep.PublishDate(); !d.IsZero() {
		rec.PublishDate = &d
	}
	return rec
}

// SubscriptionsToJSON renders subs as an indented JSON array of [SubscriptionRecord].
func SubscriptionsToJSON(subs []*models.Subscription) ([]byte, error) {
	records := make([]SubscriptionRecord, 0, len(subs))
	for _, sub := range subs {
		records = append(records, NewSubscriptionRecord(sub))
	}
	out, err := shared.MarshalJSON(records)
	if err != nil {
		return nil, err
	}
	return []byte(out + "\n"), nil
}

// EpisodesToJSON renders episodes as an indented JSON array of [EpisodeRecord].
func EpisodesToJSON(episodes []*models.Episode) ([]byte, error) {
	records := make([]EpisodeRecord, 0, len(episodes))
	for _, ep := range episodes {
		records = append(records, NewEpisodeRecord(ep))
	}
	out, err := shared.MarshalJSON(records)
	if err != nil {
		return nil, err
	}
	return []byte(out + "\n"), nil
}

// SubscriptionsToCSV renders subs as CSV with a header row.
func SubscriptionsToCSV(subs []*models.Subscription) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"ID", "Title", "Author", "Feed URL", "Subscribed", "Last Refreshed"}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, sub := range subs {
		refreshed := ""
		if t := sub.LastRefreshed(); t != nil {
			refreshed = t.Format(time.RFC3339)
		}
		record := []string{
			sub.ID(),
			sub.Title(),
			sub.Author(),
			sub.FeedURL(),
			strconv.FormatBool(sub.Subscribed()),
			refreshed,
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// EpisodesToCSV renders episodes as CSV with a header row. Duration and
// position are raw second counts.
func EpisodesToCSV(episodes []*models.Episode) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"ID", "Title", "GUID", "Audio URL", "Published", "Duration", "Position", "Played"}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, ep := range episodes {
		published := ""
		if d := ep.PublishDate(); !d.IsZero() {
			published = d.Format(time.RFC3339)
		}
		record := []string{
			ep.ID(),
			ep.Title(),
			ep.GUID(),
			ep.AudioURL(),
			published,
			strconv.Itoa(ep.Duration()),
			strconv.Itoa(ep.Position()),
			strconv.FormatBool(ep.Played()),
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// SubscriptionsToMarkdown renders subs as a Markdown document.
func SubscriptionsToMarkdown(subs []*models.Subscription) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Subscriptions\n\n")
	buf.WriteString(fmt.Sprintf("**Count**: %d\n\n", len(subs)))
	buf.WriteString("## Feeds\n\n")

	for i, sub := range subs {
		line := fmt.Sprintf("%d. %s", i+1, sub.Title())
		if sub.Author() != "" {
			line += fmt.Sprintf(" - %s", sub.Author())
		}
		line += fmt.Sprintf(" (%s)", sub.FeedURL())
		if !sub.Subscribed() {
			line += " [unsubscribed]"
		}
		buf.WriteString(line + "\n")
	}

	return buf.Bytes(), nil
}

// EpisodesToMarkdown renders one subscription and its episodes as a
// Markdown document.
func EpisodesToMarkdown(sub *models.Subscription, episodes []*models.Episode) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s\n\n", sub.Title()))
	if sub.ArtworkURL() != "" {
		buf.WriteString(fmt.Sprintf("![Artwork](%s)\n\n", sub.ArtworkURL()))
	}
	if sub.Author() != "" {
		buf.WriteString(fmt.Sprintf("**Author**: %s\n\n", sub.Author()))
	}
	if sub.Description() != "" {
		buf.WriteString(fmt.Sprintf("**Description**: %s\n\n", sub.Description()))
	}
	buf.WriteString(fmt.Sprintf("**Feed**: %s\n\n", sub.FeedURL()))
	buf.WriteString(fmt.Sprintf("**Episodes**: %d\n\n", len(episodes)))
	buf.WriteString("## Episodes\n\n")

	for i, ep := range episodes {
		buf.WriteString(episodeLine(i, ep) + "\n")
	}

	return buf.Bytes(), nil
}

func episodeLine(i int, ep *models.Episode) string {
	line := fmt.Sprintf("%d. %s [%s]", i+1, ep.Title(), shared.FormatPosition(ep.Duration()))
	if ep.Played() {
		line += " ✓"
	} else if ep.Position() > 0 {
		line += fmt.Sprintf(" (at %s)", shared.FormatPosition(ep.Position()))
	}
	return line
}

// SubscriptionsToTable renders subs as an aligned plain text table.
func SubscriptionsToTable(subs []*models.Subscription) ([]byte, error) {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, "TITLE\tAUTHOR\tSTATUS\tFEED")
	for _, sub := range subs {
		status := "subscribed"
		if !sub.Subscribed() {
			status = "unsubscribed"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", sub.Title(), sub.Author(), status, sub.FeedURL())
	}

	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("table writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// EpisodesToTable renders episodes as an aligned plain text table.
func EpisodesToTable(episodes []*models.Episode) ([]byte, error) {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, "PUBLISHED\tTITLE\tDURATION\tPROGRESS")
	for _, ep := range episodes {
		published := "-"
		if d := ep.PublishDate(); !d.IsZero() {
			published = d.Format("2006-01-02")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", published, ep.Title(), shared.FormatPosition(ep.Duration()), progressCell(ep))
	}

	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("table writer error: %w", err)
	}
	return buf.Bytes(), nil
}

func progressCell(ep *models.Episode) string {
	switch {
	case ep.Played():
		return "played"
	case ep.Position() > 0:
		return shared.FormatPosition(ep.Position())
	default:
		return "-"
	}
}

// WriteSubscriptions renders subs in the named format to w. An empty
// format means table.
func WriteSubscriptions(w io.Writer, format string, subs []*models.Subscription) error {
	var (
		data []byte
		err  error
	)
	switch format {
	case FormatJSON:
		data, err = SubscriptionsToJSON(subs)
	case FormatCSV:
		data, err = SubscriptionsToCSV(subs)
	case FormatMarkdown:
		data, err = SubscriptionsToMarkdown(subs)
	case FormatTable, "":
		data, err = SubscriptionsToTable(subs)
	default:
		return fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, format)
	}
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// WriteEpisodes renders sub's episodes in the named format to w. An empty
// format means table.
func WriteEpisodes(w io.Writer, format string, sub *models.Subscription, episodes []*models.Episode) error {
	var (
		data []byte
		err  error
	)
	switch format {
	case FormatJSON:
		data, err = EpisodesToJSON(episodes)
	case FormatCSV:
		data, err = EpisodesToCSV(episodes)
	case FormatMarkdown:
		data, err = EpisodesToMarkdown(sub, episodes)
	case FormatTable, "":
		data, err = EpisodesToTable(episodes)
	default:
		return fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, format)
	}
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// WriteSubscriptionsFile renders subs to a file and returns the path
// written. An empty path derives subscriptions.<ext> from the format.
func WriteSubscriptionsFile(format, path string, subs []*models.Subscription) (string, error) {
	if path == "" {
		path = "subscriptions." + extensionFor(format)
	}
	var buf bytes.Buffer
	if err := WriteSubscriptions(&buf, format, subs); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

// WriteEpisodesFile renders sub's episodes to a file and returns the path
// written. An empty path derives <subscription id>_episodes.<ext> from
// the format.
func WriteEpisodesFile(format, path string, sub *models.Subscription, episodes []*models.Episode) (string, error) {
	if path == "" {
		path = fmt.Sprintf("%s_episodes.%s", sub.ID(), extensionFor(format))
	}
	var buf bytes.Buffer
	if err := WriteEpisodes(&buf, format, sub, episodes); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

func extensionFor(format string) string {
	switch format {
	case FormatJSON:
		return "json"
	case FormatCSV:
		return "csv"
	case FormatMarkdown:
		return "md"
	default:
		return "txt"
	}
}
