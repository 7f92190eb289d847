package feeds

import (
	"encoding/xml"
	"fmt"
	"io"
	"time"

	"github.com/Magniswerfer/Podhaven-sub000/internal/models"
)

// Outline is a single feed reference in an OPML subscription list.
type Outline struct {
	Title   string
	FeedURL string
}

type opmlDocument struct {
	XMLName xml.Name `xml:"opml"`
	Version string   `xml:"version,attr"`
	Head    opmlHead `xml:"head"`
	Body    opmlBody `xml:"body"`
}

type opmlHead struct {
	Title       string `xml:"title,omitempty"`
	DateCreated string `xml:"dateCreated,omitempty"`
}

type opmlBody struct {
	Outlines []opmlOutline `xml:"outline"`
}

type opmlOutline struct {
	Text     string        `xml:"text,attr"`
	Title    string        `xml:"title,attr,omitempty"`
	Type     string        `xml:"type,attr,omitempty"`
	XMLURL   string        `xml:"xmlUrl,attr,omitempty"`
	HTMLURL  string        `xml:"htmlUrl,attr,omitempty"`
	Outlines []opmlOutline `xml:"outline,omitempty"`
}

// ParseOPML reads an OPML subscription list and returns every feed it
// references, including feeds nested inside folder outlines.
func ParseOPML(r io.Reader) ([]Outline, error) {
	var doc opmlDocument
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode OPML: %w", err)
	}

	var outlines []Outline
	var walk func(nodes []opmlOutline)
	walk = func(nodes []opmlOutline) {
		for _, node := range nodes {
			if node.XMLURL != "" {
				title := node.Title
				if title == "" {
					title = node.Text
				}
				outlines = append(outlines, Outline{Title: title, FeedURL: node.XMLURL})
			}
			walk(node.Outlines)
		}
	}
	walk(doc.Body.Outlines)

	return outlines, nil
}

// WriteOPML renders subscriptions as an OPML 2.0 subscription list.
func WriteOPML(w io.Writer, subs []*models.Subscription) error {
	doc := opmlDocument{
		Version: "2.0",
		Head: opmlHead{
			Title:       "Podhaven subscriptions",
			DateCreated: time.Now().Format(time.RFC1123Z),
		},
	}

	for _, sub := range subs {
		doc.Body.Outlines = append(doc.Body.Outlines, opmlOutline{
			Text:   sub.Title(),
			Title:  sub.Title(),
			Type:   "rss",
			XMLURL: sub.FeedURL(),
		})
	}

	output, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode OPML: %w", err)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	if _, err := w.Write(output); err != nil {
		return err
	}

	_, err = io.WriteString(w, "\n")
	return err
}
