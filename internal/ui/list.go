package ui

import (
	"fmt"

	"github.com/Magniswerfer/Podhaven-sub000/internal/models"
	"github.com/Magniswerfer/Podhaven-sub000/internal/shared"
	"github.com/charmbracelet/bubbles/list"
)

var (
	_ list.Item = subscriptionItem{}
	_ list.Item = episodeItem{}
)

// subscriptionItem wraps [models.Subscription] to implement [list.Item].
type subscriptionItem struct {
	sub *models.Subscription
}

func (i subscriptionItem) FilterValue() string { return i.sub.Title() }
func (i subscriptionItem) Title() string       { return i.sub.Title() }
func (i subscriptionItem) Description() string {
	desc := i.sub.FeedURL()
	if i.sub.Author() != "" {
		desc = fmt.Sprintf("%s • %s", i.sub.Author(), desc)
	}
	return desc
}

// episodeItem wraps [models.Episode] to implement [list.Item].
type episodeItem struct {
	episode *models.Episode
}

func (i episodeItem) FilterValue() string { return i.episode.Title() }
func (i episodeItem) Title() string       { return i.episode.Title() }
func (i episodeItem) Description() string {
	desc := shared.FormatPosition(i.episode.Duration())
	switch {
	case i.episode.Played():
		desc = fmt.Sprintf("%s • played ✓", desc)
	case i.episode.Position() > 0:
		desc = fmt.Sprintf("%s • at %s", desc, shared.FormatPosition(i.episode.Position()))
	}
	if d := i.episode.PublishDate(); !d.IsZero() {
		desc = fmt.Sprintf("%s • %s", d.Format("2006-01-02"), desc)
	}
	return desc
}
