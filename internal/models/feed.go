package models

import "time"

// Feed is the parsed representation of a podcast feed.
type Feed struct {
	FeedURL     string        `json:"feed_url"`
	Title       string        `json:"title"`
	Author      string        `json:"author"`
	Description string        `json:"description"`
	ArtworkURL  string        `json:"artwork_url"`
	Episodes    []FeedEpisode `json:"episodes"`
}

// FeedEpisode is one entry of a parsed feed.
type FeedEpisode struct {
	GUID        string    `json:"guid"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	AudioURL    string    `json:"audio_url"`
	ArtworkURL  string    `json:"artwork_url"`
	PublishDate time.Time `json:"publish_date"`
	Duration    int       `json:"duration"`
}
