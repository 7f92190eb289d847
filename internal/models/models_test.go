package models

import (
	"errors"
	"testing"
	"time"

	"github.com/Magniswerfer/Podhaven-sub000/internal/shared"
)

func TestSubscription(t *testing.T) {
	feed := Feed{
		Title:       "Test Show",
		Author:      "Test Author",
		Description: "A show about tests",
		ArtworkURL:  "https://example.com/art.png",
	}

	t.Run("NewSubscription", func(t *testing.T) {
		sub := NewSubscription(1, "https://feeds.example/a.xml", feed)

		if !sub.Subscribed() {
			t.Error("new subscription should be subscribed")
		}
		if sub.NeedsSync() {
			t.Error("new subscription should not be dirty by default")
		}
		if sub.Title() != "Test Show" {
			t.Errorf("expected title Test Show, got %s", sub.Title())
		}
		if sub.LastRefreshed() != nil {
			t.Error("new subscription should have no refresh timestamp")
		}
	})

	t.Run("Validate", func(t *testing.T) {
		sub := NewSubscription(1, "", feed)
		if err := sub.Validate(); !errors.Is(err, shared.ErrValidation) {
			t.Errorf("expected ErrValidation for empty feed URL, got %v", err)
		}

		sub = NewSubscription(1, "https://feeds.example/a.xml", feed)
		if err := sub.Validate(); err != nil {
			t.Errorf("expected valid subscription, got %v", err)
		}
	})

	t.Run("ApplyFeed", func(t *testing.T) {
		sub := NewSubscription(1, "https://feeds.example/a.xml", feed)
		sub.ApplyFeed(Feed{Title: "Renamed", Author: "New Author"})

		if sub.Title() != "Renamed" {
			t.Errorf("expected title Renamed, got %s", sub.Title())
		}
		if sub.Author() != "New Author" {
			t.Errorf("expected author New Author, got %s", sub.Author())
		}
	})
}

func TestEpisode(t *testing.T) {
	entry := FeedEpisode{
		GUID:        "ep-1",
		Title:       "Episode One",
		AudioURL:    "https://cdn.example/ep1.mp3",
		PublishDate: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Duration:    1800,
	}

	t.Run("NewEpisode", func(t *testing.T) {
		ep := NewEpisode(1, "sub-id", entry)

		if ep.Position() != 0 {
			t.Errorf("expected zero position, got %d", ep.Position())
		}
		if ep.Played() {
			t.Error("new episode should not be played")
		}
		if ep.Dirty() {
			t.Error("new episode should not be dirty")
		}
		if ep.LastSynced() != nil {
			t.Error("new episode should have no last-synced timestamp")
		}
	})

	t.Run("Validate", func(t *testing.T) {
		cases := []struct {
			name    string
			mutate  func(*Episode)
			wantErr bool
		}{
			{name: "valid", mutate: func(e *Episode) {}, wantErr: false},
			{name: "missing subscription", mutate: func(e *Episode) { e.subscriptionID = "" }, wantErr: true},
			{name: "missing guid", mutate: func(e *Episode) { e.guid = "" }, wantErr: true},
			{name: "negative position", mutate: func(e *Episode) { e.position = -1 }, wantErr: true},
		}

		for _, tt := range cases {
			t.Run(tt.name, func(t *testing.T) {
				ep := NewEpisode(1, "sub-id", entry)
				tt.mutate(ep)

				err := ep.Validate()
				if tt.wantErr && !errors.Is(err, shared.ErrValidation) {
					t.Errorf("expected ErrValidation, got %v", err)
				}
				if !tt.wantErr && err != nil {
					t.Errorf("expected valid episode, got %v", err)
				}
			})
		}
	})
}

func TestPendingAction(t *testing.T) {
	t.Run("NewPendingAction", func(t *testing.T) {
		action := NewPendingAction(1, "ep-id", 120, 1800, false)

		if action.Synced() {
			t.Error("new action should not be synced")
		}
		if action.RecordedAt().IsZero() {
			t.Error("new action should record its creation time")
		}
	})

	t.Run("Validate", func(t *testing.T) {
		action := NewPendingAction(1, "", 120, 1800, false)
		if err := action.Validate(); !errors.Is(err, shared.ErrValidation) {
			t.Errorf("expected ErrValidation for missing episode, got %v", err)
		}

		action = NewPendingAction(1, "ep-id", -5, 1800, false)
		if err := action.Validate(); !errors.Is(err, shared.ErrValidation) {
			t.Errorf("expected ErrValidation for negative position, got %v", err)
		}
	})
}

func TestSyncState(t *testing.T) {
	state := NewSyncState()

	if state.Status() != SyncIdle {
		t.Errorf("expected idle status, got %s", state.Status())
	}
	if state.Running() {
		t.Error("new state should not be running")
	}

	state.SetStatus(SyncRunning)
	if !state.Running() {
		t.Error("expected running state")
	}
}

func TestServerConfig(t *testing.T) {
	t.Run("Session", func(t *testing.T) {
		config := NewServerConfig(BackendGPodder, "https://gpodder.net", "device-1")

		if config.Authenticated() {
			t.Error("new config should not be authenticated")
		}

		config.SetSession("alice", "session-token")
		if !config.Authenticated() {
			t.Error("expected authenticated after SetSession")
		}
		if config.Username() != "alice" {
			t.Errorf("expected username alice, got %s", config.Username())
		}

		config.ClearSession()
		if config.Authenticated() || config.Token() != "" {
			t.Error("expected cleared session")
		}
	})

	t.Run("Validate", func(t *testing.T) {
		config := NewServerConfig("ftp", "https://example.com", "device-1")
		if err := config.Validate(); !errors.Is(err, shared.ErrValidation) {
			t.Errorf("expected ErrValidation for unknown backend, got %v", err)
		}

		config = NewServerConfig(BackendPodhaven, "", "device-1")
		if err := config.Validate(); !errors.Is(err, shared.ErrValidation) {
			t.Errorf("expected ErrValidation for missing base URL, got %v", err)
		}

		config = NewServerConfig(BackendPodhaven, "https://podhaven.example", "device-1")
		if err := config.Validate(); err != nil {
			t.Errorf("expected valid config, got %v", err)
		}
	})
}
