package ui

import (
	"github.com/Magniswerfer/Podhaven-sub000/internal/models"
	"github.com/Magniswerfer/Podhaven-sub000/internal/tasks"
)

// subscriptionsLoadedMsg carries the subscription rows for the browser view.
type subscriptionsLoadedMsg struct {
	subs []*models.Subscription
	err  error
}

// episodesLoadedMsg carries one subscription's episode rows.
type episodesLoadedMsg struct {
	sub      *models.Subscription
	episodes []*models.Episode
	err      error
}

// syncProgressMsg wraps one engine progress update.
type syncProgressMsg tasks.ProgressUpdate

// syncDoneMsg reports the end of a sync pass.
type syncDoneMsg struct {
	report *tasks.SyncReport
	err    error
}
