// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a multi-view workflow over the local podcast library:
//  1. [SubscriptionListView] : Browse subscribed feeds
//  2. [EpisodeListView] : Inspect episodes with listening progress
//  3. [SyncView] : Monitor a live reconciliation pass
//  4. [ResultView] : Display the pass report and skipped records
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern.
// Progress updates flow through a channel from the sync engine, providing non-blocking status reporting during a pass.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, s, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
