package main

import (
	"context"
	"fmt"
	"time"

	"github.com/Magniswerfer/Podhaven-sub000/internal/feeds"
	"github.com/Magniswerfer/Podhaven-sub000/internal/shared"
	"github.com/Magniswerfer/Podhaven-sub000/internal/tasks"
	"github.com/urfave/cli/v3"
)

// SyncRun executes one reconciliation pass against the configured
// backend, streaming progress as it goes.
func (r *Runner) SyncRun(ctx context.Context, cmd *cli.Command) error {
	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")

	store, db, err := r.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	remote, _, err := r.buildRemote(ctx, store)
	if err != nil {
		return err
	}

	engine := tasks.NewOrchestrator(remote, feeds.NewFetcher(), store, r.logger)

	if !useJSON {
		r.writePlain("Syncing with %s...\n\n", remote.Name())
	}

	progressCh := make(chan tasks.ProgressUpdate, 50)
	go func() {
		for update := range progressCh {
			if useJSON {
				continue
			}
			switch update.Phase {
			case tasks.SyncSubscriptions:
				r.writePlain("📡 %s\n", update.Message)
			case tasks.LinkEpisodes:
				r.writePlain("🔗 %s\n", update.Message)
			case tasks.SyncProgress:
				r.writePlain("⏱ %s\n", update.Message)
			case tasks.SyncQueue:
				r.writePlain("📋 %s\n", update.Message)
			default:
				r.writePlain("🔄 %s\n", update.Message)
			}
		}
	}()

	report, err := engine.Sync(ctx, progressCh)
	close(progressCh)
	if err != nil {
		return err
	}

	if useJSON {
		return r.writeJSON(report, pretty)
	}

	if report.Skipped {
		r.writePlain("\nAnother sync pass is already running, nothing to do\n")
		return nil
	}

	r.writePlain("\n")
	r.writePlainHeader("Sync Complete!")
	r.writePlain("Subscriptions: +%d / -%d, pushed %d\n", report.SubscriptionsAdded, report.SubscriptionsRemoved, report.SubscriptionsPushed)
	r.writePlain("Episodes: %d created, %d linked\n", report.EpisodesCreated, report.EpisodesLinked)
	r.writePlain("Progress: %d applied, %d actions pushed\n", report.ProgressApplied, report.ActionsPushed)
	r.writePlain("Queue: %d applied, %d pushed\n", report.QueueApplied, report.QueuePushed)
	if report.ActionsPending > 0 {
		r.writePlain("Still pending: %d actions\n", report.ActionsPending)
	}
	r.writePlain("Duration: %s\n", report.Duration.Round(time.Millisecond))
	if len(report.Errors) > 0 {
		r.writePlain("\nSkipped %d records:\n", len(report.Errors))
		for _, failure := range report.Errors {
			r.writePlain("  - %s %s: %v\n", failure.Stage, failure.Key, failure.Err)
		}
	}
	return nil
}

// SyncStatus reports the stored sync state and what is waiting to go
// out.
func (r *Runner) SyncStatus(ctx context.Context, cmd *cli.Command) error {
	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")

	store, db, err := r.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	state, err := store.State.GetOrCreate()
	if err != nil {
		return fmt.Errorf("failed to load sync state: %w", err)
	}
	pending, err := store.Actions.List(map[string]any{"synced": false})
	if err != nil {
		return fmt.Errorf("failed to list pending actions: %w", err)
	}
	dirty, err := store.Subscriptions.List(map[string]any{"needs_sync": true})
	if err != nil {
		return fmt.Errorf("failed to list dirty subscriptions: %w", err)
	}

	if useJSON {
		return r.writeJSON(map[string]any{
			"status":              state.Status(),
			"subscription_synced": state.SubscriptionSyncedAt(),
			"progress_synced":     state.ProgressSyncedAt(),
			"subscription_cursor": state.SubscriptionCursor(),
			"progress_cursor":     state.ProgressCursor(),
			"queue_cursor":        state.QueueCursor(),
			"pending_actions":     len(pending),
			"dirty_subscriptions": len(dirty),
			"last_error":          state.LastError(),
		}, pretty)
	}

	r.writePlain("Status: %s\n", state.Status())
	if t := state.SubscriptionSyncedAt(); t != nil {
		r.writePlain("Subscriptions synced: %s\n", t.Format(time.RFC3339))
	} else {
		r.writePlain("Subscriptions synced: never\n")
	}
	if t := state.ProgressSyncedAt(); t != nil {
		r.writePlain("Progress synced: %s\n", t.Format(time.RFC3339))
	} else {
		r.writePlain("Progress synced: never\n")
	}
	if c := state.SubscriptionCursor(); c != "" {
		r.writePlain("Subscription cursor: %s\n", c)
	}
	if c := state.ProgressCursor(); c != "" {
		r.writePlain("Progress cursor: %s\n", c)
	}
	if c := state.QueueCursor(); c != "" {
		r.writePlain("Queue cursor: %s\n", c)
	}
	r.writePlain("Pending actions: %d\n", len(pending))
	r.writePlain("Dirty subscriptions: %d\n", len(dirty))
	if state.LastError() != "" {
		r.writePlain("Last error: %s\n", state.LastError())
	}
	return nil
}

// SyncPrune deletes synced progress actions older than the cutoff.
func (r *Runner) SyncPrune(ctx context.Context, cmd *cli.Command) error {
	days := cmd.Int("days")
	if days < 0 {
		return fmt.Errorf("%w: days must not be negative", shared.ErrInvalidArgument)
	}

	store, db, err := r.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	pruned, err := tasks.NewProgressRecorder(store).Prune(cutoff)
	if err != nil {
		return err
	}

	r.logger.Info("pruned action log", "removed", pruned, "days", days)
	return r.writePlain("✓ Pruned %d synced actions older than %d days\n", pruned, days)
}

// syncCommand runs and inspects reconciliation passes
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Reconcile the local library with the sync backend",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output the report as raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
				Value: true,
			},
		},
		Action: r.SyncRun,
		Commands: []*cli.Command{
			{
				Name:  "status",
				Usage: "Show sync state, cursors, and pending uploads",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.SyncStatus,
			},
			{
				Name:  "prune",
				Usage: "Delete synced actions older than a cutoff",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "days",
						Usage: "Keep synced actions newer than this many days",
						Value: 30,
					},
				},
				Action: r.SyncPrune,
			},
		},
	}
}
