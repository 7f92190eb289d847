package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/Magniswerfer/Podhaven-sub000/internal/formatter"
	"github.com/Magniswerfer/Podhaven-sub000/internal/shared"
	"github.com/urfave/cli/v3"
)

// QueueAdd appends an episode to the play queue.
func (r *Runner) QueueAdd(ctx context.Context, cmd *cli.Command) error {
	query := strings.TrimSpace(cmd.StringArg("episode"))
	if query == "" {
		return fmt.Errorf("%w: episode", shared.ErrMissingArgument)
	}

	store, db, err := r.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	ep, err := r.findEpisode(store, query)
	if err != nil {
		return err
	}
	if ep.Queued() {
		return r.writePlain("Already queued: %s\n", ep.Title())
	}

	queue, err := store.Episodes.ListQueue()
	if err != nil {
		return fmt.Errorf("failed to read queue: %w", err)
	}
	next := 1
	for _, queued := range queue {
		if pos := queued.QueuePosition(); pos != nil && *pos >= next {
			next = *pos + 1
		}
	}

	ep.SetQueued(true)
	ep.SetQueuePosition(&next)
	ep.SetQueueDirty(true)
	if err := store.Episodes.Update(ep); err != nil {
		return fmt.Errorf("failed to queue episode: %w", err)
	}

	r.logger.Info("queued", "episode", ep.Title(), "position", next)
	r.writePlain("✓ Queued at position %d: %s\n", next, ep.Title())
	r.writePlain("  Queued for upload on the next sync pass\n")
	return nil
}

// QueueRemove drops an episode from the play queue and closes the gap
// it leaves.
func (r *Runner) QueueRemove(ctx context.Context, cmd *cli.Command) error {
	query := strings.TrimSpace(cmd.StringArg("episode"))
	if query == "" {
		return fmt.Errorf("%w: episode", shared.ErrMissingArgument)
	}

	store, db, err := r.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	ep, err := r.findEpisode(store, query)
	if err != nil {
		return err
	}
	if !ep.Queued() {
		return r.writePlain("Not queued: %s\n", ep.Title())
	}

	ep.SetQueued(false)
	ep.SetQueuePosition(nil)
	ep.SetQueueDirty(true)
	if err := store.Episodes.Update(ep); err != nil {
		return fmt.Errorf("failed to remove from queue: %w", err)
	}

	// Renumber what remains so positions stay contiguous. The removed
	// row's dirty flag already triggers a full queue upload.
	queue, err := store.Episodes.ListQueue()
	if err != nil {
		return fmt.Errorf("failed to read queue: %w", err)
	}
	for i, queued := range queue {
		want := i + 1
		if pos := queued.QueuePosition(); pos != nil && *pos == want {
			continue
		}
		queued.SetQueuePosition(&want)
		if err := store.Episodes.Update(queued); err != nil {
			return fmt.Errorf("failed to renumber queue: %w", err)
		}
	}

	r.logger.Info("removed from queue", "episode", ep.Title())
	r.writePlain("✓ Removed from queue: %s\n", ep.Title())
	r.writePlain("  Queued for upload on the next sync pass\n")
	return nil
}

// QueueList prints the play queue in order.
func (r *Runner) QueueList(ctx context.Context, cmd *cli.Command) error {
	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")

	store, db, err := r.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	queue, err := store.Episodes.ListQueue()
	if err != nil {
		return fmt.Errorf("failed to read queue: %w", err)
	}

	if useJSON {
		records := make([]formatter.EpisodeRecord, 0, len(queue))
		for _, ep := range queue {
			records = append(records, formatter.NewEpisodeRecord(ep))
		}
		return r.writeJSON(records, pretty)
	}

	if len(queue) == 0 {
		r.writePlain("Queue is empty\n")
		return nil
	}

	r.writePlain("\nQueue: %d episodes\n\n", len(queue))
	for i, ep := range queue {
		r.writePlain("%d. %s\n", i+1, ep.Title())
		if ep.Position() > 0 {
			r.writePlain("   At %s of %s\n", shared.FormatPosition(ep.Position()), shared.FormatPosition(ep.Duration()))
		}
		if ep.QueueDirty() {
			r.writePlain("   Pending upload\n")
		}
		r.writePlain("\n")
	}
	return nil
}

// queueCommand manages the play queue
func queueCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "queue",
		Usage: "Manage the play queue",
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Append an episode to the queue",
				Arguments: []cli.Argument{&cli.StringArg{Name: "episode"}},
				Action:    r.QueueAdd,
			},
			{
				Name:      "remove",
				Usage:     "Remove an episode from the queue",
				Arguments: []cli.Argument{&cli.StringArg{Name: "episode"}},
				Action:    r.QueueRemove,
			},
			{
				Name:  "list",
				Usage: "Show the queue in play order",
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
				Action: r.QueueList,
			},
		},
	}
}
