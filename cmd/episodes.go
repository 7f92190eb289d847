package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Magniswerfer/Podhaven-sub000/internal/formatter"
	"github.com/Magniswerfer/Podhaven-sub000/internal/models"
	"github.com/Magniswerfer/Podhaven-sub000/internal/shared"
	"github.com/Magniswerfer/Podhaven-sub000/internal/tasks"
	"github.com/urfave/cli/v3"
)

// EpisodesList prints the cached episodes of one subscription.
func (r *Runner) EpisodesList(ctx context.Context, cmd *cli.Command) error {
	query := strings.TrimSpace(cmd.StringArg("podcast"))
	if query == "" {
		return fmt.Errorf("%w: podcast", shared.ErrMissingArgument)
	}
	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")
	format := cmd.String("format")
	output := cmd.String("output")
	save := cmd.Bool("save")

	store, db, err := r.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	sub, err := r.findSubscription(store, query)
	if err != nil {
		return err
	}
	episodes, err := store.Episodes.List(map[string]any{"subscription_id": sub.ID()})
	if err != nil {
		return fmt.Errorf("failed to list episodes: %w", err)
	}

	if useJSON {
		records := make([]formatter.EpisodeRecord, 0, len(episodes))
		for _, ep := range episodes {
			records = append(records, formatter.NewEpisodeRecord(ep))
		}
		return r.writeJSON(records, pretty)
	}

	if format != "" {
		if output == "" && !save {
			return formatter.WriteEpisodes(r.output, format, sub, episodes)
		}
		path, err := formatter.WriteEpisodesFile(format, output, sub, episodes)
		if err != nil {
			return err
		}
		return r.writePlain("✓ Exported %d episodes to %s\n", len(episodes), path)
	}

	if len(episodes) == 0 {
		r.writePlain("No episodes cached for %s, run 'podcasts refresh'\n", sub.Title())
		return nil
	}

	r.writePlain("\n%s: %d episodes\n\n", sub.Title(), len(episodes))
	for i, ep := range episodes {
		r.writePlain("%d. %s\n", i+1, ep.Title())
		if d := ep.PublishDate(); !d.IsZero() {
			r.writePlain("   Published: %s\n", d.Format("2006-01-02"))
		}
		switch {
		case ep.Played():
			r.writePlain("   Played ✓\n")
		case ep.Position() > 0:
			r.writePlain("   At %s of %s\n", shared.FormatPosition(ep.Position()), shared.FormatPosition(ep.Duration()))
		case ep.Duration() > 0:
			r.writePlain("   Duration: %s\n", shared.FormatPosition(ep.Duration()))
		}
		if ep.Queued() {
			r.writePlain("   Queued\n")
		}
		r.writePlain("   ID: %s\n", ep.ID())
		r.writePlain("\n")
	}
	return nil
}

// EpisodesPosition records a playback position. The update lands in the
// local row and queues a pending action for the next sync pass.
func (r *Runner) EpisodesPosition(ctx context.Context, cmd *cli.Command) error {
	query := strings.TrimSpace(cmd.StringArg("episode"))
	if query == "" {
		return fmt.Errorf("%w: episode", shared.ErrMissingArgument)
	}
	position := cmd.Int("position")
	duration := cmd.Int("duration")
	complete := cmd.Bool("complete")

	store, db, err := r.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	ep, err := r.findEpisode(store, query)
	if err != nil {
		return err
	}

	if duration > 0 && duration != ep.Duration() {
		ep.SetDuration(duration)
		if err := store.Episodes.Update(ep); err != nil {
			return fmt.Errorf("failed to update duration: %w", err)
		}
	}

	recorder := tasks.NewProgressRecorder(store)
	if _, err := recorder.RecordPosition(ep.ID(), position, complete); err != nil {
		return err
	}

	r.logger.Info("position recorded", "episode", ep.Title(), "position", position, "completed", complete)
	r.writePlain("✓ %s at %s\n", ep.Title(), shared.FormatPosition(position))
	if complete {
		r.writePlain("  Marked played\n")
	}
	r.writePlain("  Queued for upload on the next sync pass\n")
	return nil
}

// EpisodesPlayed marks an episode finished.
func (r *Runner) EpisodesPlayed(ctx context.Context, cmd *cli.Command) error {
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

	recorder := tasks.NewProgressRecorder(store)
	if _, err := recorder.MarkPlayed(ep.ID()); err != nil {
		return err
	}

	r.logger.Info("marked played", "episode", ep.Title())
	r.writePlain("✓ Marked played: %s\n", ep.Title())
	r.writePlain("  Queued for upload on the next sync pass\n")
	return nil
}

// findEpisode resolves a query to one episode. It tries the ID, then
// the audio URL, then a case-insensitive title match.
func (r *Runner) findEpisode(store tasks.Store, query string) (*models.Episode, error) {
	if ep, err := store.Episodes.Get(query); err == nil {
		return ep, nil
	} else if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	if ep, err := store.Episodes.GetByAudioURL(query); err == nil {
		return ep, nil
	} else if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	episodes, err := store.Episodes.List(nil)
	if err != nil {
		return nil, err
	}
	var matches []*models.Episode
	needle := strings.ToLower(query)
	for _, ep := range episodes {
		if strings.Contains(strings.ToLower(ep.Title()), needle) {
			matches = append(matches, ep)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return nil, fmt.Errorf("%w: no episode matches %q", shared.ErrNotFound, query)
	default:
		return nil, fmt.Errorf("%w: %d episodes match %q, use the episode ID", shared.ErrInvalidArgument, len(matches), query)
	}
}

// episodesCommand manages cached episodes and listening progress
func episodesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "episodes",
		Usage: "Browse episodes and record listening progress",
		Commands: []*cli.Command{
			{
				Name:      "list",
				Usage:     "List episodes of a podcast (feed URL, ID, or title)",
				Arguments: []cli.Argument{&cli.StringArg{Name: "podcast"}},
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
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format (json, csv, markdown, table)",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write to this file instead of stdout",
					},
					&cli.BoolFlag{
						Name:  "save",
						Usage: "Write to a generated filename",
					},
				},
				Action: r.EpisodesList,
			},
			{
				Name:      "position",
				Usage:     "Record a playback position in seconds",
				Arguments: []cli.Argument{&cli.StringArg{Name: "episode"}},
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:     "position",
						Aliases:  []string{"p"},
						Usage:    "Playback position in seconds",
						Required: true,
					},
					&cli.IntFlag{
						Name:    "duration",
						Aliases: []string{"d"},
						Usage:   "Episode duration in seconds, stored when the feed had none",
					},
					&cli.BoolFlag{
						Name:  "complete",
						Usage: "Also mark the episode played",
					},
				},
				Action: r.EpisodesPosition,
			},
			{
				Name:      "played",
				Usage:     "Mark an episode played",
				Arguments: []cli.Argument{&cli.StringArg{Name: "episode"}},
				Action:    r.EpisodesPlayed,
			},
		},
	}
}
