package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/Magniswerfer/Podhaven-sub000/internal/models"
	"github.com/Magniswerfer/Podhaven-sub000/internal/services"
	"github.com/Magniswerfer/Podhaven-sub000/internal/shared"
	"github.com/Magniswerfer/Podhaven-sub000/internal/tasks"
	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	api        *services.APIService
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	API        *services.APIService
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		api:        opts.API,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, podcastsCommand, episodesCommand, queueCommand, syncCommand, apiCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// openStore opens the configured database and wraps it in repository
// handles. The caller closes the returned handle.
func (r *Runner) openStore() (tasks.Store, *sql.DB, error) {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return tasks.Store{}, nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
	return tasks.NewStore(db), db, nil
}

// buildRemote constructs the adapter for the stored backend and restores
// its saved session. Session restoration never touches the network; a
// stale session surfaces as ErrTokenExpired on the first real call.
func (r *Runner) buildRemote(ctx context.Context, store tasks.Store) (services.SyncService, *models.ServerConfig, error) {
	serverConfig, err := store.Config.GetOrCreate()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load backend record: %w", err)
	}

	if serverConfig.Backend() == "" {
		return nil, serverConfig, fmt.Errorf("%w: no sync backend configured, run 'setup' or 'auth login'", shared.ErrMissingConfig)
	}
	if !serverConfig.Authenticated() {
		return nil, serverConfig, fmt.Errorf("%w: run 'auth login' first", shared.ErrNoSession)
	}

	switch serverConfig.Backend() {
	case models.BackendGPodder:
		svc := services.NewGPodderService(serverConfig.BaseURL(), serverConfig.DeviceID())
		if r.config.Sync.RateLimit > 0 {
			svc.SetRateLimit(r.config.Sync.RateLimit)
		}
		err := svc.Authenticate(ctx, map[string]string{
			"username": serverConfig.Username(),
			"session":  serverConfig.Token(),
		})
		if err != nil {
			return nil, serverConfig, err
		}
		return svc, serverConfig, nil
	case models.BackendPodhaven:
		svc, err := services.NewPodhavenService(serverConfig.BaseURL(), map[string]string{
			"client_id":     r.config.OAuth.ClientID,
			"client_secret": r.config.OAuth.ClientSecret,
			"redirect_uri":  r.config.OAuth.RedirectURI,
		})
		if err != nil {
			return nil, serverConfig, err
		}
		svc.SetTokenRefreshCallback(func(token *oauth2.Token) {
			r.storeRefreshedToken(store, serverConfig, token)
		})
		if err := svc.Authenticate(ctx, map[string]string{"token": serverConfig.Token()}); err != nil {
			return nil, serverConfig, err
		}
		return svc, serverConfig, nil
	default:
		return nil, serverConfig, fmt.Errorf("%w: unknown backend %q", shared.ErrInvalidConfig, serverConfig.Backend())
	}
}

// storeRefreshedToken persists a token the OAuth client rotated mid-run,
// so the next invocation resumes without a browser round trip.
func (r *Runner) storeRefreshedToken(store tasks.Store, serverConfig *models.ServerConfig, token *oauth2.Token) {
	data, err := json.Marshal(token)
	if err != nil {
		r.logger.Warn("failed to serialize refreshed token", "error", err)
		return
	}
	serverConfig.SetSession(serverConfig.Username(), string(data))
	if err := store.Config.Save(serverConfig); err != nil {
		r.logger.Warn("failed to store refreshed token", "error", err)
		return
	}
	r.logger.Debug("stored refreshed token")
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
