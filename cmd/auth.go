package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Magniswerfer/Podhaven-sub000/internal/models"
	"github.com/Magniswerfer/Podhaven-sub000/internal/server"
	"github.com/Magniswerfer/Podhaven-sub000/internal/services"
	"github.com/Magniswerfer/Podhaven-sub000/internal/shared"
	"github.com/Magniswerfer/Podhaven-sub000/internal/tasks"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// AuthLogin logs in to a sync backend and stores the session in the
// backend record. gpodder servers take username/password, Podhaven runs
// the browser OAuth flow.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	backend := cmd.String("backend")
	baseURL := cmd.String("url")
	username := cmd.String("username")
	password := cmd.String("password")
	device := cmd.String("device")

	store, db, err := r.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	serverConfig, err := store.Config.GetOrCreate()
	if err != nil {
		return fmt.Errorf("failed to load backend record: %w", err)
	}

	// Flag beats stored record beats config file.
	if backend == "" {
		backend = string(serverConfig.Backend())
	}
	if backend == "" {
		backend = r.config.Remote.Backend
	}
	if baseURL == "" {
		baseURL = serverConfig.BaseURL()
	}
	if baseURL == "" {
		baseURL = r.config.Remote.BaseURL
	}
	if device == "" {
		device = serverConfig.DeviceID()
	}
	if device == "" {
		device = r.config.Remote.Device
	}

	switch models.Backend(backend) {
	case models.BackendGPodder:
		return r.loginGPodder(ctx, store, serverConfig, baseURL, device, username, password)
	case models.BackendPodhaven:
		return r.loginPodhaven(ctx, store, serverConfig, baseURL, device)
	case "":
		return fmt.Errorf("%w: no backend selected, pass --backend gpodder or --backend podhaven", shared.ErrMissingArgument)
	default:
		return fmt.Errorf("%w: unknown backend %q", shared.ErrInvalidArgument, backend)
	}
}

// loginGPodder checks a username and password against the server and
// stores the captured session cookie.
func (r *Runner) loginGPodder(ctx context.Context, store tasks.Store, serverConfig *models.ServerConfig, baseURL, device, username, password string) error {
	var err error
	if username == "" {
		if username, err = r.promptLine("Username: "); err != nil {
			return err
		}
	}
	if username == "" {
		return fmt.Errorf("%w: username", shared.ErrMissingArgument)
	}
	if password == "" {
		if password, err = r.promptLine("Password: "); err != nil {
			return err
		}
	}
	if password == "" {
		return fmt.Errorf("%w: password", shared.ErrMissingArgument)
	}

	svc := services.NewGPodderService(baseURL, device)
	if r.config.Sync.RateLimit > 0 {
		svc.SetRateLimit(r.config.Sync.RateLimit)
	}

	r.logger.Info("logging in", "backend", "gpodder", "server", svc.BaseURL(), "username", username)
	if err := svc.Authenticate(ctx, map[string]string{
		"username": username,
		"password": password,
	}); err != nil {
		return err
	}

	serverConfig.SetBackend(models.BackendGPodder)
	serverConfig.SetBaseURL(svc.BaseURL())
	serverConfig.SetDeviceID(svc.DeviceID())
	serverConfig.SetSession(svc.Username(), svc.SessionID())
	if err := store.Config.Save(serverConfig); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	r.logger.Info("authentication successful", "backend", "gpodder")
	return r.writePlain("✓ Logged in to %s as %s\n", svc.BaseURL(), svc.Username())
}

// loginPodhaven runs the browser OAuth flow and stores the serialized
// token.
func (r *Runner) loginPodhaven(ctx context.Context, store tasks.Store, serverConfig *models.ServerConfig, baseURL, device string) error {
	if r.config.OAuth.ClientID == "" || r.config.OAuth.ClientSecret == "" {
		return fmt.Errorf("%w: oauth client_id and client_secret must be set in config.toml", shared.ErrInvalidConfig)
	}

	svc, err := services.NewPodhavenService(baseURL, map[string]string{
		"client_id":     r.config.OAuth.ClientID,
		"client_secret": r.config.OAuth.ClientSecret,
		"redirect_uri":  r.config.OAuth.RedirectURI,
	})
	if err != nil {
		return fmt.Errorf("failed to create Podhaven service: %w", err)
	}

	token, err := r.doOAuth(svc, "authorization")
	if err != nil {
		return err
	}

	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to serialize token: %w", err)
	}

	serverConfig.SetBackend(models.BackendPodhaven)
	serverConfig.SetBaseURL(svc.BaseURL())
	serverConfig.SetDeviceID(device)
	serverConfig.SetSession(serverConfig.Username(), string(data))
	if err := store.Config.Save(serverConfig); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	r.logger.Info("authentication successful", "backend", "podhaven")
	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Session saved, you can now run: podhaven sync\n")
	return nil
}

// AuthLogout drops the stored session for the configured backend.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	store, db, err := r.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	serverConfig, err := store.Config.GetOrCreate()
	if err != nil {
		return fmt.Errorf("failed to load backend record: %w", err)
	}

	if !serverConfig.Authenticated() {
		return r.writePlain("Not logged in\n")
	}

	serverConfig.ClearSession()
	if err := store.Config.Save(serverConfig); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}

	r.logger.Info("session cleared", "backend", serverConfig.Backend())
	return r.writePlain("✓ Logged out of %s\n", serverConfig.Backend())
}

// AuthStatus reports the stored backend and session state.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")

	store, db, err := r.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	serverConfig, err := store.Config.GetOrCreate()
	if err != nil {
		return fmt.Errorf("failed to load backend record: %w", err)
	}

	if useJSON {
		return r.writeJSON(map[string]any{
			"backend":       serverConfig.Backend(),
			"base_url":      serverConfig.BaseURL(),
			"username":      serverConfig.Username(),
			"device":        serverConfig.DeviceID(),
			"authenticated": serverConfig.Authenticated(),
		}, pretty)
	}

	if serverConfig.Backend() == "" {
		r.writePlain("No sync backend configured\n")
		r.writePlain("Run 'setup' with a [remote] section, or 'auth login --backend gpodder|podhaven'\n")
		return nil
	}

	r.writePlain("Backend: %s\n", serverConfig.Backend())
	r.writePlain("Server: %s\n", serverConfig.BaseURL())
	if serverConfig.DeviceID() != "" {
		r.writePlain("Device: %s\n", serverConfig.DeviceID())
	}
	if serverConfig.Username() != "" {
		r.writePlain("User: %s\n", serverConfig.Username())
	}
	if serverConfig.Authenticated() {
		r.writePlain("Authentication: ✓ Authenticated\n")
	} else {
		r.writePlain("Authentication: ✗ Not authenticated\n")
	}
	return nil
}

// doOAuth executes the OAuth2 authorization flow with a local HTTP server
func (r *Runner) doOAuth(oauthSrv services.OAuthService, prefix string) (*oauth2.Token, error) {
	state := shared.GenerateState()

	authURL := oauthSrv.GetAuthURL(state)
	oauthHandler := server.NewOAuthHandler(oauthSrv.GetOAuthConfig(), state)
	router := server.NewBasicRouter()
	router.Use(server.RequestLogger(r.logger))
	router.Handler(oauthHandler)

	serverAddr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	httpServer := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth server for %s at %v", prefix, serverAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	time.Sleep(100 * time.Millisecond)

	r.writePlain("→ Opening browser for Podhaven %s...\n", prefix)
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(2 * time.Minute)
	defer timeout.Stop()

	var result server.OAuthResult

	select {
	case result = <-oauthHandler.Result():
		// Got result from callback
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrTimeout)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("error shutting down server", "error", err)
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}

	if result.Token == nil {
		return nil, fmt.Errorf("no token received")
	}

	return result.Token, nil
}

// promptLine prints a prompt and reads one trimmed line from stdin.
func (r *Runner) promptLine(prompt string) (string, error) {
	if err := r.writePlain("%s", prompt); err != nil {
		return "", err
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// authCommand handles sync backend authentication
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage sync backend authentication",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Log in to gpodder (username/password) or Podhaven (browser OAuth)",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "backend",
						Usage: "Sync backend (gpodder or podhaven)",
					},
					&cli.StringFlag{
						Name:  "url",
						Usage: "Server base URL",
					},
					&cli.StringFlag{
						Name:    "username",
						Aliases: []string{"u"},
						Usage:   "gpodder username (prompted when omitted)",
					},
					&cli.StringFlag{
						Name:    "password",
						Aliases: []string{"p"},
						Usage:   "gpodder password (prompted when omitted)",
					},
					&cli.StringFlag{
						Name:  "device",
						Usage: "Device identifier reported to the server",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "logout",
				Usage:  "Drop the stored session",
				Action: r.AuthLogout,
			},
			{
				Name:  "status",
				Usage: "Show the stored backend and session state",
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
				Action: r.AuthStatus,
			},
		},
	}
}
