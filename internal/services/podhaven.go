// Podhaven API [SyncService] implementation
//
// Speaks the stateless REST protocol: the server exposes full resource
// snapshots, so the adapter diffs each snapshot against the previous one
// (carried in the opaque cursor) to produce deltas. Episodes carry
// server-assigned IDs resolved through the subscription directory.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Magniswerfer/Podhaven-sub000/internal/shared"
	"golang.org/x/oauth2"
)

const (
	defaultPodhavenBaseURL = "https://podhaven.net"
	defaultRedirectURI     = "http://127.0.0.1:8080/callback"
)

// PodhavenSubscription represents a subscription resource.
type PodhavenSubscription struct {
	ID      string `json:"id"`
	FeedURL string `json:"feed_url"`
	Title   string `json:"title,omitempty"`
}

// PodhavenEpisode represents an episode resource in a subscription's
// episode directory.
type PodhavenEpisode struct {
	ID       string `json:"id"`
	GUID     string `json:"guid"`
	AudioURL string `json:"audio_url"`
	Title    string `json:"title,omitempty"`
}

// PodhavenProgress represents an episode progress resource.
type PodhavenProgress struct {
	EpisodeID string    `json:"episode_id"`
	Position  int       `json:"position"`
	Duration  int       `json:"duration"`
	Completed bool      `json:"completed"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PodhavenQueue represents the play queue resource.
type PodhavenQueue struct {
	EpisodeIDs []string  `json:"episode_ids"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type podhavenProgressPage struct {
	Progress   []PodhavenProgress `json:"progress"`
	ServerTime time.Time          `json:"server_time"`
}

// podhavenSnapshot is the opaque cursor for snapshot endpoints: the item
// list seen on the previous pass, so the next pass can diff against it.
type podhavenSnapshot struct {
	Items      []string  `json:"items"`
	ServerTime time.Time `json:"server_time,omitempty"`
}

func decodeSnapshot(cursor string) podhavenSnapshot {
	var snapshot podhavenSnapshot
	if cursor == "" {
		return snapshot
	}

	// An undecodable cursor behaves like a first pass: the full snapshot
	// comes back as additions and the engine dedupes against its rows.
	_ = json.Unmarshal([]byte(cursor), &snapshot)
	return snapshot
}

func encodeSnapshot(items []string, serverTime time.Time) string {
	data, err := json.Marshal(podhavenSnapshot{Items: items, ServerTime: serverTime})
	if err != nil {
		return ""
	}
	return string(data)
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}

// PodhavenService implements the SyncService interface for Podhaven
// servers, plus the EpisodeResolver, QueueService, and OAuthService
// capabilities.
type PodhavenService struct {
	baseURL        string
	config         *oauth2.Config
	httpClient     *http.Client
	onTokenRefresh func(*oauth2.Token)

	// RefreshFeed runs from the refresh workers, so the token and the
	// feed URL to resource ID directory go through mu.
	mu        sync.Mutex
	token     *oauth2.Token
	directory map[string]string
}

// refreshableTokenSource wraps an [oauth2.TokenSource] and invokes a
// callback whenever the token it hands out changes, so refreshed tokens
// can be persisted.
type refreshableTokenSource struct {
	source   oauth2.TokenSource
	callback func(*oauth2.Token)

	mu   sync.Mutex
	last string
}

func (r *refreshableTokenSource) Token() (*oauth2.Token, error) {
	token, err := r.source.Token()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	changed := token.AccessToken != r.last
	r.last = token.AccessToken
	r.mu.Unlock()

	if changed && r.callback != nil {
		r.callback(token)
	}

	return token, nil
}

// NewPodhavenService creates a new Podhaven service for the given server.
// Required credential keys: client_id, client_secret. Optional: redirect_uri.
func NewPodhavenService(baseURL string, credentials map[string]string) (*PodhavenService, error) {
	if baseURL == "" {
		baseURL = defaultPodhavenBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: client_id", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: client_secret", shared.ErrMissingCredentials)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = defaultRedirectURI
	}

	return &PodhavenService{
		baseURL: baseURL,
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       []string{"subscriptions", "progress", "queue"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  baseURL + "/oauth/authorize",
				TokenURL: baseURL + "/oauth/token",
			},
		},
		httpClient: http.DefaultClient,
		directory:  make(map[string]string),
	}, nil
}

// Name returns the service name.
func (p *PodhavenService) Name() string {
	return "Podhaven"
}

// BaseURL returns the resolved server address.
func (p *PodhavenService) BaseURL() string {
	return p.baseURL
}

// SetTokenRefreshCallback registers a function invoked when the OAuth
// client refreshes the access token, so the new token can be stored.
func (p *PodhavenService) SetTokenRefreshCallback(callback func(*oauth2.Token)) {
	p.onTokenRefresh = callback
}

// GetAuthURL returns the authorization URL for the browser flow.
func (p *PodhavenService) GetAuthURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// GetOAuthConfig returns the OAuth configuration for the callback server.
func (p *PodhavenService) GetOAuthConfig() *oauth2.Config {
	return p.config
}

// OAuthenticate exchanges an authorization code for tokens, installs them
// on the service, and returns the serialized token for storage.
func (p *PodhavenService) OAuthenticate(ctx context.Context, code string) (string, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}

	p.installToken(ctx, token)

	data, err := json.Marshal(token)
	if err != nil {
		return "", fmt.Errorf("failed to marshal token: %w", err)
	}
	return string(data), nil
}

// Authenticate installs a token from stored or fresh credentials. Accepts
// a serialized token under "token", a bare "access_token", or an
// "auth_code" to exchange.
func (p *PodhavenService) Authenticate(ctx context.Context, credentials map[string]string) error {
	if raw, ok := credentials["token"]; ok && raw != "" {
		var token oauth2.Token
		if err := json.Unmarshal([]byte(raw), &token); err != nil {
			return fmt.Errorf("%w: stored token: %v", shared.ErrInvalidCredentials, err)
		}
		p.installToken(ctx, &token)
		return nil
	}

	if accessToken, ok := credentials["access_token"]; ok && accessToken != "" {
		p.installToken(ctx, &oauth2.Token{
			AccessToken:  accessToken,
			RefreshToken: credentials["refresh_token"],
			TokenType:    "Bearer",
		})
		return nil
	}

	if code, ok := credentials["auth_code"]; ok && code != "" {
		_, err := p.OAuthenticate(ctx, code)
		return err
	}

	return fmt.Errorf("%w: token, access_token, or auth_code", shared.ErrMissingCredentials)
}

func (p *PodhavenService) installToken(ctx context.Context, token *oauth2.Token) {
	p.mu.Lock()
	p.token = token
	p.mu.Unlock()

	source := &refreshableTokenSource{
		source:   p.config.TokenSource(ctx, token),
		callback: p.handleRefreshedToken,
		last:     token.AccessToken,
	}
	p.httpClient = oauth2.NewClient(ctx, source)
}

func (p *PodhavenService) handleRefreshedToken(token *oauth2.Token) {
	p.mu.Lock()
	p.token = token
	p.mu.Unlock()

	if p.onTokenRefresh != nil {
		p.onTokenRefresh(token)
	}
}

func (p *PodhavenService) currentToken() *oauth2.Token {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.token
}

// doRequest performs an authenticated request against the Podhaven API.
func (p *PodhavenService) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	token := p.currentToken()
	if token == nil {
		return fmt.Errorf("%w: call Authenticate first", shared.ErrNoSession)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrNetwork, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: authorization rejected", shared.ErrTokenExpired)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", shared.ErrNotFound, endpoint)
	case resp.StatusCode == http.StatusConflict:
		return fmt.Errorf("%w: %s", shared.ErrConflict, endpoint)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		var errResp struct {
			Error string `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&errResp); decodeErr == nil && errResp.Error != "" {
			return fmt.Errorf("%w: status %d: %s", shared.ErrAPIRequest, resp.StatusCode, errResp.Error)
		}
		return fmt.Errorf("%w: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrDecoding, err)
		}
	}

	return nil
}

// listSubscriptions fetches the subscription directory and rebuilds the
// feed URL to resource ID cache.
func (p *PodhavenService) listSubscriptions(ctx context.Context) ([]PodhavenSubscription, error) {
	var subs []PodhavenSubscription
	if err := p.doRequest(ctx, http.MethodGet, "/api/v1/subscriptions", nil, &subs); err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.directory = make(map[string]string, len(subs))
	for _, sub := range subs {
		p.directory[sub.FeedURL] = sub.ID
	}
	p.mu.Unlock()

	return subs, nil
}

func (p *PodhavenService) storeID(feedURL, id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.directory[feedURL] = id
}

func (p *PodhavenService) dropID(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for feedURL, existing := range p.directory {
		if existing == id {
			delete(p.directory, feedURL)
		}
	}
}

// resolveRef turns a subscription reference into a server resource ID.
// Callers pass whatever they have: a stored resource ID, or a bare feed URL
// for rows that never went through Subscribe.
func (p *PodhavenService) resolveRef(ctx context.Context, ref string) (string, error) {
	if !strings.Contains(ref, "://") {
		return ref, nil
	}

	p.mu.Lock()
	id, ok := p.directory[ref]
	p.mu.Unlock()
	if ok {
		return id, nil
	}

	if _, err := p.listSubscriptions(ctx); err != nil {
		return "", err
	}

	p.mu.Lock()
	id, ok = p.directory[ref]
	p.mu.Unlock()
	if ok {
		return id, nil
	}

	return "", fmt.Errorf("%w: no subscription for %s", shared.ErrNotFound, ref)
}

// GetSubscriptions lists the server's subscriptions and diffs the snapshot
// against the cursor to produce added and removed feed URLs.
//
// Calls GET /api/v1/subscriptions.
func (p *PodhavenService) GetSubscriptions(ctx context.Context, cursor string) (*SubscriptionDelta, error) {
	subs, err := p.listSubscriptions(ctx)
	if err != nil {
		return nil, err
	}

	previous := decodeSnapshot(cursor)
	previousSet := toSet(previous.Items)

	current := make([]string, 0, len(subs))
	delta := &SubscriptionDelta{}
	for _, sub := range subs {
		current = append(current, sub.FeedURL)
		if !previousSet[sub.FeedURL] {
			delta.Added = append(delta.Added, sub.FeedURL)
		}
	}

	currentSet := toSet(current)
	for _, feedURL := range previous.Items {
		if !currentSet[feedURL] {
			delta.Removed = append(delta.Removed, feedURL)
		}
	}

	delta.Cursor = encodeSnapshot(current, time.Now().UTC())
	return delta, nil
}

// PushSubscriptionChanges applies adds and removes one resource call at a
// time. Feeds already present and feeds already gone count as applied.
func (p *PodhavenService) PushSubscriptionChanges(ctx context.Context, add, remove []string) error {
	for _, feedURL := range add {
		if _, err := p.Subscribe(ctx, feedURL); err != nil && !errors.Is(err, shared.ErrConflict) {
			return err
		}
	}

	for _, ref := range remove {
		if err := p.Unsubscribe(ctx, ref); err != nil && !errors.Is(err, shared.ErrNotFound) {
			return err
		}
	}

	return nil
}

// Subscribe creates the subscription resource and returns its ID. On a
// conflict the existing resource is looked up and its ID returned.
//
// Calls POST /api/v1/subscriptions.
func (p *PodhavenService) Subscribe(ctx context.Context, feedURL string) (string, error) {
	body := struct {
		FeedURL string `json:"feed_url"`
	}{FeedURL: feedURL}

	var created PodhavenSubscription
	err := p.doRequest(ctx, http.MethodPost, "/api/v1/subscriptions", body, &created)
	if err == nil {
		p.storeID(feedURL, created.ID)
		return created.ID, nil
	}

	if errors.Is(err, shared.ErrConflict) {
		if id, lookupErr := p.resolveRef(ctx, feedURL); lookupErr == nil {
			return id, nil
		}
	}

	return "", err
}

// Unsubscribe deletes the subscription resource.
//
// Calls DELETE /api/v1/subscriptions/{id}.
func (p *PodhavenService) Unsubscribe(ctx context.Context, remoteID string) error {
	id, err := p.resolveRef(ctx, remoteID)
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("/api/v1/subscriptions/%s", url.PathEscape(id))
	if err := p.doRequest(ctx, http.MethodDelete, endpoint, nil, nil); err != nil {
		return err
	}

	p.dropID(id)
	return nil
}

// GetProgress retrieves progress records updated since the cursor.
//
// Calls GET /api/v1/progress.
func (p *PodhavenService) GetProgress(ctx context.Context, cursor string) (*ProgressDelta, error) {
	endpoint := "/api/v1/progress"
	if cursor != "" {
		endpoint += "?since=" + url.QueryEscape(cursor)
	}

	var page podhavenProgressPage
	if err := p.doRequest(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
		return nil, err
	}

	delta := &ProgressDelta{}
	for _, record := range page.Progress {
		delta.Records = append(delta.Records, ProgressRecord{
			RemoteEpisodeID: record.EpisodeID,
			Position:        record.Position,
			Duration:        record.Duration,
			Completed:       record.Completed,
			Timestamp:       record.UpdatedAt,
		})
	}

	if !page.ServerTime.IsZero() {
		delta.Cursor = page.ServerTime.UTC().Format(time.RFC3339)
	} else {
		delta.Cursor = cursor
	}

	return delta, nil
}

// PushProgress uploads one PUT per action and reports each verdict
// separately. Actions without a remote episode ID fail with ErrNotFound and
// stay queued until the linking step fills the ID in.
//
// Calls PUT /api/v1/episodes/{id}/progress.
func (p *PodhavenService) PushProgress(ctx context.Context, actions []ProgressAction) ([]ProgressResult, error) {
	results := make([]ProgressResult, 0, len(actions))
	for _, action := range actions {
		if action.RemoteEpisodeID == "" {
			results = append(results, ProgressResult{
				ActionID: action.ActionID,
				Err:      fmt.Errorf("%w: no remote episode ID", shared.ErrNotFound),
			})
			continue
		}

		body := struct {
			Position  int       `json:"position"`
			Duration  int       `json:"duration"`
			Completed bool      `json:"completed"`
			UpdatedAt time.Time `json:"updated_at"`
		}{action.Position, action.Duration, action.Completed, action.Timestamp.UTC()}

		endpoint := fmt.Sprintf("/api/v1/episodes/%s/progress", url.PathEscape(action.RemoteEpisodeID))
		results = append(results, ProgressResult{
			ActionID: action.ActionID,
			Err:      p.doRequest(ctx, http.MethodPut, endpoint, body, nil),
		})
	}

	return results, nil
}

// ResolveEpisodes fetches a subscription's episode directory and maps GUIDs
// and audio URLs to server episode IDs.
//
// Calls GET /api/v1/subscriptions/{id}/episodes.
func (p *PodhavenService) ResolveEpisodes(ctx context.Context, subscriptionRemoteID string) (map[string]string, error) {
	id, err := p.resolveRef(ctx, subscriptionRemoteID)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("/api/v1/subscriptions/%s/episodes", url.PathEscape(id))
	var episodes []PodhavenEpisode
	if err := p.doRequest(ctx, http.MethodGet, endpoint, nil, &episodes); err != nil {
		return nil, err
	}

	mapping := make(map[string]string, len(episodes)*2)
	for _, episode := range episodes {
		if episode.GUID != "" {
			mapping[episode.GUID] = episode.ID
		}
		if episode.AudioURL != "" {
			mapping[episode.AudioURL] = episode.ID
		}
	}

	return mapping, nil
}

// GetQueue retrieves the play queue and diffs it against the cursor.
//
// Calls GET /api/v1/queue.
func (p *PodhavenService) GetQueue(ctx context.Context, cursor string) (*QueueDelta, error) {
	var queue PodhavenQueue
	if err := p.doRequest(ctx, http.MethodGet, "/api/v1/queue", nil, &queue); err != nil {
		return nil, err
	}

	previous := decodeSnapshot(cursor)
	previousSet := toSet(previous.Items)
	currentSet := toSet(queue.EpisodeIDs)

	delta := &QueueDelta{Order: queue.EpisodeIDs}
	for _, episodeID := range queue.EpisodeIDs {
		if !previousSet[episodeID] {
			delta.Added = append(delta.Added, episodeID)
		}
	}
	for _, episodeID := range previous.Items {
		if !currentSet[episodeID] {
			delta.Removed = append(delta.Removed, episodeID)
		}
	}

	delta.Cursor = encodeSnapshot(queue.EpisodeIDs, queue.UpdatedAt)
	return delta, nil
}

// PushQueueChanges uploads queue adds and removes.
//
// Calls POST /api/v1/queue.
func (p *PodhavenService) PushQueueChanges(ctx context.Context, add, remove []string) error {
	if len(add) == 0 && len(remove) == 0 {
		return nil
	}

	if add == nil {
		add = []string{}
	}
	if remove == nil {
		remove = []string{}
	}

	body := struct {
		Add    []string `json:"add"`
		Remove []string `json:"remove"`
	}{Add: add, Remove: remove}

	return p.doRequest(ctx, http.MethodPost, "/api/v1/queue", body, nil)
}

// RefreshFeed asks the server to re-fetch the feed.
//
// Calls POST /api/v1/subscriptions/{id}/refresh.
func (p *PodhavenService) RefreshFeed(ctx context.Context, remoteID string) error {
	id, err := p.resolveRef(ctx, remoteID)
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("/api/v1/subscriptions/%s/refresh", url.PathEscape(id))
	return p.doRequest(ctx, http.MethodPost, endpoint, nil, nil)
}
