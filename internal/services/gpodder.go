// gpodder.net API [SyncService] implementation
//
// Speaks the device-based delta protocol: subscription changes and episode
// actions accumulate server-side and are fetched with a since timestamp.
// Episodes are identified by media URL, the protocol has no episode IDs.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Magniswerfer/Podhaven-sub000/internal/shared"
	"golang.org/x/time/rate"
)

const (
	defaultGPodderBaseURL = "https://gpodder.net"
	gpodderTimeLayout     = "2006-01-02T15:04:05"
)

// GPodderSubscriptionDelta represents a subscription change set from the server.
type GPodderSubscriptionDelta struct {
	Add       []string `json:"add"`
	Remove    []string `json:"remove"`
	Timestamp int64    `json:"timestamp"`
}

// GPodderEpisodeAction represents one entry in the episode action log.
type GPodderEpisodeAction struct {
	Podcast   string `json:"podcast"`
	Episode   string `json:"episode"`
	Device    string `json:"device,omitempty"`
	Action    string `json:"action"`
	Timestamp string `json:"timestamp"`
	Started   int    `json:"started,omitempty"`
	Position  int    `json:"position,omitempty"`
	Total     int    `json:"total,omitempty"`
}

// GPodderEpisodeActions is the episode action log response.
type GPodderEpisodeActions struct {
	Actions   []GPodderEpisodeAction `json:"actions"`
	Timestamp int64                  `json:"timestamp"`
}

type gpodderUpdateResponse struct {
	Timestamp  int64       `json:"timestamp"`
	UpdateURLs [][2]string `json:"update_urls"`
}

// GPodderService implements the SyncService interface for gpodder.net
// compatible servers.
type GPodderService struct {
	baseURL    string
	deviceID   string
	username   string
	sessionID  string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewGPodderService creates a new gpodder service for the given server and
// device name.
func NewGPodderService(baseURL, deviceID string) *GPodderService {
	if baseURL == "" {
		baseURL = defaultGPodderBaseURL
	}
	if deviceID == "" {
		deviceID = "podhaven"
	}

	return &GPodderService{
		baseURL:    baseURL,
		deviceID:   deviceID,
		httpClient: http.DefaultClient,
		limiter:    rate.NewLimiter(rate.Limit(2), 4),
	}
}

// Name returns the service name.
func (g *GPodderService) Name() string {
	return "gpodder"
}

// SetRateLimit adjusts the request throttle in requests per second.
func (g *GPodderService) SetRateLimit(perSecond float64) {
	if perSecond > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(perSecond), 4)
	}
}

// BaseURL returns the resolved server address.
func (g *GPodderService) BaseURL() string {
	return g.baseURL
}

// DeviceID returns the resolved device name.
func (g *GPodderService) DeviceID() string {
	return g.deviceID
}

// Username returns the authenticated user name.
func (g *GPodderService) Username() string {
	return g.username
}

// SessionID returns the session identifier captured at login, so callers
// can store it and resume without a password.
func (g *GPodderService) SessionID() string {
	return g.sessionID
}

// Authenticate logs in with username and password over Basic auth and
// captures the sessionid cookie. A previously stored session resumes via
// credentials["session"] without a password.
func (g *GPodderService) Authenticate(ctx context.Context, credentials map[string]string) error {
	username, ok := credentials["username"]
	if !ok || username == "" {
		return fmt.Errorf("%w: username", shared.ErrMissingCredentials)
	}
	g.username = username

	if session, ok := credentials["session"]; ok && session != "" {
		g.sessionID = session
		return nil
	}

	password, ok := credentials["password"]
	if !ok || password == "" {
		return fmt.Errorf("%w: password", shared.ErrMissingCredentials)
	}

	endpoint := fmt.Sprintf("%s/api/2/auth/%s/login.json", g.baseURL, url.PathEscape(username))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(username, password)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: rejected credentials for %s", shared.ErrInvalidCredentials, username)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: login returned status %d", shared.ErrAuthFailed, resp.StatusCode)
	}

	for _, cookie := range resp.Cookies() {
		if cookie.Name == "sessionid" {
			g.sessionID = cookie.Value
			return nil
		}
	}

	return fmt.Errorf("%w: no session cookie in login response", shared.ErrAuthFailed)
}

// doRequest performs a rate limited request against the gpodder API with
// the session cookie attached.
func (g *GPodderService) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	if g.sessionID == "" {
		return fmt.Errorf("%w: call Authenticate first", shared.ErrNoSession)
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrTimeout, err)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.AddCookie(&http.Cookie{Name: "sessionid", Value: g.sessionID})
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrNetwork, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: session rejected", shared.ErrTokenExpired)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", shared.ErrNotFound, endpoint)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: gpodder API status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrDecoding, err)
		}
	}

	return nil
}

// GetSubscriptions retrieves the device's subscription delta since the
// cursor. An empty cursor fetches the full change history.
//
// Calls GET /api/2/subscriptions/{user}/{device}.json.
func (g *GPodderService) GetSubscriptions(ctx context.Context, cursor string) (*SubscriptionDelta, error) {
	endpoint := fmt.Sprintf("/api/2/subscriptions/%s/%s.json",
		url.PathEscape(g.username), url.PathEscape(g.deviceID))
	if cursor != "" {
		endpoint += "?since=" + url.QueryEscape(cursor)
	}

	var delta GPodderSubscriptionDelta
	if err := g.doRequest(ctx, http.MethodGet, endpoint, nil, &delta); err != nil {
		return nil, err
	}

	return &SubscriptionDelta{
		Added:   delta.Add,
		Removed: delta.Remove,
		Cursor:  strconv.FormatInt(delta.Timestamp, 10),
	}, nil
}

// PushSubscriptionChanges uploads subscribe and unsubscribe events for the
// device. The server merges change sets, so duplicate pushes are harmless.
//
// Calls POST /api/2/subscriptions/{user}/{device}.json.
func (g *GPodderService) PushSubscriptionChanges(ctx context.Context, add, remove []string) error {
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

	endpoint := fmt.Sprintf("/api/2/subscriptions/%s/%s.json",
		url.PathEscape(g.username), url.PathEscape(g.deviceID))

	var response gpodderUpdateResponse
	return g.doRequest(ctx, http.MethodPost, endpoint, body, &response)
}

// Subscribe pushes a single add for the feed. gpodder identifies feeds by
// URL, so the feed URL doubles as the remote ID.
func (g *GPodderService) Subscribe(ctx context.Context, feedURL string) (string, error) {
	if err := g.PushSubscriptionChanges(ctx, []string{feedURL}, nil); err != nil {
		return "", err
	}
	return feedURL, nil
}

// Unsubscribe pushes a single remove for the feed.
func (g *GPodderService) Unsubscribe(ctx context.Context, remoteID string) error {
	return g.PushSubscriptionChanges(ctx, nil, []string{remoteID})
}

// GetProgress retrieves episode actions since the cursor and normalizes
// play actions into progress records. Actions with timestamps the server
// mangled are dropped rather than applied at the wrong point in time.
//
// Calls GET /api/2/episodes/{user}.json.
func (g *GPodderService) GetProgress(ctx context.Context, cursor string) (*ProgressDelta, error) {
	endpoint := fmt.Sprintf("/api/2/episodes/%s.json?aggregated=true", url.PathEscape(g.username))
	if cursor != "" {
		endpoint += "&since=" + url.QueryEscape(cursor)
	}

	var response GPodderEpisodeActions
	if err := g.doRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}

	delta := &ProgressDelta{Cursor: strconv.FormatInt(response.Timestamp, 10)}
	for _, action := range response.Actions {
		if action.Action != "play" {
			continue
		}

		timestamp, err := time.Parse(gpodderTimeLayout, action.Timestamp)
		if err != nil {
			continue
		}

		delta.Records = append(delta.Records, ProgressRecord{
			PodcastURL: action.Podcast,
			EpisodeURL: action.Episode,
			Position:   action.Position,
			Duration:   action.Total,
			Completed:  action.Total > 0 && action.Position >= action.Total,
			Timestamp:  timestamp.UTC(),
		})
	}

	return delta, nil
}

// PushProgress uploads the actions as one bulk play-action log. gpodder
// accepts or rejects the log as a whole, so every action shares the same
// verdict.
//
// Calls POST /api/2/episodes/{user}.json.
func (g *GPodderService) PushProgress(ctx context.Context, actions []ProgressAction) ([]ProgressResult, error) {
	if len(actions) == 0 {
		return nil, nil
	}

	entries := make([]GPodderEpisodeAction, len(actions))
	for i, action := range actions {
		entries[i] = GPodderEpisodeAction{
			Podcast:   action.PodcastURL,
			Episode:   action.EpisodeURL,
			Device:    g.deviceID,
			Action:    "play",
			Timestamp: action.Timestamp.UTC().Format(gpodderTimeLayout),
			Position:  action.Position,
			Total:     action.Duration,
		}
	}

	endpoint := fmt.Sprintf("/api/2/episodes/%s.json", url.PathEscape(g.username))
	var response gpodderUpdateResponse
	if err := g.doRequest(ctx, http.MethodPost, endpoint, entries, &response); err != nil {
		return nil, err
	}

	results := make([]ProgressResult, len(actions))
	for i, action := range actions {
		results[i] = ProgressResult{ActionID: action.ActionID}
	}

	return results, nil
}

// RefreshFeed is not part of the gpodder API.
func (g *GPodderService) RefreshFeed(ctx context.Context, remoteID string) error {
	return fmt.Errorf("gpodder has no feed refresh endpoint: %w", shared.ErrNotImplemented)
}
