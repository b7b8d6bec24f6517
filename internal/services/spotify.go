// Spotify Web API implementation of [Provider]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/desertthunder/coverx/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	playlistPageSize = 50
	providerName     = "Spotify"
)

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Email       string         `json:"email"`
	Images      []SpotifyImage `json:"images"`
}

// SpotifyImage represents an image resource. Width and height are null for uploaded covers.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height *int   `json:"height"`
	Width  *int   `json:"width"`
}

type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// SpotifySimplePlaylist represents a simplified playlist object (used in lists).
type SpotifySimplePlaylist struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Owner  Owner          `json:"owner"`
	Images []SpotifyImage `json:"images"`
}

// SpotifyPaginatedPlaylists represents a paginated response of playlists.
type SpotifyPaginatedPlaylists struct {
	Items []SpotifySimplePlaylist `json:"items"`
	Total int                     `json:"total"`
	Limit int                     `json:"limit"`
	Next  *string                 `json:"next"`
}

// SpotifyService implements [Provider] for the Spotify Web API.
//
// Requests are authorized through an [oauth2] static token source built from the per-call token
// and throttled by a shared [rate.Limiter].
type SpotifyService struct {
	config     *oauth2.Config
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// SpotifyOption customizes a [SpotifyService].
type SpotifyOption func(*SpotifyService)

// WithHTTPClient sets the transport used for API calls and token exchange.
func WithHTTPClient(c *http.Client) SpotifyOption {
	return func(s *SpotifyService) { s.httpClient = c }
}

// WithRateLimit caps outgoing requests per second. Non-positive values disable throttling.
func WithRateLimit(perSecond float64) SpotifyOption {
	return func(s *SpotifyService) {
		if perSecond <= 0 {
			s.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		s.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
//
// Recognized keys are client_id, client_secret, redirect_uri and base_url.
func NewSpotifyService(credentials map[string]string, opts ...SpotifyOption) (*SpotifyService, error) {
	clientID := credentials["client_id"]
	if clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret := credentials["client_secret"]
	if clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI := credentials["redirect_uri"]
	if redirectURI == "" {
		redirectURI = "http://127.0.0.1:3000/callback"
	}

	baseURL := strings.TrimRight(credentials["base_url"], "/")
	if baseURL == "" {
		baseURL = spotifyBaseURL
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			"user-read-private",
			"user-read-email",
			"playlist-read-private",
			"playlist-read-collaborative",
			"playlist-modify-public",
			"playlist-modify-private",
			"ugc-image-upload",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	s := &SpotifyService{
		config:     config,
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
		limiter:    rate.NewLimiter(rate.Inf, 0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *SpotifyService) Name() string {
	return providerName
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for a token.
func (s *SpotifyService) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := s.config.Exchange(s.clientContext(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
	}
	return token, nil
}

func (s *SpotifyService) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}

// doRequest performs an authenticated HTTP request to the Spotify API.
//
// endpoint is either a path relative to the base URL or an absolute URL taken from a next link.
func (s *SpotifyService) doRequest(ctx context.Context, token, method, endpoint string, body io.Reader, contentType string, result any) error {
	if token == "" {
		return shared.ErrNotAuthenticated
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return &shared.ProviderError{Provider: providerName, Op: method + " " + endpoint, Err: err}
	}

	apiURL := endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		apiURL = s.baseURL + endpoint
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	client := oauth2.NewClient(s.clientContext(ctx), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	resp, err := client.Do(req)
	if err != nil {
		return &shared.ProviderError{Provider: providerName, Op: method + " " + endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &shared.ProviderError{
			Provider: providerName,
			Op:       method + " " + endpoint,
			Status:   resp.StatusCode,
			Body:     errorMessage(detail),
		}
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// errorMessage extracts error.message from a Spotify error body, falling back to the raw text.
func errorMessage(body []byte) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error.Message != "" {
		return payload.Error.Message
	}
	return strings.TrimSpace(string(body))
}

// UserProfile retrieves the profile of the token's owner.
func (s *SpotifyService) UserProfile(ctx context.Context, token string) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, token, http.MethodGet, "/me", nil, "", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// CurrentUser implements [Provider].
func (s *SpotifyService) CurrentUser(ctx context.Context, token string) (*Profile, error) {
	user, err := s.UserProfile(ctx, token)
	if err != nil {
		return nil, err
	}
	if user.ID == "" {
		return nil, fmt.Errorf("%w: profile without id", shared.ErrNotAuthenticated)
	}
	return &Profile{ID: user.ID, DisplayName: user.DisplayName, Email: user.Email}, nil
}

// PlaylistPage implements [Provider].
func (s *SpotifyService) PlaylistPage(ctx context.Context, token, pageURL string) (*PlaylistPage, error) {
	if pageURL == "" {
		pageURL = fmt.Sprintf("/me/playlists?limit=%d", playlistPageSize)
	}

	var response SpotifyPaginatedPlaylists
	if err := s.doRequest(ctx, token, http.MethodGet, pageURL, nil, "", &response); err != nil {
		return nil, err
	}

	page := &PlaylistPage{Total: response.Total, Items: make([]Playlist, 0, len(response.Items))}
	if response.Next != nil {
		page.Next = *response.Next
	}
	for _, sp := range response.Items {
		page.Items = append(page.Items, Playlist{
			ID:      sp.ID,
			Name:    sp.Name,
			OwnerID: sp.Owner.ID,
			Images:  convertImages(sp.Images),
		})
	}
	return page, nil
}

// PlaylistImages implements [Provider].
func (s *SpotifyService) PlaylistImages(ctx context.Context, token, playlistID string) ([]Image, error) {
	var images []SpotifyImage
	endpoint := fmt.Sprintf("/playlists/%s/images", playlistID)
	if err := s.doRequest(ctx, token, http.MethodGet, endpoint, nil, "", &images); err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s: %v", shared.ErrPlaylistNotFound, playlistID, err)
		}
		return nil, err
	}
	return convertImages(images), nil
}

// ReplacePlaylistImage implements [Provider]. The body is the base64 text itself, not JSON.
func (s *SpotifyService) ReplacePlaylistImage(ctx context.Context, token, playlistID, imageBase64 string) error {
	endpoint := fmt.Sprintf("/playlists/%s/images", playlistID)
	return s.doRequest(ctx, token, http.MethodPut, endpoint, strings.NewReader(imageBase64), "image/jpeg", nil)
}

func convertImages(in []SpotifyImage) []Image {
	out := make([]Image, 0, len(in))
	for _, img := range in {
		converted := Image{URL: img.URL}
		if img.Width != nil {
			converted.Width = *img.Width
		}
		if img.Height != nil {
			converted.Height = *img.Height
		}
		out = append(out, converted)
	}
	return out
}

func isNotFound(err error) bool {
	var pe *shared.ProviderError
	return errors.As(err, &pe) && pe.Status == http.StatusNotFound
}
