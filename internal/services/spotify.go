// Spotify Web API implementation of [RemoteLibrary]
//
// Response shapes follow https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/desertthunder/playdeck/internal/models"
	"github.com/desertthunder/playdeck/internal/shared"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	spotifyBaseURL   = "https://api.spotify.com/v1"
	trackURIPrefix   = "spotify:track:"
	defaultPageSize  = 100
	likedPageSize    = 50
	playlistPageSize = 50
)

var errNotFound = errors.New("spotify API error: not found")

// Scopes requested during login.
var Scopes = []string{
	spotifyauth.ScopeUserReadPrivate,
	spotifyauth.ScopePlaylistReadPrivate,
	spotifyauth.ScopePlaylistReadCollaborative,
	spotifyauth.ScopePlaylistModifyPublic,
	spotifyauth.ScopePlaylistModifyPrivate,
	spotifyauth.ScopeUserLibraryRead,
	spotifyauth.ScopeUserReadPlaybackState,
	spotifyauth.ScopeUserModifyPlaybackState,
	spotifyauth.ScopeUserReadCurrentlyPlaying,
}

// SpotifyService implements [RemoteLibrary] for the Spotify Web API.
type SpotifyService struct {
	config         *oauth2.Config
	token          *oauth2.Token
	httpClient     *http.Client
	api            *spotify.Client
	limiter        *rate.Limiter
	baseURL        string
	pageSize       int
	onTokenRefresh func(*oauth2.Token)
}

// Option configures a [SpotifyService].
type Option func(*SpotifyService)

// WithBaseURL points the service at another API root (tests use an httptest server).
func WithBaseURL(u string) Option {
	return func(s *SpotifyService) { s.baseURL = strings.TrimSuffix(u, "/") }
}

// WithRateLimit caps outgoing requests at rps with the given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *SpotifyService) {
		if rps > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
		}
	}
}

// WithPageSize sets the number of items requested per playlist track page (1-100).
func WithPageSize(n int) Option {
	return func(s *SpotifyService) {
		if n > 0 && n <= defaultPageSize {
			s.pageSize = n
		}
	}
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string, opts ...Option) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = "http://127.0.0.1:3000/callback"
	}

	s := &SpotifyService{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  spotifyauth.AuthURL,
				TokenURL: spotifyauth.TokenURL,
			},
		},
		httpClient: http.DefaultClient,
		limiter:    rate.NewLimiter(rate.Limit(10), 5),
		baseURL:    spotifyBaseURL,
		pageSize:   defaultPageSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// SetTokenRefreshCallback registers fn to receive every new token issued by the refreshing token source.
func (s *SpotifyService) SetTokenRefreshCallback(fn func(*oauth2.Token)) {
	s.onTokenRefresh = fn
}

// Authenticate configures the HTTP client. Expects either an "access_token" (with optional "refresh_token") or an "auth_code".
func (s *SpotifyService) Authenticate(ctx context.Context, credentials map[string]string) error {
	if accessToken, ok := credentials["access_token"]; ok && accessToken != "" {
		s.SetToken(ctx, &oauth2.Token{
			AccessToken:  accessToken,
			RefreshToken: credentials["refresh_token"],
			TokenType:    "Bearer",
		})
		return nil
	}

	if authCode, ok := credentials["auth_code"]; ok && authCode != "" {
		token, err := s.config.Exchange(ctx, authCode)
		if err != nil {
			return fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
		}
		s.SetToken(ctx, token)
		return nil
	}

	return fmt.Errorf("%w: missing access_token or auth_code", shared.ErrMissingCredentials)
}

// SetToken installs token and builds the refreshing HTTP client around it.
func (s *SpotifyService) SetToken(ctx context.Context, token *oauth2.Token) {
	s.token = token
	source := &refreshableTokenSource{
		source:   s.config.TokenSource(context.WithoutCancel(ctx), token),
		callback: s.onTokenRefresh,
	}
	s.httpClient = oauth2.NewClient(context.WithoutCancel(ctx), source)
	s.api = spotify.New(s.httpClient, spotify.WithBaseURL(s.baseURL+"/"))
}

// Token returns the current token, refreshing it when expired.
func (s *SpotifyService) Token() (*oauth2.Token, error) {
	if s.token == nil {
		return nil, shared.ErrNotAuthenticated
	}
	if t, ok := s.httpClient.Transport.(*oauth2.Transport); ok {
		return t.Source.Token()
	}
	return s.token, nil
}

// call waits on the limiter, runs fn and wraps any failure as a remote error.
func (s *SpotifyService) call(ctx context.Context, op string, fn func() error) error {
	if s.api == nil {
		return shared.NewRemoteError(op, shared.ErrNotAuthenticated)
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return shared.NewRemoteError(op, err)
	}
	return shared.NewRemoteError(op, fn())
}

// doRequest performs an authenticated GET and decodes the JSON body into result.
//
// endpoint is either a path below the API root or an absolute URL (pagination "next" links).
// A 204 response leaves result untouched and reports false.
func (s *SpotifyService) doRequest(ctx context.Context, endpoint string, result any) (bool, error) {
	apiURL := endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		apiURL = s.baseURL + endpoint
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return false, nil
	case resp.StatusCode == http.StatusUnauthorized:
		return false, fmt.Errorf("%w: status %d", shared.ErrNotAuthenticated, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return false, fmt.Errorf("%w: %s", errNotFound, req.URL.Path)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return false, fmt.Errorf("spotify API error: status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return false, fmt.Errorf("failed to decode response: %w", err)
	}
	return true, nil
}

func (s *SpotifyService) get(ctx context.Context, op, endpoint string, result any) (bool, error) {
	var found bool
	err := s.call(ctx, op, func() error {
		var err error
		found, err = s.doRequest(ctx, endpoint, result)
		return err
	})
	return found, err
}

// CurrentUser retrieves the current authenticated user's profile.
func (s *SpotifyService) CurrentUser(ctx context.Context) (models.RawUser, error) {
	var user models.RawUser
	err := s.call(ctx, "current user", func() error {
		u, err := s.api.CurrentUser(ctx)
		if err != nil {
			return err
		}
		user = fromSpotifyUser(u.User)
		return nil
	})
	return user, err
}

// FetchUserProfile retrieves a public user profile.
func (s *SpotifyService) FetchUserProfile(ctx context.Context, userID string) (models.RawUser, error) {
	var user models.RawUser
	err := s.call(ctx, "user profile", func() error {
		u, err := s.api.GetUsersPublicProfile(ctx, spotify.ID(userID))
		if err != nil {
			return err
		}
		user = fromSpotifyUser(*u)
		return nil
	})
	return user, err
}

// FetchUserPlaylists walks every page of the current user's playlists.
func (s *SpotifyService) FetchUserPlaylists(ctx context.Context) ([]models.RawPlaylist, error) {
	var response struct {
		Items []models.RawPlaylist `json:"items"`
		Next  *string              `json:"next"`
	}

	var playlists []models.RawPlaylist
	endpoint := fmt.Sprintf("/me/playlists?limit=%d", playlistPageSize)
	for endpoint != "" {
		response.Items, response.Next = nil, nil
		if _, err := s.get(ctx, "list playlists", endpoint, &response); err != nil {
			return nil, err
		}
		playlists = append(playlists, response.Items...)

		endpoint = ""
		if response.Next != nil {
			endpoint = *response.Next
		}
	}
	return playlists, nil
}

// FetchPlaylistTracksPage retrieves the first page of a playlist's items.
func (s *SpotifyService) FetchPlaylistTracksPage(ctx context.Context, playlistID string) (*Page, error) {
	endpoint := fmt.Sprintf("/playlists/%s/tracks?limit=%d", url.PathEscape(playlistID), s.pageSize)
	page, err := s.fetchPage(ctx, "playlist tracks", endpoint)
	if errors.Is(err, errNotFound) {
		return nil, fmt.Errorf("%w: %s: %w", shared.ErrPlaylistNotFound, playlistID, err)
	}
	return page, err
}

// FetchLikedTracksPage retrieves the first page of saved tracks.
func (s *SpotifyService) FetchLikedTracksPage(ctx context.Context) (*Page, error) {
	return s.fetchPage(ctx, "liked tracks", fmt.Sprintf("/me/tracks?limit=%d", likedPageSize))
}

// FetchNextPage follows page.Next.
func (s *SpotifyService) FetchNextPage(ctx context.Context, page *Page) (*Page, error) {
	if !page.HasNext() {
		return nil, fmt.Errorf("%w: page has no next handle", shared.ErrInvalidArgument)
	}
	return s.fetchPage(ctx, "next page", page.Next)
}

func (s *SpotifyService) fetchPage(ctx context.Context, op, endpoint string) (*Page, error) {
	var response struct {
		Items []models.RawPlaylistItem `json:"items"`
		Next  *string                  `json:"next"`
		Total int                      `json:"total"`
	}
	if _, err := s.get(ctx, op, endpoint, &response); err != nil {
		return nil, err
	}

	page := &Page{Items: response.Items, Total: response.Total}
	if response.Next != nil {
		page.Next = *response.Next
	}
	return page, nil
}

// FetchCurrentPlayback returns nil when the service reports no active playback.
func (s *SpotifyService) FetchCurrentPlayback(ctx context.Context) (*models.RawPlayback, error) {
	var playback models.RawPlayback
	found, err := s.get(ctx, "current playback", "/me/player", &playback)
	if err != nil || !found {
		return nil, err
	}
	return &playback, nil
}

func (s *SpotifyService) FetchDevices(ctx context.Context) ([]models.RawDevice, error) {
	var response struct {
		Devices []models.RawDevice `json:"devices"`
	}
	if _, err := s.get(ctx, "devices", "/me/player/devices", &response); err != nil {
		return nil, err
	}
	return response.Devices, nil
}

// ReorderPlaylist moves a single item using the service's range-move primitive.
func (s *SpotifyService) ReorderPlaylist(ctx context.Context, playlistID string, from, to int, snapshotID string) (string, error) {
	var token string
	err := s.call(ctx, "reorder playlist", func() error {
		var err error
		token, err = s.api.ReorderPlaylistTracks(ctx, spotify.ID(playlistID), spotify.PlaylistReorderOptions{
			RangeStart:   spotify.Numeric(from),
			RangeLength:  1,
			InsertBefore: spotify.Numeric(to),
			SnapshotID:   snapshotID,
		})
		return err
	})
	return token, err
}

// AddTracks appends catalog tracks to the playlist.
func (s *SpotifyService) AddTracks(ctx context.Context, playlistID string, uris []string) (string, error) {
	ids := make([]spotify.ID, 0, len(uris))
	for _, uri := range uris {
		id, err := trackID(uri)
		if err != nil {
			return "", err
		}
		ids = append(ids, id)
	}

	var token string
	err := s.call(ctx, "add tracks", func() error {
		var err error
		token, err = s.api.AddTracksToPlaylist(ctx, spotify.ID(playlistID), ids...)
		return err
	})
	return token, err
}

// RemoveTracks removes specific occurrences of tracks.
func (s *SpotifyService) RemoveTracks(ctx context.Context, playlistID string, removals []Removal, snapshotID string) (string, error) {
	tracks := make([]spotify.TrackToRemove, 0, len(removals))
	for _, r := range removals {
		id, err := trackID(r.URI)
		if err != nil {
			return "", err
		}
		tracks = append(tracks, spotify.NewTrackToRemove(string(id), r.Positions))
	}

	var token string
	err := s.call(ctx, "remove tracks", func() error {
		var err error
		token, err = s.api.RemoveTracksFromPlaylistOpt(ctx, spotify.ID(playlistID), tracks, snapshotID)
		return err
	})
	return token, err
}

// CreatePlaylist creates a private, non-collaborative playlist owned by ownerID.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, ownerID, name string) (models.RawPlaylist, error) {
	var playlist models.RawPlaylist
	err := s.call(ctx, "create playlist", func() error {
		p, err := s.api.CreatePlaylistForUser(ctx, ownerID, name, "", false, false)
		if err != nil {
			return err
		}
		playlist = fromSpotifyPlaylist(p.SimplePlaylist)
		return nil
	})
	return playlist, err
}

// DeletePlaylist unfollows the playlist; the service has no hard delete.
func (s *SpotifyService) DeletePlaylist(ctx context.Context, ownerID, playlistID string) error {
	return s.call(ctx, "delete playlist", func() error {
		return s.api.UnfollowPlaylist(ctx, spotify.ID(playlistID))
	})
}

func (s *SpotifyService) SetShuffle(ctx context.Context, on bool) error {
	return s.call(ctx, "shuffle", func() error { return s.api.Shuffle(ctx, on) })
}

func (s *SpotifyService) PreviousTrack(ctx context.Context) error {
	return s.call(ctx, "previous", func() error { return s.api.Previous(ctx) })
}

func (s *SpotifyService) NextTrack(ctx context.Context) error {
	return s.call(ctx, "next", func() error { return s.api.Next(ctx) })
}

// TogglePlayPause resumes playback when play is set and pauses it otherwise.
func (s *SpotifyService) TogglePlayPause(ctx context.Context, play bool) error {
	if play {
		return s.call(ctx, "play", func() error { return s.api.Play(ctx) })
	}
	return s.call(ctx, "pause", func() error { return s.api.Pause(ctx) })
}

func (s *SpotifyService) SetVolume(ctx context.Context, percent int) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("%w: volume %d outside 0-100", shared.ErrInvalidArgument, percent)
	}
	return s.call(ctx, "volume", func() error { return s.api.Volume(ctx, percent) })
}

// PlayTrack starts trackURI, inside contextURI when one is given. Local tracks are ignored.
func (s *SpotifyService) PlayTrack(ctx context.Context, contextURI, trackURI string) error {
	if models.IsLocalURI(trackURI) {
		return nil
	}

	opts := &spotify.PlayOptions{}
	if contextURI == "" {
		opts.URIs = []spotify.URI{spotify.URI(trackURI)}
	} else {
		uri := spotify.URI(contextURI)
		opts.PlaybackContext = &uri
		opts.PlaybackOffset = &spotify.PlaybackOffset{URI: spotify.URI(trackURI)}
	}
	return s.call(ctx, "play track", func() error { return s.api.PlayOpt(ctx, opts) })
}

func (s *SpotifyService) SetRepeat(ctx context.Context, mode models.RepeatMode) error {
	return s.call(ctx, "repeat", func() error { return s.api.Repeat(ctx, string(mode)) })
}

// CycleRepeatMode reads the current repeat state and advances it.
func (s *SpotifyService) CycleRepeatMode(ctx context.Context) (models.RepeatMode, error) {
	playback, err := s.FetchCurrentPlayback(ctx)
	if err != nil {
		return "", err
	}
	if playback == nil {
		return "", shared.NewRemoteError("repeat", shared.ErrNoActiveDevice)
	}

	next := models.ParseRepeatMode(playback.RepeatState).Next()
	if err := s.SetRepeat(ctx, next); err != nil {
		return "", err
	}
	return next, nil
}

func trackID(uri string) (spotify.ID, error) {
	if models.IsLocalURI(uri) {
		return "", fmt.Errorf("%w: %s", shared.ErrLocalTrack, uri)
	}
	id, ok := strings.CutPrefix(uri, trackURIPrefix)
	if !ok || id == "" {
		return "", fmt.Errorf("%w: not a track uri: %q", shared.ErrInvalidArgument, uri)
	}
	return spotify.ID(id), nil
}

func fromSpotifyImages(images []spotify.Image) []models.RawImage {
	out := make([]models.RawImage, 0, len(images))
	for _, img := range images {
		out = append(out, models.RawImage{URL: img.URL, Height: int(img.Height), Width: int(img.Width)})
	}
	return out
}

func fromSpotifyUser(u spotify.User) models.RawUser {
	return models.RawUser{
		ID:          string(u.ID),
		DisplayName: u.DisplayName,
		URI:         string(u.URI),
		Images:      fromSpotifyImages(u.Images),
	}
}

func fromSpotifyPlaylist(p spotify.SimplePlaylist) models.RawPlaylist {
	return models.RawPlaylist{
		ID:         string(p.ID),
		Name:       p.Name,
		Images:     fromSpotifyImages(p.Images),
		Owner:      fromSpotifyUser(p.Owner),
		SnapshotID: p.SnapshotID,
		URI:        string(p.URI),
	}
}

// refreshableTokenSource reports every token that differs from the previous one.
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

var _ RemoteLibrary = (*SpotifyService)(nil)
