// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/coverx/internal/models"
	"github.com/desertthunder/coverx/internal/repositories"
	"github.com/desertthunder/coverx/internal/services"
	"github.com/desertthunder/coverx/internal/shared"
)

// NewStore returns a [repositories.Store] over a migrated in-memory database that is closed with the test.
func NewStore(t *testing.T) *repositories.Store {
	t.Helper()
	db, err := shared.OpenMigrated(shared.DatabaseConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return repositories.NewStore(db, nil)
}

// CountingStore wraps a [models.Store] and counts write calls.
type CountingStore struct {
	models.Store
	writes atomic.Int64

	// FailOn makes the named write method fail for matching arguments.
	FailOn func(method string, arg string) error
}

func NewCountingStore(inner models.Store) *CountingStore {
	return &CountingStore{Store: inner}
}

// Writes returns the number of write calls seen so far.
func (s *CountingStore) Writes() int64 { return s.writes.Load() }

// Reset zeroes the write counter.
func (s *CountingStore) Reset() { s.writes.Store(0) }

func (s *CountingStore) fail(method, arg string) error {
	if s.FailOn == nil {
		return nil
	}
	return s.FailOn(method, arg)
}

func (s *CountingStore) UpsertUser(ctx context.Context, u *models.User) (*models.User, error) {
	s.writes.Add(1)
	if err := s.fail("UpsertUser", u.SpotifyID); err != nil {
		return nil, err
	}
	return s.Store.UpsertUser(ctx, u)
}

func (s *CountingStore) UpsertPlaylist(ctx context.Context, p *models.Playlist) (*models.Playlist, error) {
	s.writes.Add(1)
	if err := s.fail("UpsertPlaylist", p.SpotifyID); err != nil {
		return nil, err
	}
	return s.Store.UpsertPlaylist(ctx, p)
}

func (s *CountingStore) UpdatePlaylistCover(ctx context.Context, playlistID, imageID string) error {
	s.writes.Add(1)
	if err := s.fail("UpdatePlaylistCover", playlistID); err != nil {
		return err
	}
	return s.Store.UpdatePlaylistCover(ctx, playlistID, imageID)
}

func (s *CountingStore) InsertImage(ctx context.Context, img *models.Image) (*models.Image, error) {
	s.writes.Add(1)
	if err := s.fail("InsertImage", img.URL); err != nil {
		return nil, err
	}
	return s.Store.InsertImage(ctx, img)
}

func (s *CountingStore) UpdateImageURL(ctx context.Context, imageID, url string, changedAt time.Time) error {
	s.writes.Add(1)
	if err := s.fail("UpdateImageURL", url); err != nil {
		return err
	}
	return s.Store.UpdateImageURL(ctx, imageID, url, changedAt)
}

// FakeProvider is an in-memory [services.Provider].
//
// Pages are served in order; uploads replace the playlist's images with UploadedURL once
// StaleFetches image reads have returned the old images and EmptyFetches reads have
// returned nothing.
type FakeProvider struct {
	mu sync.Mutex

	Profiles     map[string]*services.Profile // keyed by token
	Pages        [][]services.Playlist
	Images       map[string][]services.Image // keyed by playlist ID
	RejectStatus int
	UploadedURL  string
	EmptyFetches int
	StaleFetches int
	PageErr      error

	Uploads     []string
	ImageCalls  int
	PageCalls   int
	pendingURLs map[string]string
}

var _ services.Provider = (*FakeProvider)(nil)

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		Profiles:    map[string]*services.Profile{},
		Images:      map[string][]services.Image{},
		pendingURLs: map[string]string{},
	}
}

func (f *FakeProvider) Name() string { return "fake" }

func (f *FakeProvider) CurrentUser(_ context.Context, token string) (*services.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.Profiles[token]
	if !ok {
		return nil, &shared.ProviderError{Provider: "fake", Op: "GET /me", Status: http.StatusUnauthorized, Body: "invalid token"}
	}
	return p, nil
}

// PlaylistPage serves Pages[n] for pageURL "" (n=0) or "page-n".
func (f *FakeProvider) PlaylistPage(_ context.Context, _ string, pageURL string) (*services.PlaylistPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PageCalls++
	if f.PageErr != nil {
		return nil, f.PageErr
	}

	n := 0
	if pageURL != "" {
		if _, err := fmt.Sscanf(pageURL, "page-%d", &n); err != nil {
			return nil, fmt.Errorf("bad page url %q", pageURL)
		}
	}
	if n >= len(f.Pages) {
		return &services.PlaylistPage{}, nil
	}

	page := &services.PlaylistPage{Items: f.Pages[n]}
	if n+1 < len(f.Pages) {
		page.Next = fmt.Sprintf("page-%d", n+1)
	}
	return page, nil
}

func (f *FakeProvider) PlaylistImages(_ context.Context, _ string, playlistID string) ([]services.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ImageCalls++

	if url, ok := f.pendingURLs[playlistID]; ok {
		if f.StaleFetches > 0 {
			f.StaleFetches--
			return f.Images[playlistID], nil
		}
		if f.EmptyFetches > 0 {
			f.EmptyFetches--
			return nil, nil
		}
		delete(f.pendingURLs, playlistID)
		f.Images[playlistID] = []services.Image{{URL: url, Width: 640, Height: 640}}
	}
	return f.Images[playlistID], nil
}

func (f *FakeProvider) ReplacePlaylistImage(_ context.Context, _ string, playlistID, imageBase64 string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RejectStatus != 0 {
		return &shared.ProviderError{Provider: "fake", Op: "PUT image", Status: f.RejectStatus, Body: http.StatusText(f.RejectStatus)}
	}
	f.Uploads = append(f.Uploads, playlistID)
	if f.UploadedURL != "" {
		f.pendingURLs[playlistID] = f.UploadedURL
	}
	return nil
}

// FakeGenerator returns Data or Err from Generate and records prompts.
type FakeGenerator struct {
	Data    []byte
	Err     error
	Prompts []string
}

func (g *FakeGenerator) Generate(_ context.Context, prompt string) ([]byte, error) {
	g.Prompts = append(g.Prompts, prompt)
	return g.Data, g.Err
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}
