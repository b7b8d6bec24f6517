// package services defines the clients for the music provider and the image generator used by the sync pipeline
package services

import (
	"context"
	"fmt"
)

// Provider is the music service the covers are mirrored from and uploaded to.
//
// Every call carries the caller's access token explicitly; implementations hold no per-user state.
type Provider interface {
	// Name returns the name of the service (e.g., "Spotify")
	Name() string

	// CurrentUser resolves the profile that owns token.
	CurrentUser(ctx context.Context, token string) (*Profile, error)

	// PlaylistPage fetches one page of the user's playlists. An empty pageURL requests the first page.
	PlaylistPage(ctx context.Context, token, pageURL string) (*PlaylistPage, error)

	// PlaylistImages returns the current cover renditions of a playlist, largest first.
	PlaylistImages(ctx context.Context, token, playlistID string) ([]Image, error)

	// ReplacePlaylistImage uploads a base64-encoded JPEG as the playlist cover.
	ReplacePlaylistImage(ctx context.Context, token, playlistID, imageBase64 string) error
}

// ImageGenerator produces image bytes for a text prompt.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) ([]byte, error)
}

// Profile is the provider account behind an access token.
type Profile struct {
	ID          string
	DisplayName string
	Email       string
}

// Image is a hosted cover rendition.
type Image struct {
	URL    string
	Width  int
	Height int
}

// Playlist represents a provider playlist as seen during a sync
type Playlist struct {
	ID      string
	Name    string
	OwnerID string
	Images  []Image
}

// CoverURL returns the URL of the first embedded image, or "" when the listing carried none.
func (p Playlist) CoverURL() string {
	for _, img := range p.Images {
		if img.URL != "" {
			return img.URL
		}
	}
	return ""
}

// PlaylistPage is one page of a paginated playlist listing. Next is empty on the last page.
type PlaylistPage struct {
	Items []Playlist
	Total int
	Next  string
}

// maxPages bounds pagination against a provider that never stops returning next links.
const maxPages = 1000

// AllPlaylists follows next links from the first page until the listing is exhausted.
func AllPlaylists(ctx context.Context, p Provider, token string) ([]Playlist, error) {
	var (
		all  []Playlist
		next string
	)
	for range maxPages {
		page, err := p.PlaylistPage(ctx, token, next)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Items...)
		if page.Next == "" {
			return all, nil
		}
		next = page.Next
	}
	return nil, fmt.Errorf("playlist listing exceeded %d pages", maxPages)
}
