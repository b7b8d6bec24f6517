// package models defines the persisted entities of the cover mirror and the store contract over them
package models

import (
	"context"
	"fmt"
	"time"
)

// ImageKind records how a cover image came to exist.
type ImageKind string

const (
	KindUpload ImageKind = "upload" // uploaded by the user
	KindAI     ImageKind = "ai"     // produced by the image generator
	KindMirror ImageKind = "mirror" // first seen on the provider during a sync
)

// ParseImageKind maps an input string to an [ImageKind]. Empty input yields [KindMirror].
func ParseImageKind(s string) (ImageKind, error) {
	switch ImageKind(s) {
	case "":
		return KindMirror, nil
	case KindUpload, KindAI, KindMirror:
		return ImageKind(s), nil
	default:
		return "", fmt.Errorf("unknown image kind %q", s)
	}
}

// User is the local mirror of a provider account.
type User struct {
	ID          string
	Sequence    int
	SpotifyID   string
	DisplayName string
	Email       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate checks required fields before persistence.
func (u *User) Validate() error {
	if u.ID == "" {
		return fmt.Errorf("user id is required")
	}
	if u.SpotifyID == "" {
		return fmt.Errorf("user spotify id is required")
	}
	return nil
}

// Playlist is a provider playlist owned by a local [User].
//
// CurrentCoverID is nil until a cover has been established for the playlist.
type Playlist struct {
	ID             string
	Sequence       int
	SpotifyID      string
	UserID         string
	Name           string
	CurrentCoverID *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (p *Playlist) Validate() error {
	switch {
	case p.ID == "":
		return fmt.Errorf("playlist id is required")
	case p.SpotifyID == "":
		return fmt.Errorf("playlist spotify id is required")
	case p.UserID == "":
		return fmt.Errorf("playlist user id is required")
	}
	return nil
}

// HasCover reports whether the playlist's current cover pointer is set to imageID.
func (p *Playlist) HasCover(imageID string) bool {
	return p.CurrentCoverID != nil && *p.CurrentCoverID == imageID
}

// Image is one distinct piece of cover content, keyed by ContentID.
//
// URL is the most recent location the content was seen at and ChangedAt moves with it.
type Image struct {
	ID         string
	Sequence   int
	UserID     string
	PlaylistID string
	URL        string
	ContentID  string
	Kind       ImageKind
	ChangedAt  time.Time
	CreatedAt  time.Time
}

func (i *Image) Validate() error {
	switch {
	case i.ID == "":
		return fmt.Errorf("image id is required")
	case i.URL == "":
		return fmt.Errorf("image url is required")
	case i.ContentID == "":
		return fmt.Errorf("image content id is required")
	case i.PlaylistID == "" || i.UserID == "":
		return fmt.Errorf("image owner and playlist are required")
	}
	if _, err := ParseImageKind(string(i.Kind)); err != nil {
		return err
	}
	return nil
}

// PlaylistCover is a playlist joined with the URL of its current cover, if any.
type PlaylistCover struct {
	Playlist
	CoverURL string
}

// Store is the record store the sync pipeline reads and writes.
//
// Lookups return an error wrapping shared.ErrNotFound when no row matches.
// Every write is a single-row atomic operation; failures wrap shared.ErrStoreFail.
type Store interface {
	FindUserBySpotifyID(ctx context.Context, spotifyID string) (*User, error)
	UpsertUser(ctx context.Context, u *User) (*User, error)

	FindPlaylistBySpotifyID(ctx context.Context, spotifyID string) (*Playlist, error)
	UpsertPlaylist(ctx context.Context, p *Playlist) (*Playlist, error)
	UpdatePlaylistCover(ctx context.Context, playlistID, imageID string) error
	ListPlaylists(ctx context.Context, userID string) ([]PlaylistCover, error)

	FindImageByContentID(ctx context.Context, contentID string) (*Image, error)
	InsertImage(ctx context.Context, img *Image) (*Image, error)
	UpdateImageURL(ctx context.Context, imageID, url string, changedAt time.Time) error
	GetImage(ctx context.Context, id string) (*Image, error)
	ListImages(ctx context.Context, playlistID string, limit int) ([]Image, error)
}
