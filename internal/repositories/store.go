package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/desertthunder/coverx/internal/models"
	"github.com/desertthunder/coverx/internal/shared"
)

// Store implements [models.Store] on top of the per-table repositories.
//
// Errors other than not-found are wrapped in [shared.StoreError] naming the failed operation.
type Store struct {
	users     *UserRepository
	playlists *PlaylistRepository
	images    *ImageRepository
	now       shared.Clock
}

var _ models.Store = (*Store)(nil)

// NewStore creates a [Store] over db. A nil clock uses [shared.SystemClock].
func NewStore(db *sql.DB, clock shared.Clock) *Store {
	if clock == nil {
		clock = shared.SystemClock
	}
	return &Store{
		users:     NewUserRepository(db),
		playlists: NewPlaylistRepository(db),
		images:    NewImageRepository(db),
		now:       clock,
	}
}

func (s *Store) FindUserBySpotifyID(ctx context.Context, spotifyID string) (*models.User, error) {
	u, err := s.users.GetBySpotifyID(ctx, spotifyID)
	return u, shared.NewStoreError("find user", err)
}

// UpsertUser stamps timestamps and writes u. The caller supplies the ID.
func (s *Store) UpsertUser(ctx context.Context, u *models.User) (*models.User, error) {
	stamp(&u.CreatedAt, &u.UpdatedAt, s.now())
	if err := s.users.Upsert(ctx, u); err != nil {
		return nil, shared.NewStoreError("upsert user", err)
	}
	return u, nil
}

func (s *Store) FindPlaylistBySpotifyID(ctx context.Context, spotifyID string) (*models.Playlist, error) {
	p, err := s.playlists.GetBySpotifyID(ctx, spotifyID)
	return p, shared.NewStoreError("find playlist", err)
}

func (s *Store) UpsertPlaylist(ctx context.Context, p *models.Playlist) (*models.Playlist, error) {
	stamp(&p.CreatedAt, &p.UpdatedAt, s.now())
	if err := s.playlists.Upsert(ctx, p); err != nil {
		return nil, shared.NewStoreError("upsert playlist", err)
	}
	return p, nil
}

func (s *Store) UpdatePlaylistCover(ctx context.Context, playlistID, imageID string) error {
	return shared.NewStoreError("update playlist cover", s.playlists.SetCover(ctx, playlistID, imageID, s.now()))
}

func (s *Store) ListPlaylists(ctx context.Context, userID string) ([]models.PlaylistCover, error) {
	list, err := s.playlists.ListByUser(ctx, userID)
	return list, shared.NewStoreError("list playlists", err)
}

func (s *Store) FindImageByContentID(ctx context.Context, contentID string) (*models.Image, error) {
	img, err := s.images.GetByContentID(ctx, contentID)
	return img, shared.NewStoreError("find image", err)
}

// InsertImage writes a new image row, defaulting ChangedAt and CreatedAt to now.
func (s *Store) InsertImage(ctx context.Context, img *models.Image) (*models.Image, error) {
	now := s.now()
	if img.ChangedAt.IsZero() {
		img.ChangedAt = now
	}
	if img.CreatedAt.IsZero() {
		img.CreatedAt = now
	}
	if err := s.images.Insert(ctx, img); err != nil {
		return nil, shared.NewStoreError("insert image", err)
	}
	return img, nil
}

func (s *Store) UpdateImageURL(ctx context.Context, imageID, url string, changedAt time.Time) error {
	return shared.NewStoreError("update image url", s.images.UpdateURL(ctx, imageID, url, changedAt))
}

func (s *Store) GetImage(ctx context.Context, id string) (*models.Image, error) {
	img, err := s.images.Get(ctx, id)
	return img, shared.NewStoreError("get image", err)
}

func (s *Store) ListImages(ctx context.Context, playlistID string, limit int) ([]models.Image, error) {
	list, err := s.images.ListByPlaylist(ctx, playlistID, limit)
	return list, shared.NewStoreError("list images", err)
}

func stamp(created, updated *time.Time, now time.Time) {
	if created.IsZero() {
		*created = now
	}
	*updated = now
}
