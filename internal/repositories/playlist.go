package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/coverx/internal/models"
	"github.com/desertthunder/coverx/internal/shared"
)

const playlistColumns = `id, sequence, spotify_id, user_id, name, current_cover_id, created_at, updated_at`

// PlaylistRepository persists [models.Playlist] rows and their current cover pointer.
type PlaylistRepository struct {
	db *sql.DB
}

// NewPlaylistRepository creates a new PlaylistRepository with the given database connection
func NewPlaylistRepository(db *sql.DB) *PlaylistRepository {
	return &PlaylistRepository{db: db}
}

// Upsert inserts the playlist or updates name and owner of the row with the same ID.
//
// The cover pointer is only written on insert; later changes go through [PlaylistRepository.SetCover].
func (r *PlaylistRepository) Upsert(ctx context.Context, playlist *models.Playlist) error {
	if err := playlist.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if playlist.Sequence == 0 {
		sequence, err := NextSequence(ctx, r.db, "playlists")
		if err != nil {
			return fmt.Errorf("failed to generate sequence: %w", err)
		}
		playlist.Sequence = sequence
	}

	query := `
		INSERT INTO playlists (` + playlistColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			spotify_id = excluded.spotify_id,
			user_id = excluded.user_id,
			name = excluded.name,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		playlist.ID,
		playlist.Sequence,
		playlist.SpotifyID,
		playlist.UserID,
		playlist.Name,
		nullable(playlist.CurrentCoverID),
		playlist.CreatedAt,
		playlist.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert playlist: %w", err)
	}

	return nil
}

// SetCover points the playlist at imageID.
func (r *PlaylistRepository) SetCover(ctx context.Context, playlistID, imageID string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE playlists SET current_cover_id = ?, updated_at = ? WHERE id = ?`,
		imageID, at, playlistID,
	)
	if err != nil {
		return fmt.Errorf("failed to set playlist cover: %w", err)
	}
	return checkAffected(result, fmt.Errorf("%w: playlist %s", shared.ErrNotFound, playlistID))
}

// Get retrieves a playlist by local ID
func (r *PlaylistRepository) Get(ctx context.Context, id string) (*models.Playlist, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+playlistColumns+` FROM playlists WHERE id = ?`, id)
	return r.scanOne(row, id)
}

// GetBySpotifyID retrieves a playlist by provider playlist ID
func (r *PlaylistRepository) GetBySpotifyID(ctx context.Context, spotifyID string) (*models.Playlist, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+playlistColumns+` FROM playlists WHERE spotify_id = ?`, spotifyID)
	return r.scanOne(row, spotifyID)
}

// ListByUser returns the user's playlists joined with the URL of each current cover, in sequence order.
func (r *PlaylistRepository) ListByUser(ctx context.Context, userID string) ([]models.PlaylistCover, error) {
	query := `
		SELECT p.id, p.sequence, p.spotify_id, p.user_id, p.name, p.current_cover_id, p.created_at, p.updated_at,
			COALESCE(i.url, '')
		FROM playlists p
		LEFT JOIN images i ON i.id = p.current_cover_id
		WHERE p.user_id = ?
		ORDER BY p.sequence ASC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}
	defer rows.Close()

	var playlists []models.PlaylistCover
	for rows.Next() {
		var (
			pc    models.PlaylistCover
			cover sql.NullString
		)
		err := rows.Scan(&pc.ID, &pc.Sequence, &pc.SpotifyID, &pc.UserID, &pc.Name, &cover,
			&pc.CreatedAt, &pc.UpdatedAt, &pc.CoverURL)
		if err != nil {
			return nil, fmt.Errorf("failed to scan playlist: %w", err)
		}
		if cover.Valid {
			pc.CurrentCoverID = &cover.String
		}
		playlists = append(playlists, pc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return playlists, nil
}

func (r *PlaylistRepository) scanOne(row scanner, key string) (*models.Playlist, error) {
	var (
		p     models.Playlist
		cover sql.NullString
	)
	err := row.Scan(&p.ID, &p.Sequence, &p.SpotifyID, &p.UserID, &p.Name, &cover, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: playlist %s", shared.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query playlist: %w", err)
	}
	if cover.Valid {
		p.CurrentCoverID = &cover.String
	}
	return &p, nil
}

func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
