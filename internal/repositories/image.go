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

const imageColumns = `id, sequence, user_id, playlist_id, url, content_id, kind, changed_at, created_at`

// DefaultHistoryLimit is the number of recent covers returned when no limit is given.
const DefaultHistoryLimit = 4

// ImageRepository persists [models.Image] rows, one per content identity.
type ImageRepository struct {
	db *sql.DB
}

// NewImageRepository creates a new ImageRepository with the given database connection
func NewImageRepository(db *sql.DB) *ImageRepository {
	return &ImageRepository{db: db}
}

// Insert adds a new image row. A second row with the same content_id violates the unique constraint.
func (r *ImageRepository) Insert(ctx context.Context, img *models.Image) error {
	if err := img.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(ctx, r.db, "images")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}
	img.Sequence = sequence

	query := `INSERT INTO images (` + imageColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		img.ID,
		img.Sequence,
		img.UserID,
		img.PlaylistID,
		img.URL,
		img.ContentID,
		string(img.Kind),
		img.ChangedAt,
		img.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert image: %w", err)
	}

	return nil
}

// UpdateURL records that the image content was seen at a new location.
func (r *ImageRepository) UpdateURL(ctx context.Context, id, url string, changedAt time.Time) error {
	result, err := r.db.ExecContext(ctx, `UPDATE images SET url = ?, changed_at = ? WHERE id = ?`, url, changedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update image url: %w", err)
	}
	return checkAffected(result, fmt.Errorf("%w: image %s", shared.ErrNotFound, id))
}

// Get retrieves an image by local ID
func (r *ImageRepository) Get(ctx context.Context, id string) (*models.Image, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+imageColumns+` FROM images WHERE id = ?`, id)
	return r.scanOne(row, id)
}

// GetByContentID retrieves the image carrying the given content identity
func (r *ImageRepository) GetByContentID(ctx context.Context, contentID string) (*models.Image, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+imageColumns+` FROM images WHERE content_id = ?`, contentID)
	return r.scanOne(row, contentID)
}

// ListByPlaylist returns up to limit images of a playlist, most recently changed first.
// A non-positive limit falls back to [DefaultHistoryLimit].
func (r *ImageRepository) ListByPlaylist(ctx context.Context, playlistID string, limit int) ([]models.Image, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	query := `
		SELECT ` + imageColumns + `
		FROM images
		WHERE playlist_id = ?
		ORDER BY changed_at DESC, sequence DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, playlistID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query images: %w", err)
	}
	defer rows.Close()

	var images []models.Image
	for rows.Next() {
		img, err := r.scanOne(rows, playlistID)
		if err != nil {
			return nil, err
		}
		images = append(images, *img)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return images, nil
}

func (r *ImageRepository) scanOne(row scanner, key string) (*models.Image, error) {
	var (
		img  models.Image
		kind string
	)
	err := row.Scan(&img.ID, &img.Sequence, &img.UserID, &img.PlaylistID, &img.URL, &img.ContentID,
		&kind, &img.ChangedAt, &img.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: image %s", shared.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan image: %w", err)
	}
	img.Kind = models.ImageKind(kind)
	return &img, nil
}
