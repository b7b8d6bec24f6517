package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/coverx/internal/models"
	"github.com/desertthunder/coverx/internal/shared"
)

const userColumns = `id, sequence, spotify_id, display_name, email, created_at, updated_at`

// UserRepository persists [models.User] rows keyed by local ID and unique provider ID.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new [UserRepository] with the given database connection
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Upsert inserts the user or, when a row with the same ID exists, refreshes its profile fields.
//
// A sequence is only drawn for users that do not carry one yet.
func (r *UserRepository) Upsert(ctx context.Context, user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if user.Sequence == 0 {
		sequence, err := NextSequence(ctx, r.db, "users")
		if err != nil {
			return fmt.Errorf("failed to generate sequence: %w", err)
		}
		user.Sequence = sequence
	}

	query := `
		INSERT INTO users (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			spotify_id = excluded.spotify_id,
			display_name = excluded.display_name,
			email = excluded.email,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Sequence, user.SpotifyID, user.DisplayName, user.Email, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}

	return nil
}

// Get retrieves a user by local ID
func (r *UserRepository) Get(ctx context.Context, id string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return r.scan(row, id)
}

// GetBySpotifyID retrieves a user by provider user ID
func (r *UserRepository) GetBySpotifyID(ctx context.Context, spotifyID string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE spotify_id = ?`, spotifyID)
	return r.scan(row, spotifyID)
}

func (r *UserRepository) scan(row scanner, key string) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Sequence, &u.SpotifyID, &u.DisplayName, &u.Email, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %s", shared.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &u, nil
}
