package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/coverx/internal/models"
	"github.com/desertthunder/coverx/internal/services"
	"github.com/desertthunder/coverx/internal/shared"
)

// Owner identifies the signed-in user a reconciliation runs for.
type Owner struct {
	SpotifyID string // provider user ID, compared against playlist owners
	UserID    string // local user ID written to new rows
}

// CoverFetcher resolves a playlist's current cover URL when the listing carried none.
// An empty string with a nil error means the playlist has no cover.
type CoverFetcher func(ctx context.Context, playlistID string) (string, error)

// PlaylistError records the failure of a single playlist within a batch.
type PlaylistError struct {
	PlaylistID string
	Name       string
	Err        error
}

func (e PlaylistError) Error() string {
	return fmt.Sprintf("playlist %s (%s): %v", e.PlaylistID, e.Name, e.Err)
}

func (e PlaylistError) Unwrap() error { return e.Err }

// ReconcileResult summarizes a batch reconciliation.
type ReconcileResult struct {
	Processed int             // Playlists brought in line with the provider
	Skipped   int             // Playlists owned by someone else
	Failed    int             // Playlists whose reconciliation hit an error
	Errors    []PlaylistError // One entry per failed playlist
	Writes    int             // Store writes issued
}

// CoverWrite asks [Reconciler.ApplyCover] to make URL the cover of a local playlist.
type CoverWrite struct {
	UserID         string
	PlaylistID     string
	URL            string
	Kind           models.ImageKind // used only when a new image row is inserted; empty means mirror
	CurrentCoverID *string          // the playlist's cover pointer as last read
}

// CoverResult is the outcome of [Reconciler.ApplyCover].
type CoverResult struct {
	Image    *models.Image
	Inserted bool
	Writes   int
}

// Reconciler brings the local mirror in line with a batch of provider playlists.
type Reconciler struct {
	store  models.Store
	logger *log.Logger
	now    shared.Clock
}

// NewReconciler creates a Reconciler. A nil logger discards output and a nil clock uses [shared.SystemClock].
func NewReconciler(store models.Store, logger *log.Logger, clock shared.Clock) *Reconciler {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if clock == nil {
		clock = shared.SystemClock
	}
	return &Reconciler{
		store:  store,
		logger: shared.WithLogger(logger, "component", "reconciler"),
		now:    clock,
	}
}

// Reconcile processes playlists sequentially in input order.
//
// Playlists not owned by owner are skipped before any store access. A failure on one
// playlist is logged and recorded in the result and never stops the batch; writes for
// earlier playlists stay committed.
func (r *Reconciler) Reconcile(ctx context.Context, owner Owner, playlists []services.Playlist, fetch CoverFetcher, progress chan<- ProgressUpdate) *ReconcileResult {
	result := &ReconcileResult{}
	total := len(playlists)

	for i, pl := range playlists {
		step := i + 1

		if pl.OwnerID != owner.SpotifyID {
			result.Skipped++
			sendProgress(progress, reconcileSkippedUpdate(step, total, pl.Name))
			continue
		}

		if err := ctx.Err(); err != nil {
			r.fail(result, pl, err)
			sendProgress(progress, reconcileFailedUpdate(step, total, pl.Name, err))
			continue
		}

		writes, err := r.reconcileOne(ctx, owner, pl, fetch)
		result.Writes += writes
		if err != nil {
			r.fail(result, pl, err)
			sendProgress(progress, reconcileFailedUpdate(step, total, pl.Name, err))
			continue
		}

		result.Processed++
		sendProgress(progress, reconcileUpdate(step, total, pl.Name))
	}

	r.logger.Info("reconciled playlists",
		"owner", owner.SpotifyID,
		"processed", result.Processed,
		"skipped", result.Skipped,
		"failed", result.Failed,
		"writes", result.Writes,
	)
	return result
}

func (r *Reconciler) fail(result *ReconcileResult, pl services.Playlist, err error) {
	result.Failed++
	result.Errors = append(result.Errors, PlaylistError{PlaylistID: pl.ID, Name: pl.Name, Err: err})
	r.logger.Error("failed to reconcile playlist", "playlist", pl.ID, "name", pl.Name, "err", err)
}

func (r *Reconciler) reconcileOne(ctx context.Context, owner Owner, pl services.Playlist, fetch CoverFetcher) (int, error) {
	local, writes, err := r.EnsurePlaylist(ctx, owner, pl.ID, pl.Name)
	if err != nil {
		return writes, err
	}

	url := pl.CoverURL()
	if url == "" && fetch != nil {
		if url, err = fetch(ctx, pl.ID); err != nil {
			return writes, fmt.Errorf("failed to fetch cover: %w", err)
		}
	}

	// no candidate cover leaves the current pointer untouched
	if url == "" {
		return writes, nil
	}

	res, err := r.ApplyCover(ctx, CoverWrite{
		UserID:         owner.UserID,
		PlaylistID:     local.ID,
		URL:            url,
		Kind:           models.KindMirror,
		CurrentCoverID: local.CurrentCoverID,
	})
	if res != nil {
		writes += res.Writes
	}
	return writes, err
}

// EnsurePlaylist finds the local row for a provider playlist and creates or updates it
// so that it carries name and belongs to owner. An up-to-date row is returned without a write.
//
// An empty name keeps the stored name of an existing row.
func (r *Reconciler) EnsurePlaylist(ctx context.Context, owner Owner, spotifyID, name string) (*models.Playlist, int, error) {
	existing, err := r.store.FindPlaylistBySpotifyID(ctx, spotifyID)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		created, err := r.store.UpsertPlaylist(ctx, &models.Playlist{
			ID:        shared.GenerateID(),
			SpotifyID: spotifyID,
			UserID:    owner.UserID,
			Name:      name,
		})
		if err != nil {
			return nil, 1, err
		}
		return created, 1, nil
	case err != nil:
		return nil, 0, err
	}

	if name == "" {
		name = existing.Name
	}
	if existing.Name == name && existing.UserID == owner.UserID {
		return existing, 0, nil
	}

	existing.Name = name
	existing.UserID = owner.UserID
	updated, err := r.store.UpsertPlaylist(ctx, existing)
	if err != nil {
		return nil, 1, err
	}
	return updated, 1, nil
}

// ApplyCover deduplicates w.URL by content identity and points the playlist at the resulting image row.
//
//   - no row with that identity: insert one with w.Kind
//   - a row with a different URL: move it to w.URL and advance ChangedAt
//   - a row with the same URL: no image write
//
// The playlist pointer is only written when it does not already reference the row.
func (r *Reconciler) ApplyCover(ctx context.Context, w CoverWrite) (*CoverResult, error) {
	contentID := shared.ImageIdentity(w.URL)
	res := &CoverResult{}

	img, err := r.store.FindImageByContentID(ctx, contentID)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		img, err = r.insertImage(ctx, w, contentID, res)
		if err != nil {
			return res, err
		}
	case err != nil:
		return res, err
	case img.URL != w.URL:
		changedAt := r.now()
		res.Writes++
		if err := r.store.UpdateImageURL(ctx, img.ID, w.URL, changedAt); err != nil {
			return res, err
		}
		img.URL = w.URL
		img.ChangedAt = changedAt
	}
	res.Image = img

	if current := w.CurrentCoverID; current != nil && *current == img.ID {
		return res, nil
	}

	res.Writes++
	if err := r.store.UpdatePlaylistCover(ctx, w.PlaylistID, img.ID); err != nil {
		return res, err
	}
	return res, nil
}

// insertImage adds a new image row. When a concurrent writer inserted the same content first,
// the existing row is returned instead.
func (r *Reconciler) insertImage(ctx context.Context, w CoverWrite, contentID string, res *CoverResult) (*models.Image, error) {
	kind := w.Kind
	if kind == "" {
		kind = models.KindMirror
	}

	now := r.now()
	res.Writes++
	img, err := r.store.InsertImage(ctx, &models.Image{
		ID:         shared.GenerateID(),
		UserID:     w.UserID,
		PlaylistID: w.PlaylistID,
		URL:        w.URL,
		ContentID:  contentID,
		Kind:       kind,
		ChangedAt:  now,
		CreatedAt:  now,
	})
	if err == nil {
		res.Inserted = true
		return img, nil
	}

	if existing, findErr := r.store.FindImageByContentID(ctx, contentID); findErr == nil {
		r.logger.Debug("image inserted concurrently", "content_id", contentID)
		return existing, nil
	}
	return nil, err
}
