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

// StatusAccepted is the only status StartSync reports; the job outcome is logged by the queue.
const StatusAccepted = "accepted"

// Identity is the authenticated caller, resolved once per request and passed down explicitly.
type Identity struct {
	SpotifyID   string
	DisplayName string
	Email       string
	AccessToken string
}

// SyncHandle is returned to the caller as soon as a sync has been queued.
type SyncHandle struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Status string `json:"status"`
}

// SyncController resolves the local user and hands full reconciliations to a background [Queue].
type SyncController struct {
	store      models.Store
	provider   services.Provider
	reconciler *Reconciler
	queue      *Queue
	progress   *ProgressHub
	logger     *log.Logger
}

// NewSyncController creates a SyncController. queue may be nil when only [SyncController.RunSync] is used.
func NewSyncController(store models.Store, provider services.Provider, reconciler *Reconciler, queue *Queue, logger *log.Logger) *SyncController {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &SyncController{
		store:      store,
		provider:   provider,
		reconciler: reconciler,
		queue:      queue,
		progress:   NewProgressHub(),
		logger:     shared.WithLogger(logger, "component", "sync"),
	}
}

// ResolveUser returns the local user for id, creating it on first sight and refreshing
// display name and email when they changed.
func (c *SyncController) ResolveUser(ctx context.Context, id Identity) (*models.User, error) {
	if id.SpotifyID == "" {
		return nil, shared.ErrNotAuthenticated
	}

	user, err := c.store.FindUserBySpotifyID(ctx, id.SpotifyID)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return c.store.UpsertUser(ctx, &models.User{
			ID:          shared.GenerateID(),
			SpotifyID:   id.SpotifyID,
			DisplayName: id.DisplayName,
			Email:       id.Email,
		})
	case err != nil:
		return nil, err
	}

	if user.DisplayName == id.DisplayName && user.Email == id.Email {
		return user, nil
	}
	user.DisplayName = id.DisplayName
	user.Email = id.Email
	return c.store.UpsertUser(ctx, user)
}

// StartSync resolves the user synchronously and queues a full reconciliation.
//
// The returned handle only says the job was accepted. The job runs on its own context,
// so cancelling ctx after StartSync returns does not stop it. Concurrent syncs for the
// same user are not serialized.
func (c *SyncController) StartSync(ctx context.Context, id Identity) (*SyncHandle, error) {
	if c.queue == nil {
		return nil, fmt.Errorf("%w: background queue not configured", shared.ErrServiceUnavailable)
	}

	user, err := c.ResolveUser(ctx, id)
	if err != nil {
		return nil, err
	}

	owner := Owner{SpotifyID: id.SpotifyID, UserID: user.ID}
	jobID := shared.GenerateID()
	progress := c.progress.open(jobID)
	job := Job{
		ID:    jobID,
		Name:  "sync " + id.SpotifyID,
		Owner: user.ID,
		Run: func(ctx context.Context) error {
			_, err := c.RunSync(ctx, owner, id.AccessToken, progress)
			return err
		},
		OnDone: func(JobStatus) { close(progress) },
	}

	if err := c.queue.Submit(job); err != nil {
		close(progress)
		return nil, err
	}

	c.logger.Info("sync accepted", "job", job.ID, "owner", id.SpotifyID)
	return &SyncHandle{ID: job.ID, UserID: user.ID, Status: StatusAccepted}, nil
}

// RunSync fetches every playlist page for token and reconciles the batch for owner.
//
// Only a failed listing is returned as an error; per-playlist failures are in the result.
func (c *SyncController) RunSync(ctx context.Context, owner Owner, token string, progress chan<- ProgressUpdate) (*ReconcileResult, error) {
	playlists, err := services.AllPlaylists(ctx, c.provider, token)
	if err != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", err)
	}
	sendProgress(progress, fetchedPlaylistsUpdate(len(playlists)))

	result := c.reconciler.Reconcile(ctx, owner, playlists, ProviderCoverFetcher(c.provider, token), progress)
	if result.Failed > 0 {
		c.logger.Warn("sync finished with failures", "owner", owner.SpotifyID, "failed", result.Failed)
	}
	return result, nil
}

// JobStatus reports the state of a sync job started by [SyncController.StartSync].
func (c *SyncController) JobStatus(id string) (JobStatus, bool) {
	if c.queue == nil {
		return JobStatus{}, false
	}
	return c.queue.Status(id)
}

// OwnedJobStatus is [SyncController.JobStatus] restricted to jobs started for userID.
// Another user's job is reported as missing.
func (c *SyncController) OwnedJobStatus(id, userID string) (JobStatus, bool) {
	status, ok := c.JobStatus(id)
	if !ok || status.Owner != userID {
		return JobStatus{}, false
	}
	return status, true
}

// Subscribe streams the progress of sync job id until it finishes. See [ProgressHub.Subscribe].
func (c *SyncController) Subscribe(id string) (<-chan ProgressUpdate, func()) {
	return c.progress.Subscribe(id)
}

// ProviderCoverFetcher resolves a playlist's first listed cover through p with token.
func ProviderCoverFetcher(p services.Provider, token string) CoverFetcher {
	return func(ctx context.Context, playlistID string) (string, error) {
		images, err := p.PlaylistImages(ctx, token, playlistID)
		if err != nil || len(images) == 0 {
			return "", err
		}
		return images[0].URL, nil
	}
}
