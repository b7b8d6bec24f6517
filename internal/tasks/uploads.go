package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/coverx/internal/models"
	"github.com/desertthunder/coverx/internal/services"
	"github.com/desertthunder/coverx/internal/shared"
)

const (
	defaultUploadAttempts = 3
	defaultUploadBackoff  = 500 * time.Millisecond
)

// ImageFetcher downloads the bytes behind an image URL.
type ImageFetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// CoverUpload is a request to replace a playlist cover with an encoded image.
type CoverUpload struct {
	PlaylistSpotifyID string
	PlaylistName      string // used when the playlist has no local row yet
	ImageBase64       string
	Kind              models.ImageKind // upload or ai; empty means upload
	Owner             Owner
	Token             string
}

// CoverSelect is a request to reuse a cover previously recorded for the owner.
type CoverSelect struct {
	PlaylistSpotifyID string
	ImageURL          string
	Owner             Owner
	Token             string
}

// CoverGenerate is a request to generate a new cover from a description.
type CoverGenerate struct {
	PlaylistSpotifyID string
	PlaylistName      string
	Prompt            string
	Owner             Owner
	Token             string
}

// UploaderOptions tunes the post-upload cover lookup.
type UploaderOptions struct {
	Attempts int           // image list fetches after an accepted upload
	Backoff  time.Duration // delay between fetches
}

// DefaultUploaderOptions returns three attempts half a second apart.
func DefaultUploaderOptions() UploaderOptions {
	return UploaderOptions{Attempts: defaultUploadAttempts, Backoff: defaultUploadBackoff}
}

// CoverUploader replaces playlist covers on the provider and records the result locally.
//
// The provider write always happens first. Local writes that fail afterwards are logged and
// do not fail the upload; the next full sync repairs the mirror.
type CoverUploader struct {
	provider   services.Provider
	store      models.Store
	reconciler *Reconciler
	fetcher    ImageFetcher
	generator  services.ImageGenerator
	opts       UploaderOptions
	logger     *log.Logger
}

// NewCoverUploader creates a CoverUploader. fetcher and generator may be nil when
// [CoverUploader.SelectCover] or [CoverUploader.GenerateCover] are not used.
func NewCoverUploader(
	provider services.Provider,
	store models.Store,
	reconciler *Reconciler,
	fetcher ImageFetcher,
	generator services.ImageGenerator,
	opts UploaderOptions,
	logger *log.Logger,
) *CoverUploader {
	if opts.Attempts <= 0 {
		opts.Attempts = defaultUploadAttempts
	}
	if opts.Backoff < 0 {
		opts.Backoff = 0
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &CoverUploader{
		provider:   provider,
		store:      store,
		reconciler: reconciler,
		fetcher:    fetcher,
		generator:  generator,
		opts:       opts,
		logger:     shared.WithLogger(logger, "component", "uploader"),
	}
}

// UploadCover pushes req.ImageBase64 to the provider, waits for the new cover URL and
// reconciles that single playlist. It returns the new cover URL.
//
// Errors:
//   - [shared.ErrInvalidInput] : payload is not base64 or exceeds [MaxCoverBase64]
//   - [shared.UploadRejectedError] : the provider refused the image; nothing is written locally
//   - [shared.ErrNoImageReturned] : the provider accepted the image but never listed it
func (u *CoverUploader) UploadCover(ctx context.Context, req CoverUpload, progress chan<- ProgressUpdate) (string, error) {
	if req.PlaylistSpotifyID == "" {
		return "", fmt.Errorf("%w: playlist id is required", shared.ErrInvalidInput)
	}

	payload, err := NormalizeBase64(req.ImageBase64)
	if err != nil {
		return "", err
	}

	kind := req.Kind
	if kind == "" {
		kind = models.KindUpload
	}
	if _, err := models.ParseImageKind(string(kind)); err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	previous := u.listedCover(ctx, req.Token, req.PlaylistSpotifyID)

	sendProgress(progress, ProgressUpdate{Phase: UploadingCover, Step: 1, Total: 1, Message: "Uploading cover..."})
	if err := u.provider.ReplacePlaylistImage(ctx, req.Token, req.PlaylistSpotifyID, payload); err != nil {
		return "", rejected(req.PlaylistSpotifyID, err)
	}

	url, err := u.awaitCover(ctx, req.Token, req.PlaylistSpotifyID, previous, progress)
	if err != nil {
		return "", err
	}

	logger := u.logger.With("playlist", req.PlaylistSpotifyID, "url", url)
	if err := u.record(ctx, req, url, kind); err != nil {
		logger.Error("cover uploaded but local mirror not updated", "err", err)
		return url, nil
	}

	logger.Info("cover uploaded", "kind", kind)
	return url, nil
}

// record mirrors an accepted upload. A playlist row owned by another user is left alone;
// only a sync by its owner moves it.
func (u *CoverUploader) record(ctx context.Context, req CoverUpload, url string, kind models.ImageKind) error {
	existing, err := u.store.FindPlaylistBySpotifyID(ctx, req.PlaylistSpotifyID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return err
	}
	if err == nil && existing.UserID != req.Owner.UserID {
		return fmt.Errorf("%w: playlist %s is mirrored for another user", shared.ErrInvalidInput, req.PlaylistSpotifyID)
	}

	playlist, _, err := u.reconciler.EnsurePlaylist(ctx, req.Owner, req.PlaylistSpotifyID, req.PlaylistName)
	if err != nil {
		return err
	}

	_, err = u.reconciler.ApplyCover(ctx, CoverWrite{
		UserID:         req.Owner.UserID,
		PlaylistID:     playlist.ID,
		URL:            url,
		Kind:           kind,
		CurrentCoverID: playlist.CurrentCoverID,
	})
	return err
}

// listedCover returns the content identity of the cover the provider lists before an
// upload, or "" when there is none or the lookup fails.
func (u *CoverUploader) listedCover(ctx context.Context, token, playlistID string) string {
	images, err := u.provider.PlaylistImages(ctx, token, playlistID)
	if err != nil || len(images) == 0 || images[0].URL == "" {
		return ""
	}
	return shared.ImageIdentity(images[0].URL)
}

// awaitCover polls the playlist's image list until it shows a cover other than previous
// or attempts run out. The provider keeps listing the old cover while the upload propagates.
func (u *CoverUploader) awaitCover(ctx context.Context, token, playlistID, previous string, progress chan<- ProgressUpdate) (string, error) {
	var lastErr error
	stale := false
	for attempt := 1; attempt <= u.opts.Attempts; attempt++ {
		sendProgress(progress, uploadAttemptUpdate(attempt, u.opts.Attempts, playlistID))

		images, err := u.provider.PlaylistImages(ctx, token, playlistID)
		lastErr = err
		if err == nil && len(images) > 0 && images[0].URL != "" {
			if previous == "" || shared.ImageIdentity(images[0].URL) != previous {
				return images[0].URL, nil
			}
			stale = true
		}

		if attempt == u.opts.Attempts {
			break
		}
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %w", shared.ErrNoImageReturned, ctx.Err())
		case <-time.After(u.opts.Backoff):
		}
	}

	if lastErr != nil {
		return "", fmt.Errorf("%w: %w", shared.ErrNoImageReturned, lastErr)
	}
	if stale {
		return "", fmt.Errorf("%w: playlist %s still lists its previous cover", shared.ErrNoImageReturned, playlistID)
	}
	return "", fmt.Errorf("%w: playlist %s", shared.ErrNoImageReturned, playlistID)
}

// SelectCover re-uploads a cover recorded earlier for the same owner.
//
// Only URLs whose content identity is already in the store and belongs to req.Owner are
// downloaded; the bytes are fetched from the stored URL.
func (u *CoverUploader) SelectCover(ctx context.Context, req CoverSelect, progress chan<- ProgressUpdate) (string, error) {
	if u.fetcher == nil {
		return "", fmt.Errorf("%w: image downloads are not configured", shared.ErrServiceUnavailable)
	}

	known, err := u.store.FindImageByContentID(ctx, shared.ImageIdentity(req.ImageURL))
	if errors.Is(err, shared.ErrNotFound) || (err == nil && known.UserID != req.Owner.UserID) {
		return "", fmt.Errorf("%w: %s is not a known cover", shared.ErrInvalidInput, req.ImageURL)
	}
	if err != nil {
		return "", err
	}

	data, err := u.fetcher.Fetch(ctx, known.URL)
	if err != nil {
		return "", fmt.Errorf("failed to download cover: %w", err)
	}

	payload, err := PrepareCover(data)
	if err != nil {
		return "", err
	}

	return u.UploadCover(ctx, CoverUpload{
		PlaylistSpotifyID: req.PlaylistSpotifyID,
		ImageBase64:       payload,
		Kind:              models.KindUpload,
		Owner:             req.Owner,
		Token:             req.Token,
	}, progress)
}

// GenerateCover asks the image generator for a cover described by req.Prompt and uploads it.
func (u *CoverUploader) GenerateCover(ctx context.Context, req CoverGenerate, progress chan<- ProgressUpdate) (string, error) {
	if u.generator == nil {
		return "", fmt.Errorf("%w: image generation is not configured", shared.ErrServiceUnavailable)
	}
	if req.PlaylistName == "" {
		return "", fmt.Errorf("%w: playlist name is required", shared.ErrInvalidInput)
	}

	sendProgress(progress, ProgressUpdate{Phase: GeneratingCover, Step: 1, Total: 1, Message: "Generating cover..."})
	data, err := u.generator.Generate(ctx, services.CoverPrompt(req.PlaylistName, req.Prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate cover: %w", err)
	}

	payload, err := PrepareCover(data)
	if err != nil {
		return "", err
	}

	return u.UploadCover(ctx, CoverUpload{
		PlaylistSpotifyID: req.PlaylistSpotifyID,
		PlaylistName:      req.PlaylistName,
		ImageBase64:       payload,
		Kind:              models.KindAI,
		Owner:             req.Owner,
		Token:             req.Token,
	}, progress)
}

func rejected(playlistID string, err error) error {
	re := &shared.UploadRejectedError{PlaylistID: playlistID, Detail: err.Error(), Err: err}
	var pe *shared.ProviderError
	if errors.As(err, &pe) {
		re.Status = pe.Status
		re.Detail = pe.Body
	}
	if re.Status == 0 && errors.Is(err, shared.ErrNotAuthenticated) {
		re.Status = http.StatusUnauthorized
	}
	return re
}
