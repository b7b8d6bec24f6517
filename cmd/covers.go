package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/desertthunder/coverx/internal/formatter"
	"github.com/desertthunder/coverx/internal/models"
	"github.com/desertthunder/coverx/internal/shared"
	"github.com/desertthunder/coverx/internal/tasks"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v3"
)

const maxHistoryLimit = 50

type coverRow struct {
	URL       string           `json:"url"`
	Kind      models.ImageKind `json:"kind"`
	ChangedAt time.Time        `json:"changed_at"`
}

// coverCall wraps one uploader operation with identity resolution and progress output.
func (r *Runner) coverCall(ctx context.Context, cmd *cli.Command, op func(*pipeline, tasks.Owner, string, chan<- tasks.ProgressUpdate) (string, error)) error {
	p, err := r.openPipeline(false)
	if err != nil {
		return err
	}
	defer p.Close()

	owner, id, err := r.owner(ctx, cmd, p)
	if err != nil {
		return err
	}

	useJSON := cmd.Bool("json")
	var progress chan tasks.ProgressUpdate
	done := make(chan struct{})
	if useJSON {
		close(done)
	} else {
		progress = make(chan tasks.ProgressUpdate, 16)
		go r.printProgress(progress, done)
	}

	url, err := op(p, owner, id.AccessToken, progress)
	if progress != nil {
		close(progress)
	}
	<-done
	if err != nil {
		var rejected *shared.UploadRejectedError
		if errors.As(err, &rejected) {
			r.writePlain("%s Spotify rejected the image (%d): %s\n", r.palette.Err("✗"), rejected.Status, rejected.Detail)
		}
		return err
	}

	if useJSON {
		return r.writeJSON(map[string]string{"image_url": url}, cmd.Bool("pretty"))
	}
	return r.writePlain("%s Cover updated: %s\n", r.palette.OK("✓"), url)
}

// CoverUpload uploads a local JPEG or PNG file as a playlist cover.
func (r *Runner) CoverUpload(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("file")
	data, err := afero.ReadFile(r.fs, path)
	if err != nil {
		return fmt.Errorf("%w: failed to read %s: %v", shared.ErrInvalidArgument, path, err)
	}

	payload, err := tasks.PrepareCover(data)
	if err != nil {
		return err
	}
	r.logger.Debug("prepared cover", "file", path, "bytes", len(payload))

	return r.coverCall(ctx, cmd, func(p *pipeline, owner tasks.Owner, token string, progress chan<- tasks.ProgressUpdate) (string, error) {
		return p.uploader.UploadCover(ctx, tasks.CoverUpload{
			PlaylistSpotifyID: cmd.String("playlist"),
			PlaylistName:      cmd.String("name"),
			ImageBase64:       payload,
			Kind:              models.KindUpload,
			Owner:             owner,
			Token:             token,
		}, progress)
	})
}

// CoverSelect re-applies a cover the caller has used before.
func (r *Runner) CoverSelect(ctx context.Context, cmd *cli.Command) error {
	return r.coverCall(ctx, cmd, func(p *pipeline, owner tasks.Owner, token string, progress chan<- tasks.ProgressUpdate) (string, error) {
		spotifyID := cmd.String("playlist")
		url := cmd.String("url")
		if url == "" {
			var err error
			if url, err = r.chooseCover(ctx, p, owner, spotifyID); err != nil {
				return "", err
			}
		}
		return p.uploader.SelectCover(ctx, tasks.CoverSelect{
			PlaylistSpotifyID: spotifyID,
			ImageURL:          url,
			Owner:             owner,
			Token:             token,
		}, progress)
	})
}

// chooseCover prompts for one of the covers recorded for a playlist.
func (r *Runner) chooseCover(ctx context.Context, p *pipeline, owner tasks.Owner, spotifyID string) (string, error) {
	pl, err := ownedPlaylist(ctx, p, owner, spotifyID)
	if err != nil {
		return "", err
	}

	images, err := p.store.ListImages(ctx, pl.ID, maxHistoryLimit)
	if err != nil {
		return "", err
	}
	if len(images) == 0 {
		return "", fmt.Errorf("%w: no covers recorded for %s", shared.ErrInvalidArgument, pl.Name)
	}

	options := make([]huh.Option[string], 0, len(images))
	for _, img := range images {
		label := fmt.Sprintf("[%s] %s  %s", img.Kind, img.ChangedAt.Local().Format(time.DateOnly), img.URL)
		options = append(options, huh.NewOption(label, img.URL))
	}
	return r.picker("Choose a cover for "+pl.Name, options)
}

// pickWithHuh is the interactive [Picker] used outside tests.
func pickWithHuh(title string, options []huh.Option[string]) (string, error) {
	var choice string
	err := huh.NewSelect[string]().
		Title(title).
		Options(options...).
		Value(&choice).
		Run()
	if err != nil {
		return "", err
	}
	return choice, nil
}

// ownedPlaylist finds a mirrored playlist and checks that owner holds it.
func ownedPlaylist(ctx context.Context, p *pipeline, owner tasks.Owner, spotifyID string) (*models.Playlist, error) {
	pl, err := p.store.FindPlaylistBySpotifyID(ctx, spotifyID)
	if errors.Is(err, shared.ErrNotFound) || (err == nil && pl.UserID != owner.UserID) {
		return nil, fmt.Errorf("%w: %s (run 'coverx sync' first)", shared.ErrPlaylistNotFound, spotifyID)
	}
	if err != nil {
		return nil, err
	}
	return pl, nil
}

// CoverGenerate asks the image model for a new cover and uploads it.
func (r *Runner) CoverGenerate(ctx context.Context, cmd *cli.Command) error {
	if r.generator == nil {
		return fmt.Errorf("%w: set credentials.openai.api_key or OPENAI_API_KEY", shared.ErrMissingCredentials)
	}

	return r.coverCall(ctx, cmd, func(p *pipeline, owner tasks.Owner, token string, progress chan<- tasks.ProgressUpdate) (string, error) {
		return p.uploader.GenerateCover(ctx, tasks.CoverGenerate{
			PlaylistSpotifyID: cmd.String("playlist"),
			PlaylistName:      cmd.String("name"),
			Prompt:            cmd.String("prompt"),
			Owner:             owner,
			Token:             token,
		}, progress)
	})
}

// CoverHistory lists the most recent covers of one of the caller's playlists.
func (r *Runner) CoverHistory(ctx context.Context, cmd *cli.Command) error {
	limit := cmd.Int("limit")
	if limit <= 0 {
		return fmt.Errorf("%w: --limit must be positive", shared.ErrInvalidArgument)
	}
	limit = min(limit, maxHistoryLimit)

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	p, err := r.openPipeline(false)
	if err != nil {
		return err
	}
	defer p.Close()

	owner, _, err := r.owner(ctx, cmd, p)
	if err != nil {
		return err
	}

	spotifyID := cmd.String("playlist")
	pl, err := ownedPlaylist(ctx, p, owner, spotifyID)
	if err != nil {
		return err
	}

	images, err := p.store.ListImages(ctx, pl.ID, limit)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		rows := make([]coverRow, 0, len(images))
		for _, img := range images {
			rows = append(rows, coverRow{URL: img.URL, Kind: img.Kind, ChangedAt: img.ChangedAt})
		}
		return r.writeJSON(rows, cmd.Bool("pretty"))
	}

	if format == formatter.FormatText && cmd.String("output") == "" {
		r.writePlainHeader(pl.Name)
		if len(images) == 0 {
			return r.writePlain("%s\n", r.palette.Warn("no covers recorded"))
		}
		for i, img := range images {
			marker := "  "
			if pl.HasCover(img.ID) {
				marker = r.palette.OK("✓") + " "
			}
			r.writePlain("%s%d. [%s] %s\n", marker, i+1, img.Kind, img.URL)
			r.writePlain("     %s\n", r.palette.Help(img.ChangedAt.Local().Format(time.RFC1123)))
		}
		return nil
	}

	data, err := formatter.History(format, pl.Name, images)
	if err != nil {
		return err
	}
	return r.export(data, cmd.String("output"), "covers_"+spotifyID, format)
}
