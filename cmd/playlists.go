package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/coverx/internal/formatter"
	"github.com/desertthunder/coverx/internal/models"
	"github.com/desertthunder/coverx/internal/services"
	"github.com/urfave/cli/v3"
)

type playlistRow struct {
	ID        string `json:"id,omitempty"`
	SpotifyID string `json:"spotify_id"`
	Name      string `json:"name"`
	CoverURL  string `json:"cover_url"`
}

// Playlists lists the caller's mirrored playlists, or the live provider listing with --remote.
func (r *Runner) Playlists(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	p, err := r.openPipeline(false)
	if err != nil {
		return err
	}
	defer p.Close()

	owner, id, err := r.owner(ctx, cmd, p)
	if err != nil {
		return err
	}

	var covers []models.PlaylistCover
	if cmd.Bool("remote") {
		r.logger.Info("listing spotify playlists", "user", owner.SpotifyID)
		remote, err := services.AllPlaylists(ctx, r.provider, id.AccessToken)
		if err != nil {
			return fmt.Errorf("failed to list playlists: %w", err)
		}
		covers = remoteCovers(remote)
	} else {
		if covers, err = p.store.ListPlaylists(ctx, owner.UserID); err != nil {
			return err
		}
	}

	if cmd.Bool("json") {
		rows := make([]playlistRow, 0, len(covers))
		for _, c := range covers {
			rows = append(rows, playlistRow{ID: c.ID, SpotifyID: c.SpotifyID, Name: c.Name, CoverURL: c.CoverURL})
		}
		return r.writeJSON(rows, cmd.Bool("pretty"))
	}

	if format == formatter.FormatText && cmd.String("output") == "" {
		r.writePlainHeader(fmt.Sprintf("Playlists (%d)", len(covers)))
		for i, c := range covers {
			r.writePlain("%d. %s\n", i+1, c.Name)
			r.writePlain("   ID: %s\n", c.SpotifyID)
			r.writePlain("   %s\n", r.palette.CoverStatus(c.CoverURL))
		}
		return nil
	}

	data, err := formatter.Playlists(format, covers)
	if err != nil {
		return err
	}
	return r.export(data, cmd.String("output"), "playlists_"+owner.SpotifyID, format)
}

// remoteCovers adapts a provider listing to the shape the formatter renders.
func remoteCovers(playlists []services.Playlist) []models.PlaylistCover {
	covers := make([]models.PlaylistCover, 0, len(playlists))
	for _, pl := range playlists {
		covers = append(covers, models.PlaylistCover{
			Playlist: models.Playlist{SpotifyID: pl.ID, Name: pl.Name},
			CoverURL: pl.CoverURL(),
		})
	}
	return covers
}

// export writes data to stdout, or to a file when path is set.
func (r *Runner) export(data []byte, path, base string, format formatter.Format) error {
	if path == "" {
		return r.writePlain("%s", data)
	}

	written, err := formatter.WriteExport(r.fs, data, path, base, format)
	if err != nil {
		return err
	}
	r.logger.Info("export written", "file", written)
	return r.writePlain("%s Exported to %s\n", r.palette.OK("✓"), written)
}
