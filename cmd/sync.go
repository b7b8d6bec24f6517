package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/coverx/internal/tasks"
	"github.com/urfave/cli/v3"
)

type syncFailure struct {
	PlaylistID string `json:"playlist_id"`
	Name       string `json:"name"`
	Error      string `json:"error"`
}

type syncSummary struct {
	User      string        `json:"user"`
	Processed int           `json:"processed"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Writes    int           `json:"writes"`
	Failures  []syncFailure `json:"failures,omitempty"`
}

// Sync reconciles the caller's playlists and covers in the foreground.
//
// Per-playlist failures are reported in the summary and do not fail the command.
func (r *Runner) Sync(ctx context.Context, cmd *cli.Command) error {
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
		progress = make(chan tasks.ProgressUpdate, 64)
		go r.printProgress(progress, done)
	}

	result, err := p.syncer.RunSync(ctx, owner, id.AccessToken, progress)
	if progress != nil {
		close(progress)
	}
	<-done
	if err != nil {
		return err
	}

	summary := syncSummary{
		User:      id.SpotifyID,
		Processed: result.Processed,
		Skipped:   result.Skipped,
		Failed:    result.Failed,
		Writes:    result.Writes,
	}
	for _, e := range result.Errors {
		summary.Failures = append(summary.Failures, syncFailure{PlaylistID: e.PlaylistID, Name: e.Name, Error: e.Err.Error()})
	}

	if useJSON {
		return r.writeJSON(summary, cmd.Bool("pretty"))
	}

	r.writePlain("\n")
	r.writePlainHeader("Sync Complete")
	r.writePlain("User:      %s\n", summary.User)
	r.writePlain("Processed: %s\n", r.palette.OK(fmt.Sprint(summary.Processed)))
	r.writePlain("Skipped:   %d\n", summary.Skipped)
	if summary.Failed > 0 {
		r.writePlain("Failed:    %s\n", r.palette.Err(fmt.Sprint(summary.Failed)))
		for _, f := range summary.Failures {
			r.writePlain("  %s %s (%s): %s\n", r.palette.Err("✗"), f.Name, f.PlaylistID, f.Error)
		}
	}
	return r.writePlain("Writes:    %d\n", summary.Writes)
}
