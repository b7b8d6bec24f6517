package tasks

import (
	"fmt"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	FetchProfile Phase = iota
	FetchPlaylists
	ReconcilePlaylist
	UploadingCover
	FetchCover
	GeneratingCover
)

func (p Phase) String() string {
	switch p {
	case FetchProfile:
		return "fetch_profile"
	case FetchPlaylists:
		return "fetch_playlists"
	case ReconcilePlaylist:
		return "reconcile_playlist"
	case UploadingCover:
		return "upload_cover"
	case FetchCover:
		return "fetch_cover"
	case GeneratingCover:
		return "generate_cover"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
		// Channel full, skip this update
	}
}

func fetchedPlaylistsUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPlaylists,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetched %d playlists from the provider", count),
	}
}

func reconcileUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ReconcilePlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s", step, total, name),
	}
}

func reconcileSkippedUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ReconcilePlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] - %s (not owned)", step, total, name),
	}
}

func reconcileFailedUpdate(step, total int, name string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ReconcilePlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, name, err),
	}
}

func uploadAttemptUpdate(attempt, attempts int, playlistID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchCover,
		Step:    attempt,
		Total:   attempts,
		Message: fmt.Sprintf("Waiting for new cover of %s (%d/%d)...", playlistID, attempt, attempts),
	}
}
