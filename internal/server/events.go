package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/desertthunder/coverx/internal/shared"
	"github.com/desertthunder/coverx/internal/tasks"
)

const eventWriteTimeout = 5 * time.Second

const (
	eventProgress = "progress"
	eventDone     = "done"
)

// syncEvent is one websocket message on /api/sync/{id}/events.
type syncEvent struct {
	Type    string           `json:"type"`
	Phase   string           `json:"phase,omitempty"`
	Step    int              `json:"step,omitempty"`
	Total   int              `json:"total,omitempty"`
	Message string           `json:"message,omitempty"`
	Status  *tasks.JobStatus `json:"status,omitempty"`
}

// syncEvents upgrades to a websocket and streams the job's progress, then its final status.
func (a *API) syncEvents(w http.ResponseWriter, r *http.Request) {
	owner, _, err := a.owner(r)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}

	jobID := r.PathValue("id")
	if _, ok := a.sync.OwnedJobStatus(jobID, owner.UserID); !ok {
		writeError(w, a.logger, fmt.Errorf("%w: sync %s", shared.ErrNotFound, jobID))
		return
	}

	updates, cancel := a.sync.Subscribe(jobID)
	defer cancel()

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		a.logger.Warn("websocket upgrade failed", "job", jobID, "err", err)
		return
	}
	defer conn.CloseNow()

	// Client messages are ignored; reading only detects a closed peer.
	ctx := conn.CloseRead(r.Context())

	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				status, _ := a.sync.JobStatus(jobID)
				if err := writeEvent(ctx, conn, syncEvent{Type: eventDone, Status: &status}); err != nil {
					return
				}
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			event := syncEvent{Type: eventProgress, Phase: u.Phase.String(), Step: u.Step, Total: u.Total, Message: u.Message}
			if err := writeEvent(ctx, conn, event); err != nil {
				a.logger.Debug("event stream closed", "job", jobID, "err", err)
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, event syncEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, eventWriteTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}
