package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/coverx/internal/models"
	"github.com/desertthunder/coverx/internal/repositories"
	"github.com/desertthunder/coverx/internal/services"
	"github.com/desertthunder/coverx/internal/shared"
	"github.com/desertthunder/coverx/internal/tasks"
)

const maxHistoryLimit = 50

type playlistResponse struct {
	ID        string `json:"id"`
	SpotifyID string `json:"spotify_id"`
	Name      string `json:"name"`
	CoverURL  string `json:"cover_url,omitempty"`
}

type historyEntry struct {
	URL       string           `json:"url"`
	Kind      models.ImageKind `json:"kind"`
	ChangedAt time.Time        `json:"changed_at"`
}

type uploadRequest struct {
	PlaylistID   string `json:"playlist_id"`
	PlaylistName string `json:"playlist_name"`
	ImageBase64  string `json:"image_base64"`
	Kind         string `json:"kind"`
}

type generateRequest struct {
	PlaylistID string `json:"playlist_id"`
	Name       string `json:"name"`
	Prompt     string `json:"prompt"`
}

type selectRequest struct {
	PlaylistID string `json:"playlist_id"`
	ImageURL   string `json:"image_url"`
}

type coverResponse struct {
	ImageURL string `json:"image_url"`
}

// API serves the authenticated JSON endpoints under /api/.
//
// Every request passes through [RequireIdentity]; handlers resolve the local owner from that identity.
type API struct {
	sync     *tasks.SyncController
	uploader *tasks.CoverUploader
	store    models.Store
	logger   *log.Logger
	handler  http.Handler
}

// NewAPI wires the API routes. provider authenticates bearer tokens.
func NewAPI(sync *tasks.SyncController, uploader *tasks.CoverUploader, store models.Store, provider services.Provider, logger *log.Logger) *API {
	a := &API{
		sync:     sync,
		uploader: uploader,
		store:    store,
		logger:   shared.WithLogger(orDiscard(logger), "component", "api"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/sync", a.startSync)
	mux.HandleFunc("GET /api/sync/{id}", a.syncStatus)
	mux.HandleFunc("GET /api/sync/{id}/events", a.syncEvents)
	mux.HandleFunc("GET /api/playlists", a.playlists)
	mux.HandleFunc("GET /api/playlists/{id}/history", a.history)
	mux.HandleFunc("POST /api/covers", a.uploadCover)
	mux.HandleFunc("POST /api/covers/generate", a.generateCover)
	mux.HandleFunc("POST /api/covers/select", a.selectCover)

	a.handler = chain(mux, RequireIdentity(provider, a.logger))
	return a
}

// Routes implements [Handler].
func (a *API) Routes() []string {
	return []string{"/api/"}
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

func (a *API) owner(r *http.Request) (tasks.Owner, tasks.Identity, error) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		return tasks.Owner{}, id, shared.ErrNotAuthenticated
	}
	user, err := a.sync.ResolveUser(r.Context(), id)
	if err != nil {
		return tasks.Owner{}, id, err
	}
	return tasks.Owner{SpotifyID: id.SpotifyID, UserID: user.ID}, id, nil
}

func (a *API) startSync(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, a.logger, shared.ErrNotAuthenticated)
		return
	}

	handle, err := a.sync.StartSync(r.Context(), id)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusAccepted, handle)
}

func (a *API) syncStatus(w http.ResponseWriter, r *http.Request) {
	owner, _, err := a.owner(r)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}

	status, ok := a.sync.OwnedJobStatus(r.PathValue("id"), owner.UserID)
	if !ok {
		writeError(w, a.logger, fmt.Errorf("%w: sync %s", shared.ErrNotFound, r.PathValue("id")))
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (a *API) playlists(w http.ResponseWriter, r *http.Request) {
	owner, _, err := a.owner(r)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}

	covers, err := a.store.ListPlaylists(r.Context(), owner.UserID)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}

	out := make([]playlistResponse, 0, len(covers))
	for _, c := range covers {
		out = append(out, playlistResponse{ID: c.ID, SpotifyID: c.SpotifyID, Name: c.Name, CoverURL: c.CoverURL})
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) history(w http.ResponseWriter, r *http.Request) {
	owner, _, err := a.owner(r)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}

	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, a.logger, err)
		return
	}

	pl, err := a.store.FindPlaylistBySpotifyID(r.Context(), r.PathValue("id"))
	if errors.Is(err, shared.ErrNotFound) || (err == nil && pl.UserID != owner.UserID) {
		writeError(w, a.logger, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, r.PathValue("id")))
		return
	}
	if err != nil {
		writeError(w, a.logger, err)
		return
	}

	images, err := a.store.ListImages(r.Context(), pl.ID, limit)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}

	out := make([]historyEntry, 0, len(images))
	for _, img := range images {
		out = append(out, historyEntry{URL: img.URL, Kind: img.Kind, ChangedAt: img.ChangedAt})
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) uploadCover(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, a.logger, err)
		return
	}

	owner, id, err := a.owner(r)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}

	url, err := a.uploader.UploadCover(r.Context(), tasks.CoverUpload{
		PlaylistSpotifyID: req.PlaylistID,
		PlaylistName:      req.PlaylistName,
		ImageBase64:       req.ImageBase64,
		Kind:              models.ImageKind(req.Kind),
		Owner:             owner,
		Token:             id.AccessToken,
	}, nil)
	a.respondCover(w, url, err)
}

func (a *API) generateCover(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, a.logger, err)
		return
	}

	owner, id, err := a.owner(r)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}

	url, err := a.uploader.GenerateCover(r.Context(), tasks.CoverGenerate{
		PlaylistSpotifyID: req.PlaylistID,
		PlaylistName:      req.Name,
		Prompt:            req.Prompt,
		Owner:             owner,
		Token:             id.AccessToken,
	}, nil)
	a.respondCover(w, url, err)
}

func (a *API) selectCover(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, a.logger, err)
		return
	}

	owner, id, err := a.owner(r)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}

	url, err := a.uploader.SelectCover(r.Context(), tasks.CoverSelect{
		PlaylistSpotifyID: req.PlaylistID,
		ImageURL:          req.ImageURL,
		Owner:             owner,
		Token:             id.AccessToken,
	}, nil)
	a.respondCover(w, url, err)
}

func (a *API) respondCover(w http.ResponseWriter, url string, err error) {
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, coverResponse{ImageURL: url})
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return repositories.DefaultHistoryLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: limit must be a positive integer", shared.ErrInvalidInput)
	}
	return min(n, maxHistoryLimit), nil
}

// Health reports that the process is serving.
func Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
