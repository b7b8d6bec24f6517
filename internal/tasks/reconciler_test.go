package tasks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/coverx/internal/models"
	"github.com/desertthunder/coverx/internal/services"
	"github.com/desertthunder/coverx/internal/shared"
	tu "github.com/desertthunder/coverx/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var alice = Owner{SpotifyID: "alice", UserID: "u-alice"}

// tickingClock returns a clock that advances one minute on every call.
func tickingClock() shared.Clock {
	var mu sync.Mutex
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Minute)
		return now
	}
}

type fixture struct {
	store      *tu.CountingStore
	provider   *tu.FakeProvider
	reconciler *Reconciler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := tu.NewCountingStore(tu.NewStore(t))
	seedOwner(t, store, alice)
	store.Reset()

	return &fixture{
		store:      store,
		provider:   tu.NewFakeProvider(),
		reconciler: NewReconciler(store, nil, tickingClock()),
	}
}

func seedOwner(t *testing.T, store models.Store, owner Owner) {
	t.Helper()
	_, err := store.UpsertUser(context.Background(), &models.User{ID: owner.UserID, SpotifyID: owner.SpotifyID, DisplayName: owner.SpotifyID})
	require.NoError(t, err)
}

func playlist(id, name, owner string, covers ...string) services.Playlist {
	pl := services.Playlist{ID: id, Name: name, OwnerID: owner}
	for _, url := range covers {
		pl.Images = append(pl.Images, services.Image{URL: url, Width: 640, Height: 640})
	}
	return pl
}

func (f *fixture) cover(t *testing.T, spotifyID string) *models.Image {
	t.Helper()
	ctx := context.Background()
	pl, err := f.store.FindPlaylistBySpotifyID(ctx, spotifyID)
	require.NoError(t, err)
	require.NotNil(t, pl.CurrentCoverID, "playlist %s has no cover", spotifyID)
	img, err := f.store.GetImage(ctx, *pl.CurrentCoverID)
	require.NoError(t, err)
	return img
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()

	t.Run("creates playlist and cover", func(t *testing.T) {
		f := newFixture(t)
		result := f.reconciler.Reconcile(ctx, alice, []services.Playlist{
			playlist("p1", "Road Trip", "alice", "https://i.scdn.co/image/abc123"),
		}, nil, nil)

		assert.Equal(t, 1, result.Processed)
		assert.Equal(t, 0, result.Failed)
		assert.Equal(t, 3, result.Writes)
		assert.EqualValues(t, 3, f.store.Writes())

		img := f.cover(t, "p1")
		assert.Equal(t, "https://i.scdn.co/image/abc123", img.URL)
		assert.Equal(t, "img:abc123", img.ContentID)
		assert.Equal(t, models.KindMirror, img.Kind)
		assert.Equal(t, alice.UserID, img.UserID)
	})

	t.Run("second run writes nothing", func(t *testing.T) {
		f := newFixture(t)
		batch := []services.Playlist{
			playlist("p1", "Road Trip", "alice", "https://i.scdn.co/image/abc123"),
			playlist("p2", "Focus", "alice", "https://mosaic.scdn.co/640/aaa/bbb"),
			playlist("p3", "Empty", "alice"),
		}

		first := f.reconciler.Reconcile(ctx, alice, batch, nil, nil)
		require.Equal(t, 3, first.Processed)

		f.store.Reset()
		second := f.reconciler.Reconcile(ctx, alice, batch, nil, nil)
		assert.Equal(t, 3, second.Processed)
		assert.Equal(t, 0, second.Writes)
		assert.EqualValues(t, 0, f.store.Writes())
	})

	t.Run("skips playlists owned by someone else", func(t *testing.T) {
		f := newFixture(t)
		result := f.reconciler.Reconcile(ctx, alice, []services.Playlist{
			playlist("p1", "Mine", "alice", "https://i.scdn.co/image/one"),
			playlist("p2", "Followed", "bob", "https://i.scdn.co/image/two"),
		}, nil, nil)

		assert.Equal(t, 1, result.Processed)
		assert.Equal(t, 1, result.Skipped)

		_, err := f.store.FindPlaylistBySpotifyID(ctx, "p2")
		assert.ErrorIs(t, err, shared.ErrNotFound)
		_, err = f.store.FindImageByContentID(ctx, "img:two")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("same content on a new host moves the url", func(t *testing.T) {
		f := newFixture(t)
		f.reconciler.Reconcile(ctx, alice, []services.Playlist{
			playlist("p1", "Road Trip", "alice", "https://cdnA.example.com/image/xyz"),
		}, nil, nil)
		before := f.cover(t, "p1")

		f.store.Reset()
		result := f.reconciler.Reconcile(ctx, alice, []services.Playlist{
			playlist("p1", "Road Trip", "alice", "https://cdnB.example.com/image/xyz"),
		}, nil, nil)

		assert.Equal(t, 1, result.Writes, "only the url update")
		after := f.cover(t, "p1")
		assert.Equal(t, before.ID, after.ID)
		assert.Equal(t, "https://cdnB.example.com/image/xyz", after.URL)
		assert.True(t, after.ChangedAt.After(before.ChangedAt))
	})

	t.Run("missing cover keeps the current pointer", func(t *testing.T) {
		f := newFixture(t)
		f.reconciler.Reconcile(ctx, alice, []services.Playlist{
			playlist("p1", "Road Trip", "alice", "https://i.scdn.co/image/keep"),
		}, nil, nil)

		f.store.Reset()
		noCover := func(context.Context, string) (string, error) { return "", nil }
		result := f.reconciler.Reconcile(ctx, alice, []services.Playlist{
			playlist("p1", "Road Trip", "alice"),
		}, noCover, nil)

		assert.Equal(t, 1, result.Processed)
		assert.EqualValues(t, 0, f.store.Writes())
		assert.Equal(t, "https://i.scdn.co/image/keep", f.cover(t, "p1").URL)
	})

	t.Run("falls back to the cover fetcher", func(t *testing.T) {
		f := newFixture(t)
		var asked []string
		fetch := func(_ context.Context, id string) (string, error) {
			asked = append(asked, id)
			return "https://i.scdn.co/image/fetched", nil
		}

		result := f.reconciler.Reconcile(ctx, alice, []services.Playlist{
			playlist("p1", "Listed", "alice", "https://i.scdn.co/image/listed"),
			playlist("p2", "Unlisted", "alice"),
		}, fetch, nil)

		assert.Equal(t, 2, result.Processed)
		assert.Equal(t, []string{"p2"}, asked)
		assert.Equal(t, "https://i.scdn.co/image/fetched", f.cover(t, "p2").URL)
	})

	t.Run("fetch error fails only that playlist", func(t *testing.T) {
		f := newFixture(t)
		boom := errors.New("boom")
		fetch := func(context.Context, string) (string, error) { return "", boom }

		result := f.reconciler.Reconcile(ctx, alice, []services.Playlist{
			playlist("p1", "Unlisted", "alice"),
			playlist("p2", "Listed", "alice", "https://i.scdn.co/image/listed"),
		}, fetch, nil)

		assert.Equal(t, 1, result.Processed)
		assert.Equal(t, 1, result.Failed)
		require.Len(t, result.Errors, 1)
		assert.ErrorIs(t, result.Errors[0], boom)
	})

	t.Run("store failure is isolated", func(t *testing.T) {
		f := newFixture(t)
		injected := errors.New("disk full")
		f.store.FailOn = func(method, arg string) error {
			if method == "UpsertPlaylist" && arg == "p2" {
				return injected
			}
			return nil
		}

		result := f.reconciler.Reconcile(ctx, alice, []services.Playlist{
			playlist("p1", "One", "alice", "https://i.scdn.co/image/one"),
			playlist("p2", "Two", "alice", "https://i.scdn.co/image/two"),
			playlist("p3", "Three", "alice", "https://i.scdn.co/image/three"),
		}, nil, nil)

		assert.Equal(t, 2, result.Processed)
		assert.Equal(t, 1, result.Failed)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, "p2", result.Errors[0].PlaylistID)
		assert.ErrorIs(t, result.Errors[0], injected)

		assert.Equal(t, "https://i.scdn.co/image/one", f.cover(t, "p1").URL)
		assert.Equal(t, "https://i.scdn.co/image/three", f.cover(t, "p3").URL)
	})

	t.Run("cancelled context fails remaining playlists", func(t *testing.T) {
		f := newFixture(t)
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		result := f.reconciler.Reconcile(cancelled, alice, []services.Playlist{
			playlist("p1", "One", "alice", "https://i.scdn.co/image/one"),
			playlist("p2", "Two", "bob"),
		}, nil, nil)

		assert.Equal(t, 0, result.Processed)
		assert.Equal(t, 1, result.Skipped)
		assert.Equal(t, 1, result.Failed)
		assert.ErrorIs(t, result.Errors[0], context.Canceled)
		assert.EqualValues(t, 0, f.store.Writes())
	})

	t.Run("reports progress", func(t *testing.T) {
		f := newFixture(t)
		progress := make(chan ProgressUpdate, 10)

		f.reconciler.Reconcile(ctx, alice, []services.Playlist{
			playlist("p1", "One", "alice"),
			playlist("p2", "Two", "bob"),
		}, nil, progress)
		close(progress)

		var updates []ProgressUpdate
		for u := range progress {
			updates = append(updates, u)
		}
		require.Len(t, updates, 2)
		assert.Equal(t, ReconcilePlaylist, updates[0].Phase)
		assert.Equal(t, 1, updates[0].Step)
		assert.Equal(t, 2, updates[1].Total)
	})
}

func TestEnsurePlaylist(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	created, writes, err := f.reconciler.EnsurePlaylist(ctx, alice, "p1", "Old Name")
	require.NoError(t, err)
	assert.Equal(t, 1, writes)
	assert.Nil(t, created.CurrentCoverID)

	_, writes, err = f.reconciler.EnsurePlaylist(ctx, alice, "p1", "Old Name")
	require.NoError(t, err)
	assert.Equal(t, 0, writes)

	kept, writes, err := f.reconciler.EnsurePlaylist(ctx, alice, "p1", "")
	require.NoError(t, err)
	assert.Equal(t, 0, writes)
	assert.Equal(t, "Old Name", kept.Name)

	renamed, writes, err := f.reconciler.EnsurePlaylist(ctx, alice, "p1", "New Name")
	require.NoError(t, err)
	assert.Equal(t, 1, writes)
	assert.Equal(t, created.ID, renamed.ID)

	stored, err := f.store.FindPlaylistBySpotifyID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "New Name", stored.Name)
}

func TestApplyCover(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pl, _, err := f.reconciler.EnsurePlaylist(ctx, alice, "p1", "Road Trip")
	require.NoError(t, err)

	res, err := f.reconciler.ApplyCover(ctx, CoverWrite{
		UserID:     alice.UserID,
		PlaylistID: pl.ID,
		URL:        "https://i.scdn.co/image/up1",
		Kind:       models.KindUpload,
	})
	require.NoError(t, err)
	assert.True(t, res.Inserted)
	assert.Equal(t, 2, res.Writes)
	assert.Equal(t, models.KindUpload, res.Image.Kind)

	again, err := f.reconciler.ApplyCover(ctx, CoverWrite{
		UserID:         alice.UserID,
		PlaylistID:     pl.ID,
		URL:            "https://i.scdn.co/image/up1",
		Kind:           models.KindAI,
		CurrentCoverID: &res.Image.ID,
	})
	require.NoError(t, err)
	assert.False(t, again.Inserted)
	assert.Equal(t, 0, again.Writes)
	assert.Equal(t, models.KindUpload, again.Image.Kind, "kind is fixed at insert")
}
