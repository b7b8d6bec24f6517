package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/coverx/internal/services"
	"github.com/desertthunder/coverx/internal/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) controller(q *Queue) *SyncController {
	return NewSyncController(f.store, f.provider, f.reconciler, q, nil)
}

func TestResolveUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.controller(nil)
	id := Identity{SpotifyID: "carol", DisplayName: "Carol", Email: "carol@example.com"}

	created, err := c.ResolveUser(ctx, id)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.EqualValues(t, 1, f.store.Writes())

	same, err := c.ResolveUser(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, created.ID, same.ID)
	assert.EqualValues(t, 1, f.store.Writes(), "unchanged profile is not rewritten")

	id.Email = "carol@example.org"
	updated, err := c.ResolveUser(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "carol@example.org", updated.Email)
	assert.EqualValues(t, 2, f.store.Writes())

	_, err = c.ResolveUser(ctx, Identity{})
	assert.ErrorIs(t, err, shared.ErrNotAuthenticated)
}

func TestRunSync(t *testing.T) {
	ctx := context.Background()

	t.Run("follows every page", func(t *testing.T) {
		f := newFixture(t)
		f.provider.Pages = [][]services.Playlist{
			{playlist("p1", "One", "alice", "https://i.scdn.co/image/one")},
			{playlist("p2", "Two", "alice"), playlist("p3", "Three", "bob")},
		}
		f.provider.Images["p2"] = []services.Image{{URL: "https://i.scdn.co/image/two"}}

		result, err := f.controller(nil).RunSync(ctx, alice, "tok", nil)
		require.NoError(t, err)
		assert.Equal(t, 2, f.provider.PageCalls)
		assert.Equal(t, 2, result.Processed)
		assert.Equal(t, 1, result.Skipped)
		assert.Equal(t, "https://i.scdn.co/image/two", f.cover(t, "p2").URL)

		covers, err := f.store.ListPlaylists(ctx, alice.UserID)
		require.NoError(t, err)
		assert.Len(t, covers, 2)
	})

	t.Run("listing failure", func(t *testing.T) {
		f := newFixture(t)
		f.provider.PageErr = &shared.ProviderError{Provider: "fake", Op: "GET /me/playlists", Status: 401, Body: "expired"}

		_, err := f.controller(nil).RunSync(ctx, alice, "tok", nil)
		assert.ErrorIs(t, err, shared.ErrTokenExpired)
		assert.EqualValues(t, 0, f.store.Writes())
	})
}

func TestStartSync(t *testing.T) {
	ctx := context.Background()
	id := Identity{SpotifyID: "alice", DisplayName: "alice", AccessToken: "tok"}

	t.Run("accepted then reconciled in the background", func(t *testing.T) {
		f := newFixture(t)
		f.provider.Pages = [][]services.Playlist{
			{playlist("p1", "One", "alice", "https://i.scdn.co/image/one")},
		}
		q := NewQueue(1, 4, time.Second, nil)
		c := f.controller(q)

		handle, err := c.StartSync(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, StatusAccepted, handle.Status)
		assert.Equal(t, alice.UserID, handle.UserID)
		assert.NotEmpty(t, handle.ID)

		require.NoError(t, q.Shutdown(ctx))

		status, ok := c.JobStatus(handle.ID)
		require.True(t, ok)
		assert.Equal(t, JobSucceeded, status.State)
		assert.Equal(t, "https://i.scdn.co/image/one", f.cover(t, "p1").URL)

		_, ok = c.OwnedJobStatus(handle.ID, alice.UserID)
		assert.True(t, ok)
		_, ok = c.OwnedJobStatus(handle.ID, "u-bob")
		assert.False(t, ok, "jobs are only visible to their owner")
	})

	t.Run("job survives the request context", func(t *testing.T) {
		f := newFixture(t)
		f.provider.Pages = [][]services.Playlist{
			{playlist("p1", "One", "alice", "https://i.scdn.co/image/one")},
		}
		q := NewQueue(1, 4, time.Second, nil)

		reqCtx, cancel := context.WithCancel(ctx)
		_, err := f.controller(q).StartSync(reqCtx, id)
		require.NoError(t, err)
		cancel()

		require.NoError(t, q.Shutdown(ctx))
		assert.Equal(t, "https://i.scdn.co/image/one", f.cover(t, "p1").URL)
	})

	t.Run("progress streams until the job finishes", func(t *testing.T) {
		f := newFixture(t)
		f.provider.Pages = [][]services.Playlist{
			{playlist("p1", "One", "alice", "https://i.scdn.co/image/one")},
		}
		q := NewQueue(1, 4, time.Second, nil)
		c := f.controller(q)

		blocker, started, release := blockingJob("blocker")
		require.NoError(t, q.Submit(blocker))
		<-started

		handle, err := c.StartSync(ctx, id)
		require.NoError(t, err)
		updates, cancel := c.Subscribe(handle.ID)
		defer cancel()
		close(release)

		got := drain(updates)
		require.NotEmpty(t, got)
		assert.Equal(t, FetchPlaylists, got[0].Phase)

		status, _ := c.JobStatus(handle.ID)
		assert.Equal(t, JobSucceeded, status.State)
		require.NoError(t, q.Shutdown(ctx))
	})

	t.Run("failed listing marks the job failed", func(t *testing.T) {
		f := newFixture(t)
		f.provider.PageErr = errors.New("provider down")
		q := NewQueue(1, 4, time.Second, nil)
		c := f.controller(q)

		handle, err := c.StartSync(ctx, id)
		require.NoError(t, err)
		require.NoError(t, q.Shutdown(ctx))

		status, _ := c.JobStatus(handle.ID)
		assert.Equal(t, JobFailed, status.State)
		assert.Contains(t, status.Error, "provider down")
	})

	t.Run("full queue is reported", func(t *testing.T) {
		f := newFixture(t)
		q := NewQueue(1, 1, 0, nil)
		blocker, started, release := blockingJob("busy")
		require.NoError(t, q.Submit(blocker))
		<-started
		require.NoError(t, q.Submit(Job{Run: func(context.Context) error { return nil }}))

		_, err := f.controller(q).StartSync(ctx, id)
		assert.ErrorIs(t, err, shared.ErrQueueFull)

		close(release)
		require.NoError(t, q.Shutdown(ctx))
	})

	t.Run("no queue", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.controller(nil).StartSync(ctx, id)
		assert.ErrorIs(t, err, shared.ErrServiceUnavailable)
	})
}
