package tasks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(ch <-chan ProgressUpdate) []ProgressUpdate {
	var out []ProgressUpdate
	for u := range ch {
		out = append(out, u)
	}
	return out
}

func TestProgressHub(t *testing.T) {
	t.Run("fans out until the job ends", func(t *testing.T) {
		h := NewProgressHub()
		publish := h.open("job")

		a, _ := h.Subscribe("job")
		b, _ := h.Subscribe("job")

		publish <- fetchedPlaylistsUpdate(3)
		publish <- reconcileUpdate(1, 3, "One")
		close(publish)

		for _, ch := range []<-chan ProgressUpdate{a, b} {
			got := drain(ch)
			require.Len(t, got, 2)
			assert.Equal(t, FetchPlaylists, got[0].Phase)
			assert.Equal(t, "[1/3] One", got[1].Message)
		}
	})

	t.Run("unknown job is already closed", func(t *testing.T) {
		ch, cancel := NewProgressHub().Subscribe("missing")
		defer cancel()
		_, open := <-ch
		assert.False(t, open)
	})

	t.Run("finished job is already closed", func(t *testing.T) {
		h := NewProgressHub()
		publish := h.open("job")
		early, _ := h.Subscribe("job")
		close(publish)
		drain(early)

		late, _ := h.Subscribe("job")
		_, open := <-late
		assert.False(t, open)
	})

	t.Run("cancel stops one subscriber", func(t *testing.T) {
		h := NewProgressHub()
		publish := h.open("job")

		gone, cancel := h.Subscribe("job")
		kept, _ := h.Subscribe("job")
		cancel()
		cancel()

		_, open := <-gone
		assert.False(t, open)

		publish <- fetchedPlaylistsUpdate(1)
		close(publish)
		assert.Len(t, drain(kept), 1)
	})
}
