package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/desertthunder/coverx/internal/shared"
)

func TestDownloader(t *testing.T) {
	t.Run("New With Nil Client", func(t *testing.T) {
		if d := NewDownloader(nil); d.httpClient != http.DefaultClient {
			t.Error("expected http.DefaultClient to be used")
		}
	})

	t.Run("Fetch", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/image/missing" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write([]byte{0xff, 0xd8, 0xff})
		}))
		defer server.Close()

		d := NewDownloader(server.Client())

		data, err := d.Fetch(context.Background(), server.URL+"/image/abc")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(data) != 3 {
			t.Errorf("expected 3 bytes, got %d", len(data))
		}

		_, err = d.Fetch(context.Background(), server.URL+"/image/missing")
		var pe *shared.ProviderError
		if !errors.As(err, &pe) || pe.Status != http.StatusNotFound {
			t.Errorf("expected 404 provider error, got %v", err)
		}
	})

	t.Run("Rejects Non HTTP URLs", func(t *testing.T) {
		d := NewDownloader(nil)
		for _, raw := range []string{"", "file:///etc/passwd", "not a url"} {
			if _, err := d.Fetch(context.Background(), raw); !errors.Is(err, shared.ErrMalformedURL) {
				t.Errorf("%q: expected ErrMalformedURL, got %v", raw, err)
			}
		}
	})
}
