package shared

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestImageIdentity(t *testing.T) {
	tc := []struct {
		name string
		url  string
		want string
	}{
		{
			name: "scdn image",
			url:  "https://i.scdn.co/image/ab67706c0000da84abc",
			want: "img:ab67706c0000da84abc",
		},
		{
			name: "spotifycdn image with query",
			url:  "https://image-cdn-ak.spotifycdn.com/image/ab67706c0000da84abc?size=640",
			want: "img:ab67706c0000da84abc",
		},
		{
			name: "img segment followed by rendition",
			url:  "https://cdnA.example/img/XYZ123/large.jpg",
			want: "img:XYZ123",
		},
		{
			name: "mosaic ignores size segment",
			url:  "https://mosaic.scdn.co/640/ab67616d00001e02aaaab67616d00001e02bbb",
			want: "mosaic:ab67616d00001e02aaaab67616d00001e02bbb",
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := ImageIdentity(tt.url); got != tt.want {
				t.Errorf("ImageIdentity() = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("same content across hosts", func(t *testing.T) {
		a := ImageIdentity("https://cdnA.example/img/XYZ123/large.jpg")
		b := ImageIdentity("https://cdnB.example/img/XYZ123/large.jpg?v=2")
		if a != b {
			t.Errorf("expected identical identities, got %s and %s", a, b)
		}
	})

	t.Run("directory after images is not an identity", func(t *testing.T) {
		a := ImageIdentity("https://h.example/images/covers/a.jpg")
		b := ImageIdentity("https://h.example/images/covers/b.jpg")
		if a == b {
			t.Errorf("distinct files share identity %s", a)
		}
		if !strings.HasPrefix(a, "url:") {
			t.Errorf("expected url: prefix, got %s", a)
		}
	})

	t.Run("filename after images is the identity", func(t *testing.T) {
		if got := ImageIdentity("https://h.example/images/a.jpg"); got != "img:a.jpg" {
			t.Errorf("expected img:a.jpg, got %s", got)
		}
	})

	t.Run("mosaic sizes share identity", func(t *testing.T) {
		a := ImageIdentity("https://mosaic.scdn.co/640/abc")
		b := ImageIdentity("https://mosaic.scdn.co/300/abc")
		if a != b {
			t.Errorf("expected identical identities, got %s and %s", a, b)
		}
	})

	t.Run("degrades to url digest", func(t *testing.T) {
		raw := "https://example.com/cover.jpg"
		got := ImageIdentity(raw)
		if !strings.HasPrefix(got, "url:") {
			t.Fatalf("expected url: prefix, got %s", got)
		}
		if got != ImageIdentity(raw) {
			t.Error("degraded identity should be deterministic")
		}
		if got == ImageIdentity("https://other.example.com/cover.jpg") {
			t.Error("degraded identity should not dedupe across hosts")
		}
	})

	t.Run("unparseable input does not panic", func(t *testing.T) {
		if got := ImageIdentity("::not a url"); !strings.HasPrefix(got, "url:") {
			t.Errorf("expected url: prefix, got %s", got)
		}
	})
}

func TestStrictImageIdentity(t *testing.T) {
	t.Run("recognized", func(t *testing.T) {
		got, err := StrictImageIdentity("https://i.scdn.co/image/abc")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "img:abc" {
			t.Errorf("expected img:abc, got %s", got)
		}
	})

	for _, raw := range []string{"", "https://example.com/cover.jpg", "https://i.scdn.co/image/", "/image/abc"} {
		t.Run("rejects "+raw, func(t *testing.T) {
			_, err := StrictImageIdentity(raw)
			if !errors.Is(err, ErrMalformedURL) {
				t.Errorf("expected ErrMalformedURL, got %v", err)
			}
		})
	}
}

func TestNewLoggerFromConfig(t *testing.T) {
	t.Run("level", func(t *testing.T) {
		l := NewLoggerFromConfig(LogConfig{Level: "WARN"})
		if l.GetLevel() != log.WarnLevel {
			t.Errorf("expected warn level, got %v", l.GetLevel())
		}
	})

	t.Run("invalid level keeps default", func(t *testing.T) {
		l := NewLoggerFromConfig(LogConfig{Level: "loud"})
		if l.GetLevel() != log.InfoLevel {
			t.Errorf("expected info level, got %v", l.GetLevel())
		}
	})

	t.Run("child logger carries fields", func(t *testing.T) {
		var buf bytes.Buffer
		l := WithLogger(NewLogger(&buf), "component", "test")
		l.Info("hello")
		if !strings.Contains(buf.String(), "component=test") {
			t.Errorf("expected component field in output, got %q", buf.String())
		}
	})
}

func TestGenerateID(t *testing.T) {
	a, b := GenerateID(), GenerateID()
	if a == "" || a == b {
		t.Errorf("expected distinct non-empty IDs, got %q and %q", a, b)
	}
}

func TestOpenBrowserUnsupportedPlatform(t *testing.T) {
	orig := getRuntime
	t.Cleanup(func() { getRuntime = orig })
	getRuntime = func() string { return "plan9" }

	err := OpenBrowser("https://accounts.spotify.com/authorize")
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Errorf("expected ErrServiceUnavailable, got %v", err)
	}
}
