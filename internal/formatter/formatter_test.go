package formatter

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/coverx/internal/models"
	"github.com/desertthunder/coverx/internal/shared"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

var changed = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func testCovers() []models.PlaylistCover {
	return []models.PlaylistCover{
		{
			Playlist: models.Playlist{ID: "p1", SpotifyID: "sp1", Name: "Road | Trip", UpdatedAt: changed},
			CoverURL: "https://i.scdn.co/image/aaa",
		},
		{
			Playlist: models.Playlist{ID: "p2", SpotifyID: "sp2", Name: "Empty"},
		},
	}
}

func testHistory() []models.Image {
	return []models.Image{
		{URL: "https://i.scdn.co/image/new", Kind: models.KindAI, ChangedAt: changed},
		{URL: "https://i.scdn.co/image/old", Kind: models.KindMirror, ChangedAt: changed.Add(-time.Hour)},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"", FormatText},
		{"text", FormatText},
		{"CSV", FormatCSV},
		{"md", FormatMarkdown},
		{"markdown", FormatMarkdown},
		{"yml", FormatYAML},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if err != nil {
			t.Fatalf("ParseFormat(%q) failed: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	if _, err := ParseFormat("xml"); !errors.Is(err, shared.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestExporters(t *testing.T) {
	t.Run("PlaylistsToCSV", func(t *testing.T) {
		data, err := PlaylistsToCSV(testCovers())
		if err != nil {
			t.Fatalf("PlaylistsToCSV failed: %v", err)
		}

		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		if len(lines) != 3 {
			t.Fatalf("expected header and 2 rows, got %d: %s", len(lines), data)
		}
		if lines[0] != "ID,SpotifyID,Name,CoverURL,UpdatedAt" {
			t.Errorf("CSV headers = %q", lines[0])
		}
		if lines[1] != "p1,sp1,Road | Trip,https://i.scdn.co/image/aaa,2025-03-01T12:00:00Z" {
			t.Errorf("CSV row = %q", lines[1])
		}
		if lines[2] != "p2,sp2,Empty,," {
			t.Errorf("CSV row without cover = %q", lines[2])
		}
	})

	t.Run("HistoryToCSV", func(t *testing.T) {
		data, err := HistoryToCSV(testHistory())
		if err != nil {
			t.Fatalf("HistoryToCSV failed: %v", err)
		}
		output := string(data)
		if !strings.HasPrefix(output, "URL,Kind,ChangedAt\n") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, "https://i.scdn.co/image/new,ai,2025-03-01T12:00:00Z") {
			t.Errorf("CSV missing newest cover, got: %s", output)
		}
	})

	t.Run("PlaylistsToMarkdown", func(t *testing.T) {
		output := string(PlaylistsToMarkdown(testCovers()))

		if !strings.Contains(output, "**Playlists**: 2") {
			t.Errorf("Markdown missing count")
		}
		if !strings.Contains(output, `| Road \| Trip | sp1 | ![Road \| Trip](https://i.scdn.co/image/aaa) |`) {
			t.Errorf("Markdown missing escaped row, got: %s", output)
		}
		if !strings.Contains(output, "| Empty | sp2 | _none_ |") {
			t.Errorf("Markdown missing uncovered row, got: %s", output)
		}
	})

	t.Run("HistoryToMarkdown", func(t *testing.T) {
		output := string(HistoryToMarkdown("Road Trip", testHistory()))

		if !strings.Contains(output, "# Road Trip") {
			t.Errorf("Markdown missing title")
		}
		if !strings.Contains(output, "![Current cover](https://i.scdn.co/image/new)") {
			t.Errorf("Markdown missing current cover")
		}
		if !strings.Contains(output, "2. [mirror](https://i.scdn.co/image/old)") {
			t.Errorf("Markdown missing older cover, got: %s", output)
		}

		empty := string(HistoryToMarkdown("Nothing", nil))
		if !strings.Contains(empty, "No covers recorded.") {
			t.Errorf("expected empty history note, got: %s", empty)
		}
	})

	t.Run("Text", func(t *testing.T) {
		playlists := string(PlaylistsToText(testCovers()))
		if !strings.Contains(playlists, "1. Road | Trip\n   ID: sp1\n   Cover: https://i.scdn.co/image/aaa\n") {
			t.Errorf("unexpected playlists text: %s", playlists)
		}
		if !strings.Contains(playlists, "   Cover: none\n") {
			t.Errorf("missing uncovered marker: %s", playlists)
		}

		history := string(HistoryToText("Road Trip", testHistory()))
		if !strings.Contains(history, "Covers: 2") || !strings.Contains(history, "1. [ai] https://i.scdn.co/image/new") {
			t.Errorf("unexpected history text: %s", history)
		}
	})

	t.Run("YAML", func(t *testing.T) {
		data, err := PlaylistsToYAML(testCovers())
		if err != nil {
			t.Fatalf("PlaylistsToYAML failed: %v", err)
		}
		var playlists []map[string]string
		if err := yaml.Unmarshal(data, &playlists); err != nil {
			t.Fatalf("invalid YAML: %v\n%s", err, data)
		}
		if len(playlists) != 2 || playlists[0]["cover"] != "https://i.scdn.co/image/aaa" {
			t.Errorf("unexpected playlists YAML: %s", data)
		}
		if _, ok := playlists[1]["cover"]; ok {
			t.Errorf("expected cover to be omitted for uncovered playlist: %s", data)
		}

		data, err = HistoryToYAML("Road Trip", testHistory())
		if err != nil {
			t.Fatalf("HistoryToYAML failed: %v", err)
		}
		var history struct {
			Playlist string `yaml:"playlist"`
			Covers   []struct {
				URL  string `yaml:"url"`
				Kind string `yaml:"kind"`
			} `yaml:"covers"`
		}
		if err := yaml.Unmarshal(data, &history); err != nil {
			t.Fatalf("invalid YAML: %v", err)
		}
		if history.Playlist != "Road Trip" || len(history.Covers) != 2 || history.Covers[0].Kind != "ai" {
			t.Errorf("unexpected history YAML: %s", data)
		}
	})

	t.Run("dispatch", func(t *testing.T) {
		data, err := Playlists(FormatCSV, testCovers())
		if err != nil || !strings.HasPrefix(string(data), "ID,") {
			t.Errorf("Playlists(csv) = %q, %v", data, err)
		}
		data, err = History(FormatMarkdown, "Road Trip", testHistory())
		if err != nil || !strings.HasPrefix(string(data), "# Road Trip") {
			t.Errorf("History(md) = %q, %v", data, err)
		}
	})
}

func TestWriteExport(t *testing.T) {
	t.Run("WithDefaultPath", func(t *testing.T) {
		fs := afero.NewMemMapFs()

		path, err := WriteExport(fs, []byte("hello"), "", "exports/covers", FormatMarkdown)
		if err != nil {
			t.Fatalf("WriteExport failed: %v", err)
		}
		if path != "exports/covers.md" {
			t.Errorf("path = %q", path)
		}
		data, err := afero.ReadFile(fs, path)
		if err != nil || string(data) != "hello" {
			t.Errorf("file content = %q, %v", data, err)
		}
	})

	t.Run("WithCustomPath", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		path := "/tmp/nested/out.csv"

		got, err := WriteExport(fs, []byte("a,b\n"), path, "ignored", FormatCSV)
		if err != nil {
			t.Fatalf("WriteExport failed: %v", err)
		}
		if got != path {
			t.Errorf("path = %q, want %q", got, path)
		}
		if ok, _ := afero.Exists(fs, path); !ok {
			t.Error("expected file to exist")
		}
	})

	t.Run("ReadOnlyFs", func(t *testing.T) {
		fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
		if _, err := WriteExport(fs, []byte("x"), "out.txt", "", FormatText); err == nil {
			t.Error("expected error writing to a read-only filesystem")
		}
	})

	t.Run("Extension", func(t *testing.T) {
		if FormatText.Extension() != ".txt" || FormatCSV.Extension() != ".csv" || FormatYAML.Extension() != ".yaml" {
			t.Errorf("unexpected extensions")
		}
	})
}
