// package formatter renders playlist covers and cover history as CSV, Markdown, YAML or plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/desertthunder/coverx/internal/models"
	"github.com/desertthunder/coverx/internal/shared"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Format names an export format accepted by the CLI.
type Format string

const (
	FormatText     Format = "text"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "md"
	FormatYAML     Format = "yaml"
)

// ParseFormat maps a --format value to a [Format]. Empty input yields [FormatText].
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "":
		return FormatText, nil
	case FormatText, FormatCSV, FormatMarkdown, FormatYAML:
		return Format(strings.ToLower(s)), nil
	case "markdown":
		return FormatMarkdown, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q (want text, csv, md or yaml)", shared.ErrInvalidArgument, s)
	}
}

// Extension returns the file extension used when writing f to disk.
func (f Format) Extension() string {
	if f == FormatText {
		return ".txt"
	}
	return "." + string(f)
}

// Playlists renders a user's playlists and their current covers in format f.
func Playlists(f Format, covers []models.PlaylistCover) ([]byte, error) {
	switch f {
	case FormatCSV:
		return PlaylistsToCSV(covers)
	case FormatMarkdown:
		return PlaylistsToMarkdown(covers), nil
	case FormatYAML:
		return PlaylistsToYAML(covers)
	default:
		return PlaylistsToText(covers), nil
	}
}

// History renders the cover history of one playlist in format f, newest first.
func History(f Format, name string, images []models.Image) ([]byte, error) {
	switch f {
	case FormatCSV:
		return HistoryToCSV(images)
	case FormatMarkdown:
		return HistoryToMarkdown(name, images), nil
	case FormatYAML:
		return HistoryToYAML(name, images)
	default:
		return HistoryToText(name, images), nil
	}
}

// PlaylistsToCSV writes the columns: ID, SpotifyID, Name, CoverURL, UpdatedAt
func PlaylistsToCSV(covers []models.PlaylistCover) ([]byte, error) {
	rows := make([][]string, 0, len(covers))
	for _, c := range covers {
		rows = append(rows, []string{c.ID, c.SpotifyID, c.Name, c.CoverURL, timestamp(c.UpdatedAt)})
	}
	return writeCSV([]string{"ID", "SpotifyID", "Name", "CoverURL", "UpdatedAt"}, rows)
}

// HistoryToCSV writes the columns: URL, Kind, ChangedAt
func HistoryToCSV(images []models.Image) ([]byte, error) {
	rows := make([][]string, 0, len(images))
	for _, img := range images {
		rows = append(rows, []string{img.URL, string(img.Kind), timestamp(img.ChangedAt)})
	}
	return writeCSV([]string{"URL", "Kind", "ChangedAt"}, rows)
}

func writeCSV(headers []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	if err := writer.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("failed to write CSV record: %w", err)
	}
	return buf.Bytes(), nil
}

type playlistDoc struct {
	SpotifyID string `yaml:"spotify_id"`
	Name      string `yaml:"name"`
	Cover     string `yaml:"cover,omitempty"`
	UpdatedAt string `yaml:"updated_at,omitempty"`
}

type historyDoc struct {
	Playlist string     `yaml:"playlist"`
	Covers   []coverDoc `yaml:"covers"`
}

type coverDoc struct {
	URL       string `yaml:"url"`
	Kind      string `yaml:"kind"`
	ChangedAt string `yaml:"changed_at"`
}

// PlaylistsToYAML renders a sequence of playlist mappings.
func PlaylistsToYAML(covers []models.PlaylistCover) ([]byte, error) {
	docs := make([]playlistDoc, 0, len(covers))
	for _, c := range covers {
		docs = append(docs, playlistDoc{SpotifyID: c.SpotifyID, Name: c.Name, Cover: c.CoverURL, UpdatedAt: timestamp(c.UpdatedAt)})
	}
	data, err := yaml.Marshal(docs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return data, nil
}

// HistoryToYAML renders the playlist name and its covers, newest first.
func HistoryToYAML(name string, images []models.Image) ([]byte, error) {
	doc := historyDoc{Playlist: name, Covers: make([]coverDoc, 0, len(images))}
	for _, img := range images {
		doc.Covers = append(doc.Covers, coverDoc{URL: img.URL, Kind: string(img.Kind), ChangedAt: timestamp(img.ChangedAt)})
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return data, nil
}

// PlaylistsToMarkdown renders a table with a thumbnail per covered playlist.
func PlaylistsToMarkdown(covers []models.PlaylistCover) []byte {
	var buf bytes.Buffer

	buf.WriteString("# Playlists\n\n")
	buf.WriteString(fmt.Sprintf("**Playlists**: %d\n\n", len(covers)))
	buf.WriteString("| Name | Spotify ID | Cover |\n")
	buf.WriteString("| --- | --- | --- |\n")
	for _, c := range covers {
		cover := "_none_"
		if c.CoverURL != "" {
			cover = fmt.Sprintf("![%s](%s)", escapeCell(c.Name), c.CoverURL)
		}
		buf.WriteString(fmt.Sprintf("| %s | %s | %s |\n", escapeCell(c.Name), c.SpotifyID, cover))
	}

	return buf.Bytes()
}

// HistoryToMarkdown renders the current cover followed by earlier ones.
func HistoryToMarkdown(name string, images []models.Image) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s\n\n", name))
	if len(images) == 0 {
		buf.WriteString("No covers recorded.\n")
		return buf.Bytes()
	}

	buf.WriteString(fmt.Sprintf("![Current cover](%s)\n\n", images[0].URL))
	buf.WriteString("## History\n\n")
	for i, img := range images {
		buf.WriteString(fmt.Sprintf("%d. [%s](%s) %s\n", i+1, img.Kind, img.URL, timestamp(img.ChangedAt)))
	}

	return buf.Bytes()
}

// PlaylistsToText renders one block per playlist.
func PlaylistsToText(covers []models.PlaylistCover) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Playlists: %d\n\n", len(covers)))
	for i, c := range covers {
		buf.WriteString(fmt.Sprintf("%d. %s\n", i+1, c.Name))
		buf.WriteString(fmt.Sprintf("   ID: %s\n", c.SpotifyID))
		if c.CoverURL != "" {
			buf.WriteString(fmt.Sprintf("   Cover: %s\n", c.CoverURL))
		} else {
			buf.WriteString("   Cover: none\n")
		}
	}

	return buf.Bytes()
}

// HistoryToText renders one line per cover.
func HistoryToText(name string, images []models.Image) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Playlist: %s\n", name))
	buf.WriteString(fmt.Sprintf("Covers: %d\n\n", len(images)))
	for i, img := range images {
		buf.WriteString(fmt.Sprintf("%d. [%s] %s (%s)\n", i+1, img.Kind, img.URL, timestamp(img.ChangedAt)))
	}

	return buf.Bytes()
}

// WriteExport writes data to path on fs, or to {base}{ext} when path is empty.
//
// Parent directories are created as needed.
func WriteExport(fs afero.Fs, data []byte, path, base string, f Format) (string, error) {
	if path == "" {
		path = base + f.Extension()
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := fs.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := afero.WriteFile(fs, path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}

	return path, nil
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
