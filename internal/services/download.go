package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/desertthunder/coverx/internal/shared"
)

// maxDownloadBytes caps a cover download; provider covers are a few hundred KB at most.
const maxDownloadBytes = 10 << 20

// Downloader fetches the bytes of a previously seen cover image.
type Downloader struct {
	httpClient *http.Client
}

// NewDownloader creates a new Downloader. A nil client uses [http.DefaultClient].
func NewDownloader(client *http.Client) *Downloader {
	if client == nil {
		client = http.DefaultClient
	}
	return &Downloader{httpClient: client}
}

// Fetch performs a GET request for rawURL and returns the response body.
func (d *Downloader) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", shared.ErrMalformedURL, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, &shared.ProviderError{Provider: u.Host, Op: "GET image", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &shared.ProviderError{Provider: u.Host, Op: "GET image", Status: resp.StatusCode, Body: http.StatusText(resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(body) > maxDownloadBytes {
		return nil, fmt.Errorf("%w: image larger than %d bytes", shared.ErrInvalidInput, maxDownloadBytes)
	}

	return body, nil
}
