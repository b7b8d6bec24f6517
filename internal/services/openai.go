package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/desertthunder/coverx/internal/shared"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	defaultImageModel = "dall-e-3"
	defaultImageSize  = "1024x1024"
	generatorName     = "OpenAI"
)

const coverPromptTemplate = "A 1:1 aspect ratio digital illustration designed as a Spotify playlist cover titled '%s'. " +
	"The artwork visually represents: %s. " +
	"Emphasize mood, energy, and vibe through composition, lighting, and color. " +
	"Bold, eye-catching, and expressive design suitable for a music streaming app."

// CoverPrompt builds the image prompt for a playlist cover from its name and a user description.
// An empty description falls back to the playlist name.
func CoverPrompt(playlistName, description string) string {
	description = strings.TrimSpace(description)
	if description == "" {
		description = playlistName
	}
	return fmt.Sprintf(coverPromptTemplate, playlistName, description)
}

// OpenAIGenerator implements [ImageGenerator] with the OpenAI images endpoint.
type OpenAIGenerator struct {
	client openai.Client
	model  string
	size   string
}

// NewOpenAIGenerator creates a generator. baseURL, model and size fall back to the OpenAI defaults when empty.
func NewOpenAIGenerator(apiKey, baseURL, model, size string, extra ...option.RequestOption) (*OpenAIGenerator, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("%w: missing openai api_key", shared.ErrMissingCredentials)
	}

	opts := []option.RequestOption{option.WithAPIKey(strings.TrimSpace(apiKey))}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSpace(baseURL)))
	}
	opts = append(opts, extra...)

	if model == "" {
		model = defaultImageModel
	}
	if size == "" {
		size = defaultImageSize
	}

	return &OpenAIGenerator{client: openai.NewClient(opts...), model: model, size: size}, nil
}

// Generate requests a single base64 image for prompt and returns its decoded bytes.
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) ([]byte, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("%w: empty prompt", shared.ErrInvalidInput)
	}

	resp, err := g.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         prompt,
		Model:          openai.ImageModel(g.model),
		N:              openai.Int(1),
		Size:           openai.ImageGenerateParamsSize(g.size),
		ResponseFormat: openai.ImageGenerateParamsResponseFormatB64JSON,
	})
	if err != nil {
		pe := &shared.ProviderError{Provider: generatorName, Op: "images.generate", Err: err}
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			pe.Status = apiErr.StatusCode
			pe.Body = apiErr.Message
		}
		return nil, pe
	}

	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("%w: image generator returned no data", shared.ErrNoImageReturned)
	}

	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("failed to decode generated image: %w", err)
	}
	return data, nil
}
