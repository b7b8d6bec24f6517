package main

import (
	"context"
	"os"

	"github.com/desertthunder/coverx/internal/services"
	"github.com/desertthunder/coverx/internal/shared"
	"github.com/desertthunder/coverx/internal/ui"
	"github.com/urfave/cli/v3"
)

func main() {
	config := shared.DefaultConfig()
	if _, err := os.Stat("config.toml"); err == nil {
		if loadedConfig, err := shared.LoadConfig("config.toml"); err == nil {
			config = loadedConfig
		}
	}
	config.ApplyEnv(".env")

	logger := shared.NewLoggerFromConfig(config.Log)

	opts := RunnerOpts{Config: config, Logger: logger}

	if config.Credentials.Spotify.ClientID != "" && config.Credentials.Spotify.ClientSecret != "" {
		svc, err := services.NewSpotifyService(
			config.Credentials.Spotify.Map(),
			services.WithRateLimit(config.Sync.RateLimit),
		)
		if err != nil {
			logger.Warn("spotify service unavailable", "err", err)
		} else {
			opts.Spotify = svc
		}
	}

	if ai := config.Credentials.OpenAI; ai.APIKey != "" {
		gen, err := services.NewOpenAIGenerator(ai.APIKey, ai.BaseURL, ai.Model, ai.Size)
		if err != nil {
			logger.Warn("image generation unavailable", "err", err)
		} else {
			opts.Generator = gen
		}
	}

	runner := NewRunner(opts)

	app := &cli.Command{
		Name:    "coverx",
		Usage:   "Mirror Spotify playlists and manage their cover images",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "no-color", Usage: "Disable colored output"},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			ui.ConfigureColor(os.Stdout, cmd.Bool("no-color"))
			return ctx, nil
		},
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatalf("application error: %v", err)
	}
}
