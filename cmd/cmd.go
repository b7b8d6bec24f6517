// submodule cmd contains command definitions
package main

import (
	"github.com/desertthunder/coverx/internal/repositories"
	"github.com/urfave/cli/v3"
)

// tokenFlag carries the caller's Spotify access token for commands that act as a user.
func tokenFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "token",
		Aliases: []string{"t"},
		Usage:   "Spotify access token (see 'coverx auth')",
		Sources: cli.EnvVars("SPOTIFY_ACCESS_TOKEN"),
	}
}

func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print JSON output",
			Value: true,
		},
	}
}

func exportFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Output format: text, csv, md or yaml",
			Value:   "text",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Write the export to this file instead of stdout",
		},
	}
}

func playlistFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "playlist",
		Aliases:  []string{"p"},
		Usage:    "Spotify playlist ID",
		Required: true,
	}
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// setupCommand handles setup operations for configuration and the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupDatabase,
			},
			{
				Name:   "status",
				Usage:  "Show applied and pending migrations",
				Flags:  append([]cli.Flag{configFlag()}, outputFlags()...),
				Action: r.SetupStatus,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent migration",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupRollback,
			},
		},
	}
}

// authCommand runs the Spotify authorization code flow against a local callback server.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authenticate with Spotify using OAuth2 and print the access token",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "no-browser",
				Usage: "Print the authorization URL instead of opening a browser",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "How long to wait for the callback",
				Value: oauthTimeout,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output the token as JSON",
			},
		},
		Action: r.Auth,
	}
}

// serveCommand starts the HTTP API with the background sync queue.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the cover sync HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (defaults to server.host:server.port)",
			},
			configFlag(),
		},
		Action: r.Serve,
	}
}

// syncCommand mirrors every playlist and cover of the token's owner into the local store.
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "sync",
		Usage:  "Reconcile Spotify playlists and covers into the local database",
		Flags:  append([]cli.Flag{tokenFlag()}, outputFlags()...),
		Action: r.Sync,
	}
}

// playlistsCommand lists mirrored playlists, or the provider's view with --remote.
func playlistsCommand(r *Runner) *cli.Command {
	flags := []cli.Flag{
		tokenFlag(),
		&cli.BoolFlag{
			Name:  "remote",
			Usage: "List playlists straight from Spotify instead of the local mirror",
		},
	}
	flags = append(flags, outputFlags()...)
	flags = append(flags, exportFlags()...)

	return &cli.Command{
		Name:    "playlists",
		Aliases: []string{"ls"},
		Usage:   "List playlists and their current covers",
		Flags:   flags,
		Action:  r.Playlists,
	}
}

// coverCommand groups the cover upload operations.
func coverCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cover",
		Usage: "Replace and inspect playlist covers",
		Commands: []*cli.Command{
			{
				Name:  "upload",
				Usage: "Upload an image file as the playlist cover",
				Flags: append([]cli.Flag{
					tokenFlag(),
					playlistFlag(),
					&cli.StringFlag{
						Name:     "file",
						Usage:    "JPEG or PNG image to upload",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "name",
						Usage: "Playlist name, used when the playlist has not been synced yet",
					},
				}, outputFlags()...),
				Action: r.CoverUpload,
			},
			{
				Name:  "select",
				Usage: "Reuse a cover previously recorded for one of your playlists",
				Flags: append([]cli.Flag{
					tokenFlag(),
					playlistFlag(),
					&cli.StringFlag{
						Name:  "url",
						Usage: "URL of a known cover; prompts with the playlist's history when omitted",
					},
				}, outputFlags()...),
				Action: r.CoverSelect,
			},
			{
				Name:  "generate",
				Usage: "Generate a cover with the image model and upload it",
				Flags: append([]cli.Flag{
					tokenFlag(),
					playlistFlag(),
					&cli.StringFlag{
						Name:     "name",
						Usage:    "Playlist name used in the prompt",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "prompt",
						Usage: "Extra description of the cover",
					},
				}, outputFlags()...),
				Action: r.CoverGenerate,
			},
			{
				Name:  "history",
				Usage: "Show recent covers of a playlist, newest first",
				Flags: append(append([]cli.Flag{
					tokenFlag(),
					playlistFlag(),
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Number of covers to show",
						Value: repositories.DefaultHistoryLimit,
					},
				}, outputFlags()...), exportFlags()...),
				Action: r.CoverHistory,
			},
		},
	}
}
