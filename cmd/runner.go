package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/coverx/internal/repositories"
	"github.com/desertthunder/coverx/internal/server"
	"github.com/desertthunder/coverx/internal/services"
	"github.com/desertthunder/coverx/internal/shared"
	"github.com/desertthunder/coverx/internal/tasks"
	"github.com/desertthunder/coverx/internal/ui"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v3"
)

// Picker asks the user to choose one of options and returns the chosen value.
type Picker func(title string, options []huh.Option[string]) (string, error)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	authorizer server.Authorizer
	provider   services.Provider
	generator  services.ImageGenerator
	httpClient *http.Client
	fs         afero.Fs
	picker     Picker
	logger     *log.Logger
	output     io.Writer
	palette    *ui.Palette
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	Spotify    *services.SpotifyService // authorizer and provider unless those are set
	Authorizer server.Authorizer
	Provider   services.Provider
	Generator  services.ImageGenerator
	HTTPClient *http.Client
	Fs         afero.Fs // cover files and exports; defaults to the OS filesystem
	Picker     Picker
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Picker == nil {
		opts.Picker = pickWithHuh
	}
	if opts.Spotify != nil {
		if opts.Provider == nil {
			opts.Provider = opts.Spotify
		}
		if opts.Authorizer == nil {
			opts.Authorizer = opts.Spotify
		}
	}

	return &Runner{
		config:     opts.Config,
		authorizer: opts.Authorizer,
		provider:   opts.Provider,
		generator:  opts.Generator,
		httpClient: opts.HTTPClient,
		fs:         opts.Fs,
		picker:     opts.Picker,
		logger:     opts.Logger,
		output:     opts.Output,
		palette:    ui.DefaultPalette,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, serveCommand, syncCommand, playlistsCommand, coverCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// pipeline is the store and task graph a command runs against.
type pipeline struct {
	db         *sql.DB
	store      *repositories.Store
	reconciler *tasks.Reconciler
	syncer     *tasks.SyncController
	uploader   *tasks.CoverUploader
	queue      *tasks.Queue
}

// openPipeline opens the migrated database and wires the sync tasks to the runner's provider.
// A queue is only started when withQueue is set.
func (r *Runner) openPipeline(withQueue bool) (*pipeline, error) {
	if r.provider == nil {
		return nil, fmt.Errorf("%w: Spotify service not initialized (check credentials)", shared.ErrServiceUnavailable)
	}

	db, err := shared.OpenMigrated(r.config.Database)
	if err != nil {
		return nil, err
	}

	syncCfg := r.config.Sync
	store := repositories.NewStore(db, nil)
	reconciler := tasks.NewReconciler(store, r.logger, nil)

	var queue *tasks.Queue
	if withQueue {
		queue = tasks.NewQueue(syncCfg.Workers, syncCfg.QueueSize, syncCfg.JobTimeout(), r.logger)
	}

	uploader := tasks.NewCoverUploader(
		r.provider,
		store,
		reconciler,
		services.NewDownloader(r.httpClient),
		r.generator,
		tasks.UploaderOptions{Attempts: syncCfg.UploadAttempts, Backoff: syncCfg.UploadBackoff()},
		r.logger,
	)

	return &pipeline{
		db:         db,
		store:      store,
		reconciler: reconciler,
		syncer:     tasks.NewSyncController(store, r.provider, reconciler, queue, r.logger),
		uploader:   uploader,
		queue:      queue,
	}, nil
}

func (p *pipeline) Close() error {
	return p.db.Close()
}

// identify resolves the --token flag (or SPOTIFY_ACCESS_TOKEN) to a provider identity.
func (r *Runner) identify(ctx context.Context, cmd *cli.Command) (tasks.Identity, error) {
	token := cmd.String("token")
	if token == "" {
		return tasks.Identity{}, fmt.Errorf("%w: pass --token or set SPOTIFY_ACCESS_TOKEN (see 'coverx auth')", shared.ErrNotAuthenticated)
	}

	profile, err := r.provider.CurrentUser(ctx, token)
	if err != nil {
		return tasks.Identity{}, fmt.Errorf("failed to resolve token owner: %w", err)
	}

	r.logger.Debug("resolved identity", "user", profile.ID)
	return tasks.Identity{
		SpotifyID:   profile.ID,
		DisplayName: profile.DisplayName,
		Email:       profile.Email,
		AccessToken: token,
	}, nil
}

// owner resolves the caller and the matching local user.
func (r *Runner) owner(ctx context.Context, cmd *cli.Command, p *pipeline) (tasks.Owner, tasks.Identity, error) {
	id, err := r.identify(ctx, cmd)
	if err != nil {
		return tasks.Owner{}, id, err
	}
	user, err := p.syncer.ResolveUser(ctx, id)
	if err != nil {
		return tasks.Owner{}, id, err
	}
	return tasks.Owner{SpotifyID: id.SpotifyID, UserID: user.ID}, id, nil
}

// printProgress writes updates until progress is closed, then closes done.
func (r *Runner) printProgress(progress <-chan tasks.ProgressUpdate, done chan<- struct{}) {
	defer close(done)
	for update := range progress {
		switch update.Phase {
		case tasks.FetchPlaylists:
			r.writePlain("📥 %s\n", update.Message)
		case tasks.ReconcilePlaylist:
			r.writePlain("   %s\n", update.Message)
		case tasks.UploadingCover, tasks.GeneratingCover:
			r.writePlain("📤 %s\n", update.Message)
		case tasks.FetchCover:
			r.writePlain("   %s\n", update.Message)
		}
	}
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("%s", r.palette.Header(title))
}
