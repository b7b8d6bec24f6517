package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/coverx/internal/server"
	"github.com/desertthunder/coverx/internal/shared"
	"github.com/urfave/cli/v3"
)

// Serve runs the HTTP API until interrupted. Sync requests are queued on the background
// worker pool and drained before exit.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if err := r.config.Validate(); err != nil {
		return err
	}

	p, err := r.openPipeline(true)
	if err != nil {
		return err
	}
	defer p.Close()

	var login *server.OAuthHandler
	if r.authorizer != nil {
		login = server.NewLoginHandler(r.authorizer)
	}

	api := server.NewAPI(p.syncer, p.uploader, p.store, r.provider, r.logger)
	router := server.NewServiceRouter(api, login, r.logger)

	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Server.Addr()
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if path := cmd.String("config"); path != "" {
		if _, err := os.Stat(path); err == nil {
			err := shared.WatchConfig(ctx, path, r.logger, func(c *shared.Config) {
				if shared.ApplyLogLevel(r.logger, c.Log.Level) {
					r.logger.Info("log level updated", "level", c.Log.Level)
				}
			})
			if err != nil {
				r.logger.Warn("config reload disabled", "err", err)
			}
		}
	}

	r.writePlain("%s coverx listening on http://%s\n", r.palette.OK("→"), addr)
	return server.New(addr, router, p.queue, r.logger).Run(ctx)
}
