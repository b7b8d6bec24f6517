package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/coverx/internal/server"
	"github.com/desertthunder/coverx/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const oauthTimeout = 2 * time.Minute

// Auth performs the OAuth2 authorization code flow for Spotify.
//
// Starts a local HTTP server for the callback, opens the browser for user authorization and
// prints the access token for use with --token or SPOTIFY_ACCESS_TOKEN.
func (r *Runner) Auth(ctx context.Context, cmd *cli.Command) error {
	if r.authorizer == nil {
		return fmt.Errorf("%w: Spotify client_id and client_secret must be set in config.toml", shared.ErrMissingCredentials)
	}

	token, err := r.doOAuth(ctx, r.authorizer, !cmd.Bool("no-browser"), cmd.Duration("timeout"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(token, true)
	}

	r.writePlainln("%s Authorization successful", r.palette.OK("✓"))
	r.writePlain("Access token (expires %s):\n\n%s\n\n", token.Expiry.Local().Format(time.Kitchen), token.AccessToken)
	r.writePlain("%s\n", r.palette.Help("export SPOTIFY_ACCESS_TOKEN=<token> to use it with coverx sync"))
	return nil
}

// doOAuth executes the OAuth2 authorization flow with a local HTTP server
func (r *Runner) doOAuth(ctx context.Context, auth server.Authorizer, openBrowser bool, timeout time.Duration) (*oauth2.Token, error) {
	if timeout <= 0 {
		timeout = oauthTimeout
	}

	oauthHandler := server.NewOAuthHandler(auth, shared.GenerateID())
	router := server.NewBasicRouter()
	router.Use(server.Recoverer(r.logger))
	router.Handler(oauthHandler)

	serverAddr := r.config.Server.Addr()
	httpServer := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth callback server at %v", serverAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	authURL := oauthHandler.AuthURL()
	if openBrowser {
		r.writePlain("→ Opening browser for Spotify authorization...\n")
		if err := shared.OpenBrowser(authURL); err != nil {
			r.logger.Warnf("failed to open browser automatically %v", err)
			r.writePlainln("%s Could not open browser automatically.", r.palette.Warn("⚠"))
			openBrowser = false
		}
	}
	if !openBrowser {
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (%s timeout)...\n", timeout)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var result server.OAuthResult
	var waitErr error

	select {
	case result = <-oauthHandler.Result():
	case err := <-serverErrors:
		waitErr = fmt.Errorf("server error: %w", err)
	case <-timer.C:
		waitErr = fmt.Errorf("%w: authorization timed out after %s", shared.ErrTimeout, timeout)
	case <-ctx.Done():
		waitErr = ctx.Err()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("error shutting down server", "error", err)
	}

	if waitErr != nil {
		return nil, waitErr
	}
	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}
	if result.Token == nil {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}

	return result.Token, nil
}
