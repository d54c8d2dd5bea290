package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/playdeck/internal/server"
	"github.com/desertthunder/playdeck/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// AuthLogin performs the OAuth2 authorization code flow for Spotify.
//
// Starts a local HTTP server, opens the browser for user authorization and stores the exchanged token in the config file.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	creds := r.config.Credentials.Spotify
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return fmt.Errorf("%w: Spotify client_id and client_secret must be set in %s", shared.ErrMissingCredentials, r.configPath)
	}

	svc, err := r.newSpotifyService()
	if err != nil {
		return err
	}

	open := r.openBrowser
	if cmd.Bool("no-browser") {
		open = r.printAuthURL
	}

	token, err := r.doOAuth(ctx, svc, open)
	if err != nil {
		return err
	}

	if err := r.saveTokens(token); err != nil {
		return err
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Tokens saved to %s\n\n", r.configPath)
	r.writePlain("You can now use: playdeck playlists list\n")
	return nil
}

// AuthStatus reports whether a token is stored and, if so, who it belongs to.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	token := r.config.Credentials.Spotify.Token()
	if token == nil {
		r.writePlain("Authentication: ✗ Not authenticated\n")
		r.writePlain("Run 'playdeck auth login' to authorize.\n")
		return nil
	}

	if token.Expiry.IsZero() {
		r.writePlain("Token expiry: unknown\n")
	} else {
		r.writePlain("Token expiry: %s\n", token.Expiry.Local().Format(time.RFC1123))
	}
	if token.RefreshToken == "" {
		r.logger.Warn("no refresh token stored", "error", shared.ErrNoRefreshToken)
		r.writePlain("Refresh token: ✗ missing, you will need to log in again when the token expires\n")
	}

	if err := r.playlists(ctx); err != nil {
		return err
	}
	user, err := r.catalog.CurrentUser(ctx)
	if err != nil {
		r.writePlain("Authentication: ✗ Token rejected\n")
		return err
	}

	r.writePlain("Authentication: ✓ Authenticated\n")
	r.writePlain("User: %s (%s)\n", user.DisplayName, user.ID)
	return nil
}

// doOAuth executes the OAuth2 authorization flow with a local callback server
func (r *Runner) doOAuth(ctx context.Context, auth server.Authenticator, open func(string) error) (*oauth2.Token, error) {
	state, err := server.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	callback := server.NewCallbackServer(addr, server.NewOAuthHandler(auth, state), r.logger)

	r.writePlain("→ Waiting for authorization (%s timeout)...\n", server.DefaultAuthTimeout)
	return callback.Authorize(ctx, open)
}

func (r *Runner) openBrowser(url string) error {
	r.writePlain("→ Opening browser for Spotify authorization...\n")
	if err := shared.OpenBrowser(url); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		return r.printAuthURL(url)
	}
	return nil
}

func (r *Runner) printAuthURL(url string) error {
	return r.writePlain("Please open this URL in your browser:\n%s\n\n", url)
}
