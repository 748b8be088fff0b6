package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/spotcanvas/internal/shared"
	"github.com/desertthunder/spotcanvas/internal/ui"
)

// TokenFetch obtains a client-token through the credential cache and prints it with its expiry.
func (r *Runner) TokenFetch(ctx context.Context, cmd *cli.Command) error {
	creds := r.client.Credentials()

	token, err := creds.Get(ctx, r.httpClient)
	if err != nil {
		return err
	}
	expiresAt, _ := creds.ExpiresAt()

	display := token
	if !cmd.Bool("show") {
		display = shared.MaskToken(token)
	}

	if cmd.Bool("save") {
		r.config.Credentials.Spotify.ClientToken = token
		r.config.Credentials.Spotify.ClientTokenExpiresAt = expiresAt.Unix()
		if err := r.saveConfig(); err != nil {
			return err
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{
			"client_token": display,
			"expires_at":   expiresAt.UTC().Format(time.RFC3339),
		}, true)
	}

	r.writePlainHeader("Client token")
	r.writePlain("Token:   %s\n", display)
	r.writePlain("Expires: %s (in %s)\n", expiresAt.Local().Format(time.RFC1123), time.Until(expiresAt).Round(time.Second))
	if cmd.Bool("save") {
		r.writePlain("%s\n", ui.Styles.OK(fmt.Sprintf("✓ Saved to %s", r.configPath)))
	}
	return nil
}
