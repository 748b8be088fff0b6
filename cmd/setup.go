package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/spotcanvas/internal/shared"
	"github.com/desertthunder/spotcanvas/internal/ui"
)

// SetupConfig writes the example configuration to the config path.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	if r.configPath == "" {
		return fmt.Errorf("%w: config path not set", shared.ErrMissingConfig)
	}
	if err := shared.CreateConfigFile(r.configPath); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", r.configPath)
	r.writePlain("%s\n", ui.Styles.OK("✓ Config written to "+r.configPath))
	r.writePlainln("Next steps:")
	r.writePlain("1. Run 'spotcanvas setup token --curl-file request.sh' with a pathfinder request copied from DevTools\n")
	r.writePlain("2. Run 'spotcanvas canvas get spotify:track:...' to fetch a canvas\n")
	return nil
}

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	r.logger.Info("initializing database", "path", r.config.Database.Path)

	db, err := r.store()
	if err != nil {
		return err
	}

	version, err := shared.CurrentVersion(db)
	if err != nil {
		return err
	}

	r.logger.Info("setup complete", "database", r.config.Database.Path, "schema_version", version)
	return r.writePlain("%s\n", ui.Styles.OK(fmt.Sprintf("✓ Database ready (schema version %d)", version)))
}

// SetupToken extracts the bearer token from a DevTools "Copy as cURL" of a pathfinder request
// and saves it as the configured access token.
func (r *Runner) SetupToken(ctx context.Context, cmd *cli.Command) error {
	curlCmd := cmd.String("curl")
	curlFile := cmd.String("curl-file")

	if curlCmd == "" && curlFile == "" {
		return fmt.Errorf("%w: either --curl or --curl-file must be provided", shared.ErrMissingArgument)
	}

	if curlCmd != "" && curlFile != "" {
		return fmt.Errorf("%w: cannot specify both --curl and --curl-file", shared.ErrInvalidArgument)
	}

	var curlHeaders *shared.CurlHeaders
	var err error

	if curlFile != "" {
		curlHeaders, err = shared.ParseCurlFile(curlFile)
		if err != nil {
			return fmt.Errorf("failed to parse cURL file: %w", err)
		}
		r.logger.Info("parsed cURL from file", "file", curlFile)
	} else {
		curlHeaders, err = shared.ParseCurlCommand(curlCmd)
		if err != nil {
			return fmt.Errorf("failed to parse cURL command: %w", err)
		}
		r.logger.Info("parsed cURL command")
	}

	token, err := curlHeaders.BearerToken()
	if err != nil {
		return err
	}
	if ct := curlHeaders.ClientToken(); ct != "" {
		r.logger.Debug("ignoring client-token from cURL, its expiry is unknown", "client_token", shared.MaskToken(ct))
	}

	r.config.Credentials.Spotify.AccessToken = token
	if err := r.saveConfig(); err != nil {
		return err
	}

	r.writePlain("%s\n", ui.Styles.OK("✓ Access token saved"))
	r.writePlain("Token: %s\n", shared.MaskToken(token))
	r.writePlain("Config: %s\n", r.configPath)
	return nil
}
