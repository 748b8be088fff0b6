// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func tokenFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "token",
		Aliases: []string{"t"},
		Usage:   "Web player access token (defaults to SPOTIFY_TOKEN, then config)",
	}
}

// canvasCommand handles canvas lookups
func canvasCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "canvas",
		Usage: "Look up canvas videos for tracks",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Fetch the canvas for one track (URI, open.spotify.com link or ID)",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "track",
					},
				},
				Flags: []cli.Flag{
					tokenFlag(),
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
					},
					&cli.StringFlag{
						Name:    "download",
						Aliases: []string{"d"},
						Usage:   "Save the video to this file or directory",
					},
					&cli.BoolFlag{
						Name:  "no-cache",
						Usage: "Skip the local cache and always query Spotify",
					},
					&cli.BoolFlag{
						Name:  "open",
						Usage: "Open the video in the default browser",
					},
				},
				Action: r.CanvasGet,
			},
			{
				Name:  "batch",
				Usage: "Fetch canvases for every track listed in a file",
				Flags: []cli.Flag{
					tokenFlag(),
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "File with one track per line (\"-\" reads stdin); blank lines and # comments are ignored",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "format",
						Usage: "Report format: json, csv, markdown or txt",
						Value: "json",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write the report to this file instead of stdout",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent workers (max 10, defaults to config)",
					},
					&cli.FloatFlag{
						Name:  "rate",
						Usage: "Requests per second (defaults to config)",
					},
					&cli.BoolFlag{
						Name:  "no-cache",
						Usage: "Skip the local cache and always query Spotify",
					},
					&cli.BoolFlag{
						Name:    "quiet",
						Aliases: []string{"q"},
						Usage:   "Hide per-track progress",
					},
				},
				Action: r.CanvasBatch,
			},
		},
	}
}

// tokenCommand handles client-token operations
func tokenCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Inspect Spotify client-tokens",
		Commands: []*cli.Command{
			{
				Name:  "fetch",
				Usage: "Obtain a client-token and print its expiry",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "show",
						Usage: "Print the full token instead of a masked one",
					},
					&cli.BoolFlag{
						Name:  "save",
						Usage: "Save the token and its expiry to the config file",
					},
				},
				Action: r.TokenFetch,
			},
		},
	}
}

// cacheCommand handles the local canvas cache
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect or clear cached canvases",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List cached canvases",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of entries to show",
						Value: 50,
					},
					&cli.BoolFlag{
						Name:  "history",
						Usage: "Show recent lookups instead of cached canvases",
					},
				},
				Action: r.CacheList,
			},
			{
				Name:   "clear",
				Usage:  "Delete every cached canvas and the lookup history",
				Action: r.CacheClear,
			},
		},
	}
}

// setupCommand handles setup operations for configuration, database and credentials.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write an example config.toml",
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:  "token",
				Usage: "Save the access token from a pathfinder request copied from browser DevTools",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "curl",
						Usage: "cURL command from browser DevTools (Copy as cURL)",
					},
					&cli.StringFlag{
						Name:  "curl-file",
						Usage: "Path to .sh file containing cURL command",
					},
				},
				Action: r.SetupToken,
			},
		},
	}
}
