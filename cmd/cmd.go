// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func jsonFlags() []cli.Flag {
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

// setupCommand handles setup operations for the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage: "Create config.toml if missing, initialize the database and run migrations",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "rollback",
						Usage: "Roll back the latest N applied migrations instead of migrating up",
					},
					&cli.BoolFlag{
						Name:  "status",
						Usage: "List migrations and whether each is applied",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}

// authCommand handles Spotify authentication
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage Spotify authentication",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Authorize with Spotify in the browser and store the token in the config file",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Print the authorization URL instead of opening a browser",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Show the stored token and the authenticated user",
				Action: r.AuthStatus,
			},
		},
	}
}

// playlistsCommand handles playlist listing, streaming and editing
func playlistsCommand(r *Runner) *cli.Command {
	selectFlags := func(extra ...cli.Flag) []cli.Flag {
		return append([]cli.Flag{
			&cli.StringFlag{
				Name:  "id",
				Usage: "Playlist ID",
			},
			&cli.StringFlag{
				Name:    "name",
				Aliases: []string{"n"},
				Usage:   "Playlist name (closest match)",
			},
			&cli.BoolFlag{
				Name:  "liked",
				Usage: "Use Liked Songs",
			},
		}, extra...)
	}

	return &cli.Command{
		Name:    "playlists",
		Aliases: []string{"pl"},
		Usage:   "Playlist operations",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List playlists in your collection",
				Flags:  jsonFlags(),
				Action: r.PlaylistsList,
			},
			{
				Name:   "tracks",
				Usage:  "Stream the tracks of a playlist",
				Flags:  selectFlags(jsonFlags()...),
				Action: r.PlaylistsTracks,
			},
			{
				Name:  "create",
				Usage: "Create an empty playlist",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "name",
						Aliases:  []string{"n"},
						Usage:    "Playlist name",
						Required: true,
					},
				},
				Action: r.PlaylistsCreate,
			},
			{
				Name:  "delete",
				Usage: "Remove a playlist from your collection",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Playlist ID",
						Required: true,
					},
				},
				Action: r.PlaylistsDelete,
			},
			{
				Name:  "reorder",
				Usage: "Move the track at --from to just before --to (1-based positions)",
				Flags: selectFlags(
					&cli.IntFlag{
						Name:     "from",
						Usage:    "Position of the track to move",
						Required: true,
					},
					&cli.IntFlag{
						Name:     "to",
						Usage:    "Position to insert before; one past the last position moves to the end",
						Required: true,
					},
				),
				Action: r.PlaylistsReorder,
			},
			{
				Name:  "add",
				Usage: "Append tracks to a playlist",
				Flags: selectFlags(
					&cli.StringSliceFlag{
						Name:     "uri",
						Usage:    "Track URI to append (repeatable)",
						Required: true,
					},
				),
				Action: r.PlaylistsAdd,
			},
			{
				Name:  "remove",
				Usage: "Remove the track at --position (1-based)",
				Flags: selectFlags(
					&cli.IntFlag{
						Name:     "position",
						Aliases:  []string{"p"},
						Usage:    "Position of the track to remove",
						Required: true,
					},
				),
				Action: r.PlaylistsRemove,
			},
			{
				Name:  "export",
				Usage: "Export a playlist to JSON, CSV, Markdown or text",
				Flags: selectFlags(
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "json, csv, markdown or text",
						Value:   "json",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output path (- for stdout)",
					},
				),
				Action: r.PlaylistsExport,
			},
		},
	}
}

// playerCommand handles playback state and transport commands
func playerCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "player",
		Usage: "Playback state and controls",
		Commands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Show current playback and devices",
				Flags:  jsonFlags(),
				Action: r.PlayerStatus,
			},
			{
				Name:  "watch",
				Usage: "Follow playback changes until interrupted",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output one JSON object per update",
					},
					&cli.BoolFlag{
						Name:  "no-history",
						Usage: "Do not record track changes",
					},
					&cli.IntFlag{
						Name:  "count",
						Usage: "Stop after this many changes (0 follows until interrupted)",
					},
				},
				Action: r.PlayerWatch,
			},
			{
				Name:   "play",
				Usage:  "Resume playback",
				Action: r.PlayerPlay,
			},
			{
				Name:   "pause",
				Usage:  "Pause playback",
				Action: r.PlayerPause,
			},
			{
				Name:   "next",
				Usage:  "Skip to the next track",
				Action: r.PlayerNext,
			},
			{
				Name:    "previous",
				Aliases: []string{"prev"},
				Usage:   "Skip to the previous track",
				Action:  r.PlayerPrevious,
			},
			{
				Name:  "shuffle",
				Usage: "Set or toggle shuffle",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "on",
						Usage: "Enable shuffle",
					},
					&cli.BoolFlag{
						Name:  "off",
						Usage: "Disable shuffle",
					},
				},
				Action: r.PlayerShuffle,
			},
			{
				Name:   "repeat",
				Usage:  "Cycle repeat: off, context, track",
				Action: r.PlayerRepeat,
			},
			{
				Name:  "volume",
				Usage: "Set the active device's volume",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:     "percent",
						Aliases:  []string{"p"},
						Usage:    "Volume from 0 to 100",
						Required: true,
					},
				},
				Action: r.PlayerVolume,
			},
			{
				Name:  "play-track",
				Usage: "Play a track, optionally within a playlist",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "uri",
						Usage:    "Track URI",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "context",
						Usage: "Playlist or album URI to play the track in",
					},
				},
				Action: r.PlayerPlayTrack,
			},
			{
				Name:  "history",
				Usage: "List recently observed tracks",
				Flags: append([]cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"l"},
						Usage:   "Maximum number of entries",
						Value:   20,
					},
				}, jsonFlags()...),
				Action: r.PlayerHistory,
			},
		},
	}
}

// cacheCommand handles the snapshot cache
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect and clear the playlist snapshot cache",
		Commands: []*cli.Command{
			{
				Name:   "info",
				Usage:  "Show the backend, location and size of the cache",
				Flags:  jsonFlags(),
				Action: r.CacheInfo,
			},
			{
				Name:   "clear",
				Usage:  "Remove every cached snapshot",
				Action: r.CacheClear,
			},
			{
				Name:  "versions",
				Usage: "List the cached versions of a playlist (sqlite backend)",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Playlist ID",
						Required: true,
					},
				}, jsonFlags()...),
				Action: r.CacheVersions,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for interactive playback and playlist management.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive terminal player",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Where TUI logs are written",
				Value: "./tmp/playdeck-tui.log",
			},
		},
		Action: r.TUI,
	}
}
