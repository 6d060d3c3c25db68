// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

func collectionFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "collection",
		Usage: "Collection ID (defaults to sync.collection_id, then the active collection)",
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
				Usage:  "List database migrations and whether they have been applied",
				Flags:  []cli.Flag{configFlag(), &cli.BoolFlag{Name: "json", Usage: "Output raw JSON"}},
				Action: r.SetupStatus,
			},
		},
	}
}

// progressCommand handles reading and changing collection progress.
func progressCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "progress",
		Aliases: []string{"p"},
		Usage:   "Inspect and change collection progress",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Print stored progress for a set, or for one card of a set",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "scope"},
					&cli.StringArg{Name: "card"},
				},
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{Name: "pretty", Usage: "Pretty-print output", Value: true},
				},
				Action: r.ProgressGet,
			},
			{
				Name:  "toggle",
				Usage: "Toggle one variant of a card, asking before unchecking a complete card",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "scope"},
					&cli.StringArg{Name: "card"},
					&cli.StringArg{Name: "variant"},
				},
				Flags: []cli.Flag{
					configFlag(),
					collectionFlag(),
					&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "Confirm unchecking a complete card without asking"},
					&cli.BoolFlag{Name: "sync", Usage: "Push the change to the sync mirror"},
				},
				Action: r.ProgressToggle,
			},
			{
				Name:  "stats",
				Usage: "Show collected variants per set",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "scope"},
				},
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
					&cli.BoolFlag{Name: "pretty", Usage: "Pretty-print output"},
				},
				Action: r.ProgressStats,
			},
			{
				Name:  "export",
				Usage: "Export progress as JSON, or one set as csv, md or txt",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "json, csv, md or txt", Value: "json"},
					&cli.StringFlag{Name: "scope", Aliases: []string{"s"}, Usage: "Set to export (required for csv, md and txt)"},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output file, base name or directory"},
					&cli.BoolFlag{Name: "image", Usage: "Download the set's first card image into a Markdown export"},
				},
				Action: r.ProgressExport,
			},
			{
				Name:  "import",
				Usage: "Replace stored progress with a JSON export",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
				},
				Flags: []cli.Flag{
					configFlag(),
					collectionFlag(),
					&cli.BoolFlag{Name: "sync", Usage: "Push the imported progress to the sync mirror"},
				},
				Action: r.ProgressImport,
			},
		},
	}
}

// migrateCommand runs the one-time progress migrations.
func migrateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "migrate",
		Usage:  "Apply one-time progress migrations",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Migrate,
	}
}

// catalogCommand handles browsing set definitions.
func catalogCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "catalog",
		Usage: "Browse loaded sets and cards",
		Commands: []*cli.Command{
			{
				Name:  "sets",
				Usage: "List loaded sets with progress",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{Name: "kind", Usage: "official, custom or lorcana"},
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
				},
				Action: r.CatalogSets,
			},
			{
				Name:  "cards",
				Usage: "List the cards of a set",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "scope"},
				},
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{Name: "completion", Usage: "all, incomplete or complete", Value: "all"},
					&cli.StringSliceFlag{Name: "rarity", Usage: "Only show these rarities"},
					&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "Search card names and numbers"},
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
				},
				Action: r.CatalogCards,
			},
		},
	}
}

// imagesCommand handles card image resolution.
func imagesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "images",
		Usage: "Resolve card images",
		Commands: []*cli.Command{
			{
				Name:  "resolve",
				Usage: "Print the image candidates for a card",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "scope"},
					&cli.StringArg{Name: "card"},
				},
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{Name: "probe", Usage: "Check candidates in order and print the first that loads"},
					&cli.BoolFlag{Name: "open", Usage: "Open the resolved image in the browser"},
				},
				Action: r.ImagesResolve,
			},
			{
				Name:      "warm",
				Usage:     "Fetch the card index for Lorcana sets ahead of time",
				ArgsUsage: "[scope...]",
				Flags: []cli.Flag{
					configFlag(),
					&cli.IntFlag{Name: "workers", Usage: "Concurrent index requests", Value: 3},
				},
				Action: r.ImagesWarm,
			},
		},
	}
}

// collectionCommand handles synced collections.
func collectionCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "collection",
		Usage: "Manage synced collections",
		Commands: []*cli.Command{
			{
				Name:  "new",
				Usage: "Create a new collection and make it active",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "name"},
				},
				Flags:  []cli.Flag{configFlag()},
				Action: r.CollectionNew,
			},
			{
				Name:  "use",
				Usage: "Make an existing collection active",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{Name: "name", Usage: "Name to remember the collection by"},
				},
				Action: r.CollectionUse,
			},
			{
				Name:  "list",
				Usage: "List known collections",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
				},
				Action: r.CollectionList,
			},
		},
	}
}

// syncCommand handles the link to the sync mirror.
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Synchronize progress with the sync mirror",
		Commands: []*cli.Command{
			{
				Name:   "watch",
				Usage:  "Subscribe to a collection and apply remote changes until interrupted",
				Flags:  []cli.Flag{configFlag(), collectionFlag()},
				Action: r.SyncWatch,
			},
			{
				Name:   "push",
				Usage:  "Upload local progress to a collection",
				Flags:  []cli.Flag{configFlag(), collectionFlag()},
				Action: r.SyncPush,
			},
			{
				Name:  "pull",
				Usage: "Replace local progress with a collection's snapshot",
				Flags: []cli.Flag{
					configFlag(),
					collectionFlag(),
					&cli.BoolFlag{Name: "dry-run", Usage: "Print the snapshot without storing it"},
				},
				Action: r.SyncPull,
			},
		},
	}
}

// mirrorCommand runs the self-hosted sync mirror.
func mirrorCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "mirror",
		Usage: "Self-hosted sync mirror",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Serve collection documents over websocket and HTTP",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{Name: "addr", Usage: "Listen address (defaults to server.host:server.port)"},
				},
				Action: r.MirrorServe,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for browsing and toggling cards.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive card browser",
		Flags: []cli.Flag{
			configFlag(),
			collectionFlag(),
			&cli.BoolFlag{Name: "offline", Usage: "Do not connect to the sync mirror"},
		},
		Action: r.TUI,
	}
}
