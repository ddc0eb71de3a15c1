package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/out-of-cheese-error/gooseberry/internal"
	"github.com/out-of-cheese-error/gooseberry/internal/apperr"
	"github.com/out-of-cheese-error/gooseberry/internal/filter"
	pkgconfig "github.com/out-of-cheese-error/gooseberry/pkg/config"
)

func rootCommand() *cli.Command {
	return &cli.Command{
		Name:                  "gooseberry",
		Usage:                 "Turn Hypothesis annotations into a queryable local knowledge base",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "user config dir",
				Sources:     cli.EnvVars(internal.ConfigEnvVar),
			},
		},
		Commands: []*cli.Command{
			syncCommand(),
			tagCommand(),
			deleteCommand(),
			viewCommand(),
			moveCommand(),
			makeCommand(),
			clearCommand(),
			configCommand(),
		},
	}
}

func main() {
	if err := rootCommand().Run(context.Background(), os.Args); err != nil {
		if errors.Is(err, apperr.ErrDoingNothing) {
			fmt.Println("Doing nothing")
			return
		}
		slog.Error("command failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// filterFlags are shared by every command that selects annotations.
func filterFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "from",
			Usage: "Only annotations created at or after this instant (RFC 3339 or YYYY-MM-DD)",
		},
		&cli.StringFlag{
			Name:  "before",
			Usage: "Only annotations created before this instant (RFC 3339 or YYYY-MM-DD)",
		},
		&cli.BoolFlag{
			Name:  "include-updated",
			Usage: "Apply the time window to the update instant instead of creation",
		},
		&cli.StringFlag{Name: "uri", Usage: "Substring match on the annotation URI"},
		&cli.StringFlag{Name: "quote", Usage: "Substring match on the highlighted text"},
		&cli.StringFlag{Name: "text", Usage: "Substring match on the annotation body"},
		&cli.StringFlag{Name: "any", Usage: "Substring match on quote, text, uri, or tags"},
		&cli.StringSliceFlag{Name: "tags", Usage: "Annotations carrying these tags"},
		&cli.StringFlag{
			Name:  "mode",
			Usage: "Tag match mode: all or any",
			Value: filter.ModeAll,
		},
		&cli.StringSliceFlag{Name: "exclude-tags", Usage: "Annotations not carrying these tags"},
		&cli.StringSliceFlag{Name: "groups", Usage: "Restrict to these group ids"},
		&cli.BoolFlag{Name: "page-notes-only", Usage: "Page notes only"},
		&cli.BoolFlag{Name: "annotations-only", Usage: "Highlight annotations only"},
		&cli.BoolFlag{Name: "not", Usage: "Invert the whole filter"},
	}
}

func filterSpec(cmd *cli.Command) (filter.Spec, error) {
	spec := filter.Spec{
		IncludeUpdated: cmd.Bool("include-updated"),
		URI:            cmd.String("uri"),
		Quote:          cmd.String("quote"),
		Text:           cmd.String("text"),
		Any:            cmd.String("any"),
		Tags:           cmd.StringSlice("tags"),
		Mode:           cmd.String("mode"),
		ExcludeTags:    cmd.StringSlice("exclude-tags"),
		Groups:         cmd.StringSlice("groups"),
		PageOnly:       cmd.Bool("page-notes-only"),
		AnnotationOnly: cmd.Bool("annotations-only"),
		Not:            cmd.Bool("not"),
	}
	var err error
	if spec.From, err = parseInstant(cmd.String("from")); err != nil {
		return spec, fmt.Errorf("--from: %w", err)
	}
	if spec.Before, err = parseInstant(cmd.String("before")); err != nil {
		return spec, fmt.Errorf("--before: %w", err)
	}
	return spec, nil
}

// parseInstant accepts an RFC 3339 instant or a bare date taken as
// midnight UTC.
func parseInstant(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("cannot parse %q as a time", s)
}

// withApp loads the config, wires the application, and runs fn.
func withApp(cmd *cli.Command, fn func(app *internal.App) error) error {
	path := cmd.String("config")
	if path == "" {
		path = internal.DefaultConfigPath()
	}
	cfg, err := internal.LoadConfig(path)
	if err != nil {
		return err
	}
	app, err := internal.NewApp(internal.WithConfig(cfg))
	if err != nil {
		return err
	}
	defer app.Close() //nolint:errcheck
	return fn(app)
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Pull new and updated annotations into the local index",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withApp(cmd, func(app *internal.App) error {
				return app.Sync(ctx)
			})
		},
	}
}

func tagCommand() *cli.Command {
	return &cli.Command{
		Name:      "tag",
		Usage:     "Add or remove a tag on matching annotations",
		ArgsUsage: "TAG",
		Flags: append(filterFlags(),
			&cli.BoolFlag{Name: "delete", Aliases: []string{"d"}, Usage: "Remove the tag instead of adding it"},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			tag := cmd.Args().First()
			if tag == "" {
				return fmt.Errorf("tag: a tag argument is required")
			}
			spec, err := filterSpec(cmd)
			if err != nil {
				return err
			}
			return withApp(cmd, func(app *internal.App) error {
				return app.Tag(ctx, spec, tag, cmd.Bool("delete"))
			})
		},
	}
}

func deleteCommand() *cli.Command {
	return &cli.Command{
		Name:  "delete",
		Usage: "Delete matching annotations from the service and the index",
		Flags: append(filterFlags(),
			&cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "Skip the confirmation prompt"},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if !cmd.Bool("force") {
				if !confirm("Delete all matching annotations?") {
					return apperr.ErrDoingNothing
				}
			}
			spec, err := filterSpec(cmd)
			if err != nil {
				return err
			}
			return withApp(cmd, func(app *internal.App) error {
				return app.Delete(ctx, spec)
			})
		},
	}
}

func viewCommand() *cli.Command {
	return &cli.Command{
		Name:      "view",
		Usage:     "Render matching indexed annotations to the terminal",
		ArgsUsage: "[ANNOTATION_ID]",
		Flags:     filterFlags(),
		Action: func(_ context.Context, cmd *cli.Command) error {
			spec, err := filterSpec(cmd)
			if err != nil {
				return err
			}
			return withApp(cmd, func(app *internal.App) error {
				return app.View(spec, cmd.Args().First())
			})
		},
	}
}

func moveCommand() *cli.Command {
	return &cli.Command{
		Name:      "move",
		Usage:     "Move matching annotations into another group",
		ArgsUsage: "GROUP_ID",
		Flags:     filterFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			target := cmd.Args().First()
			if target == "" {
				return fmt.Errorf("move: a target group id is required")
			}
			spec, err := filterSpec(cmd)
			if err != nil {
				return err
			}
			return withApp(cmd, func(app *internal.App) error {
				return app.Move(ctx, target, spec)
			})
		},
	}
}

func makeCommand() *cli.Command {
	return &cli.Command{
		Name:  "make",
		Usage: "Render the knowledge base folder from the index",
		Flags: append(filterFlags(),
			&cli.BoolFlag{Name: "clear", Usage: "Empty the knowledge base folder first"},
			&cli.BoolFlag{Name: "no-sync", Usage: "Skip the sync before rendering"},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			spec, err := filterSpec(cmd)
			if err != nil {
				return err
			}
			return withApp(cmd, func(app *internal.App) error {
				return app.Make(ctx, spec, cmd.Bool("clear"), !cmd.Bool("no-sync"))
			})
		},
	}
}

func clearCommand() *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "Empty the local index and the knowledge base folder",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "Skip the confirmation prompt"},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			if !cmd.Bool("force") {
				if !confirm("Clear the local index and knowledge base?") {
					return apperr.ErrDoingNothing
				}
			}
			return withApp(cmd, func(app *internal.App) error {
				return app.Clear()
			})
		},
	}
}

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Inspect the configuration",
		Commands: []*cli.Command{
			{
				Name:  "default",
				Usage: "Print the default configuration as YAML",
				Action: func(_ context.Context, _ *cli.Command) error {
					return pkgconfig.Dump("", internal.NewDefaultConfig())
				},
			},
			{
				Name:  "where",
				Usage: "Print the config file location",
				Action: func(_ context.Context, cmd *cli.Command) error {
					path := cmd.String("config")
					if path == "" {
						path = internal.DefaultConfigPath()
					}
					fmt.Println(path)
					return nil
				},
			},
		},
	}
}

func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	var answer string
	if _, err := fmt.Scanln(&answer); err != nil {
		return false
	}
	return answer == "y" || answer == "Y" || answer == "yes"
}
