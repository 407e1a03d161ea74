package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"aqua-rag/internal/helper"
)

const configFilePath = "./configs/config.yaml"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		log.Fatal().Err(err).Msg("aqua-rag failed")
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "aqua-rag",
		Usage: "Answer water and climate questions grounded in your PDF documents",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the yaml configuration file",
				Value:   configFilePath,
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (trace, debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: func(c *cli.Context) error {
			helper.SetupLogger(c.String("log-level"), os.Stderr)
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "index",
				Usage:  "Add PDF documents to the vector index",
				Action: indexCommand,
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:    "files",
						Aliases: []string{"f"},
						Usage:   "PDF files to index",
					},
					&cli.StringFlag{
						Name:    "folder",
						Aliases: []string{"d"},
						Usage:   "Index every PDF in this folder",
					},
					&cli.BoolFlag{
						Name:  "no-metadata",
						Usage: "Do not record the documents in the metadata store",
					},
				},
			},
			{
				Name:   "ask",
				Usage:  "Ask a question",
				Action: askCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "query",
						Aliases:  []string{"q"},
						Usage:    "Question to answer",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "chat",
						Usage: "Chat id to continue; a new one is generated when empty",
					},
				},
			},
			{
				Name:   "status",
				Usage:  "Show which collaborators are configured and the index state",
				Action: statusCommand,
			},
		},
	}
}
