package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/georgemunganga/pos-backend/internal/config"
	"github.com/georgemunganga/pos-backend/internal/platform/postgres"
)

func main() {
	app := &cli.App{
		Name:    config.ServiceName,
		Usage:   "point-of-sale and inventory backend",
		Version: config.ServiceVersion,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP and gRPC servers",
				Action: func(c *cli.Context) error { return serve(c.Context) },
			},
			{
				Name:  "migrate",
				Usage: "apply or roll back schema migrations",
				Subcommands: []*cli.Command{
					{
						Name:  "up",
						Usage: "apply all pending migrations",
						Action: func(c *cli.Context) error {
							return withDB(c.Context, postgres.MigrateUp)
						},
					},
					{
						Name:  "down",
						Usage: "roll back migrations",
						Flags: []cli.Flag{
							&cli.IntFlag{Name: "steps", Value: 1, Usage: "number of migrations to roll back"},
						},
						Action: func(c *cli.Context) error {
							steps := c.Int("steps")
							return withDB(c.Context, func(db *sql.DB) error { return postgres.MigrateDown(db, steps) })
						},
					},
				},
			},
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func withDB(ctx context.Context, fn func(db *sql.DB) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	db, err := postgres.Open(ctx, cfg.DatabaseURL, postgres.PoolConfig{MaxOpenConns: 2})
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db)
}
