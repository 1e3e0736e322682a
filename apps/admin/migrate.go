package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/shule/storage/database"
)

type migrateFunc func(ctx context.Context, command string, args ...string) error

func (cli *commandLine) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate COMMAND [ARGS...]",
		Short: "Run database migrations",
		Long: `Run the embedded database migrations. COMMAND is any goose command:
  up, up-by-one, up-to VERSION, down, down-to VERSION, redo, reset, status, version, fix`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.migrate(commandContext(cmd), args[0], args[1:]...)
		},
	}
}

func (cli *commandLine) migrateDB(ctx context.Context, command string, args ...string) error {
	if cli.conf.Database.AdminUser != "" {
		if err := database.CreateIfNotExist(ctx, cli.conf); err != nil {
			return err
		}
	}
	db, err := database.Open(ctx, cli.conf)
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			cli.logger.Error("closing database", err)
		}
	}()
	return database.Migrate(ctx, db, command, args...)
}
