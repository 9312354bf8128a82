package main

import (
	"github.com/spf13/cobra"

	"github.com/trezcool/fieldpro/storage/postgres"
)

var runMigrationsFunc = postgres.RunMigrations // mockable

func (cli *commandLine) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate COMMAND [ARGS...]",
		Short: "Run a goose command (up, down, status, redo, version...) on the postgres database",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				_ = cmd.Usage()
				return errHelp
			}
			db, err := cli.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()
			return runMigrationsFunc(db, args[0], args[1:]...)
		},
	}
}
