package main

import (
	"context"
	"database/sql"
	"log"
	"os"

	"github.com/trezcool/fieldpro/core"
	logsvc "github.com/trezcool/fieldpro/services/logger"
	"github.com/trezcool/fieldpro/storage"
	"github.com/trezcool/fieldpro/storage/postgres"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	logger.Enable(!conf.Debug)

	cli := commandLine{
		out: os.Stdout,
		openRepos: func(ctx context.Context) (*storage.Repositories, error) {
			return storage.Open(ctx, conf, logger)
		},
		openDB: func(ctx context.Context) (*sql.DB, error) {
			if err := postgres.CreateIfNotExist(ctx, conf.Database); err != nil {
				return nil, err
			}
			db, err := postgres.Open(conf.Database)
			if err != nil {
				return nil, err
			}
			return db.DB, nil
		},
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error("admin: "+err.Error(), err)
		}
		os.Exit(1)
	}
}
