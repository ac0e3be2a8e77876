// Package main provides the kernel's schema migration CLI: a thin
// wrapper over internal/migrate's goose-backed Migrator.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"go.uber.org/zap"

	"github.com/farant/smaragda/internal/config"
	"github.com/farant/smaragda/internal/migrate"
)

func main() {
	_ = godotenv.Load()

	command := flag.String("command", "up", "migration command: up, up-to, down, status, version")
	version := flag.Int64("version", 0, "target version (only used by -command=up-to)")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := config.NewConfig(log)
	if err != nil {
		log.Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	zapLog, err := zap.NewDevelopment()
	if err != nil {
		log.Error("build logger", slog.Any("error", err))
		os.Exit(1)
	}
	defer zapLog.Sync()

	pool, err := pgxpool.New(context.Background(), cfg.Database.DSN())
	if err != nil {
		log.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	sqldb := stdlib.OpenDBFromPool(pool)
	defer sqldb.Close()
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	m := migrate.NewMigrator(db, zapLog)
	ctx := context.Background()

	switch *command {
	case "up":
		err = m.Up(ctx)
	case "up-to":
		err = m.UpTo(ctx, *version)
	case "down":
		err = m.Down(ctx)
	case "status":
		err = m.Status(ctx)
	case "version":
		var v int64
		v, err = m.Version(ctx)
		if err == nil {
			fmt.Printf("current version: %d\n", v)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown -command %q (want up, up-to, down, status, version)\n", *command)
		os.Exit(1)
	}

	if err != nil {
		log.Error("migration command failed", slog.String("command", *command), slog.Any("error", err))
		os.Exit(1)
	}
}
