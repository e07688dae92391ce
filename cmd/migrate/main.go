package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/splax/taskflow/internal/app/migrate"
	"github.com/splax/taskflow/pkg/config"
	"github.com/splax/taskflow/pkg/logger"
)

func main() {
	command := flag.String("command", "up", "migrate command (up|status|down|backfill)")
	timeout := flag.Duration("timeout", time.Minute, "command timeout")
	target := flag.Int64("target", 0, "target version for down command (optional)")
	workspaceID := flag.String("workspace", "", "workspace receiving legacy records (backfill only)")
	flag.Parse()

	cfg, err := config.LoadEngineConfig()
	log := logger.NewWithFile("migrate", logger.ParseLevel(cfg.LogLevel), cfg.LogFile)
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	runner, err := migrate.New(pool, cfg.DatabaseURL, cfg.MigrationsDir, log)
	if err != nil {
		log.Error("failed to configure migration runner", "error", err)
		os.Exit(1)
	}
	defer runner.Close()

	switch *command {
	case "up":
		err = runner.Up(ctx)
	case "status":
		err = runner.Status(ctx)
	case "down":
		err = runner.Down(ctx, *target)
	case "backfill":
		var rows int64
		if rows, err = runner.Backfill(ctx, *workspaceID); err == nil {
			log.Info("backfill finished", "workspace_id", *workspaceID, "rows", rows)
		}
	default:
		log.Error("unsupported command", "command", *command)
		os.Exit(1)
	}
	if err != nil {
		log.Error("migration command failed", "command", *command, "error", err)
		os.Exit(1)
	}

	log.Info("migration command completed", "command", *command)
}
