// Command migrate manages the shop schema.
//
//	migrate [-dir path] up|down|status|version
//	migrate [-dir path] to <YYYYMMDDHHMMSS>
//	migrate [-dir path] create <title>
//	migrate [-dir path] validate
//
// Database commands use the migrations compiled into the binary unless -dir
// is given.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/seramic/shop-backend/pkg/config"
	"github.com/seramic/shop-backend/pkg/db"
	"github.com/seramic/shop-backend/pkg/logger"
	"github.com/seramic/shop-backend/pkg/migrate"
)

var errUsage = errors.New("usage: migrate [-dir path] up|down|status|version|to <version>|create <title>|validate")

func main() {
	dir := flag.String("dir", "", "migrations directory (default: embedded for database commands, "+migrate.DefaultDir+" for create/validate)")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "migrate"})
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logg, *dir, flag.Args()); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		logg.Error(ctx, "migrate failed", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logg *logger.Logger, dir string, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]

	fileDir := dir
	if fileDir == "" {
		fileDir = migrate.DefaultDir
	}
	switch cmd {
	case "create":
		if len(rest) != 1 {
			return errUsage
		}
		path, err := migrate.CreateSQLMigration(fileDir, rest[0])
		if err != nil {
			return err
		}
		fmt.Println("created", path)
		return nil
	case "validate":
		if err := migrate.ValidateDir(fileDir); err != nil {
			return err
		}
		fmt.Println("migrations ok")
		return nil
	}

	cfg, err := config.LoadDB()
	if err != nil {
		return err
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})
	source := dir
	if source == "" {
		source = "embedded"
	}
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "cmd": cmd, "source": source})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer dbClient.Close()
	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		return err
	}
	m, err := migrate.New(sqlDB, dir)
	if err != nil {
		return err
	}

	switch cmd {
	case "up":
		n, err := m.Up(ctx)
		if err != nil {
			return err
		}
		logg.Info(logg.WithField(ctx, "applied", n), "schema is current")
	case "down":
		if err := m.Down(ctx); err != nil {
			return err
		}
		logg.Info(ctx, "rolled back one migration")
	case "status":
		return m.Status(ctx, os.Stdout)
	case "version":
		v, err := m.Version(ctx)
		if err != nil {
			return err
		}
		fmt.Println(v)
	case "to":
		if len(rest) != 1 {
			return errUsage
		}
		target, err := migrate.ParseVersion(rest[0])
		if err != nil {
			return err
		}
		if err := m.To(ctx, target); err != nil {
			return err
		}
		logg.Info(logg.WithField(ctx, "version", target), "schema moved")
	default:
		return errUsage
	}
	return nil
}
