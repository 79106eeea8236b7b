package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/tirestore-backend/pkg/config"
	"github.com/angelmondragon/tirestore-backend/pkg/db"
	"github.com/angelmondragon/tirestore-backend/pkg/logger"
	"github.com/angelmondragon/tirestore-backend/pkg/migrate"
)

type dbCommand func(ctx context.Context, m *migrate.Migrator, args options) error

type options struct {
	dir     string
	name    string
	version string
}

var dbCommands = map[string]dbCommand{
	"up": func(ctx context.Context, m *migrate.Migrator, _ options) error {
		applied, err := m.Up(ctx)
		fmt.Printf("applied %d migration(s)\n", applied)
		return err
	},
	"down": func(ctx context.Context, m *migrate.Migrator, _ options) error {
		return m.Down(ctx)
	},
	"status": func(ctx context.Context, m *migrate.Migrator, _ options) error {
		lines, err := m.Status(ctx)
		if err != nil {
			return err
		}
		for _, line := range lines {
			state := "pending"
			if line.Applied {
				state = "applied"
			}
			fmt.Printf("%-8s %d %s\n", state, line.Version, line.Path)
		}
		return nil
	},
	"version": func(ctx context.Context, m *migrate.Migrator, opts options) error {
		if opts.version == "" {
			return fmt.Errorf("missing -version")
		}
		return m.To(ctx, opts.version)
	},
}

func main() {
	var opts options
	cmd := flag.String("cmd", "up", "migration command: "+commandList())
	flag.StringVar(&opts.dir, "dir", "", "migrations directory (defaults to the embedded set; create uses "+migrate.DefaultDir+")")
	flag.StringVar(&opts.name, "name", "", "migration name for -cmd=create")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	_ = godotenv.Load()

	switch *cmd {
	case "create":
		dir := opts.dir
		if dir == "" {
			dir = migrate.DefaultDir
		}
		if opts.name == "" {
			exitf("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(dir, opts.name)
		if err != nil {
			exitf("create migration: %v", err)
		}
		fmt.Println("created migration:", path)
		return
	case "validate":
		if err := migrate.Validate(migrate.Source(opts.dir)); err != nil {
			exitf("migration validation failed: %v", err)
		}
		fmt.Println("migration validation passed")
		return
	}

	run, ok := dbCommands[*cmd]
	if !ok {
		exitf("unknown -cmd %q (want %s)", *cmd, commandList())
	}

	cfg, err := config.Load()
	if err != nil {
		exitf("load config: %v", err)
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{"env": cfg.App.Env, "cmd": *cmd})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "database unavailable", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		logg.Error(ctx, "sql handle unavailable", err)
		os.Exit(1)
	}
	migrator, err := migrate.New(sqlDB, migrate.Source(opts.dir))
	if err != nil {
		logg.Error(ctx, "migrator unavailable", err)
		os.Exit(1)
	}

	if err := run(ctx, migrator, opts); err != nil {
		logg.Error(ctx, "migration command failed", err)
		dbClient.Close()
		os.Exit(1)
	}
	logg.Info(ctx, "migration command complete")
}

func commandList() string {
	names := []string{"create", "validate"}
	for name := range dbCommands {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, "|")
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
