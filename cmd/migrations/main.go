package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/vncsmyrnk/scorepoll/internal/adapters/repository/postgres"
	"github.com/vncsmyrnk/scorepoll/internal/config"
	"github.com/vncsmyrnk/scorepoll/internal/logger"
)

// Usage: migrations [-dir path] up|down|<migration name>
func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Get().Fatal("invalid configuration", "err", err)
	}

	dir := flag.String("dir", filepath.Join(".", "internal", "adapters", "repository", "postgres", "migrations"), "Migrations directory")
	flag.Parse()
	if flag.NArg() < 1 {
		logger.Get().Fatal("a migration name, up or down is required")
	}

	logger.Initialize(cfg.LogLevel)
	log := logger.Job("migrations")

	files, err := migrationFiles(*dir, flag.Arg(0))
	if err != nil {
		log.Fatal("failed to resolve migrations", "err", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.GetDatabaseURL())
	if err != nil {
		log.Fatal("failed to connect", "err", err)
	}
	defer db.Close()

	if err := postgres.ApplyMigrations(ctx, db, files); err != nil {
		db.Close()
		log.Fatal("migration failed", "err", err)
	}

	log.Info("migrations executed successfully", "files", len(files))
}

func migrationFiles(dir, name string) ([]string, error) {
	switch name {
	case "up":
		return postgres.MigrationFiles(dir, "up.sql")
	case "down":
		files, err := postgres.MigrationFiles(dir, "down.sql")
		for i, j := 0, len(files)-1; i < j; i, j = i+1, j-1 {
			files[i], files[j] = files[j], files[i]
		}
		return files, err
	}

	path, err := migrationFilePath(dir, name)
	if err != nil {
		return nil, err
	}
	return []string{path}, nil
}

func migrationFilePath(dir, name string) (string, error) {
	regex, err := regexp.Compile(fmt.Sprintf(`^.*%s\.sql$`, regexp.QuoteMeta(name)))
	if err != nil {
		return "", fmt.Errorf("invalid pattern: %w", err)
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		if regex.MatchString(f.Name()) {
			return filepath.Join(dir, f.Name()), nil
		}
	}

	return "", fmt.Errorf("migration file %q not found in %s", name, dir)
}
