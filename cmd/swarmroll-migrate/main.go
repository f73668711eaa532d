package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuemby/swarmroll/pkg/log"
	"github.com/cuemby/swarmroll/pkg/storage"
)

var (
	dataDir     = flag.String("data-dir", "/var/lib/swarmroll", "Directory of the bolt store to copy from")
	postgresDSN = flag.String("postgres-dsn", os.Getenv("SWARMROLL_POSTGRES_DSN"), "Postgres connection string to copy to")
	dryRun      = flag.Bool("dry-run", false, "Show what would be migrated without making changes")
	overwrite   = flag.Bool("overwrite", false, "Replace services that already exist in postgres")
)

func main() {
	flag.Parse()
	log.Init(log.Config{Level: log.InfoLevel})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Errorf("Migration failed", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	if *postgresDSN == "" {
		return errors.New("--postgres-dsn or SWARMROLL_POSTGRES_DSN is required")
	}

	src, err := storage.NewBoltStore(*dataDir)
	if err != nil {
		return fmt.Errorf("failed to open bolt store: %w", err)
	}
	defer src.Close()

	dst, err := storage.NewPostgresStore(ctx, *postgresDSN)
	if err != nil {
		return fmt.Errorf("failed to open postgres store: %w", err)
	}
	defer dst.Close()

	stats, err := migrate(ctx, src, dst, *dryRun, *overwrite)
	if err != nil {
		return err
	}

	logger := log.WithComponent("migrate")
	event := logger.Info().
		Int("created", stats.Created).
		Int("updated", stats.Updated).
		Int("skipped", stats.Skipped)
	if *dryRun {
		event.Msg("Dry run completed, no changes made")
	} else {
		event.Msg("Migration completed")
	}
	return nil
}

type migrateStats struct {
	Created int
	Updated int
	Skipped int
}

// migrate copies every service of src into dst. Existing services in dst are
// skipped unless overwrite is set.
func migrate(ctx context.Context, src, dst storage.Store, dryRun, overwrite bool) (migrateStats, error) {
	logger := log.WithComponent("migrate")
	var stats migrateStats

	services, err := src.ListServices(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to list source services: %w", err)
	}
	logger.Info().Int("services", len(services)).Bool("dry_run", dryRun).Msg("Found services to migrate")

	for _, svc := range services {
		_, err := dst.GetService(ctx, svc.Name)
		exists := err == nil
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return stats, fmt.Errorf("failed to check service %s: %w", svc.Name, err)
		}

		l := logger.With().Str("service", svc.Name).Str("image", svc.Image()).Logger()
		switch {
		case exists && !overwrite:
			stats.Skipped++
			l.Warn().Msg("Service already exists, skipping")
		case exists:
			stats.Updated++
			if dryRun {
				l.Info().Msg("Would update service")
				continue
			}
			if err := dst.UpdateService(ctx, svc); err != nil {
				return stats, fmt.Errorf("failed to update service %s: %w", svc.Name, err)
			}
			l.Info().Msg("Service updated")
		default:
			stats.Created++
			if dryRun {
				l.Info().Msg("Would create service")
				continue
			}
			if err := dst.CreateService(ctx, svc); err != nil {
				return stats, fmt.Errorf("failed to create service %s: %w", svc.Name, err)
			}
			l.Info().Msg("Service created")
		}
	}
	return stats, nil
}
