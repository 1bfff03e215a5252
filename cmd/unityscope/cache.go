package main

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/unityscope/pkg/config"
	"github.com/jingkaihe/unityscope/pkg/db"
	"github.com/jingkaihe/unityscope/pkg/db/migrations"
	"github.com/jingkaihe/unityscope/pkg/indexcache"
	"github.com/jingkaihe/unityscope/pkg/presenter"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage cached index snapshots",
}

var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the snapshot stored for the project root",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runCacheStatus(cmd.Context(), appConfig)
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the snapshot stored for the project root",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runCacheClear(cmd.Context(), appConfig)
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatusCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}

func openCache(ctx context.Context, cfg config.Config) (*sqlx.DB, string, error) {
	path, err := cfg.CachePath()
	if err != nil {
		return nil, "", err
	}
	sqlDB, err := db.OpenMigrated(ctx, path, migrations.All())
	if err != nil {
		return nil, "", errors.Wrapf(err, "failed to open index cache %s", path)
	}
	return sqlDB, path, nil
}

func runCacheStatus(ctx context.Context, cfg config.Config) error {
	sqlDB, path, err := openCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	versions, err := db.NewMigrationRunner(sqlDB).AppliedVersions(ctx)
	if err != nil {
		return err
	}

	presenter.Section("Index Cache")
	presenter.Info(fmt.Sprintf("Database: %s", path))
	presenter.Info(fmt.Sprintf("Schema: %d/%d migrations applied", len(versions), len(migrations.All())))

	snapshot, err := indexcache.Info(ctx, sqlDB, cfg.Root)
	if errors.Is(err, indexcache.ErrNoSnapshot) {
		presenter.Warning(fmt.Sprintf("No snapshot for %s; run `unityscope index --cache`", cfg.Root))
		return nil
	}
	if err != nil {
		return err
	}

	presenter.Table([]string{"ROOT", "ASSETS", "INDEXED AT"}, [][]string{{
		snapshot.Root,
		fmt.Sprintf("%d", snapshot.EntryCount),
		snapshot.IndexedAt.Local().Format("2006-01-02 15:04:05"),
	}})
	return nil
}

func runCacheClear(ctx context.Context, cfg config.Config) error {
	sqlDB, _, err := openCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if err := indexcache.Delete(ctx, sqlDB, cfg.Root); err != nil {
		return err
	}
	presenter.Success(fmt.Sprintf("Cleared cached snapshot for %s", cfg.Root))
	return nil
}
