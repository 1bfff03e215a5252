package main

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/unityscope/pkg/assetindex"
	"github.com/jingkaihe/unityscope/pkg/config"
	"github.com/jingkaihe/unityscope/pkg/indexcache"
	"github.com/jingkaihe/unityscope/pkg/presenter"
)

// IndexConfig holds configuration for the index command
type IndexConfig struct {
	JSON  bool
	Cache bool
}

// NewIndexConfig creates a new IndexConfig with default values
func NewIndexConfig() *IndexConfig {
	return &IndexConfig{}
}

// indexedAsset is one row of `index --json` output.
type indexedAsset struct {
	GUID    string `json:"guid"`
	Asset   string `json:"asset"`
	Sidecar string `json:"sidecar"`
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Scan the project and list every indexed asset",
	Long: `Walks the project root for .meta sidecars whose asset extension is allowed
and prints each GUID with the asset it identifies. With --cache the result is
stored as a snapshot that resolve --from-cache can use later.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runIndex(cmd.Context(), appConfig, getIndexConfigFromFlags(cmd))
	},
}

func init() {
	defaults := NewIndexConfig()
	indexCmd.Flags().Bool("json", defaults.JSON, "Print the index as JSON")
	indexCmd.Flags().Bool("cache", defaults.Cache, "Store the index as a snapshot in the cache database")
}

func getIndexConfigFromFlags(cmd *cobra.Command) *IndexConfig {
	c := NewIndexConfig()
	if v, err := cmd.Flags().GetBool("json"); err == nil {
		c.JSON = v
	}
	if v, err := cmd.Flags().GetBool("cache"); err == nil {
		c.Cache = v
	}
	return c
}

func runIndex(ctx context.Context, cfg config.Config, c *IndexConfig) error {
	idx, err := buildIndex(ctx, cfg)
	if err != nil {
		return err
	}

	if c.Cache {
		if err := saveSnapshot(ctx, cfg, idx); err != nil {
			return err
		}
	}

	if c.JSON {
		rows := make([]indexedAsset, 0, idx.Len())
		for _, e := range idx.Entries() {
			rows = append(rows, indexedAsset{GUID: e.GUID, Asset: e.AssetPath(), Sidecar: e.SidecarPath})
		}
		out, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to encode index")
		}
		presenter.Data(string(out))
		return nil
	}

	rows := make([][]string, 0, idx.Len())
	for _, e := range idx.Entries() {
		rows = append(rows, []string{e.GUID, relativeTo(idx.Root(), e.AssetPath())})
	}
	presenter.Table([]string{"GUID", "ASSET"}, rows)
	presenter.Success(fmt.Sprintf("Indexed %d assets under %s", idx.Len(), idx.Root()))
	return nil
}

// buildIndex scans cfg.Root. Sidecars skipped under the collect policy are
// reported as warnings and do not fail the command.
func buildIndex(ctx context.Context, cfg config.Config) (*assetindex.Index, error) {
	idx, err := assetindex.Build(ctx, cfg.Root, cfg.ScanConfig())
	if idx == nil {
		return nil, err
	}
	reportSkipped(err)
	return idx, nil
}

func reportSkipped(err error) {
	if err == nil {
		return
	}
	var merr *multierror.Error
	if !errors.As(err, &merr) {
		presenter.Warning(err.Error())
		return
	}
	for _, skipped := range merr.WrappedErrors() {
		presenter.Warning(fmt.Sprintf("skipped: %v", skipped))
	}
}

func saveSnapshot(ctx context.Context, cfg config.Config, idx *assetindex.Index) error {
	sqlDB, path, err := openCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	snapshot, err := indexcache.Save(ctx, sqlDB, idx)
	if err != nil {
		return err
	}
	presenter.Success(fmt.Sprintf("Cached %d assets for %s in %s", snapshot.EntryCount, snapshot.Root, path))
	return nil
}

func relativeTo(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil {
		return filepath.ToSlash(rel)
	}
	return path
}
