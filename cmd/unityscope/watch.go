package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/unityscope/pkg/assetindex"
	"github.com/jingkaihe/unityscope/pkg/config"
	"github.com/jingkaihe/unityscope/pkg/presenter"
)

// WatchConfig holds configuration for the watch command
type WatchConfig struct {
	DebounceTime int
	Cache        bool
}

// NewWatchConfig creates a new WatchConfig with default values
func NewWatchConfig() *WatchConfig {
	return &WatchConfig{
		DebounceTime: 300,
	}
}

// Validate validates the WatchConfig and returns an error if invalid
func (c *WatchConfig) Validate() error {
	if c.DebounceTime < 0 {
		return errors.Errorf("debounce time cannot be negative: %d", c.DebounceTime)
	}
	return nil
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep the index current while the project changes",
	Long: `Builds the index, then rebuilds it whenever files under the root change.
Bursts of changes are debounced into a single rebuild. With --cache every
successful rebuild also refreshes the cached snapshot.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c := getWatchConfigFromFlags(cmd)
		if err := c.Validate(); err != nil {
			return err
		}
		return runWatch(cmd.Context(), appConfig, c)
	},
}

func init() {
	defaults := NewWatchConfig()
	watchCmd.Flags().IntP("debounce", "d", defaults.DebounceTime, "Debounce time in milliseconds for file change events")
	watchCmd.Flags().Bool("cache", defaults.Cache, "Refresh the cached snapshot after every rebuild")
}

func getWatchConfigFromFlags(cmd *cobra.Command) *WatchConfig {
	c := NewWatchConfig()
	if v, err := cmd.Flags().GetInt("debounce"); err == nil {
		c.DebounceTime = v
	}
	if v, err := cmd.Flags().GetBool("cache"); err == nil {
		c.Cache = v
	}
	return c
}

func runWatch(ctx context.Context, cfg config.Config, c *WatchConfig) error {
	onRebuild := func(idx *assetindex.Index, err error) {
		if err != nil {
			reportSkipped(err)
		}
		presenter.Info(fmt.Sprintf("[%s] %d assets indexed", time.Now().Format("15:04:05"), idx.Len()))
		if c.Cache {
			if err := saveSnapshot(ctx, cfg, idx); err != nil {
				presenter.Error(err, "Failed to refresh cache")
			}
		}
	}

	w, err := assetindex.NewWatcher(ctx, cfg.Root, cfg.ScanConfig(),
		assetindex.WithDebounce(time.Duration(c.DebounceTime)*time.Millisecond),
		assetindex.WithRebuildHook(onRebuild),
	)
	if err != nil {
		return err
	}
	defer w.Close()

	presenter.Success(fmt.Sprintf("Watching %s (%d assets indexed)", cfg.Root, w.Current().Len()))
	if c.Cache {
		if err := saveSnapshot(ctx, cfg, w.Current()); err != nil {
			return err
		}
	}

	return w.Run(ctx)
}
