package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/unityscope/pkg/logger"
	"github.com/jingkaihe/unityscope/pkg/meta"
	"github.com/jingkaihe/unityscope/pkg/presenter"
)

var metaCmd = &cobra.Command{
	Use:   "meta",
	Short: "Manage .meta sidecar files",
}

var metaInitCmd = &cobra.Command{
	Use:   "init <asset>...",
	Short: "Create missing sidecars with fresh GUIDs",
	Long: `Writes <asset>.meta with a new GUID for every asset that does not have a
sidecar yet. Existing sidecars are validated and left untouched.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMetaInit(cmd.Context(), args)
	},
}

var metaShowCmd = &cobra.Command{
	Use:   "show <asset>",
	Short: "Print the GUID recorded in an asset's sidecar",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sidecar, err := meta.Read(meta.SidecarPath(args[0]))
		if err != nil {
			return err
		}
		presenter.Data(sidecar.GUID)
		return nil
	},
}

func init() {
	metaCmd.AddCommand(metaInitCmd)
	metaCmd.AddCommand(metaShowCmd)
}

func runMetaInit(ctx context.Context, assets []string) error {
	created := 0
	for _, asset := range assets {
		sidecar, isNew, err := meta.Ensure(asset)
		if err != nil {
			return err
		}
		logger.G(ctx).WithField("asset", asset).WithField("created", isNew).Debug("ensured sidecar")
		if isNew {
			created++
			presenter.Success(fmt.Sprintf("%s %s", meta.SidecarPath(asset), sidecar.GUID))
		} else {
			presenter.Info(fmt.Sprintf("%s already has guid %s", asset, sidecar.GUID))
		}
	}
	presenter.Info(fmt.Sprintf("Created %d of %d sidecars", created, len(assets)))
	return nil
}
