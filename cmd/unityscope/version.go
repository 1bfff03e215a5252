package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/unityscope/pkg/presenter"
	"github.com/jingkaihe/unityscope/pkg/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	Long:  `Print the version information of unityscope in JSON format.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		json, err := version.Get().JSON()
		if err != nil {
			return errors.Wrap(err, "failed to format version info")
		}
		presenter.Data(json)
		return nil
	},
}
