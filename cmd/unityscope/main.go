package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jingkaihe/unityscope/pkg/config"
	"github.com/jingkaihe/unityscope/pkg/logger"
	"github.com/jingkaihe/unityscope/pkg/presenter"
	"github.com/jingkaihe/unityscope/pkg/unityerr"
)

// appConfig is resolved once per invocation before any subcommand runs.
var appConfig config.Config

var rootCmd = &cobra.Command{
	Use:   "unityscope",
	Short: "Index Unity asset GUIDs and patch serialized documents",
	Long: `unityscope scans a Unity project for .meta sidecars, resolves asset
references by GUID or file name, and merges typed field updates into
serialized .asset documents without disturbing anything else in them.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return loadConfig(cmd, viper.GetViper())
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Config file (default ./unityscope.yaml, then ~/.unityscope/unityscope.yaml)")
	flags.String("root", ".", "Project directory to scan")
	flags.String("log-level", "info", "Log level (trace, debug, info, warn, error)")
	flags.String("log-format", "fmt", "Log format (fmt or json)")
	flags.BoolP("quiet", "q", false, "Only print data, no status messages")

	viper.BindPFlag("root", flags.Lookup("root"))
	viper.BindPFlag("log_level", flags.Lookup("log-level"))
	viper.BindPFlag("log_format", flags.Lookup("log-format"))

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(docCmd)
	rootCmd.AddCommand(metaCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)
}

func loadConfig(cmd *cobra.Command, v *viper.Viper) error {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		v.SetConfigFile(path)
	}
	if err := config.Configure(v); err != nil {
		return err
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	if err := logger.SetLogLevel(cfg.LogLevel); err != nil {
		return err
	}
	logger.SetLogFormat(cfg.LogFormat)

	quiet, _ := cmd.Flags().GetBool("quiet")
	presenter.SetQuiet(quiet)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	fields := logrus.Fields{"command": cmd.CommandPath(), "root": cfg.Root}
	cmd.Flags().Visit(func(flag *pflag.Flag) {
		fields["flag."+flag.Name] = flag.Value.String()
	})
	logger.G(ctx).WithFields(fields).Debug("running command")

	appConfig = cfg
	return nil
}

// exitCode maps lookup misses to 2 so scripts can tell them apart from failures.
func exitCode(err error) int {
	switch unityerr.KindOf(err) {
	case unityerr.KindGUIDNotFound, unityerr.KindNameNotFound:
		return 2
	default:
		return 1
	}
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		presenter.Error(err, "")
		cancel()
		os.Exit(exitCode(err))
	}
}
