package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jingkaihe/unityscope/pkg/assetindex"
	"github.com/jingkaihe/unityscope/pkg/assetref"
	"github.com/jingkaihe/unityscope/pkg/config"
	"github.com/jingkaihe/unityscope/pkg/indexcache"
	"github.com/jingkaihe/unityscope/pkg/presenter"
)

// ResolveConfig holds configuration for the resolve commands
type ResolveConfig struct {
	Kind      string
	FromCache bool
}

// NewResolveConfig creates a new ResolveConfig with default values
func NewResolveConfig() *ResolveConfig {
	return &ResolveConfig{}
}

// Validate rejects unknown reference kinds.
func (c *ResolveConfig) Validate() error {
	if c.Kind == "" {
		return nil
	}
	if _, ok := assetref.KindByName(c.Kind); !ok {
		names := make([]string, 0, len(assetref.Kinds()))
		for _, k := range assetref.Kinds() {
			names = append(names, strings.ToLower(k.Name))
		}
		return errors.Errorf("unknown kind %q, expected one of: %s", c.Kind, strings.Join(names, ", "))
	}
	return nil
}

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve assets by GUID or by file name",
}

var resolveGUIDCmd = &cobra.Command{
	Use:   "guid <guid>",
	Short: "Print the asset path a GUID identifies",
	Long: `Prints the path of the asset whose sidecar declares the GUID. With --kind the
serialized reference record for that asset kind is printed as well.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := getResolveConfigFromFlags(cmd)
		if err := c.Validate(); err != nil {
			return err
		}
		return runResolveGUID(cmd.Context(), appConfig, c, args[0])
	},
}

var resolveNameCmd = &cobra.Command{
	Use:   "name <fragment>",
	Short: "Print the first asset whose file name contains a fragment",
	Long: `Matches the fragment against asset file names (not directories). When several
assets match, the one whose path sorts first is printed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := getResolveConfigFromFlags(cmd)
		if err := c.Validate(); err != nil {
			return err
		}
		return runResolveName(cmd.Context(), appConfig, c, args[0])
	},
}

func init() {
	defaults := NewResolveConfig()
	for _, cmd := range []*cobra.Command{resolveGUIDCmd, resolveNameCmd} {
		cmd.Flags().StringP("kind", "k", defaults.Kind, "Also print the reference record for this kind (texture, texture2d, material, sprite)")
		cmd.Flags().Bool("from-cache", defaults.FromCache, "Resolve against the cached snapshot instead of scanning")
		resolveCmd.AddCommand(cmd)
	}
}

func getResolveConfigFromFlags(cmd *cobra.Command) *ResolveConfig {
	c := NewResolveConfig()
	if v, err := cmd.Flags().GetString("kind"); err == nil {
		c.Kind = v
	}
	if v, err := cmd.Flags().GetBool("from-cache"); err == nil {
		c.FromCache = v
	}
	return c
}

func runResolveGUID(ctx context.Context, cfg config.Config, c *ResolveConfig, guid string) error {
	idx, err := openIndex(ctx, cfg, c.FromCache)
	if err != nil {
		return err
	}
	path, err := idx.ResolveByGUID(guid)
	if err != nil {
		return err
	}

	presenter.Data(path)
	return printRecord(c.Kind, guid)
}

func runResolveName(ctx context.Context, cfg config.Config, c *ResolveConfig, fragment string) error {
	idx, err := openIndex(ctx, cfg, c.FromCache)
	if err != nil {
		return err
	}
	entry, err := idx.LookupByNameSubstring(fragment)
	if err != nil {
		return err
	}

	presenter.Data(entry.AssetPath())
	presenter.Info(fmt.Sprintf("guid: %s", entry.GUID))
	return printRecord(c.Kind, entry.GUID)
}

func printRecord(kindName, guid string) error {
	if kindName == "" {
		return nil
	}
	kind, _ := assetref.KindByName(kindName)
	out, err := yaml.Marshal(kind.Record(guid))
	if err != nil {
		return errors.Wrap(err, "failed to encode reference")
	}
	presenter.Data(string(out))
	return nil
}

// openIndex scans the project, or loads the cached snapshot when fromCache is set.
func openIndex(ctx context.Context, cfg config.Config, fromCache bool) (*assetindex.Index, error) {
	if !fromCache {
		return buildIndex(ctx, cfg)
	}

	sqlDB, _, err := openCache(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer sqlDB.Close()

	idx, _, err := indexcache.Load(ctx, sqlDB, cfg.Root)
	if err != nil {
		return nil, err
	}
	return idx, nil
}
