package main

import (
	"bytes"
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jingkaihe/unityscope/pkg/config"
	"github.com/jingkaihe/unityscope/pkg/document"
	"github.com/jingkaihe/unityscope/pkg/presenter"
	"github.com/jingkaihe/unityscope/pkg/unityerr"
)

var docCmd = &cobra.Command{
	Use:   "doc",
	Short: "Read and update fields of serialized documents",
}

var docGetCmd = &cobra.Command{
	Use:   "get <file> [key...]",
	Short: "Print the container mapping, or selected keys of it, as YAML",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDocGet(appConfig, args[0], args[1:])
	},
}

var docSetCmd = &cobra.Command{
	Use:   "set <file> key=value...",
	Short: "Upsert fields of the container mapping",
	Long: `Each value is parsed as YAML, so numbers, booleans and flow mappings such as
icon={fileID: 0} keep their type. Fields that are not named are left exactly as
they are, as are the document's header lines.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		return runDocSet(cmd.Context(), appConfig, args[0], args[1:], dryRun)
	},
}

func init() {
	docSetCmd.Flags().Bool("dry-run", false, "Print the diff instead of writing the file")

	docCmd.AddCommand(docGetCmd)
	docCmd.AddCommand(docSetCmd)
}

func runDocGet(cfg config.Config, path string, keys []string) error {
	store := document.NewStore(cfg.DocumentOptions()...)
	container, err := store.Container(path)
	if err != nil {
		return err
	}

	if len(keys) > 0 {
		container, err = selectKeys(path, container, keys)
		if err != nil {
			return err
		}
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(container); err != nil {
		return errors.Wrap(err, "failed to encode fields")
	}
	if err := enc.Close(); err != nil {
		return errors.Wrap(err, "failed to encode fields")
	}
	presenter.Data(buf.String())
	return nil
}

func selectKeys(path string, mapping *yaml.Node, keys []string) (*yaml.Node, error) {
	out := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, key := range keys {
		found := false
		for i := 0; i+1 < len(mapping.Content); i += 2 {
			if mapping.Content[i].Value == key {
				out.Content = append(out.Content, mapping.Content[i], mapping.Content[i+1])
				found = true
				break
			}
		}
		if !found {
			return nil, unityerr.SchemaMismatch(path, "missing field %q", key)
		}
	}
	return out, nil
}

func runDocSet(ctx context.Context, cfg config.Config, path string, assignments []string, dryRun bool) error {
	fields, err := parseAssignments(assignments)
	if err != nil {
		return err
	}

	store := document.NewStore(cfg.DocumentOptions()...)
	if dryRun {
		diff, err := store.Diff(path, fields)
		if err != nil {
			return err
		}
		if diff == "" {
			presenter.Info("No changes")
			return nil
		}
		presenter.Diff(diff)
		return nil
	}

	if err := store.Save(ctx, path, fields); err != nil {
		return err
	}
	presenter.Success("Updated " + path)
	return nil
}

// parseAssignments turns key=value arguments into a mapping node. Values are
// parsed as YAML; an empty value is the empty string. A repeated key keeps the
// last value.
func parseAssignments(assignments []string) (*yaml.Node, error) {
	mapping := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, assignment := range assignments {
		key, raw, ok := strings.Cut(assignment, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, errors.Errorf("invalid assignment %q, expected key=value", assignment)
		}

		value, err := parseValue(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid value for %s", key)
		}

		replaced := false
		for i := 0; i+1 < len(mapping.Content); i += 2 {
			if mapping.Content[i].Value == key {
				mapping.Content[i+1] = value
				replaced = true
				break
			}
		}
		if !replaced {
			mapping.Content = append(mapping.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
				value,
			)
		}
	}
	return mapping, nil
}

func parseValue(raw string) (*yaml.Node, error) {
	if strings.TrimSpace(raw) == "" {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: raw, Style: yaml.DoubleQuotedStyle}, nil
	}

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) != 1 {
		return nil, errors.Errorf("expected a single YAML value, got %q", raw)
	}
	value := doc.Content[0]
	// keep the value on the key's line
	value.HeadComment, value.LineComment, value.FootComment = "", "", ""
	return value, nil
}
