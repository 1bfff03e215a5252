package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/unityscope/pkg/config"
	"github.com/jingkaihe/unityscope/pkg/document"
	"github.com/jingkaihe/unityscope/pkg/presenter"
	"github.com/jingkaihe/unityscope/pkg/unityerr"
)

// capture routes presenter output into buffers for the duration of the test.
func capture(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var out, errOut bytes.Buffer
	presenter.SetDefault(presenter.NewWithOptions(&out, &errOut, presenter.ColorNever))
	t.Cleanup(func() { presenter.SetDefault(presenter.New()) })
	return &out, &errOut
}

func testConfig(t *testing.T, root string) config.Config {
	t.Helper()
	return config.Config{
		Root: root,
		Scan: config.ScanSettings{
			Extensions:  []string{"png", "jpg", "hdr", "asset", "mat"},
			OnError:     "abort",
			OnDuplicate: "last_wins",
		},
		Document:  config.DocumentConfig{ContainerKey: document.DefaultContainerKey, AtomicWrite: true},
		Cache:     config.CacheConfig{Path: filepath.Join(t.TempDir(), "index.db")},
		LogLevel:  "info",
		LogFormat: "fmt",
	}
}

func writeAsset(t *testing.T, root, rel, guid string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("asset"), 0o644))
	require.NoError(t, os.WriteFile(path+".meta", []byte("fileFormatVersion: 2\nguid: "+guid+"\n"), 0o644))
	return path
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 2, exitCode(unityerr.GUIDNotFound("abc")))
	assert.Equal(t, 2, exitCode(errors.Wrap(unityerr.NameNotFound("hero"), "resolve")))
	assert.Equal(t, 1, exitCode(unityerr.IO("x", os.ErrNotExist)))
	assert.Equal(t, 1, exitCode(errors.New("boom")))
}

func TestRunIndexTable(t *testing.T) {
	out, _ := capture(t)
	root := t.TempDir()
	writeAsset(t, root, "Textures/Hero.png", "abc123")
	writeAsset(t, root, "Materials/Hero.mat", "def456")
	writeAsset(t, root, "Scripts/Hero.cs", "ignored")

	require.NoError(t, runIndex(context.Background(), testConfig(t, root), NewIndexConfig()))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "GUID    ASSET", lines[0])
	assert.Equal(t, "def456  Materials/Hero.mat", lines[1])
	assert.Equal(t, "abc123  Textures/Hero.png", lines[2])
	assert.Contains(t, lines[3], "Indexed 2 assets")
}

func TestRunIndexJSON(t *testing.T) {
	out, _ := capture(t)
	root := t.TempDir()
	asset := writeAsset(t, root, "Textures/Hero.png", "abc123")

	require.NoError(t, runIndex(context.Background(), testConfig(t, root), &IndexConfig{JSON: true}))

	assert.JSONEq(t, `[{"guid": "abc123", "asset": "`+asset+`", "sidecar": "`+asset+`.meta"}]`, out.String())
}

func TestRunIndexCollectReportsSkipped(t *testing.T) {
	_, errOut := capture(t)
	root := t.TempDir()
	writeAsset(t, root, "Good.png", "abc123")
	bad := writeAsset(t, root, "Bad.png", "x")
	require.NoError(t, os.WriteFile(bad+".meta", []byte("fileFormatVersion: 3\nguid: x\n"), 0o644))

	cfg := testConfig(t, root)
	require.Error(t, runIndex(context.Background(), cfg, NewIndexConfig()))

	cfg.Scan.OnError = "collect"
	require.NoError(t, runIndex(context.Background(), cfg, NewIndexConfig()))
	assert.Contains(t, errOut.String(), "skipped: unsupported format version 3")
}

func TestResolveFromCache(t *testing.T) {
	out, _ := capture(t)
	root := t.TempDir()
	asset := writeAsset(t, root, "Textures/Hero.png", "abc123")
	cfg := testConfig(t, root)
	ctx := context.Background()

	err := runResolveGUID(ctx, cfg, &ResolveConfig{FromCache: true}, "abc123")
	require.Error(t, err, "nothing cached yet")

	require.NoError(t, runIndex(ctx, cfg, &IndexConfig{Cache: true}))
	require.NoError(t, os.Remove(asset+".meta"))
	out.Reset()

	require.NoError(t, runResolveGUID(ctx, cfg, &ResolveConfig{FromCache: true, Kind: "texture2d"}, "abc123"))
	assert.Equal(t, asset+"\n{fileID: 2800000, guid: abc123, type: 3}\n", out.String())

	err = runResolveGUID(ctx, cfg, NewResolveConfig(), "abc123")
	assert.True(t, unityerr.Is(err, unityerr.KindGUIDNotFound))
}

func TestResolveName(t *testing.T) {
	out, _ := capture(t)
	root := t.TempDir()
	writeAsset(t, root, "b/Hero.png", "second")
	first := writeAsset(t, root, "a/Hero.mat", "first")

	require.NoError(t, runResolveName(context.Background(), testConfig(t, root), &ResolveConfig{Kind: "material"}, "Hero"))
	assert.Equal(t, first+"\nguid: first\n{fileID: 2100000, guid: first, type: 2}\n", out.String())

	err := runResolveName(context.Background(), testConfig(t, root), NewResolveConfig(), "Villain")
	assert.True(t, unityerr.Is(err, unityerr.KindNameNotFound))
}

func TestResolveConfigValidate(t *testing.T) {
	assert.NoError(t, (&ResolveConfig{}).Validate())
	assert.NoError(t, (&ResolveConfig{Kind: "Sprite"}).Validate())

	err := (&ResolveConfig{Kind: "mesh"}).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "material, sprite, texture, texture2d")
}

func TestCacheStatusAndClear(t *testing.T) {
	out, errOut := capture(t)
	root := t.TempDir()
	writeAsset(t, root, "Hero.png", "abc123")
	cfg := testConfig(t, root)
	ctx := context.Background()

	require.NoError(t, runCacheStatus(ctx, cfg))
	assert.Contains(t, errOut.String(), "No snapshot for")

	require.NoError(t, runIndex(ctx, cfg, &IndexConfig{Cache: true}))
	out.Reset()
	require.NoError(t, runCacheStatus(ctx, cfg))
	assert.Contains(t, out.String(), "Schema: 2/2 migrations applied")
	assert.Contains(t, out.String(), root)

	require.NoError(t, runCacheClear(ctx, cfg))
	errOut.Reset()
	require.NoError(t, runCacheStatus(ctx, cfg))
	assert.Contains(t, errOut.String(), "No snapshot for")
}

func TestRunMetaInit(t *testing.T) {
	out, _ := capture(t)
	dir := t.TempDir()
	fresh := filepath.Join(dir, "Fresh.png")
	require.NoError(t, os.WriteFile(fresh, []byte("png"), 0o644))
	existing := writeAsset(t, dir, "Existing.png", "abc123")

	require.NoError(t, runMetaInit(context.Background(), []string{fresh, existing}))

	assert.FileExists(t, fresh+".meta")
	assert.Contains(t, out.String(), "already has guid abc123")
	assert.Contains(t, out.String(), "Created 1 of 2 sidecars")

	err := runMetaInit(context.Background(), []string{filepath.Join(dir, "Missing.png")})
	assert.True(t, unityerr.Is(err, unityerr.KindIO))
}

func TestWatchConfigValidate(t *testing.T) {
	assert.NoError(t, NewWatchConfig().Validate())
	assert.Error(t, (&WatchConfig{DebounceTime: -1}).Validate())
}

func TestLoadConfigFromFlag(t *testing.T) {
	capture(t)
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("root: Assets\nscan:\n  on_error: collect\n"), 0o644))

	require.NoError(t, rootCmd.PersistentFlags().Set("config", path))
	t.Cleanup(func() { rootCmd.PersistentFlags().Set("config", "") })

	require.NoError(t, loadConfig(rootCmd, viper.New()))
	assert.Equal(t, "Assets", appConfig.Root)
	assert.Equal(t, "collect", appConfig.Scan.OnError)
}

func TestLoadConfigMissingFile(t *testing.T) {
	require.NoError(t, rootCmd.PersistentFlags().Set("config", filepath.Join(t.TempDir(), "missing.yaml")))
	t.Cleanup(func() { rootCmd.PersistentFlags().Set("config", "") })

	err := loadConfig(rootCmd, viper.New())
	assert.Error(t, err)
}
