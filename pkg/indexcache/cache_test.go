package indexcache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/unityscope/pkg/assetindex"
	"github.com/jingkaihe/unityscope/pkg/db"
	"github.com/jingkaihe/unityscope/pkg/db/migrations"
)

func openCache(t *testing.T) *sqlx.DB {
	t.Helper()
	sqlDB, err := db.OpenMigrated(context.Background(), filepath.Join(t.TempDir(), "index.db"), migrations.All())
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return sqlDB
}

func TestSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	sqlDB := openCache(t)
	root := t.TempDir()

	idx := assetindex.FromEntries(root, map[string]string{
		"abc123": filepath.Join(root, "Textures", "Hero.png.meta"),
		"def456": filepath.Join(root, "Materials", "Hero.mat.meta"),
	})

	before := time.Now().UTC()
	saved, err := Save(ctx, sqlDB, idx)
	require.NoError(t, err)
	assert.Equal(t, root, saved.Root)
	assert.Equal(t, 2, saved.EntryCount)

	loaded, snapshot, err := Load(ctx, sqlDB, root)
	require.NoError(t, err)
	assert.Equal(t, idx.Entries(), loaded.Entries())
	assert.Equal(t, root, loaded.Root())
	assert.Equal(t, 2, snapshot.EntryCount)
	assert.WithinDuration(t, before, snapshot.IndexedAt, time.Minute)

	path, err := loaded.ResolveByGUID("abc123")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "Textures", "Hero.png"), path)
}

func TestLoadFromAnotherWorkingDirectory(t *testing.T) {
	ctx := context.Background()
	sqlDB := openCache(t)
	parent := t.TempDir()
	proj := filepath.Join(parent, "proj")
	require.NoError(t, os.MkdirAll(filepath.Join(proj, "Textures"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(proj, "Textures", "tex.png"), []byte("png"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(proj, "Textures", "tex.png.meta"), []byte("fileFormatVersion: 2\nguid: abc123\n"), 0o644))

	chdir(t, parent)
	idx, err := assetindex.Build(ctx, "proj", assetindex.DefaultScanConfig())
	require.NoError(t, err)
	_, err = Save(ctx, sqlDB, idx)
	require.NoError(t, err)

	var stored string
	require.NoError(t, sqlDB.GetContext(ctx, &stored, "SELECT sidecar_path FROM assets WHERE guid = ?", "abc123"))
	assert.Equal(t, "Textures/tex.png.meta", stored)

	chdir(t, proj)
	loaded, _, err := Load(ctx, sqlDB, ".")
	require.NoError(t, err)
	path, err := loaded.ResolveByGUID("abc123")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("Textures", "tex.png"), path)
	assert.FileExists(t, path)

	chdir(t, t.TempDir())
	loaded, _, err = Load(ctx, sqlDB, proj)
	require.NoError(t, err)
	path, err = loaded.ResolveByGUID("abc123")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(proj, "Textures", "tex.png"), path)
}

func TestSaveReplacesPreviousSnapshot(t *testing.T) {
	ctx := context.Background()
	sqlDB := openCache(t)
	root := t.TempDir()

	_, err := Save(ctx, sqlDB, assetindex.FromEntries(root, map[string]string{
		"old": filepath.Join(root, "Old.png.meta"),
	}))
	require.NoError(t, err)
	_, err = Save(ctx, sqlDB, assetindex.FromEntries(root, map[string]string{
		"new": filepath.Join(root, "New.png.meta"),
	}))
	require.NoError(t, err)

	loaded, _, err := Load(ctx, sqlDB, root)
	require.NoError(t, err)
	assert.False(t, loaded.Contains("old"))
	assert.True(t, loaded.Contains("new"))

	var count int
	require.NoError(t, sqlDB.GetContext(ctx, &count, "SELECT COUNT(*) FROM assets"))
	assert.Equal(t, 1, count)
}

func TestSnapshotsAreScopedByRoot(t *testing.T) {
	ctx := context.Background()
	sqlDB := openCache(t)
	rootA, rootB := t.TempDir(), t.TempDir()

	_, err := Save(ctx, sqlDB, assetindex.FromEntries(rootA, map[string]string{
		"shared": filepath.Join(rootA, "A.png.meta"),
	}))
	require.NoError(t, err)
	_, err = Save(ctx, sqlDB, assetindex.FromEntries(rootB, map[string]string{
		"shared": filepath.Join(rootB, "B.png.meta"),
	}))
	require.NoError(t, err)

	a, _, err := Load(ctx, sqlDB, rootA)
	require.NoError(t, err)
	b, _, err := Load(ctx, sqlDB, rootB)
	require.NoError(t, err)

	pathA, err := a.SidecarPath("shared")
	require.NoError(t, err)
	pathB, err := b.SidecarPath("shared")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(rootA, "A.png.meta"), pathA)
	assert.Equal(t, filepath.Join(rootB, "B.png.meta"), pathB)
}

func TestEmptySnapshotIsNotMissing(t *testing.T) {
	ctx := context.Background()
	sqlDB := openCache(t)
	root := t.TempDir()

	_, err := Save(ctx, sqlDB, assetindex.FromEntries(root, nil))
	require.NoError(t, err)

	loaded, snapshot, err := Load(ctx, sqlDB, root)
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.Len())
	assert.Equal(t, 0, snapshot.EntryCount)
}

func TestLoadMissingSnapshot(t *testing.T) {
	sqlDB := openCache(t)

	_, _, err := Load(context.Background(), sqlDB, t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoSnapshot))
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	sqlDB := openCache(t)
	root := t.TempDir()

	_, err := Save(ctx, sqlDB, assetindex.FromEntries(root, map[string]string{
		"abc": filepath.Join(root, "A.png.meta"),
	}))
	require.NoError(t, err)

	require.NoError(t, Delete(ctx, sqlDB, root))
	require.NoError(t, Delete(ctx, sqlDB, root))

	_, err = Info(ctx, sqlDB, root)
	assert.True(t, errors.Is(err, ErrNoSnapshot))

	var count int
	require.NoError(t, sqlDB.GetContext(ctx, &count, "SELECT COUNT(*) FROM assets"))
	assert.Equal(t, 0, count, "assets cascade with their snapshot")
}

func TestSaveLargeIndex(t *testing.T) {
	ctx := context.Background()
	sqlDB := openCache(t)
	root := t.TempDir()

	guidToPath := make(map[string]string, 1234)
	for i := 0; i < 1234; i++ {
		guidToPath[fmt.Sprintf("guid%04d", i)] = filepath.Join(root, fmt.Sprintf("Asset%04d.png.meta", i))
	}

	saved, err := Save(ctx, sqlDB, assetindex.FromEntries(root, guidToPath))
	require.NoError(t, err)
	assert.Equal(t, 1234, saved.EntryCount)

	loaded, _, err := Load(ctx, sqlDB, root)
	require.NoError(t, err)
	assert.Equal(t, 1234, loaded.Len())
}

// chdir changes the working directory for the rest of the test and restores
// it on cleanup, like testing.T.Chdir (Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
