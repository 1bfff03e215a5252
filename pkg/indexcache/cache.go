// Package indexcache persists asset index snapshots in SQLite so commands can
// resolve references without rescanning the project tree.
package indexcache

import (
	"context"
	"database/sql"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/jingkaihe/unityscope/pkg/assetindex"
	"github.com/jingkaihe/unityscope/pkg/logger"
)

// ErrNoSnapshot is returned by Load and Info when the root was never saved.
var ErrNoSnapshot = errors.New("no index snapshot for root")

// insertBatchSize keeps each bulk insert well under SQLite's bound variable limit.
const insertBatchSize = 500

// Snapshot describes a stored index.
type Snapshot struct {
	Root       string    `db:"root" json:"root"`
	IndexedAt  time.Time `db:"indexed_at" json:"indexedAt"`
	EntryCount int       `db:"entry_count" json:"entryCount"`
}

type dbAsset struct {
	Root string `db:"root"`
	GUID string `db:"guid"`
	// slash-separated and relative to Root
	SidecarPath string    `db:"sidecar_path"`
	IndexedAt   time.Time `db:"indexed_at"`
}

func cacheKey(root string) string {
	if abs, err := filepath.Abs(root); err == nil {
		return abs
	}
	return filepath.Clean(root)
}

// storedPath makes sidecar relative to the cache key so a snapshot stays valid
// whatever working directory it is loaded from.
func storedPath(key, sidecar string) string {
	if rel, err := filepath.Rel(key, cacheKey(sidecar)); err == nil {
		return filepath.ToSlash(rel)
	}
	return filepath.ToSlash(sidecar)
}

// loadedPath joins a stored path back onto the root the caller asked for.
func loadedPath(root, stored string) string {
	path := filepath.FromSlash(stored)
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// Save replaces the stored snapshot for idx.Root() in a single transaction.
func Save(ctx context.Context, db *sqlx.DB, idx *assetindex.Index) (Snapshot, error) {
	snapshot := Snapshot{
		Root:       cacheKey(idx.Root()),
		IndexedAt:  time.Now().UTC(),
		EntryCount: idx.Len(),
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM snapshots WHERE root = ?", snapshot.Root); err != nil {
		return Snapshot{}, errors.Wrap(err, "failed to delete previous snapshot")
	}
	if _, err := tx.NamedExecContext(ctx, `
		INSERT INTO snapshots (root, indexed_at, entry_count)
		VALUES (:root, :indexed_at, :entry_count)
	`, snapshot); err != nil {
		return Snapshot{}, errors.Wrap(err, "failed to save snapshot")
	}

	entries := idx.Entries()
	for start := 0; start < len(entries); start += insertBatchSize {
		end := min(start+insertBatchSize, len(entries))
		rows := make([]dbAsset, 0, end-start)
		for _, e := range entries[start:end] {
			rows = append(rows, dbAsset{
				Root:        snapshot.Root,
				GUID:        e.GUID,
				SidecarPath: storedPath(snapshot.Root, e.SidecarPath),
				IndexedAt:   snapshot.IndexedAt,
			})
		}
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO assets (root, guid, sidecar_path, indexed_at)
			VALUES (:root, :guid, :sidecar_path, :indexed_at)
		`, rows); err != nil {
			return Snapshot{}, errors.Wrap(err, "failed to save assets")
		}
	}

	if err := tx.Commit(); err != nil {
		return Snapshot{}, errors.Wrap(err, "failed to commit snapshot")
	}

	logger.G(ctx).WithFields(logrus.Fields{
		"root":    snapshot.Root,
		"entries": snapshot.EntryCount,
	}).Debug("saved index snapshot")
	return snapshot, nil
}

// Info returns the metadata of the snapshot stored for root.
func Info(ctx context.Context, db *sqlx.DB, root string) (Snapshot, error) {
	var snapshot Snapshot
	err := db.GetContext(ctx, &snapshot,
		"SELECT root, indexed_at, entry_count FROM snapshots WHERE root = ?", cacheKey(root))
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, errors.Wrapf(ErrNoSnapshot, "root %s", root)
	}
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "failed to load snapshot")
	}
	return snapshot, nil
}

// Load rebuilds the index stored for root. The returned index reports the
// root exactly as passed in, and its sidecar paths are joined onto it.
func Load(ctx context.Context, db *sqlx.DB, root string) (*assetindex.Index, Snapshot, error) {
	snapshot, err := Info(ctx, db, root)
	if err != nil {
		return nil, Snapshot{}, err
	}

	var rows []dbAsset
	if err := db.SelectContext(ctx, &rows, `
		SELECT root, guid, sidecar_path, indexed_at
		FROM assets WHERE root = ? ORDER BY sidecar_path
	`, snapshot.Root); err != nil {
		return nil, Snapshot{}, errors.Wrap(err, "failed to load assets")
	}

	guidToPath := make(map[string]string, len(rows))
	for _, row := range rows {
		guidToPath[row.GUID] = loadedPath(root, row.SidecarPath)
	}

	logger.G(ctx).WithFields(logrus.Fields{
		"root":      snapshot.Root,
		"entries":   len(rows),
		"indexedAt": snapshot.IndexedAt,
	}).Debug("loaded index snapshot")
	return assetindex.FromEntries(root, guidToPath), snapshot, nil
}

// Delete removes the snapshot stored for root. Deleting a missing snapshot is
// not an error.
func Delete(ctx context.Context, db *sqlx.DB, root string) error {
	_, err := db.ExecContext(ctx, "DELETE FROM snapshots WHERE root = ?", cacheKey(root))
	return errors.Wrap(err, "failed to delete snapshot")
}
