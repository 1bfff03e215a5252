package migrations

import (
	"database/sql"

	"github.com/pkg/errors"

	"github.com/jingkaihe/unityscope/pkg/db"
)

// Migration20261012090000CreateAssets creates the snapshots and assets tables.
func Migration20261012090000CreateAssets() db.Migration {
	return db.Migration{
		Version:     20261012090000,
		Description: "Create snapshots and assets tables",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS snapshots (
					root TEXT PRIMARY KEY,
					indexed_at DATETIME NOT NULL,
					entry_count INTEGER NOT NULL
				)
			`); err != nil {
				return errors.Wrap(err, "failed to create snapshots table")
			}

			if _, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS assets (
					root TEXT NOT NULL REFERENCES snapshots(root) ON DELETE CASCADE,
					guid TEXT NOT NULL,
					sidecar_path TEXT NOT NULL,
					indexed_at DATETIME NOT NULL,
					PRIMARY KEY (root, guid)
				)
			`); err != nil {
				return errors.Wrap(err, "failed to create assets table")
			}

			return nil
		},
		Down: func(tx *sql.Tx) error {
			if _, err := tx.Exec("DROP TABLE IF EXISTS assets"); err != nil {
				return errors.Wrap(err, "failed to drop assets table")
			}
			if _, err := tx.Exec("DROP TABLE IF EXISTS snapshots"); err != nil {
				return errors.Wrap(err, "failed to drop snapshots table")
			}
			return nil
		},
	}
}
