package migrations

import (
	"database/sql"

	"github.com/pkg/errors"

	"github.com/jingkaihe/unityscope/pkg/db"
)

// Migration20261014101500AddAssetPathIndex indexes assets by path so snapshot
// loads come back in lexical path order without a sort.
func Migration20261014101500AddAssetPathIndex() db.Migration {
	return db.Migration{
		Version:     20261014101500,
		Description: "Add index on assets(root, sidecar_path)",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec("CREATE INDEX IF NOT EXISTS idx_assets_root_path ON assets(root, sidecar_path)")
			return errors.Wrap(err, "failed to create idx_assets_root_path")
		},
		Down: func(tx *sql.Tx) error {
			_, err := tx.Exec("DROP INDEX IF EXISTS idx_assets_root_path")
			return errors.Wrap(err, "failed to drop idx_assets_root_path")
		},
	}
}
