// Package migrations holds the index cache schema.
// Versions use YYYYMMDDHHmmss timestamps.
package migrations

import (
	"github.com/jingkaihe/unityscope/pkg/db"
)

// All returns every registered migration. New migrations are appended here.
func All() []db.Migration {
	return []db.Migration{
		Migration20261012090000CreateAssets(),
		Migration20261014101500AddAssetPathIndex(),
	}
}
