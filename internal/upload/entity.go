// AngelaMos | 2026
// entity.go

package upload

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

const (
	StatusProcessing = "processing"
	StatusAnalyzed   = "analyzed"
	StatusFailed     = "failed"
)

type Upload struct {
	ID          string             `db:"id"`
	UserID      string             `db:"user_id"`
	FileName    string             `db:"file_name"`
	ContentType string             `db:"content_type"`
	SizeBytes   int64              `db:"size_bytes"`
	StoragePath string             `db:"storage_path"`
	Status      string             `db:"status"`
	Analysis    types.NullJSONText `db:"analysis"`
	Failure     string             `db:"failure"`
	CreatedAt   time.Time          `db:"created_at"`
	UpdatedAt   time.Time          `db:"updated_at"`
}
