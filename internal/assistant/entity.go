// AngelaMos | 2026
// entity.go

package assistant

import (
	"time"
)

type Message struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Role      string    `db:"role"`
	Content   string    `db:"content"`
	CreatedAt time.Time `db:"created_at"`
}

// FileMeta describes an uploaded file for analysis. The file contents are
// never sent to the model.
type FileMeta struct {
	Name        string `json:"file_name"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}
