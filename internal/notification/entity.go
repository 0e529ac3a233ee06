// AngelaMos | 2026
// entity.go

package notification

import (
	"time"
)

const (
	CategoryBilling    = "billing"
	CategoryConnection = "connection"
	CategorySystem     = "system"
	CategoryInsight    = "insight"
)

type Notification struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Category  string    `db:"category"`
	Title     string    `db:"title"`
	Message   string    `db:"message"`
	Read      bool      `db:"read"`
	CreatedAt time.Time `db:"created_at"`
}

func IsValidCategory(c string) bool {
	switch c {
	case CategoryBilling, CategoryConnection, CategorySystem, CategoryInsight:
		return true
	}
	return false
}
