// AngelaMos | 2026
// entity.go

package analytics

import (
	"time"
)

// Snapshot is one reading of a platform's audience numbers.
type Snapshot struct {
	ID               string    `db:"id"`
	UserID           string    `db:"user_id"`
	Platform         string    `db:"platform"`
	Followers        int64     `db:"followers"`
	MonthlyListeners int64     `db:"monthly_listeners"`
	Streams          int64     `db:"streams"`
	EngagementRate   float64   `db:"engagement_rate"`
	CapturedAt       time.Time `db:"captured_at"`
}

type rankedSnapshot struct {
	Snapshot
	Rank int `db:"rank"`
}
