// AngelaMos | 2026
// dto.go

package analytics

import (
	"net/http"
	"time"

	"github.com/auramanager/aura-api/internal/core"
)

type RecordSnapshotRequest struct {
	Platform         string     `json:"platform"          validate:"required,oneof=spotify instagram tiktok youtube soundcloud twitter"`
	Followers        int64      `json:"followers"         validate:"gte=0"`
	MonthlyListeners int64      `json:"monthly_listeners" validate:"gte=0"`
	Streams          int64      `json:"streams"           validate:"gte=0"`
	EngagementRate   float64    `json:"engagement_rate"   validate:"gte=0,lte=100"`
	CapturedAt       *time.Time `json:"captured_at"`
}

type ListParams struct {
	core.PageParams
	Platform string
	From     time.Time
	To       time.Time
}

// ParseListParams reads platform, from and to. Dates may be RFC 3339 or
// YYYY-MM-DD; a bare "to" date includes that whole day.
func ParseListParams(r *http.Request) (ListParams, error) {
	q := r.URL.Query()
	params := ListParams{
		PageParams: core.PageFromRequest(r),
		Platform:   q.Get("platform"),
	}

	if v := q.Get("from"); v != "" {
		t, _, err := parseTime(v)
		if err != nil {
			return params, core.ValidationError("from must be an RFC 3339 time or YYYY-MM-DD date")
		}
		params.From = t
	}
	if v := q.Get("to"); v != "" {
		t, dateOnly, err := parseTime(v)
		if err != nil {
			return params, core.ValidationError("to must be an RFC 3339 time or YYYY-MM-DD date")
		}
		if dateOnly {
			t = t.AddDate(0, 0, 1)
		}
		params.To = t
	}
	if !params.From.IsZero() && !params.To.IsZero() && !params.From.Before(params.To) {
		return params, core.ValidationError("from must be before to")
	}

	return params, nil
}

func parseTime(v string) (time.Time, bool, error) {
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	return t, false, err
}

type SnapshotResponse struct {
	ID               string    `json:"id"`
	Platform         string    `json:"platform"`
	Followers        int64     `json:"followers"`
	MonthlyListeners int64     `json:"monthly_listeners"`
	Streams          int64     `json:"streams"`
	EngagementRate   float64   `json:"engagement_rate"`
	CapturedAt       time.Time `json:"captured_at"`
}

type Figures struct {
	Followers        int64   `json:"followers"`
	MonthlyListeners int64   `json:"monthly_listeners"`
	Streams          int64   `json:"streams"`
	EngagementRate   float64 `json:"engagement_rate"`
}

type PlatformSummary struct {
	Platform   string     `json:"platform"`
	CapturedAt *time.Time `json:"captured_at,omitempty"`
	Current    *Figures   `json:"current,omitempty"`
	// Change is relative to the previous snapshot; nil until there are two.
	Change *Figures `json:"change,omitempty"`
}

type Dashboard struct {
	ConnectedPlatforms []string          `json:"connected_platforms"`
	Platforms          []PlatformSummary `json:"platforms"`
	Totals             Figures           `json:"totals"`
	TotalsChange       Figures           `json:"totals_change"`
	GeneratedAt        time.Time         `json:"generated_at"`
}

func ToSnapshotResponse(s *Snapshot) SnapshotResponse {
	return SnapshotResponse{
		ID:               s.ID,
		Platform:         s.Platform,
		Followers:        s.Followers,
		MonthlyListeners: s.MonthlyListeners,
		Streams:          s.Streams,
		EngagementRate:   s.EngagementRate,
		CapturedAt:       s.CapturedAt,
	}
}

func ToSnapshotResponseList(items []Snapshot) []SnapshotResponse {
	out := make([]SnapshotResponse, 0, len(items))
	for i := range items {
		out = append(out, ToSnapshotResponse(&items[i]))
	}
	return out
}

func figuresOf(s *Snapshot) Figures {
	return Figures{
		Followers:        s.Followers,
		MonthlyListeners: s.MonthlyListeners,
		Streams:          s.Streams,
		EngagementRate:   s.EngagementRate,
	}
}

func (f Figures) minus(o Figures) Figures {
	return Figures{
		Followers:        f.Followers - o.Followers,
		MonthlyListeners: f.MonthlyListeners - o.MonthlyListeners,
		Streams:          f.Streams - o.Streams,
		EngagementRate:   f.EngagementRate - o.EngagementRate,
	}
}

func (f *Figures) add(o Figures) {
	f.Followers += o.Followers
	f.MonthlyListeners += o.MonthlyListeners
	f.Streams += o.Streams
	f.EngagementRate += o.EngagementRate
}
