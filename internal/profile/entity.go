// AngelaMos | 2026
// entity.go

package profile

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

type Profile struct {
	UserID            string      `db:"user_id"`
	DisplayName       string      `db:"display_name"`
	Bio               string      `db:"bio"`
	AvatarURL         string      `db:"avatar_url"`
	SelectedPlatforms StringList  `db:"selected_platforms"`
	Preferences       Preferences `db:"preferences"`
	CreatedAt         time.Time   `db:"created_at"`
	UpdatedAt         time.Time   `db:"updated_at"`
}

// Preferences holds the answers collected during onboarding.
type Preferences struct {
	Genre               string   `json:"genre,omitempty"`
	Goals               []string `json:"goals,omitempty"`
	ExperienceLevel     string   `json:"experience_level,omitempty"`
	OnboardingCompleted bool     `json:"onboarding_completed"`
}

func (p Preferences) Value() (driver.Value, error) {
	return json.Marshal(p)
}

func (p *Preferences) Scan(src any) error {
	return scanJSON(src, p)
}

// StringList is a JSONB array of strings.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(l))
}

func (l *StringList) Scan(src any) error {
	return scanJSON(src, (*[]string)(l))
}

func (l StringList) Contains(s string) bool {
	return slices.Contains(l, s)
}

func scanJSON(src, dest any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("scan jsonb: unsupported type %T", src)
	}
}
