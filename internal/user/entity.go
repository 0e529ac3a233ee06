// AngelaMos | 2026
// entity.go

package user

import (
	"time"

	"github.com/auramanager/aura-api/internal/plan"
)

type User struct {
	ID           string     `db:"id"`
	Email        string     `db:"email"`
	PasswordHash string     `db:"password_hash"`
	Name         string     `db:"name"`
	Role         string     `db:"role"`
	Tier         string     `db:"tier"`
	TokenVersion int        `db:"token_version"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
	DeletedAt    *time.Time `db:"deleted_at"`
}

func (u *User) IsDeleted() bool {
	return u.DeletedAt != nil
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// PlatformLimit is the number of platforms the account's tier may connect.
func (u *User) PlatformLimit() int {
	return plan.PlatformLimit(u.Tier)
}

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

const (
	TierFree    = plan.TierFree
	TierCreator = plan.TierCreator
	TierPro     = plan.TierPro
)
