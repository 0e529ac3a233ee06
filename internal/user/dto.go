// AngelaMos | 2026
// dto.go

package user

import (
	"net/http"
	"strings"
	"time"

	"github.com/auramanager/aura-api/internal/core"
	"github.com/auramanager/aura-api/internal/plan"
)

type UpdateUserRequest struct {
	Name *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
}

type UpdateUserRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=user admin"`
}

type UpdateUserTierRequest struct {
	Tier string `json:"tier" validate:"required,oneof=free creator pro"`
}

type UserResponse struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	Role          string    `json:"role"`
	Tier          string    `json:"tier"`
	PlanName      string    `json:"plan_name"`
	PlatformLimit int       `json:"platform_limit"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ListUsersParams filters the admin account listing.
type ListUsersParams struct {
	core.PageParams
	Search string
	Role   string
	Tier   string
}

// ParseListParams reads page, page_size, search, role and tier from the
// query string. Unknown role or tier values are rejected.
func ParseListParams(r *http.Request) (ListUsersParams, error) {
	q := r.URL.Query()
	p := ListUsersParams{
		PageParams: core.PageFromRequest(r),
		Search:     strings.TrimSpace(q.Get("search")),
		Role:       strings.ToLower(q.Get("role")),
		Tier:       strings.ToLower(q.Get("tier")),
	}

	if p.Role != "" && p.Role != RoleUser && p.Role != RoleAdmin {
		return p, core.ValidationError("role must be one of: user admin")
	}
	if p.Tier != "" && !plan.IsValidTier(p.Tier) {
		return p, core.ValidationError("tier must be one of: free creator pro")
	}
	if len(p.Search) > 100 {
		return p, core.ValidationError("search must be at most 100 characters")
	}

	return p, nil
}

func ToUserResponse(u *User) UserResponse {
	p, _ := plan.Lookup(u.Tier)

	return UserResponse{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		Role:          u.Role,
		Tier:          u.Tier,
		PlanName:      p.Name,
		PlatformLimit: u.PlatformLimit(),
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

func ToUserResponseList(users []User) []UserResponse {
	responses := make([]UserResponse, 0, len(users))
	for i := range users {
		responses = append(responses, ToUserResponse(&users[i]))
	}
	return responses
}
