// AngelaMos | 2026
// dto.go

package profile

import (
	"time"
)

type UpdateProfileRequest struct {
	DisplayName       *string   `json:"display_name,omitempty"       validate:"omitempty,max=80"`
	Bio               *string   `json:"bio,omitempty"                validate:"omitempty,max=500"`
	SelectedPlatforms *[]string `json:"selected_platforms,omitempty" validate:"omitempty,max=6,dive,oneof=spotify instagram tiktok youtube soundcloud twitter"`
}

type OnboardingRequest struct {
	DisplayName       string   `json:"display_name"       validate:"required,min=1,max=80"`
	Genre             string   `json:"genre"              validate:"required,max=60"`
	Goals             []string `json:"goals"              validate:"max=10,dive,min=1,max=120"`
	ExperienceLevel   string   `json:"experience_level"   validate:"required,oneof=beginner intermediate professional"`
	SelectedPlatforms []string `json:"selected_platforms" validate:"required,min=1,max=6,dive,oneof=spotify instagram tiktok youtube soundcloud twitter"`
}

type ProfileResponse struct {
	UserID            string      `json:"user_id"`
	DisplayName       string      `json:"display_name"`
	Bio               string      `json:"bio"`
	AvatarURL         string      `json:"avatar_url"`
	SelectedPlatforms []string    `json:"selected_platforms"`
	Preferences       Preferences `json:"preferences"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

func ToProfileResponse(p *Profile) ProfileResponse {
	platforms := []string(p.SelectedPlatforms)
	if platforms == nil {
		platforms = []string{}
	}

	return ProfileResponse{
		UserID:            p.UserID,
		DisplayName:       p.DisplayName,
		Bio:               p.Bio,
		AvatarURL:         p.AvatarURL,
		SelectedPlatforms: platforms,
		Preferences:       p.Preferences,
		UpdatedAt:         p.UpdatedAt,
	}
}
