// AngelaMos | 2026
// dto.go

package upload

import (
	"encoding/json"
	"time"
)

type UploadResponse struct {
	ID          string          `json:"id"`
	FileName    string          `json:"file_name"`
	ContentType string          `json:"content_type"`
	SizeBytes   int64           `json:"size_bytes"`
	Status      string          `json:"status"`
	Analysis    json.RawMessage `json:"analysis,omitempty"`
	Failure     string          `json:"failure,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func ToUploadResponse(u *Upload) UploadResponse {
	resp := UploadResponse{
		ID:          u.ID,
		FileName:    u.FileName,
		ContentType: u.ContentType,
		SizeBytes:   u.SizeBytes,
		Status:      u.Status,
		Failure:     u.Failure,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
	if u.Analysis.Valid && len(u.Analysis.JSONText) > 0 {
		resp.Analysis = json.RawMessage(u.Analysis.JSONText)
	}
	return resp
}

func ToUploadResponseList(items []Upload) []UploadResponse {
	out := make([]UploadResponse, 0, len(items))
	for i := range items {
		out = append(out, ToUploadResponse(&items[i]))
	}
	return out
}
