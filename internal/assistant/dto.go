// AngelaMos | 2026
// dto.go

package assistant

import (
	"time"
)

type SendMessageRequest struct {
	Content string `json:"content" validate:"required,max=4000"`
}

// Exchange is one stored question and its answer.
type Exchange struct {
	Question *Message
	Answer   *Message
}

type MessageResponse struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type ExchangeResponse struct {
	Question MessageResponse `json:"question"`
	Answer   MessageResponse `json:"answer"`
}

type ClearResponse struct {
	Deleted int64 `json:"deleted"`
}

func ToMessageResponse(m *Message) MessageResponse {
	return MessageResponse{
		ID:        m.ID,
		Role:      m.Role,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}

func ToMessageResponseList(items []Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(items))
	for i := range items {
		out = append(out, ToMessageResponse(&items[i]))
	}
	return out
}

func ToExchangeResponse(e *Exchange) ExchangeResponse {
	return ExchangeResponse{
		Question: ToMessageResponse(e.Question),
		Answer:   ToMessageResponse(e.Answer),
	}
}
