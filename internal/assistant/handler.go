// AngelaMos | 2026
// handler.go

package assistant

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/auramanager/aura-api/internal/core"
	"github.com/auramanager/aura-api/internal/middleware"
)

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/assistant", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/messages", h.History)
		r.Post("/messages", h.Send)
		r.Delete("/messages", h.Clear)
	})
}

func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	exchange, err := h.service.Send(r.Context(), userID, req.Content)
	if err != nil {
		core.HandleError(w, err)
		return
	}

	core.Created(w, ToExchangeResponse(exchange))
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	page := core.PageFromRequest(r)

	items, total, err := h.service.History(r.Context(), userID, page)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.Paginated(w, ToMessageResponseList(items), page.Page, page.PageSize, total)
}

func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	n, err := h.service.Clear(r.Context(), userID)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ClearResponse{Deleted: n})
}
