// AngelaMos | 2026
// handler.go

package subscription

import (
	"encoding/json"
	"net/http"
	"time"

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
	r.Route("/subscription", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/", h.GetCurrent)
		r.Post("/cancel", h.Cancel)
		r.Post("/resume", h.Resume)
		r.Post("/downgrade", h.Downgrade)
	})
}

func (h *Handler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	sub, err := h.service.Current(r.Context(), userID)
	if err != nil {
		core.HandleError(w, err)
		return
	}

	core.OK(w, ToSubscriptionResponse(sub, time.Now()))
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	sub, err := h.service.Cancel(r.Context(), userID)
	if err != nil {
		core.HandleError(w, err)
		return
	}

	core.OK(w, ToSubscriptionResponse(sub, time.Now()))
}

func (h *Handler) Resume(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	sub, err := h.service.Resume(r.Context(), userID)
	if err != nil {
		core.HandleError(w, err)
		return
	}

	core.OK(w, ToSubscriptionResponse(sub, time.Now()))
}

func (h *Handler) Downgrade(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req DowngradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	sub, err := h.service.Downgrade(r.Context(), userID, req.Tier)
	if err != nil {
		core.HandleError(w, err)
		return
	}

	core.OK(w, ToSubscriptionResponse(sub, time.Now()))
}
