// AngelaMos | 2026
// handler.go

package analytics

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
	r.Route("/analytics", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/dashboard", h.Dashboard)
		r.Get("/snapshots", h.List)
		r.Post("/snapshots", h.Record)
	})
}

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	d, err := h.service.Dashboard(r.Context(), userID)
	if err != nil {
		core.HandleError(w, err)
		return
	}

	core.OK(w, d)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	params, err := ParseListParams(r)
	if err != nil {
		core.HandleError(w, err)
		return
	}

	items, total, err := h.service.List(r.Context(), userID, params)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.Paginated(w, ToSnapshotResponseList(items), params.Page, params.PageSize, total)
}

func (h *Handler) Record(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req RecordSnapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	snap, err := h.service.Record(r.Context(), userID, req)
	if err != nil {
		core.HandleError(w, err)
		return
	}

	core.Created(w, ToSnapshotResponse(snap))
}
