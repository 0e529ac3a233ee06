// AngelaMos | 2026
// handler.go

package connection

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/auramanager/aura-api/internal/core"
	"github.com/auramanager/aura-api/internal/middleware"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/connections", func(r chi.Router) {
		r.Get("/{platform}/callback", h.Callback)

		r.Group(func(r chi.Router) {
			r.Use(authenticator)
			r.Get("/", h.List)
			r.Post("/{platform}/connect", h.Connect)
			r.Delete("/{platform}", h.Disconnect)
		})
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	resp, err := h.service.List(r.Context(), userID)
	if err != nil {
		core.HandleError(w, err)
		return
	}

	core.OK(w, resp)
}

func (h *Handler) Connect(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	resp, err := h.service.Connect(r.Context(), userID, chi.URLParam(r, "platform"))
	if err != nil {
		core.HandleError(w, err)
		return
	}

	core.OK(w, resp)
}

// Callback is reached by the browser returning from the provider, so it
// always answers with a redirect to the frontend.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	target, _ := h.service.Callback(r.Context(), CallbackParams{ //nolint:errcheck // logged by the service
		Platform:         chi.URLParam(r, "platform"),
		State:            q.Get("state"),
		Code:             q.Get("code"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	})

	http.Redirect(w, r, target, http.StatusFound)
}

func (h *Handler) Disconnect(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	if err := h.service.Disconnect(r.Context(), userID, chi.URLParam(r, "platform")); err != nil {
		core.HandleError(w, err)
		return
	}

	core.NoContent(w)
}
