// AngelaMos | 2026
// handler.go

package upload

import (
	"errors"
	"io"
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
	r.Route("/uploads", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/", h.List)
		r.Post("/", h.Upload)
		r.Get("/{uploadID}", h.Get)
		r.Post("/{uploadID}/analyze", h.Analyze)
		r.Delete("/{uploadID}", h.Delete)
	})
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes+(1<<20))
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			core.BadRequest(w, "file must be 25 MB or smaller")
			return
		}
		core.BadRequest(w, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	file, header, err := r.FormFile("file")
	if err != nil {
		core.BadRequest(w, "file is required")
		return
	}
	defer file.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(file, MaxUploadBytes+1))
	if err != nil {
		core.BadRequest(w, "could not read file")
		return
	}

	u, err := h.service.Upload(r.Context(), userID, header.Filename, data)
	if err != nil {
		core.HandleError(w, err)
		return
	}

	core.JSON(w, http.StatusAccepted, core.Response{Success: true, Data: ToUploadResponse(u)})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	page := core.PageFromRequest(r)

	items, total, err := h.service.List(r.Context(), userID, page)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.Paginated(w, ToUploadResponseList(items), page.Page, page.PageSize, total)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	u, err := h.service.Get(r.Context(), userID, chi.URLParam(r, "uploadID"))
	if err != nil {
		core.HandleError(w, err)
		return
	}

	core.OK(w, ToUploadResponse(u))
}

func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	u, err := h.service.Analyze(r.Context(), userID, chi.URLParam(r, "uploadID"))
	if err != nil {
		core.HandleError(w, err)
		return
	}

	core.OK(w, ToUploadResponse(u))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	if err := h.service.Delete(r.Context(), userID, chi.URLParam(r, "uploadID")); err != nil {
		core.HandleError(w, err)
		return
	}

	core.NoContent(w)
}
