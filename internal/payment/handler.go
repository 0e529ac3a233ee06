// AngelaMos | 2026
// handler.go

package payment

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
	r.Route("/payments", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/", h.ListPayments)
		r.Post("/card", h.CheckoutCard)
		r.Post("/paypal/orders", h.CreatePayPalOrder)
		r.Post("/paypal/orders/{orderID}/capture", h.CapturePayPalOrder)
		r.Get("/invoices", h.ListInvoices)
		r.Get("/invoices/{invoiceID}", h.GetInvoice)
	})
}

// RegisterAliases mounts the single-endpoint checkout routes older
// clients post to.
func (h *Handler) RegisterAliases(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.With(authenticator).Post("/payment", h.CheckoutCard)
	r.With(authenticator).Post("/paypal", h.PayPalAction)
}

func (h *Handler) CheckoutCard(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req CardCheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}
	req.CardNumber = normalizeCardNumber(req.CardNumber)

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	result, err := h.service.CheckoutCard(r.Context(), userID, req)
	if err != nil {
		core.HandleError(w, err)
		return
	}

	core.Created(w, ToCheckoutResponse(result, time.Now()))
}

func (h *Handler) CreatePayPalOrder(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	order, err := h.service.CreatePayPalOrder(r.Context(), userID, req)
	if err != nil {
		core.HandleError(w, err)
		return
	}

	core.Created(w, order)
}

func (h *Handler) CapturePayPalOrder(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	orderID := chi.URLParam(r, "orderID")

	h.capture(w, r, userID, orderID)
}

// PayPalAction dispatches on the action field of /api/paypal.
func (h *Handler) PayPalAction(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req PayPalActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	switch req.Action {
	case "create":
		order, err := h.service.CreatePayPalOrder(r.Context(), userID, CreateOrderRequest{
			Tier:  req.Tier,
			Cycle: req.Cycle,
		})
		if err != nil {
			core.HandleError(w, err)
			return
		}
		core.Created(w, order)
	default:
		h.capture(w, r, userID, req.OrderID)
	}
}

func (h *Handler) capture(w http.ResponseWriter, r *http.Request, userID, orderID string) {
	result, err := h.service.CapturePayPalOrder(r.Context(), userID, orderID)
	if err != nil {
		core.HandleError(w, err)
		return
	}

	core.OK(w, ToCheckoutResponse(result, time.Now()))
}

func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	page := core.PageFromRequest(r)

	items, total, err := h.service.ListPayments(r.Context(), userID, page)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.Paginated(w, ToPaymentResponseList(items), page.Page, page.PageSize, total)
}

func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	page := core.PageFromRequest(r)

	items, total, err := h.service.ListInvoices(r.Context(), userID, page)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.Paginated(w, ToInvoiceResponseList(items), page.Page, page.PageSize, total)
}

func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	inv, err := h.service.GetInvoice(r.Context(), userID, chi.URLParam(r, "invoiceID"))
	if err != nil {
		core.HandleError(w, err)
		return
	}

	core.OK(w, ToInvoiceResponse(inv))
}
