package payment

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fkhayef/tablepay/pkg/middleware"
	"github.com/fkhayef/tablepay/pkg/response"
)

const maxWebhookBytes = 64 << 10

// Handler handles HTTP requests for payments
type Handler struct {
	service *Service
}

// NewHandler creates a new payment handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// TableRoutes returns the diner payment endpoints, mounted under
// /tables/{tableId}/pay
func (h *Handler) TableRoutes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequireDiner)

	r.Post("/", h.Pay)
	r.Post("/confirm", h.Confirm)

	return r
}

// Routes returns the staff and gateway endpoints, mounted under /payments
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/webhook", h.Webhook)
	r.Get("/checkout/success", h.CheckoutSuccess)
	r.With(middleware.RequireEmployee).Post("/intents/{id}/accept", h.AcceptIntent)
	r.With(middleware.RequireEmployee).Post("/intents/{id}/reject", h.RejectIntent)

	return r
}

// OrderRoutes returns the per-order payment endpoints, mounted under
// /orders/{orderId}
func (h *Handler) OrderRoutes() chi.Router {
	r := chi.NewRouter()

	r.Get("/payments", h.ListByOrder)
	r.With(middleware.RequireEmployee).Post("/reconcile", h.Reconcile)

	return r
}

func pathID(r *http.Request, key string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, key), 10, 64)
}

// Pay handles POST /tables/{tableId}/pay
// @Summary      Pay part of the bill
// @Description  Price the selection against the current balance and route it to cash or card. An amount above the balance returns kind "confirm" with the capped amount.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        tableId path int true "Table ID"
// @Param        X-Diner-ID header int true "Diner session"
// @Param        request body PayRequest true "Payment details"
// @Success      200 {object} response.APIResponse{data=ResultResponse}
// @Failure      400 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Failure      502 {object} response.APIResponse
// @Router       /tables/{tableId}/pay [post]
func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	tableID, err := pathID(r, "tableId")
	if err != nil {
		response.BadRequest(w, "Invalid table ID")
		return
	}
	dinerID, _ := middleware.GetDinerID(r.Context())

	var req PayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	result, err := h.service.Pay(r.Context(), tableID, dinerID, &req)
	if err != nil {
		response.FromError(w, err, "Failed to process payment")
		return
	}

	response.JSON(w, http.StatusOK, result.ToResponse())
}

// Confirm handles POST /tables/{tableId}/pay/confirm
// @Summary      Confirm a capped payment
// @Description  Pay the capped amount and tip offered after an overpayment was diverted
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        tableId path int true "Table ID"
// @Param        X-Diner-ID header int true "Diner session"
// @Param        request body ConfirmRequest true "Confirmed amount and tip"
// @Success      200 {object} response.APIResponse{data=ResultResponse}
// @Failure      400 {object} response.APIResponse
// @Router       /tables/{tableId}/pay/confirm [post]
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	tableID, err := pathID(r, "tableId")
	if err != nil {
		response.BadRequest(w, "Invalid table ID")
		return
	}
	dinerID, _ := middleware.GetDinerID(r.Context())

	var req ConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	result, err := h.service.Confirm(r.Context(), tableID, dinerID, &req)
	if err != nil {
		response.FromError(w, err, "Failed to process payment")
		return
	}

	response.JSON(w, http.StatusOK, result.ToResponse())
}

// AcceptIntent handles POST /payments/intents/{id}/accept
// @Summary      Accept cash
// @Description  Settle a pending cash payment. Answers 409 with the remaining balance when the intent no longer fits it.
// @Tags         payments
// @Produce      json
// @Param        id path int true "Intent ID"
// @Param        X-Employee-ID header int true "Staff session"
// @Success      200 {object} response.APIResponse{data=PaymentResponse}
// @Failure      404 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse{data=OverpaymentResponse}
// @Router       /payments/intents/{id}/accept [post]
func (h *Handler) AcceptIntent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		response.BadRequest(w, "Invalid intent ID")
		return
	}
	employeeID, _ := middleware.GetEmployeeID(r.Context())

	p, err := h.service.AcceptIntent(r.Context(), id, employeeID)
	if err != nil {
		var over *OverpaymentError
		if errors.As(err, &over) {
			response.JSON(w, http.StatusConflict, over.ToResponse())
			return
		}
		response.FromError(w, err, "Failed to accept payment")
		return
	}

	response.JSON(w, http.StatusOK, p.ToResponse())
}

// RejectIntent handles POST /payments/intents/{id}/reject
// @Summary      Reject cash
// @Description  Close a pending cash payment without settling it
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        id path int true "Intent ID"
// @Param        X-Employee-ID header int true "Staff session"
// @Param        request body RejectIntentRequest false "Reason"
// @Success      200 {object} response.APIResponse{data=IntentResponse}
// @Failure      404 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Router       /payments/intents/{id}/reject [post]
func (h *Handler) RejectIntent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		response.BadRequest(w, "Invalid intent ID")
		return
	}
	employeeID, _ := middleware.GetEmployeeID(r.Context())

	var req RejectIntentRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			response.BadRequest(w, "Invalid request body")
			return
		}
	}

	intent, err := h.service.RejectIntent(r.Context(), id, employeeID, req.Reason)
	if err != nil {
		response.FromError(w, err, "Failed to reject payment")
		return
	}

	response.JSON(w, http.StatusOK, intent.ToResponse())
}

// Webhook handles POST /payments/webhook
// @Summary      Payment gateway callback
// @Description  Verified gateway events settle or fail checkout sessions exactly once per session
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        Stripe-Signature header string true "Gateway signature"
// @Success      200 {object} response.APIResponse
// @Failure      400 {object} response.APIResponse
// @Router       /payments/webhook [post]
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	p, err := h.service.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		response.FromError(w, err, "Failed to process webhook")
		return
	}

	data := map[string]interface{}{"received": true}
	if p != nil {
		data["payment_id"] = p.ID
	}
	response.JSON(w, http.StatusOK, data)
}

// CheckoutSuccess handles GET /payments/checkout/success
// @Summary      Return from checkout
// @Description  Settle the session the diner returned with and redirect to the table view
// @Tags         payments
// @Param        session_id query string true "Checkout session ID"
// @Success      303
// @Failure      400 {object} response.APIResponse
// @Failure      502 {object} response.APIResponse
// @Router       /payments/checkout/success [get]
func (h *Handler) CheckoutSuccess(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		response.BadRequest(w, "Missing session ID")
		return
	}

	_, tableURL, err := h.service.CheckoutSuccess(r.Context(), sessionID)
	if err != nil {
		response.FromError(w, err, "Failed to complete checkout")
		return
	}

	http.Redirect(w, r, tableURL, http.StatusSeeOther)
}

// ListByOrder handles GET /orders/{orderId}/payments
// @Summary      List payments
// @Description  Get every settlement record of an order, oldest first
// @Tags         payments
// @Produce      json
// @Param        orderId path int true "Order ID"
// @Success      200 {object} response.APIResponse{data=[]PaymentResponse}
// @Router       /orders/{orderId}/payments [get]
func (h *Handler) ListByOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "orderId")
	if err != nil {
		response.BadRequest(w, "Invalid order ID")
		return
	}

	payments, err := h.service.ListByOrder(r.Context(), orderID)
	if err != nil {
		response.FromError(w, err, "Failed to list payments")
		return
	}

	resp := make([]*PaymentResponse, len(payments))
	for i, p := range payments {
		resp[i] = p.ToResponse()
	}
	response.JSON(w, http.StatusOK, resp)
}

// Reconcile handles POST /orders/{orderId}/reconcile
// @Summary      Reconcile diner totals
// @Description  Rebuild each diner's paid and tip totals from accepted payments
// @Tags         payments
// @Produce      json
// @Param        orderId path int true "Order ID"
// @Param        X-Employee-ID header int true "Staff session"
// @Success      200 {object} response.APIResponse{data=[]CorrectionResponse}
// @Failure      404 {object} response.APIResponse
// @Router       /orders/{orderId}/reconcile [post]
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "orderId")
	if err != nil {
		response.BadRequest(w, "Invalid order ID")
		return
	}

	corrections, err := h.service.Reconcile(r.Context(), orderID)
	if err != nil {
		response.FromError(w, err, "Failed to reconcile order")
		return
	}

	resp := make([]*CorrectionResponse, len(corrections))
	for i, c := range corrections {
		resp[i] = c.ToResponse()
	}
	response.JSON(w, http.StatusOK, resp)
}
