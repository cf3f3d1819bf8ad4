package order

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fkhayef/tablepay/pkg/middleware"
	"github.com/fkhayef/tablepay/pkg/response"
)

// Handler handles HTTP requests for a table's order
type Handler struct {
	service *Service
}

// NewHandler creates a new order handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for order endpoints, mounted under
// /tables/{tableId}/order
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.Get)
	r.Get("/balance", h.GetBalance)
	r.With(middleware.RequireDiner).Post("/cart", h.SubmitCart)
	r.With(middleware.RequireEmployee).Post("/end", h.End)

	return r
}

func tableID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "tableId"), 10, 64)
}

// Get handles GET /tables/{tableId}/order
// @Summary      Get the table's order
// @Description  Get the active order with its items and balance
// @Tags         orders
// @Produce      json
// @Param        tableId path int true "Table ID"
// @Success      200 {object} response.APIResponse{data=OrderResponse}
// @Failure      404 {object} response.APIResponse
// @Router       /tables/{tableId}/order [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := tableID(r)
	if err != nil {
		response.BadRequest(w, "Invalid table ID")
		return
	}

	ledger, err := h.service.Ledger(r.Context(), id)
	if err != nil {
		response.FromError(w, err, "Failed to get order")
		return
	}

	response.JSON(w, http.StatusOK, ledger.ToResponse())
}

// GetBalance handles GET /tables/{tableId}/order/balance
// @Summary      Get remaining balance
// @Description  Get total, paid, and remaining for the table's active order
// @Tags         orders
// @Produce      json
// @Param        tableId path int true "Table ID"
// @Success      200 {object} response.APIResponse{data=BalanceResponse}
// @Failure      404 {object} response.APIResponse
// @Router       /tables/{tableId}/order/balance [get]
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id, err := tableID(r)
	if err != nil {
		response.BadRequest(w, "Invalid table ID")
		return
	}

	ledger, err := h.service.Ledger(r.Context(), id)
	if err != nil {
		response.FromError(w, err, "Failed to get balance")
		return
	}

	response.JSON(w, http.StatusOK, ledger.Balance.ToResponse(ledger.Order.ID, ledger.Order.CurrencyCode))
}

// GetOrderBalance handles GET /orders/{orderId}/balance
// @Summary      Get an order's balance
// @Description  Get total, paid, and remaining for an active order by its ID
// @Tags         orders
// @Produce      json
// @Param        orderId path int true "Order ID"
// @Success      200 {object} response.APIResponse{data=BalanceResponse}
// @Failure      404 {object} response.APIResponse
// @Router       /orders/{orderId}/balance [get]
func (h *Handler) GetOrderBalance(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "orderId"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid order ID")
		return
	}

	o, b, err := h.service.Balance(r.Context(), id)
	if err != nil {
		response.FromError(w, err, "Failed to get balance")
		return
	}

	response.JSON(w, http.StatusOK, b.ToResponse(o.ID, o.CurrencyCode))
}

// SubmitCart handles POST /tables/{tableId}/order/cart
// @Summary      Submit cart
// @Description  Commit the diner's cart lines to the table's order, opening it if needed
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        tableId path int true "Table ID"
// @Param        X-Diner-ID header int true "Diner session"
// @Param        request body CartSnapshot true "Cart lines"
// @Success      201 {object} response.APIResponse{data=OrderResponse}
// @Failure      400 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Router       /tables/{tableId}/order/cart [post]
func (h *Handler) SubmitCart(w http.ResponseWriter, r *http.Request) {
	id, err := tableID(r)
	if err != nil {
		response.BadRequest(w, "Invalid table ID")
		return
	}
	dinerID, _ := middleware.GetDinerID(r.Context())

	var cart CartSnapshot
	if err := json.NewDecoder(r.Body).Decode(&cart); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	ledger, err := h.service.SubmitCart(r.Context(), id, dinerID, &cart)
	if err != nil {
		response.FromError(w, err, "Failed to submit cart")
		return
	}

	response.JSON(w, http.StatusCreated, ledger.ToResponse())
}

// End handles POST /tables/{tableId}/order/end
// @Summary      End order
// @Description  Close the table's order and reset its diners
// @Tags         orders
// @Produce      json
// @Param        tableId path int true "Table ID"
// @Param        X-Employee-ID header int true "Staff session"
// @Success      200 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /tables/{tableId}/order/end [post]
func (h *Handler) End(w http.ResponseWriter, r *http.Request) {
	id, err := tableID(r)
	if err != nil {
		response.BadRequest(w, "Invalid table ID")
		return
	}

	o, err := h.service.End(r.Context(), id)
	if err != nil {
		response.FromError(w, err, "Failed to end order")
		return
	}

	response.JSON(w, http.StatusOK, map[string]interface{}{
		"order_id": o.ID,
		"active":   false,
	})
}
