package diner

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fkhayef/tablepay/pkg/response"
)

// Handler handles HTTP requests for diners of a table
type Handler struct {
	service *Service
}

// NewHandler creates a new diner handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for diner endpoints, mounted under
// /tables/{tableId}/diners
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Join)
	r.Get("/", h.List)

	return r
}

// Join handles POST /tables/{tableId}/diners
// @Summary      Join a table
// @Description  Seat a named diner at the table; the returned id identifies the session
// @Tags         diners
// @Accept       json
// @Produce      json
// @Param        tableId path int true "Table ID"
// @Param        request body JoinTableRequest true "Diner name and color"
// @Success      201 {object} response.APIResponse{data=DinerResponse}
// @Failure      400 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /tables/{tableId}/diners [post]
func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	tableID, err := strconv.ParseInt(chi.URLParam(r, "tableId"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid table ID")
		return
	}

	var req JoinTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	d, err := h.service.Join(r.Context(), tableID, &req)
	if err != nil {
		response.FromError(w, err, "Failed to join table")
		return
	}

	response.JSON(w, http.StatusCreated, d.ToResponse())
}

// List handles GET /tables/{tableId}/diners
// @Summary      List diners
// @Description  Get the diners seated at the table with their running totals
// @Tags         diners
// @Produce      json
// @Param        tableId path int true "Table ID"
// @Success      200 {object} response.APIResponse{data=[]DinerResponse}
// @Failure      404 {object} response.APIResponse
// @Router       /tables/{tableId}/diners [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tableID, err := strconv.ParseInt(chi.URLParam(r, "tableId"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid table ID")
		return
	}

	diners, err := h.service.ListByTable(r.Context(), tableID)
	if err != nil {
		response.FromError(w, err, "Failed to list diners")
		return
	}

	resp := make([]*DinerResponse, len(diners))
	for i, d := range diners {
		resp[i] = d.ToResponse()
	}

	response.JSON(w, http.StatusOK, resp)
}
