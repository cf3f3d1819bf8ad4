package branch

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fkhayef/tablepay/pkg/response"
)

// Handler handles HTTP requests for branch operations
type Handler struct {
	service *Service
}

// NewHandler creates a new branch handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for branch endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Create)
	r.Get("/{id}", h.GetByID)

	// Staff and floor management
	r.Post("/{id}/employees", h.AddEmployee)
	r.Post("/{id}/tables", h.AddTable)

	return r
}

// Create handles POST /branches
// @Summary      Create a branch
// @Description  Create a restaurant branch with its currency
// @Tags         branches
// @Accept       json
// @Produce      json
// @Param        request body CreateBranchRequest true "Branch creation request"
// @Success      201 {object} response.APIResponse{data=BranchResponse}
// @Failure      400 {object} response.APIResponse
// @Router       /branches [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateBranchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	branch, err := h.service.Create(r.Context(), &req)
	if err != nil {
		response.FromError(w, err, "Failed to create branch")
		return
	}

	response.JSON(w, http.StatusCreated, branch.ToResponse())
}

// GetByID handles GET /branches/{id}
// @Summary      Get branch by ID
// @Description  Get a branch with its employees and tables
// @Tags         branches
// @Produce      json
// @Param        id path int true "Branch ID"
// @Success      200 {object} response.APIResponse{data=BranchResponse}
// @Failure      404 {object} response.APIResponse
// @Router       /branches/{id} [get]
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid branch ID")
		return
	}

	branch, employees, tables, err := h.service.GetByIDWithStaff(r.Context(), id)
	if err != nil {
		response.FromError(w, err, "Failed to get branch")
		return
	}

	resp := branch.ToResponse()
	resp.Employees = make([]*EmployeeResponse, len(employees))
	for i, e := range employees {
		resp.Employees[i] = e.ToResponse()
	}
	resp.Tables = tables

	response.JSON(w, http.StatusOK, resp)
}

// AddEmployee handles POST /branches/{id}/employees
// @Summary      Add employee
// @Description  Add a staff member who can accept cash payments and receive notifications
// @Tags         branches
// @Accept       json
// @Produce      json
// @Param        id path int true "Branch ID"
// @Param        request body AddEmployeeRequest true "Employee"
// @Success      201 {object} response.APIResponse{data=EmployeeResponse}
// @Failure      400 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /branches/{id}/employees [post]
func (h *Handler) AddEmployee(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid branch ID")
		return
	}

	var req AddEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	emp, err := h.service.AddEmployee(r.Context(), id, &req)
	if err != nil {
		response.FromError(w, err, "Failed to add employee")
		return
	}

	response.JSON(w, http.StatusCreated, emp.ToResponse())
}

// AddTable handles POST /branches/{id}/tables
// @Summary      Add table
// @Description  Register a table number in the branch
// @Tags         branches
// @Accept       json
// @Produce      json
// @Param        id path int true "Branch ID"
// @Param        request body AddTableRequest true "Table"
// @Success      201 {object} response.APIResponse{data=Table}
// @Failure      400 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Router       /branches/{id}/tables [post]
func (h *Handler) AddTable(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid branch ID")
		return
	}

	var req AddTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	table, err := h.service.AddTable(r.Context(), id, &req)
	if err != nil {
		response.FromError(w, err, "Failed to add table")
		return
	}

	response.JSON(w, http.StatusCreated, table)
}
