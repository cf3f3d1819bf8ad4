package branch

// CreateBranchRequest represents the request to create a branch
type CreateBranchRequest struct {
	Name         string `json:"name" validate:"required,min=1,max=100"`
	CurrencyCode string `json:"currency_code" validate:"required,len=3"`
}

// AddEmployeeRequest represents the request to add a staff member
type AddEmployeeRequest struct {
	Name   string       `json:"name" validate:"required"`
	Phone  *string      `json:"phone,omitempty"`
	Role   EmployeeRole `json:"role"`
	Notify *bool        `json:"notify,omitempty"`
}

// AddTableRequest represents the request to register a table
type AddTableRequest struct {
	Number int `json:"number" validate:"required,gt=0"`
}

// BranchResponse represents the response for a branch
type BranchResponse struct {
	ID           int64               `json:"id"`
	Name         string              `json:"name"`
	CurrencyCode string              `json:"currency_code"`
	CreatedAt    string              `json:"created_at"`
	Employees    []*EmployeeResponse `json:"employees,omitempty"`
	Tables       []*Table            `json:"tables,omitempty"`
}

// EmployeeResponse represents a staff member in a response
type EmployeeResponse struct {
	ID     int64        `json:"id"`
	Name   string       `json:"name"`
	Phone  *string      `json:"phone,omitempty"`
	Role   EmployeeRole `json:"role"`
	Notify bool         `json:"notify"`
}

// ToResponse converts a Branch model to a BranchResponse DTO
func (b *Branch) ToResponse() *BranchResponse {
	return &BranchResponse{
		ID:           b.ID,
		Name:         b.Name,
		CurrencyCode: b.CurrencyCode,
		CreatedAt:    b.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// ToResponse converts an Employee model to an EmployeeResponse DTO
func (e *Employee) ToResponse() *EmployeeResponse {
	return &EmployeeResponse{
		ID:     e.ID,
		Name:   e.Name,
		Phone:  e.Phone,
		Role:   e.Role,
		Notify: e.Notify,
	}
}
