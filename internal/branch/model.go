package branch

import "time"

// EmployeeRole represents the role of a staff member in a branch
type EmployeeRole string

const (
	EmployeeRoleManager EmployeeRole = "MANAGER"
	EmployeeRoleWaiter  EmployeeRole = "WAITER"
)

// Branch is one restaurant location; it fixes the currency of its orders
type Branch struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	CurrencyCode string    `json:"currency_code"`
	CreatedAt    time.Time `json:"created_at"`
}

// Employee is a staff member who receives payment notifications
type Employee struct {
	ID        int64        `json:"id"`
	BranchID  int64        `json:"branch_id"`
	Name      string       `json:"name"`
	Phone     *string      `json:"phone,omitempty"`
	Role      EmployeeRole `json:"role"`
	Notify    bool         `json:"notify"`
	CreatedAt time.Time    `json:"created_at"`
}

// Table is a physical table diners reach by QR code
type Table struct {
	ID        int64     `json:"id"`
	BranchID  int64     `json:"branch_id"`
	Number    int       `json:"number"`
	CreatedAt time.Time `json:"created_at"`

	// Populated via JOIN
	CurrencyCode string `json:"currency_code,omitempty"`
}
