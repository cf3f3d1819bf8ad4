package diner

// JoinTableRequest represents the name prompt shown after scanning the QR code
type JoinTableRequest struct {
	Name  string `json:"name" validate:"required,min=1,max=40"`
	Color string `json:"color,omitempty"`
}

// DinerResponse represents the response for a diner
type DinerResponse struct {
	ID      int64  `json:"id"`
	TableID int64  `json:"table_id"`
	OrderID *int64 `json:"order_id,omitempty"`
	Name    string `json:"name"`
	Color   string `json:"color"`
	Paid    string `json:"paid"`
	Tip     string `json:"tip"`
	Total   string `json:"total"`
}

// ToResponse converts a Diner model to a DinerResponse DTO
func (d *Diner) ToResponse() *DinerResponse {
	return &DinerResponse{
		ID:      d.ID,
		TableID: d.TableID,
		OrderID: d.OrderID,
		Name:    d.Name,
		Color:   d.Color,
		Paid:    d.Paid.StringFixed(2),
		Tip:     d.Tip.StringFixed(2),
		Total:   d.Total.StringFixed(2),
	}
}
