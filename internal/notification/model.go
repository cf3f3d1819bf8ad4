package notification

import "time"

// Notification is a message addressed to a staff member
type Notification struct {
	ID                int64     `json:"id"`
	RecipientID       int64     `json:"recipient_id"`
	Message           string    `json:"message"`
	IsRead            bool      `json:"is_read"`
	RelatedEntityType *string   `json:"related_entity_type,omitempty"` // e.g., "PAYMENT", "PAYMENT_INTENT", "ORDER"
	RelatedEntityID   *int64    `json:"related_entity_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// NotificationType represents the type of notification
type NotificationType string

const (
	NotificationTypeCashRequested  NotificationType = "CASH_REQUESTED"
	NotificationTypePaymentSettled NotificationType = "PAYMENT_SETTLED"
	NotificationTypeCashRejected   NotificationType = "CASH_REJECTED"
	NotificationTypeCheckoutFailed NotificationType = "CHECKOUT_FAILED"
)

// Message is what the staff of a branch should be told
type Message struct {
	Type       NotificationType
	Body       string
	EntityType string
	EntityID   int64
}

// Recipient is a staff member a message is delivered to
type Recipient struct {
	EmployeeID int64   `json:"employee_id"`
	Name       string  `json:"name"`
	Phone      *string `json:"phone,omitempty"`
}
