package notification

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/fkhayef/tablepay/internal/branch"
	"github.com/fkhayef/tablepay/pkg/apperr"
)

// Common errors
var (
	ErrNotificationNotFound = apperr.NotFound("notification not found")
	ErrNotRecipient         = apperr.Validation("not the recipient of this notification")
)

// Store is the persistence the notification service needs
type Store interface {
	Create(ctx context.Context, recipientID int64, message string, entityType *string, entityID *int64) (*Notification, error)
	GetByID(ctx context.Context, id int64) (*Notification, error)
	ListByRecipientID(ctx context.Context, recipientID int64, limit, offset int, unreadOnly bool) ([]*Notification, int, error)
	MarkAsRead(ctx context.Context, id int64) error
	MarkAllAsRead(ctx context.Context, recipientID int64) error
	GetUnreadCount(ctx context.Context, recipientID int64) (int, error)
}

// StaffDirectory lists the employees of a branch who want notifications
type StaffDirectory interface {
	StaffToNotify(ctx context.Context, branchID int64) ([]*branch.Employee, error)
}

// Service handles notification business logic
type Service struct {
	repo       Store
	staff      StaffDirectory
	dispatcher Dispatcher
}

// NewService creates a new notification service
func NewService(repo Store, staff StaffDirectory, dispatcher Dispatcher) *Service {
	if dispatcher == nil {
		dispatcher = LogDispatcher{}
	}
	return &Service{repo: repo, staff: staff, dispatcher: dispatcher}
}

// NotifyStaff stores the message for every notifiable employee of the
// branch and hands it to the dispatcher. Delivery is best-effort: dispatch
// failures are logged, only storage failures are returned.
func (s *Service) NotifyStaff(ctx context.Context, branchID int64, msg Message) ([]*Notification, error) {
	employees, err := s.staff.StaffToNotify(ctx, branchID)
	if err != nil {
		return nil, err
	}

	var entityType *string
	var entityID *int64
	if msg.EntityType != "" {
		entityType = &msg.EntityType
		entityID = &msg.EntityID
	}

	created := make([]*Notification, 0, len(employees))
	recipients := make([]Recipient, 0, len(employees))
	for _, e := range employees {
		n, err := s.repo.Create(ctx, e.ID, msg.Body, entityType, entityID)
		if err != nil {
			return created, err
		}
		created = append(created, n)
		recipients = append(recipients, Recipient{EmployeeID: e.ID, Name: e.Name, Phone: e.Phone})
	}

	if err := s.dispatcher.Dispatch(ctx, recipients, msg); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"branch_id": branchID,
			"type":      msg.Type,
		}).Warn("notification dispatch failed")
	}

	return created, nil
}

// GetByID retrieves a notification by its ID
func (s *Service) GetByID(ctx context.Context, id int64) (*Notification, error) {
	notification, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if notification == nil {
		return nil, ErrNotificationNotFound
	}
	return notification, nil
}

// ListByRecipientID retrieves all notifications for an employee
func (s *Service) ListByRecipientID(ctx context.Context, recipientID int64, page, perPage int, unreadOnly bool) ([]*Notification, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	offset := (page - 1) * perPage
	return s.repo.ListByRecipientID(ctx, recipientID, perPage, offset, unreadOnly)
}

// MarkAsRead marks a notification as read
func (s *Service) MarkAsRead(ctx context.Context, id, employeeID int64) error {
	notification, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if notification.RecipientID != employeeID {
		return ErrNotRecipient
	}

	return s.repo.MarkAsRead(ctx, id)
}

// MarkAllAsRead marks all notifications as read for an employee
func (s *Service) MarkAllAsRead(ctx context.Context, employeeID int64) error {
	return s.repo.MarkAllAsRead(ctx, employeeID)
}

// GetUnreadCount returns the count of unread notifications
func (s *Service) GetUnreadCount(ctx context.Context, employeeID int64) (int, error) {
	return s.repo.GetUnreadCount(ctx, employeeID)
}
