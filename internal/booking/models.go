package booking

import (
	"fmt"
	"time"
)

const (
	StatusInitiated        = "INITIATED"
	StatusSlotSelected     = "SLOT_SELECTED"
	StatusContactCollected = "CONTACT_COLLECTED"
	StatusConfirmed        = "CONFIRMED"
	StatusRescheduled      = "RESCHEDULED"
	StatusCancelled        = "CANCELLED"
	StatusFailed           = "FAILED"
	StatusExpired          = "EXPIRED"
)

const (
	PaymentCreated = "CREATED"
	PaymentPending = "PENDING"
	PaymentPaid    = "PAID"
)

// IsTerminal reports whether a status retires the booking. At most one
// non-terminal booking may exist per conversation, and non-terminal bookings
// are the ones that occupy a slot.
func IsTerminal(status string) bool {
	switch status {
	case StatusCancelled, StatusFailed, StatusExpired:
		return true
	}
	return false
}

// TerminalStatuses in query-friendly form.
var TerminalStatuses = []string{StatusCancelled, StatusFailed, StatusExpired}

type Booking struct {
	ID             string  `gorm:"type:varchar(36);primaryKey"`
	BusinessID     string  `gorm:"type:varchar(36);index;not null"`
	ServiceID      string  `gorm:"type:varchar(36);index;not null"`
	ConversationID *string `gorm:"type:varchar(26);index"`
	TrackingCode   string  `gorm:"type:varchar(20);uniqueIndex;not null"`
	Status         string  `gorm:"type:varchar(20);index;not null;default:'INITIATED'"`

	SlotStart *time.Time
	SlotEnd   *time.Time
	// SlotKey is "<service id>|<slot start RFC3339>" while the booking holds a
	// slot and is non-terminal, NULL otherwise. The unique index is the guard
	// against two conversations winning the same instant.
	SlotKey *string `gorm:"type:varchar(80);uniqueIndex"`

	CustomerName       *string `gorm:"type:varchar(120)"`
	CustomerPhone      *string `gorm:"type:varchar(40)"`
	CustomerEmail      *string `gorm:"type:varchar(255)"`
	ContactCollectedAt *time.Time

	PaymentStatus string `gorm:"type:varchar(20);not null;default:'CREATED'"`
	PaidAt        *time.Time
	ConfirmedAt   *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Booking) TableName() string { return "bookings" }

func slotKey(serviceID string, start time.Time) string {
	return fmt.Sprintf("%s|%s", serviceID, start.UTC().Format(time.RFC3339))
}
