package handoff

import "time"

const (
	StatusOpen     = "OPEN"
	StatusAssigned = "ASSIGNED"
	StatusResolved = "RESOLVED"
	StatusClosed   = "CLOSED"
)

// Request is a human-handoff ticket. The orchestrator creates at most one per
// conversation; status transitions past OPEN are admin-driven.
type Request struct {
	ID             string  `gorm:"type:varchar(36);primaryKey"`
	BusinessID     string  `gorm:"type:varchar(36);index;not null"`
	ConversationID string  `gorm:"type:varchar(26);index;not null"`
	BookingID      *string `gorm:"type:varchar(36);index"`
	TicketCode     string  `gorm:"type:varchar(24);uniqueIndex;not null"`
	SecretToken    string  `gorm:"type:varchar(80);uniqueIndex;not null"`
	Status         string  `gorm:"type:varchar(16);index;not null;default:'OPEN'"`
	Reason         string  `gorm:"type:varchar(80);not null"`
	ContactName    *string `gorm:"type:varchar(120)"`
	ContactPhone   *string `gorm:"type:varchar(40)"`
	ContactEmail   *string `gorm:"type:varchar(255)"`
	ResolvedAt     *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (Request) TableName() string { return "handoff_requests" }
