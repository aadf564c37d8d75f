package call

import "time"

const (
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
	StatusEscalated  = "ESCALATED"
	StatusAbandoned  = "ABANDONED"
	StatusFailed     = "FAILED"
)

// Session is one voice call. The dialogue itself lives in the linked
// conversation; the session tracks telephony metadata and the outcome.
type Session struct {
	ID             string  `gorm:"type:varchar(36);primaryKey"`
	PublicCode     string  `gorm:"type:varchar(24);uniqueIndex;not null"`
	BusinessID     string  `gorm:"type:varchar(36);index;not null"`
	ConversationID string  `gorm:"type:varchar(26);index;not null"`
	ProviderCallID *string `gorm:"type:varchar(120);index"`
	FromNumber     *string `gorm:"type:varchar(40)"`

	Status string `gorm:"type:varchar(16);index;not null;default:'IN_PROGRESS'"`

	BookingID *string `gorm:"type:varchar(36);index"`
	HandoffID *string `gorm:"type:varchar(36);index"`

	StartedAt       time.Time
	EndedAt         *time.Time
	DurationSeconds *int

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Session) TableName() string { return "call_sessions" }
