package conversation

import "time"

const (
	ChannelChat  = "CHAT"
	ChannelVoice = "VOICE"
	ChannelHuman = "HUMAN"
)

const (
	StatusStarted    = "STARTED"
	StatusInProgress = "IN_PROGRESS"
	StatusResolved   = "RESOLVED"
	StatusAbandoned  = "ABANDONED"
)

const (
	ResolutionAIResolved     = "AI_RESOLVED"
	ResolutionHumanEscalated = "HUMAN_ESCALATED"
	ResolutionUserAbandoned  = "USER_ABANDONED"
	ResolutionFailed         = "FAILED"
)

const (
	OutcomeBooked    = "BOOKED"
	OutcomeEscalated = "ESCALATED"
	OutcomeDropped   = "DROPPED"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Conversation struct {
	ID             string `gorm:"type:varchar(26);primaryKey"`
	BusinessID     string `gorm:"type:varchar(36);index;not null"`
	Channel        string `gorm:"type:varchar(10);not null"`
	Status         string `gorm:"type:varchar(20);not null;default:'STARTED'"`
	ResolutionType *string `gorm:"type:varchar(30)"`
	Outcome        *string `gorm:"type:varchar(20)"`
	UserSessionID  *string `gorm:"type:varchar(120)"`
	StartedAt      time.Time
	LastMessageAt  *time.Time
	ResolvedAt     *time.Time
	ClosedAt       *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (Conversation) TableName() string { return "conversations" }

// Message rows are append-only; creation order is the conversation history
// fed back into the NLU oracle.
type Message struct {
	ID             uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID string `gorm:"type:varchar(26);index;not null" json:"conversation_id"`
	Role           string `gorm:"type:varchar(16);not null" json:"role"`
	Content        string `gorm:"type:text;not null" json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

func (Message) TableName() string { return "conversation_messages" }
