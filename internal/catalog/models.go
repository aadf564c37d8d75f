package catalog

import "time"

// Business and its catalog are managed by an external admin surface; this
// package only reads them.
type Business struct {
	ID        string `gorm:"type:varchar(36);primaryKey"`
	Slug      string `gorm:"type:varchar(120);uniqueIndex;not null"`
	Name      string `gorm:"type:varchar(200);not null"`
	Timezone  string `gorm:"type:varchar(64);not null;default:'UTC'"`
	AgentName string `gorm:"type:varchar(120);not null;default:'Assistant'"`
	AgentTone string `gorm:"type:varchar(120);not null;default:'friendly and professional'"`
	IsActive  bool   `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Business) TableName() string { return "businesses" }

type Service struct {
	ID              string  `gorm:"type:varchar(36);primaryKey"`
	BusinessID      string  `gorm:"type:varchar(36);index;not null"`
	Slug            string  `gorm:"type:varchar(140);not null"`
	Name            string  `gorm:"type:varchar(200);not null"`
	Description     string  `gorm:"type:text"`
	BasePrice       float64 `gorm:"type:decimal(12,2)"`
	Currency        string  `gorm:"type:varchar(3)"`
	DurationMinutes int     `gorm:"not null;default:60"`
	IsActive        bool    `gorm:"not null;default:true"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (Service) TableName() string { return "services" }

// OperatingHours holds one row per weekday, 0=Monday through 6=Sunday.
// Open and close are local wall-clock times in "15:04" form.
type OperatingHours struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	BusinessID string `gorm:"type:varchar(36);index:idx_hours_business_day,priority:1;not null"`
	DayOfWeek  int    `gorm:"index:idx_hours_business_day,priority:2;not null"`
	OpenTime   string `gorm:"type:varchar(5)"`
	CloseTime  string `gorm:"type:varchar(5)"`
	IsClosed   bool   `gorm:"not null;default:false"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (OperatingHours) TableName() string { return "business_operating_hours" }

const (
	ExceptionClosed        = "CLOSED"
	ExceptionModifiedHours = "MODIFIED_HOURS"
	ExceptionSpecialEvent  = "SPECIAL_EVENT"
)

// AvailabilityException overrides the weekly hours for a datetime range,
// e.g. a holiday closure.
type AvailabilityException struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement"`
	BusinessID string    `gorm:"type:varchar(36);index;not null"`
	Type       string    `gorm:"type:varchar(20);not null"`
	StartAt    time.Time `gorm:"not null"`
	EndAt      time.Time `gorm:"not null"`
	Note       string    `gorm:"type:text"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (AvailabilityException) TableName() string { return "business_availability_exceptions" }
