package catalog

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) GetBusinessBySlug(ctx context.Context, slug string) (*Business, error) {
	var b Business
	if err := r.db.WithContext(ctx).
		Where("slug = ? AND is_active = ?", slug, true).
		First(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *Repo) GetBusinessByID(ctx context.Context, id string) (*Business, error) {
	var b Business
	if err := r.db.WithContext(ctx).First(&b, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *Repo) ListActiveServices(ctx context.Context, businessID string) ([]Service, error) {
	var svcs []Service
	if err := r.db.WithContext(ctx).
		Where("business_id = ? AND is_active = ?", businessID, true).
		Order("name ASC").
		Find(&svcs).Error; err != nil {
		return nil, err
	}
	return svcs, nil
}

func (r *Repo) GetService(ctx context.Context, id string) (*Service, error) {
	var s Service
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// HoursForWeekday returns the operating-hours row for a weekday (0=Monday),
// or nil when none is configured.
func (r *Repo) HoursForWeekday(ctx context.Context, businessID string, dayOfWeek int) (*OperatingHours, error) {
	var h OperatingHours
	err := r.db.WithContext(ctx).
		Where("business_id = ? AND day_of_week = ?", businessID, dayOfWeek).
		First(&h).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// HasClosure reports whether a CLOSED exception overlaps the given day.
func (r *Repo) HasClosure(ctx context.Context, businessID string, dayStart, dayEnd time.Time) (bool, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&AvailabilityException{}).
		Where("business_id = ? AND type = ? AND start_at <= ? AND end_at >= ?",
			businessID, ExceptionClosed, dayEnd, dayStart).
		Count(&cnt).Error
	if err != nil {
		return false, err
	}
	return cnt > 0, nil
}
