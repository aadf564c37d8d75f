package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
)

// ErrSlotTaken is returned when the slot-key unique index rejects a
// reservation: another non-terminal booking already holds that instant.
var ErrSlotTaken = errors.New("slot already taken")

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Create(ctx context.Context, b *Booking) error {
	return r.db.WithContext(ctx).Create(b).Error
}

func (r *Repo) GetByID(ctx context.Context, id string) (*Booking, error) {
	var b Booking
	if err := r.db.WithContext(ctx).First(&b, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

// GetByTrackingCode is customer-facing and therefore case-insensitive.
func (r *Repo) GetByTrackingCode(ctx context.Context, code string) (*Booking, error) {
	var b Booking
	if err := r.db.WithContext(ctx).
		Where("UPPER(tracking_code) = ?", strings.ToUpper(code)).
		First(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

// ActiveByConversation returns the single non-terminal booking owned by a
// conversation, or nil when there is none.
func (r *Repo) ActiveByConversation(ctx context.Context, conversationID string) (*Booking, error) {
	var b Booking
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND status NOT IN ?", conversationID, TerminalStatuses).
		Order("created_at DESC").
		First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *Repo) CountByTrackingCode(ctx context.Context, code string) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&Booking{}).
		Where("tracking_code = ?", code).
		Count(&cnt).Error
	return cnt, err
}

// CountAtSlot counts non-terminal bookings for a service at an exact start
// instant. Equality on the start is deliberate; see the slots package.
func (r *Repo) CountAtSlot(ctx context.Context, serviceID string, start time.Time) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&Booking{}).
		Where("service_id = ? AND slot_start = ? AND status NOT IN ?",
			serviceID, start.UTC(), TerminalStatuses).
		Count(&cnt).Error
	return cnt, err
}

// ReserveSlot writes the slot window plus the guarding slot key. A unique
// violation maps to ErrSlotTaken so callers re-derive alternatives instead of
// surfacing a raw conflict.
func (r *Repo) ReserveSlot(ctx context.Context, id string, start, end time.Time, status string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var b Booking
		if err := tx.First(&b, "id = ?", id).Error; err != nil {
			return err
		}
		startUTC := start.UTC()
		endUTC := end.UTC()
		k := slotKey(b.ServiceID, startUTC)
		err := tx.Model(&Booking{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"slot_start": startUTC,
				"slot_end":   endUTC,
				"slot_key":   k,
				"status":     status,
			}).Error
		if err != nil {
			if isUniqueViolation(err) {
				return ErrSlotTaken
			}
			return err
		}
		return nil
	})
}

func (r *Repo) SetContact(ctx context.Context, id, name, phone, email string) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Booking{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"customer_name":        name,
				"customer_phone":       phone,
				"customer_email":       email,
				"contact_collected_at": now,
			}).Error; err != nil {
			return err
		}
		// advance the lifecycle, never demote a confirmed booking
		return tx.Model(&Booking{}).
			Where("id = ? AND status IN ?", id, []string{StatusInitiated, StatusSlotSelected}).
			Update("status", StatusContactCollected).Error
	})
}

func (r *Repo) UpdateStatus(ctx context.Context, id, status string, extra map[string]any) error {
	updates := map[string]any{"status": status}
	for k, v := range extra {
		updates[k] = v
	}
	if IsTerminal(status) {
		// release the slot guard so the instant becomes bookable again
		updates["slot_key"] = nil
	}
	return r.db.WithContext(ctx).Model(&Booking{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// ExpireStale retires non-terminal bookings untouched since the cutoff.
// Confirmed and rescheduled appointments are kept; nothing else retires an
// abandoned conversation's booking.
func (r *Repo) ExpireStale(ctx context.Context, cutoff time.Time) (int64, error) {
	kept := append([]string{StatusConfirmed, StatusRescheduled}, TerminalStatuses...)
	res := r.db.WithContext(ctx).Model(&Booking{}).
		Where("status NOT IN ? AND updated_at < ?", kept, cutoff).
		Updates(map[string]any{"status": StatusExpired, "slot_key": nil})
	return res.RowsAffected, res.Error
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint") || strings.Contains(msg, "Duplicate entry")
}
