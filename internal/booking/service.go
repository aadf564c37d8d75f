package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/deskbell/deskbell/internal/common"
)

var (
	// ErrAlreadyCancelled: cancelling twice is an error, not a no-op.
	ErrAlreadyCancelled = errors.New("booking is already cancelled")
	// ErrTerminalState rejects mutations of cancelled/failed/expired bookings.
	ErrTerminalState = errors.New("booking is in a terminal state")
	// ErrIncomplete rejects confirmation without service, slot and the full
	// contact triple.
	ErrIncomplete = errors.New("booking is missing required information")
)

const trackingPrefix = "BK"

type Service struct {
	repo *Repo
}

func NewService(repo *Repo) *Service {
	return &Service{repo: repo}
}

// Create opens a booking in INITIATED state with a fresh tracking code.
// Codes are regenerated until unused.
func (s *Service) Create(ctx context.Context, businessID, serviceID string, conversationID *string) (*Booking, error) {
	var code string
	for {
		c, err := common.NewPublicCode(trackingPrefix)
		if err != nil {
			return nil, err
		}
		cnt, err := s.repo.CountByTrackingCode(ctx, c)
		if err != nil {
			return nil, err
		}
		if cnt == 0 {
			code = c
			break
		}
	}

	b := &Booking{
		ID:             uuid.NewString(),
		BusinessID:     businessID,
		ServiceID:      serviceID,
		ConversationID: conversationID,
		TrackingCode:   code,
		Status:         StatusInitiated,
		PaymentStatus:  PaymentCreated,
	}
	if err := s.repo.Create(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// SetSlot reserves the window for an active booking. ErrSlotTaken means the
// race was lost and the caller should offer alternatives.
func (s *Service) SetSlot(ctx context.Context, id string, start, end time.Time) error {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if IsTerminal(b.Status) {
		return ErrTerminalState
	}
	return s.repo.ReserveSlot(ctx, id, start, end, StatusSlotSelected)
}

func (s *Service) SetContact(ctx context.Context, id, name, phone, email string) error {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if IsTerminal(b.Status) {
		return ErrTerminalState
	}
	return s.repo.SetContact(ctx, id, name, phone, email)
}

// Confirm moves a booking to CONFIRMED. It refuses unless the slot window and
// the full contact triple are present.
func (s *Service) Confirm(ctx context.Context, id string) (*Booking, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if IsTerminal(b.Status) {
		return nil, ErrTerminalState
	}
	if b.SlotStart == nil || !hasFullContact(b) {
		return nil, ErrIncomplete
	}
	now := time.Now().UTC()
	if err := s.repo.UpdateStatus(ctx, id, StatusConfirmed, map[string]any{"confirmed_at": now}); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Cancel(ctx context.Context, id string) (*Booking, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status == StatusCancelled {
		return nil, ErrAlreadyCancelled
	}
	if IsTerminal(b.Status) {
		return nil, ErrTerminalState
	}
	if err := s.repo.UpdateStatus(ctx, id, StatusCancelled, nil); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) CancelByTrackingCode(ctx context.Context, code string) (*Booking, error) {
	b, err := s.repo.GetByTrackingCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.Cancel(ctx, b.ID)
}

// Reschedule replaces the slot window. A confirmed booking stays active with
// the RESCHEDULED marker rather than dropping back to SLOT_SELECTED.
func (s *Service) Reschedule(ctx context.Context, id string, newStart, newEnd time.Time) (*Booking, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if IsTerminal(b.Status) {
		return nil, ErrTerminalState
	}
	if err := s.repo.ReserveSlot(ctx, id, newStart, newEnd, StatusRescheduled); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) RescheduleByTrackingCode(ctx context.Context, code string, newStart, newEnd time.Time) (*Booking, error) {
	b, err := s.repo.GetByTrackingCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.Reschedule(ctx, b.ID, newStart, newEnd)
}

func (s *Service) Get(ctx context.Context, id string) (*Booking, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByTrackingCode(ctx context.Context, code string) (*Booking, error) {
	return s.repo.GetByTrackingCode(ctx, code)
}

func (s *Service) ActiveByConversation(ctx context.Context, conversationID string) (*Booking, error) {
	return s.repo.ActiveByConversation(ctx, conversationID)
}

// ExpireStale is the idle-expiry sweep run by the worker.
func (s *Service) ExpireStale(ctx context.Context, idleFor time.Duration) (int64, error) {
	return s.repo.ExpireStale(ctx, time.Now().UTC().Add(-idleFor))
}

func hasFullContact(b *Booking) bool {
	return b.CustomerName != nil && *b.CustomerName != "" &&
		b.CustomerPhone != nil && *b.CustomerPhone != "" &&
		b.CustomerEmail != nil && *b.CustomerEmail != ""
}
