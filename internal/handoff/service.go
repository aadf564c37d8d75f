package handoff

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/deskbell/deskbell/internal/common"
	"github.com/deskbell/deskbell/internal/conversation"
)

const ticketPrefix = "HO"

type Service struct {
	db    *gorm.DB
	convs *conversation.Repo
}

func NewService(db *gorm.DB, convs *conversation.Repo) *Service {
	return &Service{db: db, convs: convs}
}

type CreateParams struct {
	BusinessID     string
	ConversationID string
	BookingID      *string
	Reason         string
	ContactName    *string
	ContactPhone   *string
	ContactEmail   *string
}

// Create opens a ticket and terminally resolves the owning conversation as
// human-escalated. Partial contact is acceptable here, unlike booking
// confirmation.
func (s *Service) Create(ctx context.Context, p CreateParams) (*Request, error) {
	var code string
	for {
		c, err := common.NewPublicCode(ticketPrefix)
		if err != nil {
			return nil, err
		}
		var cnt int64
		if err := s.db.WithContext(ctx).Model(&Request{}).
			Where("ticket_code = ?", c).
			Count(&cnt).Error; err != nil {
			return nil, err
		}
		if cnt == 0 {
			code = c
			break
		}
	}

	token, err := common.NewSecretToken()
	if err != nil {
		return nil, err
	}

	req := &Request{
		ID:             uuid.NewString(),
		BusinessID:     p.BusinessID,
		ConversationID: p.ConversationID,
		BookingID:      p.BookingID,
		TicketCode:     code,
		SecretToken:    token,
		Status:         StatusOpen,
		Reason:         p.Reason,
		ContactName:    p.ContactName,
		ContactPhone:   p.ContactPhone,
		ContactEmail:   p.ContactEmail,
	}
	if err := s.db.WithContext(ctx).Create(req).Error; err != nil {
		return nil, err
	}

	if err := s.convs.Resolve(ctx, p.ConversationID,
		conversation.ResolutionHumanEscalated, conversation.OutcomeEscalated); err != nil {
		return nil, err
	}
	return req, nil
}

func (s *Service) GetByTicketCode(ctx context.Context, code string) (*Request, error) {
	var r Request
	if err := s.db.WithContext(ctx).
		Where("ticket_code = ?", code).
		First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Service) GetBySecretToken(ctx context.Context, token string) (*Request, error) {
	var r Request
	if err := s.db.WithContext(ctx).
		Where("secret_token = ?", token).
		First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// GetByConversation returns the latest ticket for a conversation, or nil.
// One-per-conversation is enforced by the orchestrator's reconciliation, not
// by a uniqueness constraint here.
func (s *Service) GetByConversation(ctx context.Context, conversationID string) (*Request, error) {
	var r Request
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// UpdateStatus is the admin-side transition OPEN -> ASSIGNED -> RESOLVED/CLOSED.
func (s *Service) UpdateStatus(ctx context.Context, id, status string) (*Request, error) {
	updates := map[string]any{"status": status}
	if status == StatusResolved || status == StatusClosed {
		updates["resolved_at"] = time.Now().UTC()
	}
	res := s.db.WithContext(ctx).Model(&Request{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	var r Request
	if err := s.db.WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// ListOpen returns unresolved tickets for a business, newest first.
func (s *Service) ListOpen(ctx context.Context, businessID string) ([]Request, error) {
	var out []Request
	err := s.db.WithContext(ctx).
		Where("business_id = ? AND status IN ?", businessID, []string{StatusOpen, StatusAssigned}).
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}
