package call

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/deskbell/deskbell/internal/channel"
	"github.com/deskbell/deskbell/internal/chat"
	"github.com/deskbell/deskbell/internal/common"
	"github.com/deskbell/deskbell/internal/conversation"
)

const codePrefix = "CALL"

// Service runs voice calls on top of the chat orchestrator: same turns, same
// bookings, replies compacted for text-to-speech.
type Service struct {
	db     *gorm.DB
	chat   *chat.Service
	format channel.Formatter
}

func NewService(db *gorm.DB, chatSvc *chat.Service) *Service {
	return &Service{db: db, chat: chatSvc, format: channel.VoiceFormatter{}}
}

type StartResult struct {
	CallID         string `json:"call_id"`
	ConversationID string `json:"conversation_id"`
	Greeting       string `json:"greeting"`
}

// Start opens a voice conversation and its session row, and returns the
// spoken greeting.
func (s *Service) Start(ctx context.Context, businessSlug, providerCallID, fromNumber string) (*StartResult, error) {
	conv, err := s.chat.StartConversation(ctx, businessSlug, providerCallID, conversation.ChannelVoice)
	if err != nil {
		return nil, err
	}

	var code string
	for {
		c, err := common.NewPublicCode(codePrefix)
		if err != nil {
			return nil, err
		}
		var cnt int64
		if err := s.db.WithContext(ctx).Model(&Session{}).
			Where("public_code = ?", c).Count(&cnt).Error; err != nil {
			return nil, err
		}
		if cnt == 0 {
			code = c
			break
		}
	}

	sess := &Session{
		ID:             uuid.NewString(),
		PublicCode:     code,
		ConversationID: conv.ConversationID,
		Status:         StatusInProgress,
		StartedAt:      time.Now().UTC(),
	}
	if providerCallID != "" {
		sess.ProviderCallID = &providerCallID
	}
	if fromNumber != "" {
		sess.FromNumber = &fromNumber
	}
	loaded, err := s.chat.GetConversation(ctx, conv.ConversationID)
	if err != nil {
		return nil, err
	}
	sess.BusinessID = loaded.BusinessID

	if err := s.db.WithContext(ctx).Create(sess).Error; err != nil {
		return nil, err
	}

	return &StartResult{
		CallID:         sess.PublicCode,
		ConversationID: conv.ConversationID,
		Greeting:       s.format.Format(conv.Greeting),
	}, nil
}

type TurnResult struct {
	Response        string `json:"response"`
	Intent          string `json:"intent"`
	NeedsEscalation bool   `json:"needs_escalation"`
	TicketCode      string `json:"ticket_code,omitempty"`
	TrackingCode    string `json:"tracking_code,omitempty"`
	BookingStatus   string `json:"booking_status,omitempty"`
}

// Message processes one spoken utterance. Escalation marks the session and
// tells the caller a person will take over.
func (s *Service) Message(ctx context.Context, publicCode, text string) (*TurnResult, error) {
	sess, err := s.GetByPublicCode(ctx, publicCode)
	if err != nil {
		return nil, err
	}

	turn, err := s.chat.SendMessage(ctx, sess.ConversationID, text)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if turn.BookingID != "" && sess.BookingID == nil {
		updates["booking_id"] = turn.BookingID
	}
	if turn.NeedsEscalation {
		updates["status"] = StatusEscalated
		if turn.HandoffID != "" && sess.HandoffID == nil {
			updates["handoff_id"] = turn.HandoffID
		}
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&Session{}).
			Where("id = ?", sess.ID).Updates(updates).Error; err != nil {
			return nil, err
		}
	}

	reply := s.format.Format(turn.Response)
	if turn.NeedsEscalation {
		reply = s.format.Format(turn.Response + " Please stay on the line.")
	}

	return &TurnResult{
		Response:        reply,
		Intent:          turn.Intent,
		NeedsEscalation: turn.NeedsEscalation,
		TicketCode:      turn.TicketCode,
		TrackingCode:    turn.TrackingCode,
		BookingStatus:   turn.BookingStatus,
	}, nil
}

// ErrInvalidStatus rejects an end-call status outside the terminal set.
var ErrInvalidStatus = errors.New("invalid terminal call status")

// EndParams carries how a call finished. A blank Status means COMPLETED;
// ResolutionType and Outcome pass through to the conversation when set.
type EndParams struct {
	Status         string
	ResolutionType string
	Outcome        string
}

// End closes the session and resolves the underlying conversation. An
// escalated session keeps its ESCALATED status.
func (s *Service) End(ctx context.Context, publicCode string, p EndParams) (*Session, error) {
	switch p.Status {
	case "", StatusCompleted, StatusAbandoned, StatusFailed:
	default:
		return nil, ErrInvalidStatus
	}

	sess, err := s.GetByPublicCode(ctx, publicCode)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	duration := int(now.Sub(sess.StartedAt).Seconds())
	updates := map[string]any{
		"ended_at":         now,
		"duration_seconds": duration,
	}
	if sess.Status == StatusInProgress {
		final := p.Status
		if final == "" {
			final = StatusCompleted
		}
		updates["status"] = final
	}
	if err := s.db.WithContext(ctx).Model(&Session{}).
		Where("id = ?", sess.ID).Updates(updates).Error; err != nil {
		return nil, err
	}

	if _, err := s.chat.EndConversationAs(ctx, sess.ConversationID, p.ResolutionType, p.Outcome); err != nil {
		return nil, err
	}
	return s.GetByPublicCode(ctx, publicCode)
}

func (s *Service) GetByPublicCode(ctx context.Context, code string) (*Session, error) {
	var sess Session
	if err := s.db.WithContext(ctx).
		Where("public_code = ?", code).
		First(&sess).Error; err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *Service) GetByProviderCallID(ctx context.Context, providerID string) (*Session, error) {
	var sess Session
	if err := s.db.WithContext(ctx).
		Where("provider_call_id = ?", providerID).
		First(&sess).Error; err != nil {
		return nil, err
	}
	return &sess, nil
}

type SearchParams struct {
	BusinessID string
	Status     string
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

// Search lists sessions newest first with optional filters.
func (s *Service) Search(ctx context.Context, p SearchParams) ([]Session, int64, error) {
	q := s.db.WithContext(ctx).Model(&Session{})
	if p.BusinessID != "" {
		q = q.Where("business_id = ?", p.BusinessID)
	}
	if p.Status != "" {
		q = q.Where("status = ?", p.Status)
	}
	if p.From != nil {
		q = q.Where("started_at >= ?", *p.From)
	}
	if p.To != nil {
		q = q.Where("started_at <= ?", *p.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := p.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var out []Session
	err := q.Order("started_at DESC").Limit(limit).Offset(p.Offset).Find(&out).Error
	return out, total, err
}

type Analytics struct {
	Total          int64   `json:"total"`
	Completed      int64   `json:"completed"`
	Escalated      int64   `json:"escalated"`
	Abandoned      int64   `json:"abandoned"`
	Failed         int64   `json:"failed"`
	EscalationRate float64 `json:"escalation_rate"`
	AvgDurationSec float64 `json:"avg_duration_seconds"`
}

// Stats aggregates call outcomes for a business.
func (s *Service) Stats(ctx context.Context, businessID string) (*Analytics, error) {
	base := func() *gorm.DB {
		return s.db.WithContext(ctx).Model(&Session{}).Where("business_id = ?", businessID)
	}

	var a Analytics
	if err := base().Count(&a.Total).Error; err != nil {
		return nil, err
	}
	counts := map[string]*int64{
		StatusCompleted: &a.Completed,
		StatusEscalated: &a.Escalated,
		StatusAbandoned: &a.Abandoned,
		StatusFailed:    &a.Failed,
	}
	for status, dst := range counts {
		if err := base().Where("status = ?", status).Count(dst).Error; err != nil {
			return nil, err
		}
	}
	if a.Total > 0 {
		a.EscalationRate = float64(a.Escalated) / float64(a.Total)
	}

	var avg *float64
	if err := base().Where("duration_seconds IS NOT NULL").
		Select("AVG(duration_seconds)").Scan(&avg).Error; err != nil {
		return nil, err
	}
	if avg != nil {
		a.AvgDurationSec = *avg
	}
	return &a, nil
}
