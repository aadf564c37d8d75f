package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/deskbell/deskbell/internal/booking"
	"github.com/deskbell/deskbell/internal/catalog"
	"github.com/deskbell/deskbell/internal/common"
	"github.com/deskbell/deskbell/internal/conversation"
	"github.com/deskbell/deskbell/internal/flow"
	"github.com/deskbell/deskbell/internal/handoff"
	"github.com/deskbell/deskbell/internal/intent"
	"github.com/deskbell/deskbell/internal/nlu"
	"github.com/deskbell/deskbell/internal/slots"
	"github.com/deskbell/deskbell/internal/store/rabbitmq"
	"github.com/deskbell/deskbell/internal/store/redisstore"
)

var (
	// ErrConversationBusy means another turn holds the per-conversation lock.
	ErrConversationBusy = errors.New("conversation is processing another message")
)

const turnLockTTL = 30 * time.Second

// EventPublisher is the outbound queue surface. *rabbitmq.Publisher satisfies
// it; a nil publisher disables events.
type EventPublisher interface {
	PublishEvent(ctx context.Context, kind string, payload map[string]string) error
}

// Service is the turn orchestrator: it classifies the message, runs the flow
// engine, then reconciles whatever the turn decided into bookings, handoffs
// and the conversation record.
type Service struct {
	catalog  *catalog.Repo
	convs    *conversation.Repo
	bookings *booking.Service
	handoffs *handoff.Service
	slots    *slots.Engine
	router   *intent.Router
	flow     *flow.Engine
	locks    *redisstore.Store
	events   EventPublisher

	historyWindow int
}

func NewService(
	cat *catalog.Repo,
	convs *conversation.Repo,
	bookings *booking.Service,
	handoffs *handoff.Service,
	engine *slots.Engine,
	provider nlu.Provider,
	locks *redisstore.Store,
	events EventPublisher,
	historyWindow int,
) *Service {
	if historyWindow <= 0 {
		historyWindow = 20
	}
	return &Service{
		catalog:       cat,
		convs:         convs,
		bookings:      bookings,
		handoffs:      handoffs,
		slots:         engine,
		router:        intent.NewRouter(provider),
		flow:          flow.NewEngine(provider),
		locks:         locks,
		events:        events,
		historyWindow: historyWindow,
	}
}

type StartResult struct {
	ConversationID string `json:"conversation_id"`
	BusinessName   string `json:"business_name"`
	AgentName      string `json:"agent_name"`
	Greeting       string `json:"greeting"`
}

// StartConversation opens a conversation against a business and seeds the
// greeting as the first assistant message.
func (s *Service) StartConversation(ctx context.Context, businessSlug, sessionID, channel string) (*StartResult, error) {
	biz, err := s.catalog.GetBusinessBySlug(ctx, businessSlug)
	if err != nil {
		return nil, err
	}

	if channel != conversation.ChannelVoice {
		channel = conversation.ChannelChat
	}

	id, err := common.NewULID()
	if err != nil {
		return nil, err
	}
	conv := &conversation.Conversation{
		ID:         id,
		BusinessID: biz.ID,
		Channel:    channel,
		Status:     conversation.StatusStarted,
		StartedAt:  time.Now().UTC(),
	}
	if sessionID != "" {
		conv.UserSessionID = &sessionID
	}
	if err := s.convs.Create(ctx, conv); err != nil {
		return nil, err
	}

	greeting := fmt.Sprintf("Hi, I'm %s! Welcome to %s. I can help you book an appointment. How can I help today?",
		biz.AgentName, biz.Name)
	if err := s.convs.InsertMessage(ctx, &conversation.Message{
		ConversationID: conv.ID,
		Role:           conversation.RoleAssistant,
		Content:        greeting,
	}); err != nil {
		return nil, err
	}

	return &StartResult{
		ConversationID: conv.ID,
		BusinessName:   biz.Name,
		AgentName:      biz.AgentName,
		Greeting:       greeting,
	}, nil
}

type TurnResult struct {
	Response        string       `json:"response"`
	Intent          string       `json:"intent"`
	BookingID       string       `json:"booking_id,omitempty"`
	TrackingCode    string       `json:"tracking_code,omitempty"`
	BookingStatus   string       `json:"booking_status,omitempty"`
	HandoffID       string       `json:"handoff_id,omitempty"`
	TicketCode      string       `json:"ticket_code,omitempty"`
	NeedsEscalation bool         `json:"needs_escalation"`
	SlotUnavailable bool         `json:"slot_unavailable"`
	Alternatives    []slots.Slot `json:"alternatives,omitempty"`
}

// SendMessage processes one user turn end to end. The turn always yields a
// reply; oracle trouble degrades the wording, never the turn.
func (s *Service) SendMessage(ctx context.Context, conversationID, text string) (*TurnResult, error) {
	ok, err := s.locks.AcquireTurnLock(ctx, conversationID, turnLockTTL)
	if err != nil {
		log.Printf("chat: turn lock: %v", err)
	} else if !ok {
		return nil, ErrConversationBusy
	}
	defer func() {
		if err := s.locks.ReleaseTurnLock(context.WithoutCancel(ctx), conversationID); err != nil {
			log.Printf("chat: release turn lock: %v", err)
		}
	}()

	conv, err := s.convs.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	biz, err := s.catalog.GetBusinessByID(ctx, conv.BusinessID)
	if err != nil {
		return nil, err
	}
	services, err := s.catalog.ListActiveServices(ctx, biz.ID)
	if err != nil {
		return nil, err
	}

	st := &flow.TurnState{
		ConversationID: conv.ID,
		BusinessID:     biz.ID,
		AgentName:      biz.AgentName,
		AgentTone:      biz.AgentTone,
		Services:       services,
		Message:        text,
	}

	if err := s.loadHistory(ctx, st); err != nil {
		return nil, err
	}

	active, err := s.bookings.ActiveByConversation(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	s.seedFromBooking(st, active)

	existing, err := s.handoffs.GetByConversation(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		st.HandoffID = existing.ID
		st.TicketCode = existing.TicketCode
	}

	st.Intent, st.Entities = s.router.Route(ctx, services, text, businessNow(biz))
	s.flow.Run(ctx, st)

	s.handleSpecialIntents(ctx, st, active)
	s.reconcile(ctx, st, active, existing)

	if st.SlotUnavailable {
		st.Response = flow.FormatAlternatives(st.Alternatives)
	}

	if err := s.persistTurn(ctx, conv.ID, text, st.Response); err != nil {
		return nil, err
	}

	return &TurnResult{
		Response:        st.Response,
		Intent:          string(st.Intent),
		BookingID:       st.BookingID,
		TrackingCode:    st.TrackingCode,
		BookingStatus:   st.BookingStatus,
		HandoffID:       st.HandoffID,
		TicketCode:      st.TicketCode,
		NeedsEscalation: st.NeedsEscalation,
		SlotUnavailable: st.SlotUnavailable,
		Alternatives:    st.Alternatives,
	}, nil
}

func (s *Service) loadHistory(ctx context.Context, st *flow.TurnState) error {
	recent, err := s.convs.ListRecentMessagesDesc(ctx, st.ConversationID, s.historyWindow)
	if err != nil {
		return err
	}
	st.History = make([]nlu.Message, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		st.History = append(st.History, nlu.Message{Role: recent[i].Role, Content: recent[i].Content})
	}
	return nil
}

// seedFromBooking rehydrates the turn state from the active booking so
// progress from earlier turns carries over.
func (s *Service) seedFromBooking(st *flow.TurnState, b *booking.Booking) {
	if b == nil {
		return
	}
	st.BookingID = b.ID
	st.TrackingCode = b.TrackingCode
	st.BookingStatus = b.Status
	st.SelectedServiceID = b.ServiceID
	for _, svc := range st.Services {
		if svc.ID == b.ServiceID {
			st.SelectedServiceName = svc.Name
			break
		}
	}
	st.SlotStart = b.SlotStart
	st.SlotEnd = b.SlotEnd
	if b.CustomerName != nil {
		st.ContactName = *b.CustomerName
	}
	if b.CustomerPhone != nil {
		st.ContactPhone = *b.CustomerPhone
	}
	if b.CustomerEmail != nil {
		st.ContactEmail = *b.CustomerEmail
	}
}

// handleSpecialIntents answers status, cancel-confirmation and reschedule
// turns straight from the database, replacing the flow engine's placeholder
// reply.
func (s *Service) handleSpecialIntents(ctx context.Context, st *flow.TurnState, active *booking.Booking) {
	switch st.Intent {
	case intent.CheckStatus:
		code := st.Entities.TrackingCode
		if code == "" {
			code = st.TrackingCode
		}
		if code == "" {
			return
		}
		b, err := s.bookings.GetByTrackingCode(ctx, code)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			st.Response = fmt.Sprintf("I couldn't find a booking with code %s. Could you double-check it?", code)
			return
		}
		if err != nil {
			log.Printf("chat: status lookup: %v", err)
			st.Response = "I'm having trouble looking that up right now. Please try again in a moment."
			return
		}
		st.Response = statusReply(b)

	case intent.ConfirmCancel:
		if !st.CancelConfirmed {
			return
		}
		code := st.Entities.TrackingCode
		if code == "" {
			code = st.TrackingCode
		}
		if code == "" {
			st.Response = "Which booking should I cancel? The tracking code looks like BK-XXXXXX."
			return
		}
		b, err := s.bookings.CancelByTrackingCode(ctx, code)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			st.Response = fmt.Sprintf("I couldn't find a booking with code %s.", code)
		case errors.Is(err, booking.ErrAlreadyCancelled):
			st.Response = fmt.Sprintf("Booking %s is already cancelled.", code)
		case errors.Is(err, booking.ErrTerminalState):
			st.Response = fmt.Sprintf("Booking %s can no longer be cancelled.", code)
		case err != nil:
			log.Printf("chat: cancel %s: %v", code, err)
			st.Response = "Something went wrong cancelling that booking. Please try again."
		default:
			st.BookingStatus = b.Status
			st.Response = fmt.Sprintf("Done, booking %s is cancelled. Anything else I can help with?", code)
			s.publish(ctx, rabbitmq.EventBookingCancelled, map[string]string{
				"booking_id":    b.ID,
				"tracking_code": b.TrackingCode,
			})
		}

	case intent.Reschedule:
		if st.Entities.SlotStart == nil {
			return
		}
		target := active
		if code := st.Entities.TrackingCode; code != "" {
			b, err := s.bookings.GetByTrackingCode(ctx, code)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				st.Response = fmt.Sprintf("I couldn't find a booking with code %s.", code)
				return
			}
			if err != nil {
				log.Printf("chat: reschedule lookup: %v", err)
				st.Response = "I'm having trouble finding that booking right now."
				return
			}
			target = b
		}
		if target == nil {
			st.Response = "Which booking should I move? The tracking code looks like BK-XXXXXX."
			return
		}
		s.rescheduleBooking(ctx, st, target)
	}
}

func (s *Service) rescheduleBooking(ctx context.Context, st *flow.TurnState, target *booking.Booking) {
	svc, err := s.catalog.GetService(ctx, target.ServiceID)
	if err != nil {
		log.Printf("chat: reschedule service lookup: %v", err)
		st.Response = "I'm having trouble moving that booking right now."
		return
	}

	start := st.Entities.SlotStart.UTC()
	res, err := s.slots.Validate(ctx, svc, start)
	if err != nil {
		log.Printf("chat: reschedule validate: %v", err)
		st.Response = "I'm having trouble checking availability right now."
		return
	}
	if !res.Available {
		st.SlotUnavailable = true
		st.Alternatives = res.Alternatives
		return
	}

	dur := time.Duration(svc.DurationMinutes) * time.Minute
	if dur <= 0 {
		dur = time.Hour
	}
	b, err := s.bookings.Reschedule(ctx, target.ID, start, start.Add(dur))
	switch {
	case errors.Is(err, booking.ErrSlotTaken):
		st.SlotUnavailable = true
		if alts, aerr := s.slots.Alternatives(ctx, svc, start, slots.MaxAlternatives); aerr == nil {
			st.Alternatives = alts
		}
	case errors.Is(err, booking.ErrTerminalState):
		st.Response = fmt.Sprintf("Booking %s can no longer be changed.", target.TrackingCode)
	case err != nil:
		log.Printf("chat: reschedule %s: %v", target.TrackingCode, err)
		st.Response = "Something went wrong moving that booking. Please try again."
	default:
		st.BookingID = b.ID
		st.TrackingCode = b.TrackingCode
		st.BookingStatus = b.Status
		st.SlotStart = b.SlotStart
		st.SlotEnd = b.SlotEnd
		st.Response = fmt.Sprintf("All moved! Booking %s is now on %s.",
			b.TrackingCode, flow.FormatSlot(*b.SlotStart))
	}
}

// reconcile pushes this turn's accumulated state into storage: create the
// booking, reserve the slot, persist contact, confirm, and open the handoff.
// Each step tolerates the previous one having failed.
func (s *Service) reconcile(ctx context.Context, st *flow.TurnState, active *booking.Booking, existing *handoff.Request) {
	// 1. A chosen service with no open booking starts one.
	if st.SelectedServiceID != "" && st.BookingID == "" {
		b, err := s.bookings.Create(ctx, st.BusinessID, st.SelectedServiceID, &st.ConversationID)
		if err != nil {
			log.Printf("chat: create booking: %v", err)
		} else {
			st.BookingID = b.ID
			st.TrackingCode = b.TrackingCode
			st.BookingStatus = b.Status
		}
	}

	// 2. A slot mentioned this turn gets validated and reserved, unless it is
	// the booking's own held instant restated; re-reserving that would count
	// the booking against itself. Reschedules were already applied against the
	// database above.
	mentioned := st.Entities.SlotStart
	alreadyHeld := mentioned != nil && active != nil && active.SlotStart != nil &&
		active.SlotStart.Equal(*mentioned)
	newSlot := mentioned != nil && !alreadyHeld && st.Intent != intent.Reschedule && !st.CancelConfirmed
	if newSlot && st.BookingID != "" && st.SlotStart != nil && !st.SlotUnavailable {
		s.reserveSlot(ctx, st)
	}

	// 3. The full contact triple persists together.
	if st.BookingID != "" && st.HasFullContact() && contactMentioned(st) {
		if err := s.bookings.SetContact(ctx, st.BookingID, st.ContactName, st.ContactPhone, st.ContactEmail); err != nil {
			log.Printf("chat: set contact: %v", err)
		} else if st.BookingStatus != booking.StatusConfirmed {
			st.BookingStatus = booking.StatusContactCollected
		}
	}

	// 4. Confirmation intents try the real transition, as does a turn that
	// delivered service, slot and the full contact in one message with no
	// booking open before it, whatever the router labelled that message. An
	// incomplete booking keeps the flow engine's what's-missing reply.
	oneShot := active == nil && st.BookingID != "" && st.SlotStart != nil && st.HasFullContact()
	confirming := st.Intent == intent.ConfirmBooking || st.Intent == intent.CompleteBooking || oneShot
	if confirming && st.BookingID != "" && !st.SlotUnavailable && !st.NeedsEscalation {
		b, err := s.bookings.Confirm(ctx, st.BookingID)
		switch {
		case errors.Is(err, booking.ErrIncomplete):
			// flow already asked for what's missing
		case err != nil:
			log.Printf("chat: confirm %s: %v", st.BookingID, err)
		default:
			st.BookingStatus = b.Status
			st.Response = fmt.Sprintf("You're all set! %s on %s. Your tracking code is %s, keep it handy.",
				st.SelectedServiceName, flow.FormatSlot(*b.SlotStart), b.TrackingCode)
			s.publish(ctx, rabbitmq.EventBookingConfirmed, map[string]string{
				"booking_id":    b.ID,
				"tracking_code": b.TrackingCode,
			})
		}
	}

	// 5. Escalation opens at most one ticket per conversation.
	if st.NeedsEscalation {
		if existing != nil {
			st.HandoffID = existing.ID
			st.TicketCode = existing.TicketCode
			st.Response = fmt.Sprintf("You're already in the queue, your ticket is %s. Someone will be with you shortly.",
				existing.TicketCode)
			return
		}
		p := handoff.CreateParams{
			BusinessID:     st.BusinessID,
			ConversationID: st.ConversationID,
			Reason:         "user_requested",
		}
		if st.BookingID != "" {
			p.BookingID = &st.BookingID
		}
		if st.ContactName != "" {
			p.ContactName = &st.ContactName
		}
		if st.ContactPhone != "" {
			p.ContactPhone = &st.ContactPhone
		}
		if st.ContactEmail != "" {
			p.ContactEmail = &st.ContactEmail
		}
		req, err := s.handoffs.Create(ctx, p)
		if err != nil {
			log.Printf("chat: create handoff: %v", err)
			return
		}
		st.HandoffID = req.ID
		st.TicketCode = req.TicketCode
		st.Response = fmt.Sprintf("%s Your ticket is %s.", st.Response, req.TicketCode)
		s.publish(ctx, rabbitmq.EventHandoffCreated, map[string]string{
			"handoff_id":      req.ID,
			"ticket_code":     req.TicketCode,
			"conversation_id": st.ConversationID,
		})
	}
}

func (s *Service) reserveSlot(ctx context.Context, st *flow.TurnState) {
	svc := st.SelectedService()
	if svc == nil {
		return
	}
	start := st.SlotStart.UTC()

	res, err := s.slots.Validate(ctx, svc, start)
	if err != nil {
		log.Printf("chat: validate slot: %v", err)
		return
	}
	if !res.Available {
		s.markSlotUnavailable(st, res.Alternatives)
		return
	}

	err = s.bookings.SetSlot(ctx, st.BookingID, start, st.SlotEnd.UTC())
	if errors.Is(err, booking.ErrSlotTaken) {
		// lost the race after validation; re-derive alternatives
		alts, aerr := s.slots.Alternatives(ctx, svc, start, slots.MaxAlternatives)
		if aerr != nil {
			log.Printf("chat: alternatives: %v", aerr)
		}
		s.markSlotUnavailable(st, alts)
		return
	}
	if err != nil {
		log.Printf("chat: reserve slot: %v", err)
		return
	}
	if st.BookingStatus != booking.StatusConfirmed {
		st.BookingStatus = booking.StatusSlotSelected
	}
}

func (s *Service) markSlotUnavailable(st *flow.TurnState, alts []slots.Slot) {
	st.SlotUnavailable = true
	st.Alternatives = alts
	st.SlotStart = nil
	st.SlotEnd = nil
}

func contactMentioned(st *flow.TurnState) bool {
	return st.Entities.Name != "" || st.Entities.Phone != "" || st.Entities.Email != ""
}

func (s *Service) persistTurn(ctx context.Context, conversationID, userText, reply string) error {
	if err := s.convs.InsertMessage(ctx, &conversation.Message{
		ConversationID: conversationID,
		Role:           conversation.RoleUser,
		Content:        userText,
	}); err != nil {
		return err
	}
	if err := s.convs.InsertMessage(ctx, &conversation.Message{
		ConversationID: conversationID,
		Role:           conversation.RoleAssistant,
		Content:        reply,
	}); err != nil {
		return err
	}
	return s.convs.TouchLastMessage(ctx, conversationID, time.Now().UTC())
}

func (s *Service) publish(ctx context.Context, kind string, payload map[string]string) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishEvent(ctx, kind, payload); err != nil {
		log.Printf("chat: publish %s: %v", kind, err)
	}
}

func (s *Service) GetConversation(ctx context.Context, id string) (*conversation.Conversation, error) {
	return s.convs.Get(ctx, id)
}

func (s *Service) History(ctx context.Context, id string) ([]conversation.Message, error) {
	if _, err := s.convs.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.convs.ListMessages(ctx, id)
}

// EndConversation resolves a conversation. A confirmed booking counts as an
// AI-resolved booked outcome; anything else is a user drop.
func (s *Service) EndConversation(ctx context.Context, id string) (*conversation.Conversation, error) {
	return s.EndConversationAs(ctx, id, "", "")
}

// EndConversationAs resolves a conversation with an explicit resolution and
// outcome; blanks fall back to the booking-derived defaults.
func (s *Service) EndConversationAs(ctx context.Context, id, resolutionType, outcome string) (*conversation.Conversation, error) {
	conv, err := s.convs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if conv.Status == conversation.StatusResolved {
		return conv, nil
	}

	resolution := conversation.ResolutionUserAbandoned
	out := conversation.OutcomeDropped
	if b, err := s.bookings.ActiveByConversation(ctx, id); err == nil && b != nil &&
		(b.Status == booking.StatusConfirmed || b.Status == booking.StatusRescheduled) {
		resolution = conversation.ResolutionAIResolved
		out = conversation.OutcomeBooked
	}
	if resolutionType != "" {
		resolution = resolutionType
	}
	if outcome != "" {
		out = outcome
	}

	if err := s.convs.Resolve(ctx, id, resolution, out); err != nil {
		return nil, err
	}
	return s.convs.Get(ctx, id)
}

func statusReply(b *booking.Booking) string {
	when := ""
	if b.SlotStart != nil {
		when = " for " + flow.FormatSlot(*b.SlotStart)
	}
	switch b.Status {
	case booking.StatusConfirmed, booking.StatusRescheduled:
		return fmt.Sprintf("Booking %s is confirmed%s. See you then!", b.TrackingCode, when)
	case booking.StatusCancelled:
		return fmt.Sprintf("Booking %s was cancelled.", b.TrackingCode)
	case booking.StatusExpired:
		return fmt.Sprintf("Booking %s expired before it was confirmed.", b.TrackingCode)
	case booking.StatusFailed:
		return fmt.Sprintf("Booking %s didn't go through. Would you like to start again?", b.TrackingCode)
	default:
		return fmt.Sprintf("Booking %s is still in progress%s; it hasn't been confirmed yet.", b.TrackingCode, when)
	}
}

func businessNow(biz *catalog.Business) time.Time {
	loc, err := time.LoadLocation(biz.Timezone)
	if err != nil || biz.Timezone == "" {
		loc = time.UTC
	}
	return time.Now().In(loc)
}
