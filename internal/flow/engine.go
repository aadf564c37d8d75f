package flow

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/deskbell/deskbell/internal/intent"
	"github.com/deskbell/deskbell/internal/nlu"
	"github.com/deskbell/deskbell/internal/slots"
)

type handlerFunc func(ctx context.Context, st *TurnState)

// Engine routes a classified turn to its handler. Every handler leaves a
// non-empty Response: the oracle phrases it when reachable, a canned line
// stands in when it is not.
type Engine struct {
	provider nlu.Provider
	handlers map[intent.Intent]handlerFunc
}

func NewEngine(p nlu.Provider) *Engine {
	e := &Engine{provider: p}
	e.handlers = map[intent.Intent]handlerFunc{
		intent.Greet:             e.handleGreet,
		intent.ListServices:      e.handleListServices,
		intent.SelectService:     e.handleSelectService,
		intent.AskServiceDetails: e.handleServiceDetails,
		intent.SelectSlot:        e.handleSelectSlot,
		intent.ProvideContact:    e.handleProvideContact,
		intent.ConfirmBooking:    e.handleConfirm,
		intent.CompleteBooking:   e.handleCompleteBooking,
		intent.CheckStatus:       e.handleCheckStatus,
		intent.CancelBooking:     e.handleCancelBooking,
		intent.ConfirmCancel:     e.handleConfirmCancel,
		intent.Reschedule:        e.handleReschedule,
		intent.Escalate:          e.handleEscalate,
		intent.Cancel:            e.handleCancel,
		intent.Other:             e.handleOther,
	}
	return e
}

// Run merges the extracted entities into the turn state and dispatches. A
// request for a human pre-empts whatever else the message carried.
func (e *Engine) Run(ctx context.Context, st *TurnState) {
	e.merge(st)

	if st.Entities.WantsHuman || st.Intent == intent.Escalate {
		e.handleEscalate(ctx, st)
		return
	}

	h, ok := e.handlers[st.Intent]
	if !ok {
		h = e.handleOther
	}
	h(ctx, st)

	if st.Response == "" {
		st.Response = "I'm sorry, I didn't quite get that. Could you rephrase?"
	}
}

// merge folds this turn's entities into the accumulated booking progress.
// Later mentions win; empty extractions never erase earlier answers.
func (e *Engine) merge(st *TurnState) {
	if st.Entities.ServiceID != "" {
		st.SelectedServiceID = st.Entities.ServiceID
		st.SelectedServiceName = st.Entities.ServiceName
	}
	if st.Entities.SlotStart != nil {
		start := st.Entities.SlotStart.UTC()
		st.SlotStart = &start
		dur := time.Hour
		if svc := st.SelectedService(); svc != nil && svc.DurationMinutes > 0 {
			dur = time.Duration(svc.DurationMinutes) * time.Minute
		}
		end := start.Add(dur)
		st.SlotEnd = &end
	}
	if st.Entities.Name != "" {
		st.ContactName = st.Entities.Name
	}
	if st.Entities.Phone != "" {
		st.ContactPhone = st.Entities.Phone
	}
	if st.Entities.Email != "" {
		st.ContactEmail = st.Entities.Email
	}
}

// phrase asks the oracle to word the reply in the agent persona; on any
// failure the canned fallback ships instead.
func (e *Engine) phrase(ctx context.Context, st *TurnState, instruction, fallback string) string {
	if e.provider == nil {
		return fallback
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s, a booking assistant. Tone: %s.\n", st.AgentName, st.AgentTone)
	if len(st.Services) > 0 {
		sb.WriteString("Services offered:\n")
		for _, s := range st.Services {
			fmt.Fprintf(&sb, "- %s (%s %.2f, %d min): %s\n", s.Name, s.Currency, s.BasePrice, s.DurationMinutes, s.Description)
		}
	}
	sb.WriteString("\nInstruction for this reply: ")
	sb.WriteString(instruction)
	sb.WriteString("\nKeep it short and conversational. Never invent prices, times or services.")

	history := append(append([]nlu.Message{}, st.History...), nlu.Message{Role: "user", Content: st.Message})
	out, err := e.provider.Complete(ctx, sb.String(), history)
	if err != nil || strings.TrimSpace(out) == "" {
		if err != nil {
			log.Printf("flow: phrasing failed, using fallback: %v", err)
		}
		return fallback
	}
	return strings.TrimSpace(out)
}

// FormatSlot renders a slot start the way replies quote times.
func FormatSlot(t time.Time) string {
	return t.Format("Monday, January 2 at 3:04 PM")
}

// FormatAlternatives renders a ranked alternative list for a reply.
func FormatAlternatives(alts []slots.Slot) string {
	if len(alts) == 0 {
		return "I couldn't find nearby openings. Could you suggest another day?"
	}
	lines := make([]string, 0, len(alts))
	for _, a := range alts {
		lines = append(lines, "- "+FormatSlot(a.Start))
	}
	return "That time is already taken. Here are the closest openings:\n" + strings.Join(lines, "\n")
}
