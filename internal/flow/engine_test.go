package flow

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/deskbell/deskbell/internal/catalog"
	"github.com/deskbell/deskbell/internal/intent"
	"github.com/deskbell/deskbell/internal/nlu"
)

// downProvider forces every handler onto its canned fallback.
type downProvider struct{}

func (downProvider) Complete(ctx context.Context, system string, history []nlu.Message) (string, error) {
	return "", errors.New("oracle down")
}

func (downProvider) CompleteJSON(ctx context.Context, system, user string) (string, error) {
	return "", errors.New("oracle down")
}

func newState(it intent.Intent, ents intent.Entities) *TurnState {
	return &TurnState{
		AgentName: "Mia",
		AgentTone: "friendly and professional",
		Services: []catalog.Service{
			{ID: "svc-1", Name: "Haircut", Currency: "USD", BasePrice: 40, DurationMinutes: 45},
			{ID: "svc-2", Name: "Massage", Currency: "USD", BasePrice: 90, DurationMinutes: 60},
		},
		Message:  "hello",
		Intent:   it,
		Entities: ents,
	}
}

func TestRunAlwaysLeavesAResponse(t *testing.T) {
	e := NewEngine(downProvider{})
	for _, it := range []intent.Intent{
		intent.Greet, intent.ListServices, intent.SelectService, intent.AskServiceDetails,
		intent.SelectSlot, intent.ProvideContact, intent.ConfirmBooking, intent.CompleteBooking,
		intent.CheckStatus, intent.CancelBooking, intent.ConfirmCancel, intent.Reschedule,
		intent.Escalate, intent.Cancel, intent.Other,
	} {
		st := newState(it, intent.Entities{})
		e.Run(context.Background(), st)
		if st.Response == "" {
			t.Errorf("intent %s produced an empty response", it)
		}
	}
}

func TestWantsHumanPreemptsIntent(t *testing.T) {
	e := NewEngine(downProvider{})
	st := newState(intent.SelectSlot, intent.Entities{WantsHuman: true})
	e.Run(context.Background(), st)

	if !st.NeedsEscalation {
		t.Fatal("wants_human should trigger escalation regardless of intent")
	}
}

func TestMergeAccumulatesAcrossTurns(t *testing.T) {
	e := NewEngine(downProvider{})
	start := time.Date(2026, 9, 3, 10, 0, 0, 0, time.UTC)

	st := newState(intent.SelectService, intent.Entities{ServiceID: "svc-2", ServiceName: "Massage"})
	e.Run(context.Background(), st)

	st.Intent = intent.SelectSlot
	st.Entities = intent.Entities{SlotStart: &start}
	e.Run(context.Background(), st)

	st.Intent = intent.ProvideContact
	st.Entities = intent.Entities{Name: "Ana", Phone: "+3550000", Email: "ana@example.com"}
	e.Run(context.Background(), st)

	if st.SelectedServiceID != "svc-2" {
		t.Fatalf("service lost across turns: %q", st.SelectedServiceID)
	}
	if st.SlotStart == nil || !st.SlotStart.Equal(start) {
		t.Fatalf("slot lost across turns: %v", st.SlotStart)
	}
	if st.SlotEnd == nil || !st.SlotEnd.Equal(start.Add(60*time.Minute)) {
		t.Fatalf("slot end should use service duration, got %v", st.SlotEnd)
	}
	if !st.ReadyToConfirm() {
		t.Fatal("state should be ready to confirm")
	}
}

func TestMergeNeverErasesEarlierAnswers(t *testing.T) {
	e := NewEngine(downProvider{})
	st := newState(intent.ProvideContact, intent.Entities{Name: "Ana"})
	e.Run(context.Background(), st)

	st.Entities = intent.Entities{Phone: "+3550000"}
	e.Run(context.Background(), st)

	if st.ContactName != "Ana" || st.ContactPhone != "+3550000" {
		t.Fatalf("contact = %q/%q", st.ContactName, st.ContactPhone)
	}
}

func TestSelectSlotWithoutServiceRePrompts(t *testing.T) {
	e := NewEngine(downProvider{})
	start := time.Date(2026, 9, 3, 10, 0, 0, 0, time.UTC)
	st := newState(intent.SelectSlot, intent.Entities{SlotStart: &start})
	e.Run(context.Background(), st)

	if !strings.Contains(st.Response, "which service") {
		t.Fatalf("expected a service re-prompt, got %q", st.Response)
	}
}

func TestConfirmRefusesIncomplete(t *testing.T) {
	e := NewEngine(downProvider{})
	st := newState(intent.ConfirmBooking, intent.Entities{})
	st.SelectedServiceID = "svc-1"
	st.SelectedServiceName = "Haircut"
	e.Run(context.Background(), st)

	if !strings.Contains(st.Response, "still need") {
		t.Fatalf("incomplete confirm should list what's missing, got %q", st.Response)
	}
}

func TestProvideContactListsMissingPieces(t *testing.T) {
	e := NewEngine(downProvider{})
	st := newState(intent.ProvideContact, intent.Entities{Name: "Ana"})
	e.Run(context.Background(), st)

	if !strings.Contains(st.Response, "phone number") || !strings.Contains(st.Response, "email") {
		t.Fatalf("expected missing-contact prompt, got %q", st.Response)
	}
}

func TestConfirmCancelSetsFlag(t *testing.T) {
	e := NewEngine(downProvider{})
	st := newState(intent.ConfirmCancel, intent.Entities{})
	e.Run(context.Background(), st)

	if !st.CancelConfirmed {
		t.Fatal("confirm_cancel should set CancelConfirmed")
	}
}
