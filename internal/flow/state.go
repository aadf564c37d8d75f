package flow

import (
	"time"

	"github.com/deskbell/deskbell/internal/catalog"
	"github.com/deskbell/deskbell/internal/intent"
	"github.com/deskbell/deskbell/internal/nlu"
	"github.com/deskbell/deskbell/internal/slots"
)

// TurnState is the working state of one conversational turn. The orchestrator
// loads it from storage, the engine mutates it, and the orchestrator
// reconciles the result back into the database.
type TurnState struct {
	ConversationID string
	BusinessID     string

	AgentName string
	AgentTone string

	Services []catalog.Service
	History  []nlu.Message
	Message  string

	Intent   intent.Intent
	Entities intent.Entities

	// Booking progress accumulated across turns.
	SelectedServiceID   string
	SelectedServiceName string
	SlotStart           *time.Time
	SlotEnd             *time.Time
	ContactName         string
	ContactPhone        string
	ContactEmail        string

	BookingID     string
	TrackingCode  string
	BookingStatus string

	// Set when a requested slot turned out to be taken.
	SlotUnavailable bool
	Alternatives    []slots.Slot

	NeedsEscalation bool
	HandoffID       string
	TicketCode      string

	CancelConfirmed bool

	Response string
}

// SelectedService resolves the chosen service from the loaded catalog, or nil.
func (st *TurnState) SelectedService() *catalog.Service {
	for i := range st.Services {
		if st.Services[i].ID == st.SelectedServiceID {
			return &st.Services[i]
		}
	}
	return nil
}

// HasFullContact reports whether name, phone and email are all present.
func (st *TurnState) HasFullContact() bool {
	return st.ContactName != "" && st.ContactPhone != "" && st.ContactEmail != ""
}

// ReadyToConfirm reports whether a confirmation can succeed this turn.
func (st *TurnState) ReadyToConfirm() bool {
	return st.SelectedServiceID != "" && st.SlotStart != nil && st.HasFullContact()
}
