package intent

import "time"

// Intent is the fixed routing enumeration. The oracle must answer with one of
// these; anything else degrades to Other.
type Intent string

const (
	Greet             Intent = "greet"
	ListServices      Intent = "list_services"
	SelectService     Intent = "select_service"
	AskServiceDetails Intent = "ask_service_details"
	SelectSlot        Intent = "select_slot"
	ProvideContact    Intent = "provide_contact"
	ConfirmBooking    Intent = "confirm_booking"
	CompleteBooking   Intent = "complete_booking"
	CheckStatus       Intent = "check_status"
	CancelBooking     Intent = "cancel_booking"
	ConfirmCancel     Intent = "confirm_cancel"
	Reschedule        Intent = "reschedule"
	Escalate          Intent = "escalate"
	Cancel            Intent = "cancel"
	Other             Intent = "other"
)

var valid = map[Intent]bool{
	Greet: true, ListServices: true, SelectService: true, AskServiceDetails: true,
	SelectSlot: true, ProvideContact: true, ConfirmBooking: true, CompleteBooking: true,
	CheckStatus: true, CancelBooking: true, ConfirmCancel: true, Reschedule: true,
	Escalate: true, Cancel: true, Other: true,
}

func (i Intent) Valid() bool { return valid[i] }

// Entities carries what the oracle extracted from one message. Service names
// are resolved against the live catalog before they get here; an unmatched
// name is dropped, never guessed.
type Entities struct {
	ServiceID   string
	ServiceName string

	SlotStart *time.Time

	Name  string
	Phone string
	Email string

	WantsHuman   bool
	TrackingCode string
}
