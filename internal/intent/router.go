package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/deskbell/deskbell/internal/catalog"
	"github.com/deskbell/deskbell/internal/nlu"
)

// Router turns one user message into an intent plus extracted entities by
// asking the oracle for a strict JSON object. It never returns an error: any
// oracle failure or unparsable payload degrades to Other with empty entities
// so the turn still produces a reply.
type Router struct {
	provider nlu.Provider
}

func NewRouter(p nlu.Provider) *Router {
	return &Router{provider: p}
}

type extraction struct {
	Intent           string `json:"intent"`
	ServiceMentioned string `json:"service_mentioned"`
	DateMentioned    string `json:"date_mentioned"`
	TimeMentioned    string `json:"time_mentioned"`
	ContactInfo      struct {
		Name  string `json:"name"`
		Phone string `json:"phone"`
		Email string `json:"email"`
	} `json:"contact_info"`
	WantsHuman         bool   `json:"wants_human"`
	BookingIDMentioned string `json:"booking_id_mentioned"`
}

const extractPrompt = `You classify one customer message for a booking assistant and extract entities.

Reply with ONLY a JSON object, no prose:
{
  "intent": "<one of: greet, list_services, select_service, ask_service_details, select_slot, provide_contact, confirm_booking, complete_booking, check_status, cancel_booking, confirm_cancel, reschedule, escalate, cancel, other>",
  "service_mentioned": "<exact service name from the list below, or empty>",
  "date_mentioned": "<YYYY-MM-DD or empty>",
  "time_mentioned": "<HH:MM 24h or empty>",
  "contact_info": {"name": "", "phone": "", "email": ""},
  "wants_human": false,
  "booking_id_mentioned": "<tracking code like BK-A1B2C3, or empty>"
}

Rules:
- "complete_booking" only when a single message carries service, time AND contact details.
- "confirm_cancel" only when the user confirms a cancellation you already asked about.
- "cancel" means abandoning the current request, "cancel_booking" means cancelling an existing booking.
- Resolve relative dates using the dates given below.
- wants_human is true whenever the user asks for a person, agent or staff, regardless of intent.`

// Route classifies msg against the business catalog. now must already be in
// the business timezone so relative dates resolve correctly.
func (r *Router) Route(ctx context.Context, services []catalog.Service, msg string, now time.Time) (Intent, Entities) {
	names := make([]string, 0, len(services))
	for _, s := range services {
		names = append(names, s.Name)
	}

	user := fmt.Sprintf("Today is %s (%s). Tomorrow is %s.\nServices offered: %s\n\nCustomer message: %s",
		now.Format("2006-01-02"), now.Weekday().String(),
		now.AddDate(0, 0, 1).Format("2006-01-02"),
		strings.Join(names, ", "),
		msg)

	raw, err := r.provider.CompleteJSON(ctx, extractPrompt, user)
	if err != nil {
		log.Printf("intent: extraction failed: %v", err)
		return Other, Entities{}
	}

	var ex extraction
	if err := json.Unmarshal([]byte(stripFences(raw)), &ex); err != nil {
		log.Printf("intent: unparsable extraction: %v", err)
		return Other, Entities{}
	}

	it := Intent(strings.TrimSpace(ex.Intent))
	if !it.Valid() {
		it = Other
	}

	ents := Entities{
		Name:         strings.TrimSpace(ex.ContactInfo.Name),
		Phone:        strings.TrimSpace(ex.ContactInfo.Phone),
		Email:        strings.TrimSpace(ex.ContactInfo.Email),
		WantsHuman:   ex.WantsHuman,
		TrackingCode: strings.ToUpper(strings.TrimSpace(ex.BookingIDMentioned)),
	}

	if name := strings.TrimSpace(ex.ServiceMentioned); name != "" {
		for _, s := range services {
			if strings.EqualFold(s.Name, name) {
				ents.ServiceID = s.ID
				ents.ServiceName = s.Name
				break
			}
		}
	}

	ents.SlotStart = resolveSlot(ex.DateMentioned, ex.TimeMentioned, now)
	return it, ents
}

// resolveSlot combines an extracted date and time. A date without a time
// defaults to noon; a time without a date means today.
func resolveSlot(dateStr, timeStr string, now time.Time) *time.Time {
	dateStr = strings.TrimSpace(dateStr)
	timeStr = strings.TrimSpace(timeStr)
	if dateStr == "" && timeStr == "" {
		return nil
	}

	day := now
	if dateStr != "" {
		d, err := time.ParseInLocation("2006-01-02", dateStr, now.Location())
		if err != nil {
			return nil
		}
		day = d
	}

	hour, minute := 12, 0
	if timeStr != "" {
		t, err := time.Parse("15:04", timeStr)
		if err != nil {
			return nil
		}
		hour, minute = t.Hour(), t.Minute()
	}

	start := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, now.Location())
	return &start
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}
