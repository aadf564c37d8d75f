package flow

import (
	"context"
	"fmt"
	"strings"
)

func (e *Engine) handleGreet(ctx context.Context, st *TurnState) {
	fallback := fmt.Sprintf("Hi, I'm %s! I can help you book an appointment, check a booking or answer questions about our services.", st.AgentName)
	st.Response = e.phrase(ctx, st, "Greet the customer warmly and offer to help with booking an appointment.", fallback)
}

func (e *Engine) handleListServices(ctx context.Context, st *TurnState) {
	if len(st.Services) == 0 {
		st.Response = "We don't have any services available to book right now. Please check back later."
		return
	}
	var sb strings.Builder
	sb.WriteString("Here's what we offer:\n")
	for _, s := range st.Services {
		fmt.Fprintf(&sb, "- **%s**: %s %.2f (%d min)\n", s.Name, s.Currency, s.BasePrice, s.DurationMinutes)
	}
	sb.WriteString("Which one would you like to book?")
	st.Response = e.phrase(ctx, st, "List the services with their prices and durations, then ask which one they'd like.", sb.String())
}

func (e *Engine) handleSelectService(ctx context.Context, st *TurnState) {
	if st.SelectedServiceID == "" {
		e.handleListServices(ctx, st)
		return
	}
	fallback := fmt.Sprintf("Great choice, %s it is. What day and time work for you?", st.SelectedServiceName)
	st.Response = e.phrase(ctx, st,
		fmt.Sprintf("Acknowledge they picked %s and ask what day and time suit them.", st.SelectedServiceName),
		fallback)
}

func (e *Engine) handleServiceDetails(ctx context.Context, st *TurnState) {
	svc := st.SelectedService()
	if svc == nil {
		st.Response = e.phrase(ctx, st,
			"Ask which service they'd like details about.",
			"Which service would you like to know more about?")
		return
	}
	fallback := fmt.Sprintf("%s: %s. It takes %d minutes and costs %s %.2f. Want to book it?",
		svc.Name, svc.Description, svc.DurationMinutes, svc.Currency, svc.BasePrice)
	st.Response = e.phrase(ctx, st,
		fmt.Sprintf("Describe %s using only the catalog details, then offer to book it.", svc.Name),
		fallback)
}

func (e *Engine) handleSelectSlot(ctx context.Context, st *TurnState) {
	if st.SelectedServiceID == "" {
		st.Response = e.phrase(ctx, st,
			"They gave a time but haven't picked a service yet. Ask which service first.",
			"Happy to book that time. Which service would you like?")
		return
	}
	if st.SlotStart == nil {
		st.Response = e.phrase(ctx, st,
			"Ask for a specific day and time.",
			"What day and time would you like to come in?")
		return
	}
	fallback := fmt.Sprintf("%s on %s, noted. Can I get your name, phone number and email to finish up?",
		st.SelectedServiceName, FormatSlot(*st.SlotStart))
	st.Response = e.phrase(ctx, st,
		fmt.Sprintf("Acknowledge %s at %s and ask for their name, phone and email.", st.SelectedServiceName, FormatSlot(*st.SlotStart)),
		fallback)
}

func (e *Engine) handleProvideContact(ctx context.Context, st *TurnState) {
	if missing := st.missingContact(); len(missing) > 0 {
		fallback := fmt.Sprintf("Thanks! I still need your %s.", strings.Join(missing, " and "))
		st.Response = e.phrase(ctx, st,
			fmt.Sprintf("Thank them and ask for their %s.", strings.Join(missing, " and ")),
			fallback)
		return
	}
	st.Response = e.phrase(ctx, st,
		fmt.Sprintf("Summarize the booking (%s) and ask them to confirm.", st.summary()),
		fmt.Sprintf("Perfect. To confirm: %s. Shall I book it?", st.summary()))
}

func (e *Engine) handleConfirm(ctx context.Context, st *TurnState) {
	if !st.ReadyToConfirm() {
		var need []string
		if st.SelectedServiceID == "" {
			need = append(need, "which service you'd like")
		}
		if st.SlotStart == nil {
			need = append(need, "a day and time")
		}
		need = append(need, st.missingContact()...)
		st.Response = fmt.Sprintf("Almost there! I still need %s before I can confirm.", strings.Join(need, ", "))
		return
	}
	st.Response = e.phrase(ctx, st,
		fmt.Sprintf("Confirm the booking is locked in: %s. Mention they'll get a tracking code.", st.summary()),
		fmt.Sprintf("You're all set! %s.", st.summary()))
}

func (e *Engine) handleCompleteBooking(ctx context.Context, st *TurnState) {
	// One message carried everything; confirm directly.
	e.handleConfirm(ctx, st)
}

func (e *Engine) handleCheckStatus(ctx context.Context, st *TurnState) {
	if st.Entities.TrackingCode == "" && st.TrackingCode == "" {
		st.Response = e.phrase(ctx, st,
			"Ask for their booking tracking code (it looks like BK-XXXXXX).",
			"Sure, what's your tracking code? It looks like BK-XXXXXX.")
		return
	}
	// The orchestrator replaces this with the real status once looked up.
	st.Response = "Let me check that booking for you."
}

func (e *Engine) handleCancelBooking(ctx context.Context, st *TurnState) {
	code := st.Entities.TrackingCode
	if code == "" {
		code = st.TrackingCode
	}
	if code == "" {
		st.Response = e.phrase(ctx, st,
			"Ask which booking to cancel, requesting the tracking code.",
			"I can help with that. What's the tracking code of the booking you'd like to cancel?")
		return
	}
	st.Response = fmt.Sprintf("Just to be sure: cancel booking %s? This can't be undone.", code)
}

func (e *Engine) handleConfirmCancel(ctx context.Context, st *TurnState) {
	st.CancelConfirmed = true
	// The orchestrator performs the cancellation and rewrites this reply.
	st.Response = "One moment while I cancel that booking."
}

func (e *Engine) handleReschedule(ctx context.Context, st *TurnState) {
	if st.Entities.SlotStart == nil {
		st.Response = e.phrase(ctx, st,
			"Ask what new day and time they'd like for their booking.",
			"Of course, what new day and time would you like?")
		return
	}
	// The orchestrator moves the booking and rewrites this reply.
	st.Response = "Let me move that booking for you."
}

func (e *Engine) handleEscalate(ctx context.Context, st *TurnState) {
	st.NeedsEscalation = true
	st.Response = e.phrase(ctx, st,
		"Tell them you're connecting them with a member of the team who will follow up shortly.",
		"Of course. I'm connecting you with a member of our team, and they'll follow up with you shortly.")
}

func (e *Engine) handleCancel(ctx context.Context, st *TurnState) {
	st.Response = e.phrase(ctx, st,
		"Acknowledge they want to stop, and let them know they can come back any time.",
		"No problem, I've stopped there. Come back any time you'd like to book.")
}

func (e *Engine) handleOther(ctx context.Context, st *TurnState) {
	st.Response = e.phrase(ctx, st,
		"Answer helpfully using only the business details you have, and steer back to booking if it fits.",
		"I can help you book an appointment or answer questions about our services. What can I do for you?")
}

func (st *TurnState) missingContact() []string {
	var missing []string
	if st.ContactName == "" {
		missing = append(missing, "name")
	}
	if st.ContactPhone == "" {
		missing = append(missing, "phone number")
	}
	if st.ContactEmail == "" {
		missing = append(missing, "email")
	}
	return missing
}

func (st *TurnState) summary() string {
	parts := []string{}
	if st.SelectedServiceName != "" {
		parts = append(parts, st.SelectedServiceName)
	}
	if st.SlotStart != nil {
		parts = append(parts, FormatSlot(*st.SlotStart))
	}
	if st.ContactName != "" {
		parts = append(parts, "for "+st.ContactName)
	}
	return strings.Join(parts, ", ")
}
