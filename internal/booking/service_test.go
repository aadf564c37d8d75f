package booking

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func newService(t *testing.T) *Service {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gdb, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := gdb.AutoMigrate(&Booking{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewService(NewRepo(gdb))
}

var codeRe = regexp.MustCompile(`^BK-[0-9A-F]{6}$`)

func TestCreateAssignsTrackingCode(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		b, err := s.Create(ctx, "biz-1", "svc-1", nil)
		if err != nil {
			t.Fatal(err)
		}
		if !codeRe.MatchString(b.TrackingCode) {
			t.Fatalf("tracking code %q has wrong shape", b.TrackingCode)
		}
		if seen[b.TrackingCode] {
			t.Fatalf("duplicate tracking code %q", b.TrackingCode)
		}
		seen[b.TrackingCode] = true
		if b.Status != StatusInitiated || b.PaymentStatus != PaymentCreated {
			t.Fatalf("new booking: %+v", b)
		}
	}
}

func TestLookupByTrackingCodeIsCaseInsensitive(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	b, err := s.Create(ctx, "biz-1", "svc-1", nil)
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.GetByTrackingCode(ctx, strings.ToLower(b.TrackingCode))
	if err != nil {
		t.Fatalf("lowercase lookup: %v", err)
	}
	if got.ID != b.ID {
		t.Fatalf("wrong booking: %s", got.ID)
	}
}

func TestConfirmRequiresSlotAndFullContact(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	b, err := s.Create(ctx, "biz-1", "svc-1", nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.Confirm(ctx, b.ID); !errors.Is(err, ErrIncomplete) {
		t.Fatalf("confirm with nothing = %v, want ErrIncomplete", err)
	}

	start := time.Date(2026, 9, 7, 10, 0, 0, 0, time.UTC)
	if err := s.SetSlot(ctx, b.ID, start, start.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Confirm(ctx, b.ID); !errors.Is(err, ErrIncomplete) {
		t.Fatalf("confirm without contact = %v, want ErrIncomplete", err)
	}

	if err := s.SetContact(ctx, b.ID, "Ana", "+1", "a@b.c"); err != nil {
		t.Fatal(err)
	}
	confirmed, err := s.Confirm(ctx, b.ID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed.Status != StatusConfirmed || confirmed.ConfirmedAt == nil {
		t.Fatalf("confirmed booking: %+v", confirmed)
	}
}

func TestCancelTwiceIsAnError(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	b, err := s.Create(ctx, "biz-1", "svc-1", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Cancel(ctx, b.ID); err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	if _, err := s.Cancel(ctx, b.ID); !errors.Is(err, ErrAlreadyCancelled) {
		t.Fatalf("second cancel = %v, want ErrAlreadyCancelled", err)
	}
}

func TestTerminalBookingRejectsMutation(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	b, err := s.Create(ctx, "biz-1", "svc-1", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Cancel(ctx, b.ID); err != nil {
		t.Fatal(err)
	}

	start := time.Date(2026, 9, 7, 10, 0, 0, 0, time.UTC)
	if err := s.SetSlot(ctx, b.ID, start, start.Add(time.Hour)); !errors.Is(err, ErrTerminalState) {
		t.Fatalf("set slot on cancelled = %v", err)
	}
	if _, err := s.Reschedule(ctx, b.ID, start, start.Add(time.Hour)); !errors.Is(err, ErrTerminalState) {
		t.Fatalf("reschedule cancelled = %v", err)
	}
	if _, err := s.Confirm(ctx, b.ID); !errors.Is(err, ErrTerminalState) {
		t.Fatalf("confirm cancelled = %v", err)
	}
}

func TestRescheduleKeepsConfirmedBookingActive(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	b, err := s.Create(ctx, "biz-1", "svc-1", nil)
	if err != nil {
		t.Fatal(err)
	}
	start := time.Date(2026, 9, 7, 10, 0, 0, 0, time.UTC)
	if err := s.SetSlot(ctx, b.ID, start, start.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := s.SetContact(ctx, b.ID, "Ana", "+1", "a@b.c"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Confirm(ctx, b.ID); err != nil {
		t.Fatal(err)
	}

	moved := start.Add(24 * time.Hour)
	got, err := s.Reschedule(ctx, b.ID, moved, moved.Add(time.Hour))
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if got.Status != StatusRescheduled {
		t.Fatalf("status = %s, want RESCHEDULED", got.Status)
	}
	if IsTerminal(got.Status) {
		t.Fatal("rescheduled booking must stay active")
	}
	if !got.SlotStart.Equal(moved) {
		t.Fatalf("slot = %v", got.SlotStart)
	}
}

// Both conversations validated the slot as free before either reserved it;
// the unique slot key must let exactly one through.
func TestSlotRaceOnlyOneWinner(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	a, err := s.Create(ctx, "biz-1", "svc-1", nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.Create(ctx, "biz-1", "svc-1", nil)
	if err != nil {
		t.Fatal(err)
	}

	start := time.Date(2026, 9, 7, 10, 0, 0, 0, time.UTC)
	if err := s.SetSlot(ctx, a.ID, start, start.Add(time.Hour)); err != nil {
		t.Fatalf("first reservation: %v", err)
	}
	if err := s.SetSlot(ctx, b.ID, start, start.Add(time.Hour)); !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("second reservation = %v, want ErrSlotTaken", err)
	}

	// the loser holds no slot
	lost, err := s.Get(ctx, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if lost.SlotKey != nil {
		t.Fatalf("losing booking kept a slot key: %v", *lost.SlotKey)
	}
}

func TestCancelFreesTheSlotForRebooking(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	a, err := s.Create(ctx, "biz-1", "svc-1", nil)
	if err != nil {
		t.Fatal(err)
	}
	start := time.Date(2026, 9, 7, 10, 0, 0, 0, time.UTC)
	if err := s.SetSlot(ctx, a.ID, start, start.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Cancel(ctx, a.ID); err != nil {
		t.Fatal(err)
	}

	b, err := s.Create(ctx, "biz-1", "svc-1", nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetSlot(ctx, b.ID, start, start.Add(time.Hour)); err != nil {
		t.Fatalf("slot should be free after cancel: %v", err)
	}
}

func TestExpireStaleSkipsConfirmed(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	stale, err := s.Create(ctx, "biz-1", "svc-1", nil)
	if err != nil {
		t.Fatal(err)
	}
	confirmed, err := s.Create(ctx, "biz-1", "svc-1", nil)
	if err != nil {
		t.Fatal(err)
	}
	start := time.Date(2026, 9, 7, 10, 0, 0, 0, time.UTC)
	if err := s.SetSlot(ctx, confirmed.ID, start, start.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := s.SetContact(ctx, confirmed.ID, "Ana", "+1", "a@b.c"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Confirm(ctx, confirmed.ID); err != nil {
		t.Fatal(err)
	}

	// a confirmed appointment that was later moved is still an appointment
	rescheduled, err := s.Create(ctx, "biz-1", "svc-1", nil)
	if err != nil {
		t.Fatal(err)
	}
	other := start.Add(2 * time.Hour)
	if err := s.SetSlot(ctx, rescheduled.ID, other, other.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := s.SetContact(ctx, rescheduled.ID, "Bea", "+2", "b@c.d"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Confirm(ctx, rescheduled.ID); err != nil {
		t.Fatal(err)
	}
	moved := start.Add(48 * time.Hour)
	if _, err := s.Reschedule(ctx, rescheduled.ID, moved, moved.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}

	// a negative idle window makes everything currently idle count as stale
	n, err := s.ExpireStale(ctx, -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expired = %d, want 1", n)
	}

	got, err := s.Get(ctx, stale.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusExpired {
		t.Fatalf("stale booking = %s, want EXPIRED", got.Status)
	}
	kept, err := s.Get(ctx, confirmed.ID)
	if err != nil {
		t.Fatal(err)
	}
	if kept.Status != StatusConfirmed {
		t.Fatalf("confirmed booking swept: %s", kept.Status)
	}
	keptMoved, err := s.Get(ctx, rescheduled.ID)
	if err != nil {
		t.Fatal(err)
	}
	if keptMoved.Status != StatusRescheduled {
		t.Fatalf("rescheduled booking swept: %s", keptMoved.Status)
	}
}
