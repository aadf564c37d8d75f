package slots

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/deskbell/deskbell/internal/booking"
	"github.com/deskbell/deskbell/internal/catalog"
)

func newEngine(t *testing.T) (*Engine, *booking.Service, *gorm.DB, *catalog.Service) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gdb, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := gdb.AutoMigrate(
		&catalog.Business{}, &catalog.Service{}, &catalog.OperatingHours{}, &catalog.AvailabilityException{},
		&booking.Booking{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	biz := &catalog.Business{ID: "biz-1", Slug: "demo-salon", Name: "Demo Salon", Timezone: "UTC", IsActive: true}
	if err := gdb.Create(biz).Error; err != nil {
		t.Fatal(err)
	}
	svc := &catalog.Service{
		ID: "svc-1", BusinessID: biz.ID, Slug: "haircut", Name: "Haircut",
		BasePrice: 40, Currency: "USD", DurationMinutes: 60, IsActive: true,
	}
	if err := gdb.Create(svc).Error; err != nil {
		t.Fatal(err)
	}
	// Monday through Friday, 09:00-18:00
	for day := 0; day < 5; day++ {
		if err := gdb.Create(&catalog.OperatingHours{
			BusinessID: biz.ID, DayOfWeek: day, OpenTime: "09:00", CloseTime: "18:00",
		}).Error; err != nil {
			t.Fatal(err)
		}
	}

	bookRepo := booking.NewRepo(gdb)
	return NewEngine(catalog.NewRepo(gdb), bookRepo), booking.NewService(bookRepo), gdb, svc
}

// 2026-09-07 is a Monday.
var monday = time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)

func TestListAvailableFullDay(t *testing.T) {
	e, _, _, svc := newEngine(t)

	open, err := e.ListAvailable(context.Background(), svc, monday)
	if err != nil {
		t.Fatal(err)
	}
	// 09:00 through 17:00 starts, hourly
	if len(open) != 9 {
		t.Fatalf("slots = %d, want 9", len(open))
	}
	if !open[0].Start.Equal(monday.Add(9 * time.Hour)) {
		t.Fatalf("first slot = %v", open[0].Start)
	}
	last := open[len(open)-1]
	if !last.Start.Equal(monday.Add(17 * time.Hour)) || !last.End.Equal(monday.Add(18*time.Hour)) {
		t.Fatalf("last slot = %v-%v", last.Start, last.End)
	}
}

func TestListAvailableExcludesReserved(t *testing.T) {
	e, bookings, _, svc := newEngine(t)
	ctx := context.Background()

	b, err := bookings.Create(ctx, svc.BusinessID, svc.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	ten := monday.Add(10 * time.Hour)
	if err := bookings.SetSlot(ctx, b.ID, ten, ten.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}

	open, err := e.ListAvailable(ctx, svc, monday)
	if err != nil {
		t.Fatal(err)
	}
	if len(open) != 8 {
		t.Fatalf("slots = %d, want 8", len(open))
	}
	for _, s := range open {
		if s.Start.Equal(ten) {
			t.Fatalf("reserved slot still listed: %v", s.Start)
		}
	}
}

func TestListAvailableClosedDay(t *testing.T) {
	e, _, _, svc := newEngine(t)

	saturday := monday.Add(-48 * time.Hour) // 2026-09-05, no hours row
	open, err := e.ListAvailable(context.Background(), svc, saturday)
	if err != nil {
		t.Fatal(err)
	}
	if len(open) != 0 {
		t.Fatalf("closed day returned %d slots", len(open))
	}
}

func TestListAvailableClosureException(t *testing.T) {
	e, _, gdb, svc := newEngine(t)

	if err := gdb.Create(&catalog.AvailabilityException{
		BusinessID: svc.BusinessID,
		Type:       catalog.ExceptionClosed,
		StartAt:    monday,
		EndAt:      monday.Add(24 * time.Hour),
	}).Error; err != nil {
		t.Fatal(err)
	}

	open, err := e.ListAvailable(context.Background(), svc, monday)
	if err != nil {
		t.Fatal(err)
	}
	if len(open) != 0 {
		t.Fatalf("closure exception ignored, got %d slots", len(open))
	}
}

func TestValidateExactInstantOnly(t *testing.T) {
	e, bookings, _, svc := newEngine(t)
	ctx := context.Background()

	b, err := bookings.Create(ctx, svc.BusinessID, svc.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	ten := monday.Add(10 * time.Hour)
	if err := bookings.SetSlot(ctx, b.ID, ten, ten.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}

	res, err := e.Validate(ctx, svc, ten)
	if err != nil {
		t.Fatal(err)
	}
	if res.Available {
		t.Fatal("exact instant should collide")
	}

	// 10:30 overlaps the held window but is a different instant, so it passes
	res, err = e.Validate(ctx, svc, ten.Add(30*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Available {
		t.Fatal("matching is by start-time equality, not overlap")
	}
}

func TestAlternativesRankedAndCapped(t *testing.T) {
	e, bookings, _, svc := newEngine(t)
	ctx := context.Background()

	b, err := bookings.Create(ctx, svc.BusinessID, svc.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	ten := monday.Add(10 * time.Hour)
	if err := bookings.SetSlot(ctx, b.ID, ten, ten.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}

	res, err := e.Validate(ctx, svc, ten)
	if err != nil {
		t.Fatal(err)
	}
	if res.Available {
		t.Fatal("expected conflict")
	}
	if len(res.Alternatives) == 0 || len(res.Alternatives) > MaxAlternatives {
		t.Fatalf("alternatives = %d", len(res.Alternatives))
	}

	// nearest first: 09:00 and 11:00 are both one hour away and must lead
	for i := 1; i < len(res.Alternatives); i++ {
		di := absDuration(res.Alternatives[i-1].Start.Sub(ten))
		dj := absDuration(res.Alternatives[i].Start.Sub(ten))
		if di > dj {
			t.Fatalf("alternatives not ranked by distance: %v then %v",
				res.Alternatives[i-1].Start, res.Alternatives[i].Start)
		}
	}
	for _, a := range res.Alternatives {
		if a.Start.Equal(ten) {
			t.Fatal("alternatives include the requested instant")
		}
	}
}

func TestAlternativesSpillToNextDay(t *testing.T) {
	e, bookings, _, svc := newEngine(t)
	ctx := context.Background()

	// Take every Monday slot so alternatives must come from Tuesday.
	for h := 9; h <= 17; h++ {
		b, err := bookings.Create(ctx, svc.BusinessID, svc.ID, nil)
		if err != nil {
			t.Fatal(err)
		}
		start := monday.Add(time.Duration(h) * time.Hour)
		if err := bookings.SetSlot(ctx, b.ID, start, start.Add(time.Hour)); err != nil {
			t.Fatal(err)
		}
	}

	alts, err := e.Alternatives(ctx, svc, monday.Add(10*time.Hour), MaxAlternatives)
	if err != nil {
		t.Fatal(err)
	}
	if len(alts) != MaxAlternatives {
		t.Fatalf("alternatives = %d, want %d", len(alts), MaxAlternatives)
	}
	tuesday := monday.Add(24 * time.Hour)
	for _, a := range alts {
		if a.Start.Before(tuesday) {
			t.Fatalf("alternative on a fully-booked day: %v", a.Start)
		}
	}
}
