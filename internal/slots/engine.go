package slots

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/deskbell/deskbell/internal/catalog"
)

const (
	// DefaultDurationMinutes applies when a service has no duration configured.
	DefaultDurationMinutes = 60
	// MaxAlternatives is how many ranked alternatives a conflict returns.
	MaxAlternatives = 5
)

// Slot is a derived value, never a stored row.
type Slot struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Available bool      `json:"available"`
}

// Calendar is the catalog surface the engine reads. *catalog.Repo satisfies it.
type Calendar interface {
	HoursForWeekday(ctx context.Context, businessID string, dayOfWeek int) (*catalog.OperatingHours, error)
	HasClosure(ctx context.Context, businessID string, dayStart, dayEnd time.Time) (bool, error)
}

// Ledger answers whether an exact start instant is already held by a
// non-terminal booking. *booking.Repo satisfies it.
type Ledger interface {
	CountAtSlot(ctx context.Context, serviceID string, start time.Time) (int64, error)
}

type Engine struct {
	calendar Calendar
	ledger   Ledger
}

func NewEngine(calendar Calendar, ledger Ledger) *Engine {
	return &Engine{calendar: calendar, ledger: ledger}
}

// ListAvailable computes the open windows for a service on a date. A missing
// or closed hours row, or an overlapping CLOSED exception, yields no slots.
func (e *Engine) ListAvailable(ctx context.Context, svc *catalog.Service, date time.Time) ([]Slot, error) {
	day := mondayIndexed(date.Weekday())
	hours, err := e.calendar.HoursForWeekday(ctx, svc.BusinessID, day)
	if err != nil {
		return nil, err
	}
	if hours == nil || hours.IsClosed || hours.OpenTime == "" || hours.CloseTime == "" {
		return nil, nil
	}

	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24*time.Hour - time.Nanosecond)
	closed, err := e.calendar.HasClosure(ctx, svc.BusinessID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	if closed {
		return nil, nil
	}

	open, err := atWallClock(dayStart, hours.OpenTime)
	if err != nil {
		return nil, err
	}
	close, err := atWallClock(dayStart, hours.CloseTime)
	if err != nil {
		return nil, err
	}

	dur := time.Duration(svc.DurationMinutes) * time.Minute
	if dur <= 0 {
		dur = DefaultDurationMinutes * time.Minute
	}

	var out []Slot
	for cur := open; !cur.Add(dur).After(close); cur = cur.Add(dur) {
		cnt, err := e.ledger.CountAtSlot(ctx, svc.ID, cur)
		if err != nil {
			return nil, err
		}
		if cnt == 0 {
			out = append(out, Slot{Start: cur, End: cur.Add(dur), Available: true})
		}
	}
	return out, nil
}

// Result of a reservation validation.
type Result struct {
	Available    bool
	Alternatives []Slot
}

// Validate checks a single exact start instant. Matching is by start-time
// equality, not interval overlap: two bookings collide only when they request
// the identical instant. Kept as-is; do not generalize without product
// confirmation.
func (e *Engine) Validate(ctx context.Context, svc *catalog.Service, start time.Time) (Result, error) {
	cnt, err := e.ledger.CountAtSlot(ctx, svc.ID, start.UTC())
	if err != nil {
		return Result{}, err
	}
	if cnt == 0 {
		return Result{Available: true}, nil
	}
	alts, err := e.Alternatives(ctx, svc, start, MaxAlternatives)
	if err != nil {
		return Result{}, err
	}
	return Result{Available: false, Alternatives: alts}, nil
}

// Alternatives lists the nearest open slots to a requested instant: same day
// first, the following day when the same day yields fewer than n, ranked by
// absolute distance to the request.
func (e *Engine) Alternatives(ctx context.Context, svc *catalog.Service, requested time.Time, n int) ([]Slot, error) {
	if n <= 0 {
		n = MaxAlternatives
	}
	all, err := e.ListAvailable(ctx, svc, requested)
	if err != nil {
		return nil, err
	}
	if len(all) < n {
		next, err := e.ListAvailable(ctx, svc, requested.Add(24*time.Hour))
		if err != nil {
			return nil, err
		}
		all = append(all, next...)
	}

	sort.Slice(all, func(i, j int) bool {
		di := absDuration(all[i].Start.Sub(requested))
		dj := absDuration(all[j].Start.Sub(requested))
		return di < dj
	})

	if len(all) > n {
		all = all[:n]
	}
	return all, nil
}

// mondayIndexed converts Go's Sunday-first weekday to the 0=Monday rows the
// operating-hours table uses.
func mondayIndexed(w time.Weekday) int {
	return (int(w) + 6) % 7
}

func atWallClock(dayStart time.Time, hhmm string) (time.Time, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse wall-clock %q: %w", hhmm, err)
	}
	return dayStart.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute), nil
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
