package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/deskbell/deskbell/internal/booking"
	"github.com/deskbell/deskbell/internal/call"
	"github.com/deskbell/deskbell/internal/catalog"
	"github.com/deskbell/deskbell/internal/config"
	"github.com/deskbell/deskbell/internal/conversation"
	"github.com/deskbell/deskbell/internal/handoff"
)

func newTestRouter(t *testing.T) (*gin.Engine, *booking.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gdb, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := gdb.AutoMigrate(
		&catalog.Business{}, &catalog.Service{}, &catalog.OperatingHours{}, &catalog.AvailabilityException{},
		&conversation.Conversation{}, &conversation.Message{},
		&booking.Booking{}, &handoff.Request{}, &call.Session{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := config.Config{ChatHistoryWindow: 20}
	return NewRouter(gdb, cfg, nil, nil), booking.NewService(booking.NewRepo(gdb))
}

func TestPing(t *testing.T) {
	r, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("ping = %d", w.Code)
	}
}

func TestPublicBookingLookupPayload(t *testing.T) {
	r, bookings := newTestRouter(t)
	ctx := context.Background()

	b, err := bookings.Create(ctx, "biz-1", "svc-1", nil)
	if err != nil {
		t.Fatal(err)
	}
	start := time.Date(2026, 9, 7, 10, 0, 0, 0, time.UTC)
	if err := bookings.SetSlot(ctx, b.ID, start, start.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := bookings.SetContact(ctx, b.ID, "Ana Doe", "+15550100", "ana@example.com"); err != nil {
		t.Fatal(err)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet,
		"/api/v1/public/bookings/"+strings.ToLower(b.TrackingCode), nil))
	if w.Code != http.StatusOK {
		t.Fatalf("lookup = %d body=%s", w.Code, w.Body.String())
	}

	var envelope struct {
		Code int `json:"code"`
		Data struct {
			TrackingCode string     `json:"tracking_code"`
			Status       string     `json:"status"`
			CustomerName *string    `json:"customer_name"`
			SlotStart    *time.Time `json:"slot_start"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Code != 0 || envelope.Data.TrackingCode != b.TrackingCode {
		t.Fatalf("envelope: %+v", envelope)
	}
	if envelope.Data.Status != booking.StatusContactCollected {
		t.Fatalf("status = %s", envelope.Data.Status)
	}
	if envelope.Data.CustomerName == nil || *envelope.Data.CustomerName != "Ana Doe" {
		t.Fatalf("customer name missing from payload: %+v", envelope.Data)
	}
	if envelope.Data.SlotStart == nil || !envelope.Data.SlotStart.Equal(start) {
		t.Fatalf("slot start = %v", envelope.Data.SlotStart)
	}
}

func TestPublicBookingLookupUnknownCode(t *testing.T) {
	r, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/public/bookings/BK-000000", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown code = %d", w.Code)
	}
}
