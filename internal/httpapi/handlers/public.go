package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/deskbell/deskbell/internal/common"
	"github.com/deskbell/deskbell/internal/slots"
)

func (h *Handler) GetBusiness(c *gin.Context) {
	biz, err := h.Catalog.GetBusinessBySlug(c.Request.Context(), c.Param("business_slug"))
	if err != nil {
		failFor(c, err)
		return
	}
	common.OK(c, gin.H{
		"slug":       biz.Slug,
		"name":       biz.Name,
		"timezone":   biz.Timezone,
		"agent_name": biz.AgentName,
	})
}

func (h *Handler) ListServices(c *gin.Context) {
	biz, err := h.Catalog.GetBusinessBySlug(c.Request.Context(), c.Param("business_slug"))
	if err != nil {
		failFor(c, err)
		return
	}
	services, err := h.Catalog.ListActiveServices(c.Request.Context(), biz.ID)
	if err != nil {
		failFor(c, err)
		return
	}
	common.OK(c, gin.H{"services": services})
}

func (h *Handler) ListSlots(c *gin.Context) {
	date, err := time.Parse("2006-01-02", c.Query("date"))
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 40000, "date must be YYYY-MM-DD")
		return
	}

	biz, err := h.Catalog.GetBusinessBySlug(c.Request.Context(), c.Param("business_slug"))
	if err != nil {
		failFor(c, err)
		return
	}
	svc, err := h.Catalog.GetService(c.Request.Context(), c.Param("service_id"))
	if err != nil {
		failFor(c, err)
		return
	}
	if svc.BusinessID != biz.ID {
		common.Fail(c, http.StatusNotFound, 40401, "not found")
		return
	}

	open, err := h.Slots.ListAvailable(c.Request.Context(), svc, date)
	if err != nil {
		failFor(c, err)
		return
	}
	if open == nil {
		open = []slots.Slot{}
	}
	common.OK(c, gin.H{"date": c.Query("date"), "slots": open})
}

// GetBookingStatus is the unauthenticated tracking-code lookup. It exposes
// only what the customer already knows plus the status.
func (h *Handler) GetBookingStatus(c *gin.Context) {
	b, err := h.Bookings.GetByTrackingCode(c.Request.Context(), c.Param("tracking_code"))
	if err != nil {
		failFor(c, err)
		return
	}
	common.OK(c, gin.H{
		"tracking_code":  b.TrackingCode,
		"status":         b.Status,
		"payment_status": b.PaymentStatus,
		"slot_start":     b.SlotStart,
		"slot_end":       b.SlotEnd,
		"customer_name":  b.CustomerName,
	})
}

// GetHandoff looks a ticket up by its public code, or by secret token when
// the ?token= form is used.
func (h *Handler) GetHandoff(c *gin.Context) {
	ctx := c.Request.Context()
	if token := c.Query("token"); token != "" {
		req, err := h.Handoffs.GetBySecretToken(ctx, token)
		if err != nil {
			failFor(c, err)
			return
		}
		common.OK(c, gin.H{"ticket_code": req.TicketCode, "status": req.Status, "created_at": req.CreatedAt})
		return
	}

	req, err := h.Handoffs.GetByTicketCode(ctx, c.Param("ticket_code"))
	if err != nil {
		failFor(c, err)
		return
	}
	common.OK(c, gin.H{"ticket_code": req.TicketCode, "status": req.Status, "created_at": req.CreatedAt})
}
