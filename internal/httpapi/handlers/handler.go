package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/deskbell/deskbell/internal/booking"
	"github.com/deskbell/deskbell/internal/call"
	"github.com/deskbell/deskbell/internal/catalog"
	"github.com/deskbell/deskbell/internal/chat"
	"github.com/deskbell/deskbell/internal/common"
	"github.com/deskbell/deskbell/internal/config"
	"github.com/deskbell/deskbell/internal/conversation"
	"github.com/deskbell/deskbell/internal/handoff"
	"github.com/deskbell/deskbell/internal/nlu"
	"github.com/deskbell/deskbell/internal/slots"
	"github.com/deskbell/deskbell/internal/store/redisstore"
)

type Handler struct {
	DB       *gorm.DB
	Cfg      config.Config
	Catalog  *catalog.Repo
	Bookings *booking.Service
	Handoffs *handoff.Service
	Slots    *slots.Engine
	ChatSvc  *chat.Service
	CallSvc  *call.Service
}

func NewHandler(db *gorm.DB, cfg config.Config, rds *redisstore.Store, events chat.EventPublisher) *Handler {
	catRepo := catalog.NewRepo(db)
	convRepo := conversation.NewRepo(db)
	bookRepo := booking.NewRepo(db)
	bookSvc := booking.NewService(bookRepo)
	handSvc := handoff.NewService(db, convRepo)
	engine := slots.NewEngine(catRepo, bookRepo)

	provider := nlu.NewOpenAIProvider(cfg.NLUBaseURL, cfg.NLUAPIKey, cfg.NLUModel, cfg.NLUTimeout)
	chatSvc := chat.NewService(catRepo, convRepo, bookSvc, handSvc, engine,
		provider, rds, events, cfg.ChatHistoryWindow)

	return &Handler{
		DB:       db,
		Cfg:      cfg,
		Catalog:  catRepo,
		Bookings: bookSvc,
		Handoffs: handSvc,
		Slots:    engine,
		ChatSvc:  chatSvc,
		CallSvc:  call.NewService(db, chatSvc),
	}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"status": "ok"})
}

// failFor maps domain errors onto the response envelope.
func failFor(c *gin.Context, err error) {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		common.Fail(c, http.StatusNotFound, 40401, "not found")
	case errors.Is(err, booking.ErrAlreadyCancelled):
		common.Fail(c, http.StatusBadRequest, 40001, "booking is already cancelled")
	case errors.Is(err, booking.ErrTerminalState):
		common.Fail(c, http.StatusBadRequest, 40002, "booking can no longer be changed")
	case errors.Is(err, booking.ErrIncomplete):
		common.Fail(c, http.StatusBadRequest, 40003, "booking is missing required information")
	case errors.Is(err, call.ErrInvalidStatus):
		common.Fail(c, http.StatusBadRequest, 40004, "status must be COMPLETED, ABANDONED or FAILED")
	case errors.Is(err, booking.ErrSlotTaken):
		common.Fail(c, http.StatusConflict, 40902, "slot is no longer available")
	case errors.Is(err, chat.ErrConversationBusy):
		common.Fail(c, http.StatusConflict, 40901, "conversation is processing another message")
	default:
		common.Fail(c, http.StatusInternalServerError, 50000, "internal error")
	}
}
