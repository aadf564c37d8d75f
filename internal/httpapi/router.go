package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/deskbell/deskbell/internal/chat"
	"github.com/deskbell/deskbell/internal/common"
	"github.com/deskbell/deskbell/internal/config"
	"github.com/deskbell/deskbell/internal/httpapi/handlers"
	"github.com/deskbell/deskbell/internal/httpapi/middleware"
	"github.com/deskbell/deskbell/internal/store/redisstore"
)

func NewRouter(db *gorm.DB, cfg config.Config, rds *redisstore.Store, events chat.EventPublisher) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())

	h := handlers.NewHandler(db, cfg, rds, events)

	r.GET("/ping", h.Ping)

	v1 := r.Group("/api/v1")

	chatGroup := v1.Group("/chat")
	chatGroup.POST("/conversations", h.StartConversation)
	chatGroup.POST("/conversations/:conversation_id/messages", h.SendMessage)
	chatGroup.GET("/conversations/:conversation_id", h.GetConversation)
	chatGroup.GET("/conversations/:conversation_id/history", h.ConversationHistory)
	chatGroup.POST("/conversations/:conversation_id/end", h.EndConversation)

	voice := v1.Group("/voice")
	voice.POST("/calls/start", h.StartCall)
	voice.POST("/calls/message", h.CallMessage)
	voice.POST("/calls/end", h.EndCall)
	voice.GET("/calls/:call_id", h.GetCall)
	voice.GET("/calls", h.SearchCalls)
	voice.GET("/analytics", h.CallAnalytics)

	public := v1.Group("/public")
	public.GET("/businesses/:business_slug", h.GetBusiness)
	public.GET("/businesses/:business_slug/services", h.ListServices)
	public.GET("/businesses/:business_slug/services/:service_id/slots", h.ListSlots)
	public.GET("/bookings/:tracking_code", h.GetBookingStatus)
	public.GET("/handoffs/:ticket_code", h.GetHandoff)

	admin := v1.Group("/admin")
	admin.GET("/handoffs", h.ListOpenHandoffs)
	admin.PATCH("/handoffs/:handoff_id", h.UpdateHandoff)

	return r
}
