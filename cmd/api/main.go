package main

import (
	"context"
	"log"

	"github.com/deskbell/deskbell/internal/booking"
	"github.com/deskbell/deskbell/internal/call"
	"github.com/deskbell/deskbell/internal/catalog"
	"github.com/deskbell/deskbell/internal/chat"
	"github.com/deskbell/deskbell/internal/config"
	"github.com/deskbell/deskbell/internal/conversation"
	"github.com/deskbell/deskbell/internal/db"
	"github.com/deskbell/deskbell/internal/handoff"
	"github.com/deskbell/deskbell/internal/httpapi"
	"github.com/deskbell/deskbell/internal/store/rabbitmq"
	"github.com/deskbell/deskbell/internal/store/redisstore"
)

func main() {
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)
	if err := gdb.AutoMigrate(
		&catalog.Business{},
		&catalog.Service{},
		&catalog.OperatingHours{},
		&catalog.AvailabilityException{},
		&conversation.Conversation{},
		&conversation.Message{},
		&booking.Booking{},
		&handoff.Request{},
		&call.Session{},
	); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	rds := redisstore.NewStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err := rds.Ping(context.Background()); err != nil {
		log.Printf("redis unavailable, turn locks disabled: %v", err)
		rds = nil
	}

	var events chat.EventPublisher
	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		log.Printf("rabbit unavailable, events disabled: %v", err)
	} else {
		events = pub
		defer pub.Close()
	}

	r := httpapi.NewRouter(gdb, cfg, rds, events)

	log.Printf("api listening addr=%s", cfg.HTTPAddr)
	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
