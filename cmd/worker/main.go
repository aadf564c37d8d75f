package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/deskbell/deskbell/internal/booking"
	"github.com/deskbell/deskbell/internal/config"
	"github.com/deskbell/deskbell/internal/db"
	"github.com/deskbell/deskbell/internal/store/rabbitmq"
)

func workerConcurrency() int {
	v := os.Getenv("WORKER_CONCURRENCY")
	if v == "" {
		return 2
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

func main() {
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)
	bookings := booking.NewService(booking.NewRepo(gdb))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	// idle-expiry sweep
	wg.Add(1)
	go func() {
		defer wg.Done()
		runSweep(ctx, bookings, cfg.BookingIdleExpiry, cfg.SweepInterval)
	}()

	// event consumer; the sweep keeps running when rabbit is down
	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Printf("rabbit dial failed, events disabled: %v", err)
		wg.Wait()
		return
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatalf("rabbit channel: %v", err)
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(cfg.RabbitQueue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": cfg.RabbitQueue + ".dlq",
	}); err != nil {
		log.Fatalf("queue declare: %v", err)
	}

	concurrency := workerConcurrency()
	if err := ch.Qos(concurrency, 0, false); err != nil {
		log.Fatalf("qos: %v", err)
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatalf("consume: %v", err)
	}

	log.Printf("worker started, queue=%s concurrency=%d sweep=%s", cfg.RabbitQueue, concurrency, cfg.SweepInterval)

	jobs := make(chan amqp.Delivery, concurrency*2)

	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				var ev rabbitmq.Event
				if err := json.Unmarshal(d.Body, &ev); err != nil || ev.Kind == "" {
					log.Printf("worker=%d bad message: %v", workerID, err)
					_ = d.Nack(false, false)
					continue
				}

				start := time.Now()
				if err := handleEvent(ctx, ev); err != nil {
					log.Printf("worker=%d event %s failed cost=%s err=%v", workerID, ev.Kind, time.Since(start), err)
					_ = d.Nack(false, false)
					continue
				}

				if err := d.Ack(false); err != nil {
					log.Printf("worker=%d ack failed kind=%s err=%v", workerID, ev.Kind, err)
				}
			}
		}(i)
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			log.Printf("worker shutting down")
			close(jobs)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				log.Printf("delivery channel closed")
				time.Sleep(1 * time.Second)
				continue
			}
			jobs <- d
		}
	}
}

func runSweep(ctx context.Context, bookings *booking.Service, idleFor, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := bookings.ExpireStale(ctx, idleFor)
			if err != nil {
				log.Printf("sweep failed: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("sweep expired=%d idle_for=%s", n, idleFor)
			}
		}
	}
}

// handleEvent delivers outbound notifications. Delivery channels (SMS/email)
// are configured per deployment; for now each event is recorded in the log so
// operators can tail the stream.
func handleEvent(ctx context.Context, ev rabbitmq.Event) error {
	switch ev.Kind {
	case rabbitmq.EventBookingConfirmed:
		log.Printf("event=%s booking=%s code=%s", ev.Kind, ev.Payload["booking_id"], ev.Payload["tracking_code"])
	case rabbitmq.EventBookingCancelled:
		log.Printf("event=%s booking=%s code=%s", ev.Kind, ev.Payload["booking_id"], ev.Payload["tracking_code"])
	case rabbitmq.EventHandoffCreated:
		log.Printf("event=%s handoff=%s ticket=%s", ev.Kind, ev.Payload["handoff_id"], ev.Payload["ticket_code"])
	default:
		log.Printf("event=%s unrecognized", ev.Kind)
	}
	return nil
}
