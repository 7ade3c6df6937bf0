package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Ishimwe-William/attendance-system-rfid-125khz-based/internal/attendance"
	"github.com/Ishimwe-William/attendance-system-rfid-125khz-based/internal/config"
	"github.com/Ishimwe-William/attendance-system-rfid-125khz-based/internal/mailer"
	"github.com/Ishimwe-William/attendance-system-rfid-125khz-based/internal/metrics"
	"github.com/Ishimwe-William/attendance-system-rfid-125khz-based/internal/notify"
	"github.com/Ishimwe-William/attendance-system-rfid-125khz-based/internal/queue"
	"github.com/Ishimwe-William/attendance-system-rfid-125khz-based/internal/store"
)

// Worker consumes checkout events and runs the notification workflow:
// resolve the student and exam context, send the confirmation email, and
// record the outcome on the attendance row.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "attendance:checkouts")
	}

	smtp, err := mailer.New(mailer.Config{
		Host:     cfg.EmailHost,
		Port:     cfg.EmailPort,
		Username: cfg.EmailUsername,
		Password: cfg.EmailPassword,
		From:     cfg.EmailFrom,
	})
	if err != nil {
		log.Fatalf("mailer init failed: %v", err)
	}

	repo := attendance.NewRepository(db.Client)
	policy := attendance.Policy{
		GraceMinutes:           cfg.GracePeriodMinutes,
		EarlyCheckInMinutes:    cfg.EarlyCheckInMinutes,
		DeviceClockOffsetHours: cfg.DeviceClockOffsetHours,
		Location:               time.Local,
	}
	wf := notify.NewWorkflow(repo, smtp, policy, cfg.DisplayLocation())

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for checkout events...")
	for msg := range messages {
		if msg.Type != queue.TypeCheckout {
			continue
		}

		id := string(msg.Body)
		log.Printf("processing checkout for record %s", id)

		state, err := wf.Process(ctx, id)
		if err != nil {
			log.Printf("checkout %s not processable: %v", id, err)
			metrics.CheckoutEmailsTotal.WithLabelValues("unprocessable").Inc()
			continue
		}
		metrics.CheckoutEmailsTotal.WithLabelValues(string(state)).Inc()
		log.Printf("record %s -> %s", id, state)

		time.Sleep(10 * time.Millisecond) // Small delay between processing
	}

	log.Println("worker stopped")
}
