package notification

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"ps-rental-backend/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// WorkerPool manages a pool of workers alerting subscribed operators when a
// rental finishes and its unit frees up.
type WorkerPool struct {
	size    int
	jobs    chan int64
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
}

// NewWorkerPool creates a new worker pool. Jobs are completed rental IDs.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan int64, size),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Worker %d started", id)
	for {
		select {
		case rentalID := <-wp.jobs:
			log.Printf("Worker %d processing rental %d", id, rentalID)
			wp.notifyRentalFinished(ctx, rentalID)
		case <-ctx.Done():
			log.Printf("Worker %d shutting down", id)
			return
		}
	}
}

// Dispatch sends a job to the worker pool without blocking the caller; a
// full queue drops the alert rather than stalling a lifecycle transition.
func (wp *WorkerPool) Dispatch(rentalID int64) {
	select {
	case wp.jobs <- rentalID:
	default:
		log.Printf("notification queue full, dropping alert for rental %d", rentalID)
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan int64 {
	return wp.jobs
}

// notifyRentalFinished fetches subscriptions and pushes a completion alert.
func (wp *WorkerPool) notifyRentalFinished(ctx context.Context, rentalID int64) {
	var subscriptions []model.PushSubscription
	if err := wp.db.WithContext(ctx).Find(&subscriptions).Error; err != nil {
		log.Printf("Error fetching subscriptions: %v", err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	var rental model.Rental
	if err := wp.db.WithContext(ctx).First(&rental, rentalID).Error; err != nil {
		log.Printf("Error fetching rental %d: %v", rentalID, err)
		return
	}

	unitLabel := fmt.Sprintf("unit %d", rental.TVUnitID)
	var unit model.TVUnit
	if err := wp.db.WithContext(ctx).Select("name").First(&unit, rental.TVUnitID).Error; err != nil {
		log.Printf("Error fetching unit %d: %v", rental.TVUnitID, err)
	} else if unit.Name != "" {
		unitLabel = unit.Name
	}

	message := fmt.Sprintf("%s selesai — total Rp %.0f", unitLabel, rental.GrandTotal)
	log.Printf("Sending %d notifications for rental %d", len(subscriptions), rentalID)
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, []byte(message))
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
