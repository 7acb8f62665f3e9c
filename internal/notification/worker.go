package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"

	"sanitization-status-backend/internal/engine"
	"sanitization-status-backend/internal/model"
)

// ErrQueueFull is returned by Dispatch when every worker is busy and the queue is full.
var ErrQueueFull = errors.New("notification queue full")

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

// SubscriptionStore is the subset of the store the workers need.
type SubscriptionStore interface {
	SubscriptionsForStation(ctx context.Context, stationID string) ([]model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// Payload is the JSON body delivered to the browser.
type Payload struct {
	Title     string          `json:"title"`
	Body      string          `json:"body"`
	AlertID   string          `json:"alertId"`
	StationID string          `json:"stationId"`
	Priority  engine.Priority `json:"priority"`
	Status    engine.Status   `json:"status"`
}

// NewPayload builds the push payload for an alert.
func NewPayload(a engine.Alert) Payload {
	return Payload{
		Title:     fmt.Sprintf("[%s] %s", a.Priority, a.StationName),
		Body:      a.Message,
		AlertID:   a.ID,
		StationID: a.StationID,
		Priority:  a.Priority,
		Status:    a.Status,
	}
}

// WorkerPool manages a pool of workers for sending notifications. It
// implements engine.Listener: every committed alert is pushed to the
// subscriptions following its station.
type WorkerPool struct {
	size    int
	jobs    chan engine.Alert
	store   SubscriptionStore
	webpush *webpush.Options
	sender  NotificationSender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size, queueSize int, store SubscriptionStore, webpushOptions *webpush.Options) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	if queueSize < size {
		queueSize = size
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan engine.Alert, queueSize),
		store:   store,
		webpush: webpushOptions,
		sender:  &WebPushSender{}, // Use the real sender by default
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
		case alert := <-wp.jobs:
			wp.sendNotificationsForAlert(ctx, alert)
		case <-ctx.Done():
			log.Printf("Worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues an alert without blocking.
func (wp *WorkerPool) Dispatch(alert engine.Alert) error {
	select {
	case wp.jobs <- alert:
		return nil
	default:
		return ErrQueueFull
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan engine.Alert {
	return wp.jobs
}

// TransitionCommitted dispatches the alert a transition raised, if any.
func (wp *WorkerPool) TransitionCommitted(c engine.Commit) error {
	if c.Alert == nil {
		return nil
	}
	return wp.Dispatch(*c.Alert)
}

// AlertsRead is a no-op; read state is not pushed.
func (wp *WorkerPool) AlertsRead(ids []string) error {
	return nil
}

// sendNotificationsForAlert fetches subscriptions and sends notifications for a given alert.
func (wp *WorkerPool) sendNotificationsForAlert(ctx context.Context, alert engine.Alert) {
	subscriptions, err := wp.store.SubscriptionsForStation(ctx, alert.StationID)
	if err != nil {
		log.Printf("Error fetching subscriptions for station %s: %v", alert.StationID, err)
		return
	}

	if len(subscriptions) == 0 {
		return
	}

	payload, err := json.Marshal(NewPayload(alert))
	if err != nil {
		log.Printf("Error encoding alert %s: %v", alert.ID, err)
		return
	}

	log.Printf("Sending %d notifications for alert %s (station %s)", len(subscriptions), alert.ID, alert.StationID)
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
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
	if resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.store.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
