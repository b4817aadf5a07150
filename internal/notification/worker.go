package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"trainer-booking-backend/internal/model"
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

// SubscriptionStore is the part of the store the pool needs.
type SubscriptionStore interface {
	ListSubscriptions(ctx context.Context, userID string) ([]model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// Event is one booking change to announce.
type Event struct {
	Booking    model.Booking
	Transition model.Transition
}

// Payload is the JSON body delivered to the browser.
type Payload struct {
	Title      string           `json:"title"`
	Body       string           `json:"body"`
	BookingID  string           `json:"booking_id"`
	Status     string           `json:"status"`
	Transition model.Transition `json:"transition"`
}

// WorkerPool fans booking events out to the push subscriptions of the
// booking's trainer and client.
type WorkerPool struct {
	size    int
	jobs    chan Event
	store   SubscriptionStore
	webpush *webpush.Options
	sender  NotificationSender
	log     *zap.Logger
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, st SubscriptionStore, webpushOptions *webpush.Options, log *zap.Logger) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Event, size*32),
		store:   st,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
		log:     log.Named("push"),
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.log.Debug("worker started", zap.Int("worker", id))
	for {
		select {
		case ev := <-wp.jobs:
			wp.notify(ctx, ev)
		case <-ctx.Done():
			wp.log.Debug("worker shutting down", zap.Int("worker", id))
			return
		}
	}
}

// Dispatch queues an event. It never blocks the booking path; when the queue
// is full the event is dropped.
func (wp *WorkerPool) Dispatch(b model.Booking, transition model.Transition) bool {
	select {
	case wp.jobs <- Event{Booking: b, Transition: transition}:
		return true
	default:
		wp.log.Warn("notification queue full, dropping event",
			zap.String("booking_id", b.ID), zap.String("transition", string(transition)))
		return false
	}
}

func (wp *WorkerPool) notify(ctx context.Context, ev Event) {
	payload, err := json.Marshal(buildPayload(ev))
	if err != nil {
		wp.log.Error("failed to encode payload", zap.Error(err))
		return
	}
	for _, userID := range []string{ev.Booking.ClientID, ev.Booking.TrainerID} {
		subs, err := wp.store.ListSubscriptions(ctx, userID)
		if err != nil {
			wp.log.Error("failed to load subscriptions", zap.String("user_id", userID), zap.Error(err))
			continue
		}
		for _, sub := range subs {
			wp.sendNotification(ctx, sub, payload)
		}
	}
}

func buildPayload(ev Event) Payload {
	b := ev.Booking
	when := fmt.Sprintf("%s %s-%s", b.Date, b.StartTime, b.EndTime)
	var title string
	switch ev.Transition {
	case model.TransitionCreated:
		title = "New booking request"
		if b.Status == model.StatusConfirmed {
			title = "Session booked"
		}
	case model.TransitionConfirmed:
		title = "Session confirmed"
	case model.TransitionCancelled:
		title = "Session cancelled"
	case model.TransitionRescheduled:
		title = "Session moved"
	default:
		title = "Booking updated"
	}
	return Payload{
		Title:      title,
		Body:       when,
		BookingID:  b.ID,
		Status:     string(b.Status),
		Transition: ev.Transition,
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
		wp.log.Warn("failed to send notification", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		wp.log.Info("subscription expired, deleting", zap.String("endpoint", sub.Endpoint))
		if err := wp.store.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			wp.log.Error("failed to delete expired subscription", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		}
	}
}
