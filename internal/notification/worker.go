package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/google/uuid"

	"lock-sync-backend/internal/lock"
	"lock-sync-backend/internal/model"
	"lock-sync-backend/internal/store"
)

// queuePerWorker sizes the job buffer relative to the pool size.
const queuePerWorker = 16

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

// Message is the JSON payload delivered to browsers.
type Message struct {
	Title  string    `json:"title"`
	Body   string    `json:"body"`
	Kind   lock.Kind `json:"kind"`
	LockID string    `json:"lockId"`
	Source string    `json:"source,omitempty"`
	At     time.Time `json:"at"`
}

// WorkerPool records emitted notifications and fans them out to push subscribers.
// It implements lock.Sink.
type WorkerPool struct {
	size    int
	jobs    chan lock.Notification
	store   store.Store
	webpush *webpush.Options
	sender  NotificationSender

	onRecorded func(lockID string)
}

var _ lock.Sink = (*WorkerPool)(nil)

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, s store.Store, webpushOptions *webpush.Options) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan lock.Notification, size*queuePerWorker),
		store:   s,
		webpush: webpushOptions,
		sender:  &WebPushSender{}, // Use the real sender by default
	}
}

// OnRecorded registers fn to run after a notification is saved to history.
// It must be called before Start.
func (wp *WorkerPool) OnRecorded(fn func(lockID string)) {
	wp.onRecorded = fn
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
		case n := <-wp.jobs:
			log.Printf("Worker %d processing %s notification for lock %s", id, n.Kind, n.LockID)
			wp.process(ctx, n)
		case <-ctx.Done():
			log.Printf("Worker %d shutting down", id)
			return
		}
	}
}

// Emit queues a notification. It blocks when the queue is full.
func (wp *WorkerPool) Emit(n lock.Notification) {
	wp.jobs <- n
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan lock.Notification {
	return wp.jobs
}

func (wp *WorkerPool) process(ctx context.Context, n lock.Notification) {
	rec := &model.NotificationRecord{
		ID:        uuid.New(),
		EmittedAt: n.At,
		LockID:    n.LockID,
		Kind:      string(n.Kind),
		Source:    n.Source(),
		Detail:    n.Attributes["reason"],
	}
	if rec.EmittedAt.IsZero() {
		rec.EmittedAt = time.Now().UTC()
	}
	if err := wp.store.RecordNotification(ctx, rec); err != nil {
		log.Printf("Error recording notification for lock %s: %v", n.LockID, err)
	} else if wp.onRecorded != nil {
		wp.onRecorded(n.LockID)
	}

	subscriptions, err := wp.store.SubscriptionsForLock(ctx, n.LockID)
	if err != nil {
		log.Printf("Error fetching subscriptions for lock %s: %v", n.LockID, err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	log.Printf("Sending %d notifications for lock %s", len(subscriptions), n.LockID)

	var l model.Lock
	label := n.LockID
	if err := wp.store.DB().WithContext(ctx).
		Select("name").
		First(&l, "id = ?", n.LockID).Error; err != nil {
		log.Printf("Error fetching lock %s: %v", n.LockID, err)
	} else if l.Name != "" {
		label = l.Name
	}

	payload, err := json.Marshal(buildMessage(n, label))
	if err != nil {
		log.Printf("Error encoding notification for lock %s: %v", n.LockID, err)
		return
	}
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

func buildMessage(n lock.Notification, label string) Message {
	msg := Message{Title: label, Kind: n.Kind, LockID: n.LockID, Source: n.Source(), At: n.At}
	switch n.Kind {
	case lock.KindLocked:
		msg.Body = "Locked"
	case lock.KindUnlocked:
		msg.Body = "Unlocked"
	case lock.KindOpened:
		msg.Body = "Door opened"
	case lock.KindClosed:
		msg.Body = "Door closed"
	case lock.KindDoorbell:
		msg.Body = "Someone rang the doorbell"
	case lock.KindPinSyncFailed:
		msg.Body = "PIN sync failed: " + n.Attributes["reason"]
	default:
		msg.Body = string(n.Kind)
	}
	if src := n.Source(); src != "" {
		msg.Body = fmt.Sprintf("%s (%s)", msg.Body, src)
	}
	return msg
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	// Manually construct the webpush.Subscription object
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
		if err := wp.store.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
