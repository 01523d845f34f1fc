// Package delivery attempts out-of-band push delivery for newly appended
// inbox notifications.
//
// Delivery is fire-and-forget: a failure is logged and counted but never
// propagated to the operation that appended the notification.
package delivery

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmestre/hearth/internal/app/system/metrics"
	"github.com/jmestre/hearth/internal/domain/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Pusher sends one push payload to a delivery token.
type Pusher interface {
	Push(ctx context.Context, token, title, body string, data []byte) error
}

// RedisPusher publishes payloads to a per-token Redis channel for gateway
// processes to fan out to devices.
type RedisPusher struct {
	rdb *redis.Client
}

func NewRedisPusher(rdb *redis.Client) *RedisPusher {
	return &RedisPusher{rdb: rdb}
}

type pushEnvelope struct {
	Token string          `json:"token"`
	Title string          `json:"title"`
	Body  string          `json:"body"`
	Data  json.RawMessage `json:"data"`
}

func (p *RedisPusher) Push(ctx context.Context, token, title, body string, data []byte) error {
	payload, err := json.Marshal(pushEnvelope{Token: token, Title: title, Body: body, Data: data})
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, "push:"+token, payload).Err()
}

// Adapter observes inbox appends and attempts push delivery with bounded
// retry. A nil Pusher disables delivery entirely.
type Adapter struct {
	pusher      Pusher
	log         *zap.Logger
	maxAttempts int
	baseBackoff time.Duration
	perAttempt  time.Duration
}

func New(pusher Pusher, logger *zap.Logger) *Adapter {
	return &Adapter{
		pusher:      pusher,
		log:         logger,
		maxAttempts: 3,
		baseBackoff: 500 * time.Millisecond,
		perAttempt:  5 * time.Second,
	}
}

// Notify attempts delivery of the notification just appended to the
// user's inbox. It returns immediately; delivery happens on its own
// goroutine with its own deadline. A user without a push token is
// skipped, which is not an error.
func (a *Adapter) Notify(user models.User, n models.Notification) {
	if a == nil || a.pusher == nil {
		return
	}
	if user.PushToken == "" {
		a.log.Debug("push skipped, no token",
			zap.String("user", user.ID.Hex()),
			zap.String("type", n.Type))
		return
	}
	go a.deliver(user.PushToken, n)
}

func (a *Adapter) deliver(token string, n models.Notification) {
	data, err := json.Marshal(n)
	if err != nil {
		a.log.Error("push payload marshal failed", zap.String("type", n.Type), zap.Error(err))
		return
	}

	backoff := a.baseBackoff
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), a.perAttempt)
		err = a.pusher.Push(ctx, token, titleFor(n.Type), n.Message, data)
		cancel()
		if err == nil {
			metrics.PushPublished.Inc()
			return
		}

		a.log.Warn("push attempt failed",
			zap.String("type", n.Type),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt < a.maxAttempts {
			time.Sleep(backoff)
			backoff *= 2
		}
	}

	metrics.PushFailed.Inc()
	a.log.Error("push delivery abandoned",
		zap.String("type", n.Type),
		zap.Int("attempts", a.maxAttempts),
		zap.Error(err))
}

// titleFor maps the notification type to a short push title.
func titleFor(notifType string) string {
	switch notifType {
	case models.NotifJoinRequest:
		return "New join request"
	case models.NotifAcceptedRequest:
		return "Request accepted"
	case models.NotifDeclinedRequest:
		return "Request declined"
	case models.NotifNewEvent:
		return "New event"
	case models.NotifNewNews:
		return "Neighborhood news"
	case models.NotifNewReport:
		return "Incident report"
	case models.NotifEventReminder:
		return "Event today"
	default:
		return "Hearth"
	}
}
