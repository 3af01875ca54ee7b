package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tablebook/internal/domain"
	"tablebook/internal/metrics"
	"tablebook/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Dispatcher delivers scheduled notifications. Scheduling persists a row
// first; due rows reach the sender through a redis wake-up queue when one
// is configured, the in-memory channel as a fallback, and DB polling as
// the catch-all for future deliver_at times and crashed runs.
type Dispatcher struct {
	store         domain.Store
	sender        domain.NotificationSender
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan models.ScheduledNotification
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	logger        zerolog.Logger
}

func NewDispatcher(store domain.Store, sender domain.NotificationSender, redisClient *redis.Client, retry RetryPolicy, logger *zerolog.Logger) *Dispatcher {
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = 1 * time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}

	log := zerolog.Nop()
	if logger != nil {
		log = logger.With().Str("component", "dispatcher").Logger()
	}

	return &Dispatcher{
		store:         store,
		sender:        sender,
		redis:         redisClient,
		retryPolicy:   retry,
		queue:         make(chan models.ScheduledNotification, models.WorkerQueueSize),
		redisQueueKey: "notify:queue",
		deadLetterKey: "notify:deadletter",
		pollInterval:  2 * time.Second,
		batchSize:     20,
		logger:        log,
	}
}

// Schedule persists the notification and wakes the loop when it is
// already due. Future deliveries are picked up by polling.
func (d *Dispatcher) Schedule(ctx context.Context, n *models.ScheduledNotification) error {
	if n.Kind == "" {
		return errors.New("notification kind is required")
	}
	if n.Status == "" {
		n.Status = "pending"
	}

	if err := d.store.CreateNotification(ctx, n); err != nil {
		return fmt.Errorf("persist notification: %w", err)
	}

	if n.DeliverAt.After(time.Now()) {
		return nil
	}

	if d.redis != nil {
		if err := d.pushRedis(ctx, *n); err != nil {
			d.logger.Warn().Err(err).Msg("redis push failed, fallback to memory queue")
		} else {
			return nil
		}
	}

	select {
	case d.queue <- *n:
	default:
		d.logger.Warn().Int64("id", n.ID).Msg("in-memory queue full, notification left to polling")
	}
	return nil
}

// Start launches the delivery loop; stops when ctx is done.
func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Info().Msg("notification dispatcher started")
	defer d.logger.Info().Msg("notification dispatcher stopped")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if n, ok := d.tryLocalQueue(); ok {
			d.process(ctx, &n)
			continue
		}

		if n, ok := d.tryRedis(ctx); ok {
			d.process(ctx, &n)
			continue
		}

		due, err := d.store.GetDueNotifications(ctx, d.batchSize)
		if err != nil {
			d.logger.Error().Err(err).Msg("fetch due notifications failed")
			time.Sleep(d.pollInterval)
			continue
		}
		if len(due) == 0 {
			time.Sleep(d.pollInterval)
			continue
		}

		for i := range due {
			d.process(ctx, &due[i])
		}
	}
}

func (d *Dispatcher) tryLocalQueue() (models.ScheduledNotification, bool) {
	select {
	case n := <-d.queue:
		return n, true
	default:
		return models.ScheduledNotification{}, false
	}
}

func (d *Dispatcher) tryRedis(ctx context.Context) (models.ScheduledNotification, bool) {
	if d.redis == nil {
		return models.ScheduledNotification{}, false
	}
	res, err := d.redis.BRPop(ctx, time.Second, d.redisQueueKey).Result()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
			return models.ScheduledNotification{}, false
		}
		d.logger.Error().Err(err).Msg("redis BRPOP error")
		return models.ScheduledNotification{}, false
	}
	if len(res) != 2 {
		return models.ScheduledNotification{}, false
	}
	var n models.ScheduledNotification
	if err := json.Unmarshal([]byte(res[1]), &n); err != nil {
		d.logger.Error().Err(err).Msg("decode redis notification failed")
		return models.ScheduledNotification{}, false
	}
	return n, true
}

func (d *Dispatcher) process(ctx context.Context, n *models.ScheduledNotification) {
	if n.DeliverAt.After(time.Now()) {
		// Рано: строка останется pending и придёт через polling
		return
	}

	if err := d.sender.Send(ctx, n); err != nil {
		d.retryOrFail(ctx, n, err)
		return
	}

	metrics.IncNotificationSent(n.Kind)
	if err := d.store.UpdateNotificationStatus(ctx, n.ID, "delivered", "", nil); err != nil {
		d.logger.Error().Err(err).Int64("id", n.ID).Msg("mark delivered failed")
	}
}

func (d *Dispatcher) retryOrFail(ctx context.Context, n *models.ScheduledNotification, cause error) {
	attempt := n.RetryCount + 1
	if attempt >= d.retryPolicy.MaxRetries {
		if err := d.store.UpdateNotificationStatus(ctx, n.ID, "failed", cause.Error(), nil); err != nil {
			d.logger.Error().Err(err).Int64("id", n.ID).Msg("mark failed failed")
		}
		d.pushDeadLetter(ctx, n)
		return
	}

	nextTime := time.Now().Add(d.retryPolicy.NextDelay(attempt))
	if err := d.store.UpdateNotificationStatus(ctx, n.ID, "retry", cause.Error(), &nextTime); err != nil {
		d.logger.Error().Err(err).Int64("id", n.ID).Msg("mark retry failed")
	}
}

func (d *Dispatcher) pushRedis(ctx context.Context, n models.ScheduledNotification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return d.redis.LPush(ctx, d.redisQueueKey, data).Err()
}

func (d *Dispatcher) pushDeadLetter(ctx context.Context, n *models.ScheduledNotification) {
	if d.redis == nil {
		return
	}
	data, err := json.Marshal(n)
	if err != nil {
		d.logger.Error().Err(err).Int64("id", n.ID).Msg("encode deadletter failed")
		return
	}
	if err := d.redis.LPush(ctx, d.deadLetterKey, data).Err(); err != nil {
		d.logger.Error().Err(err).Int64("id", n.ID).Msg("deadletter push failed")
	}
}

// LogSender is the default NotificationSender: delivery itself is an
// external concern, so it just records the hand-off.
type LogSender struct {
	Logger zerolog.Logger
}

func (s LogSender) Send(_ context.Context, n *models.ScheduledNotification) error {
	s.Logger.Info().
		Int64("user_id", n.UserID).
		Str("channel", n.Channel).
		Str("kind", n.Kind).
		Str("body", n.Body).
		Msg("notification delivered")
	return nil
}
