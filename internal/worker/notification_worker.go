package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/booking-service/internal/config"
	"github.com/spec-kit/booking-service/internal/notify"
	"github.com/spec-kit/booking-service/internal/observability"
)

// Notification results recorded in metrics.
const (
	ResultSent     = "sent"
	ResultFailed   = "failed"
	ResultDropped  = "dropped"
	ResultDisabled = "disabled"
)

// Message is a single text addressed to a phone number.
type Message struct {
	Phone string
	Body  string
	Kind  string
}

// NotificationWorker delivers queued messages to a notify.Sink in the
// background. Delivery is best-effort: a full queue drops the message and a
// failed send is logged, never retried.
type NotificationWorker struct {
	sink    notify.Sink
	logger  *zap.Logger
	metrics *observability.Metrics
	timeout time.Duration
	enabled bool

	mu      sync.RWMutex
	closed  bool
	queue   chan Message
	wg      sync.WaitGroup
	started bool
}

// NewNotificationWorker builds a worker from the notify config.
func NewNotificationWorker(sink notify.Sink, logger *zap.Logger, metrics *observability.Metrics, cfg config.NotifyConfig) *NotificationWorker {
	size := cfg.QueueSize
	if size <= 0 {
		size = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationWorker{
		sink:    sink,
		logger:  logger,
		metrics: metrics,
		timeout: cfg.SendTimeout(),
		enabled: cfg.Enabled,
		queue:   make(chan Message, size),
	}
}

// Enqueue schedules msg without blocking and reports whether it was accepted.
func (w *NotificationWorker) Enqueue(msg Message) bool {
	if !w.enabled {
		w.metrics.RecordNotification(ResultDisabled)
		return false
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		w.metrics.RecordNotification(ResultDropped)
		return false
	}

	select {
	case w.queue <- msg:
		return true
	default:
		w.metrics.RecordNotification(ResultDropped)
		w.logger.Warn("notification queue full, message dropped",
			zap.String("kind", msg.Kind),
			zap.String("to", msg.Phone))
		return false
	}
}

// Start launches the delivery loop. It returns immediately; the loop ends
// when ctx is cancelled or Stop is called.
func (w *NotificationWorker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.started || w.closed {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-w.queue:
				if !ok {
					return
				}
				w.deliver(ctx, msg)
			}
		}
	}()
}

// Stop closes the queue and waits for queued messages to be delivered.
func (w *NotificationWorker) Stop() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.queue)
	w.mu.Unlock()

	w.wg.Wait()
}

func (w *NotificationWorker) deliver(ctx context.Context, msg Message) {
	sendCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	if err := w.sink.Send(sendCtx, msg.Phone, msg.Body); err != nil {
		w.metrics.RecordNotification(ResultFailed)
		w.logger.Warn("notification delivery failed",
			zap.String("kind", msg.Kind),
			zap.String("to", msg.Phone),
			zap.Error(err))
		return
	}
	w.metrics.RecordNotification(ResultSent)
}
