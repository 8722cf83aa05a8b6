package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/orderline/orders-bff/internal/events"
)

const defaultQueueSize = 64

// Notifier delivers one event.
type Notifier interface {
	Notify(ctx context.Context, event events.Event) error
}

// NotificationWorker moves notification delivery off the request path. Events are queued by the
// dispatcher subscription and delivered one at a time; a full queue drops the event with a warning.
type NotificationWorker struct {
	notifier Notifier
	logger   *zap.Logger
	queue    chan events.Event
	wg       sync.WaitGroup
}

// NewNotificationWorker creates a worker with a bounded queue.
func NewNotificationWorker(notifier Notifier, logger *zap.Logger, queueSize int) *NotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &NotificationWorker{notifier: notifier, logger: logger, queue: make(chan events.Event, queueSize)}
}

// StartNotificationWorker subscribes the worker to every notification event and starts delivery.
// Delivery stops once ctx is cancelled and the queue has drained; Wait blocks until then.
func StartNotificationWorker(ctx context.Context, dispatcher events.Dispatcher, w *NotificationWorker) {
	if dispatcher == nil || w == nil || w.notifier == nil {
		return
	}
	for _, typ := range []events.EventType{events.EventOpportunityStatusChanged, events.EventOpportunityInvoiceRecorded} {
		dispatcher.Subscribe(typ, w.enqueue)
	}
	w.wg.Add(1)
	go w.run(ctx)
}

// Wait blocks until the delivery loop exits.
func (w *NotificationWorker) Wait() {
	w.wg.Wait()
}

func (w *NotificationWorker) enqueue(_ context.Context, event events.Event) error {
	select {
	case w.queue <- event:
	default:
		w.logger.Warn("notification queue full; dropping event",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)))
	}
	return nil
}

func (w *NotificationWorker) run(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case event := <-w.queue:
			w.deliver(context.WithoutCancel(ctx), event)
		case <-ctx.Done():
			for {
				select {
				case event := <-w.queue:
					w.deliver(context.WithoutCancel(ctx), event)
				default:
					return
				}
			}
		}
	}
}

func (w *NotificationWorker) deliver(ctx context.Context, event events.Event) {
	if err := w.notifier.Notify(ctx, event); err != nil {
		w.logger.Warn("notification failed",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
	}
}
