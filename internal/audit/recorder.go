package audit

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/hotel-booking/internal/domain"
	"github.com/robertarktes/hotel-booking/internal/observability"
)

type Sink interface {
	LogEvent(ctx context.Context, evt domain.BookingEvent) error
}

// Recorder copies booking events from the bus into the audit store.
type Recorder struct {
	sink   Sink
	logger observability.Logger
}

func NewRecorder(sink Sink, logger observability.Logger) *Recorder {
	return &Recorder{sink: sink, logger: logger}
}

// Run handles deliveries until the channel closes or ctx is done.
func (r *Recorder) Run(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			r.handle(ctx, d)
		}
	}
}

func (r *Recorder) handle(ctx context.Context, d amqp.Delivery) {
	var evt domain.BookingEvent
	if err := json.Unmarshal(d.Body, &evt); err != nil {
		r.logger.WithField("message_id", d.MessageId).Error("dropping malformed event: ", err)
		_ = d.Nack(false, false)
		return
	}
	if evt.Type == "" {
		evt.Type = d.RoutingKey
	}

	if err := r.sink.LogEvent(ctx, evt); err != nil {
		r.logger.WithFields(map[string]interface{}{
			"message_id": d.MessageId,
			"event_type": evt.Type,
		}).Warn("audit write failed, requeueing: ", err)
		_ = d.Nack(false, !d.Redelivered)
		return
	}
	_ = d.Ack(false)
}
