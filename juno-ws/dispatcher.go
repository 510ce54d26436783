package junows

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	junocli "github.com/SwiftAkira/JunoKit-sub000/juno-cli"
	"github.com/SwiftAkira/JunoKit-sub000/juno-ws/publish"
	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const DefaultConcurrency = 50

// Dispatcher fans notification envelopes out to the connections subscribed
// to their topic.
type Dispatcher struct {
	Subs        SubscriptionStore
	Sender      *Sender
	Metrics     junocli.Metrics
	Logger      zerolog.Logger
	Concurrency int // max concurrent deliveries (default 50)

	Now func() time.Time
}

// HandleRecord dispatches one Kinesis record. Undecodable records are logged
// and dropped so that they do not block the shard.
func (d *Dispatcher) HandleRecord(ctx context.Context, record events.KinesisEventRecord) error {
	var envelope publish.Envelope
	if err := json.Unmarshal(record.Kinesis.Data, &envelope); err != nil {
		d.Logger.Error().Err(err).Str("event_id", record.EventID).Msg("failed to decode notification envelope")
		return nil
	}
	if err := d.Publish(ctx, envelope); err != nil {
		d.Logger.Error().Err(err).Str("event_id", record.EventID).Msg("failed to dispatch notification")
	}
	return nil
}

// Publish delivers envelope to every subscriber of its topic. A failed
// delivery to one subscriber does not affect the others.
func (d *Dispatcher) Publish(ctx context.Context, envelope publish.Envelope) error {
	if envelope.Topic == "" {
		d.Logger.Warn().Msg("notification has empty topic, skipping")
		return nil
	}

	subs, err := d.Subs.QueryByTopic(ctx, envelope.Topic)
	if err != nil {
		return fmt.Errorf("querying subscriptions for topic %v: %w", envelope.Topic, err)
	}
	if len(subs) == 0 {
		return nil
	}

	d.Logger.Debug().
		Str("topic", envelope.Topic).
		Int("subscribers", len(subs)).
		Msg("dispatching notification")

	concurrency := d.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	frame := NotificationFrame{
		Type:      TypeNotification,
		Topic:     envelope.Topic,
		Payload:   envelope.Payload,
		Timestamp: FormatTime(now()),
	}

	var delivered int64
	var g errgroup.Group
	g.SetLimit(concurrency)
	for _, sub := range subs {
		sub := sub
		g.Go(func() error {
			if err := d.Sender.Send(ctx, sub.Endpoint, sub.ConnectionID, frame); err != nil {
				d.Logger.Warn().Err(err).Str("connection_id", sub.ConnectionID).Msg("failed to deliver notification")
				return nil
			}
			atomic.AddInt64(&delivered, 1)
			return nil
		})
	}
	_ = g.Wait()

	d.Metrics.Gauge(ctx, junocli.NotificationMetric, float64(delivered), map[junocli.DimensionName]string{
		junocli.TopicDimension: envelope.Topic,
	})
	return nil
}

var _ publish.Sink = (*Dispatcher)(nil)
