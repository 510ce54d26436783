// Package junokinesis builds Kinesis stream consumers that run as Lambda
// functions, or tail the stream directly from the console.
package junokinesis

import (
	"context"
	"fmt"

	junocli "github.com/SwiftAkira/JunoKit-sub000/juno-cli"
	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	consumer "github.com/harlow/kinesis-consumer"
	"github.com/rs/zerolog"
)

type HandleRecordCallback func(ctx context.Context, record events.KinesisEventRecord) error

type Handler struct {
	Service    junocli.Service
	Logger     zerolog.Logger
	StreamName string // used in console mode when --stream-name is empty

	handleRecord HandleRecordCallback
}

func NewHandler(
	service junocli.Service,
	streamName string,
	handleRecord HandleRecordCallback,
) *Handler {
	return &Handler{
		Service:      service,
		Logger:       junocli.Logger(service),
		StreamName:   streamName,
		handleRecord: handleRecord,
	}
}

func (h *Handler) Start() error {
	if !junocli.CommonOpts.Console {
		lambda.Start(h.HandleKinesisEvent)
		return nil
	}
	return h.tail()
}

// HandleKinesisEvent processes records in order and stops at the first
// error, so that Lambda retries the batch.
func (h *Handler) HandleKinesisEvent(ctx context.Context, event events.KinesisEvent) error {
	ctx = h.Logger.WithContext(ctx)
	for _, r := range event.Records {
		if err := h.handleRecord(ctx, r); err != nil {
			return fmt.Errorf("handling record %v: %w", r.EventID, err)
		}
	}
	return nil
}

func (h *Handler) tail() error {
	streamName := KinesisOpts.StreamName
	if streamName == "" {
		streamName = h.StreamName
	}

	var options []consumer.Option
	switch {
	case KinesisOpts.Replay && KinesisOpts.ReplayFrom.Value() != nil:
		options = append(options, consumer.WithShardIteratorType("AT_TIMESTAMP"))
		options = append(options, consumer.WithTimestamp(*KinesisOpts.ReplayFrom.Value()))
	case KinesisOpts.Replay:
		options = append(options, consumer.WithShardIteratorType("TRIM_HORIZON"))
	default:
		options = append(options, consumer.WithShardIteratorType("LATEST"))
	}

	c, err := consumer.New(streamName, options...)
	if err != nil {
		return fmt.Errorf("creating consumer for %v: %w", streamName, err)
	}

	ctx := h.Logger.WithContext(context.Background())
	callback := func(record *consumer.Record) error {
		er := events.KinesisEventRecord{
			Kinesis: events.KinesisRecord{Data: record.Data},
		}
		return h.handleRecord(ctx, er)
	}
	h.Logger.Info().Str("stream", streamName).Msg("tailing stream")
	return c.Scan(ctx, callback)
}
