// Package publish writes notification envelopes to the relay's Kinesis
// stream, from which the dispatcher fans them out to subscribed connections.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/service/kinesis"
	"github.com/aws/aws-sdk-go/service/kinesis/kinesisiface"
)

var ErrMissingTopic = errors.New("missing topic")

// Envelope is the record format of the notifications stream.
type Envelope struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope marshals payload into an envelope for topic.
func NewEnvelope(topic string, payload interface{}) (Envelope, error) {
	if topic == "" {
		return Envelope{}, ErrMissingTopic
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshalling payload: %w", err)
	}
	return Envelope{Topic: topic, Payload: data}, nil
}

// Sink accepts envelopes for delivery.
type Sink interface {
	Publish(ctx context.Context, envelope Envelope) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(ctx context.Context, envelope Envelope) error

func (fn SinkFunc) Publish(ctx context.Context, envelope Envelope) error {
	return fn(ctx, envelope)
}

// Publisher publishes envelopes to the notifications Kinesis stream.
type Publisher struct {
	client     kinesisiface.KinesisAPI
	streamName string
}

func New(client kinesisiface.KinesisAPI, streamName string) *Publisher {
	return &Publisher{
		client:     client,
		streamName: streamName,
	}
}

// Build creates a Publisher for the standard stream of env.
func Build(p client.ConfigProvider, env string) *Publisher {
	return New(kinesis.New(p), StreamName(env))
}

func StreamName(env string) string {
	return env + "-junokit-ws-notifications"
}

// Publish writes envelope to the stream. The topic is the partition key, so
// ordering holds within a topic.
func (p *Publisher) Publish(ctx context.Context, envelope Envelope) error {
	if envelope.Topic == "" {
		return ErrMissingTopic
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshalling envelope: %w", err)
	}

	_, err = p.client.PutRecordWithContext(ctx, &kinesis.PutRecordInput{
		StreamName:   aws.String(p.streamName),
		PartitionKey: aws.String(envelope.Topic),
		Data:         data,
	})
	if err != nil {
		return fmt.Errorf("publishing to kinesis stream %v: %w", p.streamName, err)
	}

	return nil
}

// Send builds an envelope from topic and payload and publishes it.
func (p *Publisher) Send(ctx context.Context, topic string, payload interface{}) error {
	envelope, err := NewEnvelope(topic, payload)
	if err != nil {
		return err
	}
	return p.Publish(ctx, envelope)
}
