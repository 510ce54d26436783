// Package junoddb provides DynamoDB and DAX client construction plus a
// DynamoDB streams handler that runs either as a Lambda or, in console mode,
// by tailing the table's stream directly.
package junoddb

import (
	"context"
	"encoding/json"
	"fmt"

	junocli "github.com/SwiftAkira/JunoKit-sub000/juno-cli"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodbstreams"
	"github.com/rs/zerolog"
	"github.com/savaki/ddb"
	"golang.org/x/sync/errgroup"
)

type Item = map[string]*dynamodb.AttributeValue

type InsertCallback func(ctx context.Context, newValue Item) error
type UpdateCallback func(ctx context.Context, oldValue, newValue Item) error
type DeleteCallback func(ctx context.Context, oldValue Item) error

// Callbacks selects which stream events a Handler reacts to. Nil callbacks
// are skipped.
type Callbacks struct {
	OnInsert InsertCallback
	OnUpdate UpdateCallback
	OnDelete DeleteCallback
}

type Handler struct {
	service   junocli.Service
	Logger    zerolog.Logger
	callbacks Callbacks
}

func NewHandler(service junocli.Service, callbacks Callbacks) *Handler {
	return &Handler{
		service:   service,
		Logger:    junocli.Logger(service),
		callbacks: callbacks,
	}
}

func (h *Handler) Start() error {
	if junocli.CommonOpts.Console {
		return h.tailStream(context.Background())
	}
	lambda.Start(h.HandleEvent)
	return nil
}

func (h *Handler) HandleEvent(ctx context.Context, event ddb.Event) error {
	ctx = h.Logger.WithContext(ctx)
	h.Logger.Trace().Int("count", len(event.Records)).Msg("handling a batch of stream records")
	for _, record := range event.Records {
		if err := h.HandleRecord(ctx, record); err != nil {
			h.Logger.Error().Err(err).Str("event", record.EventID).Msg("unable to handle record")
			return fmt.Errorf("unable to handle record %v: %w", record.EventID, err)
		}
	}
	return nil
}

func (h *Handler) HandleRecord(ctx context.Context, record ddb.Record) error {
	switch record.EventName {
	case "INSERT":
		if h.callbacks.OnInsert != nil {
			return h.callbacks.OnInsert(ctx, record.Change.NewImage)
		}
	case "MODIFY":
		if h.callbacks.OnUpdate != nil {
			return h.callbacks.OnUpdate(ctx, record.Change.OldImage, record.Change.NewImage)
		}
	case "REMOVE":
		if h.callbacks.OnDelete != nil {
			return h.callbacks.OnDelete(ctx, record.Change.OldImage)
		}
	}
	return nil
}

func (h *Handler) tailStream(ctx context.Context) error {
	ctx = h.Logger.WithContext(ctx)
	streams := dynamodbstreams.New(session.Must(session.NewSession(aws.NewConfig())))
	listed, err := streams.ListStreamsWithContext(ctx, &dynamodbstreams.ListStreamsInput{
		TableName: aws.String(DDBOpts.TableName),
	})
	if err != nil {
		return fmt.Errorf("unable to list streams for table %v: %w", DDBOpts.TableName, err)
	}
	if len(listed.Streams) != 1 {
		return fmt.Errorf("expected exactly one stream for table %v, found %v", DDBOpts.TableName, len(listed.Streams))
	}
	streamArn := listed.Streams[0].StreamArn

	var (
		shards    []*dynamodbstreams.Shard
		lastShard *string
	)
	for {
		described, err := streams.DescribeStreamWithContext(ctx, &dynamodbstreams.DescribeStreamInput{
			StreamArn:             streamArn,
			ExclusiveStartShardId: lastShard,
		})
		if err != nil {
			return fmt.Errorf("unable to describe stream %v: %w", aws.StringValue(streamArn), err)
		}
		shards = append(shards, described.StreamDescription.Shards...)
		if described.StreamDescription.LastEvaluatedShardId == nil {
			break
		}
		lastShard = described.StreamDescription.LastEvaluatedShardId
	}

	h.Logger.Info().Str("tableName", DDBOpts.TableName).Int("shardCount", len(shards)).Msg("tailing stream")

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(64)
	for _, shard := range shards {
		shardID := shard.ShardId
		group.Go(func() error {
			return h.tailShard(ctx, streams, streamArn, shardID)
		})
	}
	return group.Wait()
}

func (h *Handler) tailShard(ctx context.Context, streams *dynamodbstreams.DynamoDBStreams, streamArn, shardID *string) error {
	it, err := streams.GetShardIteratorWithContext(ctx, &dynamodbstreams.GetShardIteratorInput{
		StreamArn:         streamArn,
		ShardId:           shardID,
		ShardIteratorType: aws.String(dynamodbstreams.ShardIteratorTypeLatest),
	})
	if err != nil {
		return fmt.Errorf("unable to get shard iterator: %w", err)
	}

	for iterator := it.ShardIterator; iterator != nil; {
		records, err := streams.GetRecordsWithContext(ctx, &dynamodbstreams.GetRecordsInput{
			ShardIterator: iterator,
		})
		if err != nil {
			return fmt.Errorf("unable to get records: %w", err)
		}
		for _, record := range records.Records {
			// the streams SDK shape and the lambda event shape share a JSON form
			raw, err := json.Marshal(record)
			if err != nil {
				return fmt.Errorf("unable to marshal record: %w", err)
			}
			var r ddb.Record
			if err := json.Unmarshal(raw, &r); err != nil {
				return fmt.Errorf("unable to unmarshal record: %w", err)
			}
			if err := h.HandleRecord(ctx, r); err != nil {
				return fmt.Errorf("error processing record %v: %w", r.EventID, err)
			}
		}
		iterator = records.NextShardIterator
	}
	return nil
}

func ParseItem(item Item, v interface{}) error {
	if err := dynamodbattribute.UnmarshalMap(item, v); err != nil {
		return fmt.Errorf("unable to unmarshal item: %w", err)
	}
	return nil
}
