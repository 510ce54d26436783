package subscriptiondao

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/savaki/ddb"
)

// batchSize is the DynamoDB BatchWriteItem limit.
const batchSize = 25

// DAO provides access to the notification subscriptions table.
type DAO struct {
	table     *ddb.Table
	api       dynamodbiface.DynamoDBAPI
	tableName string
}

// New creates a new subscriptions DAO.
func New(api dynamodbiface.DynamoDBAPI, tableName string) *DAO {
	return &DAO{
		table:     ddb.New(api).MustTable(tableName, Subscription{}),
		api:       api,
		tableName: tableName,
	}
}

// Table exposes the underlying table, e.g. for creating it in tests.
func (d *DAO) Table() *ddb.Table {
	return d.table
}

// QueryByTopic returns all subscriptions for a given topic using the TopicIndex GSI.
func (d *DAO) QueryByTopic(ctx context.Context, topic string) ([]Subscription, error) {
	var subs []Subscription
	err := d.table.Query("#Topic = ?", topic).
		IndexName("TopicIndex").
		FindAllWithContext(ctx, &subs)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscriptions by topic %v: %w", topic, err)
	}
	return subs, nil
}

// QueryByConnection returns all subscriptions for a given connection using the ConnectionIndex GSI.
func (d *DAO) QueryByConnection(ctx context.Context, connectionID string) ([]Subscription, error) {
	var subs []Subscription
	err := d.table.Query("#ConnectionID = ?", connectionID).
		IndexName("ConnectionIndex").
		FindAllWithContext(ctx, &subs)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscriptions by connection %v: %w", connectionID, err)
	}
	return subs, nil
}

// Replace makes topics the complete subscription set of a connection.
func (d *DAO) Replace(ctx context.Context, connectionID, userID, endpoint string, topics []string, ttl int64) error {
	if err := d.DeleteByConnection(ctx, connectionID); err != nil {
		return err
	}

	requests := make([]*dynamodb.WriteRequest, 0, len(topics))
	for _, topic := range topics {
		item, err := dynamodbattribute.MarshalMap(Subscription{
			SubscriptionID: ID(connectionID, topic),
			ConnectionID:   connectionID,
			Topic:          topic,
			UserID:         userID,
			Endpoint:       endpoint,
			TTL:            ttl,
		})
		if err != nil {
			return fmt.Errorf("failed to marshal subscription %v for connection %v: %w", topic, connectionID, err)
		}
		requests = append(requests, &dynamodb.WriteRequest{
			PutRequest: &dynamodb.PutRequest{Item: item},
		})
	}
	if err := d.batchWrite(ctx, requests); err != nil {
		return fmt.Errorf("failed to store subscriptions for connection %v: %w", connectionID, err)
	}
	return nil
}

// DeleteByConnection removes all subscriptions for a given connection.
func (d *DAO) DeleteByConnection(ctx context.Context, connectionID string) error {
	subs, err := d.QueryByConnection(ctx, connectionID)
	if err != nil {
		return err
	}

	requests := make([]*dynamodb.WriteRequest, 0, len(subs))
	for _, sub := range subs {
		requests = append(requests, &dynamodb.WriteRequest{
			DeleteRequest: &dynamodb.DeleteRequest{
				Key: map[string]*dynamodb.AttributeValue{
					"pk": {S: aws.String(sub.SubscriptionID)},
				},
			},
		})
	}
	if err := d.batchWrite(ctx, requests); err != nil {
		return fmt.Errorf("failed to delete subscriptions for connection %v: %w", connectionID, err)
	}
	return nil
}

func (d *DAO) batchWrite(ctx context.Context, requests []*dynamodb.WriteRequest) error {
	for i := 0; i < len(requests); i += batchSize {
		end := i + batchSize
		if end > len(requests) {
			end = len(requests)
		}

		unprocessed := map[string][]*dynamodb.WriteRequest{
			d.tableName: requests[i:end],
		}

		const maxRetries = 5
		for attempt := 0; len(unprocessed) > 0; attempt++ {
			if attempt == maxRetries {
				return fmt.Errorf("%d items unprocessed after %d retries", len(unprocessed[d.tableName]), maxRetries)
			}
			if attempt > 0 {
				backoff := time.Duration(1<<(attempt-1)) * 100 * time.Millisecond
				timer := time.NewTimer(backoff)
				select {
				case <-ctx.Done():
					timer.Stop()
					return ctx.Err()
				case <-timer.C:
				}
			}

			output, err := d.api.BatchWriteItemWithContext(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: unprocessed,
			})
			if err != nil {
				return err
			}
			unprocessed = output.UnprocessedItems
		}
	}
	return nil
}
