package chatdao

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/savaki/ddb"
)

// DAO persists chat turns and conversation metadata.
type DAO struct {
	api                dynamodbiface.DynamoDBAPI
	messages           *ddb.Table
	conversations      *ddb.Table
	messagesTable      string
	conversationsTable string
}

func New(api dynamodbiface.DynamoDBAPI, messagesTable, conversationsTable string) *DAO {
	client := ddb.New(api)
	return &DAO{
		api:                api,
		messages:           client.MustTable(messagesTable, Message{}),
		conversations:      client.MustTable(conversationsTable, Conversation{}),
		messagesTable:      messagesTable,
		conversationsTable: conversationsTable,
	}
}

// Tables exposes the underlying tables, e.g. for creating them in tests.
func (d *DAO) Tables() []*ddb.Table {
	return []*ddb.Table{d.messages, d.conversations}
}

// SaveMessage persists a single chat turn.
func (d *DAO) SaveMessage(ctx context.Context, msg Message) error {
	if err := d.messages.Put(msg).RunWithContext(ctx); err != nil {
		return fmt.Errorf("failed to save message %v in conversation %v: %w", msg.MessageID, msg.ConversationID, err)
	}
	return nil
}

// RecentMessages returns up to limit of the latest turns of a conversation in
// chronological order.
func (d *DAO) RecentMessages(ctx context.Context, userID, conversationID string, limit int) ([]Message, error) {
	if limit <= 0 {
		return nil, nil
	}

	output, err := d.api.QueryWithContext(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(d.messagesTable),
		KeyConditionExpression: aws.String("pk = :pk"),
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":pk": {S: aws.String(ConversationKey(userID, conversationID))},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int64(int64(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query messages for conversation %v: %w", conversationID, err)
	}

	var msgs []Message
	if err := dynamodbattribute.UnmarshalListOfMaps(output.Items, &msgs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal messages for conversation %v: %w", conversationID, err)
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// TouchConversation upserts the conversation metadata row. createdAt is only
// written the first time; messageCount is incremented atomically.
func (d *DAO) TouchConversation(ctx context.Context, update ConversationUpdate) error {
	_, err := d.api.UpdateItemWithContext(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(d.conversationsTable),
		Key: map[string]*dynamodb.AttributeValue{
			"userId":         {S: aws.String(update.UserID)},
			"conversationId": {S: aws.String(update.ConversationID)},
		},
		UpdateExpression: aws.String("SET title = :title, lastMessage = :last, updatedAt = :now, createdAt = if_not_exists(createdAt, :now) ADD messageCount :n"),
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":title": {S: aws.String(update.Title)},
			":last":  {S: aws.String(update.LastMessage)},
			":now":   {S: aws.String(update.UpdatedAt)},
			":n":     {N: aws.String(fmt.Sprint(update.AddedMessages))},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to update conversation %v: %w", update.ConversationID, err)
	}
	return nil
}

// GetConversation returns the metadata row of a conversation, or nil if it
// doesn't exist.
func (d *DAO) GetConversation(ctx context.Context, userID, conversationID string) (*Conversation, error) {
	var c Conversation
	if err := d.conversations.Get(userID).Range(conversationID).ScanWithContext(ctx, &c); err != nil {
		if ddb.IsItemNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get conversation %v: %w", conversationID, err)
	}
	return &c, nil
}
