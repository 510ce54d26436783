package chatdao

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/tj/assert"
)

func withTables(t *testing.T, callback func(ctx context.Context, dao *DAO)) {
	endpoint := os.Getenv("DYNAMODB_ENDPOINT")
	if endpoint == "" {
		t.Skip("DYNAMODB_ENDPOINT not set; skipping DynamoDB local test")
	}

	var (
		s = session.Must(session.NewSession(aws.NewConfig().
			WithCredentials(credentials.NewStaticCredentials("blah", "blah", "")).
			WithEndpoint(endpoint).
			WithRegion("us-west-2")))
		suffix = time.Now().UnixNano()
		dao    = New(dynamodb.New(s), fmt.Sprintf("messages-%v", suffix), fmt.Sprintf("conversations-%v", suffix))
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, table := range dao.Tables() {
		err := table.CreateTableIfNotExists(ctx)
		assert.Nil(t, err)
		defer table.DeleteTableIfExists(ctx)
	}

	callback(ctx, dao)
}

func TestDAO(t *testing.T) {
	withTables(t, func(ctx context.Context, dao *DAO) {
		for i, ts := range []string{"2024-01-01T00:00:01.000Z", "2024-01-01T00:00:02.000Z", "2024-01-01T00:00:03.000Z"} {
			msg := NewMessage("u1", "c1", fmt.Sprintf("m%v", i), RoleUser, fmt.Sprintf("turn %v", i), ts)
			assert.Nil(t, dao.SaveMessage(ctx, msg))
		}

		msgs, err := dao.RecentMessages(ctx, "u1", "c1", 2)
		assert.Nil(t, err)
		assert.Len(t, msgs, 2)
		assert.Equal(t, "turn 1", msgs[0].Content)
		assert.Equal(t, "turn 2", msgs[1].Content)

		update := ConversationUpdate{
			UserID:         "u1",
			ConversationID: "c1",
			Title:          "turn 2",
			LastMessage:    "reply",
			UpdatedAt:      "2024-01-01T00:00:04.000Z",
			AddedMessages:  2,
		}
		assert.Nil(t, dao.TouchConversation(ctx, update))
		update.UpdatedAt = "2024-01-01T00:00:05.000Z"
		assert.Nil(t, dao.TouchConversation(ctx, update))

		c, err := dao.GetConversation(ctx, "u1", "c1")
		assert.Nil(t, err)
		assert.Equal(t, 4, c.MessageCount)
		assert.Equal(t, "2024-01-01T00:00:04.000Z", c.CreatedAt)
		assert.Equal(t, "2024-01-01T00:00:05.000Z", c.UpdatedAt)
	})
}
