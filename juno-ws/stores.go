package junows

import (
	"context"

	"github.com/SwiftAkira/JunoKit-sub000/juno-chat/chatdao"
	"github.com/SwiftAkira/JunoKit-sub000/juno-ws/connectiondao"
	"github.com/SwiftAkira/JunoKit-sub000/juno-ws/subscriptiondao"
)

// ConnectionStore is implemented by connectiondao.DAO and memstore.
type ConnectionStore interface {
	Put(ctx context.Context, conn connectiondao.Connection) error
	Get(ctx context.Context, connectionID string) (*connectiondao.Connection, error)
	Update(ctx context.Context, connectionID string, patch connectiondao.Patch) error
	Delete(ctx context.Context, connectionID string) error
}

// SubscriptionStore is implemented by subscriptiondao.DAO and memstore.
type SubscriptionStore interface {
	Replace(ctx context.Context, connectionID, userID, endpoint string, topics []string, ttl int64) error
	DeleteByConnection(ctx context.Context, connectionID string) error
	QueryByTopic(ctx context.Context, topic string) ([]subscriptiondao.Subscription, error)
}

// ChatStore is implemented by chatdao.DAO and memstore.
type ChatStore interface {
	SaveMessage(ctx context.Context, msg chatdao.Message) error
	RecentMessages(ctx context.Context, userID, conversationID string, limit int) ([]chatdao.Message, error)
	TouchConversation(ctx context.Context, update chatdao.ConversationUpdate) error
}
