// Package memstore holds in-process versions of the relay's DynamoDB stores,
// used by the local console gateway and by tests.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/SwiftAkira/JunoKit-sub000/juno-chat/chatdao"
	"github.com/SwiftAkira/JunoKit-sub000/juno-ws/connectiondao"
	"github.com/SwiftAkira/JunoKit-sub000/juno-ws/subscriptiondao"
)

// Connections mirrors connectiondao.DAO.
type Connections struct {
	mu    sync.Mutex
	items map[string]connectiondao.Connection
}

func NewConnections() *Connections {
	return &Connections{items: map[string]connectiondao.Connection{}}
}

func (c *Connections) Put(_ context.Context, conn connectiondao.Connection) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[conn.ConnectionID] = copyConnection(conn)
	return nil
}

func (c *Connections) Get(_ context.Context, connectionID string) (*connectiondao.Connection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	conn, ok := c.items[connectionID]
	if !ok {
		return nil, nil
	}
	conn = copyConnection(conn)
	return &conn, nil
}

func (c *Connections) Update(_ context.Context, connectionID string, patch connectiondao.Patch) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	conn, ok := c.items[connectionID]
	if !ok {
		return connectiondao.ErrNotFound
	}
	if patch.LastActivity != nil {
		conn.LastActivity = *patch.LastActivity
	}
	if patch.UserStatus != nil {
		conn.UserStatus = *patch.UserStatus
	}
	if patch.NotificationSubscriptions != nil {
		conn.NotificationSubscriptions = append([]string{}, patch.NotificationSubscriptions...)
	}
	c.items[connectionID] = conn
	return nil
}

func (c *Connections) Delete(_ context.Context, connectionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, connectionID)
	return nil
}

// Scan visits connections in id order until fn returns false.
func (c *Connections) Scan(_ context.Context, fn func(connectiondao.Connection) bool) error {
	c.mu.Lock()
	conns := make([]connectiondao.Connection, 0, len(c.items))
	for _, conn := range c.items {
		conns = append(conns, copyConnection(conn))
	}
	c.mu.Unlock()

	sort.Slice(conns, func(i, j int) bool { return conns[i].ConnectionID < conns[j].ConnectionID })
	for _, conn := range conns {
		if !fn(conn) {
			break
		}
	}
	return nil
}

func copyConnection(conn connectiondao.Connection) connectiondao.Connection {
	if conn.NotificationSubscriptions != nil {
		conn.NotificationSubscriptions = append([]string{}, conn.NotificationSubscriptions...)
	}
	return conn
}

// Subscriptions mirrors subscriptiondao.DAO.
type Subscriptions struct {
	mu    sync.Mutex
	items map[string]subscriptiondao.Subscription
}

func NewSubscriptions() *Subscriptions {
	return &Subscriptions{items: map[string]subscriptiondao.Subscription{}}
}

func (s *Subscriptions) Replace(ctx context.Context, connectionID, userID, endpoint string, topics []string, ttl int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteByConnection(connectionID)
	for _, topic := range topics {
		id := subscriptiondao.ID(connectionID, topic)
		s.items[id] = subscriptiondao.Subscription{
			SubscriptionID: id,
			ConnectionID:   connectionID,
			Topic:          topic,
			UserID:         userID,
			Endpoint:       endpoint,
			TTL:            ttl,
		}
	}
	return nil
}

func (s *Subscriptions) DeleteByConnection(_ context.Context, connectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteByConnection(connectionID)
	return nil
}

func (s *Subscriptions) deleteByConnection(connectionID string) {
	for id, sub := range s.items {
		if sub.ConnectionID == connectionID {
			delete(s.items, id)
		}
	}
}

func (s *Subscriptions) QueryByTopic(_ context.Context, topic string) ([]subscriptiondao.Subscription, error) {
	return s.query(func(sub subscriptiondao.Subscription) bool { return sub.Topic == topic }), nil
}

func (s *Subscriptions) QueryByConnection(_ context.Context, connectionID string) ([]subscriptiondao.Subscription, error) {
	return s.query(func(sub subscriptiondao.Subscription) bool { return sub.ConnectionID == connectionID }), nil
}

func (s *Subscriptions) query(match func(subscriptiondao.Subscription) bool) []subscriptiondao.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	var subs []subscriptiondao.Subscription
	for _, sub := range s.items {
		if match(sub) {
			subs = append(subs, sub)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].SubscriptionID < subs[j].SubscriptionID })
	return subs
}

// Chat mirrors chatdao.DAO.
type Chat struct {
	mu            sync.Mutex
	messages      map[string][]chatdao.Message
	conversations map[string]chatdao.Conversation
}

func NewChat() *Chat {
	return &Chat{
		messages:      map[string][]chatdao.Message{},
		conversations: map[string]chatdao.Conversation{},
	}
}

func (c *Chat) SaveMessage(_ context.Context, msg chatdao.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs := append(c.messages[msg.ConversationKey], msg)
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].SortKey < msgs[j].SortKey })
	c.messages[msg.ConversationKey] = msgs
	return nil
}

// RecentMessages returns the last limit messages in chronological order.
func (c *Chat) RecentMessages(_ context.Context, userID, conversationID string, limit int) ([]chatdao.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs := c.messages[chatdao.ConversationKey(userID, conversationID)]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]chatdao.Message(nil), msgs...), nil
}

func (c *Chat) TouchConversation(_ context.Context, update chatdao.ConversationUpdate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := chatdao.ConversationKey(update.UserID, update.ConversationID)
	conv, ok := c.conversations[key]
	if !ok {
		conv = chatdao.Conversation{
			UserID:         update.UserID,
			ConversationID: update.ConversationID,
			CreatedAt:      update.UpdatedAt,
		}
	}
	conv.Title = update.Title
	conv.LastMessage = update.LastMessage
	conv.UpdatedAt = update.UpdatedAt
	conv.MessageCount += update.AddedMessages
	c.conversations[key] = conv
	return nil
}

func (c *Chat) GetConversation(_ context.Context, userID, conversationID string) (*chatdao.Conversation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	conv, ok := c.conversations[chatdao.ConversationKey(userID, conversationID)]
	if !ok {
		return nil, nil
	}
	return &conv, nil
}

// Messages returns every stored message of a conversation.
func (c *Chat) Messages(userID, conversationID string) []chatdao.Message {
	msgs, _ := c.RecentMessages(context.Background(), userID, conversationID, 0)
	return msgs
}
