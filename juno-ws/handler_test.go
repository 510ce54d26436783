package junows

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	junoai "github.com/SwiftAkira/JunoKit-sub000/juno-ai"
	junoauth "github.com/SwiftAkira/JunoKit-sub000/juno-auth"
	"github.com/SwiftAkira/JunoKit-sub000/juno-chat/chatdao"
	"github.com/SwiftAkira/JunoKit-sub000/juno-ws/connectiondao"
	"github.com/SwiftAkira/JunoKit-sub000/juno-ws/memstore"
	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"
	"github.com/tj/assert"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeTransport struct {
	mu      sync.Mutex
	posts   map[string][]map[string]interface{}
	gone    map[string]bool
	err     error
	deleted []string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		posts: map[string][]map[string]interface{}{},
		gone:  map[string]bool{},
	}
}

func (f *fakeTransport) PostToConnection(_ context.Context, _, connectionID string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gone[connectionID] {
		return ErrGone
	}
	if f.err != nil {
		return f.err
	}
	var frame map[string]interface{}
	if err := json.Unmarshal(data, &frame); err != nil {
		return err
	}
	f.posts[connectionID] = append(f.posts[connectionID], frame)
	return nil
}

func (f *fakeTransport) DeleteConnection(_ context.Context, _, connectionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, connectionID)
	return nil
}

func (f *fakeTransport) frames(connectionID string) []map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.posts[connectionID]
}

type fakeVerifier map[string]junoauth.Claims

func (f fakeVerifier) Verify(_ context.Context, token string) (junoauth.Claims, error) {
	claims, ok := f[token]
	if !ok {
		return junoauth.Claims{}, junoauth.ErrInvalidToken
	}
	return claims, nil
}

type fakeAI struct {
	requests []junoai.Request
	fn       func(req junoai.Request) (junoai.Completion, error)
}

func (f *fakeAI) Complete(_ context.Context, req junoai.Request) (junoai.Completion, error) {
	f.requests = append(f.requests, req)
	if f.fn != nil {
		return f.fn(req)
	}
	last := req.Messages[len(req.Messages)-1]
	return junoai.Completion{Content: "echo: " + last.Content, Tokens: 7, Model: "test-model"}, nil
}

type faultyChat struct {
	*memstore.Chat
	saveErr      error
	historyErr   error
	touchErr     error
	historyPanic bool

	mu     sync.Mutex
	writes int
}

func (f *faultyChat) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

func (f *faultyChat) SaveMessage(ctx context.Context, msg chatdao.Message) error {
	f.mu.Lock()
	f.writes++
	f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	return f.Chat.SaveMessage(ctx, msg)
}

func (f *faultyChat) RecentMessages(ctx context.Context, userID, conversationID string, limit int) ([]chatdao.Message, error) {
	if f.historyPanic {
		panic("history exploded")
	}
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return f.Chat.RecentMessages(ctx, userID, conversationID, limit)
}

func (f *faultyChat) TouchConversation(ctx context.Context, update chatdao.ConversationUpdate) error {
	f.mu.Lock()
	f.writes++
	f.mu.Unlock()
	if f.touchErr != nil {
		return f.touchErr
	}
	return f.Chat.TouchConversation(ctx, update)
}

type fixture struct {
	handler   *Handler
	conns     *memstore.Connections
	subs      *memstore.Subscriptions
	chat      *faultyChat
	transport *fakeTransport
	ai        *fakeAI
	now       time.Time
}

func newFixture() *fixture {
	f := &fixture{
		conns:     memstore.NewConnections(),
		subs:      memstore.NewSubscriptions(),
		chat:      &faultyChat{Chat: memstore.NewChat()},
		transport: newFakeTransport(),
		ai:        &fakeAI{},
		now:       t0,
	}
	sender := &Sender{
		Transport:   f.transport,
		Connections: f.conns,
		Subs:        f.subs,
		Logger:      zerolog.Nop(),
	}
	f.handler = &Handler{
		Connections: f.conns,
		Subs:        f.subs,
		Chat:        f.chat,
		AI:          f.ai,
		Verifier: fakeVerifier{
			"good": {Subject: "user-1", Email: "user@example.com"},
		},
		Sender: sender,
		Logger: zerolog.Nop(),
		Now:    func() time.Time { return f.now },
	}
	return f
}

func request(route, connID, body string) events.APIGatewayWebsocketProxyRequest {
	return events.APIGatewayWebsocketProxyRequest{
		Body: body,
		RequestContext: events.APIGatewayWebsocketProxyRequestContext{
			ConnectionID: connID,
			RouteKey:     route,
			DomainName:   "abc.execute-api.us-east-1.amazonaws.com",
			Stage:        "prod",
		},
	}
}

func (f *fixture) connect(t *testing.T, connID, token string) {
	req := request(RouteConnect, connID, "")
	if token != "" {
		req.QueryStringParameters = map[string]string{"token": token}
	}
	resp, err := f.handler.HandleEvent(context.Background(), req)
	assert.Nil(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func (f *fixture) send(t *testing.T, connID string, frame string) (int, map[string]interface{}) {
	resp, err := f.handler.HandleEvent(context.Background(), request(RouteDefault, connID, frame))
	assert.Nil(t, err)
	var body map[string]interface{}
	if resp.Body != "" {
		assert.Nil(t, json.Unmarshal([]byte(resp.Body), &body))
	}
	return resp.StatusCode, body
}

func (f *fixture) connection(t *testing.T, connID string) *connectiondao.Connection {
	conn, err := f.conns.Get(context.Background(), connID)
	assert.Nil(t, err)
	return conn
}

func TestConnect(t *testing.T) {
	t.Run("verified token", func(t *testing.T) {
		f := newFixture()
		f.connect(t, "c1", "good")

		conn := f.connection(t, "c1")
		assert.NotNil(t, conn)
		assert.Equal(t, "user-1", conn.UserID)
		assert.Equal(t, "user@example.com", conn.UserEmail)
		assert.Equal(t, connectiondao.StatusConnected, conn.Status)
		assert.Equal(t, "2024-03-01T12:00:00.000Z", conn.ConnectedAt)
		assert.Equal(t, conn.ConnectedAt, conn.LastActivity)
		assert.Equal(t, t0.Add(24*time.Hour).Unix(), conn.TTL)
		assert.Equal(t, "https://abc.execute-api.us-east-1.amazonaws.com/prod", conn.Endpoint)
	})

	t.Run("invalid token is anonymous", func(t *testing.T) {
		f := newFixture()
		f.connect(t, "c1", "bad")
		assert.Equal(t, connectiondao.AnonymousUserID, f.connection(t, "c1").UserID)
	})

	t.Run("no token is anonymous", func(t *testing.T) {
		f := newFixture()
		f.connect(t, "c1", "")
		assert.Equal(t, connectiondao.AnonymousUserID, f.connection(t, "c1").UserID)
	})

	t.Run("authorization header", func(t *testing.T) {
		f := newFixture()
		req := request(RouteConnect, "c1", "")
		req.Headers = map[string]string{"Authorization": "Bearer good"}
		_, err := f.handler.HandleEvent(context.Background(), req)
		assert.Nil(t, err)
		assert.Equal(t, "user-1", f.connection(t, "c1").UserID)
	})

	t.Run("callback url override", func(t *testing.T) {
		f := newFixture()
		f.handler.CallbackURL = "http://localhost:3001"
		f.connect(t, "c1", "")
		assert.Equal(t, "http://localhost:3001", f.connection(t, "c1").Endpoint)
	})
}

func TestDisconnect(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.connect(t, "c1", "good")
	_, body := f.send(t, "c1", `{"action":"subscribe_notifications","data":{"notificationTypes":["deploys"]}}`)
	assert.Equal(t, TypeNotificationsSubscribed, body["type"])

	for i := 0; i < 2; i++ {
		resp, err := f.handler.HandleEvent(ctx, request(RouteDisconnect, "c1", ""))
		assert.Nil(t, err)
		assert.Equal(t, 200, resp.StatusCode)
	}

	assert.Nil(t, f.connection(t, "c1"))
	subs, _ := f.subs.QueryByTopic(ctx, "deploys")
	assert.Len(t, subs, 0)
}

func TestUnknownRoute(t *testing.T) {
	f := newFixture()
	resp, err := f.handler.HandleEvent(context.Background(), request("$custom", "c1", ""))
	assert.Nil(t, err)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestRouter(t *testing.T) {
	t.Run("ping", func(t *testing.T) {
		f := newFixture()
		f.connect(t, "c1", "good")
		f.now = t0.Add(time.Minute)

		status, body := f.send(t, "c1", `{"action":"ping"}`)
		assert.Equal(t, 200, status)
		assert.Equal(t, TypePong, body["type"])
		assert.Equal(t, "c1", body["connectionId"])
		assert.Equal(t, "user-1", body["userId"])
		assert.Equal(t, "2024-03-01T12:01:00.000Z", body["timestamp"])

		assert.Equal(t, "2024-03-01T12:01:00.000Z", f.connection(t, "c1").LastActivity)
	})

	t.Run("missing record is anonymous and not created", func(t *testing.T) {
		f := newFixture()
		status, body := f.send(t, "ghost", `{"action":"ping"}`)
		assert.Equal(t, 200, status)
		assert.Equal(t, connectiondao.AnonymousUserID, body["userId"])
		assert.Nil(t, f.connection(t, "ghost"))
	})

	t.Run("malformed json", func(t *testing.T) {
		f := newFixture()
		f.connect(t, "c1", "")
		status, body := f.send(t, "c1", `{not json`)
		assert.Equal(t, 400, status)
		assert.Equal(t, TypeError, body["type"])
	})

	t.Run("unknown action", func(t *testing.T) {
		f := newFixture()
		f.connect(t, "c1", "")
		status, body := f.send(t, "c1", `{"action":"dance"}`)
		assert.Equal(t, 200, status)
		assert.Equal(t, TypeError, body["type"])
		assert.Equal(t, "Unknown action: dance", body["message"])
		assert.Equal(t, "dance", body["action"])
	})

	t.Run("debug status", func(t *testing.T) {
		f := newFixture()
		f.connect(t, "c1", "good")
		_, body := f.send(t, "c1", `{"action":"debug_status"}`)
		assert.Equal(t, TypeDebugStatus, body["type"])
		assert.Equal(t, "user-1", body["userId"])
		assert.Equal(t, "user@example.com", body["userEmail"])
		env, ok := body["environment"].(map[string]interface{})
		assert.True(t, ok)
		for _, v := range env {
			_, isBool := v.(bool)
			assert.True(t, isBool)
		}
	})

	t.Run("typing requires auth", func(t *testing.T) {
		f := newFixture()
		f.connect(t, "c1", "")
		_, body := f.send(t, "c1", `{"action":"chat_typing","data":{"conversationId":"x","isTyping":true}}`)
		assert.Equal(t, TypeError, body["type"])
		assert.Equal(t, true, body["requiresAuth"])
	})

	t.Run("typing", func(t *testing.T) {
		f := newFixture()
		f.connect(t, "c1", "good")
		_, body := f.send(t, "c1", `{"action":"chat_typing","data":{"conversationId":"x","isTyping":true}}`)
		assert.Equal(t, TypeTypingAcknowledged, body["type"])
		assert.Equal(t, "x", body["conversationId"])
		assert.Equal(t, true, body["isTyping"])
	})

	t.Run("user status", func(t *testing.T) {
		f := newFixture()
		f.connect(t, "c1", "good")
		_, body := f.send(t, "c1", `{"action":"user_status","data":{"status":"busy"}}`)
		assert.Equal(t, map[string]interface{}{"type": TypeStatusUpdated, "status": "busy", "userId": "user-1"}, body)
		assert.Equal(t, "busy", f.connection(t, "c1").UserStatus)
	})

	t.Run("invalid user status", func(t *testing.T) {
		f := newFixture()
		f.connect(t, "c1", "good")
		_, body := f.send(t, "c1", `{"action":"user_status","data":{"status":"sleeping"}}`)
		assert.Equal(t, TypeError, body["type"])
		assert.Equal(t, "", f.connection(t, "c1").UserStatus)
	})

	t.Run("user status requires auth", func(t *testing.T) {
		f := newFixture()
		f.connect(t, "c1", "")
		_, body := f.send(t, "c1", `{"action":"user_status","data":{"status":"busy"}}`)
		assert.Equal(t, true, body["requiresAuth"])
		assert.Equal(t, "", f.connection(t, "c1").UserStatus)
	})

	t.Run("subscribe notifications", func(t *testing.T) {
		f := newFixture()
		f.connect(t, "c1", "")
		_, body := f.send(t, "c1", `{"action":"subscribe_notifications","data":{"notificationTypes":["deploys"," alerts","deploys",""]}}`)
		assert.Equal(t, TypeNotificationsSubscribed, body["type"])
		assert.Equal(t, []interface{}{"deploys", "alerts"}, body["subscriptions"])
		assert.Equal(t, []string{"deploys", "alerts"}, f.connection(t, "c1").NotificationSubscriptions)

		subs, _ := f.subs.QueryByTopic(context.Background(), "alerts")
		assert.Len(t, subs, 1)
		assert.Equal(t, "c1", subs[0].ConnectionID)

		_, body = f.send(t, "c1", `{"action":"subscribe_notifications","data":{"notificationTypes":[]}}`)
		assert.Equal(t, []interface{}{}, body["subscriptions"])
		subs, _ = f.subs.QueryByTopic(context.Background(), "alerts")
		assert.Len(t, subs, 0)
	})
}

func TestChatRelay(t *testing.T) {
	t.Run("anonymous", func(t *testing.T) {
		f := newFixture()
		f.connect(t, "c1", "")
		status, body := f.send(t, "c1", `{"action":"chat_message","data":{"content":"hi"}}`)
		assert.Equal(t, 200, status)
		assert.Equal(t, TypeError, body["type"])
		assert.Equal(t, true, body["requiresAuth"])
		assert.Len(t, f.ai.requests, 0)
		assert.Len(t, f.transport.frames("c1"), 0)
		assert.Equal(t, 0, f.chat.writeCount())
	})

	t.Run("new conversation", func(t *testing.T) {
		f := newFixture()
		f.connect(t, "c1", "good")

		status, body := f.send(t, "c1", `{"action":"chat_message","data":{"content":"hello there"}}`)
		assert.Equal(t, 200, status)
		assert.Equal(t, TypeMessageReceived, body["type"])
		convID, _ := body["conversationId"].(string)
		assert.True(t, strings.HasPrefix(convID, "conv_1709294400000_"))
		assert.True(t, strings.HasPrefix(body["messageId"].(string), "msg_"))

		pushed := f.transport.frames("c1")
		assert.Len(t, pushed, 1)
		assert.Equal(t, TypeAIResponse, pushed[0]["type"])
		assert.Equal(t, "echo: hello there", pushed[0]["content"])
		assert.Equal(t, chatdao.RoleAssistant, pushed[0]["role"])
		assert.Equal(t, convID, pushed[0]["conversationId"])
		assert.Equal(t, "test-model", pushed[0]["model"])
		assert.Equal(t, float64(7), pushed[0]["tokens"])

		msgs := f.chat.Messages("user-1", convID)
		assert.Len(t, msgs, 2)
		assert.Equal(t, chatdao.RoleUser, msgs[0].Role)
		assert.Equal(t, chatdao.RoleAssistant, msgs[1].Role)
		assert.Equal(t, 7, msgs[1].Tokens)

		conv, _ := f.chat.GetConversation(context.Background(), "user-1", convID)
		assert.Equal(t, "hello there", conv.Title)
		assert.Equal(t, 2, conv.MessageCount)
		assert.Equal(t, "echo: hello there", conv.LastMessage)
	})

	t.Run("history is chronological and excludes the new turn", func(t *testing.T) {
		f := newFixture()
		f.connect(t, "c1", "good")
		f.send(t, "c1", `{"action":"chat_message","data":{"content":"first","conversationId":"conv_1"}}`)
		f.now = t0.Add(time.Second)
		f.send(t, "c1", `{"action":"chat_message","data":{"content":"second","conversationId":"conv_1"}}`)

		assert.Len(t, f.ai.requests, 2)
		assert.Equal(t, []junoai.Message{{Role: "user", Content: "first"}}, f.ai.requests[0].Messages)
		assert.Equal(t, []junoai.Message{
			{Role: "user", Content: "first"},
			{Role: "assistant", Content: "echo: first"},
			{Role: "user", Content: "second"},
		}, f.ai.requests[1].Messages)
		assert.Equal(t, DefaultSystemPrompt, f.ai.requests[1].System)

		conv, _ := f.chat.GetConversation(context.Background(), "user-1", "conv_1")
		assert.Equal(t, 4, conv.MessageCount)
		assert.Equal(t, "second", conv.Title)
	})

	t.Run("long title", func(t *testing.T) {
		f := newFixture()
		f.connect(t, "c1", "good")
		content := strings.Repeat("a", 60)
		f.send(t, "c1", `{"action":"chat_message","data":{"content":"`+content+`","conversationId":"conv_1"}}`)
		conv, _ := f.chat.GetConversation(context.Background(), "user-1", "conv_1")
		assert.Equal(t, strings.Repeat("a", 50)+"...", conv.Title)
	})

	t.Run("ai failure yields apology", func(t *testing.T) {
		f := newFixture()
		f.ai.fn = func(junoai.Request) (junoai.Completion, error) {
			return junoai.Completion{}, junoai.ErrMissingCredential
		}
		f.connect(t, "c1", "good")

		status, body := f.send(t, "c1", `{"action":"chat_message","data":{"content":"hi"}}`)
		assert.Equal(t, 200, status)
		assert.Equal(t, TypeMessageReceived, body["type"])

		pushed := f.transport.frames("c1")
		assert.Len(t, pushed, 1)
		assert.Equal(t, Apology, pushed[0]["content"])
		assert.Equal(t, float64(0), pushed[0]["tokens"])
	})

	t.Run("history failure degrades", func(t *testing.T) {
		f := newFixture()
		f.chat.historyErr = errors.New("boom")
		f.connect(t, "c1", "good")

		_, body := f.send(t, "c1", `{"action":"chat_message","data":{"content":"hi","conversationId":"conv_1"}}`)
		assert.Equal(t, TypeMessageReceived, body["type"])
		assert.Equal(t, []junoai.Message{{Role: "user", Content: "hi"}}, f.ai.requests[0].Messages)
	})

	t.Run("metadata failure is not fatal", func(t *testing.T) {
		f := newFixture()
		f.chat.touchErr = errors.New("boom")
		f.connect(t, "c1", "good")

		_, body := f.send(t, "c1", `{"action":"chat_message","data":{"content":"hi","conversationId":"conv_1"}}`)
		assert.Equal(t, TypeMessageReceived, body["type"])
		assert.Len(t, f.chat.Messages("user-1", "conv_1"), 2)
	})

	t.Run("persistence failure aborts", func(t *testing.T) {
		f := newFixture()
		f.chat.saveErr = errors.New("boom")
		f.connect(t, "c1", "good")

		status, body := f.send(t, "c1", `{"action":"chat_message","data":{"content":"hi"}}`)
		assert.Equal(t, 500, status)
		assert.Equal(t, TypeError, body["type"])
		assert.Equal(t, ActionChatMessage, body["action"])
		assert.Len(t, f.ai.requests, 0)

		pushed := f.transport.frames("c1")
		assert.Len(t, pushed, 1)
		assert.Equal(t, TypeError, pushed[0]["type"])
	})

	t.Run("panicking ai falls back to the apology", func(t *testing.T) {
		f := newFixture()
		f.ai.fn = func(junoai.Request) (junoai.Completion, error) { panic("kaboom") }
		f.connect(t, "c1", "good")

		status, body := f.send(t, "c1", `{"action":"chat_message","data":{"content":"hi"}}`)
		assert.Equal(t, 200, status)
		assert.Equal(t, TypeMessageReceived, body["type"])

		convID := body["conversationId"].(string)
		msgs := f.chat.Messages("user-1", convID)
		assert.Len(t, msgs, 2)
		assert.Equal(t, Apology, msgs[1].Content)

		pushed := f.transport.frames("c1")
		assert.Len(t, pushed, 1)
		assert.Equal(t, TypeAIResponse, pushed[0]["type"])
		assert.Equal(t, Apology, pushed[0]["content"])
	})

	t.Run("panic is caught at the router", func(t *testing.T) {
		f := newFixture()
		f.chat.historyPanic = true
		f.connect(t, "c1", "good")

		status, body := f.send(t, "c1", `{"action":"chat_message","data":{"content":"hi"}}`)
		assert.Equal(t, 500, status)
		assert.Equal(t, TypeError, body["type"])
		assert.Equal(t, 0, f.chat.writeCount())
	})

	t.Run("empty content", func(t *testing.T) {
		f := newFixture()
		f.connect(t, "c1", "good")
		_, body := f.send(t, "c1", `{"action":"chat_message","data":{"content":"  "}}`)
		assert.Equal(t, TypeError, body["type"])
		assert.Len(t, f.ai.requests, 0)
	})
}

func TestSender(t *testing.T) {
	ctx := context.Background()

	t.Run("gone cleans up", func(t *testing.T) {
		f := newFixture()
		f.connect(t, "c1", "")
		f.send(t, "c1", `{"action":"subscribe_notifications","data":{"notificationTypes":["a"]}}`)
		f.transport.gone["c1"] = true

		err := f.handler.Sender.Send(ctx, "e", "c1", PongFrame{Type: TypePong})
		assert.Nil(t, err)
		assert.Nil(t, f.connection(t, "c1"))
		subs, _ := f.subs.QueryByTopic(ctx, "a")
		assert.Len(t, subs, 0)
	})

	t.Run("other errors propagate", func(t *testing.T) {
		f := newFixture()
		f.connect(t, "c1", "")
		boom := errors.New("boom")
		f.transport.err = boom

		err := f.handler.Sender.Send(ctx, "e", "c1", PongFrame{Type: TypePong})
		assert.True(t, errors.Is(err, boom))
		assert.NotNil(t, f.connection(t, "c1"))
	})
}
