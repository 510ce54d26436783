package junows

import (
	"encoding/json"
	"fmt"
	"time"
)

// Inbound actions.
const (
	ActionPing                   = "ping"
	ActionDebugStatus            = "debug_status"
	ActionChatTyping             = "chat_typing"
	ActionChatMessage            = "chat_message"
	ActionUserStatus             = "user_status"
	ActionSubscribeNotifications = "subscribe_notifications"
)

// Outbound frame types.
const (
	TypeConnected               = "connected"
	TypeDisconnected            = "disconnected"
	TypeError                   = "error"
	TypePong                    = "pong"
	TypeDebugStatus             = "debug_status"
	TypeTypingAcknowledged      = "typing_acknowledged"
	TypeMessageReceived         = "message_received"
	TypeAIResponse              = "ai_response"
	TypeStatusUpdated           = "status_updated"
	TypeNotificationsSubscribed = "notifications_subscribed"
	TypeNotification            = "notification"
	TypeReconnectFailed         = "reconnect_failed"
)

// TimeLayout is the ISO-8601 form used for every timestamp on the wire and
// in storage.
const TimeLayout = "2006-01-02T15:04:05.000Z"

func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// Frame is an inbound relay frame.
type Frame struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// ParseFrame parses an inbound relay frame from a JSON string.
func ParseFrame(body string) (*Frame, error) {
	var frame Frame
	if err := json.Unmarshal([]byte(body), &frame); err != nil {
		return nil, fmt.Errorf("invalid relay frame: %w", err)
	}
	if frame.Action == "" {
		return nil, fmt.Errorf("missing action")
	}
	return &frame, nil
}

// DecodeData unmarshals the frame's data into v. Absent data leaves v as is.
func (f *Frame) DecodeData(v interface{}) error {
	if len(f.Data) == 0 || string(f.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(f.Data, v); err != nil {
		return fmt.Errorf("invalid data for action %v: %w", f.Action, err)
	}
	return nil
}

// Marshal encodes an outbound frame. Frames are plain structs, so a failure
// here is a programming error and yields a generic error frame instead.
func Marshal(frame interface{}) []byte {
	b, err := json.Marshal(frame)
	if err != nil {
		b, _ = json.Marshal(ErrorFrame{Type: TypeError, Message: "Internal server error"})
	}
	return b
}

type ErrorFrame struct {
	Type         string `json:"type"`
	Message      string `json:"message"`
	Action       string `json:"action,omitempty"`
	RequiresAuth bool   `json:"requiresAuth,omitempty"`
}

func NewErrorFrame(action, message string) ErrorFrame {
	return ErrorFrame{Type: TypeError, Message: message, Action: action}
}

func AuthRequiredFrame(action string) ErrorFrame {
	return ErrorFrame{
		Type:         TypeError,
		Message:      "Authentication required",
		Action:       action,
		RequiresAuth: true,
	}
}

type PongFrame struct {
	Type         string `json:"type"`
	ConnectionID string `json:"connectionId"`
	UserID       string `json:"userId"`
	Timestamp    string `json:"timestamp"`
}

type DebugStatusFrame struct {
	Type          string          `json:"type"`
	ConnectionID  string          `json:"connectionId"`
	UserID        string          `json:"userId"`
	UserEmail     string          `json:"userEmail,omitempty"`
	Status        string          `json:"status,omitempty"`
	ConnectedAt   string          `json:"connectedAt,omitempty"`
	LastActivity  string          `json:"lastActivity,omitempty"`
	UserStatus    string          `json:"userStatus,omitempty"`
	Subscriptions []string        `json:"subscriptions,omitempty"`
	Environment   map[string]bool `json:"environment"`
	Timestamp     string          `json:"timestamp"`
}

type TypingAcknowledgedFrame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId,omitempty"`
	IsTyping       bool   `json:"isTyping"`
	Timestamp      string `json:"timestamp"`
}

type MessageReceivedFrame struct {
	Type           string `json:"type"`
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
	Timestamp      string `json:"timestamp"`
}

type AIResponseFrame struct {
	Type           string `json:"type"`
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
	Role           string `json:"role"`
	Content        string `json:"content"`
	Timestamp      string `json:"timestamp"`
	Model          string `json:"model,omitempty"`
	Tokens         int    `json:"tokens"`
}

type StatusUpdatedFrame struct {
	Type   string `json:"type"`
	Status string `json:"status"`
	UserID string `json:"userId"`
}

type NotificationsSubscribedFrame struct {
	Type          string   `json:"type"`
	Subscriptions []string `json:"subscriptions"`
}

type NotificationFrame struct {
	Type      string          `json:"type"`
	Topic     string          `json:"topic"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp string          `json:"timestamp"`
}

// Inbound data payloads.

type chatMessageData struct {
	Content        string `json:"content"`
	Message        string `json:"message"`
	ConversationID string `json:"conversationId"`
}

type chatTypingData struct {
	ConversationID string `json:"conversationId"`
	IsTyping       bool   `json:"isTyping"`
}

type userStatusData struct {
	Status string `json:"status"`
}

type subscribeNotificationsData struct {
	NotificationTypes []string `json:"notificationTypes"`
}
