package chatdao

import "unicode/utf8"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// TitleLength is the number of characters of a message used as the
// conversation title.
const TitleLength = 50

// Message is one persisted chat turn. ConversationKey is
// "{userId}#{conversationId}"; SortKey is "{timestamp}#{messageId}" so that
// a query over a conversation returns turns in chronological order.
type Message struct {
	ConversationKey string `dynamodbav:"pk" ddb:"hash"`
	SortKey         string `dynamodbav:"sk" ddb:"range"`
	MessageID       string `dynamodbav:"messageId"`
	ConversationID  string `dynamodbav:"conversationId"`
	UserID          string `dynamodbav:"userId"`
	Role            string `dynamodbav:"role"`
	Content         string `dynamodbav:"content"`
	Timestamp       string `dynamodbav:"timestamp"`
	Model           string `dynamodbav:"model,omitempty"`
	Tokens          int    `dynamodbav:"tokens,omitempty"`
}

// NewMessage fills in the key attributes of a message.
func NewMessage(userID, conversationID, messageID, role, content, timestamp string) Message {
	return Message{
		ConversationKey: ConversationKey(userID, conversationID),
		SortKey:         timestamp + "#" + messageID,
		MessageID:       messageID,
		ConversationID:  conversationID,
		UserID:          userID,
		Role:            role,
		Content:         content,
		Timestamp:       timestamp,
	}
}

// Conversation holds the metadata row of a conversation.
type Conversation struct {
	UserID         string `dynamodbav:"userId" ddb:"hash"`
	ConversationID string `dynamodbav:"conversationId" ddb:"range"`
	Title          string `dynamodbav:"title"`
	LastMessage    string `dynamodbav:"lastMessage"`
	MessageCount   int    `dynamodbav:"messageCount"`
	CreatedAt      string `dynamodbav:"createdAt"`
	UpdatedAt      string `dynamodbav:"updatedAt"`
}

// ConversationUpdate is applied after every completed chat turn.
type ConversationUpdate struct {
	UserID         string
	ConversationID string
	Title          string
	LastMessage    string
	UpdatedAt      string
	AddedMessages  int
}

func ConversationKey(userID, conversationID string) string {
	return userID + "#" + conversationID
}

// Title truncates content to TitleLength characters, marking truncation with
// an ellipsis.
func Title(content string) string {
	return Truncate(content, TitleLength)
}

func Truncate(content string, n int) string {
	if utf8.RuneCountInString(content) <= n {
		return content
	}
	return string([]rune(content)[:n]) + "..."
}
