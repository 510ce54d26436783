package wsclient

import (
	junows "github.com/SwiftAkira/JunoKit-sub000/juno-ws"
)

type outbound struct {
	Action string      `json:"action"`
	Data   interface{} `json:"data,omitempty"`
}

func (c *Client) Ping() error {
	return c.Send(outbound{Action: junows.ActionPing})
}

func (c *Client) DebugStatus() error {
	return c.Send(outbound{Action: junows.ActionDebugStatus})
}

// SendChatMessage relays content to the AI. An empty conversationID starts
// a new conversation.
func (c *Client) SendChatMessage(content, conversationID string) error {
	return c.Send(outbound{
		Action: junows.ActionChatMessage,
		Data: map[string]interface{}{
			"content":        content,
			"conversationId": conversationID,
		},
	})
}

func (c *Client) SendTypingIndicator(conversationID string, isTyping bool) error {
	return c.Send(outbound{
		Action: junows.ActionChatTyping,
		Data: map[string]interface{}{
			"conversationId": conversationID,
			"isTyping":       isTyping,
		},
	})
}

func (c *Client) UpdateUserStatus(status string) error {
	return c.Send(outbound{
		Action: junows.ActionUserStatus,
		Data:   map[string]interface{}{"status": status},
	})
}

func (c *Client) SubscribeToNotifications(topics []string) error {
	if topics == nil {
		topics = []string{}
	}
	return c.Send(outbound{
		Action: junows.ActionSubscribeNotifications,
		Data:   map[string]interface{}{"notificationTypes": topics},
	})
}
