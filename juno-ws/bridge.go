package junows

import (
	"context"
	"fmt"
	"strings"
	"time"

	junoai "github.com/SwiftAkira/JunoKit-sub000/juno-ai"
	"github.com/SwiftAkira/JunoKit-sub000/juno-chat/chatdao"
	junocli "github.com/SwiftAkira/JunoKit-sub000/juno-cli"
	"github.com/rs/zerolog"
)

// Apology is the assistant content used whenever the AI collaborator fails.
const Apology = "I apologize, but I'm having trouble processing your request right now. Please try again."

// DefaultSystemPrompt frames the assistant for relayed chat.
const DefaultSystemPrompt = "You are Juno, a helpful AI assistant for software teams. " +
	"Answer clearly and concisely, and say so when you are unsure."

// relayChat persists a user turn, obtains the assistant turn, persists it,
// pushes it to the connection and acknowledges the user turn.
func (h *Handler) relayChat(ctx context.Context, sess session, data chatMessageData) (interface{}, error) {
	logger := zerolog.Ctx(ctx)

	content := data.Content
	if content == "" {
		content = data.Message
	}
	if strings.TrimSpace(content) == "" {
		return NewErrorFrame(ActionChatMessage, "Message content is required"), nil
	}

	userID := sess.UserID()
	now := h.now()
	convID := data.ConversationID
	if convID == "" {
		convID = NewID("conv", now)
	}

	history := h.history(ctx, userID, convID)

	userMsg := chatdao.NewMessage(userID, convID, NewID("msg", now), chatdao.RoleUser, content, FormatTime(now))
	if err := h.Chat.SaveMessage(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("saving user message: %w", err)
	}

	completion := h.complete(ctx, append(history, junoai.Message{Role: junoai.RoleUser, Content: content}))

	// the assistant turn must sort after the user turn
	userAt := now.Truncate(time.Millisecond)
	replyAt := h.now().Truncate(time.Millisecond)
	if !replyAt.After(userAt) {
		replyAt = userAt.Add(time.Millisecond)
	}
	assistantMsg := chatdao.NewMessage(userID, convID, NewID("msg", replyAt), chatdao.RoleAssistant, completion.Content, FormatTime(replyAt))
	assistantMsg.Model = completion.Model
	assistantMsg.Tokens = completion.Tokens
	if err := h.Chat.SaveMessage(ctx, assistantMsg); err != nil {
		return nil, fmt.Errorf("saving assistant message: %w", err)
	}

	update := chatdao.ConversationUpdate{
		UserID:         userID,
		ConversationID: convID,
		Title:          chatdao.Title(content),
		LastMessage:    completion.Content,
		UpdatedAt:      FormatTime(replyAt),
		AddedMessages:  2,
	}
	if err := h.Chat.TouchConversation(ctx, update); err != nil {
		logger.Warn().Err(err).Str("conversation_id", convID).Msg("failed to update conversation metadata")
	}

	if h.Sender != nil {
		frame := AIResponseFrame{
			Type:           TypeAIResponse,
			MessageID:      assistantMsg.MessageID,
			ConversationID: convID,
			Role:           chatdao.RoleAssistant,
			Content:        completion.Content,
			Timestamp:      assistantMsg.Timestamp,
			Model:          completion.Model,
			Tokens:         completion.Tokens,
		}
		if err := h.Sender.Send(ctx, sess.Endpoint, sess.ConnectionID, frame); err != nil {
			logger.Error().Err(err).Msg("failed to push ai response")
		}
	}

	return MessageReceivedFrame{
		Type:           TypeMessageReceived,
		MessageID:      userMsg.MessageID,
		ConversationID: convID,
		Timestamp:      userMsg.Timestamp,
	}, nil
}

// history returns up to HistoryLimit prior turns in chronological order.
// A failed read degrades to no history.
func (h *Handler) history(ctx context.Context, userID, convID string) []junoai.Message {
	limit := h.HistoryLimit
	if limit == 0 {
		limit = DefaultHistoryLimit
	}

	msgs, err := h.Chat.RecentMessages(ctx, userID, convID, limit)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("conversation_id", convID).Msg("failed to load history, continuing without it")
		return nil
	}

	history := make([]junoai.Message, 0, len(msgs))
	for _, m := range msgs {
		history = append(history, junoai.Message{Role: m.Role, Content: m.Content})
	}
	return history
}

// complete never fails: any collaborator error yields the apology.
func (h *Handler) complete(ctx context.Context, msgs []junoai.Message) junoai.Completion {
	if h.AI == nil {
		zerolog.Ctx(ctx).Warn().Msg("no ai collaborator configured")
		return junoai.Completion{Content: Apology}
	}

	system := h.SystemPrompt
	if system == "" {
		system = DefaultSystemPrompt
	}

	start := time.Now()
	completion, err := h.invoke(ctx, junoai.Request{
		System:    system,
		Messages:  msgs,
		MaxTokens: h.MaxTokens,
	})
	h.Metrics.Timing(ctx, junocli.CompletionTimeMetric, start)
	if err != nil || completion.Content == "" {
		zerolog.Ctx(ctx).Error().Err(err).Msg("ai completion failed")
		return junoai.Completion{Content: Apology, Model: completion.Model}
	}
	return completion
}

// invoke turns a panicking collaborator into an error.
func (h *Handler) invoke(ctx context.Context, req junoai.Request) (completion junoai.Completion, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("ai collaborator panicked: %v", r)
		}
	}()
	return h.AI.Complete(ctx, req)
}
