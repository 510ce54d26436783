package junows

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	junocli "github.com/SwiftAkira/JunoKit-sub000/juno-cli"
	"github.com/SwiftAkira/JunoKit-sub000/juno-ws/connectiondao"
	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"
)

// DebugEnvVars are the variables whose presence debug_status reports.
var DebugEnvVars = []string{
	"AWS_REGION",
	"AWS_LAMBDA_FUNCTION_NAME",
	"ENV",
	"COGNITO_USER_POOL_ID",
	"COGNITO_CLIENT_ID",
	"AI_PROVIDER",
	"AI_SECRET_NAME",
}

// session is the connection an inbound frame arrived on. found is false when
// the connection record is missing, in which case the session is anonymous.
type session struct {
	ConnectionID string
	Endpoint     string
	Conn         connectiondao.Connection
	found        bool
}

func (s session) UserID() string {
	if !s.found || s.Conn.Anonymous() {
		return connectiondao.AnonymousUserID
	}
	return s.Conn.UserID
}

func (s session) Authenticated() bool {
	return s.UserID() != connectiondao.AnonymousUserID
}

func (h *Handler) handleMessage(ctx context.Context, logger zerolog.Logger, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	frame, err := ParseFrame(req.Body)
	if err != nil {
		logger.Warn().Err(err).Msg("invalid frame")
		return respond(400, NewErrorFrame("", "Invalid message format")), nil
	}

	logger = logger.With().Str("action", frame.Action).Logger()
	ctx = logger.WithContext(ctx)

	sess := session{
		ConnectionID: req.RequestContext.ConnectionID,
		Endpoint:     h.endpoint(req),
	}

	h.Metrics.Event(ctx, junocli.RelayFrameMetric, map[junocli.DimensionName]string{
		junocli.ActionDimension: frame.Action,
	})

	reply, err := h.route(ctx, &sess, frame)
	if err != nil {
		logger.Error().Err(err).Msg("failed to handle frame")
		h.Metrics.Event(ctx, junocli.RelayErrorMetric, map[junocli.DimensionName]string{
			junocli.ActionDimension: frame.Action,
		})
		errFrame := NewErrorFrame(frame.Action, fmt.Sprintf("Failed to process %v", frame.Action))
		if h.Sender != nil {
			if sendErr := h.Sender.Send(ctx, sess.Endpoint, sess.ConnectionID, errFrame); sendErr != nil {
				logger.Error().Err(sendErr).Msg("failed to send error frame")
			}
		}
		return respond(500, errFrame), nil
	}

	return respond(200, reply), nil
}

// route loads the session, re-stamps its activity and dispatches the frame.
// Panics are converted to errors.
func (h *Handler) route(ctx context.Context, sess *session, frame *Frame) (reply interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic handling %v: %v", frame.Action, r)
		}
	}()

	if err := h.touch(ctx, sess); err != nil {
		return nil, err
	}
	return h.dispatch(ctx, *sess, frame)
}

func (h *Handler) touch(ctx context.Context, sess *session) error {
	conn, err := h.Connections.Get(ctx, sess.ConnectionID)
	if err != nil {
		return fmt.Errorf("loading connection: %w", err)
	}
	if conn == nil {
		zerolog.Ctx(ctx).Debug().Msg("connection record missing, continuing as anonymous")
		return nil
	}

	now := FormatTime(h.now())
	if err := h.Connections.Update(ctx, sess.ConnectionID, connectiondao.Patch{LastActivity: &now}); err != nil {
		if errors.Is(err, connectiondao.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("updating last activity: %w", err)
	}
	conn.LastActivity = now
	sess.Conn, sess.found = *conn, true
	return nil
}

func (h *Handler) dispatch(ctx context.Context, sess session, frame *Frame) (interface{}, error) {
	switch frame.Action {
	case ActionPing:
		return PongFrame{
			Type:         TypePong,
			ConnectionID: sess.ConnectionID,
			UserID:       sess.UserID(),
			Timestamp:    FormatTime(h.now()),
		}, nil

	case ActionDebugStatus:
		return h.debugStatus(sess), nil

	case ActionChatTyping:
		if !sess.Authenticated() {
			return AuthRequiredFrame(frame.Action), nil
		}
		var data chatTypingData
		if err := frame.DecodeData(&data); err != nil {
			return NewErrorFrame(frame.Action, "Invalid typing indicator"), nil
		}
		return TypingAcknowledgedFrame{
			Type:           TypeTypingAcknowledged,
			ConversationID: data.ConversationID,
			IsTyping:       data.IsTyping,
			Timestamp:      FormatTime(h.now()),
		}, nil

	case ActionChatMessage:
		if !sess.Authenticated() {
			return AuthRequiredFrame(frame.Action), nil
		}
		var data chatMessageData
		if err := frame.DecodeData(&data); err != nil {
			return NewErrorFrame(frame.Action, "Invalid chat message"), nil
		}
		return h.relayChat(ctx, sess, data)

	case ActionUserStatus:
		if !sess.Authenticated() {
			return AuthRequiredFrame(frame.Action), nil
		}
		return h.updateUserStatus(ctx, sess, frame)

	case ActionSubscribeNotifications:
		return h.subscribeNotifications(ctx, sess, frame)

	default:
		return NewErrorFrame(frame.Action, fmt.Sprintf("Unknown action: %v", frame.Action)), nil
	}
}

func (h *Handler) debugStatus(sess session) DebugStatusFrame {
	env := make(map[string]bool, len(DebugEnvVars))
	for _, key := range DebugEnvVars {
		_, ok := os.LookupEnv(key)
		env[key] = ok
	}
	return DebugStatusFrame{
		Type:          TypeDebugStatus,
		ConnectionID:  sess.ConnectionID,
		UserID:        sess.UserID(),
		UserEmail:     sess.Conn.UserEmail,
		Status:        sess.Conn.Status,
		ConnectedAt:   sess.Conn.ConnectedAt,
		LastActivity:  sess.Conn.LastActivity,
		UserStatus:    sess.Conn.UserStatus,
		Subscriptions: sess.Conn.NotificationSubscriptions,
		Environment:   env,
		Timestamp:     FormatTime(h.now()),
	}
}

func (h *Handler) updateUserStatus(ctx context.Context, sess session, frame *Frame) (interface{}, error) {
	var data userStatusData
	if err := frame.DecodeData(&data); err != nil || !connectiondao.ValidUserStatus(data.Status) {
		return NewErrorFrame(frame.Action, fmt.Sprintf("Invalid status: %v", data.Status)), nil
	}

	if err := h.Connections.Update(ctx, sess.ConnectionID, connectiondao.Patch{UserStatus: &data.Status}); err != nil {
		return nil, fmt.Errorf("updating user status: %w", err)
	}

	return StatusUpdatedFrame{
		Type:   TypeStatusUpdated,
		Status: data.Status,
		UserID: sess.UserID(),
	}, nil
}

func (h *Handler) subscribeNotifications(ctx context.Context, sess session, frame *Frame) (interface{}, error) {
	var data subscribeNotificationsData
	if err := frame.DecodeData(&data); err != nil {
		return NewErrorFrame(frame.Action, "Invalid notification types"), nil
	}
	topics := Topics(data.NotificationTypes)

	if sess.found {
		if err := h.Connections.Update(ctx, sess.ConnectionID, connectiondao.Patch{NotificationSubscriptions: topics}); err != nil {
			return nil, fmt.Errorf("updating notification subscriptions: %w", err)
		}
		if h.Subs != nil {
			if err := h.Subs.Replace(ctx, sess.ConnectionID, sess.UserID(), sess.Endpoint, topics, sess.Conn.TTL); err != nil {
				return nil, fmt.Errorf("replacing subscriptions: %w", err)
			}
		}
	}

	return NotificationsSubscribedFrame{
		Type:          TypeNotificationsSubscribed,
		Subscriptions: topics,
	}, nil
}

// Topics trims, drops empty and deduplicates topic names, keeping order. The
// result is never nil.
func Topics(in []string) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, t := range in {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func respond(status int, frame interface{}) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Body:       string(Marshal(frame)),
	}
}
