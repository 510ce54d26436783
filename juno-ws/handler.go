// Package junows is the real-time relay behind the API Gateway WebSocket API:
// it tracks sessions, routes client frames, bridges chat messages to the AI
// collaborator and delivers out-of-band frames to connections.
package junows

import (
	"context"
	"fmt"
	"time"

	junoai "github.com/SwiftAkira/JunoKit-sub000/juno-ai"
	junoauth "github.com/SwiftAkira/JunoKit-sub000/juno-auth"
	junocli "github.com/SwiftAkira/JunoKit-sub000/juno-cli"
	"github.com/SwiftAkira/JunoKit-sub000/juno-ws/connectiondao"
	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"
)

const (
	RouteConnect    = "$connect"
	RouteDisconnect = "$disconnect"
	RouteDefault    = "$default"
)

const (
	DefaultConnTTL      = 24 * time.Hour
	DefaultHistoryLimit = 10
)

// Handler handles API Gateway WebSocket events.
type Handler struct {
	Connections ConnectionStore
	Subs        SubscriptionStore
	Chat        ChatStore
	AI          junoai.Completer
	Verifier    junoauth.Verifier
	Sender      *Sender
	Metrics     junocli.Metrics
	Logger      zerolog.Logger

	ConnTTL      time.Duration // lifetime of connection records (default 24h)
	HistoryLimit int           // prior turns sent to the AI (default 10)
	SystemPrompt string
	MaxTokens    int
	CallbackURL  string // overrides the management endpoint derived from requests

	Now func() time.Time
}

// HandleEvent routes an API Gateway WebSocket event on its route key.
func (h *Handler) HandleEvent(ctx context.Context, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	logger := h.Logger.With().
		Str("connection_id", req.RequestContext.ConnectionID).
		Str("route", req.RequestContext.RouteKey).
		Logger()
	ctx = logger.WithContext(ctx)

	switch req.RequestContext.RouteKey {
	case RouteConnect:
		return h.handleConnect(ctx, logger, req)
	case RouteDisconnect:
		return h.handleDisconnect(ctx, logger, req)
	case RouteDefault:
		return h.handleMessage(ctx, logger, req)
	default:
		logger.Warn().Msg("unknown route")
		return events.APIGatewayProxyResponse{StatusCode: 400}, nil
	}
}

func (h *Handler) handleConnect(ctx context.Context, logger zerolog.Logger, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	identity := junoauth.Authenticate(ctx, h.Verifier, connectToken(req))

	now := h.now()
	ttl := h.ConnTTL
	if ttl == 0 {
		ttl = DefaultConnTTL
	}

	conn := connectiondao.Connection{
		ConnectionID: req.RequestContext.ConnectionID,
		UserID:       identity.UserID,
		UserEmail:    identity.UserEmail,
		Status:       connectiondao.StatusConnected,
		Endpoint:     h.endpoint(req),
		ConnectedAt:  FormatTime(now),
		LastActivity: FormatTime(now),
		TTL:          now.Add(ttl).Unix(),
	}

	if err := h.Connections.Put(ctx, conn); err != nil {
		logger.Error().Err(err).Msg("failed to store connection")
		return events.APIGatewayProxyResponse{StatusCode: 500}, nil
	}

	logger.Info().Str("user_id", conn.UserID).Msg("connection established")
	return events.APIGatewayProxyResponse{StatusCode: 200}, nil
}

func (h *Handler) handleDisconnect(ctx context.Context, logger zerolog.Logger, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	connID := req.RequestContext.ConnectionID

	if h.Subs != nil {
		if err := h.Subs.DeleteByConnection(ctx, connID); err != nil {
			logger.Error().Err(err).Msg("failed to delete subscriptions")
		}
	}

	if err := h.Connections.Delete(ctx, connID); err != nil {
		logger.Error().Err(err).Msg("failed to delete connection")
	}

	logger.Info().Msg("connection closed")
	return events.APIGatewayProxyResponse{StatusCode: 200}, nil
}

// connectToken reads the bearer token from the token query parameter,
// falling back to the Authorization header.
func connectToken(req events.APIGatewayWebsocketProxyRequest) string {
	if token := req.QueryStringParameters["token"]; token != "" {
		return token
	}
	for _, key := range []string{"Authorization", "authorization"} {
		if v := req.Headers[key]; v != "" {
			return v
		}
	}
	return ""
}

func (h *Handler) endpoint(req events.APIGatewayWebsocketProxyRequest) string {
	if h.CallbackURL != "" {
		return h.CallbackURL
	}
	return fmt.Sprintf("https://%s/%s", req.RequestContext.DomainName, req.RequestContext.Stage)
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}
