package junows

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	junocli "github.com/SwiftAkira/JunoKit-sub000/juno-cli"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/service/apigatewaymanagementapi"
	"github.com/aws/aws-sdk-go/service/apigatewaymanagementapi/apigatewaymanagementapiiface"
	"github.com/rs/zerolog"
)

// ErrGone is returned by a Transport when the target connection no longer
// exists.
var ErrGone = errors.New("connection gone")

// Transport delivers raw frames to live connections.
type Transport interface {
	PostToConnection(ctx context.Context, endpoint, connectionID string, data []byte) error
	DeleteConnection(ctx context.Context, endpoint, connectionID string) error
}

// IsGone reports whether err means the connection has been closed, either
// ErrGone or an API Gateway GoneException.
func IsGone(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrGone) {
		return true
	}
	var aerr awserr.Error
	if errors.As(err, &aerr) && aerr.Code() == apigatewaymanagementapi.ErrCodeGoneException {
		return true
	}
	var rerr awserr.RequestFailure
	if errors.As(err, &rerr) && rerr.StatusCode() == http.StatusGone {
		return true
	}
	return strings.Contains(err.Error(), "GoneException")
}

// Sender pushes frames to connections and cleans up after connections that
// have gone away.
type Sender struct {
	Transport   Transport
	Connections ConnectionStore
	Subs        SubscriptionStore
	Metrics     junocli.Metrics
	Logger      zerolog.Logger
}

// Send marshals frame and posts it to the connection. A gone connection is
// removed along with its subscriptions and is not an error.
func (s *Sender) Send(ctx context.Context, endpoint, connectionID string, frame interface{}) error {
	err := s.Transport.PostToConnection(ctx, endpoint, connectionID, Marshal(frame))
	if err == nil {
		return nil
	}
	if IsGone(err) {
		s.Logger.Info().Str("connection_id", connectionID).Msg("connection gone, cleaning up")
		s.Metrics.Event(ctx, junocli.ConnectionGoneMetric)
		s.Cleanup(ctx, connectionID)
		return nil
	}
	return fmt.Errorf("posting to connection %v: %w", connectionID, err)
}

// Cleanup deletes the connection record and its subscriptions. Failures are
// logged.
func (s *Sender) Cleanup(ctx context.Context, connectionID string) {
	if s.Subs != nil {
		if err := s.Subs.DeleteByConnection(ctx, connectionID); err != nil {
			s.Logger.Error().Err(err).Str("connection_id", connectionID).Msg("failed to delete subscriptions for gone connection")
		}
	}
	if err := s.Connections.Delete(ctx, connectionID); err != nil {
		s.Logger.Error().Err(err).Str("connection_id", connectionID).Msg("failed to delete gone connection")
	}
}

// ManagementTransport posts through the API Gateway Management API, caching
// one client per callback endpoint.
type ManagementTransport struct {
	Provider client.ConfigProvider

	// NewClient builds a client for an endpoint. Defaults to the real
	// management API.
	NewClient func(p client.ConfigProvider, endpoint string) apigatewaymanagementapiiface.ApiGatewayManagementApiAPI

	mu      sync.RWMutex
	clients map[string]apigatewaymanagementapiiface.ApiGatewayManagementApiAPI
}

func NewManagementTransport(p client.ConfigProvider) *ManagementTransport {
	return &ManagementTransport{Provider: p}
}

func (t *ManagementTransport) PostToConnection(ctx context.Context, endpoint, connectionID string, data []byte) error {
	_, err := t.client(endpoint).PostToConnectionWithContext(ctx, &apigatewaymanagementapi.PostToConnectionInput{
		ConnectionId: aws.String(connectionID),
		Data:         data,
	})
	return err
}

func (t *ManagementTransport) DeleteConnection(ctx context.Context, endpoint, connectionID string) error {
	_, err := t.client(endpoint).DeleteConnectionWithContext(ctx, &apigatewaymanagementapi.DeleteConnectionInput{
		ConnectionId: aws.String(connectionID),
	})
	return err
}

func (t *ManagementTransport) client(endpoint string) apigatewaymanagementapiiface.ApiGatewayManagementApiAPI {
	t.mu.RLock()
	if c, ok := t.clients[endpoint]; ok {
		t.mu.RUnlock()
		return c
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()

	if c, ok := t.clients[endpoint]; ok {
		return c
	}
	if t.clients == nil {
		t.clients = map[string]apigatewaymanagementapiiface.ApiGatewayManagementApiAPI{}
	}

	newClient := t.NewClient
	if newClient == nil {
		newClient = func(p client.ConfigProvider, endpoint string) apigatewaymanagementapiiface.ApiGatewayManagementApiAPI {
			return apigatewaymanagementapi.New(p, aws.NewConfig().WithEndpoint(endpoint))
		}
	}
	c := newClient(t.Provider, endpoint)
	t.clients[endpoint] = c
	return c
}
