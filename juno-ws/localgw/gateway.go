// Package localgw stands in for API Gateway when the relay runs in console
// mode: it terminates WebSocket connections, turns their lifecycle into
// route events for the relay handler and delivers frames back to them.
package localgw

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	junows "github.com/SwiftAkira/JunoKit-sub000/juno-ws"
	"github.com/aws/aws-lambda-go/events"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const DefaultStage = "local"

// EventHandler is satisfied by *junows.Handler.
type EventHandler interface {
	HandleEvent(ctx context.Context, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error)
}

type peer struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (p *peer) write(messageType int, data []byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	p.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return p.conn.WriteMessage(messageType, data)
}

// Gateway is both the WebSocket front door and the relay's delivery
// transport for the connections it holds.
type Gateway struct {
	Handler EventHandler
	Logger  zerolog.Logger
	Stage   string

	upgrader websocket.Upgrader

	mu    sync.RWMutex
	peers map[string]*peer
}

func New(logger zerolog.Logger) *Gateway {
	return &Gateway{
		Logger: logger,
		Stage:  DefaultStage,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		peers: map[string]*peer{},
	}
}

// Routes mounts the WebSocket endpoint at /ws.
func (g *Gateway) Routes(r chi.Router) chi.Router {
	r.Get("/ws", g.ServeWS)
	return r
}

func (g *Gateway) ServeWS(w http.ResponseWriter, req *http.Request) {
	ctx := context.WithoutCancel(req.Context())
	connID := uuid.NewString()
	logger := g.Logger.With().Str("connection_id", connID).Logger()

	resp, err := g.Handler.HandleEvent(ctx, g.event(req, connID, junows.RouteConnect, ""))
	if err != nil || resp.StatusCode != http.StatusOK {
		status := resp.StatusCode
		if err != nil || status == 0 {
			status = http.StatusInternalServerError
		}
		logger.Warn().Err(err).Int("status", status).Msg("connect rejected")
		http.Error(w, http.StatusText(status), status)
		return
	}

	conn, err := g.upgrader.Upgrade(w, req, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("upgrade failed")
		g.Handler.HandleEvent(ctx, g.event(req, connID, junows.RouteDisconnect, ""))
		return
	}

	p := &peer{conn: conn}
	g.mu.Lock()
	g.peers[connID] = p
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		delete(g.peers, connID)
		g.mu.Unlock()
		conn.Close()
		g.Handler.HandleEvent(ctx, g.event(req, connID, junows.RouteDisconnect, ""))
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug().Err(err).Msg("read failed")
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		resp, err := g.Handler.HandleEvent(ctx, g.event(req, connID, junows.RouteDefault, string(data)))
		if err != nil {
			logger.Error().Err(err).Msg("handler failed")
			continue
		}
		// 5xx bodies were already delivered through the transport by the router
		if resp.Body == "" || resp.StatusCode >= http.StatusInternalServerError {
			continue
		}
		if err := p.write(websocket.TextMessage, []byte(resp.Body)); err != nil {
			logger.Debug().Err(err).Msg("failed to write route response")
			return
		}
	}
}

func (g *Gateway) event(req *http.Request, connID, routeKey, body string) events.APIGatewayWebsocketProxyRequest {
	query := map[string]string{}
	for k, vs := range req.URL.Query() {
		if len(vs) > 0 {
			query[k] = vs[0]
		}
	}
	headers := map[string]string{}
	for k := range req.Header {
		headers[k] = req.Header.Get(k)
	}
	return events.APIGatewayWebsocketProxyRequest{
		Body:                  body,
		Headers:               headers,
		QueryStringParameters: query,
		RequestContext: events.APIGatewayWebsocketProxyRequestContext{
			ConnectionID: connID,
			RouteKey:     routeKey,
			DomainName:   req.Host,
			Stage:        g.Stage,
		},
	}
}

func (g *Gateway) peer(connectionID string) (*peer, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	p, ok := g.peers[connectionID]
	if !ok {
		return nil, fmt.Errorf("local connection %v: %w", connectionID, junows.ErrGone)
	}
	return p, nil
}

// PostToConnection writes data to a local connection. The endpoint is
// ignored.
func (g *Gateway) PostToConnection(_ context.Context, _, connectionID string, data []byte) error {
	p, err := g.peer(connectionID)
	if err != nil {
		return err
	}
	return p.write(websocket.TextMessage, data)
}

// DeleteConnection closes a local connection with a normal closure.
func (g *Gateway) DeleteConnection(_ context.Context, _, connectionID string) error {
	p, err := g.peer(connectionID)
	if err != nil {
		return err
	}
	p.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return p.conn.Close()
}

// Connections returns the ids of the currently open connections.
func (g *Gateway) Connections() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := make([]string, 0, len(g.peers))
	for id := range g.peers {
		ids = append(ids, id)
	}
	return ids
}

var _ junows.Transport = (*Gateway)(nil)
