package junows

import (
	"context"
	"fmt"
	"sort"
	"time"

	junoddb "github.com/SwiftAkira/JunoKit-sub000/juno-ddb"
	"github.com/SwiftAkira/JunoKit-sub000/juno-ws/connectiondao"
	"github.com/rs/zerolog"
)

// ConnectionScanner is implemented by connectiondao.DAO and memstore.
type ConnectionScanner interface {
	Scan(ctx context.Context, fn func(connectiondao.Connection) bool) error
}

// Sweeper force-closes connections that have been idle too long.
type Sweeper struct {
	Connections ConnectionScanner
	Sender      *Sender
	IdleTimeout time.Duration
	Dry         bool
	Now         func() time.Time
}

// Sweep closes idle connections and returns their ids. A connection whose
// activity cannot be parsed falls back to its connect time.
func (s *Sweeper) Sweep(ctx context.Context) ([]string, error) {
	logger := zerolog.Ctx(ctx)
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	cutoff := now().Add(-s.IdleTimeout)

	var idle []connectiondao.Connection
	err := s.Connections.Scan(ctx, func(conn connectiondao.Connection) bool {
		last, ok := lastSeen(conn)
		if !ok {
			logger.Warn().Str("connection_id", conn.ConnectionID).Msg("connection has no parsable activity time")
			return true
		}
		if last.Before(cutoff) {
			idle = append(idle, conn)
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("scanning connections: %w", err)
	}

	var swept []string
	for _, conn := range idle {
		logger.Info().Str("connection_id", conn.ConnectionID).Str("last_activity", conn.LastActivity).Msg("closing idle connection")
		swept = append(swept, conn.ConnectionID)
		if s.Dry {
			continue
		}
		if err := s.Sender.Transport.DeleteConnection(ctx, conn.Endpoint, conn.ConnectionID); err != nil && !IsGone(err) {
			logger.Warn().Err(err).Str("connection_id", conn.ConnectionID).Msg("failed to close idle connection")
		}
		s.Sender.Cleanup(ctx, conn.ConnectionID)
	}
	return swept, nil
}

func lastSeen(conn connectiondao.Connection) (time.Time, bool) {
	for _, v := range []string{conn.LastActivity, conn.ConnectedAt} {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// PresenceReport summarises live connections.
type PresenceReport struct {
	GeneratedAt   string         `json:"generatedAt"`
	Total         int            `json:"total"`
	Anonymous     int            `json:"anonymous"`
	Authenticated int            `json:"authenticated"`
	Users         int            `json:"users"`
	ByUserStatus  map[string]int `json:"byUserStatus"`
	ByTopic       map[string]int `json:"byTopic"`
	TopTopics     []string       `json:"topTopics,omitempty"`
}

// Presence scans connections and counts them.
func Presence(ctx context.Context, connections ConnectionScanner, now time.Time) (PresenceReport, error) {
	report := PresenceReport{
		GeneratedAt:  FormatTime(now),
		ByUserStatus: map[string]int{},
		ByTopic:      map[string]int{},
	}
	users := map[string]bool{}

	err := connections.Scan(ctx, func(conn connectiondao.Connection) bool {
		report.Total++
		if conn.Anonymous() {
			report.Anonymous++
		} else {
			report.Authenticated++
			users[conn.UserID] = true
		}
		status := conn.UserStatus
		if status == "" {
			status = connectiondao.UserStatusOnline
		}
		report.ByUserStatus[status]++
		for _, topic := range conn.NotificationSubscriptions {
			report.ByTopic[topic]++
		}
		return true
	})
	if err != nil {
		return PresenceReport{}, fmt.Errorf("scanning connections: %w", err)
	}
	report.Users = len(users)

	for topic := range report.ByTopic {
		report.TopTopics = append(report.TopTopics, topic)
	}
	sort.Slice(report.TopTopics, func(i, j int) bool {
		a, b := report.TopTopics[i], report.TopTopics[j]
		if report.ByTopic[a] != report.ByTopic[b] {
			return report.ByTopic[a] > report.ByTopic[b]
		}
		return a < b
	})
	if len(report.TopTopics) > 10 {
		report.TopTopics = report.TopTopics[:10]
	}
	return report, nil
}

// OnConnectionRemoved is a stream callback for the connections table: when
// a row is removed, by disconnect or TTL expiry, its subscriptions go too.
func OnConnectionRemoved(subs SubscriptionStore) junoddb.DeleteCallback {
	return func(ctx context.Context, oldValue junoddb.Item) error {
		var conn connectiondao.Connection
		if err := junoddb.ParseItem(oldValue, &conn); err != nil {
			return fmt.Errorf("parsing removed connection: %w", err)
		}
		if conn.ConnectionID == "" {
			return nil
		}
		zerolog.Ctx(ctx).Info().Str("connection_id", conn.ConnectionID).Msg("connection removed, deleting subscriptions")
		return subs.DeleteByConnection(ctx, conn.ConnectionID)
	}
}
