package connectiondao

import "errors"

const (
	// AnonymousUserID identifies sessions that connected without a valid token.
	AnonymousUserID = "anonymous"

	StatusConnected = "connected"
)

// User presence values settable through a presence update.
const (
	UserStatusOnline  = "online"
	UserStatusAway    = "away"
	UserStatusBusy    = "busy"
	UserStatusOffline = "offline"
)

// ErrNotFound is returned by Update when the connection row no longer exists.
var ErrNotFound = errors.New("connection not found")

// Connection represents a live relay session stored in DynamoDB.
type Connection struct {
	ConnectionID              string   `dynamodbav:"connectionId" ddb:"hash"`
	UserID                    string   `dynamodbav:"userId"`
	UserEmail                 string   `dynamodbav:"userEmail,omitempty"`
	Status                    string   `dynamodbav:"status"`
	Endpoint                  string   `dynamodbav:"endpoint"`
	ConnectedAt               string   `dynamodbav:"connectedAt"`
	LastActivity              string   `dynamodbav:"lastActivity"`
	TTL                       int64    `dynamodbav:"ttl"`
	UserStatus                string   `dynamodbav:"userStatus,omitempty"`
	NotificationSubscriptions []string `dynamodbav:"notificationSubscriptions,omitempty"`
}

// Anonymous reports whether the session has no verified identity.
func (c Connection) Anonymous() bool {
	return c.UserID == "" || c.UserID == AnonymousUserID
}

// Patch lists the fields of a merge-patch update. Nil fields are left as is.
type Patch struct {
	LastActivity              *string
	UserStatus                *string
	NotificationSubscriptions []string
}

// ValidUserStatus reports whether s is an accepted presence value.
func ValidUserStatus(s string) bool {
	switch s {
	case UserStatusOnline, UserStatusAway, UserStatusBusy, UserStatusOffline:
		return true
	default:
		return false
	}
}
