package subscriptiondao

// Subscription indexes one notification topic of one connection so that the
// dispatcher can find subscribers by topic. SubscriptionID is
// "{connectionId}#{topic}".
type Subscription struct {
	SubscriptionID string `dynamodbav:"pk" ddb:"hash"`
	ConnectionID   string `dynamodbav:"connection_id" ddb:"gsi_hash:ConnectionIndex"`
	Topic          string `dynamodbav:"topic" ddb:"gsi_hash:TopicIndex"`
	UserID         string `dynamodbav:"user_id"`
	Endpoint       string `dynamodbav:"endpoint"`
	TTL            int64  `dynamodbav:"ttl"`
}

// ID returns the subscription key for a connection and topic.
func ID(connectionID, topic string) string {
	return connectionID + "#" + topic
}
