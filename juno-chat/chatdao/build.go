package chatdao

import "github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"

// Build creates a chat DAO using the standard table names for the given
// environment.
func Build(api dynamodbiface.DynamoDBAPI, env string) *DAO {
	return New(api, MessagesTableName(env), ConversationsTableName(env))
}

func MessagesTableName(env string) string {
	return env + "-junokit--chat-messages"
}

func ConversationsTableName(env string) string {
	return env + "-junokit--chat-conversations"
}
