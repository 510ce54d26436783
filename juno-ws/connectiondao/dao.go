package connectiondao

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/savaki/ddb"
)

// DAO provides access to the WebSocket connections table.
type DAO struct {
	table     *ddb.Table
	api       dynamodbiface.DynamoDBAPI
	tableName string
}

// New creates a new connections DAO.
func New(api dynamodbiface.DynamoDBAPI, tableName string) *DAO {
	return &DAO{
		table:     ddb.New(api).MustTable(tableName, Connection{}),
		api:       api,
		tableName: tableName,
	}
}

// Table exposes the underlying table, e.g. for creating it in tests.
func (d *DAO) Table() *ddb.Table {
	return d.table
}

// Put stores a connection record, replacing any previous row.
func (d *DAO) Put(ctx context.Context, conn Connection) error {
	if err := d.table.Put(conn).RunWithContext(ctx); err != nil {
		return fmt.Errorf("failed to put connection %v: %w", conn.ConnectionID, err)
	}
	return nil
}

// Get retrieves a connection record by ID. Returns nil if not found.
func (d *DAO) Get(ctx context.Context, connectionID string) (*Connection, error) {
	var conn Connection
	if err := d.table.Get(connectionID).ConsistentRead(true).ScanWithContext(ctx, &conn); err != nil {
		if ddb.IsItemNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get connection %v: %w", connectionID, err)
	}
	return &conn, nil
}

// Update applies a merge-patch to an existing row. It never creates a row;
// ErrNotFound is returned when the connection is gone.
func (d *DAO) Update(ctx context.Context, connectionID string, patch Patch) error {
	var (
		sets   []string
		names  = map[string]*string{"#pk": aws.String("connectionId")}
		values = map[string]*dynamodb.AttributeValue{}
	)
	set := func(attr string, v interface{}) error {
		av, err := dynamodbattribute.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal %v: %w", attr, err)
		}
		names["#"+attr] = aws.String(attr)
		values[":"+attr] = av
		sets = append(sets, fmt.Sprintf("#%v = :%v", attr, attr))
		return nil
	}

	if patch.LastActivity != nil {
		if err := set("lastActivity", *patch.LastActivity); err != nil {
			return err
		}
	}
	if patch.UserStatus != nil {
		if err := set("userStatus", *patch.UserStatus); err != nil {
			return err
		}
	}
	if patch.NotificationSubscriptions != nil {
		if err := set("notificationSubscriptions", patch.NotificationSubscriptions); err != nil {
			return err
		}
	}
	if len(sets) == 0 {
		return nil
	}

	_, err := d.api.UpdateItemWithContext(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]*dynamodb.AttributeValue{
			"connectionId": {S: aws.String(connectionID)},
		},
		UpdateExpression:          aws.String("SET " + strings.Join(sets, ", ")),
		ConditionExpression:       aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && aerr.Code() == dynamodb.ErrCodeConditionalCheckFailedException {
			return fmt.Errorf("failed to update connection %v: %w", connectionID, ErrNotFound)
		}
		return fmt.Errorf("failed to update connection %v: %w", connectionID, err)
	}
	return nil
}

// Delete removes a connection record by ID. Deleting a missing row is not an
// error.
func (d *DAO) Delete(ctx context.Context, connectionID string) error {
	if err := d.table.Delete(connectionID).RunWithContext(ctx); err != nil {
		return fmt.Errorf("failed to delete connection %v: %w", connectionID, err)
	}
	return nil
}

// Scan calls fn for every connection in the table. Returning false from fn
// stops the scan.
func (d *DAO) Scan(ctx context.Context, fn func(Connection) bool) error {
	var callbackErr error
	err := d.api.ScanPagesWithContext(ctx, &dynamodb.ScanInput{
		TableName: aws.String(d.tableName),
	}, func(page *dynamodb.ScanOutput, lastPage bool) bool {
		var conns []Connection
		if err := dynamodbattribute.UnmarshalListOfMaps(page.Items, &conns); err != nil {
			callbackErr = fmt.Errorf("failed to unmarshal connections: %w", err)
			return false
		}
		for _, conn := range conns {
			if !fn(conn) {
				return false
			}
		}
		return true
	})
	if err != nil {
		return fmt.Errorf("failed to scan connections: %w", err)
	}
	return callbackErr
}
