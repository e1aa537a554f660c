package store

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"github.com/spec-kit/token-service/internal/domain"
	"github.com/spec-kit/token-service/pkg/util"
)

const (
	tableCreationInterval   = 1 * time.Second
	tableCreationRetryCount = 10
)

// DynamoDBClient is the subset of the DynamoDB API the store needs.
type DynamoDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// DynamoStore persists token records in a DynamoDB table keyed by pk.
type DynamoStore struct {
	client DynamoDBClient
	table  string
	logger *zap.Logger
}

// NewDynamoStore builds a store over an existing table.
func NewDynamoStore(client DynamoDBClient, table string, logger *zap.Logger) *DynamoStore {
	return &DynamoStore{client: client, table: table, logger: logger}
}

type dynamoItem struct {
	PK         string            `dynamodbav:"pk"`
	Subject    string            `dynamodbav:"subject"`
	Attributes map[string]string `dynamodbav:"userAttributes"`
	IssuedAt   string            `dynamodbav:"issuedAt"`
	ExpiresAt  string            `dynamodbav:"expiresAt,omitempty"`
	Metadata   map[string]string `dynamodbav:"metadata,omitempty"`
	// TTLEpoch lets a table TTL policy sweep expired entries.
	TTLEpoch int64 `dynamodbav:"ttlEpoch,omitempty"`
}

// Put writes the record, treating an existing identical entry as success
// and an existing divergent entry as a collision.
func (s *DynamoStore) Put(ctx context.Context, tok string, record *domain.TokenRecord) error {
	item, err := attributevalue.MarshalMap(toDynamoItem(tok, record))
	if err != nil {
		return util.NewStoreRejected(err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(pk)"),
	})
	if err == nil {
		return nil
	}

	var conditionFailed *types.ConditionalCheckFailedException
	if errors.As(err, &conditionFailed) {
		existing, getErr := s.Get(ctx, tok)
		if getErr != nil {
			return util.NewStoreUnavailable(getErr)
		}
		return resolveExisting(tok, existing, record)
	}
	return mapDynamoError(err)
}

// Get reads the record with a strongly consistent read.
func (s *DynamoStore) Get(ctx context.Context, tok string) (*domain.TokenRecord, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            map[string]types.AttributeValue{"pk": &types.AttributeValueMemberS{Value: tok}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, mapDynamoError(err)
	}
	if len(out.Item) == 0 {
		return nil, util.NewNotFound("token", nil)
	}

	var item dynamoItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, util.NewStoreRejected(err)
	}
	return fromDynamoItem(item)
}

// Ping verifies the table is reachable.
func (s *DynamoStore) Ping(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.table),
	})
	if err != nil {
		return mapDynamoError(err)
	}
	return nil
}

// EnsureTable creates the token table when it does not exist and waits for
// it to become active. Intended for development environments.
func (s *DynamoStore) EnsureTable(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.table),
	})
	if err == nil {
		s.logger.Debug("token table already exists", zap.String("table", s.table))
		return nil
	}
	if !isResourceNotFound(err) {
		return mapDynamoError(err)
	}

	s.logger.Info("creating token table", zap.String("table", s.table))
	_, err = s.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(s.table),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("pk"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("pk"), KeyType: types.KeyTypeHash},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		return mapDynamoError(err)
	}
	return s.waitUntilTableActive(ctx)
}

func (s *DynamoStore) waitUntilTableActive(ctx context.Context) error {
	for attempt := 0; attempt <= tableCreationRetryCount; attempt++ {
		out, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
			TableName: aws.String(s.table),
		})
		if err == nil && out.Table.TableStatus == types.TableStatusActive {
			s.logger.Info("token table active", zap.String("table", s.table))
			return nil
		}
		if err != nil && !isResourceNotFound(err) {
			return mapDynamoError(err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(tableCreationInterval):
		}
	}
	return util.NewStoreUnavailable(errors.New("token table creation timed out"))
}

func toDynamoItem(tok string, record *domain.TokenRecord) dynamoItem {
	item := dynamoItem{
		PK:         tok,
		Subject:    record.Subject,
		Attributes: record.Attributes,
		IssuedAt:   record.IssuedAt.UTC().Format(time.RFC3339Nano),
		Metadata:   record.Metadata,
	}
	if record.ExpiresAt != nil {
		item.ExpiresAt = record.ExpiresAt.UTC().Format(time.RFC3339Nano)
		item.TTLEpoch = record.ExpiresAt.Unix()
	}
	return item
}

func fromDynamoItem(item dynamoItem) (*domain.TokenRecord, error) {
	issuedAt, err := time.Parse(time.RFC3339Nano, item.IssuedAt)
	if err != nil {
		return nil, util.NewStoreRejected(err)
	}
	record := &domain.TokenRecord{
		Subject:    item.Subject,
		Attributes: item.Attributes,
		IssuedAt:   issuedAt,
		Metadata:   item.Metadata,
	}
	if record.Attributes == nil {
		record.Attributes = domain.AttributeSet{}
	}
	if item.ExpiresAt != "" {
		expiresAt, err := time.Parse(time.RFC3339Nano, item.ExpiresAt)
		if err != nil {
			return nil, util.NewStoreRejected(err)
		}
		record.ExpiresAt = &expiresAt
	}
	return record, nil
}

func mapDynamoError(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.(type) {
		case *types.ProvisionedThroughputExceededException,
			*types.RequestLimitExceeded,
			*types.InternalServerError:
			return util.NewStoreUnavailable(err)
		default:
			return util.NewStoreRejected(err)
		}
	}
	return util.NewStoreUnavailable(err)
}

func isResourceNotFound(err error) bool {
	var notFound *types.ResourceNotFoundException
	return errors.As(err, &notFound)
}
