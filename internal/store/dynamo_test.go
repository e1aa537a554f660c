package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/token-service/pkg/util"
)

// mockDynamoClient emulates conditional PutItem semantics over an in-memory
// item map.
type mockDynamoClient struct {
	items  map[string]map[string]types.AttributeValue
	putErr error
	getErr error
}

func newMockDynamoClient() *mockDynamoClient {
	return &mockDynamoClient{items: map[string]map[string]types.AttributeValue{}}
}

func (m *mockDynamoClient) PutItem(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	pk := params.Item["pk"].(*types.AttributeValueMemberS).Value
	if params.ConditionExpression != nil {
		if _, exists := m.items[pk]; exists {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	m.items[pk] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (m *mockDynamoClient) GetItem(_ context.Context, params *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	pk := params.Key["pk"].(*types.AttributeValueMemberS).Value
	return &dynamodb.GetItemOutput{Item: m.items[pk]}, nil
}

func (m *mockDynamoClient) DescribeTable(_ context.Context, _ *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	return &dynamodb.DescribeTableOutput{
		Table: &types.TableDescription{TableStatus: types.TableStatusActive},
	}, nil
}

func (m *mockDynamoClient) CreateTable(_ context.Context, _ *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	return &dynamodb.CreateTableOutput{}, nil
}

func newTestDynamoStore(client DynamoDBClient) *DynamoStore {
	return NewDynamoStore(client, "auth-tokens-test", zap.NewNop())
}

func TestDynamoStoreRoundTrip(t *testing.T) {
	s := newTestDynamoStore(newMockDynamoClient())
	expiresAt := time.Now().UTC().Add(time.Hour).Truncate(time.Millisecond)
	record := sampleRecord("user-42")
	record.ExpiresAt = &expiresAt
	record.Metadata = map[string]string{"role_name": "admin"}

	require.NoError(t, s.Put(context.Background(), "tok1", record))

	got, err := s.Get(context.Background(), "tok1")
	require.NoError(t, err)
	assert.True(t, record.Equal(got))
}

func TestDynamoStorePutIdempotent(t *testing.T) {
	client := newMockDynamoClient()
	s := newTestDynamoStore(client)
	record := sampleRecord("user-42")

	require.NoError(t, s.Put(context.Background(), "tok1", record))
	require.NoError(t, s.Put(context.Background(), "tok1", record))
	assert.Len(t, client.items, 1)
}

func TestDynamoStorePutCollision(t *testing.T) {
	s := newTestDynamoStore(newMockDynamoClient())

	require.NoError(t, s.Put(context.Background(), "tok1", sampleRecord("user-42")))
	err := s.Put(context.Background(), "tok1", sampleRecord("user-43"))
	assert.True(t, util.IsCode(err, util.CodeTokenCollision))
}

func TestDynamoStoreGetNotFound(t *testing.T) {
	s := newTestDynamoStore(newMockDynamoClient())

	_, err := s.Get(context.Background(), "missing")
	assert.True(t, util.IsCode(err, util.CodeNotFound))
}

func TestDynamoStoreMapsThrottlingToUnavailable(t *testing.T) {
	client := newMockDynamoClient()
	client.putErr = &types.ProvisionedThroughputExceededException{}
	s := newTestDynamoStore(client)

	err := s.Put(context.Background(), "tok1", sampleRecord("user-42"))
	assert.True(t, util.IsCode(err, util.CodeStoreUnavailable))
}

func TestDynamoStoreMapsValidationToRejected(t *testing.T) {
	client := newMockDynamoClient()
	client.putErr = &smithy.GenericAPIError{Code: "ValidationException", Message: "bad key"}
	s := newTestDynamoStore(client)

	err := s.Put(context.Background(), "tok1", sampleRecord("user-42"))
	assert.True(t, util.IsCode(err, util.CodeStoreRejected))
}

func TestDynamoStoreMapsTransportToUnavailable(t *testing.T) {
	client := newMockDynamoClient()
	client.putErr = errors.New("dial tcp: connection refused")
	s := newTestDynamoStore(client)

	err := s.Put(context.Background(), "tok1", sampleRecord("user-42"))
	assert.True(t, util.IsCode(err, util.CodeStoreUnavailable))
}
