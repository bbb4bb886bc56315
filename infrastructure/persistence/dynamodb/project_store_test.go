package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"qdesign-backend/domain/project"
	apperrors "qdesign-backend/pkg/errors"
)

// MockDynamoDB is a mock implementation of API
type MockDynamoDB struct {
	mock.Mock
}

func (m *MockDynamoDB) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(*dynamodb.GetItemOutput), args.Error(1)
}

func (m *MockDynamoDB) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(*dynamodb.QueryOutput), args.Error(1)
}

func (m *MockDynamoDB) BatchGetItem(ctx context.Context, in *dynamodb.BatchGetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(*dynamodb.BatchGetItemOutput), args.Error(1)
}

func (m *MockDynamoDB) BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(*dynamodb.BatchWriteItemOutput), args.Error(1)
}

func (m *MockDynamoDB) TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(*dynamodb.TransactWriteItemsOutput), args.Error(1)
}

const testTable = "qdesign-test"

func newTestProject(t *testing.T) *project.Project {
	t.Helper()
	p, err := project.New("Spike Study", "binding", project.Ref("alice", "Alice"), "ABCD1234", time.Now().UTC())
	require.NoError(t, err)
	return p
}

func storedItem(t *testing.T, p *project.Project) map[string]types.AttributeValue {
	t.Helper()
	item, err := toProjectItem(p)
	require.NoError(t, err)
	doc := item.Document
	return map[string]types.AttributeValue{
		"PK":         &types.AttributeValueMemberS{Value: item.PK},
		"SK":         &types.AttributeValueMemberS{Value: item.SK},
		"EntityType": &types.AttributeValueMemberS{Value: item.EntityType},
		"ProjectID":  &types.AttributeValueMemberS{Value: item.ProjectID},
		"Document":   &types.AttributeValueMemberS{Value: doc},
	}
}

func cancelled(codes ...string) error {
	reasons := make([]types.CancellationReason, 0, len(codes))
	for _, c := range codes {
		reasons = append(reasons, types.CancellationReason{Code: aws.String(c)})
	}
	return &types.TransactionCanceledException{Message: aws.String("cancelled"), CancellationReasons: reasons}
}

func TestCreateWritesDocumentGuardAndMembership(t *testing.T) {
	// Arrange
	api := new(MockDynamoDB)
	store := NewProjectStore(api, testTable, zap.NewNop())
	p := newTestProject(t)

	api.On("TransactWriteItems", mock.Anything, mock.MatchedBy(func(in *dynamodb.TransactWriteItemsInput) bool {
		if len(in.TransactItems) != 3 {
			return false
		}
		doc, code, member := in.TransactItems[0].Put, in.TransactItems[1].Put, in.TransactItems[2].Put
		return doc != nil && code != nil && member != nil &&
			aws.ToString(doc.ConditionExpression) != "" &&
			aws.ToString(code.ConditionExpression) != "" &&
			doc.Item["PK"].(*types.AttributeValueMemberS).Value == "PROJECT#"+p.ID &&
			code.Item["PK"].(*types.AttributeValueMemberS).Value == "JOINCODE#ABCD1234" &&
			member.Item["PK"].(*types.AttributeValueMemberS).Value == "USER#alice"
	})).Return(&dynamodb.TransactWriteItemsOutput{}, nil)

	// Act
	err := store.Create(context.Background(), p)

	// Assert
	require.NoError(t, err)
	api.AssertExpectations(t)
}

func TestCreateReportsWhichGuardFailed(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		message string
	}{
		{name: "duplicate id", err: cancelled("ConditionalCheckFailed", "None", "None"), message: "project already exists"},
		{name: "duplicate join code", err: cancelled("None", "ConditionalCheckFailed", "None"), message: "join code already in use"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := new(MockDynamoDB)
			store := NewProjectStore(api, testTable, zap.NewNop())
			api.On("TransactWriteItems", mock.Anything, mock.Anything).
				Return(&dynamodb.TransactWriteItemsOutput{}, tt.err)

			err := store.Create(context.Background(), newTestProject(t))

			assert.True(t, apperrors.IsConflict(err))
			assert.Equal(t, tt.message, apperrors.PublicMessage(err))
		})
	}
}

func TestGetByIDDecodesDocument(t *testing.T) {
	api := new(MockDynamoDB)
	store := NewProjectStore(api, testTable, zap.NewNop())
	p := newTestProject(t)
	require.NoError(t, p.KnowledgeGraph.AddNode(project.GraphNode{ID: "n1", Type: "protein", Label: "Spike"}))

	api.On("GetItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
		return in.Key["PK"].(*types.AttributeValueMemberS).Value == "PROJECT#"+p.ID
	})).Return(&dynamodb.GetItemOutput{Item: storedItem(t, p)}, nil)
	api.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{}, nil)

	got, err := store.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Name, got.Name)
	require.Len(t, got.KnowledgeGraph.Nodes, 1)

	_, err = store.GetByID(context.Background(), "missing")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestSaveRewritesOnlyChangedIndexes(t *testing.T) {
	api := new(MockDynamoDB)
	store := NewProjectStore(api, testTable, zap.NewNop())
	p := newTestProject(t)

	api.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{Item: storedItem(t, p)}, nil)
	api.On("TransactWriteItems", mock.Anything, mock.MatchedBy(func(in *dynamodb.TransactWriteItemsInput) bool {
		// document plus one new membership
		return len(in.TransactItems) == 2 &&
			in.TransactItems[1].Put.Item["PK"].(*types.AttributeValueMemberS).Value == "USER#bob"
	})).Return(&dynamodb.TransactWriteItemsOutput{}, nil)

	updated := p.Clone()
	require.NoError(t, updated.AddMember(project.Ref("bob", "Bob"), project.RoleEditor, time.Now()))

	require.NoError(t, store.Save(context.Background(), updated))
	api.AssertExpectations(t)
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{name: "conditional check", err: &types.ConditionalCheckFailedException{Message: aws.String("x")}, check: apperrors.IsConflict},
		{name: "transaction conflict", err: cancelled("TransactionConflict"), check: apperrors.IsConflict},
		{name: "throttled", err: &smithy.GenericAPIError{Code: "ThrottlingException"}, check: apperrors.IsUpstreamTimeout},
		{name: "deadline", err: fmt.Errorf("call: %w", context.DeadlineExceeded), check: apperrors.IsUpstreamTimeout},
		{name: "app error passes through", err: apperrors.NewNotFound("gone"), check: apperrors.IsNotFound},
		{name: "anything else", err: errors.New("boom"), check: apperrors.IsInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyError(tt.err, "store call failed")
			assert.True(t, tt.check(got), "got %v", got)
		})
	}
}
