package eventbridge

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"qdesign-backend/domain/events"
)

// MockEventBridge is a mock implementation of API
type MockEventBridge struct {
	mock.Mock
}

func (m *MockEventBridge) PutEvents(ctx context.Context, in *eventbridge.PutEventsInput, _ ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(*eventbridge.PutEventsOutput), args.Error(1)
}

func makeEvents(n int) []events.DomainEvent {
	out := make([]events.DomainEvent, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, events.NewProjectCreated(fmt.Sprintf("p%d", i), "Spike Study", "alice", time.Now()))
	}
	return out
}

func TestPublishBatchSplitsIntoChunksOfTen(t *testing.T) {
	api := new(MockEventBridge)
	pub := NewPublisher(api, "qdesign-events", "qdesign.backend", zap.NewNop())

	var sizes []int
	api.On("PutEvents", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			in := args.Get(1).(*eventbridge.PutEventsInput)
			sizes = append(sizes, len(in.Entries))
		}).
		Return(&eventbridge.PutEventsOutput{}, nil)

	require.NoError(t, pub.PublishBatch(context.Background(), makeEvents(23)))
	assert.Equal(t, []int{10, 10, 3}, sizes)
}

func TestPublishEntryShape(t *testing.T) {
	api := new(MockEventBridge)
	pub := NewPublisher(api, "qdesign-events", "qdesign.backend", zap.NewNop())

	api.On("PutEvents", mock.Anything, mock.MatchedBy(func(in *eventbridge.PutEventsInput) bool {
		e := in.Entries[0]
		return aws.ToString(e.DetailType) == "project.created" &&
			aws.ToString(e.Source) == "qdesign.backend" &&
			aws.ToString(e.EventBusName) == "qdesign-events" &&
			e.Resources[0] == "qdesign:project/p0"
	})).Return(&eventbridge.PutEventsOutput{}, nil)

	require.NoError(t, pub.Publish(context.Background(), makeEvents(1)[0]))
	api.AssertExpectations(t)
}

func TestPublishRetriesRejectedEntries(t *testing.T) {
	api := new(MockEventBridge)
	pub := NewPublisher(api, "qdesign-events", "qdesign.backend", zap.NewNop())

	api.On("PutEvents", mock.Anything, mock.MatchedBy(func(in *eventbridge.PutEventsInput) bool {
		return len(in.Entries) == 2
	})).Return(&eventbridge.PutEventsOutput{
		FailedEntryCount: 1,
		Entries: []types.PutEventsResultEntry{
			{EventId: aws.String("e1")},
			{ErrorCode: aws.String("ThrottlingException"), ErrorMessage: aws.String("slow down")},
		},
	}, nil).Once()
	api.On("PutEvents", mock.Anything, mock.MatchedBy(func(in *eventbridge.PutEventsInput) bool {
		return len(in.Entries) == 1 && in.Entries[0].Resources[0] == "qdesign:project/p1"
	})).Return(&eventbridge.PutEventsOutput{}, nil).Once()

	require.NoError(t, pub.PublishBatch(context.Background(), makeEvents(2)))
	api.AssertExpectations(t)
}

func TestNopPublisher(t *testing.T) {
	pub := NewNopPublisher(zap.NewNop())
	assert.NoError(t, pub.PublishBatch(context.Background(), makeEvents(3)))
}
