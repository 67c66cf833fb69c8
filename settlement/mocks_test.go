package settlement

import (
	"context"
	"skillduels/domain"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/mock"
)

type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) RecordMatch(ctx context.Context, rec domain.MatchRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

type MockEscrow struct {
	mock.Mock
}

func (m *MockEscrow) Settle(ctx context.Context, ev MatchCompleted) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, ev MatchCompleted) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

type MockMessageWriter struct {
	mock.Mock
}

func (m *MockMessageWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *MockMessageWriter) Close() error {
	args := m.Called()
	return args.Error(0)
}
