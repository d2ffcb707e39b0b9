package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"rocketapi/internal/model"
)

type MockSnapshotRepository struct {
	mock.Mock
}

func (m *MockSnapshotRepository) Save(ctx context.Context, rocket model.Rocket) error {
	args := m.Called(ctx, rocket)
	return args.Error(0)
}

func (m *MockSnapshotRepository) LoadAll(ctx context.Context) ([]model.Rocket, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Rocket), args.Error(1)
}

func (m *MockSnapshotRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
