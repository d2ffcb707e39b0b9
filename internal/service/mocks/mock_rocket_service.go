package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"rocketapi/internal/model"
	"rocketapi/internal/repository"
	"rocketapi/internal/service"
)

type MockRocketService struct {
	mock.Mock
}

func (m *MockRocketService) Ingest(ctx context.Context, t model.Telemetry, raw []byte) (repository.Result, error) {
	args := m.Called(ctx, t, raw)
	return args.Get(0).(repository.Result), args.Error(1)
}

func (m *MockRocketService) Reject(ctx context.Context, err error) {
	m.Called(ctx, err)
}

func (m *MockRocketService) List(ctx context.Context, q service.RocketQuery) ([]model.Rocket, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Rocket), args.Error(1)
}

func (m *MockRocketService) Get(ctx context.Context, id string) (*model.Rocket, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Rocket), args.Error(1)
}

func (m *MockRocketService) Types(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockRocketService) Restore(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockRocketService) Ready(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
