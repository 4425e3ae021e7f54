package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"assetapi/internal/model"
	"assetapi/internal/repository"
)

type MockAssetRepository struct {
	mock.Mock
}

func (m *MockAssetRepository) CreateBatch(ctx context.Context, assets []model.Asset) error {
	args := m.Called(ctx, assets)
	return args.Error(0)
}

func (m *MockAssetRepository) FindByID(ctx context.Context, id string) (*model.Asset, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Asset), args.Error(1)
}

func (m *MockAssetRepository) List(ctx context.Context, q repository.ListQuery) (*repository.PageResult[model.Asset], error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.Asset]), args.Error(1)
}

func (m *MockAssetRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
