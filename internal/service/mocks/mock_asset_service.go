package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"assetapi/internal/model"
	"assetapi/internal/service"
	"assetapi/internal/storage"
)

type MockAssetService struct {
	mock.Mock
}

func (m *MockAssetService) Ingest(ctx context.Context, files []service.UploadFile) (*service.Manifest, error) {
	args := m.Called(ctx, files)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Manifest), args.Error(1)
}

func (m *MockAssetService) List(ctx context.Context, limit, offset int, kind string) (*service.AssetListResult, error) {
	args := m.Called(ctx, limit, offset, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AssetListResult), args.Error(1)
}

func (m *MockAssetService) Get(ctx context.Context, id string) (*model.Asset, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Asset), args.Error(1)
}

func (m *MockAssetService) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockAssetService) DownloadURL(ctx context.Context, id string) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}

func (m *MockAssetService) Open(ctx context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Get(1).(storage.ObjectInfo), args.Error(2)
	}
	return args.Get(0).(io.ReadCloser), args.Get(1).(storage.ObjectInfo), args.Error(2)
}
