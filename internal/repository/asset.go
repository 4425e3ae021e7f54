package repository

import (
	"context"

	"assetapi/internal/model"
)

// AssetRepository persists the upload catalog. No business logic here.
type AssetRepository interface {
	// CreateBatch inserts every asset of one upload in a single transaction.
	CreateBatch(ctx context.Context, assets []model.Asset) error

	// FindByID returns ErrNotFound when the id is unknown.
	FindByID(ctx context.Context, id string) (*model.Asset, error)

	// List returns assets newest first together with the filtered total.
	List(ctx context.Context, q ListQuery) (*PageResult[model.Asset], error)

	// Delete removes a row. It returns nil if the row did not exist.
	Delete(ctx context.Context, id string) error
}

// ListQuery filters and paginates the catalog. An empty Kind matches all kinds.
type ListQuery struct {
	PageQuery
	Kind model.Kind
}
