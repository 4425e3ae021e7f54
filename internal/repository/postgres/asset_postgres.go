package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"assetapi/internal/model"
	"assetapi/internal/repository"
)

// AssetPostgres is a PostgreSQL implementation of repository.AssetRepository.
type AssetPostgres struct {
	db *sql.DB
}

func NewAssetPostgres(db *sql.DB) *AssetPostgres {
	return &AssetPostgres{db: db}
}

var _ repository.AssetRepository = (*AssetPostgres)(nil)

const assetColumns = `id, original_name, filename, mime_type, kind, size, storage_key, path, url,
		thumbnail_key, thumbnail_url, metadata, client_metadata, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// CreateBatch inserts all rows or none.
func (r *AssetPostgres) CreateBatch(ctx context.Context, assets []model.Asset) (err error) {
	if len(assets) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const q = `
		INSERT INTO assets (` + assetColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	for i := range assets {
		a := &assets[i]
		md, err := json.Marshal(a.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata of %s: %w", a.ID, err)
		}
		var clientMD any
		if len(a.ClientMetadata) > 0 {
			clientMD = []byte(a.ClientMetadata)
		}
		if _, err := tx.ExecContext(ctx, q,
			a.ID,
			a.OriginalName,
			a.Filename,
			a.MimeType,
			string(a.Kind),
			a.Size,
			a.StorageKey,
			a.Path,
			a.URL,
			a.ThumbnailKey,
			a.ThumbnailURL,
			md,
			clientMD,
			a.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert asset %s: %w", a.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *AssetPostgres) FindByID(ctx context.Context, id string) (*model.Asset, error) {
	const q = `SELECT ` + assetColumns + ` FROM assets WHERE id = $1`

	a, err := scanAsset(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

// List uses LIMIT/OFFSET pagination; an empty kind is passed as NULL and matches every row.
func (r *AssetPostgres) List(ctx context.Context, lq repository.ListQuery) (*repository.PageResult[model.Asset], error) {
	var kind any
	if lq.Kind != "" {
		kind = string(lq.Kind)
	}

	const qCount = `SELECT COUNT(*) FROM assets WHERE ($1::text IS NULL OR kind = $1)`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount, kind).Scan(&total); err != nil {
		return nil, err
	}

	const qList = `
		SELECT ` + assetColumns + `
		FROM assets
		WHERE ($1::text IS NULL OR kind = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.QueryContext(ctx, qList, kind, lq.Limit, lq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Asset, 0)
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.Asset]{
		Items: items,
		Total: total,
	}, nil
}

func (r *AssetPostgres) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM assets WHERE id = $1`
	_, err := r.db.ExecContext(ctx, q, id)
	return err
}

func scanAsset(row rowScanner) (*model.Asset, error) {
	var (
		a        model.Asset
		kind     string
		md       []byte
		clientMD []byte
	)
	if err := row.Scan(
		&a.ID,
		&a.OriginalName,
		&a.Filename,
		&a.MimeType,
		&kind,
		&a.Size,
		&a.StorageKey,
		&a.Path,
		&a.URL,
		&a.ThumbnailKey,
		&a.ThumbnailURL,
		&md,
		&clientMD,
		&a.CreatedAt,
	); err != nil {
		return nil, err
	}
	a.Kind = model.Kind(kind)
	if len(md) > 0 {
		if err := json.Unmarshal(md, &a.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata of %s: %w", a.ID, err)
		}
	}
	if len(clientMD) > 0 {
		a.ClientMetadata = clientMD
	}
	return &a, nil
}
