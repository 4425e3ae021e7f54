package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"assetapi/internal/events"
	"assetapi/internal/ingest"
	"assetapi/internal/metrics"
	"assetapi/internal/model"
	"assetapi/internal/repository"
	"assetapi/internal/storage"
)

var (
	ErrNoFiles      = errors.New("no files uploaded")
	ErrTooManyFiles = errors.New("too many files")
	ErrIDRequired   = errors.New("id is required")
	ErrNotFound     = errors.New("asset not found")
	ErrInvalidKind  = errors.New("invalid asset kind")

	// ErrContentNotRemoved is returned by Delete when the catalog row is gone but stored
	// content could not be deleted.
	ErrContentNotRemoved = errors.New("asset content not removed")
)

const (
	DefaultListLimit = 10
	MaxListLimit     = 100
	DefaultMaxFiles  = 10

	DefaultPublishTimeout = 5 * time.Second

	// a generated name that already exists is regenerated this many times
	maxNameAttempts = 3
)

var tracer = otel.Tracer("assetapi/internal/service")

// UploadFile is one part of an upload batch as received from the client.
type UploadFile struct {
	OriginalName string
	ContentType  string
	Data         []byte
	// ClientMetadata is the optional client-declared JSON sent alongside the file.
	ClientMetadata []byte
}

// Manifest is the response to a successful upload batch.
type Manifest struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Files   []model.Asset `json:"files"`
}

// AssetListResult is the service-level DTO for paginated assets.
type AssetListResult struct {
	Items []model.Asset `json:"data"`
	Total int           `json:"total"`
}

// AssetService defines the use cases for design assets.
type AssetService interface {
	// Ingest validates the whole batch, stores every file with its thumbnail, records the
	// batch in the catalog and announces it. On any failure every stored object is removed.
	Ingest(ctx context.Context, files []UploadFile) (*Manifest, error)

	// List returns assets newest first, optionally filtered by kind.
	List(ctx context.Context, limit, offset int, kind string) (*AssetListResult, error)

	Get(ctx context.Context, id string) (*model.Asset, error)

	// Delete removes the catalog row, then the file and its thumbnail.
	Delete(ctx context.Context, id string) error

	// DownloadURL returns a time-limited URL for the original file.
	DownloadURL(ctx context.Context, id string) (string, error)

	// Open streams stored content by storage key.
	Open(ctx context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error)
}

// Options tune the ingest pipeline.
type Options struct {
	Policy         ingest.Policy
	Thumbnail      ingest.ThumbnailOptions
	MaxFiles       int
	PublicPrefix   string
	DownloadExpiry time.Duration
	// PublishTimeout bounds the upload event publish after the batch is committed.
	PublishTimeout time.Duration
}

type assetService struct {
	store   storage.Storage
	repo    repository.AssetRepository
	pub     events.Publisher
	metrics *metrics.IngestMetrics
	log     logrus.FieldLogger
	opts    Options
	now     func() time.Time
}

// NewAssetService constructs the service. pub and m may be nil; a zero Policy means
// ingest.DefaultPolicy.
func NewAssetService(store storage.Storage, repo repository.AssetRepository, pub events.Publisher, m *metrics.IngestMetrics, log logrus.FieldLogger, opts Options) AssetService {
	if pub == nil {
		pub = events.Noop{}
	}
	if opts.Policy == (ingest.Policy{}) {
		opts.Policy = ingest.DefaultPolicy()
	}
	if opts.MaxFiles <= 0 {
		opts.MaxFiles = DefaultMaxFiles
	}
	if opts.DownloadExpiry <= 0 {
		opts.DownloadExpiry = 15 * time.Minute
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = DefaultPublishTimeout
	}
	opts.PublicPrefix = strings.TrimRight(opts.PublicPrefix, "/")
	return &assetService{
		store:   store,
		repo:    repo,
		pub:     pub,
		metrics: m,
		log:     log.WithField("component", "assets"),
		opts:    opts,
		now:     time.Now,
	}
}

func (s *assetService) Ingest(ctx context.Context, files []UploadFile) (_ *Manifest, err error) {
	start := time.Now()
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	if len(files) > s.opts.MaxFiles {
		return nil, ErrTooManyFiles
	}

	ctx, span := tracer.Start(ctx, "assets.ingest", trace.WithAttributes(attribute.Int("files", len(files))))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.metrics.Batch(metrics.OutcomeFailure, time.Since(start))
		} else {
			s.metrics.Batch(metrics.OutcomeSuccess, time.Since(start))
		}
		span.End()
	}()

	// Validate the whole batch before anything is written.
	for i := range files {
		mt := ingest.NormalizeMIME(files[i].ContentType)
		if err := s.opts.Policy.Check(mt, files[i].Data); err != nil {
			return nil, fmt.Errorf("file %d (%s): %w", i, files[i].OriginalName, err)
		}
	}

	var written []string
	assets := make([]model.Asset, 0, len(files))
	for i := range files {
		if err := ctx.Err(); err != nil {
			return nil, s.rollback(ctx, written, err)
		}
		a, keys, err := s.ingestOne(ctx, files[i])
		written = append(written, keys...)
		if err != nil {
			return nil, s.rollback(ctx, written, fmt.Errorf("file %d (%s): %w", i, files[i].OriginalName, err))
		}
		assets = append(assets, a)
	}

	if err := s.repo.CreateBatch(ctx, assets); err != nil {
		return nil, s.rollback(ctx, written, fmt.Errorf("record batch: %w", err))
	}

	for _, a := range assets {
		s.metrics.FileStored(string(a.Kind), a.Size)
	}
	s.publish(ctx, assets)

	return &Manifest{
		Success: true,
		Message: fmt.Sprintf("%d files uploaded", len(assets)),
		Files:   assets,
	}, nil
}

// ingestOne stores one validated file. The returned keys were written even when err is set.
func (s *assetService) ingestOne(ctx context.Context, f UploadFile) (model.Asset, []string, error) {
	ctx, span := tracer.Start(ctx, "assets.ingest_file", trace.WithAttributes(
		attribute.String("asset.original_name", f.OriginalName),
		attribute.Int("asset.size", len(f.Data)),
	))
	defer span.End()

	mt := ingest.NormalizeMIME(f.ContentType)
	log := s.log.WithFields(logrus.Fields{"original_name": f.OriginalName, "mimetype": mt})

	md, err := ingest.Extract(mt, f.Data)
	if err != nil {
		log.WithError(err).Warn("metadata extraction failed")
		md = model.Metadata{}
	}

	now := s.now()
	var (
		filename string
		info     storage.ObjectInfo
	)
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		filename = ingest.GenerateFilename(f.OriginalName, now)
		info, err = s.store.Put(ctx, filename, bytes.NewReader(f.Data), storage.PutObjectOptions{
			Size:        int64(len(f.Data)),
			ContentType: mt,
			Metadata:    map[string]string{"original-filename": f.OriginalName},
		})
		if !errors.Is(err, storage.ErrObjectExists) {
			break
		}
		log.WithField("filename", filename).Warn("generated name already taken, regenerating")
	}
	if err != nil {
		span.RecordError(err)
		return model.Asset{}, nil, fmt.Errorf("store: %w", err)
	}
	keys := []string{filename}

	a := model.Asset{
		ID:             ingest.NewID(now),
		OriginalName:   f.OriginalName,
		Filename:       filename,
		MimeType:       mt,
		Kind:           ingest.KindOf(mt, md),
		Size:           int64(len(f.Data)),
		Path:           info.Location,
		URL:            s.publicURL(filename),
		Metadata:       md,
		ClientMetadata: s.clientMetadata(log, f.ClientMetadata),
		CreatedAt:      now.UTC(),
		StorageKey:     filename,
	}
	span.SetAttributes(attribute.String("asset.id", a.ID), attribute.String("asset.kind", string(a.Kind)))

	if !ingest.CanThumbnail(mt) {
		s.metrics.Thumbnail(metrics.OutcomeSkipped)
		return a, keys, nil
	}

	thumb, err := ingest.Thumbnail(f.Data, s.opts.Thumbnail)
	if err != nil {
		log.WithError(err).Warn("thumbnail generation failed")
		s.metrics.Thumbnail(metrics.OutcomeFailure)
		return a, keys, nil
	}

	thumbKey := storage.ThumbnailDir + "/" + ingest.ThumbnailName(filename)
	if _, err := s.store.Put(ctx, thumbKey, bytes.NewReader(thumb), storage.PutObjectOptions{
		Size:        int64(len(thumb)),
		ContentType: ingest.MIMEJPEG,
	}); err != nil {
		if errors.Is(err, storage.ErrObjectExists) {
			log.WithField("thumbnail_key", thumbKey).Warn("thumbnail already exists, skipping")
			s.metrics.Thumbnail(metrics.OutcomeFailure)
			return a, keys, nil
		}
		return model.Asset{}, keys, fmt.Errorf("store thumbnail: %w", err)
	}
	keys = append(keys, thumbKey)
	s.metrics.Thumbnail(metrics.OutcomeSuccess)

	a.ThumbnailKey = thumbKey
	a.ThumbnailURL = s.publicURL(thumbKey)
	return a, keys, nil
}

// publish announces a committed batch. The batch stands whatever happens here, so the
// publish gets its own deadline and outlives a cancelled request.
func (s *assetService) publish(ctx context.Context, assets []model.Asset) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.PublishTimeout)
	defer cancel()
	if err := s.pub.AssetsUploaded(ctx, assets); err != nil {
		s.log.WithError(err).WithField("count", len(assets)).Warn("failed to publish upload events")
	}
}

// rollback deletes written keys in reverse order and returns cause joined with any delete failures.
func (s *assetService) rollback(ctx context.Context, keys []string, cause error) error {
	if len(keys) == 0 {
		return cause
	}
	ctx = context.WithoutCancel(ctx)

	errs := []error{cause}
	for i := len(keys) - 1; i >= 0; i-- {
		if err := s.store.Delete(ctx, keys[i]); err != nil {
			s.log.WithError(err).WithField("key", keys[i]).Error("rollback delete failed")
			errs = append(errs, fmt.Errorf("rollback delete %s: %w", keys[i], err))
		}
	}
	s.log.WithError(cause).WithField("keys", len(keys)).Warn("upload batch rolled back")
	return errors.Join(errs...)
}

func (s *assetService) clientMetadata(log logrus.FieldLogger, raw []byte) []byte {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	if !json.Valid(raw) {
		log.Warn("ignoring malformed client metadata")
		return nil
	}
	return raw
}

func (s *assetService) publicURL(key string) string {
	return s.opts.PublicPrefix + "/" + key
}

func (s *assetService) List(ctx context.Context, limit, offset int, kind string) (*AssetListResult, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	k := model.Kind(strings.ToLower(strings.TrimSpace(kind)))
	if k != "" && !k.Valid() {
		return nil, ErrInvalidKind
	}

	res, err := s.repo.List(ctx, repository.ListQuery{
		PageQuery: repository.PageQuery{Limit: limit, Offset: offset},
		Kind:      k,
	})
	if err != nil {
		return nil, err
	}
	return &AssetListResult{Items: res.Items, Total: res.Total}, nil
}

func (s *assetService) Get(ctx context.Context, id string) (*model.Asset, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	if !ingest.ValidID(id) {
		return nil, ErrNotFound
	}
	a, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

func (s *assetService) Delete(ctx context.Context, id string) error {
	a, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	// The row goes first so the catalog never points at missing content.
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete catalog row: %w", err)
	}

	ctx = context.WithoutCancel(ctx)
	var errs []error
	for _, key := range []string{a.StorageKey, a.ThumbnailKey} {
		if key == "" {
			continue
		}
		if err := s.store.Delete(ctx, key); err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{"id": id, "key": key}).
				Error("asset removed from catalog, stored content left behind")
			errs = append(errs, fmt.Errorf("delete %s: %w", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrContentNotRemoved, errors.Join(errs...))
	}
	return nil
}

func (s *assetService) DownloadURL(ctx context.Context, id string) (string, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return s.store.PresignGet(ctx, a.StorageKey, s.opts.DownloadExpiry)
}

func (s *assetService) Open(ctx context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error) {
	rc, info, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, storage.ObjectInfo{}, ErrNotFound
		}
		return nil, storage.ObjectInfo{}, err
	}
	return rc, info, nil
}
