// Package events announces committed uploads to downstream consumers.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"assetapi/internal/config"
	"assetapi/internal/model"
)

// EventAssetUploaded is the event name carried in every upload message.
const EventAssetUploaded = "asset.uploaded"

// Publisher is notified after an upload batch is committed.
type Publisher interface {
	AssetsUploaded(ctx context.Context, assets []model.Asset) error
	Close() error
}

// UploadedEvent is the message value written per asset. Metadata is omitted when
// nothing was extracted.
type UploadedEvent struct {
	Event        string          `json:"event"`
	ID           string          `json:"id"`
	Filename     string          `json:"filename"`
	MimeType     string          `json:"mimetype"`
	Kind         model.Kind      `json:"kind"`
	Size         int64           `json:"size"`
	URL          string          `json:"url"`
	ThumbnailURL string          `json:"thumbnailUrl,omitempty"`
	Metadata     *model.Metadata `json:"metadata,omitempty"`
	OccurredAt   time.Time       `json:"occurredAt"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaPublisher struct {
	w   messageWriter
	now func() time.Time
	log logrus.FieldLogger
}

// New returns a Kafka publisher, or a no-op one when no brokers are configured.
func New(cfg config.KafkaConfig, log logrus.FieldLogger) Publisher {
	if len(cfg.Brokers) == 0 {
		log.WithField("component", "events").Info("no kafka brokers configured, upload events disabled")
		return Noop{}
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
	return newKafkaPublisher(w, log)
}

func newKafkaPublisher(w messageWriter, log logrus.FieldLogger) *kafkaPublisher {
	return &kafkaPublisher{w: w, now: time.Now, log: log.WithField("component", "events")}
}

// AssetsUploaded writes one message per asset keyed by asset id.
func (p *kafkaPublisher) AssetsUploaded(ctx context.Context, assets []model.Asset) error {
	if len(assets) == 0 {
		return nil
	}
	at := p.now().UTC()
	msgs := make([]kafka.Message, 0, len(assets))
	for _, a := range assets {
		var md *model.Metadata
		if !a.Metadata.IsZero() {
			md = &a.Metadata
		}
		value, err := json.Marshal(UploadedEvent{
			Event:        EventAssetUploaded,
			ID:           a.ID,
			Filename:     a.Filename,
			MimeType:     a.MimeType,
			Kind:         a.Kind,
			Size:         a.Size,
			URL:          a.URL,
			ThumbnailURL: a.ThumbnailURL,
			Metadata:     md,
			OccurredAt:   at,
		})
		if err != nil {
			return fmt.Errorf("encode event for %s: %w", a.ID, err)
		}
		msgs = append(msgs, kafka.Message{Key: []byte(a.ID), Value: value})
	}
	if err := p.w.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write upload events: %w", err)
	}
	p.log.WithField("count", len(msgs)).Debug("upload events published")
	return nil
}

func (p *kafkaPublisher) Close() error {
	return p.w.Close()
}

// Noop discards events.
type Noop struct{}

func (Noop) AssetsUploaded(context.Context, []model.Asset) error { return nil }
func (Noop) Close() error                                         { return nil }
