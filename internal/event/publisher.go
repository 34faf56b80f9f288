package event

import (
	"context"
	"log/slog"

	pkgkafka "github.com/blindfoldanimeshka/neuro-search-project-sub001/pkg/kafka"
)

// Kafka topics published by the search index.
const (
	TopicIndexEvicted     = "neurosearch.index.evicted"
	TopicIndexCleared     = "neurosearch.index.cleared"
	TopicReindexCompleted = "neurosearch.index.reindexed"
)

const (
	aggregateIndex = "search-index"
	sourceService  = "search-index"
)

// IndexEvictedData is the payload of an index.evicted event.
type IndexEvictedData struct {
	Removed int `json:"removed"`
}

// ReindexCompletedData is the payload of an index.reindexed event.
type ReindexCompletedData struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

// eventProducer is the slice of the Kafka producer the publisher needs.
type eventProducer interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Publisher emits index lifecycle events so downstream services (cache
// invalidation, monitoring) learn when the index changed shape wholesale.
// Publishing is best-effort: a broker hiccup must never fail the operation
// that triggered the event.
type Publisher struct {
	producer eventProducer
	logger   *slog.Logger
}

// NewPublisher creates a lifecycle event publisher on top of a Kafka producer.
func NewPublisher(producer eventProducer, logger *slog.Logger) *Publisher {
	return &Publisher{
		producer: producer,
		logger:   logger,
	}
}

// IndexCleared announces that the whole index was emptied.
func (p *Publisher) IndexCleared(ctx context.Context) {
	p.publish(ctx, TopicIndexCleared, struct{}{})
}

// IndexEvicted announces a retention sweep that removed products.
func (p *Publisher) IndexEvicted(ctx context.Context, removed int) {
	p.publish(ctx, TopicIndexEvicted, IndexEvictedData{Removed: removed})
}

// ReindexCompleted announces a finished full reindex from the collector.
func (p *Publisher) ReindexCompleted(ctx context.Context, added, updated, failed int) {
	p.publish(ctx, TopicReindexCompleted, ReindexCompletedData{
		Added:   added,
		Updated: updated,
		Failed:  failed,
	})
}

func (p *Publisher) publish(ctx context.Context, topic string, data any) {
	event, err := pkgkafka.NewEvent(topic, aggregateIndex, "index", sourceService, data)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to build lifecycle event",
			slog.String("topic", topic),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := p.producer.Publish(ctx, topic, event); err != nil {
		p.logger.ErrorContext(ctx, "failed to publish lifecycle event",
			slog.String("topic", topic),
			slog.String("error", err.Error()),
		)
	}
}
