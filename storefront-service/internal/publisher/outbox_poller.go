package publisher

import (
	"context"
	"time"

	"github.com/fjod/template_store/storefront-service/internal/repository"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	Topic     = "purchase-outbox"
	batchSize = 100
)

// MessageWriter is the part of *kafka.Writer the poller uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// OutboxPoller forwards purchase events from the outbox table to Kafka.
// Events stay unprocessed until the broker acknowledges them, so delivery
// is at least once.
type OutboxPoller struct {
	tick   time.Duration
	repo   repository.OutboxRepository
	writer MessageWriter
	logger *zap.Logger
}

func NewOutboxPoller(repo repository.OutboxRepository, logger *zap.Logger, brokers ...string) *OutboxPoller {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		WriteTimeout:           10 * time.Second,
	}
	return newOutboxPoller(repo, w, time.Second, logger)
}

func newOutboxPoller(repo repository.OutboxRepository, writer MessageWriter, tick time.Duration, logger *zap.Logger) *OutboxPoller {
	return &OutboxPoller{
		tick:   tick,
		repo:   repo,
		writer: writer,
		logger: logger,
	}
}

// Run polls until ctx is cancelled.
func (p *OutboxPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.processUnpublishedEvents(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) Close() error {
	return p.writer.Close()
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) {
	events, err := p.repo.GetUnprocessedEvents(ctx, batchSize)
	if err != nil {
		p.logger.Error("failed to fetch outbox events", zap.Error(err))
		return
	}

	for _, event := range events {
		if err := p.publish(ctx, event); err != nil {
			p.logger.Warn("failed to publish outbox event", zap.Int64("event_id", event.ID), zap.Error(err))
			// keep ordering per aggregate: retry the rest on the next tick
			return
		}

		if err := p.repo.MarkEventAsProcessed(ctx, event.ID); err != nil {
			p.logger.Error("failed to mark outbox event processed", zap.Int64("event_id", event.ID), zap.Error(err))
			continue
		}
		p.logger.Debug("outbox event published",
			zap.Int64("event_id", event.ID),
			zap.String("event_type", event.EventType),
			zap.String("aggregate_id", event.AggregateID))
	}
}

func (p *OutboxPoller) publish(ctx context.Context, event *repository.OutboxEvent) error {
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.AggregateID), // transaction_id
		Value: event.Payload,
		Time:  event.CreatedAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	})
}
