package publisher

import (
	"context"
	"sync"

	"github.com/fjod/template_store/storefront-service/internal/repository"
	"github.com/segmentio/kafka-go"
)

type MockOutboxRepository struct {
	mu           sync.Mutex
	Events       []*repository.OutboxEvent
	GetErr       error
	MarkErr      error
	ProcessedIDs []int64
}

func (m *MockOutboxRepository) GetUnprocessedEvents(_ context.Context, limit int) ([]*repository.OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.GetErr != nil {
		return nil, m.GetErr
	}

	var out []*repository.OutboxEvent
	for _, ev := range m.Events {
		if m.processed(ev.ID) {
			continue
		}
		out = append(out, ev)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MockOutboxRepository) MarkEventAsProcessed(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.MarkErr != nil {
		return m.MarkErr
	}
	m.ProcessedIDs = append(m.ProcessedIDs, id)
	return nil
}

func (m *MockOutboxRepository) Processed() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.ProcessedIDs...)
}

func (m *MockOutboxRepository) processed(id int64) bool {
	for _, p := range m.ProcessedIDs {
		if p == id {
			return true
		}
	}
	return false
}

type MockWriter struct {
	mu       sync.Mutex
	Messages []kafka.Message
	// FailKeys makes writes of messages with these keys fail.
	FailKeys map[string]error
	Closed   bool
}

func (w *MockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, m := range msgs {
		if err := w.FailKeys[string(m.Key)]; err != nil {
			return err
		}
	}
	w.Messages = append(w.Messages, msgs...)
	return nil
}

func (w *MockWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Closed = true
	return nil
}

func (w *MockWriter) Written() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.Messages...)
}
