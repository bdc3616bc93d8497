package events

import (
	"context"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	sdk "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const defaultBufferSize = 1024

// messageWriter is the part of *sdk.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...sdk.Message) error
	Close() error
}

// KafkaPublisher queues events and writes them from one background worker.
type KafkaPublisher struct {
	writer messageWriter
	bucket chan Event
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewKafkaPublisher starts a publisher writing to topic on brokers.
func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) *KafkaPublisher {
	writer := &sdk.Writer{
		Addr:         sdk.TCP(brokers...),
		Topic:        topic,
		RequiredAcks: sdk.RequireOne,
		Balancer:     &sdk.Hash{},
		BatchTimeout: 50 * time.Millisecond,
	}
	return newKafkaPublisher(writer, defaultBufferSize, logger)
}

func newKafkaPublisher(writer messageWriter, bufferSize int, logger *zap.Logger) *KafkaPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &KafkaPublisher{
		writer: writer,
		bucket: make(chan Event, bufferSize),
		logger: logger,
	}
	p.wg.Add(1)
	go p.run()
	return p
}

// Publish enqueues the event. A full queue or a closed publisher drops it with a warning.
func (p *KafkaPublisher) Publish(_ context.Context, event Event) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.logger.Warn("publisher closed, dropping event",
			zap.String("type", event.Type),
			zap.String("conversation_id", event.ConversationID),
		)
		return
	}
	select {
	case p.bucket <- event:
	default:
		p.logger.Warn("event queue full, dropping event",
			zap.String("type", event.Type),
			zap.String("conversation_id", event.ConversationID),
		)
	}
}

func (p *KafkaPublisher) run() {
	defer p.wg.Done()

	for event := range p.bucket {
		serialized, err := json.Marshal(event)
		if err != nil {
			p.logger.Error("failed to encode event", zap.String("type", event.Type), zap.Error(err))
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = p.writer.WriteMessages(ctx, sdk.Message{
			Key:   []byte(event.ConversationID),
			Value: serialized,
		})
		cancel()
		if err != nil {
			p.logger.Error("failed to publish event", zap.String("type", event.Type), zap.Error(err))
		}
	}
}

// Close drains queued events and closes the writer. Later calls are no-ops.
func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.bucket)
	p.mu.Unlock()

	p.wg.Wait()
	return p.writer.Close()
}
