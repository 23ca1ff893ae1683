package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/LewiysArito/simple-ddd-order-flow/pkg/outbox"
)

// Publisher adapts a kafka-go writer to the outbox.Publisher contract. The
// writer is a process-wide shared resource: Connect/Disconnect bracket its
// lifetime independently of any single order's lifecycle.
type Publisher struct {
	client *Client

	mu     sync.Mutex
	writer *kafka.Writer
}

func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

func (p *Publisher) Connect(ctx context.Context) error {
	if !p.client.Enabled() {
		return ErrDisabled
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writer == nil {
		p.writer = p.client.NewWriter()
	}
	return nil
}

func (p *Publisher) Disconnect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writer == nil {
		return nil
	}
	err := p.writer.Close()
	p.writer = nil
	return err
}

// Publish writes one keyed message and waits for broker acks up to timeout.
// A deadline expiry maps to ErrPublishTimeout, which callers must treat as
// unknown outcome, not as definite failure.
func (p *Publisher) Publish(ctx context.Context, topic, key string, value []byte, timeout time.Duration) error {
	p.mu.Lock()
	writer := p.writer
	p.mu.Unlock()
	if writer == nil {
		return fmt.Errorf("%w: publisher is not connected", outbox.ErrPublishFailure)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Time:  time.Now().UTC(),
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", outbox.ErrPublishTimeout, err)
	}
	return fmt.Errorf("%w: %v", outbox.ErrPublishFailure, err)
}

// HealthCheck dials the first broker with a short deadline. Best effort: a
// false answer only means the probe failed, not that messages are lost.
func (p *Publisher) HealthCheck(ctx context.Context) bool {
	if !p.client.Enabled() {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	conn, err := kafka.DialContext(ctx, "tcp", p.client.Brokers[0])
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
