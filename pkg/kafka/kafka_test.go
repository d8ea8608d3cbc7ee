package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func (w *fakeWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.msgs)
}

func TestProducerEncodesJSON(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "gzip")
	if err := p.Publish(context.Background(), "forecasts", []byte("AAPL"), map[string]int{"horizon": 30}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(w.msgs) != 1 || string(w.msgs[0].Key) != "AAPL" || w.msgs[0].Topic != "forecasts" {
		t.Fatalf("unexpected messages %+v", w.msgs)
	}
	var got map[string]int
	if err := json.Unmarshal(w.msgs[0].Value, &got); err != nil || got["horizon"] != 30 {
		t.Fatalf("unexpected payload %s", w.msgs[0].Value)
	}
	if err := p.PublishMessage(context.Background(), "logs", "raw"); err != nil {
		t.Fatalf("publish message: %v", err)
	}
	if string(w.msgs[1].Value) != "raw" || w.msgs[1].Key != nil {
		t.Fatalf("string payloads must be sent unchanged and unkeyed")
	}
}

func TestProducerWrapsWriteError(t *testing.T) {
	p := newProducer(&fakeWriter{err: errors.New("down")}, "gzip")
	if err := p.Publish(context.Background(), "t", nil, "x"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestNewProducerRequiresBrokers(t *testing.T) {
	if _, err := NewProducer(); err == nil {
		t.Fatalf("expected error without brokers")
	}
}

type fakeReader struct {
	msgs      chan kafka.Message
	committed int32
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	atomic.AddInt32(&r.committed, int32(len(msgs)))
	return nil
}

func (r *fakeReader) Close() error { return nil }

type funcHandler struct {
	topic string
	fn    func([]byte) error
}

func (h funcHandler) Topic() string                            { return h.topic }
func (h funcHandler) Handle(_ context.Context, b []byte) error { return h.fn(b) }

func TestConsumerRetriesThenDLQ(t *testing.T) {
	reader := &fakeReader{msgs: make(chan kafka.Message, 2)}
	dlq := &fakeWriter{}
	cfg := &ConsumerConfig{WorkerCount: 1, BufferSize: 1, RetryMax: 2, BackoffMin: time.Millisecond, BackoffMax: time.Millisecond, DLQTopic: "dlq"}
	c := newConsumer(cfg, nil, func(string) messageReader { return reader })
	c.dlq = dlq

	var calls int32
	c.RegisterHandler(funcHandler{topic: "warmup", fn: func([]byte) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("bad")
	}})
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	reader.msgs <- kafka.Message{Value: []byte("x")}

	deadline := time.Now().Add(2 * time.Second)
	for dlq.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
	if dlq.count() != 1 || atomic.LoadInt32(&reader.committed) != 1 {
		t.Fatalf("expected dlq write and commit, got dlq=%d committed=%d", dlq.count(), atomic.LoadInt32(&reader.committed))
	}
}

func TestConsumerCommitsOnSuccess(t *testing.T) {
	reader := &fakeReader{msgs: make(chan kafka.Message, 3)}
	cfg := &ConsumerConfig{WorkerCount: 2, BufferSize: 4, RetryMax: 0}
	c := newConsumer(cfg, nil, func(string) messageReader { return reader })
	var handled int32
	c.RegisterHandler(funcHandler{topic: "warmup", fn: func([]byte) error {
		atomic.AddInt32(&handled, 1)
		return nil
	}})
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	for i := 0; i < 3; i++ {
		reader.msgs <- kafka.Message{Value: []byte("ok")}
	}
	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&reader.committed) < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	_ = c.Stop(context.Background())
	if atomic.LoadInt32(&handled) != 3 || atomic.LoadInt32(&reader.committed) != 3 {
		t.Fatalf("expected 3 handled and committed, got %d/%d", atomic.LoadInt32(&handled), atomic.LoadInt32(&reader.committed))
	}
}

func TestBackoffWithJitterBounds(t *testing.T) {
	for attempt := 1; attempt < 10; attempt++ {
		d := backoffWithJitter(10*time.Millisecond, 100*time.Millisecond, attempt)
		if d <= 0 || d > 100*time.Millisecond {
			t.Fatalf("attempt %d: backoff %v out of range", attempt, d)
		}
	}
}
