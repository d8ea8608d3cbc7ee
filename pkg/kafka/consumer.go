package kafka

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"

	"PriceCast/pkg/logger"
)

// MessageHandler handles messages from a specific topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// messageReader is the subset of *kafka.Reader the consumer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads registered topics and dispatches messages to a worker pool.
// Offsets are committed after a message is handled, or after it has been
// written to the DLQ when retries are exhausted.
type Consumer struct {
	cfg       *ConsumerConfig
	log       *logger.Logger
	handlers  map[string]MessageHandler
	readers   map[string]messageReader
	newReader func(topic string) messageReader
	dlq       messageWriter
	msgChan   chan *inbound
	stopChan  chan struct{}
	stopOnce  sync.Once
	readersWG sync.WaitGroup
	workersWG sync.WaitGroup
}

type inbound struct {
	topic  string
	msg    kafka.Message
	reader messageReader
}

// NewConsumer creates a new Kafka consumer.
func NewConsumer(log *logger.Logger, opts ...ConsumerOption) (*Consumer, error) {
	cfg := &ConsumerConfig{
		GroupID:     "pricecast",
		WorkerCount: 1,
		BufferSize:  16,
		RetryMax:    3,
		BackoffMin:  50 * time.Millisecond,
		BackoffMax:  2 * time.Second,
		MinBytes:    1,
		MaxBytes:    1e6,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}

	c := newConsumer(cfg, log, func(topic string) messageReader {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			Topic:    topic,
			GroupID:  cfg.GroupID,
			MinBytes: cfg.MinBytes,
			MaxBytes: cfg.MaxBytes,
		})
	})
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Balancer: &kafka.LeastBytes{}}
	}
	return c, nil
}

func newConsumer(cfg *ConsumerConfig, log *logger.Logger, newReader func(string) messageReader) *Consumer {
	if log == nil {
		log = logger.NewNop()
	}
	initConsumerMetricsOnce()
	return &Consumer{
		cfg:       cfg,
		log:       log,
		handlers:  make(map[string]MessageHandler),
		readers:   make(map[string]messageReader),
		newReader: newReader,
		msgChan:   make(chan *inbound, cfg.BufferSize),
		stopChan:  make(chan struct{}),
	}
}

// RegisterHandler registers a handler for its topic. A second handler for the same topic is ignored.
func (c *Consumer) RegisterHandler(handler MessageHandler) {
	topic := handler.Topic()
	if _, ok := c.handlers[topic]; ok {
		c.log.Warn("kafka handler already registered", logger.String("topic", topic))
		return
	}
	c.handlers[topic] = handler
}

// Start launches one reader goroutine per topic and the worker pool.
func (c *Consumer) Start(ctx context.Context) error {
	if len(c.handlers) == 0 {
		return errors.New("no handlers registered")
	}
	for i := 0; i < c.cfg.WorkerCount; i++ {
		c.workersWG.Add(1)
		go c.worker()
	}
	for topic := range c.handlers {
		r := c.newReader(topic)
		c.readers[topic] = r
		c.readersWG.Add(1)
		go c.read(ctx, topic, r)
	}
	c.log.Info("kafka consumer started",
		logger.Int("workers", c.cfg.WorkerCount),
		logger.Int("topics", len(c.handlers)),
	)
	return nil
}

// Stop drains in-flight messages and closes readers, bounded by ctx.
func (c *Consumer) Stop(ctx context.Context) error {
	var stopErr error
	c.stopOnce.Do(func() {
		close(c.stopChan)
		done := make(chan struct{})
		go func() {
			c.readersWG.Wait()
			close(c.msgChan)
			c.workersWG.Wait()
			close(done)
		}()
		select {
		case <-ctx.Done():
			stopErr = fmt.Errorf("timeout waiting for consumer to stop: %w", ctx.Err())
		case <-done:
		}
		for topic, r := range c.readers {
			if err := r.Close(); err != nil {
				c.log.Warn("close kafka reader", logger.String("topic", topic), logger.Error(err))
			}
		}
		if c.dlq != nil {
			if err := c.dlq.Close(); err != nil {
				c.log.Warn("close dlq writer", logger.Error(err))
			}
		}
	})
	return stopErr
}

func (c *Consumer) read(ctx context.Context, topic string, r messageReader) {
	defer c.readersWG.Done()
	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.stopChan:
			cancel()
		case <-readCtx.Done():
		}
	}()

	for {
		msg, err := r.FetchMessage(readCtx)
		if err != nil {
			if readCtx.Err() != nil {
				return
			}
			c.log.Warn("kafka fetch failed", logger.String("topic", topic), logger.Error(err))
			if !sleepOrStop(readCtx, c.cfg.BackoffMin) {
				return
			}
			continue
		}
		select {
		case c.msgChan <- &inbound{topic: topic, msg: msg, reader: r}:
			consumerQueueDepth.WithLabelValues(topic).Set(float64(len(c.msgChan)))
		case <-readCtx.Done():
			return
		}
	}
}

func (c *Consumer) worker() {
	defer c.workersWG.Done()
	for in := range c.msgChan {
		c.handle(in)
	}
}

func (c *Consumer) handle(in *inbound) {
	handler := c.handlers[in.topic]
	start := time.Now()
	ctx := context.Background()

	var err error
	attempts := 0
	for {
		attempts++
		err = c.safeHandle(ctx, handler, in.msg.Value)
		if err == nil || attempts > c.cfg.RetryMax {
			break
		}
		select {
		case <-time.After(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempts)):
		case <-c.stopChan:
			// uncommitted; redelivered after restart
			return
		}
	}

	result := "ok"
	if err != nil {
		result = "error"
		c.log.Error("kafka message handling failed",
			logger.String("topic", in.topic),
			logger.Int("attempts", attempts),
			logger.Error(err),
		)
		if c.dlq != nil && c.cfg.DLQTopic != "" {
			dlqErr := c.dlq.WriteMessages(ctx, kafka.Message{
				Topic:   c.cfg.DLQTopic,
				Key:     in.msg.Key,
				Value:   in.msg.Value,
				Time:    time.Now(),
				Headers: []kafka.Header{{Key: "source_topic", Value: []byte(in.topic)}},
			})
			if dlqErr != nil {
				c.log.Error("dlq write failed", logger.String("topic", c.cfg.DLQTopic), logger.Error(dlqErr))
			}
		}
	}
	consumerHandled.WithLabelValues(in.topic, result).Inc()
	consumerHandleLatency.WithLabelValues(in.topic).Observe(time.Since(start).Seconds())

	if err == nil || c.dlq != nil {
		commitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if cerr := in.reader.CommitMessages(commitCtx, in.msg); cerr != nil {
			c.log.Warn("kafka commit failed", logger.String("topic", in.topic), logger.Error(cerr))
		}
	}
}

func (c *Consumer) safeHandle(ctx context.Context, h MessageHandler, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.Handle(ctx, data)
}

func sleepOrStop(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	exp := min * time.Duration(1<<uint(attempt-1))
	if exp > max || exp <= 0 {
		exp = max
	}
	// up to 50% jitter
	if half := int64(exp) / 2; half > 0 {
		exp -= time.Duration(rand.Int63n(half))
	}
	return exp
}

var (
	consumerQueueDepth    *prometheus.GaugeVec
	consumerHandled       *prometheus.CounterVec
	consumerHandleLatency *prometheus.HistogramVec
	consumerOnce          sync.Once
)

func initConsumerMetricsOnce() {
	consumerOnce.Do(func() {
		consumerQueueDepth = promauto.NewGaugeVec(
			prometheus.GaugeOpts{Name: "pricecast_kafka_consumer_queue_depth", Help: "Messages waiting for a worker"},
			[]string{"topic"},
		)
		consumerHandled = promauto.NewCounterVec(
			prometheus.CounterOpts{Name: "pricecast_kafka_consumer_messages_total", Help: "Messages handled by result"},
			[]string{"topic", "result"},
		)
		consumerHandleLatency = promauto.NewHistogramVec(
			prometheus.HistogramOpts{Name: "pricecast_kafka_consumer_handle_seconds", Help: "Handling time per message"},
			[]string{"topic"},
		)
	})
}
