package kafka

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"

	"FinFuse/pkg/logger"
)

// MessageHandler handles messages from a specific topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type partitionKey struct {
	topic     string
	partition int
}

// Consumer reads registered topics and dispatches messages to a worker pool.
// Every partition is pinned to one worker, so its messages are handled and
// committed in offset order. A message that cannot be settled holds its
// partition: nothing after it is handled or committed until the group rebalances.
type Consumer struct {
	cfg      *ConsumerConfig
	log      *logger.Logger
	readers  map[string]*kafka.Reader
	handlers map[string]MessageHandler
	queues   []chan kafka.Message
	commit   func(context.Context, kafka.Message) error
	dlq      messageWriter
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	metrics  *consumerMetrics
}

// NewConsumer creates a new Kafka consumer.
func NewConsumer(log *logger.Logger, opts ...ConsumerOption) (*Consumer, error) {
	cfg := &ConsumerConfig{
		GroupID:     "default",
		WorkerCount: 1,
		BufferSize:  64,
		RetryMax:    3,
		BackoffMin:  50 * time.Millisecond,
		BackoffMax:  2 * time.Second,
		MinBytes:    1,
		MaxBytes:    10e6,
		Registerer:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	if log == nil {
		log = logger.Nop()
	}

	c := &Consumer{
		cfg:      cfg,
		log:      log,
		readers:  make(map[string]*kafka.Reader),
		handlers: make(map[string]MessageHandler),
		stop:     make(chan struct{}),
		metrics:  newConsumerMetrics(cfg.Registerer),
	}
	c.commit = c.commitToReader
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Topic: cfg.DLQTopic, Balancer: &kafka.LeastBytes{}}
	}
	return c, nil
}

// RegisterHandler registers a handler for its topic. A second handler for the same topic is ignored.
func (c *Consumer) RegisterHandler(h MessageHandler) {
	if _, ok := c.handlers[h.Topic()]; ok {
		c.log.Warn("kafka handler already registered", logger.String("topic", h.Topic()))
		return
	}
	c.handlers[h.Topic()] = h
}

// Start creates one reader per registered topic and starts the workers.
func (c *Consumer) Start() error {
	if len(c.handlers) == 0 {
		return fmt.Errorf("no handlers registered")
	}
	for topic := range c.handlers {
		c.readers[topic] = kafka.NewReader(kafka.ReaderConfig{
			Brokers:  c.cfg.Brokers,
			Topic:    topic,
			GroupID:  c.cfg.GroupID,
			MinBytes: c.cfg.MinBytes,
			MaxBytes: c.cfg.MaxBytes,
		})
	}

	c.startWorkers()

	var readers sync.WaitGroup
	for topic, r := range c.readers {
		readers.Add(1)
		go c.consume(&readers, topic, r)
	}
	// workers drain their queues once every reader has returned
	go func() {
		readers.Wait()
		c.closeQueues()
	}()

	c.log.Info("kafka consumer started",
		logger.Int("topics", len(c.readers)),
		logger.Int("workers", c.cfg.WorkerCount),
		logger.String("group", c.cfg.GroupID),
	)
	return nil
}

// Stop signals readers to stop and waits for in-flight messages until ctx expires.
func (c *Consumer) Stop(ctx context.Context) error {
	var err error
	c.stopOnce.Do(func() {
		close(c.stop)

		done := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			err = fmt.Errorf("timeout waiting for consumer to stop: %w", ctx.Err())
		}

		for topic, r := range c.readers {
			if cerr := r.Close(); cerr != nil {
				c.log.Error("close kafka reader", logger.String("topic", topic), logger.Error(cerr))
			}
		}
		if c.dlq != nil {
			if cerr := c.dlq.Close(); cerr != nil {
				c.log.Error("close dlq writer", logger.Error(cerr))
			}
		}
	})
	return err
}

func (c *Consumer) startWorkers() {
	workers := c.cfg.WorkerCount
	if workers < 1 {
		workers = 1
	}
	depth := c.cfg.BufferSize / workers
	if depth < 1 {
		depth = 1
	}
	c.queues = make([]chan kafka.Message, workers)
	for i := range c.queues {
		c.queues[i] = make(chan kafka.Message, depth)
		c.wg.Add(1)
		go c.worker(c.queues[i])
	}
}

func (c *Consumer) closeQueues() {
	for _, q := range c.queues {
		close(q)
	}
}

// slot maps a partition onto the worker that owns it.
func (c *Consumer) slot(topic string, partition int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(topic))
	return int((h.Sum32() + uint32(partition)) % uint32(len(c.queues)))
}

// dispatch queues msg for its partition's worker. It returns false once the consumer is stopping.
func (c *Consumer) dispatch(msg kafka.Message) bool {
	q := c.queues[c.slot(msg.Topic, msg.Partition)]
	select {
	case q <- msg:
		c.metrics.depth.WithLabelValues(msg.Topic).Set(float64(len(q)))
		return true
	case <-c.stop:
		return false
	}
}

func (c *Consumer) consume(wg *sync.WaitGroup, topic string, r *kafka.Reader) {
	defer wg.Done()
	for {
		select {
		case <-c.stop:
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		msg, err := r.FetchMessage(ctx)
		cancel()
		if err != nil {
			if !errors.Is(err, context.DeadlineExceeded) {
				c.log.Error("kafka fetch failed", logger.String("topic", topic), logger.Error(err))
			}
			continue
		}

		if !c.dispatch(msg) {
			return
		}
	}
}

func (c *Consumer) worker(q <-chan kafka.Message) {
	defer c.wg.Done()
	held := make(map[partitionKey]struct{})
	for msg := range q {
		key := partitionKey{topic: msg.Topic, partition: msg.Partition}
		if _, ok := held[key]; ok {
			continue
		}
		if !c.process(msg) {
			held[key] = struct{}{}
		}
	}
}

// process handles one message and reports whether it was settled, that is handled,
// parked in the DLQ or dropped as permanently broken. Only settled messages are committed.
func (c *Consumer) process(msg kafka.Message) bool {
	h, ok := c.handlers[msg.Topic]
	if !ok {
		return true
	}
	start := time.Now()

	err := c.handleWithRetry(h, msg.Value)
	// without a DLQ a transient failure must not be skipped: committing a later
	// offset of the partition would acknowledge this one as well
	for err != nil && c.dlq == nil && !IsPermanent(err) && !c.stopping() {
		c.log.Warn("kafka partition held by failing message",
			logger.String("topic", msg.Topic),
			logger.Int("partition", msg.Partition),
			logger.Int64("offset", msg.Offset),
			logger.Error(err),
		)
		err = c.handleWithRetry(h, msg.Value)
	}

	result, settled := "ok", true
	if err != nil {
		c.log.Error("kafka message failed",
			logger.String("topic", msg.Topic),
			logger.Int("partition", msg.Partition),
			logger.Int64("offset", msg.Offset),
			logger.Bool("permanent", IsPermanent(err)),
			logger.Error(err),
		)
		switch {
		case c.dlq != nil:
			if derr := c.park(msg); derr != nil {
				result, settled = "error", false
			} else {
				result = "dlq"
			}
		case IsPermanent(err):
			result = "dropped"
		default:
			result, settled = "error", false
		}
	}

	if settled {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if cerr := c.commit(ctx, msg); cerr != nil {
			c.log.Error("kafka commit failed", logger.String("topic", msg.Topic), logger.Error(cerr))
		}
		cancel()
	}

	c.metrics.handled.WithLabelValues(msg.Topic, result).Inc()
	c.metrics.latency.WithLabelValues(msg.Topic).Observe(time.Since(start).Seconds())
	return settled
}

// park writes msg to the DLQ, retrying until it succeeds or the consumer stops.
func (c *Consumer) park(msg kafka.Message) error {
	for attempt := 1; ; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := c.dlq.WriteMessages(ctx, kafka.Message{
			Key:     msg.Key,
			Value:   msg.Value,
			Headers: []kafka.Header{{Key: "source_topic", Value: []byte(msg.Topic)}},
		})
		cancel()
		if err == nil {
			return nil
		}
		c.log.Error("dlq write failed", logger.String("topic", c.cfg.DLQTopic), logger.Int("attempt", attempt), logger.Error(err))
		select {
		case <-time.After(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempt)):
		case <-c.stop:
			return err
		}
	}
}

func (c *Consumer) commitToReader(ctx context.Context, msg kafka.Message) error {
	r := c.readers[msg.Topic]
	if r == nil {
		return nil
	}
	return r.CommitMessages(ctx, msg)
}

func (c *Consumer) stopping() bool {
	select {
	case <-c.stop:
		return true
	default:
		return false
	}
}

func (c *Consumer) handleWithRetry(h MessageHandler, data []byte) (err error) {
	for attempt := 1; ; attempt++ {
		err = safeHandle(h, data)
		if err == nil || IsPermanent(err) || attempt > c.cfg.RetryMax {
			return err
		}
		select {
		case <-time.After(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempt)):
		case <-c.stop:
			return err
		}
	}
}

func safeHandle(h MessageHandler, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.Handle(context.Background(), data)
}

func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	exp := max
	if attempt < 32 {
		if e := min << uint(attempt-1); e > 0 && e < max {
			exp = e
		}
	}
	// jitter up to 50%
	half := int64(exp) / 2
	if half <= 0 {
		return exp
	}
	return exp - time.Duration(rand.Int63n(half))
}

type consumerMetrics struct {
	depth   *prometheus.GaugeVec
	handled *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

func newConsumerMetrics(reg prometheus.Registerer) *consumerMetrics {
	return &consumerMetrics{
		depth: register(reg, prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "fusion_kafka_consumer_queue_depth", Help: "Messages waiting for a worker"},
			[]string{"topic"},
		)),
		handled: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "fusion_kafka_consumer_messages_total", Help: "Messages handled by result"},
			[]string{"topic", "result"},
		)),
		latency: register(reg, prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Name: "fusion_kafka_consumer_handle_seconds", Help: "Handling time per message", Buckets: prometheus.DefBuckets},
			[]string{"topic"},
		)),
	}
}
