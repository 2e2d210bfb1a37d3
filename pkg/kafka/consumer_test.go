package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// partitionHandler decodes "partition/offset" payloads and records successful handling.
type partitionHandler struct {
	mu       sync.Mutex
	handled  map[int][]int64
	calls    map[string]int
	failOnce map[string]bool
	broken   map[string]error
}

func newPartitionHandler() *partitionHandler {
	return &partitionHandler{
		handled:  make(map[int][]int64),
		calls:    make(map[string]int),
		failOnce: make(map[string]bool),
		broken:   make(map[string]error),
	}
}

func (h *partitionHandler) Topic() string { return "t" }

func (h *partitionHandler) Handle(_ context.Context, data []byte) error {
	var p int
	var o int64
	if _, err := fmt.Sscanf(string(data), "%d/%d", &p, &o); err != nil {
		return Permanent(err)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	key := string(data)
	h.calls[key]++
	if err, ok := h.broken[key]; ok {
		return err
	}
	if h.failOnce[key] && h.calls[key] == 1 {
		return errors.New("transient")
	}
	h.handled[p] = append(h.handled[p], o)
	return nil
}

func (h *partitionHandler) handledOn(p int) []int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]int64(nil), h.handled[p]...)
}

func (h *partitionHandler) callsFor(key string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls[key]
}

type commitLog struct {
	mu      sync.Mutex
	offsets map[int][]int64
}

func (l *commitLog) commit(_ context.Context, msg kafka.Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.offsets == nil {
		l.offsets = make(map[int][]int64)
	}
	l.offsets[msg.Partition] = append(l.offsets[msg.Partition], msg.Offset)
	return nil
}

func (l *commitLog) on(p int) []int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]int64(nil), l.offsets[p]...)
}

type memoryWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
}

func (w *memoryWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *memoryWriter) Close() error { return nil }

func partitionMessage(p int, o int64) kafka.Message {
	return kafka.Message{Topic: "t", Partition: p, Offset: o, Value: []byte(fmt.Sprintf("%d/%d", p, o))}
}

func ascending(n int64) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = int64(i)
	}
	return out
}

func TestConsumerKeepsPartitionOrderAcrossWorkers(t *testing.T) {
	c := newTestConsumer(t, WithConsumerWorkers(4))
	h := newPartitionHandler()
	// a retried message must still be handled before its successors
	h.failOnce["2/7"] = true
	h.failOnce["0/3"] = true
	c.RegisterHandler(h)
	commits := &commitLog{}
	c.commit = commits.commit

	c.startWorkers()
	const perPartition = 25
	for o := int64(0); o < perPartition; o++ {
		for p := 0; p < 4; p++ {
			require.True(t, c.dispatch(partitionMessage(p, o)))
		}
	}
	c.closeQueues()
	c.wg.Wait()

	for p := 0; p < 4; p++ {
		assert.Equal(t, ascending(perPartition), h.handledOn(p), "partition %d handled", p)
		assert.Equal(t, ascending(perPartition), commits.on(p), "partition %d committed", p)
	}
	assert.Equal(t, 2, h.callsFor("2/7"))
}

func TestConsumerSlotIsStablePerPartition(t *testing.T) {
	c := newTestConsumer(t, WithConsumerWorkers(3))
	c.queues = make([]chan kafka.Message, 3)
	for p := 0; p < 12; p++ {
		first := c.slot("t", p)
		assert.Equal(t, first, c.slot("t", p))
		assert.GreaterOrEqual(t, first, 0)
		assert.Less(t, first, 3)
	}
	assert.NotEqual(t, c.slot("t", 0), c.slot("t", 1))
}

func TestFailingMessageHoldsItsPartition(t *testing.T) {
	c := newTestConsumer(t, WithConsumerWorkers(2))
	h := newPartitionHandler()
	h.broken["0/1"] = errors.New("store unavailable")
	c.RegisterHandler(h)
	commits := &commitLog{}
	c.commit = commits.commit

	c.startWorkers()
	for _, msg := range []kafka.Message{
		partitionMessage(0, 0), partitionMessage(0, 1), partitionMessage(0, 2),
		partitionMessage(1, 0), partitionMessage(1, 1),
	} {
		require.True(t, c.dispatch(msg))
	}

	require.Eventually(t, func() bool {
		return len(commits.on(1)) == 2 && h.callsFor("0/1") > 3
	}, 2*time.Second, 5*time.Millisecond)

	close(c.stop)
	c.closeQueues()
	c.wg.Wait()

	assert.Equal(t, []int64{0}, commits.on(0))
	assert.Equal(t, []int64{0}, h.handledOn(0))
	assert.Zero(t, h.callsFor("0/2"))
	assert.Equal(t, []int64{0, 1}, commits.on(1))
}

func TestPermanentErrorSkipsRetries(t *testing.T) {
	c := newTestConsumer(t)
	h := newPartitionHandler()
	h.broken["0/0"] = Permanent(errors.New("bad payload"))

	err := c.handleWithRetry(h, []byte("0/0"))
	require.Error(t, err)
	assert.True(t, IsPermanent(err))
	assert.Equal(t, 1, h.callsFor("0/0"))
}

func TestPermanentFailureIsParkedAndCommitted(t *testing.T) {
	c := newTestConsumer(t)
	h := newPartitionHandler()
	h.broken["0/4"] = Permanent(errors.New("bad payload"))
	c.RegisterHandler(h)
	commits := &commitLog{}
	c.commit = commits.commit
	dlq := &memoryWriter{}
	c.dlq = dlq

	assert.True(t, c.process(partitionMessage(0, 4)))
	assert.Equal(t, 1, h.callsFor("0/4"))
	require.Len(t, dlq.msgs, 1)
	assert.Equal(t, "0/4", string(dlq.msgs[0].Value))
	assert.Equal(t, "t", string(dlq.msgs[0].Headers[0].Value))
	assert.Equal(t, []int64{4}, commits.on(0))
}

func TestPermanentFailureWithoutDLQIsDropped(t *testing.T) {
	c := newTestConsumer(t)
	h := newPartitionHandler()
	h.broken["0/4"] = Permanent(errors.New("bad payload"))
	c.RegisterHandler(h)
	commits := &commitLog{}
	c.commit = commits.commit

	assert.True(t, c.process(partitionMessage(0, 4)))
	assert.Equal(t, 1, h.callsFor("0/4"))
	assert.Equal(t, []int64{4}, commits.on(0))
}

func TestPermanentKeepsCause(t *testing.T) {
	cause := errors.New("bad payload")
	err := fmt.Errorf("decode: %w", Permanent(cause))
	assert.True(t, IsPermanent(err))
	assert.ErrorIs(t, err, cause)
	assert.False(t, IsPermanent(cause))
	assert.NoError(t, Permanent(nil))
}
