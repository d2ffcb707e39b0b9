package repository

import (
	"container/heap"
	"sync"

	"go.uber.org/zap"

	"rocketapi/internal/model"
)

// Outcome describes what a buffer did with a message.
type Outcome int

const (
	// OutcomeApplied means the message (and possibly queued successors) changed the rocket.
	OutcomeApplied Outcome = iota
	// OutcomeDuplicate means the message number was already applied.
	OutcomeDuplicate
	// OutcomeQueued means the message arrived early and waits for the gap to close.
	OutcomeQueued
	// OutcomeIgnored means the message was next in line but of unknown type.
	OutcomeIgnored
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeQueued:
		return "queued"
	case OutcomeIgnored:
		return "ignored"
	default:
		return "unknown"
	}
}

// Result is returned by Buffer.Process.
type Result struct {
	Outcome Outcome
	// Drained is the number of previously queued messages applied after this one.
	Drained int
}

// Advanced reports whether the rocket state changed.
func (r Result) Advanced() bool {
	return r.Outcome == OutcomeApplied || r.Drained > 0
}

// Buffer applies the telemetry of one channel to its rocket in message-number order.
// It is safe for concurrent use.
type Buffer struct {
	mu      sync.Mutex
	rocket  model.Rocket
	pending telemetryHeap
	// queued maps a pending number to whether a message of known type holds it.
	queued map[int]bool
	log    *zap.Logger
}

// NewBuffer creates an empty buffer. A nil logger disables logging.
func NewBuffer(log *zap.Logger) *Buffer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Buffer{
		queued: make(map[int]bool),
		log:    log,
	}
}

func newBufferFrom(r model.Rocket, log *zap.Logger) *Buffer {
	b := NewBuffer(log)
	b.rocket = r
	return b
}

// Process compares the message number against the last applied one.
// Smaller or equal is a duplicate, exactly one more is applied immediately,
// and anything further ahead is held back until the missing messages arrive.
func (b *Buffer) Process(t model.Telemetry) Result {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := t.Number()
	last := b.rocket.LastMessageNumber

	switch {
	case n <= last:
		b.log.Warn("ignoring message, already received",
			zap.String("channel", t.Channel()), zap.Int("message_number", n))
		return Result{Outcome: OutcomeDuplicate}

	case n == last+1:
		if !b.apply(t) {
			return Result{Outcome: OutcomeIgnored}
		}
		return Result{Outcome: OutcomeApplied, Drained: b.drain()}

	default:
		// A known message may still join a number held only by an unknown one.
		known := t.Type() != model.MessageUnknown
		if held, ok := b.queued[n]; ok && (held || !known) {
			b.log.Warn("ignoring message, already queued",
				zap.String("channel", t.Channel()), zap.Int("message_number", n))
			return Result{Outcome: OutcomeDuplicate}
		}
		b.log.Warn("missing an update, queueing message",
			zap.String("channel", t.Channel()), zap.Int("last_message_number", last), zap.Int("message_number", n))
		heap.Push(&b.pending, t)
		b.queued[n] = known
		return Result{Outcome: OutcomeQueued}
	}
}

// drain applies queued messages while the head of the queue is the next number.
// Stale entries and entries of unknown type are dropped on the way.
func (b *Buffer) drain() int {
	applied := 0
	for b.pending.Len() > 0 {
		head := b.pending[0]
		n := head.Number()
		next := b.rocket.LastMessageNumber + 1
		if n > next {
			break
		}
		heap.Pop(&b.pending)
		delete(b.queued, n)
		if n < next {
			continue
		}
		if !b.apply(head) {
			continue
		}
		applied++
	}
	return applied
}

func (b *Buffer) apply(t model.Telemetry) bool {
	if !b.rocket.Apply(t) {
		return false
	}
	switch t.Type() {
	case model.MessageLaunched:
		b.log.Info("rocket launched", zap.String("channel", b.rocket.ID), zap.String("type", b.rocket.Type))
	case model.MessageExploded:
		b.log.Warn("rocket exploded", zap.String("channel", t.Channel()), zap.String("reason", b.rocket.Status))
	}
	return true
}

// Rocket returns a copy of the current rocket state.
func (b *Buffer) Rocket() model.Rocket {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rocket
}

// Pending returns the number of messages waiting for a gap to close.
func (b *Buffer) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending.Len()
}

// telemetryHeap is a min-heap ordered by message number.
type telemetryHeap []model.Telemetry

func (h telemetryHeap) Len() int           { return len(h) }
func (h telemetryHeap) Less(i, j int) bool { return h[i].Number() < h[j].Number() }
func (h telemetryHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *telemetryHeap) Push(x any) { *h = append(*h, x.(model.Telemetry)) }

func (h *telemetryHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
