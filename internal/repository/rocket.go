package repository

import (
	"sort"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"rocketapi/internal/model"
)

// RocketRepository keeps one sequencing Buffer per rocket channel in memory.
// It is safe for concurrent use.
type RocketRepository struct {
	mu      sync.RWMutex
	buffers map[string]*Buffer
	log     *zap.Logger
}

// NewRocketRepository creates an empty repository. A nil logger disables logging.
func NewRocketRepository(log *zap.Logger) *RocketRepository {
	if log == nil {
		log = zap.NewNop()
	}
	return &RocketRepository{
		buffers: make(map[string]*Buffer),
		log:     log,
	}
}

// Process forwards t to the buffer of its channel, creating the buffer on first use.
func (r *RocketRepository) Process(t model.Telemetry) (*Buffer, Result) {
	b := r.Buffer(t.Channel())
	return b, b.Process(t)
}

// Buffer returns the buffer for channel, creating it if needed.
// Concurrent callers for the same channel always get the same buffer.
func (r *RocketRepository) Buffer(channel string) *Buffer {
	r.mu.RLock()
	b, ok := r.buffers[channel]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.buffers[channel]; ok {
		return b
	}
	// seeded with the channel so rockets waiting for their launch are addressable
	b = newBufferFrom(model.Rocket{ID: channel}, r.log)
	r.buffers[channel] = b
	return b
}

// ByID returns the rocket tracked on channel id.
func (r *RocketRepository) ByID(id string) (model.Rocket, bool) {
	r.mu.RLock()
	b, ok := r.buffers[id]
	r.mu.RUnlock()
	if !ok {
		return model.Rocket{}, false
	}
	return b.Rocket(), true
}

// Find returns a snapshot of every rocket matching predicate.
// A nil predicate matches all rockets.
func (r *RocketRepository) Find(predicate func(model.Rocket) bool) []model.Rocket {
	rockets := lo.Map(r.snapshotBuffers(), func(b *Buffer, _ int) model.Rocket {
		return b.Rocket()
	})
	if predicate == nil {
		return rockets
	}
	return lo.Filter(rockets, func(rocket model.Rocket, _ int) bool {
		return predicate(rocket)
	})
}

// Types returns the distinct rocket types seen so far, sorted.
// Rockets that have not launched yet carry no type and are skipped.
func (r *RocketRepository) Types() []string {
	types := lo.Uniq(lo.FilterMap(r.Find(nil), func(rocket model.Rocket, _ int) (string, bool) {
		return rocket.Type, rocket.Type != ""
	}))
	sort.Strings(types)
	return types
}

// Restore seeds buffers from previously persisted rockets.
// Channels that are already tracked are left as they are.
func (r *RocketRepository) Restore(rockets []model.Rocket) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	restored := 0
	for _, rocket := range rockets {
		if rocket.ID == "" {
			continue
		}
		if _, ok := r.buffers[rocket.ID]; ok {
			continue
		}
		r.buffers[rocket.ID] = newBufferFrom(rocket, r.log)
		restored++
	}
	return restored
}

// Count returns the number of tracked channels.
func (r *RocketRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.buffers)
}

func (r *RocketRepository) snapshotBuffers() []*Buffer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Values(r.buffers)
}
