package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"rocketapi/internal/model"
	"rocketapi/internal/repository"
	"rocketapi/internal/storage"
)

var (
	ErrIDRequired = errors.New("id is required")
	ErrNotFound   = errors.New("rocket not found")
)

// outcomeRejected labels messages that failed decoding or validation.
const outcomeRejected = "rejected"

// snapshotTimeout bounds a single snapshot write during ingestion.
const snapshotTimeout = 2 * time.Second

var tracer = otel.Tracer("rocketapi/internal/service")

// Sort keys accepted by RocketQuery.SortBy. Anything else sorts by mission.
const (
	SortByMission    = "mission"
	SortByType       = "type"
	SortBySpeed      = "speed"
	SortByStatus     = "status"
	SortByLaunchTime = "launchTime"
	SortByEndTime    = "endTime"

	OrderDesc = "desc"
)

// RocketQuery filters and orders a rocket listing.
type RocketQuery struct {
	SortBy  string
	OrderBy string
	// Type filters by rocket type, case-insensitively. Empty matches all.
	Type string
}

// Archive accepts raw telemetry for archiving without blocking.
// Implementations that also have a Ping method are checked by Ready.
type Archive interface {
	Enqueue(rec storage.ArchiveRecord) bool
}

type pinger interface {
	Ping(ctx context.Context) error
}

// RocketService defines the use cases of the telemetry service.
type RocketService interface {
	// Ingest applies a telemetry message to its rocket. raw is the original body, kept for the archive.
	Ingest(ctx context.Context, t model.Telemetry, raw []byte) (repository.Result, error)

	// Reject records a message that could not be decoded and never reached Ingest.
	Reject(ctx context.Context, err error)

	// List returns rockets filtered and sorted by q.
	List(ctx context.Context, q RocketQuery) ([]model.Rocket, error)

	// Get returns the rocket tracked on the given channel.
	Get(ctx context.Context, id string) (*model.Rocket, error)

	// Types returns the distinct rocket types seen so far.
	Types(ctx context.Context) ([]string, error)

	// Restore loads persisted rockets into memory and returns how many were restored.
	Restore(ctx context.Context) (int, error)

	// Ready reports whether the configured dependencies are reachable.
	Ready(ctx context.Context) error
}

type rocketService struct {
	rockets   *repository.RocketRepository
	snapshots repository.SnapshotRepository
	archive   Archive
	metrics   *Metrics
	log       *zap.Logger
}

// NewRocketService constructs a RocketService. snapshots, archive and metrics are optional.
func NewRocketService(
	rockets *repository.RocketRepository,
	snapshots repository.SnapshotRepository,
	archive Archive,
	metrics *Metrics,
	log *zap.Logger,
) RocketService {
	if log == nil {
		log = zap.NewNop()
	}
	return &rocketService{
		rockets:   rockets,
		snapshots: snapshots,
		archive:   archive,
		metrics:   metrics,
		log:       log,
	}
}

func (s *rocketService) Ingest(ctx context.Context, t model.Telemetry, raw []byte) (repository.Result, error) {
	if err := t.Validate(); err != nil {
		s.metrics.message(outcomeRejected)
		return repository.Result{}, err
	}

	ctx, span := tracer.Start(ctx, "RocketService.Ingest")
	defer span.End()
	span.SetAttributes(
		attribute.String("rocket.channel", t.Channel()),
		attribute.Int("telemetry.message_number", t.Number()),
		attribute.String("telemetry.message_type", t.Metadata.MessageType),
	)

	buf, res := s.rockets.Process(t)
	span.SetAttributes(attribute.String("telemetry.outcome", res.Outcome.String()))
	s.metrics.message(res.Outcome.String())

	if res.Advanced() {
		s.saveSnapshot(ctx, buf.Rocket())
	}
	if res.Outcome != repository.OutcomeDuplicate {
		s.archiveRaw(t, raw)
	}
	return res, nil
}

func (s *rocketService) Reject(ctx context.Context, err error) {
	s.metrics.message(outcomeRejected)
	trace.SpanFromContext(ctx).RecordError(err)
	s.log.Debug("telemetry rejected", zap.Error(err))
}

// saveSnapshot persists rocket on a best effort basis. Memory stays the source
// of truth, a failed write is retried implicitly by the next message.
func (s *rocketService) saveSnapshot(ctx context.Context, rocket model.Rocket) {
	if s.snapshots == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()

	if err := s.snapshots.Save(ctx, rocket); err != nil {
		s.metrics.snapshotFailed()
		s.log.Error("rocket snapshot failed",
			zap.String("channel", rocket.ID), zap.Int("last_message_number", rocket.LastMessageNumber), zap.Error(err))
	}
}

func (s *rocketService) archiveRaw(t model.Telemetry, raw []byte) {
	if s.archive == nil || len(raw) == 0 {
		return
	}
	ok := s.archive.Enqueue(storage.ArchiveRecord{
		Channel:       t.Channel(),
		MessageNumber: t.Number(),
		Body:          raw,
	})
	if !ok {
		s.metrics.archiveDrop()
		s.log.Warn("archive buffer full, dropping message",
			zap.String("channel", t.Channel()), zap.Int("message_number", t.Number()))
	}
}

// List filters by type, then sorts. Ties are broken by id so results are stable.
func (s *rocketService) List(ctx context.Context, q RocketQuery) ([]model.Rocket, error) {
	var predicate func(model.Rocket) bool
	if q.Type != "" {
		predicate = func(r model.Rocket) bool { return strings.EqualFold(q.Type, r.Type) }
	}
	rockets := s.rockets.Find(predicate)

	less := lessBy(q.SortBy)
	desc := strings.EqualFold(q.OrderBy, OrderDesc)
	sort.SliceStable(rockets, func(i, j int) bool {
		a, b := rockets[i], rockets[j]
		if desc {
			a, b = b, a
		}
		if c := less(a, b); c != 0 {
			return c < 0
		}
		return a.ID < b.ID
	})
	return rockets, nil
}

// lessBy returns a three-way comparison for the sort key.
func lessBy(sortBy string) func(a, b model.Rocket) int {
	switch sortBy {
	case SortByType:
		return func(a, b model.Rocket) int { return strings.Compare(a.Type, b.Type) }
	case SortBySpeed:
		return func(a, b model.Rocket) int { return compareInt(a.Speed, b.Speed) }
	case SortByStatus:
		return func(a, b model.Rocket) int { return strings.Compare(a.Status, b.Status) }
	case SortByLaunchTime:
		return func(a, b model.Rocket) int { return compareTime(a.LaunchTime, b.LaunchTime) }
	case SortByEndTime:
		return func(a, b model.Rocket) int { return compareTime(a.MissionEndTime, b.MissionEndTime) }
	default:
		return func(a, b model.Rocket) int { return strings.Compare(a.Mission, b.Mission) }
	}
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// compareTime orders missing times first.
func compareTime(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	default:
		return a.Compare(*b)
	}
}

func (s *rocketService) Get(ctx context.Context, id string) (*model.Rocket, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	rocket, ok := s.rockets.ByID(id)
	if !ok {
		return nil, ErrNotFound
	}
	return &rocket, nil
}

func (s *rocketService) Types(ctx context.Context) ([]string, error) {
	return s.rockets.Types(), nil
}

func (s *rocketService) Restore(ctx context.Context) (int, error) {
	if s.snapshots == nil {
		return 0, nil
	}
	rockets, err := s.snapshots.LoadAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("load snapshots: %w", err)
	}
	n := s.rockets.Restore(rockets)
	s.log.Info("rockets restored", zap.Int("restored", n), zap.Int("stored", len(rockets)))
	return n, nil
}

func (s *rocketService) Ready(ctx context.Context) error {
	if s.snapshots != nil {
		if err := s.snapshots.Ping(ctx); err != nil {
			return unavailable(ctx, "snapshot store", err)
		}
	}
	if p, ok := s.archive.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return unavailable(ctx, "archive store", err)
		}
	}
	return nil
}

func unavailable(ctx context.Context, dep string, err error) error {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, dep+" unavailable")
	return fmt.Errorf("%s: %w", dep, err)
}
