package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"rocketapi/internal/model"
	"rocketapi/internal/repository"
	repoMocks "rocketapi/internal/repository/mocks"
	"rocketapi/internal/storage"
)

type recordingArchive struct {
	records []storage.ArchiveRecord
	full    bool
}

func (a *recordingArchive) Enqueue(rec storage.ArchiveRecord) bool {
	if a.full {
		return false
	}
	a.records = append(a.records, rec)
	return true
}

func launchMsg(channel, typ, mission string, speed int, at time.Time) model.Telemetry {
	return model.Telemetry{
		Metadata: &model.Metadata{Channel: channel, MessageNumber: 1, MessageType: "RocketLaunched", MessageTime: at},
		Message:  model.Fields{"type": typ, "launchSpeed": strconv.Itoa(speed), "mission": mission},
	}
}

func speedMsg(channel string, n, by int) model.Telemetry {
	return model.Telemetry{
		Metadata: &model.Metadata{Channel: channel, MessageNumber: n, MessageType: "RocketSpeedIncreased"},
		Message:  model.Fields{"by": strconv.Itoa(by)},
	}
}

func newTestService(t *testing.T, snapshots repository.SnapshotRepository, archive Archive) (RocketService, *Metrics) {
	t.Helper()
	rockets := repository.NewRocketRepository(nil)
	metrics, err := NewMetrics(prometheus.NewRegistry(), rockets.Count)
	require.NoError(t, err)
	return NewRocketService(rockets, snapshots, archive, metrics, nil), metrics
}

func TestRocketService_Ingest(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("applied message is persisted and archived", func(t *testing.T) {
		mSnap := new(repoMocks.MockSnapshotRepository)
		mSnap.On("Save", mock.Anything, mock.MatchedBy(func(r model.Rocket) bool {
			return r.ID == "abc123" && r.Speed == 500 && r.LastMessageNumber == 1
		})).Return(nil).Once()
		archive := &recordingArchive{}
		svc, metrics := newTestService(t, mSnap, archive)

		res, err := svc.Ingest(ctx, launchMsg("abc123", "Falcon-9", "ARTEMIS", 500, now), []byte(`{"raw":true}`))

		require.NoError(t, err)
		assert.Equal(t, repository.OutcomeApplied, res.Outcome)
		require.Len(t, archive.records, 1)
		assert.Equal(t, "abc123", archive.records[0].Channel)
		assert.Equal(t, 1, archive.records[0].MessageNumber)
		assert.Equal(t, float64(1), testutil.ToFloat64(metrics.messages.WithLabelValues("applied")))
		mSnap.AssertExpectations(t)
	})

	t.Run("duplicate is neither persisted nor archived", func(t *testing.T) {
		mSnap := new(repoMocks.MockSnapshotRepository)
		mSnap.On("Save", mock.Anything, mock.Anything).Return(nil).Once()
		archive := &recordingArchive{}
		svc, metrics := newTestService(t, mSnap, archive)

		msg := launchMsg("abc123", "Falcon-9", "ARTEMIS", 500, now)
		_, _ = svc.Ingest(ctx, msg, []byte("{}"))
		res, err := svc.Ingest(ctx, msg, []byte("{}"))

		require.NoError(t, err)
		assert.Equal(t, repository.OutcomeDuplicate, res.Outcome)
		assert.Len(t, archive.records, 1)
		assert.Equal(t, float64(1), testutil.ToFloat64(metrics.messages.WithLabelValues("duplicate")))
		mSnap.AssertExpectations(t)
	})

	t.Run("queued message is archived but not persisted", func(t *testing.T) {
		mSnap := new(repoMocks.MockSnapshotRepository)
		archive := &recordingArchive{}
		svc, _ := newTestService(t, mSnap, archive)

		res, err := svc.Ingest(ctx, speedMsg("abc123", 3, 10), []byte("{}"))

		require.NoError(t, err)
		assert.Equal(t, repository.OutcomeQueued, res.Outcome)
		assert.Len(t, archive.records, 1)
		mSnap.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("snapshot failure does not fail ingestion", func(t *testing.T) {
		mSnap := new(repoMocks.MockSnapshotRepository)
		mSnap.On("Save", mock.Anything, mock.Anything).Return(errors.New("db down")).Once()
		svc, metrics := newTestService(t, mSnap, nil)

		res, err := svc.Ingest(ctx, launchMsg("abc123", "Falcon-9", "ARTEMIS", 500, now), nil)

		require.NoError(t, err)
		assert.Equal(t, repository.OutcomeApplied, res.Outcome)
		assert.Equal(t, float64(1), testutil.ToFloat64(metrics.snapshotFailures))
		mSnap.AssertExpectations(t)
	})

	t.Run("full archive counts a drop", func(t *testing.T) {
		svc, metrics := newTestService(t, nil, &recordingArchive{full: true})

		_, err := svc.Ingest(ctx, launchMsg("abc123", "Falcon-9", "ARTEMIS", 500, now), []byte("{}"))

		require.NoError(t, err)
		assert.Equal(t, float64(1), testutil.ToFloat64(metrics.archiveDropped))
	})

	t.Run("invalid telemetry is rejected", func(t *testing.T) {
		svc, metrics := newTestService(t, nil, nil)

		_, err := svc.Ingest(ctx, model.Telemetry{}, nil)

		assert.ErrorIs(t, err, model.ErrInvalidTelemetry)
		assert.Equal(t, float64(1), testutil.ToFloat64(metrics.messages.WithLabelValues("rejected")))
	})
}

func TestRocketService_Reject(t *testing.T) {
	svc, metrics := newTestService(t, nil, nil)

	svc.Reject(context.Background(), model.ErrInvalidJSON)
	svc.Reject(context.Background(), model.ErrInvalidTelemetry)

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.messages.WithLabelValues("rejected")))
	assert.Zero(t, testutil.ToFloat64(metrics.messages.WithLabelValues("applied")))
}

func TestRocketService_List(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2022, 2, 2, 19, 0, 0, 0, time.UTC)

	svc, _ := newTestService(t, nil, nil)
	_, _ = svc.Ingest(ctx, launchMsg("abc123", "Falcon-9", "ARTEMIS", 500, base), nil)
	_, _ = svc.Ingest(ctx, launchMsg("abc456", "Falcon-9", "VOYAGER", 1000, base.Add(time.Hour)), nil)
	_, _ = svc.Ingest(ctx, launchMsg("xyz123", "Titan-IV", "GEMINI", 750, base.Add(-time.Hour)), nil)

	ids := func(rockets []model.Rocket) []string {
		return lo.Map(rockets, func(r model.Rocket, _ int) string { return r.ID })
	}

	tests := []struct {
		name string
		q    RocketQuery
		want []string
	}{
		{"default sorts by mission", RocketQuery{}, []string{"abc123", "xyz123", "abc456"}},
		{"unknown key sorts by mission", RocketQuery{SortBy: "color"}, []string{"abc123", "xyz123", "abc456"}},
		{"mission descending", RocketQuery{SortBy: "mission", OrderBy: "DESC"}, []string{"abc456", "xyz123", "abc123"}},
		{"speed ascending", RocketQuery{SortBy: "speed"}, []string{"abc123", "xyz123", "abc456"}},
		{"speed descending", RocketQuery{SortBy: "speed", OrderBy: "desc"}, []string{"abc456", "xyz123", "abc123"}},
		{"launch time", RocketQuery{SortBy: "launchTime"}, []string{"xyz123", "abc123", "abc456"}},
		{"type ties break on id", RocketQuery{SortBy: "type"}, []string{"abc123", "abc456", "xyz123"}},
		{"filter by type", RocketQuery{Type: "falcon-9"}, []string{"abc123", "abc456"}},
		{"filter matches nothing", RocketQuery{Type: "Juno-I"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.List(ctx, tt.q)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestRocketService_ListByEndTime(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2022, 2, 2, 19, 0, 0, 0, time.UTC)

	svc, _ := newTestService(t, nil, nil)
	_, _ = svc.Ingest(ctx, launchMsg("a", "Falcon-9", "ARTEMIS", 500, base), nil)
	_, _ = svc.Ingest(ctx, launchMsg("b", "Falcon-9", "ARTEMIS", 500, base), nil)
	_, _ = svc.Ingest(ctx, model.Telemetry{
		Metadata: &model.Metadata{Channel: "b", MessageNumber: 2, MessageType: "RocketExploded", MessageTime: base.Add(time.Minute)},
		Message:  model.Fields{"reason": "ENGINE_FAILURE"},
	}, nil)

	got, err := svc.List(ctx, RocketQuery{SortBy: "endTime", OrderBy: "desc"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "ENGINE_FAILURE", got[0].Status)
}

func TestRocketService_Get(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil, nil)
	_, _ = svc.Ingest(ctx, launchMsg("abc123", "Falcon-9", "ARTEMIS", 500, time.Now()), nil)

	rocket, err := svc.Get(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, 500, rocket.Speed)

	_, err = svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Get(ctx, "")
	assert.ErrorIs(t, err, ErrIDRequired)
}

func TestRocketService_Types(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil, nil)
	_, _ = svc.Ingest(ctx, launchMsg("a", "Falcon-9", "ARTEMIS", 500, time.Now()), nil)
	_, _ = svc.Ingest(ctx, launchMsg("b", "Falcon-9", "ARTEMIS", 500, time.Now()), nil)
	_, _ = svc.Ingest(ctx, launchMsg("c", "Titan-IV", "VOYAGER", 1000, time.Now()), nil)
	_, _ = svc.Ingest(ctx, launchMsg("d", "Juno-I", "VOYAGER", 1000, time.Now()), nil)

	types, err := svc.Types(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Falcon-9", "Juno-I", "Titan-IV"}, types)
}

func TestRocketService_Restore(t *testing.T) {
	ctx := context.Background()

	t.Run("loads snapshots", func(t *testing.T) {
		mSnap := new(repoMocks.MockSnapshotRepository)
		mSnap.On("LoadAll", ctx).Return([]model.Rocket{
			{ID: "abc123", Type: "Falcon-9", Speed: 500, LastMessageNumber: 7},
		}, nil).Once()
		svc, _ := newTestService(t, mSnap, nil)

		n, err := svc.Restore(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		rocket, err := svc.Get(ctx, "abc123")
		require.NoError(t, err)
		assert.Equal(t, 7, rocket.LastMessageNumber)
		mSnap.AssertExpectations(t)
	})

	t.Run("load error", func(t *testing.T) {
		mSnap := new(repoMocks.MockSnapshotRepository)
		mSnap.On("LoadAll", ctx).Return(nil, errors.New("db down")).Once()
		svc, _ := newTestService(t, mSnap, nil)

		_, err := svc.Restore(ctx)
		assert.ErrorContains(t, err, "load snapshots: db down")
	})

	t.Run("no store configured", func(t *testing.T) {
		svc, _ := newTestService(t, nil, nil)
		n, err := svc.Restore(ctx)
		assert.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestRocketService_Ready(t *testing.T) {
	ctx := context.Background()

	mSnap := new(repoMocks.MockSnapshotRepository)
	mSnap.On("Ping", ctx).Return(nil).Once()
	mSnap.On("Ping", ctx).Return(errors.New("refused")).Once()
	svc, _ := newTestService(t, mSnap, nil)

	assert.NoError(t, svc.Ready(ctx))
	assert.ErrorContains(t, svc.Ready(ctx), "snapshot store: refused")

	noStore, _ := newTestService(t, nil, nil)
	assert.NoError(t, noStore.Ready(ctx))
}

type pingingArchive struct {
	recordingArchive
	err error
}

func (a *pingingArchive) Ping(context.Context) error { return a.err }

func TestRocketService_ReadyChecksArchive(t *testing.T) {
	ctx := context.Background()

	healthy, _ := newTestService(t, nil, &pingingArchive{})
	assert.NoError(t, healthy.Ready(ctx))

	down, _ := newTestService(t, nil, &pingingArchive{err: errors.New("no bucket")})
	assert.ErrorContains(t, down.Ready(ctx), "archive store: no bucket")
}

func TestMetrics_RocketsTracked(t *testing.T) {
	reg := prometheus.NewRegistry()
	rockets := repository.NewRocketRepository(nil)
	_, err := NewMetrics(reg, rockets.Count)
	require.NoError(t, err)

	rockets.Buffer("a")
	rockets.Buffer("b")

	expected := `
# HELP rockets_tracked Rocket channels currently tracked.
# TYPE rockets_tracked gauge
rockets_tracked 2
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "rockets_tracked"))

	_, err = NewMetrics(reg, nil)
	assert.Error(t, err, "registering twice must fail")
}
