package repository

import (
	"strconv"
	"testing"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rocketapi/internal/model"
)

func launch(channel string, speed int) model.Telemetry {
	return model.Telemetry{
		Metadata: &model.Metadata{
			Channel:       channel,
			MessageNumber: 1,
			MessageType:   "RocketLaunched",
			MessageTime:   time.Now(),
		},
		Message: model.Fields{
			"type":        "Falcon-9",
			"launchSpeed": strconv.Itoa(speed),
			"mission":     "ARTEMIS",
		},
	}
}

func changeSpeed(n int, channel string, by int) model.Telemetry {
	typ := "RocketSpeedIncreased"
	if by < 0 {
		typ = "RocketSpeedDecreased"
		by = -by
	}
	return model.Telemetry{
		Metadata: &model.Metadata{Channel: channel, MessageNumber: n, MessageType: typ, MessageTime: time.Now()},
		Message:  model.Fields{"by": strconv.Itoa(by)},
	}
}

func message(n int, channel, typ string, fields model.Fields) model.Telemetry {
	return model.Telemetry{
		Metadata: &model.Metadata{Channel: channel, MessageNumber: n, MessageType: typ, MessageTime: time.Now()},
		Message:  fields,
	}
}

func TestBuffer_InitialStateSet(t *testing.T) {
	b := NewBuffer(nil)
	res := b.Process(launch("123abc", 500))

	assert.Equal(t, OutcomeApplied, res.Outcome)
	rocket := b.Rocket()
	assert.Equal(t, 500, rocket.Speed)
	assert.Equal(t, model.StatusLaunched, rocket.Status)
	assert.Equal(t, "123abc", rocket.ID)
}

func TestBuffer_SpeedUpdated(t *testing.T) {
	b := NewBuffer(nil)
	b.Process(launch("123abc", 500))
	b.Process(changeSpeed(2, "123abc", 3000))

	rocket := b.Rocket()
	assert.Equal(t, 2, rocket.LastMessageNumber)
	assert.Equal(t, 3500, rocket.Speed)
}

func TestBuffer_OldDataIgnored(t *testing.T) {
	b := NewBuffer(nil)
	b.Process(launch("123abc", 500))
	b.Process(changeSpeed(2, "123abc", 3000))
	res := b.Process(changeSpeed(2, "123abc", 3000))

	assert.Equal(t, OutcomeDuplicate, res.Outcome)
	assert.False(t, res.Advanced())
	rocket := b.Rocket()
	assert.Equal(t, 2, rocket.LastMessageNumber)
	assert.Equal(t, 3500, rocket.Speed)
}

func TestBuffer_OutOfOrderUpdateDelayed(t *testing.T) {
	b := NewBuffer(nil)
	b.Process(launch("123abc", 500))
	b.Process(changeSpeed(2, "123abc", 3000))

	res := b.Process(changeSpeed(4, "123abc", -5000))
	assert.Equal(t, OutcomeQueued, res.Outcome)
	assert.Equal(t, 1, b.Pending())

	rocket := b.Rocket()
	assert.Equal(t, 2, rocket.LastMessageNumber)
	assert.Equal(t, 3500, rocket.Speed)

	res = b.Process(changeSpeed(3, "123abc", 2000))
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, 1, res.Drained)
	assert.Equal(t, 0, b.Pending())

	rocket = b.Rocket()
	assert.Equal(t, 4, rocket.LastMessageNumber)
	assert.Equal(t, 500, rocket.Speed)
}

func TestBuffer_QueuedDuplicateDoesNotBlock(t *testing.T) {
	b := NewBuffer(nil)
	b.Process(launch("123abc", 500))
	b.Process(changeSpeed(3, "123abc", 100))

	res := b.Process(changeSpeed(3, "123abc", 100))
	assert.Equal(t, OutcomeDuplicate, res.Outcome)
	assert.Equal(t, 1, b.Pending())

	b.Process(changeSpeed(2, "123abc", 10))
	b.Process(changeSpeed(4, "123abc", 1))

	rocket := b.Rocket()
	assert.Equal(t, 4, rocket.LastMessageNumber)
	assert.Equal(t, 611, rocket.Speed)
	assert.Equal(t, 0, b.Pending())
}

func TestBuffer_ExplodedNotActiveAnymore(t *testing.T) {
	b := NewBuffer(nil)
	b.Process(launch("123abc", 500))
	b.Process(message(2, "123abc", "RocketExploded", model.Fields{"reason": "PRESSURE_VESSEL_FAILURE"}))

	rocket := b.Rocket()
	assert.Equal(t, "PRESSURE_VESSEL_FAILURE", rocket.Status)
	assert.NotNil(t, rocket.MissionEndTime)
}

func TestBuffer_MissionChanged(t *testing.T) {
	b := NewBuffer(nil)
	b.Process(launch("123abc", 500))
	b.Process(message(2, "123abc", "RocketMissionChanged", model.Fields{"newMission": "SHUTTLE_MIR"}))

	assert.Equal(t, "SHUTTLE_MIR", b.Rocket().Mission)
}

func TestBuffer_UnknownMessageTypeIgnored(t *testing.T) {
	b := NewBuffer(nil)
	b.Process(launch("123abc", 500))
	res := b.Process(message(2, "123abc", "RocketFlewIntoSun", model.Fields{"temperature": "15000000C"}))

	assert.Equal(t, OutcomeIgnored, res.Outcome)
	rocket := b.Rocket()
	assert.Equal(t, model.StatusLaunched, rocket.Status)
	assert.Equal(t, 500, rocket.Speed)
	assert.Equal(t, 1, rocket.LastMessageNumber)
}

func TestBuffer_KnownMessageJoinsQueuedUnknown(t *testing.T) {
	b := NewBuffer(nil)
	b.Process(launch("123abc", 500))

	assert.Equal(t, OutcomeQueued, b.Process(message(3, "123abc", "RocketFlewIntoSun", nil)).Outcome)
	assert.Equal(t, OutcomeQueued, b.Process(changeSpeed(3, "123abc", 100)).Outcome)
	assert.Equal(t, OutcomeDuplicate, b.Process(message(3, "123abc", "RocketFlewIntoSun", nil)).Outcome)
	assert.Equal(t, OutcomeDuplicate, b.Process(changeSpeed(3, "123abc", 100)).Outcome)

	res := b.Process(changeSpeed(2, "123abc", 10))
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, 1, res.Drained)

	assert.Equal(t, OutcomeApplied, b.Process(changeSpeed(4, "123abc", 1)).Outcome)

	rocket := b.Rocket()
	assert.Equal(t, 4, rocket.LastMessageNumber)
	assert.Equal(t, 611, rocket.Speed)
	assert.Equal(t, 0, b.Pending())
}

func TestBuffer_QueuedUnknownDoesNotBlockDrain(t *testing.T) {
	b := NewBuffer(nil)
	b.Process(launch("123abc", 500))
	b.Process(message(3, "123abc", "RocketFlewIntoSun", nil))
	b.Process(changeSpeed(4, "123abc", 1))

	res := b.Process(changeSpeed(2, "123abc", 10))
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, 0, res.Drained)
	assert.Equal(t, 2, b.Rocket().LastMessageNumber)
	assert.Equal(t, 1, b.Pending())

	res = b.Process(changeSpeed(3, "123abc", 100))
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, 1, res.Drained)

	rocket := b.Rocket()
	assert.Equal(t, 4, rocket.LastMessageNumber)
	assert.Equal(t, 611, rocket.Speed)
	assert.Equal(t, 0, b.Pending())
}

func TestBuffer_RocketIsCopy(t *testing.T) {
	b := NewBuffer(nil)
	b.Process(launch("123abc", 500))

	rocket := b.Rocket()
	rocket.Speed = 1

	assert.Equal(t, 500, b.Rocket().Speed)
}

func TestBuffer_ConcurrentDuplicateIgnored(t *testing.T) {
	b := NewBuffer(nil)
	b.Process(launch("123abc", 1000))

	var wg conc.WaitGroup
	wg.Go(func() { b.Process(changeSpeed(2, "123abc", 4000)) })
	wg.Go(func() { b.Process(changeSpeed(2, "123abc", 4000)) })
	wg.Wait()

	assert.Equal(t, 5000, b.Rocket().Speed)
}

func TestBuffer_ConcurrentUpdatesExecutedInOrder(t *testing.T) {
	b := NewBuffer(nil)
	b.Process(launch("123abc", 1000))

	var wg conc.WaitGroup
	wg.Go(func() { b.Process(changeSpeed(2, "123abc", 4000)) })
	wg.Go(func() { b.Process(changeSpeed(3, "123abc", -5000)) })
	wg.Wait()

	rocket := b.Rocket()
	assert.Equal(t, 0, rocket.Speed)
	assert.Equal(t, 3, rocket.LastMessageNumber)
}

func TestBuffer_ManyShuffledMessages(t *testing.T) {
	b := NewBuffer(nil)
	b.Process(launch("123abc", 0))

	const total = 200
	var wg conc.WaitGroup
	for n := total; n >= 2; n-- {
		n := n
		wg.Go(func() { b.Process(changeSpeed(n, "123abc", 1)) })
	}
	wg.Wait()

	rocket := b.Rocket()
	require.Equal(t, total, rocket.LastMessageNumber)
	assert.Equal(t, total-1, rocket.Speed)
	assert.Equal(t, 0, b.Pending())
}
