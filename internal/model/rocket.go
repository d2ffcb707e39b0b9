package model

import "time"

// StatusLaunched is the status of a rocket that has launched and not exploded.
const StatusLaunched = "LAUNCHED"

// Rocket is the state of one rocket, built from the telemetry of its channel.
type Rocket struct {
	ID                string     `json:"id"`
	Type              string     `json:"type"`
	Speed             int        `json:"speed"`
	Mission           string     `json:"mission"`
	LaunchTime        *time.Time `json:"launchTime,omitempty"`
	LastMessageNumber int        `json:"lastMessageNumber"`
	Status            string     `json:"status"`
	MissionEndTime    *time.Time `json:"missionEndTime,omitempty"`
}

// Apply updates the rocket with t and advances LastMessageNumber.
// Messages of unknown type leave the rocket untouched and return false.
// t is expected to have passed Telemetry.Validate.
func (r *Rocket) Apply(t Telemetry) bool {
	msg := t.Message

	switch t.Type() {
	case MessageLaunched:
		speed, _ := msg.Int("launchSpeed")
		r.ID = t.Channel()
		r.Type = msg["type"]
		r.Speed = speed
		r.Mission = msg["mission"]
		r.LaunchTime = timeRef(t.Metadata.MessageTime)
		r.Status = StatusLaunched
	case MessageSpeedIncreased:
		by, _ := msg.Int("by")
		r.Speed += by
	case MessageSpeedDecreased:
		by, _ := msg.Int("by")
		r.Speed -= by
	case MessageExploded:
		r.Status = msg["reason"]
		r.MissionEndTime = timeRef(t.Metadata.MessageTime)
	case MessageMissionChanged:
		r.Mission = msg["newMission"]
	default:
		return false
	}

	r.LastMessageNumber++
	return true
}

func timeRef(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
