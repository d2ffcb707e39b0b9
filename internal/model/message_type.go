package model

import "strings"

// MessageType identifies the kind of change a telemetry message carries.
type MessageType int

const (
	MessageUnknown MessageType = iota
	MessageLaunched
	MessageSpeedIncreased
	MessageSpeedDecreased
	MessageExploded
	MessageMissionChanged
)

var messageTypeNames = map[MessageType]string{
	MessageUnknown:        "Unknown",
	MessageLaunched:       "RocketLaunched",
	MessageSpeedIncreased: "RocketSpeedIncreased",
	MessageSpeedDecreased: "RocketSpeedDecreased",
	MessageExploded:       "RocketExploded",
	MessageMissionChanged: "RocketMissionChanged",
}

// ParseMessageType matches s against the wire names case-insensitively.
// Anything unrecognized is MessageUnknown.
func ParseMessageType(s string) MessageType {
	for t, name := range messageTypeNames {
		if t != MessageUnknown && strings.EqualFold(name, s) {
			return t
		}
	}
	return MessageUnknown
}

func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return messageTypeNames[MessageUnknown]
}
