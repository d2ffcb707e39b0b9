package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrInvalidJSON is returned when a telemetry body cannot be decoded.
	ErrInvalidJSON = errors.New("invalid telemetry json")
	// ErrInvalidTelemetry is returned when a decoded message fails validation.
	ErrInvalidTelemetry = errors.New("invalid telemetry")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Metadata is the envelope every telemetry message carries.
type Metadata struct {
	Channel       string    `json:"channel" validate:"required"`
	MessageNumber int       `json:"messageNumber" validate:"gte=1"`
	MessageType   string    `json:"messageType" validate:"required"`
	MessageTime   time.Time `json:"messageTime"`
}

// Telemetry is a single message received from a rocket channel.
type Telemetry struct {
	Metadata *Metadata `json:"metadata" validate:"required"`
	Message  Fields    `json:"message"`
}

// Type returns the parsed message type.
func (t Telemetry) Type() MessageType {
	return ParseMessageType(t.Metadata.MessageType)
}

// Number returns the message sequence number.
func (t Telemetry) Number() int {
	return t.Metadata.MessageNumber
}

// Channel returns the channel the message was published on.
func (t Telemetry) Channel() string {
	return t.Metadata.Channel
}

// Fields holds the message payload. Scalar JSON values are kept in their
// textual form, so 500 and "500" decode to the same entry.
type Fields map[string]string

// UnmarshalJSON coerces scalars to strings, drops nulls and rejects nested values.
func (f *Fields) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw == nil {
		*f = nil
		return nil
	}

	out := make(Fields, len(raw))
	for k, v := range raw {
		v = bytes.TrimSpace(v)
		if len(v) == 0 {
			continue
		}
		switch v[0] {
		case 'n':
			continue
		case '"':
			var s string
			if err := json.Unmarshal(v, &s); err != nil {
				return fmt.Errorf("field %q: %w", k, err)
			}
			out[k] = s
		case '{', '[':
			return fmt.Errorf("field %q: nested values are not supported", k)
		default:
			out[k] = string(v)
		}
	}
	*f = out
	return nil
}

// Int parses the named field as an integer.
func (f Fields) Int(key string) (int, error) {
	v, ok := f[key]
	if !ok {
		return 0, fmt.Errorf("field %q is required", key)
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("field %q must be an integer", key)
	}
	return i, nil
}

// DecodeTelemetry decodes and validates a telemetry body.
// Unknown properties are rejected.
func DecodeTelemetry(body []byte) (Telemetry, error) {
	var t Telemetry
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&t); err != nil {
		return Telemetry{}, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if err := t.Validate(); err != nil {
		return Telemetry{}, err
	}
	return t, nil
}

// Validate checks the envelope and the fields the message type needs to be applied.
// Messages of unknown type pass, they are ignored when applied.
func (t Telemetry) Validate() error {
	// nested Metadata is validated through the pointer
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTelemetry, err)
	}

	var required []string
	switch t.Type() {
	case MessageLaunched:
		required = []string{"launchSpeed"}
	case MessageSpeedIncreased, MessageSpeedDecreased:
		required = []string{"by"}
	}
	for _, key := range required {
		if _, err := t.Message.Int(key); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidTelemetry, err)
		}
	}
	return nil
}
