// Package fitfile extracts per-channel time series from FIT activity
// recordings. Times come back as elapsed seconds since the first retained
// sample; values come back in device units except where noted on the
// channel.
package fitfile

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/tormoder/fit"

	"github.com/summavi/summavi/pkg/types"
)

// semicirclesPerDegree is how FIT devices store angular coordinates: a
// signed 32-bit integer spanning the full 360 degrees.
const semicirclesPerDegree = float64(1<<32) / 360.0

// SemicirclesToDegrees converts a FIT angular coordinate to degrees.
func SemicirclesToDegrees(semicircles float64) float64 {
	return semicircles / semicirclesPerDegree
}

// Channel names a numeric quantity extractable from a recording.
type Channel string

const (
	// ChannelTime yields elapsed seconds as both times and values.
	ChannelTime Channel = "time"
	// ChannelLatitude is in degrees (converted from semicircles).
	ChannelLatitude Channel = "latitude"
	// ChannelLongitude is in degrees (converted from semicircles).
	ChannelLongitude Channel = "longitude"
	// ChannelPower is in watts.
	ChannelPower Channel = "power"
	// ChannelHeartRate is in beats per minute.
	ChannelHeartRate Channel = "heart_rate"
	// ChannelCadence is in steps per minute (device rpm doubled).
	ChannelCadence Channel = "cadence"
	// ChannelGroundTime is the ground contact time in milliseconds.
	ChannelGroundTime Channel = "ground_time"
	// ChannelVerticalOscillation is in millimeters.
	ChannelVerticalOscillation Channel = "vertical_oscillation"
	// ChannelAirPower is the power spent against air resistance [W].
	ChannelAirPower Channel = "air_power"
	// ChannelFormPower is the "running in place" power [W].
	ChannelFormPower Channel = "form_power"
	// ChannelLegSpringStiffness is in kN/m.
	ChannelLegSpringStiffness Channel = "leg_spring_stiffness"
)

var (
	// ErrUnknownChannel reports a channel name outside the enumeration.
	ErrUnknownChannel = errors.New("unknown channel")
	// ErrChannelUnsupported reports a channel the decoder cannot surface.
	ErrChannelUnsupported = errors.New("channel not supported by decoder")
	// ErrNoSamples reports a recording with no usable samples for the
	// requested channel.
	ErrNoSamples = errors.New("no samples for channel")
)

// Channels lists every channel in the enumeration, extractable or not.
func Channels() []Channel {
	return []Channel{
		ChannelTime,
		ChannelLatitude,
		ChannelLongitude,
		ChannelPower,
		ChannelHeartRate,
		ChannelCadence,
		ChannelGroundTime,
		ChannelVerticalOscillation,
		ChannelAirPower,
		ChannelFormPower,
		ChannelLegSpringStiffness,
	}
}

// ParseChannel maps a channel name to its Channel value.
func ParseChannel(name string) (Channel, error) {
	for _, ch := range Channels() {
		if string(ch) == name {
			return ch, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownChannel, name)
}

// Extract decodes the FIT recording at path and returns the time series
// for the given channel. Records missing the channel, or carrying the FIT
// invalid sentinel for it, are skipped; the elapsed-seconds clock starts
// at the first retained record.
func Extract(path string, ch Channel) (types.TimeSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return types.TimeSeries{}, fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()

	data, err := fit.Decode(f)
	if err != nil {
		return types.TimeSeries{}, fmt.Errorf("decode recording %s: %w", path, err)
	}

	activity, err := data.Activity()
	if err != nil {
		return types.TimeSeries{}, fmt.Errorf("recording %s is not an activity: %w", path, err)
	}

	return extractRecords(activity.Records, ch)
}

// extractRecords builds the series from decoded record messages.
func extractRecords(records []*fit.RecordMsg, ch Channel) (types.TimeSeries, error) {
	value, err := accessor(ch)
	if err != nil {
		return types.TimeSeries{}, err
	}

	var ts types.TimeSeries
	var start time.Time
	for _, rec := range records {
		if rec == nil || rec.Timestamp.IsZero() {
			continue
		}
		v, ok := value(rec)
		if !ok {
			continue
		}
		if start.IsZero() {
			start = rec.Timestamp
		}
		elapsed := rec.Timestamp.Sub(start).Seconds()
		if ch == ChannelTime {
			v = elapsed
		}
		ts.Times = append(ts.Times, elapsed)
		ts.Values = append(ts.Values, v)
	}

	if len(ts.Times) == 0 {
		return types.TimeSeries{}, fmt.Errorf("%w: %s", ErrNoSamples, ch)
	}
	return ts, nil
}

// accessor returns the per-record value reader for a channel, or an error
// for channels the decoder cannot surface.
//
// TODO: surface the Stryd developer fields (air power, form power, leg
// spring stiffness). Blocked on github.com/tormoder/fit: fit.RecordMsg
// carries the standard record fields only and drops developer field
// data during decoding. Re-check on every dependency bump.
func accessor(ch Channel) (func(*fit.RecordMsg) (float64, bool), error) {
	switch ch {
	case ChannelTime:
		return func(*fit.RecordMsg) (float64, bool) {
			return 0, true // replaced by the elapsed clock
		}, nil
	case ChannelLatitude:
		return func(r *fit.RecordMsg) (float64, bool) {
			if r.PositionLat.Invalid() {
				return 0, false
			}
			return SemicirclesToDegrees(float64(r.PositionLat.Semicircles())), true
		}, nil
	case ChannelLongitude:
		return func(r *fit.RecordMsg) (float64, bool) {
			if r.PositionLong.Invalid() {
				return 0, false
			}
			return SemicirclesToDegrees(float64(r.PositionLong.Semicircles())), true
		}, nil
	case ChannelPower:
		return func(r *fit.RecordMsg) (float64, bool) {
			if r.Power == math.MaxUint16 {
				return 0, false
			}
			return float64(r.Power), true
		}, nil
	case ChannelHeartRate:
		return func(r *fit.RecordMsg) (float64, bool) {
			if r.HeartRate == math.MaxUint8 {
				return 0, false
			}
			return float64(r.HeartRate), true
		}, nil
	case ChannelCadence:
		return func(r *fit.RecordMsg) (float64, bool) {
			if r.Cadence == math.MaxUint8 {
				return 0, false
			}
			// Devices report revolutions per minute; runners read
			// steps per minute.
			return 2 * float64(r.Cadence), true
		}, nil
	case ChannelGroundTime:
		return func(r *fit.RecordMsg) (float64, bool) {
			if r.StanceTime == math.MaxUint16 {
				return 0, false
			}
			return float64(r.StanceTime) / 10, true // stored as ms * 10
		}, nil
	case ChannelVerticalOscillation:
		return func(r *fit.RecordMsg) (float64, bool) {
			if r.VerticalOscillation == math.MaxUint16 {
				return 0, false
			}
			return float64(r.VerticalOscillation) / 10, true // stored as mm * 10
		}, nil
	case ChannelAirPower, ChannelFormPower, ChannelLegSpringStiffness:
		return nil, fmt.Errorf("%w: %s is a developer field", ErrChannelUnsupported, ch)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownChannel, ch)
	}
}
