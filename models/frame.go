package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FrameKind identifies the inbound feed frame types. Frames are decoded
// once at the session boundary into a Frame value instead of comparing
// type tags throughout the dispatch path.
type FrameKind int

const (
	FrameUnknown FrameKind = iota
	FrameTick
	FramePriceScale
	FrameDailyVolume
	FrameSnapshot
)

func (k FrameKind) String() string {
	switch k {
	case FrameTick:
		return "tick"
	case FramePriceScale:
		return "price_scale"
	case FrameDailyVolume:
		return "daily_volume"
	case FrameSnapshot:
		return "snapshot"
	default:
		return "unknown"
	}
}

// Frame is the decoded form of one inbound feed message. Only the fields
// relevant to Kind are populated.
type Frame struct {
	Kind        FrameKind
	Type        string   // raw type tag, kept for logging
	Tick        string   // FrameTick: pipe-delimited tick payload
	Scale       float64  // FramePriceScale, FrameSnapshot
	DailyVolume int64    // FrameDailyVolume: independently reported cumulative volume
	Ticks       []string // FrameSnapshot: replayed tick payloads in delivered order
}

// feed frame type tags
const (
	typeTick        = "GN"
	typePriceScale  = "GL"
	typeDailyVolume = "GD"
	typeSnapshot    = "GP"
)

const dailyVolumeFields = 9

type frameEnvelope struct {
	Type       string `json:"t"`
	Data       string `json:"d"`
	PriceScale string `json:"pd"`
}

// DecodeFrame classifies a raw feed message. Unrecognized type tags yield
// a FrameUnknown frame with no error; malformed payloads of known types
// return an error so the caller can log and drop them.
func DecodeFrame(data []byte) (Frame, error) {
	var env frameEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}

	frame := Frame{Type: env.Type}
	switch env.Type {
	case typeTick:
		if env.Data == "" {
			return Frame{}, fmt.Errorf("tick frame without payload")
		}
		frame.Kind = FrameTick
		frame.Tick = env.Data

	case typePriceScale:
		scale, err := strconv.ParseFloat(strings.TrimSpace(env.PriceScale), 64)
		if err != nil {
			return Frame{}, fmt.Errorf("parse price scale %q: %w", env.PriceScale, err)
		}
		frame.Kind = FramePriceScale
		frame.Scale = scale

	case typeDailyVolume:
		fields := strings.Split(env.Data, "|")
		if len(fields) != dailyVolumeFields {
			return Frame{}, fmt.Errorf("daily volume frame has %d fields, want %d", len(fields), dailyVolumeFields)
		}
		volume, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return Frame{}, fmt.Errorf("parse daily volume %q: %w", fields[2], err)
		}
		frame.Kind = FrameDailyVolume
		frame.DailyVolume = volume

	case typeSnapshot:
		scale, err := strconv.ParseFloat(strings.TrimSpace(env.PriceScale), 64)
		if err != nil {
			return Frame{}, fmt.Errorf("parse snapshot price scale %q: %w", env.PriceScale, err)
		}
		frame.Kind = FrameSnapshot
		frame.Scale = scale
		if env.Data != "" {
			frame.Ticks = strings.Split(env.Data, ", ")
		}

	default:
		frame.Kind = FrameUnknown
	}

	return frame, nil
}

type controlFrame struct {
	Type    string `json:"t"`
	Product string `json:"p,omitempty"`
}

// SubscribeFrame is the outbound control frame that subscribes the session
// to an instrument's tick stream.
func SubscribeFrame(productCode string) []byte {
	data, _ := json.Marshal(controlFrame{Type: "SUBSCRIBE", Product: productCode})
	return data
}

// RecentFrame is the outbound control frame that requests a replay of the
// most recent ticks.
func RecentFrame() []byte {
	data, _ := json.Marshal(controlFrame{Type: "RECENT"})
	return data
}
