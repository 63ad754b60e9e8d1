// Package codec translates between raw CAN payloads and simulation events.
// Concrete codecs register themselves by name from an init function.
package codec

import (
	"math"

	"github.com/lion187chen/socketcan-hil/canframe"
	"github.com/lion187chen/socketcan-hil/simevent"
)

// Codec is a stateless translator for one vehicle or signal profile.
type Codec interface {
	// ToFrame encodes ev into a frame payload and names the send operation
	// the payload belongs to. An empty payload means ev cannot be encoded.
	ToFrame(ev simevent.Event) (payload []byte, operation string)
	// ToEvents decodes a received frame. Unknown CAN IDs yield no events.
	ToEvents(f canframe.Frame) []simevent.Event
}

// Scaling maps a raw bus integer to a physical value as raw*Factor+Offset.
type Scaling struct {
	Factor float64
	Offset float64
}

// Physical converts a raw value.
func (s Scaling) Physical(raw int64) float64 {
	return float64(raw)*s.Factor + s.Offset
}

// Raw converts a physical value back, rounding to the nearest step and
// clamping to [lo, hi]. NaN yields lo.
func (s Scaling) Raw(v float64, lo, hi int64) int64 {
	r := math.Round((v - s.Offset) / s.Factor)
	switch {
	case math.IsNaN(r), r <= float64(lo):
		return lo
	case r >= float64(hi):
		return hi
	}
	return int64(r)
}
