// Package bmw implements the "Bmw" codec: a BMW-style signal profile with
// little-endian scaled values and a remapped light status word.
package bmw

import (
	"math"

	"github.com/lion187chen/socketcan-hil/byteorder"
	"github.com/lion187chen/socketcan-hil/canframe"
	"github.com/lion187chen/socketcan-hil/codec"
	"github.com/lion187chen/socketcan-hil/simevent"
	"go.uber.org/zap"
)

// Name is the registry name of this codec.
const Name = "Bmw"

func init() {
	codec.MustRegister(Name, func(logger *zap.Logger) codec.Codec {
		return New(logger)
	})
}

// CAN IDs of the decoded messages.
const (
	ID_GESCHWINDIGKEIT uint32 = 0x275
	ID_LICHT           uint32 = 0x21A
	ID_LENKWINKEL      uint32 = 0x301
	ID_FAS             uint32 = 0x3A5
)

// Send operation keys returned by ToFrame.
const (
	OP_GESCHWINDIGKEIT = "GESCHWINDIGKEIT"
	OP_LICHT           = "LICHT"
	OP_LENKWINKEL      = "LENKWINKEL"
)

// Simulation-side operation names.
const (
	SpeedDUT         = "Speed_DUT"
	SteeringAngleDUT = "SteeringAngle_DUT"
	LightsDUT        = "Lights_DUT"
	AccDistanceDUT   = "AccDistance_DUT"
	AccSetSpeedDUT   = "AccSetSpeed_DUT"

	SpeedSIM         = "Speed_SIM"
	SteeringAngleSIM = "SteeringAngle_SIM"
	LightsSIM        = "Lights_SIM"
)

// Signal scaling, physical = raw*SCALING + OFFSET.
const (
	V_VEHCOG_SCALING = 0.015625 // km/h per bit
	V_VEHCOG_OFFSET  = 0.0

	AVL_STEA_SCALING = 0.04395 // deg per bit
	AVL_STEA_OFFSET  = 0.0

	DIST_TAR_SCALING = 0.01 // m per bit
	V_SET_SCALING    = 0.1  // km/h per bit
)

var (
	speed       = codec.Scaling{Factor: V_VEHCOG_SCALING, Offset: V_VEHCOG_OFFSET}
	steering    = codec.Scaling{Factor: AVL_STEA_SCALING, Offset: AVL_STEA_OFFSET}
	accDistance = codec.Scaling{Factor: DIST_TAR_SCALING}
	accSetSpeed = codec.Scaling{Factor: V_SET_SCALING}
)

// Light signals as they sit in the LICHT bus word.
var busLights = codec.BitLayout{
	"low_beam":        0x0001,
	"high_beam":       0x0002,
	"parking":         0x0004,
	"fog_front":       0x0010,
	"fog_rear":        0x0020,
	"indicator_left":  0x0100,
	"indicator_right": 0x0200,
	"hazard":          0x0400,
}

// Light signals as the simulation expects them in Lights_DUT / Lights_SIM.
var simLights = codec.BitLayout{
	"parking":         0x01,
	"low_beam":        0x02,
	"high_beam":       0x04,
	"fog_front":       0x08,
	"fog_rear":        0x10,
	"indicator_left":  0x20,
	"indicator_right": 0x40,
	"hazard":          0x80,
}

const (
	payloadLen       = 8
	steeringValidBit = 0x01
	fasMinLen        = 6
)

// Codec is the Bmw codec.
type Codec struct {
	logger *zap.Logger
}

// New creates a Bmw codec.
func New(logger *zap.Logger) *Codec {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Codec{logger: logger}
}

var _ codec.Codec = (*Codec)(nil)

// ToEvents decodes frames of the known BMW messages.
func (my *Codec) ToEvents(f canframe.Frame) []simevent.Event {
	data := f.Payload()
	switch f.CANID() {
	case ID_GESCHWINDIGKEIT:
		if !my.hasLen(f, 2) {
			return nil
		}
		raw := byteorder.Uint16(data[0:2])
		return []simevent.Event{simevent.New(SpeedDUT, speed.Physical(int64(raw)), Name)}

	case ID_LENKWINKEL:
		if !my.hasLen(f, 3) {
			return nil
		}
		if data[2]&steeringValidBit == 0 {
			my.logger.Debug("steering angle marked invalid, dropped", zap.Stringer("frame", f))
			return nil
		}
		raw := int16(byteorder.Uint16(data[0:2]))
		return []simevent.Event{simevent.New(SteeringAngleDUT, steering.Physical(int64(raw)), Name)}

	case ID_LICHT:
		if !my.hasLen(f, 2) {
			return nil
		}
		word := uint64(byteorder.Uint16(data[0:2]))
		lights := uint16(codec.Remap(word, busLights, simLights))
		return []simevent.Event{simevent.New(LightsDUT, lights, Name)}

	case ID_FAS:
		if !f.IsFD() {
			my.logger.Warn("FAS expects a CANFD frame", zap.Stringer("frame", f))
			return nil
		}
		if !my.hasLen(f, fasMinLen) {
			return nil
		}
		dist := byteorder.Uint32(data[0:4])
		set := byteorder.Uint16(data[4:6])
		return []simevent.Event{
			simevent.New(AccDistanceDUT, accDistance.Physical(int64(dist)), Name),
			simevent.New(AccSetSpeedDUT, accSetSpeed.Physical(int64(set)), Name),
		}
	}

	my.logger.Warn("no decoder for CAN ID", zap.Uint32("can_id", f.CANID()))
	return nil
}

func (my *Codec) hasLen(f canframe.Frame, n int) bool {
	if len(f.Payload()) < n {
		my.logger.Warn("frame too short",
			zap.Uint32("can_id", f.CANID()),
			zap.Int("len", len(f.Payload())),
			zap.Int("want", n),
		)
		return false
	}
	return true
}

// ToFrame encodes simulation events into BMW message payloads.
func (my *Codec) ToFrame(ev simevent.Event) ([]byte, string) {
	v, ok := ev.Float64()
	if !ok || math.IsNaN(v) {
		my.logger.Warn("event value is not numeric",
			zap.String("operation", ev.Operation),
			zap.Any("value", ev.Value),
		)
		return nil, ""
	}

	buf := make([]byte, payloadLen)
	switch ev.Operation {
	case SpeedSIM:
		raw := speed.Raw(v, 0, 0xFFFF)
		byteorder.PutUint16(buf[0:2], uint16(raw))
		return buf, OP_GESCHWINDIGKEIT

	case SteeringAngleSIM:
		raw := steering.Raw(v, -0x8000, 0x7FFF)
		byteorder.PutUint16(buf[0:2], uint16(int16(raw)))
		buf[2] = steeringValidBit
		return buf, OP_LENKWINKEL

	case LightsSIM:
		word := codec.Remap(uint64(clampLights(v)), simLights, busLights)
		byteorder.PutUint16(buf[0:2], uint16(word))
		return buf, OP_LICHT
	}

	my.logger.Warn("no encoder for operation", zap.String("operation", ev.Operation))
	return nil, ""
}

// clampLights bounds a lights bit set to the 16-bit simulator word. Negative
// values switch everything off.
func clampLights(v float64) uint16 {
	switch {
	case v <= 0:
		return 0
	case v >= math.MaxUint16:
		return math.MaxUint16
	}
	return uint16(v)
}
