// Package canframe holds the classic CAN and CANFD frame variants exchanged
// with the kernel and their on-wire layouts.
package canframe

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// MaxClassicLen is the payload limit of a classic CAN frame.
	MaxClassicLen = 8
	// MaxFDLen is the payload limit of a CANFD frame.
	MaxFDLen = 64
)

var (
	ErrInvalidLen = errors.New("canframe: invalid data length")
	ErrInvalidID  = errors.New("canframe: invalid identifier")
	ErrMixedModes = errors.New("canframe: classic and CANFD frames mixed")
)

// Frame is either a Classic or an FD frame.
type Frame interface {
	// CANID returns the identifier without the EFF/RTR/ERR flag bits.
	CANID() uint32
	// Payload returns the valid data bytes.
	Payload() []byte
	// IsFD reports whether the frame is a CANFD frame.
	IsFD() bool
	Validate() error
	MarshalBinary() ([]byte, error)
	String() string

	isFrame()
}

// Classic is a classic CAN 2.0 frame.
type Classic struct {
	// ID is the CAN ID
	ID uint32
	// Len is the number of bytes of data in the frame.
	Len uint8
	// payload data.
	Data [MaxClassicLen]byte
	// Whether a extended frame or not.
	IsExtended bool
	// Whether a remote frame or not.
	IsRemote bool
	// Whether a error frame or not.
	IsError bool
}

// FD is a CANFD frame.
type FD struct {
	ID uint32
	// Len is the number of valid bytes, not a DLC code.
	Len uint8
	// Flags carries the CANFD_BRS / CANFD_ESI bits; CANFD_FDF is added on
	// encode.
	Flags      uint8
	Data       [MaxFDLen]byte
	IsExtended bool
	IsError    bool
}

func (Classic) isFrame() {}
func (FD) isFrame()      {}

func (f Classic) CANID() uint32   { return f.ID }
func (f Classic) IsFD() bool      { return false }
func (f Classic) Payload() []byte { return f.Data[:min(int(f.Len), MaxClassicLen)] }

func (f FD) CANID() uint32   { return f.ID }
func (f FD) IsFD() bool      { return true }
func (f FD) Payload() []byte { return f.Data[:min(int(f.Len), MaxFDLen)] }

func (f Classic) Validate() error {
	if f.Len > MaxClassicLen {
		return ErrInvalidLen
	}
	return validateID(f.ID, f.IsExtended)
}

func (f FD) Validate() error {
	if f.Len > MaxFDLen {
		return ErrInvalidLen
	}
	return validateID(f.ID, f.IsExtended)
}

func validateID(id uint32, extended bool) error {
	if extended {
		if id > CAN_EFF_MASK {
			return ErrInvalidID
		}
		return nil
	}
	if id > CAN_SFF_MASK {
		return ErrInvalidID
	}
	return nil
}

// ToFD widens a classic frame into a CANFD frame carrying the same payload.
func (f Classic) ToFD() FD {
	fd := FD{
		ID:         f.ID,
		Len:        f.Len,
		IsExtended: f.IsExtended,
		IsError:    f.IsError,
	}
	copy(fd.Data[:], f.Payload())
	return fd
}

// ToClassic narrows a CANFD frame. It fails when the payload does not fit.
func (f FD) ToClassic() (Classic, error) {
	if f.Len > MaxClassicLen {
		return Classic{}, fmt.Errorf("%w: %d bytes do not fit a classic frame", ErrInvalidLen, f.Len)
	}
	c := Classic{
		ID:         f.ID,
		Len:        f.Len,
		IsExtended: f.IsExtended,
		IsError:    f.IsError,
	}
	copy(c.Data[:], f.Payload())
	return c, nil
}

// MaxLen returns the payload limit of the given mode.
func MaxLen(fd bool) int {
	if fd {
		return MaxFDLen
	}
	return MaxClassicLen
}

// PayloadFrame builds a frame of the requested mode around payload. IDs above
// the standard range are sent as extended frames.
func PayloadFrame(fd bool, id uint32, payload []byte) (Frame, error) {
	if len(payload) > MaxLen(fd) {
		return nil, fmt.Errorf("%w: %d bytes, mode limit %d", ErrInvalidLen, len(payload), MaxLen(fd))
	}
	extended := id > CAN_SFF_MASK
	if fd {
		f := FD{ID: id, Len: uint8(len(payload)), IsExtended: extended}
		copy(f.Data[:], payload)
		return f, f.Validate()
	}
	f := Classic{ID: id, Len: uint8(len(payload)), IsExtended: extended}
	copy(f.Data[:], payload)
	return f, f.Validate()
}

func (f Classic) String() string {
	return format(f.ID, f.IsExtended, f.Payload(), f.IsRemote, false)
}

func (f FD) String() string {
	return format(f.ID, f.IsExtended, f.Payload(), false, true)
}

func format(id uint32, extended bool, data []byte, remote, fd bool) string {
	var b strings.Builder
	if extended {
		fmt.Fprintf(&b, "%08X", id)
	} else {
		fmt.Fprintf(&b, "%03X", id)
	}
	if fd {
		fmt.Fprintf(&b, " [%02d]", len(data))
	} else {
		fmt.Fprintf(&b, " [%d]", len(data))
	}
	if remote {
		b.WriteString(" RTR")
		return b.String()
	}
	for _, d := range data {
		fmt.Fprintf(&b, " %02X", d)
	}
	return b.String()
}
