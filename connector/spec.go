package connector

import (
	"errors"
	"fmt"

	"github.com/lion187chen/socketcan-hil/bcm"
	"github.com/lion187chen/socketcan-hil/canframe"
)

var (
	ErrInvalidSendSpec    = errors.New("connector: invalid send operation")
	ErrInvalidReceiveSpec = errors.New("connector: invalid receive operation")
	ErrUnknownOperation   = errors.New("connector: unknown send operation")
	ErrNotCyclic          = errors.New("connector: send operation is not cyclic")
	ErrInvalidConfig      = errors.New("connector: invalid configuration")
	ErrClosed             = errors.New("connector: closed")
)

// SendOperationSpec configures how one send operation reaches the bus.
type SendOperationSpec struct {
	CANID    uint32
	IsCANFD  bool
	IsCyclic bool
	// Announce requests one immediate out-of-cycle transmission whenever an
	// installed cyclic task is updated. The running cycle is not reset.
	Announce bool
	// Count frames are sent at Ival1 before switching to Ival2. With
	// Count == 0 only Ival2 is used.
	Count uint32
	Ival1 bcm.Timeval
	Ival2 bcm.Timeval
}

// Validate checks the interval rules of cyclic operations.
func (s SendOperationSpec) Validate() error {
	if err := validateID(s.CANID); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSendSpec, err)
	}
	if !s.IsCyclic {
		return nil
	}
	if s.Ival1.IsNegative() || s.Ival2.IsNegative() {
		return fmt.Errorf("%w: intervals must not be negative", ErrInvalidSendSpec)
	}
	if s.Count == 0 {
		if !s.Ival2.IsPositive() {
			return fmt.Errorf("%w: count 0 requires a positive ival2", ErrInvalidSendSpec)
		}
		return nil
	}
	if !s.Ival1.IsPositive() || !s.Ival2.IsPositive() {
		return fmt.Errorf("%w: count %d requires positive ival1 and ival2", ErrInvalidSendSpec, s.Count)
	}
	return nil
}

// ReceiveOperationSpec configures the kernel filter for one CAN ID.
type ReceiveOperationSpec struct {
	Operation string
	IsCANFD   bool
	// With HasMask set only changes of the masked bits are reported.
	HasMask    bool
	Mask       []byte
	MaskLength int
}

// Validate checks the mask against the frame mode.
func (s ReceiveOperationSpec) Validate() error {
	if s.Operation == "" {
		return fmt.Errorf("%w: operation name is empty", ErrInvalidReceiveSpec)
	}
	if !s.HasMask {
		return nil
	}
	if limit := canframe.MaxLen(s.IsCANFD); s.MaskLength <= 0 || s.MaskLength > limit {
		return fmt.Errorf("%w: mask length %d outside 1..%d", ErrInvalidReceiveSpec, s.MaskLength, limit)
	}
	if len(s.Mask) < s.MaskLength {
		return fmt.Errorf("%w: mask has %d bytes, length says %d", ErrInvalidReceiveSpec, len(s.Mask), s.MaskLength)
	}
	return nil
}

func validateID(id uint32) error {
	if id > canframe.CAN_EFF_MASK {
		return fmt.Errorf("CAN ID %#x out of range", id)
	}
	return nil
}
