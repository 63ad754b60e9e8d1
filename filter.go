package socketcan

import (
	"github.com/lion187chen/socketcan-hil/bcm"
	"github.com/lion187chen/socketcan-hil/canframe"
)

// Filter is a BCM receive subscription for one CAN ID.
type Filter struct {
	ID uint32
	// Mask selects the payload bits whose changes are reported. A nil Mask
	// reports every received frame.
	Mask []byte
	FD   bool
}

// NewIDFilter reports every frame with the given ID.
func NewIDFilter(id uint32, fd bool) Filter {
	return Filter{
		ID: id,
		FD: fd,
	}
}

// NewMaskFilter reports frames with the given ID whose masked bits changed.
func NewMaskFilter(id uint32, mask []byte, fd bool) Filter {
	m := make([]byte, len(mask))
	copy(m, mask)
	return Filter{
		ID:   id,
		Mask: m,
		FD:   fd,
	}
}

// IsMasked reports whether the filter carries a content mask.
func (f Filter) IsMasked() bool { return f.Mask != nil }

// SetupMessage builds the RX_SETUP message installing the filter.
func (f Filter) SetupMessage() (bcm.Message, error) {
	msg := bcm.Message{
		Opcode: bcm.RX_SETUP,
		CANID:  canframe.WireID(f.ID),
	}
	if !f.IsMasked() {
		msg.Flags = bcm.RX_FILTER_ID | f.modeFlag()
		return msg, nil
	}

	mask, err := canframe.PayloadFrame(f.FD, f.ID, f.Mask)
	if err != nil {
		return bcm.Message{}, err
	}
	msg.Flags = f.modeFlag()
	msg.Frames = []canframe.Frame{mask}
	return msg, nil
}

// DeleteMessage builds the RX_DELETE message removing the filter.
func (f Filter) DeleteMessage() bcm.Message {
	return bcm.Message{
		Opcode: bcm.RX_DELETE,
		Flags:  f.modeFlag(),
		CANID:  canframe.WireID(f.ID),
	}
}

func (f Filter) modeFlag() bcm.Flags {
	if f.FD {
		return bcm.CAN_FD_FRAME
	}
	return 0
}
