package canframe

import (
	"encoding/binary"
	"fmt"
)

const (
	// ClassicSize is sizeof(struct can_frame).
	ClassicSize = 16
	// FDSize is sizeof(struct canfd_frame).
	FDSize = 72

	CAN_EFF_FLAG uint32 = 0x80000000 // Extended frame flag.
	CAN_RTR_FLAG uint32 = 0x40000000 // Remote frame flag.
	CAN_ERR_FLAG uint32 = 0x20000000 // Error frame flag.
	/* mask */
	CAN_SFF_MASK uint32 = 0x000007FF // Use "can_id & CAN_SFF_MASK" to get standard frame ID.
	CAN_EFF_MASK uint32 = 0x1FFFFFFF // Use "can_id & CAN_EFF_MASK" to get extended frame ID.

	CANFD_BRS uint8 = 0x01 // Bit rate switch.
	CANFD_ESI uint8 = 0x02 // Error state indicator of the transmitting node.
	CANFD_FDF uint8 = 0x04 // Mark CAN FD for dual use of struct canfd_frame.
)

// Size returns the encoded size of a frame of the given mode.
func Size(fd bool) int {
	if fd {
		return FDSize
	}
	return ClassicSize
}

// WireID returns id as the kernel expects it in a BCM header: IDs above the
// standard range carry CAN_EFF_FLAG.
func WireID(id uint32) uint32 {
	if id > CAN_SFF_MASK {
		return id | CAN_EFF_FLAG
	}
	return id
}

// type can_frame struct {
// 	can_id   uint32
// 	len      uint8
// 	__pad    uint8
// 	__res0   uint8
// 	len8_dlc uint8
// 	data     [8]byte
// }

// MarshalBinary encodes the frame as struct can_frame.
func (f Classic) MarshalBinary() ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f.AppendBinary(make([]byte, 0, ClassicSize)), nil
}

// AppendBinary appends the struct can_frame encoding of f to buf. f must be
// valid.
func (f Classic) AppendBinary(buf []byte) []byte {
	id := f.ID
	if f.IsExtended {
		id |= CAN_EFF_FLAG
	}
	if f.IsRemote {
		id |= CAN_RTR_FLAG
	}
	if f.IsError {
		id |= CAN_ERR_FLAG
	}
	buf = binary.LittleEndian.AppendUint32(buf, id)
	buf = append(buf, f.Len, 0, 0, 0)
	return append(buf, f.Data[:]...)
}

// type canfd_frame struct {
// 	can_id uint32
// 	len    uint8
// 	flags  uint8
// 	__res0 uint8
// 	__res1 uint8
// 	data   [64]byte
// }

// MarshalBinary encodes the frame as struct canfd_frame.
func (f FD) MarshalBinary() ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f.AppendBinary(make([]byte, 0, FDSize)), nil
}

// AppendBinary appends the struct canfd_frame encoding of f to buf. f must
// be valid.
func (f FD) AppendBinary(buf []byte) []byte {
	id := f.ID
	if f.IsExtended {
		id |= CAN_EFF_FLAG
	}
	if f.IsError {
		id |= CAN_ERR_FLAG
	}
	buf = binary.LittleEndian.AppendUint32(buf, id)
	buf = append(buf, f.Len, f.Flags|CANFD_FDF, 0, 0)
	return append(buf, f.Data[:]...)
}

// Unmarshal decodes one frame of the given mode from the start of bs.
func Unmarshal(bs []byte, fd bool) (Frame, error) {
	if len(bs) < Size(fd) {
		return nil, fmt.Errorf(
			"data is not a valid frame, expected: %d bytes, got: %d bytes",
			Size(fd),
			len(bs),
		)
	}

	raw := binary.LittleEndian.Uint32(bs[0:4])
	extended := raw&CAN_EFF_FLAG != 0
	isErr := raw&CAN_ERR_FLAG != 0
	id := raw & CAN_EFF_MASK
	if !extended {
		id &= CAN_SFF_MASK
	}

	if fd {
		f := FD{
			ID:         id,
			Len:        bs[4],
			Flags:      bs[5] &^ CANFD_FDF,
			IsExtended: extended,
			IsError:    isErr,
		}
		copy(f.Data[:], bs[8:FDSize])
		if f.Len > MaxFDLen {
			return f, ErrInvalidLen
		}
		return f, nil
	}

	f := Classic{
		ID:         id,
		Len:        bs[4],
		IsExtended: extended,
		IsRemote:   raw&CAN_RTR_FLAG != 0,
		IsError:    isErr,
	}
	copy(f.Data[:], bs[8:ClassicSize])
	if f.Len > MaxClassicLen {
		return f, ErrInvalidLen
	}
	return f, nil
}
