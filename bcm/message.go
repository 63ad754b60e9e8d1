package bcm

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/lion187chen/socketcan-hil/canframe"
)

const (
	// HeaderSize is sizeof(struct bcm_msg_head) on 64-bit Linux.
	HeaderSize = 56
	// MAX_NFRAMES is the kernel's limit of frames per BCM message.
	MAX_NFRAMES = 256
)

var (
	ErrMessageSize = errors.New("bcm: message size mismatch")
	ErrShortHeader = errors.New("bcm: short header")
)

// type bcm_msg_head struct {
// 	opcode  uint32
// 	flags   uint32
// 	count   uint32
// 	__pad   uint32
// 	ival1   struct{ tv_sec, tv_usec int64 }
// 	ival2   struct{ tv_sec, tv_usec int64 }
// 	can_id  uint32
// 	nframes uint32
// 	frames  [nframes]can_frame | [nframes]canfd_frame
// }

// Message is a BCM header plus its frames. nframes is len(Frames) and the
// frame mode is declared by the CAN_FD_FRAME flag.
type Message struct {
	Opcode Opcode
	Flags  Flags
	Count  uint32
	Ival1  Timeval
	Ival2  Timeval
	CANID  uint32
	Frames []canframe.Frame
}

// IsFD reports whether the message declares CANFD frames.
func (m Message) IsFD() bool { return m.Flags.Has(CAN_FD_FRAME) }

// MessageSize returns the exact encoded size of a message with nframes
// frames of the given mode.
func MessageSize(nframes int, fd bool) int {
	return HeaderSize + nframes*canframe.Size(fd)
}

// MarshalBinary encodes m in the kernel layout. CAN_FD_FRAME is set when the
// frames are CANFD; mixing classic and CANFD frames is rejected.
func (m Message) MarshalBinary() ([]byte, error) {
	flags := m.Flags
	if len(m.Frames) > 0 {
		fd := m.Frames[0].IsFD()
		for _, f := range m.Frames {
			if f.IsFD() != fd {
				return nil, canframe.ErrMixedModes
			}
			if err := f.Validate(); err != nil {
				return nil, fmt.Errorf("couldn't encode frame %s: %w", f, err)
			}
		}
		if fd {
			flags |= CAN_FD_FRAME
		} else if flags.Has(CAN_FD_FRAME) {
			return nil, canframe.ErrMixedModes
		}
	}

	buf := make([]byte, 0, MessageSize(len(m.Frames), flags.Has(CAN_FD_FRAME)))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(m.Opcode))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(flags))
	buf = binary.LittleEndian.AppendUint32(buf, m.Count)
	buf = binary.LittleEndian.AppendUint32(buf, 0) // alignment of ival1
	buf = appendTimeval(buf, m.Ival1)
	buf = appendTimeval(buf, m.Ival2)
	buf = binary.LittleEndian.AppendUint32(buf, m.CANID)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(m.Frames)))
	for _, f := range m.Frames {
		switch f := f.(type) {
		case canframe.Classic:
			buf = f.AppendBinary(buf)
		case canframe.FD:
			buf = f.AppendBinary(buf)
		}
	}
	return buf, nil
}

func appendTimeval(buf []byte, tv Timeval) []byte {
	buf = binary.LittleEndian.AppendUint64(buf, uint64(tv.Sec))
	return binary.LittleEndian.AppendUint64(buf, uint64(tv.Usec))
}

func timeval(b []byte) Timeval {
	return Timeval{
		Sec:  int64(binary.LittleEndian.Uint64(b[0:8])),
		Usec: int64(binary.LittleEndian.Uint64(b[8:16])),
	}
}

// Unmarshal decodes one BCM message. The length of b must equal the header
// size plus nframes frames of the declared mode, otherwise the returned
// error wraps ErrMessageSize.
func Unmarshal(b []byte) (Message, error) {
	if len(b) < HeaderSize {
		return Message{}, fmt.Errorf(
			"%w: expected at least %d bytes, got: %d bytes",
			ErrShortHeader,
			HeaderSize,
			len(b),
		)
	}

	m := Message{
		Opcode: Opcode(binary.LittleEndian.Uint32(b[0:4])),
		Flags:  Flags(binary.LittleEndian.Uint32(b[4:8])),
		Count:  binary.LittleEndian.Uint32(b[8:12]),
		Ival1:  timeval(b[16:32]),
		Ival2:  timeval(b[32:48]),
		CANID:  binary.LittleEndian.Uint32(b[48:52]),
	}
	nframes := binary.LittleEndian.Uint32(b[52:56])
	fd := m.IsFD()

	// nframes is bounded by the read buffer, so this cannot overflow for any
	// length we can receive.
	if want := uint64(HeaderSize) + uint64(nframes)*uint64(canframe.Size(fd)); uint64(len(b)) != want {
		return m, fmt.Errorf(
			"%w: %s with %d frames, expected: %d bytes, got: %d bytes",
			ErrMessageSize,
			m.Opcode,
			nframes,
			want,
			len(b),
		)
	}

	size := canframe.Size(fd)
	m.Frames = make([]canframe.Frame, 0, nframes)
	for off := HeaderSize; off < len(b); off += size {
		f, err := canframe.Unmarshal(b[off:off+size], fd)
		if err != nil {
			return m, fmt.Errorf("couldn't decode frame %d: %w", len(m.Frames), err)
		}
		m.Frames = append(m.Frames, f)
	}
	return m, nil
}
