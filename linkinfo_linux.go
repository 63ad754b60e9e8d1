//go:build linux && go1.12

package socketcan

import (
	"fmt"

	"github.com/mdlayher/netlink"
	"github.com/mdlayher/netlink/nlenc"
	"golang.org/x/sys/unix"
)

// Info is the subset of IFLA_LINKINFO a CAN link reports.
type Info struct {
	DevName     string
	Kind        string
	BitTiming   CanBitTiming
	Clock       CanClock
	CtrlMode    CanCtrlMode
	State       LinkState
	ErrCounters CanBusErrCounters
}

// LinkState is the CAN controller error state (IFLA_CAN_STATE).
type LinkState uint32

func (s LinkState) String() string {
	switch s {
	case unix.CAN_STATE_ERROR_ACTIVE:
		return "ERROR-ACTIVE"
	case unix.CAN_STATE_ERROR_WARNING:
		return "ERROR-WARNING"
	case unix.CAN_STATE_ERROR_PASSIVE:
		return "ERROR-PASSIVE"
	case unix.CAN_STATE_BUS_OFF:
		return "BUS-OFF"
	case unix.CAN_STATE_STOPPED:
		return "STOPPED"
	case unix.CAN_STATE_SLEEPING:
		return "SLEEPING"
	}
	return fmt.Sprintf("STATE(%d)", uint32(s))
}

func (li *Info) encode(nae *netlink.AttributeEncoder) error {
	nae.String(unix.IFLA_INFO_KIND, canLinkType)
	nae.Nested(unix.IFLA_INFO_DATA, li.encodeData)
	return nil
}

func (li *Info) encodeData(nae *netlink.AttributeEncoder) error {
	if li.BitTiming.Bitrate != 0 {
		nae.Bytes(unix.IFLA_CAN_BITTIMING, li.BitTiming.marshalBinary())
	}
	if li.CtrlMode.Mask != 0 {
		nae.Bytes(unix.IFLA_CAN_CTRLMODE, li.CtrlMode.marshalBinary())
	}
	return nil
}

func (li *Info) decode(nad *netlink.AttributeDecoder) error {
	for nad.Next() {
		switch nad.Type() {
		case unix.IFLA_INFO_KIND:
			li.Kind = nad.String()
			if li.Kind != canLinkType && li.Kind != vcanLinkType {
				return fmt.Errorf("%w: kind %q", ErrNotCAN, li.Kind)
			}
		case unix.IFLA_INFO_DATA:
			nad.Nested(li.decodeData)
		}
	}
	return nil
}

func (li *Info) decodeData(nad *netlink.AttributeDecoder) error {
	for nad.Next() {
		var err error
		switch nad.Type() {
		case unix.IFLA_CAN_BITTIMING:
			err = li.BitTiming.unmarshalBinary(nad.Bytes())
		case unix.IFLA_CAN_CLOCK:
			err = li.Clock.unmarshalBinary(nad.Bytes())
		case unix.IFLA_CAN_STATE:
			err = decodeWords("CAN state", nad.Bytes(), (*uint32)(&li.State))
		case unix.IFLA_CAN_CTRLMODE:
			err = li.CtrlMode.unmarshalBinary(nad.Bytes())
		case unix.IFLA_CAN_BERR_COUNTER:
			err = li.ErrCounters.unmarshalBinary(nad.Bytes())
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// decodeLink splits an RTM_NEWLINK payload into its header and CAN attributes.
func decodeLink(data []byte) (*Info, *ifInfoMsg, error) {
	if len(data) < unix.SizeofIfInfomsg {
		return nil, nil, fmt.Errorf("short link message: %d bytes", len(data))
	}
	var ifi ifInfoMsg
	if err := ifi.unmarshalBinary(data[:unix.SizeofIfInfomsg]); err != nil {
		return nil, nil, err
	}
	if ifi.Type != unix.ARPHRD_CAN {
		return nil, nil, fmt.Errorf("%w: hardware type %d", ErrNotCAN, ifi.Type)
	}

	ad, err := netlink.NewAttributeDecoder(data[unix.SizeofIfInfomsg:])
	if err != nil {
		return nil, nil, err
	}
	var info Info
	for ad.Next() {
		switch ad.Type() {
		case unix.IFLA_IFNAME:
			info.DevName = ad.String()
		case unix.IFLA_LINKINFO:
			ad.Nested(info.decode)
		}
	}
	if err := ad.Err(); err != nil {
		return nil, nil, fmt.Errorf("couldn't decode link: %w", err)
	}
	return &info, &ifi, nil
}

// decodeWords fills dst from consecutive host-order 32-bit words.
func decodeWords(what string, data []byte, dst ...*uint32) error {
	if len(data) != 4*len(dst) {
		return fmt.Errorf("invalid %s: expected %d bytes, got %d", what, 4*len(dst), len(data))
	}
	for i, p := range dst {
		*p = nlenc.Uint32(data[4*i : 4*i+4])
	}
	return nil
}

func encodeWords(src ...uint32) []byte {
	buf := make([]byte, 4*len(src))
	for i, v := range src {
		nlenc.PutUint32(buf[4*i:4*i+4], v)
	}
	return buf
}

// CanBitTiming mirrors struct can_bittiming.
type CanBitTiming unix.CANBitTiming

func (bt *CanBitTiming) words() []*uint32 {
	return []*uint32{
		&bt.Bitrate, &bt.Sample_point, &bt.Tq, &bt.Prop_seg,
		&bt.Phase_seg1, &bt.Phase_seg2, &bt.Sjw, &bt.Brp,
	}
}

func (bt *CanBitTiming) marshalBinary() []byte {
	return encodeWords(bt.Bitrate, bt.Sample_point, bt.Tq, bt.Prop_seg,
		bt.Phase_seg1, bt.Phase_seg2, bt.Sjw, bt.Brp)
}

func (bt *CanBitTiming) unmarshalBinary(data []byte) error {
	return decodeWords("CAN bit timing", data, bt.words()...)
}

// CanClock
type CanClock unix.CANClock

func (c *CanClock) unmarshalBinary(data []byte) error {
	return decodeWords("CAN clock", data, &c.Freq)
}

// CanCtrlMode
type CanCtrlMode unix.CANCtrlMode

func (cm *CanCtrlMode) marshalBinary() []byte {
	return encodeWords(cm.Mask, cm.Flags)
}

func (cm *CanCtrlMode) unmarshalBinary(data []byte) error {
	return decodeWords("CAN control mode", data, &cm.Mask, &cm.Flags)
}

// CanBusErrCounters holds the controller's tx/rx error counters.
type CanBusErrCounters unix.CANBusErrorCounters

func (bec *CanBusErrCounters) unmarshalBinary(data []byte) error {
	if len(data) != 4 {
		return fmt.Errorf("invalid CAN error counters: expected 4 bytes, got %d", len(data))
	}
	bec.Txerr = nlenc.Uint16(data[0:2])
	bec.Rxerr = nlenc.Uint16(data[2:4])
	return nil
}

func (ifi *ifInfoMsg) unmarshalBinary(data []byte) error {
	if len(data) != unix.SizeofIfInfomsg {
		return fmt.Errorf("invalid ifinfomsg: expected %d bytes, got %d", unix.SizeofIfInfomsg, len(data))
	}
	ifi.Family = data[0]
	ifi.Type = nlenc.Uint16(data[2:4])
	ifi.Index = nlenc.Int32(data[4:8])
	ifi.Flags = nlenc.Uint32(data[8:12])
	ifi.Change = nlenc.Uint32(data[12:16])
	return nil
}
