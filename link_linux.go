//go:build linux && go1.12

package socketcan

import (
	"fmt"
	"net"

	"github.com/mdlayher/netlink"
	"github.com/mdlayher/netlink/nlenc"
	"golang.org/x/sys/unix"
)

const (
	canLinkType  = "can"
	vcanLinkType = "vcan"
)

// Link manages a CAN network interface over rtnetlink.
type Link struct {
	nface *net.Interface
}

// OpenLink resolves the CAN interface ifName, such as "can0" or "vcan0".
func OpenLink(ifName string) (*Link, error) {
	nface, err := net.InterfaceByName(ifName)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInterfaceNotFound, ifName, err)
	}
	return &Link{nface: nface}, nil
}

// Name returns the interface name.
func (my *Link) Name() string { return my.nface.Name }

// Up the CAN interface.
func (my *Link) SetUp() error {
	if err := my.setFlags(unix.IFF_UP); err != nil {
		return fmt.Errorf("couldn't set link up: %w", err)
	}
	return nil
}

// Down the CAN interface.
func (my *Link) SetDown() error {
	if err := my.setFlags(0); err != nil {
		return fmt.Errorf("couldn't set link down: %w", err)
	}
	return nil
}

// IsUp reports whether IFF_UP is set.
func (my *Link) IsUp() (bool, error) {
	_, ifi, err := my.updateInfo()
	if err != nil {
		return false, err
	}
	return ifi.Flags&unix.IFF_UP != 0, nil
}

// Info reads the CAN link attributes.
func (my *Link) Info() (Info, error) {
	info, _, err := my.updateInfo()
	if err != nil {
		return Info{}, err
	}
	return *info, nil
}

// Bitrate returns the nominal bitrate; virtual links report 0.
func (my *Link) Bitrate() (uint32, error) {
	info, _, err := my.updateInfo()
	if err != nil {
		return 0, fmt.Errorf("couldn't retrieve bitrate: %w", err)
	}
	return info.BitTiming.Bitrate, nil
}

// To set bitrate, you must down the CAN interface first.
func (my *Link) SetBitrate(bitrate uint32) error {
	return my.changeInfo("bitrate", func(info *Info) {
		info.BitTiming.Bitrate = bitrate
	})
}

// SetListenOnlyMode toggles CAN_CTRLMODE_LISTENONLY.
func (my *Link) SetListenOnlyMode(on bool) error {
	return my.changeInfo("listen-only mode", func(info *Info) {
		info.CtrlMode.Mask |= unix.CAN_CTRLMODE_LISTENONLY
		if on {
			info.CtrlMode.Flags |= unix.CAN_CTRLMODE_LISTENONLY
		} else {
			info.CtrlMode.Flags &^= unix.CAN_CTRLMODE_LISTENONLY
		}
	})
}

func (my *Link) setFlags(flags uint32) error {
	_, err := execute(newRequest(unix.RTM_NEWLINK, &ifInfoMsg{
		Index:  int32(my.nface.Index),
		Flags:  flags,
		Change: unix.IFF_UP,
	}))
	return err
}

func (my *Link) changeInfo(what string, change func(*Info)) error {
	cur, _, err := my.updateInfo()
	if err != nil {
		return fmt.Errorf("couldn't get current parameters: %w", err)
	}
	if cur.Kind != canLinkType {
		return fmt.Errorf("couldn't set %s: %w: %s link", what, ErrNotCAN, cur.Kind)
	}
	info := Info{
		BitTiming: CanBitTiming{Bitrate: cur.BitTiming.Bitrate},
		CtrlMode:  cur.CtrlMode,
	}
	change(&info)

	ae := netlink.NewAttributeEncoder()
	ae.Nested(unix.IFLA_LINKINFO, info.encode)
	attrs, err := ae.Encode()
	if err != nil {
		return fmt.Errorf("couldn't encode message: %w", err)
	}

	req := newRequest(unix.RTM_NEWLINK, &ifInfoMsg{Index: int32(my.nface.Index)})
	req.Data = append(req.Data, attrs...)
	if _, err := execute(req); err != nil {
		return fmt.Errorf("couldn't set %s: %w", what, err)
	}
	return nil
}

func (my *Link) updateInfo() (*Info, *ifInfoMsg, error) {
	res, err := execute(newRequest(unix.RTM_GETLINK, &ifInfoMsg{Index: int32(my.nface.Index)}))
	if err != nil {
		return nil, nil, fmt.Errorf("couldn't retrieve link info: %w", err)
	}
	info, ifi, err := decodeLink(res[0].Data)
	if err != nil {
		return nil, nil, fmt.Errorf("couldn't decode info: %w", err)
	}
	return info, ifi, nil
}

// execute runs one acknowledged rtnetlink request on a fresh connection.
func execute(req netlink.Message) ([]netlink.Message, error) {
	c, err := netlink.Dial(unix.NETLINK_ROUTE, &netlink.Config{})
	if err != nil {
		return nil, fmt.Errorf("couldn't dial netlink socket: %w", err)
	}
	defer c.Close()

	res, err := c.Execute(req)
	if err != nil {
		return nil, err
	}
	if len(res) > 1 {
		return nil, fmt.Errorf("expected 1 message, got %d", len(res))
	}
	return res, nil
}

func newRequest(typ netlink.HeaderType, ifi *ifInfoMsg) netlink.Message {
	return netlink.Message{
		Header: netlink.Header{
			Flags: netlink.Request | netlink.Acknowledge,
			Type:  typ,
		},
		Data: ifi.marshalBinary(),
	}
}

// ifInfoMsg is struct ifinfomsg in host byte order.
type ifInfoMsg unix.IfInfomsg

func (ifi *ifInfoMsg) marshalBinary() []byte {
	buf := make([]byte, unix.SizeofIfInfomsg)
	buf[0] = ifi.Family
	nlenc.PutUint16(buf[2:4], ifi.Type)
	nlenc.PutInt32(buf[4:8], ifi.Index)
	nlenc.PutUint32(buf[8:12], ifi.Flags)
	nlenc.PutUint32(buf[12:16], ifi.Change)
	return buf
}
