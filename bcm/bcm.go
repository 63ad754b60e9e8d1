// Package bcm encodes and decodes Linux CAN Broadcast Manager messages
// (struct bcm_msg_head followed by its frames).
package bcm

import (
	"fmt"
	"time"
)

// Opcode is the bcm_msg_head opcode.
type Opcode uint32

const (
	TX_SETUP   Opcode = iota + 1 // create (cyclic) transmission task
	TX_DELETE                    // remove (cyclic) transmission task
	TX_READ                      // read properties of (cyclic) transmission task
	TX_SEND                      // send one CAN frame
	RX_SETUP                     // create RX content filter subscription
	RX_DELETE                    // remove RX content filter subscription
	RX_READ                      // read properties of RX content filter subscription
	TX_STATUS                    // reply to TX_READ request
	TX_EXPIRED                   // notification on performed transmissions (count=0)
	RX_STATUS                    // reply to RX_READ request
	RX_TIMEOUT                   // cyclic message is absent
	RX_CHANGED                   // updated CAN frame (detected content change)
)

var opcodeNames = map[Opcode]string{
	TX_SETUP:   "TX_SETUP",
	TX_DELETE:  "TX_DELETE",
	TX_READ:    "TX_READ",
	TX_SEND:    "TX_SEND",
	RX_SETUP:   "RX_SETUP",
	RX_DELETE:  "RX_DELETE",
	RX_READ:    "RX_READ",
	TX_STATUS:  "TX_STATUS",
	TX_EXPIRED: "TX_EXPIRED",
	RX_STATUS:  "RX_STATUS",
	RX_TIMEOUT: "RX_TIMEOUT",
	RX_CHANGED: "RX_CHANGED",
}

func (o Opcode) String() string {
	if s, ok := opcodeNames[o]; ok {
		return s
	}
	return fmt.Sprintf("Opcode(%d)", uint32(o))
}

// Flags is the bcm_msg_head flags word.
type Flags uint32

const (
	SETTIMER           Flags = 0x0001
	STARTTIMER         Flags = 0x0002
	TX_COUNTEVT        Flags = 0x0004
	TX_ANNOUNCE        Flags = 0x0008
	TX_CP_CAN_ID       Flags = 0x0010
	RX_FILTER_ID       Flags = 0x0020
	RX_CHECK_DLC       Flags = 0x0040
	RX_NO_AUTOTIMER    Flags = 0x0080
	RX_ANNOUNCE_RESUME Flags = 0x0100
	TX_RESET_MULTI_IDX Flags = 0x0200
	RX_RTR_FRAME       Flags = 0x0400
	CAN_FD_FRAME       Flags = 0x0800
)

// Has reports whether all bits of m are set in f.
func (f Flags) Has(m Flags) bool { return f&m == m }

// Timeval mirrors struct bcm_timeval.
type Timeval struct {
	Sec  int64 `yaml:"sec"`
	Usec int64 `yaml:"usec"`
}

// TimevalOf splits d into seconds and microseconds.
func TimevalOf(d time.Duration) Timeval {
	return Timeval{
		Sec:  int64(d / time.Second),
		Usec: int64((d % time.Second) / time.Microsecond),
	}
}

// Duration converts tv back to a time.Duration.
func (tv Timeval) Duration() time.Duration {
	return time.Duration(tv.Sec)*time.Second + time.Duration(tv.Usec)*time.Microsecond
}

// IsZero reports whether both components are zero.
func (tv Timeval) IsZero() bool { return tv.Sec == 0 && tv.Usec == 0 }

// IsPositive reports whether tv has a positive component and no negative one.
func (tv Timeval) IsPositive() bool {
	return !tv.IsNegative() && (tv.Sec > 0 || tv.Usec > 0)
}

// IsNegative reports whether either component is negative.
func (tv Timeval) IsNegative() bool { return tv.Sec < 0 || tv.Usec < 0 }
