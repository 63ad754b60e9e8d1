//go:build linux && go1.12

package socketcan

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/lion187chen/socketcan-hil/bcm"
	"github.com/lion187chen/socketcan-hil/canframe"
	"github.com/mdlayher/socket"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/sys/unix"
)

// socketPair returns two connected SEQPACKET sockets; datagram boundaries are
// kept like on a BCM socket.
func socketPair(t *testing.T) (*socket.Conn, *socket.Conn) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_SEQPACKET|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		t.Fatalf("failed to create socketpair: %v", err)
	}
	a, err := socket.New(fds[0], "bcm-test")
	if err != nil {
		t.Fatalf("failed to wrap fd: %v", err)
	}
	b, err := socket.New(fds[1], "bcm-peer")
	if err != nil {
		t.Fatalf("failed to wrap fd: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return a, b
}

func newTestBCM(t *testing.T, opts ...Option) (*BCM, *socket.Conn, *observer.ObservedLogs, chan bcm.Message) {
	t.Helper()
	conn, peer := socketPair(t)
	core, logs := observer.New(zapcore.DebugLevel)
	got := make(chan bcm.Message, 8)
	opts = append([]Option{
		WithLogger(zap.New(core)),
		WithHandler(func(m bcm.Message) { got <- m }),
	}, opts...)
	my := newBCM(conn, "vcan0", opts...)
	my.start()
	t.Cleanup(func() { my.Close() })
	return my, peer, logs, got
}

func mustMarshal(t *testing.T, m bcm.Message) []byte {
	t.Helper()
	b, err := m.MarshalBinary()
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}
	return b
}

func waitMessage(t *testing.T, ch <-chan bcm.Message) bcm.Message {
	t.Helper()
	select {
	case m := <-ch:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a bcm message")
	}
	return bcm.Message{}
}

func TestBCMReceive(t *testing.T) {
	_, peer, _, got := newTestBCM(t)

	want := bcm.Message{
		Opcode: bcm.RX_CHANGED,
		CANID:  0x275,
		Frames: []canframe.Frame{canframe.Classic{ID: 0x275, Len: 2, Data: [8]byte{0x64, 0x00}}},
	}
	if _, err := peer.Write(mustMarshal(t, want)); err != nil {
		t.Fatalf("failed to write: %v", err)
	}

	if diff := cmp.Diff(want, waitMessage(t, got)); diff != "" {
		t.Errorf("unexpected message (-want +got):\n%s", diff)
	}
}

func TestBCMDropsMalformedAndContinues(t *testing.T) {
	_, peer, logs, got := newTestBCM(t)

	bad := mustMarshal(t, bcm.Message{
		Opcode: bcm.RX_CHANGED,
		CANID:  0x100,
		Frames: []canframe.Frame{canframe.Classic{ID: 0x100, Len: 1}},
	})
	if _, err := peer.Write(bad[:len(bad)-3]); err != nil {
		t.Fatalf("failed to write: %v", err)
	}
	good := bcm.Message{Opcode: bcm.RX_TIMEOUT, CANID: 0x101}
	if _, err := peer.Write(mustMarshal(t, good)); err != nil {
		t.Fatalf("failed to write: %v", err)
	}

	if diff := cmp.Diff(good, waitMessage(t, got), cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("unexpected message (-want +got):\n%s", diff)
	}
	if n := logs.FilterMessage("dropping bcm message").Len(); n != 1 {
		t.Errorf("expected 1 dropped message log, got %d", n)
	}
}

func TestBCMSubmit(t *testing.T) {
	my, peer, _, _ := newTestBCM(t, WithFD(true))

	msg := bcm.Message{
		Opcode: bcm.TX_SETUP,
		Flags:  bcm.SETTIMER | bcm.STARTTIMER,
		Ival2:  bcm.Timeval{Sec: 3},
		CANID:  0x3A5,
		Frames: []canframe.Frame{canframe.FD{ID: 0x3A5, Len: 12, Data: [64]byte{1, 2, 3}}},
	}
	my.Submit(msg)

	buf := make([]byte, readBufferLen)
	n, err := peer.Read(buf)
	if err != nil {
		t.Fatalf("failed to read: %v", err)
	}
	if n != bcm.MessageSize(1, true) {
		t.Fatalf("expected %d bytes, got %d", bcm.MessageSize(1, true), n)
	}
	got, err := bcm.Unmarshal(buf[:n])
	if err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	msg.Flags |= bcm.CAN_FD_FRAME
	if diff := cmp.Diff(msg, got); diff != "" {
		t.Errorf("unexpected message (-want +got):\n%s", diff)
	}
}

func TestBCMSubmitInvalidFrame(t *testing.T) {
	my, _, logs, _ := newTestBCM(t)

	my.Submit(bcm.Message{
		Opcode: bcm.TX_SEND,
		CANID:  0x123,
		Frames: []canframe.Frame{canframe.Classic{ID: 0x123, Len: 9}},
	})
	if n := logs.FilterMessage("couldn't encode bcm message").Len(); n != 1 {
		t.Errorf("expected 1 encode error log, got %d", n)
	}
}

func TestBCMClose(t *testing.T) {
	my, _, logs, _ := newTestBCM(t)

	if err := my.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	if err := my.Close(); err != nil {
		t.Errorf("second close should be a no-op, got: %v", err)
	}

	my.Submit(bcm.Message{Opcode: bcm.TX_DELETE, CANID: 0x1})
	if n := logs.FilterMessage("bcm submit after close").Len(); n != 1 {
		t.Errorf("expected 1 submit-after-close warning, got %d", n)
	}
	if n := logs.FilterMessage("bcm receive loop did not stop").Len(); n != 0 {
		t.Errorf("receive loop should have stopped, got %d timeout logs", n)
	}
}

func TestNextBackoff(t *testing.T) {
	var d time.Duration
	var got []time.Duration
	for i := 0; i < 12; i++ {
		d = nextBackoff(d)
		got = append(got, d)
	}
	if got[0] != minBackoff {
		t.Errorf("first backoff = %v, want %v", got[0], minBackoff)
	}
	if got[1] != 2*minBackoff {
		t.Errorf("second backoff = %v, want %v", got[1], 2*minBackoff)
	}
	if last := got[len(got)-1]; last != maxBackoff {
		t.Errorf("backoff should cap at %v, got %v", maxBackoff, last)
	}
}

func TestDialBCMInterfaceNotFound(t *testing.T) {
	_, err := DialBCM(context.Background(), "nosuchcan0")
	if !errors.Is(err, ErrInterfaceNotFound) {
		t.Fatalf("DialBCM() err=%v, want ErrInterfaceNotFound", err)
	}
}

type fakeSockopt struct{ err error }

func (f fakeSockopt) SetsockoptInt(level, opt, value int) error {
	if level != unix.SOL_CAN_RAW || opt != unix.CAN_RAW_FD_FRAMES || value != 1 {
		return unix.EINVAL
	}
	return f.err
}

func TestEnableFDFrames(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
		warn int
	}{
		{"accepted", nil, nil, 0},
		{"unsupported", os.NewSyscallError("setsockopt", unix.EOPNOTSUPP), nil, 1},
		{"no such option", os.NewSyscallError("setsockopt", unix.ENOPROTOOPT), nil, 1},
		{"other failure", os.NewSyscallError("setsockopt", unix.EBADF), ErrSocketOption, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			err := enableFDFrames(fakeSockopt{tt.err}, zap.New(core))
			if tt.want == nil && err != nil {
				t.Fatalf("enableFDFrames() err=%v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("enableFDFrames() err=%v, want %v", err, tt.want)
			}
			if n := logs.FilterLevelExact(zapcore.WarnLevel).Len(); n != tt.warn {
				t.Errorf("got %d warnings, want %d", n, tt.warn)
			}
		})
	}
}
