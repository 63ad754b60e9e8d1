//go:build linux && go1.12

package socketcan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lion187chen/socketcan-hil/bcm"
	"github.com/lion187chen/socketcan-hil/canframe"
	"github.com/mdlayher/socket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

const (
	readBufferLen = bcm.HeaderSize + bcm.MAX_NFRAMES*canframe.FDSize

	minBackoff  = time.Millisecond
	maxBackoff  = time.Second
	joinTimeout = 2 * time.Second
)

// BCM is a connected CAN_BCM socket with its receive loop.
type BCM struct {
	conn    io.ReadWriteCloser
	ifName  string
	fd      bool
	handler func(bcm.Message)
	logger  *zap.Logger

	closing   atomic.Bool
	done      chan struct{}
	loop      errgroup.Group
	closeOnce sync.Once
	closeErr  error
}

// Option configures a BCM.
type Option func(*BCM)

// WithFD switches the socket to CANFD frames.
func WithFD(fd bool) Option {
	return func(my *BCM) { my.fd = fd }
}

// WithHandler sets the callback for every well-formed received message. It
// runs on the receive goroutine.
func WithHandler(h func(bcm.Message)) Option {
	return func(my *BCM) { my.handler = h }
}

// WithLogger sets the logger; the default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(my *BCM) { my.logger = l }
}

// DialBCM opens a BCM socket connected to ifName and starts its receive loop.
func DialBCM(ctx context.Context, ifName string, opts ...Option) (*BCM, error) {
	nface, err := net.InterfaceByName(ifName)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInterfaceNotFound, ifName, err)
	}

	conn, err := socket.Socket(unix.AF_CAN, unix.SOCK_DGRAM, unix.CAN_BCM, "can-bcm", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSocketCreate, err)
	}

	if _, err := conn.Connect(ctx, &unix.SockaddrCAN{Ifindex: nface.Index}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %q: %w", ErrSocketConnect, ifName, err)
	}

	my := newBCM(conn, nface.Name, opts...)
	if my.fd {
		if err := enableFDFrames(conn, my.logger); err != nil {
			conn.Close()
			return nil, err
		}
	}

	my.start()
	return my, nil
}

type sockopter interface {
	SetsockoptInt(level, opt, value int) error
}

// enableFDFrames sets CAN_RAW_FD_FRAMES. BCM sockets have no socket options
// of their own and refuse it; the per-message CAN_FD_FRAME flag is what
// selects FD frames there, so that refusal is only logged.
func enableFDFrames(conn sockopter, logger *zap.Logger) error {
	err := conn.SetsockoptInt(unix.SOL_CAN_RAW, unix.CAN_RAW_FD_FRAMES, 1)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, unix.EOPNOTSUPP), errors.Is(err, unix.ENOPROTOOPT):
		logger.Warn("CAN_RAW_FD_FRAMES not supported on bcm socket", zap.Error(err))
		return nil
	}
	return fmt.Errorf("%w: CAN_RAW_FD_FRAMES: %w", ErrSocketOption, err)
}

func newBCM(conn io.ReadWriteCloser, ifName string, opts ...Option) *BCM {
	my := &BCM{
		conn:   conn,
		ifName: ifName,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(my)
	}
	if my.logger == nil {
		my.logger = zap.NewNop()
	}
	if my.handler == nil {
		my.handler = func(bcm.Message) {}
	}
	my.logger = my.logger.With(zap.String("interface", ifName))
	return my
}

func (my *BCM) start() {
	my.loop.Go(my.receiveLoop)
}

// Submit writes msg to the kernel on the calling goroutine. The outcome is
// only logged.
func (my *BCM) Submit(msg bcm.Message) {
	log := my.logger.With(
		zap.Stringer("opcode", msg.Opcode),
		zap.Uint32("can_id", msg.CANID),
		zap.Int("nframes", len(msg.Frames)),
	)
	if my.closing.Load() {
		log.Warn("bcm submit after close")
		return
	}

	b, err := msg.MarshalBinary()
	if err != nil {
		log.Error("couldn't encode bcm message", zap.Error(err))
		return
	}
	n, err := my.conn.Write(b)
	switch {
	case err != nil:
		log.Error("bcm write failed", zap.Error(err))
	case n != len(b):
		log.Error("bcm short write", zap.Int("written", n), zap.Int("len", len(b)))
	default:
		log.Debug("bcm message submitted", zap.Uint32("flags", uint32(msg.Flags)))
	}
}

// receiveLoop keeps exactly one read outstanding until Close. Socket errors
// are logged and the next read is issued after a growing pause.
func (my *BCM) receiveLoop() error {
	buf := make([]byte, readBufferLen)
	var backoff time.Duration

	for {
		n, err := my.conn.Read(buf)
		if my.closing.Load() {
			return nil
		}
		if err != nil {
			if errors.Is(err, os.ErrClosed) || errors.Is(err, net.ErrClosed) {
				my.logger.Error("bcm socket closed underneath the receive loop", zap.Error(err))
				return nil
			}
			backoff = nextBackoff(backoff)
			my.logger.Error("bcm receive failed", zap.Error(err), zap.Duration("retry_in", backoff))
			select {
			case <-my.done:
				return nil
			case <-time.After(backoff):
			}
			continue
		}
		backoff = 0
		my.dispatch(buf[:n])
	}
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return minBackoff
	}
	if d *= 2; d > maxBackoff {
		return maxBackoff
	}
	return d
}

func (my *BCM) dispatch(b []byte) {
	msg, err := bcm.Unmarshal(b)
	if err != nil {
		my.logger.Error("dropping bcm message", zap.Int("len", len(b)), zap.Error(err))
		return
	}
	my.handler(msg)
}

// Close stops the receive loop, waits for it and releases the socket. A loop
// that does not stop in time is logged and abandoned.
func (my *BCM) Close() error {
	my.closeOnce.Do(func() {
		my.closing.Store(true)
		close(my.done)
		my.closeErr = my.conn.Close()

		joined := make(chan error, 1)
		go func() { joined <- my.loop.Wait() }()
		select {
		case err := <-joined:
			if err != nil {
				my.logger.Error("bcm receive loop failed", zap.Error(err))
			}
		case <-time.After(joinTimeout):
			my.logger.Error("bcm receive loop did not stop", zap.Duration("waited", joinTimeout))
		}
	})
	return my.closeErr
}
