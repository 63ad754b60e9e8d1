// Package connector bridges simulation events and a SocketCAN interface
// through the kernel Broadcast Manager.
package connector

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	socketcan "github.com/lion187chen/socketcan-hil"
	"github.com/lion187chen/socketcan-hil/bcm"
	"github.com/lion187chen/socketcan-hil/canframe"
	"github.com/lion187chen/socketcan-hil/codec"
	"github.com/lion187chen/socketcan-hil/simevent"
	"go.uber.org/zap"
)

// Config is everything a connector needs, loaded before it starts.
type Config struct {
	Name      string
	Interface string
	Codec     string
	FD        bool
	// Operations restricts the outbound events accepted. Empty accepts all.
	Operations []string
	Receive    map[uint32]ReceiveOperationSpec
	Send       map[string]SendOperationSpec
}

// Validate checks the configuration without touching the system.
func (c Config) Validate() error {
	if c.Interface == "" {
		return fmt.Errorf("%w: interface name is empty", ErrInvalidConfig)
	}
	for op, spec := range c.Send {
		if err := spec.Validate(); err != nil {
			return fmt.Errorf("send operation %q: %w", op, err)
		}
		if spec.IsCANFD && !c.FD {
			return fmt.Errorf("send operation %q: %w: CANFD on a classic connector", op, ErrInvalidSendSpec)
		}
	}
	for id, spec := range c.Receive {
		if err := validateID(id); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidReceiveSpec, err)
		}
		if err := spec.Validate(); err != nil {
			return fmt.Errorf("receive CAN ID %#x: %w", id, err)
		}
		if spec.IsCANFD && !c.FD {
			return fmt.Errorf("receive CAN ID %#x: %w: CANFD on a classic connector", id, ErrInvalidReceiveSpec)
		}
	}
	return nil
}

// Transport carries BCM messages to and from the kernel.
type Transport interface {
	// Submit writes msg; failures are logged by the transport.
	Submit(msg bcm.Message)
	Close() error
}

// Dialer connects a transport to ifName and delivers received messages to
// handler.
type Dialer func(ctx context.Context, ifName string, fd bool, handler func(bcm.Message), logger *zap.Logger) (Transport, error)

// Option configures a Connector.
type Option func(*Connector)

// WithLogger sets the logger; the default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(my *Connector) { my.logger = l }
}

// WithDialer replaces the BCM socket dialer.
func WithDialer(d Dialer) Option {
	return func(my *Connector) { my.dial = d }
}

// Connector is the CAN/CANFD adapter. Received frames become events on the
// shared queue; outbound events become BCM transmissions.
type Connector struct {
	name       string
	fd         bool
	codec      codec.Codec
	queue      *simevent.Queue
	transport  Transport
	dial       Dialer
	logger     *zap.Logger
	operations map[string]struct{}
	send       map[string]SendOperationSpec
	receive    map[uint32]ReceiveOperationSpec
	filters    []socketcan.Filter
	tasks      *cyclicTasks

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

var _ Adapter = (*Connector)(nil)

// New validates cfg, creates the codec, connects the BCM socket and installs
// the receive filters. Decoded events are pushed to queue.
func New(ctx context.Context, cfg Config, queue *simevent.Queue, opts ...Option) (*Connector, error) {
	my := &Connector{
		name:    cfg.Name,
		fd:      cfg.FD,
		queue:   queue,
		dial:    dialBCM,
		send:    make(map[string]SendOperationSpec, len(cfg.Send)),
		receive: make(map[uint32]ReceiveOperationSpec, len(cfg.Receive)),
	}
	for _, opt := range opts {
		opt(my)
	}
	if my.logger == nil {
		my.logger = zap.NewNop()
	}
	if my.name == "" {
		my.name = cfg.Interface
	}
	my.logger = my.logger.With(zap.String("connector", my.name))

	if queue == nil {
		return nil, fmt.Errorf("%w: nil event queue", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for op, spec := range cfg.Send {
		my.send[op] = spec
	}
	for id, spec := range cfg.Receive {
		my.receive[id] = spec
	}
	if len(cfg.Operations) > 0 {
		my.operations = make(map[string]struct{}, len(cfg.Operations))
		for _, op := range cfg.Operations {
			my.operations[op] = struct{}{}
		}
	}
	my.tasks = newCyclicTasks(my.send)

	c, err := codec.New(cfg.Codec, my.logger)
	if err != nil {
		return nil, fmt.Errorf("couldn't create codec: %w", err)
	}
	my.codec = c

	filters := buildFilters(my.receive)

	t, err := my.dial(ctx, cfg.Interface, cfg.FD, my.handleMessage, my.logger)
	if err != nil {
		return nil, err
	}
	my.transport = t

	for _, f := range filters {
		msg, err := f.SetupMessage()
		if err != nil {
			my.transport.Close()
			return nil, fmt.Errorf("couldn't install filter for %#x: %w", f.ID, err)
		}
		my.transport.Submit(msg)
		my.filters = append(my.filters, f)
	}

	my.logger.Info("connector started",
		zap.String("interface", cfg.Interface),
		zap.String("codec", cfg.Codec),
		zap.Bool("canfd", cfg.FD),
		zap.Int("filters", len(my.filters)),
		zap.Int("send_operations", len(my.send)),
	)
	return my, nil
}

// buildFilters returns one kernel filter per receive operation, sorted by
// CAN ID.
func buildFilters(receive map[uint32]ReceiveOperationSpec) []socketcan.Filter {
	ids := make([]uint32, 0, len(receive))
	for id := range receive {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	filters := make([]socketcan.Filter, 0, len(ids))
	for _, id := range ids {
		spec := receive[id]
		if spec.HasMask {
			filters = append(filters, socketcan.NewMaskFilter(id, spec.Mask[:spec.MaskLength], spec.IsCANFD))
			continue
		}
		filters = append(filters, socketcan.NewIDFilter(id, spec.IsCANFD))
	}
	return filters
}

// Name returns the connector name.
func (my *Connector) Name() string { return my.name }

// Operations lists the accepted outbound event operations. Without a
// configured set it lists the send operations instead.
func (my *Connector) Operations() []string {
	var ops []string
	if my.operations != nil {
		for op := range my.operations {
			ops = append(ops, op)
		}
	} else {
		for op := range my.send {
			ops = append(ops, op)
		}
	}
	sort.Strings(ops)
	return ops
}

func (my *Connector) supports(op string) bool {
	if my.operations == nil {
		return true
	}
	_, found := my.operations[op]
	return found
}

// HandleOutboundEvent encodes ev and hands it to the kernel. Cyclic
// operations install a transmission task on first use and update its
// payload afterwards. Nothing is returned; problems are logged.
func (my *Connector) HandleOutboundEvent(ev simevent.Event) {
	log := my.logger.With(zap.String("event", ev.Operation))
	if my.closed.Load() {
		log.Warn("outbound event after close")
		return
	}
	if !my.supports(ev.Operation) {
		log.Warn("unsupported operation")
		return
	}

	payload, op := my.codec.ToFrame(ev)
	log = log.With(zap.String("operation", op))
	if len(payload) == 0 {
		log.Warn("codec produced no payload")
		return
	}
	if limit := canframe.MaxLen(my.fd); len(payload) > limit {
		log.Error("payload exceeds frame limit", zap.Int("len", len(payload)), zap.Int("limit", limit))
		return
	}

	spec, found := my.send[op]
	if !found {
		log.Warn("no send operation configured")
		return
	}
	// A classic operation on an FD connector has the classic limit.
	if limit := canframe.MaxLen(spec.IsCANFD); len(payload) > limit {
		log.Error("payload exceeds frame limit", zap.Int("len", len(payload)), zap.Int("limit", limit))
		return
	}
	frame, err := canframe.PayloadFrame(spec.IsCANFD, spec.CANID, payload)
	if err != nil {
		log.Error("couldn't build frame", zap.Uint32("can_id", spec.CANID), zap.Error(err))
		return
	}

	if !spec.IsCyclic {
		my.transport.Submit(bcm.Message{
			Opcode: bcm.TX_SEND,
			CANID:  canframe.WireID(spec.CANID),
			Frames: []canframe.Frame{frame},
		})
		return
	}
	my.tasks.advance(op, func(installed bool) {
		my.transport.Submit(cyclicSetup(spec, installed, []canframe.Frame{frame}))
	})
}

// cyclicSetup builds the TX_SETUP that starts a task or, once installed,
// replaces its payload.
func cyclicSetup(spec SendOperationSpec, installed bool, frames []canframe.Frame) bcm.Message {
	msg := bcm.Message{
		Opcode: bcm.TX_SETUP,
		CANID:  canframe.WireID(spec.CANID),
		Frames: frames,
	}
	if installed {
		if spec.Announce {
			msg.Flags |= bcm.TX_ANNOUNCE
		}
		return msg
	}
	msg.Flags = bcm.SETTIMER | bcm.STARTTIMER
	msg.Count = spec.Count
	if spec.Count > 0 {
		msg.Ival1 = spec.Ival1
	}
	msg.Ival2 = spec.Ival2
	return msg
}

// SetupSequence starts a cyclic task that sends payloads in order under one
// CAN ID. The task can only be removed as a whole with DeleteSequence.
func (my *Connector) SetupSequence(spec SendOperationSpec, payloads [][]byte) error {
	if my.closed.Load() {
		return ErrClosed
	}
	spec.IsCyclic = true
	if err := spec.Validate(); err != nil {
		return err
	}
	if spec.IsCANFD && !my.fd {
		return fmt.Errorf("%w: CANFD sequence on a classic connector", ErrInvalidSendSpec)
	}
	if len(payloads) == 0 || len(payloads) > bcm.MAX_NFRAMES {
		return fmt.Errorf("%w: sequence of %d frames outside 1..%d", ErrInvalidSendSpec, len(payloads), bcm.MAX_NFRAMES)
	}

	frames := make([]canframe.Frame, 0, len(payloads))
	for i, p := range payloads {
		f, err := canframe.PayloadFrame(spec.IsCANFD, spec.CANID, p)
		if err != nil {
			return fmt.Errorf("couldn't build frame %d: %w", i, err)
		}
		frames = append(frames, f)
	}
	my.transport.Submit(cyclicSetup(spec, false, frames))
	return nil
}

// DeleteSequence removes the transmission task of canID.
func (my *Connector) DeleteSequence(canID uint32, fd bool) error {
	if my.closed.Load() {
		return ErrClosed
	}
	my.transport.Submit(txDelete(canID, fd))
	return nil
}

// StopCyclic removes the task of a cyclic send operation. The next outbound
// event for op installs it again. Stopping an idle operation is a no-op.
func (my *Connector) StopCyclic(op string) error {
	if my.closed.Load() {
		return ErrClosed
	}
	spec, found := my.send[op]
	if !found {
		return fmt.Errorf("%w: %q", ErrUnknownOperation, op)
	}
	if !spec.IsCyclic {
		return fmt.Errorf("%w: %q", ErrNotCyclic, op)
	}
	if my.tasks.uninstall(op, func() { my.transport.Submit(txDelete(spec.CANID, spec.IsCANFD)) }) {
		my.logger.Info("cyclic task stopped", zap.String("operation", op))
	}
	return nil
}

func txDelete(canID uint32, fd bool) bcm.Message {
	msg := bcm.Message{Opcode: bcm.TX_DELETE, CANID: canframe.WireID(canID)}
	if fd {
		msg.Flags = bcm.CAN_FD_FRAME
	}
	return msg
}

// Close removes the receive filters and releases the transport. Cyclic
// tasks end with the socket. It is safe to call more than once.
func (my *Connector) Close() error {
	my.closeOnce.Do(func() {
		my.closed.Store(true)
		// Cyclic tasks end with the socket.
		cyclic := my.tasks.active()
		for _, f := range my.filters {
			my.transport.Submit(f.DeleteMessage())
		}
		if err := my.transport.Close(); err != nil {
			my.logger.Error("couldn't close transport", zap.Error(err))
			my.closeErr = err
		}
		my.logger.Info("connector closed", zap.Strings("cyclic", cyclic))
	})
	return my.closeErr
}
