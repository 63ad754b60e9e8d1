package connector

import (
	"github.com/lion187chen/socketcan-hil/bcm"
	"github.com/lion187chen/socketcan-hil/canframe"
	"go.uber.org/zap"
)

// handleMessage runs on the transport's receive goroutine.
func (my *Connector) handleMessage(msg bcm.Message) {
	log := my.logger.With(
		zap.Stringer("opcode", msg.Opcode),
		zap.Uint32("can_id", msg.CANID&canframe.CAN_EFF_MASK),
	)

	switch msg.Opcode {
	case bcm.RX_CHANGED:
		if len(msg.Frames) != 1 {
			log.Error("unexpected frame count", zap.Int("nframes", len(msg.Frames)))
			return
		}
		my.receiveFrame(log, msg.Frames[0])
	case bcm.RX_TIMEOUT, bcm.TX_EXPIRED, bcm.RX_STATUS, bcm.TX_STATUS:
		log.Info("bcm notification")
	default:
		log.Warn("unexpected bcm opcode")
	}
}

func (my *Connector) receiveFrame(log *zap.Logger, f canframe.Frame) {
	if spec, found := my.receive[f.CANID()]; found {
		log = log.With(zap.String("operation", spec.Operation))
	}
	events := my.codec.ToEvents(f)
	for _, ev := range events {
		my.queue.Push(ev)
	}
	log.Debug("frame received", zap.Stringer("frame", f), zap.Int("events", len(events)))
}
