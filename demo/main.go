//go:build linux && go1.12

package main

import (
	"context"
	"log"
	"time"

	socketcan "github.com/lion187chen/socketcan-hil"
	"github.com/lion187chen/socketcan-hil/bcm"
	"github.com/lion187chen/socketcan-hil/codec/bmw"
	"github.com/lion187chen/socketcan-hil/connector"
	"github.com/lion187chen/socketcan-hil/simevent"
	"go.uber.org/zap"
)

func main() {
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	link, err := socketcan.OpenLink("vcan0")
	if err != nil {
		log.Fatal(err)
	}
	link.SetUp()

	queue := simevent.NewQueue()
	conn, err := connector.New(context.Background(), connector.Config{
		Interface: link.Name(),
		Codec:     bmw.Name,
		Receive: map[uint32]connector.ReceiveOperationSpec{
			bmw.ID_GESCHWINDIGKEIT: {Operation: bmw.OP_GESCHWINDIGKEIT},
		},
		Send: map[string]connector.SendOperationSpec{
			bmw.OP_GESCHWINDIGKEIT: {
				CANID:    bmw.ID_GESCHWINDIGKEIT,
				IsCyclic: true,
				Ival2:    bcm.TimevalOf(100 * time.Millisecond),
			},
		},
	}, queue, connector.WithLogger(logger))
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	// The cyclic task loops back on vcan0 and comes in through the filter.
	conn.HandleOutboundEvent(simevent.New(bmw.SpeedSIM, 88.0, "demo"))
	time.Sleep(time.Second)
	queue.Stop()
	for _, ev := range queue.Drain() {
		log.Println(ev)
	}
}
