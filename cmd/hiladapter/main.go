package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lion187chen/socketcan-hil/cmd/hiladapter/cmd"
	// Init codecs
	_ "github.com/lion187chen/socketcan-hil/codec/bmw"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel() // Setup interrupt handler for ctrl-c
	quitChan := make(chan os.Signal, 1)
	signal.Notify(quitChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		s := <-quitChan
		log.Printf("got %v, exiting", s)
		cancel()
		// Failsafe if the connector does not shut down
		<-time.After(15 * time.Second)
		log.Fatal("took too long to shutdown, forcefully exiting")
	}()
	if err := cmd.Execute(ctx); err != nil {
		os.Exit(1)
	}
}
