//go:build linux && go1.12

package connector

import (
	"context"

	socketcan "github.com/lion187chen/socketcan-hil"
	"github.com/lion187chen/socketcan-hil/bcm"
	"go.uber.org/zap"
)

func dialBCM(ctx context.Context, ifName string, fd bool, handler func(bcm.Message), logger *zap.Logger) (Transport, error) {
	conn, err := socketcan.DialBCM(ctx, ifName,
		socketcan.WithFD(fd),
		socketcan.WithHandler(handler),
		socketcan.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	return conn, nil
}
