//go:build !linux || !go1.12

package connector

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/lion187chen/socketcan-hil/bcm"
	"go.uber.org/zap"
)

var errUnsupported = errors.New("connector: SocketCAN is only available on linux")

func dialBCM(context.Context, string, bool, func(bcm.Message), *zap.Logger) (Transport, error) {
	return nil, fmt.Errorf("%w, not %s", errUnsupported, runtime.GOOS)
}
