//go:build !linux || !go1.12

package cmd

import (
	"context"
	"fmt"
	"runtime"

	"go.uber.org/zap"
)

func bringUpLink(context.Context, string, *zap.Logger) error {
	return fmt.Errorf("link management is not supported on %s", runtime.GOOS)
}
