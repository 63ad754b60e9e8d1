//go:build linux && go1.12

package connector

import (
	"context"
	"errors"
	"testing"

	socketcan "github.com/lion187chen/socketcan-hil"
	"github.com/lion187chen/socketcan-hil/simevent"
)

func TestNewMissingInterface(t *testing.T) {
	cfg := testConfig(nil)
	cfg.Interface = "nosuchcan0"
	_, err := New(context.Background(), cfg, simevent.NewQueue())
	if !errors.Is(err, socketcan.ErrInterfaceNotFound) {
		t.Fatalf("New() err=%v, want ErrInterfaceNotFound", err)
	}
}
