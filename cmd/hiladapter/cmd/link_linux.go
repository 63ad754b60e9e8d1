//go:build linux && go1.12

package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/avast/retry-go"
	socketcan "github.com/lion187chen/socketcan-hil"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "CAN interface related commands",
}

var linkInfoCmd = &cobra.Command{
	Use:   "info <interface>",
	Short: "print link parameters",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := socketcan.OpenLink(args[0])
		if err != nil {
			return err
		}
		up, err := l.IsUp()
		if err != nil {
			return err
		}
		info, err := l.Info()
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%s: kind=%s up=%v\n", l.Name(), info.Kind, up)
		if info.Kind == "vcan" {
			return nil
		}
		// sample point is in tenths of a percent
		fmt.Fprintf(w, "  bitrate %d sample-point %d.%d%%\n",
			info.BitTiming.Bitrate, info.BitTiming.Sample_point/10, info.BitTiming.Sample_point%10)
		fmt.Fprintf(w, "  clock %d state %s\n", info.Clock.Freq, info.State)
		fmt.Fprintf(w, "  ctrlmode flags %#x supported %#x\n", info.CtrlMode.Flags, info.CtrlMode.Mask)
		fmt.Fprintf(w, "  berr-counter tx %d rx %d\n", info.ErrCounters.Txerr, info.ErrCounters.Rxerr)
		return nil
	},
}

var linkUpCmd = &cobra.Command{
	Use:   "up <interface>",
	Short: "set the interface up",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger(cmd, "", false)
		if err != nil {
			return err
		}
		return bringUpLink(cmd.Context(), args[0], logger)
	},
}

var linkDownCmd = &cobra.Command{
	Use:   "down <interface>",
	Short: "set the interface down",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := socketcan.OpenLink(args[0])
		if err != nil {
			return err
		}
		return l.SetDown()
	},
}

var linkBitrateCmd = &cobra.Command{
	Use:   "bitrate <interface> [bitrate]",
	Short: "print or set the nominal bitrate; setting needs the interface down",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := socketcan.OpenLink(args[0])
		if err != nil {
			return err
		}
		if len(args) == 1 {
			bitrate, err := l.Bitrate()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: bitrate %d\n", l.Name(), bitrate)
			return nil
		}
		bitrate, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid bitrate %q: %w", args[1], err)
		}
		return l.SetBitrate(uint32(bitrate))
	},
}

var linkListenOnlyCmd = &cobra.Command{
	Use:       "listen-only <interface> on|off",
	Short:     "toggle listen-only mode; the interface must be down",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"on", "off"},
	RunE: func(cmd *cobra.Command, args []string) error {
		on, err := parseOnOff(args[1])
		if err != nil {
			return err
		}
		l, err := socketcan.OpenLink(args[0])
		if err != nil {
			return err
		}
		return l.SetListenOnlyMode(on)
	},
}

func parseOnOff(s string) (bool, error) {
	switch s {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}

func init() {
	linkCmd.AddCommand(linkInfoCmd, linkUpCmd, linkDownCmd, linkBitrateCmd, linkListenOnlyCmd)
	rootCmd.AddCommand(linkCmd)
}

var errLinkDown = errors.New("link is still down")

// bringUpLink sets ifName up and waits until the kernel reports it up.
func bringUpLink(ctx context.Context, ifName string, logger *zap.Logger) error {
	l, err := socketcan.OpenLink(ifName)
	if err != nil {
		return err
	}
	if up, err := l.IsUp(); err == nil && up {
		return nil
	}
	if err := l.SetUp(); err != nil {
		return err
	}

	err = retry.Do(func() error {
		up, err := l.IsUp()
		if err != nil {
			return err
		}
		if !up {
			return errLinkDown
		}
		return nil
	},
		retry.Context(ctx),
		retry.Attempts(10),
		retry.Delay(100*time.Millisecond),
		retry.DelayType(retry.FixedDelay),
		retry.OnRetry(func(n uint, err error) {
			logger.Debug("waiting for link", zap.String("interface", ifName), zap.Uint("attempt", n+1), zap.Error(err))
		}),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return err
	}
	bitrate, err := l.Bitrate()
	if err != nil {
		return err
	}
	logger.Info("link up", zap.String("interface", l.Name()), zap.Uint32("bitrate", bitrate))
	return nil
}
