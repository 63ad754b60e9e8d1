package cmd

import (
	"context"

	"github.com/lion187chen/socketcan-hil/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:          "hiladapter",
	Short:        "SocketCAN BCM adapter for hardware-in-the-loop simulation",
	Long:         `Bridges simulation events and a CAN bus through the Linux Broadcast Manager.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

const (
	flagLogLevel = "log-level"
	flagDev      = "dev"
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringP(flagLogLevel, "l", "", "log level (debug, info, warn, error); overrides the config file")
	pf.BoolP(flagDev, "d", false, "human readable development logging")
}

// newLogger builds the logger from the persistent flags, falling back to
// level and dev when the flags are unset.
func newLogger(cmd *cobra.Command, level string, dev bool) (*zap.Logger, error) {
	pf := cmd.Flags()
	if pf.Changed(flagLogLevel) {
		level, _ = pf.GetString(flagLogLevel)
	}
	if pf.Changed(flagDev) {
		dev, _ = pf.GetBool(flagDev)
	}
	return logging.New(level, dev)
}
