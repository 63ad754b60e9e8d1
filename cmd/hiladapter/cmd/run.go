package cmd

import (
	"fmt"

	"github.com/lion187chen/socketcan-hil/connector"
	"github.com/lion187chen/socketcan-hil/internal/config"
	"github.com/lion187chen/socketcan-hil/simevent"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	flagConfig  = "config"
	flagBringUp = "bring-up"
	flagStdin   = "stdin"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "run the CAN connector",
	Long: `Starts the connector described by the config file and prints every
received simulation event. With --stdin, lines of the form
"<operation> <value>" are sent as outbound events.`,
	Args: cobra.NoArgs,
	RunE: runConnector,
}

func init() {
	rootCmd.AddCommand(runCmd)
	f := runCmd.Flags()
	f.StringP(flagConfig, "c", "hiladapter.yaml", "config file")
	f.Bool(flagBringUp, false, "set the interface up before connecting")
	f.Bool(flagStdin, false, "read outbound events from stdin")
}

func runConnector(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString(flagConfig)
	bringUp, _ := cmd.Flags().GetBool(flagBringUp)
	stdin, _ := cmd.Flags().GetBool(flagStdin)

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	cc, err := cfg.Connector.Connector()
	if err != nil {
		return err
	}

	logger, err := newLogger(cmd, cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx := cmd.Context()
	if bringUp {
		if err := bringUpLink(ctx, cc.Interface, logger); err != nil {
			return err
		}
	}

	queue := simevent.NewQueue()
	conn, err := connector.New(ctx, cc, queue, connector.WithLogger(logger))
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		printEvents(cmd.OutOrStdout(), queue)
		return nil
	})
	if stdin {
		g.Go(func() error {
			return feedEvents(ctx, cmd.InOrStdin(), conn, conn.Name(), logger)
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		return shutdown(conn, queue)
	})

	logger.Info("running", zap.Strings("operations", conn.Operations()))
	return g.Wait()
}

// shutdown closes the connector first so no event is pushed after the queue
// stops.
func shutdown(a connector.Adapter, queue *simevent.Queue) error {
	err := a.Close()
	queue.Stop()
	if err != nil {
		return fmt.Errorf("couldn't close %s: %w", a.Name(), err)
	}
	return nil
}
