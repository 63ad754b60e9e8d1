package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/lion187chen/socketcan-hil/connector"
	"github.com/lion187chen/socketcan-hil/simevent"
	"go.uber.org/zap"
)

var (
	yellow = color.New(color.FgHiBlue).SprintfFunc()
	red    = color.New(color.FgRed).SprintfFunc()
	green  = color.New(color.FgGreen).SprintfFunc()
)

// printEvents writes queued events to w until the queue is stopped and empty.
// Whatever piled up behind the first event goes out in the same write.
func printEvents(w io.Writer, queue *simevent.Queue) {
	var sb strings.Builder
	for {
		ev, ok := queue.Pop()
		if !ok {
			return
		}
		sb.Reset()
		sb.WriteString(formatEvent(ev))
		sb.WriteByte('\n')
		for _, ev := range queue.Drain() {
			sb.WriteString(formatEvent(ev))
			sb.WriteByte('\n')
		}
		io.WriteString(w, sb.String())
	}
}

func formatEvent(ev simevent.Event) string {
	return fmt.Sprintf("%s %s %s %s",
		ev.Timestamp.Format("15:04:05.000"),
		yellow("%-8s", ev.Origin),
		green("%s", ev.Operation),
		red("%v", ev.Value),
	)
}

// feedEvents turns "<operation> <value>" lines into outbound events. Blank
// lines and lines starting with # are skipped. It returns at end of input or
// when ctx is done.
func feedEvents(ctx context.Context, r io.Reader, a connector.Adapter, origin string, logger *zap.Logger) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			ev, err := parseEvent(line, origin)
			if err != nil {
				logger.Warn("ignoring input line", zap.String("line", line), zap.Error(err))
				continue
			}
			if ev.Operation == "" {
				continue
			}
			a.HandleOutboundEvent(ev)
		}
	}
}

// parseEvent reads one input line. Values are numbers, booleans or, failing
// both, strings.
func parseEvent(line, origin string) (simevent.Event, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return simevent.Event{}, nil
	}
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return simevent.Event{}, fmt.Errorf("expected \"<operation> <value>\", got %d fields", len(fields))
	}
	op, raw := fields[0], fields[1]

	var value any = raw
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		value = f
	} else if b, err := strconv.ParseBool(raw); err == nil {
		value = b
	}
	return simevent.New(op, value, origin), nil
}
