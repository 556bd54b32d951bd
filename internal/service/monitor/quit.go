package monitor

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/oshokin/drowsiness-monitor/internal/logger"
)

// QuitKey is the line that stops the monitor from the terminal.
const QuitKey = "q"

// WatchQuitKey reads lines from r and calls cancel when the quit key is entered.
// It returns when the key is seen, r is exhausted or ctx is done after a line arrives.
func WatchQuitKey(ctx context.Context, r io.Reader, cancel context.CancelFunc) {
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		if strings.EqualFold(strings.TrimSpace(scanner.Text()), QuitKey) {
			logger.Info(ctx, "Quit key pressed, stopping")
			cancel()

			return
		}
	}
}
