// Command fbpost interacts with Facebook posts through a real browser.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/facebook-automation/pkg/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

// run executes the command line and maps the result to an exit status:
// 0 when everything requested succeeded, 2 for configuration problems and 1
// for anything else.
func run(ctx context.Context, args []string) int {
	root := newRootCmd(newApp())
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	if !errors.Is(err, errRunFailed) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	var cfgErr *config.ConfigurationError
	if errors.As(err, &cfgErr) {
		return 2
	}
	return 1
}
