// Command mecha-admin provisions admin credentials and exercises the admin
// login flow from a terminal.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := runMain(ctx, os.Args[1:], os.Stderr)
	stop()
	if code != 0 {
		os.Exit(code) //nolint:forbidigo // CLI must propagate command failure to callers
	}
}

func runMain(ctx context.Context, args []string, stderr io.Writer) int {
	root := newRootCmd(newApp())
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(stderr, "canceled")
			return 130
		}
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	return 0
}
