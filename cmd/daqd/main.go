// cmd/daqd/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tamzrod/daq-orchestrator/internal/errors"
)

// Set by -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "daqd:", err)
		stop()
		os.Exit(exitCode(err))
	}
}

// exitCode maps an error category onto a process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.IsCategory(err, errors.CategoryConfiguration),
		errors.IsCategory(err, errors.CategoryValidation):
		return 2
	case errors.IsCategory(err, errors.CategoryTransport):
		return 3
	}
	return 1
}
