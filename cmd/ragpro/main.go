// Command ragpro builds local document corpora and answers questions
// about them.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/adapters/driving/cli"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = ""

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli.SetVersion(version)
	cli.SetBootstrap(bootstrap)
	if err := cli.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
