package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dshills/aireview/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.RunContext(ctx)
	stop()
	os.Exit(code)
}
