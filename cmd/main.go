package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"gitty.dev/cli/internal/interfaces/cli"
	"gitty.dev/cli/internal/interfaces/di"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return cli.Run(ctx, di.Bootstrap, os.Args[1:], os.Stdout, os.Stderr)
}
