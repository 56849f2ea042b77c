package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"busticket/internal/cli"
	"busticket/internal/logger"
)

func main() {
	logger.Init("WARN", "text")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
