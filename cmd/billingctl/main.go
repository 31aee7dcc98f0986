package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/magabrotheeeer/stack-checkout/internal/cli"
	"github.com/magabrotheeeer/stack-checkout/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	load := func() (*config.Config, error) {
		return config.Load(os.Getenv("CONFIG_PATH"))
	}
	if err := cli.NewRootCmd(load).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
