package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/NethermindEth/rpcpeer/config"
	"github.com/NethermindEth/rpcpeer/node"
	"github.com/NethermindEth/rpcpeer/utils"
	"go.uber.org/automaxprocs/maxprocs"
)

func main() {
	if _, err := maxprocs.Set(); err != nil {
		fmt.Fprintln(os.Stderr, "set GOMAXPROCS:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	newNode := func(cfg *config.Config, version string, log utils.SimpleLogger) (Node, error) {
		return node.New(cfg, version, log)
	}
	if err := NewCmd(newNode).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1) //nolint:gocritic
	}
}
