package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kkrt-labs/kakarot-rpc-go/node"
	_ "go.uber.org/automaxprocs"
)

// Version is set by the linker.
var Version string

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd := NewCmd(func(cfg *node.Config) (gateway, error) {
		return node.New(cfg, Version)
	})
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
