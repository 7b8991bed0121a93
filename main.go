// BRi - a service platform: programmers publish services, amateurs use them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"bri/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "bri: %v\n", err)
		os.Exit(1)
	}
}
