package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Shoofai/apimarketplace-sub002/internal/gate"
)

const requestTimeout = 30 * time.Second

func main() {
	inputs, err := gate.ParseInputs(os.Getenv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "::error::%v\n", err)
		os.Exit(gate.ExitFail)
	}

	client, err := gate.NewClient(inputs.PlatformURL, inputs.Token)
	if err != nil {
		fmt.Fprintf(os.Stderr, "::error::%v\n", err)
		os.Exit(gate.ExitFail)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	runner := gate.NewRunner()
	os.Exit(runner.Run(ctx, inputs, client))
}
