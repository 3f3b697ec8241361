// Command vaultd runs the pooled custody vault service.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/OpenCustody-Network/vault_layer/internal/app/runtime"
)

func main() {
	_ = godotenv.Load()

	app, err := runtime.NewApplication()
	if err != nil {
		fmt.Fprintf(os.Stderr, "vaultd: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "vaultd: %v\n", err)
		os.Exit(1)
	}

	if err := app.Shutdown(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "vaultd: shutdown: %v\n", err)
		os.Exit(1)
	}
}
