package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"orderscraper/cmd/orderscraper/commands"
	"orderscraper/lib/configutil"
	"orderscraper/lib/telemetry"
	"orderscraper/lib/util/serviceutil"
)

func main() {
	err := configutil.LoadEnv()
	if err != nil {
		serviceutil.Fatal("failed to load .env", err)
	}

	ctx := serviceutil.SignalContext()

	tel, err := telemetry.SetupFromEnv(ctx, "orderscraper")
	if err != nil {
		serviceutil.Fatal("failed to setup telemetry", err)
	}

	code := commands.ExecuteContext(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	err = tel.Shutdown(shutdownCtx)
	cancel()
	if err != nil {
		slog.Warn("failed to flush telemetry", "err", err)
	}

	os.Exit(code)
}
