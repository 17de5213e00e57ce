package main

import (
	"log/slog"
	"os"

	"github.com/aussiebroadwan/warden/internal/auth/app"
)

func main() {
	application, err := app.New(app.LoadConfig())
	if err != nil {
		slog.Error("warden failed to start", "error", err)
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		slog.Error("warden stopped with an error", "error", err)
		os.Exit(1)
	}
}
