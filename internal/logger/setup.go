package logger

import (
	"log/slog"
	"os"

	"ocrup/internal/config"
)

func SetupDefault(cfg config.Logger) {
	if cfg.Plaintext {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level})))
	} else {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level})))
	}
}
