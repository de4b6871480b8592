package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/fieldsync/fieldsync/internal/agent/app"
	"github.com/fieldsync/fieldsync/internal/agent/cli"
	"github.com/fieldsync/fieldsync/internal/agent/config"
	"github.com/fieldsync/fieldsync/internal/logging"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer a.Close()

	if len(os.Args) > 1 && os.Args[1] == "login" {
		secret, err := cli.GetSecret(os.Stdout)
		if err != nil {
			log.Fatalf("%v", err)
		}
		if err := a.Login(ctx, string(secret)); err != nil {
			log.Fatalf("login failed: %v", err)
		}
		logger.Info(ctx, "login successful", "workspace", cfg.WorkspaceID)
		return
	}

	if err := a.Run(ctx); err != nil {
		log.Printf("%v", err)
	}
}
