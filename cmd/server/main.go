package main

import (
	"context"
	"log"

	"github.com/fieldsync/fieldsync/internal/server"
	"github.com/fieldsync/fieldsync/internal/server/config"
	"github.com/joho/godotenv"
)

func main() {

	// optional; real deployments set the environment directly
	_ = godotenv.Load()

	ctx := context.Background()
	cfg := config.LoadConfig()

	app, err := server.NewApp(ctx, cfg)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)
}
