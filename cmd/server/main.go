package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/gophpool/internal/logging"
	"github.com/dmitrijs2005/gophpool/internal/server"
	"github.com/dmitrijs2005/gophpool/internal/server/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()

	logger, err := logging.NewJSON(os.Stdout, cfg.LogLevel)
	if err != nil {
		log.Fatalf("%v", err)
	}

	app, err := server.NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "app init failed", "error", err)
		os.Exit(1)
	}

	app.Run(ctx)

}
