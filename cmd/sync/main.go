package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/imrishuroy/marketplace-ordersync/internal/app"
	"github.com/imrishuroy/marketplace-ordersync/internal/config"
	"github.com/imrishuroy/marketplace-ordersync/internal/handlers"
	"github.com/imrishuroy/marketplace-ordersync/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	zl := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	defer zl.Sync() //nolint:errcheck

	trigger, err := app.Bootstrap(context.Background(), cfg, zl)
	if err != nil {
		zl.Fatal("failed to build sync trigger", zap.Error(err))
	}

	// RUN_LOCAL=true runs a single sync and prints the response.
	if cfg.RunLocal {
		code, resp := trigger.Run(context.Background(), handlers.TriggerSchedule)
		fmt.Printf("%d %+v\n", code, resp)
		if code != http.StatusOK {
			os.Exit(1)
		}
		return
	}

	lambda.Start(trigger.Handle)
}
