package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/imrishuroy/marketplace-ordersync/internal/app"
	"github.com/imrishuroy/marketplace-ordersync/internal/config"
	"github.com/imrishuroy/marketplace-ordersync/internal/handlers"
	"github.com/imrishuroy/marketplace-ordersync/internal/logger"
)

func setupRouter(trigger *handlers.SyncTrigger, zl *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logger.GinMiddleware(zl.Named("http")))

	handlers.RegisterSyncRoutes(r, trigger)

	return r
}

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

	r := setupRouter(trigger, zl)

	// if RUN_LOCAL is true, run a local HTTP server for development.
	if cfg.RunLocal {
		addr := ":8080"
		zl.Info("running local server", zap.String("addr", addr))
		if err := r.Run(addr); err != nil {
			zl.Fatal("failed to run local server", zap.Error(err))
		}
		return
	}

	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
