// Package app wires configuration, AWS clients and the sync engine into a
// ready-to-serve trigger.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/imrishuroy/marketplace-ordersync/internal/aws"
	"github.com/imrishuroy/marketplace-ordersync/internal/config"
	"github.com/imrishuroy/marketplace-ordersync/internal/handlers"
	"github.com/imrishuroy/marketplace-ordersync/internal/marketplace"
	"github.com/imrishuroy/marketplace-ordersync/internal/orders"
	"github.com/imrishuroy/marketplace-ordersync/internal/ordersync"
	"github.com/imrishuroy/marketplace-ordersync/internal/runs"
	"github.com/imrishuroy/marketplace-ordersync/internal/status"
)

// NewTrigger builds the sync trigger from loaded AWS clients.
func NewTrigger(cfg *config.Config, clients *aws.AWSClients, logger *zap.Logger) (*handlers.SyncTrigger, error) {
	mapper := status.NewMapper(status.DefaultTable())
	openStatuses := mapper.MapAll(cfg.OpenOrderStatuses)
	if len(openStatuses) == 0 {
		return nil, fmt.Errorf("no open statuses map from %v", cfg.OpenOrderStatuses)
	}

	source := marketplace.NewClient(marketplace.Config{
		Endpoint:      cfg.SPAPIEndpoint,
		AccessToken:   cfg.SPAPIAccessToken,
		MarketplaceID: cfg.MarketplaceID,
		Timeout:       cfg.HTTPTimeout,
		MaxRetries:    cfg.SPAPIMaxRetries,
	}, nil)
	store := orders.NewStore(clients.DynamoDB, cfg.TableName, cfg.StatusIndexName)

	var notifier ordersync.Notifier
	if cfg.StatusQueueURL != "" {
		notifier = ordersync.NewQueueNotifier(aws.NewPublisher(clients.SQS, cfg.StatusQueueURL))
	}

	reconciler := ordersync.NewReconciler(source, store, mapper, openStatuses, notifier, logger)
	ingester := ordersync.NewIngester(source, store, mapper, cfg.OpenOrderStatuses, logger)

	var opts []ordersync.EngineOption
	if cfg.MetricsNamespace != "" {
		opts = append(opts, ordersync.WithMetrics(
			aws.NewMetricsPublisher(clients.CloudWatch, cfg.MetricsNamespace),
			map[string]string{"MarketplaceId": cfg.MarketplaceID},
		))
	}
	engine := ordersync.NewEngine(reconciler, ingester, cfg.LookbackDays, logger, opts...)

	// A nil *runs.Store must not be stored in the interface.
	var ledger handlers.RunLedger
	if cfg.RunsTable != "" {
		ledger = runs.NewStore(clients.DynamoDB, cfg.RunsTable, runs.DefaultTTL)
	}

	logger.Info("sync trigger configured",
		zap.String("table", cfg.TableName),
		zap.String("marketplace_id", cfg.MarketplaceID),
		zap.Strings("open_statuses", cfg.OpenOrderStatuses),
		zap.Int("lookback_days", cfg.LookbackDays),
		zap.Bool("notifications", notifier != nil),
		zap.Bool("run_ledger", ledger != nil),
	)
	return handlers.NewSyncTrigger(engine, ledger, logger), nil
}

// Bootstrap loads the AWS config for the configured region and endpoint,
// then builds the trigger.
func Bootstrap(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*handlers.SyncTrigger, error) {
	awsCfg, err := aws.LoadAWSConfig(ctx, cfg.AWSRegion, cfg.AWSEndpointOverride)
	if err != nil {
		return nil, fmt.Errorf("init aws clients: %w", err)
	}
	return NewTrigger(cfg, aws.NewAWSClients(awsCfg), logger)
}
