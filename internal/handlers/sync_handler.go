package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/imrishuroy/marketplace-ordersync/internal/ordersync"
	"github.com/imrishuroy/marketplace-ordersync/internal/runs"
)

// Trigger sources recorded on the run ledger.
const (
	TriggerSchedule = "schedule"
	TriggerHTTP     = "http"
)

const failureMessage = "Error fetching or storing data"

// Runner executes one sync run.
type Runner interface {
	RunWithID(ctx context.Context, runID string) (ordersync.RunSummary, error)
}

// RunLedger records run lifecycle. runs.Store implements it.
type RunLedger interface {
	Start(ctx context.Context, runID, trigger string) (bool, error)
	Get(ctx context.Context, runID string) (*runs.RunRecord, error)
	MarkDone(ctx context.Context, runID, summary string, itemsProcessed int) error
	MarkFailed(ctx context.Context, runID, note string) error
}

// SyncResponse is the JSON body returned by every trigger.
type SyncResponse struct {
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	RunID     string `json:"runId"`
	Processed int    `json:"processed"`
	Ingested  int    `json:"ingested"`
	Inserted  int    `json:"inserted"`
	Updated   int    `json:"updated"`
}

// SyncTrigger adapts the engine to Lambda and HTTP entry points.
type SyncTrigger struct {
	runner   Runner
	ledger   RunLedger
	logger   *zap.Logger
	newRunID func() string
}

// NewSyncTrigger builds a trigger. ledger may be nil.
func NewSyncTrigger(runner Runner, ledger RunLedger, logger *zap.Logger) *SyncTrigger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncTrigger{
		runner:   runner,
		ledger:   ledger,
		logger:   logger.Named("trigger"),
		newRunID: uuid.NewString,
	}
}

// Run executes one sync and returns the HTTP status code and body. Per-item
// failures stay in the logs; the caller only sees overall success.
func (t *SyncTrigger) Run(ctx context.Context, trigger string) (int, SyncResponse) {
	runID := t.newRunID()
	log := t.logger.With(zap.String("run_id", runID), zap.String("trigger", trigger))

	if t.ledger != nil {
		created, err := t.ledger.Start(ctx, runID, trigger)
		switch {
		case err != nil:
			log.Warn("failed to record run start", zap.Error(err))
		case !created:
			fields := []zap.Field{}
			if existing, gerr := t.ledger.Get(ctx, runID); gerr == nil && existing != nil {
				fields = append(fields, zap.String("existing_status", existing.Status), zap.Time("existing_created_at", existing.CreatedAt))
			}
			log.Warn("run already recorded", fields...)
		}
	}

	sum, err := t.runner.RunWithID(ctx, runID)
	if err != nil {
		log.Error("sync run failed", zap.Error(err))
		if t.ledger != nil {
			if lerr := t.ledger.MarkFailed(ctx, runID, err.Error()); lerr != nil {
				log.Warn("failed to record run failure", zap.Error(lerr))
			}
		}
		return http.StatusInternalServerError, SyncResponse{Error: failureMessage, RunID: runID}
	}

	resp := SyncResponse{
		Message:   fmt.Sprintf("Orders fetched and stored in database successfully. Total items processed: %d", sum.ItemsProcessed()),
		RunID:     runID,
		Processed: sum.ItemsProcessed(),
		Ingested:  len(sum.Ingestion.Records),
		Inserted:  sum.Ingestion.Inserted,
		Updated:   sum.Reconciliation.ItemsUpdated,
	}

	if t.ledger != nil {
		body, err := json.Marshal(sum)
		if err != nil {
			log.Warn("failed to encode run summary", zap.Error(err))
		}
		if err := t.ledger.MarkDone(ctx, runID, string(body), sum.ItemsProcessed()); err != nil {
			log.Warn("failed to record run completion", zap.Error(err))
		}
	}
	return http.StatusOK, resp
}

// Handle is the Lambda entry point for scheduled invocations. The event
// payload is ignored.
func (t *SyncTrigger) Handle(ctx context.Context, event json.RawMessage) (events.APIGatewayProxyResponse, error) {
	code, resp := t.Run(ctx, TriggerSchedule)
	body, err := json.Marshal(resp)
	if err != nil {
		return events.APIGatewayProxyResponse{}, fmt.Errorf("marshal response: %w", err)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: code,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}, nil
}

// RegisterSyncRoutes registers POST /sync, GET /runs/:runId and GET /health.
func RegisterSyncRoutes(r *gin.Engine, trigger *SyncTrigger) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/sync", func(c *gin.Context) {
		code, resp := trigger.Run(c.Request.Context(), TriggerHTTP)
		c.JSON(code, resp)
	})

	r.GET("/runs/:runId", func(c *gin.Context) {
		if trigger.ledger == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "run_ledger_disabled"})
			return
		}
		rec, err := trigger.ledger.Get(c.Request.Context(), c.Param("runId"))
		if err != nil {
			trigger.logger.Error("failed to read run", zap.String("run_id", c.Param("runId")), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
			return
		}
		if rec == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "run_not_found"})
			return
		}
		c.JSON(http.StatusOK, rec)
	})
}
