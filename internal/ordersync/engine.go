package ordersync

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// DefaultLookbackDays is the ingestion window when none is configured.
const DefaultLookbackDays = 2

// RunSummary is the combined outcome of one engine run.
type RunSummary struct {
	RunID          string                `json:"run_id"`
	StartedAt      time.Time             `json:"started_at"`
	FinishedAt     time.Time             `json:"finished_at"`
	Cutoff         time.Time             `json:"cutoff"`
	Reconciliation ReconciliationSummary `json:"reconciliation"`
	Ingestion      IngestResult          `json:"ingestion"`
	// ItemsIngested mirrors len(Ingestion.Records), which is not serialized.
	ItemsIngested int `json:"items_ingested"`
}

// ItemsProcessed is the number of line items ingested plus the number of
// status updates applied.
func (s RunSummary) ItemsProcessed() int {
	return len(s.Ingestion.Records) + s.Reconciliation.ItemsUpdated
}

// Counts flattens the summary into metric name/value pairs.
func (s RunSummary) Counts() map[string]int {
	return map[string]int{
		"ItemsIngested":  len(s.Ingestion.Records),
		"ItemsInserted":  s.Ingestion.Inserted,
		"ItemsDuplicate": s.Ingestion.Duplicates,
		"ItemsUpdated":   s.Reconciliation.ItemsUpdated,
		"ItemsUnchanged": s.Reconciliation.ItemsUnchanged,
		"Failures":       s.Ingestion.Failed + s.Reconciliation.Failed,
	}
}

// MetricsRecorder receives run counts once per run.
type MetricsRecorder interface {
	PublishCounts(ctx context.Context, counts map[string]int, dimensions map[string]string) error
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithMetrics publishes run counts with the given dimensions after every run.
func WithMetrics(m MetricsRecorder, dimensions map[string]string) EngineOption {
	return func(e *Engine) {
		e.metrics = m
		e.dimensions = dimensions
	}
}

// WithClock overrides the engine's time source.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.nowFunc = now }
}

// Engine runs reconciliation then ingestion.
type Engine struct {
	reconciler   *Reconciler
	ingester     *Ingester
	lookbackDays int
	metrics      MetricsRecorder
	dimensions   map[string]string
	logger       *zap.Logger
	nowFunc      func() time.Time
}

func NewEngine(reconciler *Reconciler, ingester *Ingester, lookbackDays int, logger *zap.Logger, opts ...EngineOption) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if lookbackDays <= 0 {
		lookbackDays = DefaultLookbackDays
	}
	e := &Engine{
		reconciler:   reconciler,
		ingester:     ingester,
		lookbackDays: lookbackDays,
		logger:       logger.Named("engine"),
		nowFunc:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CutoffFor returns midnight UTC of the day lookbackDays before now.
func CutoffFor(now time.Time, lookbackDays int) time.Time {
	d := now.UTC().AddDate(0, 0, -lookbackDays)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}

// Run reconciles open records and then ingests new orders. Both steps always
// run; their errors are combined.
func (e *Engine) Run(ctx context.Context) (RunSummary, error) {
	return e.RunWithID(ctx, uuid.NewString())
}

// RunWithID is Run with a caller-chosen run ID.
func (e *Engine) RunWithID(ctx context.Context, runID string) (RunSummary, error) {
	now := e.nowFunc()
	sum := RunSummary{
		RunID:     runID,
		StartedAt: now.UTC(),
		Cutoff:    CutoffFor(now, e.lookbackDays),
	}
	log := e.logger.With(zap.String("run_id", runID))
	log.Info("sync run started", zap.Time("cutoff", sum.Cutoff))

	var errs error

	rec, err := e.reconciler.ReconcileOpenOrders(ctx)
	sum.Reconciliation = rec
	if err != nil {
		log.Error("reconciliation failed", zap.Error(err))
		errs = multierr.Append(errs, err)
	}

	ing, err := e.ingester.IngestSince(ctx, sum.Cutoff)
	sum.Ingestion = ing
	sum.ItemsIngested = len(ing.Records)
	if err != nil {
		log.Error("ingestion failed", zap.Error(err))
		errs = multierr.Append(errs, err)
	}

	sum.FinishedAt = e.nowFunc().UTC()

	if e.metrics != nil {
		if err := e.metrics.PublishCounts(ctx, sum.Counts(), e.dimensions); err != nil {
			log.Warn("failed to publish run metrics", zap.Error(err))
		}
	}

	log.Info("sync run finished",
		zap.Int("items_processed", sum.ItemsProcessed()),
		zap.Duration("elapsed", sum.FinishedAt.Sub(sum.StartedAt)),
		zap.Bool("ok", errs == nil),
	)
	return sum, errs
}
