package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/forgo/rotativos/api/internal/model"
)

// SeasonLister returns the seasons whose balances are still moving
type SeasonLister interface {
	ListActiveSeasons(ctx context.Context) ([]*model.Season, error)
}

// BalanceRecalculator re-derives stored balances
type BalanceRecalculator interface {
	ListSeason(ctx context.Context, seasonID string) ([]*model.UserSeasonBalance, error)
	RecalculateBalance(ctx context.Context, userID, seasonID string) (*model.BalanceRecalculation, error)
}

// ReconcileRecorder receives one observation per pass
type ReconcileRecorder interface {
	ObserveReconcile(rows, drifted int, duration time.Duration)
}

// ReconcileReport summarizes one reconciliation pass
type ReconcileReport struct {
	Seasons int `json:"seasons"`
	Rows    int `json:"rows"`
	Drifted int `json:"drifted"`
	Failed  int `json:"failed"`
}

// BalanceReconciler periodically recalculates every balance row of the
// active seasons. Balance updates that failed after a rotation was stored
// are repaired here.
type BalanceReconciler struct {
	seasons  SeasonLister
	balances BalanceRecalculator
	metrics  ReconcileRecorder
	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
	running  bool
	mu       sync.Mutex
}

// BalanceReconcilerConfig holds the reconciler's dependencies
type BalanceReconcilerConfig struct {
	Seasons  SeasonLister
	Balances BalanceRecalculator
	Metrics  ReconcileRecorder // optional
	Interval time.Duration     // default 1h
}

// NewBalanceReconciler creates a new balance reconciler job
func NewBalanceReconciler(cfg BalanceReconcilerConfig) *BalanceReconciler {
	if cfg.Interval == 0 {
		cfg.Interval = time.Hour
	}
	return &BalanceReconciler{
		seasons:  cfg.Seasons,
		balances: cfg.Balances,
		metrics:  cfg.Metrics,
		interval: cfg.Interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the reconciliation loop
func (j *BalanceReconciler) Start() {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return
	}
	j.running = true
	j.mu.Unlock()

	j.wg.Add(1)
	go j.run()
	slog.Info("balance reconciler started", slog.Duration("interval", j.interval))
}

// Stop gracefully stops the reconciler and waits for a pass in progress
func (j *BalanceReconciler) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	j.running = false
	j.mu.Unlock()

	close(j.stopCh)
	j.wg.Wait()
	slog.Info("balance reconciler stopped")
}

// IsRunning returns whether the reconciler is running
func (j *BalanceReconciler) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

func (j *BalanceReconciler) run() {
	defer j.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.tick()
		case <-j.stopCh:
			return
		}
	}
}

func (j *BalanceReconciler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), j.interval)
	defer cancel()

	report, err := j.RunOnce(ctx)
	if err != nil {
		slog.Error("balance reconciliation failed", slog.String("error", err.Error()))
		return
	}
	slog.Info("balance reconciliation finished",
		slog.Int("seasons", report.Seasons),
		slog.Int("rows", report.Rows),
		slog.Int("drifted", report.Drifted),
		slog.Int("failed", report.Failed),
	)
}

// RunOnce reconciles every active season once
func (j *BalanceReconciler) RunOnce(ctx context.Context) (*ReconcileReport, error) {
	start := time.Now()

	seasons, err := j.seasons.ListActiveSeasons(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active seasons: %w", err)
	}

	report := &ReconcileReport{}
	for _, season := range seasons {
		if err := j.reconcileSeason(ctx, season.ID, report); err != nil {
			return report, err
		}
		report.Seasons++
	}

	if j.metrics != nil {
		j.metrics.ObserveReconcile(report.Rows, report.Drifted, time.Since(start))
	}
	return report, nil
}

// RunSeason reconciles one season, active or not
func (j *BalanceReconciler) RunSeason(ctx context.Context, seasonID string) (*ReconcileReport, error) {
	start := time.Now()
	report := &ReconcileReport{}
	if err := j.reconcileSeason(ctx, seasonID, report); err != nil {
		return report, err
	}
	report.Seasons = 1

	if j.metrics != nil {
		j.metrics.ObserveReconcile(report.Rows, report.Drifted, time.Since(start))
	}
	return report, nil
}

func (j *BalanceReconciler) reconcileSeason(ctx context.Context, seasonID string, report *ReconcileReport) error {
	rows, err := j.balances.ListSeason(ctx, seasonID)
	if err != nil {
		return fmt.Errorf("failed to list balances of %s: %w", seasonID, err)
	}

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		report.Rows++

		rec, err := j.balances.RecalculateBalance(ctx, row.UserID, seasonID)
		if err != nil {
			report.Failed++
			slog.Warn("failed to recalculate balance",
				slog.String("user_id", row.UserID),
				slog.String("season_id", seasonID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if rec.Changed {
			report.Drifted++
			slog.Info("balance repaired",
				slog.String("user_id", row.UserID),
				slog.String("season_id", seasonID),
				slog.Int("rotativos_tomados", rec.Balance.RotativosTomados),
			)
		}
	}
	return nil
}
