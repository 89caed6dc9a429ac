package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"tally/internal/amqp"
	"tally/internal/core"
	"tally/internal/reports"
	"tally/internal/sheets"
)

// snapshotConcurrency bounds how many reports are generated at once so a
// refresh never monopolizes the storage connection.
const snapshotConcurrency = 4

// snapshotLookbackMonths is the window precomputed snapshots cover. The
// month-range report kinds emit nothing without an explicit range, so every
// snapshot is generated over the trailing year.
const snapshotLookbackMonths = 12

// SnapshotStore is the storage surface the worker needs: persisting incoming
// transactions and the precomputed report payloads.
type SnapshotStore interface {
	SaveTransactions(ctx context.Context, transactions []core.Transaction) error
	SaveReportSnapshot(ctx context.Context, kind string, payload []byte, generatedAt time.Time) error
}

// ReportGenerator produces report envelopes for a kind with given parameters.
type ReportGenerator interface {
	Generate(ctx context.Context, kind reports.Kind, p reports.Params) (reports.Output, error)
}

// ReportWorker ingests ledger updates from AMQP and keeps a precomputed
// snapshot of every report kind in storage, optionally mirroring each
// snapshot to a spreadsheet.
type ReportWorker struct {
	store    SnapshotStore
	engine   ReportGenerator
	exporter sheets.ReportExporter
	timeout  time.Duration
	now      func() time.Time

	// Invoked after a successful refresh, e.g. to drop the HTTP report cache.
	onRefresh func()
}

// NewReportWorker creates a worker. exporter may be nil when sheets export
// is not configured.
func NewReportWorker(store SnapshotStore, engine ReportGenerator, exporter sheets.ReportExporter, timeout time.Duration) *ReportWorker {
	return &ReportWorker{
		store:    store,
		engine:   engine,
		exporter: exporter,
		timeout:  timeout,
		now:      time.Now,
	}
}

// SetRefreshHook registers a callback that runs after every successful
// snapshot refresh. Must be called before the worker starts consuming.
func (w *ReportWorker) SetRefreshHook(fn func()) {
	w.onRefresh = fn
}

// HandleLedgerUpdate processes a single ledger update message: it persists
// the delivered transactions and refreshes all report snapshots. A returned
// error causes the message to be redelivered.
func (w *ReportWorker) HandleLedgerUpdate(ctx context.Context, msg *amqp.LedgerUpdatedMessage) error {
	slog.InfoContext(ctx, "Processing ledger update",
		"account_id", msg.AccountID,
		"transaction_count", len(msg.Transactions))

	transactions := msg.CoreTransactions()
	if len(transactions) == 0 {
		slog.WarnContext(ctx, "Ledger update carried no transactions", "account_id", msg.AccountID)
		return nil
	}

	if err := w.store.SaveTransactions(ctx, transactions); err != nil {
		return fmt.Errorf("save transactions: %w", err)
	}

	if err := w.RefreshSnapshots(ctx); err != nil {
		// Transactions are already persisted; the periodic refresh will
		// retry the snapshots, so the message must not be redelivered.
		slog.ErrorContext(ctx, "Snapshot refresh failed after ingest",
			"account_id", msg.AccountID,
			"error", err)
	}

	return nil
}

// RefreshSnapshots regenerates every report kind over the snapshot window
// and stores the JSON envelope as the current snapshot.
func (w *ReportWorker) RefreshSnapshots(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	started := time.Now()
	params := w.snapshotParams()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(snapshotConcurrency)

	for _, kind := range reports.Kinds() {
		g.Go(func() error {
			return w.snapshotOne(gctx, kind, params)
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("refresh snapshots: %w", err)
	}

	slog.InfoContext(ctx, "Report snapshots refreshed",
		"kinds", len(reports.Kinds()),
		"elapsed", time.Since(started).Round(time.Millisecond))

	if w.onRefresh != nil {
		w.onRefresh()
	}
	return nil
}

// snapshotParams is the parameter set every snapshot is generated with. The
// explicit range covers the month-range kinds; kinds with their own horizon
// (upcoming bills) ignore it.
func (w *ReportWorker) snapshotParams() reports.Params {
	end := w.now().UTC()
	return reports.Params{
		Start: end.AddDate(0, -snapshotLookbackMonths, 0),
		End:   end,
	}
}

func (w *ReportWorker) snapshotOne(ctx context.Context, kind reports.Kind, p reports.Params) error {
	out, err := w.engine.Generate(ctx, kind, p)
	if err != nil {
		return fmt.Errorf("generate %s: %w", kind, err)
	}

	payload, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("marshal %s snapshot: %w", kind, err)
	}

	if err := w.store.SaveReportSnapshot(ctx, string(kind), payload, w.now().UTC()); err != nil {
		return fmt.Errorf("save %s snapshot: %w", kind, err)
	}

	if w.exporter != nil {
		if err := w.exporter.ExportReport(ctx, out); err != nil {
			// Export is best effort; the stored snapshot is the source
			// of truth.
			slog.ErrorContext(ctx, "Report export failed",
				"report_kind", string(kind),
				"error", err)
		}
	}

	return nil
}

// RunPeriodicRefresh refreshes snapshots immediately and then on every tick
// until the context ends. It backs up the AMQP-driven refreshes in case
// messages are lost or the queue sits idle.
func (w *ReportWorker) RunPeriodicRefresh(ctx context.Context, interval time.Duration) error {
	if err := w.RefreshSnapshots(ctx); err != nil {
		slog.ErrorContext(ctx, "Startup snapshot refresh failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.RefreshSnapshots(ctx); err != nil {
				slog.ErrorContext(ctx, "Periodic snapshot refresh failed", "error", err)
			}
		}
	}
}
