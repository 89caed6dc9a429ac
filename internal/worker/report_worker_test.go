package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"tally/internal/amqp"
	"tally/internal/core"
	"tally/internal/ledger/memory"
	"tally/internal/reports"
)

type fakeStore struct {
	mu        sync.Mutex
	saved     []core.Transaction
	snapshots map[string][]byte
	saveErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{snapshots: make(map[string][]byte)}
}

func (s *fakeStore) SaveTransactions(_ context.Context, transactions []core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, transactions...)
	return nil
}

func (s *fakeStore) SaveReportSnapshot(_ context.Context, kind string, payload []byte, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[kind] = payload
	return nil
}

func (s *fakeStore) snapshotCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.snapshots)
}

type fakeEngine struct {
	mu       sync.Mutex
	failKind reports.Kind
	calls    []reports.Kind
	params   []reports.Params
}

func (e *fakeEngine) Generate(_ context.Context, kind reports.Kind, p reports.Params) (reports.Output, error) {
	e.mu.Lock()
	e.calls = append(e.calls, kind)
	e.params = append(e.params, p)
	e.mu.Unlock()
	if kind == e.failKind {
		return reports.Output{}, errors.New("generation failed")
	}
	return reports.Output{ReportKind: string(kind), Data: []any{}}, nil
}

type fakeExporter struct {
	mu       sync.Mutex
	exported []string
	err      error
}

func (e *fakeExporter) ExportReport(_ context.Context, out reports.Output) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.exported = append(e.exported, out.ReportKind)
	return nil
}

func testTransaction(id string) core.Transaction {
	return core.Transaction{
		ID:           id,
		AccountID:    "acc-1",
		Amount:       -42.50,
		TransactedAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		PayeeID:      1,
		Splits:       []core.Split{{CategoryID: 10, Amount: -42.50}},
	}
}

func TestHandleLedgerUpdateSavesAndRefreshes(t *testing.T) {
	store := newFakeStore()
	engine := &fakeEngine{}
	w := NewReportWorker(store, engine, nil, time.Minute)

	refreshed := false
	w.SetRefreshHook(func() { refreshed = true })

	msg := amqp.NewLedgerUpdatedMessage("acc-1", []core.Transaction{
		testTransaction("t-1"),
		testTransaction("t-2"),
	})

	if err := w.HandleLedgerUpdate(context.Background(), msg); err != nil {
		t.Fatalf("HandleLedgerUpdate() error = %v", err)
	}

	if len(store.saved) != 2 {
		t.Errorf("saved %d transactions, want 2", len(store.saved))
	}
	if got, want := store.snapshotCount(), len(reports.Kinds()); got != want {
		t.Errorf("stored %d snapshots, want %d", got, want)
	}
	if !refreshed {
		t.Error("refresh hook was not invoked")
	}
}

func TestHandleLedgerUpdateEmptyMessage(t *testing.T) {
	store := newFakeStore()
	w := NewReportWorker(store, &fakeEngine{}, nil, time.Minute)

	msg := amqp.NewLedgerUpdatedMessage("acc-1", nil)
	if err := w.HandleLedgerUpdate(context.Background(), msg); err != nil {
		t.Fatalf("HandleLedgerUpdate() error = %v", err)
	}

	if len(store.saved) != 0 {
		t.Errorf("saved %d transactions, want 0", len(store.saved))
	}
	if store.snapshotCount() != 0 {
		t.Errorf("stored %d snapshots, want 0 for an empty update", store.snapshotCount())
	}
}

func TestHandleLedgerUpdateStoreFailureRequeues(t *testing.T) {
	store := newFakeStore()
	store.saveErr = errors.New("database locked")
	w := NewReportWorker(store, &fakeEngine{}, nil, time.Minute)

	msg := amqp.NewLedgerUpdatedMessage("acc-1", []core.Transaction{testTransaction("t-1")})
	if err := w.HandleLedgerUpdate(context.Background(), msg); err == nil {
		t.Fatal("HandleLedgerUpdate() error = nil, want save failure so the message is redelivered")
	}
}

func TestHandleLedgerUpdateSnapshotFailureDoesNotRequeue(t *testing.T) {
	store := newFakeStore()
	engine := &fakeEngine{failKind: reports.KindBudgetUsage}
	w := NewReportWorker(store, engine, nil, time.Minute)

	msg := amqp.NewLedgerUpdatedMessage("acc-1", []core.Transaction{testTransaction("t-1")})
	if err := w.HandleLedgerUpdate(context.Background(), msg); err != nil {
		t.Fatalf("HandleLedgerUpdate() error = %v, want nil once transactions are persisted", err)
	}
	if len(store.saved) != 1 {
		t.Errorf("saved %d transactions, want 1", len(store.saved))
	}
}

func TestRefreshSnapshotsStoresEnvelopes(t *testing.T) {
	store := newFakeStore()
	w := NewReportWorker(store, &fakeEngine{}, nil, time.Minute)

	if err := w.RefreshSnapshots(context.Background()); err != nil {
		t.Fatalf("RefreshSnapshots() error = %v", err)
	}

	for _, kind := range reports.Kinds() {
		payload, ok := store.snapshots[string(kind)]
		if !ok {
			t.Errorf("no snapshot stored for %s", kind)
			continue
		}
		var out reports.Output
		if err := json.Unmarshal(payload, &out); err != nil {
			t.Errorf("snapshot for %s is not a valid envelope: %v", kind, err)
			continue
		}
		if out.ReportKind != string(kind) {
			t.Errorf("snapshot report_kind = %q, want %q", out.ReportKind, kind)
		}
	}
}

func TestRefreshSnapshotsSuppliesLookbackWindow(t *testing.T) {
	store := newFakeStore()
	engine := &fakeEngine{}
	w := NewReportWorker(store, engine, nil, time.Minute)

	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	if err := w.RefreshSnapshots(context.Background()); err != nil {
		t.Fatalf("RefreshSnapshots() error = %v", err)
	}

	wantStart := now.AddDate(0, -snapshotLookbackMonths, 0)
	for _, p := range engine.params {
		if !p.End.Equal(now) {
			t.Errorf("snapshot params end = %v, want %v", p.End, now)
		}
		if !p.Start.Equal(wantStart) {
			t.Errorf("snapshot params start = %v, want %v", p.Start, wantStart)
		}
	}
}

// Month-range kinds produce data only for an explicit range, so the snapshot
// window must reach the seeded ledger activity when the real engine runs.
func TestRefreshSnapshotsMonthRangeKindsOverRealEngine(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	mem := memory.New(
		[]core.Category{{ID: 10, Name: "Groceries", GroupID: 1, Budget: 500}},
		[]core.Group{{ID: 1, Name: "Food"}},
		[]core.Payee{{ID: 1, Name: "Market", CategoryID: 10}},
		[]core.Account{{ID: "acc-1", Name: "Checking", Type: core.AccountBank, Balance: 1200}},
	)
	err := mem.Add(
		core.Transaction{
			ID:           "t-income",
			AccountID:    "acc-1",
			Amount:       3000,
			TransactedAt: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
			Splits:       []core.Split{{CategoryID: 10, Amount: 3000}},
		},
		core.Transaction{
			ID:           "t-spend",
			AccountID:    "acc-1",
			Amount:       -250,
			TransactedAt: time.Date(2025, 4, 12, 0, 0, 0, 0, time.UTC),
			PayeeID:      1,
			Splits:       []core.Split{{CategoryID: 10, Amount: -250}},
		},
	)
	if err != nil {
		t.Fatalf("seed ledger: %v", err)
	}

	store := newFakeStore()
	w := NewReportWorker(store, reports.NewEngineAt(mem, func() time.Time { return now }), nil, time.Minute)
	w.now = func() time.Time { return now }

	if err := w.RefreshSnapshots(context.Background()); err != nil {
		t.Fatalf("RefreshSnapshots() error = %v", err)
	}

	for _, kind := range []reports.Kind{
		reports.KindIncomeVsExpenses,
		reports.KindNetWorthHistory,
		reports.KindBudgetTrends,
		reports.KindCategoryTrends,
	} {
		payload, ok := store.snapshots[string(kind)]
		if !ok {
			t.Errorf("no snapshot stored for %s", kind)
			continue
		}
		var out reports.Output
		if err := json.Unmarshal(payload, &out); err != nil {
			t.Errorf("snapshot for %s is not a valid envelope: %v", kind, err)
			continue
		}
		if len(out.Data) == 0 {
			t.Errorf("snapshot for %s has no data points", kind)
		}
	}
}

func TestRefreshSnapshotsGenerationFailure(t *testing.T) {
	store := newFakeStore()
	engine := &fakeEngine{failKind: reports.KindNetWorthHistory}
	w := NewReportWorker(store, engine, nil, time.Minute)

	hookCalled := false
	w.SetRefreshHook(func() { hookCalled = true })

	if err := w.RefreshSnapshots(context.Background()); err == nil {
		t.Fatal("RefreshSnapshots() error = nil, want generation failure")
	}
	if hookCalled {
		t.Error("refresh hook invoked despite a failed refresh")
	}
}

func TestRefreshSnapshotsExportsEveryKind(t *testing.T) {
	store := newFakeStore()
	exporter := &fakeExporter{}
	w := NewReportWorker(store, &fakeEngine{}, exporter, time.Minute)

	if err := w.RefreshSnapshots(context.Background()); err != nil {
		t.Fatalf("RefreshSnapshots() error = %v", err)
	}
	if len(exporter.exported) != len(reports.Kinds()) {
		t.Errorf("exported %d reports, want %d", len(exporter.exported), len(reports.Kinds()))
	}
}

func TestRefreshSnapshotsExportFailureIsNonFatal(t *testing.T) {
	store := newFakeStore()
	exporter := &fakeExporter{err: errors.New("spreadsheet unavailable")}
	w := NewReportWorker(store, &fakeEngine{}, exporter, time.Minute)

	if err := w.RefreshSnapshots(context.Background()); err != nil {
		t.Fatalf("RefreshSnapshots() error = %v, want nil when only the export fails", err)
	}
	if got, want := store.snapshotCount(), len(reports.Kinds()); got != want {
		t.Errorf("stored %d snapshots, want %d", got, want)
	}
}
