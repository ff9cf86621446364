package reconcile

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tutu-network/credits/internal/app/ledger"
)

// fakeLedger counts passes and returns canned results.
type fakeLedger struct {
	passes     atomic.Int64
	result     ledger.ReconcileResult
	paymentErr error
	returned   int
	approveErr error
}

func (f *fakeLedger) ReconcilePendingPayments(ctx context.Context) (ledger.ReconcileResult, error) {
	f.passes.Add(1)
	if _, ok := ctx.Deadline(); !ok {
		return ledger.ReconcileResult{}, errors.New("pass has no deadline")
	}
	return f.result, f.paymentErr
}

func (f *fakeLedger) ReturnExpiredApprovals(context.Context) (int, error) {
	return f.returned, f.approveErr
}

// ─── Config Tests ───────────────────────────────────────────────────────────

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Interval != 30*time.Second {
		t.Errorf("Interval = %v, want 30s", cfg.Interval)
	}
	if cfg.Timeout != 2*time.Minute {
		t.Errorf("Timeout = %v, want 2m", cfg.Timeout)
	}
}

func TestNew_FillsZeroConfig(t *testing.T) {
	w := New(Config{}, &fakeLedger{}, nil)
	if w.cfg != DefaultConfig() {
		t.Errorf("cfg = %+v, want defaults", w.cfg)
	}
}

// ─── Worker Tests ───────────────────────────────────────────────────────────

func TestRunOnce_AccumulatesStats(t *testing.T) {
	l := &fakeLedger{result: ledger.ReconcileResult{Checked: 3, Credited: 2, Failed: 1}, returned: 4}
	w := New(DefaultConfig(), l, nil)

	w.RunOnce(context.Background())
	w.RunOnce(context.Background())

	s := w.Stats()
	if s.Passes != 2 {
		t.Errorf("Passes = %d, want 2", s.Passes)
	}
	if s.Credited != 4 || s.Failed != 2 {
		t.Errorf("Credited/Failed = %d/%d, want 4/2", s.Credited, s.Failed)
	}
	if s.ApprovalsReturned != 8 {
		t.Errorf("ApprovalsReturned = %d, want 8", s.ApprovalsReturned)
	}
	if s.Errors != 0 {
		t.Errorf("Errors = %d, want 0", s.Errors)
	}
	if s.LastPass.IsZero() {
		t.Error("LastPass not set")
	}
}

func TestRunOnce_FailuresDoNotStopApprovals(t *testing.T) {
	l := &fakeLedger{
		paymentErr: errors.New("db locked"),
		returned:   1,
		result:     ledger.ReconcileResult{Errors: 2},
	}
	w := New(DefaultConfig(), l, nil)
	w.RunOnce(context.Background())

	s := w.Stats()
	if s.ApprovalsReturned != 1 {
		t.Errorf("ApprovalsReturned = %d, want 1", s.ApprovalsReturned)
	}
	if s.Errors != 3 {
		t.Errorf("Errors = %d, want 3", s.Errors)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	l := &fakeLedger{}
	w := New(Config{Interval: 5 * time.Millisecond, Timeout: time.Second}, l, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for l.passes.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("passes = %d after 2s, want >= 3", l.passes.Load())
		case <-time.After(time.Millisecond):
		}
	}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
