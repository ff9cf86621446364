package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/tutu-network/credits/internal/domain"
)

// ═══════════════════════════════════════════════════════════════════════════
// SQLite Ledger Store Tests
// ═══════════════════════════════════════════════════════════════════════════

var t0 = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func fund(t *testing.T, db *DB, address string, winc int64) {
	t.Helper()
	if _, err := db.AdjustBalance(context.Background(), address, domain.NewWinc(winc), domain.TxTopUp, "test"); err != nil {
		t.Fatalf("AdjustBalance(%s) error: %v", address, err)
	}
}

func wincOf(t *testing.T, db *DB, address string) domain.Winc {
	t.Helper()
	w, _, err := balanceOf(context.Background(), db.db, address)
	if err != nil {
		t.Fatal(err)
	}
	return w
}

func assertWinc(t *testing.T, what string, got domain.Winc, want int64) {
	t.Helper()
	if !got.Equal(domain.NewWinc(want)) {
		t.Errorf("%s = %s, want %d", what, got, want)
	}
}

func reserveSpec(signer, item string, price int64, payers ...string) domain.ReserveSpec {
	return domain.ReserveSpec{
		SignerAddress: signer,
		DataItemID:    item,
		ByteCount:     1024,
		Price:         domain.NewNetworkPrice(domain.NewWinc(price)).Finalize(),
		Payers:        payers,
		Now:           t0,
	}
}

// ─── Open / Schema ──────────────────────────────────────────────────────────

func TestOpen_Reopen(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	fund(t, db, "alice", 10)
	db.Close()

	db, err = Open(dir)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer db.Close()
	assertWinc(t, "balance after reopen", wincOf(t, db, "alice"), 10)
}

func TestTimeLayout_SortsAsText(t *testing.T) {
	whole := formatTime(t0)
	frac := formatTime(t0.Add(500 * time.Millisecond))
	if !(whole < frac) {
		t.Errorf("%q should sort before %q", whole, frac)
	}
	back, err := parseTime(frac)
	if err != nil {
		t.Fatal(err)
	}
	if !back.Equal(t0.Add(500 * time.Millisecond)) {
		t.Errorf("parseTime round trip = %v", back)
	}
}

// ─── Balances ───────────────────────────────────────────────────────────────

func TestGetBalance_UnknownAddress(t *testing.T) {
	db := newTestDB(t)
	if _, err := db.GetBalance(context.Background(), "nobody", t0); !domain.IsKind(err, domain.KindUserNotFound) {
		t.Errorf("error = %v, want UserNotFound", err)
	}
}

func TestAdjustBalance_AccumulatesAndAudits(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	fund(t, db, "alice", 100)
	next, err := db.AdjustBalance(ctx, "alice", domain.NewWinc(50), domain.TxCryptoCredit, "tx-1")
	if err != nil {
		t.Fatal(err)
	}
	assertWinc(t, "balance", next, 150)

	entries, err := db.LedgerEntries(ctx, "alice", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Type != domain.TxCryptoCredit || entries[0].Reference != "tx-1" {
		t.Errorf("newest entry = %+v, want CRYPTO_CREDIT tx-1", entries[0])
	}
	assertWinc(t, "entry balance", entries[0].Balance, 150)
}

func TestAdjustBalance_LargeAmounts(t *testing.T) {
	db := newTestDB(t)
	huge, _ := domain.ParseWinc("123456789012345678901234567890")
	if _, err := db.AdjustBalance(context.Background(), "whale", huge, domain.TxTopUp, ""); err != nil {
		t.Fatal(err)
	}
	if got := wincOf(t, db, "whale"); !got.Equal(huge) {
		t.Errorf("balance = %s, want %s", got, huge)
	}
}

// ─── Reservations ───────────────────────────────────────────────────────────

func TestReserve_FromOwnBalance(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	fund(t, db, "alice", 1000)

	res, err := db.ReserveBalanceAtomic(ctx, reserveSpec("alice", "item-1", 300))
	if err != nil {
		t.Fatalf("ReserveBalanceAtomic() error: %v", err)
	}
	if res.Status != domain.ReservationPending {
		t.Errorf("Status = %q, want pending", res.Status)
	}
	if len(res.Payers) != 1 || res.Payers[0].PayerAddress != "alice" {
		t.Errorf("Payers = %+v, want alice only", res.Payers)
	}
	assertWinc(t, "balance", wincOf(t, db, "alice"), 700)

	bal, err := db.GetBalance(ctx, "alice", t0)
	if err != nil {
		t.Fatal(err)
	}
	assertWinc(t, "reservedWinc", bal.ReservedWinc, 300)

	stored, err := db.GetReservation(ctx, "item-1")
	if err != nil {
		t.Fatal(err)
	}
	if stored.ReservationID != res.ReservationID || !stored.CreatedAt.Equal(t0) {
		t.Errorf("stored = %+v, want %+v", stored, res)
	}
}

func TestReserve_InsufficientLeavesStateUnchanged(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	fund(t, db, "payer", 1000)
	fund(t, db, "alice", 100)
	if _, err := db.CreateApproval(ctx, domain.Approval{
		ApprovalID: "ap-1", PayingAddress: "payer", ApprovedAddress: "alice",
		ApprovedWincAmount: domain.NewWinc(200), CreationDate: t0,
	}); err != nil {
		t.Fatal(err)
	}

	_, err := db.ReserveBalanceAtomic(ctx, reserveSpec("alice", "item-1", 301, "payer"))
	if !domain.IsKind(err, domain.KindInsufficientBalance) {
		t.Fatalf("error = %v, want InsufficientBalance", err)
	}
	assertWinc(t, "alice balance", wincOf(t, db, "alice"), 100)
	approvals, _ := db.GetApprovals(ctx, "payer", "alice")
	assertWinc(t, "approval used", approvals[0].UsedWincAmount, 0)
	if _, err := db.GetReservation(ctx, "item-1"); !domain.IsKind(err, domain.KindReservationNotFound) {
		t.Errorf("reservation persisted after failure: %v", err)
	}
}

func TestReserve_UnknownSigner(t *testing.T) {
	db := newTestDB(t)
	_, err := db.ReserveBalanceAtomic(context.Background(), reserveSpec("ghost", "item-1", 10))
	if !domain.IsKind(err, domain.KindUserNotFound) {
		t.Errorf("error = %v, want UserNotFound", err)
	}
}

func TestReserve_ZeroPriceNeedsNoBalance(t *testing.T) {
	db := newTestDB(t)
	res, err := db.ReserveBalanceAtomic(context.Background(), reserveSpec("ghost", "free", 0))
	if err != nil {
		t.Fatalf("error = %v, want nil for a free upload", err)
	}
	if len(res.Payers) != 0 {
		t.Errorf("Payers = %+v, want none", res.Payers)
	}
}

func TestReserve_DuplicateDataItem(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	fund(t, db, "alice", 1000)
	if _, err := db.ReserveBalanceAtomic(ctx, reserveSpec("alice", "item-1", 10)); err != nil {
		t.Fatal(err)
	}
	_, err := db.ReserveBalanceAtomic(ctx, reserveSpec("alice", "item-1", 10))
	if !domain.IsKind(err, domain.KindReservationExists) {
		t.Errorf("error = %v, want ReservationExists", err)
	}
	assertWinc(t, "balance", wincOf(t, db, "alice"), 990)
}

func TestReserve_ApprovalsBeforeOwnBalance(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	fund(t, db, "payer", 500)
	fund(t, db, "alice", 500)
	db.CreateApproval(ctx, domain.Approval{
		ApprovalID: "ap-1", PayingAddress: "payer", ApprovedAddress: "alice",
		ApprovedWincAmount: domain.NewWinc(150), CreationDate: t0,
	})

	res, err := db.ReserveBalanceAtomic(ctx, reserveSpec("alice", "item-1", 200, "payer", "alice"))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Payers) != 2 {
		t.Fatalf("Payers = %+v, want approval + signer", res.Payers)
	}
	if res.Payers[0].ApprovalID != "ap-1" {
		t.Errorf("first share approval = %q, want ap-1", res.Payers[0].ApprovalID)
	}
	assertWinc(t, "approval share", res.Payers[0].WincAmount, 150)
	assertWinc(t, "signer share", res.Payers[1].WincAmount, 50)
	assertWinc(t, "alice balance", wincOf(t, db, "alice"), 450)
	assertWinc(t, "payer balance", wincOf(t, db, "payer"), 350)
}

func TestReserve_ExpiredApprovalIgnored(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	fund(t, db, "payer", 500)
	expires := t0.Add(-time.Minute)
	db.CreateApproval(ctx, domain.Approval{
		ApprovalID: "ap-old", PayingAddress: "payer", ApprovedAddress: "alice",
		ApprovedWincAmount: domain.NewWinc(100), CreationDate: t0.Add(-time.Hour), ExpirationDate: &expires,
	})

	_, err := db.ReserveBalanceAtomic(ctx, reserveSpec("alice", "item-1", 50, "payer"))
	if !domain.IsKind(err, domain.KindUserNotFound) {
		t.Errorf("error = %v, want UserNotFound (expired approval, no own balance)", err)
	}
}

func TestReserve_ScopedApprovalSingleUse(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	fund(t, db, "payer", 500)
	fund(t, db, "alice", 10)
	db.CreateApproval(ctx, domain.Approval{
		ApprovalID: "ap-scoped", PayingAddress: "payer", ApprovedAddress: "alice",
		ApprovedWincAmount: domain.NewWinc(100), CreationDate: t0, ScopeDataItemID: "item-1",
	})

	// Scoped to item-1: unusable for another item.
	if _, err := db.ReserveBalanceAtomic(ctx, reserveSpec("alice", "item-2", 50, "payer")); !domain.IsKind(err, domain.KindInsufficientBalance) {
		t.Fatalf("other item error = %v, want InsufficientBalance", err)
	}

	res, err := db.ReserveBalanceAtomic(ctx, reserveSpec("alice", "item-1", 40, "payer"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Payers[0].ApprovalID != "ap-scoped" {
		t.Errorf("Payers = %+v, want scoped approval", res.Payers)
	}

	// Revoking the consumed approval by id conflicts.
	_, err = db.RevokeApprovals(ctx, "payer", "alice", "ap-scoped", t0)
	if !domain.IsKind(err, domain.KindConflictingApprovalFound) {
		t.Errorf("revoke error = %v, want ConflictingApprovalFound", err)
	}
	assertWinc(t, "payer after conflict", wincOf(t, db, "payer"), 400)

	// A revoke without an id still returns the unused 60.
	if _, err := db.RevokeApprovals(ctx, "payer", "alice", "", t0); err != nil {
		t.Fatalf("revoke all error = %v", err)
	}
	assertWinc(t, "payer after revoke all", wincOf(t, db, "payer"), 460)
}

func TestReserve_ConcurrentCannotOverdraw(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	fund(t, db, "alice", 100)

	const n = 10
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			_, err := db.ReserveBalanceAtomic(ctx, reserveSpec("alice", "item-"+string(rune('a'+i)), 20))
			errs <- err
		}(i)
	}
	ok := 0
	for i := 0; i < n; i++ {
		err := <-errs
		switch {
		case err == nil:
			ok++
		case domain.IsKind(err, domain.KindInsufficientBalance):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 5 {
		t.Errorf("successful reservations = %d, want 5", ok)
	}
	assertWinc(t, "balance", wincOf(t, db, "alice"), 0)
}

// ─── Refund / Finalize ──────────────────────────────────────────────────────

func TestRefund_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	fund(t, db, "payer", 500)
	fund(t, db, "alice", 500)
	db.CreateApproval(ctx, domain.Approval{
		ApprovalID: "ap-1", PayingAddress: "payer", ApprovedAddress: "alice",
		ApprovedWincAmount: domain.NewWinc(100), CreationDate: t0,
	})
	before, _ := db.GetBalance(ctx, "alice", t0)

	if _, err := db.ReserveBalanceAtomic(ctx, reserveSpec("alice", "item-1", 250, "payer")); err != nil {
		t.Fatal(err)
	}
	res, refunded, err := db.RefundBalance(ctx, "alice", "item-1", t0)
	if err != nil {
		t.Fatalf("RefundBalance() error: %v", err)
	}
	if !refunded || res.Status != domain.ReservationRefunded {
		t.Errorf("refunded=%v status=%q, want true/refunded", refunded, res.Status)
	}

	after, _ := db.GetBalance(ctx, "alice", t0)
	if !after.Winc.Equal(before.Winc) || !after.EffectiveBalance.Equal(before.EffectiveBalance) {
		t.Errorf("after refund = (%s, %s), want (%s, %s)", after.Winc, after.EffectiveBalance, before.Winc, before.EffectiveBalance)
	}

	// Second refund is a no-op.
	_, refunded, err = db.RefundBalance(ctx, "alice", "item-1", t0)
	if err != nil || refunded {
		t.Errorf("second refund = (%v, %v), want (false, nil)", refunded, err)
	}
	assertWinc(t, "balance after second refund", wincOf(t, db, "alice"), 500)
}

func TestRefund_RevokedApprovalPaysPayer(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	fund(t, db, "payer", 500)
	db.CreateApproval(ctx, domain.Approval{
		ApprovalID: "ap-1", PayingAddress: "payer", ApprovedAddress: "alice",
		ApprovedWincAmount: domain.NewWinc(100), CreationDate: t0,
	})
	if _, err := db.ReserveBalanceAtomic(ctx, reserveSpec("alice", "item-1", 60, "payer")); err != nil {
		t.Fatal(err)
	}
	if _, err := db.RevokeApprovals(ctx, "payer", "alice", "", t0); err != nil {
		t.Fatal(err)
	}
	assertWinc(t, "payer after revoke", wincOf(t, db, "payer"), 440)

	if _, _, err := db.RefundBalance(ctx, "alice", "item-1", t0); err != nil {
		t.Fatal(err)
	}
	assertWinc(t, "payer after refund", wincOf(t, db, "payer"), 500)
}

func TestRefund_WrongSigner(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	fund(t, db, "alice", 100)
	db.ReserveBalanceAtomic(ctx, reserveSpec("alice", "item-1", 10))

	if _, _, err := db.RefundBalance(ctx, "mallory", "item-1", t0); !domain.IsKind(err, domain.KindReservationNotFound) {
		t.Errorf("error = %v, want ReservationNotFound", err)
	}
}

func TestFinalize(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	fund(t, db, "alice", 100)
	db.ReserveBalanceAtomic(ctx, reserveSpec("alice", "item-1", 10))
	db.ReserveBalanceAtomic(ctx, reserveSpec("alice", "item-2", 10))

	res, err := db.FinalizeReservation(ctx, "item-1", t0)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != domain.ReservationFinalized || res.ResolvedAt == nil {
		t.Errorf("res = %+v, want finalized with ResolvedAt", res)
	}
	if _, err := db.FinalizeReservation(ctx, "item-1", t0); err != nil {
		t.Errorf("second finalize error = %v, want nil", err)
	}
	if _, refunded, _ := db.RefundBalance(ctx, "alice", "item-1", t0); refunded {
		t.Error("finalized reservation was refunded")
	}

	db.RefundBalance(ctx, "alice", "item-2", t0)
	if _, err := db.FinalizeReservation(ctx, "item-2", t0); !domain.IsKind(err, domain.KindReservationNotFound) {
		t.Errorf("finalize refunded error = %v, want ReservationNotFound", err)
	}
	assertWinc(t, "balance", wincOf(t, db, "alice"), 90)
}

func TestReserve_AgainAfterRefund(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	fund(t, db, "alice", 100)

	first, err := db.ReserveBalanceAtomic(ctx, reserveSpec("alice", "item-1", 10))
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := db.RefundBalance(ctx, "alice", "item-1", t0); err != nil {
		t.Fatal(err)
	}

	second, err := db.ReserveBalanceAtomic(ctx, reserveSpec("alice", "item-1", 10))
	if err != nil {
		t.Fatalf("reserve after refund error = %v, want nil", err)
	}
	if second.ReservationID == first.ReservationID {
		t.Error("retry reused the refunded reservation id")
	}
	assertWinc(t, "balance", wincOf(t, db, "alice"), 90)

	stored, err := db.GetReservation(ctx, "item-1")
	if err != nil {
		t.Fatal(err)
	}
	if stored.ReservationID != second.ReservationID || stored.Status != domain.ReservationPending {
		t.Errorf("stored = %s/%s, want %s/pending", stored.ReservationID, stored.Status, second.ReservationID)
	}

	if _, err := db.ReserveBalanceAtomic(ctx, reserveSpec("alice", "item-1", 10)); !domain.IsKind(err, domain.KindReservationExists) {
		t.Errorf("third reserve error = %v, want ReservationExists", err)
	}
	if _, err := db.FinalizeReservation(ctx, "item-1", t0); err != nil {
		t.Errorf("finalize retry error = %v", err)
	}
	assertWinc(t, "balance after finalize", wincOf(t, db, "alice"), 90)
}

// ─── Approvals ──────────────────────────────────────────────────────────────

func TestCreateApproval_LocksPayerFunds(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	fund(t, db, "payer", 100)

	_, err := db.CreateApproval(ctx, domain.Approval{
		ApprovalID: "too-much", PayingAddress: "payer", ApprovedAddress: "alice",
		ApprovedWincAmount: domain.NewWinc(101), CreationDate: t0,
	})
	if !domain.IsKind(err, domain.KindInsufficientBalance) {
		t.Fatalf("error = %v, want InsufficientBalance", err)
	}

	if _, err := db.CreateApproval(ctx, domain.Approval{
		ApprovalID: "ap-1", PayingAddress: "payer", ApprovedAddress: "alice",
		ApprovedWincAmount: domain.NewWinc(60), CreationDate: t0,
	}); err != nil {
		t.Fatal(err)
	}
	assertWinc(t, "payer balance", wincOf(t, db, "payer"), 40)

	bal, err := db.GetBalance(ctx, "alice", t0)
	if err != nil {
		t.Fatalf("approved address without own balance: %v", err)
	}
	assertWinc(t, "alice winc", bal.Winc, 0)
	assertWinc(t, "alice effective", bal.EffectiveBalance, 60)
	if len(bal.ReceivedApprovals) != 1 {
		t.Errorf("ReceivedApprovals = %d, want 1", len(bal.ReceivedApprovals))
	}
}

func TestGetApprovalsForSigner(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	fund(t, db, "payer", 1000)
	soon := t0.Add(time.Hour)
	for _, a := range []domain.Approval{
		{ApprovalID: "ap-open", ApprovedAddress: "alice"},
		{ApprovalID: "ap-expiring", ApprovedAddress: "alice", ExpirationDate: &soon},
		{ApprovalID: "ap-revoked", ApprovedAddress: "alice"},
		{ApprovalID: "ap-bob", ApprovedAddress: "bob"},
	} {
		a.PayingAddress, a.ApprovedWincAmount, a.CreationDate = "payer", domain.NewWinc(100), t0
		if _, err := db.CreateApproval(ctx, a); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := db.RevokeApprovals(ctx, "payer", "alice", "ap-revoked", t0); err != nil {
		t.Fatal(err)
	}

	ids := func(now time.Time) []string {
		t.Helper()
		approvals, err := db.GetApprovalsForSigner(ctx, "alice", now)
		if err != nil {
			t.Fatal(err)
		}
		var out []string
		for _, a := range approvals {
			out = append(out, a.ApprovalID)
		}
		return out
	}
	if got := ids(t0); len(got) != 2 || got[0] != "ap-open" || got[1] != "ap-expiring" {
		t.Errorf("before expiry = %v, want [ap-open ap-expiring]", got)
	}
	if got := ids(soon); len(got) != 1 || got[0] != "ap-open" {
		t.Errorf("at expiry = %v, want [ap-open]", got)
	}

	bal, err := db.GetBalance(ctx, "alice", soon)
	if err != nil {
		t.Fatal(err)
	}
	assertWinc(t, "alice effective at expiry", bal.EffectiveBalance, 100)
}

func TestRevokeApprovals(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	fund(t, db, "payer", 300)
	for _, id := range []string{"ap-1", "ap-2"} {
		db.CreateApproval(ctx, domain.Approval{
			ApprovalID: id, PayingAddress: "payer", ApprovedAddress: "alice",
			ApprovedWincAmount: domain.NewWinc(100), CreationDate: t0,
		})
	}

	revoked, err := db.RevokeApprovals(ctx, "payer", "alice", "ap-1", t0)
	if err != nil {
		t.Fatal(err)
	}
	if len(revoked) != 1 || revoked[0].RevokedDate == nil {
		t.Errorf("revoked = %+v, want ap-1 with RevokedDate", revoked)
	}
	assertWinc(t, "payer after one revoke", wincOf(t, db, "payer"), 200)

	if _, err := db.RevokeApprovals(ctx, "payer", "alice", "ap-1", t0); !domain.IsKind(err, domain.KindNoApprovalsFound) {
		t.Errorf("re-revoke error = %v, want NoApprovalsFound", err)
	}
	if _, err := db.RevokeApprovals(ctx, "payer", "alice", "", t0); err != nil {
		t.Fatal(err)
	}
	assertWinc(t, "payer after revoke all", wincOf(t, db, "payer"), 300)
}

func TestReturnExpiredApprovals(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	fund(t, db, "payer", 300)
	soon := t0.Add(time.Hour)
	db.CreateApproval(ctx, domain.Approval{
		ApprovalID: "ap-exp", PayingAddress: "payer", ApprovedAddress: "alice",
		ApprovedWincAmount: domain.NewWinc(100), CreationDate: t0, ExpirationDate: &soon,
	})
	db.CreateApproval(ctx, domain.Approval{
		ApprovalID: "ap-open", PayingAddress: "payer", ApprovedAddress: "alice",
		ApprovedWincAmount: domain.NewWinc(100), CreationDate: t0,
	})
	db.ReserveBalanceAtomic(ctx, reserveSpec("alice", "item-1", 30, "payer"))

	n, err := db.ReturnExpiredApprovals(ctx, t0)
	if err != nil || n != 0 {
		t.Fatalf("before expiry = (%d, %v), want (0, nil)", n, err)
	}
	n, err = db.ReturnExpiredApprovals(ctx, soon)
	if err != nil || n != 1 {
		t.Fatalf("at expiry = (%d, %v), want (1, nil)", n, err)
	}
	// ap-exp funded the reservation (earliest expiry first); 70 unused returns.
	assertWinc(t, "payer", wincOf(t, db, "payer"), 170)

	n, _ = db.ReturnExpiredApprovals(ctx, soon.Add(time.Hour))
	if n != 0 {
		t.Errorf("second sweep closed %d, want 0", n)
	}
}

// ─── Crypto Payments ────────────────────────────────────────────────────────

func pendingPayment(txID string) domain.CryptoPayment {
	return domain.CryptoPayment{
		TransactionID:       txID,
		Token:               domain.TokenArweave,
		SenderAddress:       "sender",
		RecipientAddress:    "wallet",
		TransactionQuantity: domain.NewWinc(1_000_000),
		WincAmount:          domain.NewWinc(766_000),
		CreatedAt:           t0,
	}
}

func TestCryptoPayment_InsertIdempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	p, created, err := db.InsertCryptoPayment(ctx, pendingPayment("tx-1"))
	if err != nil || !created || p.Status != domain.CryptoPending {
		t.Fatalf("first insert = (%+v, %v, %v)", p, created, err)
	}
	again := pendingPayment("tx-1")
	again.WincAmount = domain.NewWinc(1)
	p, created, err = db.InsertCryptoPayment(ctx, again)
	if err != nil || created {
		t.Fatalf("second insert created=%v err=%v, want false/nil", created, err)
	}
	assertWinc(t, "frozen winc", p.WincAmount, 766_000)
}

func TestCryptoPayment_CreditTwice(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	db.InsertCryptoPayment(ctx, pendingPayment("tx-1"))

	for i := 0; i < 2; i++ {
		p, err := db.CreditCryptoPayment(ctx, "tx-1", 42, t0)
		if err != nil {
			t.Fatal(err)
		}
		if p.Status != domain.CryptoCredited || p.BlockHeight != 42 {
			t.Errorf("credit %d = %+v, want credited at 42", i+1, p)
		}
	}
	assertWinc(t, "sender balance", wincOf(t, db, "sender"), 766_000)

	pending, _ := db.PendingCryptoPayments(ctx)
	if len(pending) != 0 {
		t.Errorf("pending = %d, want 0", len(pending))
	}
}

func TestCryptoPayment_FailedIsTerminal(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	db.InsertCryptoPayment(ctx, pendingPayment("tx-1"))

	if _, err := db.FailCryptoPayment(ctx, "tx-1", "expired", t0); err != nil {
		t.Fatal(err)
	}
	p, err := db.CreditCryptoPayment(ctx, "tx-1", 1, t0)
	if err != nil {
		t.Fatal(err)
	}
	if p.Status != domain.CryptoFailed || p.FailedReason != "expired" {
		t.Errorf("payment = %+v, want failed/expired", p)
	}
	if _, found, _ := balanceOf(ctx, db.db, "sender"); found {
		t.Error("failed payment credited the sender")
	}
}

func TestCryptoPayment_NotFound(t *testing.T) {
	db := newTestDB(t)
	if _, err := db.GetCryptoPayment(context.Background(), "nope"); !domain.IsKind(err, domain.KindTransactionNotFound) {
		t.Errorf("error = %v, want TransactionNotFound", err)
	}
}

// ─── Receipts / History ─────────────────────────────────────────────────────

func TestPaymentReceipt_IdempotentCredit(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	r := domain.PaymentReceipt{
		ReceiptID: "rcpt-1", Address: "alice", WincAmount: domain.NewWinc(5000),
		PaymentAmount: 1000, Currency: domain.USD, PromoCodes: []string{"SAVE"}, CreatedAt: t0,
	}

	if has, _ := db.HasPaymentHistory(ctx, "alice"); has {
		t.Fatal("fresh address has payment history")
	}
	for i := 0; i < 2; i++ {
		got, created, err := db.InsertPaymentReceipt(ctx, r)
		if err != nil {
			t.Fatal(err)
		}
		if created != (i == 0) {
			t.Errorf("insert %d created = %v", i+1, created)
		}
		if len(got.PromoCodes) != 1 || got.PromoCodes[0] != "SAVE" {
			t.Errorf("PromoCodes = %v, want [SAVE]", got.PromoCodes)
		}
	}
	assertWinc(t, "balance", wincOf(t, db, "alice"), 5000)
	if has, _ := db.HasPaymentHistory(ctx, "alice"); !has {
		t.Error("HasPaymentHistory = false after receipt")
	}
}

func TestHasPaymentHistory_CreditedCryptoOnly(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	db.InsertCryptoPayment(ctx, pendingPayment("tx-1"))
	if has, _ := db.HasPaymentHistory(ctx, "sender"); has {
		t.Error("pending crypto counted as history")
	}
	db.CreditCryptoPayment(ctx, "tx-1", 1, t0)
	if has, _ := db.HasPaymentHistory(ctx, "sender"); !has {
		t.Error("credited crypto not counted as history")
	}
}
