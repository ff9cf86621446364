package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tutu-network/credits/internal/domain"
)

var _ domain.LedgerStore = (*DB)(nil)

// ─── Balances ───────────────────────────────────────────────────────────────

// balanceOf returns the stored balance and whether the address has a row.
func balanceOf(ctx context.Context, q querier, address string) (domain.Winc, bool, error) {
	var w domain.Winc
	err := q.QueryRowContext(ctx, `SELECT winc FROM balances WHERE address = ?`, address).Scan(&w)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ZeroWinc, false, nil
	}
	if err != nil {
		return domain.Winc{}, false, fmt.Errorf("read balance %s: %w", address, err)
	}
	return w, true, nil
}

// credit adds amount to address (creating the row) and writes an audit entry.
func credit(ctx context.Context, tx *sql.Tx, address string, amount domain.Winc, txType domain.TransactionType, reference string, now time.Time) (domain.Winc, error) {
	current, _, err := balanceOf(ctx, tx, address)
	if err != nil {
		return domain.Winc{}, err
	}
	next := current.Plus(amount)
	ts := formatTime(now)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO balances (address, winc, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET
			winc       = excluded.winc,
			updated_at = excluded.updated_at
	`, address, next, ts, ts)
	if err != nil {
		return domain.Winc{}, fmt.Errorf("credit %s: %w", address, err)
	}
	return next, appendEntry(ctx, tx, address, amount, next, txType, domain.EntryCredit, reference, now)
}

// debit subtracts amount from address. The caller has already checked funds;
// an overdraft here is reported as InsufficientBalance and rolls back.
func debit(ctx context.Context, tx *sql.Tx, address string, amount domain.Winc, txType domain.TransactionType, reference string, now time.Time) (domain.Winc, error) {
	current, found, err := balanceOf(ctx, tx, address)
	if err != nil {
		return domain.Winc{}, err
	}
	if !found {
		return domain.Winc{}, domain.ErrUserNotFound(address)
	}
	next, err := current.Minus(amount)
	if err != nil {
		return domain.Winc{}, domain.ErrInsufficientBalance(address)
	}
	_, err = tx.ExecContext(ctx, `UPDATE balances SET winc = ?, updated_at = ? WHERE address = ?`,
		next, formatTime(now), address)
	if err != nil {
		return domain.Winc{}, fmt.Errorf("debit %s: %w", address, err)
	}
	return next, appendEntry(ctx, tx, address, amount, next, txType, domain.EntryDebit, reference, now)
}

func appendEntry(ctx context.Context, tx *sql.Tx, address string, amount, balance domain.Winc, txType domain.TransactionType, entry domain.EntryType, reference string, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (timestamp, tx_type, entry_type, address, amount, reference, balance)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, formatTime(now), string(txType), string(entry), address, amount, reference, balance)
	if err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	return nil
}

// AdjustBalance credits address outside any reservation (top-ups, crypto
// credits, returned approvals) and returns the new balance.
func (db *DB) AdjustBalance(ctx context.Context, address string, amount domain.Winc, txType domain.TransactionType, reference string) (domain.Winc, error) {
	var next domain.Winc
	err := db.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		next, err = credit(ctx, tx, address, amount, txType, reference, time.Now())
		return err
	})
	return next, err
}

// GetBalance assembles the balance view for address. Unknown addresses with
// no approvals in either direction are UserNotFound.
func (db *DB) GetBalance(ctx context.Context, address string, now time.Time) (domain.Balance, error) {
	winc, found, err := balanceOf(ctx, db.db, address)
	if err != nil {
		return domain.Balance{}, err
	}

	given, err := scanApprovals(db.db.QueryContext(ctx,
		selectApprovals+` WHERE paying_address = ? AND revoked_date IS NULL AND returned = 0 ORDER BY creation_date`, address))
	if err != nil {
		return domain.Balance{}, err
	}
	received, err := db.GetApprovalsForSigner(ctx, address, now)
	if err != nil {
		return domain.Balance{}, err
	}
	given = activeOnly(given, now)

	if !found && len(given) == 0 && len(received) == 0 {
		return domain.Balance{}, domain.ErrUserNotFound(address)
	}

	reserved, err := db.pendingSignerWinc(ctx, address)
	if err != nil {
		return domain.Balance{}, err
	}

	effective := winc
	for _, a := range received {
		effective = effective.Plus(a.Remaining())
	}
	return domain.Balance{
		Address:           address,
		Winc:              winc,
		ReservedWinc:      reserved,
		EffectiveBalance:  effective,
		GivenApprovals:    given,
		ReceivedApprovals: received,
	}, nil
}

func (db *DB) pendingSignerWinc(ctx context.Context, address string) (domain.Winc, error) {
	rows, err := db.db.QueryContext(ctx,
		`SELECT signer_winc FROM reservations WHERE signer_address = ? AND status = ?`,
		address, string(domain.ReservationPending))
	if err != nil {
		return domain.Winc{}, fmt.Errorf("sum reservations: %w", err)
	}
	defer rows.Close()

	total := domain.ZeroWinc
	for rows.Next() {
		var w domain.Winc
		if err := rows.Scan(&w); err != nil {
			return domain.Winc{}, err
		}
		total = total.Plus(w)
	}
	return total, rows.Err()
}

// LedgerEntries returns the most recent audit entries for address, newest first.
func (db *DB) LedgerEntries(ctx context.Context, address string, limit int) ([]domain.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.db.QueryContext(ctx, `
		SELECT id, timestamp, tx_type, entry_type, address, amount, reference, description, balance
		FROM ledger_entries WHERE address = ? ORDER BY id DESC LIMIT ?
	`, address, limit)
	if err != nil {
		return nil, fmt.Errorf("query ledger entries: %w", err)
	}
	defer rows.Close()

	var out []domain.LedgerEntry
	for rows.Next() {
		var (
			e         domain.LedgerEntry
			ts        string
			txType    string
			entryType string
		)
		if err := rows.Scan(&e.ID, &ts, &txType, &entryType, &e.Address, &e.Amount, &e.Reference, &e.Description, &e.Balance); err != nil {
			return nil, err
		}
		if e.Timestamp, err = parseTime(ts); err != nil {
			return nil, err
		}
		e.Type = domain.TransactionType(txType)
		e.EntryType = domain.EntryType(entryType)
		out = append(out, e)
	}
	return out, rows.Err()
}

// ─── Reservations ───────────────────────────────────────────────────────────

// ReserveBalanceAtomic funds spec.Price.Final() from the delegated payers'
// approvals first, in payer order, then from the signer's own balance. All
// debits, approval usage and the reservation row commit together or not at all.
// A data item whose earlier reservations were all refunded may be reserved again.
func (db *DB) ReserveBalanceAtomic(ctx context.Context, spec domain.ReserveSpec) (domain.Reservation, error) {
	var res domain.Reservation
	err := db.inTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM reservations WHERE data_item_id = ? AND status != ?`,
			spec.DataItemID, string(domain.ReservationRefunded)).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check reservation: %w", err)
		}
		if exists > 0 {
			return domain.ErrReservationExists(spec.DataItemID)
		}

		remaining := spec.Price.Final()
		var shares []domain.PayerShare

		seen := make(map[string]bool)
		for _, payer := range spec.Payers {
			if remaining.IsZero() {
				break
			}
			if payer == "" || payer == spec.SignerAddress || seen[payer] {
				continue
			}
			seen[payer] = true

			approvals, err := scanApprovals(tx.QueryContext(ctx, selectApprovals+`
				WHERE paying_address = ? AND approved_address = ? AND revoked_date IS NULL AND returned = 0
				ORDER BY expiration_date IS NULL, expiration_date, creation_date`, payer, spec.SignerAddress))
			if err != nil {
				return err
			}
			for _, a := range approvals {
				if remaining.IsZero() {
					break
				}
				if !a.UsableFor(spec.DataItemID, spec.Now) {
					continue
				}
				take := remaining.Min(a.Remaining())
				a.UsedWincAmount = a.UsedWincAmount.Plus(take)
				if a.Scoped() {
					a.Consumed = true
				}
				if _, err := tx.ExecContext(ctx, `UPDATE approvals SET used_winc = ?, consumed = ? WHERE approval_id = ?`,
					a.UsedWincAmount, boolToInt(a.Consumed), a.ApprovalID); err != nil {
					return fmt.Errorf("use approval %s: %w", a.ApprovalID, err)
				}
				remaining = remaining.SaturatingMinus(take)
				shares = append(shares, domain.PayerShare{PayerAddress: payer, WincAmount: take, ApprovalID: a.ApprovalID})
			}
		}

		signerShare := domain.ZeroWinc
		if !remaining.IsZero() {
			balance, found, err := balanceOf(ctx, tx, spec.SignerAddress)
			if err != nil {
				return err
			}
			if !found {
				return domain.ErrUserNotFound(spec.SignerAddress)
			}
			if balance.LessThan(remaining) {
				return domain.ErrInsufficientBalance(spec.SignerAddress)
			}
			if _, err := debit(ctx, tx, spec.SignerAddress, remaining, domain.TxReserve, spec.DataItemID, spec.Now); err != nil {
				return err
			}
			signerShare = remaining
			shares = append(shares, domain.PayerShare{PayerAddress: spec.SignerAddress, WincAmount: remaining})
		}

		res = domain.Reservation{
			ReservationID:      uuid.NewString(),
			SignerAddress:      spec.SignerAddress,
			DataItemID:         spec.DataItemID,
			ByteCount:          spec.ByteCount,
			ReservedWincAmount: spec.Price.Final(),
			NetworkWincAmount:  spec.Price.Network(),
			Adjustments:        spec.Price.Adjustments(),
			Payers:             shares,
			Status:             domain.ReservationPending,
			CreatedAt:          spec.Now.UTC(),
		}
		if res.Payers == nil {
			res.Payers = []domain.PayerShare{}
		}
		return insertReservation(ctx, tx, res, signerShare)
	})
	if err != nil {
		return domain.Reservation{}, err
	}
	return res, nil
}

// RefundBalance reverses a pending reservation. Approval-funded shares go
// back to the approval while it is still live; otherwise they are credited to
// the payer. A reservation that is no longer pending is returned unchanged
// with refunded=false.
func (db *DB) RefundBalance(ctx context.Context, signer, dataItemID string, now time.Time) (domain.Reservation, bool, error) {
	var (
		res      domain.Reservation
		refunded bool
	)
	err := db.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		res, err = getReservation(ctx, tx, dataItemID)
		if err != nil {
			return err
		}
		if res.SignerAddress != signer {
			return domain.ErrReservationNotFound(dataItemID)
		}
		if res.Status != domain.ReservationPending {
			return nil
		}

		for _, share := range res.Payers {
			if share.ApprovalID == "" {
				if _, err := credit(ctx, tx, share.PayerAddress, share.WincAmount, domain.TxRefund, dataItemID, now); err != nil {
					return err
				}
				continue
			}
			if err := restoreApproval(ctx, tx, share, dataItemID, now); err != nil {
				return err
			}
		}

		resolved := now.UTC()
		res.Status = domain.ReservationRefunded
		res.ResolvedAt = &resolved
		refunded = true
		return setReservationStatus(ctx, tx, res)
	})
	if err != nil {
		return domain.Reservation{}, false, err
	}
	return res, refunded, nil
}

func restoreApproval(ctx context.Context, tx *sql.Tx, share domain.PayerShare, dataItemID string, now time.Time) error {
	a, returned, err := getApproval(ctx, tx, share.ApprovalID)
	if errors.Is(err, sql.ErrNoRows) {
		_, err = credit(ctx, tx, share.PayerAddress, share.WincAmount, domain.TxRefund, dataItemID, now)
		return err
	}
	if err != nil {
		return err
	}

	expired := a.ExpirationDate != nil && !now.Before(*a.ExpirationDate)
	if a.RevokedDate != nil || returned || expired {
		_, err = credit(ctx, tx, share.PayerAddress, share.WincAmount, domain.TxRefund, dataItemID, now)
		return err
	}

	used := a.UsedWincAmount.SaturatingMinus(share.WincAmount)
	_, err = tx.ExecContext(ctx, `UPDATE approvals SET used_winc = ?, consumed = 0 WHERE approval_id = ?`, used, a.ApprovalID)
	if err != nil {
		return fmt.Errorf("restore approval %s: %w", a.ApprovalID, err)
	}
	return nil
}

// FinalizeReservation turns a pending reservation into a permanent debit.
// Finalizing twice is a no-op; finalizing a refunded reservation fails.
func (db *DB) FinalizeReservation(ctx context.Context, dataItemID string, now time.Time) (domain.Reservation, error) {
	var res domain.Reservation
	err := db.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		res, err = getReservation(ctx, tx, dataItemID)
		if err != nil {
			return err
		}
		switch res.Status {
		case domain.ReservationFinalized:
			return nil
		case domain.ReservationRefunded:
			return domain.ErrReservationNotFound(dataItemID)
		}
		resolved := now.UTC()
		res.Status = domain.ReservationFinalized
		res.ResolvedAt = &resolved
		return setReservationStatus(ctx, tx, res)
	})
	if err != nil {
		return domain.Reservation{}, err
	}
	return res, nil
}

// GetReservation returns the live reservation for a data item, or the most
// recent refunded one when the item has no live reservation.
func (db *DB) GetReservation(ctx context.Context, dataItemID string) (domain.Reservation, error) {
	return getReservation(ctx, db.db, dataItemID)
}

func insertReservation(ctx context.Context, tx *sql.Tx, r domain.Reservation, signerShare domain.Winc) error {
	adjustments, err := json.Marshal(r.Adjustments)
	if err != nil {
		return err
	}
	payers, err := json.Marshal(r.Payers)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO reservations (data_item_id, reservation_id, signer_address, byte_count, reserved_winc,
			network_winc, signer_winc, adjustments, payers, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.DataItemID, r.ReservationID, r.SignerAddress, r.ByteCount, r.ReservedWincAmount,
		r.NetworkWincAmount, signerShare, string(adjustments), string(payers), string(r.Status), formatTime(r.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

func setReservationStatus(ctx context.Context, tx *sql.Tx, r domain.Reservation) error {
	_, err := tx.ExecContext(ctx, `UPDATE reservations SET status = ?, resolved_at = ? WHERE reservation_id = ?`,
		string(r.Status), formatTimePtr(r.ResolvedAt), r.ReservationID)
	if err != nil {
		return fmt.Errorf("update reservation %s: %w", r.DataItemID, err)
	}
	return nil
}

func getReservation(ctx context.Context, q querier, dataItemID string) (domain.Reservation, error) {
	var (
		r           domain.Reservation
		adjustments string
		payers      string
		status      string
		createdAt   string
		resolvedAt  sql.NullString
	)
	err := q.QueryRowContext(ctx, `
		SELECT reservation_id, signer_address, data_item_id, byte_count, reserved_winc, network_winc,
			adjustments, payers, status, created_at, resolved_at
		FROM reservations WHERE data_item_id = ?
		ORDER BY status = ?, rowid DESC LIMIT 1
	`, dataItemID, string(domain.ReservationRefunded)).Scan(&r.ReservationID, &r.SignerAddress, &r.DataItemID, &r.ByteCount, &r.ReservedWincAmount,
		&r.NetworkWincAmount, &adjustments, &payers, &status, &createdAt, &resolvedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Reservation{}, domain.ErrReservationNotFound(dataItemID)
	}
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("read reservation %s: %w", dataItemID, err)
	}
	if err := json.Unmarshal([]byte(adjustments), &r.Adjustments); err != nil {
		return domain.Reservation{}, fmt.Errorf("decode adjustments: %w", err)
	}
	if err := json.Unmarshal([]byte(payers), &r.Payers); err != nil {
		return domain.Reservation{}, fmt.Errorf("decode payers: %w", err)
	}
	r.Status = domain.ReservationStatus(status)
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.Reservation{}, err
	}
	if r.ResolvedAt, err = parseTimePtr(resolvedAt); err != nil {
		return domain.Reservation{}, err
	}
	return r, nil
}
