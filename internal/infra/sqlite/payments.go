package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tutu-network/credits/internal/domain"
)

// ─── Crypto Payments ────────────────────────────────────────────────────────
// Rows are keyed by chain transaction id. Inserts are create-if-absent, and
// the credited/failed transitions only ever leave the pending state, so
// replaying any step leaves the ledger unchanged.

const selectCryptoPayments = `
	SELECT transaction_id, token, sender_address, recipient_address, quantity, winc, status,
		block_height, failed_reason, created_at, resolved_at
	FROM crypto_payments`

// InsertCryptoPayment stores p unless the transaction id is already known,
// in which case the stored record is returned with created=false.
func (db *DB) InsertCryptoPayment(ctx context.Context, p domain.CryptoPayment) (domain.CryptoPayment, bool, error) {
	var (
		out     domain.CryptoPayment
		created bool
	)
	err := db.inTx(ctx, func(tx *sql.Tx) error {
		existing, err := getCryptoPayment(ctx, tx, p.TransactionID)
		if err == nil {
			out = existing
			return nil
		}
		if !domain.IsKind(err, domain.KindTransactionNotFound) {
			return err
		}

		if p.Status == "" {
			p.Status = domain.CryptoPending
		}
		p.CreatedAt = p.CreatedAt.UTC()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO crypto_payments (transaction_id, token, sender_address, recipient_address, quantity,
				winc, status, block_height, failed_reason, created_at, resolved_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, p.TransactionID, string(p.Token), p.SenderAddress, p.RecipientAddress, p.TransactionQuantity,
			p.WincAmount, string(p.Status), p.BlockHeight, p.FailedReason, formatTime(p.CreatedAt), formatTimePtr(p.ResolvedAt))
		if err != nil {
			return fmt.Errorf("insert crypto payment: %w", err)
		}
		out, created = p, true
		return nil
	})
	if err != nil {
		return domain.CryptoPayment{}, false, err
	}
	return out, created, nil
}

// GetCryptoPayment returns the payment for txID or TransactionNotFound.
func (db *DB) GetCryptoPayment(ctx context.Context, txID string) (domain.CryptoPayment, error) {
	return getCryptoPayment(ctx, db.db, txID)
}

// PendingCryptoPayments returns pending payments, oldest first.
func (db *DB) PendingCryptoPayments(ctx context.Context) ([]domain.CryptoPayment, error) {
	rows, err := db.db.QueryContext(ctx, selectCryptoPayments+` WHERE status = ? ORDER BY created_at`,
		string(domain.CryptoPending))
	if err != nil {
		return nil, fmt.Errorf("query pending payments: %w", err)
	}
	defer rows.Close()

	var out []domain.CryptoPayment
	for rows.Next() {
		p, err := scanCryptoPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CreditCryptoPayment moves a pending payment to credited and adds its frozen
// winc amount to the sender's balance. Terminal payments are returned as is.
func (db *DB) CreditCryptoPayment(ctx context.Context, txID string, blockHeight int64, now time.Time) (domain.CryptoPayment, error) {
	var p domain.CryptoPayment
	err := db.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		p, err = getCryptoPayment(ctx, tx, txID)
		if err != nil {
			return err
		}
		if p.Status.Terminal() {
			return nil
		}
		if _, err := credit(ctx, tx, p.SenderAddress, p.WincAmount, domain.TxCryptoCredit, txID, now); err != nil {
			return err
		}
		resolved := now.UTC()
		p.Status = domain.CryptoCredited
		p.BlockHeight = blockHeight
		p.ResolvedAt = &resolved
		_, err = tx.ExecContext(ctx, `UPDATE crypto_payments SET status = ?, block_height = ?, resolved_at = ? WHERE transaction_id = ?`,
			string(p.Status), p.BlockHeight, formatTime(resolved), txID)
		if err != nil {
			return fmt.Errorf("credit payment %s: %w", txID, err)
		}
		return nil
	})
	if err != nil {
		return domain.CryptoPayment{}, err
	}
	return p, nil
}

// FailCryptoPayment moves a pending payment to failed. Terminal payments are
// returned as is.
func (db *DB) FailCryptoPayment(ctx context.Context, txID, reason string, now time.Time) (domain.CryptoPayment, error) {
	var p domain.CryptoPayment
	err := db.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		p, err = getCryptoPayment(ctx, tx, txID)
		if err != nil {
			return err
		}
		if p.Status.Terminal() {
			return nil
		}
		resolved := now.UTC()
		p.Status = domain.CryptoFailed
		p.FailedReason = reason
		p.ResolvedAt = &resolved
		_, err = tx.ExecContext(ctx, `UPDATE crypto_payments SET status = ?, failed_reason = ?, resolved_at = ? WHERE transaction_id = ?`,
			string(p.Status), reason, formatTime(resolved), txID)
		if err != nil {
			return fmt.Errorf("fail payment %s: %w", txID, err)
		}
		return nil
	})
	if err != nil {
		return domain.CryptoPayment{}, err
	}
	return p, nil
}

func getCryptoPayment(ctx context.Context, q querier, txID string) (domain.CryptoPayment, error) {
	rows, err := q.QueryContext(ctx, selectCryptoPayments+` WHERE transaction_id = ?`, txID)
	if err != nil {
		return domain.CryptoPayment{}, fmt.Errorf("read payment %s: %w", txID, err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return domain.CryptoPayment{}, err
		}
		return domain.CryptoPayment{}, domain.ErrTransactionNotFound(txID)
	}
	return scanCryptoPayment(rows)
}

func scanCryptoPayment(rows *sql.Rows) (domain.CryptoPayment, error) {
	var (
		p        domain.CryptoPayment
		token    string
		status   string
		created  string
		resolved sql.NullString
	)
	err := rows.Scan(&p.TransactionID, &token, &p.SenderAddress, &p.RecipientAddress, &p.TransactionQuantity,
		&p.WincAmount, &status, &p.BlockHeight, &p.FailedReason, &created, &resolved)
	if err != nil {
		return domain.CryptoPayment{}, err
	}
	p.Token = domain.Token(token)
	p.Status = domain.CryptoPaymentStatus(status)
	if p.CreatedAt, err = parseTime(created); err != nil {
		return domain.CryptoPayment{}, err
	}
	if p.ResolvedAt, err = parseTimePtr(resolved); err != nil {
		return domain.CryptoPayment{}, err
	}
	return p, nil
}

// ─── Fiat Receipts ──────────────────────────────────────────────────────────

// InsertPaymentReceipt records a card payment and credits its winc in the
// same transaction. A known receipt id returns the stored receipt with
// created=false and credits nothing.
func (db *DB) InsertPaymentReceipt(ctx context.Context, r domain.PaymentReceipt) (domain.PaymentReceipt, bool, error) {
	var (
		out     domain.PaymentReceipt
		created bool
	)
	err := db.inTx(ctx, func(tx *sql.Tx) error {
		existing, found, err := getPaymentReceipt(ctx, tx, r.ReceiptID)
		if err != nil {
			return err
		}
		if found {
			out = existing
			return nil
		}

		codes, err := json.Marshal(r.PromoCodes)
		if err != nil {
			return err
		}
		r.CreatedAt = r.CreatedAt.UTC()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO payment_receipts (receipt_id, address, winc, payment_amount, currency, promo_codes, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, r.ReceiptID, r.Address, r.WincAmount, r.PaymentAmount, string(r.Currency), string(codes), formatTime(r.CreatedAt))
		if err != nil {
			return fmt.Errorf("insert receipt: %w", err)
		}
		if _, err := credit(ctx, tx, r.Address, r.WincAmount, domain.TxTopUp, r.ReceiptID, r.CreatedAt); err != nil {
			return err
		}
		out, created = r, true
		return nil
	})
	if err != nil {
		return domain.PaymentReceipt{}, false, err
	}
	return out, created, nil
}

// HasPaymentHistory reports whether address has any recorded card payment or
// credited crypto payment.
func (db *DB) HasPaymentHistory(ctx context.Context, address string) (bool, error) {
	var n int
	err := db.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM payment_receipts WHERE address = ?) +
			(SELECT COUNT(*) FROM crypto_payments WHERE sender_address = ? AND status = ?)
	`, address, address, string(domain.CryptoCredited)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("payment history %s: %w", address, err)
	}
	return n > 0, nil
}

func getPaymentReceipt(ctx context.Context, q querier, receiptID string) (domain.PaymentReceipt, bool, error) {
	var (
		r        domain.PaymentReceipt
		currency string
		codes    string
		created  string
	)
	err := q.QueryRowContext(ctx, `
		SELECT receipt_id, address, winc, payment_amount, currency, promo_codes, created_at
		FROM payment_receipts WHERE receipt_id = ?
	`, receiptID).Scan(&r.ReceiptID, &r.Address, &r.WincAmount, &r.PaymentAmount, &currency, &codes, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PaymentReceipt{}, false, nil
	}
	if err != nil {
		return domain.PaymentReceipt{}, false, fmt.Errorf("read receipt %s: %w", receiptID, err)
	}
	r.Currency = domain.Currency(currency)
	if err := json.Unmarshal([]byte(codes), &r.PromoCodes); err != nil {
		return domain.PaymentReceipt{}, false, fmt.Errorf("decode promo codes: %w", err)
	}
	if r.CreatedAt, err = parseTime(created); err != nil {
		return domain.PaymentReceipt{}, false, err
	}
	return r, true, nil
}
