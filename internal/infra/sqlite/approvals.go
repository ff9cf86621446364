package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tutu-network/credits/internal/domain"
)

// ─── Approvals ──────────────────────────────────────────────────────────────
// Creating an approval locks its amount out of the payer's balance. The
// unused remainder goes back to the payer exactly once, on revoke or on
// expiry; the returned flag records that it has.

const selectApprovals = `
	SELECT approval_id, paying_address, approved_address, approved_winc, used_winc, creation_date,
		expiration_date, scope_data_item_id, revoked_date, consumed
	FROM approvals`

// CreateApproval debits the payer and stores the grant.
func (db *DB) CreateApproval(ctx context.Context, a domain.Approval) (domain.Approval, error) {
	err := db.inTx(ctx, func(tx *sql.Tx) error {
		balance, found, err := balanceOf(ctx, tx, a.PayingAddress)
		if err != nil {
			return err
		}
		if !found || balance.LessThan(a.ApprovedWincAmount) {
			return domain.ErrInsufficientBalance(a.PayingAddress)
		}
		if _, err := debit(ctx, tx, a.PayingAddress, a.ApprovedWincAmount, domain.TxApprovalLock, a.ApprovalID, a.CreationDate); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO approvals (approval_id, paying_address, approved_address, approved_winc, used_winc,
				creation_date, expiration_date, scope_data_item_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, a.ApprovalID, a.PayingAddress, a.ApprovedAddress, a.ApprovedWincAmount, domain.ZeroWinc,
			formatTime(a.CreationDate), formatTimePtr(a.ExpirationDate), a.ScopeDataItemID)
		if err != nil {
			return fmt.Errorf("insert approval: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Approval{}, err
	}
	a.UsedWincAmount = domain.ZeroWinc
	a.CreationDate = a.CreationDate.UTC()
	return a, nil
}

// GetApprovalsForSigner returns approvals the signer can spend at now.
func (db *DB) GetApprovalsForSigner(ctx context.Context, signer string, now time.Time) ([]domain.Approval, error) {
	approvals, err := scanApprovals(db.db.QueryContext(ctx, selectApprovals+`
		WHERE approved_address = ? AND revoked_date IS NULL AND returned = 0
		ORDER BY creation_date, rowid`, signer))
	if err != nil {
		return nil, err
	}
	return activeOnly(approvals, now), nil
}

// GetApprovals returns unrevoked, unreturned approvals from payer to
// approved. An empty approved address matches every recipient.
func (db *DB) GetApprovals(ctx context.Context, payer, approved string) ([]domain.Approval, error) {
	return scanApprovals(db.db.QueryContext(ctx, selectApprovals+`
		WHERE paying_address = ? AND (? = '' OR approved_address = ?) AND revoked_date IS NULL AND returned = 0
		ORDER BY creation_date`, payer, approved, approved))
}

// RevokeApprovals revokes every open approval from payer to approved (any
// recipient when approved is empty), or only approvalID when it is set, and
// credits each unused remainder back to the payer. Revoking a consumed
// single-use approval by id is a conflict; its unused remainder comes back
// through a revoke without an id or through expiry.
func (db *DB) RevokeApprovals(ctx context.Context, payer, approved, approvalID string, now time.Time) ([]domain.Approval, error) {
	var revoked []domain.Approval
	err := db.inTx(ctx, func(tx *sql.Tx) error {
		query := selectApprovals + ` WHERE paying_address = ? AND (? = '' OR approved_address = ?) AND revoked_date IS NULL AND returned = 0`
		args := []any{payer, approved, approved}
		if approvalID != "" {
			query += ` AND approval_id = ?`
			args = append(args, approvalID)
		}
		approvals, err := scanApprovals(tx.QueryContext(ctx, query+` ORDER BY creation_date`, args...))
		if err != nil {
			return err
		}
		if len(approvals) == 0 {
			return domain.ErrNoApprovalsFound(payer, approved)
		}
		if approvalID != "" && approvals[0].Scoped() && approvals[0].Consumed {
			return domain.ErrConflictingApprovalFound(approvalID)
		}

		revokedAt := now.UTC()
		for _, a := range approvals {
			if rest := a.Remaining(); !rest.IsZero() {
				if _, err := credit(ctx, tx, a.PayingAddress, rest, domain.TxApprovalReturn, a.ApprovalID, now); err != nil {
					return err
				}
			}
			if _, err := tx.ExecContext(ctx, `UPDATE approvals SET revoked_date = ?, returned = 1 WHERE approval_id = ?`,
				formatTime(revokedAt), a.ApprovalID); err != nil {
				return fmt.Errorf("revoke approval %s: %w", a.ApprovalID, err)
			}
			a.RevokedDate = &revokedAt
			revoked = append(revoked, a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return revoked, nil
}

// ReturnExpiredApprovals credits the unused remainder of every approval that
// expired at or before now back to its payer. It returns how many were closed.
func (db *DB) ReturnExpiredApprovals(ctx context.Context, now time.Time) (int, error) {
	var n int
	err := db.inTx(ctx, func(tx *sql.Tx) error {
		approvals, err := scanApprovals(tx.QueryContext(ctx, selectApprovals+`
			WHERE returned = 0 AND revoked_date IS NULL AND expiration_date IS NOT NULL AND expiration_date <= ?`,
			formatTime(now)))
		if err != nil {
			return err
		}
		for _, a := range approvals {
			if rest := a.Remaining(); !rest.IsZero() {
				if _, err := credit(ctx, tx, a.PayingAddress, rest, domain.TxApprovalReturn, a.ApprovalID, now); err != nil {
					return err
				}
			}
			if _, err := tx.ExecContext(ctx, `UPDATE approvals SET returned = 1 WHERE approval_id = ?`, a.ApprovalID); err != nil {
				return fmt.Errorf("close approval %s: %w", a.ApprovalID, err)
			}
			n++
		}
		return nil
	})
	return n, err
}

// getApproval reads one approval regardless of state. It returns
// sql.ErrNoRows when the id is unknown.
func getApproval(ctx context.Context, q querier, approvalID string) (domain.Approval, bool, error) {
	var returned int
	approvals, err := scanApprovals(q.QueryContext(ctx, selectApprovals+` WHERE approval_id = ?`, approvalID))
	if err != nil {
		return domain.Approval{}, false, err
	}
	if len(approvals) == 0 {
		return domain.Approval{}, false, sql.ErrNoRows
	}
	err = q.QueryRowContext(ctx, `SELECT returned FROM approvals WHERE approval_id = ?`, approvalID).Scan(&returned)
	if err != nil {
		return domain.Approval{}, false, err
	}
	return approvals[0], returned == 1, nil
}

func scanApprovals(rows *sql.Rows, err error) ([]domain.Approval, error) {
	if err != nil {
		return nil, fmt.Errorf("query approvals: %w", err)
	}
	defer rows.Close()

	out := []domain.Approval{}
	for rows.Next() {
		var (
			a          domain.Approval
			created    string
			expiration sql.NullString
			revoked    sql.NullString
			consumed   int
		)
		if err := rows.Scan(&a.ApprovalID, &a.PayingAddress, &a.ApprovedAddress, &a.ApprovedWincAmount,
			&a.UsedWincAmount, &created, &expiration, &a.ScopeDataItemID, &revoked, &consumed); err != nil {
			return nil, err
		}
		if a.CreationDate, err = parseTime(created); err != nil {
			return nil, err
		}
		if a.ExpirationDate, err = parseTimePtr(expiration); err != nil {
			return nil, err
		}
		if a.RevokedDate, err = parseTimePtr(revoked); err != nil {
			return nil, err
		}
		a.Consumed = consumed == 1
		out = append(out, a)
	}
	return out, rows.Err()
}

func activeOnly(approvals []domain.Approval, now time.Time) []domain.Approval {
	out := make([]domain.Approval, 0, len(approvals))
	for _, a := range approvals {
		if a.ActiveAt(now) {
			out = append(out, a)
		}
	}
	return out
}
