package ledger

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tutu-network/credits/internal/domain"
)

// ═══════════════════════════════════════════════════════════════════════════
// Crypto Payments
// ═══════════════════════════════════════════════════════════════════════════

// SubmitCryptoPayment records an inbound transfer of token identified by
// txID. A known transaction id returns its stored record unchanged. A new
// transfer must pay the service wallet a positive quantity; its winc value is
// priced and frozen now, and credited immediately if the gateway already
// reports it confirmed. Otherwise reconciliation credits it later.
func (s *Service) SubmitCryptoPayment(ctx context.Context, token domain.Token, txID string) (p domain.CryptoPayment, err error) {
	span := s.tracer.StartSpan(ctx, "ledger.crypto_submit", map[string]string{"token": string(token), "tx": txID})
	defer func() { s.tracer.EndSpan(span, err) }()

	token, err = domain.ParseToken(string(token))
	if err != nil {
		return domain.CryptoPayment{}, err
	}
	if txID == "" {
		return domain.CryptoPayment{}, domain.ErrInvalidCryptoPayment(txID, "transaction id is required")
	}

	existing, err := s.store.GetCryptoPayment(ctx, txID)
	if err == nil {
		return existing, nil
	}
	if !domain.IsKind(err, domain.KindTransactionNotFound) {
		return domain.CryptoPayment{}, err
	}

	gw, ok := s.gateways[token]
	if !ok {
		return domain.CryptoPayment{}, domain.ErrUnsupportedToken(string(token))
	}
	info, err := gw.Transaction(ctx, txID)
	if err != nil {
		return domain.CryptoPayment{}, gatewayError(token, err)
	}

	wallet := s.cfg.ReceivingWallets[token]
	if wallet == "" || info.RecipientAddress != wallet {
		return domain.CryptoPayment{}, domain.ErrInvalidCryptoPayment(txID, "recipient is not the service wallet")
	}
	if info.Quantity.IsZero() {
		return domain.CryptoPayment{}, domain.ErrInvalidCryptoPayment(txID, "quantity must be positive")
	}

	quote, err := s.pricer.CreditsForCryptoPayment(ctx, info.Quantity, token, domain.FeeModeStandard)
	if err != nil {
		return domain.CryptoPayment{}, err
	}

	p, created, err := s.store.InsertCryptoPayment(ctx, domain.CryptoPayment{
		TransactionID:       txID,
		Token:               token,
		SenderAddress:       info.SenderAddress,
		RecipientAddress:    info.RecipientAddress,
		TransactionQuantity: info.Quantity,
		WincAmount:          quote.FinalPrice,
		Status:              domain.CryptoPending,
		CreatedAt:           s.now(),
	})
	if err != nil {
		return domain.CryptoPayment{}, err
	}
	if !created {
		return p, nil
	}
	s.countCryptoPayment(p)
	s.logger.Info("crypto payment recorded",
		zap.String("token", string(token)),
		zap.String("tx", txID),
		zap.String("sender", p.SenderAddress),
		zap.Stringer("winc", p.WincAmount))

	status, err := gw.TransactionStatus(ctx, txID)
	if err != nil {
		s.logger.Warn("status lookup failed, leaving payment pending", zap.String("tx", txID), zap.Error(err))
		return p, nil
	}
	if status.Status != domain.TxStatusConfirmed {
		return p, nil
	}
	return s.creditPayment(ctx, p, status.BlockHeight)
}

// GetCryptoPayment returns a recorded payment.
func (s *Service) GetCryptoPayment(ctx context.Context, txID string) (domain.CryptoPayment, error) {
	return s.store.GetCryptoPayment(ctx, txID)
}

// ReconcileResult summarizes one reconciliation pass.
type ReconcileResult struct {
	Checked  int
	Credited int
	Failed   int
	Errors   int
}

// ReconcilePendingPayments polls every pending payment's gateway once.
// Confirmed payments are credited their frozen amount; payments still
// unconfirmed past the expiry window fail. Lookup errors leave the payment
// pending for the next pass.
func (s *Service) ReconcilePendingPayments(ctx context.Context) (ReconcileResult, error) {
	var r ReconcileResult
	pending, err := s.store.PendingCryptoPayments(ctx)
	if err != nil {
		return r, err
	}
	for _, p := range pending {
		if ctx.Err() != nil {
			return r, ctx.Err()
		}
		r.Checked++

		gw, ok := s.gateways[p.Token]
		if !ok {
			r.Errors++
			s.logger.Warn("no gateway for pending payment", zap.String("token", string(p.Token)), zap.String("tx", p.TransactionID))
			continue
		}
		status, err := gw.TransactionStatus(ctx, p.TransactionID)
		if err != nil {
			r.Errors++
			s.logger.Warn("status lookup failed", zap.String("tx", p.TransactionID), zap.Error(err))
			continue
		}

		switch {
		case status.Status == domain.TxStatusConfirmed:
			if _, err := s.creditPayment(ctx, p, status.BlockHeight); err != nil {
				r.Errors++
				s.logger.Error("credit failed", zap.String("tx", p.TransactionID), zap.Error(err))
				continue
			}
			r.Credited++
		case s.now().Sub(p.CreatedAt) >= s.cfg.PaymentExpiry:
			failed, err := s.store.FailCryptoPayment(ctx, p.TransactionID, "unconfirmed after expiry window", s.now())
			if err != nil {
				r.Errors++
				s.logger.Error("fail payment", zap.String("tx", p.TransactionID), zap.Error(err))
				continue
			}
			s.countCryptoPayment(failed)
			s.logger.Info("crypto payment expired", zap.String("tx", p.TransactionID))
			r.Failed++
		}
	}
	return r, nil
}

func (s *Service) creditPayment(ctx context.Context, p domain.CryptoPayment, blockHeight int64) (domain.CryptoPayment, error) {
	credited, err := s.store.CreditCryptoPayment(ctx, p.TransactionID, blockHeight, s.now())
	if err != nil {
		return domain.CryptoPayment{}, err
	}
	s.countCryptoPayment(credited)
	s.logger.Info("crypto payment credited",
		zap.String("tx", credited.TransactionID),
		zap.String("sender", credited.SenderAddress),
		zap.Stringer("winc", credited.WincAmount),
		zap.Int64("block", credited.BlockHeight))
	return credited, nil
}

func gatewayError(token domain.Token, err error) error {
	if domain.KindOf(err) != "" {
		return err
	}
	return domain.WrapError(domain.KindOracleUnavailable, fmt.Sprintf("%s gateway unavailable", token), err)
}

// ═══════════════════════════════════════════════════════════════════════════
// Fiat Receipts
// ═══════════════════════════════════════════════════════════════════════════

// CreditPaymentReceipt credits a completed card payment once per receipt id
// and counts a use of every promo code it redeemed. created is false for a
// receipt already recorded.
func (s *Service) CreditPaymentReceipt(ctx context.Context, r domain.PaymentReceipt) (out domain.PaymentReceipt, created bool, err error) {
	span := s.tracer.StartSpan(ctx, "ledger.receipt", map[string]string{"receipt": r.ReceiptID, "address": r.Address})
	defer func() { s.tracer.EndSpan(span, err) }()

	if r.ReceiptID == "" || r.Address == "" {
		return domain.PaymentReceipt{}, false, domain.ErrInvalidPaymentAmount("receipt id and address are required")
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}

	out, created, err = s.store.InsertPaymentReceipt(ctx, r)
	if err != nil || !created {
		return out, created, err
	}
	s.logger.Info("payment receipt credited",
		zap.String("receipt", out.ReceiptID),
		zap.String("address", out.Address),
		zap.Stringer("winc", out.WincAmount))

	// The credit is committed; promo counter failures are only logged.
	if s.catalog != nil {
		for _, code := range out.PromoCodes {
			if err := s.catalog.IncrementPromoCodeUses(ctx, code); err != nil {
				s.logger.Warn("promo use not counted", zap.String("code", code), zap.Error(err))
			}
		}
	}
	return out, true, nil
}
