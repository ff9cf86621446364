package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tutu-network/credits/internal/app/ledger"
	"github.com/tutu-network/credits/internal/domain"
)

// ─── Ledger API ─────────────────────────────────────────────────────────────
//
// GET  /v1/balance?address=                   balance and approvals
// POST /v1/reserve-balance/{signer}           hold the price of an upload
// POST /v1/refund-balance/{signer}            release a held upload
// POST /v1/finalize/{dataItemId}              settle a held upload
// GET  /v1/approvals?payingAddress=&approvedAddress=
// POST /v1/approvals                          grant delegated spending
// POST /v1/approvals/revoke                   withdraw delegated spending
// POST /v1/crypto-payments/{token}/{txId}     submit an inbound transfer
// GET  /v1/crypto-payments/{txId}
// POST /v1/payment-receipts                   credit a completed card payment
//
// The reserve, refund, finalize, approval-writing and receipt routes require
// the admin bearer token.

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("address")
	if address == "" {
		s.writeError(w, r, domain.ErrInvalidRequest("address is required"))
		return
	}
	b, err := s.ledger.GetBalance(r.Context(), address)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

type reserveBody struct {
	DataItemID string   `json:"dataItemId"`
	ByteCount  int64    `json:"byteCount"`
	PaidBy     []string `json:"paidBy,omitempty"`
}

func (s *Server) handleReserve(w http.ResponseWriter, r *http.Request) {
	var body reserveBody
	if err := s.decodeBody(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if body.DataItemID == "" {
		s.writeError(w, r, domain.ErrInvalidRequest("dataItemId is required"))
		return
	}
	res, err := s.ledger.ReserveBalance(r.Context(), ledger.ReserveRequest{
		SignerAddress: chi.URLParam(r, "signer"),
		DataItemID:    body.DataItemID,
		ByteCount:     body.ByteCount,
		Payers:        body.PaidBy,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type refundBody struct {
	DataItemID string `json:"dataItemId"`
}

func (s *Server) handleRefund(w http.ResponseWriter, r *http.Request) {
	var body refundBody
	if err := s.decodeBody(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, refunded, err := s.ledger.RefundBalance(r.Context(), chi.URLParam(r, "signer"), body.DataItemID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"refunded":    refunded,
		"reservation": res,
	})
}

func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	res, err := s.ledger.FinalizeReservation(r.Context(), chi.URLParam(r, "dataItemId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ─── Approvals ──────────────────────────────────────────────────────────────

func (s *Server) handleGetApprovals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	payer := q.Get("payingAddress")
	if payer == "" {
		s.writeError(w, r, domain.ErrInvalidRequest("payingAddress is required"))
		return
	}
	approvals, err := s.ledger.GetApprovals(r.Context(), payer, q.Get("approvedAddress"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"approvals": approvals})
}

type approvalBody struct {
	PayingAddress    string      `json:"payingAddress"`
	ApprovedAddress  string      `json:"approvedAddress"`
	Winc             domain.Winc `json:"winc"`
	ExpiresInSeconds int64       `json:"expiresInSeconds,omitempty"`
	ScopeDataItemID  string      `json:"scopeDataItemId,omitempty"`
}

func (s *Server) handleCreateApproval(w http.ResponseWriter, r *http.Request) {
	var body approvalBody
	if err := s.decodeBody(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	a, err := s.ledger.CreateApproval(r.Context(), ledger.ApprovalRequest{
		PayingAddress:   body.PayingAddress,
		ApprovedAddress: body.ApprovedAddress,
		WincAmount:      body.Winc,
		ExpiresIn:       time.Duration(body.ExpiresInSeconds) * time.Second,
		ScopeDataItemID: body.ScopeDataItemID,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

type revokeBody struct {
	PayingAddress   string `json:"payingAddress"`
	ApprovedAddress string `json:"approvedAddress"`
	ApprovalID      string `json:"approvalId,omitempty"`
}

func (s *Server) handleRevokeApprovals(w http.ResponseWriter, r *http.Request) {
	var body revokeBody
	if err := s.decodeBody(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if body.PayingAddress == "" {
		s.writeError(w, r, domain.ErrInvalidRequest("payingAddress is required"))
		return
	}
	revoked, err := s.ledger.RevokeApprovals(r.Context(), body.PayingAddress, body.ApprovedAddress, body.ApprovalID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"revoked": revoked})
}

// ─── Payments ───────────────────────────────────────────────────────────────

// handleSubmitCryptoPayment answers 202 while the transfer awaits
// confirmation and 200 once it is resolved.
func (s *Server) handleSubmitCryptoPayment(w http.ResponseWriter, r *http.Request) {
	p, err := s.ledger.SubmitCryptoPayment(r.Context(), domain.Token(chi.URLParam(r, "token")), chi.URLParam(r, "txId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if p.Status == domain.CryptoPending {
		status = http.StatusAccepted
	}
	writeJSON(w, status, p)
}

func (s *Server) handleGetCryptoPayment(w http.ResponseWriter, r *http.Request) {
	p, err := s.ledger.GetCryptoPayment(r.Context(), chi.URLParam(r, "txId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handlePaymentReceipt(w http.ResponseWriter, r *http.Request) {
	var body domain.PaymentReceipt
	if err := s.decodeBody(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	out, created, err := s.ledger.CreditPaymentReceipt(r.Context(), body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, out)
}
