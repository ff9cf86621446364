package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tutu-network/credits/internal/domain"
)

// ─── Price Quotes ───────────────────────────────────────────────────────────
//
// GET /v1/price/bytes/{bytes}?address=            winc for an upload
// GET /v1/price/{currency}/{amount}?promoCode=    winc bought by a fiat payment
// GET /v1/price/crypto/{token}/{amount}?feeMode=  winc bought by a token transfer
// GET /v1/currencies                              supported currencies and limits

func (s *Server) handlePriceBytes(w http.ResponseWriter, r *http.Request) {
	bytes, err := strconv.ParseInt(chi.URLParam(r, "bytes"), 10, 64)
	if err != nil {
		s.writeError(w, r, domain.ErrInvalidRequest("byte count must be an integer"))
		return
	}
	quote, err := s.pricer.PriceForBytes(r.Context(), bytes, r.URL.Query().Get("address"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (s *Server) handlePricePayment(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "amount")
	amount, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.writeError(w, r, domain.ErrInvalidPaymentAmount(raw))
		return
	}
	q := r.URL.Query()
	payment := domain.Payment{Amount: amount, Currency: domain.Currency(chi.URLParam(r, "currency"))}

	quote, err := s.pricer.CreditsForPayment(r.Context(), payment, promoCodes(q["promoCode"]), q.Get("destinationAddress"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (s *Server) handlePriceCrypto(w http.ResponseWriter, r *http.Request) {
	amount, err := domain.ParseWinc(chi.URLParam(r, "amount"))
	if err != nil {
		s.writeError(w, r, domain.ErrInvalidRequest("token amount must be a non-negative integer in the smallest unit"))
		return
	}
	token := domain.Token(chi.URLParam(r, "token"))
	mode := domain.FeeMode(r.URL.Query().Get("feeMode"))

	quote, err := s.pricer.CreditsForCryptoPayment(r.Context(), amount, token, mode)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (s *Server) handleCurrencies(w http.ResponseWriter, r *http.Request) {
	limits, err := s.pricer.CurrencyLimits(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"supportedCurrencies": domain.SupportedCurrencies(),
		"limits":              limits,
	})
}

// promoCodes accepts both repeated and comma-separated promoCode parameters.
func promoCodes(values []string) []string {
	var out []string
	for _, v := range values {
		for _, code := range strings.Split(v, ",") {
			if code = strings.TrimSpace(code); code != "" {
				out = append(out, code)
			}
		}
	}
	return out
}
