package domain

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// ─── Fiat Currencies ────────────────────────────────────────────────────────

// Currency is a lowercase ISO-4217 code.
type Currency string

const (
	USD Currency = "usd"
	EUR Currency = "eur"
	GBP Currency = "gbp"
	CAD Currency = "cad"
	AUD Currency = "aud"
	INR Currency = "inr"
	SGD Currency = "sgd"
	HKD Currency = "hkd"
	BRL Currency = "brl"
	JPY Currency = "jpy"
)

// minorExponent is the number of decimal places of each currency's minor unit.
var minorExponent = map[Currency]int32{
	USD: 2, EUR: 2, GBP: 2, CAD: 2, AUD: 2, INR: 2, SGD: 2, HKD: 2, BRL: 2,
	JPY: 0,
}

// ParseCurrency normalises and validates a currency code.
func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := minorExponent[c]; !ok {
		return "", ErrUnsupportedCurrency(s)
	}
	return c, nil
}

// MinorExponent returns the currency's minor-unit decimal places.
func (c Currency) MinorExponent() int32 { return minorExponent[c] }

// MinorPerMajor returns 10^MinorExponent as a decimal.
func (c Currency) MinorPerMajor() decimal.Decimal {
	return decimal.New(1, c.MinorExponent())
}

// SupportedCurrencies returns all currency codes in sorted order.
func SupportedCurrencies() []Currency {
	out := make([]Currency, 0, len(minorExponent))
	for c := range minorExponent {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Payment is a fiat amount in the currency's minor unit (e.g. cents).
type Payment struct {
	Amount   int64    `json:"amount"`
	Currency Currency `json:"currency"`
}

// ─── Tokens ─────────────────────────────────────────────────────────────────

// Token identifies a supported on-chain asset.
type Token string

const (
	TokenArweave  Token = "arweave"
	TokenARIO     Token = "ario"
	TokenEthereum Token = "ethereum"
	TokenBaseEth  Token = "base-eth"
	TokenSolana   Token = "solana"
	TokenKyve     Token = "kyve"
	TokenMatic    Token = "matic"
	TokenPol      Token = "pol"
)

// CreditBaseToken is the token one credit unit is denominated in (1 AR = 10^12 winc).
const CreditBaseToken = TokenArweave

// TokenInfo describes how a token is priced and denominated.
type TokenInfo struct {
	Exponent int32  // smallest unit decimal places
	OracleID string // upstream price-feed identifier
}

var tokens = map[Token]TokenInfo{
	TokenArweave:  {Exponent: 12, OracleID: "arweave"},
	TokenARIO:     {Exponent: 6, OracleID: "ar-io-network"},
	TokenEthereum: {Exponent: 18, OracleID: "ethereum"},
	TokenBaseEth:  {Exponent: 18, OracleID: "ethereum"},
	TokenSolana:   {Exponent: 9, OracleID: "solana"},
	TokenKyve:     {Exponent: 6, OracleID: "kyve-network"},
	TokenMatic:    {Exponent: 18, OracleID: "matic-network"},
	TokenPol:      {Exponent: 18, OracleID: "polygon-ecosystem-token"},
}

// ParseToken normalises and validates a token name.
func ParseToken(s string) (Token, error) {
	t := Token(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := tokens[t]; !ok {
		return "", ErrUnsupportedToken(s)
	}
	return t, nil
}

// Info returns the token's denomination details.
func (t Token) Info() TokenInfo { return tokens[t] }

// SupportedTokens returns all token names in sorted order.
func SupportedTokens() []Token {
	out := make([]Token, 0, len(tokens))
	for t := range tokens {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// OracleIDs returns the distinct upstream ids for all tokens, sorted.
func OracleIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, info := range tokens {
		if !seen[info.OracleID] {
			seen[info.OracleID] = true
			ids = append(ids, info.OracleID)
		}
	}
	sort.Strings(ids)
	return ids
}

// FeeMode selects how the inclusive infrastructure fee applies to a crypto quote.
type FeeMode string

const (
	FeeModeNone     FeeMode = "none"
	FeeModeInvert   FeeMode = "invert"
	FeeModeStandard FeeMode = "standard"
)

// ParseFeeMode validates a fee mode; empty means standard.
func ParseFeeMode(s string) (FeeMode, bool) {
	switch FeeMode(s) {
	case "", FeeModeStandard:
		return FeeModeStandard, true
	case FeeModeInvert:
		return FeeModeInvert, true
	case FeeModeNone:
		return FeeModeNone, true
	default:
		return "", false
	}
}
