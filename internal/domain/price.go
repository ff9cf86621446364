package domain

import "github.com/shopspring/decimal"

// ─── Price Stages ───────────────────────────────────────────────────────────
// network → subtotal → final. Each transition returns a new Price; nothing
// mutates in place.

// Price carries a quote through its three stages.
type Price struct {
	network     Winc
	subtotal    decimal.Decimal
	final       Winc
	finalized   bool
	adjustments []AppliedAdjustment
}

// NewNetworkPrice starts a price at the raw oracle-derived cost.
func NewNetworkPrice(network Winc) Price {
	return Price{network: network, subtotal: network.Decimal()}
}

// Network is the raw oracle-derived cost.
func (p Price) Network() Winc { return p.network }

// Subtotal is the signed running total after adjustments.
func (p Price) Subtotal() decimal.Decimal { return p.subtotal }

// Adjustments returns the applied adjustments in order.
func (p Price) Adjustments() []AppliedAdjustment {
	out := make([]AppliedAdjustment, len(p.adjustments))
	copy(out, p.adjustments)
	return out
}

// Apply returns a new price with adj folded into the subtotal.
func (p Price) Apply(adj AppliedAdjustment) Price {
	next := Price{
		network:     p.network,
		subtotal:    p.subtotal.Add(adj.AdjustmentAmount),
		adjustments: make([]AppliedAdjustment, len(p.adjustments), len(p.adjustments)+1),
	}
	copy(next.adjustments, p.adjustments)
	next.adjustments = append(next.adjustments, adj)
	return next
}

// Finalize clamps the subtotal at zero.
func (p Price) Finalize() Price {
	next := p
	next.adjustments = p.Adjustments()
	next.final = FloorWinc(p.subtotal)
	next.finalized = true
	return next
}

// Final returns the clamped price. An unfinalized price is finalized on the fly.
func (p Price) Final() Winc {
	if !p.finalized {
		return FloorWinc(p.subtotal)
	}
	return p.final
}
