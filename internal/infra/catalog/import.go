package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"

	"github.com/tutu-network/credits/internal/domain"
)

// ─── TOML Import ────────────────────────────────────────────────────────────
// Administrators manage the catalog with files like:
//
//	[[adjustment]]
//	catalog_id  = "launch-promo"
//	kind        = "payment_promo"
//	name        = "Launch promo"
//	operator    = "multiply"
//	magnitude   = "0.2"
//	exclusivity = "exclusive"
//	promo_code  = "LAUNCH20"
//	max_uses    = 100
//	start_date  = 2026-01-01T00:00:00Z
//
// Magnitudes and amounts are strings so no precision is lost to floats.

type fileThreshold struct {
	Unit       string `toml:"unit"`
	Comparator string `toml:"comparator"`
	Value      string `toml:"value"`
}

type fileAdjustment struct {
	CatalogID            string         `toml:"catalog_id"`
	Kind                 string         `toml:"kind"`
	Name                 string         `toml:"name"`
	Description          string         `toml:"description"`
	Operator             string         `toml:"operator"`
	Magnitude            string         `toml:"magnitude"`
	Priority             int            `toml:"priority"`
	Exclusivity          string         `toml:"exclusivity"`
	PromoCode            string         `toml:"promo_code"`
	Threshold            *fileThreshold `toml:"threshold"`
	MaxDiscount          string         `toml:"max_discount"`
	MinimumPaymentAmount int64          `toml:"minimum_payment_amount"`
	MaxUses              int            `toml:"max_uses"`
	TargetUserGroup      string         `toml:"target_user_group"`
	StartDate            time.Time      `toml:"start_date"`
	EndDate              *time.Time     `toml:"end_date"`
}

type file struct {
	Adjustments []fileAdjustment `toml:"adjustment"`
}

// ParseFile decodes and validates every adjustment in a TOML catalog file.
// A missing start date means "active from now".
func ParseFile(path string, now time.Time) ([]domain.Adjustment, error) {
	var f file
	md, err := toml.DecodeFile(path, &f)
	if err != nil {
		return nil, fmt.Errorf("decode catalog file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("catalog file %s: unknown keys %v", path, undecoded)
	}

	out := make([]domain.Adjustment, 0, len(f.Adjustments))
	for i, fa := range f.Adjustments {
		a, err := fa.toDomain(now)
		if err != nil {
			return nil, fmt.Errorf("adjustment #%d (%s): %w", i+1, fa.CatalogID, err)
		}
		if err := a.Validate(); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// Import upserts every adjustment from a TOML file and returns what was stored.
func (s *Store) Import(ctx context.Context, path string) ([]domain.Adjustment, error) {
	adjs, err := ParseFile(path, s.now())
	if err != nil {
		return nil, err
	}
	stored := make([]domain.Adjustment, 0, len(adjs))
	for _, a := range adjs {
		saved, err := s.Put(ctx, a)
		if err != nil {
			return stored, err
		}
		stored = append(stored, saved)
	}
	return stored, nil
}

func (fa fileAdjustment) toDomain(now time.Time) (domain.Adjustment, error) {
	magnitude, err := decimal.NewFromString(fa.Magnitude)
	if err != nil {
		return domain.Adjustment{}, fmt.Errorf("magnitude %q: %w", fa.Magnitude, err)
	}
	a := domain.Adjustment{
		CatalogID:            fa.CatalogID,
		Kind:                 domain.AdjustmentKind(fa.Kind),
		Name:                 fa.Name,
		Description:          fa.Description,
		Operator:             domain.Operator(fa.Operator),
		Magnitude:            magnitude,
		Priority:             fa.Priority,
		Exclusivity:          domain.Exclusivity(fa.Exclusivity),
		PromoCode:            domain.NormalizedPromoCode(fa.PromoCode),
		MinimumPaymentAmount: fa.MinimumPaymentAmount,
		MaxUses:              fa.MaxUses,
		TargetUserGroup:      domain.UserGroup(fa.TargetUserGroup),
		StartDate:            fa.StartDate,
		EndDate:              fa.EndDate,
	}
	if a.StartDate.IsZero() {
		a.StartDate = now
	}
	if a.Exclusivity == "" {
		a.Exclusivity = domain.Inclusive
		if a.Kind == domain.AdjustPaymentPromo {
			a.Exclusivity = domain.Exclusive
		}
	}
	if fa.Threshold != nil {
		v, err := decimal.NewFromString(fa.Threshold.Value)
		if err != nil {
			return domain.Adjustment{}, fmt.Errorf("threshold value %q: %w", fa.Threshold.Value, err)
		}
		a.Threshold = &domain.Threshold{
			Unit:       domain.ThresholdUnit(fa.Threshold.Unit),
			Comparator: domain.Comparator(fa.Threshold.Comparator),
			Value:      v,
		}
	}
	if fa.MaxDiscount != "" {
		v, err := decimal.NewFromString(fa.MaxDiscount)
		if err != nil {
			return domain.Adjustment{}, fmt.Errorf("max discount %q: %w", fa.MaxDiscount, err)
		}
		a.MaxDiscountAmount = &v
	}
	return a, nil
}
