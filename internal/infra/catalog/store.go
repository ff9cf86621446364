// Package catalog stores adjustment definitions in an embedded bolt database.
//
// Two buckets:
//
//	adjustments  catalog id → JSON-encoded domain.Adjustment
//	promo_codes  normalized promo code → catalog id
//
// Promo-code use counters are incremented inside a single bolt write
// transaction, so a capped code can never be redeemed past MaxUses.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	bolt "github.com/boltdb/bolt"

	"github.com/tutu-network/credits/internal/domain"
)

var (
	adjustmentsBucket = []byte("adjustments")
	promoCodesBucket  = []byte("promo_codes")
)

// Store is a bolt-backed domain.AdjustmentCatalog.
type Store struct {
	db  *bolt.DB
	now func() time.Time
}

var _ domain.AdjustmentCatalog = (*Store)(nil)

// New opens (or creates) the catalog database at path.
func New(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{adjustmentsBucket, promoCodesBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init catalog buckets: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close releases the database file lock.
func (s *Store) Close() error {
	return s.db.Close()
}

// ─── Writes ─────────────────────────────────────────────────────────────────

// Put validates and upserts an adjustment. An existing record keeps its use
// counter so re-importing a catalog file never resets redemptions.
func (s *Store) Put(_ context.Context, a domain.Adjustment) (domain.Adjustment, error) {
	a.PromoCode = domain.NormalizedPromoCode(a.PromoCode)
	if err := a.Validate(); err != nil {
		return domain.Adjustment{}, err
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		adjs := tx.Bucket(adjustmentsBucket)
		codes := tx.Bucket(promoCodesBucket)

		if raw := adjs.Get([]byte(a.CatalogID)); raw != nil {
			var prev domain.Adjustment
			if err := json.Unmarshal(raw, &prev); err != nil {
				return err
			}
			if prev.Uses > a.Uses {
				a.Uses = prev.Uses
			}
			if prev.PromoCode != "" && prev.PromoCode != a.PromoCode {
				if err := codes.Delete([]byte(prev.PromoCode)); err != nil {
					return err
				}
			}
		}

		if a.PromoCode != "" {
			if owner := codes.Get([]byte(a.PromoCode)); owner != nil && string(owner) != a.CatalogID {
				return domain.NewError(domain.KindInvalidAdjustment,
					fmt.Sprintf("promo code %q already belongs to %q", a.PromoCode, owner), "code", a.PromoCode)
			}
			if err := codes.Put([]byte(a.PromoCode), []byte(a.CatalogID)); err != nil {
				return err
			}
		}

		data, err := json.Marshal(a)
		if err != nil {
			return err
		}
		return adjs.Put([]byte(a.CatalogID), data)
	})
	if err != nil {
		return domain.Adjustment{}, err
	}
	return a, nil
}

// Delete removes an adjustment and its promo-code index entry.
// Deleting a missing id is a no-op.
func (s *Store) Delete(_ context.Context, catalogID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		adjs := tx.Bucket(adjustmentsBucket)
		raw := adjs.Get([]byte(catalogID))
		if raw == nil {
			return nil
		}
		var a domain.Adjustment
		if err := json.Unmarshal(raw, &a); err != nil {
			return err
		}
		if a.PromoCode != "" {
			if err := tx.Bucket(promoCodesBucket).Delete([]byte(a.PromoCode)); err != nil {
				return err
			}
		}
		return adjs.Delete([]byte(catalogID))
	})
}

// IncrementPromoCodeUses records one redemption. It fails with
// PromoCodeExceedsMaxUses instead of passing the cap.
func (s *Store) IncrementPromoCodeUses(_ context.Context, code string) error {
	code = domain.NormalizedPromoCode(code)
	return s.db.Update(func(tx *bolt.Tx) error {
		a, err := promoByCode(tx, code)
		if err != nil {
			return err
		}
		if a.UsesExhausted() {
			return domain.ErrPromoCodeExceedsMaxUses(code)
		}
		a.Uses++
		data, err := json.Marshal(a)
		if err != nil {
			return err
		}
		return tx.Bucket(adjustmentsBucket).Put([]byte(a.CatalogID), data)
	})
}

// ─── Reads ──────────────────────────────────────────────────────────────────

// Get returns one adjustment by catalog id.
func (s *Store) Get(_ context.Context, catalogID string) (domain.Adjustment, bool, error) {
	var (
		a     domain.Adjustment
		found bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(adjustmentsBucket).Get([]byte(catalogID))
		if raw == nil {
			return nil
		}
		found = true
		return json.Unmarshal(raw, &a)
	})
	return a, found, err
}

// List returns every adjustment ordered by kind, then priority.
func (s *Store) List(_ context.Context) ([]domain.Adjustment, error) {
	items, err := s.all(func(domain.Adjustment) bool { return true })
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Kind != items[j].Kind {
			return items[i].Kind < items[j].Kind
		}
		return items[i].Priority < items[j].Priority
	})
	return items, nil
}

// ActiveUploadAdjustments returns upload adjustments whose window contains
// now, ascending by priority with ties broken by catalog id. Adjustments are
// not targeted per payer, so every payer sees the same list.
func (s *Store) ActiveUploadAdjustments(_ context.Context, _ string) ([]domain.Adjustment, error) {
	now := s.now()
	items, err := s.all(func(a domain.Adjustment) bool {
		return a.Kind == domain.AdjustUpload && a.ActiveAt(now)
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Priority != items[j].Priority {
			return items[i].Priority < items[j].Priority
		}
		return items[i].CatalogID < items[j].CatalogID
	})
	return items, nil
}

// ActivePromoCode resolves a redeemable promo code.
func (s *Store) ActivePromoCode(_ context.Context, code string) (domain.Adjustment, error) {
	code = domain.NormalizedPromoCode(code)
	var a domain.Adjustment
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		a, err = promoByCode(tx, code)
		return err
	})
	if err != nil {
		return domain.Adjustment{}, err
	}
	if !a.ActiveAt(s.now()) {
		return domain.Adjustment{}, domain.ErrPromoCodeExpired(code)
	}
	if a.UsesExhausted() {
		return domain.Adjustment{}, domain.ErrPromoCodeExceedsMaxUses(code)
	}
	return a, nil
}

func (s *Store) all(keep func(domain.Adjustment) bool) ([]domain.Adjustment, error) {
	items := []domain.Adjustment{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(adjustmentsBucket).ForEach(func(_, v []byte) error {
			var a domain.Adjustment
			if err := json.Unmarshal(v, &a); err != nil {
				return err
			}
			if keep(a) {
				items = append(items, a)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("scan catalog: %w", err)
	}
	return items, nil
}

func promoByCode(tx *bolt.Tx, code string) (domain.Adjustment, error) {
	id := tx.Bucket(promoCodesBucket).Get([]byte(code))
	if id == nil {
		return domain.Adjustment{}, domain.ErrPromoCodeNotFound(code)
	}
	raw := tx.Bucket(adjustmentsBucket).Get(id)
	if raw == nil {
		return domain.Adjustment{}, domain.ErrPromoCodeNotFound(code)
	}
	var a domain.Adjustment
	if err := json.Unmarshal(raw, &a); err != nil {
		return domain.Adjustment{}, err
	}
	return a, nil
}
