package order

import (
	"fmt"
	"math"

	"github.com/google/uuid"
)

// PricedCart is a cart resolved against the catalog.
type PricedCart struct {
	Items      []Item
	TotalCents int64
	Currency   string
	Skipped    []uuid.UUID
}

// maxLineQuantity matches the INTEGER column shop_order_items.quantity.
const maxLineQuantity = math.MaxInt32

// ValidateCart rejects carts that can never become an order.
func ValidateCart(entries []CartEntry) error {
	if len(entries) == 0 {
		return ErrEmptyCart
	}
	for i, e := range entries {
		if e.Quantity <= 0 || e.Quantity > maxLineQuantity {
			return fmt.Errorf("%w: entry %d has quantity %d", ErrInvalidQuantity, i, e.Quantity)
		}
		if e.ProductID == uuid.Nil {
			return fmt.Errorf("%w: entry %d", ErrMissingProduct, i)
		}
	}
	return nil
}

// PriceCart snapshots the current price of every entry. Entries whose product
// is missing or inactive are skipped; the same product may appear on several
// lines and is never merged.
func PriceCart(entries []CartEntry, products map[uuid.UUID]ProductSnapshot) (*PricedCart, error) {
	cart := &PricedCart{Items: make([]Item, 0, len(entries))}

	for _, e := range entries {
		p, ok := products[e.ProductID]
		if !ok || !p.IsActive {
			cart.Skipped = append(cart.Skipped, e.ProductID)
			continue
		}

		if cart.Currency == "" {
			cart.Currency = p.Currency
		} else if p.Currency != cart.Currency {
			return nil, fmt.Errorf("%w: %s and %s", ErrMixedCurrency, cart.Currency, p.Currency)
		}

		if p.PriceCents > 0 && int64(e.Quantity) > math.MaxInt64/p.PriceCents {
			return nil, fmt.Errorf("%w: line total overflows", ErrInvalidQuantity)
		}
		lineTotal := p.PriceCents * int64(e.Quantity)
		if cart.TotalCents > math.MaxInt64-lineTotal {
			return nil, fmt.Errorf("%w: order total overflows", ErrInvalidQuantity)
		}

		item := Item{
			ProductID:      uuid.NullUUID{UUID: p.ID, Valid: true},
			ProductName:    p.Name,
			Quantity:       e.Quantity,
			UnitPriceCents: p.PriceCents,
			TotalCents:     lineTotal,
		}
		if e.VariantID != nil {
			item.VariantID = uuid.NullUUID{UUID: *e.VariantID, Valid: true}
		}

		cart.Items = append(cart.Items, item)
		cart.TotalCents += lineTotal
	}

	if len(cart.Items) == 0 {
		return nil, ErrNoPurchasableItems
	}
	return cart, nil
}
