package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Item is one cart line. Two lines of the same menu item are distinct only
// when they carry different special instructions.
type Item struct {
	ID                  uuid.UUID       `json:"id"`
	MenuItemID          string          `json:"menuItemId"`
	Name                string          `json:"name"`
	UnitPrice           decimal.Decimal `json:"price"`
	Quantity            int             `json:"quantity"`
	SpecialInstructions string          `json:"specialInstructions,omitempty"`
	RestaurantID        string          `json:"restaurantId"`
}

// LineTotal returns unit price times quantity.
func (i Item) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// customizationKey identifies mergeable lines.
func (i Item) customizationKey() string {
	return i.MenuItemID + "\x00" + i.SpecialInstructions
}

// Snapshot is an immutable deep copy of the cart contents, captured when an
// operation opens and used only for rollback.
type Snapshot struct {
	RestaurantID string `json:"restaurantId"`
	Items        []Item `json:"items"`
}

// Find returns the snapshotted state of the given line.
func (s Snapshot) Find(itemID uuid.UUID) (Item, bool) {
	for _, item := range s.Items {
		if item.ID == itemID {
			return item, true
		}
	}
	return Item{}, false
}
