package cart

import (
	"strings"

	pkgerrors "github.com/deliverly/checkout-core/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store is the authoritative in-memory cart. It carries no lock of its own:
// the mutation coordinator is its single writer and serializes every access,
// so each method runs to completion before the next is observable.
type Store struct {
	restaurantID string
	items        []Item
}

// NewStore returns an empty cart.
func NewStore() *Store {
	return &Store{}
}

// AddItem appends the item, or merges it into an existing line with the same
// menu item and special instructions. A non-empty cart bound to a different
// restaurant rejects the add unless replace is set, in which case the whole
// cart is swapped for the new item.
func (s *Store) AddItem(item Item, replace bool) (Item, error) {
	if err := validateItem(item); err != nil {
		return Item{}, err
	}

	if !s.IsEmpty() && s.restaurantID != item.RestaurantID {
		if !replace {
			return Item{}, pkgerrors.New(pkgerrors.CodeRestaurantConflict, "cart already holds items from another restaurant").
				WithDetails(map[string]any{"cart_restaurant_id": s.restaurantID, "item_restaurant_id": item.RestaurantID})
		}
		s.Clear()
	}

	for idx := range s.items {
		if s.items[idx].customizationKey() == item.customizationKey() {
			s.items[idx].Quantity += item.Quantity
			return s.items[idx], nil
		}
	}

	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	s.restaurantID = item.RestaurantID
	s.items = append(s.items, item)
	return item, nil
}

// UpdateQuantity sets the quantity for the line. Zero or negative quantities
// remove the line instead of storing a non-positive quantity.
func (s *Store) UpdateQuantity(itemID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		s.RemoveItem(itemID)
		return nil
	}
	for idx := range s.items {
		if s.items[idx].ID == itemID {
			s.items[idx].Quantity = quantity
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeItemNotFound, "cart item not found").
		WithDetails(map[string]any{"item_id": itemID.String()})
}

// RemoveItem drops the line. Removing an absent line is a no-op because a
// concurrent rollback may already have removed it.
func (s *Store) RemoveItem(itemID uuid.UUID) {
	for idx := range s.items {
		if s.items[idx].ID == itemID {
			s.items = append(s.items[:idx], s.items[idx+1:]...)
			break
		}
	}
	if len(s.items) == 0 {
		s.restaurantID = ""
	}
}

// Clear empties the cart unconditionally.
func (s *Store) Clear() {
	s.items = nil
	s.restaurantID = ""
}

// Get returns the current state of the line.
func (s *Store) Get(itemID uuid.UUID) (Item, bool) {
	for _, item := range s.items {
		if item.ID == itemID {
			return item, true
		}
	}
	return Item{}, false
}

// FindLine returns the line a new add of the given menu item would merge into.
func (s *Store) FindLine(menuItemID, specialInstructions string) (Item, bool) {
	probe := Item{MenuItemID: menuItemID, SpecialInstructions: specialInstructions}
	for _, item := range s.items {
		if item.customizationKey() == probe.customizationKey() {
			return item, true
		}
	}
	return Item{}, false
}

// RestoreLine puts a single line back to a prior state: in place when the
// line still exists, re-inserted when it was removed. Used only by rollback.
func (s *Store) RestoreLine(item Item) {
	for idx := range s.items {
		if s.items[idx].ID == item.ID {
			s.items[idx] = item
			return
		}
	}
	s.restaurantID = item.RestaurantID
	s.items = append(s.items, item)
}

// Snapshot returns a deep copy of the cart for rollback bookkeeping.
func (s *Store) Snapshot() Snapshot {
	items := make([]Item, len(s.items))
	copy(items, s.items)
	return Snapshot{RestaurantID: s.restaurantID, Items: items}
}

// Restore replaces the cart contents with a prior snapshot.
func (s *Store) Restore(snapshot Snapshot) {
	s.restaurantID = snapshot.RestaurantID
	s.items = make([]Item, len(snapshot.Items))
	copy(s.items, snapshot.Items)
	if len(s.items) == 0 {
		s.restaurantID = ""
	}
}

// Items returns a copy of the cart lines.
func (s *Store) Items() []Item {
	items := make([]Item, len(s.items))
	copy(items, s.items)
	return items
}

// RestaurantID returns the restaurant the cart is bound to, empty when the
// cart is empty.
func (s *Store) RestaurantID() string {
	return s.restaurantID
}

// IsEmpty reports whether the cart holds no lines.
func (s *Store) IsEmpty() bool {
	return len(s.items) == 0
}

// TotalPrice sums unit price times quantity over all lines.
func (s *Store) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, item := range s.items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// TotalItemCount sums quantities over all lines.
func (s *Store) TotalItemCount() int {
	count := 0
	for _, item := range s.items {
		count += item.Quantity
	}
	return count
}

func validateItem(item Item) error {
	if strings.TrimSpace(item.MenuItemID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "menu item id is required")
	}
	if strings.TrimSpace(item.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "item name is required")
	}
	if strings.TrimSpace(item.RestaurantID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "restaurant id is required")
	}
	if item.Quantity < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive")
	}
	if item.UnitPrice.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "item price cannot be negative")
	}
	return nil
}
