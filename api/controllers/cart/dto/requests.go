package dto

import "github.com/shopspring/decimal"

// AddItemRequest is the payload for adding a line to the cart.
type AddItemRequest struct {
	MenuItemID          string          `json:"menuItemId" validate:"required"`
	Name                string          `json:"name" validate:"required"`
	Price               decimal.Decimal `json:"price"`
	Quantity            int             `json:"quantity" validate:"required,min=1"`
	SpecialInstructions string          `json:"specialInstructions,omitempty" validate:"max=500"`
	RestaurantID        string          `json:"restaurantId" validate:"required"`
}

// UpdateQuantityRequest sets a line quantity; zero removes the line.
type UpdateQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required,min=0"`
}
