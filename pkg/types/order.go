package types

import "time"

// OrderItem mirrors a cart line in the order submission payload.
type OrderItem struct {
	ID                  string `json:"id"`
	MenuItemID          string `json:"menuItemId"`
	Name                string `json:"name"`
	Price               string `json:"price"`
	Quantity            int    `json:"quantity"`
	SpecialInstructions string `json:"specialInstructions,omitempty"`
}

// OrderSubmission is the payload posted to the order service once the cart
// has fully settled.
type OrderSubmission struct {
	RestaurantID  string           `json:"restaurantId"`
	Items         []OrderItem      `json:"items"`
	Pricing       PricingBreakdown `json:"pricing"`
	PaymentMethod string           `json:"paymentMethod"`
	City          string           `json:"city"`
	DistanceKm    float64          `json:"distanceKm"`
	IsInsured     bool             `json:"isInsured"`
	ScheduledFor  *time.Time       `json:"scheduledFor,omitempty"`
	Notes         string           `json:"notes,omitempty"`
}

// OrderConfirmation is the order service's acknowledgement.
type OrderConfirmation struct {
	OrderID            string `json:"orderId"`
	PaymentRedirectURL string `json:"paymentRedirectUrl,omitempty"`
}
