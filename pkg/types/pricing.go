package types

import "github.com/shopspring/decimal"

// QuoteRequest is the payload sent to the remote pricing function.
type QuoteRequest struct {
	BaseAmount    decimal.Decimal `json:"baseAmount"`
	City          string          `json:"city"`
	DistanceKm    float64         `json:"distanceKm"`
	IsInsured     bool            `json:"isInsured"`
	Tip           decimal.Decimal `json:"tip"`
	LoyaltyPoints int             `json:"loyaltyPoints"`
	PromoCode     string          `json:"promoCode,omitempty"`
}

// Discounts splits the applied reductions by source.
type Discounts struct {
	Promo   decimal.Decimal `json:"promo"`
	Loyalty decimal.Decimal `json:"loyalty"`
}

// PricingBreakdown is the authoritative total computed by the pricing
// service. A breakdown is only ever displayed together with the inputs that
// produced it.
type PricingBreakdown struct {
	ItemsSubtotal decimal.Decimal `json:"itemsSubtotal"`
	DeliveryFee   decimal.Decimal `json:"deliveryFee"`
	ServiceFee    decimal.Decimal `json:"serviceFee"`
	Tax           decimal.Decimal `json:"tax"`
	Tip           decimal.Decimal `json:"tip"`
	InsuranceFee  decimal.Decimal `json:"insuranceFee"`
	Discounts     Discounts       `json:"discounts"`
	FinalTotal    decimal.Decimal `json:"finalTotal"`
}
