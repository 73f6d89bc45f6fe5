package checkout

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	checkoutdto "github.com/deliverly/checkout-core/api/controllers/checkout/dto"
	"github.com/deliverly/checkout-core/api/responses"
	"github.com/deliverly/checkout-core/api/validators"
	checkoutsvc "github.com/deliverly/checkout-core/internal/checkout"
	pkgerrors "github.com/deliverly/checkout-core/pkg/errors"
	"github.com/deliverly/checkout-core/pkg/logger"
	"github.com/deliverly/checkout-core/pkg/types"
)

// Service is the slice of the mutation coordinator the checkout handlers need.
type Service interface {
	SetTip(ctx context.Context, tip decimal.Decimal) error
	SetPromoCode(ctx context.Context, code string)
	SetLoyaltyPoints(ctx context.Context, points int) error
	SetInsured(ctx context.Context, insured bool)
	SetScheduledFor(ctx context.Context, at *time.Time) error
	SetDestination(ctx context.Context, city string, distanceKm float64) error
	SetPaymentMethod(ctx context.Context, method string)
	SetNotes(ctx context.Context, notes string)
	Submit(ctx context.Context) (*types.OrderConfirmation, error)
	View() checkoutsvc.CartView
}

// PricingView is the pricing slice of the cart read model.
type PricingView struct {
	Pricing        *types.PricingBreakdown `json:"pricing,omitempty"`
	PricingPending bool                    `json:"pricingPending"`
	PricingError   string                  `json:"pricingError,omitempty"`
}

// FetchPricing returns the currently displayed breakdown and its flags.
func FetchPricing(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		view := svc.View()
		responses.WriteSuccess(w, PricingView{
			Pricing:        view.Pricing,
			PricingPending: view.PricingPending,
			PricingError:   view.PricingError,
		})
	}
}

// SetTip updates the tip and triggers a debounced reprice.
func SetTip(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload checkoutdto.TipRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.SetTip(r.Context(), payload.Tip); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, svc.View())
	}
}

// SetPromoCode applies or clears the promo code.
func SetPromoCode(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload checkoutdto.PromoCodeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		svc.SetPromoCode(r.Context(), payload.Code)
		responses.WriteSuccess(w, svc.View())
	}
}

// SetLoyaltyPoints sets the points to redeem.
func SetLoyaltyPoints(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload checkoutdto.LoyaltyPointsRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.SetLoyaltyPoints(r.Context(), *payload.Points); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, svc.View())
	}
}

// SetInsurance toggles parcel insurance.
func SetInsurance(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload checkoutdto.InsuranceRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		svc.SetInsured(r.Context(), *payload.Insured)
		responses.WriteSuccess(w, svc.View())
	}
}

// SetSchedule books or clears a future delivery slot.
func SetSchedule(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload checkoutdto.ScheduleRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.SetScheduledFor(r.Context(), payload.ScheduledFor); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, svc.View())
	}
}

// SetDestination updates the delivery destination.
func SetDestination(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload checkoutdto.DestinationRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.SetDestination(r.Context(), payload.City, payload.DistanceKm); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, svc.View())
	}
}

// Submit places the order once the cart and its price have settled.
func Submit(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload checkoutdto.SubmitRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		svc.SetPaymentMethod(r.Context(), payload.PaymentMethod)
		svc.SetNotes(r.Context(), validators.SanitizeString(payload.Notes, 500))

		confirmation, err := svc.Submit(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, confirmation)
	}
}
