package checkout

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/deliverly/checkout-core/internal/cart"
	"github.com/deliverly/checkout-core/internal/oplog"
	"github.com/deliverly/checkout-core/internal/pricing"
	pkgerrors "github.com/deliverly/checkout-core/pkg/errors"
	"github.com/deliverly/checkout-core/pkg/logger"
	"github.com/deliverly/checkout-core/pkg/metrics"
	"github.com/deliverly/checkout-core/pkg/types"
)

// Mutation describes one optimistic cart change sent out for confirmation.
type Mutation struct {
	OperationID uint64
	Type        oplog.Type
	ItemID      uuid.UUID
	MenuItemID  string
	Name        string
	Quantity    int
}

// Confirmer acknowledges an optimistic mutation with the remote cart service.
type Confirmer interface {
	Confirm(ctx context.Context, m Mutation) error
}

// Submitter places the settled cart as an order.
type Submitter interface {
	Submit(ctx context.Context, submission types.OrderSubmission) (*types.OrderConfirmation, error)
}

// Notifier surfaces rollback messages to the user.
type Notifier interface {
	Notify(ctx context.Context, message string)
}

// latencyConfirmer acknowledges every mutation after a fixed delay, standing
// in when no remote cart service is configured.
type latencyConfirmer struct {
	latency time.Duration
}

func (c latencyConfirmer) Confirm(ctx context.Context, _ Mutation) error {
	select {
	case <-time.After(c.latency):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AddItemInput is the user-facing payload for adding a line to the cart.
type AddItemInput struct {
	MenuItemID          string
	Name                string
	UnitPrice           decimal.Decimal
	Quantity            int
	SpecialInstructions string
	RestaurantID        string
}

// ItemView is a cart line annotated with its settling state.
type ItemView struct {
	cart.Item
	Updating bool `json:"updating"`
}

// CartView is the read model the UI renders from.
type CartView struct {
	Items          []ItemView              `json:"items"`
	RestaurantID   string                  `json:"restaurantId,omitempty"`
	TotalItems     int                     `json:"totalItems"`
	Subtotal       decimal.Decimal         `json:"subtotal"`
	Tip            decimal.Decimal         `json:"tip"`
	PromoCode      string                  `json:"promoCode,omitempty"`
	LoyaltyPoints  int                     `json:"loyaltyPoints"`
	IsInsured      bool                    `json:"isInsured"`
	ScheduledFor   *time.Time              `json:"scheduledFor,omitempty"`
	Pricing        *types.PricingBreakdown `json:"pricing,omitempty"`
	PricingPending bool                    `json:"pricingPending"`
	PricingError   string                  `json:"pricingError,omitempty"`
	Settled        bool                    `json:"settled"`
}

// Options configures the coordinator.
type Options struct {
	Reconciler *pricing.Reconciler
	Confirmer  Confirmer
	Submitter  Submitter
	Notifier   Notifier
	Repo       *cart.Repository
	Logger     *logger.Logger
	Metrics    *metrics.CartMetrics

	ReplaceOnRestaurantConflict bool
	ConfirmLatency              time.Duration
}

// Coordinator is the single entry point for cart mutations. Every access to
// the store and the operation log runs under one mutex, so mutations apply in
// call order and confirmation callbacks re-enter through the same gate. This
// is what makes the lock-free store and log safe.
type Coordinator struct {
	store      *cart.Store
	log        *oplog.Log
	reconciler *pricing.Reconciler
	confirmer  Confirmer
	submitter  Submitter
	notifier   Notifier
	repo       *cart.Repository
	logg       *logger.Logger
	metrics    *metrics.CartMetrics

	replaceOnConflict bool

	mu sync.Mutex

	tip           decimal.Decimal
	promoCode     string
	loyaltyPoints int
	isInsured     bool
	scheduledFor  *time.Time
	city          string
	distanceKm    float64
	paymentMethod string
	notes         string
}

// NewCoordinator wires the mutation engine together.
func NewCoordinator(opts Options) (*Coordinator, error) {
	if opts.Reconciler == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "coordinator requires a pricing reconciler")
	}

	confirmer := opts.Confirmer
	if confirmer == nil {
		latency := opts.ConfirmLatency
		if latency <= 0 {
			latency = 150 * time.Millisecond
		}
		confirmer = latencyConfirmer{latency: latency}
	}

	store := cart.NewStore()
	log, err := oplog.NewLog(store)
	if err != nil {
		return nil, err
	}

	return &Coordinator{
		store:             store,
		log:               log,
		reconciler:        opts.Reconciler,
		confirmer:         confirmer,
		submitter:         opts.Submitter,
		notifier:          opts.Notifier,
		repo:              opts.Repo,
		logg:              opts.Logger,
		metrics:           opts.Metrics,
		replaceOnConflict: opts.ReplaceOnRestaurantConflict,
		tip:               decimal.Zero,
	}, nil
}

// LoadPersisted restores the cart saved by a previous session and prices it.
func (c *Coordinator) LoadPersisted(ctx context.Context) error {
	if c.repo == nil {
		return nil
	}
	snapshot, found, err := c.repo.Load(ctx)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	c.mu.Lock()
	c.store.Restore(snapshot)
	c.scheduleRecalcLocked(ctx)
	c.mu.Unlock()
	return nil
}

// AddItem optimistically adds the item and sends it out for confirmation. The
// returned line reflects the optimistic state, merged quantities included.
func (c *Coordinator) AddItem(ctx context.Context, input AddItemInput) (cart.Item, error) {
	item := cart.Item{
		ID:                  uuid.New(),
		MenuItemID:          input.MenuItemID,
		Name:                input.Name,
		UnitPrice:           input.UnitPrice,
		Quantity:            input.Quantity,
		SpecialInstructions: input.SpecialInstructions,
		RestaurantID:        input.RestaurantID,
	}

	c.mu.Lock()

	targetID := item.ID
	if existing, ok := c.store.FindLine(input.MenuItemID, input.SpecialInstructions); ok && c.store.RestaurantID() == input.RestaurantID {
		targetID = existing.ID
	}

	replacing := c.replaceOnConflict && !c.store.IsEmpty() && c.store.RestaurantID() != input.RestaurantID

	var opID uint64
	if replacing {
		opID = c.log.BeginReplace(targetID)
	} else {
		opID = c.log.Begin(oplog.TypeAdd, targetID)
	}

	applied, err := c.store.AddItem(item, replacing)
	if err != nil {
		c.log.Abort(opID)
		c.mu.Unlock()
		return cart.Item{}, err
	}

	c.scheduleRecalcLocked(ctx)
	c.mu.Unlock()

	go c.confirm(context.WithoutCancel(ctx), opID, Mutation{
		OperationID: opID,
		Type:        oplog.TypeAdd,
		ItemID:      applied.ID,
		MenuItemID:  applied.MenuItemID,
		Name:        applied.Name,
		Quantity:    applied.Quantity,
	})
	return applied, nil
}

// UpdateQuantity optimistically sets the line quantity. Zero or negative
// quantities remove the line.
func (c *Coordinator) UpdateQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error {
	c.mu.Lock()

	current, ok := c.store.Get(itemID)
	if !ok {
		c.mu.Unlock()
		return pkgerrors.New(pkgerrors.CodeItemNotFound, "cart item not found").
			WithDetails(map[string]any{"item_id": itemID.String()})
	}

	opID := c.log.Begin(oplog.TypeUpdate, itemID)
	if err := c.store.UpdateQuantity(itemID, quantity); err != nil {
		c.log.Abort(opID)
		c.mu.Unlock()
		return err
	}

	c.scheduleRecalcLocked(ctx)
	c.mu.Unlock()

	go c.confirm(context.WithoutCancel(ctx), opID, Mutation{
		OperationID: opID,
		Type:        oplog.TypeUpdate,
		ItemID:      itemID,
		MenuItemID:  current.MenuItemID,
		Name:        current.Name,
		Quantity:    quantity,
	})
	return nil
}

// RemoveItem optimistically drops the line. Removing an absent line is a
// no-op, not an error.
func (c *Coordinator) RemoveItem(ctx context.Context, itemID uuid.UUID) error {
	c.mu.Lock()

	current, ok := c.store.Get(itemID)
	if !ok {
		c.mu.Unlock()
		return nil
	}

	opID := c.log.Begin(oplog.TypeRemove, itemID)
	c.store.RemoveItem(itemID)
	c.scheduleRecalcLocked(ctx)
	c.mu.Unlock()

	go c.confirm(context.WithoutCancel(ctx), opID, Mutation{
		OperationID: opID,
		Type:        oplog.TypeRemove,
		ItemID:      itemID,
		MenuItemID:  current.MenuItemID,
		Name:        current.Name,
	})
	return nil
}

// Clear optimistically empties the cart.
func (c *Coordinator) Clear(ctx context.Context) error {
	c.mu.Lock()

	if c.store.IsEmpty() {
		c.mu.Unlock()
		return nil
	}

	opID := c.log.Begin(oplog.TypeClear, uuid.Nil)
	c.store.Clear()
	c.scheduleRecalcLocked(ctx)
	c.mu.Unlock()

	go c.confirm(context.WithoutCancel(ctx), opID, Mutation{OperationID: opID, Type: oplog.TypeClear})
	return nil
}

// SetTip updates the tip and reprices.
func (c *Coordinator) SetTip(ctx context.Context, tip decimal.Decimal) error {
	if tip.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "tip cannot be negative")
	}
	c.mu.Lock()
	c.tip = tip
	c.scheduleRecalcLocked(ctx)
	c.mu.Unlock()
	return nil
}

// SetPromoCode updates the promo code and reprices. An empty code clears it.
func (c *Coordinator) SetPromoCode(ctx context.Context, code string) {
	c.mu.Lock()
	c.promoCode = strings.TrimSpace(code)
	c.scheduleRecalcLocked(ctx)
	c.mu.Unlock()
}

// SetLoyaltyPoints updates the points to redeem and reprices.
func (c *Coordinator) SetLoyaltyPoints(ctx context.Context, points int) error {
	if points < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "loyalty points cannot be negative")
	}
	c.mu.Lock()
	c.loyaltyPoints = points
	c.scheduleRecalcLocked(ctx)
	c.mu.Unlock()
	return nil
}

// SetInsured toggles parcel insurance and reprices.
func (c *Coordinator) SetInsured(ctx context.Context, insured bool) {
	c.mu.Lock()
	c.isInsured = insured
	c.scheduleRecalcLocked(ctx)
	c.mu.Unlock()
}

// SetScheduledFor sets a future delivery slot; nil reverts to immediate
// delivery. Scheduling does not affect pricing.
func (c *Coordinator) SetScheduledFor(_ context.Context, at *time.Time) error {
	if at != nil && !at.After(time.Now()) {
		return pkgerrors.New(pkgerrors.CodeValidation, "scheduled delivery time must be in the future")
	}
	c.mu.Lock()
	c.scheduledFor = at
	c.mu.Unlock()
	return nil
}

// SetDestination updates the delivery destination and reprices.
func (c *Coordinator) SetDestination(ctx context.Context, city string, distanceKm float64) error {
	if distanceKm < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "distance cannot be negative")
	}
	c.mu.Lock()
	c.city = strings.TrimSpace(city)
	c.distanceKm = distanceKm
	c.scheduleRecalcLocked(ctx)
	c.mu.Unlock()
	return nil
}

// SetPaymentMethod records the payment method for submission.
func (c *Coordinator) SetPaymentMethod(_ context.Context, method string) {
	c.mu.Lock()
	c.paymentMethod = strings.TrimSpace(method)
	c.mu.Unlock()
}

// SetNotes records free-form delivery notes for submission.
func (c *Coordinator) SetNotes(_ context.Context, notes string) {
	c.mu.Lock()
	c.notes = notes
	c.mu.Unlock()
}

// View renders the current read model.
func (c *Coordinator) View() CartView {
	c.mu.Lock()
	defer c.mu.Unlock()

	items := c.store.Items()
	views := make([]ItemView, 0, len(items))
	for _, item := range items {
		views = append(views, ItemView{Item: item, Updating: c.log.PendingFor(item.ID) > 0})
	}

	view := CartView{
		Items:          views,
		RestaurantID:   c.store.RestaurantID(),
		TotalItems:     c.store.TotalItemCount(),
		Subtotal:       c.store.TotalPrice(),
		Tip:            c.tip,
		PromoCode:      c.promoCode,
		LoyaltyPoints:  c.loyaltyPoints,
		IsInsured:      c.isInsured,
		ScheduledFor:   c.scheduledFor,
		PricingPending: c.reconciler.Busy(),
		Settled:        !c.log.HasPending(),
	}
	if breakdown, _, ok := c.reconciler.Latest(); ok {
		view.Pricing = &breakdown
	}
	if err := c.reconciler.Err(); err != nil {
		view.PricingError = err.Error()
	}
	return view
}

// Busy reports whether any mutation or recalculation is still settling.
func (c *Coordinator) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.log.HasPending() || c.reconciler.Busy()
}

// Submit places the order. Submission is refused until every mutation is
// confirmed and the displayed price matches the cart it was computed for.
func (c *Coordinator) Submit(ctx context.Context) (*types.OrderConfirmation, error) {
	c.mu.Lock()

	if c.submitter == nil {
		c.mu.Unlock()
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order submission is not configured")
	}
	if c.store.IsEmpty() {
		c.mu.Unlock()
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	if c.log.HasPending() {
		c.mu.Unlock()
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cart changes are still being confirmed")
	}
	if c.reconciler.Busy() {
		c.mu.Unlock()
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "pricing is being recalculated")
	}
	if err := c.reconciler.Err(); err != nil {
		c.mu.Unlock()
		return nil, err
	}

	breakdown, pricedFor, ok := c.reconciler.Latest()
	if !ok || !c.quoteMatchesLocked(pricedFor) {
		c.reconciler.Recalculate(context.WithoutCancel(ctx), c.quoteRequestLocked())
		c.mu.Unlock()
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "displayed price is out of date, recalculating")
	}

	items := c.store.Items()
	orderItems := make([]types.OrderItem, 0, len(items))
	for _, item := range items {
		orderItems = append(orderItems, types.OrderItem{
			ID:                  item.ID.String(),
			MenuItemID:          item.MenuItemID,
			Name:                item.Name,
			Price:               item.UnitPrice.String(),
			Quantity:            item.Quantity,
			SpecialInstructions: item.SpecialInstructions,
		})
	}
	submission := types.OrderSubmission{
		RestaurantID:  c.store.RestaurantID(),
		Items:         orderItems,
		Pricing:       breakdown,
		PaymentMethod: c.paymentMethod,
		City:          c.city,
		DistanceKm:    c.distanceKm,
		IsInsured:     c.isInsured,
		ScheduledFor:  c.scheduledFor,
		Notes:         c.notes,
	}
	c.mu.Unlock()

	confirmation, err := c.submitter.Submit(ctx, submission)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.store.Clear()
	c.scheduledFor = nil
	c.notes = ""
	c.mu.Unlock()

	if c.repo != nil {
		if clearErr := c.repo.Clear(ctx); clearErr != nil && c.logg != nil {
			c.logg.Error(ctx, "checkout.clear_persisted_cart_failed", clearErr)
		}
	}
	return confirmation, nil
}

// Close stops the debounce timer and persists the cart for the next session.
func (c *Coordinator) Close(ctx context.Context) error {
	c.reconciler.Stop()

	var err error
	if c.repo != nil {
		c.mu.Lock()
		snapshot := c.store.Snapshot()
		c.mu.Unlock()
		err = multierr.Append(err, c.repo.Save(ctx, snapshot))
	}
	return err
}

func (c *Coordinator) confirm(ctx context.Context, opID uint64, m Mutation) {
	err := c.confirmer.Confirm(ctx, m)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err == nil {
		if _, commitErr := c.log.Commit(opID); commitErr != nil {
			if c.logg != nil {
				c.logg.Error(ctx, "checkout.commit_failed", commitErr)
			}
			return
		}
		c.metrics.IncCommitted(string(m.Type))
		if c.logg != nil {
			c.logg.Info(c.logg.WithOperationID(ctx, opID), "checkout.mutation_committed")
		}
		c.persistLocked(ctx)
		return
	}

	op, outcome, rbErr := c.log.Rollback(opID)
	if rbErr != nil {
		if c.logg != nil {
			c.logg.Error(ctx, "checkout.rollback_failed", rbErr)
		}
		return
	}

	switch outcome {
	case oplog.RollbackSuperseded:
		// A later write for the same item already committed, so current state
		// stands. Surfaced as a conflict rather than silently swallowed.
		c.metrics.IncRollbackConflict()
		if c.logg != nil {
			c.logg.Warn(c.logg.WithOperationID(ctx, opID), "checkout.rollback_superseded")
		}
		c.notify(ctx, fmt.Sprintf("A newer change to %s already went through; keeping it.", c.mutationLabel(m)))
	case oplog.RollbackDeferred:
		c.metrics.IncRolledBack(string(op.Type))
		if c.logg != nil {
			c.logg.Warn(c.logg.WithOperationID(ctx, opID), "checkout.rollback_deferred")
		}
	default:
		c.metrics.IncRolledBack(string(op.Type))
		if c.logg != nil {
			c.logg.Warn(c.logg.WithOperationID(ctx, opID), "checkout.mutation_rolled_back")
		}
		c.notify(ctx, fmt.Sprintf("Couldn't update %s; your cart was restored.", c.mutationLabel(m)))
		c.scheduleRecalcLocked(ctx)
	}
	c.persistLocked(ctx)
}

func (c *Coordinator) mutationLabel(m Mutation) string {
	if m.Name != "" {
		return m.Name
	}
	return "your cart"
}

func (c *Coordinator) notify(ctx context.Context, message string) {
	if c.notifier == nil {
		return
	}
	c.notifier.Notify(ctx, message)
}

func (c *Coordinator) persistLocked(ctx context.Context) {
	if c.repo == nil {
		return
	}
	if err := c.repo.Save(ctx, c.store.Snapshot()); err != nil && c.logg != nil {
		c.logg.Error(ctx, "checkout.persist_cart_failed", err)
	}
}

func (c *Coordinator) quoteRequestLocked() types.QuoteRequest {
	return types.QuoteRequest{
		BaseAmount:    c.store.TotalPrice(),
		City:          c.city,
		DistanceKm:    c.distanceKm,
		IsInsured:     c.isInsured,
		Tip:           c.tip,
		LoyaltyPoints: c.loyaltyPoints,
		PromoCode:     c.promoCode,
	}
}

func (c *Coordinator) quoteMatchesLocked(pricedFor types.QuoteRequest) bool {
	current := c.quoteRequestLocked()
	return pricedFor.BaseAmount.Equal(current.BaseAmount) &&
		pricedFor.Tip.Equal(current.Tip) &&
		pricedFor.City == current.City &&
		pricedFor.DistanceKm == current.DistanceKm &&
		pricedFor.IsInsured == current.IsInsured &&
		pricedFor.LoyaltyPoints == current.LoyaltyPoints &&
		pricedFor.PromoCode == current.PromoCode
}

func (c *Coordinator) scheduleRecalcLocked(ctx context.Context) {
	// The debounce timer outlives the request that armed it.
	c.reconciler.Schedule(context.WithoutCancel(ctx), c.quoteRequestLocked())
}
