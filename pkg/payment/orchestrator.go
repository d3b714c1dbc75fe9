package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"ideamint/pkg/domain"
	"ideamint/pkg/notify"
	"ideamint/pkg/store"
)

var (
	// ErrDeclined indicates the gateway reported a failed confirmation. No
	// purchase row exists when this is returned.
	ErrDeclined = errors.New("payment declined")
	// ErrInactiveProduct indicates the product is withdrawn from sale.
	ErrInactiveProduct = errors.New("product not for sale")
	// ErrIntentMismatch indicates the confirmed intent was created for a
	// different product or amount than the one being purchased.
	ErrIntentMismatch = errors.New("confirmation does not match the payment intent")
)

// Currency is the single currency unit the marketplace trades in.
const Currency = "usd"

// Orchestrator runs the two-phase purchase flow against the gateway and
// grants access only after a confirmed payment.
type Orchestrator struct {
	store   store.Store
	gateway Gateway
	events  notify.Publisher
}

// NewOrchestrator wires the purchase flow.
func NewOrchestrator(st store.Store, gateway Gateway, events notify.Publisher) *Orchestrator {
	if events == nil {
		events = notify.NopPublisher{}
	}
	return &Orchestrator{store: st, gateway: gateway, events: events}
}

// CreateIntent starts a purchase for the product's current price. Gateway
// failures surface to the caller unretried; resubmission is a deliberate
// caller decision because amounts must not be double-submitted blindly.
func (o *Orchestrator) CreateIntent(ctx context.Context, buyer domain.Actor, productID string) (string, error) {
	product, err := o.sellableProduct(productID)
	if err != nil {
		return "", err
	}
	secret, err := o.gateway.CreateIntent(ctx, product.PriceCents, Currency, product.ID)
	if err != nil {
		return "", err
	}
	return secret, nil
}

// Confirm settles the intent. On success it creates exactly one purchase row
// with the product's price at this moment, which never changes afterwards.
// On failure nothing is written and the gateway's reason is reported. The
// settled intent must name the same product and amount being purchased;
// citing another product's secret fails with ErrIntentMismatch and grants
// nothing.
func (o *Orchestrator) Confirm(ctx context.Context, buyer domain.Actor, productID, clientSecret, paymentMethod string) (domain.Purchase, error) {
	product, err := o.sellableProduct(productID)
	if err != nil {
		return domain.Purchase{}, err
	}
	result, err := o.gateway.Confirm(ctx, clientSecret, paymentMethod)
	if err != nil {
		return domain.Purchase{}, err
	}
	if result.Status != StatusSucceeded {
		reason := result.Reason
		if reason == "" {
			reason = result.Status
		}
		return domain.Purchase{}, fmt.Errorf("%w: %s", ErrDeclined, reason)
	}
	if result.ProductID != product.ID {
		return domain.Purchase{}, fmt.Errorf("%w: intent is for product %q", ErrIntentMismatch, result.ProductID)
	}
	if result.AmountCents != product.PriceCents {
		return domain.Purchase{}, fmt.Errorf("%w: intent amount %d, current price %d", ErrIntentMismatch, result.AmountCents, product.PriceCents)
	}
	purchase := domain.Purchase{
		ID:         uuid.NewString(),
		BuyerID:    buyer.ID,
		ProductID:  product.ID,
		PriceCents: product.PriceCents,
		CreatedAt:  time.Now().UTC(),
	}
	if err := o.store.CreatePurchase(purchase); err != nil {
		return domain.Purchase{}, fmt.Errorf("record purchase: %w", err)
	}
	if err := o.events.Publish(ctx, notify.KindPurchases); err != nil {
		slog.Warn("purchase change event not delivered", "err", err)
	}
	return purchase, nil
}

// List returns the buyer's purchases, newest first.
func (o *Orchestrator) List(buyer domain.Actor) ([]domain.Purchase, error) {
	return o.store.ListPurchasesByBuyer(buyer.ID)
}

func (o *Orchestrator) sellableProduct(productID string) (domain.Product, error) {
	product, ok, err := o.store.GetProduct(productID)
	if err != nil {
		return domain.Product{}, fmt.Errorf("load product: %w", err)
	}
	if !ok {
		return domain.Product{}, store.ErrNotFound
	}
	if !product.IsActive {
		return domain.Product{}, ErrInactiveProduct
	}
	return product, nil
}
