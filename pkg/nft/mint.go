// Package nft tracks mint requests from submission through blockchain
// confirmation and reads token state from the chain.
package nft

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
	// ErrInvalidTransition indicates a confirmation targeted a request that is
	// no longer pending. Duplicate deliveries land here.
	ErrInvalidTransition = errors.New("mint request not pending")
	// ErrForbidden indicates the actor does not own the product.
	ErrForbidden = errors.New("not the product owner")
)

// Confirmation is the payload delivered when a mint settles on chain.
type Confirmation struct {
	Status      domain.MintStatus `json:"status"`
	TxnHash     string            `json:"txnHash,omitempty"`
	MetadataURL string            `json:"metadataUrl,omitempty"`
}

// Service drives the mint request state machine: pending -> minted or
// pending -> failed, nothing leaves a terminal state.
type Service struct {
	store  store.Store
	events notify.Publisher
}

// NewService wires the state machine to persistence and change events.
func NewService(st store.Store, events notify.Publisher) *Service {
	if events == nil {
		events = notify.NopPublisher{}
	}
	return &Service{store: st, events: events}
}

// Create submits a new mint request for a product the actor owns. Multiple
// pending requests per product are allowed at the data layer; a second one is
// logged as suspicious since the expected usage is at most one.
func (s *Service) Create(ctx context.Context, actor domain.Actor, productID string) (domain.MintRequest, error) {
	product, ok, err := s.store.GetProduct(productID)
	if err != nil {
		return domain.MintRequest{}, fmt.Errorf("load product: %w", err)
	}
	if !ok {
		return domain.MintRequest{}, store.ErrNotFound
	}
	if product.OwnerID != actor.ID {
		return domain.MintRequest{}, ErrForbidden
	}
	if pending, err := s.store.CountPendingMintRequests(productID); err == nil && pending > 0 {
		slog.Warn("product already has a pending mint request", "product_id", productID, "pending", pending)
	}
	now := time.Now().UTC()
	req := domain.MintRequest{
		ID:        uuid.NewString(),
		ProductID: productID,
		OwnerID:   actor.ID,
		Status:    domain.MintPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateMintRequest(req); err != nil {
		return domain.MintRequest{}, fmt.Errorf("create mint request: %w", err)
	}
	s.publish(ctx)
	return req, nil
}

// Confirm applies a chain confirmation to a pending request. Confirming a
// request that already reached a terminal state fails with
// ErrInvalidTransition and changes nothing, which makes duplicate delivery
// safe.
func (s *Service) Confirm(ctx context.Context, id string, c Confirmation) (domain.MintRequest, error) {
	switch c.Status {
	case domain.MintMinted:
		if c.TxnHash == "" {
			return domain.MintRequest{}, fmt.Errorf("minted confirmation requires a transaction hash")
		}
	case domain.MintFailed:
		c.TxnHash = ""
		c.MetadataURL = ""
	default:
		return domain.MintRequest{}, fmt.Errorf("invalid confirmation status %q", c.Status)
	}
	err := s.store.CompleteMintRequest(id, c.Status, c.TxnHash, c.MetadataURL)
	if errors.Is(err, store.ErrConflict) {
		return domain.MintRequest{}, ErrInvalidTransition
	}
	if err != nil {
		return domain.MintRequest{}, err
	}
	s.publish(ctx)
	req, _, err := s.store.GetMintRequest(id)
	if err != nil {
		return domain.MintRequest{}, err
	}
	return req, nil
}

// List returns the actor's mint requests, newest first.
func (s *Service) List(actor domain.Actor) ([]domain.MintRequest, error) {
	return s.store.ListMintRequestsByOwner(actor.ID)
}

func (s *Service) publish(ctx context.Context) {
	if err := s.events.Publish(ctx, notify.KindMintRequests); err != nil {
		slog.Warn("mint change event not delivered", "err", err)
	}
}
