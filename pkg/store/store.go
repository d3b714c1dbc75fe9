package store

import (
	"errors"

	"ideamint/pkg/domain"
)

var (
	// ErrNotFound indicates the targeted row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates a guarded update lost to a concurrent writer or
	// targeted a row in an incompatible state.
	ErrConflict = errors.New("state conflict")
	// ErrVersionExhausted indicates version assignment gave up after repeated
	// unique-constraint conflicts.
	ErrVersionExhausted = errors.New("draft version conflict retries exhausted")
)

// Store defines persistence for drafts, products, mint requests, and purchases.
type Store interface {
	// drafts
	// SaveDraft assigns the next version for the draft's owner and inserts an
	// immutable row. Implementations must guarantee that two concurrent saves
	// by the same owner never receive the same version.
	SaveDraft(d domain.Draft) (domain.Draft, error)
	ListDrafts(ownerID string) ([]domain.Draft, error)
	GetDraft(id string) (domain.Draft, bool, error)
	DeleteDraft(id string) error

	// products
	SaveProduct(p domain.Product) error
	GetProduct(id string) (domain.Product, bool, error)
	ListProductsByOwner(ownerID string) ([]domain.Product, error)
	DeactivateProduct(id string) error
	// ActiveTitleMatches returns titles of active products whose title equals
	// or starts with candidate, compared case-insensitively.
	ActiveTitleMatches(candidate string) ([]string, error)

	// mint requests
	CreateMintRequest(r domain.MintRequest) error
	GetMintRequest(id string) (domain.MintRequest, bool, error)
	ListMintRequestsByOwner(ownerID string) ([]domain.MintRequest, error)
	CountPendingMintRequests(productID string) (int, error)
	// CompleteMintRequest moves a pending request to a terminal status. It
	// returns ErrConflict when the request is already terminal and ErrNotFound
	// when it does not exist.
	CompleteMintRequest(id string, status domain.MintStatus, txnHash, metadataURL string) error

	// purchases
	CreatePurchase(p domain.Purchase) error
	ListPurchasesByBuyer(buyerID string) ([]domain.Purchase, error)
}
