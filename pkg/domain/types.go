package domain

import "time"

type MintStatus string

const (
	MintPending MintStatus = "pending"
	MintMinted  MintStatus = "minted"
	MintFailed  MintStatus = "failed"
)

// Terminal reports whether a mint request may no longer transition.
func (s MintStatus) Terminal() bool {
	return s == MintMinted || s == MintFailed
}

// Actor identifies the authenticated caller of a core operation. Core code
// never reads ambient session state; the actor is passed in explicitly.
type Actor struct {
	ID string `json:"id"`
}

// Draft is an immutable, versioned snapshot of a creator's written idea.
// A save always creates a new row; versions per owner only ever grow.
type Draft struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Version   int       `json:"version"`
	Title     string    `json:"title,omitempty"`
	Content   string    `json:"content"`
	Chapters  []string  `json:"chapters,omitempty"`
	WordCount int       `json:"wordCount"`
	CreatedAt time.Time `json:"createdAt"`
}

// AssetRef is a durable pointer to an uploaded binary. OwnerContext is an
// owner ID, a product ID, or "temp" for orphans awaiting attachment.
type AssetRef struct {
	Bucket       string `json:"bucket"`
	StorageKey   string `json:"storageKey"`
	PublicURL    string `json:"publicUrl"`
	OwnerContext string `json:"ownerContext"`
}

// Product is an AI-generated asset offered for sale. Withdrawn products are
// deactivated, never hard-deleted.
type Product struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"ownerId"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	ContentAsset AssetRef  `json:"contentAsset"`
	PreviewAsset AssetRef  `json:"previewAsset"`
	PriceCents   int64     `json:"priceCents"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// MintRequest tracks an attempt to register a product as a blockchain-backed
// collectible. TxnHash and MetadataURL are populated only when minted.
type MintRequest struct {
	ID          string     `json:"id"`
	ProductID   string     `json:"productId"`
	OwnerID     string     `json:"ownerId"`
	Status      MintStatus `json:"status"`
	TxnHash     string     `json:"txnHash,omitempty"`
	MetadataURL string     `json:"metadataUrl,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Purchase grants a buyer access to a product. PriceCents is captured at
// confirmation time and is immune to later price changes on the product.
type Purchase struct {
	ID         string    `json:"id"`
	BuyerID    string    `json:"buyerId"`
	ProductID  string    `json:"productId"`
	PriceCents int64     `json:"priceCents"`
	CreatedAt  time.Time `json:"createdAt"`
}
