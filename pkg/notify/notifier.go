// Package notify carries row-level change signals. Subscribers get an
// at-least-once "something changed" nudge per entity kind and are expected to
// re-read; payloads carry no further meaning.
package notify

import "context"

// Entity kinds whose changes are published.
const (
	KindProducts     = "ai_products"
	KindMintRequests = "nft_mint_requests"
	KindPurchases    = "purchases"
)

// Publisher emits a change signal for an entity kind.
type Publisher interface {
	Publish(ctx context.Context, kind string) error
}

// Subscriber delivers change signals for an entity kind. The channel closes
// when ctx is done. Signals may be coalesced; they only ever mean "re-read".
type Subscriber interface {
	Subscribe(ctx context.Context, kind string) (<-chan struct{}, error)
}

// NopPublisher discards all signals. Used by tests and offline tools.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string) error { return nil }
