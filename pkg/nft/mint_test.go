package nft

import (
	"context"
	"errors"
	"testing"
	"time"

	"ideamint/pkg/domain"
	"ideamint/pkg/store"
)

func newServiceWithProduct(t *testing.T, owner string) (*Service, *store.MemoryStore, domain.Product) {
	t.Helper()
	st := store.NewMemoryStore()
	product := domain.Product{
		ID:        "prod-1",
		OwnerID:   owner,
		Title:     "Sleep Hacks",
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	if err := st.SaveProduct(product); err != nil {
		t.Fatalf("save product: %v", err)
	}
	return NewService(st, nil), st, product
}

func TestCreateStartsPending(t *testing.T) {
	svc, st, product := newServiceWithProduct(t, "owner-1")
	req, err := svc.Create(context.Background(), domain.Actor{ID: "owner-1"}, product.ID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if req.Status != domain.MintPending {
		t.Fatalf("status = %q, want pending", req.Status)
	}
	got, ok, _ := st.GetMintRequest(req.ID)
	if !ok || got.Status != domain.MintPending {
		t.Fatalf("stored request = %+v", got)
	}
}

func TestCreateRejectsNonOwner(t *testing.T) {
	svc, _, product := newServiceWithProduct(t, "owner-1")
	_, err := svc.Create(context.Background(), domain.Actor{ID: "someone-else"}, product.ID)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestCreateUnknownProduct(t *testing.T) {
	svc, _, _ := newServiceWithProduct(t, "owner-1")
	_, err := svc.Create(context.Background(), domain.Actor{ID: "owner-1"}, "no-such-product")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestConfirmMintedOnce(t *testing.T) {
	svc, _, product := newServiceWithProduct(t, "owner-1")
	req, err := svc.Create(context.Background(), domain.Actor{ID: "owner-1"}, product.ID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	confirmed, err := svc.Confirm(context.Background(), req.ID, Confirmation{
		Status:      domain.MintMinted,
		TxnHash:     "0xdeadbeef",
		MetadataURL: "ipfs://meta",
	})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed.Status != domain.MintMinted || confirmed.TxnHash != "0xdeadbeef" {
		t.Fatalf("confirmed = %+v", confirmed)
	}

	// duplicate delivery of the same confirmation
	_, err = svc.Confirm(context.Background(), req.ID, Confirmation{
		Status:  domain.MintMinted,
		TxnHash: "0xdeadbeef",
	})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestConfirmFailedAfterMintedRejected(t *testing.T) {
	svc, _, product := newServiceWithProduct(t, "owner-1")
	req, _ := svc.Create(context.Background(), domain.Actor{ID: "owner-1"}, product.ID)
	if _, err := svc.Confirm(context.Background(), req.ID, Confirmation{Status: domain.MintMinted, TxnHash: "0x1"}); err != nil {
		t.Fatalf("confirm minted: %v", err)
	}
	if _, err := svc.Confirm(context.Background(), req.ID, Confirmation{Status: domain.MintFailed}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestConfirmMintedRequiresTxnHash(t *testing.T) {
	svc, _, product := newServiceWithProduct(t, "owner-1")
	req, _ := svc.Create(context.Background(), domain.Actor{ID: "owner-1"}, product.ID)
	if _, err := svc.Confirm(context.Background(), req.ID, Confirmation{Status: domain.MintMinted}); err == nil {
		t.Fatalf("expected an error without a transaction hash")
	}
}

func TestConfirmFailedClearsChainFields(t *testing.T) {
	svc, st, product := newServiceWithProduct(t, "owner-1")
	req, _ := svc.Create(context.Background(), domain.Actor{ID: "owner-1"}, product.ID)
	if _, err := svc.Confirm(context.Background(), req.ID, Confirmation{
		Status:      domain.MintFailed,
		TxnHash:     "0xshould-be-dropped",
		MetadataURL: "ipfs://should-be-dropped",
	}); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	got, _, _ := st.GetMintRequest(req.ID)
	if got.Status != domain.MintFailed || got.TxnHash != "" || got.MetadataURL != "" {
		t.Fatalf("failed request kept chain fields: %+v", got)
	}
}

func TestConfirmRejectsBogusStatus(t *testing.T) {
	svc, _, product := newServiceWithProduct(t, "owner-1")
	req, _ := svc.Create(context.Background(), domain.Actor{ID: "owner-1"}, product.ID)
	if _, err := svc.Confirm(context.Background(), req.ID, Confirmation{Status: "shipped"}); err == nil {
		t.Fatalf("expected an error for an unknown status")
	}
}
