package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"ideamint/pkg/domain"
	"ideamint/pkg/store"
)

type fakeGateway struct {
	secret     string
	intentErr  error
	confirm    ConfirmResult
	confirmErr error
}

func (f *fakeGateway) CreateIntent(_ context.Context, _ int64, _, _ string) (string, error) {
	return f.secret, f.intentErr
}

func (f *fakeGateway) Confirm(_ context.Context, _, _ string) (ConfirmResult, error) {
	return f.confirm, f.confirmErr
}

func storeWithProduct(t *testing.T, priceCents int64, active bool) *store.MemoryStore {
	t.Helper()
	st := store.NewMemoryStore()
	err := st.SaveProduct(domain.Product{
		ID:         "prod-1",
		OwnerID:    "seller",
		Title:      "Sleep Hacks",
		PriceCents: priceCents,
		IsActive:   active,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("save product: %v", err)
	}
	return st
}

func TestCreateIntentReturnsClientSecret(t *testing.T) {
	st := storeWithProduct(t, 999, true)
	o := NewOrchestrator(st, &fakeGateway{secret: "cs_123"}, nil)
	secret, err := o.CreateIntent(context.Background(), domain.Actor{ID: "buyer"}, "prod-1")
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}
	if secret != "cs_123" {
		t.Fatalf("secret = %q", secret)
	}
}

func TestCreateIntentGatewayFailureNotRetried(t *testing.T) {
	st := storeWithProduct(t, 999, true)
	gw := &fakeGateway{intentErr: ErrIntentCreation}
	o := NewOrchestrator(st, gw, nil)
	if _, err := o.CreateIntent(context.Background(), domain.Actor{ID: "buyer"}, "prod-1"); !errors.Is(err, ErrIntentCreation) {
		t.Fatalf("err = %v, want ErrIntentCreation", err)
	}
}

func TestCreateIntentInactiveProduct(t *testing.T) {
	st := storeWithProduct(t, 999, false)
	o := NewOrchestrator(st, &fakeGateway{secret: "cs"}, nil)
	if _, err := o.CreateIntent(context.Background(), domain.Actor{ID: "buyer"}, "prod-1"); !errors.Is(err, ErrInactiveProduct) {
		t.Fatalf("err = %v, want ErrInactiveProduct", err)
	}
}

func TestConfirmDeclinedWritesNothing(t *testing.T) {
	st := storeWithProduct(t, 999, true)
	gw := &fakeGateway{confirm: ConfirmResult{Status: StatusFailed, Reason: "card_declined"}}
	o := NewOrchestrator(st, gw, nil)

	_, err := o.Confirm(context.Background(), domain.Actor{ID: "buyer"}, "prod-1", "cs", "card")
	if !errors.Is(err, ErrDeclined) {
		t.Fatalf("err = %v, want ErrDeclined", err)
	}
	purchases, _ := st.ListPurchasesByBuyer("buyer")
	if len(purchases) != 0 {
		t.Fatalf("declined payment left %d purchase rows", len(purchases))
	}
}

func TestConfirmSucceededCreatesOnePurchase(t *testing.T) {
	st := storeWithProduct(t, 999, true)
	gw := &fakeGateway{confirm: ConfirmResult{Status: StatusSucceeded, PaymentID: "pay_1", ProductID: "prod-1", AmountCents: 999}}
	o := NewOrchestrator(st, gw, nil)

	purchase, err := o.Confirm(context.Background(), domain.Actor{ID: "buyer"}, "prod-1", "cs", "card")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if purchase.PriceCents != 999 {
		t.Fatalf("priceCents = %d, want 999", purchase.PriceCents)
	}
	purchases, _ := st.ListPurchasesByBuyer("buyer")
	if len(purchases) != 1 {
		t.Fatalf("got %d purchase rows, want 1", len(purchases))
	}
}

func TestPurchasePriceIsSnapshotAtConfirmation(t *testing.T) {
	st := storeWithProduct(t, 999, true)
	gw := &fakeGateway{confirm: ConfirmResult{Status: StatusSucceeded, ProductID: "prod-1", AmountCents: 999}}
	o := NewOrchestrator(st, gw, nil)

	purchase, err := o.Confirm(context.Background(), domain.Actor{ID: "buyer"}, "prod-1", "cs", "card")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}

	// reprice the product afterwards
	product, _, _ := st.GetProduct("prod-1")
	product.PriceCents = 5000
	if err := st.SaveProduct(product); err != nil {
		t.Fatalf("reprice: %v", err)
	}

	purchases, _ := st.ListPurchasesByBuyer("buyer")
	if purchases[0].PriceCents != 999 {
		t.Fatalf("recorded price changed to %d after repricing", purchases[0].PriceCents)
	}
	if purchase.ID != purchases[0].ID {
		t.Fatalf("listed purchase %q is not the one returned %q", purchases[0].ID, purchase.ID)
	}
}

func TestConfirmRejectsSecretFromAnotherProduct(t *testing.T) {
	st := storeWithProduct(t, 100, true) // prod-1, the cheap one
	err := st.SaveProduct(domain.Product{
		ID:         "prod-expensive",
		OwnerID:    "seller",
		Title:      "Premium",
		PriceCents: 100000,
		IsActive:   true,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("save product: %v", err)
	}
	// the settled intent was created for the cheap product
	gw := &fakeGateway{confirm: ConfirmResult{Status: StatusSucceeded, ProductID: "prod-1", AmountCents: 100}}
	o := NewOrchestrator(st, gw, nil)

	_, err = o.Confirm(context.Background(), domain.Actor{ID: "buyer"}, "prod-expensive", "cs_cheap", "card")
	if !errors.Is(err, ErrIntentMismatch) {
		t.Fatalf("err = %v, want ErrIntentMismatch", err)
	}
	purchases, _ := st.ListPurchasesByBuyer("buyer")
	if len(purchases) != 0 {
		t.Fatalf("mismatched confirmation granted %d purchase rows", len(purchases))
	}
}

func TestConfirmRejectsStaleIntentAmount(t *testing.T) {
	st := storeWithProduct(t, 500, true)
	// intent was created at 100 cents, the product now costs 500
	gw := &fakeGateway{confirm: ConfirmResult{Status: StatusSucceeded, ProductID: "prod-1", AmountCents: 100}}
	o := NewOrchestrator(st, gw, nil)

	_, err := o.Confirm(context.Background(), domain.Actor{ID: "buyer"}, "prod-1", "cs", "card")
	if !errors.Is(err, ErrIntentMismatch) {
		t.Fatalf("err = %v, want ErrIntentMismatch", err)
	}
	purchases, _ := st.ListPurchasesByBuyer("buyer")
	if len(purchases) != 0 {
		t.Fatalf("stale-amount confirmation granted %d purchase rows", len(purchases))
	}
}

func TestConfirmUnknownProduct(t *testing.T) {
	st := store.NewMemoryStore()
	o := NewOrchestrator(st, &fakeGateway{}, nil)
	if _, err := o.Confirm(context.Background(), domain.Actor{ID: "buyer"}, "missing", "cs", "card"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
