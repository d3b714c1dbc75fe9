package store

import (
	"errors"
	"sync"
	"testing"
	"time"

	"ideamint/pkg/domain"
)

func draft(id, owner string) domain.Draft {
	return domain.Draft{
		ID:        id,
		OwnerID:   owner,
		Title:     "t",
		Content:   "c",
		CreatedAt: time.Now().UTC(),
	}
}

func TestSaveDraftAssignsSequentialVersions(t *testing.T) {
	m := NewMemoryStore()
	for i := 1; i <= 5; i++ {
		saved, err := m.SaveDraft(draft(string(rune('a'+i)), "owner-1"))
		if err != nil {
			t.Fatalf("save draft %d: %v", i, err)
		}
		if saved.Version != i {
			t.Fatalf("version = %d, want %d", saved.Version, i)
		}
	}
}

func TestDraftVersionsArePerOwner(t *testing.T) {
	m := NewMemoryStore()
	a, _ := m.SaveDraft(draft("d1", "owner-a"))
	b, _ := m.SaveDraft(draft("d2", "owner-b"))
	if a.Version != 1 || b.Version != 1 {
		t.Fatalf("versions = %d, %d, want both 1", a.Version, b.Version)
	}
}

func TestListDraftsNewestVersionFirst(t *testing.T) {
	m := NewMemoryStore()
	for i := 0; i < 3; i++ {
		if _, err := m.SaveDraft(draft(string(rune('a'+i)), "owner-1")); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	drafts, err := m.ListDrafts("owner-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(drafts) != 3 {
		t.Fatalf("got %d drafts, want 3", len(drafts))
	}
	for i, d := range drafts {
		if want := 3 - i; d.Version != want {
			t.Fatalf("drafts[%d].Version = %d, want %d", i, d.Version, want)
		}
	}
}

func TestConcurrentSavesNeverDuplicateVersions(t *testing.T) {
	m := NewMemoryStore()
	const writers = 20
	var wg sync.WaitGroup
	versions := make(chan int, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			saved, err := m.SaveDraft(draft(string(rune('A'+i)), "owner-1"))
			if err != nil {
				t.Errorf("save: %v", err)
				return
			}
			versions <- saved.Version
		}(i)
	}
	wg.Wait()
	close(versions)
	seen := make(map[int]bool)
	for v := range versions {
		if seen[v] {
			t.Fatalf("version %d assigned twice", v)
		}
		seen[v] = true
	}
	for v := 1; v <= writers; v++ {
		if !seen[v] {
			t.Fatalf("version %d missing from the assigned set", v)
		}
	}
}

func TestDeleteDraftAbsentReturnsNotFound(t *testing.T) {
	m := NewMemoryStore()
	if err := m.DeleteDraft("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestActiveTitleMatchesPrefixCaseInsensitive(t *testing.T) {
	m := NewMemoryStore()
	now := time.Now().UTC()
	_ = m.SaveProduct(domain.Product{ID: "p1", OwnerID: "o", Title: "Sleep Hacks", IsActive: true, CreatedAt: now})
	_ = m.SaveProduct(domain.Product{ID: "p2", OwnerID: "o", Title: "Sleep Hacks Vol 2", IsActive: true, CreatedAt: now})
	_ = m.SaveProduct(domain.Product{ID: "p3", OwnerID: "o", Title: "Sleep Hacks Retired", IsActive: false, CreatedAt: now})

	matches, err := m.ActiveTitleMatches("sleep hacks")
	if err != nil {
		t.Fatalf("matches: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2 (inactive excluded): %v", len(matches), matches)
	}
}

func TestCompleteMintRequestTransitions(t *testing.T) {
	m := NewMemoryStore()
	req := domain.MintRequest{ID: "m1", ProductID: "p1", OwnerID: "o", Status: domain.MintPending}
	if err := m.CreateMintRequest(req); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := m.CompleteMintRequest("m1", domain.MintMinted, "0xabc", "ipfs://meta"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	got, ok, _ := m.GetMintRequest("m1")
	if !ok || got.Status != domain.MintMinted || got.TxnHash != "0xabc" {
		t.Fatalf("request after confirm = %+v", got)
	}
	// second completion hits a terminal state
	if err := m.CompleteMintRequest("m1", domain.MintFailed, "", ""); !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	if err := m.CompleteMintRequest("absent", domain.MintMinted, "0x", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestListPurchasesByBuyerNewestFirst(t *testing.T) {
	m := NewMemoryStore()
	_ = m.CreatePurchase(domain.Purchase{ID: "a", BuyerID: "b1", ProductID: "p1"})
	_ = m.CreatePurchase(domain.Purchase{ID: "b", BuyerID: "b1", ProductID: "p2"})
	_ = m.CreatePurchase(domain.Purchase{ID: "c", BuyerID: "b2", ProductID: "p3"})

	got, err := m.ListPurchasesByBuyer("b1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "a" {
		t.Fatalf("purchases = %+v, want [b a]", got)
	}
}
