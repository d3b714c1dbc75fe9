package title

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubTitles struct {
	matches []string
	err     error
}

func (s stubTitles) ActiveTitleMatches(string) ([]string, error) {
	return s.matches, s.err
}

type stubGenerator struct {
	out string
	err error
}

func (s stubGenerator) GenerateText(_ context.Context, _, _ string) (string, error) {
	return s.out, s.err
}

func TestCheckTitleUnique(t *testing.T) {
	r := New(stubTitles{}, nil, time.Second)
	res := r.CheckTitle("Sleep Hacks")
	if !res.IsUnique {
		t.Fatalf("expected unique")
	}
	if res.Suggested != "" {
		t.Fatalf("suggested = %q, want empty", res.Suggested)
	}
}

func TestCheckTitleCollisionSuggestsRevisedEdition(t *testing.T) {
	r := New(stubTitles{matches: []string{"Sleep Hacks"}}, nil, time.Second)
	res := r.CheckTitle("sleep hacks")
	if res.IsUnique {
		t.Fatalf("expected collision")
	}
	if res.Suggested != "sleep hacks - Revised Edition" {
		t.Fatalf("suggested = %q, want %q", res.Suggested, "sleep hacks - Revised Edition")
	}
}

func TestCheckTitleDegradesToUniqueOnStoreFailure(t *testing.T) {
	r := New(stubTitles{err: errors.New("db down")}, nil, time.Second)
	res := r.CheckTitle("Anything")
	if !res.IsUnique {
		t.Fatalf("infrastructure failure must not block publication")
	}
}

func TestSuggestTitlesCannedByCategory(t *testing.T) {
	r := New(stubTitles{}, nil, time.Second)
	got := r.SuggestTitles(context.Background(), "content", "business")
	if len(got) != 3 {
		t.Fatalf("got %d titles, want 3", len(got))
	}
	if got[0] != "The Growth Playbook" {
		t.Fatalf("first suggestion = %q, want the business list", got[0])
	}
}

func TestSuggestTitlesUnknownCategoryFallsBackToPersonal(t *testing.T) {
	r := New(stubTitles{}, nil, time.Second)
	got := r.SuggestTitles(context.Background(), "content", "quantum-baking")
	if got[0] != "The Life You Design" {
		t.Fatalf("first suggestion = %q, want the personal list", got[0])
	}
}

func TestSuggestTitlesUsesGeneratorOutput(t *testing.T) {
	gen := stubGenerator{out: "First Title\nSecond Title\nThird Title\nFourth Title"}
	r := New(stubTitles{}, gen, time.Second)
	got := r.SuggestTitles(context.Background(), "content", "medical")
	if len(got) != 3 {
		t.Fatalf("got %d titles, want 3", len(got))
	}
	if got[0] != "First Title" || got[2] != "Third Title" {
		t.Fatalf("titles = %v, want the generator's first three lines", got)
	}
}

func TestSuggestTitlesGeneratorFailureFallsBackToCanned(t *testing.T) {
	gen := stubGenerator{err: errors.New("timeout")}
	r := New(stubTitles{}, gen, time.Second)
	got := r.SuggestTitles(context.Background(), "content", "medical")
	if got[0] != "The Healing Blueprint" {
		t.Fatalf("first suggestion = %q, want the medical list", got[0])
	}
}
