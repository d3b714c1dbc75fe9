// Package title checks title uniqueness against published products and
// proposes alternatives. Checks prefer availability: an infrastructure fault
// never blocks publication.
package title

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"ideamint/pkg/ai"
)

const (
	revisedSuffix  = " - Revised Edition"
	defaultTimeout = 10 * time.Second
	suggestCount   = 3
)

// ProductTitles is the slice of the store the resolver needs.
type ProductTitles interface {
	ActiveTitleMatches(candidate string) ([]string, error)
}

// CheckResult reports whether a candidate title is unique among active
// products, with a suggested alternative when it is not.
type CheckResult struct {
	IsUnique  bool   `json:"isUnique"`
	Suggested string `json:"suggested,omitempty"`
}

// Resolver resolves title collisions and suggests titles.
type Resolver struct {
	titles  ProductTitles
	gen     ai.TextGenerator
	timeout time.Duration
}

// New builds a Resolver. gen may be nil; suggestions then come from the
// canned category lists.
func New(titles ProductTitles, gen ai.TextGenerator, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Resolver{titles: titles, gen: gen, timeout: timeout}
}

// CheckTitle reports whether candidate collides with an active product title
// (case-insensitive exact or prefix match). Uniqueness is advisory only. On
// query failure the check degrades to unique, trading strictness for
// availability.
func (r *Resolver) CheckTitle(candidate string) CheckResult {
	matches, err := r.titles.ActiveTitleMatches(candidate)
	if err != nil {
		slog.Warn("title uniqueness check degraded to unique", "err", err)
		return CheckResult{IsUnique: true}
	}
	if len(matches) == 0 {
		return CheckResult{IsUnique: true}
	}
	return CheckResult{IsUnique: false, Suggested: candidate + revisedSuffix}
}

var cannedTitles = map[string][]string{
	"medical": {
		"The Healing Blueprint",
		"Your Body, Decoded",
		"Everyday Wellness Essentials",
	},
	"business": {
		"The Growth Playbook",
		"From Idea to Income",
		"Lead Without a Title",
	},
	"personal": {
		"The Life You Design",
		"Small Habits, Big Change",
		"Finding Your Next Chapter",
	},
}

const suggestPrompt = `Propose exactly 3 short book titles for the user's content, one per line, no numbering.`

// SuggestTitles returns three title suggestions for the given content and
// category. Unknown categories and any failure of the generation call fall
// back to the canned personal list (or the category's own list when known).
func (r *Resolver) SuggestTitles(ctx context.Context, content, category string) []string {
	canned := cannedFor(category)
	if r.gen == nil {
		return canned
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	out, err := r.gen.GenerateText(ctx, suggestPrompt, "Category: "+category+"\n\n"+content)
	if err != nil {
		slog.Warn("title suggestion degraded to canned list", "err", err)
		return canned
	}
	titles := parseTitles(out)
	if len(titles) < suggestCount {
		return canned
	}
	return titles[:suggestCount]
}

func cannedFor(category string) []string {
	if titles, ok := cannedTitles[strings.ToLower(strings.TrimSpace(category))]; ok {
		return titles
	}
	return cannedTitles["personal"]
}

func parseTitles(out string) []string {
	lines := strings.Split(out, "\n")
	titles := make([]string, 0, suggestCount)
	for _, line := range lines {
		line = strings.Trim(strings.TrimSpace(line), `"-*`)
		if line == "" {
			continue
		}
		titles = append(titles, line)
	}
	return titles
}
