// Package analyze turns raw idea text into a structured draft. The primary
// path asks a generative service for chapter segmentation; the fallback is
// deterministic and never fails.
package analyze

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"ideamint/pkg/ai"
)

const defaultTimeout = 20 * time.Second

// wordsPerMinute is the reading-speed assumption behind the estimate.
const wordsPerMinute = 200

// Analysis is the structured form of a raw text.
type Analysis struct {
	Chapters                []string `json:"chapters"`
	Introduction            string   `json:"introduction"`
	Body                    string   `json:"body"`
	Conclusion              string   `json:"conclusion"`
	WordCount               int      `json:"wordCount"`
	EstimatedReadingMinutes int      `json:"estimatedReadingMinutes"`
}

// Analyzer structures raw text, preferring a generative service and degrading
// to the deterministic fallback on any failure.
type Analyzer struct {
	gen     ai.TextGenerator
	timeout time.Duration
}

// New builds an Analyzer. gen may be nil, in which case only the fallback
// path is used. A non-positive timeout falls back to 20s.
func New(gen ai.TextGenerator, timeout time.Duration) *Analyzer {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Analyzer{gen: gen, timeout: timeout}
}

const analysisPrompt = `Segment the user's text into chapters and a three-part structure.
Respond with only a JSON object: {"chapters": ["..."], "introduction": "...", "body": "...", "conclusion": "..."}.`

// Analyze structures rawText. It never returns an error: when the service is
// unavailable, times out, or returns something unparseable, the result is the
// deterministic fallback. Word counts always use the fallback counting rule
// so the two paths stay consistent.
func (a *Analyzer) Analyze(ctx context.Context, rawText string) Analysis {
	if a.gen == nil {
		return Fallback(rawText)
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	out, err := a.gen.GenerateText(ctx, analysisPrompt, rawText)
	if err != nil {
		slog.Warn("content analysis degraded to fallback", "err", err)
		return Fallback(rawText)
	}
	res, err := parseAnalysis(out, rawText)
	if err != nil {
		slog.Warn("content analysis response unusable, using fallback", "err", err)
		return Fallback(rawText)
	}
	return res
}

// Fallback structures raw text without the generative service. It is the
// guaranteed floor of availability.
func Fallback(rawText string) Analysis {
	wc := CountWords(rawText)
	return Analysis{
		Chapters:                []string{"Introduction", "Main Content", "Conclusion"},
		Introduction:            "",
		Body:                    rawText,
		Conclusion:              "",
		WordCount:               wc,
		EstimatedReadingMinutes: ReadingMinutes(wc),
	}
}

// CountWords counts maximal non-whitespace substrings.
func CountWords(s string) int {
	return len(strings.Fields(s))
}

// ReadingMinutes is ceil(wordCount / 200).
func ReadingMinutes(wordCount int) int {
	if wordCount <= 0 {
		return 0
	}
	return (wordCount + wordsPerMinute - 1) / wordsPerMinute
}

func parseAnalysis(out, rawText string) (Analysis, error) {
	out = trimCodeFence(out)
	var parsed struct {
		Chapters     []string `json:"chapters"`
		Introduction string   `json:"introduction"`
		Body         string   `json:"body"`
		Conclusion   string   `json:"conclusion"`
	}
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		return Analysis{}, err
	}
	if len(parsed.Chapters) == 0 || strings.TrimSpace(parsed.Body) == "" {
		return Fallback(rawText), nil
	}
	wc := CountWords(rawText)
	return Analysis{
		Chapters:                parsed.Chapters,
		Introduction:            parsed.Introduction,
		Body:                    parsed.Body,
		Conclusion:              parsed.Conclusion,
		WordCount:               wc,
		EstimatedReadingMinutes: ReadingMinutes(wc),
	}, nil
}

func trimCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
