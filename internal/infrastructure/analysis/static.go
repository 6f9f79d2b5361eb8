package analysis

import (
	"context"
	"fmt"
	"strings"

	"veriscan/internal/ports"
)

// Suspicion markers for the offline analyzer. Crude on purpose; the static
// backend exists for development and tests, not for real verdicts.
var suspicionMarkers = []string{
	"act now", "limited time", "winner", "congratulations", "urgent",
	"wire transfer", "gift card", "click here", "verify your account",
	"100% guaranteed", "miracle", "shocking",
}

// StaticAnalyzer derives a deterministic verdict from simple text features.
type StaticAnalyzer struct{}

var _ ports.Analyzer = (*StaticAnalyzer)(nil)

func NewStaticAnalyzer() *StaticAnalyzer {
	return &StaticAnalyzer{}
}

func (a *StaticAnalyzer) Analyze(_ context.Context, text string) (ports.Verdict, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ports.Verdict{Credibility: 0, Explanation: "No text could be extracted from the image."}, nil
	}

	score := 70
	var signals []string

	lower := strings.ToLower(trimmed)
	hits := 0
	for _, marker := range suspicionMarkers {
		if strings.Contains(lower, marker) {
			hits++
		}
	}
	if hits > 0 {
		score -= 15 * hits
		signals = append(signals, fmt.Sprintf("%d pressure/scam phrasing markers", hits))
	}

	if exclamations := strings.Count(trimmed, "!"); exclamations >= 3 {
		score -= 10
		signals = append(signals, "heavy exclamation usage")
	}

	if upperRatio(trimmed) > 0.5 {
		score -= 10
		signals = append(signals, "mostly upper-case text")
	}

	if len(trimmed) < 40 {
		score -= 10
		signals = append(signals, "too little text to assess")
	}

	score = clampScore(score)

	explanation := "No obvious credibility red flags in the extracted text."
	if len(signals) > 0 {
		explanation = "Flagged: " + strings.Join(signals, "; ") + "."
	}

	return ports.Verdict{Credibility: score, Explanation: explanation}, nil
}

func upperRatio(s string) float64 {
	letters, uppers := 0, 0
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
			letters++
		case r >= 'A' && r <= 'Z':
			letters++
			uppers++
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(uppers) / float64(letters)
}
