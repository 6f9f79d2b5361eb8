package analysis

import (
	"context"
	"strings"
	"testing"
)

func TestParseVerdict(t *testing.T) {
	verdict, err := parseVerdict(`{"credibility": 85, "explanation": "well sourced"}`)
	if err != nil {
		t.Fatalf("parseVerdict() error = %v", err)
	}
	if verdict.Credibility != 85 || verdict.Explanation != "well sourced" {
		t.Fatalf("parseVerdict() = %+v", verdict)
	}
}

func TestParseVerdictStripsFences(t *testing.T) {
	content := "Here is my assessment:\n```json\n{\"credibility\": 40, \"explanation\": \"unverified claims\"}\n```"

	verdict, err := parseVerdict(content)
	if err != nil {
		t.Fatalf("parseVerdict() error = %v", err)
	}
	if verdict.Credibility != 40 || verdict.Explanation != "unverified claims" {
		t.Fatalf("parseVerdict() = %+v", verdict)
	}
}

func TestParseVerdictClampsScore(t *testing.T) {
	high, err := parseVerdict(`{"credibility": 140, "explanation": "x"}`)
	if err != nil {
		t.Fatalf("parseVerdict() error = %v", err)
	}
	if high.Credibility != 100 {
		t.Fatalf("parseVerdict() high = %d, want 100", high.Credibility)
	}

	low, err := parseVerdict(`{"credibility": -5, "explanation": "x"}`)
	if err != nil {
		t.Fatalf("parseVerdict() error = %v", err)
	}
	if low.Credibility != 0 {
		t.Fatalf("parseVerdict() low = %d, want 0", low.Credibility)
	}
}

func TestParseVerdictRejectsIncomplete(t *testing.T) {
	if _, err := parseVerdict(`{"explanation": "no score"}`); err == nil {
		t.Fatalf("parseVerdict() expected error for missing credibility")
	}
	if _, err := parseVerdict(`{"credibility": 50}`); err == nil {
		t.Fatalf("parseVerdict() expected error for missing explanation")
	}
	if _, err := parseVerdict("not json at all"); err == nil {
		t.Fatalf("parseVerdict() expected error for non-json content")
	}
}

func TestStaticAnalyzerEmptyText(t *testing.T) {
	verdict, err := NewStaticAnalyzer().Analyze(context.Background(), "   ")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if verdict.Credibility != 0 {
		t.Fatalf("Analyze(empty) credibility = %d, want 0", verdict.Credibility)
	}
	if !strings.Contains(verdict.Explanation, "No text") {
		t.Fatalf("Analyze(empty) explanation = %q", verdict.Explanation)
	}
}

func TestStaticAnalyzerDeterministic(t *testing.T) {
	analyzer := NewStaticAnalyzer()
	ctx := context.Background()
	text := "The city council approved the new budget on Tuesday after a public hearing."

	first, err := analyzer.Analyze(ctx, text)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	second, err := analyzer.Analyze(ctx, text)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if first != second {
		t.Fatalf("Analyze() not deterministic: %+v vs %+v", first, second)
	}
	if first.Credibility != 70 {
		t.Fatalf("Analyze(clean text) credibility = %d, want 70", first.Credibility)
	}
}

func TestStaticAnalyzerFlagsScamPhrasing(t *testing.T) {
	verdict, err := NewStaticAnalyzer().Analyze(context.Background(),
		"CONGRATULATIONS WINNER!!! ACT NOW and send a gift card to claim your prize!!!")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if verdict.Credibility >= 50 {
		t.Fatalf("Analyze(scam text) credibility = %d, want well below baseline", verdict.Credibility)
	}
	if !strings.Contains(verdict.Explanation, "Flagged") {
		t.Fatalf("Analyze(scam text) explanation = %q", verdict.Explanation)
	}
}
