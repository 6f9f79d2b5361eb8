package ports

import "context"

// Verdict is the credibility assessment for a piece of extracted text.
type Verdict struct {
	Credibility int // 0..100
	Explanation string
}

// Analyzer is the external scoring capability. The pipeline's contract is
// only "given extracted text, obtain a verdict"; how is the adapter's business.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (Verdict, error)
}
