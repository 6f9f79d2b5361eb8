package ports

import (
	"context"
	"errors"
)

// ErrExtraction marks a failed remote text-detection call. An image with no
// detectable text is not an error; it yields an empty string.
var ErrExtraction = errors.New("text extraction failed")

// Word is one recognized word with its confidence in [0,100].
type Word struct {
	Text        string
	Confidence  int
	BoundingBox []Vertex
}

type Vertex struct {
	X int
	Y int
}

// Extraction is the detailed result of a document-mode detection.
type Extraction struct {
	Text       string
	Confidence int // averaged word confidence, 0 when no words
	Words      []Word
}

// TextExtractor turns image bytes into cleaned plain text.
type TextExtractor interface {
	ExtractText(ctx context.Context, image []byte) (string, error)

	// ExtractTextDetailed additionally reports per-word confidence. The
	// pipeline only needs ExtractText; this richer form backs diagnostics.
	ExtractTextDetailed(ctx context.Context, image []byte) (Extraction, error)
}
