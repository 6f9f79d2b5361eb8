package vision

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"veriscan/internal/bootstrap/logging"
	"veriscan/internal/errs"
	"veriscan/internal/ports"
)

const (
	DefaultEndpoint = "https://vision.googleapis.com/v1/images:annotate"

	featureText     = "TEXT_DETECTION"
	featureDocument = "DOCUMENT_TEXT_DETECTION"
)

type Config struct {
	Endpoint string // if empty -> DefaultEndpoint
	APIKey   string
	Timeout  time.Duration // default 30s
}

// Client calls the Google Vision images:annotate endpoint. With a cache
// attached, cleaned text is memoized by image content hash so byte-identical
// submissions skip the remote call.
type Client struct {
	cfg        Config
	httpClient *http.Client
	cache      ports.Cache
}

var _ ports.TextExtractor = (*Client)(nil)

func NewClient(cfg Config, cache ports.Cache) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cache:      cache,
	}
}

type annotateRequest struct {
	Requests []annotateRequestItem `json:"requests"`
}

type annotateRequestItem struct {
	Image    imageContent `json:"image"`
	Features []feature    `json:"features"`
}

type imageContent struct {
	Content string `json:"content"`
}

type feature struct {
	Type       string `json:"type"`
	MaxResults int    `json:"maxResults"`
}

type annotateResponse struct {
	Responses []annotateResponseItem `json:"responses"`
}

type annotateResponseItem struct {
	Error              *apiError          `json:"error,omitempty"`
	TextAnnotations    []textAnnotation   `json:"textAnnotations,omitempty"`
	FullTextAnnotation *fullTextAnnotation `json:"fullTextAnnotation,omitempty"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type textAnnotation struct {
	Description string `json:"description"`
}

type fullTextAnnotation struct {
	Text  string `json:"text"`
	Pages []page `json:"pages"`
}

type page struct {
	Blocks []block `json:"blocks"`
}

type block struct {
	Paragraphs []paragraph `json:"paragraphs"`
}

type paragraph struct {
	Words []word `json:"words"`
}

type word struct {
	Symbols     []symbol     `json:"symbols"`
	Confidence  float64      `json:"confidence"`
	BoundingBox *boundingBox `json:"boundingBox"`
}

type symbol struct {
	Text string `json:"text"`
}

type boundingBox struct {
	Vertices []vertex `json:"vertices"`
}

type vertex struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// ExtractText runs simple text detection and returns cleaned plain text.
// An image with no detectable text yields "", not an error.
func (c *Client) ExtractText(ctx context.Context, image []byte) (string, error) {
	if err := checkInput(ctx, image); err != nil {
		return "", err
	}

	cacheKey := "ocr:text:" + contentHash(image)
	if cached, ok := c.cacheGet(ctx, cacheKey); ok {
		return cached, nil
	}

	item, err := c.annotate(ctx, image, featureText)
	if err != nil {
		return "", err
	}
	if item == nil || len(item.TextAnnotations) == 0 {
		c.cacheSet(ctx, cacheKey, "")
		return "", nil
	}

	text := CleanText(item.TextAnnotations[0].Description)
	c.cacheSet(ctx, cacheKey, text)
	return text, nil
}

// ExtractTextDetailed runs document-mode detection and reports per-word
// confidence alongside the cleaned full text.
func (c *Client) ExtractTextDetailed(ctx context.Context, image []byte) (ports.Extraction, error) {
	if err := checkInput(ctx, image); err != nil {
		return ports.Extraction{}, err
	}

	item, err := c.annotate(ctx, image, featureDocument)
	if err != nil {
		return ports.Extraction{}, err
	}
	if item == nil || item.FullTextAnnotation == nil {
		return ports.Extraction{}, nil
	}

	var words []ports.Word
	confidenceSum := 0
	for _, pg := range item.FullTextAnnotation.Pages {
		for _, bl := range pg.Blocks {
			for _, pa := range bl.Paragraphs {
				for _, wd := range pa.Words {
					text := ""
					for _, sym := range wd.Symbols {
						text += sym.Text
					}
					confidence := int(math.Round(wd.Confidence * 100))
					var box []ports.Vertex
					if wd.BoundingBox != nil {
						for _, v := range wd.BoundingBox.Vertices {
							box = append(box, ports.Vertex{X: v.X, Y: v.Y})
						}
					}
					words = append(words, ports.Word{Text: text, Confidence: confidence, BoundingBox: box})
					confidenceSum += confidence
				}
			}
		}
	}

	avg := 0
	if len(words) > 0 {
		avg = int(math.Round(float64(confidenceSum) / float64(len(words))))
	}

	return ports.Extraction{
		Text:       CleanText(item.FullTextAnnotation.Text),
		Confidence: avg,
		Words:      words,
	}, nil
}

func (c *Client) annotate(ctx context.Context, image []byte, featureType string) (*annotateResponseItem, error) {
	body, err := json.Marshal(annotateRequest{
		Requests: []annotateRequestItem{{
			Image:    imageContent{Content: base64.StdEncoding.EncodeToString(image)},
			Features: []feature{{Type: featureType, MaxResults: 1}},
		}},
	})
	if err != nil {
		return nil, errs.Wrap(err, "encode annotate request")
	}

	url := c.cfg.Endpoint
	if c.cfg.APIKey != "" {
		url += "?key=" + c.cfg.APIKey
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, errs.Wrap(err, "build annotate request")
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrExtraction, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ports.ErrExtraction, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d: %s", ports.ErrExtraction, resp.StatusCode, truncate(raw, 256))
	}

	var decoded annotateResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ports.ErrExtraction, err)
	}
	if len(decoded.Responses) == 0 {
		return nil, nil
	}

	item := decoded.Responses[0]
	if item.Error != nil {
		return nil, fmt.Errorf("%w: %s (code %d)", ports.ErrExtraction, item.Error.Message, item.Error.Code)
	}

	logging.Debug(ctx, "vision annotate completed",
		slog.String("feature", featureType),
		slog.Int("image_bytes", len(image)),
		slog.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)
	return &item, nil
}

func (c *Client) cacheGet(ctx context.Context, key string) (string, bool) {
	if c.cache == nil {
		return "", false
	}
	value, found, err := c.cache.Get(ctx, key)
	if err != nil {
		logging.Warn(ctx, "extraction cache read failed", slog.Any("err", errs.Loggable(err)))
		return "", false
	}
	return value, found
}

func (c *Client) cacheSet(ctx context.Context, key, value string) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Set(ctx, key, value, 0); err != nil {
		logging.Warn(ctx, "extraction cache write failed", slog.Any("err", errs.Loggable(err)))
	}
}

func checkInput(ctx context.Context, image []byte) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if len(image) == 0 {
		return errors.New("image payload is required")
	}
	return nil
}

func contentHash(image []byte) string {
	sum := sha256.Sum256(image)
	return hex.EncodeToString(sum[:])
}

func truncate(raw []byte, n int) string {
	if len(raw) <= n {
		return string(raw)
	}
	return string(raw[:n]) + "..."
}
