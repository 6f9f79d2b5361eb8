package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"veriscan/internal/bootstrap/logging"
	"veriscan/internal/errs"
	"veriscan/internal/ports"
)

const systemPrompt = `You assess the credibility of text that was extracted from a user-submitted image (a screenshot, message, article photo or similar).
Score how credible the content is from 0 (certainly misleading or fraudulent) to 100 (highly credible), and explain the signals behind the score in two or three sentences.
Respond with ONLY a JSON object: {"credibility": <integer 0-100>, "explanation": "<string>"}`

type OpenAIConfig struct {
	BaseURL     string // empty -> api.openai.com
	APIKey      string
	Model       string // default gpt-4o-mini
	Temperature float64
}

// OpenAIAnalyzer obtains the credibility verdict from a chat-completions
// model. The model is asked for bare JSON; the reply is parsed leniently
// since models occasionally wrap it in fences or prose.
type OpenAIAnalyzer struct {
	client      openai.Client
	model       string
	temperature float64
}

var _ ports.Analyzer = (*OpenAIAnalyzer)(nil)

func NewOpenAIAnalyzer(cfg OpenAIConfig) *OpenAIAnalyzer {
	opts := []option.RequestOption{}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = string(openai.ChatModelGPT4oMini)
	}

	return &OpenAIAnalyzer{
		client:      openai.NewClient(opts...),
		model:       model,
		temperature: cfg.Temperature,
	}
}

func (a *OpenAIAnalyzer) Analyze(ctx context.Context, text string) (ports.Verdict, error) {
	if ctx == nil {
		return ports.Verdict{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return ports.Verdict{}, errs.Wrap(err, "check context")
	}

	if strings.TrimSpace(text) == "" {
		return ports.Verdict{Credibility: 0, Explanation: "No text could be extracted from the image."}, nil
	}

	start := time.Now()
	completion, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(a.model),
		Temperature: openai.Float(a.temperature),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(text),
		},
	})
	if err != nil {
		return ports.Verdict{}, errs.Wrap(err, "chat completion")
	}
	if len(completion.Choices) == 0 {
		return ports.Verdict{}, errors.New("no choices in completion response")
	}

	verdict, err := parseVerdict(completion.Choices[0].Message.Content)
	if err != nil {
		return ports.Verdict{}, err
	}

	logging.Debug(ctx, "analysis completed",
		slog.String("model", a.model),
		slog.Int("credibility", verdict.Credibility),
		slog.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)
	return verdict, nil
}

func parseVerdict(content string) (ports.Verdict, error) {
	raw := strings.TrimSpace(content)

	// Models sometimes wrap JSON in code fences or lead-in text; take the
	// outermost object.
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}

	var parsed struct {
		Credibility *int   `json:"credibility"`
		Explanation string `json:"explanation"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return ports.Verdict{}, errs.Wrapf(err, "decode verdict %q", truncateForLog(content))
	}
	if parsed.Credibility == nil {
		return ports.Verdict{}, fmt.Errorf("verdict missing credibility: %q", truncateForLog(content))
	}
	if strings.TrimSpace(parsed.Explanation) == "" {
		return ports.Verdict{}, fmt.Errorf("verdict missing explanation: %q", truncateForLog(content))
	}

	return ports.Verdict{
		Credibility: clampScore(*parsed.Credibility),
		Explanation: parsed.Explanation,
	}, nil
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func truncateForLog(s string) string {
	if len(s) <= 120 {
		return s
	}
	return s[:120] + "..."
}
