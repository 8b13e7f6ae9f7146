package classifier

import (
	"context"
	"encoding/json"
	"time"

	"google.golang.org/genai"

	"github.com/plumefeed/backend/internal/errors"
	"github.com/plumefeed/backend/internal/metrics"
)

const systemInstruction = `
You are a content moderation classifier for a social posting app. Evaluate the provided content and respond with a single JSON object:
1.  decision: one of "ALLOW", "REVIEW", "BLOCK". Use ALLOW for clearly acceptable content, BLOCK for clear policy violations (violence, sexual content, harassment, illegal activity), REVIEW when a human should decide.
2.  score: your confidence in the decision as a number between 0 and 1.
3.  categories: an object mapping policy category names (e.g. "violence", "sexual", "harassment", "spam") to scores between 0 and 1.
4.  message: ONLY when decision is BLOCK, a short user-facing sentence explaining the rejection. Omit or leave empty otherwise.
You MUST NOT wrap the JSON output in a markdown code block. The response must contain ONLY the raw JSON string.
`

// geminiResponse is the wire shape we require from the model. Parsed
// defensively: a missing or unrecognized decision is a hard failure.
type geminiResponse struct {
	Decision   string             `json:"decision"`
	Score      float64            `json:"score"`
	Categories map[string]float64 `json:"categories"`
	Message    string             `json:"message"`
}

// GeminiClassifier classifies text and images with the Gemini API. It
// implements both TextClassifier and ImageClassifier.
type GeminiClassifier struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGeminiClassifier creates a classifier bound to one model version
func NewGeminiClassifier(ctx context.Context, apiKey, model string, timeout time.Duration) (*GeminiClassifier, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, errors.Transient("gemini client init", err)
	}
	return &GeminiClassifier{
		client:  client,
		model:   model,
		timeout: timeout,
	}, nil
}

// ClassifyText evaluates the post's title and body text
func (g *GeminiClassifier) ClassifyText(ctx context.Context, title, body string) (*Verdict, error) {
	prompt := "Post text to moderate:\n"
	if title != "" {
		prompt += "Title: " + title + "\n"
	}
	prompt += "Body: " + body
	return g.classify(ctx, "text", genai.Text(prompt))
}

// ClassifyImage evaluates raw image bytes
func (g *GeminiClassifier) ClassifyImage(ctx context.Context, data []byte, mimeType string) (*Verdict, error) {
	contents := []*genai.Content{{
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{MIMEType: mimeType, Data: data}},
			{Text: "Moderate this image attached to a social post."},
		},
	}}
	return g.classify(ctx, "image", contents)
}

func (g *GeminiClassifier) classify(ctx context.Context, kind string, contents []*genai.Content) (*Verdict, error) {
	m := metrics.Get()
	start := time.Now()

	// Bounded call: a hung classifier must not hold the post forever; on
	// timeout the attempt fails hard and the post stays pending.
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	result, err := g.client.Models.GenerateContent(
		callCtx,
		g.model,
		contents,
		&genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: systemInstruction}}},
		},
	)
	m.ClassifierDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	if err != nil {
		m.ClassifierCalls.WithLabelValues(kind, "error").Inc()
		return nil, errors.Transient("classifier call", err)
	}

	verdict, err := parseVerdict(result.Text(), g.model)
	if err != nil {
		m.ClassifierCalls.WithLabelValues(kind, "malformed").Inc()
		return nil, err
	}
	m.ClassifierCalls.WithLabelValues(kind, string(verdict.Decision)).Inc()
	return verdict, nil
}

// parseVerdict defensively parses a model response. Never defaults to
// ALLOW on any parse problem.
func parseVerdict(text, modelVersion string) (*Verdict, error) {
	var resp geminiResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return nil, errors.Malformed("classifier", err)
	}

	decision, err := ParseDecision(resp.Decision)
	if err != nil {
		return nil, errors.Malformed("classifier", err)
	}
	if resp.Score < 0 || resp.Score > 1 {
		return nil, errors.Malformed("classifier", errInvalidScore(resp.Score))
	}

	v := &Verdict{
		Decision:     decision,
		Score:        resp.Score,
		Categories:   resp.Categories,
		ModelVersion: modelVersion,
	}
	if decision == DecisionBlock {
		v.Message = resp.Message
	}
	return v, nil
}

type errInvalidScore float64

func (e errInvalidScore) Error() string {
	return "score out of range [0,1]"
}
