package oracle

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"refinery/internal/logging"
)

// Per-million-token prices in USD. Unknown models fall back to the
// default entry so cost accounting never silently reports zero.
type modelPricing struct {
	inputPerM  float64
	outputPerM float64
}

var pricing = map[string]modelPricing{
	"gemini-3-flash-preview": {inputPerM: 0.30, outputPerM: 2.50},
	"gemini-2.5-pro":         {inputPerM: 1.25, outputPerM: 10.00},
	"gemini-2.5-flash":       {inputPerM: 0.30, outputPerM: 2.50},
}

var defaultPricing = modelPricing{inputPerM: 1.25, outputPerM: 10.00}

// GeminiDeliberator implements Deliberator backed by the Gemini API.
type GeminiDeliberator struct {
	client    *genai.Client
	model     string
	maxTokens int
}

// GeminiConfig configures a GeminiDeliberator.
type GeminiConfig struct {
	APIKey    string
	Model     string
	MaxTokens int
}

// NewGeminiDeliberator creates a Gemini-backed deliberator.
func NewGeminiDeliberator(ctx context.Context, cfg GeminiConfig) (*GeminiDeliberator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-3-flash-preview"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 65536
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiDeliberator{client: client, model: model, maxTokens: maxTokens}, nil
}

// Improve asks Gemini for a full-file replacement of req.Content.
func (d *GeminiDeliberator) Improve(ctx context.Context, req ImproveRequest) (*Improvement, error) {
	timer := logging.StartTimer(logging.CategoryOracle, "Improve")
	defer timer.Stop()

	prompt := buildPrompt(req)
	logging.OracleDebug("Improve %s (pass %d, %d bytes)", req.Path, req.Pass, len(req.Content))

	resp, err := d.client.Models.GenerateContent(ctx, d.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
			Temperature:       genai.Ptr[float32](0.2),
			MaxOutputTokens:   int32(d.maxTokens),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}

	content := stripFences(resp.Text())
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("gemini returned empty content for %s", req.Path)
	}

	var inTokens, outTokens int
	if resp.UsageMetadata != nil {
		inTokens = int(resp.UsageMetadata.PromptTokenCount)
		outTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	cost := costFor(d.model, inTokens, outTokens)
	logging.Oracle("%s: %d in / %d out tokens, $%.4f", req.Path, inTokens, outTokens, cost)

	return &Improvement{
		Content:      content,
		Cost:         cost,
		Model:        d.model,
		InputTokens:  inTokens,
		OutputTokens: outTokens,
	}, nil
}

func costFor(model string, inTokens, outTokens int) float64 {
	p, ok := pricing[model]
	if !ok {
		p = defaultPricing
	}
	return float64(inTokens)/1e6*p.inputPerM + float64(outTokens)/1e6*p.outputPerM
}

// stripFences removes a surrounding markdown code fence if the model
// wrapped the file in one despite instructions.
func stripFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return text
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return text
	}
	if !strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
		return text
	}
	return strings.Join(lines[1:len(lines)-1], "\n") + "\n"
}
