package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/depsentry/depsentry/pkg/analysis"
)

// DefaultSynthesisModel is used when no model is configured.
const DefaultSynthesisModel = "gemini-2.0-flash"

const synthesisPrompt = `You are a supply-chain security analyst. Given the
packages that were analyzed and the findings produced by earlier analysis
stages, write a risk assessment.

Respond with a JSON object of this exact shape:
{
  "summary": "<2-4 sentence plain-language assessment>",
  "risk_score": <number between 0 and 1>,
  "top_risks": ["<the most important risks, worst first, at most 5>"],
  "remediations": ["<concrete actions, at most 5>"]
}

Weigh malicious packages and critical vulnerabilities far above reputation
signals. An empty findings list means a risk_score of 0.`

// generator abstracts the model call for testing.
type generator interface {
	generateJSON(ctx context.Context, prompt string) ([]byte, error)
}

// SynthesisStage condenses the accumulated findings into a final
// assessment using a Gemini model in JSON mode. It implements both
// [analysis.Executor] and [analysis.Synthesizer]; the orchestrator routes
// it through the synthesis path with validation and fallback.
type SynthesisStage struct {
	gen generator
}

// NewSynthesisStage creates the stage. The API key is read from the
// GEMINI_API_KEY environment variable by the genai client; model may be
// empty to use DefaultSynthesisModel.
func NewSynthesisStage(ctx context.Context, model string) (*SynthesisStage, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	if model == "" {
		model = DefaultSynthesisModel
	}
	return &SynthesisStage{gen: &geminiGenerator{cli: cli, model: model}}, nil
}

func (s *SynthesisStage) Name() string { return "synthesis" }

// Execute satisfies analysis.Executor; the orchestrator never calls it for
// a synthesis-capable stage.
func (s *SynthesisStage) Execute(ctx context.Context, pkgs []analysis.PackageIdentity, prior []analysis.Finding) ([]analysis.Finding, error) {
	return nil, nil
}

func (s *SynthesisStage) Synthesize(ctx context.Context, pkgs []analysis.PackageIdentity, findings []analysis.Finding) (*analysis.SynthesisResult, error) {
	input := struct {
		Packages []analysis.PackageIdentity `json:"packages"`
		Findings []analysis.Finding         `json:"findings"`
	}{Packages: pkgs, Findings: findings}

	payload, err := json.MarshalIndent(input, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode synthesis input: %w", err)
	}

	raw, err := s.gen.generateJSON(ctx, synthesisPrompt+"\n\n[INPUT]\n"+string(payload))
	if err != nil {
		return nil, fmt.Errorf("synthesis generation: %w", err)
	}

	var result analysis.SynthesisResult
	if err := json.Unmarshal(stripFences(raw), &result); err != nil {
		return nil, fmt.Errorf("decode synthesis output: %w", err)
	}
	return &result, nil
}

// stripFences removes markdown code fences some models wrap JSON in even
// when asked for application/json.
func stripFences(raw []byte) []byte {
	s := strings.TrimSpace(string(raw))
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return []byte(strings.TrimSpace(s))
}

type geminiGenerator struct {
	cli   *genai.Client
	model string
}

func (g *geminiGenerator) generateJSON(ctx context.Context, prompt string) ([]byte, error) {
	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}},
		&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
	)
	if err != nil {
		return nil, err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("model returned no content")
	}
	return []byte(resp.Candidates[0].Content.Parts[0].Text), nil
}
