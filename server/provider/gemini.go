package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/teilomillet/socialwiz/config"
	"github.com/teilomillet/socialwiz/server/processing"
	"google.golang.org/genai"
)

// curveballVisionPrompt asks for a short description of a chat screenshot
// that the curveball prompt can use as context.
const curveballVisionPrompt = `Analyze this chat screenshot image carefully.

STEP 1 - Extract messages by spatial position:
- Messages on the LEFT side are from the OTHER PERSON
- Messages on the RIGHT side are from ME (the user)

STEP 2 - Understand the conversation context:
- What is the conversation about?
- What is the tone/mood of the conversation?
- What is the relationship dynamic between the two people?
- Is there any emotional undertone (friendly, flirty, serious, casual, conflicted, etc.)?
- What is the awkward or curveball situation visible?

Provide a clear, concise description (2-3 sentences) of the conversation context, emotional dynamics, and the curveball situation.
Do NOT include message sequences, timestamps, or technical details.
Do NOT list individual messages.
Return plain text description only.`

// contentGenerator is the part of genai.Models the describer needs.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiDescriber describes images with a Gemini vision model.
type GeminiDescriber struct {
	models      contentGenerator
	model       string
	temperature float32
	topP        float32
}

// NewGeminiDescriber creates a describer from the vision configuration.
func NewGeminiDescriber(ctx context.Context, cfg config.VisionConfig) (*GeminiDescriber, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("vision API key is not set")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return newGeminiDescriber(client.Models, cfg), nil
}

func newGeminiDescriber(models contentGenerator, cfg config.VisionConfig) *GeminiDescriber {
	return &GeminiDescriber{
		models:      models,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		topP:        cfg.TopP,
	}
}

// DescribeImage implements ImageDescriber.
func (g *GeminiDescriber) DescribeImage(ctx context.Context, img processing.Image) (string, error) {
	contents := []*genai.Content{{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			{Text: curveballVisionPrompt},
			{InlineData: &genai.Blob{Data: img.Data, MIMEType: img.MIMEType}},
		},
	}}

	temperature, topP := g.temperature, g.topP
	resp, err := g.models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		Temperature:     &temperature,
		TopP:            &topP,
		MaxOutputTokens: 2048,
	})
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	return strings.TrimSpace(resp.Text()), nil
}
