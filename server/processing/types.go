// Package processing turns validated requests into prompts for the inference
// provider and turns raw completions back into reply text.
package processing

import "strings"

// Mood selects the tone of a rewrite (mode 1) or curveball reply (mode 3).
type Mood string

// Supported moods.
const (
	MoodCasual      Mood = "casual"
	MoodFlirty      Mood = "flirty"
	MoodNonchalant  Mood = "nonchalant"
	MoodSlapBack    Mood = "slap_back"
	MoodPlayful     Mood = "playful"
	MoodAssertive   Mood = "assertive"
	MoodCurious     Mood = "curious"
	MoodSerious     Mood = "serious"
	MoodApologetic  Mood = "apologetic"
	MoodEncouraging Mood = "encouraging"
	MoodSarcastic   Mood = "sarcastic"
	MoodEmpathetic  Mood = "empathetic"
)

// OpenerType selects the structure of an icebreaker (mode 2).
type OpenerType string

// Supported opener types.
const (
	OpenerIf                OpenerType = "if"
	OpenerBetween           OpenerType = "between"
	OpenerIfIWas            OpenerType = "if_i_was"
	OpenerWouldYouRather    OpenerType = "would_you_rather"
	OpenerSomethingThat     OpenerType = "something_that"
	OpenerInASituation      OpenerType = "in_a_situation"
	OpenerHowWouldYouHandle OpenerType = "how_would_you_handle"
)

// RewriteRequest is the input of mode 1: rewrite the user's draft reply to
// the other person's message in the requested mood.
type RewriteRequest struct {
	OriginalMessage string `json:"original_message" validate:"notblank"`
	Response        string `json:"response" validate:"notblank"`
	Mood            Mood   `json:"mood" validate:"mood"`
	PersonalContext string `json:"personal_context,omitempty"`
}

// IcebreakerRequest is the input of mode 2.
type IcebreakerRequest struct {
	OpenerType OpenerType `json:"opener_type" validate:"opener_type"`
	Context    string     `json:"context,omitempty"`
}

// CurveballRequest is the input of mode 3. The image arrives either base64
// encoded in JSON or as a multipart file; once decoded it lives in Image.
type CurveballRequest struct {
	SituationDescription string `json:"situation_description" validate:"notblank"`
	Mood                 Mood   `json:"mood" validate:"mood"`
	ImageBase64          string `json:"image,omitempty"`
	ImageMIMEType        string `json:"image_mime_type,omitempty"`

	Image *Image `json:"-"`
}

// Image is a decoded image payload with its sniffed MIME type.
type Image struct {
	Data     []byte
	MIMEType string
}

// Message represents a single turn of the prompt.
// Role is "system" or "user".
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Sampling holds the parameters sent alongside the prompt.
type Sampling struct {
	Temperature float64 `json:"temperature"`
	// MaxTokens caps the completion; zero leaves the provider default.
	MaxTokens int `json:"max_tokens,omitempty"`
}

// PromptSpec is a fully assembled prompt. It is built fresh for every request
// and never modified after construction.
type PromptSpec struct {
	Messages []Message `json:"messages"`
	Sampling
}

// Text returns every turn's content joined by newlines, for token counting
// and logging.
func (p PromptSpec) Text() string {
	parts := make([]string, 0, len(p.Messages))
	for _, m := range p.Messages {
		parts = append(parts, m.Content)
	}
	return strings.Join(parts, "\n")
}
