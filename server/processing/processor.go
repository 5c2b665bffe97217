package processing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/teilomillet/gollm"
)

// BuildRewritePrompt assembles the mode 1 prompt. The request must already be
// validated; an unknown mood is reported as an error rather than guessed.
func BuildRewritePrompt(req RewriteRequest, sampling Sampling) (PromptSpec, error) {
	tone, ok := moodTones[req.Mood]
	if !ok {
		return PromptSpec{}, fmt.Errorf("unsupported mood %q", req.Mood)
	}

	user, err := render(rewriteUserTemplate, struct {
		OriginalMessage string
		Response        string
		Tone            string
		PersonalContext string
	}{
		OriginalMessage: strings.TrimSpace(req.OriginalMessage),
		Response:        strings.TrimSpace(req.Response),
		Tone:            tone.Rewrite,
		PersonalContext: strings.TrimSpace(req.PersonalContext),
	})
	if err != nil {
		return PromptSpec{}, err
	}

	return newPromptSpec(rewriteSystemPrompt, user, sampling), nil
}

// BuildIcebreakerPrompt assembles the mode 2 prompt.
func BuildIcebreakerPrompt(req IcebreakerRequest, sampling Sampling) (PromptSpec, error) {
	instruction, ok := openerInstructions[req.OpenerType]
	if !ok {
		return PromptSpec{}, fmt.Errorf("unsupported opener type %q", req.OpenerType)
	}

	user, err := render(icebreakerUserTemplate, struct {
		Instruction string
		Context     string
	}{
		Instruction: instruction,
		Context:     strings.TrimSpace(req.Context),
	})
	if err != nil {
		return PromptSpec{}, err
	}

	return newPromptSpec(icebreakerSystemPrompt, user, sampling), nil
}

// BuildCurveballPrompt assembles the mode 3 prompt. visualContext is the image
// description, or empty when image analysis was not used.
func BuildCurveballPrompt(req CurveballRequest, visualContext string, sampling Sampling) (PromptSpec, error) {
	tone, ok := moodTones[req.Mood]
	if !ok {
		return PromptSpec{}, fmt.Errorf("unsupported mood %q", req.Mood)
	}

	user, err := render(curveballUserTemplate, struct {
		SituationDescription string
		Tone                 string
		VisualContext        string
	}{
		SituationDescription: strings.TrimSpace(req.SituationDescription),
		Tone:                 tone.Curveball,
		VisualContext:        strings.TrimSpace(visualContext),
	})
	if err != nil {
		return PromptSpec{}, err
	}

	return newPromptSpec(curveballSystemPrompt, user, sampling), nil
}

func newPromptSpec(system, user string, sampling Sampling) PromptSpec {
	return PromptSpec{
		Messages: []Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Sampling: sampling,
	}
}

func render(tmpl *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("template execution failed: %w", err)
	}
	return buf.String(), nil
}

// CleanCompletion extracts the reply text from a raw completion. Models are
// asked for {"reply": "..."} but sometimes wrap it in markdown fences or answer
// with bare text; both are handled. A JSON object without a string "reply"
// yields "", as does an empty completion.
func CleanCompletion(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}

	for _, candidate := range []string{gollm.CleanResponse(text), stripFences(text)} {
		if reply, isObject := replyField(candidate); isObject {
			return unquote(reply)
		}
	}

	return unquote(stripFences(text))
}

// replyField reports whether s is a JSON object and, if so, its trimmed
// "reply" string.
func replyField(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") {
		return "", false
	}
	var payload map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &payload); err != nil {
		return "", false
	}
	var reply string
	if err := json.Unmarshal(payload["reply"], &reply); err != nil {
		return "", true
	}
	return strings.TrimSpace(reply), true
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "```json"):
		s = s[len("```json"):]
	case strings.HasPrefix(s, "```"):
		s = s[len("```"):]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func unquote(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}
