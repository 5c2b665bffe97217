package processing

import (
	"sort"
	"text/template"
)

// MoodTone holds the tone instruction of a mood for each mode that uses moods.
type MoodTone struct {
	Rewrite   string
	Curveball string
}

// moodTones maps every supported mood to its instructions. Adding a mood is
// a matter of adding an entry here; validation reads the same table.
var moodTones = map[Mood]MoodTone{
	MoodCasual: {
		Rewrite:   "Casual, friendly, and relaxed.",
		Curveball: "Keep it light, relaxed, and easy-going. Don't overthink the situation.",
	},
	MoodFlirty: {
		Rewrite:   "Subtly playful and flirty (not explicit).",
		Curveball: "Turn the awkward moment into a playful, flirty opportunity while staying smooth.",
	},
	MoodNonchalant: {
		Rewrite:   "Short, detached, and unconcerned.",
		Curveball: "Stay cool and unbothered. Acknowledge it briefly and move on without making it a big deal.",
	},
	MoodSlapBack: {
		Rewrite:   "Witty, biting, and sharp (not abusive).",
		Curveball: "Answer with a quick, sharp comeback that puts the ball back in their court (not abusive).",
	},
	MoodPlayful: {
		Rewrite:   "Lighthearted and teasing, with a bit of fun.",
		Curveball: "Make a game of the moment with light teasing and humor so nobody feels awkward.",
	},
	MoodAssertive: {
		Rewrite:   "Confident and direct, without being rude.",
		Curveball: "Be clear and confident. State where you stand calmly and without apologizing for it.",
	},
	MoodCurious: {
		Rewrite:   "Genuinely interested, inviting them to say more.",
		Curveball: "Show genuine interest and curiosity. Ask questions to understand better.",
	},
	MoodSerious: {
		Rewrite:   "Sincere and thoughtful, with no jokes.",
		Curveball: "Address the situation sincerely and maturely. Drop the jokes and speak plainly.",
	},
	MoodApologetic: {
		Rewrite:   "Warm and apologetic, owning any misunderstanding.",
		Curveball: "Be understanding and apologetic. Show you care about the confusion or misunderstanding.",
	},
	MoodEncouraging: {
		Rewrite:   "Positive, supportive, and uplifting.",
		Curveball: "Be positive, supportive, and uplifting. Turn the awkward moment into something good.",
	},
	MoodSarcastic: {
		Rewrite:   "Dry and sarcastic, but good-natured (not mean).",
		Curveball: "Use witty sarcasm and humor to deflect or address the situation playfully (not mean).",
	},
	MoodEmpathetic: {
		Rewrite:   "Understanding and emotionally warm, validating their feelings.",
		Curveball: "Show deep understanding and emotional connection. Validate their feelings or situation.",
	},
}

var openerInstructions = map[OpenerType]string{
	OpenerIf:                "Start with 'If you...' followed by an interesting hypothetical scenario or question.",
	OpenerBetween:           "Start with 'Between...' presenting two interesting options or choices.",
	OpenerIfIWas:            "Start with 'If I was...' creating an imaginative scenario or role-play situation.",
	OpenerWouldYouRather:    "Start with 'Would you rather...' presenting two intriguing alternatives.",
	OpenerSomethingThat:     "Start with 'What is something that...' asking about preferences, experiences, or beliefs.",
	OpenerInASituation:      "Start with 'In a situation where...' describing a hypothetical scenario.",
	OpenerHowWouldYouHandle: "Start with 'How would you handle...' presenting a situation requiring a response or decision.",
}

// Valid reports whether m is a supported mood.
func (m Mood) Valid() bool {
	_, ok := moodTones[m]
	return ok
}

// Valid reports whether o is a supported opener type.
func (o OpenerType) Valid() bool {
	_, ok := openerInstructions[o]
	return ok
}

// Moods returns the supported moods in lexical order.
func Moods() []Mood {
	out := make([]Mood, 0, len(moodTones))
	for m := range moodTones {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// OpenerTypes returns the supported opener types in lexical order.
func OpenerTypes() []OpenerType {
	out := make([]OpenerType, 0, len(openerInstructions))
	for o := range openerInstructions {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

const replyFormatRule = `OUTPUT FORMAT: Respond ONLY with a JSON object in this exact format: {"reply": "your message here"}
Do NOT include markdown formatting, explanations, or any other text.`

const rewriteSystemPrompt = `You are an expert conversation stylist. Your task is to rewrite a user's draft reply to match a specific target mood.
You must strictly follow these rules:
1. Analyze the 'Original Message' and the 'User Draft'.
2. Rewrite the 'User Draft' so it answers the 'Original Message' in the 'Target Tone'.
3. Keep what the user wants to say; change how it is said.
4. Incorporate 'Personal Context' when it is provided.
5. Keep it authentic and conversational (1-3 sentences).
` + replyFormatRule

const icebreakerSystemPrompt = `You are an expert conversation starter and social communication specialist. Your task is to generate engaging, creative, and personalized icebreaker messages.
You must strictly follow these rules:
1. Generate ONE conversation opener that follows the specified 'Opener Type'.
2. Make it interesting and natural, not formal or awkward.
3. Incorporate 'Context' subtly when it is provided.
4. Keep it concise (1-3 sentences) and open-ended so it invites a response.
` + replyFormatRule

const curveballSystemPrompt = `You are an expert at handling awkward, confusing, or curveball moments in conversations. Your task is to craft the reply that handles the situation smoothly.
You must strictly follow these rules:
1. Analyze the curveball situation described.
2. Generate a reply that handles it in the 'Target Mood'.
3. Use 'Visual Context' from the chat screenshot when it is provided.
4. Keep it natural and concise (1-3 sentences).
5. Turn the awkward moment into a smooth continuation of the conversation.
` + replyFormatRule

// User turn templates. Optional sections sit inside {{with}} so an absent
// value leaves no trace in the prompt.
var (
	rewriteUserTemplate = template.Must(template.New("rewrite").Parse(
		`INPUT DATA:
- Original Message: "{{.OriginalMessage}}"
- User Draft: "{{.Response}}"
- Target Tone: {{.Tone}}
{{- with .PersonalContext}}
- Personal Context: {{.}}
{{- end}}

Respond with ONLY: {"reply": "your rewritten message"}`))

	icebreakerUserTemplate = template.Must(template.New("icebreaker").Parse(
		`TASK:
- Opener Type: {{.Instruction}}
{{- with .Context}}
- Context: {{.}}
{{- end}}

Respond with ONLY: {"reply": "your icebreaker message"}`))

	curveballUserTemplate = template.Must(template.New("curveball").Parse(
		`INPUT DATA:
- Situation: "{{.SituationDescription}}"
- Target Mood: {{.Tone}}
{{- with .VisualContext}}
- Visual Context from Screenshot: {{.}}
{{- end}}

Respond with ONLY: {"reply": "your curveball response"}`))
)
