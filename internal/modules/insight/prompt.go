package insight

import "strings"

// Moods the analyzer may answer with.
var Moods = []string{
	"Elated", "Good", "Existing", "Sad", "Awful", "Angry", "Anxious",
	"Unsure", "Excited", "Grateful", "Tired", "Stressed", "Neutral",
}

const insightSystemPrompt = `You are an AI journal assistant designed to help users reflect on their mental and emotional well-being in a calm, supportive way.
Analyze the journal entry you are given and answer with structured insights that feel human, thoughtful and grounded in what the user actually wrote.`

const insightPromptTemplate = `Tasks:

1. Mood: the dominant emotional tone of the entry. Choose exactly one of:
   [{{MOODS}}]
2. Triggers: short, concrete words, events or themes from the entry that influenced the mood.
3. Insight: a kind, empathetic reflection that acknowledges the user's experience. No cliches, therapy-speak or judgment.
4. Pro tip: one short, realistic suggestion tailored to the mood, achievable today.
5. Headline: a short, creative, mood-appropriate headline for an insight card. No generic motivational phrases.

Journal entry:
"""
{{ENTRY}}
"""

Respond with STRICT JSON ONLY, no explanations, no markdown:
{
  "mood": "one of the moods above",
  "triggers": ["keywords or events influencing the mood"],
  "insight": "empathetic reflection based on the journal entry",
  "pro_tip": "short, actionable suggestion",
  "headline": "short, creative, mood-appropriate headline"
}`

const placeholderPrompt = `Generate a single, creative, engaging and emotionally intelligent placeholder text for a daily journal entry textarea. It should inspire the user to reflect on their day, feelings or experiences. Make it friendly, varied and never generic. Do NOT include quotes or quotation marks. Only return the placeholder string, nothing else. It should be a maximum of 12 words. Add an emoji at the end.`

// FallbackPlaceholder is shown when no placeholder can be generated.
const FallbackPlaceholder = "What happened today... 🫶"

func buildInsightPrompt(entry string) string {
	r := strings.NewReplacer("{{MOODS}}", strings.Join(Moods, ", "), "{{ENTRY}}", entry)
	return r.Replace(insightPromptTemplate)
}
