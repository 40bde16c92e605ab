package insight

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/moody-app/moody/internal/models"
)

const (
	insightMaxTokens     = 600
	placeholderMaxTokens = 60
)

// Analyzer turns a journal entry into an Insight.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (models.Insight, error)
}

// LLMAnalyzer asks a language model for a JSON insight.
type LLMAnalyzer struct {
	gen Generator
}

func NewLLMAnalyzer(gen Generator) *LLMAnalyzer { return &LLMAnalyzer{gen: gen} }

func (a *LLMAnalyzer) Model() string { return a.gen.Model() }

func (a *LLMAnalyzer) Analyze(ctx context.Context, text string) (models.Insight, error) {
	raw, err := a.gen.Generate(ctx, insightSystemPrompt, buildInsightPrompt(text), insightMaxTokens)
	if err != nil {
		return models.Insight{}, err
	}
	return parseInsight(raw)
}

// Placeholder asks for a short writing prompt for the journal box.
func (a *LLMAnalyzer) Placeholder(ctx context.Context) (string, error) {
	raw, err := a.gen.Generate(ctx, "", placeholderPrompt, placeholderMaxTokens)
	if err != nil {
		return "", err
	}
	text := strings.Trim(stripFence(raw), "\"' \n")
	if text == "" {
		return "", fmt.Errorf("empty placeholder")
	}
	return text, nil
}

func parseInsight(raw string) (models.Insight, error) {
	var out models.Insight
	if err := unmarshalAIJSON(raw, &out); err != nil {
		return out, err
	}
	out.Mood = canonicalMood(out.Mood)
	out.Insight = strings.TrimSpace(out.Insight)
	out.ProTip = strings.TrimSpace(out.ProTip)
	out.Headline = strings.TrimSpace(out.Headline)
	triggers := make([]string, 0, len(out.Triggers))
	for _, t := range out.Triggers {
		if t = strings.TrimSpace(t); t != "" {
			triggers = append(triggers, t)
		}
	}
	out.Triggers = triggers
	if out.Mood == "" || out.Insight == "" {
		return out, fmt.Errorf("incomplete insight in AI response")
	}
	return out, nil
}

// canonicalMood maps case variants onto the listed moods and keeps
// anything else as given.
func canonicalMood(m string) string {
	m = strings.TrimSpace(m)
	for _, known := range Moods {
		if strings.EqualFold(m, known) {
			return known
		}
	}
	return m
}

func stripFence(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```") {
		if nl := strings.IndexByte(cleaned, '\n'); nl >= 0 {
			cleaned = cleaned[nl+1:]
		} else {
			cleaned = strings.TrimPrefix(cleaned, "```")
		}
		cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	}
	return strings.TrimSpace(cleaned)
}

func unmarshalAIJSON(raw string, out interface{}) error {
	cleaned := stripFence(raw)
	if err := json.Unmarshal([]byte(cleaned), out); err == nil {
		return nil
	}
	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(cleaned[start:end+1]), out); err == nil {
			return nil
		}
	}
	return fmt.Errorf("invalid JSON response from AI")
}
