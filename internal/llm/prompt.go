package llm

import (
	"encoding/json"
	"strings"
)

// CourseContentPrompt asks for slides plus quiz questions for one chunk of source text.
func CourseContentPrompt(text, customInstructions string) Prompt {
	parts := []string{
		"You are an instructional designer for corporate training.",
		"Turn the source material into lesson slides and multiple-choice quiz questions.",
		"Return ONLY JSON that matches the provided JSON Schema.",
		"Slide bodies are short HTML fragments (p, ul, li, strong). No scripts or styles.",
		"Give each slide an 'imageSearchTerm' of two or three words when a picture would help.",
		"'correctIndex' is the zero-based index of the right option.",
	}
	if ci := strings.TrimSpace(customInstructions); ci != "" {
		parts = append(parts, "Additional instructions from the course author: "+ci)
	}
	parts = append(parts, "JSON Schema:\n"+mustJSON(CourseContentSchema()))
	return Prompt{
		System: strings.Join(parts, " "),
		User:   "Source material:\n\n" + text,
	}
}

// QuizPrompt asks for questions in the marker format parsed by the pipeline.
func QuizPrompt(text string) Prompt {
	system := strings.Join([]string{
		"You write multiple-choice quiz questions for employees.",
		"Use exactly this plain-text format and nothing else:",
		"Q: <question>",
		"- <wrong option>",
		"* <correct option>",
		"- <wrong option>",
		"Leave one blank line between questions. Mark exactly one option per question with '*'.",
	}, "\n")
	return Prompt{System: system, User: "Source material:\n\n" + text}
}

// SummaryPrompt asks for a short summary with key points.
func SummaryPrompt(text string) Prompt {
	system := strings.Join([]string{
		"Summarize the material for a busy employee in at most 150 words.",
		"Return ONLY JSON that matches the provided JSON Schema.",
		"JSON Schema:\n" + mustJSON(SummarySchema()),
	}, " ")
	return Prompt{System: system, User: "Source material:\n\n" + text}
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
