package provider

import (
	"regexp"
	"strings"

	"github.com/aixgo-dev/aibroker/internal/llm/domain"
)

var codeSignal = regexp.MustCompile(`(?i)\b(import|export|function|const)\b|=>`)

const minContentLen = 10

// QualityHeuristic scores content against base (the provider's own
// baseline, 0.70-0.75) with bounded bonuses for task-specific signals,
// clamped to [0,1]. Empty or near-empty output always scores 0.1
// regardless of task or base.
func QualityHeuristic(task domain.TaskKind, content string, base float64) float64 {
	trimmed := strings.TrimSpace(content)
	if len(trimmed) < minContentLen {
		return 0.1
	}

	score := base
	switch task {
	case domain.TaskCodeGeneration, domain.TaskComponentGeneration:
		if codeSignal.MatchString(content) {
			score += 0.15
		}
	case domain.TaskContent:
		paragraphs := strings.Count(strings.TrimSpace(content), "\n\n") + 1
		if paragraphs > 1 {
			score += 0.1
		}
		if strings.Contains(content, "#") || strings.Contains(content, "**") {
			score += 0.05
		}
	case domain.TaskAnalysis:
		lower := strings.ToLower(content)
		if strings.Contains(lower, "finding") || strings.Contains(lower, "recommendation") || strings.Contains(lower, "analysis") {
			score += 0.15
		}
	}

	if score > 1.0 {
		score = 1.0
	}
	if score < 0 {
		score = 0
	}
	return score
}

// ApplySafetyPenalty halves a quality score when the provider's finish
// reason indicates a safety block, per spec.md §4.A.
func ApplySafetyPenalty(score float64, safetyBlocked bool) float64 {
	if safetyBlocked {
		return score * 0.5
	}
	return score
}
