package cache

import "github.com/aixgo-dev/aibroker/internal/llm/domain"

// taskConfig controls how long a cached response lives, how similar a
// fuzzy match must be to count, and whether fuzzy matching runs at all
// for a given task kind.
type taskConfig struct {
	TTLSeconds          int64
	SimilarityThreshold float64
	FuzzyEnabled        bool
}

const day = 24 * 60 * 60

var defaultTaskConfig = taskConfig{TTLSeconds: 7 * day, SimilarityThreshold: 0.85, FuzzyEnabled: false}

var taskConfigs = map[domain.TaskKind]taskConfig{
	domain.TaskComponentGeneration: {TTLSeconds: 30 * day, SimilarityThreshold: 0.90, FuzzyEnabled: true},
	domain.TaskContent:             {TTLSeconds: 7 * day, SimilarityThreshold: 0.80, FuzzyEnabled: true},
	domain.TaskCodeGeneration:      {TTLSeconds: 14 * day, SimilarityThreshold: 0.95, FuzzyEnabled: false},
	domain.TaskAnalysis:            {TTLSeconds: 3 * day, SimilarityThreshold: 0.75, FuzzyEnabled: true},
}

func configFor(task domain.TaskKind) taskConfig {
	if c, ok := taskConfigs[task]; ok {
		return c
	}
	return defaultTaskConfig
}

const maxTTLSeconds = 30 * day
