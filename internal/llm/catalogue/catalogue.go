// Package catalogue holds the static table of models the router chooses
// from: their cost per token, the tasks they are strong at, and the
// complexity/context ceilings that gate candidacy.
package catalogue

import "github.com/aixgo-dev/aibroker/internal/llm/domain"

// QualityTier orders models by the broker's own quality bucket,
// independent of the user's subscription Tier.
type QualityTier string

const (
	QualityBasic      QualityTier = "basic"
	QualityGood       QualityTier = "good"
	QualityHigh       QualityTier = "high"
	QualityPremium    QualityTier = "premium"
	QualityEnterprise QualityTier = "enterprise"
)

// Cost is the per-1M-token price for a model, plus an optional
// per-image price for vision-capable models.
type Cost struct {
	InputPerMillion  float64
	OutputPerMillion float64
	ImagePrice       float64 // 0 if the model has no image cost
}

// Price computes the dollar cost of a single completion.
func (c Cost) Price(inputTokens, outputTokens, images int) float64 {
	cost := (float64(inputTokens) / 1_000_000) * c.InputPerMillion
	cost += (float64(outputTokens) / 1_000_000) * c.OutputPerMillion
	if c.ImagePrice > 0 && images > 0 {
		cost += float64(images) * c.ImagePrice
	}
	return cost
}

// Capability describes what a model is good for and what it can take on.
type Capability struct {
	Strengths      map[domain.TaskKind]bool
	MaxComplexity  int
	ContextLimit   int
	Quality        QualityTier
	VisionCapable  bool
}

// Model is one catalogue entry: its id plus its cost and capability.
type Model struct {
	ID         string
	Cost       Cost
	Capability Capability
}

// Catalogue is the broker's immutable model table. Insertion order is
// preserved so the router can break identical-score ties
// deterministically, the same way a map iteration never could.
type Catalogue struct {
	order  []string
	lookup map[string]Model
}

// Default is the catalogue every router and provider registry consults
// unless a test substitutes its own.
var Default = newDefault()

// New builds a catalogue from an explicit, ordered list of models. Tests
// that want a smaller universe than Default construct their own this way.
func New(models ...Model) *Catalogue {
	c := &Catalogue{lookup: make(map[string]Model, len(models))}
	for _, m := range models {
		c.order = append(c.order, m.ID)
		c.lookup[m.ID] = m
	}
	return c
}

// Get returns the model by id and whether it was found.
func (c *Catalogue) Get(id string) (Model, bool) {
	m, ok := c.lookup[id]
	return m, ok
}

// Order returns model ids in catalogue (insertion) order.
func (c *Catalogue) Order() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Candidates returns, in catalogue order, every model whose capability
// covers the complexity/vision requirements of task.
func (c *Catalogue) Candidates(task domain.TaskKind, complexity int, requiresVision bool) []Model {
	var out []Model
	for _, id := range c.order {
		m := c.lookup[id]
		if m.Capability.MaxComplexity < complexity {
			continue
		}
		if requiresVision && !m.Capability.VisionCapable {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Handles reports whether m's capability set names task as a strength.
func (m Model) Handles(task domain.TaskKind) bool {
	return m.Capability.Strengths[task]
}

func newDefault() *Catalogue {
	return New(
		Model{
			ID:   "deepseek-v3",
			Cost: Cost{InputPerMillion: 0.14, OutputPerMillion: 0.28},
			Capability: Capability{
				Strengths:     strengths(domain.TaskCodeGeneration, domain.TaskAnalysis, domain.TaskOptimisation),
				MaxComplexity: 4,
				ContextLimit:  32000,
				Quality:       QualityBasic,
			},
		},
		Model{
			ID:   "gemini-1.5-flash",
			Cost: Cost{InputPerMillion: 0.075, OutputPerMillion: 0.30},
			Capability: Capability{
				Strengths:     strengths(domain.TaskSummarisation, domain.TaskTranslation, domain.TaskContent),
				MaxComplexity: 3,
				ContextLimit:  32000,
				Quality:       QualityGood,
			},
		},
		Model{
			ID:   "gemini-1.5-pro",
			Cost: Cost{InputPerMillion: 1.25, OutputPerMillion: 5.00},
			Capability: Capability{
				Strengths:     strengths(domain.TaskAnalysis, domain.TaskOptimisation, domain.TaskComponentGeneration),
				MaxComplexity: 6,
				ContextLimit:  128000,
				Quality:       QualityHigh,
			},
		},
		Model{
			ID:   "claude-3-5-sonnet",
			Cost: Cost{InputPerMillion: 3.00, OutputPerMillion: 15.00},
			Capability: Capability{
				Strengths:     strengths(domain.TaskContent, domain.TaskCampaignAnalysis, domain.TaskDesignReview),
				MaxComplexity: 8,
				ContextLimit:  200000,
				Quality:       QualityPremium,
			},
		},
		Model{
			ID:   "gpt-4-turbo",
			Cost: Cost{InputPerMillion: 10.00, OutputPerMillion: 30.00},
			Capability: Capability{
				Strengths:     strengths(domain.TaskAnalysis, domain.TaskDesignReview, domain.TaskOptimisation),
				MaxComplexity: 10,
				ContextLimit:  128000,
				Quality:       QualityEnterprise,
			},
		},
		Model{
			ID:   "claude-3-opus-bedrock",
			Cost: Cost{InputPerMillion: 15.00, OutputPerMillion: 75.00},
			Capability: Capability{
				Strengths:     strengths(domain.TaskCampaignAnalysis, domain.TaskDesignReview, domain.TaskAnalysis),
				MaxComplexity: 10,
				ContextLimit:  200000,
				Quality:       QualityEnterprise,
			},
		},
		Model{
			ID:   "gpt-4-vision",
			Cost: Cost{InputPerMillion: 10.00, OutputPerMillion: 30.00, ImagePrice: 0.00765},
			Capability: Capability{
				Strengths:     strengths(domain.TaskDesignReview),
				MaxComplexity: 10,
				ContextLimit:  128000,
				Quality:       QualityEnterprise,
				VisionCapable: true,
			},
		},
	)
}

func strengths(tasks ...domain.TaskKind) map[domain.TaskKind]bool {
	m := make(map[domain.TaskKind]bool, len(tasks))
	for _, t := range tasks {
		m[t] = true
	}
	return m
}
