package router

import (
	"log"
	"strings"

	"github.com/aixgo-dev/aibroker/internal/llm/domain"
)

var codeIndicators = []string{"component", "function", "react", "javascript", "typescript", "css", "html", "api"}

var analysisIndicators = []string{"analyze", "review", "compare", "evaluate", "assess", "audit"}

// applyOptimisations clones req and nudges its complexity/task kind
// based on what the content actually looks like, the same pre-pass the
// router runs before candidate filtering and scoring.
func applyOptimisations(req domain.Request) domain.Request {
	optimised := req.Clone()

	contentLen := len(req.Content)
	switch {
	case contentLen < 50 && req.Complexity > 3:
		optimised.Complexity = max(2, req.Complexity-1)
		log.Printf("router: reduced complexity %d->%d for short content", req.Complexity, optimised.Complexity)
	case contentLen > 2000 && req.Complexity < 6:
		optimised.Complexity = min(8, req.Complexity+1)
		log.Printf("router: increased complexity %d->%d for detailed content", req.Complexity, optimised.Complexity)
	}

	lower := strings.ToLower(req.Content)
	if containsAny(lower, codeIndicators) && (req.TaskKind == domain.TaskContent || req.TaskKind == domain.TaskAnalysis) {
		log.Printf("router: retagged task %s->%s on code indicators", req.TaskKind, domain.TaskCodeGeneration)
		optimised.TaskKind = domain.TaskCodeGeneration
	} else if containsAny(lower, analysisIndicators) && req.TaskKind == domain.TaskContent {
		log.Printf("router: retagged task %s->%s on analysis indicators", req.TaskKind, domain.TaskAnalysis)
		optimised.TaskKind = domain.TaskAnalysis
	}

	return optimised
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
