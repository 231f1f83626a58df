package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequest_CloneIsIndependent(t *testing.T) {
	cost := 0.5
	ctxLen := 4000
	req := Request{TaskKind: TaskAnalysis, Complexity: 3, MaxCost: &cost, ContextLength: &ctxLen}

	clone := req.Clone()
	*clone.MaxCost = 9.9
	*clone.ContextLength = 1

	assert.Equal(t, 0.5, *req.MaxCost, "mutating the clone's pointer must not affect the original")
	assert.Equal(t, 4000, *req.ContextLength)
}

func TestRequest_CloneNilPointersStayNil(t *testing.T) {
	req := Request{TaskKind: TaskContent}
	clone := req.Clone()
	assert.Nil(t, clone.MaxCost)
	assert.Nil(t, clone.ContextLength)
}
