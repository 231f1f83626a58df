package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/aixgo-dev/aibroker/internal/llm/domain"
)

// Fingerprint returns the SHA-256 hex digest identifying req (plus the
// supplied user id) for exact-match lookups. Field order is fixed so
// the same logical request always hashes to the same key.
func Fingerprint(req domain.Request, userID string) string {
	canonical := strings.Join([]string{
		"complexity=" + strconv.Itoa(req.Complexity),
		"content=" + normaliseContent(req.Content),
		"requires_vision=" + strconv.FormatBool(req.RequiresVision),
		"task_type=" + string(req.TaskKind),
		"user_id=" + userID,
		"user_tier=" + string(req.UserTier),
	}, "|")

	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

func normaliseContent(content string) string {
	return strings.TrimSpace(strings.ToLower(content))
}

// jaccardSimilarity scores two pieces of text by the overlap of their
// lowercase, whitespace-tokenized word sets: |A ∩ B| / |A ∪ B|.
func jaccardSimilarity(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1.0
	}

	intersection := 0
	for tok := range setA {
		if setB[tok] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]bool {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}
