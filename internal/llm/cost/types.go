// Package cost is the budget enforcer: it appends per-request usage
// records, rolls them up into a monthly spend figure per user, and
// raises alerts as that figure approaches (or crosses) the user's tier
// limit. The Pipeline consults it before dispatch (Check) and after a
// successful call (Track).
package cost

import (
	"context"
	"time"

	"github.com/aixgo-dev/aibroker/internal/llm/domain"
)

// TierLimits are the monthly dollar caps per subscription tier. These
// are configuration, loaded once at startup; they never change mid-run.
var TierLimits = map[domain.Tier]float64{
	domain.TierFree:     1.00,
	domain.TierCreator:  8.82,
	domain.TierBusiness: 23.84,
	domain.TierAgency:   131.67,
}

// AlertThresholds are fractions of the monthly limit.
const (
	ThresholdWarning  = 0.75
	ThresholdCritical = 0.90
	ThresholdExceeded = 1.00
)

// Severity orders alerts so Track can report only the highest
// applicable one.
type Severity string

const (
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
	SeverityCritical Severity = "critical"
)

// AlertKind identifies why an Alert was raised.
type AlertKind string

const (
	AlertWarning          AlertKind = "warning"
	AlertCriticalUsage    AlertKind = "critical"
	AlertExceeded         AlertKind = "exceeded"
	AlertProjectionWarning AlertKind = "projection_warning"
)

// Alert is the single, highest-severity signal Track returns for one
// call, or nil when nothing crossed a threshold.
type Alert struct {
	Kind     AlertKind
	Severity Severity
	Message  string
	Usage    float64
	Limit    float64
}

// UsageRecord is the append-only record of one completed request,
// durably stored by whatever UsageStore the deployment wires in.
type UsageRecord struct {
	ID             string
	UserID         string
	Model          string
	TaskKind       domain.TaskKind
	InputTokens    int
	OutputTokens   int
	Cost           float64
	ProcessingTime time.Duration
	QualityScore   *float64
	UserTier       domain.Tier
	Metadata       map[string]any
	CreatedAt      time.Time
}

// BudgetStatus is a derived view recomputed on demand from the usage
// store; it is never itself stored.
type BudgetStatus struct {
	UserID               string
	Tier                 domain.Tier
	MonthlyLimit         float64
	CurrentUsage         float64
	RemainingBudget      float64
	PercentageUsed       float64
	DaysRemainingInMonth int
	ProjectedOverage     *float64
}

// BudgetCheck is what Check returns: whether the pipeline may proceed
// with a call estimated to cost estimatedCost.
type BudgetCheck struct {
	CanProceed      bool
	CurrentUsage    float64
	EstimatedCost   float64
	RemainingBudget float64
	Limit           float64
}

// UsageStore is the narrow durable-store contract the cost tracker
// depends on; the relational usage_records table (spec §6.2) is an
// external collaborator reachable only through this interface.
type UsageStore interface {
	Append(ctx context.Context, rec UsageRecord) error
	// SumSince returns the total cost of every record for user with
	// CreatedAt >= since.
	SumSince(ctx context.Context, userID string, since time.Time) (float64, error)
	// DailyCostsSince returns cost summed per calendar day (UTC) for the
	// trailing window starting at since, used for the 7-day projection.
	DailyCostsSince(ctx context.Context, userID string, since time.Time) (map[string]float64, error)
}
