package cost

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/aixgo-dev/aibroker/internal/kv"
	"github.com/aixgo-dev/aibroker/internal/llm/domain"
	"github.com/aixgo-dev/aibroker/internal/observability"
)

const (
	hourlyTTL   = 24 * 60 * 60
	dailyTTL    = 7 * 24 * 60 * 60
	monthlyTTL  = 32 * 24 * 60 * 60
	requestsTTL = 7 * 24 * 60 * 60
	trendWindow = 7 // days of trailing history the projection averages over
)

// Tracker is the cost-tracker/budget-enforcer: it appends durable usage
// records, maintains fast rolling counters in the key-value store, and
// answers budget questions the Pipeline needs before and after dispatch.
//
// kvStore is optional: when nil, the hourly/daily/monthly/request
// counters are simply not maintained (durable usage-store aggregation
// still works), matching spec.md §7's "cost-tracker write failures do
// not fail a request" policy extended to a missing store entirely.
type Tracker struct {
	usage UsageStore
	kv    kv.Store
	now   func() time.Time
}

func New(usage UsageStore, store kv.Store) *Tracker {
	return &Tracker{usage: usage, kv: store, now: time.Now}
}

// Track appends rec durably, bumps the rolling counters, and returns
// the single highest-severity alert crossed by this call (or nil).
func (t *Tracker) Track(ctx context.Context, userID string, rec UsageRecord) (*Alert, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = t.now()
	}
	rec.UserID = userID

	if err := t.usage.Append(ctx, rec); err != nil {
		return nil, fmt.Errorf("cost: append usage record: %w", err)
	}
	observability.RecordCost(rec.Model, rec.Cost)

	if t.kv != nil {
		t.bumpCounters(ctx, userID, rec)
	}

	status, err := t.status(ctx, userID, rec.UserTier)
	if err != nil {
		log.Printf("cost: warning: budget status after track failed: %v", err)
		return nil, nil
	}

	alert := alertFor(status)
	if alert != nil {
		observability.RecordBudgetAlert(string(alert.Severity))
		log.Printf("cost: budget alert user=%s severity=%s usage=%.4f limit=%.4f", userID, alert.Severity, status.CurrentUsage, status.MonthlyLimit)
	}
	return alert, nil
}

func (t *Tracker) bumpCounters(ctx context.Context, userID string, rec UsageRecord) {
	now := t.now().UTC()
	hourKey := fmt.Sprintf("cost:hourly:%s:%s", userID, now.Format("2006-01-02-15"))
	dayKey := fmt.Sprintf("cost:daily:%s:%s", userID, now.Format("2006-01-02"))
	monthKey := fmt.Sprintf("cost:monthly:%s:%s", userID, now.Format("2006-01"))
	reqKey := fmt.Sprintf("requests:daily:%s:%s", userID, now.Format("2006-01-02"))

	if _, err := t.kv.IncrByFloat(ctx, hourKey, rec.Cost, hourlyTTL); err != nil {
		log.Printf("cost: warning: hourly counter update failed: %v", err)
	}
	if _, err := t.kv.IncrByFloat(ctx, dayKey, rec.Cost, dailyTTL); err != nil {
		log.Printf("cost: warning: daily counter update failed: %v", err)
	}
	if _, err := t.kv.IncrByFloat(ctx, monthKey, rec.Cost, monthlyTTL); err != nil {
		log.Printf("cost: warning: monthly counter update failed: %v", err)
	}
	if _, err := t.kv.IncrBy(ctx, reqKey, 1, requestsTTL); err != nil {
		log.Printf("cost: warning: daily request counter update failed: %v", err)
	}
}

// Status computes the user's current BudgetStatus from the durable
// usage store: current-month spend, remaining budget, percentage used,
// calendar days left in the month, and a 7-day trailing-average
// projection of month-end overage.
func (t *Tracker) Status(ctx context.Context, userID string, tier domain.Tier) (BudgetStatus, error) {
	return t.status(ctx, userID, tier)
}

func (t *Tracker) status(ctx context.Context, userID string, tier domain.Tier) (BudgetStatus, error) {
	now := t.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	usage, err := t.usage.SumSince(ctx, userID, monthStart)
	if err != nil {
		return BudgetStatus{}, fmt.Errorf("cost: sum usage since month start: %w", err)
	}

	limit := TierLimits[tier]
	remaining := limit - usage
	if remaining < 0 {
		remaining = 0
	}

	nextMonth := monthStart.AddDate(0, 1, 0)
	daysRemaining := int(nextMonth.Sub(now).Hours()/24) + 1

	status := BudgetStatus{
		UserID:               userID,
		Tier:                 tier,
		MonthlyLimit:         limit,
		CurrentUsage:         usage,
		RemainingBudget:      remaining,
		PercentageUsed:       percentUsed(usage, limit),
		DaysRemainingInMonth: daysRemaining,
	}

	projection, err := t.projectOverage(ctx, userID, now, usage, limit, daysRemaining)
	if err != nil {
		log.Printf("cost: warning: projection unavailable: %v", err)
	} else if projection != nil {
		status.ProjectedOverage = projection
	}
	return status, nil
}

func percentUsed(usage, limit float64) float64 {
	if limit <= 0 {
		return 0
	}
	pct := usage / limit * 100
	if pct < 0 {
		pct = 0
	}
	return pct
}

// projectOverage extrapolates month-end spend from the trailing 7-day
// daily average; it reports a non-nil overage only when current usage
// plus the projected remainder would exceed the limit.
func (t *Tracker) projectOverage(ctx context.Context, userID string, now time.Time, usage, limit float64, daysRemaining int) (*float64, error) {
	since := now.AddDate(0, 0, -trendWindow)
	daily, err := t.usage.DailyCostsSince(ctx, userID, since)
	if err != nil {
		return nil, err
	}
	if len(daily) == 0 {
		return nil, nil
	}

	var total float64
	for _, c := range daily {
		total += c
	}
	avgPerDay := total / trendWindow

	projected := avgPerDay * float64(daysRemaining)
	if usage+projected > limit {
		overage := usage + projected - limit
		return &overage, nil
	}
	return nil, nil
}

// Check answers whether a call estimated to cost estimatedCost still
// fits the user's remaining monthly budget, without recording anything.
// The Pipeline uses this before dispatch to decide whether to downgrade.
func (t *Tracker) Check(ctx context.Context, userID string, tier domain.Tier, estimatedCost float64) (BudgetCheck, error) {
	status, err := t.status(ctx, userID, tier)
	if err != nil {
		return BudgetCheck{}, err
	}
	return BudgetCheck{
		CanProceed:      status.CurrentUsage+estimatedCost <= status.MonthlyLimit,
		CurrentUsage:    status.CurrentUsage,
		EstimatedCost:   estimatedCost,
		RemainingBudget: status.RemainingBudget,
		Limit:           status.MonthlyLimit,
	}, nil
}

// alertFor picks the single highest-severity alert crossed by status,
// collapsing the source's separate "warning"/"budget_warning" paths
// into one severity ladder per spec.md §9's open question (3).
func alertFor(status BudgetStatus) *Alert {
	fraction := 0.0
	if status.MonthlyLimit > 0 {
		fraction = status.CurrentUsage / status.MonthlyLimit
	}

	switch {
	case fraction >= ThresholdExceeded:
		return &Alert{
			Kind:     AlertExceeded,
			Severity: SeverityCritical,
			Message:  fmt.Sprintf("monthly budget exceeded: %.4f of %.4f", status.CurrentUsage, status.MonthlyLimit),
			Usage:    status.CurrentUsage,
			Limit:    status.MonthlyLimit,
		}
	case fraction >= ThresholdCritical:
		return &Alert{
			Kind:     AlertCriticalUsage,
			Severity: SeverityHigh,
			Message:  fmt.Sprintf("monthly budget critical: %.1f%% used", fraction*100),
			Usage:    status.CurrentUsage,
			Limit:    status.MonthlyLimit,
		}
	case fraction >= ThresholdWarning:
		return &Alert{
			Kind:     AlertWarning,
			Severity: SeverityMedium,
			Message:  fmt.Sprintf("monthly budget warning: %.1f%% used", fraction*100),
			Usage:    status.CurrentUsage,
			Limit:    status.MonthlyLimit,
		}
	}

	if status.ProjectedOverage != nil && *status.ProjectedOverage > 0 {
		return &Alert{
			Kind:     AlertProjectionWarning,
			Severity: SeverityMedium,
			Message:  fmt.Sprintf("projected to exceed budget by %.4f this month", *status.ProjectedOverage),
			Usage:    status.CurrentUsage,
			Limit:    status.MonthlyLimit,
		}
	}
	return nil
}
