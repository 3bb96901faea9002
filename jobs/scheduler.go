package jobs

import (
	"fmt"
)

// Nightly cron specs, staggered so the jobs of one business do not overlap.
const (
	cronGLIntegrity          = "15 1 * * *"
	cronInventoryRevaluation = "45 1 * * *"
	cronReportsWarmup        = "30 5 * * *"
)

// NightlySchedule registers the three ledger jobs for every business.
func NightlySchedule(businessIDs []int64, method string) ([]CronRegistration, error) {
	var out []CronRegistration
	for _, id := range businessIDs {
		if id <= 0 {
			return nil, fmt.Errorf("jobs: invalid business id %d in schedule", id)
		}
		integrity, err := NewGLIntegrityTask(GLIntegrityPayload{BusinessID: id, Days: defaultIntegrityDays})
		if err != nil {
			return nil, err
		}
		reval, err := NewInventoryRevaluationTask(InventoryRevaluationPayload{BusinessID: id, Method: method})
		if err != nil {
			return nil, err
		}
		warmup, err := NewReportsWarmupTask(ReportsWarmupPayload{BusinessID: id})
		if err != nil {
			return nil, err
		}
		out = append(out,
			CronRegistration{Spec: cronGLIntegrity, Task: integrity},
			CronRegistration{Spec: cronInventoryRevaluation, Task: reval},
			CronRegistration{Spec: cronReportsWarmup, Task: warmup},
		)
	}
	return out, nil
}
