package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskGLIntegrity regenerates and validates recent journal entries.
	TaskGLIntegrity = "gl:integrity"
	// TaskInventoryRevaluation values inventory and reports data-quality findings.
	TaskInventoryRevaluation = "inventory:revaluation"
	// TaskReportsWarmup precomputes the month-to-date profit and loss.
	TaskReportsWarmup = "reports:warmup"
)

const defaultIntegrityDays = 7

// GLIntegrityPayload selects the business and look-back window.
type GLIntegrityPayload struct {
	BusinessID int64 `json:"business_id"`
	Days       int   `json:"days,omitempty"`
}

// InventoryRevaluationPayload selects the business and costing method.
type InventoryRevaluationPayload struct {
	BusinessID   int64     `json:"business_id"`
	Method       string    `json:"method,omitempty"`
	ScheduledFor time.Time `json:"scheduled_for,omitempty"`
}

// ReportsWarmupPayload selects the business and optional location to warm.
type ReportsWarmupPayload struct {
	BusinessID int64  `json:"business_id"`
	LocationID *int64 `json:"location_id,omitempty"`
}

// NewGLIntegrityTask constructs a gl:integrity task.
func NewGLIntegrityTask(payload GLIntegrityPayload) (*asynq.Task, error) {
	return newTask(TaskGLIntegrity, payload)
}

// NewInventoryRevaluationTask constructs an inventory:revaluation task.
func NewInventoryRevaluationTask(payload InventoryRevaluationPayload) (*asynq.Task, error) {
	return newTask(TaskInventoryRevaluation, payload)
}

// NewReportsWarmupTask constructs a reports:warmup task.
func NewReportsWarmupTask(payload ReportsWarmupPayload) (*asynq.Task, error) {
	return newTask(TaskReportsWarmup, payload)
}

func newTask(typ string, payload any) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(typ, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}

// decodePayload unmarshals a task body; malformed payloads are never retried.
func decodePayload(t *asynq.Task, target any) error {
	if err := json.Unmarshal(t.Payload(), target); err != nil {
		return asynq.SkipRetry
	}
	return nil
}
