package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskFinalizeScheduled = "crm:finalize:scheduled"

const TaskFinalizeForce = "crm:finalize:force"

const TaskRetentionSweep = "crm:retention:sweep"

type FinalizeForcePayload struct {
	DateKey string `json:"dateKey"`
}

func NewFinalizeScheduledTask() *asynq.Task {
	return asynq.NewTask(TaskFinalizeScheduled, nil)
}

func NewFinalizeForceTask(payload FinalizeForcePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskFinalizeForce, data), nil
}

func ParseFinalizeForcePayload(task *asynq.Task) (FinalizeForcePayload, error) {
	var payload FinalizeForcePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return FinalizeForcePayload{}, err
	}
	return payload, nil
}

func NewRetentionSweepTask() *asynq.Task {
	return asynq.NewTask(TaskRetentionSweep, nil)
}
