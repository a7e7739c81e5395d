package report

import (
	"go.uber.org/atomic"
)

type VerifierErrors struct {
	Claim           atomic.Uint64 `json:"claim"`
	Poller          atomic.Uint64 `json:"poller"`
	Notifier        atomic.Uint64 `json:"notifier"`
	Workflow        atomic.Uint64 `json:"workflow"`
	Compensation    atomic.Uint64 `json:"compensation"`
	FailureHandler  atomic.Uint64 `json:"failure_handler"`
	JobUpdate       atomic.Uint64 `json:"job_update"`
	BestEffortWrite atomic.Uint64 `json:"best_effort_write"`
	Sweeper         atomic.Uint64 `json:"sweeper"`
}

type VerifierState struct {
	// Where the jobs came from
	JobsFromScheduler     atomic.Uint64 `json:"jobs_from_scheduler"`
	JobsFromNotifications atomic.Uint64 `json:"jobs_from_notifications"`
	JobsFromPolling       atomic.Uint64 `json:"jobs_from_polling"`
	DuplicatesDropped     atomic.Uint64 `json:"duplicates_dropped"`
	SchedulerDropped      atomic.Uint64 `json:"scheduler_dropped"`

	// Outcomes
	VerificationsStarted atomic.Uint64 `json:"verifications_started"`
	DatasetsVerified     atomic.Uint64 `json:"datasets_verified"`
	DatasetsRejected     atomic.Uint64 `json:"datasets_rejected"`
	VerificationsFailed  atomic.Uint64 `json:"verifications_failed"`
	VerificationsSkipped atomic.Uint64 `json:"verifications_skipped"`
	RewardsPaid          atomic.Int64  `json:"rewards_paid"`

	// Sweeper
	JobsReleased    atomic.Uint64 `json:"jobs_released"`
	PendingDatasets atomic.Int64  `json:"pending_datasets"`

	LastPollTimestamp             atomic.Int64   `json:"last_poll_timestamp"`
	AverageVerificationsPerMinute atomic.Float64 `json:"average_verifications_per_minute"`
}

type VerifierReport struct {
	State  VerifierState  `json:"state"`
	Errors VerifierErrors `json:"errors"`
}
