package config

import (
	"time"

	"github.com/spf13/viper"
)

type Verifier struct {
	// Time between the upload and the start of the verification
	ProcessingDelay time.Duration

	// Tokens credited for a verified dataset
	RewardAmount int64

	// Transaction hash is appended to this URL
	ExplorerUrl string

	// Run the commit sequence in one database transaction.
	// Otherwise failed steps are undone with compensating writes.
	UseTransaction bool

	// Number of workers running verifications in parallel
	NumWorkers int

	// Max jobs waiting for a worker
	WorkerQueueSize int

	// Max verifications started per second
	MaxJobsPerSecond int

	// Capacity of the in-process scheduler queue
	SchedulerQueueSize int

	// Switch off listening for database notifications
	NotifierDisabled bool

	// Disable polling mechanism
	PollerDisabled bool

	// How often to poll the database
	PollerInterval time.Duration

	// How long does it wait for the query response
	PollerTimeout time.Duration

	// Maximum number of jobs claimed in one query
	PollerMaxBatchSize int

	// Jobs processing longer than this are handed out again
	RetryJobAfter time.Duration

	// How long a delivered job id is remembered to drop duplicates
	DedupTTL time.Duration

	// Cron spec of the stale job sweeper
	SweepSchedule string

	// Backoff of the failure handler, 0 is no limit
	BackoffMaxElapsedTime time.Duration
	BackoffMaxInterval    time.Duration
}

func setVerifierDefaults(v *viper.Viper) {
	v.SetDefault("Verifier.ProcessingDelay", "3s")
	v.SetDefault("Verifier.RewardAmount", "250")
	v.SetDefault("Verifier.ExplorerUrl", "https://explorer.loteraa.xyz/tx/")
	v.SetDefault("Verifier.UseTransaction", "true")
	v.SetDefault("Verifier.NumWorkers", "10")
	v.SetDefault("Verifier.WorkerQueueSize", "50")
	v.SetDefault("Verifier.MaxJobsPerSecond", "100")
	v.SetDefault("Verifier.SchedulerQueueSize", "1000")
	v.SetDefault("Verifier.NotifierDisabled", "false")
	v.SetDefault("Verifier.PollerDisabled", "false")
	v.SetDefault("Verifier.PollerInterval", "10s")
	v.SetDefault("Verifier.PollerTimeout", "30s")
	v.SetDefault("Verifier.PollerMaxBatchSize", "100")
	v.SetDefault("Verifier.RetryJobAfter", "10m")
	v.SetDefault("Verifier.DedupTTL", "5m")
	v.SetDefault("Verifier.SweepSchedule", "@every 1m")
	v.SetDefault("Verifier.BackoffMaxElapsedTime", "2m")
	v.SetDefault("Verifier.BackoffMaxInterval", "10s")
}
