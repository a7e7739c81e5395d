package verify

import (
	"context"
	"time"

	"github.com/loteraa/verifier/src/utils/config"
	"github.com/loteraa/verifier/src/utils/model"
	"github.com/loteraa/verifier/src/utils/monitoring"
	"github.com/loteraa/verifier/src/utils/task"
)

// Periodically claims due jobs that weren't delivered any other way
type Poller struct {
	*task.Task

	store   *Store
	monitor monitoring.Monitor

	output chan *model.VerificationJob
}

func NewPoller(config *config.Config) (self *Poller) {
	self = new(Poller)

	self.Task = task.NewTask(config, "poller").
		WithEnable(!config.Verifier.PollerDisabled).
		WithPeriodicSubtaskFunc(config.Verifier.PollerInterval, self.poll)

	return
}

func (self *Poller) WithStore(v *Store) *Poller {
	self.store = v
	return self
}

func (self *Poller) WithMonitor(v monitoring.Monitor) *Poller {
	self.monitor = v
	return self
}

func (self *Poller) WithOutputChannel(v chan *model.VerificationJob) *Poller {
	self.output = v
	return self
}

func (self *Poller) poll() error {
	for {
		ctx, cancel := context.WithTimeout(self.Ctx, self.Config.Verifier.PollerTimeout)
		jobs, err := self.store.ClaimDueJobs(ctx, self.Config.Verifier.PollerMaxBatchSize)
		cancel()
		if err != nil {
			if self.IsStopping.Load() {
				return nil
			}
			self.Log.WithError(err).Error("Failed to poll jobs")
			self.monitor.GetReport().Verifier.Errors.Poller.Inc()
			// Retry in the next period
			return nil
		}

		self.monitor.GetReport().Verifier.State.LastPollTimestamp.Store(time.Now().Unix())

		if len(jobs) > 0 {
			self.Log.WithField("count", len(jobs)).Debug("Polled jobs")
		}

		for i, job := range jobs {
			select {
			case <-self.Ctx.Done():
				self.release(jobs[i:])
				return nil
			case self.output <- job:
				self.monitor.GetReport().Verifier.State.JobsFromPolling.Inc()
			}
		}

		if len(jobs) < self.Config.Verifier.PollerMaxBatchSize {
			return nil
		}
	}
}

// Gives back jobs that were claimed but not delivered
func (self *Poller) release(jobs []*model.VerificationJob) {
	for _, job := range jobs {
		err := self.store.ReleaseJob(self.CtxRunning, job.ID)
		if err != nil {
			self.Log.WithError(err).WithField("job_id", job.ID).Error("Failed to release job")
		}
	}
}
