package verify

import (
	"time"

	"github.com/loteraa/verifier/src/utils/config"
	"github.com/loteraa/verifier/src/utils/model"
	"github.com/loteraa/verifier/src/utils/monitoring"
	"github.com/loteraa/verifier/src/utils/task"

	"github.com/gammazero/deque"
	"github.com/patrickmn/go-cache"
)

// Holds jobs until they're due, claims them and passes them to the verifier.
// Jobs are lost on restart, the poller picks them up.
type Scheduler struct {
	*task.Task

	store   *Store
	monitor monitoring.Monitor

	input chan *model.VerificationJob

	// Jobs waiting for their time, ordered by arrival
	queue deque.Deque[*model.VerificationJob]

	// Recently scheduled job ids
	seen *cache.Cache

	output chan *model.VerificationJob
}

func NewScheduler(config *config.Config) (self *Scheduler) {
	self = new(Scheduler)

	self.input = make(chan *model.VerificationJob, config.Verifier.SchedulerQueueSize)
	self.seen = cache.New(config.Verifier.DedupTTL, 2*config.Verifier.DedupTTL)

	self.Task = task.NewTask(config, "scheduler").
		WithSubtaskFunc(self.run)

	return
}

func (self *Scheduler) WithStore(v *Store) *Scheduler {
	self.store = v
	return self
}

func (self *Scheduler) WithMonitor(v monitoring.Monitor) *Scheduler {
	self.monitor = v
	return self
}

func (self *Scheduler) WithOutputChannel(v chan *model.VerificationJob) *Scheduler {
	self.output = v
	return self
}

// Non blocking. Returns false if the job couldn't be queued.
func (self *Scheduler) Schedule(job *model.VerificationJob) bool {
	if job == nil || self.IsStopping.Load() {
		return false
	}

	err := self.seen.Add(job.ID, struct{}{}, cache.DefaultExpiration)
	if err != nil {
		// Already waiting
		self.monitor.GetReport().Verifier.State.DuplicatesDropped.Inc()
		return true
	}

	select {
	case self.input <- job:
		return true
	default:
		self.seen.Delete(job.ID)
		self.monitor.GetReport().Verifier.State.SchedulerDropped.Inc()
		self.Log.WithField("job_id", job.ID).Warn("Scheduler queue full, job left for the poller")
		return false
	}
}

func (self *Scheduler) run() error {
	for {
		var due <-chan time.Time
		if self.queue.Len() > 0 {
			delay := time.Until(self.queue.Front().RunAfter)
			if delay <= 0 {
				if !self.dispatch(self.queue.PopFront()) {
					return nil
				}
				continue
			}
			due = time.After(delay)
		}

		select {
		case <-self.Ctx.Done():
			self.Log.WithField("waiting", self.queue.Len()).Debug("Scheduler stopped")
			return nil
		case job := <-self.input:
			self.queue.PushBack(job)
		case <-due:
		}
	}
}

// Returns false if the scheduler is stopping
func (self *Scheduler) dispatch(job *model.VerificationJob) bool {
	claimed, err := self.store.ClaimJob(self.Ctx, job.ID)
	if err != nil {
		if self.IsStopping.Load() {
			return false
		}
		self.Log.WithError(err).WithField("job_id", job.ID).Error("Failed to claim job")
		self.monitor.GetReport().Verifier.Errors.Claim.Inc()
		return true
	}
	if claimed == nil {
		self.Log.WithField("job_id", job.ID).Debug("Job already taken")
		return true
	}

	select {
	case <-self.Ctx.Done():
		// Hand it back, it would wait for the sweeper otherwise
		err = self.store.ReleaseJob(self.CtxRunning, claimed.ID)
		if err != nil {
			self.Log.WithError(err).WithField("job_id", job.ID).Error("Failed to release job")
		}
		return false
	case self.output <- claimed:
	}

	self.monitor.GetReport().Verifier.State.JobsFromScheduler.Inc()
	return true
}
