package verify

import (
	"github.com/loteraa/verifier/src/utils/config"
	"github.com/loteraa/verifier/src/utils/monitoring"
	"github.com/loteraa/verifier/src/utils/task"

	"github.com/robfig/cron"
)

// Periodically releases jobs stuck in processing and measures the backlog
type Sweeper struct {
	*task.Task

	store   *Store
	monitor monitoring.Monitor
	cron    *cron.Cron
}

func NewSweeper(config *config.Config) (self *Sweeper) {
	self = new(Sweeper)

	self.cron = cron.New()

	self.Task = task.NewTask(config, "sweeper").
		WithOnBeforeStart(func() error {
			return self.cron.AddFunc(config.Verifier.SweepSchedule, self.sweep)
		}).
		WithSubtaskFunc(self.run)

	return
}

func (self *Sweeper) WithStore(v *Store) *Sweeper {
	self.store = v
	return self
}

func (self *Sweeper) WithMonitor(v monitoring.Monitor) *Sweeper {
	self.monitor = v
	return self
}

func (self *Sweeper) run() error {
	self.cron.Start()
	<-self.StopChannel
	self.cron.Stop()
	return nil
}

func (self *Sweeper) sweep() {
	if self.IsStopping.Load() {
		return
	}

	err := self.Sweep()
	if err != nil {
		self.Log.WithError(err).Error("Sweep failed")
		self.monitor.GetReport().Verifier.Errors.Sweeper.Inc()
	}
}

func (self *Sweeper) Sweep() error {
	released, err := self.store.ReleaseStaleJobs(self.Ctx, self.Config.Verifier.RetryJobAfter)
	if err != nil {
		return err
	}
	if released > 0 {
		self.Log.WithField("count", released).Warn("Released stale jobs")
		self.monitor.GetReport().Verifier.State.JobsReleased.Add(uint64(released))
	}

	pending, err := self.store.CountPendingDatasets(self.Ctx)
	if err != nil {
		return err
	}
	self.monitor.GetReport().Verifier.State.PendingDatasets.Store(pending)

	return nil
}
