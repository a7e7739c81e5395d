package verify

import (
	"github.com/loteraa/verifier/src/utils/config"
	"github.com/loteraa/verifier/src/utils/model"
	"github.com/loteraa/verifier/src/utils/monitoring"
	"github.com/loteraa/verifier/src/utils/task"

	"go.uber.org/ratelimit"
)

// Runs the workflow for claimed jobs in a pool of workers
type Verifier struct {
	*task.Task

	store    *Store
	workflow *Workflow
	monitor  monitoring.Monitor
	limiter  ratelimit.Limiter

	input chan *model.VerificationJob
}

func NewVerifier(config *config.Config) (self *Verifier) {
	self = new(Verifier)

	self.limiter = ratelimit.New(config.Verifier.MaxJobsPerSecond)

	self.Task = task.NewTask(config, "verifier").
		WithWorkerPool(config.Verifier.NumWorkers, config.Verifier.WorkerQueueSize).
		WithSubtaskFunc(self.run)

	return
}

func (self *Verifier) WithStore(v *Store) *Verifier {
	self.store = v
	return self
}

func (self *Verifier) WithWorkflow(v *Workflow) *Verifier {
	self.workflow = v
	return self
}

func (self *Verifier) WithMonitor(v monitoring.Monitor) *Verifier {
	self.monitor = v
	return self
}

func (self *Verifier) WithInputChannel(v chan *model.VerificationJob) *Verifier {
	self.input = v
	return self
}

func (self *Verifier) run() error {
	for {
		select {
		case <-self.Ctx.Done():
			self.Log.Debug("Verifier stopped")
			return nil
		case job, ok := <-self.input:
			if !ok {
				self.Log.Info("Input channel closed, stopping")
				return nil
			}

			self.limiter.Take()

			if !self.SubmitToWorker(func() { self.verify(job) }) {
				self.finish(job, OutcomeDeferred)
				return nil
			}
		}
	}
}

func (self *Verifier) verify(job *model.VerificationJob) {
	// Workers finish the current job before the task stops
	outcome := self.workflow.Run(self.CtxRunning, job.DatasetID, job.UserID)

	self.Log.WithField("dataset_id", job.DatasetID).
		WithField("outcome", outcome).
		WithField("attempt", job.Attempts).
		Debug("Verification finished")

	self.finish(job, outcome)
}

// Marks the job done or hands it out again
func (self *Verifier) finish(job *model.VerificationJob, outcome Outcome) {
	err := task.NewRetry().
		WithContext(self.CtxRunning).
		WithMaxElapsedTime(self.Config.Verifier.BackoffMaxElapsedTime).
		WithMaxInterval(self.Config.Verifier.BackoffMaxInterval).
		Run(func() error {
			if outcome == OutcomeDeferred {
				return self.store.ReleaseJob(self.CtxRunning, job.ID)
			}
			return self.store.CompleteJob(self.CtxRunning, job.ID)
		})
	if err != nil {
		// Sweeper will release it eventually
		self.Log.WithError(err).WithField("job_id", job.ID).Error("Failed to update job state")
		self.monitor.GetReport().Verifier.Errors.JobUpdate.Inc()
	}
}
