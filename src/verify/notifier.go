package verify

import (
	"encoding/json"
	"time"

	"github.com/loteraa/verifier/src/utils/config"
	"github.com/loteraa/verifier/src/utils/model"
	"github.com/loteraa/verifier/src/utils/monitoring"
	"github.com/loteraa/verifier/src/utils/notify"
	"github.com/loteraa/verifier/src/utils/task"
)

// Postgres channel filled by the verification_jobs trigger
const JobsChannelName = "verification_jobs_pending"

type jobNotification struct {
	ID        string    `json:"id"`
	DatasetID string    `json:"dataset_id"`
	UserID    string    `json:"user_id"`
	RunAfter  time.Time `json:"run_after"`
}

// Passes jobs announced by the database to the scheduler
type Notifier struct {
	*task.Task

	streamer  *notify.Streamer
	scheduler *Scheduler
	monitor   monitoring.Monitor
}

func NewNotifier(config *config.Config) (self *Notifier) {
	self = new(Notifier)

	self.streamer = notify.NewStreamer(config, "job-streamer").
		WithNotificationChannelName(JobsChannelName).
		WithCapacity(10)

	self.Task = task.NewTask(config, "notifier").
		WithSubtask(self.streamer.Task).
		WithSubtaskFunc(self.run)

	return
}

func (self *Notifier) WithScheduler(v *Scheduler) *Notifier {
	self.scheduler = v
	return self
}

func (self *Notifier) WithMonitor(v monitoring.Monitor) *Notifier {
	self.monitor = v
	return self
}

func (self *Notifier) run() error {
	for {
		select {
		case <-self.Ctx.Done():
			self.Log.Debug("Stop passing job notifications")
			return nil
		case msg, ok := <-self.streamer.Output:
			if !ok {
				self.Log.Info("Streamer closed, stopping")
				return nil
			}

			job, err := parseJobNotification(msg)
			if err != nil {
				self.Log.WithError(err).WithField("payload", msg).Error("Failed to parse job notification")
				self.monitor.GetReport().Verifier.Errors.Notifier.Inc()
				continue
			}

			if self.scheduler.Schedule(job) {
				self.monitor.GetReport().Verifier.State.JobsFromNotifications.Inc()
			}
		}
	}
}

func parseJobNotification(msg string) (job *model.VerificationJob, err error) {
	var n jobNotification
	err = json.Unmarshal([]byte(msg), &n)
	if err != nil {
		return
	}

	return &model.VerificationJob{
		ID:        n.ID,
		DatasetID: n.DatasetID,
		UserID:    n.UserID,
		State:     model.JobStatePending,
		RunAfter:  n.RunAfter,
	}, nil
}
