package verify

import (
	"github.com/loteraa/verifier/src/utils/config"
	"github.com/loteraa/verifier/src/utils/model"
	"github.com/loteraa/verifier/src/utils/monitoring"
	"github.com/loteraa/verifier/src/utils/task"

	"gorm.io/gorm"
)

// Job delivery and verification. Upload handler feeds the Scheduler.
type Controller struct {
	*task.Task

	Scheduler *Scheduler
	Workflow  *Workflow
}

// Notifications are published to the channel when it isn't nil
func NewController(config *config.Config, db *gorm.DB, monitor monitoring.Monitor, notifications chan *model.Notification) (self *Controller) {
	self = new(Controller)

	store := NewStore(db)

	// Claimed jobs, from the scheduler and the poller
	jobs := make(chan *model.VerificationJob)

	self.Workflow = NewWorkflow(config).
		WithStore(store).
		WithMonitor(monitor).
		WithOutput(notifications)

	self.Scheduler = NewScheduler(config).
		WithStore(store).
		WithMonitor(monitor).
		WithOutputChannel(jobs)

	// LISTEN/NOTIFY exists only in postgres
	notifier := NewNotifier(config).
		WithScheduler(self.Scheduler).
		WithMonitor(monitor)

	poller := NewPoller(config).
		WithStore(store).
		WithMonitor(monitor).
		WithOutputChannel(jobs)

	verifier := NewVerifier(config).
		WithStore(store).
		WithWorkflow(self.Workflow).
		WithMonitor(monitor).
		WithInputChannel(jobs)

	sweeper := NewSweeper(config).
		WithStore(store).
		WithMonitor(monitor)

	self.Task = task.NewTask(config, "verification").
		WithSubtask(verifier.Task).
		WithSubtask(self.Scheduler.Task).
		WithConditionalSubtask(model.IsPostgres(db) && !config.Verifier.NotifierDisabled, notifier.Task).
		WithSubtask(poller.Task).
		WithSubtask(sweeper.Task)

	return
}
