package service

import (
	"net/http"

	"github.com/loteraa/verifier/src/upload"
	"github.com/loteraa/verifier/src/utils/config"
	"github.com/loteraa/verifier/src/utils/model"
	"github.com/loteraa/verifier/src/utils/monitoring"
	"github.com/loteraa/verifier/src/utils/publisher"
	"github.com/loteraa/verifier/src/utils/storage"
	"github.com/loteraa/verifier/src/utils/task"
	"github.com/loteraa/verifier/src/verify"
)

type Controller struct {
	*task.Task

	api *upload.Server
}

// Upload API, verification pipeline and monitoring in one process
func NewController(config *config.Config) (self *Controller, err error) {
	self = new(Controller)

	self.Task = task.NewTask(config, "controller")

	// SQL database
	db, err := model.NewConnection(self.Ctx, config, "verifier")
	if err != nil {
		return
	}

	// Object store
	blobs, err := storage.NewStorage(config)
	if err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			sqlDB.Close()
		}
		return
	}

	// Monitoring
	monitor := monitoring.NewMonitor(config).
		WithMaxHistorySize(30)
	if !config.Verifier.PollerDisabled {
		monitor = monitor.WithMaxPollDelay(3*config.Verifier.PollerInterval + config.Verifier.PollerTimeout)
	}

	server := monitoring.NewServer(config).
		WithMonitor(monitor)

	// Terminal notifications go to Redis
	var notifications chan *model.Notification
	var redisPublisher *publisher.RedisPublisher[*model.Notification]
	if config.Redis.Enabled {
		notifications = make(chan *model.Notification, config.Redis.MaxQueueSize)
		redisPublisher = publisher.NewRedisPublisher[*model.Notification](config, "notification-publisher").
			WithInputChannel(notifications).
			WithMonitor(monitor)
	}

	verification := verify.NewController(config, db, monitor, notifications)

	self.api = upload.NewServer(config).
		WithDB(db).
		WithStorage(blobs).
		WithScheduler(verification.Scheduler).
		WithMonitor(monitor)

	// Subtasks stop in this order, the API goes first
	self.Task = self.Task.
		WithSubtask(self.api.Task).
		WithSubtask(verification.Task).
		WithSubtask(monitor.Task).
		WithSubtask(server.Task).
		WithOnAfterStop(func() {
			sqlDB, err := db.DB()
			if err == nil {
				sqlDB.Close()
			}
		})

	if redisPublisher != nil {
		self.Task = self.Task.WithSubtask(redisPublisher.Task)
	}

	return
}

// Upload API handler, without the listener
func (self *Controller) Handler() http.Handler {
	return self.api.Handler()
}
