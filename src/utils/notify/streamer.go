package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/loteraa/verifier/src/utils/config"
	"github.com/loteraa/verifier/src/utils/task"

	"github.com/jackc/pgx"
)

// Streams data from postgres notification channel
// puts on output channel
type Streamer struct {
	*task.Task

	pool       *pgx.ConnPool
	connection *pgx.Conn

	channelName string

	Output chan string
}

func NewStreamer(config *config.Config, name string) (self *Streamer) {
	self = new(Streamer)

	self.Output = make(chan string)

	self.Task = task.NewTask(config, name).
		WithSubtaskFunc(self.run).
		WithOnBeforeStart(self.connect).
		WithOnAfterStop(self.disconnect)

	return
}

func (self *Streamer) WithNotificationChannelName(name string) *Streamer {
	self.channelName = name
	return self
}

func (self *Streamer) WithCapacity(size int) *Streamer {
	self.Output = make(chan string, size)
	return self
}

func (self *Streamer) disconnect() {
	if self.pool == nil {
		return
	}
	if self.connection != nil {
		self.pool.Release(self.connection)
	}
	self.pool.Close()
}

func (self *Streamer) connect() (err error) {
	db := self.Config.Database
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		db.Host,
		db.Port,
		db.User,
		db.Password,
		db.Name,
		db.SslMode)

	config, err := pgx.ParseDSN(dsn)
	if err != nil {
		return
	}

	self.pool, err = pgx.NewConnPool(pgx.ConnPoolConfig{ConnConfig: config, MaxConnections: 1})
	if err != nil {
		return
	}

	self.connection, err = self.pool.Acquire()
	if err != nil {
		return
	}

	return self.connection.Listen(self.channelName)
}

// Replaces a dead connection, retries until the task is stopped
func (self *Streamer) reconnect() error {
	return task.NewRetry().
		WithContext(self.Ctx).
		WithMaxInterval(10 * time.Second).
		WithOnError(func(err error) error {
			self.Log.WithError(err).Warn("Failed to reconnect, retrying")
			return err
		}).
		Run(func() (err error) {
			if self.connection != nil {
				self.pool.Release(self.connection)
				self.connection = nil
			}

			self.connection, err = self.pool.Acquire()
			if err != nil {
				return
			}
			return self.connection.Listen(self.channelName)
		})
}

func (self *Streamer) run() (err error) {
	// Output is closed only by the sender
	defer close(self.Output)

	defer func() {
		if self.connection == nil {
			return
		}
		err := self.connection.Unlisten(self.channelName)
		if err != nil {
			self.Log.WithError(err).Debug("Failed to unlisten channel")
		}
	}()

	for {
		// Waits for notification unless task gets stopped
		msg, err := self.connection.WaitForNotification(self.Ctx)
		if errors.Is(err, context.Canceled) || self.IsStopping.Load() {
			// Stop() was called
			return nil
		}

		if err != nil {
			self.Log.WithError(err).Error("Failed to wait for notification")
			if !self.connection.IsAlive() {
				err = self.reconnect()
				if err != nil {
					return err
				}
			}
			continue
		}

		// Send notification to output channel
		select {
		case <-self.Ctx.Done():
			return nil
		case self.Output <- msg.Payload:
		}
	}
}
