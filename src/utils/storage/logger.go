package storage

import (
	"github.com/loteraa/verifier/src/utils/logger"

	"github.com/sirupsen/logrus"
)

// Transforms all resty logs to trace
type restyLogger struct {
	log *logrus.Entry
}

func newRestyLogger() *restyLogger {
	return &restyLogger{log: logger.NewSublogger("storage-resty")}
}

func (self *restyLogger) Errorf(format string, v ...interface{}) {
	self.log.Tracef(format, v...)
}

func (self *restyLogger) Warnf(format string, v ...interface{}) {
	self.log.Tracef(format, v...)
}

func (self *restyLogger) Debugf(format string, v ...interface{}) {
	self.log.Tracef(format, v...)
}
