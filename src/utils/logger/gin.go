package logger

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const ginLoggerKey = "loteraa.logger"

// Sets the request scoped logger, it's later retrieved with LOG
func Middleware(tag string) gin.HandlerFunc {
	log := NewSublogger(tag)
	return func(c *gin.Context) {
		c.Set(ginLoggerKey, log.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
			"ip":     c.ClientIP(),
		}))
		c.Next()
	}
}

// Request scoped logger
func LOG(c *gin.Context) *logrus.Entry {
	v, ok := c.Get(ginLoggerKey)
	if ok {
		if entry, ok := v.(*logrus.Entry); ok {
			return entry
		}
	}
	return NewSublogger("http")
}

// Aborts the request with a generic error message and returns a logger with the error attached.
// Internal details are logged only.
func LOGE(c *gin.Context, err error, status int, message ...string) *logrus.Entry {
	msg := "Internal server error"
	if len(message) > 0 {
		msg = message[0]
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})

	entry := LOG(c).WithField("status", status)
	if err != nil {
		entry = entry.WithError(err)
	}
	return entry
}
