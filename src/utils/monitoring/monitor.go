package monitoring

import (
	"math"
	"net/http"
	"time"

	"github.com/loteraa/verifier/src/utils/config"
	"github.com/loteraa/verifier/src/utils/monitoring/report"
	"github.com/loteraa/verifier/src/utils/task"

	"github.com/gammazero/deque"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Stores and computes monitor counters
type VerifierMonitor struct {
	*task.Task

	Report    report.Report
	collector *Collector

	historySize int

	// Number of finished verifications, sampled every minute
	finished *deque.Deque[uint64]

	// Poller is considered dead after this long without a poll, 0 disables the check
	maxPollDelay time.Duration
}

func NewMonitor(config *config.Config) (self *VerifierMonitor) {
	self = new(VerifierMonitor)

	self.Report = report.Report{
		Run:            &report.RunReport{},
		Uploader:       &report.UploaderReport{},
		Verifier:       &report.VerifierReport{},
		RedisPublisher: &report.RedisPublisherReport{},
	}

	// Initialization
	self.Report.Run.State.StartTimestamp.Store(time.Now().Unix())

	self.collector = NewCollector().WithMonitor(self)

	self.historySize = 30
	self.finished = deque.New[uint64](self.historySize)

	self.Task = task.NewTask(config, "monitor").
		WithPeriodicSubtaskFunc(time.Minute, self.monitorVerifications)
	return
}

func (self *VerifierMonitor) WithMaxHistorySize(v int) *VerifierMonitor {
	self.historySize = v
	self.finished = deque.New[uint64](v)
	return self
}

func (self *VerifierMonitor) WithMaxPollDelay(v time.Duration) *VerifierMonitor {
	self.maxPollDelay = v
	return self
}

func round(f float64) float64 {
	return math.Round(f*100) / 100
}

func (self *VerifierMonitor) numFinished() uint64 {
	state := &self.Report.Verifier.State
	return state.DatasetsVerified.Load() + state.DatasetsRejected.Load() + state.VerificationsFailed.Load()
}

// Measure verification speed
func (self *VerifierMonitor) monitorVerifications() (err error) {
	self.finished.PushBack(self.numFinished())
	if self.finished.Len() > self.historySize {
		self.finished.PopFront()
	}
	if self.finished.Len() < 2 {
		return
	}

	minutes := float64(self.finished.Len() - 1)
	delta := float64(self.finished.Back() - self.finished.Front())
	self.Report.Verifier.State.AverageVerificationsPerMinute.Store(round(delta / minutes))
	return
}

func (self *VerifierMonitor) GetReport() *report.Report {
	return &self.Report
}

func (self *VerifierMonitor) GetPrometheusCollector() (collector prometheus.Collector) {
	return self.collector
}

func (self *VerifierMonitor) IsOK() bool {
	if self.maxPollDelay <= 0 {
		return true
	}

	last := self.Report.Verifier.State.LastPollTimestamp.Load()
	if last == 0 {
		// No poll yet, give the poller time to start
		last = self.Report.Run.State.StartTimestamp.Load()
	}
	return time.Since(time.Unix(last, 0)) < self.maxPollDelay
}

func (self *VerifierMonitor) OnGetState(c *gin.Context) {
	self.Report.Run.State.UpForSeconds.Store(uint64(time.Now().Unix() - self.Report.Run.State.StartTimestamp.Load()))

	c.JSON(http.StatusOK, &self.Report)
}

func (self *VerifierMonitor) OnGetHealth(c *gin.Context) {
	if self.IsOK() {
		c.Status(http.StatusOK)
	} else {
		c.Status(http.StatusServiceUnavailable)
	}
}
