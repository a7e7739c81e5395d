package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"
)

type metric struct {
	desc      *prometheus.Desc
	valueType prometheus.ValueType
	value     func() float64
}

// Exposes the report counters to Prometheus
type Collector struct {
	monitor *VerifierMonitor
	metrics []metric
}

func NewCollector() *Collector {
	return new(Collector)
}

func (self *Collector) WithMonitor(m *VerifierMonitor) *Collector {
	self.monitor = m

	labels := prometheus.Labels{
		"app": "verifier",
	}

	counter := func(name string, v *atomic.Uint64) {
		self.metrics = append(self.metrics, metric{
			desc:      prometheus.NewDesc(name, "", nil, labels),
			valueType: prometheus.CounterValue,
			value:     func() float64 { return float64(v.Load()) },
		})
	}
	gauge := func(name string, f func() float64) {
		self.metrics = append(self.metrics, metric{
			desc:      prometheus.NewDesc(name, "", nil, labels),
			valueType: prometheus.GaugeValue,
			value:     f,
		})
	}

	uploader := m.Report.Uploader
	counter("uploads_received", &uploader.State.UploadsReceived)
	counter("uploads_accepted", &uploader.State.UploadsAccepted)
	counter("upload_bytes_stored", &uploader.State.BytesStored)
	counter("upload_requests_limited", &uploader.State.RequestsLimited)
	counter("upload_jobs_scheduled", &uploader.State.JobsScheduled)
	counter("upload_jobs_not_scheduled", &uploader.State.JobsNotScheduled)
	counter("upload_invalid_request_error", &uploader.Errors.InvalidRequest)
	counter("upload_storage_error", &uploader.Errors.Storage)
	counter("upload_persistence_error", &uploader.Errors.Persistence)
	counter("upload_blob_cleanup_error", &uploader.Errors.BlobCleanup)
	counter("upload_activity_insert_error", &uploader.Errors.ActivityInsert)
	counter("upload_notification_save_error", &uploader.Errors.NotificationSave)
	counter("upload_panic_error", &uploader.Errors.Panic)

	verifier := m.Report.Verifier
	counter("jobs_from_scheduler", &verifier.State.JobsFromScheduler)
	counter("jobs_from_notifications", &verifier.State.JobsFromNotifications)
	counter("jobs_from_polling", &verifier.State.JobsFromPolling)
	counter("jobs_duplicates_dropped", &verifier.State.DuplicatesDropped)
	counter("jobs_scheduler_dropped", &verifier.State.SchedulerDropped)
	counter("verifications_started", &verifier.State.VerificationsStarted)
	counter("datasets_verified", &verifier.State.DatasetsVerified)
	counter("datasets_rejected", &verifier.State.DatasetsRejected)
	counter("verifications_failed", &verifier.State.VerificationsFailed)
	counter("verifications_skipped", &verifier.State.VerificationsSkipped)
	counter("jobs_released", &verifier.State.JobsReleased)
	gauge("rewards_paid", func() float64 { return float64(m.Report.Verifier.State.RewardsPaid.Load()) })
	gauge("pending_datasets", func() float64 { return float64(m.Report.Verifier.State.PendingDatasets.Load()) })
	gauge("average_verifications_per_minute", func() float64 {
		return m.Report.Verifier.State.AverageVerificationsPerMinute.Load()
	})
	counter("verifier_claim_error", &verifier.Errors.Claim)
	counter("verifier_poller_error", &verifier.Errors.Poller)
	counter("verifier_notifier_error", &verifier.Errors.Notifier)
	counter("verifier_workflow_error", &verifier.Errors.Workflow)
	counter("verifier_compensation_error", &verifier.Errors.Compensation)
	counter("verifier_failure_handler_error", &verifier.Errors.FailureHandler)
	counter("verifier_job_update_error", &verifier.Errors.JobUpdate)
	counter("verifier_best_effort_write_error", &verifier.Errors.BestEffortWrite)
	counter("verifier_sweeper_error", &verifier.Errors.Sweeper)

	publisher := m.Report.RedisPublisher
	counter("redis_messages_published", &publisher.State.MessagesPublished)
	counter("redis_publish_error", &publisher.Errors.Publish)
	counter("redis_persistent_failure_error", &publisher.Errors.PersistentFailure)

	return self
}

func (self *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range self.metrics {
		ch <- m.desc
	}
}

// Collect implements required collect function for all promehteus collectors
func (self *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, m := range self.metrics {
		ch <- prometheus.MustNewConstMetric(m.desc, m.valueType, m.value())
	}
}
