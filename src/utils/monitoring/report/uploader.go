package report

import (
	"go.uber.org/atomic"
)

type UploaderErrors struct {
	InvalidRequest   atomic.Uint64 `json:"invalid_request"`
	Storage          atomic.Uint64 `json:"storage"`
	Persistence      atomic.Uint64 `json:"persistence"`
	BlobCleanup      atomic.Uint64 `json:"blob_cleanup"`
	ActivityInsert   atomic.Uint64 `json:"activity_insert"`
	NotificationSave atomic.Uint64 `json:"notification_save"`
	Panic            atomic.Uint64 `json:"panic"`
}

type UploaderState struct {
	UploadsReceived  atomic.Uint64 `json:"uploads_received"`
	UploadsAccepted  atomic.Uint64 `json:"uploads_accepted"`
	BytesStored      atomic.Uint64 `json:"bytes_stored"`
	RequestsLimited  atomic.Uint64 `json:"requests_limited"`
	JobsScheduled    atomic.Uint64 `json:"jobs_scheduled"`
	JobsNotScheduled atomic.Uint64 `json:"jobs_not_scheduled"`
}

type UploaderReport struct {
	State  UploaderState  `json:"state"`
	Errors UploaderErrors `json:"errors"`
}
