package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/loteraa/verifier/src/utils/analyzer"
	"github.com/loteraa/verifier/src/utils/config"
	"github.com/loteraa/verifier/src/utils/logger"
	"github.com/loteraa/verifier/src/utils/model"
	"github.com/loteraa/verifier/src/utils/monitoring"
	"github.com/loteraa/verifier/src/utils/storage"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

const TitleUploadSuccessful = "Dataset Upload Successful"

// Receives verification jobs right after the upload
type Scheduler interface {
	Schedule(job *model.VerificationJob) bool
}

type Output struct {
	Dataset *model.Dataset
	Summary *analyzer.Summary
}

// Accepts a dataset: analyzes and stores the file, saves the records and schedules the verification
type Uploader struct {
	config    *config.Config
	log       *logrus.Entry
	store     *Store
	storage   storage.Storage
	scheduler Scheduler
	monitor   monitoring.Monitor
}

func NewUploader(config *config.Config) (self *Uploader) {
	self = new(Uploader)
	self.config = config
	self.log = logger.NewSublogger("uploader")
	return
}

func (self *Uploader) WithStore(v *Store) *Uploader {
	self.store = v
	return self
}

func (self *Uploader) WithStorage(v storage.Storage) *Uploader {
	self.storage = v
	return self
}

// Optional, the poller picks up jobs anyway
func (self *Uploader) WithScheduler(v Scheduler) *Uploader {
	self.scheduler = v
	return self
}

func (self *Uploader) WithMonitor(v monitoring.Monitor) *Uploader {
	self.monitor = v
	return self
}

func (self *Uploader) Upload(ctx context.Context, in *Input) (out *Output, err error) {
	err = in.Validate()
	if err != nil {
		return
	}
	if int64(len(in.File.Content)) > self.config.Uploader.MaxFileSize {
		return nil, ErrFileTooLarge
	}

	log := self.log.WithField("user_id", in.UserID).WithField("file", in.File.Name)

	fileSize := int64(len(in.File.Content))
	summary := analyzer.Analyze(in.File.Content, fileSize, in.File.Name)

	// Object store
	storagePath := fmt.Sprintf("%s/%d_%s", in.UserID, time.Now().UnixMilli(), baseName(in.File.Name))
	url, err := self.storage.Put(ctx, storagePath, in.File.ContentType, bytes.NewReader(in.File.Content))
	if err != nil {
		self.monitor.GetReport().Uploader.Errors.Storage.Inc()
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	self.monitor.GetReport().Uploader.State.BytesStored.Add(uint64(fileSize))

	dataset, job, err := self.newRecords(in, summary, fileSize, url, storagePath)
	if err == nil {
		err = self.store.SaveDataset(ctx, dataset, job)
	}
	if err != nil {
		self.monitor.GetReport().Uploader.Errors.Persistence.Inc()

		// Don't leave an orphaned file
		cleanupErr := self.storage.Delete(context.WithoutCancel(ctx), storagePath)
		if cleanupErr != nil {
			log.WithError(cleanupErr).WithField("path", storagePath).Error("Failed to remove stored file")
			self.monitor.GetReport().Uploader.Errors.BlobCleanup.Inc()
		}
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	log = log.WithField("dataset_id", dataset.ID)
	log.WithField("rows", summary.RowCount).Info("Dataset saved")

	self.saveActivity(ctx, log, dataset)
	self.saveNotification(ctx, log, dataset)

	if self.scheduler != nil && self.scheduler.Schedule(job) {
		self.monitor.GetReport().Uploader.State.JobsScheduled.Inc()
	} else {
		self.monitor.GetReport().Uploader.State.JobsNotScheduled.Inc()
	}

	self.monitor.GetReport().Uploader.State.UploadsAccepted.Inc()

	return &Output{Dataset: dataset, Summary: summary}, nil
}

func (self *Uploader) newRecords(in *Input, summary *analyzer.Summary, fileSize int64, url, storagePath string) (dataset *model.Dataset, job *model.VerificationJob, err error) {
	structure, err := json.Marshal(summary)
	if err != nil {
		return
	}

	name := in.Info.Name
	if name == "" {
		name = in.File.Name
	}

	var region *string
	if in.Info.Region != "" {
		region = &in.Info.Region
	}

	now := time.Now()
	dataset = &model.Dataset{
		ID:            model.NewID(),
		UserID:        in.UserID,
		Name:          name,
		Description:   in.Info.Description,
		FileType:      in.File.ContentType,
		FileSize:      fileSize,
		FileUrl:       url,
		StoragePath:   storagePath,
		FileStructure: datatypes.JSON(structure),
		Status:        model.DatasetStatusPending,
		AccessType:    in.Info.AccessType,
		AccessPrice:   in.Info.AccessPrice,
		RewardAmount:  decimal.Zero,
		Region:        region,
		Tags:          pq.StringArray(in.Info.Tags),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	job = &model.VerificationJob{
		ID:        model.NewID(),
		DatasetID: dataset.ID,
		UserID:    in.UserID,
		State:     model.JobStatePending,
		RunAfter:  now.Add(self.config.Verifier.ProcessingDelay),
		CreatedAt: now,
		UpdatedAt: now,
	}
	return
}

func (self *Uploader) saveActivity(ctx context.Context, log *logrus.Entry, dataset *model.Dataset) {
	metadata, err := model.NewJSONB(map[string]interface{}{
		"dataset_id": dataset.ID,
		"file_size":  dataset.FileSize,
		"file_type":  dataset.FileType,
	})
	if err == nil {
		err = self.store.SaveActivity(ctx, &model.Activity{
			ID:           model.NewID(),
			UserID:       dataset.UserID,
			ActivityType: model.ActivityTypeDatasetUpload,
			Description:  fmt.Sprintf("Uploaded dataset %q", dataset.Name),
			Metadata:     metadata,
		})
	}
	if err != nil {
		log.WithError(err).Warn("Failed to save upload activity")
		self.monitor.GetReport().Uploader.Errors.ActivityInsert.Inc()
	}
}

func (self *Uploader) saveNotification(ctx context.Context, log *logrus.Entry, dataset *model.Dataset) {
	data, err := model.NewJSONB(map[string]interface{}{
		"dataset_id": dataset.ID,
		"status":     model.DatasetStatusPending,
	})
	if err == nil {
		err = self.store.SaveNotification(ctx, &model.Notification{
			ID:        model.NewID(),
			UserID:    dataset.UserID,
			DatasetID: &dataset.ID,
			Type:      model.NotificationTypeDataset,
			Title:     TitleUploadSuccessful,
			Message:   fmt.Sprintf("Your dataset %q was uploaded and is being verified.", dataset.Name),
			Data:      data,
		})
	}
	if err != nil {
		log.WithError(err).Warn("Failed to save upload notification")
		self.monitor.GetReport().Uploader.Errors.NotificationSave.Inc()
	}
}
