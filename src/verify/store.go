package verify

import (
	"context"
	"errors"
	"time"

	"github.com/loteraa/verifier/src/utils/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Database access used by the verification
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (self *Store) DB() *gorm.DB {
	return self.db
}

// Returns nil if the dataset doesn't exist
func (self *Store) GetDataset(ctx context.Context, id string) (dataset *model.Dataset, err error) {
	dataset = new(model.Dataset)
	err = self.db.WithContext(ctx).
		Where("id = ?", id).
		First(dataset).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return
}

// Moves a single pending job to processing. Returns false if it was already taken.
func (self *Store) ClaimJob(ctx context.Context, id string) (job *model.VerificationJob, err error) {
	now := time.Now()
	res := self.db.WithContext(ctx).
		Model(&model.VerificationJob{}).
		Where("id = ? AND state = ?", id, model.JobStatePending).
		Updates(map[string]interface{}{
			"state":      model.JobStateProcessing,
			"attempts":   gorm.Expr("attempts + 1"),
			"updated_at": now,
		})
	if res.Error != nil || res.RowsAffected == 0 {
		return nil, res.Error
	}

	job = new(model.VerificationJob)
	err = self.db.WithContext(ctx).
		Where("id = ?", id).
		First(job).
		Error
	return
}

// Claims up to limit pending jobs that are due
func (self *Store) ClaimDueJobs(ctx context.Context, limit int) (jobs []*model.VerificationJob, err error) {
	err = self.db.WithContext(ctx).
		Transaction(func(tx *gorm.DB) error {
			query := tx.Where("state = ? AND run_after <= ?", model.JobStatePending, time.Now()).
				Order("run_after ASC").
				Limit(limit)
			if model.IsPostgres(tx) {
				// Concurrent pollers get disjoint batches
				query = query.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
			}

			err := query.Find(&jobs).Error
			if err != nil || len(jobs) == 0 {
				return err
			}

			ids := make([]string, len(jobs))
			for i, job := range jobs {
				ids[i] = job.ID
				job.State = model.JobStateProcessing
				job.Attempts++
			}

			return tx.Model(&model.VerificationJob{}).
				Where("id IN ? AND state = ?", ids, model.JobStatePending).
				Updates(map[string]interface{}{
					"state":      model.JobStateProcessing,
					"attempts":   gorm.Expr("attempts + 1"),
					"updated_at": time.Now(),
				}).
				Error
		})
	if err != nil {
		return nil, err
	}
	return
}

func (self *Store) CompleteJob(ctx context.Context, id string) error {
	return self.setJobState(ctx, id, model.JobStateDone)
}

// Hands the job out again
func (self *Store) ReleaseJob(ctx context.Context, id string) error {
	return self.setJobState(ctx, id, model.JobStatePending)
}

func (self *Store) setJobState(ctx context.Context, id string, state model.JobState) error {
	return self.db.WithContext(ctx).
		Model(&model.VerificationJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"state":      state,
			"updated_at": time.Now(),
		}).
		Error
}

// Jobs stuck in processing, e.g. after a crash, become pending again
func (self *Store) ReleaseStaleJobs(ctx context.Context, olderThan time.Duration) (int64, error) {
	now := time.Now()
	res := self.db.WithContext(ctx).
		Model(&model.VerificationJob{}).
		Where("state = ? AND updated_at < ?", model.JobStateProcessing, now.Add(-olderThan)).
		Updates(map[string]interface{}{
			"state":      model.JobStatePending,
			"run_after":  now,
			"updated_at": now,
		})
	return res.RowsAffected, res.Error
}

func (self *Store) CountPendingDatasets(ctx context.Context) (count int64, err error) {
	err = self.db.WithContext(ctx).
		Model(&model.Dataset{}).
		Where("status = ?", model.DatasetStatusPending).
		Count(&count).
		Error
	return
}

// Every finished verification leaves exactly one terminal notification
func (self *Store) IsFinished(ctx context.Context, datasetId string) (bool, error) {
	return hasTerminalNotification(self.db.WithContext(ctx), datasetId)
}

func hasTerminalNotification(tx *gorm.DB, datasetId string) (bool, error) {
	var count int64
	err := tx.Model(&model.Notification{}).
		Where("dataset_id = ? AND terminal = ?", datasetId, true).
		Count(&count).
		Error
	return count > 0, err
}
