package verify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/loteraa/verifier/src/utils/config"
	"github.com/loteraa/verifier/src/utils/logger"
	"github.com/loteraa/verifier/src/utils/model"
	"github.com/loteraa/verifier/src/utils/monitoring"
	"github.com/loteraa/verifier/src/utils/task"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/xid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const VerifiedBySystem = "system"

type Outcome int

const (
	// Dataset missing or already finalized
	OutcomeSkipped Outcome = iota
	OutcomeVerified
	OutcomeRejected

	// Dataset rejected by the failure handler
	OutcomeFailed

	// Nothing was decided, job should be handed out again
	OutcomeDeferred
)

func (self Outcome) String() string {
	switch self {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeVerified:
		return "verified"
	case OutcomeRejected:
		return "rejected"
	case OutcomeFailed:
		return "failed"
	case OutcomeDeferred:
		return "deferred"
	}
	return "unknown"
}

// Decides the fate of a pending dataset and commits the reward
type Workflow struct {
	config  *config.Config
	log     *logrus.Entry
	store   *Store
	monitor monitoring.Monitor

	// Terminal notifications, published after commit. Optional.
	output chan *model.Notification
}

func NewWorkflow(config *config.Config) (self *Workflow) {
	self = new(Workflow)
	self.config = config
	self.log = logger.NewSublogger("workflow")
	return
}

func (self *Workflow) WithStore(v *Store) *Workflow {
	self.store = v
	return self
}

func (self *Workflow) WithMonitor(v monitoring.Monitor) *Workflow {
	self.monitor = v
	return self
}

func (self *Workflow) WithOutput(v chan *model.Notification) *Workflow {
	self.output = v
	return self
}

// Runs the verification of one dataset. Never fails, the outcome is recorded in the database.
func (self *Workflow) Run(ctx context.Context, datasetId, userId string) Outcome {
	state := &self.monitor.GetReport().Verifier.State
	state.VerificationsStarted.Inc()

	log := self.log.WithField("dataset_id", datasetId)

	dataset, err := self.store.GetDataset(ctx, datasetId)
	if err != nil {
		log.WithError(err).Error("Failed to get dataset")
		self.monitor.GetReport().Verifier.Errors.Workflow.Inc()
		return OutcomeDeferred
	}
	if dataset == nil {
		log.Warn("Dataset not found, skipping")
		state.VerificationsSkipped.Inc()
		return OutcomeSkipped
	}
	if dataset.Status != model.DatasetStatusPending {
		finished, err := self.store.IsFinished(ctx, dataset.ID)
		if err != nil {
			log.WithError(err).Error("Failed to check terminal notification")
			self.monitor.GetReport().Verifier.Errors.Workflow.Inc()
			return OutcomeDeferred
		}
		if !finished {
			// Compensation and the failure handler both failed earlier
			log.WithField("status", dataset.Status).Warn("Dataset finalized without a terminal notification, completing the failure")
			return self.fail(ctx, dataset.UserID, dataset.ID, dataset.Name, ErrInterrupted)
		}

		log.WithField("status", dataset.Status).Debug("Dataset already finalized, skipping")
		state.VerificationsSkipped.Inc()
		return OutcomeSkipped
	}

	if rejection := Accept(dataset.FileStructure); rejection != nil {
		var notification *model.Notification
		err = protect(func() (err error) {
			notification, err = self.reject(ctx, dataset)
			return
		})
		if err == nil {
			log.WithField("reason", rejection).Info("Dataset rejected")
			state.DatasetsRejected.Inc()
			self.publish(notification)
			return OutcomeRejected
		}
	} else {
		var result *commitResult
		err = protect(func() (err error) {
			result, err = self.commit(ctx, dataset)
			return
		})
		if err == nil {
			log.WithField("tx", result.earning.TransactionHash).Info("Dataset verified")
			state.DatasetsVerified.Inc()
			state.RewardsPaid.Add(result.earning.Amount.IntPart())
			self.afterCommit(ctx, dataset, result)
			return OutcomeVerified
		}
	}

	if errors.Is(err, ErrNotPending) {
		log.Debug("Dataset finalized concurrently, skipping")
		state.VerificationsSkipped.Inc()
		return OutcomeSkipped
	}

	log.WithError(err).Error("Verification failed")
	self.monitor.GetReport().Verifier.Errors.Workflow.Inc()

	return self.fail(ctx, dataset.UserID, dataset.ID, dataset.Name, err)
}

// Converts panics into errors
func protect(f func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: panic: %v", ErrWorkflowFailure, p)
		}
	}()

	err = f()
	if err != nil && !errors.Is(err, ErrNotPending) {
		err = fmt.Errorf("%w: %w", ErrWorkflowFailure, err)
	}
	return
}

func (self *Workflow) reject(ctx context.Context, dataset *model.Dataset) (notification *model.Notification, err error) {
	now := time.Now().UTC()
	details, err := json.Marshal(map[string]interface{}{
		"verified_by":          VerifiedBySystem,
		"verification_date":    now,
		"rejection_reason":     RejectionReasonBlank,
		"data_integrity_check": false,
		"format_validation":    false,
	})
	if err != nil {
		return
	}

	notification, err = rejectedNotification(dataset)
	if err != nil {
		return
	}

	activity, err := newActivity(dataset.UserID, model.ActivityTypeDatasetRejected,
		fmt.Sprintf("Dataset %q was rejected: %s", dataset.Name, RejectionReasonBlank),
		map[string]interface{}{
			"dataset_id":       dataset.ID,
			"rejection_reason": RejectionReasonBlank,
		})
	if err != nil {
		return
	}

	err = self.store.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Dataset{}).
			Where("id = ? AND status = ?", dataset.ID, model.DatasetStatusPending).
			Updates(map[string]interface{}{
				"status":               model.DatasetStatusRejected,
				"reward_amount":        decimal.Zero,
				"verification_details": datatypes.JSON(details),
				"updated_at":           now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotPending
		}

		err := tx.Create(notification).Error
		if err != nil {
			return err
		}

		return tx.Create(activity).Error
	})
	return
}

type commitResult struct {
	earning *model.Earning
	profile *model.Profile
}

// Unique, unpredictable identifier of the reward transfer
func transactionHash(datasetId, userId string) string {
	return crypto.Keccak256Hash([]byte(datasetId), []byte(userId), xid.New().Bytes()).Hex()
}

func (self *Workflow) commit(ctx context.Context, dataset *model.Dataset) (result *commitResult, err error) {
	now := time.Now().UTC()
	reward := decimal.NewFromInt(self.config.Verifier.RewardAmount)

	rows, columns := structureCounts(dataset.FileStructure)
	details, err := json.Marshal(map[string]interface{}{
		"verified_by":          VerifiedBySystem,
		"verification_date":    now,
		"data_integrity_check": true,
		"format_validation":    true,
		"row_count":            rows,
		"column_count":         columns,
	})
	if err != nil {
		return
	}

	result = &commitResult{
		earning: &model.Earning{
			ID:              model.NewID(),
			UserID:          dataset.UserID,
			DatasetID:       dataset.ID,
			Amount:          reward,
			Type:            model.EarningTypeDatasetVerificationReward,
			TransactionHash: transactionHash(dataset.ID, dataset.UserID),
			Status:          model.EarningStatusCompleted,
			CreatedAt:       now,
		},
		profile: new(model.Profile),
	}

	notification, err := rewardNotification(dataset, result.earning, self.config.Verifier.ExplorerUrl)
	if err != nil {
		return
	}

	err = NewSaga(self.config.Verifier.UseTransaction).
		WithOnCompensationError(func(step string, err error) {
			self.log.WithError(err).WithField("dataset_id", dataset.ID).WithField("step", step).Error("Compensation failed")
			self.monitor.GetReport().Verifier.Errors.Compensation.Inc()
		}).
		WithStep("mark verified",
			func(tx *gorm.DB) error {
				res := tx.Model(&model.Dataset{}).
					Where("id = ? AND status = ?", dataset.ID, model.DatasetStatusPending).
					Updates(map[string]interface{}{
						"status":               model.DatasetStatusVerified,
						"reward_amount":        reward,
						"verified_at":          now,
						"verification_details": datatypes.JSON(details),
						"updated_at":           now,
					})
				if res.Error != nil {
					return res.Error
				}
				if res.RowsAffected == 0 {
					return ErrNotPending
				}
				return nil
			},
			func(tx *gorm.DB) error {
				return tx.Model(&model.Dataset{}).
					Where("id = ?", dataset.ID).
					Updates(map[string]interface{}{
						"status":        model.DatasetStatusRejected,
						"reward_amount": decimal.Zero,
						"verified_at":   nil,
						"updated_at":    time.Now().UTC(),
					}).
					Error
			}).
		WithStep("insert earning",
			func(tx *gorm.DB) error {
				return tx.Create(result.earning).Error
			},
			func(tx *gorm.DB) error {
				return tx.Where("dataset_id = ?", dataset.ID).Delete(&model.Earning{}).Error
			}).
		WithStep("credit profile",
			func(tx *gorm.DB) error {
				return creditProfile(tx, dataset.UserID, reward, result.profile)
			},
			func(tx *gorm.DB) error {
				return tx.Model(&model.Profile{}).
					Where("user_id = ?", dataset.UserID).
					Updates(map[string]interface{}{
						"token_balance":           gorm.Expr("token_balance - ?", reward),
						"total_earnings":          gorm.Expr("total_earnings - ?", reward),
						"total_datasets_uploaded": gorm.Expr("total_datasets_uploaded - 1"),
						"updated_at":              time.Now().UTC(),
					}).
					Error
			}).
		WithStep("insert notification",
			func(tx *gorm.DB) error {
				return tx.Create(notification).Error
			},
			nil).
		Run(ctx, self.store.DB())
	if err != nil {
		return nil, err
	}

	return
}

// Atomically adds the reward to the user's aggregate and reads the result
func creditProfile(tx *gorm.DB, userId string, reward decimal.Decimal, out *model.Profile) error {
	now := time.Now().UTC()
	profile := &model.Profile{
		UserID:                userId,
		TokenBalance:          reward,
		TotalEarnings:         reward,
		TotalDatasetsUploaded: 1,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"token_balance":           gorm.Expr("profiles.token_balance + ?", reward),
			"total_earnings":          gorm.Expr("profiles.total_earnings + ?", reward),
			"total_datasets_uploaded": gorm.Expr("profiles.total_datasets_uploaded + 1"),
			"updated_at":              now,
		}),
	}).Create(profile).Error
	if err != nil {
		return err
	}

	return tx.Where("user_id = ?", userId).First(out).Error
}

// Best effort writes after the reward is committed
func (self *Workflow) afterCommit(ctx context.Context, dataset *model.Dataset, result *commitResult) {
	defer func() {
		if p := recover(); p != nil {
			self.log.WithField("panic", p).WithField("dataset_id", dataset.ID).Error("Panic after commit")
			self.monitor.GetReport().Verifier.Errors.BestEffortWrite.Inc()
		}
	}()

	activity, err := newActivity(dataset.UserID, model.ActivityTypeDatasetVerified,
		fmt.Sprintf("Dataset %q was verified, earned %s LOT", dataset.Name, result.earning.Amount.String()),
		map[string]interface{}{
			"dataset_id":       dataset.ID,
			"amount":           result.earning.Amount,
			"transaction_hash": result.earning.TransactionHash,
			"new_balance":      result.profile.TokenBalance,
		})
	if err == nil {
		err = self.store.DB().WithContext(ctx).Create(activity).Error
	}
	if err != nil {
		self.log.WithError(err).WithField("dataset_id", dataset.ID).Warn("Failed to save activity")
		self.monitor.GetReport().Verifier.Errors.BestEffortWrite.Inc()
	}

	var notification model.Notification
	err = self.store.DB().WithContext(ctx).
		Where("dataset_id = ? AND terminal = ?", dataset.ID, true).
		First(&notification).
		Error
	if err != nil {
		self.log.WithError(err).WithField("dataset_id", dataset.ID).Warn("Failed to read reward notification")
		return
	}
	self.publish(&notification)
}

// Guarantees the dataset ends rejected without a reward. Retried until it succeeds or the backoff gives up.
func (self *Workflow) fail(ctx context.Context, userId, datasetId, name string, cause error) Outcome {
	// Runs to completion even if the caller's context is done
	ctx = context.WithoutCancel(ctx)

	var notification *model.Notification
	err := task.NewRetry().
		WithContext(ctx).
		WithMaxElapsedTime(self.config.Verifier.BackoffMaxElapsedTime).
		WithMaxInterval(self.config.Verifier.BackoffMaxInterval).
		WithOnError(func(err error) error {
			self.log.WithError(err).WithField("dataset_id", datasetId).Warn("Failed to record verification failure, retrying")
			return err
		}).
		Run(func() (err error) {
			notification, err = self.recordFailure(ctx, userId, datasetId, name, cause)
			return
		})
	if err != nil {
		self.log.WithError(err).WithField("dataset_id", datasetId).Error("Failed to record verification failure")
		self.monitor.GetReport().Verifier.Errors.FailureHandler.Inc()
		return OutcomeDeferred
	}

	self.monitor.GetReport().Verifier.State.VerificationsFailed.Inc()
	self.publish(notification)
	return OutcomeFailed
}

// Idempotent. Returns the notification if it was created in this call.
func (self *Workflow) recordFailure(ctx context.Context, userId, datasetId, name string, cause error) (notification *model.Notification, err error) {
	now := time.Now().UTC()
	details, err := json.Marshal(map[string]interface{}{
		"verified_by": VerifiedBySystem,
		"error":       cause.Error(),
		"failed_at":   now,
	})
	if err != nil {
		return
	}

	err = self.store.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&model.Dataset{}).
			Where("id = ?", datasetId).
			Updates(map[string]interface{}{
				"status":               model.DatasetStatusRejected,
				"reward_amount":        decimal.Zero,
				"verified_at":          nil,
				"verification_details": datatypes.JSON(details),
				"updated_at":           now,
			}).
			Error
		if err != nil {
			return err
		}

		err = tx.Where("dataset_id = ?", datasetId).Delete(&model.Earning{}).Error
		if err != nil {
			return err
		}

		exists, err := hasTerminalNotification(tx, datasetId)
		if err != nil || exists {
			notification = nil
			return err
		}

		notification, err = failedNotification(userId, datasetId, name, cause)
		if err != nil {
			return err
		}
		return tx.Create(notification).Error
	})
	if err != nil {
		return nil, err
	}
	return
}

func (self *Workflow) publish(notification *model.Notification) {
	if self.output == nil || notification == nil {
		return
	}

	select {
	case self.output <- notification:
	default:
		self.log.WithField("notification_id", notification.ID).Warn("Notification queue full, not published")
	}
}
