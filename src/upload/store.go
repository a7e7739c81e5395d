package upload

import (
	"context"
	"errors"

	"github.com/loteraa/verifier/src/utils/model"

	"gorm.io/gorm"
)

// Database access of the upload API
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Dataset and its verification job are saved atomically
func (self *Store) SaveDataset(ctx context.Context, dataset *model.Dataset, job *model.VerificationJob) error {
	return self.db.WithContext(ctx).
		Transaction(func(tx *gorm.DB) error {
			err := tx.Create(dataset).Error
			if err != nil {
				return err
			}
			return tx.Create(job).Error
		})
}

func (self *Store) SaveActivity(ctx context.Context, activity *model.Activity) error {
	return self.db.WithContext(ctx).Create(activity).Error
}

func (self *Store) SaveNotification(ctx context.Context, notification *model.Notification) error {
	return self.db.WithContext(ctx).Create(notification).Error
}

// Returns nil if not found
func (self *Store) GetDataset(ctx context.Context, id string) (*model.Dataset, error) {
	var dataset model.Dataset
	err := self.db.WithContext(ctx).
		Where("id = ?", id).
		First(&dataset).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &dataset, nil
}

// Returns nil if the user has no profile yet
func (self *Store) GetProfile(ctx context.Context, userId string) (*model.Profile, error) {
	var profile model.Profile
	err := self.db.WithContext(ctx).
		Where("user_id = ?", userId).
		First(&profile).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (self *Store) ListDatasets(ctx context.Context, userId string, page Page) (out []*model.Dataset, err error) {
	err = self.list(ctx, userId, page).Find(&out).Error
	return
}

func (self *Store) ListNotifications(ctx context.Context, userId string, page Page) (out []*model.Notification, err error) {
	err = self.list(ctx, userId, page).Find(&out).Error
	return
}

func (self *Store) ListEarnings(ctx context.Context, userId string, page Page) (out []*model.Earning, err error) {
	err = self.list(ctx, userId, page).Find(&out).Error
	return
}

// Newest first
func (self *Store) list(ctx context.Context, userId string, page Page) *gorm.DB {
	return self.db.WithContext(ctx).
		Where("user_id = ?", userId).
		Order("created_at DESC").
		Order("id").
		Limit(page.Limit).
		Offset(page.Offset)
}
