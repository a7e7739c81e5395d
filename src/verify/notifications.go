package verify

import (
	"fmt"

	"github.com/loteraa/verifier/src/utils/model"
)

const (
	TitleDatasetRejected           = "Dataset Rejected"
	TitleDatasetVerified           = "Dataset Verified & Reward Earned"
	TitleDatasetVerificationFailed = "Dataset Verification Failed"
)

func newTerminalNotification(userId, datasetId string, kind model.NotificationType, title, message string, data map[string]interface{}) (*model.Notification, error) {
	payload, err := model.NewJSONB(data)
	if err != nil {
		return nil, err
	}

	return &model.Notification{
		ID:        model.NewID(),
		UserID:    userId,
		DatasetID: &datasetId,
		Type:      kind,
		Title:     title,
		Message:   message,
		Data:      payload,
		Terminal:  true,
	}, nil
}

func rejectedNotification(dataset *model.Dataset) (*model.Notification, error) {
	return newTerminalNotification(dataset.UserID, dataset.ID,
		model.NotificationTypeDataset,
		TitleDatasetRejected,
		fmt.Sprintf("Your dataset %q was rejected because it contains no usable data. Upload a file with at least one populated row to earn rewards.", dataset.Name),
		map[string]interface{}{
			"dataset_id":       dataset.ID,
			"status":           model.DatasetStatusRejected,
			"rejection_reason": RejectionReasonBlank,
		})
}

func rewardNotification(dataset *model.Dataset, earning *model.Earning, explorerUrl string) (*model.Notification, error) {
	return newTerminalNotification(dataset.UserID, dataset.ID,
		model.NotificationTypeReward,
		TitleDatasetVerified,
		fmt.Sprintf("Your dataset %q has been verified. You earned %s LOT tokens.", dataset.Name, earning.Amount.String()),
		map[string]interface{}{
			"dataset_id":       dataset.ID,
			"status":           model.DatasetStatusVerified,
			"amount":           earning.Amount,
			"transaction_hash": earning.TransactionHash,
			"explorer_url":     explorerUrl + earning.TransactionHash,
		})
}

func failedNotification(userId, datasetId, name string, cause error) (*model.Notification, error) {
	subject := "your dataset"
	if name != "" {
		subject = fmt.Sprintf("your dataset %q", name)
	}
	return newTerminalNotification(userId, datasetId,
		model.NotificationTypeDataset,
		TitleDatasetVerificationFailed,
		fmt.Sprintf("We couldn't verify %s. Please try uploading it again, contact support if the problem persists.", subject),
		map[string]interface{}{
			"dataset_id": datasetId,
			"status":     model.DatasetStatusRejected,
			"error":      cause.Error(),
		})
}

func newActivity(userId, activityType, description string, metadata map[string]interface{}) (*model.Activity, error) {
	payload, err := model.NewJSONB(metadata)
	if err != nil {
		return nil, err
	}
	return &model.Activity{
		ID:           model.NewID(),
		UserID:       userId,
		ActivityType: activityType,
		Description:  description,
		Metadata:     payload,
	}, nil
}
