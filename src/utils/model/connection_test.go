package model

import (
	"context"
	"testing"
	"time"

	"github.com/loteraa/verifier/src/utils/config"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func TestModelTestSuite(t *testing.T) {
	suite.Run(t, new(ModelTestSuite))
}

type ModelTestSuite struct {
	suite.Suite
	ctx    context.Context
	cancel context.CancelFunc
	db     *gorm.DB
}

func (s *ModelTestSuite) SetupTest() {
	var err error
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 30*time.Second)
	s.db, err = NewMemoryConnection(s.ctx, config.Default())
	require.Nil(s.T(), err)
}

func (s *ModelTestSuite) TearDownTest() {
	db, err := s.db.DB()
	require.Nil(s.T(), err)
	db.Close()
	s.cancel()
}

func (s *ModelTestSuite) newDataset() *Dataset {
	region := "eu"
	return &Dataset{
		ID:            NewID(),
		UserID:        "user-1",
		Name:          "sensors.csv",
		FileType:      "text/csv",
		FileSize:      123,
		FileStructure: datatypes.JSON(`{"columns":["temp"],"rowCount":1}`),
		Status:        DatasetStatusPending,
		AccessType:    AccessTypePaid,
		AccessPrice:   decimal.RequireFromString("1.5"),
		RewardAmount:  decimal.Zero,
		Region:        &region,
		Tags:          pq.StringArray{"iot", "weather"},
	}
}

func (s *ModelTestSuite) TestDatasetRoundTrip() {
	dataset := s.newDataset()
	require.Nil(s.T(), s.db.WithContext(s.ctx).Create(dataset).Error)

	var loaded Dataset
	require.Nil(s.T(), s.db.WithContext(s.ctx).First(&loaded, "id = ?", dataset.ID).Error)
	require.Equal(s.T(), DatasetStatusPending, loaded.Status)
	require.Equal(s.T(), AccessTypePaid, loaded.AccessType)
	require.True(s.T(), decimal.RequireFromString("1.5").Equal(loaded.AccessPrice))
	require.True(s.T(), loaded.RewardAmount.IsZero())
	require.Equal(s.T(), []string{"iot", "weather"}, []string(loaded.Tags))
	require.Equal(s.T(), "eu", *loaded.Region)
	require.JSONEq(s.T(), `{"columns":["temp"],"rowCount":1}`, string(loaded.FileStructure))
	require.Nil(s.T(), loaded.VerifiedAt)
	require.Empty(s.T(), loaded.VerificationDetails)
}

func (s *ModelTestSuite) TestOneEarningPerDataset() {
	dataset := s.newDataset()
	require.Nil(s.T(), s.db.Create(dataset).Error)

	earning := func() *Earning {
		return &Earning{
			ID:              NewID(),
			UserID:          dataset.UserID,
			DatasetID:       dataset.ID,
			Amount:          decimal.NewFromInt(250),
			Type:            EarningTypeDatasetVerificationReward,
			TransactionHash: "0x01",
			Status:          EarningStatusCompleted,
		}
	}

	require.Nil(s.T(), s.db.Create(earning()).Error)
	require.NotNil(s.T(), s.db.Create(earning()).Error)
}

func (s *ModelTestSuite) TestOneTerminalNotificationPerDataset() {
	datasetId := NewID()
	notification := func(terminal bool) *Notification {
		data, err := NewJSONB(map[string]interface{}{"dataset_id": datasetId})
		require.Nil(s.T(), err)
		return &Notification{
			ID:        NewID(),
			UserID:    "user-1",
			DatasetID: &datasetId,
			Type:      NotificationTypeDataset,
			Title:     "title",
			Message:   "message",
			Data:      data,
			Terminal:  terminal,
		}
	}

	// Any number of non terminal notifications
	require.Nil(s.T(), s.db.Create(notification(false)).Error)
	require.Nil(s.T(), s.db.Create(notification(false)).Error)

	require.Nil(s.T(), s.db.Create(notification(true)).Error)
	require.NotNil(s.T(), s.db.Create(notification(true)).Error)

	var loaded []Notification
	require.Nil(s.T(), s.db.Where("dataset_id = ?", datasetId).Order("created_at").Find(&loaded).Error)
	require.Len(s.T(), loaded, 3)
	require.JSONEq(s.T(), `{"dataset_id":"`+datasetId+`"}`, string(loaded[0].Data.Bytes))
}

func (s *ModelTestSuite) TestJobState() {
	job := &VerificationJob{
		ID:        NewID(),
		DatasetID: NewID(),
		UserID:    "user-1",
		State:     JobStatePending,
		RunAfter:  time.Now(),
	}
	require.Nil(s.T(), s.db.Create(job).Error)

	var loaded VerificationJob
	require.Nil(s.T(), s.db.First(&loaded, "id = ?", job.ID).Error)
	require.Equal(s.T(), JobStatePending, loaded.State)
	require.False(s.T(), IsPostgres(s.db))
}
