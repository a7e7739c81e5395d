package verify

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/loteraa/verifier/src/utils/config"
	"github.com/loteraa/verifier/src/utils/model"
	"github.com/loteraa/verifier/src/utils/monitoring"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/atomic"
	"gorm.io/gorm"
)

func TestWorkflowTestSuite(t *testing.T) {
	suite.Run(t, &WorkflowTestSuite{useTransaction: true})
}

func TestWorkflowCompensationTestSuite(t *testing.T) {
	suite.Run(t, &WorkflowTestSuite{useTransaction: false})
}

type WorkflowTestSuite struct {
	suite.Suite
	useTransaction bool

	ctx           context.Context
	cancel        context.CancelFunc
	config        *config.Config
	db            *gorm.DB
	monitor       *monitoring.VerifierMonitor
	notifications chan *model.Notification
	workflow      *Workflow
}

func (s *WorkflowTestSuite) SetupTest() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 30*time.Second)
	s.config = testConfig(s.useTransaction)
	s.db = newTestDB(s.T(), s.config)
	s.monitor = monitoring.NewMonitor(s.config)
	s.notifications = make(chan *model.Notification, 10)
	s.workflow = NewWorkflow(s.config).
		WithStore(NewStore(s.db)).
		WithMonitor(s.monitor).
		WithOutput(s.notifications)
}

func (s *WorkflowTestSuite) TearDownTest() {
	s.cancel()
}

func (s *WorkflowTestSuite) run(dataset *model.Dataset) Outcome {
	return s.workflow.Run(s.ctx, dataset.ID, dataset.UserID)
}

func (s *WorkflowTestSuite) terminalNotifications(datasetId string) (out []model.Notification) {
	err := s.db.Where("dataset_id = ? AND terminal = ?", datasetId, true).Find(&out).Error
	s.Require().Nil(err)
	return
}

func (s *WorkflowTestSuite) details(dataset *model.Dataset) (out map[string]interface{}) {
	s.Require().Nil(json.Unmarshal(dataset.VerificationDetails, &out))
	return
}

func (s *WorkflowTestSuite) profile(userId string) *model.Profile {
	var profile model.Profile
	err := s.db.Where("user_id = ?", userId).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	s.Require().Nil(err)
	return &profile
}

// Makes every profile upsert fail
func (s *WorkflowTestSuite) breakProfiles() {
	err := s.db.Callback().Create().Before("gorm:create").Register("test:break_profiles", func(db *gorm.DB) {
		if db.Statement.Table == model.TableProfile {
			db.AddError(errors.New("profile store unavailable"))
		}
	})
	s.Require().Nil(err)
}

func (s *WorkflowTestSuite) fixProfiles() {
	s.Require().Nil(s.db.Callback().Create().Remove("test:break_profiles"))
}

func (s *WorkflowTestSuite) TestVerified() {
	dataset, _ := insertDataset(s.T(), s.db, "user-1", populatedCSV(10), "sensors.csv", time.Now())

	s.Require().Equal(OutcomeVerified, s.run(dataset))

	dataset = getDataset(s.T(), s.db, dataset.ID)
	s.Require().Equal(model.DatasetStatusVerified, dataset.Status)
	s.Require().Equal("250", dataset.RewardAmount.String())
	s.Require().NotNil(dataset.VerifiedAt)

	details := s.details(dataset)
	s.Require().Equal(VerifiedBySystem, details["verified_by"])
	s.Require().Equal(true, details["data_integrity_check"])
	s.Require().Equal(true, details["format_validation"])
	s.Require().EqualValues(10, details["row_count"])
	s.Require().EqualValues(2, details["column_count"])

	var earnings []model.Earning
	s.Require().Nil(s.db.Where("dataset_id = ?", dataset.ID).Find(&earnings).Error)
	s.Require().Len(earnings, 1)
	s.Require().Equal("250", earnings[0].Amount.String())
	s.Require().Equal(model.EarningTypeDatasetVerificationReward, earnings[0].Type)
	s.Require().Equal(model.EarningStatusCompleted, earnings[0].Status)
	s.Require().Regexp(regexp.MustCompile("^0x[0-9a-f]{64}$"), earnings[0].TransactionHash)

	profile := s.profile("user-1")
	s.Require().NotNil(profile)
	s.Require().Equal("250", profile.TokenBalance.String())
	s.Require().Equal("250", profile.TotalEarnings.String())
	s.Require().EqualValues(1, profile.TotalDatasetsUploaded)

	notifications := s.terminalNotifications(dataset.ID)
	s.Require().Len(notifications, 1)
	s.Require().Equal(model.NotificationTypeReward, notifications[0].Type)
	s.Require().Equal(TitleDatasetVerified, notifications[0].Title)

	var data map[string]interface{}
	s.Require().Nil(json.Unmarshal(notifications[0].Data.Bytes, &data))
	s.Require().Equal(earnings[0].TransactionHash, data["transaction_hash"])
	s.Require().Equal(s.config.Verifier.ExplorerUrl+earnings[0].TransactionHash, data["explorer_url"])

	s.Require().EqualValues(1, countRows(s.T(), s.db, &model.Activity{}, "user_id = ? AND activity_type = ?", "user-1", model.ActivityTypeDatasetVerified))

	select {
	case published := <-s.notifications:
		s.Require().Equal(notifications[0].ID, published.ID)
	default:
		s.Fail("notification not published")
	}

	state := &s.monitor.GetReport().Verifier.State
	s.Require().EqualValues(1, state.DatasetsVerified.Load())
	s.Require().EqualValues(250, state.RewardsPaid.Load())
}

func (s *WorkflowTestSuite) assertRejected(dataset *model.Dataset) {
	s.Require().Equal(OutcomeRejected, s.run(dataset))

	dataset = getDataset(s.T(), s.db, dataset.ID)
	s.Require().Equal(model.DatasetStatusRejected, dataset.Status)
	s.Require().True(dataset.RewardAmount.IsZero())
	s.Require().Nil(dataset.VerifiedAt)

	details := s.details(dataset)
	s.Require().Equal(RejectionReasonBlank, details["rejection_reason"])
	s.Require().Equal(false, details["data_integrity_check"])
	s.Require().Equal(false, details["format_validation"])
	s.Require().Equal(VerifiedBySystem, details["verified_by"])

	s.Require().Zero(countRows(s.T(), s.db, &model.Earning{}, "dataset_id = ?", dataset.ID))
	s.Require().Nil(s.profile(dataset.UserID))

	notifications := s.terminalNotifications(dataset.ID)
	s.Require().Len(notifications, 1)
	s.Require().Equal(model.NotificationTypeDataset, notifications[0].Type)
	s.Require().Equal(TitleDatasetRejected, notifications[0].Title)

	s.Require().EqualValues(1, countRows(s.T(), s.db, &model.Activity{}, "user_id = ? AND activity_type = ?", dataset.UserID, model.ActivityTypeDatasetRejected))
}

func (s *WorkflowTestSuite) TestRejectHeaderOnly() {
	dataset, _ := insertDataset(s.T(), s.db, "user-1", "temp,humidity\n", "empty.csv", time.Now())
	s.assertRejected(dataset)
}

func (s *WorkflowTestSuite) TestRejectEmptyCells() {
	dataset, _ := insertDataset(s.T(), s.db, "user-1", "a,b\n,\n,\n,\n", "cells.csv", time.Now())
	s.assertRejected(dataset)
}

func (s *WorkflowTestSuite) TestRejectMalformedJSON() {
	dataset, _ := insertDataset(s.T(), s.db, "user-1", `{"temp": [1, 2`, "broken.json", time.Now())
	s.assertRejected(dataset)
}

func (s *WorkflowTestSuite) TestMidCommitFailure() {
	// A verified dataset whose reward must survive
	first, _ := insertDataset(s.T(), s.db, "user-1", populatedCSV(3), "first.csv", time.Now())
	s.Require().Equal(OutcomeVerified, s.run(first))

	s.breakProfiles()
	defer s.fixProfiles()

	dataset, _ := insertDataset(s.T(), s.db, "user-1", populatedCSV(10), "second.csv", time.Now())
	s.Require().Equal(OutcomeFailed, s.run(dataset))

	dataset = getDataset(s.T(), s.db, dataset.ID)
	s.Require().Equal(model.DatasetStatusRejected, dataset.Status)
	s.Require().True(dataset.RewardAmount.IsZero())
	s.Require().Nil(dataset.VerifiedAt)

	details := s.details(dataset)
	s.Require().Contains(details["error"], "profile store unavailable")
	s.Require().NotEmpty(details["failed_at"])

	s.Require().Zero(countRows(s.T(), s.db, &model.Earning{}, "dataset_id = ?", dataset.ID))
	s.Require().EqualValues(1, countRows(s.T(), s.db, &model.Earning{}, "user_id = ?", "user-1"))

	profile := s.profile("user-1")
	s.Require().Equal("250", profile.TokenBalance.String())
	s.Require().EqualValues(1, profile.TotalDatasetsUploaded)

	notifications := s.terminalNotifications(dataset.ID)
	s.Require().Len(notifications, 1)
	s.Require().Equal(model.NotificationTypeDataset, notifications[0].Type)
	s.Require().Equal(TitleDatasetVerificationFailed, notifications[0].Title)

	s.Require().EqualValues(1, s.monitor.GetReport().Verifier.State.VerificationsFailed.Load())
}

func (s *WorkflowTestSuite) TestPanicIsRecovered() {
	panicked := atomic.NewBool(false)
	err := s.db.Callback().Create().Before("gorm:create").Register("test:panic", func(db *gorm.DB) {
		if db.Statement.Table == model.TableNotification && panicked.CompareAndSwap(false, true) {
			panic("notification store exploded")
		}
	})
	s.Require().Nil(err)
	defer s.db.Callback().Create().Remove("test:panic")

	dataset, _ := insertDataset(s.T(), s.db, "user-1", populatedCSV(5), "sensors.csv", time.Now())
	s.Require().Equal(OutcomeFailed, s.run(dataset))
	s.Require().True(panicked.Load())

	dataset = getDataset(s.T(), s.db, dataset.ID)
	s.Require().Equal(model.DatasetStatusRejected, dataset.Status)
	s.Require().True(dataset.RewardAmount.IsZero())
	s.Require().Contains(s.details(dataset)["error"], "notification store exploded")
	s.Require().Zero(countRows(s.T(), s.db, &model.Earning{}, "dataset_id = ?", dataset.ID))

	notifications := s.terminalNotifications(dataset.ID)
	s.Require().Len(notifications, 1)
	s.Require().Equal(TitleDatasetVerificationFailed, notifications[0].Title)
}

func (s *WorkflowTestSuite) TestProfileAggregation() {
	const n = 4
	for i := 0; i < n; i++ {
		dataset, _ := insertDataset(s.T(), s.db, "user-1", populatedCSV(i+1), "sensors.csv", time.Now())
		s.Require().Equal(OutcomeVerified, s.run(dataset))
	}

	// Other users don't interfere
	other, _ := insertDataset(s.T(), s.db, "user-2", populatedCSV(1), "other.csv", time.Now())
	s.Require().Equal(OutcomeVerified, s.run(other))

	profile := s.profile("user-1")
	s.Require().Equal("1000", profile.TokenBalance.String())
	s.Require().Equal("1000", profile.TotalEarnings.String())
	s.Require().EqualValues(n, profile.TotalDatasetsUploaded)
	s.Require().EqualValues(n, countRows(s.T(), s.db, &model.Earning{}, "user_id = ?", "user-1"))
}

func (s *WorkflowTestSuite) TestRerunIsNoop() {
	verified, _ := insertDataset(s.T(), s.db, "user-1", populatedCSV(2), "a.csv", time.Now())
	rejected, _ := insertDataset(s.T(), s.db, "user-1", "a\n", "b.csv", time.Now())

	s.Require().Equal(OutcomeVerified, s.run(verified))
	s.Require().Equal(OutcomeRejected, s.run(rejected))

	s.Require().Equal(OutcomeSkipped, s.run(verified))
	s.Require().Equal(OutcomeSkipped, s.run(rejected))

	s.Require().Len(s.terminalNotifications(verified.ID), 1)
	s.Require().Len(s.terminalNotifications(rejected.ID), 1)
	s.Require().EqualValues(1, countRows(s.T(), s.db, &model.Earning{}, "dataset_id = ?", verified.ID))
	s.Require().Equal("250", s.profile("user-1").TokenBalance.String())
}

func (s *WorkflowTestSuite) TestMissingDataset() {
	s.Require().Equal(OutcomeSkipped, s.workflow.Run(s.ctx, model.NewID(), "user-1"))
	s.Require().EqualValues(1, s.monitor.GetReport().Verifier.State.VerificationsSkipped.Load())
}

func (s *WorkflowTestSuite) TestFailureHandlerIsIdempotent() {
	dataset, _ := insertDataset(s.T(), s.db, "user-1", populatedCSV(2), "a.csv", time.Now())
	cause := errors.New("boom")

	s.Require().Equal(OutcomeFailed, s.workflow.fail(s.ctx, dataset.UserID, dataset.ID, dataset.Name, cause))
	s.Require().Equal(OutcomeFailed, s.workflow.fail(s.ctx, dataset.UserID, dataset.ID, dataset.Name, cause))

	s.Require().Len(s.terminalNotifications(dataset.ID), 1)
	s.Require().Equal(model.DatasetStatusRejected, getDataset(s.T(), s.db, dataset.ID).Status)

	// Only the first call publishes
	s.Require().Len(s.notifications, 1)
}

func (s *WorkflowTestSuite) TestFailureHandlerRemovesEarning() {
	dataset, _ := insertDataset(s.T(), s.db, "user-1", populatedCSV(2), "a.csv", time.Now())
	s.Require().Equal(OutcomeVerified, s.run(dataset))

	notification, err := s.workflow.recordFailure(s.ctx, dataset.UserID, dataset.ID, dataset.Name, errors.New("late failure"))
	s.Require().Nil(err)
	s.Require().Nil(notification, "terminal notification already exists")

	dataset = getDataset(s.T(), s.db, dataset.ID)
	s.Require().Equal(model.DatasetStatusRejected, dataset.Status)
	s.Require().True(dataset.RewardAmount.IsZero())
	s.Require().Zero(countRows(s.T(), s.db, &model.Earning{}, "dataset_id = ?", dataset.ID))
	s.Require().Len(s.terminalNotifications(dataset.ID), 1)
}

func (s *WorkflowTestSuite) TestNeverStuckPending() {
	s.breakProfiles()
	defer s.fixProfiles()

	contents := map[string]string{
		"ok.csv":      populatedCSV(3),
		"blank.csv":   "a,b\n",
		"broken.json": "[",
	}
	for name, content := range contents {
		dataset, _ := insertDataset(s.T(), s.db, "user-1", content, name, time.Now())
		s.run(dataset)
		dataset = getDataset(s.T(), s.db, dataset.ID)
		s.Require().True(dataset.Status.IsTerminal(), name)
		s.Require().Len(s.terminalNotifications(dataset.ID), 1, name)
	}
}

func (s *WorkflowTestSuite) TestEarningFailure() {
	first, _ := insertDataset(s.T(), s.db, "user-1", populatedCSV(3), "first.csv", time.Now())
	s.Require().Equal(OutcomeVerified, s.run(first))

	err := s.db.Callback().Create().Before("gorm:create").Register("test:break_earnings", func(db *gorm.DB) {
		if db.Statement.Table == model.TableEarning {
			db.AddError(errors.New("earning store unavailable"))
		}
	})
	s.Require().Nil(err)
	defer s.db.Callback().Create().Remove("test:break_earnings")

	dataset, _ := insertDataset(s.T(), s.db, "user-1", populatedCSV(10), "second.csv", time.Now())
	s.Require().Equal(OutcomeFailed, s.run(dataset))

	dataset = getDataset(s.T(), s.db, dataset.ID)
	s.Require().Equal(model.DatasetStatusRejected, dataset.Status)
	s.Require().True(dataset.RewardAmount.IsZero())
	s.Require().Nil(dataset.VerifiedAt)
	s.Require().Contains(s.details(dataset)["error"], "earning store unavailable")
	s.Require().Zero(countRows(s.T(), s.db, &model.Earning{}, "dataset_id = ?", dataset.ID))

	// Profile keeps the first reward only
	profile := s.profile("user-1")
	s.Require().Equal("250", profile.TokenBalance.String())
	s.Require().Equal("250", profile.TotalEarnings.String())
	s.Require().EqualValues(1, profile.TotalDatasetsUploaded)

	notifications := s.terminalNotifications(dataset.ID)
	s.Require().Len(notifications, 1)
	s.Require().Equal(TitleDatasetVerificationFailed, notifications[0].Title)
}

func (s *WorkflowTestSuite) TestConcurrentRewardsForOneUser() {
	const n = 8
	datasets := make([]*model.Dataset, n)
	for i := range datasets {
		datasets[i], _ = insertDataset(s.T(), s.db, "user-1", populatedCSV(i+1), "sensors.csv", time.Now())
	}

	outcomes := make([]Outcome, n)
	var wg sync.WaitGroup
	for i := range datasets {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i] = s.run(datasets[i])
		}(i)
	}
	wg.Wait()

	for _, outcome := range outcomes {
		s.Require().Equal(OutcomeVerified, outcome)
	}

	profile := s.profile("user-1")
	s.Require().Equal("2000", profile.TokenBalance.String())
	s.Require().Equal("2000", profile.TotalEarnings.String())
	s.Require().EqualValues(n, profile.TotalDatasetsUploaded)
	s.Require().EqualValues(n, countRows(s.T(), s.db, &model.Earning{}, "user_id = ?", "user-1"))
}

// Profile credit fails and afterwards every dataset update fails too,
// so neither compensation nor the failure handler can finish.
func (s *WorkflowTestSuite) TestResumesAfterFailedFailureHandler() {
	datasetsBroken := atomic.NewBool(false)

	err := s.db.Callback().Create().Before("gorm:create").Register("test:break_profiles_then_datasets", func(db *gorm.DB) {
		if db.Statement.Table == model.TableProfile {
			datasetsBroken.Store(true)
			db.AddError(errors.New("profile store unavailable"))
		}
	})
	s.Require().Nil(err)
	err = s.db.Callback().Update().Before("gorm:update").Register("test:break_datasets", func(db *gorm.DB) {
		if db.Statement.Table == model.TableDataset && datasetsBroken.Load() {
			db.AddError(errors.New("dataset store unavailable"))
		}
	})
	s.Require().Nil(err)

	dataset, _ := insertDataset(s.T(), s.db, "user-1", populatedCSV(5), "sensors.csv", time.Now())
	s.Require().Equal(OutcomeDeferred, s.run(dataset))
	s.Require().Empty(s.terminalNotifications(dataset.ID))

	s.Require().Nil(s.db.Callback().Create().Remove("test:break_profiles_then_datasets"))
	s.Require().Nil(s.db.Callback().Update().Remove("test:break_datasets"))

	// The released job is delivered again
	outcome := s.run(dataset)

	dataset = getDataset(s.T(), s.db, dataset.ID)
	s.Require().True(dataset.Status.IsTerminal())
	s.Require().Len(s.terminalNotifications(dataset.ID), 1)

	if s.useTransaction {
		// Nothing was written by the first run
		s.Require().Equal(OutcomeVerified, outcome)
		s.Require().Equal(model.DatasetStatusVerified, dataset.Status)
		s.Require().EqualValues(1, countRows(s.T(), s.db, &model.Earning{}, "dataset_id = ?", dataset.ID))
		return
	}

	// First run left the dataset verified, the second one completes the failure
	s.Require().Equal(OutcomeFailed, outcome)
	s.Require().Equal(model.DatasetStatusRejected, dataset.Status)
	s.Require().True(dataset.RewardAmount.IsZero())
	s.Require().Nil(dataset.VerifiedAt)
	s.Require().Contains(s.details(dataset)["error"], ErrInterrupted.Error())
	s.Require().Zero(countRows(s.T(), s.db, &model.Earning{}, "dataset_id = ?", dataset.ID))
	s.Require().Nil(s.profile("user-1"))
}

func TestTransactionHash(t *testing.T) {
	a := transactionHash("dataset", "user")
	b := transactionHash("dataset", "user")
	require.Len(t, a, 66)
	require.NotEqual(t, a, b)
}

func TestOutcomeString(t *testing.T) {
	require.Equal(t, "verified", OutcomeVerified.String())
	require.Equal(t, "deferred", OutcomeDeferred.String())
	require.Equal(t, "unknown", Outcome(42).String())
}
