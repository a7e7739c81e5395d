package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/loteraa/verifier/src/utils/analyzer"
	"github.com/loteraa/verifier/src/utils/config"
	"github.com/loteraa/verifier/src/utils/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func testConfig(useTransaction bool) *config.Config {
	conf := config.Default()
	conf.Verifier.ProcessingDelay = 0
	conf.Verifier.UseTransaction = useTransaction
	conf.Verifier.BackoffMaxElapsedTime = 2 * time.Second
	conf.Verifier.BackoffMaxInterval = 100 * time.Millisecond
	conf.Verifier.PollerInterval = 50 * time.Millisecond
	conf.Verifier.PollerTimeout = time.Second
	conf.Verifier.NumWorkers = 2
	conf.StopTimeout = 5 * time.Second
	return conf
}

func newTestDB(t *testing.T, conf *config.Config) *gorm.DB {
	db, err := model.NewMemoryConnection(context.Background(), conf)
	require.Nil(t, err)
	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func populatedCSV(rows int) string {
	var b strings.Builder
	b.WriteString("temp,humidity\n")
	for i := 0; i < rows; i++ {
		fmt.Fprintf(&b, "%d,%d\n", 20+i, 40+i)
	}
	return b.String()
}

// Stores a pending dataset analyzed from content together with its job
func insertDataset(t *testing.T, db *gorm.DB, userId, content, name string, runAfter time.Time) (*model.Dataset, *model.VerificationJob) {
	structure, err := json.Marshal(analyzer.Analyze([]byte(content), int64(len(content)), name))
	require.Nil(t, err)

	dataset := &model.Dataset{
		ID:            model.NewID(),
		UserID:        userId,
		Name:          name,
		FileType:      "text/csv",
		FileSize:      int64(len(content)),
		FileUrl:       "http://localhost/files/" + name,
		StoragePath:   userId + "/" + name,
		FileStructure: datatypes.JSON(structure),
		Status:        model.DatasetStatusPending,
		AccessType:    model.AccessTypeOpen,
		AccessPrice:   decimal.Zero,
		RewardAmount:  decimal.Zero,
	}
	job := &model.VerificationJob{
		ID:        model.NewID(),
		DatasetID: dataset.ID,
		UserID:    userId,
		State:     model.JobStatePending,
		RunAfter:  runAfter,
	}

	require.Nil(t, db.Create(dataset).Error)
	require.Nil(t, db.Create(job).Error)
	return dataset, job
}

func getDataset(t *testing.T, db *gorm.DB, id string) *model.Dataset {
	var dataset model.Dataset
	require.Nil(t, db.Where("id = ?", id).First(&dataset).Error)
	return &dataset
}

func getJob(t *testing.T, db *gorm.DB, id string) *model.VerificationJob {
	var job model.VerificationJob
	require.Nil(t, db.Where("id = ?", id).First(&job).Error)
	return &job
}

func countRows(t *testing.T, db *gorm.DB, m interface{}, query string, args ...interface{}) int64 {
	var count int64
	require.Nil(t, db.Model(m).Where(query, args...).Count(&count).Error)
	return count
}
