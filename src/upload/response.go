package upload

import (
	"github.com/loteraa/verifier/src/utils/analyzer"
	"github.com/loteraa/verifier/src/utils/model"
)

type UploadResponse struct {
	Success      bool              `json:"success"`
	Dataset      *model.Dataset    `json:"dataset"`
	FileAnalysis *analyzer.Summary `json:"fileAnalysis"`
}

type DatasetsResponse struct {
	Datasets []*model.Dataset `json:"datasets"`
}

type NotificationsResponse struct {
	Notifications []*model.Notification `json:"notifications"`
}

type EarningsResponse struct {
	Earnings []*model.Earning `json:"earnings"`
}
