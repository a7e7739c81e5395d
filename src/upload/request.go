package upload

import (
	"encoding/json"
	"path"
	"strings"

	"github.com/loteraa/verifier/src/utils/model"

	"github.com/shopspring/decimal"
)

// Metadata sent as JSON in the datasetInfo form field
type DatasetInfo struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	AccessType  model.AccessType `json:"accessType"`
	AccessPrice decimal.Decimal  `json:"accessPrice"`
	Region      string           `json:"region"`
	Tags        []string         `json:"tags"`
}

// Malformed input yields empty metadata. Missing fields get defaults.
func ParseDatasetInfo(raw string) (info DatasetInfo) {
	if strings.TrimSpace(raw) != "" {
		err := json.Unmarshal([]byte(raw), &info)
		if err != nil {
			info = DatasetInfo{}
		}
	}

	info.Name = strings.TrimSpace(info.Name)
	info.Region = strings.TrimSpace(info.Region)

	if !info.AccessType.IsValid() {
		info.AccessType = model.AccessTypeOpen
	}

	if info.AccessPrice.IsNegative() {
		info.AccessPrice = decimal.Zero
	}

	tags := make([]string, 0, len(info.Tags))
	for _, tag := range info.Tags {
		tag = strings.TrimSpace(tag)
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	info.Tags = tags

	return
}

type File struct {
	Name        string
	ContentType string
	Content     []byte
}

type Input struct {
	UserID string
	File   *File
	Info   DatasetInfo
}

func (self *Input) Validate() error {
	if self.File == nil || strings.TrimSpace(self.UserID) == "" {
		return ErrMissingFields
	}
	if self.UserID == "." || self.UserID == ".." || strings.ContainsAny(self.UserID, "/\\") {
		return ErrInvalidUserId
	}
	return nil
}

// Last element of the client supplied file name
func baseName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	switch name {
	case ".", "..", "/", "":
		return "file"
	}
	return name
}

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 500
)

// Pagination of the list endpoints
type Page struct {
	Limit  int `form:"limit"`
	Offset int `form:"offset"`
}

func (self *Page) Normalize() {
	if self.Limit <= 0 {
		self.Limit = DefaultPageLimit
	}
	if self.Limit > MaxPageLimit {
		self.Limit = MaxPageLimit
	}
	if self.Offset < 0 {
		self.Offset = 0
	}
}
