package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/loteraa/verifier/src/utils/build_info"
	"github.com/loteraa/verifier/src/utils/config"
	"github.com/loteraa/verifier/src/utils/logger"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

var ErrAlreadyExists = errors.New("object already exists")

// Supabase Storage REST API
type Supabase struct {
	client *resty.Client
	config *config.Storage
	log    *logrus.Entry
}

func NewSupabase(config *config.Storage) (self *Supabase) {
	self = new(Supabase)
	self.config = config
	self.log = logger.NewSublogger("supabase-storage")

	self.client = resty.New().
		SetBaseURL(strings.TrimSuffix(config.SupabaseUrl, "/")+"/storage/v1").
		SetTimeout(config.RequestTimeout).
		SetHeader("User-Agent", "loteraa/verifier/"+build_info.Version).
		SetAuthToken(config.ServiceKey).
		SetHeader("apikey", config.ServiceKey).
		SetRetryCount(2).
		SetRetryWaitTime(50*time.Millisecond).
		SetLogger(newRestyLogger()).
		AddRetryCondition(self.onRetryCondition).
		OnAfterResponse(self.onStatusToError)

	return
}

func (self *Supabase) objectPath(path string) string {
	return "/object/" + escapePath(self.config.Bucket) + "/" + escapePath(path)
}

func (self *Supabase) PublicUrl(path string) string {
	return strings.TrimSuffix(self.config.SupabaseUrl, "/") + "/storage/v1/object/public/" +
		escapePath(self.config.Bucket) + "/" + escapePath(path)
}

func (self *Supabase) Put(ctx context.Context, path, contentType string, data io.Reader) (url string, err error) {
	path, err = cleanPath(path)
	if err != nil {
		return
	}

	// Body is buffered, so retries can resend it
	body, err := io.ReadAll(data)
	if err != nil {
		return
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}

	resp, err := self.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", contentType).
		SetHeader("x-upsert", "false").
		SetBody(body).
		Post(self.objectPath(path))
	if resp != nil && resp.StatusCode() == http.StatusConflict {
		return "", ErrAlreadyExists
	}
	if err != nil {
		return
	}

	return self.PublicUrl(path), nil
}

func (self *Supabase) Delete(ctx context.Context, path string) (err error) {
	path, err = cleanPath(path)
	if err != nil {
		return
	}

	resp, err := self.client.R().
		SetContext(ctx).
		Delete(self.objectPath(path))
	if resp != nil && resp.StatusCode() == http.StatusNotFound {
		// Already gone
		return nil
	}
	return
}

// Returns true if request should be retried
func (self *Supabase) onRetryCondition(resp *resty.Response, err error) bool {
	if resp == nil {
		return false
	}
	return resp.StatusCode() >= 500 || resp.StatusCode() == http.StatusTooManyRequests
}

func (self *Supabase) onStatusToError(c *resty.Client, resp *resty.Response) error {
	// Non-success status code turns into an error
	if resp.IsSuccess() {
		return nil
	}
	self.log.WithField("status", resp.StatusCode()).
		WithField("resp", string(resp.Body())).
		WithField("url", resp.Request.URL).
		Debug("Storage request failed")
	return fmt.Errorf("unexpected status: %s", resp.Status())
}
