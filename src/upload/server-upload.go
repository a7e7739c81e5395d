package upload

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	. "github.com/loteraa/verifier/src/utils/logger"

	"github.com/gin-gonic/gin"
	"github.com/teivah/onecontext"
)

// Multipart overhead allowed on top of the file size
const formOverhead = 1 << 20

func (self *Server) onUpload(c *gin.Context) {
	self.monitor.GetReport().Uploader.State.UploadsReceived.Inc()

	in, err := self.parseUpload(c)
	if err == nil {
		err = in.Validate()
	}
	if err != nil {
		status := errorStatus(err)
		if status != http.StatusBadRequest {
			LOGE(c, err, status, errorMessage(err)).Error("Failed to read upload request")
			return
		}
		self.monitor.GetReport().Uploader.Errors.InvalidRequest.Inc()
		LOGE(c, err, status, errorMessage(err)).Warn("Invalid upload request")
		return
	}

	// Abort on client disconnect and on shutdown
	ctx, cancel := onecontext.Merge(c.Request.Context(), self.Ctx)
	defer cancel()

	out, err := self.uploader.Upload(ctx, in)
	if err != nil {
		status := errorStatus(err)
		if status == http.StatusBadRequest {
			self.monitor.GetReport().Uploader.Errors.InvalidRequest.Inc()
		}
		LOGE(c, err, status, errorMessage(err)).Error("Upload failed")
		return
	}

	c.JSON(http.StatusOK, &UploadResponse{
		Success:      true,
		Dataset:      out.Dataset,
		FileAnalysis: out.Summary,
	})
}

func (self *Server) parseUpload(c *gin.Context) (in *Input, err error) {
	maxFileSize := self.Config.Uploader.MaxFileSize
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxFileSize+formOverhead)

	err = c.Request.ParseMultipartForm(self.Router.MaxMultipartMemory)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, ErrFileTooLarge
		}
		LOG(c).WithError(err).Debug("Failed to parse multipart form")
		return nil, ErrMissingFields
	}

	in = &Input{
		UserID: strings.TrimSpace(c.PostForm("userId")),
		Info:   ParseDatasetInfo(c.PostForm("datasetInfo")),
	}

	header, err := c.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return in, nil
	}
	if err != nil {
		return nil, ErrMissingFields
	}
	if header.Size > maxFileSize {
		return nil, ErrFileTooLarge
	}

	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadFile, err)
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadFile, err)
	}

	in.File = &File{
		Name:        header.Filename,
		ContentType: contentType(header.Header.Get("Content-Type"), header.Filename),
		Content:     content,
	}
	return
}

// Declared type, falls back to the extension
func contentType(declared, name string) string {
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if byExtension := mime.TypeByExtension(path.Ext(name)); byExtension != "" {
		return byExtension
	}
	if declared != "" {
		return declared
	}
	return "application/octet-stream"
}
