package upload

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// Client error, nothing was stored
	ErrInvalidRequest = errors.New("invalid request")

	// Object store failed, nothing was stored
	ErrStorage = errors.New("failed to store file")

	// Record store failed, the stored file was removed
	ErrPersistence = errors.New("failed to save dataset")

	// Parsed upload couldn't be read back, a server side failure
	ErrReadFile = errors.New("failed to read uploaded file")

	ErrMissingFields = fmt.Errorf("%w: file and userId are required", ErrInvalidRequest)
	ErrFileTooLarge  = fmt.Errorf("%w: file is too large", ErrInvalidRequest)
	ErrInvalidUserId = fmt.Errorf("%w: invalid userId", ErrInvalidRequest)
)

// Fixed messages returned to the client
func errorMessage(err error) string {
	switch {
	case errors.Is(err, ErrMissingFields):
		return "File and userId are required"
	case errors.Is(err, ErrFileTooLarge):
		return "File is too large"
	case errors.Is(err, ErrInvalidUserId):
		return "Invalid userId"
	case errors.Is(err, ErrInvalidRequest):
		return "Invalid request"
	case errors.Is(err, ErrStorage):
		return "Failed to upload file"
	case errors.Is(err, ErrPersistence):
		return "Failed to save dataset information"
	}
	return "Internal server error"
}

func errorStatus(err error) int {
	if errors.Is(err, ErrInvalidRequest) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
