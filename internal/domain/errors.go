package domain

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyPrompt       = errors.New("please enter a prompt for image generation")
	ErrMalformedResponse = errors.New("malformed response")
	ErrNoImages          = errors.New("no images found")
	ErrPollTimeout       = errors.New("timed out waiting for generation")
	ErrGenerationFailed  = errors.New("image generation failed")
	ErrNoImagesFound     = errors.New("no images were found or an error occurred")
)

// APIError is returned when a remote API answers with an unexpected status.
// Body holds the raw response body so it can be shown to the user as is.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status code: %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: unexpected status code: %d, body: %s", e.Op, e.StatusCode, e.Body)
}
