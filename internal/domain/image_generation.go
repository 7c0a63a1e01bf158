package domain

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Generation statuses reported by the generation service. Anything other than
// StatusPending is terminal.
const (
	StatusPending  = "PENDING"
	StatusComplete = "COMPLETE"
	StatusFailed   = "FAILED"
)

// Dimensions is one requested aspect ratio in pixels.
type Dimensions struct {
	Width  int
	Height int
}

// ParseDimensions parses a "WIDTHxHEIGHT" string such as "1224x512".
func ParseDimensions(s string) (Dimensions, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return Dimensions{}, fmt.Errorf("invalid dimensions %q: want WIDTHxHEIGHT", s)
	}

	width, err := strconv.Atoi(strings.TrimSpace(w))
	if err != nil || width <= 0 {
		return Dimensions{}, fmt.Errorf("invalid width in %q", s)
	}

	height, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil || height <= 0 {
		return Dimensions{}, fmt.Errorf("invalid height in %q", s)
	}

	return Dimensions{Width: width, Height: height}, nil
}

func (d Dimensions) String() string {
	return fmt.Sprintf("%dx%d", d.Width, d.Height)
}

// GenerationRequest represents the parameters for one generation submission
type GenerationRequest struct {
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	ModelID string `json:"modelId"`
	Prompt  string `json:"prompt"`
}

// GenerationJob is a submitted generation identified by an opaque job id
type GenerationJob struct {
	ID         string
	Dimensions Dimensions
}

// GenerationStatus is the state of a job as reported by the generation service
type GenerationStatus struct {
	ID     string
	Status string
	Images []GeneratedImage
}

// Pending reports whether the job is still being produced.
func (s *GenerationStatus) Pending() bool {
	return s.Status == StatusPending
}

// ImageGenerator defines the generation service operations the pipeline needs
type ImageGenerator interface {
	// CreateGeneration submits one request and returns the created job
	CreateGeneration(ctx context.Context, req GenerationRequest) (*GenerationJob, error)

	// GetGeneration fetches the current status of a job
	GetGeneration(ctx context.Context, jobID string) (*GenerationStatus, error)

	// DownloadImage fetches the bytes behind a generated image URL
	DownloadImage(ctx context.Context, url string) ([]byte, error)
}
