package domain

import "context"

// GeneratedImage is one output image of a completed job
type GeneratedImage struct {
	JobID string
	URL   string
}

// Upload is a file handed to a publisher
type Upload struct {
	Filename    string
	Content     []byte
	ContentType string
}

// ImagePublisher stores an uploaded file at its destination and returns a
// human readable location for it.
type ImagePublisher interface {
	Publish(ctx context.Context, upload Upload) (string, error)
}
