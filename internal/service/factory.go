package service

import (
	"fmt"

	"github.com/basel-ax/leonardo-publisher/internal/config"
	"github.com/basel-ax/leonardo-publisher/internal/domain"
	"github.com/basel-ax/leonardo-publisher/internal/infrastructure/github"
	"github.com/basel-ax/leonardo-publisher/internal/infrastructure/leonardo"
	"github.com/basel-ax/leonardo-publisher/internal/infrastructure/objectstore"
)

// NewImageGenerationService builds the service and its API clients from the
// application configuration.
func NewImageGenerationService(cfg *config.Config, reporter domain.Reporter) (*ImageGenerationService, error) {
	publisher, err := NewPublisher(cfg)
	if err != nil {
		return nil, err
	}

	return New(Config{
		Generator: leonardo.NewClient(cfg.Leonardo.BaseURL, cfg.Leonardo.APIKey, cfg.HTTPTimeout),
		Publisher: publisher,
		Reporter:  reporter,
		Options: Options{
			ModelID:      cfg.Leonardo.ModelID,
			Dimensions:   cfg.Dimensions(),
			PollInterval: cfg.Poll.Interval,
			MaxAttempts:  cfg.Poll.MaxAttempts,
			PollTimeout:  cfg.Poll.Timeout,
		},
	})
}

// NewPublisher returns the publisher for the configured publish target.
func NewPublisher(cfg *config.Config) (domain.ImagePublisher, error) {
	switch cfg.PublishTarget {
	case config.TargetGitHub, "":
		client, err := github.NewClient(github.Config{
			APIURL:        cfg.GitHub.APIURL,
			Token:         cfg.GitHub.Token,
			Repository:    cfg.GitHub.Repository,
			Path:          cfg.GitHub.Path,
			Branch:        cfg.GitHub.Branch,
			CommitMessage: cfg.GitHub.CommitMessage,
			Timeout:       cfg.HTTPTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create GitHub client: %w", err)
		}
		return client, nil
	case config.TargetMinio:
		store, err := objectstore.New(objectstore.Config{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			Bucket:    cfg.Minio.Bucket,
			Prefix:    cfg.Minio.Prefix,
			UseSSL:    cfg.Minio.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create object store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown publish target: %s", cfg.PublishTarget)
	}
}
