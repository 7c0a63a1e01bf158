package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/basel-ax/leonardo-publisher/internal/domain"
)

// Options holds the generation and polling parameters of a run
type Options struct {
	ModelID      string
	Dimensions   []domain.Dimensions
	PollInterval time.Duration
	MaxAttempts  int
	PollTimeout  time.Duration
}

// Config wires the service to its collaborators
type Config struct {
	Generator domain.ImageGenerator
	Publisher domain.ImagePublisher
	Reporter  domain.Reporter
	Options   Options
}

// ImageGenerationService runs the generate, fetch and publish pipeline
type ImageGenerationService struct {
	generator domain.ImageGenerator
	publisher domain.ImagePublisher
	reporter  domain.Reporter
	opts      Options

	// one pipeline in flight per process
	mu sync.Mutex

	newRunID func() string
	now      func() time.Time
}

// New creates a new image generation service
func New(cfg Config) (*ImageGenerationService, error) {
	if cfg.Generator == nil {
		return nil, errors.New("missing image generator")
	}
	if cfg.Publisher == nil {
		return nil, errors.New("missing image publisher")
	}
	if cfg.Options.ModelID == "" {
		return nil, errors.New("missing model id")
	}
	if len(cfg.Options.Dimensions) == 0 {
		return nil, errors.New("missing dimensions")
	}
	if cfg.Options.PollInterval <= 0 {
		cfg.Options.PollInterval = 10 * time.Second
	}
	if cfg.Options.MaxAttempts <= 0 {
		cfg.Options.MaxAttempts = 60
	}
	if cfg.Options.PollTimeout <= 0 {
		cfg.Options.PollTimeout = 15 * time.Minute
	}

	return &ImageGenerationService{
		generator: cfg.Generator,
		publisher: cfg.Publisher,
		reporter:  cfg.Reporter,
		opts:      cfg.Options,
		newRunID:  uuid.NewString,
		now:       time.Now,
	}, nil
}

// Run executes one pass of the pipeline for prompt. Every per-item outcome is
// recorded in the returned report and emitted to the configured reporter and
// to any extra reporters given for this run.
//
// Run returns domain.ErrEmptyPrompt without calling any remote API when the
// prompt is blank, domain.ErrGenerationFailed when no job could be created and
// domain.ErrNoImagesFound when no job produced an image. Failed uploads do
// not make Run fail; they are reported as publish Results.
func (s *ImageGenerationService) Run(ctx context.Context, prompt string, reporters ...domain.Reporter) (*domain.Report, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, domain.ErrEmptyPrompt
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	report := &domain.Report{
		RunID:     s.newRunID(),
		Prompt:    prompt,
		StartedAt: s.now(),
	}
	defer func() {
		report.FinishedAt = s.now()
	}()

	emit := s.emitter(ctx, report, reporters)

	log.Printf("Run %s: generating %d images for prompt: %s", report.RunID, len(s.opts.Dimensions), prompt)
	report.Jobs = s.generateJobs(ctx, prompt, s.opts.Dimensions, emit)
	if len(report.Jobs) == 0 {
		return report, domain.ErrGenerationFailed
	}

	log.Printf("Run %s: image generation initiated successfully, waiting for %d jobs", report.RunID, len(report.Jobs))
	report.Images = s.fetchImages(ctx, report.Jobs, emit)
	if len(report.Images) == 0 {
		return report, domain.ErrNoImagesFound
	}

	s.publishImages(ctx, report.Images, emit)

	return report, nil
}

// GenerateJobs submits one generation per dimension pair and returns the jobs
// that were created. A failed submission is reported and skipped.
func (s *ImageGenerationService) GenerateJobs(ctx context.Context, prompt string, dims []domain.Dimensions) ([]domain.GenerationJob, []domain.Result) {
	var results []domain.Result
	jobs := s.generateJobs(ctx, prompt, dims, collect(&results))
	return jobs, results
}

// FetchImages polls every job in order and returns the image URLs of the ones
// that completed, in job order then image order.
func (s *ImageGenerationService) FetchImages(ctx context.Context, jobs []domain.GenerationJob) ([]domain.GeneratedImage, []domain.Result) {
	var results []domain.Result
	images := s.fetchImages(ctx, jobs, collect(&results))
	return images, results
}

// PublishImages downloads every image and publishes it as image_{i}.jpeg.
func (s *ImageGenerationService) PublishImages(ctx context.Context, images []domain.GeneratedImage) []domain.Result {
	var results []domain.Result
	s.publishImages(ctx, images, collect(&results))
	return results
}

// WaitForGeneration polls the job until it leaves the pending state. It gives
// up with domain.ErrPollTimeout after MaxAttempts status checks or once
// PollTimeout has elapsed, and stops as soon as ctx is cancelled.
func (s *ImageGenerationService) WaitForGeneration(ctx context.Context, jobID string) (*domain.GenerationStatus, error) {
	pollCtx, cancel := context.WithTimeout(ctx, s.opts.PollTimeout)
	defer cancel()

	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		status, err := s.generator.GetGeneration(pollCtx, jobID)
		if err != nil {
			if pollCtx.Err() != nil {
				return nil, s.pollStopped(ctx, jobID)
			}
			return nil, fmt.Errorf("failed to fetch images for generation ID %s: %w", jobID, err)
		}

		if !status.Pending() {
			if len(status.Images) == 0 {
				return status, fmt.Errorf("generation ID %s finished with status %s: %w", jobID, status.Status, domain.ErrNoImages)
			}
			return status, nil
		}

		log.Printf("Generation %s still pending (check %d/%d)", jobID, attempt, s.opts.MaxAttempts)

		if attempt == s.opts.MaxAttempts {
			break
		}

		select {
		case <-pollCtx.Done():
			return nil, s.pollStopped(ctx, jobID)
		case <-time.After(s.opts.PollInterval):
		}
	}

	return nil, fmt.Errorf("generation ID %s still pending after %d checks: %w", jobID, s.opts.MaxAttempts, domain.ErrPollTimeout)
}

// pollStopped tells a cancelled caller apart from an expired poll timeout.
func (s *ImageGenerationService) pollStopped(ctx context.Context, jobID string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("polling generation ID %s: %w", jobID, err)
	}
	return fmt.Errorf("generation ID %s still pending after %s: %w", jobID, s.opts.PollTimeout, domain.ErrPollTimeout)
}

func (s *ImageGenerationService) generateJobs(ctx context.Context, prompt string, dims []domain.Dimensions, emit func(domain.Result)) []domain.GenerationJob {
	jobs := make([]domain.GenerationJob, 0, len(dims))

	for _, d := range dims {
		job, err := s.generator.CreateGeneration(ctx, domain.GenerationRequest{
			Width:   d.Width,
			Height:  d.Height,
			ModelID: s.opts.ModelID,
			Prompt:  prompt,
		})
		if err != nil {
			emit(domain.Result{
				Stage:   domain.StageGenerate,
				Subject: d.String(),
				Err:     fmt.Errorf("failed to generate images for aspect ratio %s: %w", d, err),
			})
			continue
		}

		jobs = append(jobs, *job)
		emit(domain.Result{Stage: domain.StageGenerate, Subject: d.String(), Value: job.ID})
	}

	return jobs
}

func (s *ImageGenerationService) fetchImages(ctx context.Context, jobs []domain.GenerationJob, emit func(domain.Result)) []domain.GeneratedImage {
	var images []domain.GeneratedImage

	for _, job := range jobs {
		status, err := s.WaitForGeneration(ctx, job.ID)
		if err != nil {
			emit(domain.Result{Stage: domain.StageFetch, Subject: job.ID, Err: err})
			continue
		}

		for _, img := range status.Images {
			images = append(images, img)
			emit(domain.Result{Stage: domain.StageFetch, Subject: job.ID, Value: img.URL})
		}
	}

	return images
}

func (s *ImageGenerationService) publishImages(ctx context.Context, images []domain.GeneratedImage, emit func(domain.Result)) {
	for i, img := range images {
		filename := fmt.Sprintf("image_%d.jpeg", i)

		data, err := s.generator.DownloadImage(ctx, img.URL)
		if err != nil {
			emit(domain.Result{
				Stage:   domain.StagePublish,
				Subject: filename,
				Err:     fmt.Errorf("failed to download image %s: %w", img.URL, err),
			})
			continue
		}

		location, err := s.publisher.Publish(ctx, domain.Upload{
			Filename:    filename,
			Content:     data,
			ContentType: "image/jpeg",
		})
		if err != nil {
			emit(domain.Result{
				Stage:   domain.StagePublish,
				Subject: filename,
				Err:     fmt.Errorf("failed to upload image: %w", err),
			})
			continue
		}

		emit(domain.Result{Stage: domain.StagePublish, Subject: filename, Value: location})
	}
}

// emitter appends each Result to the report and forwards it to reporters.
func (s *ImageGenerationService) emitter(ctx context.Context, report *domain.Report, extra []domain.Reporter) func(domain.Result) {
	return func(res domain.Result) {
		report.Results = append(report.Results, res)
		if s.reporter != nil {
			s.reporter.Report(ctx, report.RunID, res)
		}
		for _, r := range extra {
			if r != nil {
				r.Report(ctx, report.RunID, res)
			}
		}
	}
}

func collect(results *[]domain.Result) func(domain.Result) {
	return func(res domain.Result) {
		*results = append(*results, res)
	}
}
