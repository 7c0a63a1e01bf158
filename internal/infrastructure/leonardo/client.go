package leonardo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/basel-ax/leonardo-publisher/internal/domain"
)

const (
	DefaultBaseURL = "https://cloud.leonardo.ai/api/rest/v1"
)

// Client represents the Leonardo.Ai REST API client
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient creates a new Leonardo.Ai API client
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
	}
}

type createGenerationResponse struct {
	SDGenerationJob *struct {
		GenerationID string `json:"generationId"`
	} `json:"sdGenerationJob"`
}

type generationResponse struct {
	GenerationsByPK *struct {
		ID              string `json:"id"`
		Status          string `json:"status"`
		GeneratedImages []struct {
			ID  string `json:"id"`
			URL string `json:"url"`
		} `json:"generated_images"`
	} `json:"generations_by_pk"`
}

// CreateGeneration submits one generation request and returns the created job
func (c *Client) CreateGeneration(ctx context.Context, req domain.GenerationRequest) (*domain.GenerationJob, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generations", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	body, err := c.do(httpReq, "create generation")
	if err != nil {
		return nil, err
	}

	var result createGenerationResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w: %s", domain.ErrMalformedResponse, string(body))
	}

	if result.SDGenerationJob == nil || result.SDGenerationJob.GenerationID == "" {
		return nil, fmt.Errorf("missing generation id: %w: %s", domain.ErrMalformedResponse, string(body))
	}

	return &domain.GenerationJob{
		ID:         result.SDGenerationJob.GenerationID,
		Dimensions: domain.Dimensions{Width: req.Width, Height: req.Height},
	}, nil
}

// GetGeneration fetches the status and, once complete, the images of a job
func (c *Client) GetGeneration(ctx context.Context, jobID string) (*domain.GenerationStatus, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/generations/%s", c.baseURL, url.PathEscape(jobID)), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	body, err := c.do(httpReq, "get generation")
	if err != nil {
		return nil, err
	}

	var result generationResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w: %s", domain.ErrMalformedResponse, string(body))
	}

	if result.GenerationsByPK == nil {
		return nil, fmt.Errorf("missing generations_by_pk: %w: %s", domain.ErrMalformedResponse, string(body))
	}

	status := &domain.GenerationStatus{
		ID:     jobID,
		Status: result.GenerationsByPK.Status,
	}
	for _, img := range result.GenerationsByPK.GeneratedImages {
		status.Images = append(status.Images, domain.GeneratedImage{JobID: jobID, URL: img.URL})
	}

	return status, nil
}

// DownloadImage fetches the bytes of a generated image
func (c *Client) DownloadImage(ctx context.Context, imageURL string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	return c.do(httpReq, "download image")
}

// do sends the request and returns the body of a 200 response. Any other
// status becomes a *domain.APIError carrying the raw body.
func (c *Client) do(httpReq *http.Request, op string) ([]byte, error) {
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.APIError{Op: op, StatusCode: resp.StatusCode, Body: string(body)}
	}

	return body, nil
}
