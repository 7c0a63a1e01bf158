package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/basel-ax/leonardo-publisher/internal/domain"
)

const (
	DefaultAPIURL = "https://api.github.com"
	DefaultBranch = "main"
)

// Config describes where uploads land
type Config struct {
	APIURL        string
	Token         string
	Repository    string
	Path          string
	Branch        string
	CommitMessage string
	Timeout       time.Duration
}

// Client creates files through the GitHub contents API
type Client struct {
	httpClient *http.Client
	cfg        Config
}

// NewClient creates a new contents API client
func NewClient(cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("missing token")
	}
	if cfg.Repository == "" {
		return nil, fmt.Errorf("missing repository")
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.Branch == "" {
		cfg.Branch = DefaultBranch
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.APIURL = strings.TrimSuffix(cfg.APIURL, "/")

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		cfg: cfg,
	}, nil
}

type putContentsRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	Branch  string `json:"branch"`
}

// Publish uploads the file as a new commit on the configured branch and
// returns the repository path it was written to.
func (c *Client) Publish(ctx context.Context, upload domain.Upload) (string, error) {
	return c.PutContents(ctx, path.Join(c.cfg.Path, upload.Filename), upload.Content, c.cfg.CommitMessage)
}

// PutContents creates the file at filePath. Only 201 Created counts as
// success; an existing file at that path takes the generic failure path.
func (c *Client) PutContents(ctx context.Context, filePath string, content []byte, message string) (string, error) {
	payload, err := json.Marshal(putContentsRequest{
		Message: message,
		Content: base64.StdEncoding.EncodeToString(content),
		Branch:  c.cfg.Branch,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/repos/%s/contents/%s", c.cfg.APIURL, c.cfg.Repository, escapePath(filePath))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Authorization", "token "+c.cfg.Token)
	httpReq.Header.Set("Accept", "application/vnd.github.v3+json")
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusCreated {
		return "", &domain.APIError{Op: "upload image", StatusCode: resp.StatusCode, Body: string(body)}
	}

	return fmt.Sprintf("%s@%s:%s", c.cfg.Repository, c.cfg.Branch, filePath), nil
}

// escapePath escapes each segment of a slash separated repository path.
func escapePath(p string) string {
	segments := strings.Split(strings.TrimPrefix(p, "/"), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}
