package sora

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"reel/internal/config"
	"reel/internal/logging"
	"reel/internal/services"
)

const videoCategory = "sora2"

// Client wraps the Sora generation API: one endpoint to submit a job,
// one to poll its status.
type Client struct {
	baseURL     string
	apiKey      string
	callbackURL string
	httpClient  *http.Client
	logger      *slog.Logger
}

// Option customizes the generation client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a generation API client from configuration.
func NewClient(cfg *config.Config, logger *slog.Logger, opts ...Option) *Client {
	client := &Client{
		baseURL:     strings.TrimRight(cfg.Sora.BaseURL, "/"),
		apiKey:      cfg.Sora.APIKey,
		callbackURL: cfg.Sora.CallbackURL,
		httpClient:  &http.Client{Timeout: cfg.Sora.Timeout()},
		logger:      logging.NewComponentLogger(logger, "sora"),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// SubmitRequest carries everything the remote pipeline needs to start a
// generation job.
type SubmitRequest struct {
	JobID           string
	Prompt          string
	AspectRatio     string
	StartImage      string
	DurationSeconds int
}

type submitBody struct {
	JobID         string `json:"jobId"`
	Prompt        string `json:"prompt"`
	VideoCategory string `json:"videoCategory"`
	AspectRatio   string `json:"aspectRatio"`
	StartImage    string `json:"startImage"`
	Duration      int    `json:"duration"`
	CallbackURL   string `json:"callbackUrl"`
}

// SubmitJob posts a new generation request. Only transport success
// matters; the response body carries nothing the caller needs.
func (c *Client) SubmitJob(ctx context.Context, req SubmitRequest) error {
	if req.JobID == "" {
		return services.Wrap(services.ErrValidation, "sora", "submit", "job id is required", nil)
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return services.Wrap(services.ErrValidation, "sora", "submit", "prompt is required", nil)
	}

	body := submitBody{
		JobID:         req.JobID,
		Prompt:        req.Prompt,
		VideoCategory: videoCategory,
		AspectRatio:   req.AspectRatio,
		StartImage:    req.StartImage,
		Duration:      req.DurationSeconds,
		CallbackURL:   c.callbackURL,
	}
	if err := c.post(ctx, "/submit", body, nil); err != nil {
		return services.Wrap(services.ErrTransport, "sora", "submit", "submission request failed", err)
	}
	c.logger.Info("job submitted",
		logging.String(logging.FieldJobID, req.JobID),
		logging.Int("duration_seconds", req.DurationSeconds))
	return nil
}

// StatusResult is the decoded outcome of a status poll. Exactly one of
// VideoURL or ErrorMessage is set on a terminal response; both empty
// means the job is still running.
type StatusResult struct {
	VideoURL     string
	ErrorMessage string
}

// Terminal reports whether the poll reached a final outcome.
func (r StatusResult) Terminal() bool {
	return r.VideoURL != "" || r.ErrorMessage != ""
}

type statusBody struct {
	JobID string `json:"jobId"`
}

// The status endpoint has shipped two generations of field names; accept
// both and prefer the current ones.
type statusResponse struct {
	URLVideo       string `json:"urlVideo"`
	LegacyURLVideo string `json:"URL VIDEO"`
	ErrorMessage   string `json:"errorMessage"`
	LegacyError    string `json:"ERROR"`
}

// JobStatus polls the remote pipeline for a job's outcome.
func (c *Client) JobStatus(ctx context.Context, jobID string) (StatusResult, error) {
	if jobID == "" {
		return StatusResult{}, services.Wrap(services.ErrValidation, "sora", "status", "job id is required", nil)
	}

	var decoded statusResponse
	if err := c.post(ctx, "/status", statusBody{JobID: jobID}, &decoded); err != nil {
		return StatusResult{}, services.Wrap(services.ErrTransport, "sora", "status", "status request failed", err)
	}

	result := StatusResult{
		VideoURL:     decoded.URLVideo,
		ErrorMessage: decoded.ErrorMessage,
	}
	if result.VideoURL == "" {
		result.VideoURL = decoded.LegacyURLVideo
	}
	if result.ErrorMessage == "" {
		result.ErrorMessage = decoded.LegacyError
	}
	return result, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	endpoint, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return fmt.Errorf("build url: %w", err)
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
