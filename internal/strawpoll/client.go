package strawpoll

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultBaseURL is the StrawPoll v3 API root
	DefaultBaseURL = "https://api.strawpoll.com/v3"

	// NoURL is returned by PollURL when the response carries no url field
	NoURL = "No URL found"
)

var (
	ErrTooFewOptions   = errors.New("input at least 2 options")
	ErrInvalidDuration = errors.New("duration must be at least one minute")
)

// APIError is returned for any non-201 response
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Body)
}

// Client is a StrawPoll API client
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
}

// NewClient creates a new StrawPoll API client
func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		now: time.Now,
	}
}

type pollOption struct {
	Value string `json:"value"`
}

type pollConfig struct {
	IsMultipleChoice bool  `json:"is_multiple_choice"`
	DeadlineAt       int64 `json:"deadline_at"`
}

type createPollRequest struct {
	Title       string       `json:"title"`
	PollOptions []pollOption `json:"poll_options"`
	PollConfig  pollConfig   `json:"poll_config"`
}

// CreatePoll creates a multiple choice poll that closes durationMinutes from
// now and returns the decoded response body
func (c *Client) CreatePoll(ctx context.Context, title string, options []string, durationMinutes int) (map[string]any, error) {
	if len(options) < 2 {
		return nil, ErrTooFewOptions
	}
	if durationMinutes < 1 {
		return nil, ErrInvalidDuration
	}

	payload := createPollRequest{
		Title:       title,
		PollOptions: make([]pollOption, len(options)),
		PollConfig: pollConfig{
			IsMultipleChoice: true,
			DeadlineAt:       c.now().Unix() + int64(durationMinutes)*60,
		},
	}
	for i, opt := range options {
		payload.PollOptions[i] = pollOption{Value: opt}
	}

	var result map[string]any
	if err := c.post(ctx, c.baseURL+"/polls", payload, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// PollURL extracts the poll link from a CreatePoll response, or NoURL
func PollURL(pollData map[string]any) string {
	if url, ok := pollData["url"].(string); ok {
		return url
	}
	return NoURL
}

// post sends body as JSON and decodes a 201 response into result
func (c *Client) post(ctx context.Context, url string, body, result any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
