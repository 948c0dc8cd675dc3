// Package removebg is a client for the remove.bg background removal API.
package removebg

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"wardrobe/internal/infra"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("removebg: api key is required")

// ErrResultTooLarge is returned when the cut-out exceeds the size limit.
var ErrResultTooLarge = errors.New("removebg: result exceeds size limit")

const maxResultBytes = 32 << 20

// Options configures the client.
type Options struct {
	APIKey         string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client posts images to /removebg and returns the cut-out PNG.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
	maxBytes   int64
}

type errorResponse struct {
	Errors []struct {
		Title string `json:"title"`
		Code  string `json:"code"`
	} `json:"errors"`
}

// NewClient builds a client, defaulting to the public API endpoint.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.remove.bg/v1.0"
	}
	logger := opts.Logger
	if logger == nil {
		l := infra.Logger(zerolog.New(io.Discard))
		logger = &l
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
		maxBytes:   maxResultBytes,
	}
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// RemoveBackground uploads the image as base64 and returns the PNG body.
func (c *Client) RemoveBackground(ctx context.Context, image []byte) ([]byte, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIKey
	}
	if len(image) == 0 {
		return nil, errors.New("removebg: image is empty")
	}

	form := url.Values{}
	form.Set("image_file_b64", base64.StdEncoding.EncodeToString(image))
	form.Set("size", "auto")
	form.Set("format", "png")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/removebg", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("removebg: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "image/png")
	req.Header.Set("X-Api-Key", c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("removebg: invoke: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		var apiErr errorResponse
		if err := json.Unmarshal(data, &apiErr); err == nil && len(apiErr.Errors) > 0 {
			return nil, fmt.Errorf("removebg status %d: %s", resp.StatusCode, apiErr.Errors[0].Title)
		}
		return nil, fmt.Errorf("removebg status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("removebg: read body: %w", err)
	}
	if int64(len(data)) > c.maxBytes {
		return nil, ErrResultTooLarge
	}
	if len(data) == 0 {
		return nil, errors.New("removebg: empty response")
	}
	c.logger.Debug().
		Int("bytes", len(data)).
		Dur("duration", time.Since(start)).
		Msg("removebg: background removed")
	return data, nil
}
