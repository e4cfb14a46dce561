package douyin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	errs "douyindl/pkg/errors"
	"douyindl/pkg/logger"
)

const (
	// DefaultUserAgent is a desktop Chrome identity accepted by the web API
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.6261.95 Safari/537.36"

	DefaultTimeout   = 12 * time.Second
	DefaultPageDelay = 100 * time.Millisecond
)

// ClientConfig configures a Client. Zero values fall back to the defaults
// above; a negative PageDelay disables the pause between pages.
type ClientConfig struct {
	Cookie     string
	UserAgent  string
	Timeout    time.Duration
	PageDelay  time.Duration
	Endpoints  Endpoints
	HTTPClient *http.Client
}

// Client talks to the Douyin web API
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	endpoints  Endpoints
	pageDelay  time.Duration
	logger     logger.Logger
}

// NewClient creates a new Douyin web API client
func NewClient(cfg ClientConfig, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	switch {
	case cfg.PageDelay == 0:
		cfg.PageDelay = DefaultPageDelay
	case cfg.PageDelay < 0:
		cfg.PageDelay = 0
	}
	if cfg.Endpoints.BaseURL == "" {
		cfg.Endpoints = DefaultEndpoints()
	}
	if cfg.Endpoints.PagingURL == "" {
		cfg.Endpoints.PagingURL = cfg.Endpoints.BaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	headers := map[string]string{
		"User-Agent":      cfg.UserAgent,
		"Referer":         Referer,
		"Accept":          "application/json, text/plain, */*",
		"Accept-Language": "zh-CN,zh;q=0.9,en;q=0.8",
	}
	if cfg.Cookie != "" {
		headers["Cookie"] = cfg.Cookie
	}

	return &Client{
		httpClient: httpClient,
		headers:    headers,
		endpoints:  cfg.Endpoints,
		pageDelay:  cfg.PageDelay,
		logger:     log,
	}
}

// doRequest performs a GET with the configured headers
func (c *Client) doRequest(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeUnknown, "failed to create request", err)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errs.Wrap(errs.ErrorTypeCancelled, "request cancelled", ctx.Err())
		}
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"url":      url,
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, errs.Wrap(errs.ErrorTypeNetwork, "network error", err)
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"url":      url,
		"status":   resp.StatusCode,
		"duration": duration,
	})
	return resp, nil
}

// getJSON performs a GET and decodes the JSON body into target
func (c *Client) getJSON(ctx context.Context, url string, target interface{}) error {
	resp, err := c.doRequest(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.WarnWithFields("unexpected API status", map[string]interface{}{
			"url":    url,
			"status": resp.StatusCode,
		})
		return errs.FromStatusCode(resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeNetwork, "failed to read response body", err)
	}

	if err := json.Unmarshal(body, target); err != nil {
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          url,
			"error":        err.Error(),
			"body_preview": preview,
		})
		return errs.Wrap(errs.ErrorTypeParsing, fmt.Sprintf("failed to parse JSON (%d bytes)", len(body)), err)
	}
	return nil
}
