package qstash

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

type Config struct {
	URL              string        `split_words:"true" default:"https://qstash.upstash.io"`
	Token            string        `split_words:"true"`
	AlertDestination string        `split_words:"true"`
	Timeout          time.Duration `split_words:"true" default:"10s"`
}

// Enabled reports whether alerts can be published.
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.Token) != "" && strings.TrimSpace(c.AlertDestination) != ""
}

type Client struct {
	http        *resty.Client
	destination string
}

type publishResponse struct {
	MessageID string `json:"messageId"`
}

type publishError struct {
	Error string `json:"error"`
}

func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.URL)
	if baseURL == "" {
		return nil, errors.New("qstash url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("qstash token is required")
	}

	destination := strings.TrimSpace(cfg.AlertDestination)
	if destination != "" {
		if _, err := url.ParseRequestURI(destination); err != nil {
			return nil, fmt.Errorf("qstash alert destination: %w", err)
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetAuthToken(strings.TrimSpace(cfg.Token)).
		SetTimeout(timeout)

	return &Client{http: httpClient, destination: destination}, nil
}

// Publish enqueues body as JSON for delivery to destination. An empty
// destination uses the configured alert destination. It returns the
// QStash message id.
func (c *Client) Publish(ctx context.Context, destination string, body any, delay time.Duration) (string, error) {
	if destination == "" {
		destination = c.destination
	}
	if destination == "" {
		return "", errors.New("qstash destination is required")
	}

	req := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&publishResponse{}).
		SetError(&publishError{})
	if delay > 0 {
		req.SetHeader("Upstash-Delay", fmt.Sprintf("%ds", int(delay.Seconds())))
	}

	resp, err := req.Post("/v2/publish/" + destination)
	if err != nil {
		return "", fmt.Errorf("qstash publish: %w", err)
	}
	if resp.IsError() {
		if e, ok := resp.Error().(*publishError); ok && e.Error != "" {
			return "", fmt.Errorf("qstash publish: status %d: %s", resp.StatusCode(), e.Error)
		}
		return "", fmt.Errorf("qstash publish: status %d", resp.StatusCode())
	}

	out, _ := resp.Result().(*publishResponse)
	if out == nil {
		return "", nil
	}
	return out.MessageID, nil
}
