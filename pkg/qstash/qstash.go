package qstash

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxResponseSizeBytes = 1 << 20

type Config struct {
	URL     string        `split_words:"true" default:"https://qstash.upstash.io"`
	Token   string        `split_words:"true"`
	Timeout time.Duration `split_words:"true" default:"10s"`

	// Destination is the URL or topic every turn is published to.
	Destination string `split_words:"true"`
}

// Enabled reports whether publishing is configured.
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.Token) != "" && strings.TrimSpace(c.Destination) != ""
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.URL)
	if baseURL == "" {
		return nil, errors.New("qstash url is required")
	}

	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, err
	}

	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("qstash token is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}

	return client, nil
}

func MustNew(cfg Config) *Client {
	client, err := NewClient(cfg)
	if err != nil {
		panic(err)
	}
	return client
}

// Message is one publish request. Headers are forwarded to the destination
// with the Upstash-Forward- prefix.
type Message struct {
	Destination string
	Body        []byte
	ContentType string
	Headers     map[string]string
	Deduplicate string
	Retries     *int
}

type publishResponse struct {
	MessageID string `json:"messageId"`
	Error     string `json:"error"`
}

// Publish enqueues msg and returns the QStash message id.
func (c *Client) Publish(ctx context.Context, msg Message) (string, error) {
	dest := strings.TrimSpace(msg.Destination)
	if dest == "" {
		return "", errors.New("qstash destination is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/publish/"+dest, bytes.NewReader(msg.Body))
	if err != nil {
		return "", fmt.Errorf("build qstash request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	contentType := msg.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	req.Header.Set("Content-Type", contentType)
	if msg.Deduplicate != "" {
		req.Header.Set("Upstash-Deduplication-Id", msg.Deduplicate)
	}
	if msg.Retries != nil {
		req.Header.Set("Upstash-Retries", fmt.Sprint(*msg.Retries))
	}
	for k, v := range msg.Headers {
		req.Header.Set("Upstash-Forward-"+k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("qstash publish: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return "", fmt.Errorf("read qstash response: %w", err)
	}

	var out publishResponse
	_ = json.Unmarshal(raw, &out)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if out.Error != "" {
			return "", fmt.Errorf("qstash publish: status=%d: %s", resp.StatusCode, out.Error)
		}
		return "", fmt.Errorf("qstash publish: status=%d", resp.StatusCode)
	}
	if out.MessageID == "" {
		return "", errors.New("qstash publish: response without message id")
	}
	return out.MessageID, nil
}
