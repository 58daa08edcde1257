// Package gateway talks to the RecruitGenie chat backend over HTTP.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spigell/recruitgenie/internal/utils"
	"go.uber.org/zap"
)

const (
	// DefaultBaseURL is where the backend listens unless configured otherwise.
	DefaultBaseURL = "http://localhost:5001"
	userAgent      = "recruitgenie-cli"

	historyPath = "/history"
	dataPath    = "/data"
	chatPath    = "/chat"

	defaultTimeout = 60 * time.Second
	previewLength  = 80
)

type Client struct {
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
	BaseURL    string
}

func New(logger *zap.Logger, baseURL string) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		logger:  logger,
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: defaultTimeout,
		},
		UserAgent: userAgent,
	}
}

// FetchHistory returns the stored conversation for the session in append order.
func (c *Client) FetchHistory(ctx context.Context, sessionID string) ([]Message, error) {
	var raw any
	if err := c.getJSON(ctx, c.sessionURL(historyPath, sessionID), &raw); err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}

	messages, err := decodeHistory(raw, c.logger)
	if err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}

	c.logger.Debug("got history", zap.Int("messages", len(messages)))
	return messages, nil
}

// FetchExtractedData returns the latest hiring profile for the session.
// A nil result means the backend has nothing for it.
func (c *Client) FetchExtractedData(ctx context.Context, sessionID string) (*ExtractedData, error) {
	var raw any
	if err := c.getJSON(ctx, c.sessionURL(dataPath, sessionID), &raw); err != nil {
		return nil, fmt.Errorf("fetch extracted data: %w", err)
	}

	data, err := decodeExtractedData(raw, c.logger)
	if err != nil {
		return nil, fmt.Errorf("decode extracted data: %w", err)
	}

	return data, nil
}

// SendMessage submits one user message and returns the assistant reply with the refreshed profile.
func (c *Client) SendMessage(ctx context.Context, sessionID, text string) (*ChatResponse, error) {
	c.logger.Debug("sending message", zap.String("preview", utils.TruncateForLog(text, previewLength)))

	var raw any
	body := &ChatRequest{SessionID: sessionID, Message: text}
	if err := c.postJSON(ctx, c.BaseURL+chatPath, body, &raw); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}

	resp, err := decodeChatResponse(raw, c.logger)
	if err != nil {
		return nil, fmt.Errorf("decode chat response: %w", err)
	}

	return resp, nil
}

func (c *Client) sessionURL(path, sessionID string) string {
	return fmt.Sprintf("%s%s/%s", c.BaseURL, path, url.PathEscape(sessionID))
}
