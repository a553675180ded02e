package transfer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"karaoke/internal/config"
	"karaoke/internal/logging"
	"karaoke/internal/services"
)

const (
	defaultHTTPTimeout = 60 * time.Second
	maxErrorBody       = 4096
)

// Encoding selects how a fetched payload is decoded.
type Encoding int

const (
	// EncodingText returns the body as UTF-8 text.
	EncodingText Encoding = iota
	// EncodingBinary returns the raw body bytes.
	EncodingBinary
)

func (e Encoding) String() string {
	if e == EncodingBinary {
		return "binary"
	}
	return "text"
}

// Config describes the transfer client configuration.
type Config struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client uploads and fetches payloads over HTTP.
type Client struct {
	baseURL *url.URL
	token   string
	http    *http.Client
	logger  *slog.Logger
}

// New creates a Client from the supplied configuration.
func New(cfg Config) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		return nil, errors.New("transfer: base url is required")
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("transfer: parse base url: %w", err)
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Client{
		baseURL: baseURL,
		token:   strings.TrimSpace(cfg.Token),
		http:    client,
		logger:  logging.NewComponentLogger(logger, "transfer"),
	}, nil
}

// NewFromConfig builds a Client from the backend section of cfg.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("transfer: config is nil")
	}
	return New(Config{
		BaseURL:    cfg.Backend.TransferURL,
		Token:      cfg.Backend.APIToken,
		HTTPClient: &http.Client{Timeout: cfg.RequestTimeout()},
		Logger:     logger,
	})
}

type uploadResponse struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

// Upload stores payload in transient storage and returns its fetchable URL.
func (c *Client) Upload(ctx context.Context, payload []byte) (string, error) {
	endpoint := c.baseURL.JoinPath("upload")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(payload))
	if err != nil {
		return "", services.Wrap(services.ErrTransfer, "transfer", "upload", "Upload failed", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	c.applyHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", transientError("upload", "Upload failed", err)
	}
	defer resp.Body.Close()

	if err := classifyStatus("upload", "Upload failed", resp); err != nil {
		return "", err
	}

	var decoded uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", services.Wrap(services.ErrTransfer, "transfer", "upload", "Upload failed",
			fmt.Errorf("decode upload response: %w", err))
	}
	if decoded.Error != "" {
		return "", services.Wrap(services.ErrTransfer, "transfer", "upload", "Upload failed", errors.New(decoded.Error))
	}
	if strings.TrimSpace(decoded.URL) == "" {
		return "", services.Wrap(services.ErrTransfer, "transfer", "upload", "Upload failed",
			errors.New("upload response missing url"))
	}
	c.logger.Debug("payload uploaded",
		logging.Int("bytes", len(payload)),
		logging.String("url", decoded.URL),
	)
	return decoded.URL, nil
}

// Fetch downloads the payload stored at rawURL.
func (c *Client) Fetch(ctx context.Context, rawURL string, encoding Encoding) ([]byte, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, services.Wrap(services.ErrTransfer, "transfer", "fetch", "Download failed", errors.New("empty url"))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrTransfer, "transfer", "fetch", "Download failed", err)
	}
	c.applyHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transientError("fetch", "Download failed", err)
	}
	defer resp.Body.Close()

	if err := classifyStatus("fetch", "Download failed", resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transientError("fetch", "Download failed", fmt.Errorf("read body: %w", err))
	}

	if encoding == EncodingText || isJSON(resp.Header.Get("Content-Type")) {
		if message := applicationError(body); message != "" {
			return nil, services.Wrap(services.ErrTransfer, "transfer", "fetch", "Download failed",
				fmt.Errorf("%w: %s", ErrApplication, message))
		}
	}
	if encoding == EncodingText {
		body = bytes.TrimPrefix(body, []byte("\xef\xbb\xbf"))
		if !utf8.Valid(body) {
			body = bytes.ToValidUTF8(body, []byte("�"))
		}
	}
	c.logger.Debug("payload fetched",
		logging.Int("bytes", len(body)),
		logging.String("encoding", encoding.String()),
	)
	return body, nil
}

func (c *Client) applyHeaders(req *http.Request) {
	req.Header.Set("User-Agent", "karaoke/1")
	if c.token != "" && sameHost(req.URL, c.baseURL) {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func sameHost(a, b *url.URL) bool {
	return a != nil && b != nil && strings.EqualFold(a.Host, b.Host)
}

// ErrApplication marks a successful response whose body is an
// {"error": ...} envelope. The backend answered, so asking again won't help.
var ErrApplication = errors.New("application error")

// StatusError describes a non-success HTTP response.
type StatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s failed (%s)", e.Operation, e.Status)
	}
	return fmt.Sprintf("%s failed (%s): %s", e.Operation, e.Status, e.Body)
}

// Retryable reports whether the status indicates a transient backend condition.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

func classifyStatus(operation, message string, resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	statusErr := &StatusError{
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       strings.TrimSpace(string(body)),
	}
	if statusErr.Retryable() {
		return transientError(operation, message, statusErr)
	}
	return services.Wrap(services.ErrTransfer, "transfer", operation, message, statusErr)
}

func transientError(operation, message string, err error) error {
	return services.Wrap(services.ErrTransient, "transfer", operation, message,
		fmt.Errorf("%w: %w", services.ErrTransfer, err))
}

func isJSON(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "application/json")
}

// applicationError extracts the message of an {"error": ...} envelope.
func applicationError(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return ""
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return ""
	}
	raw, ok := envelope["error"]
	if !ok {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text)
	}
	var nested struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &nested); err == nil && nested.Message != "" {
		return nested.Message
	}
	if string(raw) == "null" || string(raw) == "false" {
		return ""
	}
	return string(raw)
}
