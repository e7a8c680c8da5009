package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ipfs/go-cid"

	"github.com/emilythestrangee/filblog/backend/internal/apperr"
)

const (
	DefaultNodeURL    = "https://node.lighthouse.storage"
	DefaultGatewayURL = "https://gateway.lighthouse.storage"

	maxFetchBytes = 32 << 20
)

// UploadResult is the Lighthouse add response.
type UploadResult struct {
	Name string `json:"Name"`
	Hash string `json:"Hash"`
	Size string `json:"Size"`
}

// Client uploads payloads to Lighthouse and reads them back through an IPFS gateway.
type Client struct {
	apiKey     string
	nodeURL    string
	gatewayURL string
	httpClient *http.Client
	logger     *slog.Logger
	timer      backoff.Timer
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithNodeURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.nodeURL = strings.TrimRight(u, "/")
		}
	}
}

func WithGatewayURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.gatewayURL = strings.TrimRight(u, "/")
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     strings.TrimSpace(apiKey),
		nodeURL:    DefaultNodeURL,
		gatewayURL: DefaultGatewayURL,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GatewayURL returns the public gateway URL of contentID.
func (c *Client) GatewayURL(contentID string) string {
	return c.gatewayURL + "/ipfs/" + contentID
}

// ValidateCID reports whether s parses as a CID.
func ValidateCID(s string) error {
	if _, err := cid.Decode(s); err != nil {
		return apperr.Wrap(apperr.CodeInvalidCID, "invalid content identifier", err)
	}
	return nil
}

// UploadText stores text as a plain-text file.
func (c *Client) UploadText(ctx context.Context, text string) (*UploadResult, error) {
	return c.Upload(ctx, "content.txt", strings.NewReader(text))
}

// Upload sends a single add request and returns the stored object's CID.
func (c *Client) Upload(ctx context.Context, name string, r io.Reader) (*UploadResult, error) {
	if c.apiKey == "" {
		return nil, apperr.New(apperr.CodeMissingAPIKey, "Lighthouse API key is missing")
	}
	res, err := c.upload(ctx, name, r)
	if err != nil {
		return nil, uploadError("Failed to upload to IPFS", err)
	}
	return res, nil
}

// UploadBytes stores data under name.
func (c *Client) UploadBytes(ctx context.Context, name string, data []byte) (*UploadResult, error) {
	return c.Upload(ctx, name, bytes.NewReader(data))
}

// uploadError keeps INVALID_CID visible and files everything else under UPLOAD_FAILED.
func uploadError(msg string, err error) error {
	if apperr.CodeOf(err) == apperr.CodeInvalidCID {
		return err
	}
	return apperr.Wrap(apperr.CodeUploadFailed, msg, err)
}

func (c *Client) upload(ctx context.Context, name string, r io.Reader) (*UploadResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.nodeURL+"/api/v0/add", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("lighthouse returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var res UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}
	if res.Hash == "" {
		return nil, fmt.Errorf("no Hash returned from Lighthouse upload")
	}
	if err := ValidateCID(res.Hash); err != nil {
		return nil, err
	}
	c.logger.LogAttrs(ctx, slog.LevelInfo, "uploaded to IPFS",
		slog.String("name", name),
		slog.String("cid", res.Hash),
		slog.String("size", res.Size),
	)
	return &res, nil
}

// UploadWithRetry uploads data, making at most maxRetries attempts. Before
// attempt k+1 it waits k × baseDelay.
func (c *Client) UploadWithRetry(ctx context.Context, name string, data []byte, maxRetries int, baseDelay time.Duration) (*UploadResult, error) {
	if c.apiKey == "" {
		return nil, apperr.New(apperr.CodeMissingAPIKey, "Lighthouse API key is missing")
	}
	if maxRetries < 1 {
		maxRetries = 1
	}

	attempt := 0
	op := func() (*UploadResult, error) {
		attempt++
		res, err := c.upload(ctx, name, bytes.NewReader(data))
		if apperr.CodeOf(err) == apperr.CodeInvalidCID {
			return nil, backoff.Permanent(err)
		}
		return res, err
	}
	notify := func(err error, wait time.Duration) {
		c.logger.LogAttrs(ctx, slog.LevelWarn, "upload attempt failed",
			slog.Int("attempt", attempt),
			slog.Int("max_retries", maxRetries),
			slog.Duration("retry_in", wait),
			slog.String("error", err.Error()),
		)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(NewLinearBackOff(baseDelay), uint64(maxRetries-1)),
		ctx,
	)
	res, err := backoff.RetryNotifyWithTimerAndData(op, policy, notify, c.timer)
	if err != nil {
		return nil, uploadError(fmt.Sprintf("Failed to upload to IPFS after %d attempts", attempt), err)
	}
	return res, nil
}

// Fetch reads the raw content of contentID from the gateway.
func (c *Client) Fetch(ctx context.Context, contentID string) ([]byte, error) {
	if err := ValidateCID(contentID); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.GatewayURL(contentID), nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeFetchFailed, "Failed to fetch from IPFS", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeFetchFailed, "Failed to fetch from IPFS", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperr.Wrap(apperr.CodeFetchFailed, "Failed to fetch from IPFS",
			fmt.Errorf("gateway returned %d", resp.StatusCode))
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes+1))
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeFetchFailed, "Failed to fetch from IPFS", err)
	}
	if len(data) > maxFetchBytes {
		return nil, apperr.Wrap(apperr.CodeFetchFailed, "Failed to fetch from IPFS",
			fmt.Errorf("content exceeds %d bytes", maxFetchBytes))
	}
	return data, nil
}
