// Package claimclient talks to the claims REST API over HTTP.
package claimclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/claim-console/internal/claim"
)

const (
	HealthPath = "/health"
	UploadPath = "/process-claim/upload"

	// UploadField is the multipart field the upload endpoint reads the image from.
	UploadField = "file"

	maxHealthBody   = 1 << 20
	maxClaimBody    = 32 << 20
	maxMessageLen   = 512
	requestIDHeader = "X-Request-ID"
)

// Options configures the HTTP client. Zero timeouts fall back to the defaults below.
type Options struct {
	HealthTimeout time.Duration
	UploadTimeout time.Duration
	HTTPClient    *http.Client
}

const (
	DefaultHealthTimeout = 10 * time.Second
	DefaultUploadTimeout = 5 * time.Minute
)

// Client is the HTTP implementation of claim.Client.
type Client struct {
	http          *http.Client
	healthTimeout time.Duration
	uploadTimeout time.Duration
	logger        *zap.Logger
}

var _ claim.Client = (*Client)(nil)

// New returns a ready-to-use client for the claims API.
func New(opts Options, logger *zap.Logger) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	healthTimeout := opts.HealthTimeout
	if healthTimeout <= 0 {
		healthTimeout = DefaultHealthTimeout
	}
	uploadTimeout := opts.UploadTimeout
	if uploadTimeout <= 0 {
		uploadTimeout = DefaultUploadTimeout
	}
	return &Client{
		http:          httpClient,
		healthTimeout: healthTimeout,
		uploadTimeout: uploadTimeout,
		logger:        logger.Named("claimclient"),
	}
}

// ProbeHealth issues GET {baseURL}/health. Failures are reported in the returned status.
func (c *Client) ProbeHealth(ctx context.Context, baseURL string) claim.HealthStatus {
	requestID := uuid.NewString()
	endpoint := joinURL(baseURL, HealthPath)
	opLogger := c.logger.With(
		zap.String("operation", "claimclient.probe_health"),
		zap.String("request_id", requestID),
		zap.String("url", endpoint),
	)

	started := time.Now()
	status := claim.HealthStatus{CheckedAt: started.UTC()}

	callCtx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		status.Error = fmt.Sprintf("invalid API URL %q: %v", baseURL, err)
		opLogger.Warn("health probe not sent", zap.Error(err))
		return status
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, requestID)

	resp, err := c.http.Do(req)
	if err != nil {
		status.Latency = time.Since(started)
		status.Error = classifyTransportError(ctx, err, c.healthTimeout).Error()
		opLogger.Warn("health probe failed", zap.Error(err), zap.Duration("latency", status.Latency))
		return status
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxHealthBody))
	status.Latency = time.Since(started)
	status.StatusCode = resp.StatusCode
	if err != nil {
		status.Error = classifyTransportError(ctx, err, c.healthTimeout).Error()
		opLogger.Warn("health probe body unreadable", zap.Error(err))
		return status
	}

	if !isSuccess(resp.StatusCode) {
		status.Error = claim.NewServerError(resp.StatusCode, extractMessage(body)).Error()
		opLogger.Warn("health probe returned non-2xx", zap.Int("status", resp.StatusCode))
		return status
	}

	status.Reachable = true
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err == nil && payload != nil {
		status.Payload = payload
	} else {
		status.Body = truncate(strings.TrimSpace(string(body)))
	}

	opLogger.Info("health probe succeeded", zap.Int("status", resp.StatusCode), zap.Duration("latency", status.Latency))
	return status
}

// SubmitClaim uploads the image to POST {baseURL}/process-claim/upload and decodes the claim.
// Every failure is a *claim.ClaimError. The call is never retried.
func (c *Client) SubmitClaim(ctx context.Context, baseURL string, image claim.UploadedImage) (*claim.ClaimResult, error) {
	if image.Size() == 0 {
		return nil, claim.NewInvalidInput("Please select a file to upload.")
	}

	requestID := uuid.NewString()
	endpoint := joinURL(baseURL, UploadPath)
	opLogger := c.logger.With(
		zap.String("operation", "claimclient.submit_claim"),
		zap.String("request_id", requestID),
		zap.String("url", endpoint),
		zap.String("filename", image.Filename),
		zap.Int("size", image.Size()),
	)

	body, contentType, err := buildMultipart(image)
	if err != nil {
		opLogger.Error("failed to encode upload", zap.Error(err))
		return nil, &claim.ClaimError{Category: claim.CategoryInvalidInput, Message: "the image could not be encoded for upload", Err: err}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.uploadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, endpoint, body)
	if err != nil {
		opLogger.Warn("upload not sent", zap.Error(err))
		return nil, &claim.ClaimError{
			Category: claim.CategoryConnectivity,
			Message:  fmt.Sprintf("invalid API URL %q", baseURL),
			Err:      err,
		}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, requestID)

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		claimErr := classifyTransportError(ctx, err, c.uploadTimeout)
		opLogger.Warn("upload failed", zap.Error(err), zap.String("category", string(claimErr.Category)), zap.Duration("latency", time.Since(started)))
		return nil, claimErr
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxClaimBody))
	latency := time.Since(started)
	if err != nil {
		claimErr := classifyTransportError(ctx, err, c.uploadTimeout)
		claimErr.StatusCode = resp.StatusCode
		opLogger.Warn("upload response unreadable", zap.Error(err), zap.Duration("latency", latency))
		return nil, claimErr
	}

	if !isSuccess(resp.StatusCode) {
		claimErr := claim.NewServerError(resp.StatusCode, extractMessage(respBody))
		opLogger.Warn("upload returned non-2xx", zap.Int("status", resp.StatusCode), zap.Duration("latency", latency))
		return nil, claimErr
	}

	result, err := claim.ParseClaimResult(respBody)
	if err != nil {
		opLogger.Warn("upload response not decodable", zap.Error(err), zap.Int("status", resp.StatusCode))
		return nil, claim.NewBadResponse(resp.StatusCode, err)
	}

	opLogger.Info("claim processed", zap.Int("status", resp.StatusCode), zap.Duration("latency", latency))
	return result, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func buildMultipart(image claim.UploadedImage) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, UploadField, quoteEscaper.Replace(image.Filename)))
	header.Set("Content-Type", image.MediaType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(image.Data); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return body, writer.FormDataContentType(), nil
}

// classifyTransportError maps a failed round trip to a ClaimError. parent is the caller's
// context, so a cancellation by the caller is told apart from our own deadline.
func classifyTransportError(parent context.Context, err error, timeout time.Duration) *claim.ClaimError {
	if errors.Is(parent.Err(), context.Canceled) {
		return &claim.ClaimError{Category: claim.CategoryCanceled, Message: "the request was canceled", Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
		return &claim.ClaimError{
			Category: claim.CategoryTimeout,
			Message:  fmt.Sprintf("the claims API did not answer within %s", timeout),
			Err:      err,
		}
	}
	if errors.Is(err, context.Canceled) {
		return &claim.ClaimError{Category: claim.CategoryCanceled, Message: "the request was canceled", Err: err}
	}
	return &claim.ClaimError{
		Category: claim.CategoryConnectivity,
		Message:  fmt.Sprintf("could not reach the claims API: %v", unwrapURLError(err)),
		Err:      err,
	}
}

func isTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}

func unwrapURLError(err error) error {
	if inner := errors.Unwrap(err); inner != nil {
		return inner
	}
	return err
}

// extractMessage pulls a readable message from an error body: FastAPI style "detail",
// then "error" or "message", then the trimmed text itself.
func extractMessage(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}

	var payload map[string]any
	if err := json.Unmarshal(trimmed, &payload); err == nil {
		if msg := detailMessage(payload["detail"]); msg != "" {
			return truncate(msg)
		}
		for _, key := range []string{"error", "message"} {
			if msg := claim.Text(payload[key]); msg != "" {
				return truncate(msg)
			}
		}
	}
	return truncate(string(trimmed))
}

func detailMessage(v any) string {
	switch detail := v.(type) {
	case []any:
		msgs := make([]string, 0, len(detail))
		for _, item := range detail {
			if entry, ok := item.(map[string]any); ok {
				if msg := claim.Text(entry["msg"]); msg != "" {
					msgs = append(msgs, msg)
					continue
				}
			}
			if msg := claim.Text(item); msg != "" {
				msgs = append(msgs, msg)
			}
		}
		return strings.Join(msgs, "; ")
	case map[string]any:
		if msg := claim.Text(detail["msg"]); msg != "" {
			return msg
		}
		return claim.Text(detail)
	default:
		return claim.Text(detail)
	}
}

func truncate(s string) string {
	if utf8.RuneCountInString(s) <= maxMessageLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxMessageLen]) + "…"
}

func joinURL(baseURL, path string) string {
	return strings.TrimRight(strings.TrimSpace(baseURL), "/") + path
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
