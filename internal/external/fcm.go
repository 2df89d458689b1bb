package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"floodwatch/internal/types"
)

// fcmAPIBase is the default Firebase Cloud Messaging endpoint.
// Overridable in tests via FCMClientConfig.BaseURL.
const fcmAPIBase = "https://fcm.googleapis.com"

// FCMClientConfig holds the configuration for creating an FCMClient.
type FCMClientConfig struct {
	ServerKey string
	BaseURL   string // Override for testing; defaults to fcmAPIBase
	Logger    *slog.Logger
}

// FCMClient delivers push notifications through the FCM HTTP API via
// BaseClient, so every send inherits the platform's resilience behavior
// (circuit breaker, retries, error mapping) and is testable with httptest.
type FCMClient struct {
	base      *BaseClient
	serverKey string
	baseURL   string
	logger    *slog.Logger
}

// NewFCMClient creates a new FCMClient. The httpClient timeout should match
// PushConfig.Timeout.
func NewFCMClient(httpClient *http.Client, cfg FCMClientConfig) *FCMClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = fcmAPIBase
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	base := NewBaseClient(
		httpClient,
		"fcm",
		RetryPolicy{
			MaxRetries: 2,
			MinWait:    500 * time.Millisecond,
			MaxWait:    5 * time.Second,
		},
		"Floodwatch/1.0",
	)

	return &FCMClient{
		base:      base,
		serverKey: cfg.ServerKey,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		logger:    logger,
	}
}

// NewFCMClientWithBase creates an FCMClient with a pre-configured BaseClient.
// This is useful for testing when you want to control the BaseClient
// configuration (e.g., disable retries).
func NewFCMClientWithBase(base *BaseClient, cfg FCMClientConfig) *FCMClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = fcmAPIBase
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &FCMClient{
		base:      base,
		serverKey: cfg.ServerKey,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		logger:    logger,
	}
}

// fcmSendRequest is the FCM legacy HTTP API request body.
type fcmSendRequest struct {
	To           string            `json:"to"`
	Notification fcmNotification   `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// fcmSendResponse is the subset of the FCM response the client inspects.
type fcmSendResponse struct {
	MulticastID int64 `json:"multicast_id"`
	Success     int   `json:"success"`
	Failure     int   `json:"failure"`
	Results     []struct {
		MessageID string `json:"message_id"`
		Error     string `json:"error"`
	} `json:"results"`
}

// Send transmits a push message and returns the provider message ID on
// success.
//
// Error mapping:
//   - NotRegistered / InvalidRegistration -> types.ErrCodePushTokenInvalid
//     (the token is dead; the account service should purge it)
//   - any other per-message error or non-2xx -> types.ErrCodePushSendFailed
func (c *FCMClient) Send(ctx context.Context, msg types.PushMessage) (string, error) {
	payload := fcmSendRequest{
		To: msg.Token,
		Notification: fcmNotification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: msg.Data,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to marshal push payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/fcm/send", bytes.NewReader(body))
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build push request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+c.serverKey)

	resp, err := c.base.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", types.NewAppError(
			types.ErrCodePushSendFailed,
			fmt.Sprintf("push transport returned %d: %s", resp.StatusCode, string(snippet)),
			nil,
		)
	}

	var parsed fcmSendResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", types.NewAppError(types.ErrCodePushSendFailed, "failed to decode push response", err)
	}

	if parsed.Failure > 0 || len(parsed.Results) == 0 {
		reason := "unknown"
		if len(parsed.Results) > 0 && parsed.Results[0].Error != "" {
			reason = parsed.Results[0].Error
		}
		code := types.ErrCodePushSendFailed
		if reason == "NotRegistered" || reason == "InvalidRegistration" {
			code = types.ErrCodePushTokenInvalid
		}
		return "", types.NewAppError(code, fmt.Sprintf("push delivery rejected: %s", reason), nil)
	}

	msgID := parsed.Results[0].MessageID
	c.logger.DebugContext(ctx, "push delivered",
		"provider_message_id", msgID,
	)
	return msgID, nil
}
