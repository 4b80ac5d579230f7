// Package push sends mobile notifications through the FCM HTTP v1 API.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"aifeed/internal/provider"
)

const providerName = "fcm"

const messagingScope = "https://www.googleapis.com/auth/firebase.messaging"

// Options carries platform-specific delivery settings.
type Options struct {
	HighPriority bool
	Sound        string
	Badge        int
}

// DefaultOptions matches what the update pipeline sends: high priority,
// default sound, badge 1.
func DefaultOptions() Options {
	return Options{HighPriority: true, Sound: "default", Badge: 1}
}

// Sender delivers one push message to one device token.
type Sender interface {
	Send(ctx context.Context, deviceToken, title, body string, opts Options) (string, error)
}

// Client is an FCM v1 Sender authenticated with a service account.
type Client struct {
	projectID   string
	baseURL     string
	tokenSource oauth2.TokenSource
	httpClient  *http.Client
}

// NewClient creates an FCM client from a service-account credentials file.
func NewClient(ctx context.Context, projectID, credentialsFile string, timeout time.Duration) (*Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("FCM project id is required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read FCM credentials: %w", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, data, messagingScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse FCM credentials: %w", err)
	}

	return &Client{
		projectID:   projectID,
		baseURL:     "https://fcm.googleapis.com",
		tokenSource: creds.TokenSource,
		httpClient:  &http.Client{Timeout: timeout},
	}, nil
}

// NewClientWithTokenSource creates a client with an explicit token source and
// endpoint. Used by tests.
func NewClientWithTokenSource(projectID, baseURL string, ts oauth2.TokenSource, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		projectID:   projectID,
		baseURL:     baseURL,
		tokenSource: ts,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

type fcmMessage struct {
	Message struct {
		Token        string            `json:"token"`
		Notification map[string]string `json:"notification"`
		Android      *androidConfig    `json:"android,omitempty"`
		APNS         *apnsConfig       `json:"apns,omitempty"`
	} `json:"message"`
}

type androidConfig struct {
	Priority     string            `json:"priority,omitempty"`
	Notification map[string]string `json:"notification,omitempty"`
}

type apnsConfig struct {
	Headers map[string]string `json:"headers,omitempty"`
	Payload struct {
		APS struct {
			Sound string `json:"sound,omitempty"`
			Badge int    `json:"badge,omitempty"`
		} `json:"aps"`
	} `json:"payload"`
}

// Send delivers one notification and returns the provider message id.
func (c *Client) Send(ctx context.Context, deviceToken, title, body string, opts Options) (string, error) {
	if deviceToken == "" {
		return "", provider.New(providerName, provider.KindPermanent, 0, "device token is required")
	}

	token, err := c.tokenSource.Token()
	if err != nil {
		return "", provider.New(providerName, provider.KindAuth, 0, err.Error())
	}

	var msg fcmMessage
	msg.Message.Token = deviceToken
	msg.Message.Notification = map[string]string{"title": title, "body": body}

	android := &androidConfig{Notification: map[string]string{}}
	if opts.HighPriority {
		android.Priority = "high"
	}
	if opts.Sound != "" {
		android.Notification["sound"] = opts.Sound
	}
	msg.Message.Android = android

	apns := &apnsConfig{}
	if opts.HighPriority {
		apns.Headers = map[string]string{"apns-priority": "10"}
	}
	apns.Payload.APS.Sound = opts.Sound
	apns.Payload.APS.Badge = opts.Badge
	msg.Message.APNS = apns

	payload, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("failed to marshal push message: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/projects/%s/messages:send", c.baseURL, c.projectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create push request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", provider.New(providerName, provider.KindTransient, 0, err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode != http.StatusOK {
		return "", classify(resp.StatusCode, string(respBody))
	}

	var result struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", provider.New(providerName, provider.KindPermanent, resp.StatusCode, "unparseable send response")
	}
	return result.Name, nil
}

// UnknownTokenKind marks tokens FCM no longer recognizes; the binding should
// be treated as stale.
const UnknownTokenKind = provider.Kind("unknown_token")

// IsUnknownToken reports whether err means the device token is stale.
func IsUnknownToken(err error) bool {
	return provider.KindOf(err) == UnknownTokenKind
}

func classify(status int, body string) error {
	lower := strings.ToLower(body)
	switch {
	case status == http.StatusNotFound, strings.Contains(lower, "unregistered"),
		strings.Contains(lower, "invalid-registration-token"):
		return provider.New(providerName, UnknownTokenKind, status, "device token is not registered")
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return provider.New(providerName, provider.KindAuth, status, "push credentials rejected")
	default:
		return provider.New(providerName, provider.KindTransient, status, truncate(body))
	}
}

func truncate(s string) string {
	if len(s) > 200 {
		return s[:200]
	}
	return s
}
